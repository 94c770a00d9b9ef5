package monitor

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/detector.report/internal/detector"
)

func testPairs(t *testing.T) (*detector.PValueMap, []detector.MaskPair, *detector.HistogramStack) {
	t.Helper()

	pv := detector.NewPValueMap(10, 10)
	pv.Values[pv.Idx(5, 5)] = 1e-8
	pv.Values[pv.Idx(6, 5)] = 1e-7

	sig := detector.NewMask(10, 10)
	sig.Set(5, 5, true)
	sig.Set(6, 5, true)
	bg := detector.NewMask(10, 10)
	bg.Set(5, 3, true)
	bg.Set(5, 7, true)

	stack, err := detector.NewHistogramStack(10, 10, 8, 0, 16)
	if err != nil {
		t.Fatalf("NewHistogramStack: %v", err)
	}
	if err := stack.AccumulateFrame(make([]float64, 100)); err != nil {
		t.Fatalf("AccumulateFrame: %v", err)
	}

	return pv, []detector.MaskPair{{Signal: sig, Background: bg, Size: 2}}, stack
}

func TestWriteRunReport(t *testing.T) {
	pv, pairs, _ := testPairs(t)

	var buf bytes.Buffer
	if err := WriteRunReport(&buf, pv, pairs); err != nil {
		t.Fatalf("WriteRunReport: %v", err)
	}

	html := buf.String()
	if !strings.Contains(html, "Significance map") {
		t.Error("report missing significance chart")
	}
	if !strings.Contains(html, "Peak sizes") {
		t.Error("report missing peak size chart")
	}
}

func TestRunPlotter_SavesFiles(t *testing.T) {
	pv, pairs, stack := testPairs(t)

	dir := t.TempDir()
	rp, err := NewRunPlotter(dir)
	if err != nil {
		t.Fatalf("NewRunPlotter: %v", err)
	}

	if err := rp.SavePValueHeatmap(pv); err != nil {
		t.Fatalf("SavePValueHeatmap: %v", err)
	}
	if err := rp.SavePeakHistograms(stack, pairs); err != nil {
		t.Fatalf("SavePeakHistograms: %v", err)
	}

	for _, name := range []string{"pvalue_heatmap.png", "peak_00_hist.png"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
			continue
		}
		if info.Size() == 0 {
			t.Errorf("%s is empty", name)
		}
	}
}

func TestMakeRunOutputDir(t *testing.T) {
	dir := MakeRunOutputDir("plots")
	if !strings.HasPrefix(dir, filepath.Join("plots", "run_")) {
		t.Errorf("unexpected output dir %q", dir)
	}
}
