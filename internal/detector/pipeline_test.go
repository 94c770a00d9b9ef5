package detector

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// synthScenario builds the reference scenario: a 100x100 detector with a
// flat Poisson base rate of 100 counts/frame over 1000 frames, plus three
// Gaussian-profile signal regions of differing width and amplitude.
// The background ROI covers the signal-free top-left corner.
func synthScenario(t *testing.T) (*HistogramStack, ROI) {
	t.Helper()

	const (
		rows, cols = 100, 100
		nFrames    = 1000
		baseRate   = 100.0
	)

	peaks := []struct {
		cx, cy, sigma, amp float64
	}{
		{70, 30, 4.0, 4.0},
		{30, 70, 3.0, 3.0},
		{75, 75, 2.0, 2.0},
	}

	rate := make([]float64, rows*cols)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			r := baseRate
			for _, pk := range peaks {
				d2 := (float64(x)-pk.cx)*(float64(x)-pk.cx) + (float64(y)-pk.cy)*(float64(y)-pk.cy)
				r += pk.amp * math.Exp(-d2/(2*pk.sigma*pk.sigma))
			}
			rate[y*cols+x] = r
		}
	}

	stack, err := NewHistogramStack(rows, cols, 60, 40, 160)
	if err != nil {
		t.Fatalf("NewHistogramStack: %v", err)
	}

	src := rand.NewSource(42)
	frame := make([]float64, rows*cols)
	for f := 0; f < nFrames; f++ {
		for i, r := range rate {
			frame[i] = distuv.Poisson{Lambda: r, Src: src}.Rand()
		}
		if err := stack.AccumulateFrame(frame); err != nil {
			t.Fatalf("AccumulateFrame: %v", err)
		}
	}

	return stack, ROI{XStart: 0, XEnd: 20, YStart: 0, YEnd: 20}
}

func TestPipeline_SyntheticThreePeaks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping synthetic scenario in -short mode")
	}

	stack, roi := synthScenario(t)

	pv, err := EvaluatePValues(stack, roi)
	if err != nil {
		t.Fatalf("EvaluatePValues: %v", err)
	}

	// Each peak center must be strongly significant.
	centers := [][2]int{{70, 30}, {30, 70}, {75, 75}}
	for _, c := range centers {
		if p := pv.At(c[0], c[1]); p >= 0.05 {
			t.Errorf("peak center (%d,%d): expected p < 0.05, got %v", c[0], c[1], p)
		}
	}

	// The background ROI should look like noise: mostly insignificant,
	// p-values not concentrated near zero.
	sum := 0.0
	n := 0
	for y := roi.YStart; y < roi.YEnd; y++ {
		for x := roi.XStart; x < roi.XEnd; x++ {
			sum += pv.At(x, y)
			n++
		}
	}
	if mean := sum / float64(n); mean < 0.2 {
		t.Errorf("background ROI mean p-value suspiciously low: %v", mean)
	}

	params := GenerationParams{
		Threshold:       0.05,
		BgMaskMult:      2.0,
		BgMaskThickness: 5,
		MaxPeaks:        10,
		MinPeakSize:     10,
	}

	pairs, err := BuildMaskPairs(pv, roi, params)
	if err != nil {
		t.Fatalf("BuildMaskPairs: %v", err)
	}

	if len(pairs) != 3 {
		t.Fatalf("expected exactly 3 mask pairs, got %d", len(pairs))
	}

	// Descending size must follow the sigma/amplitude ranking: the wide
	// bright peak first, the narrow faint peak last.
	for i := 0; i < len(pairs)-1; i++ {
		if pairs[i].Size < pairs[i+1].Size {
			t.Errorf("pairs not sorted by descending size: %d then %d", pairs[i].Size, pairs[i+1].Size)
		}
	}
	for i, c := range centers {
		if !pairs[i].Signal.At(c[0], c[1]) {
			t.Errorf("pair %d signal mask does not contain expected peak center (%d,%d)", i, c[0], c[1])
		}
	}

	// Invariants from the contract: size matches mask, every pair meets
	// the minimum, signal and background stay disjoint.
	for i, p := range pairs {
		if p.Size != p.Signal.Count() {
			t.Errorf("pair %d: size %d != mask count %d", i, p.Size, p.Signal.Count())
		}
		if p.Size < params.MinPeakSize {
			t.Errorf("pair %d: size %d below minimum %d", i, p.Size, params.MinPeakSize)
		}
		if p.Signal.Intersects(p.Background) {
			t.Errorf("pair %d: signal and background overlap", i)
		}
	}
}
