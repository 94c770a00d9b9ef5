package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/banshee-data/detector.report/internal/detector"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAnalysisConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "empty.json", `{}`)

	cfg, err := LoadAnalysisConfig(path)
	if err != nil {
		t.Fatalf("LoadAnalysisConfig: %v", err)
	}

	roi := cfg.GetROI()
	want := detector.ROI{XStart: 0, XEnd: 20, YStart: 0, YEnd: 20}
	if roi != want {
		t.Errorf("default ROI: expected %+v, got %+v", want, roi)
	}

	params := cfg.GetGenerationParams()
	if params != detector.DefaultGenerationParams() {
		t.Errorf("default params: expected %+v, got %+v", detector.DefaultGenerationParams(), params)
	}

	if cfg.GetHistogramBins() != 64 {
		t.Errorf("default bins: expected 64, got %d", cfg.GetHistogramBins())
	}
	lo, hi := cfg.GetCountRange()
	if lo != 0 || hi != 512 {
		t.Errorf("default count range: expected [0,512), got [%v,%v)", lo, hi)
	}
}

func TestLoadAnalysisConfig_PartialOverride(t *testing.T) {
	path := writeConfig(t, "partial.json", `{
		"p_value_threshold": 0.01,
		"max_peaks": 5,
		"roi_x_end": 30,
		"roi_y_end": 30
	}`)

	cfg, err := LoadAnalysisConfig(path)
	if err != nil {
		t.Fatalf("LoadAnalysisConfig: %v", err)
	}

	params := cfg.GetGenerationParams()
	if params.Threshold != 0.01 {
		t.Errorf("expected threshold override 0.01, got %v", params.Threshold)
	}
	if params.MaxPeaks != 5 {
		t.Errorf("expected max_peaks override 5, got %d", params.MaxPeaks)
	}
	// Untouched fields keep defaults.
	if params.MinPeakSize != 10 {
		t.Errorf("expected default min_peak_size 10, got %d", params.MinPeakSize)
	}

	roi := cfg.GetROI()
	if roi.XEnd != 30 || roi.YEnd != 30 || roi.XStart != 0 {
		t.Errorf("unexpected ROI %+v", roi)
	}
}

func TestLoadAnalysisConfig_Invalid(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"threshold too high", `{"p_value_threshold": 1.5}`},
		{"threshold zero", `{"p_value_threshold": 0}`},
		{"negative mult", `{"bg_mask_mult": -0.5}`},
		{"zero thickness", `{"bg_mask_thickness": 0}`},
		{"zero max peaks", `{"max_peaks": 0}`},
		{"zero min peak size", `{"min_peak_size": 0}`},
		{"empty count range", `{"count_min": 10, "count_max": 5}`},
		{"bad json", `{not json`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeConfig(t, "bad.json", tc.content)
			if _, err := LoadAnalysisConfig(path); err == nil {
				t.Errorf("expected error for %s", tc.name)
			}
		})
	}
}

func TestLoadAnalysisConfig_RequiresJSONExtension(t *testing.T) {
	path := writeConfig(t, "config.yaml", `{}`)
	if _, err := LoadAnalysisConfig(path); err == nil {
		t.Error("expected error for non-.json extension")
	}
}

func TestLoadAnalysisConfig_MissingFile(t *testing.T) {
	if _, err := LoadAnalysisConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Error("expected error for missing file")
	}
}
