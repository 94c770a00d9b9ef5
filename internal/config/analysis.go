package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/detector.report/internal/detector"
)

// AnalysisConfig is the root configuration for a mask-generation run. All
// fields are optional pointers so partial JSON files merge cleanly over
// the built-in defaults; the Get* accessors apply those defaults.
type AnalysisConfig struct {
	// Background ROI (pixel rectangle, end-exclusive)
	ROIXStart *int `json:"roi_x_start,omitempty"`
	ROIXEnd   *int `json:"roi_x_end,omitempty"`
	ROIYStart *int `json:"roi_y_start,omitempty"`
	ROIYEnd   *int `json:"roi_y_end,omitempty"`

	// Histogram binning over the per-frame count range
	HistogramBins *int     `json:"histogram_bins,omitempty"`
	CountMin      *float64 `json:"count_min,omitempty"`
	CountMax      *float64 `json:"count_max,omitempty"`

	// Mask-pair generation params
	PValueThreshold *float64 `json:"p_value_threshold,omitempty"`
	BgMaskMult      *float64 `json:"bg_mask_mult,omitempty"`
	BgMaskThickness *int     `json:"bg_mask_thickness,omitempty"`
	MaxPeaks        *int     `json:"max_peaks,omitempty"`
	MinPeakSize     *int     `json:"min_peak_size,omitempty"`

	// Output destinations
	OutputDir *string `json:"output_dir,omitempty"`
	DBPath    *string `json:"db_path,omitempty"`
}

// LoadAnalysisConfig loads an AnalysisConfig from a JSON file. Fields
// omitted from the file keep their defaults, so partial configs are safe.
func LoadAnalysisConfig(path string) (*AnalysisConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &AnalysisConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that any set values are in range. Defaults are always
// valid, so only explicit fields are checked.
func (c *AnalysisConfig) Validate() error {
	if c.PValueThreshold != nil {
		if *c.PValueThreshold <= 0 || *c.PValueThreshold >= 1 {
			return fmt.Errorf("p_value_threshold must be in (0,1), got %f", *c.PValueThreshold)
		}
	}
	if c.BgMaskMult != nil && *c.BgMaskMult < 0 {
		return fmt.Errorf("bg_mask_mult must be non-negative, got %f", *c.BgMaskMult)
	}
	if c.BgMaskThickness != nil && *c.BgMaskThickness <= 0 {
		return fmt.Errorf("bg_mask_thickness must be positive, got %d", *c.BgMaskThickness)
	}
	if c.MaxPeaks != nil && *c.MaxPeaks <= 0 {
		return fmt.Errorf("max_peaks must be positive, got %d", *c.MaxPeaks)
	}
	if c.MinPeakSize != nil && *c.MinPeakSize < 1 {
		return fmt.Errorf("min_peak_size must be at least 1, got %d", *c.MinPeakSize)
	}
	if c.HistogramBins != nil && *c.HistogramBins <= 0 {
		return fmt.Errorf("histogram_bins must be positive, got %d", *c.HistogramBins)
	}
	if c.CountMin != nil && c.CountMax != nil && *c.CountMax <= *c.CountMin {
		return fmt.Errorf("count range [%f,%f) is empty", *c.CountMin, *c.CountMax)
	}
	return nil
}

// GetROI returns the configured background ROI or the default 20x20 corner
// region.
func (c *AnalysisConfig) GetROI() detector.ROI {
	roi := detector.ROI{XStart: 0, XEnd: 20, YStart: 0, YEnd: 20}
	if c.ROIXStart != nil {
		roi.XStart = *c.ROIXStart
	}
	if c.ROIXEnd != nil {
		roi.XEnd = *c.ROIXEnd
	}
	if c.ROIYStart != nil {
		roi.YStart = *c.ROIYStart
	}
	if c.ROIYEnd != nil {
		roi.YEnd = *c.ROIYEnd
	}
	return roi
}

// GetGenerationParams returns mask-pair generation params with defaults
// applied for unset fields.
func (c *AnalysisConfig) GetGenerationParams() detector.GenerationParams {
	p := detector.DefaultGenerationParams()
	if c.PValueThreshold != nil {
		p.Threshold = *c.PValueThreshold
	}
	if c.BgMaskMult != nil {
		p.BgMaskMult = *c.BgMaskMult
	}
	if c.BgMaskThickness != nil {
		p.BgMaskThickness = *c.BgMaskThickness
	}
	if c.MaxPeaks != nil {
		p.MaxPeaks = *c.MaxPeaks
	}
	if c.MinPeakSize != nil {
		p.MinPeakSize = *c.MinPeakSize
	}
	return p
}

// GetHistogramBins returns the histogram bin count or the default.
func (c *AnalysisConfig) GetHistogramBins() int {
	if c.HistogramBins == nil {
		return 64 // default
	}
	return *c.HistogramBins
}

// GetCountRange returns the [min, max) per-frame count range for binning.
func (c *AnalysisConfig) GetCountRange() (float64, float64) {
	lo, hi := 0.0, 512.0
	if c.CountMin != nil {
		lo = *c.CountMin
	}
	if c.CountMax != nil {
		hi = *c.CountMax
	}
	return lo, hi
}

// GetOutputDir returns the diagnostics output directory or the default.
func (c *AnalysisConfig) GetOutputDir() string {
	if c.OutputDir == nil || *c.OutputDir == "" {
		return "out"
	}
	return *c.OutputDir
}

// GetDBPath returns the results database path or the default.
func (c *AnalysisConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return "mask_runs.db"
	}
	return *c.DBPath
}
