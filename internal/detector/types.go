package detector

import (
	"fmt"
	"math"
)

// HistogramStack holds one count histogram per detector pixel, aggregated
// over all frames of a run. Counts is a flat rows*cols*bins array; bin
// edges and centers are shared by every pixel.
type HistogramStack struct {
	Rows int
	Cols int
	Bins int

	// Counts[(y*Cols+x)*Bins + b] = frequency of bin b at pixel (x, y)
	Counts []float64

	BinEdges   []float64 // len = Bins + 1
	BinCenters []float64 // len = Bins
}

// Idx returns the flat pixel index for (x, y).
func (s *HistogramStack) Idx(x, y int) int { return y*s.Cols + x }

// Histogram returns the per-pixel histogram for (x, y) as a view into Counts.
func (s *HistogramStack) Histogram(x, y int) []float64 {
	off := s.Idx(x, y) * s.Bins
	return s.Counts[off : off+s.Bins]
}

// PValueMap is a per-pixel map of chi-squared survival probabilities in
// (0, 1]. Lower values mean stronger evidence that the pixel deviates from
// the scaled background. Pixels with insufficient degrees of freedom hold 1.
type PValueMap struct {
	Rows   int
	Cols   int
	Values []float64 // len = Rows * Cols, row-major
}

// NewPValueMap allocates a map with every pixel at 1 (no evidence).
func NewPValueMap(rows, cols int) *PValueMap {
	v := make([]float64, rows*cols)
	for i := range v {
		v[i] = 1.0
	}
	return &PValueMap{Rows: rows, Cols: cols, Values: v}
}

// Idx returns the flat index for (x, y).
func (m *PValueMap) Idx(x, y int) int { return y*m.Cols + x }

// At returns the p-value at (x, y).
func (m *PValueMap) At(x, y int) float64 { return m.Values[y*m.Cols+x] }

// negLog10Floor bounds p-values away from zero before taking logs so the
// transformed map stays finite for visualisation.
const negLog10Floor = 1e-300

// NegLog10 returns a -log10 transform of the map for visualisation.
func (m *PValueMap) NegLog10() []float64 {
	out := make([]float64, len(m.Values))
	for i, p := range m.Values {
		if p < negLog10Floor {
			p = negLog10Floor
		}
		out[i] = -math.Log10(p)
	}
	return out
}

// ROI is an axis-aligned rectangle over the detector grid. X spans columns
// [XStart, XEnd) and Y spans rows [YStart, YEnd), matching slice bounds.
type ROI struct {
	XStart int `json:"x_start"`
	XEnd   int `json:"x_end"`
	YStart int `json:"y_start"`
	YEnd   int `json:"y_end"`
}

// Contains reports whether pixel (x, y) lies inside the ROI.
func (r ROI) Contains(x, y int) bool {
	return x >= r.XStart && x < r.XEnd && y >= r.YStart && y < r.YEnd
}

// Center returns the integer center pixel of the ROI.
func (r ROI) Center() (x, y int) {
	return (r.XStart + r.XEnd) / 2, (r.YStart + r.YEnd) / 2
}

// PixelCount returns the number of pixels covered by the ROI.
func (r ROI) PixelCount() int {
	w := r.XEnd - r.XStart
	h := r.YEnd - r.YStart
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Validate checks the ROI against the grid dimensions.
func (r ROI) Validate(rows, cols int) error {
	if r.XStart < 0 || r.YStart < 0 || r.XEnd > cols || r.YEnd > rows {
		return fmt.Errorf("roi (%d,%d,%d,%d) outside %dx%d grid", r.XStart, r.XEnd, r.YStart, r.YEnd, cols, rows)
	}
	if r.XEnd <= r.XStart || r.YEnd <= r.YStart {
		return fmt.Errorf("roi (%d,%d,%d,%d) is empty", r.XStart, r.XEnd, r.YStart, r.YEnd)
	}
	return nil
}

// Mask is a boolean pixel grid, stored flat in row-major order.
type Mask struct {
	Rows int
	Cols int
	Bits []bool // len = Rows * Cols
}

// NewMask allocates an all-false mask.
func NewMask(rows, cols int) *Mask {
	return &Mask{Rows: rows, Cols: cols, Bits: make([]bool, rows*cols)}
}

// Idx returns the flat index for (x, y).
func (m *Mask) Idx(x, y int) int { return y*m.Cols + x }

// At returns the bit at (x, y).
func (m *Mask) At(x, y int) bool { return m.Bits[y*m.Cols+x] }

// Set writes the bit at (x, y).
func (m *Mask) Set(x, y int, v bool) { m.Bits[y*m.Cols+x] = v }

// Count returns the number of true pixels.
func (m *Mask) Count() int {
	n := 0
	for _, b := range m.Bits {
		if b {
			n++
		}
	}
	return n
}

// Clone returns a deep copy of the mask.
func (m *Mask) Clone() *Mask {
	out := NewMask(m.Rows, m.Cols)
	copy(out.Bits, m.Bits)
	return out
}

// Subtract clears every bit of m that is set in other.
func (m *Mask) Subtract(other *Mask) {
	for i, b := range other.Bits {
		if b {
			m.Bits[i] = false
		}
	}
}

// Intersects reports whether any pixel is set in both masks.
func (m *Mask) Intersects(other *Mask) bool {
	for i, b := range m.Bits {
		if b && other.Bits[i] {
			return true
		}
	}
	return false
}

// ClearROI clears every bit inside the given ROI.
func (m *Mask) ClearROI(roi ROI) {
	for y := roi.YStart; y < roi.YEnd && y < m.Rows; y++ {
		for x := roi.XStart; x < roi.XEnd && x < m.Cols; x++ {
			if y >= 0 && x >= 0 {
				m.Bits[y*m.Cols+x] = false
			}
		}
	}
}

// MaskPair couples one signal cluster with its annular background region.
// The two masks are disjoint from each other and from every other pair
// produced in the same build. Size is the signal pixel count.
type MaskPair struct {
	Signal     *Mask
	Background *Mask
	Size       int
}

// GenerationParams tune mask-pair discovery.
type GenerationParams struct {
	// Threshold is the p-value cutoff: a pixel is significant when its
	// p-value is strictly below Threshold. Smaller p = stronger evidence.
	Threshold float64

	// BgMaskMult scales the cluster's characteristic radius to set the
	// inner offset of the background annulus.
	BgMaskMult float64

	// BgMaskThickness is the radial width of the background annulus in
	// pixels (city-block distance).
	BgMaskThickness int

	// MaxPeaks caps how many clusters are discovered.
	MaxPeaks int

	// MinPeakSize drops clusters with fewer pixels than this.
	MinPeakSize int
}

// DefaultGenerationParams returns the production defaults.
func DefaultGenerationParams() GenerationParams {
	return GenerationParams{
		Threshold:       0.05,
		BgMaskMult:      2.0,
		BgMaskThickness: 5,
		MaxPeaks:        10,
		MinPeakSize:     10,
	}
}

// Validate checks parameter ranges.
func (p GenerationParams) Validate() error {
	if p.Threshold <= 0 || p.Threshold >= 1 {
		return fmt.Errorf("threshold %v outside (0,1)", p.Threshold)
	}
	if p.BgMaskMult < 0 {
		return fmt.Errorf("bg_mask_mult %v negative", p.BgMaskMult)
	}
	if p.BgMaskThickness <= 0 {
		return fmt.Errorf("bg_mask_thickness %d must be positive", p.BgMaskThickness)
	}
	if p.MaxPeaks <= 0 {
		return fmt.Errorf("max_peaks %d must be positive", p.MaxPeaks)
	}
	if p.MinPeakSize < 1 {
		return fmt.Errorf("min_peak_size %d must be at least 1", p.MinPeakSize)
	}
	return nil
}
