package detector

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// NewHistogramStack allocates an empty stack with fixed-width bins over
// [countMin, countMax). Bin edges and centers are shared by all pixels.
func NewHistogramStack(rows, cols, bins int, countMin, countMax float64) (*HistogramStack, error) {
	if rows <= 0 || cols <= 0 || bins <= 0 {
		return nil, fmt.Errorf("invalid stack dimensions %dx%dx%d", rows, cols, bins)
	}
	if countMax <= countMin {
		return nil, fmt.Errorf("count range [%v,%v) is empty", countMin, countMax)
	}

	edges := make([]float64, bins+1)
	floats.Span(edges, countMin, countMax)

	centers := make([]float64, bins)
	for i := range centers {
		centers[i] = (edges[i] + edges[i+1]) / 2
	}

	return &HistogramStack{
		Rows:       rows,
		Cols:       cols,
		Bins:       bins,
		Counts:     make([]float64, rows*cols*bins),
		BinEdges:   edges,
		BinCenters: centers,
	}, nil
}

// AccumulateFrame bins one frame of per-pixel counts into the stack.
// frame is row-major with len Rows*Cols. Counts outside the configured
// range are clipped into the first or last bin so no observation is lost.
func (s *HistogramStack) AccumulateFrame(frame []float64) error {
	if len(frame) != s.Rows*s.Cols {
		return fmt.Errorf("frame has %d pixels, stack expects %d", len(frame), s.Rows*s.Cols)
	}

	lo := s.BinEdges[0]
	width := s.BinEdges[1] - s.BinEdges[0]

	for p, v := range frame {
		b := int((v - lo) / width)
		if b < 0 {
			b = 0
		} else if b >= s.Bins {
			b = s.Bins - 1
		}
		s.Counts[p*s.Bins+b]++
	}
	return nil
}

// ReferenceHistogram computes the mean histogram over all pixels inside the
// background ROI. The result has the stack's bin count.
func (s *HistogramStack) ReferenceHistogram(roi ROI) ([]float64, error) {
	if err := roi.Validate(s.Rows, s.Cols); err != nil {
		return nil, fmt.Errorf("background roi: %w", err)
	}

	ref := make([]float64, s.Bins)
	for y := roi.YStart; y < roi.YEnd; y++ {
		for x := roi.XStart; x < roi.XEnd; x++ {
			floats.Add(ref, s.Histogram(x, y))
		}
	}
	floats.Scale(1/float64(roi.PixelCount()), ref)
	return ref, nil
}
