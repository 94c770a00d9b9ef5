package detector

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// ErrEmptyBackground indicates the background ROI holds zero total counts,
// so no scaled expectation can be formed. The caller must supply a
// non-degenerate ROI; this is never absorbed locally.
var ErrEmptyBackground = errors.New("background roi has zero total counts")

// PoissonDeviance computes the likelihood-ratio statistic
//
//	G = 2 * [ sum(O_i * ln(O_i/E_i)) - sum(O_i - E_i) ]
//
// comparing observed counts against expected counts under a Poisson model,
// with terms for O_i == 0 contributing only through the linear part.
// It also returns the degrees of freedom: the number of bins where either
// count is positive, minus one for the fitted scale parameter.
func PoissonDeviance(obs, expected []float64) (g float64, dof int) {
	var logSum, linSum float64
	occupied := 0
	for i, o := range obs {
		e := expected[i]
		if o > 0 || e > 0 {
			occupied++
		}
		if o > 0 {
			logSum += o * math.Log(o/e)
		}
		linSum += o - e
	}
	return 2 * (logSum - linSum), occupied - 1
}

// EvaluatePValues runs the per-pixel significance test: each pixel's
// histogram is compared against the ROI reference histogram scaled to the
// pixel's total counts, and the deviance is converted to a p-value via the
// chi-squared survival function. Pixels with no testable bins get p = 1.
//
// Pixels are independent under this model, so rows are evaluated across a
// worker pool. Output is deterministic regardless of worker count.
func EvaluatePValues(stack *HistogramStack, roi ROI) (*PValueMap, error) {
	ref, err := stack.ReferenceHistogram(roi)
	if err != nil {
		return nil, err
	}

	totalBg := floats.Sum(ref)
	if totalBg <= 0 {
		return nil, fmt.Errorf("roi (%d,%d,%d,%d): %w", roi.XStart, roi.XEnd, roi.YStart, roi.YEnd, ErrEmptyBackground)
	}

	pv := NewPValueMap(stack.Rows, stack.Cols)

	rowCh := make(chan int)
	var wg sync.WaitGroup
	workers := runtime.NumCPU()
	if workers > stack.Rows {
		workers = stack.Rows
	}

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			expected := make([]float64, stack.Bins)
			for y := range rowCh {
				for x := 0; x < stack.Cols; x++ {
					obs := stack.Histogram(x, y)
					scale := floats.Sum(obs) / totalBg
					for i, r := range ref {
						expected[i] = r * scale
					}
					pv.Values[pv.Idx(x, y)] = pixelPValue(obs, expected)
				}
			}
		}()
	}

	for y := 0; y < stack.Rows; y++ {
		rowCh <- y
	}
	close(rowCh)
	wg.Wait()

	return pv, nil
}

// pixelPValue converts one pixel's deviance into a chi-squared survival
// probability. Insufficient degrees of freedom resolve to 1 (no evidence).
func pixelPValue(obs, expected []float64) float64 {
	g, dof := PoissonDeviance(obs, expected)
	if dof <= 0 {
		return 1.0
	}
	if g <= 0 {
		// Exact match (or numeric underflow); survival at 0 is 1.
		return 1.0
	}
	p := distuv.ChiSquared{K: float64(dof)}.Survival(g)
	if p <= 0 {
		// Survival underflows for extreme deviances; keep the map in (0,1].
		return math.SmallestNonzeroFloat64
	}
	return p
}
