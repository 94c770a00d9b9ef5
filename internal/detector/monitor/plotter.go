// Package monitor renders diagnostic output for mask-generation runs:
// p-value heatmaps and per-peak histogram overlays as PNG via gonum/plot,
// and a static HTML report via go-echarts.
package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette/moreland"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/detector.report/internal/detector"
)

// RunPlotter writes diagnostic plots for one analysis run into a
// timestamped output directory.
type RunPlotter struct {
	outputDir string
}

// NewRunPlotter creates the output directory and returns a plotter bound
// to it.
func NewRunPlotter(outputDir string) (*RunPlotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	return &RunPlotter{outputDir: outputDir}, nil
}

// OutputDir returns the directory plots are written to.
func (rp *RunPlotter) OutputDir() string { return rp.outputDir }

// pValueGrid adapts a -log10(p) map to plotter.GridXYZ.
type pValueGrid struct {
	rows, cols int
	values     []float64
}

func (g pValueGrid) Dims() (c, r int)   { return g.cols, g.rows }
func (g pValueGrid) Z(c, r int) float64 { return g.values[r*g.cols+c] }
func (g pValueGrid) X(c int) float64    { return float64(c) }
func (g pValueGrid) Y(r int) float64    { return float64(r) }

// SavePValueHeatmap renders the -log10(p) significance map as a PNG.
func (rp *RunPlotter) SavePValueHeatmap(pv *detector.PValueMap) error {
	grid := pValueGrid{rows: pv.Rows, cols: pv.Cols, values: pv.NegLog10()}

	pal := moreland.SmoothBlueRed().Palette(255)
	hm := plotter.NewHeatMap(grid, pal)

	p := plot.New()
	p.Title.Text = "Significance map (-log10 p)"
	p.X.Label.Text = "X (pixel)"
	p.Y.Label.Text = "Y (pixel)"
	p.Add(hm)

	outFile := filepath.Join(rp.outputDir, "pvalue_heatmap.png")
	if err := p.Save(8*vg.Inch, 8*vg.Inch, outFile); err != nil {
		return fmt.Errorf("save heatmap: %w", err)
	}
	return nil
}

// SavePeakHistograms renders, for each mask pair, the mean per-pixel
// histogram over the signal mask against the mean over its background
// annulus. A visible separation between the two lines is what the
// significance test detected.
func (rp *RunPlotter) SavePeakHistograms(stack *detector.HistogramStack, pairs []detector.MaskPair) error {
	for i, pair := range pairs {
		p := plot.New()
		p.Title.Text = fmt.Sprintf("Peak %d (size %d) - signal vs background", i, pair.Size)
		p.X.Label.Text = "Counts per frame"
		p.Y.Label.Text = "Mean frequency"

		sigPts := meanHistogramXYs(stack, pair.Signal)
		bgPts := meanHistogramXYs(stack, pair.Background)

		sigLine, err := plotter.NewLine(sigPts)
		if err != nil {
			return fmt.Errorf("peak %d signal line: %w", i, err)
		}
		sigLine.Width = vg.Points(1)
		p.Add(sigLine)
		p.Legend.Add("signal", sigLine)

		bgLine, err := plotter.NewLine(bgPts)
		if err != nil {
			return fmt.Errorf("peak %d background line: %w", i, err)
		}
		bgLine.Width = vg.Points(1)
		bgLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(bgLine)
		p.Legend.Add("background", bgLine)

		p.Legend.Top = true

		outFile := filepath.Join(rp.outputDir, fmt.Sprintf("peak_%02d_hist.png", i))
		if err := p.Save(10*vg.Inch, 5*vg.Inch, outFile); err != nil {
			return fmt.Errorf("save peak %d histogram: %w", i, err)
		}
	}
	return nil
}

// meanHistogramXYs averages per-pixel histograms over a mask and pairs
// them with the shared bin centers.
func meanHistogramXYs(stack *detector.HistogramStack, mask *detector.Mask) plotter.XYs {
	mean := make([]float64, stack.Bins)
	n := 0
	for y := 0; y < stack.Rows; y++ {
		for x := 0; x < stack.Cols; x++ {
			if !mask.At(x, y) {
				continue
			}
			h := stack.Histogram(x, y)
			for b, v := range h {
				mean[b] += v
			}
			n++
		}
	}

	pts := make(plotter.XYs, stack.Bins)
	for b := range pts {
		v := mean[b]
		if n > 0 {
			v /= float64(n)
		}
		pts[b] = plotter.XY{X: stack.BinCenters[b], Y: v}
	}
	return pts
}

// FormatTimestamp generates a timestamp string for directory naming.
func FormatTimestamp(t time.Time) string {
	return t.Format("20060102_150405")
}

// MakeRunOutputDir returns a timestamped output directory under baseDir
// for one analysis run.
func MakeRunOutputDir(baseDir string) string {
	return filepath.Join(baseDir, "run_"+FormatTimestamp(time.Now()))
}
