package monitor

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/detector.report/internal/detector"
)

// maxReportPoints caps the scatter payload so reports for large detectors
// stay loadable in a browser.
const maxReportPoints = 20000

// WriteRunReport renders a static HTML report for one run: the -log10(p)
// significance map as a colored scatter plus a bar chart of peak sizes.
func WriteRunReport(w io.Writer, pv *detector.PValueMap, pairs []detector.MaskPair) error {
	page := components.NewPage()
	page.AddCharts(significanceScatter(pv), peakSizeBar(pairs))

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render run report: %w", err)
	}
	return nil
}

// SaveRunReport writes the HTML report to report.html in outputDir.
func SaveRunReport(outputDir string, pv *detector.PValueMap, pairs []detector.MaskPair) error {
	f, err := os.Create(filepath.Join(outputDir, "report.html"))
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()

	return WriteRunReport(f, pv, pairs)
}

// significanceScatter renders the significance map as an XY scatter
// colored by -log10(p), downsampled by stride to stay under
// maxReportPoints.
func significanceScatter(pv *detector.PValueMap) *charts.Scatter {
	neg := pv.NegLog10()

	stride := 1
	if len(neg) > maxReportPoints {
		stride = int(math.Ceil(float64(len(neg)) / float64(maxReportPoints)))
	}

	data := make([]opts.ScatterData, 0, len(neg)/stride+1)
	maxVal := 0.0
	for i := 0; i < len(neg); i += stride {
		x := i % pv.Cols
		y := i / pv.Cols
		v := neg[i]
		if v > maxVal {
			maxVal = v
		}
		data = append(data, opts.ScatterData{Value: []interface{}{x, y, v}})
	}
	if maxVal == 0 {
		maxVal = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Significance Map", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Significance map", Subtitle: fmt.Sprintf("grid=%dx%d stride=%d", pv.Cols, pv.Rows, stride)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: pv.Cols, Name: "X (pixel)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: pv.Rows, Name: "Y (pixel)", NameLocation: "middle", NameGap: 30}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxVal),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)

	scatter.AddSeries("-log10(p)", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	return scatter
}

// peakSizeBar charts the discovered peak sizes in rank order.
func peakSizeBar(pairs []detector.MaskPair) *charts.Bar {
	x := make([]string, len(pairs))
	y := make([]opts.BarData, len(pairs))
	for i, p := range pairs {
		x[i] = fmt.Sprintf("peak %d", i)
		y[i] = opts.BarData{Value: p.Size}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Peak sizes", Subtitle: fmt.Sprintf("%d peaks", len(pairs))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("size", y,
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}),
		)
	return bar
}
