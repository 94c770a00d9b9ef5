// maskgen runs the pump-probe signal-region pipeline over a stack of
// detector frames: per-pixel histogram accumulation, likelihood-ratio
// significance testing against the background ROI, and mask-pair
// generation. Diagnostics (PNG heatmap, per-peak histograms, HTML report)
// and run results (sqlite) are written as side outputs.
package main

import (
	"encoding/gob"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"os"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/detector.report/internal/config"
	"github.com/banshee-data/detector.report/internal/db"
	"github.com/banshee-data/detector.report/internal/detector"
	"github.com/banshee-data/detector.report/internal/detector/monitor"
)

var (
	configPath    = flag.String("config", "", "Path to analysis config JSON (defaults apply if empty)")
	inputPath     = flag.String("input", "", "Path to gob-encoded frame stack")
	demo          = flag.Bool("demo", false, "Run on a synthetic three-peak frame stack instead of -input")
	migrationsDir = flag.String("migrations", "migrations", "Path to schema migrations directory")
	skipPlots     = flag.Bool("no-plots", false, "Skip PNG/HTML diagnostic output")
)

// FrameStackFile is the on-disk input format: per-frame, per-pixel count
// grids in row-major order.
type FrameStackFile struct {
	Rows   int
	Cols   int
	Frames [][]float64
}

func main() {
	flag.Parse()

	if err := run(); err != nil {
		log.Fatalf("[maskgen] %v", err)
	}
}

func run() error {
	cfg := &config.AnalysisConfig{}
	if *configPath != "" {
		loaded, err := config.LoadAnalysisConfig(*configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	frames, err := loadFrames()
	if err != nil {
		return err
	}

	lo, hi := cfg.GetCountRange()
	stack, err := detector.NewHistogramStack(frames.Rows, frames.Cols, cfg.GetHistogramBins(), lo, hi)
	if err != nil {
		return err
	}
	for i, frame := range frames.Frames {
		if err := stack.AccumulateFrame(frame); err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
	}
	log.Printf("[maskgen] accumulated %d frames into %dx%dx%d histogram stack",
		len(frames.Frames), stack.Rows, stack.Cols, stack.Bins)

	roi := cfg.GetROI()
	pv, err := detector.EvaluatePValues(stack, roi)
	if err != nil {
		return err
	}

	params := cfg.GetGenerationParams()
	pairs, err := detector.BuildMaskPairs(pv, roi, params)
	if err != nil {
		return err
	}

	for i, p := range pairs {
		log.Printf("[maskgen] peak %d: size=%d background=%d", i, p.Size, p.Background.Count())
	}
	if len(pairs) == 0 {
		log.Printf("[maskgen] no significant peaks found (threshold=%g)", params.Threshold)
	}

	if !*skipPlots {
		if err := writeDiagnostics(cfg, stack, pv, pairs); err != nil {
			return err
		}
	}

	return persistRun(cfg, frames, params, pairs)
}

func loadFrames() (*FrameStackFile, error) {
	if *demo {
		return synthesizeFrames(), nil
	}
	if *inputPath == "" {
		return nil, fmt.Errorf("either -input or -demo is required")
	}

	f, err := os.Open(*inputPath)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	var frames FrameStackFile
	if err := gob.NewDecoder(f).Decode(&frames); err != nil {
		return nil, fmt.Errorf("decode input %s: %w", *inputPath, err)
	}
	if frames.Rows <= 0 || frames.Cols <= 0 || len(frames.Frames) == 0 {
		return nil, fmt.Errorf("input %s has no frames", *inputPath)
	}
	return &frames, nil
}

// synthesizeFrames produces 1000 frames of a 100x100 detector with a flat
// base rate of 100 counts/frame plus three Gaussian-profile signal regions
// of differing amplitude, Poisson sampled.
func synthesizeFrames() *FrameStackFile {
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

	frames := make([][]float64, nFrames)
	for f := range frames {
		frame := make([]float64, rows*cols)
		for i, r := range rate {
			frame[i] = distuv.Poisson{Lambda: r}.Rand()
		}
		frames[f] = frame
	}

	return &FrameStackFile{Rows: rows, Cols: cols, Frames: frames}
}

func writeDiagnostics(cfg *config.AnalysisConfig, stack *detector.HistogramStack, pv *detector.PValueMap, pairs []detector.MaskPair) error {
	outDir := monitor.MakeRunOutputDir(cfg.GetOutputDir())
	rp, err := monitor.NewRunPlotter(outDir)
	if err != nil {
		return err
	}

	if err := rp.SavePValueHeatmap(pv); err != nil {
		return err
	}
	if err := rp.SavePeakHistograms(stack, pairs); err != nil {
		return err
	}
	if err := monitor.SaveRunReport(outDir, pv, pairs); err != nil {
		return err
	}

	log.Printf("[maskgen] diagnostics written to %s", outDir)
	return nil
}

func persistRun(cfg *config.AnalysisConfig, frames *FrameStackFile, params detector.GenerationParams, pairs []detector.MaskPair) error {
	database, err := db.NewDB(cfg.GetDBPath())
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		return err
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	store := detector.NewRunStore(database.DB)
	run := &detector.AnalysisRun{
		SourcePath: *inputPath,
		GridRows:   frames.Rows,
		GridCols:   frames.Cols,
		FrameCount: len(frames.Frames),
		ParamsJSON: paramsJSON,
		PeakCount:  len(pairs),
	}
	if err := store.InsertRun(run); err != nil {
		return err
	}
	if err := store.InsertMaskPairs(run.RunID, pairs); err != nil {
		return err
	}

	log.Printf("[maskgen] run %s persisted to %s (%d peaks)", run.RunID, cfg.GetDBPath(), len(pairs))
	return nil
}
