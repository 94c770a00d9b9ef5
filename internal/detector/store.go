package detector

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AnalysisRun records one mask-generation invocation: which input it ran
// over, the parameters used, and how many peaks were found.
type AnalysisRun struct {
	RunID       string          `json:"run_id"`
	CreatedAtNs int64           `json:"created_at_ns"`
	SourcePath  string          `json:"source_path,omitempty"`
	GridRows    int             `json:"grid_rows"`
	GridCols    int             `json:"grid_cols"`
	FrameCount  int             `json:"frame_count"`
	ParamsJSON  json.RawMessage `json:"params_json"`
	PeakCount   int             `json:"peak_count"`
}

// RunStore provides persistence for analysis runs and their mask pairs.
type RunStore struct {
	db *sql.DB
}

// NewRunStore creates a RunStore over an open results database.
func NewRunStore(db *sql.DB) *RunStore {
	return &RunStore{db: db}
}

// InsertRun creates a new run row. If run.RunID is empty, a UUID is
// generated and written back to the struct.
func (s *RunStore) InsertRun(run *AnalysisRun) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAtNs == 0 {
		run.CreatedAtNs = time.Now().UnixNano()
	}

	query := `
		INSERT INTO analysis_runs (
			run_id, created_at_ns, source_path,
			grid_rows, grid_cols, frame_count, params_json, peak_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		run.RunID,
		run.CreatedAtNs,
		run.SourcePath,
		run.GridRows,
		run.GridCols,
		run.FrameCount,
		string(run.ParamsJSON),
		run.PeakCount,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	return nil
}

// GetRun retrieves a run by ID.
func (s *RunStore) GetRun(runID string) (*AnalysisRun, error) {
	query := `
		SELECT run_id, created_at_ns, source_path,
		       grid_rows, grid_cols, frame_count, params_json, peak_count
		FROM analysis_runs
		WHERE run_id = ?
	`

	var run AnalysisRun
	var paramsJSON string
	err := s.db.QueryRow(query, runID).Scan(
		&run.RunID,
		&run.CreatedAtNs,
		&run.SourcePath,
		&run.GridRows,
		&run.GridCols,
		&run.FrameCount,
		&paramsJSON,
		&run.PeakCount,
	)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	run.ParamsJSON = json.RawMessage(paramsJSON)

	return &run, nil
}

// InsertMaskPairs stores the ordered mask-pair list for a run. Masks are
// stored run-length encoded; peak_index preserves the descending-size
// order of the build.
func (s *RunStore) InsertMaskPairs(runID string, pairs []MaskPair) error {
	query := `
		INSERT INTO mask_pairs (run_id, peak_index, size, signal_rle, background_rle)
		VALUES (?, ?, ?, ?, ?)
	`

	for i, p := range pairs {
		_, err := s.db.Exec(query, runID, i, p.Size, EncodeMaskRLE(p.Signal), EncodeMaskRLE(p.Background))
		if err != nil {
			return fmt.Errorf("insert mask pair %d for run %s: %w", i, runID, err)
		}
	}
	return nil
}

// ListMaskPairs loads a run's mask pairs in peak order.
func (s *RunStore) ListMaskPairs(runID string) ([]MaskPair, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT size, signal_rle, background_rle
		FROM mask_pairs
		WHERE run_id = ?
		ORDER BY peak_index
	`

	rows, err := s.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("list mask pairs for run %s: %w", runID, err)
	}
	defer rows.Close()

	var pairs []MaskPair
	for rows.Next() {
		var size int
		var sigBlob, bgBlob []byte
		if err := rows.Scan(&size, &sigBlob, &bgBlob); err != nil {
			return nil, fmt.Errorf("scan mask pair: %w", err)
		}

		sig, err := DecodeMaskRLE(sigBlob, run.GridRows, run.GridCols)
		if err != nil {
			return nil, fmt.Errorf("decode signal mask: %w", err)
		}
		bg, err := DecodeMaskRLE(bgBlob, run.GridRows, run.GridCols)
		if err != nil {
			return nil, fmt.Errorf("decode background mask: %w", err)
		}

		pairs = append(pairs, MaskPair{Signal: sig, Background: bg, Size: size})
	}
	return pairs, rows.Err()
}

// EncodeMaskRLE run-length encodes a mask as alternating run lengths
// (uint32 little-endian), starting with a false run. Detector masks are
// mostly empty, so this stays far smaller than one byte per pixel.
func EncodeMaskRLE(m *Mask) []byte {
	var runs []uint32
	cur := false
	length := uint32(0)
	for _, b := range m.Bits {
		if b == cur {
			length++
			continue
		}
		runs = append(runs, length)
		cur = b
		length = 1
	}
	runs = append(runs, length)

	out := make([]byte, 4*len(runs))
	for i, r := range runs {
		binary.LittleEndian.PutUint32(out[4*i:], r)
	}
	return out
}

// DecodeMaskRLE reverses EncodeMaskRLE for a rows x cols mask.
func DecodeMaskRLE(data []byte, rows, cols int) (*Mask, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("rle blob length %d not a multiple of 4", len(data))
	}

	m := NewMask(rows, cols)
	idx := 0
	val := false
	for off := 0; off < len(data); off += 4 {
		length := int(binary.LittleEndian.Uint32(data[off:]))
		if idx+length > len(m.Bits) {
			return nil, fmt.Errorf("rle runs exceed %dx%d mask", rows, cols)
		}
		for i := 0; i < length; i++ {
			m.Bits[idx] = val
			idx++
		}
		val = !val
	}
	if idx != len(m.Bits) {
		return nil, fmt.Errorf("rle runs cover %d of %d pixels", idx, len(m.Bits))
	}
	return m, nil
}
