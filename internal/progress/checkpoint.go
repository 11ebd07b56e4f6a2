package progress

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/helper"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/models"
)

const snapshotVersion = 1

// snapshot stores the table column by column.
type snapshot struct {
	Version int      `msgpack:"version"`
	Columns []string `msgpack:"columns"`
	Rows    int      `msgpack:"rows"`
	Data    [][]any  `msgpack:"data"`
}

// Checkpoint persists full-table snapshots to a single file.
type Checkpoint struct {
	path string
}

func NewCheckpoint(path string) *Checkpoint {
	return &Checkpoint{path: path}
}

func (c *Checkpoint) Path() string {
	return c.path
}

// Save overwrites the snapshot with the current table.
func (c *Checkpoint) Save(t *models.Table) error {
	snap := snapshot{
		Version: snapshotVersion,
		Columns: t.Columns,
		Rows:    t.Len(),
		Data:    make([][]any, len(t.Columns)),
	}
	for ci := range t.Columns {
		col := make([]any, t.Len())
		for ri := range t.Rows {
			col[ri] = t.Get(ri, ci)
		}
		snap.Data[ci] = col
	}
	data, err := msgpack.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	return helper.WriteFileAtomic(c.path, data)
}

// Load reads the snapshot. It returns (nil, nil) when no checkpoint exists.
func (c *Checkpoint) Load() (*models.Table, error) {
	data, err := os.ReadFile(c.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode checkpoint: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d", snap.Version)
	}
	if err := snap.validate(); err != nil {
		return nil, err
	}
	rows := make([][]any, snap.Rows)
	for ri := range rows {
		rows[ri] = make([]any, len(snap.Columns))
	}
	for ci, col := range snap.Data {
		for ri, v := range col {
			rows[ri][ci] = normalize(v)
		}
	}
	return &models.Table{Columns: snap.Columns, Rows: rows}, nil
}

// validate checks the header against the decoded data so a corrupt row count is
// rejected before anything is allocated from it.
func (s *snapshot) validate() error {
	if s.Rows < 0 {
		return fmt.Errorf("checkpoint row count %d is negative", s.Rows)
	}
	if len(s.Data) != len(s.Columns) {
		return fmt.Errorf("checkpoint has %d columns but %d data vectors", len(s.Columns), len(s.Data))
	}
	if len(s.Columns) == 0 && s.Rows != 0 {
		return fmt.Errorf("checkpoint has %d rows but no columns", s.Rows)
	}
	for ci, col := range s.Data {
		if len(col) != s.Rows {
			return fmt.Errorf("checkpoint column %q has %d values, want %d", s.Columns[ci], len(col), s.Rows)
		}
	}
	return nil
}

// Resume returns the checkpointed table when it has the same row count and column set as
// source, arranged in source's column order. Otherwise it returns source untouched.
func (c *Checkpoint) Resume(source *models.Table) *models.Table {
	snap, err := c.Load()
	if err != nil {
		log.Warn().Err(err).Str("path", c.path).Msg("Failed to read checkpoint, ignoring it")
		return source
	}
	if snap == nil {
		return source
	}
	if !source.SameShape(snap) {
		log.Warn().
			Str("path", c.path).
			Int("checkpoint_rows", snap.Len()).
			Int("source_rows", source.Len()).
			Msg("Checkpoint shape mismatch, ignoring checkpoint file")
		return source
	}
	log.Info().Str("path", c.path).Msg("Resuming from checkpoint")
	return snap.Reorder(source.Columns)
}

// normalize maps decoded msgpack numbers back to float64.
func normalize(v any) any {
	switch n := v.(type) {
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}
