package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/metrics"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/models"
)

type Transformer interface {
	Transform(ctx context.Context, column string, value any) (any, error)
}

// Ledger tracks completed rows.
type Ledger interface {
	Add(row int)
	Remaining(total int) []int
	Len() int
	Save() error
}

type Snapshotter interface {
	Save(t *models.Table) error
}

type Stats struct {
	Remaining  int
	Rows       int
	Batches    int
	CellErrors int
}

// Runner walks the rows missing from the ledger in fixed-size batches. After every batch it
// snapshots the table and then saves the ledger; neither failure stops the run.
type Runner struct {
	batchSize  int
	tr         Transformer
	ledger     Ledger
	checkpoint Snapshotter
	reporter   Reporter
	stats      Stats
}

type Option func(*Runner)

func WithReporter(rep Reporter) Option {
	return func(r *Runner) { r.reporter = rep }
}

func New(batchSize int, tr Transformer, ledger Ledger, checkpoint Snapshotter, opts ...Option) *Runner {
	r := &Runner{
		batchSize:  max(batchSize, 1),
		tr:         tr,
		ledger:     ledger,
		checkpoint: checkpoint,
		reporter:   NopReporter{},
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Batches splits indices into consecutive chunks of at most size, keeping their order.
func Batches(indices []int, size int) [][]int {
	var out [][]int
	for start := 0; start < len(indices); start += size {
		end := min(start+size, len(indices))
		out = append(out, indices[start:end])
	}
	return out
}

// Run transforms every target column of every remaining row of table in place.
// It returns the context error if interrupted; rows finished before that are persisted.
func (r *Runner) Run(ctx context.Context, table *models.Table, columns []string) (Stats, error) {
	colIdx := make([]int, len(columns))
	for i, c := range columns {
		colIdx[i] = table.ColumnIndex(c)
		if colIdx[i] < 0 {
			return r.stats, fmt.Errorf("column %q not in table", c)
		}
	}

	remaining := r.ledger.Remaining(table.Len())
	r.stats.Remaining = len(remaining)
	log.Info().Int("total_rows", table.Len()).Int("already_processed", r.ledger.Len()).Int("remaining", len(remaining)).Msg("Resume state")
	if len(remaining) == 0 {
		log.Info().Msg("Nothing to process")
		return r.stats, nil
	}

	batches := Batches(remaining, r.batchSize)
	r.reporter.Start(len(remaining), len(batches))
	defer r.reporter.Finish()

	for b, batch := range batches {
		r.reporter.BatchStarted(b+1, len(batches), batch[0], batch[len(batch)-1])
		start := time.Now()
		err := r.runBatch(ctx, table, batch, columns, colIdx)
		r.persist(table)
		metrics.BatchDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			log.Warn().Err(err).Int("batch", b+1).Int("completed_rows", r.ledger.Len()).Msg("Run interrupted")
			return r.stats, err
		}
		r.stats.Batches++
		log.Info().
			Int("batch", b+1).
			Int("batches", len(batches)).
			Int("last_row", batch[len(batch)-1]).
			Dur("took", time.Since(start)).
			Msg("Checkpointed")
	}
	return r.stats, nil
}

func (r *Runner) runBatch(ctx context.Context, table *models.Table, batch []int, columns []string, colIdx []int) error {
	for _, row := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		values, err := r.transformRow(ctx, table, row, columns, colIdx)
		if err != nil {
			return err
		}
		// commit the whole row at once so a snapshot never holds a half-transformed row
		for i, ci := range colIdx {
			table.Set(row, ci, values[i])
		}
		r.ledger.Add(row)
		r.stats.Rows++
		metrics.RowsCompleted.Inc()
		r.reporter.RowDone()
	}
	return nil
}

// transformRow fails only when ctx is done; per-cell errors keep the original value.
func (r *Runner) transformRow(ctx context.Context, table *models.Table, row int, columns []string, colIdx []int) ([]any, error) {
	values := make([]any, len(columns))
	for i, col := range columns {
		orig := table.Get(row, colIdx[i])
		v, err := r.transformCell(ctx, col, orig)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn().Err(err).Int("row", row).Str("column", col).Msg("Cell failed, keeping original value")
			r.stats.CellErrors++
			metrics.CellErrors.WithLabelValues(col).Inc()
			v = orig
		}
		values[i] = v
	}
	return values, nil
}

func (r *Runner) transformCell(ctx context.Context, column string, value any) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			out, err = value, fmt.Errorf("panic: %v", p)
		}
	}()
	return r.tr.Transform(ctx, column, value)
}

func (r *Runner) persist(table *models.Table) {
	if err := r.checkpoint.Save(table); err != nil {
		metrics.PersistWrites.WithLabelValues("checkpoint", "failed").Inc()
		log.Warn().Err(err).Msg("Failed to write checkpoint")
	} else {
		metrics.PersistWrites.WithLabelValues("checkpoint", "ok").Inc()
	}
	if err := r.ledger.Save(); err != nil {
		metrics.PersistWrites.WithLabelValues("ledger", "failed").Inc()
		log.Warn().Err(err).Msg("Failed to save ledger")
	} else {
		metrics.PersistWrites.WithLabelValues("ledger", "ok").Inc()
	}
}
