package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	CacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paraphrase_cache_lookups_total",
			Help: "Content cache lookups by result (hit, miss)",
		},
		[]string{"column", "result"},
	)

	GenerationAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paraphrase_generation_attempts_total",
			Help: "Generation endpoint attempts by outcome (ok, error, empty)",
		},
		[]string{"outcome"},
	)

	GenerationExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paraphrase_generation_exhausted_total",
			Help: "Generation calls that used every attempt without a usable response",
		},
	)

	Fallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paraphrase_fallbacks_total",
			Help: "Cells that kept their original text because generation returned nothing",
		},
		[]string{"column"},
	)

	CellErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paraphrase_cell_errors_total",
			Help: "Cells whose transformation failed and kept the original value",
		},
		[]string{"column"},
	)

	RowsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "paraphrase_rows_completed_total",
			Help: "Rows added to the progress ledger",
		},
	)

	PersistWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "paraphrase_persist_writes_total",
			Help: "Checkpoint and ledger writes by status",
		},
		[]string{"target", "status"},
	)

	BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "paraphrase_batch_duration_seconds",
			Help:    "Wall time per batch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		CacheLookups,
		GenerationAttempts,
		GenerationExhausted,
		Fallbacks,
		CellErrors,
		RowsCompleted,
		PersistWrites,
		BatchDuration,
	)
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		log.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn().Err(err).Msg("Metrics server stopped")
		}
	}()
}
