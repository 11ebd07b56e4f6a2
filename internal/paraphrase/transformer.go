package paraphrase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/config"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/llmservice"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/metrics"
)

type Cache interface {
	Get(ctx context.Context, column, text string) (string, error)
	Put(ctx context.Context, column, text, output string) error
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Stats counts what the transformer did during a run.
type Stats struct {
	CacheHits       int
	GenerationCalls int
	Fallbacks       int
}

// Transformer paraphrases one (column, text) cell at a time.
type Transformer struct {
	cache   Cache
	gen     Generator
	prompts *Prompts
	cleaner *Cleaner
	delay   time.Duration
	sleep   func(context.Context, time.Duration) error
	stats   Stats
}

type Option func(*Transformer)

func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(t *Transformer) { t.sleep = fn }
}

func New(cache Cache, gen Generator, cfg *config.Config, opts ...Option) *Transformer {
	t := &Transformer{
		cache:   cache,
		gen:     gen,
		prompts: NewPrompts(&cfg.Prompts),
		cleaner: NewCleaner(cfg.Cleanup),
		delay:   cfg.Batch.Delay,
		sleep:   llmservice.Sleep,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

func (t *Transformer) Stats() Stats {
	return t.stats
}

// Transform returns the paraphrase of value for column. Values that are not non-blank strings
// come back unchanged. When generation yields nothing the original text is returned, and that
// fallback is cached like any other result so the input is not retried on later runs.
// On error the returned value is the original.
func (t *Transformer) Transform(ctx context.Context, column string, value any) (any, error) {
	text, ok := value.(string)
	if !ok || strings.TrimSpace(text) == "" {
		return value, nil
	}

	cached, err := t.cache.Get(ctx, column, text)
	if err != nil {
		return value, err
	}
	if cached != "" {
		t.stats.CacheHits++
		metrics.CacheLookups.WithLabelValues(column, "hit").Inc()
		return cached, nil
	}
	metrics.CacheLookups.WithLabelValues(column, "miss").Inc()

	// throttle the single-threaded backend
	if err := t.sleep(ctx, t.delay); err != nil {
		return value, err
	}

	t.stats.GenerationCalls++
	out, err := t.gen.Generate(ctx, t.prompts.Render(column, text))
	if err != nil {
		return value, fmt.Errorf("generate: %w", err)
	}
	final := t.cleaner.Clean(out)
	if final == "" {
		t.stats.Fallbacks++
		metrics.Fallbacks.WithLabelValues(column).Inc()
		log.Debug().Str("column", column).Msg("Empty generation, keeping original text")
		final = text
	}

	if err := t.cache.Put(ctx, column, text, final); err != nil {
		return value, err
	}
	return final, nil
}
