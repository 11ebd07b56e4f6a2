package llmservice

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/config"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/metrics"
)

var ErrEmptyResponse = errors.New("empty response from generation stream")

// Streamer performs one generation attempt and returns the accumulated text.
type Streamer interface {
	Stream(ctx context.Context, prompt string) (string, error)
}

type StreamerFunc func(ctx context.Context, prompt string) (string, error)

func (f StreamerFunc) Stream(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Client retries a Streamer with exponential backoff and jitter. It never fails on an
// exhausted retry budget: Generate then returns "" and the caller falls back.
type Client struct {
	streamer    Streamer
	maxAttempts int
	timeout     time.Duration
	backoffBase time.Duration
	jitterMax   time.Duration
	sleep       func(context.Context, time.Duration) error
	jitter      func(time.Duration) time.Duration
}

type Option func(*Client)

// WithSleep replaces the backoff sleep, mainly for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(c *Client) { c.sleep = fn }
}

func WithJitter(fn func(time.Duration) time.Duration) Option {
	return func(c *Client) { c.jitter = fn }
}

// NewClient builds the streamer selected by cfg.Backend and wraps it in the retry loop.
func NewClient(cfg *config.OllamaConfig, opts ...Option) (*Client, error) {
	var s Streamer
	switch cfg.Backend {
	case config.BackendHTTP, "":
		s = NewHTTPStreamer(cfg)
	case config.BackendLangchain:
		ls, err := NewLangchainStreamer(cfg)
		if err != nil {
			return nil, err
		}
		s = ls
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.Backend)
	}
	return NewClientWithStreamer(s, cfg, opts...), nil
}

func NewClientWithStreamer(s Streamer, cfg *config.OllamaConfig, opts ...Option) *Client {
	c := &Client{
		streamer:    s,
		maxAttempts: max(cfg.MaxAttempts, 1),
		timeout:     cfg.Timeout,
		backoffBase: cfg.BackoffBase,
		jitterMax:   cfg.JitterMax,
		sleep:       Sleep,
		jitter:      uniformJitter,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Generate returns the trimmed generated text, or "" after every attempt failed.
// The only error it returns is the context's.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		text, err := c.attempt(ctx, prompt)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if err == nil {
			if text = strings.TrimSpace(text); text != "" {
				metrics.GenerationAttempts.WithLabelValues("ok").Inc()
				return text, nil
			}
			err = ErrEmptyResponse
			metrics.GenerationAttempts.WithLabelValues("empty").Inc()
		} else {
			metrics.GenerationAttempts.WithLabelValues("error").Inc()
		}
		lastErr = err

		if attempt < c.maxAttempts-1 {
			delay := c.Backoff(attempt)
			log.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", delay).Msg("Generation attempt failed")
			if err := c.sleep(ctx, delay); err != nil {
				return "", err
			}
		}
	}
	metrics.GenerationExhausted.Inc()
	log.Warn().Err(lastErr).Int("attempts", c.maxAttempts).Msg("Max retries reached")
	return "", nil
}

func (c *Client) attempt(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.streamer.Stream(ctx, prompt)
}

// MaxBackoff caps the exponential part of the retry delay.
const MaxBackoff = 10 * time.Minute

// Backoff is min(base * 2^attempt, MaxBackoff) plus a uniform jitter in [0, jitterMax].
func (c *Client) Backoff(attempt int) time.Duration {
	d := MaxBackoff
	if attempt < 63 && c.backoffBase <= MaxBackoff>>attempt {
		d = c.backoffBase << attempt
	}
	return d + c.jitter(c.jitterMax)
}

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return time.Duration(rand.Int64N(int64(limit) + 1))
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
