package paraphrase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/cache"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/config"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/metrics"
)

type memCache struct {
	entries map[string]string
	getErr  error
	putErr  error
	puts    int
}

func newMemCache() *memCache {
	return &memCache{entries: map[string]string{}}
}

func (c *memCache) Get(_ context.Context, column, text string) (string, error) {
	if c.getErr != nil {
		return "", c.getErr
	}
	return c.entries[cache.Key(column, text)], nil
}

func (c *memCache) Put(_ context.Context, column, text, output string) error {
	if c.putErr != nil {
		return c.putErr
	}
	c.puts++
	c.entries[cache.Key(column, text)] = output
	return nil
}

type fakeGenerator struct {
	prompts []string
	reply   func(prompt string) (string, error)
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	return g.reply(prompt)
}

func constant(s string) func(string) (string, error) {
	return func(string) (string, error) { return s, nil }
}

type sleeps struct{ got []time.Duration }

func (s *sleeps) sleep(ctx context.Context, d time.Duration) error {
	s.got = append(s.got, d)
	return ctx.Err()
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Prompts.ByColumn = map[string]string{"Uses": "Rewrite uses: {text}"}
	cfg.Prompts.Default = "Rewrite: {text}"
	return cfg
}

func TestTransformSkipsNonText(t *testing.T) {
	c := newMemCache()
	gen := &fakeGenerator{reply: constant("X")}
	tr := New(c, gen, testConfig())

	for _, v := range []any{nil, 42.0, "", "   \n"} {
		got, err := tr.Transform(context.Background(), "Uses", v)
		if err != nil {
			t.Fatalf("Transform(%#v): %v", v, err)
		}
		if got != v {
			t.Errorf("Transform(%#v) = %#v, want unchanged", v, got)
		}
	}
	if len(gen.prompts) != 0 || c.puts != 0 {
		t.Errorf("non-text input reached generator (%d) or cache (%d)", len(gen.prompts), c.puts)
	}
}

func TestTransformMissThenHit(t *testing.T) {
	c := newMemCache()
	gen := &fakeGenerator{reply: constant("  Swallow with water.  ")}
	s := &sleeps{}
	tr := New(c, gen, testConfig(), WithSleep(s.sleep))
	ctx := context.Background()

	missBefore := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("Uses", "miss"))
	hitBefore := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("Uses", "hit"))

	got, err := tr.Transform(ctx, "Uses", "Take with water.")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Swallow with water." {
		t.Errorf("first Transform = %q", got)
	}
	if len(gen.prompts) != 1 || gen.prompts[0] != "Rewrite uses: Take with water." {
		t.Errorf("prompts = %q", gen.prompts)
	}
	if len(s.got) != 1 || s.got[0] != 400*time.Millisecond {
		t.Errorf("throttle sleeps = %v, want [400ms]", s.got)
	}

	got, err = tr.Transform(ctx, "Uses", "Take with water.")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Swallow with water." {
		t.Errorf("second Transform = %q", got)
	}
	if len(gen.prompts) != 1 {
		t.Errorf("cache hit still called the generator: %d calls", len(gen.prompts))
	}
	if len(s.got) != 1 {
		t.Errorf("cache hit should not throttle, sleeps = %v", s.got)
	}

	if d := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("Uses", "miss")) - missBefore; d != 1 {
		t.Errorf("miss delta = %v", d)
	}
	if d := testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("Uses", "hit")) - hitBefore; d != 1 {
		t.Errorf("hit delta = %v", d)
	}
	if st := tr.Stats(); st.CacheHits != 1 || st.GenerationCalls != 1 || st.Fallbacks != 0 {
		t.Errorf("stats = %+v", st)
	}
}

// An empty generation falls back to the original text and the fallback is cached, so the
// same input is never sent to the service again.
func TestTransformCachesFallback(t *testing.T) {
	c := newMemCache()
	gen := &fakeGenerator{reply: constant("   ")}
	tr := New(c, gen, testConfig(), WithSleep((&sleeps{}).sleep))
	ctx := context.Background()

	got, err := tr.Transform(ctx, "Benefits", "Relieves pain.")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Relieves pain." {
		t.Errorf("Transform = %q, want original", got)
	}
	if stored, _ := c.Get(ctx, "Benefits", "Relieves pain."); stored != "Relieves pain." {
		t.Errorf("cached = %q, want original text", stored)
	}
	if gen.prompts[0] != "Rewrite: Relieves pain." {
		t.Errorf("default template not used: %q", gen.prompts[0])
	}

	if _, err := tr.Transform(ctx, "Benefits", "Relieves pain."); err != nil {
		t.Fatal(err)
	}
	if len(gen.prompts) != 1 {
		t.Errorf("fallback was retried: %d calls", len(gen.prompts))
	}
	if st := tr.Stats(); st.Fallbacks != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestTransformErrors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name   string
		cache  *memCache
		reply  func(string) (string, error)
		calls  int
		cached bool
	}{
		{"cache read", &memCache{entries: map[string]string{}, getErr: boom}, constant("X"), 0, false},
		{"generator", newMemCache(), func(string) (string, error) { return "", boom }, 1, false},
		{"cache write", &memCache{entries: map[string]string{}, putErr: boom}, constant("X"), 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{reply: tt.reply}
			tr := New(tt.cache, gen, testConfig(), WithSleep((&sleeps{}).sleep))
			got, err := tr.Transform(context.Background(), "Uses", "original")
			if !errors.Is(err, boom) {
				t.Fatalf("err = %v, want boom", err)
			}
			if got != "original" {
				t.Errorf("value on error = %#v, want original", got)
			}
			if len(gen.prompts) != tt.calls {
				t.Errorf("generator calls = %d, want %d", len(gen.prompts), tt.calls)
			}
			if len(tt.cache.entries) != 0 {
				t.Errorf("cache written on error: %v", tt.cache.entries)
			}
		})
	}
}

func TestTransformCancelledDuringThrottle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	gen := &fakeGenerator{reply: constant("X")}
	tr := New(newMemCache(), gen, testConfig())
	if _, err := tr.Transform(ctx, "Uses", "text"); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if len(gen.prompts) != 0 {
		t.Error("generator called after cancellation")
	}
}

func TestTransformStripsThinkBlock(t *testing.T) {
	c := newMemCache()
	gen := &fakeGenerator{reply: constant("<think>\nlet me reword\n</think>\n\nTake after meals.")}
	tr := New(c, gen, testConfig(), WithSleep((&sleeps{}).sleep))
	got, err := tr.Transform(context.Background(), "How to Use", "Take with food.")
	if err != nil {
		t.Fatal(err)
	}
	if got != "Take after meals." {
		t.Errorf("Transform = %q", got)
	}
}

func TestPromptsRender(t *testing.T) {
	p := NewPrompts(&config.PromptsConfig{
		Default:  "Generic {text}",
		ByColumn: map[string]string{"Uses": "Uses {text}", "Blank": "  ", "NoSlot": "Rewrite this"},
	})
	tests := []struct {
		column, want string
	}{
		{"Uses", "Uses body"},
		{"Other", "Generic body"},
		{"Blank", "Generic body"},
		{"NoSlot", "Rewrite this\n\nbody"},
	}
	for _, tt := range tests {
		if got := p.Render(tt.column, "body"); got != tt.want {
			t.Errorf("Render(%q) = %q, want %q", tt.column, got, tt.want)
		}
	}
}
