package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Ollama.MaxAttempts != 6 || cfg.Batch.Size != 200 || cfg.Batch.Delay != 400*time.Millisecond {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if len(cfg.Prompts.Columns) != 9 {
		t.Errorf("want 9 target columns, got %d", len(cfg.Prompts.Columns))
	}
	if got := cfg.Files.LockPath(); got != "processed_rows.json.lock" {
		t.Errorf("LockPath = %q", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadConfigYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
files:
  input: in.csv
  ledger: state/done.json
ollama:
  model: qwen3:4b
  timeout: 30s
batch:
  size: 10
prompts:
  by_column:
    Uses: "Reword: {text}"
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Files.Input != "in.csv" || cfg.Ollama.Model != "qwen3:4b" || cfg.Batch.Size != 10 {
		t.Errorf("yaml not applied: %+v", cfg)
	}
	if cfg.Ollama.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Ollama.Timeout)
	}
	if cfg.Files.Output == "" || cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("unset keys should keep defaults: %+v", cfg.Files)
	}
	if cfg.Prompts.ByColumn["Uses"] != "Reword: {text}" {
		t.Errorf("Uses prompt = %q", cfg.Prompts.ByColumn["Uses"])
	}
	if _, ok := cfg.Prompts.ByColumn["Benefits"]; !ok {
		t.Errorf("yaml map should merge into the default prompts")
	}
	if got := cfg.Files.LockPath(); got != "state/done.json.lock" {
		t.Errorf("LockPath = %q", got)
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("batch: [oops"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"OLLAMA_URL":             " http://gpu:11434 ",
		"OLLAMA_MODEL":           "mistral",
		"OLLAMA_TEMPERATURE":     "0.7",
		"PARAPHRASE_BATCH_SIZE":  "50",
		"PARAPHRASE_MAX_RETRIES": "3",
		"PARAPHRASE_DELAY":       "0.25",
		"PARAPHRASE_TIMEOUT":     "2m",
		"PARAPHRASE_INPUT":       "",
	}))
	if err != nil {
		t.Fatalf("applyEnv: %v", err)
	}
	if cfg.Ollama.BaseURL != "http://gpu:11434" || cfg.Ollama.Model != "mistral" {
		t.Errorf("strings not applied: %+v", cfg.Ollama)
	}
	if cfg.Ollama.Options.Temperature != 0.7 {
		t.Errorf("Temperature = %v", cfg.Ollama.Options.Temperature)
	}
	if cfg.Batch.Size != 50 || cfg.Ollama.MaxAttempts != 3 {
		t.Errorf("numbers not applied: batch=%d attempts=%d", cfg.Batch.Size, cfg.Ollama.MaxAttempts)
	}
	if cfg.Batch.Delay != 250*time.Millisecond || cfg.Ollama.Timeout != 2*time.Minute {
		t.Errorf("durations not applied: delay=%v timeout=%v", cfg.Batch.Delay, cfg.Ollama.Timeout)
	}
	if cfg.Files.Input != Default().Files.Input {
		t.Errorf("blank env value should be ignored, got %q", cfg.Files.Input)
	}
}

func TestApplyEnvReportsEveryBadValue(t *testing.T) {
	cfg := Default()
	err := cfg.applyEnv(env(map[string]string{
		"PARAPHRASE_BATCH_SIZE": "many",
		"OLLAMA_TOP_P":          "high",
		"PARAPHRASE_DELAY":      "soon",
	}))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, key := range []string{"PARAPHRASE_BATCH_SIZE", "OLLAMA_TOP_P", "PARAPHRASE_DELAY"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not mention %s", err, key)
		}
	}
	if cfg.Batch.Size != 200 {
		t.Errorf("bad value should leave the default, got %d", cfg.Batch.Size)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"0.4", 400 * time.Millisecond, false},
		{"2", 2 * time.Second, false},
		{"400ms", 400 * time.Millisecond, false},
		{" 1m30s ", 90 * time.Second, false},
		{"later", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty url", func(c *Config) { c.Ollama.BaseURL = " " }},
		{"empty model", func(c *Config) { c.Ollama.Model = "" }},
		{"unknown backend", func(c *Config) { c.Ollama.Backend = "grpc" }},
		{"zero attempts", func(c *Config) { c.Ollama.MaxAttempts = 0 }},
		{"too many attempts", func(c *Config) { c.Ollama.MaxAttempts = MaxAttempts + 1 }},
		{"zero timeout", func(c *Config) { c.Ollama.Timeout = 0 }},
		{"negative delay", func(c *Config) { c.Batch.Delay = -time.Second }},
		{"zero batch", func(c *Config) { c.Batch.Size = 0 }},
		{"unknown driver", func(c *Config) { c.Cache.Driver = "mysql" }},
		{"no output", func(c *Config) { c.Files.Output = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
		})
	}
}
