package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/models"
)

var ErrInvalid = errors.New("invalid config")

// MaxAttempts bounds ollama.max_attempts.
const MaxAttempts = 30

const (
	BackendHTTP      = "http"
	BackendLangchain = "langchain"

	DriverSQLite   = "sqlite"
	DriverPgdriver = "pgdriver"
	DriverPQ       = "pq"
)

type Config struct {
	LogLevel string        `yaml:"log_level"`
	Files    FilesConfig   `yaml:"files"`
	Ollama   OllamaConfig  `yaml:"ollama"`
	Batch    BatchConfig   `yaml:"batch"`
	Cache    CacheConfig   `yaml:"cache"`
	Prompts  PromptsConfig `yaml:"prompts"`
	Cleanup  CleanupConfig `yaml:"cleanup"`
	Storage  StorageConfig `yaml:"storage"`
}

type FilesConfig struct {
	Input      string `yaml:"input"`
	Output     string `yaml:"output"`
	Checkpoint string `yaml:"checkpoint"`
	Ledger     string `yaml:"ledger"`
	Lock       string `yaml:"lock"`
}

type OllamaConfig struct {
	BaseURL     string            `yaml:"base_url"`
	Model       string            `yaml:"model"`
	Backend     string            `yaml:"backend"`
	Timeout     time.Duration     `yaml:"timeout"`
	MaxAttempts int               `yaml:"max_attempts"`
	BackoffBase time.Duration     `yaml:"backoff_base"`
	JitterMax   time.Duration     `yaml:"jitter_max"`
	Options     GenerationOptions `yaml:"options"`
}

// GenerationOptions are passed through to the model runner.
type GenerationOptions struct {
	Temperature   float64 `yaml:"temperature" json:"temperature"`
	TopP          float64 `yaml:"top_p" json:"top_p"`
	RepeatPenalty float64 `yaml:"repeat_penalty" json:"repeat_penalty"`
	NumPredict    int     `yaml:"num_predict" json:"num_predict"`
	NumCtx        int     `yaml:"num_ctx" json:"num_ctx"`
}

// LockPath is the run lock file, next to the ledger unless set.
func (f FilesConfig) LockPath() string {
	if f.Lock != "" {
		return f.Lock
	}
	return f.Ledger + ".lock"
}

type BatchConfig struct {
	Size  int           `yaml:"size"`
	Delay time.Duration `yaml:"delay"`
}

type CacheConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	Debug  bool   `yaml:"debug"`
}

type PromptsConfig struct {
	Columns  []string          `yaml:"columns"`
	Default  string            `yaml:"default"`
	ByColumn map[string]string `yaml:"by_column"`
}

type CleanupConfig struct {
	StripThink    bool `yaml:"strip_think"`
	StripMarkdown bool `yaml:"strip_markdown"`
}

type StorageConfig struct {
	Region string `yaml:"region"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	byColumn := make(map[string]string, len(models.ColumnPrompts))
	for k, v := range models.ColumnPrompts {
		byColumn[k] = v
	}
	return &Config{
		LogLevel: "info",
		Files: FilesConfig{
			Input:      "buysm_products_all_fullinfo.xlsx",
			Output:     "buysm_products_all_fullinfo_paraphrased.xlsx",
			Checkpoint: "paraphrase_checkpoint.msgpack",
			Ledger:     "processed_rows.json",
		},
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.2:3b-instruct-q4_K_M",
			Backend:     BackendHTTP,
			Timeout:     300 * time.Second,
			MaxAttempts: 6,
			BackoffBase: time.Second,
			JitterMax:   500 * time.Millisecond,
			Options: GenerationOptions{
				Temperature:   0.2,
				TopP:          0.9,
				RepeatPenalty: 1.05,
				NumPredict:    -1,
				NumCtx:        1024,
			},
		},
		Batch: BatchConfig{
			Size:  200,
			Delay: 400 * time.Millisecond,
		},
		Cache: CacheConfig{
			Driver: DriverSQLite,
			DSN:    "paraphrase_cache.sqlite",
		},
		Prompts: PromptsConfig{
			Columns:  append([]string(nil), models.DefaultTargetColumns...),
			Default:  models.DefaultPromptTemplate,
			ByColumn: byColumn,
		},
		Cleanup: CleanupConfig{
			StripThink: true,
		},
	}
}

// LoadConfig layers the YAML file at path (if it exists) and the environment over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	var errs []error
	num := func(key string, dst *int) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = n
	}
	float := func(key string, dst *float64) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = f
	}
	dur := func(key string, dst *time.Duration) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		d, err := ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		*dst = d
	}

	str("PARAPHRASE_LOG_LEVEL", &c.LogLevel)
	str("PARAPHRASE_INPUT", &c.Files.Input)
	str("PARAPHRASE_OUTPUT", &c.Files.Output)
	str("PARAPHRASE_CACHE_DSN", &c.Cache.DSN)
	str("OLLAMA_URL", &c.Ollama.BaseURL)
	str("OLLAMA_MODEL", &c.Ollama.Model)
	str("OLLAMA_BACKEND", &c.Ollama.Backend)
	float("OLLAMA_TEMPERATURE", &c.Ollama.Options.Temperature)
	float("OLLAMA_TOP_P", &c.Ollama.Options.TopP)
	float("OLLAMA_REPEAT_PENALTY", &c.Ollama.Options.RepeatPenalty)
	num("OLLAMA_NUM_PREDICT", &c.Ollama.Options.NumPredict)
	num("OLLAMA_NUM_CTX", &c.Ollama.Options.NumCtx)
	num("PARAPHRASE_BATCH_SIZE", &c.Batch.Size)
	num("PARAPHRASE_MAX_RETRIES", &c.Ollama.MaxAttempts)
	dur("PARAPHRASE_DELAY", &c.Batch.Delay)
	dur("PARAPHRASE_BACKOFF_BASE", &c.Ollama.BackoffBase)
	dur("PARAPHRASE_JITTER_MAX", &c.Ollama.JitterMax)
	dur("PARAPHRASE_TIMEOUT", &c.Ollama.Timeout)
	return errors.Join(errs...)
}

// ParseDuration accepts Go durations ("400ms") and bare seconds ("0.4").
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(f * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.Ollama.BaseURL) == "" {
		problems = append(problems, "ollama.base_url is empty")
	}
	if strings.TrimSpace(c.Ollama.Model) == "" {
		problems = append(problems, "ollama.model is empty")
	}
	switch c.Ollama.Backend {
	case BackendHTTP, BackendLangchain:
	default:
		problems = append(problems, fmt.Sprintf("ollama.backend %q is not one of http, langchain", c.Ollama.Backend))
	}
	if c.Ollama.MaxAttempts < 1 || c.Ollama.MaxAttempts > MaxAttempts {
		problems = append(problems, fmt.Sprintf("ollama.max_attempts must be between 1 and %d", MaxAttempts))
	}
	if c.Ollama.Timeout <= 0 {
		problems = append(problems, "ollama.timeout must be positive")
	}
	if c.Ollama.BackoffBase < 0 || c.Ollama.JitterMax < 0 || c.Batch.Delay < 0 {
		problems = append(problems, "durations must not be negative")
	}
	if c.Batch.Size < 1 {
		problems = append(problems, "batch.size must be at least 1")
	}
	switch c.Cache.Driver {
	case DriverSQLite, DriverPgdriver, DriverPQ:
	default:
		problems = append(problems, fmt.Sprintf("cache.driver %q is not one of sqlite, pgdriver, pq", c.Cache.Driver))
	}
	if c.Files.Input == "" || c.Files.Output == "" {
		problems = append(problems, "files.input and files.output are required")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
