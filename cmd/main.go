package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/cache"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/config"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/helper"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/llmservice"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/metrics"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/models"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/paraphrase"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/parser"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/progress"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/runner"
	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/storage"
)

const (
	configFilePath  = "./configs/config.yaml"
	exitInterrupted = 130
)

var (
	errEndpointUnreachable = errors.New("could not reach Ollama")
	errNoTargetColumns     = errors.New("none of the target columns were found in the input file")
)

type runOptions struct {
	quiet      bool
	resetCache bool
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).With().Caller().Logger()

	configPath := flag.String("config", configFilePath, "Path to the YAML config file")
	input := flag.String("input", "", "Input spreadsheet (.xlsx, .csv, .tsv or s3://bucket/key)")
	output := flag.String("output", "", "Output spreadsheet (local path or s3://bucket/key)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9100")
	quiet := flag.Bool("quiet", false, "Do not draw the progress bar")
	resetCache := flag.Bool("reset-cache", false, "Drop every cached paraphrase before starting")
	printConfig := flag.Bool("print-config", false, "Print the effective config and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Error loading config")
	}
	if *input != "" {
		cfg.Files.Input = *input
	}
	if *output != "" {
		cfg.Files.Output = *output
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if *printConfig {
		helper.PrettyPrint(cfg)
		return
	}

	runID, err := helper.GenerateUUID()
	if err != nil {
		log.Fatal().Err(err).Msg("Error generating run id")
	}
	log.Logger = log.With().Str("run_id", runID).Logger()
	log.Debug().Interface("config", cfg).Msg("Loaded config")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	metrics.Register(reg)
	if *metricsAddr != "" {
		metrics.Serve(ctx, *metricsAddr, reg)
	}

	err = run(ctx, cfg, runOptions{quiet: *quiet, resetCache: *resetCache})
	if errors.Is(err, context.Canceled) {
		stop()
		log.Warn().Msg("Interrupted. Completed rows are saved, run again to resume")
		os.Exit(exitInterrupted)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Run failed")
	}
}

func run(ctx context.Context, cfg *config.Config, opts runOptions) error {
	lock, err := helper.AcquireRunLock(cfg.Files.LockPath())
	if err != nil {
		return err
	}
	defer lock.Unlock()

	// no point starting a long job against an unreachable service
	pulled, err := llmservice.Ping(ctx, cfg.Ollama.BaseURL)
	if err != nil {
		return fmt.Errorf("%w at %s, ensure the daemon is running and the model is pulled: %w", errEndpointUnreachable, cfg.Ollama.BaseURL, err)
	}
	if pulled != nil && !llmservice.HasModel(pulled, cfg.Ollama.Model) {
		log.Warn().Str("model", cfg.Ollama.Model).Strs("available", pulled).Msg("Model not found on the server, generation will likely fail")
	}
	log.Info().Str("model", cfg.Ollama.Model).Str("backend", cfg.Ollama.Backend).Msg("Using Ollama model")

	store, err := cache.Open(ctx, &cfg.Cache)
	if err != nil {
		return err
	}
	defer store.Close()
	if opts.resetCache {
		if err := store.Drop(ctx); err != nil {
			return fmt.Errorf("failed to reset cache: %w", err)
		}
		if err := store.Init(ctx); err != nil {
			return err
		}
		log.Info().Msg("Cache cleared")
	}
	if n, err := store.Count(ctx); err == nil {
		log.Info().Int("entries", n).Msg("Cache ready")
	}

	files := &remoteFiles{region: cfg.Storage.Region, workDir: filepath.Dir(cfg.Files.Ledger)}
	inputPath, err := files.fetch(ctx, cfg.Files.Input)
	if err != nil {
		return err
	}
	log.Info().Str("path", inputPath).Msg("Loading")
	source, err := parser.LoadTable(inputPath)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", inputPath, err)
	}
	columns := source.Present(cfg.Prompts.Columns)
	if len(columns) == 0 {
		return errNoTargetColumns
	}
	log.Info().Int("rows", source.Len()).Strs("columns", columns).Msg("Loaded input")

	checkpoint := progress.NewCheckpoint(cfg.Files.Checkpoint)
	table := checkpoint.Resume(source)
	ledger := progress.LoadLedger(cfg.Files.Ledger)
	log.Info().Str("checkpoint", checkpoint.Path()).Str("ledger", cfg.Files.Ledger).Int("done", ledger.Len()).Msg("Progress files")

	client, err := llmservice.NewClient(&cfg.Ollama)
	if err != nil {
		return err
	}
	tr := paraphrase.New(store, client, cfg)

	var reporter runner.Reporter = runner.NopReporter{}
	if !opts.quiet {
		reporter = runner.NewBarReporter(os.Stderr)
	}
	stats, runErr := runner.New(cfg.Batch.Size, tr, ledger, checkpoint, runner.WithReporter(reporter)).Run(ctx, table, columns)
	ts := tr.Stats()
	log.Info().
		Int("rows", stats.Rows).
		Int("batches", stats.Batches).
		Int("generation_calls", ts.GenerationCalls).
		Int("cache_hits", ts.CacheHits).
		Int("fallbacks", ts.Fallbacks).
		Int("cell_errors", stats.CellErrors).
		Msg("Run summary")
	if runErr != nil {
		return runErr
	}

	log.Info().Msg("Writing final output")
	if err := files.publish(ctx, cfg.Files.Output, table); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	log.Info().Str("path", cfg.Files.Output).Msg("Done! Updated file saved")
	return nil
}

// remoteFiles resolves s3:// locations to local files in workDir.
type remoteFiles struct {
	region  string
	workDir string
	remote  *storage.Remote
}

func (f *remoteFiles) client(ctx context.Context) (*storage.Remote, error) {
	if f.remote == nil {
		r, err := storage.NewRemote(ctx, f.region)
		if err != nil {
			return nil, err
		}
		f.remote = r
	}
	return f.remote, nil
}

func (f *remoteFiles) fetch(ctx context.Context, path string) (string, error) {
	loc, ok, err := storage.ParseS3URI(path)
	if err != nil || !ok {
		return path, err
	}
	r, err := f.client(ctx)
	if err != nil {
		return "", err
	}
	local := filepath.Join(f.workDir, storage.LocalName(loc))
	if err := r.Download(ctx, loc, local); err != nil {
		return "", err
	}
	return local, nil
}

func (f *remoteFiles) publish(ctx context.Context, path string, table *models.Table) error {
	loc, ok, err := storage.ParseS3URI(path)
	if err != nil {
		return err
	}
	if !ok {
		return parser.SaveTable(path, table)
	}
	local := filepath.Join(f.workDir, "output-"+storage.LocalName(loc))
	if err := parser.SaveTable(local, table); err != nil {
		return err
	}
	r, err := f.client(ctx)
	if err != nil {
		return err
	}
	return r.Upload(ctx, local, loc)
}
