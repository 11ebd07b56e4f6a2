package cache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"

	"github.com/sayakr428/Paraphrasing-Using-ollama/internal/config"
)

// Entry is one cached transformation. ID is Key(Column, Input).
type Entry struct {
	bun.BaseModel `bun:"table:cache,alias:c"`
	ID            string `bun:"id,pk"`
	Column        string `bun:"col"`
	Input         string `bun:"input"`
	Output        string `bun:"output"`
}

// Key hashes a labeled form of column and text. The column is length-prefixed so no
// column/text split can produce the same preimage as another.
func Key(column, text string) string {
	h := sha256.New()
	h.Write([]byte("COL:" + strconv.Itoa(len(column)) + ":" + column + "\nTEXT:" + text))
	return hex.EncodeToString(h.Sum(nil))
}

// LegacyKey is the key the earlier tool wrote: the same labels without the length prefix.
// It can collide across column/text boundaries, so hits are checked against the stored row.
func LegacyKey(column, text string) string {
	h := sha256.New()
	h.Write([]byte("COL:" + column + "\nTEXT:" + text))
	return hex.EncodeToString(h.Sum(nil))
}

// Store is a persistent content cache. One connection pool is held for the whole run.
// It is not safe against a second process writing the same store.
type Store struct {
	db *bun.DB
}

func NewDB(sqldb *sql.DB, driver string, debug bool) *bun.DB {
	var db *bun.DB
	if driver == config.DriverSQLite {
		db = bun.NewDB(sqldb, sqlitedialect.New())
	} else {
		db = bun.NewDB(sqldb, pgdialect.New())
	}
	if debug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return db
}

// ConnectDB opens the sql.DB for the configured driver. A postgres:// DSN with the default
// sqlite driver is routed to pgdriver.
func ConnectDB(cfg *config.CacheConfig) (*sql.DB, string, error) {
	driver := cfg.Driver
	if driver == config.DriverSQLite && isPostgresDSN(cfg.DSN) {
		driver = config.DriverPgdriver
	}
	switch driver {
	case config.DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, cfg.DSN)
		if err != nil {
			return nil, "", err
		}
		// sqlite allows a single writer
		sqldb.SetMaxOpenConns(1)
		return sqldb, driver, nil
	case config.DriverPgdriver:
		return sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN))), driver, nil
	case config.DriverPQ:
		sqldb, err := sql.Open("postgres", cfg.DSN)
		return sqldb, driver, err
	default:
		return nil, "", fmt.Errorf("unsupported cache driver: %s", cfg.Driver)
	}
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Open connects to the store and creates the cache table and its column index if missing.
func Open(ctx context.Context, cfg *config.CacheConfig) (*Store, error) {
	sqldb, driver, err := ConnectDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	s := &Store{db: NewDB(sqldb, driver, cfg.Debug)}
	if err := s.Init(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to initialize cache: %w", err)
	}
	return s, nil
}

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().Model((*Entry)(nil)).IfNotExists().Exec(ctx); err != nil {
		return err
	}
	_, err := s.db.NewCreateIndex().
		Model((*Entry)(nil)).
		Index("idx_cache_col").
		Column("col").
		IfNotExists().
		Exec(ctx)
	return err
}

// Get returns the stored output for (column, text), or "" when there is none.
// Blank text is never looked up. Rows written under LegacyKey are found too and are
// copied to the current key.
func (s *Store) Get(ctx context.Context, column, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}
	e, err := s.lookup(ctx, Key(column, text))
	if err != nil || e != nil {
		return output(e), err
	}

	e, err = s.lookup(ctx, LegacyKey(column, text))
	if err != nil || e == nil || e.Column != column || e.Input != text {
		return "", err
	}
	if err := s.Put(ctx, column, text, e.Output); err != nil {
		log.Warn().Err(err).Str("column", column).Msg("Failed to migrate legacy cache entry")
	}
	return e.Output, nil
}

func (s *Store) lookup(ctx context.Context, id string) (*Entry, error) {
	e := new(Entry)
	err := s.db.NewSelect().
		Model(e).
		Column("col", "input", "output").
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache lookup: %w", err)
	}
	return e, nil
}

func output(e *Entry) string {
	if e == nil {
		return ""
	}
	return e.Output
}

// Put upserts the entry for (column, text); the last write wins. Blank text is never stored.
func (s *Store) Put(ctx context.Context, column, text, output string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	e := &Entry{
		ID:     Key(column, text),
		Column: column,
		Input:  text,
		Output: output,
	}
	_, err := s.db.NewInsert().
		Model(e).
		On("CONFLICT (id) DO UPDATE").
		Set("col = EXCLUDED.col").
		Set("input = EXCLUDED.input").
		Set("output = EXCLUDED.output").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("cache write: %w", err)
	}
	return nil
}

func (s *Store) Count(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*Entry)(nil)).Count(ctx)
}

// drop table cache
func (s *Store) Drop(ctx context.Context) error {
	_, err := s.db.NewDropTable().Model((*Entry)(nil)).IfExists().Exec(ctx)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}
