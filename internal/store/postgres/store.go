// Package postgres provides the Postgres-backed Store.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/toolradar/toolradar/internal/radar"
)

// Schema creates the tables and the uniqueness constraint the insert
// path relies on. Applied by the serve/run commands at startup.
const Schema = `
CREATE TABLE IF NOT EXISTS tools (
	id BIGSERIAL PRIMARY KEY,
	tool_name TEXT NOT NULL,
	description TEXT,
	category TEXT NOT NULL,
	votes INT NOT NULL DEFAULT 0,
	link TEXT NOT NULL,
	trend_signal TEXT NOT NULL,
	pain_point TEXT,
	micro_saas_ideas JSONB,
	date TIMESTAMPTZ NOT NULL,
	source TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS tools_name_link_idx
	ON tools (LOWER(tool_name), link);
CREATE TABLE IF NOT EXISTS run_logs (
	id TEXT PRIMARY KEY,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	collected INT NOT NULL DEFAULT 0,
	analyzed INT NOT NULL DEFAULT 0,
	saved INT NOT NULL DEFAULT 0,
	duplicates INT NOT NULL DEFAULT 0,
	failed INT NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error TEXT
);
`

var toolColumns = []string{
	"tool_name", "description", "category", "votes", "link",
	"trend_signal", "pain_point", "micro_saas_ideas", "date", "source",
}

var toolSelectColumns = append(append([]string{"id"}, toolColumns...), "created_at")

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Store implements radar.Store on a pgx pool.
type Store struct {
	pool dbPool
	sb   sq.StatementBuilderType
}

var _ radar.Store = (*Store)(nil)

// New connects a pool and returns the store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(pool), nil
}

// NewWithPool constructs a store from an existing pool, primarily for
// testing.
func NewWithPool(pool dbPool) *Store {
	return &Store{
		pool: pool,
		sb:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Migrate applies the schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the store is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Exists reports whether a tool with the name and link is persisted.
func (s *Store) Exists(ctx context.Context, name, link string) (bool, error) {
	query, args, err := s.sb.Select("1").
		From("tools").
		Where(sq.Expr("LOWER(tool_name) = LOWER(?)", name)).
		Where(sq.Eq{"link": link}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}

	var one int
	err = s.pool.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query tool existence: %w", err)
	}
	return true, nil
}

// InsertBatch inserts records, relying on the uniqueness index to skip
// ones that raced in since the existence check. Returns the number of
// rows actually inserted.
func (s *Store) InsertBatch(ctx context.Context, records []radar.EnrichedRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	builder := s.sb.Insert("tools").Columns(toolColumns...)
	for _, rec := range records {
		ideas, err := json.Marshal(rec.Ideas)
		if err != nil {
			return 0, fmt.Errorf("marshal ideas for %q: %w", rec.ToolName, err)
		}
		builder = builder.Values(
			rec.ToolName,
			rec.Description,
			string(rec.Category),
			rec.Votes,
			rec.Link,
			string(rec.Trend),
			rec.PainPoint,
			ideas,
			rec.Date,
			rec.Source,
		)
	}
	query, args, err := builder.
		Suffix("ON CONFLICT (LOWER(tool_name), link) DO NOTHING").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert query: %w", err)
	}

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("insert tools: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Latest returns tools ordered by discovery date, newest first.
func (s *Store) Latest(ctx context.Context, limit, offset int) ([]radar.StoredTool, error) {
	builder := s.sb.Select(toolSelectColumns...).
		From("tools").
		OrderBy("date DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build latest query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query latest tools: %w", err)
	}
	defer rows.Close()
	return scanTools(rows)
}

// ByCategory returns tools in a category discovered since the cutoff,
// most voted first.
func (s *Store) ByCategory(ctx context.Context, category radar.Category, since time.Time, limit int) ([]radar.StoredTool, error) {
	builder := s.sb.Select(toolSelectColumns...).
		From("tools").
		Where(sq.Eq{"category": string(category)}).
		OrderBy("votes DESC", "date DESC")
	if !since.IsZero() {
		builder = builder.Where(sq.GtOrEq{"date": since})
	}
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build category query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tools by category: %w", err)
	}
	defer rows.Close()
	return scanTools(rows)
}

func scanTools(rows pgx.Rows) ([]radar.StoredTool, error) {
	var tools []radar.StoredTool
	for rows.Next() {
		var (
			tool  radar.StoredTool
			ideas []byte
		)
		err := rows.Scan(
			&tool.ID,
			&tool.ToolName,
			&tool.Description,
			&tool.Category,
			&tool.Votes,
			&tool.Link,
			&tool.Trend,
			&tool.PainPoint,
			&ideas,
			&tool.Date,
			&tool.Source,
			&tool.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan tool row: %w", err)
		}
		if len(ideas) > 0 {
			if err := json.Unmarshal(ideas, &tool.Ideas); err != nil {
				return nil, fmt.Errorf("decode ideas for %q: %w", tool.ToolName, err)
			}
		}
		tools = append(tools, tool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tool rows: %w", err)
	}
	return tools, nil
}

// SaveRunLog upserts the run log keyed by its identifier.
func (s *Store) SaveRunLog(ctx context.Context, log radar.RunLog) error {
	query, args, err := s.sb.Insert("run_logs").
		Columns("id", "started_at", "finished_at", "collected", "analyzed",
			"saved", "duplicates", "failed", "status", "error").
		Values(log.ID, log.StartedAt, nullableTime(log.FinishedAt),
			log.Collected, log.Analyzed, log.Saved, log.Duplicates,
			log.Failed, string(log.Status), log.Error).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			collected = EXCLUDED.collected,
			analyzed = EXCLUDED.analyzed,
			saved = EXCLUDED.saved,
			duplicates = EXCLUDED.duplicates,
			failed = EXCLUDED.failed,
			status = EXCLUDED.status,
			error = EXCLUDED.error`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build run log upsert: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("save run log: %w", err)
	}
	return nil
}

// LatestRunLog returns the most recently started run log.
func (s *Store) LatestRunLog(ctx context.Context) (radar.RunLog, error) {
	query, args, err := s.sb.Select("id", "started_at", "finished_at",
		"collected", "analyzed", "saved", "duplicates", "failed",
		"status", "error").
		From("run_logs").
		OrderBy("started_at DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return radar.RunLog{}, fmt.Errorf("build run log query: %w", err)
	}

	var (
		log      radar.RunLog
		finished *time.Time
	)
	err = s.pool.QueryRow(ctx, query, args...).Scan(
		&log.ID, &log.StartedAt, &finished, &log.Collected, &log.Analyzed,
		&log.Saved, &log.Duplicates, &log.Failed, &log.Status, &log.Error)
	if errors.Is(err, pgx.ErrNoRows) {
		return radar.RunLog{}, radar.ErrNotFound
	}
	if err != nil {
		return radar.RunLog{}, fmt.Errorf("query latest run log: %w", err)
	}
	if finished != nil {
		log.FinishedAt = *finished
	}
	return log, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
