// Package sceneindex lists archive scenes from PostgreSQL.
package sceneindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/okian/geocomp/internal/domain/raster"
)

// ErrInvalidConfig is returned for unusable connection settings.
var ErrInvalidConfig = errors.New("invalid scene index config")

const schema = `
CREATE TABLE IF NOT EXISTS scenes (
	archive   TEXT        NOT NULL,
	scene_id  TEXT        NOT NULL,
	acquired  TIMESTAMPTZ NOT NULL,
	location  TEXT        NOT NULL,
	PRIMARY KEY (archive, scene_id)
);
CREATE INDEX IF NOT EXISTS scenes_archive_acquired ON scenes (archive, acquired);
`

const (
	selectScenes = `SELECT scene_id, acquired, location FROM scenes
WHERE archive = $1 AND acquired >= $2 AND acquired < $3
ORDER BY acquired, scene_id`

	upsertScene = `INSERT INTO scenes (archive, scene_id, acquired, location)
VALUES ($1, $2, $3, $4)
ON CONFLICT (archive, scene_id) DO UPDATE SET acquired = EXCLUDED.acquired, location = EXCLUDED.location`
)

// Config holds the connection settings.
type Config struct {
	DSN             string
	PingTimeout     time.Duration
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns settings for dsn with pool defaults.
func DefaultConfig(dsn string) Config {
	return Config{DSN: dsn, PingTimeout: 2 * time.Second, MaxOpenConns: 10, ConnMaxLifetime: 30 * time.Minute}
}

// Validate checks the connection settings.
func (c Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("%w: dsn is required", ErrInvalidConfig)
	}
	if c.PingTimeout <= 0 {
		return fmt.Errorf("%w: ping timeout must be positive", ErrInvalidConfig)
	}
	if c.MaxOpenConns < 1 {
		return fmt.Errorf("%w: max open conns must be >= 1", ErrInvalidConfig)
	}
	return nil
}

// Index answers date-range scene queries.
type Index struct {
	db *sql.DB
}

// Open connects and pings the database.
func Open(ctx context.Context, cfg Config) (*Index, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Index{db: db}, nil
}

// New wraps an open database.
func New(db *sql.DB) *Index { return &Index{db: db} }

// Close releases the pool.
func (x *Index) Close() error { return x.db.Close() }

// Migrate creates the scenes table.
func (x *Index) Migrate(ctx context.Context) error {
	if _, err := x.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate scene index: %w", err)
	}
	return nil
}

// Scenes lists scenes of archive acquired in [start, end), oldest first.
func (x *Index) Scenes(ctx context.Context, archive string, start, end time.Time) ([]raster.SceneRef, error) {
	if !start.Before(end) {
		return nil, nil
	}
	rows, err := x.db.QueryContext(ctx, selectScenes, archive, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("query scenes: %w", err)
	}
	defer rows.Close()

	var out []raster.SceneRef
	for rows.Next() {
		var ref raster.SceneRef
		if err := rows.Scan(&ref.ID, &ref.Acquired, &ref.Location); err != nil {
			return nil, fmt.Errorf("scan scene: %w", err)
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scenes: %w", err)
	}
	return out, nil
}

// Upsert records or updates scenes of archive in one transaction.
func (x *Index) Upsert(ctx context.Context, archive string, refs ...raster.SceneRef) error {
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertScene)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()
	for _, ref := range refs {
		if _, err := stmt.ExecContext(ctx, archive, ref.ID, ref.Acquired.UTC(), ref.Location); err != nil {
			return fmt.Errorf("upsert scene %s: %w", ref.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
