// Package journal persists published activity to SQLite so the history of
// alerts, trades and decisions survives restarts.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // SQLite driver

	"alpha_portfolios/internal/events"
	"alpha_portfolios/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Journal is an append-only event log.
type Journal struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (or creates) the database at path and applies pending
// migrations. ":memory:" gives a throwaway journal.
func Open(ctx context.Context, path string, log zerolog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set %q: %w", pragma, err)
		}
	}

	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Journal{db: db, log: log.With().Str("component", "journal").Logger()}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	dir, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, dir)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to migrate journal: %w", err)
	}
	return nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Append stores one event.
func (j *Journal) Append(ctx context.Context, e events.Event) error {
	at := e.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO events (portfolio, type, message, created_at) VALUES (?, ?, ?, ?)`,
		e.Portfolio, string(e.Type), e.Message, at.UTC())
	if err != nil {
		return fmt.Errorf("failed to append event: %w", err)
	}
	return nil
}

// Run stores events from ch until it closes. Write failures are logged and
// the event is dropped; ctx only bounds individual writes.
func (j *Journal) Run(ctx context.Context, ch <-chan events.Event) {
	for e := range ch {
		wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := j.Append(wctx, e); err != nil {
			j.log.Error().Err(err).Str("portfolio", e.Portfolio).Str("type", string(e.Type)).Msg("journal write failed")
		}
		cancel()
	}
}

// Recent returns up to limit events for portfolio, newest first. An empty
// portfolio matches every portfolio.
func (j *Journal) Recent(ctx context.Context, portfolio string, limit int) ([]events.Event, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT portfolio, type, message, created_at FROM events`
	args := []any{}
	if portfolio != "" {
		query += ` WHERE portfolio = ? COLLATE NOCASE`
		args = append(args, portfolio)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal: %w", err)
	}
	defer rows.Close()

	out := []events.Event{}
	for rows.Next() {
		var e events.Event
		var typ string
		if err := rows.Scan(&e.Portfolio, &typ, &e.Message, &e.Time); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		e.Type = models.ActivityType(typ)
		out = append(out, e)
	}
	return out, rows.Err()
}
