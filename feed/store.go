// Copyright 2026 The Pavilion Authors
// SPDX-License-Identifier: Apache-2.0

package feed

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/pavilion-club/pavilion/lib/clock"
	"github.com/pavilion-club/pavilion/lib/sqlitepool"
)

const (
	// DefaultRingCapacity is how many records the in-memory ring
	// holds.
	DefaultRingCapacity = 64

	// DefaultKeep is how many records the store retains; older ones
	// are pruned on add.
	DefaultKeep = 200

	// DefaultListLimit applies when List is called without a positive
	// limit.
	DefaultListLimit = 50
)

const schema = `
CREATE TABLE IF NOT EXISTS feed (
	id          TEXT PRIMARY KEY,
	provider    TEXT NOT NULL DEFAULT '',
	title       TEXT NOT NULL,
	body        TEXT NOT NULL DEFAULT '',
	target      TEXT NOT NULL DEFAULT '',
	received_at INTEGER NOT NULL
);
`

// Config holds configuration for opening a Feed.
type Config struct {
	// Path is the SQLite database path. ":memory:" works for tests.
	Path string

	// Keep caps how many records the store retains. Zero means
	// DefaultKeep.
	Keep int

	// RingCapacity sizes the in-memory ring. Zero means
	// DefaultRingCapacity; values above Keep are clamped to it.
	RingCapacity int

	// Clock supplies receive times and ULID timestamps. If nil, the
	// real clock is used.
	Clock clock.Clock

	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Feed is the notification inbox: an in-memory ring over a SQLite
// store. Safe for concurrent use.
type Feed struct {
	pool   *sqlitepool.Pool
	ring   *ring
	clock  clock.Clock
	logger *slog.Logger
	keep   int

	// entropy feeds ULID randomness; the monotonic reader keeps IDs
	// strictly increasing within one millisecond but is not safe for
	// concurrent use.
	entropyMu sync.Mutex
	entropy   io.Reader
}

// Open opens (creating if needed) the feed database and warms the ring
// with the newest records.
func Open(config Config) (*Feed, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("feed: Path is required")
	}

	keep := config.Keep
	if keep <= 0 {
		keep = DefaultKeep
	}
	ringCapacity := config.RingCapacity
	if ringCapacity <= 0 {
		ringCapacity = DefaultRingCapacity
	}
	if ringCapacity > keep {
		// The ring must never hold records the store has pruned.
		ringCapacity = keep
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	poolSize := 0
	if config.Path == ":memory:" {
		// Each in-memory connection is a separate database.
		poolSize = 1
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:     config.Path,
		PoolSize: poolSize,
		Logger:   logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}

	feed := &Feed{
		pool:    pool,
		ring:    newRing(ringCapacity),
		clock:   clk,
		logger:  logger,
		keep:    keep,
		entropy: ulid.Monotonic(rand.Reader, 0),
	}

	if err := feed.reloadRing(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("feed: warming ring: %w", err)
	}
	return feed, nil
}

// Close closes the underlying connection pool.
func (f *Feed) Close() error {
	return f.pool.Close()
}

// Add archives one notification, assigns its ID and receive time, and
// prunes the store back to the retention cap.
func (f *Feed) Add(ctx context.Context, entry Entry) (Record, error) {
	now := f.clock.Now()
	id, err := f.newULID(now)
	if err != nil {
		return Record{}, fmt.Errorf("feed: minting record ID: %w", err)
	}
	record := Record{
		ID:         id,
		Provider:   entry.Provider,
		Title:      entry.Title,
		Body:       entry.Body,
		Target:     entry.Target,
		ReceivedAt: now.UTC(),
	}

	conn, err := f.pool.Take(ctx)
	if err != nil {
		return Record{}, fmt.Errorf("feed: %w", err)
	}
	defer f.pool.Put(conn)

	if err := f.insertAndPrune(conn, record); err != nil {
		return Record{}, err
	}

	f.ring.add(record)
	f.logger.Debug("feed record added",
		"id", record.ID.String(),
		"provider", record.Provider)
	return record, nil
}

func (f *Feed) insertAndPrune(conn *sqlite.Conn, record Record) (err error) {
	defer sqlitex.Save(conn)(&err)

	err = sqlitex.Execute(conn,
		`INSERT INTO feed (id, provider, title, body, target, received_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		&sqlitex.ExecOptions{
			Args: []any{
				record.ID.String(),
				record.Provider,
				record.Title,
				record.Body,
				record.Target,
				record.ReceivedAt.UnixMilli(),
			},
		})
	if err != nil {
		return fmt.Errorf("feed: inserting record: %w", err)
	}

	err = sqlitex.Execute(conn,
		`DELETE FROM feed WHERE id NOT IN
		 (SELECT id FROM feed ORDER BY id DESC LIMIT ?)`,
		&sqlitex.ExecOptions{Args: []any{f.keep}})
	if err != nil {
		return fmt.Errorf("feed: pruning store: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first. A non-positive limit
// means DefaultListLimit. Queries within the ring's span never touch
// the database.
func (f *Feed) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	if limit <= f.ring.stored() || !f.ring.full() {
		return f.ring.recent(limit), nil
	}
	return f.listStore(ctx, limit)
}

// Size returns how many records the store holds.
func (f *Feed) Size(ctx context.Context) (int, error) {
	conn, err := f.pool.Take(ctx)
	if err != nil {
		return 0, fmt.Errorf("feed: %w", err)
	}
	defer f.pool.Put(conn)

	var count int
	err = sqlitex.Execute(conn, `SELECT COUNT(*) FROM feed`, &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			count = stmt.ColumnInt(0)
			return nil
		},
	})
	if err != nil {
		return 0, fmt.Errorf("feed: counting records: %w", err)
	}
	return count, nil
}

// Prune trims the store to the newest keep records and reloads the
// ring to match.
func (f *Feed) Prune(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}

	conn, err := f.pool.Take(ctx)
	if err != nil {
		return fmt.Errorf("feed: %w", err)
	}
	err = sqlitex.Execute(conn,
		`DELETE FROM feed WHERE id NOT IN
		 (SELECT id FROM feed ORDER BY id DESC LIMIT ?)`,
		&sqlitex.ExecOptions{Args: []any{keep}})
	f.pool.Put(conn)
	if err != nil {
		return fmt.Errorf("feed: pruning store: %w", err)
	}

	return f.reloadRing(ctx)
}

func (f *Feed) reloadRing(ctx context.Context) error {
	records, err := f.listStore(ctx, f.ring.capacity)
	if err != nil {
		return err
	}
	f.ring.replace(records)
	return nil
}

func (f *Feed) listStore(ctx context.Context, limit int) ([]Record, error) {
	conn, err := f.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("feed: %w", err)
	}
	defer f.pool.Put(conn)

	var records []Record
	err = sqlitex.Execute(conn,
		`SELECT id, provider, title, body, target, received_at
		 FROM feed ORDER BY id DESC LIMIT ?`,
		&sqlitex.ExecOptions{
			Args: []any{limit},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				record, err := scanRecord(stmt)
				if err != nil {
					return err
				}
				records = append(records, record)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("feed: listing records: %w", err)
	}
	return records, nil
}

func scanRecord(stmt *sqlite.Stmt) (Record, error) {
	id, err := ulid.Parse(stmt.ColumnText(0))
	if err != nil {
		return Record{}, fmt.Errorf("feed: bad record ID %q: %w", stmt.ColumnText(0), err)
	}
	return Record{
		ID:         id,
		Provider:   stmt.ColumnText(1),
		Title:      stmt.ColumnText(2),
		Body:       stmt.ColumnText(3),
		Target:     stmt.ColumnText(4),
		ReceivedAt: time.UnixMilli(stmt.ColumnInt64(5)).UTC(),
	}, nil
}

func (f *Feed) newULID(now time.Time) (ulid.ULID, error) {
	f.entropyMu.Lock()
	defer f.entropyMu.Unlock()
	return ulid.New(ulid.Timestamp(now), f.entropy)
}
