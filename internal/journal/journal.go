/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package journal persists an append-only record of history events to
// journal.sqlite under the workspace marker directory. It is strictly
// observational: events describe what the history did (executed, undone,
// grouped, evicted, ...), carry no document state, and are never read back
// by the engine. Losing journal rows loses audit detail, nothing else.
//
// Writes are asynchronous. Record hands the event to a bounded channel and
// returns immediately; a single writer goroutine drains the channel into
// the database. When the channel is full the event is dropped and counted.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"canvasforge/internal/history"
	applog "canvasforge/internal/log"
	"canvasforge/internal/storage"
	"canvasforge/internal/version"
	"log/slog"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// JournalFileName is the database file under the workspace marker dir.
	JournalFileName = "journal.sqlite"

	// journalSchemaVersion tracks the journal SQLite schema.
	// Bump this when you perform breaking schema changes and add migrations.
	journalSchemaVersion = 2

	// queueSize bounds the hand-off channel between Record and the writer.
	queueSize = 64
)

// Event is the persisted form of one history event.
type Event struct {
	ID          int64
	SessionID   string
	Kind        string
	Description string
	Depth       int
	At          time.Time
}

// JournalPath returns the full path to the workspace's journal database file.
func JournalPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, storage.IndexDirName, JournalFileName)
}

// Recorder owns the journal for one editing session. Wire its Record
// method into the history manager's Observer; everything else is
// background machinery.
type Recorder struct {
	db      *sql.DB
	log     *slog.Logger
	session string

	q       chan history.Event
	closing chan struct{}
	done    chan struct{}
	once    sync.Once
	dropped atomic.Int64
}

// Open creates or opens the workspace journal and starts the writer
// goroutine. Each Open starts a fresh session with its own ID.
func Open(workspaceRoot string) (*Recorder, error) {
	db, err := initJournalDB(workspaceRoot)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		db:      db,
		log:     applog.WithComponent("journal"),
		session: uuid.NewString(),
		q:       make(chan history.Event, queueSize),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

// SessionID returns the identifier written with every event of this
// recorder.
func (r *Recorder) SessionID() string { return r.session }

// Record enqueues a history event for persistence. It never blocks; when
// the queue is full the event is dropped and counted.
func (r *Recorder) Record(e history.Event) {
	select {
	case <-r.closing:
		return
	default:
	}
	select {
	case r.q <- e:
	default:
		r.dropped.Add(1)
	}
}

// Dropped reports how many events were discarded because the queue was
// full.
func (r *Recorder) Dropped() int64 { return r.dropped.Load() }

// Close stops the writer after draining queued events and closes the
// database. Events recorded concurrently with Close may be lost.
func (r *Recorder) Close() error {
	r.once.Do(func() { close(r.closing) })
	<-r.done
	if n := r.Dropped(); n > 0 {
		r.log.Warn("journal dropped events", slog.Int64("count", n))
	}
	return r.db.Close()
}

func (r *Recorder) loop() {
	defer close(r.done)
	for {
		select {
		case e := <-r.q:
			r.write(e)
		case <-r.closing:
			for {
				select {
				case e := <-r.q:
					r.write(e)
				default:
					return
				}
			}
		}
	}
}

// language=SQL
// dialect=SQLite
const insertEventSQL = `
INSERT INTO events (session_id, kind, description, depth, ts)
VALUES (?, ?, ?, ?, ?);`

func (r *Recorder) write(e history.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	at := e.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := r.db.ExecContext(ctx, insertEventSQL,
		r.session, string(e.Kind), e.Description, e.Depth,
		at.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		r.log.Warn("journal write failed", slog.Any("err", err))
	}
}

// initJournalDB opens .cvf/journal.sqlite, enables WAL, and brings the
// schema up to date.
func initJournalDB(workspaceRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("journal"), "journal_init").With(
		slog.String("root", workspaceRoot),
	)
	if strings.TrimSpace(workspaceRoot) == "" {
		return nil, errors.New("workspace root is required")
	}
	if err := os.MkdirAll(filepath.Join(workspaceRoot, storage.IndexDirName), 0o755); err != nil {
		l.Error("create .cvf dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .cvf dir: %w", err)
	}

	path := JournalPath(workspaceRoot)
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	if err := ensureJournalMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureJournalSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure journal schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runJournalMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("journal ready", slog.String("path", path))
	return db, nil
}

func ensureJournalMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, journalSchemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureJournalSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT NOT NULL,
			kind        TEXT NOT NULL,
			description TEXT,
			depth       INTEGER NOT NULL DEFAULT 0,
			ts          TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("journal schema: %w", err)
		}
	}
	return nil
}

// runJournalMigrations applies incremental schema migrations up to
// journalSchemaVersion.
func runJournalMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > journalSchemaVersion {
		// Do not downgrade
		return nil
	}
	for cur < journalSchemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Session lookups for the counts query
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			if _, err := tx.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id);`); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
		default:
		}
		cur = next
	}
	return nil
}

func openJournal(workspaceRoot string) (*sql.DB, error) {
	if strings.TrimSpace(workspaceRoot) == "" {
		return nil, errors.New("workspace root is required")
	}
	path := JournalPath(workspaceRoot)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal not found: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	return db, nil
}

// language=SQL
// dialect=SQLite
const selectRecentSQL = `
SELECT id, session_id, kind, COALESCE(description,''), depth, ts
FROM events
ORDER BY id DESC
LIMIT ?;`

// Recent returns the newest events first, up to limit (default 100).
func Recent(ctx context.Context, workspaceRoot string, limit int) ([]Event, error) {
	db, err := openJournal(workspaceRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.QueryContext(ctx, selectRecentSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		var ts string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Kind, &e.Description, &e.Depth, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			e.At = t
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// language=SQL
// dialect=SQLite
const selectSessionCountsSQL = `
SELECT session_id, COUNT(*), MAX(ts)
FROM events
GROUP BY session_id
ORDER BY MAX(ts) DESC;`

// SessionCounts returns per-session event totals, most recent session
// first.
func SessionCounts(ctx context.Context, workspaceRoot string) ([]struct {
	SessionID string
	Events    int
	Last      time.Time
}, error) {
	db, err := openJournal(workspaceRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, selectSessionCountsSQL)
	if err != nil {
		return nil, fmt.Errorf("query session counts: %w", err)
	}
	defer rows.Close()
	var out []struct {
		SessionID string
		Events    int
		Last      time.Time
	}
	for rows.Next() {
		var rec struct {
			SessionID string
			Events    int
			Last      time.Time
		}
		var ts string
		if err := rows.Scan(&rec.SessionID, &rec.Events, &ts); err != nil {
			return nil, fmt.Errorf("scan session count: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339Nano, ts); perr == nil {
			rec.Last = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// language=SQL
// dialect=SQLite
const selectKindCountsSQL = `
SELECT kind, COUNT(*)
FROM events
WHERE ts >= ?
GROUP BY kind;`

// KindCounts returns event totals per kind since the given time. The sync
// command rolls these up into activity uploads.
func KindCounts(ctx context.Context, workspaceRoot string, since time.Time) (map[string]int, error) {
	db, err := openJournal(workspaceRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, selectKindCountsSQL, since.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("query kind counts: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan kind count: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}
