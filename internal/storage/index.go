/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	applog "canvasforge/internal/log"
	"canvasforge/internal/scene"
	"canvasforge/internal/version"
	"log/slog"

	"github.com/google/uuid"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	// IndexDirName stores all per-workspace ephemeral/index data under the workspace root.
	IndexDirName  = ".cvf"
	IndexFileName = "index.sqlite"

	// PreviewsDirName holds the on-disk preview PNG cache under IndexDirName.
	PreviewsDirName = "previews"

	// schemaVersion tracks the local SQLite schema for the embedded index.
	// Bump this when you perform breaking schema changes and add migrations.
	schemaVersion = 2
)

// IndexPath returns the full path to the workspace's embedded index database file.
func IndexPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, IndexDirName, IndexFileName)
}

// InitOrOpenIndex ensures that the per-workspace SQLite index exists at .cvf/index.sqlite,
// opens the database, enables WAL mode, and ensures the meta/version tables exist.
// The returned *sql.DB is ready for use. Callers may close it when no longer needed.
func InitOrOpenIndex(workspaceRoot string) (*sql.DB, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_init").With(
		slog.String("root", workspaceRoot),
	)
	if strings.TrimSpace(workspaceRoot) == "" {
		return nil, errors.New("workspace root is required")
	}
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Join(workspaceRoot, IndexDirName), 0o755); err != nil {
		l.Error("create .cvf dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create .cvf dir: %w", err)
	}

	path := IndexPath(workspaceRoot)
	// Use a URI with shared cache and set busy timeout. Convert to forward slashes for SQLite URI.
	uriPath := filepath.ToSlash(path)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Set reasonable connection pool limits for embedded usage.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Ensure WAL mode is active.
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	// Enforce foreign keys just in case future schema uses them.
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}

	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	// Ensure core index schema exists (documents, items, FTS, assets, autosaves, macro snapshots)
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	// Run migrations to bring DB schema up to date
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}

	l.Info("index ready", slog.String("path", path))
	return db, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	// Create tables if not exist
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
	// Seed or update single-row version info
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	// Check if a version row exists
	var curSchema int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&curSchema)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// Insert new row with current schemaVersion for a fresh DB
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, schemaVersion, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		// Update app and timestamp only; keep existing schema for migrations
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		// Do not downgrade; just log and continue
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		switch next {
		case 2:
			// Add helpful indexes for asset references and optimize FTS
			tx, err := db.BeginTx(ctx, nil)
			if err != nil {
				return fmt.Errorf("begin migration %d: %w", next, err)
			}
			stmts := []string{
				`CREATE INDEX IF NOT EXISTS idx_asset_refs_path ON asset_refs(path);`,
				`CREATE INDEX IF NOT EXISTS idx_asset_refs_item ON asset_refs(item_id);`,
			}
			for _, q := range stmts {
				if _, err := tx.ExecContext(ctx, q); err != nil {
					_ = tx.Rollback()
					return fmt.Errorf("migration %d stmt failed: %w", next, err)
				}
			}
			if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d update version: %w", next, err)
			}
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("migration %d commit: %w", next, err)
			}
			// Best-effort FTS optimize (outside the tx)
			if _, err := db.ExecContext(ctx, `INSERT INTO fts_items(fts_items) VALUES('optimize')`); err != nil {
				// best-effort optimize; ignore errors
			}
		default:
			// Unknown future step; break
		}
		cur = next
	}
	return nil
}

// ensureIndexSchema creates core index tables and FTS structures if they do not exist.
func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		// Registry of manifests this index is derived from.
		`CREATE TABLE IF NOT EXISTS documents (
			path       TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			items      INTEGER NOT NULL DEFAULT 0,
			width      REAL NOT NULL DEFAULT 0,
			height     REAL NOT NULL DEFAULT 0,
			updated_at TEXT NOT NULL
		);`,

		// Canvas items flattened out of the manifest for search and stats.
		// row_id feeds the contentless FTS rowid; item_id is the uuid from the manifest.
		`CREATE TABLE IF NOT EXISTS items (
			row_id  INTEGER PRIMARY KEY,
			item_id TEXT NOT NULL UNIQUE,
			kind    TEXT NOT NULL,
			name    TEXT,
			z       INTEGER NOT NULL DEFAULT 0,
			text    TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_items_kind ON items(kind);`,
		`CREATE INDEX IF NOT EXISTS idx_items_z ON items(z);`,

		// Contentless FTS5 index fed from items via triggers.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_items USING fts5(
			text,
			name,
			content='',
			tokenize = 'unicode61'
		);`,

		// Assets catalog (imported images/fonts under the assets folder)
		`CREATE TABLE IF NOT EXISTS assets (
			hash TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			type TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_assets_path ON assets(path);`,

		// Which items reference which asset paths (where-used)
		`CREATE TABLE IF NOT EXISTS asset_refs (
			item_id TEXT NOT NULL,
			path    TEXT NOT NULL,
			PRIMARY KEY(item_id, path)
		);`,

		// Autosave snapshots (whole-document JSON blobs for crash recovery)
		`CREATE TABLE IF NOT EXISTS autosaves (
			id       INTEGER PRIMARY KEY,
			ts       TEXT NOT NULL,
			doc_blob BLOB NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_autosaves_ts ON autosaves(ts);`,

		// Macro text snapshots (history of applied macros for change tracking)
		`CREATE TABLE IF NOT EXISTS macro_snapshots (
			id    INTEGER PRIMARY KEY,
			ts    TEXT NOT NULL,
			name  TEXT NOT NULL,
			text  TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_macro_snapshots_ts ON macro_snapshots(ts);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure index schema: %w", err)
		}
	}
	// Triggers for contentless FTS synchronization with items.text/items.name
	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS items_ai AFTER INSERT ON items BEGIN
			INSERT INTO fts_items(rowid, text, name) VALUES (new.row_id, new.text, new.name);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS items_ad AFTER DELETE ON items BEGIN
			INSERT INTO fts_items(fts_items, rowid, text, name) VALUES ('delete', old.row_id, old.text, old.name);
		END;`,
		`CREATE TRIGGER IF NOT EXISTS items_au AFTER UPDATE OF text, name ON items BEGIN
			INSERT INTO fts_items(fts_items, rowid, text, name) VALUES ('delete', old.row_id, old.text, old.name);
			INSERT INTO fts_items(rowid, text, name) VALUES (new.row_id, new.text, new.name);
		END;`,
	}
	for _, q := range triggers {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("ensure fts triggers: %w", err)
		}
	}
	return nil
}

// DetectAndRebuildIndex checks for corruption or missing schema and rebuilds the index if needed.
// It returns true when a rebuild was performed.
func DetectAndRebuildIndex(ctx context.Context, workspaceRoot string, doc *scene.Document) (bool, error) {
	path := IndexPath(workspaceRoot)
	// Try to open DB; if fails, attempt backup+delete+rebuild
	db, err := InitOrOpenIndex(workspaceRoot)
	if err != nil {
		backupIndexFile(path)
		_ = os.Remove(path)
		if rbErr := RebuildIndex(ctx, workspaceRoot, doc); rbErr != nil {
			return false, fmt.Errorf("rebuild after open failure: %w (open err: %v)", rbErr, err)
		}
		return true, nil
	}
	defer db.Close()
	needs := false
	// quick_check for corruption
	var chk string
	if err := db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk); err != nil || !strings.Contains(strings.ToLower(chk), "ok") {
		needs = true
	}
	// Probe core table
	if !needs {
		if _, err := db.ExecContext(ctx, `SELECT 1 FROM items LIMIT 1;`); err != nil {
			needs = true
		}
	}
	if !needs {
		return false, nil
	}
	// Backup and remove existing DB file
	backupIndexFile(path)
	_ = os.Remove(path)
	// Rebuild
	if err := RebuildIndex(ctx, workspaceRoot, doc); err != nil {
		return false, err
	}
	return true, nil
}

// backupIndexFile copies the current index file into a timestamped backup in .cvf/backups.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	stamp := time.Now().Format("20060102-150405")
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), stamp))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// BuildIndexIfEmpty performs a minimal index build if the index has no user content.
// It ensures the DB exists and, if the items table is empty, populates it from the given manifest.
func BuildIndexIfEmpty(ctx context.Context, workspaceRoot string, doc *scene.Document) error {
	// Ensure the DB exists and is initialized
	db, err := InitOrOpenIndex(workspaceRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	// Check if items has any rows
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items;").Scan(&cnt); err != nil {
		return fmt.Errorf("check items count: %w", err)
	}
	if cnt > 0 {
		return nil // already built
	}
	return rebuildItemsFromDocument(ctx, db, workspaceRoot, doc)
}

// UpdateIndex updates the embedded index with changes from the manifest.
// Minimal safe implementation: replace the items content from the provided manifest.
func UpdateIndex(ctx context.Context, workspaceRoot string, doc *scene.Document) error {
	db, err := InitOrOpenIndex(workspaceRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	return rebuildItemsFromDocument(ctx, db, workspaceRoot, doc)
}

// RebuildIndex drops and recreates core index tables and rebuilds content from the manifest.
// It preserves meta/version and the autosave/macro history tables. This is a safe operation;
// the dropped tables are derived from document.json and the assets folder.
func RebuildIndex(ctx context.Context, workspaceRoot string, doc *scene.Document) error {
	db, err := InitOrOpenIndex(workspaceRoot)
	if err != nil {
		return err
	}
	defer db.Close()
	// Drop derived tables inside a transaction and recreate schema
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	drops := []string{
		"DROP TABLE IF EXISTS asset_refs;",
		"DROP TABLE IF EXISTS assets;",
		"DROP TABLE IF EXISTS documents;",
		"DROP TRIGGER IF EXISTS items_ai;",
		"DROP TRIGGER IF EXISTS items_ad;",
		"DROP TRIGGER IF EXISTS items_au;",
		"DROP TABLE IF EXISTS items;",
		"DROP TABLE IF EXISTS fts_items;",
	}
	for _, q := range drops {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("drop schema: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("drop commit: %w", err)
	}
	// Recreate schema and populate
	if err := ensureIndexSchema(ctx, db); err != nil {
		return err
	}
	return rebuildItemsFromDocument(ctx, db, workspaceRoot, doc)
}

// rebuildItemsFromDocument replaces the derived table content from the given manifest
// and refreshes the assets catalog from the workspace assets folder.
func rebuildItemsFromDocument(ctx context.Context, db *sql.DB, workspaceRoot string, doc *scene.Document) error {
	if doc == nil {
		return errors.New("nil document")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM items;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM asset_refs;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear asset refs: %w", err)
	}
	ins, err := tx.PrepareContext(ctx, "INSERT INTO items(item_id, kind, name, z, text) VALUES(?,?,?,?,?);")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer ins.Close()
	for _, it := range doc.Items {
		if it == nil || strings.TrimSpace(it.ID) == "" {
			continue
		}
		var name sql.NullString
		if s := strings.TrimSpace(it.Name); s != "" {
			name = sql.NullString{String: s, Valid: true}
		}
		var text sql.NullString
		if s := strings.TrimSpace(it.Text); s != "" {
			text = sql.NullString{String: s, Valid: true}
		}
		if _, err := ins.ExecContext(ctx, it.ID, string(it.Kind), name, it.Z, text); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert item: %w", err)
		}
		if ref := strings.TrimSpace(it.ImageRef); ref != "" {
			if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO asset_refs(item_id, path) VALUES(?,?)", it.ID, ref); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("insert asset ref: %w", err)
			}
		}
	}
	// Registry row for the manifest this content came from
	if _, err := tx.ExecContext(ctx, `INSERT INTO documents(path, name, items, width, height, updated_at) VALUES(?,?,?,?,?,?)
		ON CONFLICT(path) DO UPDATE SET name=excluded.name, items=excluded.items, width=excluded.width, height=excluded.height, updated_at=excluded.updated_at`,
		ManifestFileName, doc.Name, len(doc.Items), doc.Width, doc.Height, now); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upsert document row: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return catalogAssets(ctx, db, workspaceRoot)
}

// catalogAssets refreshes the assets table from the workspace assets folder.
// Each file is keyed by its SHA-256 so renamed duplicates collapse to one row.
func catalogAssets(ctx context.Context, db *sql.DB, workspaceRoot string) error {
	adir := filepath.Join(workspaceRoot, "assets")
	ents, err := os.ReadDir(adir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read assets dir: %w", err)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM assets;"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear assets: %w", err)
	}
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		b, err := os.ReadFile(filepath.Join(adir, e.Name()))
		if err != nil {
			continue
		}
		sum := sha256.Sum256(b)
		typ := strings.TrimPrefix(strings.ToLower(filepath.Ext(e.Name())), ".")
		rel := filepath.ToSlash(filepath.Join("assets", e.Name()))
		if _, err := tx.ExecContext(ctx, `INSERT INTO assets(hash, path, type) VALUES(?,?,?)
			ON CONFLICT(hash) DO UPDATE SET path=excluded.path, type=excluded.type`,
			hex.EncodeToString(sum[:]), rel, typ); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert asset: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit assets: %w", err)
	}
	return nil
}

// refreshIndexAfterSave updates the derived index for a just-saved manifest.
// Failures are logged and swallowed; the manifest on disk is the source of
// truth and the index can always be rebuilt from it.
func refreshIndexAfterSave(dh *DocumentHandle) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := UpdateIndex(ctx, dh.Root, dh.Doc); err != nil {
		applog.WithOperation(applog.WithComponent("storage"), "index_update").Warn(
			"index refresh after save failed", slog.Any("err", err),
		)
	}
}

// WorkspaceID returns the stable identity of this workspace, minting one on
// first use. The sync backend keys pushed documents by it, so it survives
// renames and moves of the workspace directory.
func WorkspaceID(workspaceRoot string) (string, error) {
	db, err := InitOrOpenIndex(workspaceRoot)
	if err != nil {
		return "", err
	}
	defer db.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var id string
	err = db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'workspace_id'`).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		if _, err := db.ExecContext(ctx, `INSERT INTO meta(key, value) VALUES('workspace_id', ?)`, id); err != nil {
			return "", fmt.Errorf("store workspace id: %w", err)
		}
		return id, nil
	case err != nil:
		return "", fmt.Errorf("read workspace id: %w", err)
	}
	return id, nil
}
