/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"canvasforge/internal/scene"

	_ "modernc.org/sqlite"
)

func TestIndexInitCreatesWALAndMetaVersion(t *testing.T) {
	root := t.TempDir()
	// Initialize a minimal workspace to trigger index init
	doc := &scene.Document{Name: "Index Test", Items: []*scene.Item{}}
	dh, err := InitWorkspace(root, doc)
	if err != nil {
		t.Fatalf("InitWorkspace error: %v", err)
	}
	if dh == nil {
		t.Fatalf("expected document handle")
	}
	idxPath := IndexPath(root)
	if _, err := os.Stat(idxPath); err != nil {
		t.Fatalf("index file missing at %s: %v", idxPath, err)
	}
	// Open DB and verify journal mode and tables
	uriPath := filepath.ToSlash(idxPath)
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(2000)", uriPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var mode string
	if err := db.QueryRowContext(ctx, "PRAGMA journal_mode;").Scan(&mode); err != nil {
		t.Fatalf("read journal_mode: %v", err)
	}
	if mode != "wal" && mode != "WAL" {
		t.Fatalf("expected WAL mode, got %s", mode)
	}
	// Check meta/version tables exist
	var cnt int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('meta','version')").Scan(&cnt); err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if cnt != 2 {
		t.Fatalf("expected 2 meta tables, got %d", cnt)
	}
	// Check core schema tables exist (including virtual table)
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name IN ('documents','items','fts_items','assets','asset_refs','autosaves','macro_snapshots')").Scan(&cnt); err != nil {
		t.Fatalf("query core tables: %v", err)
	}
	if cnt != 7 {
		t.Fatalf("expected 7 core tables, got %d", cnt)
	}
	// Insert an item with a high row_id to avoid collisions and verify FTS triggers populate the index
	if _, err := db.ExecContext(ctx, `INSERT INTO items(row_id, item_id, kind, name, z, text) VALUES(10001,'9f2c7c1e-0000-0000-0000-000000000001','text','Caption',0,'hello world');`); err != nil {
		t.Fatalf("insert item: %v", err)
	}
	var ftsCount int
	if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fts_items WHERE fts_items MATCH 'hello' ").Scan(&ftsCount); err != nil {
		t.Fatalf("fts query: %v", err)
	}
	if ftsCount == 0 {
		t.Fatalf("expected FTS to find inserted item")
	}
}

func TestDocumentsRegistryUpdatedOnSave(t *testing.T) {
	root := t.TempDir()
	doc := &scene.Document{
		Name:   "Registry Test",
		Width:  640,
		Height: 480,
		Items: []*scene.Item{
			scene.NewRect(10, 10, 100, 80),
			scene.NewRect(40, 40, 100, 80),
		},
	}
	dh, err := InitWorkspace(root, doc)
	if err != nil {
		t.Fatalf("InitWorkspace error: %v", err)
	}

	db, err := InitOrOpenIndex(root)
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	var name string
	var items int
	if err := db.QueryRowContext(ctx, "SELECT name, items FROM documents WHERE path = ?", ManifestFileName).Scan(&name, &items); err != nil {
		t.Fatalf("query documents registry: %v", err)
	}
	if name != "Registry Test" || items != 2 {
		t.Fatalf("unexpected registry row: name=%q items=%d", name, items)
	}

	// Save after adding an item; the registry should track the new count.
	dh.Doc.Items = append(dh.Doc.Items, scene.NewRect(70, 70, 100, 80))
	if err := Save(dh); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := db.QueryRowContext(ctx, "SELECT items FROM documents WHERE path = ?", ManifestFileName).Scan(&items); err != nil {
		t.Fatalf("re-query documents registry: %v", err)
	}
	if items != 3 {
		t.Fatalf("expected registry to report 3 items after save, got %d", items)
	}
}

func TestWorkspaceIDMintedOnceAndStable(t *testing.T) {
	root := t.TempDir()
	if _, err := InitWorkspace(root, &scene.Document{Name: "Identity", Items: []*scene.Item{}}); err != nil {
		t.Fatalf("InitWorkspace error: %v", err)
	}

	first, err := WorkspaceID(root)
	if err != nil {
		t.Fatalf("WorkspaceID: %v", err)
	}
	if first == "" {
		t.Fatalf("expected a minted workspace id")
	}
	second, err := WorkspaceID(root)
	if err != nil {
		t.Fatalf("WorkspaceID again: %v", err)
	}
	if second != first {
		t.Fatalf("workspace id changed between calls: %q then %q", first, second)
	}

	otherRoot := t.TempDir()
	if _, err := InitWorkspace(otherRoot, &scene.Document{Name: "Other", Items: []*scene.Item{}}); err != nil {
		t.Fatalf("InitWorkspace other: %v", err)
	}
	other, err := WorkspaceID(otherRoot)
	if err != nil {
		t.Fatalf("WorkspaceID other: %v", err)
	}
	if other == first {
		t.Fatalf("distinct workspaces share id %q", first)
	}
}
