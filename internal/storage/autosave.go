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
	"encoding/json"
	"errors"
	"time"

	"canvasforge/internal/scene"
)

// language=SQL
// dialect=SQLite
const insertAutosaveSQL = `INSERT INTO autosaves(ts, doc_blob) VALUES (?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestAutosaveSQL = `SELECT ts, doc_blob FROM autosaves ORDER BY ts DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listAutosavesSQL = `SELECT ts, doc_blob FROM autosaves ORDER BY ts DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldAutosavesSQL = `DELETE FROM autosaves WHERE id NOT IN (
	SELECT id FROM autosaves ORDER BY ts DESC LIMIT ?
)`

// SaveAutosave persists a whole-document snapshot blob with a timestamp.
// Autosaves exist for crash recovery only; they are not undo history, which
// never touches disk. It opens the workspace index database if needed and
// inserts the record.
func SaveAutosave(ctx context.Context, dh *DocumentHandle, doc []byte, ts time.Time) error {
	if dh == nil {
		return errors.New("nil DocumentHandle")
	}
	// Open or init index DB
	db, err := InitOrOpenIndex(dh.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertAutosaveSQL, ts.UTC().Format(time.RFC3339Nano), doc)
	return err
}

// AutosaveDocument marshals the handle's current document and stores it as an
// autosave, pruning to keepLast when keepLast > 0.
func AutosaveDocument(ctx context.Context, dh *DocumentHandle, keepLast int) error {
	if dh == nil || dh.Doc == nil {
		return errors.New("nil DocumentHandle")
	}
	blob, err := json.Marshal(dh.Doc)
	if err != nil {
		return err
	}
	if err := SaveAutosave(ctx, dh, blob, time.Now()); err != nil {
		return err
	}
	if keepLast > 0 {
		if _, err := PruneOldAutosaves(ctx, dh, keepLast); err != nil {
			return err
		}
	}
	return nil
}

// GetLatestAutosave returns the latest autosave blob or nil if none.
func GetLatestAutosave(ctx context.Context, dh *DocumentHandle) ([]byte, time.Time, error) {
	if dh == nil {
		return nil, time.Time{}, errors.New("nil DocumentHandle")
	}
	db, err := InitOrOpenIndex(dh.Root)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer func() { _ = db.Close() }()
	var tsStr string
	var blob []byte
	err = db.QueryRowContext(ctx, selectLatestAutosaveSQL).Scan(&tsStr, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return blob, time.Time{}, nil // return blob even if ts parse fails
	}
	return blob, ts, nil
}

// RestoreLatestAutosave decodes the most recent autosave into a document.
// Returns nil when no autosave exists.
func RestoreLatestAutosave(ctx context.Context, dh *DocumentHandle) (*scene.Document, time.Time, error) {
	blob, ts, err := GetLatestAutosave(ctx, dh)
	if err != nil || blob == nil {
		return nil, ts, err
	}
	var d scene.Document
	if err := json.Unmarshal(blob, &d); err != nil {
		return nil, ts, err
	}
	return &d, ts, nil
}

// ListAutosaves returns up to limit most recent autosaves.
func ListAutosaves(ctx context.Context, dh *DocumentHandle, limit int) ([]struct {
	TS   time.Time
	Blob []byte
}, error) {
	if dh == nil {
		return nil, errors.New("nil DocumentHandle")
	}
	if limit <= 0 {
		limit = 50
	}
	db, err := InitOrOpenIndex(dh.Root)
	if err != nil {
		return nil, err
	}
	defer func() { _ = db.Close() }()
	rows, err := db.QueryContext(ctx, listAutosavesSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []struct {
		TS   time.Time
		Blob []byte
	}
	for rows.Next() {
		var tsStr string
		var blob []byte
		if err := rows.Scan(&tsStr, &blob); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, struct {
			TS   time.Time
			Blob []byte
		}{TS: ts, Blob: blob})
	}
	return out, rows.Err()
}

// PruneOldAutosaves keeps at most keepLast autosaves and deletes older ones.
func PruneOldAutosaves(ctx context.Context, dh *DocumentHandle, keepLast int) (int64, error) {
	if dh == nil {
		return 0, errors.New("nil DocumentHandle")
	}
	if keepLast <= 0 {
		return 0, nil
	}
	db, err := InitOrOpenIndex(dh.Root)
	if err != nil {
		return 0, err
	}
	defer func() { _ = db.Close() }()
	// Delete autosaves not in the newest keepLast set
	res, err := db.ExecContext(ctx, pruneOldAutosavesSQL, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
