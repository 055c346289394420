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
	"errors"
	"time"
)

// language=SQL
// dialect=SQLite
const insertMacroSnapshotSQL = `INSERT INTO macro_snapshots(ts, name, text) VALUES (?, ?, ?)`

// language=SQL
// dialect=SQLite
const selectLatestMacroSnapshotSQL = `SELECT ts, text FROM macro_snapshots WHERE name = ? ORDER BY ts DESC LIMIT 1`

// language=SQL
// dialect=SQLite
const listMacroSnapshotsSQL = `SELECT ts, text FROM macro_snapshots WHERE name = ? ORDER BY ts DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneOldMacroSnapshotsSQL = `DELETE FROM macro_snapshots WHERE name = ? AND id NOT IN (
	SELECT id FROM macro_snapshots WHERE name = ? ORDER BY ts DESC LIMIT ?
)`

// SaveMacroSnapshot persists the full text of an applied macro with a timestamp.
// The index database is ephemeral and derived; this history is meant for change tracking of macros, not canonical storage.
func SaveMacroSnapshot(ctx context.Context, dh *DocumentHandle, name, text string, ts time.Time) error {
	if dh == nil {
		return errors.New("nil DocumentHandle")
	}
	// Open or init index DB
	db, err := InitOrOpenIndex(dh.Root)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	_, err = db.ExecContext(ctx, insertMacroSnapshotSQL, ts.UTC().Format(time.RFC3339Nano), name, text)
	return err
}

// GetLatestMacroSnapshot returns the latest snapshot text and timestamp for the named macro, or empty if none.
func GetLatestMacroSnapshot(ctx context.Context, dh *DocumentHandle, name string) (string, time.Time, error) {
	if dh == nil {
		return "", time.Time{}, errors.New("nil DocumentHandle")
	}
	db, err := InitOrOpenIndex(dh.Root)
	if err != nil {
		return "", time.Time{}, err
	}
	defer func() { _ = db.Close() }()
	var tsStr string
	var txt string
	err = db.QueryRowContext(ctx, selectLatestMacroSnapshotSQL, name).Scan(&tsStr, &txt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", time.Time{}, nil
	}
	if err != nil {
		return "", time.Time{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return txt, time.Time{}, nil
	}
	return txt, ts, nil
}

// ListMacroSnapshots returns up to limit most recent snapshots of the named macro.
func ListMacroSnapshots(ctx context.Context, dh *DocumentHandle, name string, limit int) ([]struct {
	TS   time.Time
	Text string
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
	rows, err := db.QueryContext(ctx, listMacroSnapshotsSQL, name, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []struct {
		TS   time.Time
		Text string
	}
	for rows.Next() {
		var tsStr string
		var txt string
		if err := rows.Scan(&tsStr, &txt); err != nil {
			return nil, err
		}
		ts, _ := time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, struct {
			TS   time.Time
			Text string
		}{TS: ts, Text: txt})
	}
	return out, rows.Err()
}

// PruneOldMacroSnapshots keeps at most keepLast snapshots of the named macro and deletes older ones.
func PruneOldMacroSnapshots(ctx context.Context, dh *DocumentHandle, name string, keepLast int) (int64, error) {
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
	res, err := db.ExecContext(ctx, pruneOldMacroSnapshotsSQL, name, name, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
