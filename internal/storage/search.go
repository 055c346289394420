/*
 * Copyright (c) 2025 the CanvasForge authors.
 * Licensed under the Apache License, Version 2.0.
 */
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// SearchQuery describes the in-app search request.
// Text uses SQLite FTS5 syntax (simple terms, phrases in quotes, AND/OR/NOT)
// and matches item text content and item names.
// Filters are optional. Kinds can restrict to item kinds like: rect, ellipse,
// text, raster, path. Name is a contains-match on the item name.
// Limit/Offset implement pagination; reasonable defaults applied if zero.
type SearchQuery struct {
	Text   string
	Name   string
	Kinds  []string
	Limit  int
	Offset int
}

// SearchResult represents a single match row.
// Snippet is an optional highlighted excerpt using [ ] markers when FTS text is used.
// ItemID refers back to the manifest item and can be used with WhereUsed-style lookups.
type SearchResult struct {
	RowID   int64
	ItemID  string
	Kind    string
	Name    string
	Snippet string
}

// Search performs full-text search with optional filters over the embedded index.
// When q.Text is empty, it falls back to a non-FTS scan over items with filters applied.
func Search(ctx context.Context, workspaceRoot string, q SearchQuery) ([]SearchResult, error) {
	if strings.TrimSpace(workspaceRoot) == "" {
		return nil, errors.New("workspace root is required")
	}
	db, err := InitOrOpenIndex(workspaceRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return searchDB(ctx, db, q)
}

func searchDB(ctx context.Context, db *sql.DB, q SearchQuery) ([]SearchResult, error) {
	// Build dynamic SQL
	var args []any
	var sb strings.Builder
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		sb.WriteString("SELECT i.row_id, i.item_id, i.kind, COALESCE(i.name,''), snippet(fts_items, 0, '[', ']', '…', 10)\n")
		sb.WriteString("FROM fts_items JOIN items i ON fts_items.rowid = i.row_id\n")
		sb.WriteString("WHERE fts_items MATCH ?\n")
		args = append(args, q.Text)
	} else {
		sb.WriteString("SELECT i.row_id, i.item_id, i.kind, COALESCE(i.name,''), ''\n")
		sb.WriteString("FROM items i\nWHERE 1=1\n")
	}
	// Filters
	// Kinds filter (IN list)
	if len(q.Kinds) > 0 {
		sb.WriteString(" AND i.kind IN (" + placeholders(len(q.Kinds)) + ")\n")
		for _, k := range q.Kinds {
			args = append(args, k)
		}
	}
	// Name contains
	if s := strings.TrimSpace(q.Name); s != "" {
		sb.WriteString(" AND lower(i.name) LIKE ?\n")
		args = append(args, likeContains(strings.ToLower(s)))
	}
	// Order and pagination
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	sb.WriteString("ORDER BY i.z, i.row_id\n")
	sb.WriteString("LIMIT ? OFFSET ?")
	args = append(args, limit, q.Offset)

	rows, err := db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		var sn sql.NullString
		if err := rows.Scan(&r.RowID, &r.ItemID, &r.Kind, &r.Name, &sn); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		if sn.Valid {
			r.Snippet = sn.String
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// WhereUsed returns the items that reference the given asset path (as stored
// in the manifest's imageRef fields, e.g. "assets/shot.png").
func WhereUsed(ctx context.Context, workspaceRoot string, assetPath string, limit, offset int) ([]SearchResult, error) {
	if strings.TrimSpace(assetPath) == "" {
		return nil, errors.New("asset path is required")
	}
	db, err := InitOrOpenIndex(workspaceRoot)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	q := `SELECT i.row_id, i.item_id, i.kind, COALESCE(i.name,''), ''
		FROM asset_refs x
		JOIN items i ON i.item_id = x.item_id
		WHERE x.path = ?
		ORDER BY i.z, i.row_id
		LIMIT ? OFFSET ?`
	rows, err := db.QueryContext(ctx, q, assetPath, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("where-used query: %w", err)
	}
	defer rows.Close()
	var out []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.RowID, &r.ItemID, &r.Kind, &r.Name, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountItems reports the indexed item total and the per-kind breakdown.
// Used by the CLI info command; the numbers come from the derived index,
// not the manifest, so they also sanity-check index freshness.
func CountItems(ctx context.Context, workspaceRoot string) (int, map[string]int, error) {
	db, err := InitOrOpenIndex(workspaceRoot)
	if err != nil {
		return 0, nil, err
	}
	defer db.Close()
	rows, err := db.QueryContext(ctx, `SELECT kind, COUNT(*) FROM items GROUP BY kind`)
	if err != nil {
		return 0, nil, fmt.Errorf("count items: %w", err)
	}
	defer rows.Close()
	total := 0
	byKind := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return 0, nil, fmt.Errorf("scan count: %w", err)
		}
		byKind[kind] = n
		total += n
	}
	return total, byKind, rows.Err()
}

func likeContains(s string) string { return "%" + s + "%" }

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	b := strings.Builder{}
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString("?")
	}
	return b.String()
}
