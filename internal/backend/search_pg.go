/*
 * Copyright (c) 2025 the CanvasForge authors.
 * Licensed under the Apache License, Version 2.0.
 */
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"canvasforge/internal/storage"
)

// SearchPG executes an item search over the Postgres document_items table
// using tsvector and filters and returns results mapped to
// storage.SearchResult to ease parity checks with the workspace index.
func SearchPG(ctx context.Context, db *sql.DB, documentID int64, q storage.SearchQuery) ([]storage.SearchResult, error) {
	var (
		args []any
		b    strings.Builder
	)
	useFTS := strings.TrimSpace(q.Text) != ""
	if useFTS {
		b.WriteString("SELECT i.row_id, i.item_id, i.kind, COALESCE(i.name,''), ")
		b.WriteString("COALESCE(ts_headline('simple', COALESCE(i.content,'') || ' ' || COALESCE(i.name,''), plainto_tsquery('simple', $1), 'StartSel=[, StopSel=], MaxFragments=1, MaxWords=10'), '') AS snippet ")
		b.WriteString("FROM document_items i WHERE i.document_id = $2 AND i.search_vector @@ plainto_tsquery('simple', $1) ")
		args = append(args, q.Text, documentID)
	} else {
		b.WriteString("SELECT i.row_id, i.item_id, i.kind, COALESCE(i.name,''), '' AS snippet ")
		b.WriteString("FROM document_items i WHERE i.document_id = $1 ")
		args = append(args, documentID)
	}

	// Helper to add parameter and return placeholder like $n
	place := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	// Kinds filter
	if len(q.Kinds) > 0 {
		b.WriteString(" AND i.kind = ANY (" + place(q.Kinds) + ") ")
	}
	// Name contains
	if s := strings.TrimSpace(q.Name); s != "" {
		b.WriteString(" AND lower(i.name) LIKE " + place("%"+strings.ToLower(s)+"%") + " ")
	}
	// Order and pagination
	limit := q.Limit
	if limit <= 0 {
		limit = 100
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}
	b.WriteString(" ORDER BY i.z, i.row_id ")
	b.WriteString(" LIMIT " + place(limit) + " OFFSET " + place(offset))

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search pg query: %w", err)
	}
	defer func() { _ = rows.Close() }()
	var out []storage.SearchResult
	for rows.Next() {
		var r storage.SearchResult
		if err := rows.Scan(&r.RowID, &r.ItemID, &r.Kind, &r.Name, &r.Snippet); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
