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
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"canvasforge/internal/scene"
)

func TestAutosaveRoundTripAndPrune(t *testing.T) {
	root := t.TempDir()
	dh, err := InitWorkspace(root, &scene.Document{Name: "Autosave Test", Items: []*scene.Item{}})
	if err != nil {
		t.Fatalf("InitWorkspace: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	base := time.Now()
	first := []byte(`{"name":"snapshot zero"}`)
	if err := SaveAutosave(ctx, dh, first, base); err != nil {
		t.Fatalf("SaveAutosave: %v", err)
	}
	blob, ts, err := GetLatestAutosave(ctx, dh)
	if err != nil {
		t.Fatalf("GetLatestAutosave: %v", err)
	}
	if !bytes.Equal(blob, first) {
		t.Fatalf("latest blob mismatch: got %s", blob)
	}
	if ts.IsZero() {
		t.Fatalf("expected non-zero timestamp")
	}

	// Five more with strictly increasing timestamps
	for i := 1; i <= 5; i++ {
		b := []byte(fmt.Sprintf(`{"name":"snapshot %d"}`, i))
		if err := SaveAutosave(ctx, dh, b, base.Add(time.Duration(i)*time.Millisecond)); err != nil {
			t.Fatalf("SaveAutosave %d: %v", i, err)
		}
	}
	list, err := ListAutosaves(ctx, dh, 100)
	if err != nil {
		t.Fatalf("ListAutosaves: %v", err)
	}
	if len(list) != 6 {
		t.Fatalf("expected 6 autosaves, got %d", len(list))
	}
	// Newest first
	if !bytes.Contains(list[0].Blob, []byte("snapshot 5")) {
		t.Fatalf("expected newest autosave first, got %s", list[0].Blob)
	}

	n, err := PruneOldAutosaves(ctx, dh, 3)
	if err != nil {
		t.Fatalf("PruneOldAutosaves: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 pruned rows, got %d", n)
	}
	list, err = ListAutosaves(ctx, dh, 100)
	if err != nil {
		t.Fatalf("ListAutosaves after prune: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("expected 3 autosaves after prune, got %d", len(list))
	}
	// Latest must survive the prune
	blob, _, err = GetLatestAutosave(ctx, dh)
	if err != nil {
		t.Fatalf("GetLatestAutosave after prune: %v", err)
	}
	if !bytes.Contains(blob, []byte("snapshot 5")) {
		t.Fatalf("expected snapshot 5 to survive prune, got %s", blob)
	}
}

func TestGetLatestAutosaveEmpty(t *testing.T) {
	root := t.TempDir()
	dh, err := InitWorkspace(root, &scene.Document{Name: "Empty", Items: []*scene.Item{}})
	if err != nil {
		t.Fatalf("InitWorkspace: %v", err)
	}
	ctx := context.Background()
	blob, ts, err := GetLatestAutosave(ctx, dh)
	if err != nil {
		t.Fatalf("GetLatestAutosave on empty table: %v", err)
	}
	if blob != nil || !ts.IsZero() {
		t.Fatalf("expected nil blob and zero time, got %v %v", blob, ts)
	}
}

func TestAutosaveDocumentAndRestore(t *testing.T) {
	root := t.TempDir()
	greeting := scene.NewText(10, 10, "saved state")
	dh, err := InitWorkspace(root, &scene.Document{Name: "Restore Test", Items: []*scene.Item{greeting}})
	if err != nil {
		t.Fatalf("InitWorkspace: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := AutosaveDocument(ctx, dh, 2); err != nil {
		t.Fatalf("AutosaveDocument: %v", err)
	}
	// A second autosave after editing; restore should return the newer state.
	dh.Doc.Name = "Restore Test v2"
	if err := AutosaveDocument(ctx, dh, 2); err != nil {
		t.Fatalf("AutosaveDocument 2: %v", err)
	}

	got, ts, err := RestoreLatestAutosave(ctx, dh)
	if err != nil {
		t.Fatalf("RestoreLatestAutosave: %v", err)
	}
	if got.Name != "Restore Test v2" {
		t.Fatalf("restored wrong document: %q", got.Name)
	}
	if len(got.Items) != 1 || got.Items[0].Text != "saved state" {
		t.Fatalf("restored items mismatch: %+v", got.Items)
	}
	if ts.IsZero() {
		t.Fatalf("expected non-zero restore timestamp")
	}

	// keepLast=2 must hold the table at two rows
	list, err := ListAutosaves(ctx, dh, 100)
	if err != nil {
		t.Fatalf("ListAutosaves: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 autosaves with keepLast=2, got %d", len(list))
	}
}
