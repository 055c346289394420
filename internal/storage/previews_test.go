/*
 * Copyright (c) 2025 the CanvasForge authors.
 * Licensed under the Apache License, Version 2.0.
 */

package storage

import (
	"context"
	"testing"
	"time"

	"canvasforge/internal/scene"
)

func TestPreviewsPutGetAndEvict(t *testing.T) {
	root := t.TempDir()
	dh, err := InitWorkspace(root, &scene.Document{Name: "Prev Test", Items: []*scene.Item{}})
	if err != nil || dh == nil {
		t.Fatalf("InitWorkspace: %v", err)
	}

	// Set a tiny cap to force eviction quickly
	t.Setenv("CVF_PREVIEWS_MAX_BYTES", "64")

	// Insert 3 previews of 40 bytes each
	blobA := make([]byte, 40)
	blobB := make([]byte, 40)
	blobC := make([]byte, 40)
	if err := PutPreview(dh.Root, "item-a", 100, 100, blobA); err != nil {
		t.Fatalf("put A: %v", err)
	}
	time.Sleep(10 * time.Millisecond) // different mtimes
	if err := PutPreview(dh.Root, "item-a", 200, 200, blobB); err != nil {
		t.Fatalf("put B: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := PutPreview(dh.Root, "item-a", 300, 300, blobC); err != nil {
		t.Fatalf("put C: %v", err)
	}

	// Cap is 64 bytes; after inserts total 120 -> eviction should have occurred, leaving last inserted(s)
	total, err := TotalPreviewBytes(dh.Root)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total > 64 {
		t.Fatalf("expected eviction to <=64 bytes, got %d", total)
	}

	// The newest preview must have survived
	if b, err := GetPreview(dh.Root, "item-a", 300, 300); err != nil || len(b) != 40 {
		t.Fatalf("expected newest preview to survive, got %d bytes (err %v)", len(b), err)
	}
	// The oldest must be gone
	if b, err := GetPreview(dh.Root, "item-a", 100, 100); err != nil || b != nil {
		t.Fatalf("expected oldest preview evicted, got %d bytes (err %v)", len(b), err)
	}
}

func TestPreviewGetTouchesAccessOrder(t *testing.T) {
	root := t.TempDir()
	dh, err := InitWorkspace(root, &scene.Document{Name: "Prev Touch", Items: []*scene.Item{}})
	if err != nil {
		t.Fatalf("InitWorkspace: %v", err)
	}

	if err := PutPreview(dh.Root, "item-a", 100, 100, make([]byte, 40)); err != nil {
		t.Fatalf("put A: %v", err)
	}
	time.Sleep(10 * time.Millisecond)
	if err := PutPreview(dh.Root, "item-b", 100, 100, make([]byte, 40)); err != nil {
		t.Fatalf("put B: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	// Reading A refreshes its access time, so B is now the eviction candidate.
	if _, err := GetPreview(dh.Root, "item-a", 100, 100); err != nil {
		t.Fatalf("get A: %v", err)
	}
	if err := EvictPreviewsToFit(PreviewsPath(dh.Root), 50); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if b, _ := GetPreview(dh.Root, "item-a", 100, 100); b == nil {
		t.Fatalf("expected touched preview to survive eviction")
	}
	if b, _ := GetPreview(dh.Root, "item-b", 100, 100); b != nil {
		t.Fatalf("expected untouched preview to be evicted")
	}
}

func TestGetOrCreatePreview(t *testing.T) {
	root := t.TempDir()
	dh, err := InitWorkspace(root, &scene.Document{Name: "Prev Create", Items: []*scene.Item{}})
	if err != nil || dh == nil {
		t.Fatalf("InitWorkspace: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	calls := 0
	gen := func(context.Context) ([]byte, error) { calls++; return []byte("abcd"), nil }
	b, err := GetOrCreatePreview(ctx, dh.Root, "item-c", 64, 64, gen)
	if err != nil {
		t.Fatalf("getOrCreate: %v", err)
	}
	if string(b) != "abcd" {
		t.Fatalf("unexpected data: %q", string(b))
	}
	// Second call should hit cache and not call generator
	b, err = GetOrCreatePreview(ctx, dh.Root, "item-c", 64, 64, gen)
	if err != nil {
		t.Fatalf("getOrCreate 2: %v", err)
	}
	if string(b) != "abcd" {
		t.Fatalf("unexpected cached data: %q", string(b))
	}
	if calls != 1 {
		t.Fatalf("generator should be called once, got %d", calls)
	}
}

func TestInvalidatePreviewsByItem(t *testing.T) {
	root := t.TempDir()
	dh, err := InitWorkspace(root, &scene.Document{Name: "Prev Invalidate", Items: []*scene.Item{}})
	if err != nil {
		t.Fatalf("InitWorkspace: %v", err)
	}
	if err := PutPreview(dh.Root, "item-a", 100, 100, []byte("aaaa")); err != nil {
		t.Fatalf("put item preview: %v", err)
	}
	// Empty item id means the whole-canvas preview
	if err := PutPreview(dh.Root, "", 800, 600, []byte("cccc")); err != nil {
		t.Fatalf("put canvas preview: %v", err)
	}

	if err := InvalidatePreviews(dh.Root, "item-a"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if b, _ := GetPreview(dh.Root, "item-a", 100, 100); b != nil {
		t.Fatalf("expected item preview removed")
	}
	if b, _ := GetPreview(dh.Root, "", 800, 600); b == nil {
		t.Fatalf("expected canvas preview untouched")
	}
}
