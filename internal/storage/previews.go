/*
 * Copyright (c) 2025 the CanvasForge authors.
 * Licensed under the Apache License, Version 2.0.
 */

package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Preview PNGs are cached as plain files under <workspace>/.cvf/previews so
// external tools (and the user) can inspect them; the cache is bounded by
// CVF_PREVIEWS_MAX_BYTES and evicted least-recently-used by file mtime.
// A get touches the file's timestamps; a put counts as a use.

// PreviewsPath returns the preview cache directory for a workspace.
func PreviewsPath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, IndexDirName, PreviewsDirName)
}

// previewFileName maps a cache key to a file name. An empty itemID addresses
// the whole-canvas preview.
func previewFileName(itemID string, w, h int) string {
	if itemID == "" {
		return fmt.Sprintf("canvas-%dx%d.png", w, h)
	}
	return fmt.Sprintf("%s-%dx%d.png", itemID, w, h)
}

// GetPreview returns the cached preview bytes for the given key, or nil when
// not cached. A hit refreshes the file timestamps so eviction sees the use.
func GetPreview(workspaceRoot, itemID string, w, h int) ([]byte, error) {
	path := filepath.Join(PreviewsPath(workspaceRoot), previewFileName(itemID, w, h))
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read preview: %w", err)
	}
	now := time.Now()
	_ = os.Chtimes(path, now, now)
	return b, nil
}

// PutPreview stores a preview blob and enforces the cache size cap via LRU eviction.
func PutPreview(workspaceRoot, itemID string, w, h int, blob []byte) error {
	dir := PreviewsPath(workspaceRoot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure previews dir: %w", err)
	}
	path := filepath.Join(dir, previewFileName(itemID, w, h))
	if err := writeFileSync(path, blob); err != nil {
		return fmt.Errorf("write preview: %w", err)
	}
	capBytes := MaxPreviewsBytesFromEnv()
	if capBytes > 0 {
		if err := EvictPreviewsToFit(dir, capBytes); err != nil {
			return err
		}
	}
	return nil
}

// GetOrCreatePreview fetches a preview or generates and stores it using the provided generator.
func GetOrCreatePreview(ctx context.Context, workspaceRoot, itemID string, w, h int, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	// Try to get existing first
	if b, err := GetPreview(workspaceRoot, itemID, w, h); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	if err := PutPreview(workspaceRoot, itemID, w, h, data); err != nil {
		return nil, err
	}
	return data, nil
}

// InvalidatePreviews removes all cached previews for an item (any size).
// An empty itemID invalidates the whole-canvas previews.
func InvalidatePreviews(workspaceRoot, itemID string) error {
	dir := PreviewsPath(workspaceRoot)
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	prefix := "canvas-"
	if itemID != "" {
		prefix = itemID + "-"
	}
	for _, e := range ents {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		if rmErr := os.Remove(filepath.Join(dir, e.Name())); rmErr != nil && err == nil {
			err = rmErr
		}
	}
	return err
}

// EvictPreviewsToFit deletes least-recently-used preview files until the
// directory total is <= capBytes.
func EvictPreviewsToFit(dir string, capBytes int64) error {
	ents, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read previews dir: %w", err)
	}
	type entry struct {
		path string
		size int64
		mod  time.Time
	}
	var files []entry
	var total int64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, entry{path: filepath.Join(dir, e.Name()), size: info.Size(), mod: info.ModTime()})
		total += info.Size()
	}
	if total <= capBytes {
		return nil
	}
	// Oldest first
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })
	for _, f := range files {
		if err := os.Remove(f.path); err != nil {
			return fmt.Errorf("evict preview: %w", err)
		}
		total -= f.size
		if total <= capBytes {
			break
		}
	}
	return nil
}

// TotalPreviewBytes returns the total size of the preview cache on disk.
func TotalPreviewBytes(workspaceRoot string) (int64, error) {
	ents, err := os.ReadDir(PreviewsPath(workspaceRoot))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	var total int64
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if info, err := e.Info(); err == nil {
			total += info.Size()
		}
	}
	return total, nil
}

// MaxPreviewsBytesFromEnv reads CVF_PREVIEWS_MAX_BYTES, defaulting to 256MB if unset.
func MaxPreviewsBytesFromEnv() int64 {
	v := os.Getenv("CVF_PREVIEWS_MAX_BYTES")
	if v == "" {
		return 256 * 1024 * 1024 // 256MB
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 256 * 1024 * 1024
	}
	return n
}
