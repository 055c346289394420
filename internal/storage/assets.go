/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	applog "canvasforge/internal/log"
	"canvasforge/internal/raster"
	"canvasforge/internal/scene"
)

const assetsDirName = "assets"

// SaveImages writes the decoded pixels of every raster item to the
// workspace assets folder as PNG and records the reference in the item.
// The manifest stays free of pixel data; Save calls this before
// marshaling so the written manifest always references files on disk.
func SaveImages(dh *DocumentHandle) error {
	if dh == nil || dh.Doc == nil {
		return errors.New("nil DocumentHandle")
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "assets_save")
	wrote := 0
	for _, it := range dh.Doc.Items {
		if it.Kind != scene.KindRaster || it.Image == nil {
			continue
		}
		if it.ImageRef == "" {
			it.ImageRef = path.Join(assetsDirName, it.ID+".png")
		}
		rel, ok := assetRel(it.ImageRef)
		if !ok {
			l.Warn("skip unsafe image ref", slog.String("ref", it.ImageRef))
			continue
		}
		target := filepath.Join(dh.Root, assetsDirName, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("ensure assets dir: %w", err)
		}
		data, err := raster.EncodePNG(it.Image)
		if err != nil {
			return fmt.Errorf("encode asset %s: %w", it.ID, err)
		}
		if err := writeFileSync(target, data); err != nil {
			return fmt.Errorf("write asset %s: %w", rel, err)
		}
		wrote++
	}
	if wrote > 0 {
		l.Debug("assets written", slog.Int("count", wrote))
	}
	return nil
}

// LoadImages decodes referenced assets back into the document's raster
// items. A missing or unreadable asset leaves the item without pixels
// and is logged; the document itself still opens.
func LoadImages(dh *DocumentHandle) error {
	if dh == nil || dh.Doc == nil {
		return errors.New("nil DocumentHandle")
	}
	l := applog.WithOperation(applog.WithComponent("storage"), "assets_load")
	for _, it := range dh.Doc.Items {
		if it.ImageRef == "" || it.Image != nil {
			continue
		}
		rel, ok := assetRel(it.ImageRef)
		if !ok {
			l.Warn("skip unsafe image ref", slog.String("ref", it.ImageRef))
			continue
		}
		img, err := raster.LoadPNG(filepath.Join(dh.Root, assetsDirName, rel))
		if err != nil {
			l.Warn("asset unreadable", slog.String("ref", it.ImageRef), slog.Any("err", err))
			continue
		}
		it.SetImage(img)
	}
	return nil
}

// assetRel normalizes a manifest image reference to a path relative to
// the assets folder. References must stay inside the folder once
// cleaned.
func assetRel(ref string) (string, bool) {
	rel := path.Clean(strings.TrimPrefix(ref, assetsDirName+"/"))
	if rel == "." || rel == "" || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return "", false
	}
	return filepath.FromSlash(rel), true
}
