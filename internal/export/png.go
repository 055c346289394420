/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes the canvas out as flattened PNG, vector SVG,
// single-page PDF or a self-describing zip bundle. All exporters place
// relative output paths under the workspace exports folder and return
// the path they wrote.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"canvasforge/internal/raster"
	"canvasforge/internal/scene"
	"canvasforge/internal/storage"
	"canvasforge/internal/textlayout"
)

// Canvas units are 96-dpi pixels. Exports at a higher DPI scale the
// raster output while keeping the physical size.
const baseDPI = 96

// PNGOptions controls the flattened PNG export.
// - DPI: output resolution; zero means 96, one pixel per canvas unit.
// - Background: hex fill behind the items; empty falls back to the
//   document background, then white.
type PNGOptions struct {
	DPI        int
	Background string
}

// ExportPNG flattens the whole canvas into one PNG file. An empty
// outPath derives the file name from the document.
func ExportPNG(dh *storage.DocumentHandle, outPath string, opt PNGOptions) (string, error) {
	if dh == nil || dh.Doc == nil {
		return "", fmt.Errorf("document handle is nil")
	}
	sc := scene.FromDocument(dh.Doc)
	img, err := raster.Render(sc, raster.Options{
		Background: exportBackground(opt.Background, sc.Background),
		Scale:      renderScale(opt.DPI),
		Provider:   workspaceFonts(dh.Root),
	})
	if err != nil {
		return "", fmt.Errorf("render canvas: %w", err)
	}
	out, err := resolveOut(dh.Root, outPath, exportName(dh.Doc.Name)+".png")
	if err != nil {
		return "", err
	}
	if err := raster.SavePNG(out, img); err != nil {
		return "", err
	}
	return out, nil
}

func renderScale(dpi int) float64 {
	if dpi <= 0 {
		dpi = baseDPI
	}
	return float64(dpi) / baseDPI
}

// workspaceFonts resolves text item fonts from the workspace fonts
// folder, with the built-in face covering everything else.
func workspaceFonts(root string) textlayout.Provider {
	return textlayout.WorkspaceProvider(filepath.Join(root, "fonts"))
}

// exportBackground resolves the backing color. Flattened formats always
// get one; an export that comes out transparent surprises more than it
// helps.
func exportBackground(opt, doc string) string {
	if opt != "" {
		return opt
	}
	if doc != "" {
		return doc
	}
	return "#ffffff"
}

// resolveOut places relative outputs under the workspace exports folder
// and ensures the parent directory exists.
func resolveOut(root, out, defName string) (string, error) {
	if strings.TrimSpace(out) == "" {
		out = defName
	}
	if !filepath.IsAbs(out) {
		out = filepath.Join(root, "exports", out)
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	return out, nil
}

// exportName derives a file-safe base name from the document name.
func exportName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteByte('-')
		}
	}
	if b.Len() == 0 {
		return "canvas"
	}
	return b.String()
}
