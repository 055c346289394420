/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"canvasforge/internal/raster"
	"canvasforge/internal/scene"
	"canvasforge/internal/storage"
	"canvasforge/internal/version"
)

// BundleOptions controls the zip bundle export.
type BundleOptions struct {
	DPI        int
	Background string
}

// bundleMeta is the small metadata manifest written into every bundle
// so a receiver can inspect it without parsing the full document.
type bundleMeta struct {
	Name      string `json:"name"`
	Author    string `json:"author,omitempty"`
	Created   string `json:"created,omitempty"`
	Modified  string `json:"modified,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Items     int    `json:"items"`
	Generator string `json:"generator"`
}

// ExportBundle packages the flattened canvas PNG together with the
// document manifest and a metadata file into one zip archive:
//
//	canvas.png     flattened render
//	document.json  the manifest, pixels referenced but not included
//	bundle.json    name, author, timestamps, item count, generator
func ExportBundle(dh *storage.DocumentHandle, outPath string, opt BundleOptions) (string, error) {
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
	pngData, err := raster.EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("encode canvas: %w", err)
	}

	out, err := resolveOut(dh.Root, outPath, exportName(dh.Doc.Name)+".zip")
	if err != nil {
		return "", err
	}
	if !strings.HasSuffix(strings.ToLower(out), ".zip") {
		out += ".zip"
	}

	zw, f, err := createZip(out)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	if err := addZipFile(zw, "canvas.png", pngData); err != nil {
		return "", fmt.Errorf("zip add canvas: %w", err)
	}

	docJSON, err := json.MarshalIndent(dh.Doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal document: %w", err)
	}
	if err := addZipFile(zw, "document.json", append(docJSON, '\n')); err != nil {
		return "", fmt.Errorf("zip add document: %w", err)
	}

	meta := bundleMeta{
		Name:      dh.Doc.Name,
		Author:    dh.Doc.Metadata.Author,
		Created:   dh.Doc.Metadata.Created,
		Modified:  dh.Doc.Metadata.Modified,
		Notes:     dh.Doc.Metadata.Notes,
		Items:     len(dh.Doc.Items),
		Generator: "CanvasForge " + version.String(),
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	if err := addZipFile(zw, "bundle.json", append(metaJSON, '\n')); err != nil {
		return "", fmt.Errorf("zip add metadata: %w", err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close zip: %w", err)
	}
	return out, nil
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create bundle: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}
