/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"canvasforge/internal/raster"
	"canvasforge/internal/scene"
	"canvasforge/internal/storage"
)

// sampleDocument is a small canvas exercising every item kind.
func sampleDocument() *scene.Document {
	rect := scene.NewRect(10, 10, 100, 60)
	rect.Name = "Backdrop"
	rect.Z = 0

	ell := scene.NewEllipse(40, 30, 60, 40)
	ell.Fill = "#ff000080"
	ell.Z = 1

	txt := scene.NewText(20, 90, "Hello <Canvas> & Forge")
	txt.Z = 2

	pic := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			pic.SetRGBA(x, y, color.RGBA{0, 128, 255, 255})
		}
	}
	ras := scene.NewRaster(120, 20, pic)
	ras.Name = "Badge"
	ras.Z = 3

	pth := scene.NewPath(30, 120, []scene.PathStep{
		{Op: "M", Args: []float64{0, 0}},
		{Op: "L", Args: []float64{40, 0}},
		{Op: "L", Args: []float64{20, 30}},
		{Op: "Z"},
	})
	pth.Fill = "#00ff00"
	pth.Z = 4

	return &scene.Document{
		Name:       "Test Canvas",
		Width:      200,
		Height:     160,
		Background: "#ffffff",
		Metadata:   scene.Metadata{Author: "A. Compositor"},
		Items:      []*scene.Item{rect, ell, txt, ras, pth},
	}
}

func sampleHandle(t *testing.T) *storage.DocumentHandle {
	t.Helper()
	dh, err := storage.InitWorkspace(t.TempDir(), sampleDocument())
	if err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	return dh
}

func TestExportPNG_SizeFollowsDPI(t *testing.T) {
	dh := sampleHandle(t)

	out, err := ExportPNG(dh, "flat.png", PNGOptions{})
	if err != nil {
		t.Fatalf("export png: %v", err)
	}
	if out != filepath.Join(dh.Root, "exports", "flat.png") {
		t.Fatalf("unexpected out path %s", out)
	}
	img, err := raster.LoadPNG(out)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 160 {
		t.Fatalf("default dpi should map 1:1, got %dx%d", b.Dx(), b.Dy())
	}

	out2, err := ExportPNG(dh, "flat2x.png", PNGOptions{DPI: 192})
	if err != nil {
		t.Fatalf("export png 2x: %v", err)
	}
	img2, err := raster.LoadPNG(out2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if b := img2.Bounds(); b.Dx() != 400 || b.Dy() != 320 {
		t.Fatalf("192 dpi should double, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestExportPNG_DefaultNameFromDocument(t *testing.T) {
	dh := sampleHandle(t)
	out, err := ExportPNG(dh, "", PNGOptions{})
	if err != nil {
		t.Fatalf("export png: %v", err)
	}
	if filepath.Base(out) != "test-canvas.png" {
		t.Fatalf("unexpected default name %s", filepath.Base(out))
	}
}

func TestExportPNG_EmptyCanvasFails(t *testing.T) {
	dh, err := storage.InitWorkspace(t.TempDir(), &scene.Document{Name: "Empty", Items: []*scene.Item{}})
	if err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	if _, err := ExportPNG(dh, "x.png", PNGOptions{}); err == nil {
		t.Fatalf("expected error for empty canvas")
	}
}

func TestExportSVG_ShapeOfOutput(t *testing.T) {
	dh := sampleHandle(t)
	out, err := ExportSVG(dh, "canvas.svg", SVGOptions{DPI: 96})
	if err != nil {
		t.Fatalf("export svg: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`viewBox="0 0 200 160"`,
		`width="200px"`,
		"<rect",
		"<ellipse",
		`fill-opacity=`, // ellipse carries #ff000080
		"Hello &lt;Canvas&gt; &amp; Forge",
		`<image`,
		"data:image/png;base64,",
		`<path d="M 0 0 L 40 0 L 20 30 Z"`,
		"</svg>",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("svg missing %q:\n%s", want, text)
		}
	}
}

func TestExportSVG_RotatedItemGetsTransform(t *testing.T) {
	doc := sampleDocument()
	doc.Items[0].Rotation = 45
	dh, err := storage.InitWorkspace(t.TempDir(), doc)
	if err != nil {
		t.Fatalf("init workspace: %v", err)
	}
	out, err := ExportSVG(dh, "rot.svg", SVGOptions{})
	if err != nil {
		t.Fatalf("export svg: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	// Pivot is the center of the 100x60 rect at (10,10).
	if !strings.Contains(string(data), `transform="rotate(45 60 40)"`) {
		t.Fatalf("rotation transform missing:\n%s", data)
	}
}

func TestExportPDF_CreatesFile(t *testing.T) {
	dh := sampleHandle(t)
	out, err := ExportPDF(dh, "canvas.pdf", PDFOptions{DPI: 96})
	if err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) == 0 || string(data[:5]) != "%PDF-" {
		t.Fatalf("output is not a pdf")
	}
}
