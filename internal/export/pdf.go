/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"canvasforge/internal/raster"
	"canvasforge/internal/scene"
	"canvasforge/internal/storage"
	"canvasforge/internal/version"
)

// PDFOptions controls PDF export behavior.
// - DPI: resolution of the embedded flattened raster; zero means 300.
// - Background as in PNGOptions.
//
// The page is sized so the canvas keeps its physical dimensions: one
// canvas unit is 1/96 inch, PDF units are points at 1/72 inch.
type PDFOptions struct {
	DPI        int
	Background string
}

// ExportPDF renders the flattened canvas and places it on a single PDF
// page sized to the canvas.
func ExportPDF(dh *storage.DocumentHandle, outPath string, opt PDFOptions) (string, error) {
	if dh == nil || dh.Doc == nil {
		return "", fmt.Errorf("document handle is nil")
	}
	dpi := opt.DPI
	if dpi <= 0 {
		dpi = 300
	}
	sc := scene.FromDocument(dh.Doc)
	region := sc.CanvasRect()
	if region.Empty() {
		return "", fmt.Errorf("nothing to export")
	}
	img, err := raster.Render(sc, raster.Options{
		Background: exportBackground(opt.Background, sc.Background),
		Scale:      renderScale(dpi),
		Provider:   workspaceFonts(dh.Root),
	})
	if err != nil {
		return "", fmt.Errorf("render canvas: %w", err)
	}
	data, err := raster.EncodePNG(img)
	if err != nil {
		return "", fmt.Errorf("encode canvas: %w", err)
	}

	ptW := float64(region.W) * 72 / baseDPI
	ptH := float64(region.H) * 72 / baseDPI
	pdf := gofpdf.NewCustom(&gofpdf.InitType{
		UnitStr: "pt",
		Size:    gofpdf.SizeType{Wd: ptW, Ht: ptH},
	})
	pdf.SetTitle(dh.Doc.Name, true)
	if a := dh.Doc.Metadata.Author; a != "" {
		pdf.SetAuthor(a, true)
	}
	pdf.SetCreator("CanvasForge "+version.String(), true)
	pdf.AddPageFormat("", gofpdf.SizeType{Wd: ptW, Ht: ptH})

	iopt := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("canvas", iopt, bytes.NewReader(data))
	pdf.ImageOptions("canvas", 0, 0, ptW, ptH, false, iopt, 0, "")

	out, err := resolveOut(dh.Root, outPath, exportName(dh.Doc.Name)+".pdf")
	if err != nil {
		return "", err
	}
	if err := pdf.OutputFileAndClose(out); err != nil {
		return "", fmt.Errorf("write pdf: %w", err)
	}
	return out, nil
}
