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
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"strings"

	"canvasforge/internal/raster"
	"canvasforge/internal/scene"
	"canvasforge/internal/storage"
	"canvasforge/internal/vector"
)

// SVGOptions controls SVG export behavior.
// - DPI sets the pixel size hint on the svg element; the viewBox keeps
//   canvas units, so the output scales without loss either way.
// - Background as in PNGOptions.
type SVGOptions struct {
	DPI        int
	Background string
}

// ExportSVG writes the canvas as one SVG file, items in stacking order.
// Shapes, text and paths stay vector; raster items are embedded as
// base64 PNG. Fonts are referenced by family name, not embedded.
func ExportSVG(dh *storage.DocumentHandle, outPath string, opt SVGOptions) (string, error) {
	if dh == nil || dh.Doc == nil {
		return "", fmt.Errorf("document handle is nil")
	}
	sc := scene.FromDocument(dh.Doc)
	region := sc.CanvasRect()
	if region.Empty() {
		return "", fmt.Errorf("nothing to export")
	}
	k := renderScale(opt.DPI)
	pxW := int(math.Round(float64(region.W) * k))
	pxH := int(math.Round(float64(region.H) * k))

	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}

	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" xmlns:xlink=\"http://www.w3.org/1999/xlink\" version=\"1.1\" width=\"%dpx\" height=\"%dpx\" viewBox=\"%g %g %g %g\">\n",
		pxW, pxH, float64(region.X), float64(region.Y), float64(region.W), float64(region.H))

	if rgb, a, ok := svgPaint(exportBackground(opt.Background, sc.Background)); ok {
		wf("  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" fill=\"%s\"%s/>\n",
			float64(region.X), float64(region.Y), float64(region.W), float64(region.H), rgb, alphaAttr("fill-opacity", a))
	}

	for _, it := range sc.ByZ() {
		writeItemSVG(wf, it)
	}
	wf("</svg>\n")

	if werr != nil {
		return "", fmt.Errorf("build svg: %w", werr)
	}
	out, err := resolveOut(dh.Root, outPath, exportName(dh.Doc.Name)+".svg")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write svg: %w", err)
	}
	return out, nil
}

// writeItemSVG emits one item. Geometry is pre-scaled so only rotation
// needs a transform; that keeps the common case free of groups.
func writeItemSVG(wf func(string, ...any), it *scene.Item) {
	k := it.EffectiveScale()
	sw := it.Width * k
	sh := it.Height * k
	rot := rotateAttr(it, sw, sh)

	switch it.Kind {
	case scene.KindRect:
		if sw <= 0 || sh <= 0 {
			return
		}
		wf("  <rect x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\"%s%s/>\n",
			it.X, it.Y, sw, sh, paintAttrs(it, k), rot)
	case scene.KindEllipse:
		if sw <= 0 || sh <= 0 {
			return
		}
		wf("  <ellipse cx=\"%g\" cy=\"%g\" rx=\"%g\" ry=\"%g\"%s%s/>\n",
			it.X+sw/2, it.Y+sh/2, sw/2, sh/2, paintAttrs(it, k), rot)
	case scene.KindText:
		if it.Text == "" {
			return
		}
		fsz := it.FontSize
		if fsz <= 0 {
			fsz = 12
		}
		fsz *= k
		font := it.Font
		if font == "" {
			font = "Helvetica, Arial, sans-serif"
		}
		// Baseline sits roughly one ascent below the item origin.
		wf("  <text x=\"%g\" y=\"%g\" font-family=\"%s\" font-size=\"%g\"%s%s>%s</text>\n",
			it.X, it.Y+fsz*0.8, escAttr(font), fsz, paintAttrs(it, k), rot, escText(it.Text))
	case scene.KindPath:
		d := pathData(it)
		if d == "" {
			return
		}
		tf := fmt.Sprintf("translate(%g %g)", it.X, it.Y)
		if k != 1 {
			tf += fmt.Sprintf(" scale(%g)", k)
		}
		if it.Rotation != 0 {
			tf = fmt.Sprintf("rotate(%g %g %g) ", it.Rotation, it.X+sw/2, it.Y+sh/2) + tf
		}
		// Stroke width stays local: the scale in the transform applies it.
		wf("  <path d=\"%s\"%s transform=\"%s\"/>\n", d, paintAttrs(it, 1), tf)
	case scene.KindRaster:
		if it.Image == nil {
			return
		}
		data, err := raster.EncodePNG(it.Image)
		if err != nil {
			return
		}
		wf("  <image x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\"%s%s xlink:href=\"data:image/png;base64,%s\"/>\n",
			it.X, it.Y, sw, sh, opacityAttr(it), rot, base64.StdEncoding.EncodeToString(data))
	}
}

// rotateAttr returns the transform attribute for a rotated item. The
// pivot is the center of the scaled bounds, matching the compositor.
func rotateAttr(it *scene.Item, sw, sh float64) string {
	if it.Rotation == 0 || it.Kind == scene.KindPath {
		return ""
	}
	return fmt.Sprintf(" transform=\"rotate(%g %g %g)\"", it.Rotation, it.X+sw/2, it.Y+sh/2)
}

func paintAttrs(it *scene.Item, k float64) string {
	var b strings.Builder
	if rgb, a, ok := svgPaint(it.Fill); ok {
		fmt.Fprintf(&b, " fill=\"%s\"%s", rgb, alphaAttr("fill-opacity", a))
	} else {
		b.WriteString(" fill=\"none\"")
	}
	if rgb, a, ok := svgPaint(it.Stroke); ok && it.StrokeWidth > 0 {
		fmt.Fprintf(&b, " stroke=\"%s\" stroke-width=\"%g\"%s", rgb, it.StrokeWidth*k, alphaAttr("stroke-opacity", a))
	}
	b.WriteString(opacityAttr(it))
	return b.String()
}

func opacityAttr(it *scene.Item) string {
	if a := it.EffectiveOpacity(); a < 1 {
		return fmt.Sprintf(" opacity=\"%.3g\"", a)
	}
	return ""
}

func alphaAttr(name string, a float64) string {
	if a >= 1 {
		return ""
	}
	return fmt.Sprintf(" %s=\"%.3g\"", name, a)
}

// svgPaint splits a hex color into the SVG rgb form and an alpha.
func svgPaint(hex string) (string, float64, bool) {
	if hex == "" {
		return "", 0, false
	}
	c, err := vector.ParseHex(hex)
	if err != nil || c.A == 0 {
		return "", 0, false
	}
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B), float64(c.A) / 255, true
}

// pathData renders the document-form path steps as SVG path data.
func pathData(it *scene.Item) string {
	var b strings.Builder
	for _, s := range it.Path {
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(s.Op)
		for _, a := range s.Args {
			fmt.Fprintf(&b, " %g", a)
		}
	}
	return b.String()
}

func escAttr(s string) string {
	// naive escaping sufficient for font family names
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '"':
			out = append(out, '&', 'q', 'u', 'o', 't', ';')
		case '\n':
			out = append(out, ' ')
		case '\r':
			// skip
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}

func escText(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch ch {
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '>':
			out = append(out, '&', 'g', 't', ';')
		default:
			out = append(out, ch)
		}
	}
	return string(out)
}
