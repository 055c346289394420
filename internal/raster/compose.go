/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package raster

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"sort"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"canvasforge/internal/scene"
	"canvasforge/internal/textlayout"
	"canvasforge/internal/vector"
)

// ErrNothingToRender is returned when the scene or selection covers no area.
var ErrNothingToRender = errors.New("raster: nothing to render")

// Options controls scene compositing.
// - Background: hex color painted first; overrides the scene background when
//   set. Empty with no scene background leaves the output transparent.
// - Scale: output pixels per canvas unit; zero means 1.
// - Provider: font resolution for text items; nil falls back to the
//   built-in bitmap face.
type Options struct {
	Background string
	Scale      float64
	Provider   textlayout.Provider
}

// Render composites the whole canvas into an image, items in stacking
// order, bottom first.
func Render(s *scene.Scene, opt Options) (*image.RGBA, error) {
	region := s.CanvasRect()
	if region.Empty() {
		return nil, ErrNothingToRender
	}
	if opt.Background == "" {
		opt.Background = s.Background
	}
	return renderRegion(s.ByZ(), region, opt)
}

// RenderItems composites just the given items over a transparent background,
// sized to their union bounds. The returned rect is that union in canvas
// coordinates, so the caller knows where the pixels belong.
func RenderItems(s *scene.Scene, ids []string, opt Options) (*image.RGBA, vector.Rect, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var items []*scene.Item
	var region vector.Rect
	for _, it := range s.ByZ() {
		if !want[it.ID] {
			continue
		}
		b := it.CanvasBounds()
		if len(items) == 0 {
			region = b
		} else {
			region = region.Union(b)
		}
		items = append(items, it)
	}
	if len(items) == 0 || region.Empty() {
		return nil, vector.Rect{}, ErrNothingToRender
	}
	img, err := renderRegion(items, region, opt)
	return img, region, err
}

func renderRegion(items []*scene.Item, region vector.Rect, opt Options) (*image.RGBA, error) {
	k := opt.Scale
	if k <= 0 {
		k = 1
	}
	w := int(math.Ceil(float64(region.W) * k))
	h := int(math.Ceil(float64(region.H) * k))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if opt.Background != "" {
		bg := paintColor(opt.Background, color.RGBA{})
		draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	}

	view := vector.Scale(float32(k), float32(k)).Mul(vector.Translate(-region.X, -region.Y))
	for _, it := range items {
		tile := renderTile(it, opt.Provider)
		if tile == nil {
			continue
		}
		if a := it.EffectiveOpacity(); a < 1 {
			tile = withOpacity(tile, a)
		}
		m := view.Mul(it.Transform())
		aff := f64.Aff3{
			float64(m.A), float64(m.C), float64(m.E),
			float64(m.B), float64(m.D), float64(m.F),
		}
		xdraw.CatmullRom.Transform(dst, aff, tile, tile.Bounds(), xdraw.Over, nil)
	}
	return dst, nil
}

func renderTile(it *scene.Item, provider textlayout.Provider) *image.RGBA {
	switch it.Kind {
	case scene.KindRaster:
		if it.Image == nil {
			return nil
		}
		return ToRGBA(it.Image)
	case scene.KindRect:
		return rectTile(it)
	case scene.KindEllipse:
		return ellipseTile(it)
	case scene.KindText:
		return textTile(it, provider)
	case scene.KindPath:
		return pathTile(it)
	}
	return nil
}

func rectTile(it *scene.Item) *image.RGBA {
	w, h := tileSize(it.Width, it.Height)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	if fill, ok := paintColorWhen(it.Fill); ok {
		draw.Draw(img, img.Bounds(), &image.Uniform{C: fill}, image.Point{}, draw.Src)
	}
	if stroke, ok := paintColorWhen(it.Stroke); ok && it.StrokeWidth > 0 {
		sw := int(math.Round(it.StrokeWidth))
		if sw < 1 {
			sw = 1
		}
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				if x < sw || y < sw || x >= w-sw || y >= h-sw {
					img.SetRGBA(x, y, stroke)
				}
			}
		}
	}
	return img
}

func ellipseTile(it *scene.Item) *image.RGBA {
	w, h := tileSize(it.Width, it.Height)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill, hasFill := paintColorWhen(it.Fill)
	stroke, hasStroke := paintColorWhen(it.Stroke)
	if it.StrokeWidth <= 0 {
		hasStroke = false
	}
	rx := float64(w) / 2
	ry := float64(h) / 2
	irx := rx - it.StrokeWidth
	iry := ry - it.StrokeWidth
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx := (float64(x) + 0.5 - rx) / rx
			dy := (float64(y) + 0.5 - ry) / ry
			if dx*dx+dy*dy > 1 {
				continue
			}
			if hasStroke {
				inner := false
				if irx > 0 && iry > 0 {
					ix := (float64(x) + 0.5 - rx) / irx
					iy := (float64(y) + 0.5 - ry) / iry
					inner = ix*ix+iy*iy <= 1
				}
				if !inner {
					img.SetRGBA(x, y, stroke)
					continue
				}
			}
			if hasFill {
				img.SetRGBA(x, y, fill)
			}
		}
	}
	return img
}

func textTile(it *scene.Item, provider textlayout.Provider) *image.RGBA {
	spec := textlayout.FontSpec{Family: it.Font, SizePt: float32(it.FontSize)}
	maxW := float32(it.Width)
	box := textlayout.Layout(provider, it.Text, spec, maxW)
	w := it.Width
	if w <= 0 {
		w = float64(box.Width)
	}
	h := it.Height
	if h <= 0 {
		h = float64(box.Height)
	}
	tw, th := tileSize(w, h)
	img := image.NewRGBA(image.Rect(0, 0, tw, th))
	col := paintColor(it.Fill, color.RGBA{A: 255})
	textlayout.Draw(img, provider, it.Text, spec, col, 0, 0, maxW)
	return img
}

func pathTile(it *scene.Item) *image.RGBA {
	p := it.VectorPath()
	b := p.Bounds()
	// The pen extends past the path bounds by half the stroke width.
	var pad float64
	if it.Stroke != "" && it.StrokeWidth > 0 {
		pad = it.StrokeWidth/2 + 1
	}
	w, h := tileSize(float64(b.X+b.W)+pad, float64(b.Y+b.H)+pad)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	contours := p.Flatten(16)
	if fill, ok := paintColorWhen(it.Fill); ok {
		fillContours(img, contours, fill)
	}
	if stroke, ok := paintColorWhen(it.Stroke); ok && it.StrokeWidth > 0 {
		strokeContours(img, contours, stroke, float32(it.StrokeWidth))
	}
	return img
}

// fillContours paints the even-odd interior of the contours scanline by
// scanline.
func fillContours(img *image.RGBA, contours [][]vector.Pt, col color.RGBA) {
	b := img.Bounds()
	xs := make([]float64, 0, 8)
	for y := 0; y < b.Dy(); y++ {
		fy := float32(y) + 0.5
		xs = xs[:0]
		for _, c := range contours {
			for i := 0; i+1 < len(c); i++ {
				p1, p2 := c[i], c[i+1]
				if (p1.Y <= fy) == (p2.Y <= fy) {
					continue
				}
				t := (fy - p1.Y) / (p2.Y - p1.Y)
				xs = append(xs, float64(p1.X+t*(p2.X-p1.X)))
			}
		}
		sort.Float64s(xs)
		for i := 0; i+1 < len(xs); i += 2 {
			x0 := int(math.Ceil(xs[i] - 0.5))
			x1 := int(math.Floor(xs[i+1] - 0.5))
			for x := x0; x <= x1; x++ {
				if x >= 0 && x < b.Dx() {
					img.SetRGBA(x, y, col)
				}
			}
		}
	}
}

// strokeContours stamps a round pen along every segment.
func strokeContours(img *image.RGBA, contours [][]vector.Pt, col color.RGBA, width float32) {
	r := width / 2
	if r < 0.5 {
		r = 0.5
	}
	for _, c := range contours {
		for i := 0; i+1 < len(c); i++ {
			a, b := c[i], c[i+1]
			dx, dy := b.X-a.X, b.Y-a.Y
			dist := math.Hypot(float64(dx), float64(dy))
			steps := int(dist*2) + 1
			for s := 0; s <= steps; s++ {
				t := float32(s) / float32(steps)
				stampDisc(img, a.X+t*dx, a.Y+t*dy, r, col)
			}
		}
	}
}

func stampDisc(img *image.RGBA, cx, cy, r float32, col color.RGBA) {
	b := img.Bounds()
	x0 := int(cx - r - 1)
	x1 := int(cx + r + 1)
	y0 := int(cy - r - 1)
	y1 := int(cy + r + 1)
	for y := y0; y <= y1; y++ {
		if y < 0 || y >= b.Dy() {
			continue
		}
		for x := x0; x <= x1; x++ {
			if x < 0 || x >= b.Dx() {
				continue
			}
			ddx := float32(x) + 0.5 - cx
			ddy := float32(y) + 0.5 - cy
			if ddx*ddx+ddy*ddy <= r*r {
				img.SetRGBA(x, y, col)
			}
		}
	}
}

func tileSize(w, h float64) (int, int) {
	tw := int(math.Ceil(w))
	th := int(math.Ceil(h))
	if tw < 1 {
		tw = 1
	}
	if th < 1 {
		th = 1
	}
	return tw, th
}

// paintColor parses a hex color into the alpha-premultiplied form the
// stdlib RGBA image expects, applying the fallback for empty or malformed
// input.
func paintColor(hex string, fallback color.RGBA) color.RGBA {
	c, err := vector.ParseHex(hex)
	if err != nil {
		return fallback
	}
	return premul(c)
}

func paintColorWhen(hex string) (color.RGBA, bool) {
	if hex == "" {
		return color.RGBA{}, false
	}
	c, err := vector.ParseHex(hex)
	if err != nil {
		return color.RGBA{}, false
	}
	return premul(c), true
}

func premul(c vector.Color) color.RGBA {
	a := uint16(c.A)
	return color.RGBA{
		R: uint8(uint16(c.R) * a / 255),
		G: uint8(uint16(c.G) * a / 255),
		B: uint8(uint16(c.B) * a / 255),
		A: c.A,
	}
}

// withOpacity scales all premultiplied channels by a, leaving src intact.
func withOpacity(src *image.RGBA, a float64) *image.RGBA {
	out := image.NewRGBA(src.Bounds())
	copy(out.Pix, src.Pix)
	for i := 0; i < len(out.Pix); i++ {
		out.Pix[i] = uint8(float64(out.Pix[i]) * a)
	}
	return out
}
