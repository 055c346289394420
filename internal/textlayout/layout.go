/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package textlayout

// Text measurement, line breaking and glyph drawing for canvas text items.
// Everything is behind deterministic interfaces so tests can run on the
// built-in bitmap face while real documents resolve OpenType fonts.

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// FontSpec describes a requested font.
type FontSpec struct {
	Family string // logical family name
	SizePt float32
	Weight int // 100..900
	Italic bool
}

// Metrics provides font metrics in pixels for the resolved face.
type Metrics struct {
	Ascent, Descent, LineGap float32
}

// Line is a single laid out line with its measured width.
type Line struct {
	Text  string
	Width float32
}

// TextBox is the result of laying out a text item's content into a box.
type TextBox struct {
	Lines   []Line
	Width   float32
	Height  float32
	Metrics Metrics
}

// Provider maps FontSpec to a concrete font.Face.
type Provider interface {
	Resolve(FontSpec) (font.Face, Metrics)
}

// BasicProvider uses x/image basicfont Face7x13 for deterministic tests.
type BasicProvider struct{}

func (BasicProvider) Resolve(spec FontSpec) (font.Face, Metrics) {
	f := basicfont.Face7x13
	m := f.Metrics()
	return f, Metrics{
		Ascent:  float32(m.Ascent.Round()),
		Descent: float32(m.Descent.Round()),
		LineGap: float32(m.Height.Round() - m.Ascent.Round() - m.Descent.Round()),
	}
}

// Layout breaks the text on spaces and explicit newlines so no line exceeds
// maxWidth. A maxWidth of zero disables wrapping; a single word longer than
// the box is kept whole on its own line. No shaping or hyphenation.
func Layout(provider Provider, text string, spec FontSpec, maxWidth float32) TextBox {
	if provider == nil {
		provider = BasicProvider{}
	}
	face, met := provider.Resolve(spec)
	drawer := &font.Drawer{Face: face}

	box := TextBox{Metrics: met}
	var cur Line
	addLine := func() {
		box.Lines = append(box.Lines, cur)
		if cur.Width > box.Width {
			box.Width = cur.Width
		}
		box.Height += met.Ascent + met.Descent + met.LineGap
		cur = Line{}
	}

	start := 0
	for i := 0; i <= len(text); i++ {
		if i < len(text) && text[i] != ' ' && text[i] != '\n' {
			continue
		}
		word := text[start:i]
		var sep byte
		if i < len(text) {
			sep = text[i]
		}
		w := advance(drawer, word)
		if cur.Width > 0 && maxWidth > 0 && cur.Width+w > maxWidth {
			addLine()
		}
		if word != "" {
			cur.Text += word
			cur.Width += w
		}
		if sep == ' ' {
			cur.Text += " "
			cur.Width += advance(drawer, " ")
		} else if sep == '\n' {
			addLine()
		}
		start = i + 1
	}
	if cur.Text != "" || len(box.Lines) == 0 {
		addLine()
	}
	return box
}

// Measure returns the unwrapped width and single-line height of the text.
func Measure(provider Provider, text string, spec FontSpec) (w, h float32) {
	if provider == nil {
		provider = BasicProvider{}
	}
	face, met := provider.Resolve(spec)
	d := &font.Drawer{Face: face}
	return advance(d, text), met.Ascent + met.Descent
}

// Draw renders the laid out text into dst with its top-left corner at
// (x, y), painting every glyph in the given color.
func Draw(dst *image.RGBA, provider Provider, text string, spec FontSpec, col color.Color, x, y, maxWidth float32) {
	if provider == nil {
		provider = BasicProvider{}
	}
	face, met := provider.Resolve(spec)
	box := Layout(provider, text, spec, maxWidth)
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(col),
		Face: face,
	}
	baseline := y + met.Ascent
	for _, ln := range box.Lines {
		d.Dot = fixed.Point26_6{
			X: fixed.Int26_6(x * 64),
			Y: fixed.Int26_6(baseline * 64),
		}
		d.DrawString(ln.Text)
		baseline += met.Ascent + met.Descent + met.LineGap
	}
}

func advance(d *font.Drawer, s string) float32 {
	return float32(d.MeasureString(s) >> 6) // fixed.Int26_6 to px
}
