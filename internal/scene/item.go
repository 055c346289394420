/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package scene

import (
	"fmt"
	"image"
	"strconv"

	"github.com/google/uuid"

	"canvasforge/internal/vector"
)

// ItemKind identifies the concrete canvas item type.
type ItemKind string

const (
	KindRaster  ItemKind = "raster"
	KindRect    ItemKind = "rect"
	KindEllipse ItemKind = "ellipse"
	KindText    ItemKind = "text"
	KindPath    ItemKind = "path"
)

// PathStep is one command of a vector path in document form.
type PathStep struct {
	Op   string    `json:"op"` // M, L, Q, C, Z
	Args []float64 `json:"args,omitempty"`
}

// Item is a single element on the canvas. The same struct serves as the
// runtime object actions mutate and as the serialized manifest entry; only
// the decoded pixels of raster items live outside the manifest, as PNG
// assets referenced by ImageRef.
type Item struct {
	ID          string            `json:"id"`
	Kind        ItemKind          `json:"kind"`
	Name        string            `json:"name,omitempty"`
	X           float64           `json:"x"`
	Y           float64           `json:"y"`
	Z           int               `json:"z"`
	Width       float64           `json:"width"`
	Height      float64           `json:"height"`
	Rotation    float64           `json:"rotation,omitempty"` // degrees
	Scale       float64           `json:"scale,omitempty"`    // uniform; zero means 1
	Opacity     float64           `json:"opacity,omitempty"`  // 0..1; zero means 1
	Fill        string            `json:"fill,omitempty"`     // hex color
	Stroke      string            `json:"stroke,omitempty"`   // hex color
	StrokeWidth float64           `json:"strokeWidth,omitempty"`
	Text        string            `json:"text,omitempty"`
	Font        string            `json:"font,omitempty"`
	FontSize    float64           `json:"fontSize,omitempty"`
	ImageRef    string            `json:"imageRef,omitempty"`
	Path        []PathStep        `json:"path,omitempty"`
	Props       map[string]string `json:"props,omitempty"`

	// Image holds the decoded pixels of a raster item. Treated as
	// immutable: pixel edits replace the value instead of drawing into it,
	// so captured before-states stay valid.
	Image image.Image `json:"-"`
}

// NewID returns a fresh item identifier.
func NewID() string { return uuid.NewString() }

// NewRect creates a rectangle item with the default tool styling.
func NewRect(x, y, w, h float64) *Item {
	return &Item{
		ID: NewID(), Kind: KindRect,
		X: x, Y: y, Width: w, Height: h,
		Fill: "#6464ff64", Stroke: "#000000", StrokeWidth: 2,
	}
}

// NewEllipse creates an ellipse item with the default tool styling.
func NewEllipse(x, y, w, h float64) *Item {
	it := NewRect(x, y, w, h)
	it.Kind = KindEllipse
	return it
}

// NewText creates a text item with the default caption and font.
func NewText(x, y float64, text string) *Item {
	if text == "" {
		text = "Text"
	}
	return &Item{
		ID: NewID(), Kind: KindText,
		X: x, Y: y,
		Text: text, Font: "Arial", FontSize: 12,
		Fill: "#000000",
	}
}

// NewRaster creates a raster item sized to the image.
func NewRaster(x, y float64, img image.Image) *Item {
	it := &Item{ID: NewID(), Kind: KindRaster, X: x, Y: y}
	it.SetImage(img)
	return it
}

// NewPath creates a path item from document-form steps. The steps are in
// item-local coordinates; Width and Height follow the path bounds.
func NewPath(x, y float64, steps []PathStep) *Item {
	it := &Item{
		ID: NewID(), Kind: KindPath,
		X: x, Y: y, Path: steps,
		Stroke: "#000000", StrokeWidth: 2,
	}
	p := it.VectorPath()
	b := p.Bounds()
	it.Width = float64(b.W)
	it.Height = float64(b.H)
	return it
}

// DisplayName is the name shown in menus and undo descriptions.
func (it *Item) DisplayName() string {
	if it.Name != "" {
		return it.Name
	}
	return string(it.Kind)
}

// EffectiveScale maps the zero value to the identity scale.
func (it *Item) EffectiveScale() float64 {
	if it.Scale == 0 {
		return 1
	}
	return it.Scale
}

// EffectiveOpacity maps the zero value to fully opaque.
func (it *Item) EffectiveOpacity() float64 {
	if it.Opacity == 0 {
		return 1
	}
	return it.Opacity
}

// SetImage replaces the raster pixels and resizes the item to match.
func (it *Item) SetImage(img image.Image) {
	it.Image = img
	if img != nil {
		b := img.Bounds()
		it.Width = float64(b.Dx())
		it.Height = float64(b.Dy())
	}
}

// Bounds returns the item-local rectangle before any transform.
func (it *Item) Bounds() vector.Rect {
	return vector.R(0, 0, float32(it.Width), float32(it.Height))
}

// Transform returns the local-to-canvas mapping of the item, combining its
// position with scale and rotation about the local center.
func (it *Item) Transform() vector.Affine2D {
	return vector.ItemTransform(
		vector.Pt{X: float32(it.X), Y: float32(it.Y)},
		float32(it.Rotation),
		float32(it.EffectiveScale()),
		it.Bounds(),
	)
}

// CanvasBounds returns the axis-aligned canvas-space bounding box of the
// transformed item.
func (it *Item) CanvasBounds() vector.Rect {
	return it.Transform().ApplyRect(it.Bounds())
}

// VectorPath converts the document-form path steps to a drawable path.
func (it *Item) VectorPath() vector.Path {
	var p vector.Path
	for _, s := range it.Path {
		a := make([]float32, len(s.Args))
		for i, v := range s.Args {
			a[i] = float32(v)
		}
		switch s.Op {
		case "M":
			if len(a) >= 2 {
				p.MoveTo(a[0], a[1])
			}
		case "L":
			if len(a) >= 2 {
				p.LineTo(a[0], a[1])
			}
		case "Q":
			if len(a) >= 4 {
				p.QuadTo(a[0], a[1], a[2], a[3])
			}
		case "C":
			if len(a) >= 6 {
				p.CubicTo(a[0], a[1], a[2], a[3], a[4], a[5])
			}
		case "Z":
			p.Close()
		}
	}
	return p
}

// Clone returns a deep copy of the item keeping the same ID. Callers that
// duplicate an item onto the canvas assign a fresh ID afterwards. The
// raster pixels are shared, which is safe under the replace-not-mutate
// convention for Image.
func (it *Item) Clone() *Item {
	cp := *it
	if it.Path != nil {
		cp.Path = make([]PathStep, len(it.Path))
		for i, s := range it.Path {
			cp.Path[i] = PathStep{Op: s.Op, Args: append([]float64(nil), s.Args...)}
		}
	}
	if it.Props != nil {
		cp.Props = make(map[string]string, len(it.Props))
		for k, v := range it.Props {
			cp.Props[k] = v
		}
	}
	return &cp
}

// Property reads a named property as its string form. Built-in names cover
// geometry, styling and text; anything else reads from the free-form Props
// map, where the second return reports presence.
func (it *Item) Property(name string) (string, bool) {
	switch name {
	case "name":
		return it.Name, true
	case "x":
		return formatFloat(it.X), true
	case "y":
		return formatFloat(it.Y), true
	case "z":
		return strconv.Itoa(it.Z), true
	case "width":
		return formatFloat(it.Width), true
	case "height":
		return formatFloat(it.Height), true
	case "rotation":
		return formatFloat(it.Rotation), true
	case "scale":
		return formatFloat(it.EffectiveScale()), true
	case "opacity":
		return formatFloat(it.EffectiveOpacity()), true
	case "fill":
		return it.Fill, true
	case "stroke":
		return it.Stroke, true
	case "strokeWidth":
		return formatFloat(it.StrokeWidth), true
	case "text":
		return it.Text, true
	case "font":
		return it.Font, true
	case "fontSize":
		return formatFloat(it.FontSize), true
	}
	v, ok := it.Props[name]
	return v, ok
}

// SetProperty writes a named property from its string form. Unknown names
// land in the Props map so plugins and macros can attach their own state.
func (it *Item) SetProperty(name, value string) error {
	switch name {
	case "name":
		it.Name = value
	case "x":
		return setFloat(&it.X, name, value)
	case "y":
		return setFloat(&it.Y, name, value)
	case "z":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("property z: %w", err)
		}
		it.Z = n
	case "width":
		return setFloat(&it.Width, name, value)
	case "height":
		return setFloat(&it.Height, name, value)
	case "rotation":
		return setFloat(&it.Rotation, name, value)
	case "scale":
		return setFloat(&it.Scale, name, value)
	case "opacity":
		return setFloat(&it.Opacity, name, value)
	case "fill":
		it.Fill = value
	case "stroke":
		it.Stroke = value
	case "strokeWidth":
		return setFloat(&it.StrokeWidth, name, value)
	case "text":
		it.Text = value
	case "font":
		it.Font = value
	case "fontSize":
		return setFloat(&it.FontSize, name, value)
	default:
		if it.Props == nil {
			it.Props = make(map[string]string)
		}
		it.Props[name] = value
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func setFloat(dst *float64, name, value string) error {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("property %s: %w", name, err)
	}
	*dst = v
	return nil
}
