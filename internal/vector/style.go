/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Hex color parsing and the shared palette for shape and path items.

import "fmt"

type Color struct{ R, G, B, A uint8 }

var (
	Black       = Color{0, 0, 0, 255}
	White       = Color{255, 255, 255, 255}
	Transparent = Color{0, 0, 0, 0}
)

// Hex renders the color as "#rrggbb", or "#rrggbbaa" when not fully opaque.
// Document JSON and the SVG exporter store colors in this form.
func (c Color) Hex() string {
	if c.A == 255 {
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// ParseHex parses "#rgb", "#rrggbb" or "#rrggbbaa".
func ParseHex(s string) (Color, error) {
	if len(s) == 0 || s[0] != '#' {
		return Color{}, fmt.Errorf("invalid color %q: missing '#'", s)
	}
	hexVal := func(b byte) (uint8, bool) {
		switch {
		case b >= '0' && b <= '9':
			return b - '0', true
		case b >= 'a' && b <= 'f':
			return b - 'a' + 10, true
		case b >= 'A' && b <= 'F':
			return b - 'A' + 10, true
		}
		return 0, false
	}
	byteAt := func(i int) (uint8, bool) {
		hi, ok1 := hexVal(s[i])
		lo, ok2 := hexVal(s[i+1])
		return hi<<4 | lo, ok1 && ok2
	}
	switch len(s) {
	case 4: // #rgb
		var out [3]uint8
		for i := 0; i < 3; i++ {
			v, ok := hexVal(s[1+i])
			if !ok {
				return Color{}, fmt.Errorf("invalid color %q", s)
			}
			out[i] = v<<4 | v
		}
		return Color{out[0], out[1], out[2], 255}, nil
	case 7: // #rrggbb
		r, ok1 := byteAt(1)
		g, ok2 := byteAt(3)
		b, ok3 := byteAt(5)
		if !ok1 || !ok2 || !ok3 {
			return Color{}, fmt.Errorf("invalid color %q", s)
		}
		return Color{r, g, b, 255}, nil
	case 9: // #rrggbbaa
		r, ok1 := byteAt(1)
		g, ok2 := byteAt(3)
		b, ok3 := byteAt(5)
		a, ok4 := byteAt(7)
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return Color{}, fmt.Errorf("invalid color %q", s)
		}
		return Color{r, g, b, a}, nil
	}
	return Color{}, fmt.Errorf("invalid color %q: bad length", s)
}
