/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Path commands for vector art items.

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	QuadTo  // quadratic bezier (cx, cy, x, y)
	CubicTo // cubic bezier (cx1, cy1, cx2, cy2, x, y)
	Close
)

type PathCmd struct {
	Op   PathOp
	Data [6]float32 // enough for cubic; unused slots are zero
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float32) {
	p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, Data: [6]float32{x, y}})
}
func (p *Path) LineTo(x, y float32) {
	p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, Data: [6]float32{x, y}})
}
func (p *Path) QuadTo(cx, cy, x, y float32) {
	p.Cmds = append(p.Cmds, PathCmd{Op: QuadTo, Data: [6]float32{cx, cy, x, y}})
}
func (p *Path) CubicTo(cx1, cy1, cx2, cy2, x, y float32) {
	p.Cmds = append(p.Cmds, PathCmd{Op: CubicTo, Data: [6]float32{cx1, cy1, cx2, cy2, x, y}})
}
func (p *Path) Close() { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// argCount returns how many coordinate pairs a command carries.
func (c PathCmd) argCount() int {
	switch c.Op {
	case MoveTo, LineTo:
		return 1
	case QuadTo:
		return 2
	case CubicTo:
		return 3
	default:
		return 0
	}
}

// Transformed returns a copy of the path with m applied to every control
// point. Exporters use this to bake item transforms into path data.
func (p *Path) Transformed(m Affine2D) Path {
	out := Path{Cmds: make([]PathCmd, len(p.Cmds))}
	for i, c := range p.Cmds {
		nc := PathCmd{Op: c.Op}
		for j := 0; j < c.argCount(); j++ {
			pt := m.Apply(Pt{c.Data[2*j], c.Data[2*j+1]})
			nc.Data[2*j] = pt.X
			nc.Data[2*j+1] = pt.Y
		}
		out.Cmds[i] = nc
	}
	return out
}

// Bounds returns an axis-aligned bounding box of the path using a simple
// approximation by considering control points. This is sufficient for
// placement and eviction checks; exporters can use tighter bounds later.
func (p *Path) Bounds() Rect {
	minX, minY := float32(+1e9), float32(+1e9)
	maxX, maxY := float32(-1e9), float32(-1e9)
	cur := Pt{}
	grow := func(pts ...Pt) {
		for _, q := range pts {
			if q.X < minX {
				minX = q.X
			}
			if q.Y < minY {
				minY = q.Y
			}
			if q.X > maxX {
				maxX = q.X
			}
			if q.Y > maxY {
				maxY = q.Y
			}
		}
	}
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo, LineTo:
			cur = Pt{c.Data[0], c.Data[1]}
			grow(cur)
		case QuadTo:
			grow(cur, Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]})
			cur = Pt{c.Data[2], c.Data[3]}
		case CubicTo:
			grow(cur, Pt{c.Data[0], c.Data[1]}, Pt{c.Data[2], c.Data[3]}, Pt{c.Data[4], c.Data[5]})
			cur = Pt{c.Data[4], c.Data[5]}
		case Close:
			// no-op for bounds
		}
	}
	if minX > maxX || minY > maxY {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Flatten converts the path into polyline contours, subdividing curves into
// the given number of segments per curve (minimum 1). A Close command links
// back to the contour start.
func (p *Path) Flatten(steps int) [][]Pt {
	if steps < 1 {
		steps = 1
	}
	var contours [][]Pt
	var cur []Pt
	var start Pt
	pos := Pt{}
	flush := func() {
		if len(cur) > 1 {
			contours = append(contours, cur)
		}
		cur = nil
	}
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo:
			flush()
			pos = Pt{c.Data[0], c.Data[1]}
			start = pos
			cur = append(cur, pos)
		case LineTo:
			pos = Pt{c.Data[0], c.Data[1]}
			cur = append(cur, pos)
		case QuadTo:
			c1 := Pt{c.Data[0], c.Data[1]}
			end := Pt{c.Data[2], c.Data[3]}
			for i := 1; i <= steps; i++ {
				t := float32(i) / float32(steps)
				u := 1 - t
				q := Pt{
					X: u*u*pos.X + 2*u*t*c1.X + t*t*end.X,
					Y: u*u*pos.Y + 2*u*t*c1.Y + t*t*end.Y,
				}
				cur = append(cur, q)
			}
			pos = end
		case CubicTo:
			c1 := Pt{c.Data[0], c.Data[1]}
			c2 := Pt{c.Data[2], c.Data[3]}
			end := Pt{c.Data[4], c.Data[5]}
			for i := 1; i <= steps; i++ {
				t := float32(i) / float32(steps)
				u := 1 - t
				q := Pt{
					X: u*u*u*pos.X + 3*u*u*t*c1.X + 3*u*t*t*c2.X + t*t*t*end.X,
					Y: u*u*u*pos.Y + 3*u*u*t*c1.Y + 3*u*t*t*c2.Y + t*t*t*end.Y,
				}
				cur = append(cur, q)
			}
			pos = end
		case Close:
			if len(cur) > 0 {
				cur = append(cur, start)
				pos = start
			}
		}
	}
	flush()
	return contours
}
