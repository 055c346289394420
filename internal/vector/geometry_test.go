/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"testing"
)

func TestRectContainsAndInset(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("expected edge points to be contained")
	}
	in := r.Inset(5, 5)
	if in.X != 15 || in.Y != 25 || in.W != 90 || in.H != 40 {
		t.Fatalf("unexpected inset: %+v", in)
	}
}

func TestRectUnionAndIntersect(t *testing.T) {
	a := R(0, 0, 10, 10)
	b := R(5, 5, 10, 10)
	u := a.Union(b)
	if u.X != 0 || u.Y != 0 || u.W != 15 || u.H != 15 {
		t.Fatalf("unexpected union: %+v", u)
	}
	i := a.Intersect(b)
	if i.X != 5 || i.Y != 5 || i.W != 5 || i.H != 5 {
		t.Fatalf("unexpected intersection: %+v", i)
	}
	if got := a.Intersect(R(20, 20, 5, 5)); !got.Empty() {
		t.Fatalf("disjoint rects should intersect to empty, got %+v", got)
	}
}

func TestAffineBasic(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 { // (1*2+10, 1*3+5)
		t.Fatalf("unexpected transform result: %+v", p)
	}
}

func TestRotateAboutKeepsPivot(t *testing.T) {
	pivot := Pt{50, 25}
	m := RotateAbout(float32(math.Pi/2), pivot)
	got := m.Apply(pivot)
	if FloatRound(got.X, 3) != pivot.X || FloatRound(got.Y, 3) != pivot.Y {
		t.Fatalf("pivot moved under rotation: %+v", got)
	}
	// a point 10 right of the pivot lands 10 below it
	got = m.Apply(Pt{60, 25})
	if FloatRound(got.X, 3) != 50 || FloatRound(got.Y, 3) != 35 {
		t.Fatalf("unexpected rotated point: %+v", got)
	}
}

func TestApplyRectBoundsRotation(t *testing.T) {
	r := R(0, 0, 10, 10)
	b := Rotate(float32(math.Pi / 2)).ApplyRect(r)
	if FloatRound(b.W, 3) != 10 || FloatRound(b.H, 3) != 10 {
		t.Fatalf("rotated square should keep extents: %+v", b)
	}
}

func TestItemTransformPlacesOrigin(t *testing.T) {
	m := ItemTransform(Pt{100, 40}, 0, 2, R(0, 0, 10, 10))
	got := m.Apply(Pt{0, 0})
	if got.X != 100 || got.Y != 40 {
		t.Fatalf("origin misplaced: %+v", got)
	}
	got = m.Apply(Pt{10, 10})
	if got.X != 120 || got.Y != 60 {
		t.Fatalf("scale not applied about origin: %+v", got)
	}
}
