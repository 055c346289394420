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
	"encoding/json"
	"testing"
)

func TestAddRemoveGet(t *testing.T) {
	s := New("test")
	it := NewRect(10, 20, 100, 50)
	s.Add(it)
	if !s.Has(it.ID) || s.Len() != 1 {
		t.Fatalf("expected one item, len=%d", s.Len())
	}
	got, ok := s.Get(it.ID)
	if !ok || got != it {
		t.Fatal("Get must return the registered item")
	}
	// Adding the same ID again must not duplicate.
	s.Add(it)
	if s.Len() != 1 {
		t.Fatalf("duplicate add, len=%d", s.Len())
	}
	if !s.Remove(it.ID) {
		t.Fatal("remove reported absent item")
	}
	if s.Has(it.ID) || s.Len() != 0 {
		t.Fatal("item still present after remove")
	}
	if s.Remove(it.ID) {
		t.Fatal("second remove must report false")
	}
}

func TestByZKeepsInsertionOrderForTies(t *testing.T) {
	s := New("test")
	a := NewRect(0, 0, 10, 10)
	b := NewRect(0, 0, 10, 10)
	c := NewRect(0, 0, 10, 10)
	a.Z, b.Z, c.Z = 1, 0, 1
	s.Add(a)
	s.Add(b)
	s.Add(c)
	got := s.ByZ()
	if got[0] != b || got[1] != a || got[2] != c {
		t.Fatalf("order = %v %v %v", got[0].ID, got[1].ID, got[2].ID)
	}
}

func TestNextZ(t *testing.T) {
	s := New("test")
	if s.NextZ() != 0 {
		t.Fatalf("empty scene NextZ = %d", s.NextZ())
	}
	a := NewRect(0, 0, 1, 1)
	a.Z = 4
	s.Add(a)
	if s.NextZ() != 5 {
		t.Fatalf("NextZ = %d, want 5", s.NextZ())
	}
}

func TestMoveZRenumbersDensely(t *testing.T) {
	s := New("test")
	a := NewRect(0, 0, 10, 10)
	b := NewRect(0, 0, 10, 10)
	c := NewRect(0, 0, 10, 10)
	a.Z, b.Z, c.Z = 0, 3, 7 // sparse on purpose
	s.Add(a)
	s.Add(b)
	s.Add(c)

	// Raise the bottom item one step: a and b swap, c stays on top.
	if err := s.MoveZ(a.ID, 1); err != nil {
		t.Fatalf("MoveZ: %v", err)
	}
	if b.Z != 0 || a.Z != 1 || c.Z != 2 {
		t.Fatalf("z after raise: a=%d b=%d c=%d", a.Z, b.Z, c.Z)
	}

	// Clamped at the top: no change, sparse values untouched.
	if err := s.MoveZ(c.ID, 5); err != nil {
		t.Fatalf("MoveZ clamp: %v", err)
	}
	if b.Z != 0 || a.Z != 1 || c.Z != 2 {
		t.Fatalf("z after clamped move: a=%d b=%d c=%d", a.Z, b.Z, c.Z)
	}

	// Send the top item all the way back.
	if err := s.MoveZ(c.ID, -2); err != nil {
		t.Fatalf("MoveZ back: %v", err)
	}
	if c.Z != 0 || b.Z != 1 || a.Z != 2 {
		t.Fatalf("z after lower: a=%d b=%d c=%d", a.Z, b.Z, c.Z)
	}

	if err := s.MoveZ("missing", 1); err == nil {
		t.Fatal("expected error for unknown item")
	}
}

func TestSnapshotIsDeepAndOrdered(t *testing.T) {
	s := New("comp")
	s.Width, s.Height = 800, 600
	s.Background = "#ffffff"
	top := NewRect(0, 0, 10, 10)
	top.Name = "top"
	top.Z = 5
	bottom := NewEllipse(1, 1, 20, 20)
	bottom.Name = "bottom"
	bottom.Z = 1
	s.Add(top)
	s.Add(bottom)

	d := s.Snapshot()
	if len(d.Items) != 2 || d.Items[0].Name != "bottom" || d.Items[1].Name != "top" {
		t.Fatalf("snapshot order wrong: %+v", d.Items)
	}
	// Mutating the snapshot must not touch the live scene.
	d.Items[1].X = 999
	if top.X != 0 {
		t.Fatal("snapshot shares item storage with the scene")
	}

	restored := FromDocument(d)
	if restored.Width != 800 || restored.Len() != 2 {
		t.Fatalf("restored: w=%v len=%d", restored.Width, restored.Len())
	}
	got, ok := restored.Get(top.ID)
	if !ok || got.Name != "top" || got.Z != 5 {
		t.Fatalf("restored top item: %+v ok=%v", got, ok)
	}
}

func TestDocumentJSONShape(t *testing.T) {
	s := New("doc")
	it := NewText(5, 6, "Hello")
	s.Add(it)
	raw, err := json.Marshal(s.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Document
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Name != "doc" || len(back.Items) != 1 {
		t.Fatalf("round trip: %+v", back)
	}
	if back.Items[0].Kind != KindText || back.Items[0].Text != "Hello" {
		t.Fatalf("item round trip: %+v", back.Items[0])
	}
}

func TestPropertyAccessors(t *testing.T) {
	it := NewRect(0, 0, 10, 10)
	if err := it.SetProperty("fill", "#ff0000"); err != nil {
		t.Fatalf("set fill: %v", err)
	}
	if v, ok := it.Property("fill"); !ok || v != "#ff0000" {
		t.Fatalf("fill = %q ok=%v", v, ok)
	}
	if err := it.SetProperty("rotation", "45"); err != nil {
		t.Fatalf("set rotation: %v", err)
	}
	if it.Rotation != 45 {
		t.Fatalf("rotation = %v", it.Rotation)
	}
	if err := it.SetProperty("z", "7"); err != nil {
		t.Fatalf("set z: %v", err)
	}
	if v, _ := it.Property("z"); v != "7" {
		t.Fatalf("z = %q", v)
	}
	if err := it.SetProperty("rotation", "sideways"); err == nil {
		t.Fatal("expected parse error for bad float")
	}
	// Unknown names round-trip through the free-form map.
	if _, ok := it.Property("plugin.note"); ok {
		t.Fatal("unset custom property must report absent")
	}
	if err := it.SetProperty("plugin.note", "kept"); err != nil {
		t.Fatalf("set custom: %v", err)
	}
	if v, ok := it.Property("plugin.note"); !ok || v != "kept" {
		t.Fatalf("custom = %q ok=%v", v, ok)
	}
}

func TestEffectiveDefaults(t *testing.T) {
	it := &Item{ID: NewID(), Kind: KindRect}
	if it.EffectiveScale() != 1 || it.EffectiveOpacity() != 1 {
		t.Fatalf("defaults: scale=%v opacity=%v", it.EffectiveScale(), it.EffectiveOpacity())
	}
	it.Scale = 2
	if it.EffectiveScale() != 2 {
		t.Fatalf("scale = %v", it.EffectiveScale())
	}
}

func TestContentBounds(t *testing.T) {
	s := New("test")
	if b := s.ContentBounds(); !b.Empty() {
		t.Fatalf("empty scene bounds = %+v", b)
	}
	s.Add(NewRect(0, 0, 10, 10))
	s.Add(NewRect(30, 40, 10, 10))
	b := s.ContentBounds()
	if b.X != 0 || b.Y != 0 || b.W != 40 || b.H != 50 {
		t.Fatalf("bounds = %+v", b)
	}
}

func TestFindByName(t *testing.T) {
	s := New("test")
	it := NewRect(0, 0, 1, 1)
	it.Name = "Background"
	s.Add(it)
	got, ok := s.FindByName("Background")
	if !ok || got != it {
		t.Fatal("FindByName missed the item")
	}
	if _, ok := s.FindByName("nope"); ok {
		t.Fatal("FindByName matched a missing name")
	}
}

func TestCloneIndependence(t *testing.T) {
	it := NewPath(0, 0, []PathStep{
		{Op: "M", Args: []float64{0, 0}},
		{Op: "L", Args: []float64{10, 0}},
	})
	it.Props = map[string]string{"k": "v"}
	cp := it.Clone()
	cp.Path[0].Args[0] = 99
	cp.Props["k"] = "changed"
	if it.Path[0].Args[0] != 0 || it.Props["k"] != "v" {
		t.Fatal("clone shares path or props storage")
	}
	if cp.ID != it.ID {
		t.Fatal("clone must keep the ID")
	}
}

func TestVectorPathConversion(t *testing.T) {
	it := NewPath(0, 0, []PathStep{
		{Op: "M", Args: []float64{0, 0}},
		{Op: "L", Args: []float64{20, 0}},
		{Op: "L", Args: []float64{20, 10}},
		{Op: "Z"},
	})
	if it.Width != 20 || it.Height != 10 {
		t.Fatalf("path item size = %vx%v", it.Width, it.Height)
	}
	p := it.VectorPath()
	b := p.Bounds()
	if b.W != 20 || b.H != 10 {
		t.Fatalf("path bounds = %+v", b)
	}
}
