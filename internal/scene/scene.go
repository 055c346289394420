/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package scene defines the canvas document model: the items that make up
// a composition, the runtime registry that editing actions mutate, and the
// serialized document form written to the workspace manifest.
package scene

import (
	"fmt"
	"sort"
	"time"

	"canvasforge/internal/vector"
)

// Metadata carries optional descriptive fields for a document.
type Metadata struct {
	Author   string `json:"author,omitempty"`
	Created  string `json:"created,omitempty"`  // RFC 3339
	Modified string `json:"modified,omitempty"` // RFC 3339
	Notes    string `json:"notes,omitempty"`
}

// Document is the serialized form of a canvas. It marshals to the
// human-readable JSON manifest stored in the workspace.
type Document struct {
	Name       string   `json:"name"`
	Width      float64  `json:"width,omitempty"`  // zero means size to content
	Height     float64  `json:"height,omitempty"` // zero means size to content
	Background string   `json:"background,omitempty"`
	Metadata   Metadata `json:"metadata,omitempty"`
	Items      []*Item  `json:"items"`
}

// Scene is the live canvas the editing session mutates. It is confined to
// the goroutine that edits the document; actions mutate it without any
// internal locking.
type Scene struct {
	Name       string
	Width      float64
	Height     float64
	Background string
	Metadata   Metadata

	items map[string]*Item
	order []*Item
}

// New creates an empty scene.
func New(name string) *Scene {
	return &Scene{
		Name: name,
		Metadata: Metadata{
			Created: time.Now().UTC().Format(time.RFC3339),
		},
		items: make(map[string]*Item),
	}
}

// FromDocument builds a scene around the document's items. The items are
// adopted, not copied; the document should not be reused afterwards.
func FromDocument(d *Document) *Scene {
	s := &Scene{
		Name:       d.Name,
		Width:      d.Width,
		Height:     d.Height,
		Background: d.Background,
		Metadata:   d.Metadata,
		items:      make(map[string]*Item, len(d.Items)),
	}
	for _, it := range d.Items {
		s.Add(it)
	}
	return s
}

// Snapshot captures the scene as a document with deep-copied items, safe
// to hand to a background writer. Items are emitted in stacking order and
// the modified timestamp is refreshed.
func (s *Scene) Snapshot() *Document {
	d := &Document{
		Name:       s.Name,
		Width:      s.Width,
		Height:     s.Height,
		Background: s.Background,
		Metadata:   s.Metadata,
		Items:      make([]*Item, 0, len(s.order)),
	}
	d.Metadata.Modified = time.Now().UTC().Format(time.RFC3339)
	for _, it := range s.ByZ() {
		d.Items = append(d.Items, it.Clone())
	}
	return d
}

// Add registers an item. The item keeps whatever Z it carries; callers
// placing a new item on top assign NextZ first. Adding an ID that is
// already present is a no-op.
func (s *Scene) Add(it *Item) {
	if _, ok := s.items[it.ID]; ok {
		return
	}
	s.items[it.ID] = it
	s.order = append(s.order, it)
}

// Remove unregisters the item with the given ID and reports whether it was
// present. The item object itself survives, so a pending undo entry can
// put it back.
func (s *Scene) Remove(id string) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, it := range s.order {
		if it.ID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Get returns the item with the given ID.
func (s *Scene) Get(id string) (*Item, bool) {
	it, ok := s.items[id]
	return it, ok
}

// Has reports whether an item with the given ID is on the canvas. Actions
// use this as their liveness check before touching a captured target.
func (s *Scene) Has(id string) bool {
	_, ok := s.items[id]
	return ok
}

// FindByName returns the first item with the given display name, in
// insertion order. Macros address items this way.
func (s *Scene) FindByName(name string) (*Item, bool) {
	for _, it := range s.order {
		if it.DisplayName() == name {
			return it, true
		}
	}
	return nil, false
}

// Len returns the number of items on the canvas.
func (s *Scene) Len() int { return len(s.items) }

// Items returns the items in insertion order.
func (s *Scene) Items() []*Item {
	return append([]*Item(nil), s.order...)
}

// ByZ returns the items in stacking order, bottom first. Items sharing a Z
// keep their insertion order.
func (s *Scene) ByZ() []*Item {
	out := append([]*Item(nil), s.order...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Z < out[j].Z })
	return out
}

// NextZ returns a Z one above the current topmost item.
func (s *Scene) NextZ() int {
	z := 0
	for _, it := range s.order {
		if it.Z >= z {
			z = it.Z + 1
		}
	}
	return z
}

// MoveZ moves the item up or down in stacking order by delta (+1 moves
// toward the top, -1 toward the back), clamping at the ends. When the item
// actually moves, every item's Z is reassigned to the dense sequence
// 0..n-1 in the new order.
func (s *Scene) MoveZ(id string, delta int) error {
	target, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %s not on canvas", id)
	}
	order := s.ByZ()
	idx := -1
	for i, it := range order {
		if it == target {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("internal: item not in order list")
	}
	newIdx := idx + delta
	if newIdx < 0 {
		newIdx = 0
	}
	if newIdx >= len(order) {
		newIdx = len(order) - 1
	}
	if newIdx == idx {
		return nil
	}
	// move in slice
	it := order[idx]
	if newIdx < idx {
		copy(order[newIdx+1:idx+1], order[newIdx:idx])
		order[newIdx] = it
	} else {
		copy(order[idx:newIdx], order[idx+1:newIdx+1])
		order[newIdx] = it
	}
	// reassign Z 0..n-1 in new order
	for i, o := range order {
		o.Z = i
	}
	return nil
}

// ContentBounds returns the union of all item bounding boxes in canvas
// space, or an empty rect for an empty scene.
func (s *Scene) ContentBounds() vector.Rect {
	var b vector.Rect
	first := true
	for _, it := range s.order {
		ib := it.CanvasBounds()
		if first {
			b = ib
			first = false
			continue
		}
		b = b.Union(ib)
	}
	return b
}

// CanvasRect returns the explicit document rect when one is set, and the
// content bounds otherwise.
func (s *Scene) CanvasRect() vector.Rect {
	if s.Width > 0 && s.Height > 0 {
		return vector.R(0, 0, float32(s.Width), float32(s.Height))
	}
	return s.ContentBounds()
}
