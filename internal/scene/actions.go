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
	"image"

	"canvasforge/internal/history"
)

// The built-in actions cover the standard edit vocabulary. Each captures
// its before-state at construction time and stays valid however often the
// manager replays it. Actions whose captured target can disappear (through
// an unrelated delete that was then evicted from history) verify liveness
// first and fail with a StaleTargetError instead of resurrecting state.

func ensureLive(s *Scene, it *Item, desc string) error {
	if !s.Has(it.ID) {
		return &history.StaleTargetError{Action: desc, Target: it.ID}
	}
	return nil
}

// AddItem puts an item on the canvas; undo takes it off again. Both
// directions are guarded so replays after external changes stay clean.
type AddItem struct {
	history.Meta
	scene *Scene
	item  *Item
}

func NewAddItem(s *Scene, it *Item) *AddItem {
	return &AddItem{Meta: history.NewMeta("Add " + it.DisplayName()), scene: s, item: it}
}

func (a *AddItem) Execute() error {
	if !a.scene.Has(a.item.ID) {
		a.scene.Add(a.item)
	}
	return nil
}

func (a *AddItem) Undo() error {
	a.scene.Remove(a.item.ID)
	return nil
}

// Item returns the item this action adds.
func (a *AddItem) Item() *Item { return a.item }

// RemoveItem deletes an item; undo restores it at its captured position
// and stacking order.
type RemoveItem struct {
	history.Meta
	scene *Scene
	item  *Item
	x, y  float64
	z     int
}

func NewRemoveItem(s *Scene, it *Item) *RemoveItem {
	return &RemoveItem{
		Meta:  history.NewMeta("Delete " + it.DisplayName()),
		scene: s,
		item:  it,
		x:     it.X,
		y:     it.Y,
		z:     it.Z,
	}
}

func (a *RemoveItem) Execute() error {
	a.scene.Remove(a.item.ID)
	return nil
}

func (a *RemoveItem) Undo() error {
	if !a.scene.Has(a.item.ID) {
		a.item.X, a.item.Y, a.item.Z = a.x, a.y, a.z
		a.scene.Add(a.item)
	}
	return nil
}

// MoveItem repositions an item between two captured points.
type MoveItem struct {
	history.Meta
	scene *Scene
	item  *Item
	oldX  float64
	oldY  float64
	newX  float64
	newY  float64
}

func NewMoveItem(s *Scene, it *Item, oldX, oldY, newX, newY float64) *MoveItem {
	return &MoveItem{
		Meta:  history.NewMeta("Move"),
		scene: s,
		item:  it,
		oldX:  oldX,
		oldY:  oldY,
		newX:  newX,
		newY:  newY,
	}
}

func (a *MoveItem) Execute() error {
	if err := ensureLive(a.scene, a.item, a.Description()); err != nil {
		return err
	}
	a.item.X, a.item.Y = a.newX, a.newY
	return nil
}

func (a *MoveItem) Undo() error {
	if err := ensureLive(a.scene, a.item, a.Description()); err != nil {
		return err
	}
	a.item.X, a.item.Y = a.oldX, a.oldY
	return nil
}

// ReorderItem shifts an item through the stacking order via Scene.MoveZ,
// which renumbers every item densely. The before-state is captured at
// construction; the after-state on first execution. Undo puts back every
// captured Z, skipping items that have since left the canvas.
type ReorderItem struct {
	history.Meta
	scene *Scene
	item  *Item
	delta int
	oldZ  map[string]int
	newZ  map[string]int
}

func NewReorderItem(s *Scene, it *Item, delta int) *ReorderItem {
	desc := "Raise " + it.DisplayName()
	if delta < 0 {
		desc = "Lower " + it.DisplayName()
	}
	return &ReorderItem{
		Meta:  history.NewMeta(desc),
		scene: s,
		item:  it,
		delta: delta,
		oldZ:  captureZ(s),
	}
}

func (a *ReorderItem) Execute() error {
	if err := ensureLive(a.scene, a.item, a.Description()); err != nil {
		return err
	}
	if a.newZ != nil {
		applyZ(a.scene, a.newZ)
		return nil
	}
	if err := a.scene.MoveZ(a.item.ID, a.delta); err != nil {
		return err
	}
	a.newZ = captureZ(a.scene)
	return nil
}

func (a *ReorderItem) Undo() error {
	if err := ensureLive(a.scene, a.item, a.Description()); err != nil {
		return err
	}
	applyZ(a.scene, a.oldZ)
	return nil
}

func captureZ(s *Scene) map[string]int {
	m := make(map[string]int, s.Len())
	for _, it := range s.Items() {
		m[it.ID] = it.Z
	}
	return m
}

func applyZ(s *Scene, zs map[string]int) {
	for id, z := range zs {
		if it, ok := s.Get(id); ok {
			it.Z = z
		}
	}
}

// TransformItem switches an item between two captured rotation and scale
// pairs.
type TransformItem struct {
	history.Meta
	scene    *Scene
	item     *Item
	oldRot   float64
	oldScale float64
	newRot   float64
	newScale float64
}

// NewTransformItem captures a rotation and scale change. An empty desc
// falls back to "Transform".
func NewTransformItem(s *Scene, it *Item, desc string, oldRot, oldScale, newRot, newScale float64) *TransformItem {
	if desc == "" {
		desc = "Transform"
	}
	return &TransformItem{
		Meta:     history.NewMeta(desc),
		scene:    s,
		item:     it,
		oldRot:   oldRot,
		oldScale: oldScale,
		newRot:   newRot,
		newScale: newScale,
	}
}

func (a *TransformItem) Execute() error {
	if err := ensureLive(a.scene, a.item, a.Description()); err != nil {
		return err
	}
	a.item.Rotation, a.item.Scale = a.newRot, a.newScale
	return nil
}

func (a *TransformItem) Undo() error {
	if err := ensureLive(a.scene, a.item, a.Description()); err != nil {
		return err
	}
	a.item.Rotation, a.item.Scale = a.oldRot, a.oldScale
	return nil
}

// ImageEdit swaps the pixels of a raster item between two captured images.
// The item resizes to whichever image is current.
type ImageEdit struct {
	history.Meta
	scene    *Scene
	item     *Item
	oldImage image.Image
	newImage image.Image
}

func NewImageEdit(s *Scene, it *Item, desc string, oldImg, newImg image.Image) *ImageEdit {
	return &ImageEdit{
		Meta:     history.NewMeta(desc),
		scene:    s,
		item:     it,
		oldImage: oldImg,
		newImage: newImg,
	}
}

func (a *ImageEdit) Execute() error {
	if err := ensureLive(a.scene, a.item, a.Description()); err != nil {
		return err
	}
	a.item.SetImage(a.newImage)
	return nil
}

func (a *ImageEdit) Undo() error {
	if err := ensureLive(a.scene, a.item, a.Description()); err != nil {
		return err
	}
	a.item.SetImage(a.oldImage)
	return nil
}

// PropertyChange switches one named property between two captured string
// values.
type PropertyChange struct {
	history.Meta
	scene    *Scene
	item     *Item
	name     string
	oldValue string
	newValue string
}

func NewPropertyChange(s *Scene, it *Item, name, oldValue, newValue string) *PropertyChange {
	return &PropertyChange{
		Meta:     history.NewMeta("Change " + name),
		scene:    s,
		item:     it,
		name:     name,
		oldValue: oldValue,
		newValue: newValue,
	}
}

func (a *PropertyChange) Execute() error {
	if err := ensureLive(a.scene, a.item, a.Description()); err != nil {
		return err
	}
	return a.item.SetProperty(a.name, a.newValue)
}

func (a *PropertyChange) Undo() error {
	if err := ensureLive(a.scene, a.item, a.Description()); err != nil {
		return err
	}
	return a.item.SetProperty(a.name, a.oldValue)
}

// Callback wraps a do/undo pair of closures for one-off edits that do not
// warrant their own action type.
type Callback struct {
	history.Meta
	do   func() error
	undo func() error
}

func NewCallback(desc string, do, undo func() error) *Callback {
	return &Callback{Meta: history.NewMeta(desc), do: do, undo: undo}
}

func (a *Callback) Execute() error { return a.do() }
func (a *Callback) Undo() error    { return a.undo() }
