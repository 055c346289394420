/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package script

import (
	"fmt"
	"image"

	"canvasforge/internal/history"
	"canvasforge/internal/raster"
	"canvasforge/internal/scene"
)

// Run executes the commands against the scene as one history group, so
// the whole macro lands as a single undo entry named after it. Each
// command is compiled into an action against the scene state its
// predecessors left behind; a later command may address an item an
// earlier one added.
//
// On failure Run stops at the offending command and reports it with
// its line number. Commands already applied stay applied and stay
// recorded, one undo of the macro entry reverts them.
func Run(name string, cmds []Command, s *scene.Scene, mgr *history.Manager) error {
	if name == "" {
		name = "Macro"
	}
	mgr.BeginGroup(name)
	for _, c := range cmds {
		if err := apply(c, s, mgr); err != nil {
			_ = mgr.EndGroup()
			return fmt.Errorf("line %d: %w", c.LineNo, err)
		}
	}
	return mgr.EndGroup()
}

func apply(c Command, s *scene.Scene, mgr *history.Manager) error {
	switch c.Op {
	case OpAdd:
		var it *scene.Item
		switch c.Kind {
		case "rect":
			it = scene.NewRect(c.Args[0], c.Args[1], c.Args[2], c.Args[3])
		case "ellipse":
			it = scene.NewEllipse(c.Args[0], c.Args[1], c.Args[2], c.Args[3])
		case "text":
			it = scene.NewText(c.Args[0], c.Args[1], c.Text)
		default:
			return fmt.Errorf("unknown item kind %q", c.Kind)
		}
		it.Name = c.Target
		it.Z = s.NextZ()
		return mgr.Execute(scene.NewAddItem(s, it))

	case OpMove:
		it, err := find(s, c.Target)
		if err != nil {
			return err
		}
		return mgr.Execute(scene.NewMoveItem(s, it, it.X, it.Y, c.Args[0], c.Args[1]))

	case OpResize:
		it, err := find(s, c.Target)
		if err != nil {
			return err
		}
		mgr.BeginGroup("Resize " + it.DisplayName())
		for i, prop := range []string{"width", "height"} {
			old, _ := it.Property(prop)
			if err := mgr.Execute(scene.NewPropertyChange(s, it, prop, old, formatArg(c.Args[i]))); err != nil {
				_ = mgr.EndGroup()
				return err
			}
		}
		return mgr.EndGroup()

	case OpRotate:
		it, err := find(s, c.Target)
		if err != nil {
			return err
		}
		return mgr.Execute(scene.NewTransformItem(s, it, "Rotate "+it.DisplayName(),
			it.Rotation, it.EffectiveScale(), c.Args[0], it.EffectiveScale()))

	case OpScale:
		it, err := find(s, c.Target)
		if err != nil {
			return err
		}
		return mgr.Execute(scene.NewTransformItem(s, it, "Scale "+it.DisplayName(),
			it.Rotation, it.EffectiveScale(), it.Rotation, c.Args[0]))

	case OpSetProp:
		it, err := find(s, c.Target)
		if err != nil {
			return err
		}
		old, _ := it.Property(c.Prop)
		return mgr.Execute(scene.NewPropertyChange(s, it, c.Prop, old, c.Text))

	case OpSetText:
		it, err := find(s, c.Target)
		if err != nil {
			return err
		}
		old, _ := it.Property("text")
		return mgr.Execute(scene.NewPropertyChange(s, it, "text", old, c.Text))

	case OpDelete:
		it, err := find(s, c.Target)
		if err != nil {
			return err
		}
		return mgr.Execute(scene.NewRemoveItem(s, it))

	case OpCrop:
		it, err := findRaster(s, c.Target)
		if err != nil {
			return err
		}
		r := image.Rect(int(c.Args[0]), int(c.Args[1]), int(c.Args[0]+c.Args[2]), int(c.Args[1]+c.Args[3]))
		cropped, off, err := raster.Crop(it.Image, r)
		if err != nil {
			return fmt.Errorf("crop %q: %w", c.Target, err)
		}
		if err := mgr.Execute(scene.NewImageEdit(s, it, "Crop Image", it.Image, cropped)); err != nil {
			return err
		}
		if off.X == 0 && off.Y == 0 {
			return nil
		}
		return mgr.Execute(scene.NewMoveItem(s, it, it.X, it.Y,
			it.X+float64(off.X), it.Y+float64(off.Y)))

	case OpScaleImage:
		it, err := findRaster(s, c.Target)
		if err != nil {
			return err
		}
		resized, err := raster.Resize(it.Image, int(c.Args[0]), int(c.Args[1]))
		if err != nil {
			return fmt.Errorf("scale-image %q: %w", c.Target, err)
		}
		return mgr.Execute(scene.NewImageEdit(s, it, "Scale Image", it.Image, resized))
	}
	return fmt.Errorf("unknown command")
}

func find(s *scene.Scene, name string) (*scene.Item, error) {
	it, ok := s.FindByName(name)
	if !ok {
		return nil, fmt.Errorf("no item named %q", name)
	}
	return it, nil
}

func findRaster(s *scene.Scene, name string) (*scene.Item, error) {
	it, err := find(s, name)
	if err != nil {
		return nil, err
	}
	if it.Kind != scene.KindRaster || it.Image == nil {
		return nil, fmt.Errorf("item %q has no pixels to edit", name)
	}
	return it, nil
}

func formatArg(v float64) string {
	return fmt.Sprintf("%g", v)
}
