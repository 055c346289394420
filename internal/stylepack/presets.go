/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package stylepack loads named style presets from YAML files in the
// workspace presets directory and applies them to canvas items as
// grouped, undoable property changes. Packs of presets travel between
// workspaces as plain zip archives.
package stylepack

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"canvasforge/internal/history"
	applog "canvasforge/internal/log"
	"canvasforge/internal/scene"
)

// Preset is one named bundle of style values. Nil fields are left
// untouched on the items the preset is applied to. Field names follow
// the document's item property vocabulary, not the config file's.
type Preset struct {
	Fill        *string  `yaml:"fill,omitempty"`
	Stroke      *string  `yaml:"stroke,omitempty"`
	StrokeWidth *float64 `yaml:"strokeWidth,omitempty"`
	FontSize    *float64 `yaml:"fontSize,omitempty"`
	Opacity     *float64 `yaml:"opacity,omitempty"`
}

// Pack is the parsed form of one preset YAML file.
type Pack struct {
	Presets map[string]Preset `yaml:"presets"`
}

// Names returns the preset names in sorted order.
func (p Pack) Names() []string {
	out := make([]string, 0, len(p.Presets))
	for name := range p.Presets {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ParsePack parses preset YAML. A pack with no presets is an error so
// a mis-keyed file does not silently apply nothing.
func ParsePack(data []byte) (Pack, error) {
	var p Pack
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Pack{}, fmt.Errorf("parse style pack: %w", err)
	}
	if len(p.Presets) == 0 {
		return Pack{}, errors.New("style pack has no presets")
	}
	return p, nil
}

// LoadPack reads and parses one preset file.
func LoadPack(path string) (Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Pack{}, fmt.Errorf("read style pack: %w", err)
	}
	return ParsePack(data)
}

// LoadWorkspacePacks merges every YAML pack in the workspace presets
// directory, in file name order, so a later file wins a name clash.
// Unreadable or malformed files are logged and skipped.
func LoadWorkspacePacks(workspaceRoot string) (Pack, error) {
	l := applog.WithComponent("stylepack")
	merged := Pack{Presets: map[string]Preset{}}

	dir := filepath.Join(workspaceRoot, presetsDirName)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return merged, nil
		}
		return Pack{}, fmt.Errorf("read presets dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		p, err := LoadPack(filepath.Join(dir, name))
		if err != nil {
			l.Warn("skip bad preset file", "file", name, "err", err)
			continue
		}
		for k, v := range p.Presets {
			merged.Presets[k] = v
		}
	}
	return merged, nil
}

// Apply applies the preset to the given items as one history group
// named "Apply Style <name>", so a single undo reverts the whole
// styling pass across every item.
func Apply(name string, p Preset, s *scene.Scene, items []*scene.Item, mgr *history.Manager) error {
	if len(items) == 0 {
		return errors.New("no items to style")
	}
	mgr.BeginGroup("Apply Style " + name)
	for _, it := range items {
		for _, ch := range p.changes() {
			old, _ := it.Property(ch.prop)
			if err := mgr.Execute(scene.NewPropertyChange(s, it, ch.prop, old, ch.value)); err != nil {
				_ = mgr.EndGroup()
				return fmt.Errorf("apply %s to %s: %w", name, it.DisplayName(), err)
			}
		}
	}
	return mgr.EndGroup()
}

type change struct {
	prop  string
	value string
}

func (p Preset) changes() []change {
	var out []change
	if p.Fill != nil {
		out = append(out, change{"fill", *p.Fill})
	}
	if p.Stroke != nil {
		out = append(out, change{"stroke", *p.Stroke})
	}
	if p.StrokeWidth != nil {
		out = append(out, change{"strokeWidth", formatValue(*p.StrokeWidth)})
	}
	if p.FontSize != nil {
		out = append(out, change{"fontSize", formatValue(*p.FontSize)})
	}
	if p.Opacity != nil {
		out = append(out, change{"opacity", formatValue(*p.Opacity)})
	}
	return out
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
