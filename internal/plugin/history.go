/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package plugin holds the capability surfaces handed to plugins. A
// plugin never sees the manager or the session; it gets narrow wrappers
// handed in at load time. Plugin discovery and manifests live with the
// host application, not here.
package plugin

import "canvasforge/internal/history"

// History is the undo capability a plugin receives, a thin pass-through
// over one manager instance. Macros map onto history groups, so
// everything a plugin does between BeginMacro and EndMacro lands as a
// single undo entry.
type History struct {
	mgr *history.Manager
}

// NewHistory wraps a manager. Each plugin gets its own wrapper, all
// sharing the session's manager underneath.
func NewHistory(m *history.Manager) *History {
	return &History{mgr: m}
}

// BeginMacro opens a named macro. Macros nest; only the outermost one
// becomes a history entry.
func (h *History) BeginMacro(name string) { h.mgr.BeginGroup(name) }

// EndMacro closes the innermost open macro. Closing with none open is a
// contract violation and fails loudly.
func (h *History) EndMacro() error { return h.mgr.EndGroup() }

// Push applies the action now and records it. An execution error leaves
// the history untouched and is the plugin's to report.
func (h *History) Push(a history.Action) error { return h.mgr.Execute(a) }

// Record adopts an action the plugin already applied itself, without
// running it again.
func (h *History) Record(a history.Action) { h.mgr.Push(a) }

// CanUndo reports whether an undo entry is available.
func (h *History) CanUndo() bool { return h.mgr.CanUndo() }

// CanRedo reports whether a redo entry is available.
func (h *History) CanRedo() bool { return h.mgr.CanRedo() }

// UndoDescription names the entry Undo would revert, or returns "".
func (h *History) UndoDescription() string { return h.mgr.UndoDescription() }

// RedoDescription names the entry Redo would reapply, or returns "".
func (h *History) RedoDescription() string { return h.mgr.RedoDescription() }
