/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package history

import (
	"fmt"
	"sync"
	"time"
)

// Config controls history depth and change notification.
type Config struct {
	// MaxEntries caps the undo stack. When a new entry would exceed the
	// cap the oldest entry is evicted. Zero or negative selects the
	// default of 100.
	MaxEntries int

	// OnChange, when set, is invoked after any operation that altered the
	// observable state (availability or descriptions). It runs on the
	// calling goroutine, outside the manager lock, and only when the
	// state actually differs from the previously reported one.
	OnChange func(State)

	// Observer, when set, receives a stream of history events for
	// journaling. Same delivery rules as OnChange, minus the dedup.
	Observer func(Event)
}

// State is the observable summary of the manager, sufficient to drive
// menu enablement and labels.
type State struct {
	CanUndo         bool
	CanRedo         bool
	UndoDescription string
	RedoDescription string
}

// EventKind classifies history events.
type EventKind string

const (
	EventExecuted       EventKind = "executed"
	EventRecorded       EventKind = "recorded"
	EventUndone         EventKind = "undone"
	EventRedone         EventKind = "redone"
	EventDropped        EventKind = "dropped"
	EventEvicted        EventKind = "evicted"
	EventGroupOpened    EventKind = "group_opened"
	EventGroupClosed    EventKind = "group_closed"
	EventGroupDiscarded EventKind = "group_discarded"
	EventCleared        EventKind = "cleared"
)

// Event describes one thing that happened to the history.
type Event struct {
	Kind        EventKind
	Description string
	Depth       int // open-group depth after the event
	At          time.Time
}

// Manager owns the undo and redo stacks and the stack of open groups.
// All methods are safe for concurrent use, but actions themselves run on
// the calling goroutine outside the manager lock; the expected usage is a
// single editing goroutine driving all mutations.
type Manager struct {
	cfg Config

	mu      sync.Mutex
	undo    []Action
	redo    []Action
	open    []*Group
	evicted uint64
	pending []Event
	last    State
}

// NewManager creates a manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 100
	}
	return &Manager{cfg: cfg}
}

// Execute performs the action and records it. With a group open the action
// is appended to the innermost group; otherwise it becomes a new undo entry
// and the redo stack is cleared. If the action fails nothing is recorded
// and the error is returned.
func (m *Manager) Execute(a Action) error {
	defer m.emit()
	if err := a.Execute(); err != nil {
		return fmt.Errorf("execute %q: %w", a.Description(), err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked(a, EventExecuted)
	return nil
}

// Push records an action that has already been performed by the caller,
// without executing it again. Routing matches Execute: into the innermost
// open group if one exists, otherwise onto the undo stack with the redo
// stack cleared.
func (m *Manager) Push(a Action) {
	defer m.emit()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordLocked(a, EventRecorded)
}

func (m *Manager) recordLocked(a Action, kind EventKind) {
	if n := len(m.open); n > 0 {
		m.open[n-1].Add(a)
		m.queueLocked(Event{Kind: kind, Description: a.Description(), Depth: n})
		return
	}
	m.undo = append(m.undo, a)
	m.redo = nil
	m.trimLocked()
	m.queueLocked(Event{Kind: kind, Description: a.Description()})
}

// Undo reverses the most recent entry and moves it to the redo stack.
// It returns (false, nil) when there is nothing to undo. When the entry's
// Undo fails the entry is dropped from history entirely, because its actual
// state is no longer known, and the error is returned.
func (m *Manager) Undo() (bool, error) {
	defer m.emit()
	m.mu.Lock()
	n := len(m.undo)
	if n == 0 {
		m.mu.Unlock()
		return false, nil
	}
	a := m.undo[n-1]
	m.undo = m.undo[:n-1]
	m.mu.Unlock()

	if err := a.Undo(); err != nil {
		m.queue(Event{Kind: EventDropped, Description: a.Description()})
		return false, fmt.Errorf("undo %q: %w", a.Description(), err)
	}

	m.mu.Lock()
	m.redo = append(m.redo, a)
	m.queueLocked(Event{Kind: EventUndone, Description: a.Description()})
	m.mu.Unlock()
	return true, nil
}

// Redo re-applies the most recent undone entry and moves it back to the
// undo stack. It returns (false, nil) when there is nothing to redo. A
// failing entry is dropped, mirroring Undo.
func (m *Manager) Redo() (bool, error) {
	defer m.emit()
	m.mu.Lock()
	n := len(m.redo)
	if n == 0 {
		m.mu.Unlock()
		return false, nil
	}
	a := m.redo[n-1]
	m.redo = m.redo[:n-1]
	m.mu.Unlock()

	if err := a.Execute(); err != nil {
		m.queue(Event{Kind: EventDropped, Description: a.Description()})
		return false, fmt.Errorf("redo %q: %w", a.Description(), err)
	}

	m.mu.Lock()
	m.undo = append(m.undo, a)
	m.queueLocked(Event{Kind: EventRedone, Description: a.Description()})
	m.mu.Unlock()
	return true, nil
}

// BeginGroup opens a composite entry. Until the matching EndGroup, every
// executed or pushed action lands in this group. Groups nest; an inner
// group closes into its parent as a single child action.
func (m *Manager) BeginGroup(desc string) {
	defer m.emit()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.open = append(m.open, NewGroup(desc))
	m.queueLocked(Event{Kind: EventGroupOpened, Description: desc, Depth: len(m.open)})
}

// EndGroup closes the innermost open group. A group that collected no
// actions is discarded. Otherwise it is appended to its parent group, or,
// at top level, pushed as one undo entry with the redo stack cleared.
// Calling EndGroup with no open group returns ErrUnbalancedGroup.
func (m *Manager) EndGroup() error {
	defer m.emit()
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.open)
	if n == 0 {
		return ErrUnbalancedGroup
	}
	g := m.open[n-1]
	m.open = m.open[:n-1]
	if g.Len() == 0 {
		m.queueLocked(Event{Kind: EventGroupDiscarded, Description: g.Description(), Depth: len(m.open)})
		return nil
	}
	if len(m.open) > 0 {
		m.open[len(m.open)-1].Add(g)
	} else {
		m.undo = append(m.undo, g)
		m.redo = nil
		m.trimLocked()
	}
	m.queueLocked(Event{Kind: EventGroupClosed, Description: g.Description(), Depth: len(m.open)})
	return nil
}

// GroupDepth reports how many groups are currently open.
func (m *Manager) GroupDepth() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.open)
}

// CanUndo reports whether the undo stack is non-empty.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo) > 0
}

// CanRedo reports whether the redo stack is non-empty.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo) > 0
}

// UndoDescription returns the description of the entry Undo would reverse,
// or "" when the undo stack is empty.
func (m *Manager) UndoDescription() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.undo); n > 0 {
		return m.undo[n-1].Description()
	}
	return ""
}

// RedoDescription returns the description of the entry Redo would re-apply,
// or "" when the redo stack is empty.
func (m *Manager) RedoDescription() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n := len(m.redo); n > 0 {
		return m.redo[n-1].Description()
	}
	return ""
}

// Snapshot returns the current observable state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Clear empties both stacks and abandons any open groups. Used when the
// document is closed or replaced.
func (m *Manager) Clear() {
	defer m.emit()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo = nil
	m.redo = nil
	m.open = nil
	m.queueLocked(Event{Kind: EventCleared})
}

// Stats reports stack depths, the open-group depth and the number of
// entries evicted so far by the MaxEntries cap.
func (m *Manager) Stats() (undoDepth, redoDepth, openGroups int, evicted uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo), len(m.redo), len(m.open), m.evicted
}

func (m *Manager) trimLocked() {
	for len(m.undo) > m.cfg.MaxEntries {
		dropped := m.undo[0]
		copy(m.undo, m.undo[1:])
		m.undo[len(m.undo)-1] = nil
		m.undo = m.undo[:len(m.undo)-1]
		m.evicted++
		m.queueLocked(Event{Kind: EventEvicted, Description: dropped.Description()})
	}
}

func (m *Manager) stateLocked() State {
	st := State{}
	if n := len(m.undo); n > 0 {
		st.CanUndo = true
		st.UndoDescription = m.undo[n-1].Description()
	}
	if n := len(m.redo); n > 0 {
		st.CanRedo = true
		st.RedoDescription = m.redo[n-1].Description()
	}
	return st
}

func (m *Manager) queueLocked(e Event) {
	if m.cfg.Observer == nil {
		return
	}
	e.At = time.Now()
	m.pending = append(m.pending, e)
}

func (m *Manager) queue(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queueLocked(e)
}

// emit flushes queued events and, when the observable state changed,
// invokes OnChange. Deferred at the top of every mutating method so the
// callbacks run after the method has released the lock.
func (m *Manager) emit() {
	m.mu.Lock()
	evs := m.pending
	m.pending = nil
	st := m.stateLocked()
	changed := st != m.last
	m.last = st
	m.mu.Unlock()

	for _, e := range evs {
		m.cfg.Observer(e)
	}
	if changed && m.cfg.OnChange != nil {
		m.cfg.OnChange(st)
	}
}
