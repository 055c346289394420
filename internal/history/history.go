/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package history implements the stack-based undo/redo engine every
// reversible edit in the application goes through. Edits are modelled as
// Actions (execute/undo pairs with a menu description), optionally composed
// into Groups that undo and redo as one history entry.
//
// History lives in memory only; it is never persisted across runs.
package history

import "time"

// Action is a single reversible edit. Execute performs (or re-performs) the
// forward operation, Undo reverses exactly the most recent Execute, and the
// two may alternate arbitrarily often. Implementations capture whatever
// before-state they need up front; they must not reach back into the manager.
type Action interface {
	Execute() error
	Undo() error
	Description() string
}

// Meta carries the descriptive fields shared by every action. Embed it and
// the Description method comes for free; the timestamp is informational.
type Meta struct {
	desc string
	at   time.Time
}

// NewMeta stamps an action description with the current time.
func NewMeta(desc string) Meta { return Meta{desc: desc, at: time.Now()} }

func (m Meta) Description() string { return m.desc }

// Time reports when the action was created.
func (m Meta) Time() time.Time { return m.at }

// Group bundles an ordered sequence of actions into one atomic history
// entry. Execute replays children in insertion order; Undo replays them in
// reverse. A group with no children is discarded by the manager instead of
// ever reaching the undo stack.
type Group struct {
	Meta
	actions []Action
}

// NewGroup creates an empty group with the given description.
func NewGroup(desc string) *Group { return &Group{Meta: NewMeta(desc)} }

// Add appends a child action. Valid only while the group is still open;
// the manager stops routing into the group once it is closed.
func (g *Group) Add(a Action) { g.actions = append(g.actions, a) }

// Len returns the number of child actions.
func (g *Group) Len() int { return len(g.actions) }

// Actions returns the children in execution order.
func (g *Group) Actions() []Action { return g.actions }

// Execute replays all children in order. On a child failure the remaining
// children are skipped and the error surfaces; already-applied children are
// left applied. Whether to roll those back by calling Undo is the caller's
// decision.
func (g *Group) Execute() error {
	for _, a := range g.actions {
		if err := a.Execute(); err != nil {
			return err
		}
	}
	return nil
}

// Undo reverses all children in reverse insertion order.
func (g *Group) Undo() error {
	for i := len(g.actions) - 1; i >= 0; i-- {
		if err := g.actions[i].Undo(); err != nil {
			return err
		}
	}
	return nil
}
