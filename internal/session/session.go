/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package session ties the editing state of one open document together:
// the scene, the history manager mutating it, and the journal observing
// the traffic.
//
// Actions mutate shared items without internal locking, so every engine
// call must come from the one goroutine that owns the session. That
// goroutine drains the apply queue; background workers never touch the
// scene or the manager directly. Instead they compute off to the side
// and hand a ready-to-apply closure over through Post, which the owner
// picks up in RunOne or Drain.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"canvasforge/internal/history"
	"canvasforge/internal/journal"
	applog "canvasforge/internal/log"
	"canvasforge/internal/raster"
	"canvasforge/internal/scene"
)

// ErrClosed is returned when posting to or waiting on a closed session.
var ErrClosed = errors.New("session: closed")

const defaultQueueSize = 64

// Config wires a session's collaborators. The zero value is usable.
type Config struct {
	// MaxEntries caps the undo depth, forwarded to the history manager.
	// Zero selects the manager default.
	MaxEntries int

	// QueueSize bounds the apply queue. Zero selects 64. A full queue
	// blocks posters until the owner drains, it never drops an edit.
	QueueSize int

	// Journal, when set, receives every history event the manager emits.
	Journal *journal.Recorder

	// OnChange is forwarded to the manager for menu-style enablement.
	OnChange func(history.State)
}

// Session owns the mutable state of one open document. The goroutine
// calling RunOne or Drain is the owning goroutine; all mutating methods
// (Undo, Redo, Flatten, anything through History) belong to it.
type Session struct {
	scene *scene.Scene
	mgr   *history.Manager
	log   *slog.Logger

	q      chan func()
	closed chan struct{}
	once   sync.Once
}

// New builds a session around sc, or around a fresh unnamed scene when
// sc is nil.
func New(sc *scene.Scene, cfg Config) *Session {
	if sc == nil {
		sc = scene.New("")
	}
	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	s := &Session{
		scene:  sc,
		log:    applog.WithComponent("session"),
		q:      make(chan func(), size),
		closed: make(chan struct{}),
	}
	hc := history.Config{MaxEntries: cfg.MaxEntries, OnChange: cfg.OnChange}
	if cfg.Journal != nil {
		hc.Observer = cfg.Journal.Record
	}
	s.mgr = history.NewManager(hc)
	return s
}

// Scene returns the scene under edit.
func (s *Session) Scene() *scene.Scene { return s.scene }

// History returns the undo manager. Callers execute through it from the
// owning goroutine only.
func (s *Session) History() *history.Manager { return s.mgr }

// Close releases posters and waiters. Closures still queued stay
// runnable through Drain; Post and RunOne fail with ErrClosed.
func (s *Session) Close() { s.once.Do(func() { close(s.closed) }) }

// Post queues fn for the owning goroutine. It blocks while the queue is
// full and fails once the session is closed.
func (s *Session) Post(fn func()) error {
	if fn == nil {
		return nil
	}
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	select {
	case s.q <- fn:
		return nil
	case <-s.closed:
		return ErrClosed
	}
}

// Background runs compute on its own goroutine and posts the closure it
// returns. compute captures everything it needs up front and must not
// touch the scene or the manager; only the posted closure, applied by
// the owning goroutine, does. A compute error is logged and nothing is
// posted.
func (s *Session) Background(compute func() (func(), error)) {
	go func() {
		fn, err := compute()
		if err != nil {
			s.log.Warn("background compute failed", slog.Any("err", err))
			return
		}
		if err := s.Post(fn); err != nil {
			s.log.Warn("background result dropped", slog.Any("err", err))
		}
	}()
}

// RunOne executes the next queued closure, waiting until one arrives,
// ctx ends, or the session closes. It reports whether a closure ran.
func (s *Session) RunOne(ctx context.Context) (bool, error) {
	// Pending work wins over a concurrent Close.
	select {
	case fn := <-s.q:
		fn()
		return true, nil
	default:
	}
	select {
	case fn := <-s.q:
		fn()
		return true, nil
	case <-s.closed:
		return false, ErrClosed
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// Drain executes every closure already queued, without waiting for
// more, and returns how many ran.
func (s *Session) Drain() int {
	n := 0
	for {
		select {
		case fn := <-s.q:
			fn()
			n++
		default:
			return n
		}
	}
}

// Undo reverts the most recent entry. The returned status line names
// the reverted entry, read off the redo stack where it now sits; it is
// empty when there was nothing to undo.
func (s *Session) Undo() (string, error) {
	ok, err := s.mgr.Undo()
	if err != nil || !ok {
		return "", err
	}
	return "Undone: " + s.mgr.RedoDescription(), nil
}

// Redo reapplies the most recently undone entry and names it in the
// returned status line.
func (s *Session) Redo() (string, error) {
	ok, err := s.mgr.Redo()
	if err != nil || !ok {
		return "", err
	}
	return "Redone: " + s.mgr.UndoDescription(), nil
}

// Flatten composites the given items into a single raster and replaces
// them with it, recorded as one undo entry. The composite keeps the
// sources' union bounds, so the pixels stay where they were on the
// canvas, and lands on top of the stacking order.
func (s *Session) Flatten(ids []string) (*scene.Item, error) {
	var live []*scene.Item
	for _, id := range ids {
		if it, ok := s.scene.Get(id); ok {
			live = append(live, it)
		}
	}
	if len(live) == 0 {
		return nil, fmt.Errorf("flatten: no items to flatten")
	}
	keep := make([]string, len(live))
	for i, it := range live {
		keep[i] = it.ID
	}
	img, region, err := raster.RenderItems(s.scene, keep, raster.Options{})
	if err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}

	flat := scene.NewRaster(float64(region.X), float64(region.Y), img)
	flat.Name = "Flattened"
	flat.Z = s.scene.NextZ()

	s.mgr.BeginGroup("Flatten Items")
	if err := s.mgr.Execute(scene.NewAddItem(s.scene, flat)); err != nil {
		_ = s.mgr.EndGroup()
		return nil, fmt.Errorf("flatten: %w", err)
	}
	for _, it := range live {
		if err := s.mgr.Execute(scene.NewRemoveItem(s.scene, it)); err != nil {
			_ = s.mgr.EndGroup()
			return nil, fmt.Errorf("flatten: %w", err)
		}
	}
	if err := s.mgr.EndGroup(); err != nil {
		return nil, fmt.Errorf("flatten: %w", err)
	}
	return flat, nil
}
