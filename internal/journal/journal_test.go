/*
 * Copyright (c) 2025 the CanvasForge authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package journal

import (
	"context"
	"testing"
	"time"

	"canvasforge/internal/history"
)

type stubAction struct {
	history.Meta
}

func (stubAction) Execute() error { return nil }
func (stubAction) Undo() error    { return nil }

func TestRecordAndQueryRoundTrip(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.SessionID() == "" {
		t.Fatalf("expected non-empty session id")
	}

	base := time.Now()
	r.Record(history.Event{Kind: history.EventExecuted, Description: "Add rect", At: base})
	r.Record(history.Event{Kind: history.EventUndone, Description: "Add rect", At: base.Add(time.Millisecond)})
	r.Record(history.Event{Kind: history.EventRedone, Description: "Add rect", At: base.Add(2 * time.Millisecond)})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if r.Dropped() != 0 {
		t.Fatalf("unexpected drops: %d", r.Dropped())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	evs, err := Recent(ctx, root, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	// Newest first
	if evs[0].Kind != string(history.EventRedone) || evs[2].Kind != string(history.EventExecuted) {
		t.Fatalf("unexpected order: %s .. %s", evs[0].Kind, evs[2].Kind)
	}
	for _, e := range evs {
		if e.SessionID != r.SessionID() {
			t.Fatalf("session id mismatch: %s", e.SessionID)
		}
		if e.Description != "Add rect" || e.At.IsZero() {
			t.Fatalf("event fields lost: %+v", e)
		}
	}

	counts, err := SessionCounts(ctx, root)
	if err != nil {
		t.Fatalf("SessionCounts: %v", err)
	}
	if len(counts) != 1 || counts[0].SessionID != r.SessionID() || counts[0].Events != 3 {
		t.Fatalf("unexpected session counts: %+v", counts)
	}
}

func TestObserverWiringThroughManager(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	m := history.NewManager(history.Config{Observer: r.Record})

	if err := m.Execute(stubAction{Meta: history.NewMeta("Add rect")}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, err := m.Undo(); err != nil {
		t.Fatalf("undo: %v", err)
	}
	m.BeginGroup("Macro")
	m.Push(stubAction{Meta: history.NewMeta("step")})
	if err := m.EndGroup(); err != nil {
		t.Fatalf("end group: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ctx := context.Background()
	evs, err := Recent(ctx, root, 20)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	want := map[string]bool{
		string(history.EventExecuted):    false,
		string(history.EventUndone):      false,
		string(history.EventGroupOpened): false,
		string(history.EventRecorded):    false,
		string(history.EventGroupClosed): false,
	}
	for _, e := range evs {
		if _, ok := want[e.Kind]; ok {
			want[e.Kind] = true
		}
	}
	for k, seen := range want {
		if !seen {
			t.Fatalf("missing journaled kind %s (got %+v)", k, evs)
		}
	}
}

func TestRecordDropsWhenQueueFull(t *testing.T) {
	// No writer goroutine: the queue cannot drain, so the third record
	// must be dropped.
	r := &Recorder{
		q:       make(chan history.Event, 2),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.Record(history.Event{Kind: history.EventExecuted})
	r.Record(history.Event{Kind: history.EventExecuted})
	r.Record(history.Event{Kind: history.EventExecuted})
	if got := r.Dropped(); got != 1 {
		t.Fatalf("dropped = %d, want 1", got)
	}
	if len(r.q) != 2 {
		t.Fatalf("queued = %d, want 2", len(r.q))
	}
}

func TestKindCountsSince(t *testing.T) {
	root := t.TempDir()
	r, err := Open(root)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	base := time.Now()
	r.Record(history.Event{Kind: history.EventExecuted, Description: "a", At: base})
	r.Record(history.Event{Kind: history.EventExecuted, Description: "b", At: base.Add(time.Millisecond)})
	r.Record(history.Event{Kind: history.EventUndone, Description: "a", At: base.Add(2 * time.Millisecond)})
	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ctx := context.Background()
	counts, err := KindCounts(ctx, root, base.Add(-time.Hour))
	if err != nil {
		t.Fatalf("KindCounts: %v", err)
	}
	if counts[string(history.EventExecuted)] != 2 || counts[string(history.EventUndone)] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
	counts, err = KindCounts(ctx, root, base.Add(time.Hour))
	if err != nil {
		t.Fatalf("KindCounts future: %v", err)
	}
	if len(counts) != 0 {
		t.Fatalf("expected no counts for future window, got %v", counts)
	}
}

func TestSeparateSessionsAreDistinct(t *testing.T) {
	root := t.TempDir()
	first, err := Open(root)
	if err != nil {
		t.Fatalf("Open first: %v", err)
	}
	first.Record(history.Event{Kind: history.EventExecuted, Description: "one", At: time.Now()})
	if err := first.Close(); err != nil {
		t.Fatalf("Close first: %v", err)
	}

	second, err := Open(root)
	if err != nil {
		t.Fatalf("Open second: %v", err)
	}
	if second.SessionID() == first.SessionID() {
		t.Fatalf("sessions must get distinct ids")
	}
	second.Record(history.Event{Kind: history.EventExecuted, Description: "two", At: time.Now()})
	second.Record(history.Event{Kind: history.EventCleared, Description: "", At: time.Now()})
	if err := second.Close(); err != nil {
		t.Fatalf("Close second: %v", err)
	}

	counts, err := SessionCounts(context.Background(), root)
	if err != nil {
		t.Fatalf("SessionCounts: %v", err)
	}
	if len(counts) != 2 {
		t.Fatalf("expected 2 sessions, got %+v", counts)
	}
	byID := map[string]int{}
	for _, c := range counts {
		byID[c.SessionID] = c.Events
	}
	if byID[first.SessionID()] != 1 || byID[second.SessionID()] != 2 {
		t.Fatalf("unexpected per-session counts: %v", byID)
	}
}

func TestRecentOnMissingJournal(t *testing.T) {
	if _, err := Recent(context.Background(), t.TempDir(), 10); err == nil {
		t.Fatal("expected error for missing journal")
	}
}
