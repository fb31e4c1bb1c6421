/*
 * Copyright 2025 The RuleGo Authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package recorder implements the dependency recorder: the thread-local,
// pooled, stack-structured buffer that captures which properties a
// derived getter touches while it runs. spec.md §4.6.
//
// Go has no native thread-local storage and the Getter signature
// (func(*subject.Subject) any) carries no explicit context parameter a
// handle could be threaded through, so "thread-local" is modeled here as
// goroutine-local storage keyed by the calling goroutine's id — the
// rendition spec.md §9 calls out for "per-OS-thread storage" when the
// target has native threads/goroutines rather than task-based
// concurrency.
package recorder

import (
	"sync"

	"github.com/bittoy/interceptor/internal/gls"
	"github.com/bittoy/interceptor/subject"
)

const defaultFrameCap = 8

// frame is one nested recording session's deduplicated buffer.
type frame struct {
	items []subject.PropertyReference
}

func (f *frame) touch(ref subject.PropertyReference) {
	for _, existing := range f.items {
		if existing.Equal(ref) {
			return
		}
	}
	f.items = append(f.items, ref)
}

func (f *frame) reset() {
	for i := range f.items {
		f.items[i] = subject.PropertyReference{}
	}
	f.items = f.items[:0]
}

var framePool = sync.Pool{
	New: func() any {
		return &frame{items: make([]subject.PropertyReference, 0, defaultFrameCap)}
	},
}

// perGoroutine is the stack of active recording frames for one
// goroutine, plus the last finished-but-not-yet-cleared frame.
type perGoroutine struct {
	stack  []*frame
	lastFn *frame // result of the most recent FinishRecording, pending ClearLast
}

var (
	registryMu sync.Mutex
	registry   = map[uint64]*perGoroutine{}
)

func current() *perGoroutine {
	id := gls.ID()
	registryMu.Lock()
	defer registryMu.Unlock()
	g, ok := registry[id]
	if !ok {
		g = &perGoroutine{}
		registry[id] = g
	}
	return g
}

// forgetIfIdle removes the per-goroutine entry once its stack and
// pending-clear slot are both empty, so short-lived goroutines do not
// leak registry entries.
func forgetIfIdle(id uint64, g *perGoroutine) {
	if len(g.stack) == 0 && g.lastFn == nil {
		registryMu.Lock()
		delete(registry, id)
		registryMu.Unlock()
	}
}

// StartRecording pushes a fresh frame onto the calling goroutine's
// recorder stack, renting one from the shared pool.
func StartRecording() {
	g := current()
	f := framePool.Get().(*frame)
	g.stack = append(g.stack, f)
}

// IsRecording reports whether a recording frame is currently active on
// the calling goroutine — consulted by the read interceptor before it
// bothers building a PropertyReference to append.
func IsRecording() bool {
	id := gls.ID()
	registryMu.Lock()
	g, ok := registry[id]
	registryMu.Unlock()
	return ok && len(g.stack) > 0
}

// Touch appends ref to the top frame, deduplicated within that frame.
// No-op if no recording is active.
func Touch(ref subject.PropertyReference) {
	id := gls.ID()
	registryMu.Lock()
	g, ok := registry[id]
	registryMu.Unlock()
	if !ok || len(g.stack) == 0 {
		return
	}
	g.stack[len(g.stack)-1].touch(ref)
}

// FinishRecording pops the top frame and returns a borrowed view of its
// recorded slice, valid until ClearLast or the next StartRecording on
// this goroutine. Panics with subject.RecorderUnderflowError if no
// recording is active — a fatal, internal-invariant violation per
// spec.md §7.
func FinishRecording() []subject.PropertyReference {
	id := gls.ID()
	registryMu.Lock()
	g, ok := registry[id]
	registryMu.Unlock()
	if !ok || len(g.stack) == 0 {
		panic(&subject.RecorderUnderflowError{})
	}
	f := g.stack[len(g.stack)-1]
	g.stack = g.stack[:len(g.stack)-1]
	if g.lastFn != nil {
		// an unflushed previous result on this goroutine; release it
		// to the pool now rather than leaking it.
		g.lastFn.reset()
		framePool.Put(g.lastFn)
	}
	g.lastFn = f
	forgetIfIdle(id, g)
	return f.items
}

// ClearLast zeros the most recently finished recording's slice (to
// release subject handles and prevent accidental retention of detached
// subjects) and returns its frame to the pool.
func ClearLast() {
	id := gls.ID()
	registryMu.Lock()
	g, ok := registry[id]
	registryMu.Unlock()
	if !ok || g.lastFn == nil {
		return
	}
	g.lastFn.reset()
	framePool.Put(g.lastFn)
	g.lastFn = nil
	forgetIfIdle(id, g)
}
