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

// Package edgeset implements the lock-free, copy-on-write, versioned set
// of PropertyReferences used for both the forward (required_properties)
// and backward (used_by_properties) dependency edges. spec.md §4.7.
//
// The pointer and its version are swapped together as one atomic
// compare-and-swap on an immutable state struct, which is the Go
// rendition of "memory order must at minimum provide release/acquire on
// the pointer-version pair": a successful CAS publishes both fields at
// once and a Load acquires both at once, so there is no window where one
// is visible without the other. This mirrors the hot-swap pattern the
// teacher's engine/chain_engine.go uses for its rule-chain pointer, here
// generalized with an explicit version counter and CAS-based retry
// instead of an unconditional store.
package edgeset

import (
	"sync/atomic"

	"github.com/bittoy/interceptor/subject"
)

type state struct {
	items   []subject.PropertyReference
	version uint64
}

// EdgeSet is a versioned, lock-free, copy-on-write set of
// PropertyReferences.
type EdgeSet struct {
	ptr atomic.Pointer[state]
}

// New returns an empty edge set at version 0.
func New() *EdgeSet {
	e := &EdgeSet{}
	e.ptr.Store(&state{})
	return e
}

// Items returns a stable snapshot slice. It remains valid even if a
// concurrent writer swaps the underlying storage afterward, since the
// slice backing it is never mutated in place.
func (e *EdgeSet) Items() []subject.PropertyReference {
	return e.ptr.Load().items
}

// Version returns the monotonically non-decreasing token bumped on
// every successful mutation.
func (e *EdgeSet) Version() uint64 {
	return e.ptr.Load().version
}

// Contains reports whether item is present in the current snapshot.
func (e *EdgeSet) Contains(item subject.PropertyReference) bool {
	for _, it := range e.ptr.Load().items {
		if it.Equal(item) {
			return true
		}
	}
	return false
}

// Count returns the current snapshot's size.
func (e *EdgeSet) Count() int {
	return len(e.ptr.Load().items)
}

// SequenceEqual reports order-insensitive equality against other.
func (e *EdgeSet) SequenceEqual(other []subject.PropertyReference) bool {
	cur := e.ptr.Load().items
	if len(cur) != len(other) {
		return false
	}
	for _, a := range cur {
		found := false
		for _, b := range other {
			if a.Equal(b) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Add inserts item if absent, returning false if it was already
// present. Retries under contention with a fresh copy-with-added.
func (e *EdgeSet) Add(item subject.PropertyReference) bool {
	for {
		old := e.ptr.Load()
		for _, it := range old.items {
			if it.Equal(item) {
				return false
			}
		}
		next := make([]subject.PropertyReference, len(old.items)+1)
		copy(next, old.items)
		next[len(old.items)] = item
		if e.ptr.CompareAndSwap(old, &state{items: next, version: old.version + 1}) {
			return true
		}
	}
}

// Remove deletes item if present, returning false if it was absent.
func (e *EdgeSet) Remove(item subject.PropertyReference) bool {
	for {
		old := e.ptr.Load()
		idx := -1
		for i, it := range old.items {
			if it.Equal(item) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return false
		}
		next := make([]subject.PropertyReference, 0, len(old.items)-1)
		next = append(next, old.items[:idx]...)
		next = append(next, old.items[idx+1:]...)
		if e.ptr.CompareAndSwap(old, &state{items: next, version: old.version + 1}) {
			return true
		}
	}
}

// TryReplace atomically swaps in newItems conditional on the set's
// version still matching expectedVersion; bumps the version by 1 on
// success. Used by the derived-property engine's exclusive-replace path
// (spec.md §4.8 store_recorded step 6).
func (e *EdgeSet) TryReplace(newItems []subject.PropertyReference, expectedVersion uint64) bool {
	old := e.ptr.Load()
	if old.version != expectedVersion {
		return false
	}
	cp := append([]subject.PropertyReference(nil), newItems...)
	return e.ptr.CompareAndSwap(old, &state{items: cp, version: old.version + 1})
}
