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

// Package changectx implements the ambient change-context scope and the
// two change-delivery shapes: observable broadcast and queue
// subscription. spec.md §4.9.
//
// The source/timestamp scope is goroutine-local for the same reason the
// dependency recorder is (recorder/recorder.go): the property write path
// that needs to read it carries no explicit context parameter. Entering
// and exiting a scope is expressed as Enter(mutator) returning a restore
// closure, so `defer changectx.Enter(...)()` guarantees restoration on
// every exit path including panics — the idiomatic Go rendition of
// spec.md §4.9's "guarantees restoration of the previous value on all
// exit paths including failure."
package changectx

import (
	"sync"
	"time"

	"github.com/bittoy/interceptor/internal/gls"
	"github.com/bittoy/interceptor/subject"
)

// Scope is the ambient state carried across a property write: who
// initiated it, and the changed/received timestamps.
type Scope struct {
	Source            any
	HasSource         bool
	ChangedTimestamp  time.Time
	HasChanged        bool
	ReceivedTimestamp time.Time
	HasReceived       bool
	Committing        bool
}

var (
	registryMu sync.Mutex
	registry   = map[uint64][]Scope{}
)

// Current returns a copy of the innermost active scope, or the zero
// Scope if none is active.
func Current() Scope {
	id := gls.ID()
	registryMu.Lock()
	defer registryMu.Unlock()
	stack := registry[id]
	if len(stack) == 0 {
		return Scope{}
	}
	return stack[len(stack)-1]
}

// Enter pushes a new scope derived from the current one by mutate, and
// returns a restore function the caller must defer-call to pop it.
func Enter(mutate func(*Scope)) func() {
	id := gls.ID()
	registryMu.Lock()
	stack := registry[id]
	var next Scope
	if len(stack) > 0 {
		next = stack[len(stack)-1]
	}
	mutate(&next)
	registry[id] = append(stack, next)
	registryMu.Unlock()

	return func() {
		registryMu.Lock()
		defer registryMu.Unlock()
		s := registry[id]
		if len(s) == 0 {
			return
		}
		s = s[:len(s)-1]
		if len(s) == 0 {
			delete(registry, id)
		} else {
			registry[id] = s
		}
	}
}

// WithSource scopes the ambient Source for the duration of the caller's
// deferred restore.
func WithSource(source any) func() {
	return Enter(func(s *Scope) { s.Source = source; s.HasSource = true })
}

// WithChangedTimestamp scopes the ambient changed-at timestamp.
func WithChangedTimestamp(t time.Time) func() {
	return Enter(func(s *Scope) { s.ChangedTimestamp = t; s.HasChanged = true })
}

// WithReceivedTimestamp scopes the ambient received-at timestamp.
func WithReceivedTimestamp(t time.Time) func() {
	return Enter(func(s *Scope) { s.ReceivedTimestamp = t; s.HasReceived = true })
}

// WithCommitting scopes whether the current write is a transaction
// commit replay (derived propagation runs normally) as opposed to a
// captured, deferred write.
func WithCommitting(committing bool) func() {
	return Enter(func(s *Scope) { s.Committing = committing })
}

// PropertyChange is the record delivered to observers once a property
// write's interception pipeline completes. spec.md §4.9, §6.
type PropertyChange struct {
	Property          subject.PropertyReference
	Source            any
	ChangedTimestamp  time.Time
	ReceivedTimestamp time.Time
	OldValue          any
	NewValue          any
}
