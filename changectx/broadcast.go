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

package changectx

import (
	"sync"
	"sync/atomic"
)

type subEntry struct {
	id uint64
	fn func(PropertyChange)
}

// Observable is a fan-out broadcast to subscribers registered at any
// time. Subscribe/Unsubscribe copy-on-write a new subscriber snapshot
// under a mutex; Publish only ever does an atomic load and never takes
// the mutex, so emission never blocks a concurrent subscribe and never
// allocates when there are no subscribers. spec.md §4.9, §5.
type Observable struct {
	mu     sync.Mutex
	subs   atomic.Pointer[[]subEntry]
	nextID uint64
}

// NewObservable returns an Observable with no subscribers.
func NewObservable() *Observable {
	o := &Observable{}
	empty := []subEntry{}
	o.subs.Store(&empty)
	return o
}

// Subscribe registers fn to receive every future Publish call, in
// emission order relative to other subscribers present at emission
// time. Returns an unsubscribe function.
func (o *Observable) Subscribe(fn func(PropertyChange)) (unsubscribe func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.nextID++
	id := o.nextID
	old := *o.subs.Load()
	next := make([]subEntry, len(old)+1)
	copy(next, old)
	next[len(old)] = subEntry{id: id, fn: fn}
	o.subs.Store(&next)
	return func() { o.unsubscribe(id) }
}

func (o *Observable) unsubscribe(id uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	old := *o.subs.Load()
	next := make([]subEntry, 0, len(old))
	for _, e := range old {
		if e.id != id {
			next = append(next, e)
		}
	}
	o.subs.Store(&next)
}

// Publish delivers change to every currently-subscribed observer, in
// subscription order. Short-circuits with zero allocation when there are
// no subscribers.
func (o *Observable) Publish(change PropertyChange) {
	subs := *o.subs.Load()
	if len(subs) == 0 {
		return
	}
	for _, e := range subs {
		e.fn(change)
	}
}

// SubscriberCount reports the current number of subscribers; mostly
// useful in tests.
func (o *Observable) SubscriberCount() int {
	return len(*o.subs.Load())
}
