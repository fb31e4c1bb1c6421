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
	"context"
	"sync"
)

// QueueSubscription is the second change-delivery shape: a single-
// consumer, unbounded FIFO with a doorbell signal. Enqueue never blocks
// the producer (spec.md §4.9 "producer never blocks", §8 scenario 6);
// Dequeue blocks until an item arrives or ctx is cancelled. A disposed
// subscription wakes its blocked consumer exactly once.
type QueueSubscription struct {
	mu     sync.Mutex
	items  []PropertyChange
	signal chan struct{}
	closed bool
}

// NewQueueSubscription returns an empty, open subscription.
func NewQueueSubscription() *QueueSubscription {
	return &QueueSubscription{signal: make(chan struct{}, 1)}
}

// Enqueue appends change to the queue and wakes a blocked consumer, if
// any. Never blocks: the doorbell send is non-blocking (buffered size 1,
// coalescing redundant wakeups), and the append is a mutex-protected
// slice append, not a bounded channel send.
func (q *QueueSubscription) Enqueue(change PropertyChange) {
	q.mu.Lock()
	q.items = append(q.items, change)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}

// Dequeue blocks until an item is available, the subscription is
// disposed, or ctx is cancelled. Returns (change, true) on success,
// (zero, false) otherwise.
func (q *QueueSubscription) Dequeue(ctx context.Context) (PropertyChange, bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items = q.items[1:]
			q.mu.Unlock()
			return item, true
		}
		closed := q.closed
		q.mu.Unlock()
		if closed {
			return PropertyChange{}, false
		}
		select {
		case <-q.signal:
			continue
		case <-ctx.Done():
			return PropertyChange{}, false
		}
	}
}

// Len reports the number of items currently queued.
func (q *QueueSubscription) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dispose marks the subscription closed and wakes its consumer exactly
// once; subsequent Dequeue calls drain remaining items then return
// (zero, false).
func (q *QueueSubscription) Dispose() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
}
