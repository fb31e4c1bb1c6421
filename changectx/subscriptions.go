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

	"github.com/bittoy/interceptor/subject"
)

// LastChangedTimestampKey is the extension-data key Publish maintains
// per property; the transaction coordinator's conflict detection reads
// it back (spec.md §4.10).
const LastChangedTimestampKey = "subject.timestamp.last_changed"

const observableKey = "subject.changectx.observable"
const queuesKey = "subject.changectx.queues"

type queueList struct {
	mu   sync.Mutex
	subs []*QueueSubscription
}

func observableFor(s *subject.Subject, property string) *Observable {
	v := s.Ext().GetOrInsertPropertyWith(property, observableKey, func() any {
		return NewObservable()
	})
	return v.(*Observable)
}

func queuesFor(s *subject.Subject, property string) *queueList {
	v := s.Ext().GetOrInsertPropertyWith(property, queuesKey, func() any {
		return &queueList{}
	})
	return v.(*queueList)
}

// Subscribe registers fn on the observable-broadcast channel for
// (s, property); returns an unsubscribe function.
func Subscribe(s *subject.Subject, property string, fn func(PropertyChange)) func() {
	return observableFor(s, property).Subscribe(fn)
}

// NewSubscription creates and registers a QueueSubscription for
// (s, property); every future Publish enqueues to it until Dispose.
func NewSubscription(s *subject.Subject, property string) *QueueSubscription {
	q := NewQueueSubscription()
	ql := queuesFor(s, property)
	ql.mu.Lock()
	ql.subs = append(ql.subs, q)
	ql.mu.Unlock()
	return q
}

// Publish delivers change to every observable subscriber and every queue
// subscription registered on (s, property), and records its
// ChangedTimestamp as the property's last-changed timestamp for
// transaction conflict detection. The timestamp is recorded on every
// call, so Publish allocates even when there are no subscribers of
// either shape (spec.md §4.9, §5).
func Publish(s *subject.Subject, property string, change PropertyChange) {
	s.Ext().PutProperty(property, LastChangedTimestampKey, change.ChangedTimestamp)

	observableFor(s, property).Publish(change)

	ql := queuesFor(s, property)
	ql.mu.Lock()
	subs := append([]*QueueSubscription(nil), ql.subs...)
	ql.mu.Unlock()
	for _, q := range subs {
		q.Enqueue(change)
	}
}
