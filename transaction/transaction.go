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

// Package transaction implements the transaction coordinator: an
// ambient, per-caller scope in which writes are captured rather than
// propagated, replayed on commit. spec.md §4.10.
//
// "Per caller" is modeled the same way the dependency recorder and
// change-context scope are: goroutine-local storage, since a
// transaction must be observable from inside the write interceptor
// chain without any explicit parameter threading writes already don't
// carry.
package transaction

import (
	"sync"
	"time"

	"github.com/bittoy/interceptor/changectx"
	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/internal/gls"
	"github.com/bittoy/interceptor/metrics"
	"github.com/bittoy/interceptor/subject"
)

// State is the coordinator's state machine position.
type State int

const (
	Idle State = iota
	Capturing
	Committing
	Aborting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Capturing:
		return "Capturing"
	case Committing:
		return "Committing"
	case Aborting:
		return "Aborting"
	default:
		return "Unknown"
	}
}

// captured is one recorded write intent.
type captured struct {
	ref      subject.PropertyReference
	oldValue any
	newValue any
}

// Transaction is an ambient scope capturing writes for deferred replay.
type Transaction struct {
	mu    sync.Mutex
	state State
	log   []captured
}

var (
	registryMu sync.Mutex
	registry   = map[uint64]*Transaction{}
)

// Begin opens a transaction for the calling goroutine. Returns an error
// if one is already active.
func Begin() (*Transaction, error) {
	id := gls.ID()
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[id]; ok {
		return nil, &alreadyActiveError{}
	}
	tx := &Transaction{state: Capturing}
	registry[id] = tx
	return tx, nil
}

// Active returns the calling goroutine's active transaction, or nil.
func Active() *Transaction {
	id := gls.ID()
	registryMu.Lock()
	defer registryMu.Unlock()
	return registry[id]
}

// IsActive reports whether a transaction is capturing on this goroutine
// (i.e. active and not yet committing/aborting).
func IsActive() bool {
	tx := Active()
	return tx != nil && tx.State() == Capturing
}

// State returns the transaction's current state.
func (tx *Transaction) State() State {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	return tx.state
}

// Capture records a write intent. Returns a ConcurrencyConflictError
// without capturing if expectedTS is non-nil and does not match the
// property's last-changed timestamp (spec.md §4.10 conflict detection).
// A property with no recorded last-changed timestamp counts as a
// mismatch against any expected timestamp.
func (tx *Transaction) Capture(ref subject.PropertyReference, oldValue, newValue any, expectedTS *time.Time) error {
	if expectedTS != nil {
		if actual, _ := lastChangedTimestamp(ref); !actual.Equal(*expectedTS) {
			return &subject.ConcurrencyConflictError{Property: ref, ExpectedTS: *expectedTS, ActualTS: actual}
		}
	}
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.log = append(tx.log, captured{ref: ref, oldValue: oldValue, newValue: newValue})
	return nil
}

func lastChangedTimestamp(ref subject.PropertyReference) (time.Time, bool) {
	if ref.Subject == nil {
		return time.Time{}, false
	}
	v, ok := ref.Subject.Ext().GetProperty(ref.Property, changectx.LastChangedTimestampKey)
	if !ok {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// Commit replays every captured write in insertion order with the
// change context marked is_committing = true, which causes derived
// propagation to run normally for each replayed write, and removes the
// transaction from its goroutine.
func (tx *Transaction) Commit() error {
	tx.mu.Lock()
	tx.state = Committing
	log := append([]captured(nil), tx.log...)
	tx.mu.Unlock()

	for _, c := range log {
		err := func() error {
			defer changectx.WithCommitting(true)()
			return interceptor.SetAny(c.ref.Subject, c.ref.Property, c.newValue)
		}()
		if err != nil {
			tx.finish()
			return err
		}
	}
	tx.finish()
	metrics.TransactionsTotal.WithLabelValues("committed").Inc()
	return nil
}

// Abort discards every captured write without replaying them. Since
// capture never mutates the backing store (only the pending log), abort
// is exactly "yields a graph indistinguishable from one where the
// captured writes never occurred" (spec.md §8) with nothing to restore.
func (tx *Transaction) Abort() {
	tx.mu.Lock()
	tx.state = Aborting
	tx.log = nil
	tx.mu.Unlock()
	tx.finish()
	metrics.TransactionsTotal.WithLabelValues("aborted").Inc()
}

func (tx *Transaction) finish() {
	id := gls.ID()
	registryMu.Lock()
	defer registryMu.Unlock()
	if registry[id] == tx {
		delete(registry, id)
	}
}

type alreadyActiveError struct{}

func (e *alreadyActiveError) Error() string {
	return "transaction: already active on this goroutine"
}
