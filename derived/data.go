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

// Package derived implements the derived-property engine: the central
// algorithm that records dependencies, recomputes derived properties on
// change, and maintains both the forward (required) and backward
// (used-by) dependency edges. spec.md §4.8.
package derived

import (
	"sync/atomic"
	"time"

	"github.com/bittoy/interceptor/edgeset"
	"github.com/bittoy/interceptor/subject"
)

const (
	usedByKey   = "subject.derived.used_by"
	snapshotKey = "subject.derived.snapshot"
)

// snapshot pairs a derived property's last computed value with the
// write timestamp it was computed at; stored behind one atomic pointer
// so a reader never observes a torn (value, ts) pair.
type snapshot struct {
	value subject.DynamicValue
	ts    time.Time
}

// Data is DerivedPropertyData, the property-scoped slot spec.md §3
// describes: required_properties, used_by_properties, last_known_value.
type Data struct {
	Required *edgeset.EdgeSet
	UsedBy   *edgeset.EdgeSet
	snap     atomic.Pointer[snapshot]
}

// LastKnownValue returns the most recently computed value, used as the
// old-value side of the next change notification.
func (d *Data) LastKnownValue() subject.DynamicValue {
	if s := d.snap.Load(); s != nil {
		return s.value
	}
	return subject.DynamicValue{}
}

// WriteTimestamp returns the timestamp the last recomputation (or
// attach-time evaluation) was recorded at.
func (d *Data) WriteTimestamp() time.Time {
	if s := d.snap.Load(); s != nil {
		return s.ts
	}
	return time.Time{}
}

func (d *Data) setSnapshot(v subject.DynamicValue, ts time.Time) {
	d.snap.Store(&snapshot{value: v, ts: ts})
}

// requiredData returns the Data slot for a derived property, creating it
// if absent.
func requiredData(ref subject.PropertyReference) *Data {
	v := ref.Subject.Ext().GetOrInsertPropertyWith(ref.Property, snapshotKey, func() any {
		return &Data{Required: edgeset.New(), UsedBy: edgeset.New()}
	})
	return v.(*Data)
}

// usedBySet returns the used_by_properties edge set for any property
// (derived or not — it is just the reverse index), creating it if
// absent. Kept distinct from Data because a non-derived base property
// still needs a used_by_properties slot even though it never gets a
// full Data record.
func usedBySet(ref subject.PropertyReference) *edgeset.EdgeSet {
	v := ref.Subject.Ext().GetOrInsertPropertyWith(ref.Property, usedByKey, func() any {
		return edgeset.New()
	})
	return v.(*edgeset.EdgeSet)
}

// dataFor returns the Data slot for a property already known to be
// derived (set up at AttachProperty time), or nil.
func dataFor(ref subject.PropertyReference) *Data {
	v, ok := ref.Subject.Ext().GetProperty(ref.Property, snapshotKey)
	if !ok {
		return nil
	}
	return v.(*Data)
}
