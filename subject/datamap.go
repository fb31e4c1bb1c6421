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

package subject

import "sync"

// dataKey is a per-subject data map key: the (property-name-or-none, key)
// pair. hasProperty distinguishes a subject-scoped slot (None) from a
// property-scoped one (Some(property)), since "" is itself a valid key.
type dataKey struct {
	property    string
	hasProperty bool
	key         string
}

// ExtensionDataMap is the sole persistence point for extension state on a
// subject: timestamps, dependency edge sets, authorization overrides,
// source-path bindings, cached last-known values. Keys are namespaced by
// dot-separated prefixes per extension (spec.md §6 "extension data key
// namespace").
// ExtensionDataMap 是 subject 扩展状态的唯一持久化点。
//
// Not on the hot path the edge set occupies (spec.md §5 shared-resource
// policy names the edge set as the only lock-free structure); a mutex
// protecting a plain map is the correct, idiomatic tool here.
type ExtensionDataMap struct {
	mu sync.Mutex
	m  map[dataKey]any
}

func newExtensionDataMap() *ExtensionDataMap {
	return &ExtensionDataMap{m: map[dataKey]any{}}
}

func subjectKey(key string) dataKey      { return dataKey{key: key, hasProperty: false} }
func propertyKey(p, key string) dataKey { return dataKey{property: p, hasProperty: true, key: key} }

// Get returns the subject-scoped slot for key, or (nil, false).
func (d *ExtensionDataMap) Get(key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.m[subjectKey(key)]
	return v, ok
}

// GetProperty returns the property-scoped slot for (property, key).
func (d *ExtensionDataMap) GetProperty(property, key string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.m[propertyKey(property, key)]
	return v, ok
}

// Put overwrites the subject-scoped slot for key.
func (d *ExtensionDataMap) Put(key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[subjectKey(key)] = value
}

// PutProperty overwrites the property-scoped slot for (property, key).
func (d *ExtensionDataMap) PutProperty(property, key string, value any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.m[propertyKey(property, key)] = value
}

// GetOrInsertWith returns the existing subject-scoped value for key, or
// calls factory exactly once to produce and store one.
func (d *ExtensionDataMap) GetOrInsertWith(key string, factory func() any) any {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := subjectKey(key)
	if v, ok := d.m[k]; ok {
		return v
	}
	v := factory()
	d.m[k] = v
	return v
}

// GetOrInsertPropertyWith is GetOrInsertWith for a property-scoped slot.
func (d *ExtensionDataMap) GetOrInsertPropertyWith(property, key string, factory func() any) any {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := propertyKey(property, key)
	if v, ok := d.m[k]; ok {
		return v
	}
	v := factory()
	d.m[k] = v
	return v
}

// Update applies f to the current subject-scoped value for key (nil if
// absent) and stores the result; equivalent to a compare-and-swap loop
// under the map's mutex.
func (d *ExtensionDataMap) Update(key string, f func(any) any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := subjectKey(key)
	d.m[k] = f(d.m[k])
}

// UpdateProperty is Update for a property-scoped slot.
func (d *ExtensionDataMap) UpdateProperty(property, key string, f func(any) any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	k := propertyKey(property, key)
	d.m[k] = f(d.m[k])
}

// DeleteProperty removes a property-scoped slot, used by lifecycle
// detach cleanup.
func (d *ExtensionDataMap) DeleteProperty(property, key string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.m, propertyKey(property, key))
}
