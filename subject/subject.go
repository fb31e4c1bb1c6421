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

import (
	"reflect"
	"sync/atomic"

	"github.com/gofrs/uuid/v5"
)

// Subject is a stateful object with a fixed set of typed properties and
// methods as declared by its TypeDescriptor. It has a stable identity, a
// reference to the Context it is attached to (nil until first attach),
// and a per-subject extension data map. spec.md §3 "Subject".
// Subject 是一个具有固定类型属性和方法集合的有状态对象。
//
// Subjects are created by user code via New; they participate in the
// model only once attached to a Context.
type Subject struct {
	ID         uuid.UUID
	descriptor *TypeDescriptor
	value      any
	ext        *ExtensionDataMap

	ctx      atomic.Pointer[Context]
	refCount int32
}

// New wraps value (normally a pointer to a plain Go struct previously
// described via NewTypeDescriptorBuilder/RegisterType) as a Subject.
func New(value any) *Subject {
	id, err := uuid.NewV4()
	if err != nil {
		// uuid v4 generation only fails if the source of randomness is
		// broken; there is no sane recovery, and every other component
		// in this runtime assumes a subject's identity is always valid.
		panic("subject: failed to generate identity: " + err.Error())
	}
	desc, _ := DescriptorFor(reflect.TypeOf(value))
	return &Subject{
		ID:         id,
		descriptor: desc,
		value:      value,
		ext:        newExtensionDataMap(),
	}
}

// Descriptor returns the subject's TypeDescriptor, or nil if its Go type
// was never registered.
func (s *Subject) Descriptor() *TypeDescriptor { return s.descriptor }

// Value returns the wrapped Go value backing plain (non-derived)
// property accessors.
func (s *Subject) Value() any { return s.value }

// Ext returns the subject's extension data map.
func (s *Subject) Ext() *ExtensionDataMap { return s.ext }

// Context returns the Context this subject is currently attached to, or
// nil if unattached.
func (s *Subject) Context() *Context { return s.ctx.Load() }

// setContext is called by the lifecycle tracker on first attach; a
// subject may reattach to a different context after a full detach.
func (s *Subject) setContext(c *Context) { s.ctx.Store(c) }

// RefCount returns the subject's current reference count: the number of
// distinct (parent-subject, parent-property) pairs holding it.
func (s *Subject) RefCount() int32 { return atomic.LoadInt32(&s.refCount) }

// BumpRefCount adjusts the subject's reference count by delta and
// returns the new value. Reserved for the lifecycle tracker — it is the
// only component permitted to mutate a subject's reference count.
func (s *Subject) BumpRefCount(delta int32) int32 {
	return atomic.AddInt32(&s.refCount, delta)
}

// Bind attaches the subject to ctx: if this is the context's first
// attaching subject, the context freezes (further capability
// registration becomes a ContextFrozenError). Reserved for the lifecycle
// tracker.
func (s *Subject) Bind(c *Context) {
	c.attach(s)
}

