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

// Package lifecycle implements the lifecycle tracker: per-subject
// reference counting keyed on (subject, property) parent pairs, and the
// attach/detach event notifications fired to registered handlers.
// spec.md §4.5.
package lifecycle

import "github.com/bittoy/interceptor/subject"

// AttachSubject is fired when a subject's reference count transitions
// from N to N+1.
type AttachSubject struct {
	Subject       *subject.Subject
	Via           *subject.PropertyReference
	RefCountAfter int32
	IsFirstAttach bool
}

// DetachSubject is fired when a subject's reference count transitions
// from N to N-1.
type DetachSubject struct {
	Subject       *subject.Subject
	Via           *subject.PropertyReference
	RefCountAfter int32
	IsLastDetach  bool
}

// AttachProperty is fired once per property on a subject's first attach.
type AttachProperty struct {
	Subject  *subject.Subject
	Property string
}

// DetachProperty is fired once per property on a subject's last detach.
type DetachProperty struct {
	Subject  *subject.Subject
	Property string
}

// Handler receives every lifecycle event in a context's declaration
// order (subject to runs-before/runs-first markers on registration).
type Handler interface {
	OnAttachSubject(AttachSubject)
	OnDetachSubject(DetachSubject)
	OnAttachProperty(AttachProperty)
	OnDetachProperty(DetachProperty)
}

// Tracker fires lifecycle events against one Context's registered
// handlers and owns the reference-count bookkeeping for subjects
// attached through it.
type Tracker struct {
	ctx *subject.Context
}

// NewTracker returns a Tracker bound to ctx.
func NewTracker(ctx *subject.Context) *Tracker {
	return &Tracker{ctx: ctx}
}

// Attach records a new (parent-subject, parent-property) reference to s
// — via nil for a root attach with no parent property — and fires
// AttachSubject (and, on first attach, AttachProperty for every declared
// property) to every registered Handler in order.
func (t *Tracker) Attach(s *subject.Subject, via *subject.PropertyReference) {
	after := s.BumpRefCount(1)
	first := after == 1
	if first {
		s.Bind(t.ctx)
	}
	handlers := subject.ServicesOf[Handler](t.ctx)
	for _, h := range handlers {
		h.OnAttachSubject(AttachSubject{Subject: s, Via: via, RefCountAfter: after, IsFirstAttach: first})
	}
	if first && s.Descriptor() != nil {
		for _, pm := range s.Descriptor().Properties {
			for _, h := range handlers {
				h.OnAttachProperty(AttachProperty{Subject: s, Property: pm.Name})
			}
		}
	}
}

// Detach removes a (parent-subject, parent-property) reference to s and
// fires DetachSubject (and, on last detach, DetachProperty for every
// declared property) to every registered Handler in order.
func (t *Tracker) Detach(s *subject.Subject, via *subject.PropertyReference) {
	after := s.BumpRefCount(-1)
	last := after == 0
	handlers := subject.ServicesOf[Handler](t.ctx)
	for _, h := range handlers {
		h.OnDetachSubject(DetachSubject{Subject: s, Via: via, RefCountAfter: after, IsLastDetach: last})
	}
	if last && s.Descriptor() != nil {
		for _, pm := range s.Descriptor().Properties {
			for _, h := range handlers {
				h.OnDetachProperty(DetachProperty{Subject: s, Property: pm.Name})
			}
		}
	}
}
