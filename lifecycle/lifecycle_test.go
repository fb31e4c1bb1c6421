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

package lifecycle

import (
	"testing"

	"github.com/bittoy/interceptor/subject"
)

type widget struct {
	Name  string
	Count int
}

type recordingHandler struct {
	attachedSubjects, detachedSubjects []AttachSubject
	detached                           []DetachSubject
	attachedProps                      []AttachProperty
	detachedProps                      []DetachProperty
}

func (h *recordingHandler) OnAttachSubject(e AttachSubject) { h.attachedSubjects = append(h.attachedSubjects, e) }
func (h *recordingHandler) OnDetachSubject(e DetachSubject) { h.detached = append(h.detached, e) }
func (h *recordingHandler) OnAttachProperty(e AttachProperty) {
	h.attachedProps = append(h.attachedProps, e)
}
func (h *recordingHandler) OnDetachProperty(e DetachProperty) {
	h.detachedProps = append(h.detachedProps, e)
}

func newCtx(t *testing.T) *subject.Context {
	t.Helper()
	desc := subject.NewTypeDescriptorBuilder(&widget{}).Build()
	subject.RegisterType(desc)
	return subject.NewContext()
}

func TestAttachFiresSubjectAndPropertyEventsOnFirstAttach(t *testing.T) {
	ctx := newCtx(t)
	h := &recordingHandler{}
	if err := ctx.Register(h); err != nil {
		t.Fatal(err)
	}
	tracker := NewTracker(ctx)
	s := subject.New(&widget{Name: "lamp", Count: 1})

	tracker.Attach(s, nil)

	if len(h.attachedSubjects) != 1 || !h.attachedSubjects[0].IsFirstAttach {
		t.Fatalf("want exactly one first-attach event, got %v", h.attachedSubjects)
	}
	if h.attachedSubjects[0].RefCountAfter != 1 {
		t.Fatalf("want ref count 1 after first attach, got %d", h.attachedSubjects[0].RefCountAfter)
	}
	if len(h.attachedProps) != 2 {
		t.Fatalf("want AttachProperty fired once per declared property, got %d", len(h.attachedProps))
	}
}

func TestSecondAttachDoesNotRefireAttachProperty(t *testing.T) {
	ctx := newCtx(t)
	h := &recordingHandler{}
	if err := ctx.Register(h); err != nil {
		t.Fatal(err)
	}
	tracker := NewTracker(ctx)
	s := subject.New(&widget{})

	tracker.Attach(s, nil)
	tracker.Attach(s, nil)

	if len(h.attachedSubjects) != 2 {
		t.Fatalf("want two AttachSubject events, got %d", len(h.attachedSubjects))
	}
	if h.attachedSubjects[1].IsFirstAttach {
		t.Fatal("want the second attach not marked as first")
	}
	if h.attachedSubjects[1].RefCountAfter != 2 {
		t.Fatalf("want ref count 2 after second attach, got %d", h.attachedSubjects[1].RefCountAfter)
	}
	if len(h.attachedProps) != 2 {
		t.Fatalf("want AttachProperty still fired only once per property across both attaches, got %d", len(h.attachedProps))
	}
}

func TestDetachFiresDetachPropertyOnlyOnLastDetach(t *testing.T) {
	ctx := newCtx(t)
	h := &recordingHandler{}
	if err := ctx.Register(h); err != nil {
		t.Fatal(err)
	}
	tracker := NewTracker(ctx)
	s := subject.New(&widget{})

	tracker.Attach(s, nil)
	tracker.Attach(s, nil)
	tracker.Detach(s, nil)
	if len(h.detachedProps) != 0 {
		t.Fatal("want no DetachProperty events while a reference remains")
	}
	tracker.Detach(s, nil)
	if len(h.detachedProps) != 2 {
		t.Fatalf("want DetachProperty fired once per property on the last detach, got %d", len(h.detachedProps))
	}
	if !h.detached[len(h.detached)-1].IsLastDetach {
		t.Fatal("want the final DetachSubject event marked as the last detach")
	}
	if h.detached[len(h.detached)-1].RefCountAfter != 0 {
		t.Fatalf("want ref count 0 after the last detach, got %d", h.detached[len(h.detached)-1].RefCountAfter)
	}
}

func TestAttachViaPropertyReferenceIsRecordedOnTheEvent(t *testing.T) {
	ctx := newCtx(t)
	h := &recordingHandler{}
	if err := ctx.Register(h); err != nil {
		t.Fatal(err)
	}
	tracker := NewTracker(ctx)
	parent := subject.New(&widget{})
	child := subject.New(&widget{})
	via := subject.Ref(parent, "Name")

	tracker.Attach(child, &via)

	if h.attachedSubjects[0].Via == nil || h.attachedSubjects[0].Via.Property != "Name" {
		t.Fatalf("want the parent property reference recorded on the event, got %v", h.attachedSubjects[0].Via)
	}
}

func TestHandlersAreInvokedInRegistrationOrder(t *testing.T) {
	ctx := newCtx(t)
	var order []string
	h1 := &orderRecorder{name: "first", order: &order}
	h2 := &orderRecorder{name: "second", order: &order}
	if err := ctx.Register(h1); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Register(h2); err != nil {
		t.Fatal(err)
	}
	NewTracker(ctx).Attach(subject.New(&widget{}), nil)

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("want handlers invoked in registration order, got %v", order)
	}
}

type orderRecorder struct {
	name  string
	order *[]string
}

func (o *orderRecorder) OnAttachSubject(AttachSubject)   { *o.order = append(*o.order, o.name) }
func (o *orderRecorder) OnDetachSubject(DetachSubject)   {}
func (o *orderRecorder) OnAttachProperty(AttachProperty) {}
func (o *orderRecorder) OnDetachProperty(DetachProperty) {}
