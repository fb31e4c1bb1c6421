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

package interceptor

import (
	"testing"

	"github.com/bittoy/interceptor/changectx"
	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/subject"
)

type widget struct {
	Name string
}

func TestEqualityCheckSuppressesSameValueWrite(t *testing.T) {
	desc := subject.NewTypeDescriptorBuilder(&widget{}).Build()
	pm, _ := desc.Property("Name")
	ctx := &interceptor.WriteContext{CurrentValue: "lamp", NewValue: "lamp", Property: pm}
	called := false
	err := EqualityCheck{}.WriteProperty(ctx, func(*interceptor.WriteContext) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if called {
		t.Fatal("want the chain short-circuited on an equal value, not continued")
	}
}

func TestEqualityCheckPassesThroughDifferentValue(t *testing.T) {
	desc := subject.NewTypeDescriptorBuilder(&widget{}).Build()
	pm, _ := desc.Property("Name")
	ctx := &interceptor.WriteContext{CurrentValue: "lamp", NewValue: "desk", Property: pm}
	called := false
	_ = EqualityCheck{}.WriteProperty(ctx, func(*interceptor.WriteContext) error {
		called = true
		return nil
	})
	if !called {
		t.Fatal("want the chain to continue on a changed value")
	}
}

type container struct {
	Name  string
	Child *subject.Subject
}

func newContainerContext(t *testing.T) *subject.Context {
	t.Helper()
	subject.RegisterType(subject.NewTypeDescriptorBuilder(&widget{}).Build())
	subject.RegisterType(subject.NewTypeDescriptorBuilder(&container{}).Build())
	ctx := subject.NewContext()
	if _, err := RegisterCore(ctx); err != nil {
		t.Fatal(err)
	}
	return ctx
}

func TestRegisterCoreOrdersEqualityCheckBeforeChangeBroadcast(t *testing.T) {
	ctx := newContainerContext(t)
	s := subject.New(&widget{Name: "lamp"})
	s.Bind(ctx)

	var changes int
	stop := changectx.Subscribe(s, "Name", func(changectx.PropertyChange) { changes++ })
	defer stop()

	if err := interceptor.Set(s, "Name", "lamp"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changes != 0 {
		t.Fatalf("want equality check to suppress the write before change broadcast runs, got %d notifications", changes)
	}

	if err := interceptor.Set(s, "Name", "desk"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if changes != 1 {
		t.Fatalf("want exactly one notification for the changed write, got %d", changes)
	}
}

func TestChangeBroadcastPublishesOnlyAfterStorage(t *testing.T) {
	ctx := newContainerContext(t)
	s := subject.New(&widget{Name: "lamp"})
	s.Bind(ctx)

	var received changectx.PropertyChange
	stop := changectx.Subscribe(s, "Name", func(c changectx.PropertyChange) { received = c })
	defer stop()

	if err := interceptor.Set(s, "Name", "desk"); err != nil {
		t.Fatal(err)
	}
	if received.NewValue != "desk" || received.OldValue != "lamp" {
		t.Fatalf("want the broadcast to carry the actually-stored old/new values, got %+v", received)
	}
}

func TestLifecycleWriteAttachesAndDetachesNestedSubjectOnReplace(t *testing.T) {
	ctx := newContainerContext(t)
	c := subject.New(&container{Name: "box"})
	c.Bind(ctx)

	child1 := subject.New(&widget{Name: "first"})
	if err := interceptor.Set(c, "Child", child1); err != nil {
		t.Fatal(err)
	}
	if child1.RefCount() != 1 {
		t.Fatalf("want the first child attached once its reference is stored, got refcount %d", child1.RefCount())
	}

	child2 := subject.New(&widget{Name: "second"})
	if err := interceptor.Set(c, "Child", child2); err != nil {
		t.Fatal(err)
	}
	if child1.RefCount() != 0 {
		t.Fatalf("want the replaced child detached, got refcount %d", child1.RefCount())
	}
	if child2.RefCount() != 1 {
		t.Fatalf("want the new child attached, got refcount %d", child2.RefCount())
	}
}
