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

package derived

import (
	"testing"

	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/lifecycle"
	"github.com/bittoy/interceptor/subject"
)

// box has two state properties and two chained derived properties:
// Sum = A + B, Doubled = Sum * 2 — exercising a two-level cascade.
type box struct {
	A, B    int
	Sum     int
	Doubled int
}

func newEngineContext(t *testing.T) (*subject.Context, *Engine) {
	t.Helper()
	desc := subject.NewTypeDescriptorBuilder(&box{}).
		DerivedGetter("Sum", func(s *subject.Subject) any {
			return interceptor.Get[int](s, "A") + interceptor.Get[int](s, "B")
		}).
		DerivedGetter("Doubled", func(s *subject.Subject) any {
			return interceptor.Get[int](s, "Sum") * 2
		}).
		Build()
	for _, name := range []string{"Sum", "Doubled"} {
		pm, _ := desc.Property(name)
		pm.Attributes[subject.AttrDerived] = struct{}{}
	}
	subject.RegisterType(desc)

	ctx := subject.NewContext()
	engine := NewEngine()
	if err := ctx.Register(engine.Reader, subject.RunsFirst()); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Register(engine.Writer); err != nil {
		t.Fatal(err)
	}
	if err := ctx.Register(engine.Handler, subject.RunsFirst()); err != nil {
		t.Fatal(err)
	}
	return ctx, engine
}

func TestAttachEvaluatesDerivedPropertiesOnce(t *testing.T) {
	ctx, _ := newEngineContext(t)
	s := subject.New(&box{A: 1, B: 2})
	lifecycle.NewTracker(ctx).Attach(s, nil)

	if got := interceptor.Get[int](s, "Sum"); got != 3 {
		t.Fatalf("want Sum=3 after attach, got %d", got)
	}
	if got := interceptor.Get[int](s, "Doubled"); got != 6 {
		t.Fatalf("want Doubled=6 after attach, got %d", got)
	}
}

func TestWriteCascadesThroughTwoDerivedLevels(t *testing.T) {
	ctx, _ := newEngineContext(t)
	s := subject.New(&box{A: 1, B: 2})
	lifecycle.NewTracker(ctx).Attach(s, nil)

	if err := interceptor.Set(s, "A", 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := interceptor.Get[int](s, "Sum"); got != 12 {
		t.Fatalf("want Sum=12 after writing A, got %d", got)
	}
	if got := interceptor.Get[int](s, "Doubled"); got != 24 {
		t.Fatalf("want Doubled=24 cascaded from Sum, got %d", got)
	}
}

func TestDerivedReadServesFromCacheWithoutReinvokingGetter(t *testing.T) {
	ctx, _ := newEngineContext(t)
	s := subject.New(&box{A: 1, B: 2})
	lifecycle.NewTracker(ctx).Attach(s, nil)

	calls := 0
	pm := s.Descriptor().MustProperty("Sum")
	originalRead := pm.Read
	pm.Read = func(sub *subject.Subject) any {
		calls++
		return originalRead(sub)
	}
	defer func() { pm.Read = originalRead }()

	_ = interceptor.Get[int](s, "Sum")
	_ = interceptor.Get[int](s, "Sum")
	_ = interceptor.Get[int](s, "Sum")

	if calls != 0 {
		t.Fatalf("want ordinary reads of a derived property to never re-invoke the getter, got %d calls", calls)
	}
}

func TestUnchangedRecalculationDoesNotCascadeFurther(t *testing.T) {
	ctx, _ := newEngineContext(t)
	s := subject.New(&box{A: 1, B: 2})
	lifecycle.NewTracker(ctx).Attach(s, nil)

	doubledRef := subject.Ref(s, "Doubled")
	before := dataFor(doubledRef).WriteTimestamp()

	// A same-value write still triggers Sum's recalculation (this engine
	// has no equality-suppression interceptor ahead of it in this test's
	// minimal wiring), but since Sum's recomputed value is unchanged, its
	// cascade into Doubled must not re-run Doubled's getter.
	if err := interceptor.Set(s, "A", 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := interceptor.Get[int](s, "Sum"); got != 3 {
		t.Fatalf("want Sum unaffected by a same-value write, got %d", got)
	}
	after := dataFor(doubledRef).WriteTimestamp()
	if !after.Equal(before) {
		t.Fatal("want Doubled's snapshot untouched since Sum's value did not change")
	}
}

func TestOnDetachPropertyCase1RemovesDerivedFromItsBasesUsedBy(t *testing.T) {
	ctx, engine := newEngineContext(t)
	s := subject.New(&box{A: 1, B: 2})
	lifecycle.NewTracker(ctx).Attach(s, nil)

	sumRef := subject.Ref(s, "Sum")
	aRef := subject.Ref(s, "A")
	bRef := subject.Ref(s, "B")

	if !usedBySet(aRef).Contains(sumRef) || !usedBySet(bRef).Contains(sumRef) {
		t.Fatal("precondition: Sum must be registered as a dependent of both A and B")
	}

	engine.Handler.OnDetachProperty(lifecycle.DetachProperty{Subject: s, Property: "Sum"})

	if usedBySet(aRef).Contains(sumRef) {
		t.Fatal("want Sum removed from A's used_by set on Sum's own detach")
	}
	if usedBySet(bRef).Contains(sumRef) {
		t.Fatal("want Sum removed from B's used_by set on Sum's own detach")
	}
}

func TestOnDetachPropertyCase2RemovesPropertyFromDependentsRequired(t *testing.T) {
	ctx, engine := newEngineContext(t)
	s := subject.New(&box{A: 1, B: 2})
	lifecycle.NewTracker(ctx).Attach(s, nil)

	aRef := subject.Ref(s, "A")
	sumRef := subject.Ref(s, "Sum")
	sumData := dataFor(sumRef)
	if sumData == nil || !sumData.Required.Contains(aRef) {
		t.Fatal("precondition: Sum must require A")
	}

	engine.Handler.OnDetachProperty(lifecycle.DetachProperty{Subject: s, Property: "A"})

	if sumData.Required.Contains(aRef) {
		t.Fatal("want A removed from Sum's required set once A itself detaches")
	}
}

func TestWriteDepthReturnsToZeroAfterCascadedRecalculation(t *testing.T) {
	ctx, _ := newEngineContext(t)
	s := subject.New(&box{A: 1, B: 2})
	lifecycle.NewTracker(ctx).Attach(s, nil)

	if WriteDepth() != 0 {
		t.Fatalf("want depth 0 outside any write, got %d", WriteDepth())
	}
	if err := interceptor.Set(s, "A", 5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if WriteDepth() != 0 {
		t.Fatalf("want depth back to 0 once the write (and its cascade) completes, got %d", WriteDepth())
	}
}
