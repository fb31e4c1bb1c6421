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
	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/lifecycle"
	"github.com/bittoy/interceptor/subject"
)

// NestedSubjects is implemented by a property's Go value type when that
// value wraps one or more other Subjects participating in the same
// object graph (a has-many edge); the lifecycle write interceptor uses
// it, alongside the simpler single *subject.Subject case, to find what
// to attach or detach when such a property's value changes.
type NestedSubjects interface {
	ChildSubjects() []*subject.Subject
}

func childrenOf(v any) []*subject.Subject {
	switch t := v.(type) {
	case nil:
		return nil
	case *subject.Subject:
		if t == nil {
			return nil
		}
		return []*subject.Subject{t}
	case NestedSubjects:
		return t.ChildSubjects()
	default:
		return nil
	}
}

// LifecycleWrite fires attach/detach notifications when a write
// introduces or removes a nested subject from the graph, once storage
// has actually happened. spec.md §4.5.
type LifecycleWrite struct {
	tracker *lifecycle.Tracker
}

// NewLifecycleWrite returns a LifecycleWrite bound to ctx's Tracker.
func NewLifecycleWrite(ctx *subject.Context) *LifecycleWrite {
	return &LifecycleWrite{tracker: lifecycle.NewTracker(ctx)}
}

var _ interceptor.WriteInterceptor = (*LifecycleWrite)(nil)

func (*LifecycleWrite) PointCut(ctx *interceptor.WriteContext) bool { return true }

func (l *LifecycleWrite) WriteProperty(ctx *interceptor.WriteContext, next interceptor.WriteNext) error {
	oldValue := ctx.CurrentValue
	if err := next(ctx); err != nil {
		return err
	}
	if !ctx.Stored() {
		return nil
	}
	ref := subject.Ref(ctx.Subject, ctx.Property.Name)
	for _, child := range childrenOf(oldValue) {
		l.tracker.Detach(child, &ref)
	}
	for _, child := range childrenOf(ctx.FinalValue) {
		l.tracker.Attach(child, &ref)
	}
	return nil
}
