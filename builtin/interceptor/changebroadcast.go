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
	"time"

	"github.com/bittoy/interceptor/changectx"
	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/metrics"
	"github.com/bittoy/interceptor/subject"
)

// ChangeBroadcast is the innermost mandatory write interceptor: once the
// terminal mutator has actually stored a value, it builds a
// PropertyChange from the ambient change-context scope and delivers it
// to every observer of this (subject, property). Registered innermost
// so a direct write's own notification is always published before the
// derived engine's own propagation into dependents runs (spec.md §4.9,
// §8 scenario 1).
type ChangeBroadcast struct{}

var _ interceptor.WriteInterceptor = ChangeBroadcast{}

func (ChangeBroadcast) PointCut(ctx *interceptor.WriteContext) bool { return true }

func (ChangeBroadcast) WriteProperty(ctx *interceptor.WriteContext, next interceptor.WriteNext) error {
	if err := next(ctx); err != nil {
		return err
	}
	if !ctx.Stored() {
		return nil
	}
	typeName := ctx.Subject.Descriptor().Type.String()
	metrics.PropertyWritesTotal.WithLabelValues(typeName, ctx.Property.Name).Inc()
	scope := changectx.Current()
	now := time.Now()
	changed, received := now, now
	if scope.HasChanged {
		changed = scope.ChangedTimestamp
	}
	if scope.HasReceived {
		received = scope.ReceivedTimestamp
	} else {
		received = changed
	}
	var source any
	if scope.HasSource {
		source = scope.Source
	}
	changectx.Publish(ctx.Subject, ctx.Property.Name, changectx.PropertyChange{
		Property:          subject.Ref(ctx.Subject, ctx.Property.Name),
		Source:            source,
		ChangedTimestamp:  changed,
		ReceivedTimestamp: received,
		OldValue:          ctx.CurrentValue,
		NewValue:          ctx.FinalValue,
	})
	return nil
}
