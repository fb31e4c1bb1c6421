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

// Package interceptor assembles the mandatory write/read interceptors
// spec.md §4.4 lists outside the derived-property engine itself —
// equality suppression, transaction capture, lifecycle attach/detach,
// and change-notification broadcast — and wires them, plus the derived
// engine, into a subject.Context in the order their cross-cutting
// concerns require. spec.md §4.4, §4.5, §4.9, §4.10.
package interceptor

import (
	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/subject"
)

// EqualityCheck suppresses writes whose new value equals the current
// one: no downstream interceptor runs and no change notification is ever
// constructed. spec.md §4.4 "Equality check".
type EqualityCheck struct{}

var _ interceptor.WriteInterceptor = EqualityCheck{}

func (EqualityCheck) PointCut(ctx *interceptor.WriteContext) bool { return true }

func (EqualityCheck) WriteProperty(ctx *interceptor.WriteContext, next interceptor.WriteNext) error {
	cur := subject.NewDynamicValue(ctx.CurrentValue, ctx.Property.ValueType)
	nv := subject.NewDynamicValue(ctx.NewValue, ctx.Property.ValueType)
	if cur.Equal(nv) {
		return nil
	}
	return next(ctx)
}
