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

import "reflect"

// DynamicValue wraps a weakly-typed property value (used for
// last_known_value on derived properties and for the equality-check
// interceptor) whose equality delegates to the owning property's
// declared value type: value semantics for value types, identity for
// reference types. spec.md §9 "Generic vs. boxed values".
type DynamicValue struct {
	Value any
	Type  reflect.Type
}

// NewDynamicValue wraps v, tagging it with the type t it is declared as
// on the owning PropertyMetadata (may be nil, in which case Equal falls
// back to reflect.TypeOf(v)).
func NewDynamicValue(v any, t reflect.Type) DynamicValue {
	return DynamicValue{Value: v, Type: t}
}

// Equal reports whether d and o should be treated as the same value for
// change-suppression purposes.
func (d DynamicValue) Equal(o DynamicValue) bool {
	if d.Value == nil || o.Value == nil {
		return d.Value == nil && o.Value == nil
	}
	t := d.Type
	if t == nil {
		t = reflect.TypeOf(d.Value)
	}
	if isReferenceKind(t.Kind()) {
		return identityEqual(d.Value, o.Value)
	}
	return reflect.DeepEqual(d.Value, o.Value)
}

func isReferenceKind(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer, reflect.Interface:
		return true
	default:
		return false
	}
}

// identityEqual compares two reference-typed values by pointer identity.
func identityEqual(a, b any) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Kind() != vb.Kind() {
		return false
	}
	switch va.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Func:
		return va.IsNil() == vb.IsNil() && (va.IsNil() || va.Pointer() == vb.Pointer())
	default:
		return a == b
	}
}
