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

import "fmt"

// PropertyReference is the canonical (subject, property-name) handle
// passed through the interception chain and stored in edge sets.
// PropertyReference 是贯穿拦截链并存储在边集合中的规范 (subject, 属性名) 句柄。
//
// Equality is by both components. It is cheap to copy, safe to use as a
// map key, and safe to compare with ==; it does not own the subject it
// points at.
type PropertyReference struct {
	Subject  *Subject
	Property string
}

// Ref builds a PropertyReference. Kept as a constructor (rather than a
// bare struct literal at every call site) so call sites read like the
// domain concept they express.
func Ref(s *Subject, property string) PropertyReference {
	return PropertyReference{Subject: s, Property: property}
}

func (r PropertyReference) String() string {
	id := "<nil>"
	if r.Subject != nil {
		id = r.Subject.ID.String()
	}
	return fmt.Sprintf("%s#%s", id, r.Property)
}

// Equal reports whether two references address the same subject and
// property. Safe to call on a zero-value PropertyReference.
func (r PropertyReference) Equal(o PropertyReference) bool {
	return r.Subject == o.Subject && r.Property == o.Property
}

// IsZero reports whether the reference carries no subject.
func (r PropertyReference) IsZero() bool {
	return r.Subject == nil && r.Property == ""
}
