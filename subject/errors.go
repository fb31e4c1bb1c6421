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
	"fmt"
	"time"
)

// ContextFrozenError is returned when a capability is registered on a
// Context after its first subject has attached.
// ContextFrozenError 在第一个 subject 附加之后向 Context 注册能力时返回。
type ContextFrozenError struct {
	Capability string
}

func (e *ContextFrozenError) Error() string {
	return fmt.Sprintf("subject: context frozen, cannot register capability %q after first attach", e.Capability)
}

// HandlerOrderCycleError is returned when the runs-before/runs-first
// markers on a set of registered handlers cannot be topologically sorted.
type HandlerOrderCycleError struct {
	Capability string
	Cycle      []string
}

func (e *HandlerOrderCycleError) Error() string {
	return fmt.Sprintf("subject: cycle in handler order for capability %q: %v", e.Capability, e.Cycle)
}

// ValidationFailedError is raised by a write interceptor that enforces a
// validation policy; the write is aborted before storage.
type ValidationFailedError struct {
	Details string
	Inner   error
}

func (e *ValidationFailedError) Error() string {
	if e.Inner != nil {
		return fmt.Sprintf("subject: validation failed: %s: %v", e.Details, e.Inner)
	}
	return fmt.Sprintf("subject: validation failed: %s", e.Details)
}

func (e *ValidationFailedError) Unwrap() error { return e.Inner }

// ConcurrencyConflictError is raised by the transaction coordinator when a
// captured write's expected timestamp does not match the property's
// current last-changed timestamp.
type ConcurrencyConflictError struct {
	Property   PropertyReference
	ExpectedTS time.Time
	ActualTS   time.Time
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("subject: concurrency conflict on %s: expected ts=%s actual ts=%s",
		e.Property, e.ExpectedTS, e.ActualTS)
}

// RecorderUnderflowError is a fatal, internal-invariant error: the
// dependency recorder stack was popped more times than it was pushed.
type RecorderUnderflowError struct{}

func (e *RecorderUnderflowError) Error() string {
	return "subject: dependency recorder stack underflow"
}
