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

// Package interceptor is the read/write interception chain: the ordered,
// push-down invocation of handlers around every property read and write.
// spec.md §4.4.
//
// The chain is built from a subject's Context the same way
// engine/rule_context.go's onBefore/onAfter walk a ChainCtx's aspect
// lists — generalized here from per-message-hop granularity to
// per-property granularity, and from a fixed Before/After pair to an
// arbitrary-depth continuation-passing chain so an interceptor can run
// code both before and after the rest of the chain runs.
package interceptor

import (
	"fmt"

	"github.com/bittoy/interceptor/subject"
)

// ReadContext carries the state of one property read as it passes
// through the chain.
type ReadContext struct {
	Subject  *subject.Subject
	Property *subject.PropertyMetadata
}

// ReadNext is the continuation a ReadInterceptor may invoke to proceed
// to the next interceptor (or, at the end of the chain, the stored-value
// accessor).
type ReadNext func(*ReadContext) any

// ReadInterceptor is the read capability: PointCut gates whether this
// interceptor participates in a given read; ReadProperty receives next
// as an explicit continuation and decides whether, and when, to call it.
type ReadInterceptor interface {
	PointCut(ctx *ReadContext) bool
	ReadProperty(ctx *ReadContext, next ReadNext) any
}

// WriteContext carries the state of one property write as it passes
// through the chain. CurrentValue is the pre-write stored value,
// NewValue the proposed value, FinalValue the value actually stored once
// the chain's terminal mutator has run (zero value until then). Synthetic
// marks a write constructed by SetSynthetic rather than Set/SetAny — the
// derived-property engine's own recomputation pipeline, not a caller's
// direct write (spec.md §4.8 step 5).
type WriteContext struct {
	Subject      *subject.Subject
	Property     *subject.PropertyMetadata
	CurrentValue any
	NewValue     any
	FinalValue   any
	Synthetic    bool
	stored       bool
}

// Stored reports whether the terminal mutation has run.
func (c *WriteContext) Stored() bool { return c.stored }

// WriteNext is the continuation a WriteInterceptor may invoke to proceed
// to the next interceptor (or, at the end of the chain, the stored-value
// mutator). Not calling it suppresses the write (spec.md §4.4).
type WriteNext func(*WriteContext) error

// WriteInterceptor is the write capability.
type WriteInterceptor interface {
	PointCut(ctx *WriteContext) bool
	WriteProperty(ctx *WriteContext, next WriteNext) error
}

// Get performs a chain-routed property read, returning the zero value of
// T if the property's value cannot be asserted to T.
func Get[T any](s *subject.Subject, property string) T {
	pm := mustProperty(s, property)
	ctx := &ReadContext{Subject: s, Property: pm}
	chain := readChain(s)
	v := invokeRead(ctx, chain, 0)
	if t, ok := v.(T); ok {
		return t
	}
	var zero T
	return zero
}

// GetAny is Get without a static result type, for callers that only know
// the property name at runtime (e.g. a derived getter reading a property
// whose type it does not itself know, or a bridge collaborator).
func GetAny(s *subject.Subject, property string) any {
	pm := mustProperty(s, property)
	ctx := &ReadContext{Subject: s, Property: pm}
	return invokeRead(ctx, readChain(s), 0)
}

// Set performs a chain-routed property write. Returns an error if the
// property has no setter, or if any interceptor in the chain (or the
// terminal mutator) rejects the write.
func Set[T any](s *subject.Subject, property string, v T) error {
	return SetAny(s, property, any(v))
}

// SetAny is Set without static typing, used by collaborators driving
// writes from weakly-typed sources (scripts, wire protocols).
func SetAny(s *subject.Subject, property string, v any) error {
	pm := mustProperty(s, property)
	if !pm.IsMutable() {
		return fmt.Errorf("subject: property %q is not mutable", property)
	}
	ctx := &WriteContext{
		Subject:      s,
		Property:     pm,
		CurrentValue: pm.Read(s),
		NewValue:     v,
	}
	return invokeWrite(ctx, writeChain(s), 0)
}

// SetSynthetic drives oldValue→newValue through the same write chain
// Set/SetAny use — equality suppression, transaction capture, lifecycle
// attach/detach, change broadcast — but with a no-op terminal storage
// step instead of invoking the property's own setter, and without
// requiring the property to be mutable. The derived-property engine uses
// this to republish a recomputed value through the ordinary pipeline so
// observers see the normal change-event shape without the value being
// stored twice (spec.md §4.8 step 5).
func SetSynthetic(s *subject.Subject, property string, oldValue, newValue any) error {
	pm := mustProperty(s, property)
	ctx := &WriteContext{
		Subject:      s,
		Property:     pm,
		CurrentValue: oldValue,
		NewValue:     newValue,
		Synthetic:    true,
	}
	return invokeWriteWithTerminal(ctx, writeChain(s), 0, noopTerminal)
}

func mustProperty(s *subject.Subject, property string) *subject.PropertyMetadata {
	d := s.Descriptor()
	if d == nil {
		panic(fmt.Sprintf("subject: %T has no registered TypeDescriptor", s.Value()))
	}
	return d.MustProperty(property)
}

func readChain(s *subject.Subject) []ReadInterceptor {
	if c := s.Context(); c != nil {
		return subject.ServicesOf[ReadInterceptor](c)
	}
	return nil
}

func writeChain(s *subject.Subject) []WriteInterceptor {
	if c := s.Context(); c != nil {
		return subject.ServicesOf[WriteInterceptor](c)
	}
	return nil
}

func invokeRead(ctx *ReadContext, chain []ReadInterceptor, i int) any {
	if i >= len(chain) {
		return ctx.Property.Read(ctx.Subject)
	}
	ic := chain[i]
	if !ic.PointCut(ctx) {
		return invokeRead(ctx, chain, i+1)
	}
	return ic.ReadProperty(ctx, func(c *ReadContext) any { return invokeRead(c, chain, i+1) })
}

func invokeWrite(ctx *WriteContext, chain []WriteInterceptor, i int) error {
	return invokeWriteWithTerminal(ctx, chain, i, storeTerminal)
}

// invokeWriteWithTerminal drives ctx through chain starting at i, calling
// terminal once the chain is exhausted instead of always storing to the
// property's own setter — the seam SetSynthetic uses to substitute a
// no-op terminal step.
func invokeWriteWithTerminal(ctx *WriteContext, chain []WriteInterceptor, i int, terminal func(*WriteContext) error) error {
	if i >= len(chain) {
		return terminal(ctx)
	}
	ic := chain[i]
	if !ic.PointCut(ctx) {
		return invokeWriteWithTerminal(ctx, chain, i+1, terminal)
	}
	return ic.WriteProperty(ctx, func(c *WriteContext) error { return invokeWriteWithTerminal(c, chain, i+1, terminal) })
}

func storeTerminal(ctx *WriteContext) error {
	if err := ctx.Property.Write(ctx.Subject, ctx.NewValue); err != nil {
		return err
	}
	ctx.FinalValue = ctx.NewValue
	ctx.stored = true
	return nil
}

// noopTerminal marks a synthetic write as stored without touching the
// property's backing field: the derived engine's cached last_known_value
// is the only place the recomputed value actually lives.
func noopTerminal(ctx *WriteContext) error {
	ctx.FinalValue = ctx.NewValue
	ctx.stored = true
	return nil
}
