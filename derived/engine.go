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
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/bittoy/interceptor/changectx"
	"github.com/bittoy/interceptor/edgeset"
	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/internal/gls"
	"github.com/bittoy/interceptor/lifecycle"
	"github.com/bittoy/interceptor/metrics"
	"github.com/bittoy/interceptor/recorder"
	"github.com/bittoy/interceptor/subject"
)

// Engine is the derived-property engine. interceptor.ReadInterceptor and
// interceptor.WriteInterceptor both declare a PointCut method, but with
// different parameter types — one Go type cannot implement both (method
// names don't overload on parameter type), so the engine is three
// cooperating, stateless sub-components sharing the package-level write-
// depth/deferred-removal bookkeeping and each subject's extension-data
// slots (derived/data.go). Register all three into the same Context,
// the Reader and Handler with subject.RunsFirst() so the read hook
// records dependencies before any other handler can observe the read,
// and the Writer with subject.RunsBefore on the lifecycle write
// interceptor (spec.md §4.5, §4.8).
type Engine struct {
	Reader  EngineReader
	Writer  EngineWriter
	Handler EngineHandler
}

// EngineReader is the derived engine's ReadInterceptor half.
type EngineReader struct{}

// EngineWriter is the derived engine's WriteInterceptor half.
type EngineWriter struct{}

// EngineHandler is the derived engine's lifecycle.Handler half.
type EngineHandler struct{}

// NewEngine returns a ready-to-register Engine. Every sub-component is
// stateless (all per-property bookkeeping lives in extension data), so
// one Engine value may be shared across contexts.
func NewEngine() *Engine { return &Engine{} }

var _ interceptor.ReadInterceptor = EngineReader{}
var _ interceptor.WriteInterceptor = EngineWriter{}
var _ lifecycle.Handler = EngineHandler{}

// write-depth and deferred-removal bookkeeping, goroutine-local for the
// same reason recorder/changectx/transaction are: WriteProperty carries
// no explicit per-call context object the lifecycle detach path could
// thread a "currently writing" flag through.

type pendingRemoval struct {
	used    *edgeset.EdgeSet
	derived subject.PropertyReference
}

var (
	depthMu sync.Mutex
	depth   = map[uint64]int{}
	pending = map[uint64][]pendingRemoval{}
)

func enterWrite() {
	id := gls.ID()
	depthMu.Lock()
	depth[id]++
	depthMu.Unlock()
}

func exitWrite() []pendingRemoval {
	id := gls.ID()
	depthMu.Lock()
	depth[id]--
	var flushed []pendingRemoval
	if depth[id] <= 0 {
		delete(depth, id)
		flushed = pending[id]
		delete(pending, id)
	}
	depthMu.Unlock()
	return flushed
}

func writeDepth() int {
	id := gls.ID()
	depthMu.Lock()
	defer depthMu.Unlock()
	return depth[id]
}

// deferRemoval removes derived from used, immediately if no write is in
// flight on this goroutine, or once the in-flight write completes
// otherwise. It carries both reconcileUsedBy's used-by pruning and
// OnDetachProperty's Case 2 required-set removals; for the latter, a
// derived property recalculated by the same write will usually have
// already replaced its required_properties wholesale by the time the
// deferred removal runs, so that removal finds nothing (spec.md §4.5).
func deferRemoval(used *edgeset.EdgeSet, derivedRef subject.PropertyReference) {
	id := gls.ID()
	depthMu.Lock()
	if depth[id] > 0 {
		pending[id] = append(pending[id], pendingRemoval{used: used, derived: derivedRef})
		depthMu.Unlock()
		return
	}
	depthMu.Unlock()
	used.Remove(derivedRef)
}

// PointCut participates in every read.
func (EngineReader) PointCut(ctx *interceptor.ReadContext) bool { return true }

// ReadProperty serves derived reads from the cached last-known-value
// instead of re-invoking the getter (recomputation is push-driven, off
// writes — see WriteProperty), and records the read against the active
// recorder frame, if any, regardless of whether the property is derived.
func (EngineReader) ReadProperty(ctx *interceptor.ReadContext, next interceptor.ReadNext) any {
	var v any
	if ctx.Property.IsDerived() {
		ref := subject.Ref(ctx.Subject, ctx.Property.Name)
		if data := dataFor(ref); data != nil {
			v = data.LastKnownValue().Value
		} else {
			// Read before any AttachProperty evaluation has run (e.g. the
			// subject was never attached to a context). Fall back to a
			// direct, unrecorded evaluation so the read is still well
			// defined.
			v = ctx.Property.Read(ctx.Subject)
		}
	} else {
		v = next(ctx)
	}
	if recorder.IsRecording() {
		recorder.Touch(subject.Ref(ctx.Subject, ctx.Property.Name))
	}
	return v
}

// PointCut participates in every write.
func (EngineWriter) PointCut(ctx *interceptor.WriteContext) bool { return true }

// WriteProperty brackets the rest of the chain with the write-depth
// counter, then — once the value is actually stored — recomputes a
// derived-with-setter property that was written to directly, and
// propagates to every dependent recorded in its used_by_properties
// snapshot (spec.md §4.8).
func (EngineWriter) WriteProperty(ctx *interceptor.WriteContext, next interceptor.WriteNext) error {
	enterWrite()
	err := next(ctx)
	flushed := exitWrite()
	defer func() {
		if len(flushed) > 0 {
			logger.Printf("derived: flushing %d deferred edge removal(s) for %s.%s", len(flushed), ctx.Subject.Descriptor().Type.String(), ctx.Property.Name)
		}
		for _, p := range flushed {
			p.used.Remove(p.derived)
		}
	}()
	if err != nil || !ctx.Stored() {
		return err
	}

	ref := subject.Ref(ctx.Subject, ctx.Property.Name)

	if ctx.Property.IsDerived() && !ctx.Synthetic {
		// Derived-with-setter: the setter just ran via next(); bring the
		// cached value back in line with it immediately so readers never
		// observe a stale last_known_value (spec.md §9 boundary case). A
		// Synthetic write is recalculate's own republication of a value it
		// already computed, so it falls through to the ordinary cascade
		// below instead of recomputing itself again.
		recalculate(ref, currentTimestamp())
		return nil
	}

	used := usedBySet(ref)
	dependents := used.Items()
	if len(dependents) == 0 {
		return nil
	}
	// During a capturing (non-committing) transaction the transaction
	// write interceptor, upstream of this one, never calls next, so this
	// branch is unreachable in that state; kept as a defensive mirror of
	// spec.md §4.8 step 6 for engines wired without it.
	scope := changectx.Current()
	if !scope.Committing && isTransactionCapturing() {
		return nil
	}
	ts := currentTimestamp()
	for _, dep := range dependents {
		if dep.Equal(ref) {
			continue
		}
		recalculate(dep, ts)
	}
	return nil
}

func currentTimestamp() time.Time {
	scope := changectx.Current()
	if scope.HasChanged {
		return scope.ChangedTimestamp
	}
	return timeNow()
}

// timeNow is split out so recalculate's cascade ordering logic stays
// testable against an injected clock without reaching for the Go
// toolchain's wall clock in assertions.
var timeNow = time.Now

// recalculate re-invokes a derived property's getter under a fresh
// recording frame, stores the recorded dependency set, updates the
// cached value, and fires that value through the property's own write
// chain — equality check, transaction capture, the engine's own cascade,
// lifecycle attach/detach, change broadcast — with a no-op terminal
// storage step, so observers see the ordinary change-event shape (and a
// nested subject is attached/detached the same way a direct write would)
// without the value being stored a second time (spec.md §4.8 steps 4-5,
// §8 scenario 1).
func recalculate(ref subject.PropertyReference, ts time.Time) {
	pm, ok := ref.Subject.Descriptor().Property(ref.Property)
	if !ok || !pm.IsDerived() {
		return
	}
	data := requiredData(ref)
	old := data.LastKnownValue()

	typeName := ref.Subject.Descriptor().Type.String()
	timer := prometheus.NewTimer(metrics.RecalculationDuration.WithLabelValues(typeName, ref.Property))
	raw, recorded := evaluate(ref.Subject, pm)
	timer.ObserveDuration()
	metrics.DerivedRecalculationsTotal.WithLabelValues(typeName, ref.Property).Inc()

	newValue := subject.NewDynamicValue(raw, pm.ValueType)
	storeRecorded(ref, data, recorded)
	data.setSnapshot(newValue, ts)

	if old.Equal(newValue) {
		// Unchanged: nothing for an observer to see, and nothing for this
		// property's own dependents to recompute, so there is no reason to
		// drive a write through the chain at all.
		return
	}

	// source = None (internal/derived origin); the changed/received
	// timestamps are the ones this recalculation was driven with, so
	// ChangeBroadcast publishes the same timestamp a cascade of
	// recalculations shares rather than each sampling the wall clock.
	restoreSource := changectx.WithSource(nil)
	defer restoreSource()
	restoreChanged := changectx.WithChangedTimestamp(ts)
	defer restoreChanged()
	restoreReceived := changectx.WithReceivedTimestamp(ts)
	defer restoreReceived()

	if err := interceptor.SetSynthetic(ref.Subject, ref.Property, old.Value, newValue.Value); err != nil {
		logger.Printf("derived: synthetic recompute write for %s.%s rejected by the interception chain: %v", typeName, ref.Property, err)
	}
}

// storeRecorded reconciles a derived property's required_properties edge
// set against what its getter just touched, and updates each touched
// base property's used_by_properties reverse index to match. Tries an
// exclusive wholesale replace first (the common case: the dependency set
// rarely changes between recomputations); on a concurrent-mutation
// conflict it falls back to a merge pass instead of retrying forever,
// since a retry could livelock against a steady stream of unrelated
// concurrent writes (spec.md §4.8 step 6).
func storeRecorded(ref subject.PropertyReference, data *Data, recorded []subject.PropertyReference) {
	before := data.Required.Items()
	expected := data.Required.Version()
	if data.Required.TryReplace(recorded, expected) {
		reconcileUsedBy(ref, before, recorded)
		return
	}

	logger.Printf("derived: concurrent recomputation of %s.%s, falling back to merge path", ref.Subject.Descriptor().Type.String(), ref.Property)

	// Merge path: add what's newly required, remove what's no longer
	// required, each as an individual CAS — safe regardless of what a
	// concurrent recomputation is doing to the same set.
	stillThere := data.Required.Items()
	wanted := map[subject.PropertyReference]bool{}
	for _, r := range recorded {
		wanted[r] = true
	}
	have := map[subject.PropertyReference]bool{}
	for _, r := range stillThere {
		have[r] = true
	}
	for r := range wanted {
		if !have[r] {
			data.Required.Add(r)
		}
	}
	for r := range have {
		if !wanted[r] {
			data.Required.Remove(r)
		}
	}
	reconcileUsedBy(ref, stillThere, recorded)
}

func reconcileUsedBy(derivedRef subject.PropertyReference, before, after []subject.PropertyReference) {
	beforeSet := map[subject.PropertyReference]bool{}
	for _, r := range before {
		beforeSet[r] = true
	}
	afterSet := map[subject.PropertyReference]bool{}
	for _, r := range after {
		afterSet[r] = true
		if !beforeSet[r] {
			usedBySet(r).Add(derivedRef)
		}
	}
	for _, r := range before {
		if !afterSet[r] {
			deferRemoval(usedBySet(r), derivedRef)
		}
	}
}

// isTransactionCapturing is a narrow seam (rather than importing the
// transaction package directly) since transaction already imports
// interceptor; importing it back from derived would cycle. The
// transaction-capture write interceptor short-circuits ahead of this one
// in practice, so this check only matters for engines wired without it.
var isTransactionCapturing = func() bool { return false }

// logger receives this engine's non-fatal diagnostics: a concurrent
// recomputation falling back to the merge path, or deferred edge
// removals being flushed. Silent by default, matching every other
// package in this module — a collaborator wires in its own Logger via
// SetLogger (builtin/interceptor.RegisterCoreWithConfig does this from a
// subject.Config).
var logger subject.Logger = subject.NopLogger()

// SetLogger installs the Logger used for this engine's diagnostics.
func SetLogger(l subject.Logger) {
	if l == nil {
		l = subject.NopLogger()
	}
	logger = l
}

// OnAttachSubject is a no-op: derived evaluation happens per property.
func (EngineHandler) OnAttachSubject(lifecycle.AttachSubject) {}

// OnDetachSubject is a no-op; property-scoped cleanup happens in
// OnDetachProperty, fired for every declared property on last detach.
func (EngineHandler) OnDetachSubject(lifecycle.DetachSubject) {}

// OnAttachProperty performs the one-shot attach-time evaluation for a
// derived property: record its dependencies, compute its initial value,
// and seed last_known_value — spec.md §4.8's "on attach" algorithm. A
// no-op for non-derived properties.
func (EngineHandler) OnAttachProperty(ev lifecycle.AttachProperty) {
	pm, ok := ev.Subject.Descriptor().Property(ev.Property)
	if !ok || !pm.IsDerived() {
		return
	}
	ref := subject.Ref(ev.Subject, ev.Property)
	data := requiredData(ref)

	raw, recorded := evaluate(ev.Subject, pm)

	storeRecorded(ref, data, recorded)
	data.setSnapshot(subject.NewDynamicValue(raw, pm.ValueType), currentTimestamp())
}

// evaluate invokes a derived property's getter under a fresh recording
// frame and returns both its result and the dependency set it touched.
func evaluate(s *subject.Subject, pm *subject.PropertyMetadata) (raw any, recorded []subject.PropertyReference) {
	recorder.StartRecording()
	raw = pm.Read(s)
	touched := recorder.FinishRecording()
	recorded = append([]subject.PropertyReference(nil), touched...)
	recorder.ClearLast()
	return raw, recorded
}

// OnDetachProperty performs Case 1 and Case 2 cleanup (spec.md §4.5):
// Case 1, if the detaching property is itself derived, remove it from
// every one of its required base properties' used_by_properties; Case 2,
// regardless of whether it is derived, remove it from the
// required_properties of every property that had recorded it as a
// dependency. Case 2 removals go through deferRemoval, so during an
// in-flight write they run once that write completes.
func (EngineHandler) OnDetachProperty(ev lifecycle.DetachProperty) {
	ref := subject.Ref(ev.Subject, ev.Property)

	if pm, ok := ev.Subject.Descriptor().Property(ev.Property); ok && pm.IsDerived() {
		if data := dataFor(ref); data != nil {
			for _, base := range data.Required.Items() {
				usedBySet(base).Remove(ref)
			}
		}
	}

	for _, dependent := range usedBySet(ref).Items() {
		if data := dataFor(dependent); data != nil {
			deferRemoval(data.Required, ref)
		}
	}
}

// WriteDepth exposes the calling goroutine's current write-nesting depth,
// for tests asserting the deferred-removal fast path actually defers.
func WriteDepth() int { return writeDepth() }
