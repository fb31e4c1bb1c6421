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
	"context"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
)

// HostedService is the "hosted service" capability: explicit start/stop
// entry points the embedder invokes. The Context never blocks on these.
// spec.md §4.1, §6.
type HostedService interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// registration is a registration-time tuple: the service value plus its
// ordering markers. Markers live on the registration, not the type,
// matching spec.md §9 "Polymorphism and markers".
type registration struct {
	service    any
	runsFirst  bool
	runsBefore []any
	seq        int
}

// Context is a service registry that answers "give me all handlers of
// capability C": a primary registration set plus an ordered list of
// fallback contexts. A Context is immutable after the first subject
// attaches. spec.md §4.1 "Subject context".
// Context 是一个服务注册表。
type Context struct {
	mu         sync.Mutex
	frozen     atomic.Bool
	seqCounter int
	primary    []registration
	fallbacks  []*Context
	hosted     []HostedService

	sortMu sync.Mutex
	sorted map[reflect.Type][]any
}

// NewContext creates an empty, unfrozen Context.
func NewContext() *Context {
	return &Context{sorted: map[reflect.Type][]any{}}
}

// RegisterOption configures a single registration's ordering markers.
type RegisterOption func(*registration)

// RunsFirst marks a service to run before every other handler of its
// capability in this context (used by the derived-property engine to
// record dependencies before they can be observed).
func RunsFirst() RegisterOption {
	return func(r *registration) { r.runsFirst = true }
}

// RunsBefore marks a service to run before other, forming a partial
// order the context's resolver must topologically respect.
func RunsBefore(other any) RegisterOption {
	return func(r *registration) { r.runsBefore = append(r.runsBefore, other) }
}

// Register installs a service into the context's primary registration
// set. Fails with ContextFrozenError once a subject has attached.
func (c *Context) Register(service any, opts ...RegisterOption) error {
	if c.frozen.Load() {
		return &ContextFrozenError{Capability: fmt.Sprintf("%T", service)}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen.Load() {
		return &ContextFrozenError{Capability: fmt.Sprintf("%T", service)}
	}
	r := registration{service: service, seq: c.seqCounter}
	c.seqCounter++
	for _, opt := range opts {
		opt(&r)
	}
	c.primary = append(c.primary, r)
	if hs, ok := service.(HostedService); ok {
		c.hosted = append(c.hosted, hs)
	}
	return nil
}

// AddFallback appends other to this context's ordered fallback list.
// Fails with ContextFrozenError once a subject has attached.
func (c *Context) AddFallback(other *Context) error {
	if c.frozen.Load() {
		return &ContextFrozenError{Capability: "fallback-context"}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.frozen.Load() {
		return &ContextFrozenError{Capability: "fallback-context"}
	}
	c.fallbacks = append(c.fallbacks, other)
	return nil
}

// freeze is called on first subject attach; registration after this
// point is a fatal ContextFrozenError.
func (c *Context) freeze() { c.frozen.Store(true) }

// ServicesOf returns every registered service assignable to T: this
// context's own registrations first (topologically sorted per §4.1),
// then each fallback context's own services in fallback-list order.
// Duplicates across fallbacks are preserved; each context's
// registrations are independent.
func ServicesOf[T any](c *Context) []T {
	var out []T
	for _, v := range c.ownSorted(reflect.TypeOf((*T)(nil)).Elem()) {
		if t, ok := v.(T); ok {
			out = append(out, t)
		}
	}
	for _, fb := range c.fallbacks {
		out = append(out, ServicesOf[T](fb)...)
	}
	return out
}

// TryService returns the first service assignable to T, checking this
// context then its fallbacks in order.
func TryService[T any](c *Context) (T, bool) {
	all := ServicesOf[T](c)
	var zero T
	if len(all) == 0 {
		return zero, false
	}
	return all[0], true
}

// ownSorted returns this context's own registrations assignable to
// iface, topologically sorted by their runs-before/runs-first markers
// (ties broken by declaration order), caching the result per interface
// type. Panics with HandlerOrderCycleError if the markers are
// inconsistent — a programmer error, fatal at resolution time.
func (c *Context) ownSorted(iface reflect.Type) []any {
	c.sortMu.Lock()
	defer c.sortMu.Unlock()
	if cached, ok := c.sorted[iface]; ok {
		return cached
	}

	c.mu.Lock()
	var subset []registration
	for _, r := range c.primary {
		if reflect.TypeOf(r.service).AssignableTo(iface) || (iface.Kind() == reflect.Interface && reflect.TypeOf(r.service).Implements(iface)) {
			subset = append(subset, r)
		}
	}
	c.mu.Unlock()

	sorted, err := topoSort(subset)
	if err != nil {
		panic(err)
	}
	result := make([]any, len(sorted))
	for i, r := range sorted {
		result[i] = r.service
	}
	c.sorted[iface] = result
	return result
}

// topoSort orders registrations by declaration sequence, then applies
// runs-first/runs-before constraints via Kahn's algorithm. Returns
// HandlerOrderCycleError if the constraints are not a DAG.
func topoSort(regs []registration) ([]registration, error) {
	n := len(regs)
	if n <= 1 {
		return regs, nil
	}
	// index registrations by their service value identity for edge lookup
	indexOf := make(map[any]int, n)
	for i, r := range regs {
		indexOf[r.service] = i
	}

	adj := make([][]int, n)
	indegree := make([]int, n)
	for i, r := range regs {
		if r.runsFirst {
			for j := range regs {
				if j != i {
					adj[i] = append(adj[i], j)
					indegree[j]++
				}
			}
		}
		for _, other := range r.runsBefore {
			if j, ok := indexOf[other]; ok && j != i {
				adj[i] = append(adj[i], j)
				indegree[j]++
			}
		}
	}

	// Kahn's algorithm, seeded in declaration order for deterministic
	// output when multiple nodes are simultaneously ready.
	var queue []int
	for i := 0; i < n; i++ {
		if indegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	var order []registration
	visited := make([]bool, n)
	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]
		if visited[i] {
			continue
		}
		visited[i] = true
		order = append(order, regs[i])
		for _, j := range adj[i] {
			indegree[j]--
			if indegree[j] == 0 {
				queue = append(queue, j)
			}
		}
	}
	if len(order) != n {
		var cycle []string
		for i, v := range visited {
			if !v {
				cycle = append(cycle, fmt.Sprintf("%T", regs[i].service))
			}
		}
		return nil, &HandlerOrderCycleError{Capability: "handler-order", Cycle: cycle}
	}
	return order, nil
}

// StartHosted starts every HostedService registered directly on this
// context (not its fallbacks); the core never calls this itself.
func (c *Context) StartHosted(ctx context.Context) error {
	c.mu.Lock()
	hosted := append([]HostedService(nil), c.hosted...)
	c.mu.Unlock()
	for _, h := range hosted {
		if err := h.Start(ctx); err != nil {
			return err
		}
	}
	return nil
}

// StopHosted stops every HostedService registered directly on this
// context.
func (c *Context) StopHosted(ctx context.Context) error {
	c.mu.Lock()
	hosted := append([]HostedService(nil), c.hosted...)
	c.mu.Unlock()
	for _, h := range hosted {
		if err := h.Stop(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Attach marks the context frozen (first subject attach) and binds s to
// it. Called by the lifecycle tracker.
func (c *Context) attach(s *Subject) {
	c.freeze()
	s.setContext(c)
}
