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

// Package sourcepath computes and resolves the external "source path"
// string a bridge collaborator (bridge/mqtt) needs to route a
// PropertyChange to an external address (an MQTT topic, an OPC UA node
// id) and back. The path expression is compiled once with
// github.com/expr-lang/expr the same way
// components/common/end_node.go compiles its routing script, instead of
// a hand-rolled template language.
package sourcepath

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bittoy/interceptor/subject"
)

// Provider compiles one path expression and maintains the live
// (path -> PropertyReference) index needed to resolve an inbound
// message back to the property it addresses.
type Provider struct {
	program *vm.Program

	mu    sync.RWMutex
	byRef map[subject.PropertyReference]string
	byPath map[string]subject.PropertyReference
}

// Compile builds a Provider from a path expression. The expression is
// evaluated against an env with "subject" (the *subject.Subject) and
// "property" (its name) bound, and must return a string — e.g.
// `"devices/" + subject.ID.String() + "/" + property`.
func Compile(pathExpr string) (*Provider, error) {
	program, err := expr.Compile(pathExpr, expr.Env(pathEnv{}), expr.AsKind(reflect.String))
	if err != nil {
		return nil, err
	}
	return &Provider{
		program: program,
		byRef:   map[subject.PropertyReference]string{},
		byPath:  map[string]subject.PropertyReference{},
	}, nil
}

// pathEnv is the expression environment's static shape, used only for
// expr.Env's type-checking pass at Compile time.
type pathEnv struct {
	Subject  *subject.Subject `expr:"subject"`
	Property string           `expr:"property"`
}

// Path evaluates the compiled expression for (s, property) and records
// the mapping so a later Resolve of that exact path succeeds.
func (p *Provider) Path(s *subject.Subject, property string) (string, error) {
	out, err := vm.Run(p.program, pathEnv{Subject: s, Property: property})
	if err != nil {
		return "", err
	}
	path, ok := out.(string)
	if !ok {
		return "", fmt.Errorf("sourcepath: expression returned %T, want string", out)
	}
	ref := subject.Ref(s, property)
	p.mu.Lock()
	p.byRef[ref] = path
	p.byPath[path] = ref
	p.mu.Unlock()
	return path, nil
}

// Resolve looks up the PropertyReference last registered for path via
// Path. Returns false if the path is unknown — e.g. an inbound message
// on a topic no local property has ever published to.
func (p *Provider) Resolve(path string) (subject.PropertyReference, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ref, ok := p.byPath[path]
	return ref, ok
}

// Forget removes a property's path mapping, called on detach so a stale
// entry cannot resolve to a subject no longer attached to the graph.
func (p *Provider) Forget(ref subject.PropertyReference) {
	p.mu.Lock()
	defer p.mu.Unlock()
	path, ok := p.byRef[ref]
	if !ok {
		return
	}
	delete(p.byRef, ref)
	delete(p.byPath, path)
}

// ErrUnresolved is returned by callers that need a sentinel for "no
// property is currently registered at this path".
var ErrUnresolved = errors.New("sourcepath: path does not resolve to any attached property")
