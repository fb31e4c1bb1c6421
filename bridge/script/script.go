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

// Package script implements a scripted property validator: a write
// interceptor whose accept/reject predicate is a user-supplied
// JavaScript function, run with github.com/dop251/goja the way
// utils/js/js_engine.go's GojaJsEngine runs user-defined functions
// for the rule engine's Js*Node components.
package script

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/subject"
)

// validator wraps one compiled `function validate(value) {...}` script.
// A goja.Runtime is not safe for concurrent use, so every call is
// serialized behind a mutex — mirroring GojaJsEngine's own VM pool
// pattern, simplified to one VM per validator since validators are
// cheap to compile and typically one per property.
type validator struct {
	mu sync.Mutex
	vm *goja.Runtime
	fn goja.Callable
}

func compile(js string) (*validator, error) {
	vm := goja.New()
	if _, err := vm.RunString(js); err != nil {
		return nil, fmt.Errorf("script: compiling validator: %w", err)
	}
	fn, ok := goja.AssertFunction(vm.Get("validate"))
	if !ok {
		return nil, errors.New("script: expected a top-level function named validate(value)")
	}
	return &validator{vm: vm, fn: fn}, nil
}

func (v *validator) run(value any) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	result, err := v.fn(goja.Undefined(), v.vm.ToValue(value))
	if err != nil {
		return false, fmt.Errorf("script: running validator: %w", err)
	}
	return result.ToBoolean(), nil
}

// Interceptor is a WriteInterceptor validating a configurable subset of
// a type's properties against their own compiled JS predicate.
type Interceptor struct {
	mu         sync.RWMutex
	validators map[string]*validator
}

// NewInterceptor returns an Interceptor with no properties registered
// yet; RegisterProperty populates it before it is installed
// into a subject.Context.
func NewInterceptor() *Interceptor {
	return &Interceptor{validators: map[string]*validator{}}
}

// RegisterProperty compiles js and installs it as property's validator,
// replacing any previous one.
func (i *Interceptor) RegisterProperty(property, js string) error {
	v, err := compile(js)
	if err != nil {
		return err
	}
	i.mu.Lock()
	i.validators[property] = v
	i.mu.Unlock()
	return nil
}

var _ interceptor.WriteInterceptor = (*Interceptor)(nil)

// PointCut participates only in writes to properties with a registered
// validator.
func (i *Interceptor) PointCut(ctx *interceptor.WriteContext) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.validators[ctx.Property.Name]
	return ok
}

// WriteProperty rejects the write with a ValidationFailedError if the
// script returns a falsy value, otherwise proceeds normally.
func (i *Interceptor) WriteProperty(ctx *interceptor.WriteContext, next interceptor.WriteNext) error {
	i.mu.RLock()
	v := i.validators[ctx.Property.Name]
	i.mu.RUnlock()
	if v == nil {
		return next(ctx)
	}
	ref := subject.Ref(ctx.Subject, ctx.Property.Name)
	ok, err := v.run(ctx.NewValue)
	if err != nil {
		return &subject.ValidationFailedError{Details: ref.String(), Inner: err}
	}
	if !ok {
		return &subject.ValidationFailedError{
			Details: ref.String(),
			Inner:   fmt.Errorf("validate(value) rejected %v", ctx.NewValue),
		}
	}
	return next(ctx)
}
