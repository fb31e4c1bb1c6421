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

package script

import (
	"testing"

	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/subject"
)

type reading struct {
	Celsius int
}

func TestRegisterPropertyRejectsAScriptWithNoValidateFunction(t *testing.T) {
	i := NewInterceptor()
	err := i.RegisterProperty("Celsius", `function notValidate(v) { return true }`)
	if err == nil {
		t.Fatal("want an error when the script declares no top-level validate function")
	}
}

func TestRegisterPropertyRejectsUncompilableScript(t *testing.T) {
	i := NewInterceptor()
	err := i.RegisterProperty("Celsius", `function validate(v) { this is not javascript`)
	if err == nil {
		t.Fatal("want an error for a script that fails to parse")
	}
}

func TestPointCutOnlyParticipatesInRegisteredProperties(t *testing.T) {
	i := NewInterceptor()
	if err := i.RegisterProperty("Celsius", `function validate(v) { return true }`); err != nil {
		t.Fatal(err)
	}
	desc := subject.NewTypeDescriptorBuilder(&reading{}).Build()
	pm, _ := desc.Property("Celsius")

	if !i.PointCut(&interceptor.WriteContext{Property: pm}) {
		t.Fatal("want PointCut true for a property with a registered validator")
	}

	otherPM := &subject.PropertyMetadata{Name: "Other"}
	if i.PointCut(&interceptor.WriteContext{Property: otherPM}) {
		t.Fatal("want PointCut false for a property with no registered validator")
	}
}

func TestWritePropertyRejectsAFalsyValidatorResult(t *testing.T) {
	i := NewInterceptor()
	if err := i.RegisterProperty("Celsius", `function validate(v) { return v < 100 }`); err != nil {
		t.Fatal(err)
	}
	desc := subject.NewTypeDescriptorBuilder(&reading{}).Build()
	pm, _ := desc.Property("Celsius")
	s := subject.New(&reading{})
	ctx := &interceptor.WriteContext{Subject: s, Property: pm, NewValue: 150}

	called := false
	err := i.WriteProperty(ctx, func(*interceptor.WriteContext) error {
		called = true
		return nil
	})
	if err == nil {
		t.Fatal("want an error for a value the validator rejects")
	}
	if _, ok := err.(*subject.ValidationFailedError); !ok {
		t.Fatalf("want *subject.ValidationFailedError, got %T", err)
	}
	if called {
		t.Fatal("want the chain not to continue past a rejected write")
	}
}

func TestWritePropertyPassesThroughAnAcceptedValue(t *testing.T) {
	i := NewInterceptor()
	if err := i.RegisterProperty("Celsius", `function validate(v) { return v < 100 }`); err != nil {
		t.Fatal(err)
	}
	desc := subject.NewTypeDescriptorBuilder(&reading{}).Build()
	pm, _ := desc.Property("Celsius")
	s := subject.New(&reading{})
	ctx := &interceptor.WriteContext{Subject: s, Property: pm, NewValue: 50}

	called := false
	err := i.WriteProperty(ctx, func(*interceptor.WriteContext) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("want the chain to continue for an accepted value")
	}
}

func TestWritePropertyWithNoRegisteredValidatorPassesThrough(t *testing.T) {
	i := NewInterceptor()
	desc := subject.NewTypeDescriptorBuilder(&reading{}).Build()
	pm, _ := desc.Property("Celsius")
	ctx := &interceptor.WriteContext{Property: pm, NewValue: 9999}

	called := false
	err := i.WriteProperty(ctx, func(*interceptor.WriteContext) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatal("want an unregistered property's write to pass straight through")
	}
}
