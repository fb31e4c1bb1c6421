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
	"reflect"
	"testing"
)

type tagged struct {
	Name  string `subject:"state"`
	Total int    `subject:"derived"`
	Mode  string `subject:"configuration"`
}

func TestBuilderClassifiesPropertiesFromTags(t *testing.T) {
	desc := NewTypeDescriptorBuilder(&tagged{}).Build()

	name := desc.MustProperty("Name")
	if !name.HasAttribute(AttrState) {
		t.Fatal("want Name classified as state")
	}
	if !name.IsMutable() {
		t.Fatal("want an untagged-for-derived field to get a setter")
	}

	total := desc.MustProperty("Total")
	if !total.IsDerived() {
		t.Fatal("want Total classified as derived")
	}
	if total.IsMutable() {
		t.Fatal("want a derived property to have no setter by default")
	}

	mode := desc.MustProperty("Mode")
	if !mode.HasAttribute(AttrConfiguration) {
		t.Fatal("want Mode classified as configuration")
	}
}

func TestUntaggedFieldDefaultsToState(t *testing.T) {
	type plain struct{ X int }
	desc := NewTypeDescriptorBuilder(&plain{}).Build()
	if !desc.MustProperty("X").HasAttribute(AttrState) {
		t.Fatal("want an untagged field classified as state by default")
	}
}

func TestPropertiesAreSortedByName(t *testing.T) {
	type unsorted struct {
		Zeta  int
		Alpha int
		Mu    int
	}
	desc := NewTypeDescriptorBuilder(&unsorted{}).Build()
	var names []string
	for _, pm := range desc.Properties {
		names = append(names, pm.Name)
	}
	want := []string{"Alpha", "Mu", "Zeta"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("want sorted property order %v, got %v", want, names)
	}
}

func TestDerivedGetterOverridesTheReflectiveReader(t *testing.T) {
	b := NewTypeDescriptorBuilder(&tagged{})
	b.DerivedGetter("Total", func(s *Subject) any { return 42 })
	desc := b.Build()
	s := New(&tagged{})
	if got := desc.MustProperty("Total").Read(s); got != 42 {
		t.Fatalf("want the overridden getter's value, got %v", got)
	}
}

func TestDerivedSetterMakesADerivedPropertyMutable(t *testing.T) {
	b := NewTypeDescriptorBuilder(&tagged{})
	called := false
	b.DerivedSetter("Total", func(s *Subject, v any) error { called = true; return nil })
	desc := b.Build()
	pm := desc.MustProperty("Total")
	if !pm.IsMutable() {
		t.Fatal("want Total mutable once DerivedSetter is attached")
	}
	_ = pm.Write(New(&tagged{}), 7)
	if !called {
		t.Fatal("want the attached setter invoked")
	}
}

func TestRegisterTypeAndDescriptorForRoundTrip(t *testing.T) {
	desc := NewTypeDescriptorBuilder(&tagged{}).Build()
	RegisterType(desc)
	got, ok := DescriptorFor(reflect.TypeOf(&tagged{}).Elem())
	if !ok || got != desc {
		t.Fatalf("want the exact registered descriptor back, got %v, %v", got, ok)
	}
}

func TestDescriptorForReportsFalseForAnUnregisteredType(t *testing.T) {
	type neverRegistered struct{ X int }
	if _, ok := DescriptorFor(reflect.TypeOf(neverRegistered{})); ok {
		t.Fatal("want false for a type that was never registered")
	}
}

func TestMustPropertyPanicsForAnUndeclaredProperty(t *testing.T) {
	desc := NewTypeDescriptorBuilder(&tagged{}).Build()
	defer func() {
		if recover() == nil {
			t.Fatal("want a panic for an undeclared property name")
		}
	}()
	desc.MustProperty("DoesNotExist")
}
