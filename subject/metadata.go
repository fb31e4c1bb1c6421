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
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/fatih/structs"
	"github.com/mitchellh/mapstructure"
)

// Attribute is a declarative marker on a property or method: "derived",
// "configuration", "state", "query", "operation", or a collaborator's own
// vendor-namespaced marker.
// Attribute 是属性或方法上的声明式标记。
type Attribute string

const (
	AttrDerived       Attribute = "derived"
	AttrConfiguration Attribute = "configuration"
	AttrState         Attribute = "state"
	AttrQuery         Attribute = "query"
	AttrOperation     Attribute = "operation"
)

// Getter reads a property's current value off a live subject.
type Getter func(s *Subject) any

// Setter stores a proposed value on a live subject; returns a
// ValidationFailedError (or any user error) to reject the write.
type Setter func(s *Subject, v any) error

// PropertyMetadata is the immutable per-(type, property-name) descriptor.
// PropertyMetadata 是每个 (类型, 属性名) 的不可变描述符。
type PropertyMetadata struct {
	Name       string
	ValueType  reflect.Type
	Read       Getter
	Write      Setter
	Attributes map[Attribute]struct{}
}

// IsDerived reports whether the "derived" marker was declared.
func (m *PropertyMetadata) IsDerived() bool { return m.HasAttribute(AttrDerived) }

// IsMutable reports whether the property has a setter.
func (m *PropertyMetadata) IsMutable() bool { return m.Write != nil }

// HasAttribute reports whether a is in the declared attribute set.
func (m *PropertyMetadata) HasAttribute(a Attribute) bool {
	_, ok := m.Attributes[a]
	return ok
}

// MethodKind distinguishes side-effect-free queries from operations.
type MethodKind int

const (
	MethodQuery MethodKind = iota
	MethodOperation
)

// MethodDescriptor describes one callable method of a participating type.
type MethodDescriptor struct {
	Name        string
	Kind        MethodKind
	ParamTypes  []reflect.Type
	ResultTypes []reflect.Type
	Attributes  map[Attribute]struct{}
}

// TypeDescriptor is the immutable, once-built, shared descriptor for a
// participating user type: its ordered properties, ordered methods, and
// type-level attribute set.
// TypeDescriptor 是参与类型的不可变、构建一次并共享的描述符。
type TypeDescriptor struct {
	Type       reflect.Type
	Properties []*PropertyMetadata
	Methods    []*MethodDescriptor
	Attributes map[Attribute]struct{}

	byName map[string]*PropertyMetadata
}

// Property looks up a property descriptor by name.
func (d *TypeDescriptor) Property(name string) (*PropertyMetadata, bool) {
	m, ok := d.byName[name]
	return m, ok
}

// MustProperty panics if name is not declared on the type; used at
// registration time where the caller controls both sides.
func (d *TypeDescriptor) MustProperty(name string) *PropertyMetadata {
	m, ok := d.byName[name]
	if !ok {
		panic(fmt.Sprintf("subject: type %s has no property %q", d.Type, name))
	}
	return m
}

// TypeDescriptorBuilder derives a TypeDescriptor from a plain Go struct
// value via reflection (github.com/fatih/structs enumerates the fields
// and their `subject:"..."` tags), then lets the caller attach the
// derived-property getters reflection cannot produce on its own —
// a derived getter is arbitrary code that reads other properties through
// the interception chain, which is precisely how dependency recording
// works (spec.md §4.2).
type TypeDescriptorBuilder struct {
	desc *TypeDescriptor
}

// NewTypeDescriptorBuilder seeds a builder from a zero-value instance of
// the struct the descriptor is for. Field tags of shape
// `subject:"state"`, `subject:"derived"`, `subject:"configuration"`,
// `subject:"query"`, `subject:"operation"` (comma-separated for multiple)
// classify each field; untagged fields default to AttrState.
func NewTypeDescriptorBuilder(zero any) *TypeDescriptorBuilder {
	t := reflect.TypeOf(zero)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	s := structs.New(reflect.New(t).Elem().Addr().Interface())
	d := &TypeDescriptor{
		Type:       t,
		Attributes: map[Attribute]struct{}{},
		byName:     map[string]*PropertyMetadata{},
	}
	for _, f := range s.Fields() {
		attrs := parseAttributeTag(f.Tag("subject"))
		if len(attrs) == 0 {
			attrs = map[Attribute]struct{}{AttrState: {}}
		}
		name := f.Name()
		fieldName := name // captured for the reflective accessor closures below
		pm := &PropertyMetadata{
			Name:       name,
			ValueType:  reflect.TypeOf(f.Value()),
			Attributes: attrs,
			Read: func(s *Subject) any {
				fv := reflect.ValueOf(s.Value()).Elem().FieldByName(fieldName)
				return fv.Interface()
			},
		}
		if _, derived := attrs[AttrDerived]; !derived {
			pm.Write = func(s *Subject, v any) error {
				fv := reflect.ValueOf(s.Value()).Elem().FieldByName(fieldName)
				if !fv.CanSet() {
					return fmt.Errorf("subject: field %q is not settable", fieldName)
				}
				fv.Set(reflect.ValueOf(v).Convert(fv.Type()))
				return nil
			}
		}
		d.Properties = append(d.Properties, pm)
		d.byName[name] = pm
	}
	sort.Slice(d.Properties, func(i, j int) bool { return d.Properties[i].Name < d.Properties[j].Name })
	return &TypeDescriptorBuilder{desc: d}
}

// DerivedGetter attaches (or replaces) the getter function for a
// property previously classified `subject:"derived"`. The getter must
// call through Get[T](s, otherProperty) to read its dependencies so the
// derived-property engine can record them.
func (b *TypeDescriptorBuilder) DerivedGetter(property string, fn Getter) *TypeDescriptorBuilder {
	pm, ok := b.desc.byName[property]
	if !ok {
		panic(fmt.Sprintf("subject: %s has no property %q to attach a derived getter to", b.desc.Type, property))
	}
	pm.Read = fn
	return b
}

// DerivedSetter attaches a setter to an otherwise-read-only derived
// property (the "derived with setter" pattern, spec.md §9 boundary
// behaviors).
func (b *TypeDescriptorBuilder) DerivedSetter(property string, fn Setter) *TypeDescriptorBuilder {
	pm := b.desc.MustProperty(property)
	pm.Write = fn
	return b
}

// Method appends a method descriptor.
func (b *TypeDescriptorBuilder) Method(m *MethodDescriptor) *TypeDescriptorBuilder {
	b.desc.Methods = append(b.desc.Methods, m)
	return b
}

// Attribute sets a type-level attribute.
func (b *TypeDescriptorBuilder) Attribute(a Attribute) *TypeDescriptorBuilder {
	b.desc.Attributes[a] = struct{}{}
	return b
}

// Build finalizes the descriptor.
func (b *TypeDescriptorBuilder) Build() *TypeDescriptor { return b.desc }

// parseAttributeTag binds a declarative `subject:"derived,state"` tag
// value into an attribute set using the same mapstructure decode-hook
// pipeline DecodeConfig uses for wire configuration: StringToSliceHookFunc
// splits the comma-separated tag into a string slice, which mapstructure
// then decodes element-by-element into Attribute (itself a defined string
// type), sparing this package a hand-rolled split loop.
func parseAttributeTag(tag string) map[Attribute]struct{} {
	if tag == "" || tag == "-" {
		return nil
	}
	var parts []Attribute
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToSliceHookFunc(","),
		Result:     &parts,
	})
	if err != nil {
		return nil
	}
	if err := dec.Decode(tag); err != nil {
		return nil
	}
	out := map[Attribute]struct{}{}
	for _, a := range parts {
		a = Attribute(strings.TrimSpace(string(a)))
		if a != "" {
			out[a] = struct{}{}
		}
	}
	return out
}

// typeRegistry caches one TypeDescriptor per reflect.Type so descriptors
// are built once and shared, as spec.md §4.2 requires.
type typeRegistry struct {
	mu    sync.RWMutex
	descs map[reflect.Type]*TypeDescriptor
}

var globalTypeRegistry = &typeRegistry{descs: map[reflect.Type]*TypeDescriptor{}}

// RegisterType installs a built TypeDescriptor for future Subjects
// wrapping values of this Go type. Re-registering the same type replaces
// the descriptor (used by tests); production callers register once at
// startup.
func RegisterType(desc *TypeDescriptor) {
	globalTypeRegistry.mu.Lock()
	defer globalTypeRegistry.mu.Unlock()
	globalTypeRegistry.descs[desc.Type] = desc
}

// DescriptorFor returns the shared descriptor for t, or false if no type
// has been registered for it.
func DescriptorFor(t reflect.Type) (*TypeDescriptor, bool) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	globalTypeRegistry.mu.RLock()
	defer globalTypeRegistry.mu.RUnlock()
	d, ok := globalTypeRegistry.descs[t]
	return d, ok
}
