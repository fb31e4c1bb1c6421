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

// Command fullname demonstrates the simplest derived-property cascade:
// FullName is derived from FirstName and LastName, and a write to
// either base property recomputes and republishes FullName exactly
// once, without the caller ever calling a recompute function itself.
package main

import (
	"fmt"

	coreinterceptor "github.com/bittoy/interceptor/builtin/interceptor"
	"github.com/bittoy/interceptor/changectx"
	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/lifecycle"
	"github.com/bittoy/interceptor/subject"
)

// Person has two plain state properties and one derived property
// computed from them.
type Person struct {
	FirstName string
	LastName  string
	FullName  string
}

func init() {
	desc := subject.NewTypeDescriptorBuilder(&Person{}).
		DerivedGetter("FullName", func(s *subject.Subject) any {
			first := interceptor.Get[string](s, "FirstName")
			last := interceptor.Get[string](s, "LastName")
			return first + " " + last
		}).
		Build()
	// FullName itself carries no "subject" tag, so NewTypeDescriptorBuilder
	// classified it AttrState by default; mark it derived explicitly.
	if pm, ok := desc.Property("FullName"); ok {
		pm.Attributes[subject.AttrDerived] = struct{}{}
	}
	subject.RegisterType(desc)
}

func main() {
	ctx := subject.NewContext()
	if _, err := coreinterceptor.RegisterCore(ctx); err != nil {
		panic(err)
	}

	p := subject.New(&Person{FirstName: "Ada", LastName: "Lovelace"})
	lifecycle.NewTracker(ctx).Attach(p, nil)

	stop := changectx.Subscribe(p, "FullName", func(change changectx.PropertyChange) {
		fmt.Printf("FullName changed: %v -> %v\n", change.OldValue, change.NewValue)
	})
	defer stop()

	fmt.Println("initial FullName:", interceptor.Get[string](p, "FullName"))

	if err := interceptor.Set(p, "LastName", "King"); err != nil {
		panic(err)
	}
	fmt.Println("after LastName write:", interceptor.Get[string](p, "FullName"))

	if err := interceptor.Set(p, "FirstName", "Augusta"); err != nil {
		panic(err)
	}
	fmt.Println("after FirstName write:", interceptor.Get[string](p, "FullName"))
}
