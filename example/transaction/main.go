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

// Command transaction demonstrates the transaction coordinator:
// writes made while a transaction is active are captured, not
// propagated, and only take effect — recomputing every dependent
// derived property once per replayed write — on Commit. Abort discards them
// as if they had never been attempted.
package main

import (
	"fmt"

	coreinterceptor "github.com/bittoy/interceptor/builtin/interceptor"
	"github.com/bittoy/interceptor/changectx"
	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/lifecycle"
	"github.com/bittoy/interceptor/subject"
	"github.com/bittoy/interceptor/transaction"
)

// Account has a derived Total over two mutable balances.
type Account struct {
	Checking float64
	Savings  float64
	Total    float64
}

func init() {
	desc := subject.NewTypeDescriptorBuilder(&Account{}).
		DerivedGetter("Total", func(s *subject.Subject) any {
			checking := interceptor.Get[float64](s, "Checking")
			savings := interceptor.Get[float64](s, "Savings")
			return checking + savings
		}).
		Build()
	if pm, ok := desc.Property("Total"); ok {
		pm.Attributes[subject.AttrDerived] = struct{}{}
	}
	subject.RegisterType(desc)
}

func main() {
	ctx := subject.NewContext()
	if _, err := coreinterceptor.RegisterCore(ctx); err != nil {
		panic(err)
	}

	a := subject.New(&Account{Checking: 100, Savings: 50})
	lifecycle.NewTracker(ctx).Attach(a, nil)

	stop := changectx.Subscribe(a, "Total", func(change changectx.PropertyChange) {
		fmt.Printf("Total changed: %v -> %v\n", change.OldValue, change.NewValue)
	})
	defer stop()

	fmt.Println("initial Total:", interceptor.Get[float64](a, "Total"))

	// Aborted transaction: Total must be unaffected.
	tx, err := transaction.Begin()
	if err != nil {
		panic(err)
	}
	if err := interceptor.Set(a, "Checking", 9000.0); err != nil {
		panic(err)
	}
	fmt.Println("Total mid-transaction (still captured, not applied):", interceptor.Get[float64](a, "Total"))
	tx.Abort()
	fmt.Println("Total after abort:", interceptor.Get[float64](a, "Total"))

	// Committed transaction: both writes replay and Total recomputes once
	// per replayed write, settling at the final sum.
	tx, err = transaction.Begin()
	if err != nil {
		panic(err)
	}
	if err := interceptor.Set(a, "Checking", 200.0); err != nil {
		panic(err)
	}
	if err := interceptor.Set(a, "Savings", 75.0); err != nil {
		panic(err)
	}
	if err := tx.Commit(); err != nil {
		panic(err)
	}
	fmt.Println("Total after commit:", interceptor.Get[float64](a, "Total"))
}
