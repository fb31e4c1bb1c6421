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

// Command display demonstrates a two-level derived cascade: a Sensor's
// CelsiusToFahrenheit conversion feeds a Display's Label, so one write
// to Celsius recomputes both derived properties in dependency order
// and republishes the change exactly once per affected property.
package main

import (
	"fmt"

	coreinterceptor "github.com/bittoy/interceptor/builtin/interceptor"
	"github.com/bittoy/interceptor/changectx"
	"github.com/bittoy/interceptor/interceptor"
	"github.com/bittoy/interceptor/lifecycle"
	"github.com/bittoy/interceptor/subject"
)

// Sensor reports a raw Celsius reading and its derived Fahrenheit.
type Sensor struct {
	Celsius    float64
	Fahrenheit float64
}

// Display formats a Sensor's Fahrenheit reading as a derived Label.
// Label depends on a property of a nested subject (Sensor), not of
// Display itself — the dependency recorder records the reference it
// actually reads, wherever that subject lives.
type Display struct {
	Sensor *subject.Subject `subject:"state"`
	Label  string
}

func init() {
	sensorDesc := subject.NewTypeDescriptorBuilder(&Sensor{}).
		DerivedGetter("Fahrenheit", func(s *subject.Subject) any {
			c := interceptor.Get[float64](s, "Celsius")
			return c*9.0/5.0 + 32
		}).
		Build()
	if pm, ok := sensorDesc.Property("Fahrenheit"); ok {
		pm.Attributes[subject.AttrDerived] = struct{}{}
	}
	subject.RegisterType(sensorDesc)

	displayDesc := subject.NewTypeDescriptorBuilder(&Display{}).
		DerivedGetter("Label", func(s *subject.Subject) any {
			d := s.Value().(*Display)
			f := interceptor.Get[float64](d.Sensor, "Fahrenheit")
			return fmt.Sprintf("%.1f°F", f)
		}).
		Build()
	if pm, ok := displayDesc.Property("Label"); ok {
		pm.Attributes[subject.AttrDerived] = struct{}{}
	}
	subject.RegisterType(displayDesc)
}

func main() {
	ctx := subject.NewContext()
	if _, err := coreinterceptor.RegisterCore(ctx); err != nil {
		panic(err)
	}
	tracker := lifecycle.NewTracker(ctx)

	sensor := subject.New(&Sensor{Celsius: 20})
	tracker.Attach(sensor, nil)

	display := subject.New(&Display{Sensor: sensor})
	tracker.Attach(display, nil)
	tracker.Attach(sensor, &subject.PropertyReference{Subject: display, Property: "Sensor"})

	stop := changectx.Subscribe(display, "Label", func(change changectx.PropertyChange) {
		fmt.Printf("Label changed: %v -> %v\n", change.OldValue, change.NewValue)
	})
	defer stop()

	fmt.Println("initial Label:", interceptor.Get[string](display, "Label"))

	if err := interceptor.Set(sensor, "Celsius", 25.0); err != nil {
		panic(err)
	}
	fmt.Println("after Celsius write:", interceptor.Get[string](display, "Label"))
}
