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

// Package metrics exposes Prometheus instrumentation for the
// interception runtime, grounded the same way engine/metrics.go
// instruments the rule engine: one CounterVec per discrete event, one
// HistogramVec for a latency-shaped measurement, registered once at
// package init.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// PropertyWritesTotal counts property writes that reached the
	// terminal mutator, labeled by the originating type and property.
	PropertyWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "interceptor",
			Subsystem: "subject",
			Name:      "property_writes_total",
			Help:      "Total property writes stored through the interception chain",
		},
		[]string{"type", "property"},
	)

	// DerivedRecalculationsTotal counts derived-property recomputations,
	// labeled by the originating type and property.
	DerivedRecalculationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "interceptor",
			Subsystem: "derived",
			Name:      "recalculations_total",
			Help:      "Total derived-property recomputations",
		},
		[]string{"type", "property"},
	)

	// RecalculationDuration measures how long one derived-property
	// getter invocation takes, including any nested derived reads.
	RecalculationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "interceptor",
			Subsystem: "derived",
			Name:      "recalculation_duration_seconds",
			Help:      "Derived-property getter invocation latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type", "property"},
	)

	// TransactionsTotal counts transaction completions by outcome
	// ("committed", "aborted").
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "interceptor",
			Subsystem: "transaction",
			Name:      "total",
			Help:      "Total transactions, labeled by outcome",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		PropertyWritesTotal,
		DerivedRecalculationsTotal,
		RecalculationDuration,
		TransactionsTotal,
	)
}
