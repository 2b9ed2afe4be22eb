// Copyright 2025 Supabase, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package executor

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records execution outcomes. A nil *Metrics records nothing.
type Metrics struct {
	queries          *prometheus.CounterVec
	duration         *prometheus.HistogramVec
	active           prometheus.Gauge
	interruptLatency prometheus.Histogram
}

// NewMetrics creates unregistered collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "duckling",
			Subsystem: "executor",
			Name:      "executions_total",
			Help:      "The number of finished executions by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "duckling",
			Subsystem: "executor",
			Name:      "execution_duration_seconds",
			Help:      "The wall time of executions by outcome.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 60, 300},
		}, []string{"outcome"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "duckling",
			Subsystem: "executor",
			Name:      "active_executions",
			Help:      "The number of executions currently planning or running.",
		}),
		interruptLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "duckling",
			Subsystem: "executor",
			Name:      "interrupt_latency_seconds",
			Help:      "The time from an interrupt request to the interrupted execution returning.",
			Buckets:   []float64{0.0001, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
}

// Collectors returns every collector, for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.queries, m.duration, m.active, m.interruptLatency}
}

// Register registers the collectors with reg. When another connection
// already registered them, m adopts the existing collectors so both report
// into the same series.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	if err := register(reg, &m.queries); err != nil {
		return err
	}
	if err := register(reg, &m.duration); err != nil {
		return err
	}
	if err := register(reg, &m.active); err != nil {
		return err
	}
	return register(reg, &m.interruptLatency)
}

func register[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var already prometheus.AlreadyRegisteredError
	if !errors.As(err, &already) {
		return err
	}
	existing, ok := already.ExistingCollector.(T)
	if !ok {
		return err
	}
	*c = existing
	return nil
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.active.Inc()
}

func (m *Metrics) finished(outcome State, took time.Duration, interruptLatency time.Duration) {
	if m == nil {
		return
	}
	m.active.Dec()
	m.queries.WithLabelValues(outcome.String()).Inc()
	m.duration.WithLabelValues(outcome.String()).Observe(took.Seconds())
	if outcome == Interrupted && interruptLatency >= 0 {
		m.interruptLatency.Observe(interruptLatency.Seconds())
	}
}
