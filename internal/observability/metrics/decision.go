// Copyright 2026 The Ciguard Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// DecisionMetrics bundles the instruments recorded by the authorization
// services: the hot decision path plus the rarer configuration and sync
// events.
type DecisionMetrics struct {
	decisions   metric.Int64Counter
	latency     metric.Float64Histogram
	configSwaps metric.Int64Counter
	syncRuns    metric.Int64Counter
}

// NewDecisionMetrics registers the ciguard instruments on the meter.
func NewDecisionMetrics(m *Meter) (*DecisionMetrics, error) {
	decisions, err := m.CreateCounter("ciguard_decisions_total", "Authorization decisions evaluated")
	if err != nil {
		return nil, err
	}
	latency, err := m.CreateHistogram("ciguard_decision_duration", "Time spent evaluating one decision", "ms")
	if err != nil {
		return nil, err
	}
	configSwaps, err := m.CreateCounter("ciguard_config_swaps_total", "Authorization strategy replacements applied")
	if err != nil {
		return nil, err
	}
	syncRuns, err := m.CreateCounter("ciguard_admin_sync_total", "External admin registry sync attempts")
	if err != nil {
		return nil, err
	}
	return &DecisionMetrics{
		decisions:   decisions,
		latency:     latency,
		configSwaps: configSwaps,
		syncRuns:    syncRuns,
	}, nil
}

// RecordDecision counts one evaluated decision and its latency, labeled by
// the classified role and the outcome. Usernames and permission IDs are
// deliberately not labels; their cardinality is unbounded.
func (d *DecisionMetrics) RecordDecision(ctx context.Context, role string, allowed bool, elapsed time.Duration) {
	if d == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("role", role),
		attribute.Bool("allowed", allowed),
	)
	d.decisions.Add(ctx, 1, attrs)
	d.latency.Record(ctx, float64(elapsed.Microseconds())/1000.0, attrs)
}

// RecordConfigSwap counts one applied strategy replacement.
func (d *DecisionMetrics) RecordConfigSwap(ctx context.Context) {
	if d == nil {
		return
	}
	d.configSwaps.Add(ctx, 1)
}

// RecordAdminSync counts one sync attempt against the external registry.
func (d *DecisionMetrics) RecordAdminSync(ctx context.Context, succeeded bool) {
	if d == nil {
		return
	}
	d.syncRuns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", succeeded)))
}
