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

// Package metrics registers the OTel instruments behind the decision
// engine. Exporting is left to the global meter provider, configured by
// the deployment through the standard OTEL_* environment variables.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter creates instruments on the service's OTel meter. A disabled meter
// still hands out working no-op instruments, so callers never branch.
type Meter struct {
	meter metric.Meter
}

// New returns the meter instruments are registered on. With metrics
// disabled it is backed by the noop scope.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	name := serviceName
	if !cfg.Enabled {
		name = "noop"
	}
	return &Meter{meter: otel.Meter(name)}, nil
}

// CreateCounter registers a monotonic int64 counter.
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram registers a float64 histogram in the given unit.
func (m *Meter) CreateHistogram(name, description, unit string) (metric.Float64Histogram, error) {
	histogram, err := m.meter.Float64Histogram(
		name,
		metric.WithDescription(description),
		metric.WithUnit(unit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create histogram %s: %w", name, err)
	}
	return histogram, nil
}
