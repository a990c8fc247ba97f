// Copyright 2026 The OpenTrusty Authors
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
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter wraps OpenTelemetry meter
type Meter struct {
	meter metric.Meter
}

// New creates a new meter instance. When disabled every instrument is a no-op.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	if !cfg.Enabled {
		return &Meter{
			meter: noop.NewMeterProvider().Meter(serviceName),
		}, nil
	}

	// Uses the global meter provider; exporters are configured by the SDK env.
	return &Meter{
		meter: otel.Meter(serviceName),
	}, nil
}

// CreateCounter creates a new counter metric
func (m *Meter) CreateCounter(name, description string) (metric.Int64Counter, error) {
	counter, err := m.meter.Int64Counter(
		name,
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter %s: %w", name, err)
	}
	return counter, nil
}

// CreateHistogram creates a new histogram metric
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

// Instruments are the counters shared by the access control components.
type Instruments struct {
	Decisions        metric.Int64Counter
	TokenValidations metric.Int64Counter
	DroppedTasks     metric.Int64Counter
	VerifyDuration   metric.Float64Histogram
}

// NewInstruments registers the access control instruments on m.
func (m *Meter) NewInstruments() (*Instruments, error) {
	decisions, err := m.CreateCounter("qaguard.authz.decisions", "Authorization decisions by actor kind, outcome and reason")
	if err != nil {
		return nil, err
	}
	validations, err := m.CreateCounter("qaguard.apitoken.validations", "Bearer token validations by result")
	if err != nil {
		return nil, err
	}
	dropped, err := m.CreateCounter("qaguard.worker.dropped_tasks", "Background tasks dropped or failed")
	if err != nil {
		return nil, err
	}
	verify, err := m.CreateHistogram("qaguard.apitoken.verify_duration", "Time spent scanning and verifying token candidates", "s")
	if err != nil {
		return nil, err
	}
	return &Instruments{
		Decisions:        decisions,
		TokenValidations: validations,
		DroppedTasks:     dropped,
		VerifyDuration:   verify,
	}, nil
}
