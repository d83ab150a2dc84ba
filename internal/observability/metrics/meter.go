// Copyright 2026 The Uitsmijter Authors
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

// Package metrics counts the security-relevant events of the server:
// logins, token issuance, replay detections, revocations. The counters
// are fed from the audit event stream so the flow engine needs no second
// instrumentation path.
package metrics

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/uitsmijter/uitsmijter/internal/audit"
)

// Config holds metrics configuration
type Config struct {
	Enabled bool
}

// Meter holds the instrument set. With metrics disabled the instruments
// come from the global no-op provider and recording is free.
type Meter struct {
	logins       metric.Int64Counter
	tokensIssued metric.Int64Counter
	replays      metric.Int64Counter
	revocations  metric.Int64Counter
}

// New creates the instrument set on the given meter scope.
func New(ctx context.Context, cfg Config, serviceName string) (*Meter, error) {
	scope := "noop"
	if cfg.Enabled {
		scope = serviceName
	}
	meter := otel.Meter(scope)

	m := &Meter{}
	var errs []error
	mk := func(name, description string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(description))
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to create counter %s: %w", name, err))
		}
		return c
	}

	m.logins = mk("uitsmijter.logins", "login attempts by outcome")
	m.tokensIssued = mk("uitsmijter.tokens.issued", "token responses by grant kind")
	m.replays = mk("uitsmijter.replays.detected", "replayed codes and refresh tokens")
	m.revocations = mk("uitsmijter.revocations", "token and family revocations")

	return m, errors.Join(errs...)
}

// Record bumps the counter matching an audit event. Unknown event types
// are ignored; the audit log keeps the full detail.
func (m *Meter) Record(ctx context.Context, event audit.Event) {
	tenant := attribute.String("tenant", event.Tenant)

	switch event.Type {
	case audit.TypeLoginSuccess:
		m.logins.Add(ctx, 1, metric.WithAttributes(tenant, attribute.String("outcome", "success")))
	case audit.TypeLoginFailed:
		m.logins.Add(ctx, 1, metric.WithAttributes(tenant, attribute.String("outcome", "failed")))
	case audit.TypeSilentLogin:
		m.logins.Add(ctx, 1, metric.WithAttributes(tenant, attribute.String("outcome", "silent")))
	case audit.TypeTokenIssued:
		m.tokensIssued.Add(ctx, 1, metric.WithAttributes(tenant, attribute.String("kind", "initial")))
	case audit.TypeTokenRefreshed:
		m.tokensIssued.Add(ctx, 1, metric.WithAttributes(tenant, attribute.String("kind", "refresh")))
	case audit.TypeCodeReplayed:
		m.replays.Add(ctx, 1, metric.WithAttributes(tenant, attribute.String("kind", "code")))
	case audit.TypeRefreshReplayed:
		m.replays.Add(ctx, 1, metric.WithAttributes(tenant, attribute.String("kind", "refresh")))
	case audit.TypeTokenRevoked, audit.TypeFamilyRevoked:
		m.revocations.Add(ctx, 1, metric.WithAttributes(tenant))
	}
}

// AuditRecorder is an audit.Logger that counts every event before
// delegating to the real audit sink.
type AuditRecorder struct {
	meter *Meter
	next  audit.Logger
}

// NewAuditRecorder wraps next with metric recording. A nil next falls
// back to the slog audit logger.
func NewAuditRecorder(m *Meter, next audit.Logger) *AuditRecorder {
	if next == nil {
		next = audit.NewSlogLogger()
	}
	return &AuditRecorder{meter: m, next: next}
}

// Log implements audit.Logger.
func (r *AuditRecorder) Log(ctx context.Context, event audit.Event) {
	r.meter.Record(ctx, event)
	r.next.Log(ctx, event)
}
