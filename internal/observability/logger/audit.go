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

package logger

import (
	"context"
	"log/slog"
)

// AuditEvent is a diagnostic record of a security-relevant outcome. It goes to
// the log stream only; the durable token activity trail lives in package
// activity.
type AuditEvent struct {
	EventType      string
	ActorKind      string
	UserID         string
	TokenID        string
	OrganizationID string
	ProjectID      string
	IPAddress      string
	Action         string
	Resource       string
	Result         string // allowed, denied, unauthenticated, error
	Reason         string
	Metadata       map[string]any
}

// AuditLogger writes AuditEvents through slog
type AuditLogger struct {
	logger *slog.Logger
}

// NewAuditLogger creates a new audit logger
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return &AuditLogger{
		logger: logger.With(Component("audit")),
	}
}

// Log logs an audit event. Denials are logged at WARN, everything else at INFO.
func (a *AuditLogger) Log(ctx context.Context, event AuditEvent) {
	attrs := []slog.Attr{
		slog.String("event_type", event.EventType),
		Action(event.Action),
		slog.String("result", event.Result),
	}

	if event.ActorKind != "" {
		attrs = append(attrs, ActorKind(event.ActorKind))
	}
	if event.UserID != "" {
		attrs = append(attrs, UserID(event.UserID))
	}
	if event.TokenID != "" {
		attrs = append(attrs, TokenID(event.TokenID))
	}
	if event.OrganizationID != "" {
		attrs = append(attrs, OrganizationID(event.OrganizationID))
	}
	if event.ProjectID != "" {
		attrs = append(attrs, ProjectID(event.ProjectID))
	}
	if event.IPAddress != "" {
		attrs = append(attrs, slog.String("ip_address", event.IPAddress))
	}
	if event.Resource != "" {
		attrs = append(attrs, Resource(event.Resource))
	}
	if event.Reason != "" {
		attrs = append(attrs, slog.String("reason", event.Reason))
	}
	if len(event.Metadata) > 0 {
		attrs = append(attrs, slog.Any("metadata", event.Metadata))
	}

	level := slog.LevelInfo
	if event.Result == "denied" {
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(ctx, level, "audit_event", attrs...)
}
