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

package authz

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/opentrusty/qaguard/internal/observability/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MembershipResolver supplies an actor's role in an organization.
type MembershipResolver interface {
	// MemberRole returns ErrNotMember when the user has no membership.
	MemberRole(ctx context.Context, organizationID, userID string) (Role, error)
}

// HasPermission reports whether a token actor holds action on resource.
func HasPermission(actor *Actor, resource Resource, action Action) bool {
	if actor == nil || actor.Permissions == nil {
		return false
	}
	return actor.Permissions.Has(resource, action)
}

// HasAnyPermission reports whether at least one of perms is held.
func HasAnyPermission(actor *Actor, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(actor, p.Resource, p.Action) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every one of perms is held.
func HasAllPermissions(actor *Actor, perms ...Permission) bool {
	if actor == nil {
		return false
	}
	for _, p := range perms {
		if !HasPermission(actor, p.Resource, p.Action) {
			return false
		}
	}
	return true
}

// HasProjectAccess reports whether a token actor may touch projectID.
//
// Organization-scoped tokens ignore project scoping entirely. Otherwise a nil
// scope list means unrestricted and a non-nil list (even an empty one) is an
// exact allow-list.
func HasProjectAccess(actor *Actor, projectID string) bool {
	if actor == nil {
		return false
	}
	if actor.ScopeType == ScopeOrganization {
		return true
	}
	if actor.ProjectScopes == nil {
		return true
	}
	return slices.Contains(actor.ProjectScopes, projectID)
}

// Evaluator makes the composite access decision for guarded routes.
type Evaluator struct {
	members   MembershipResolver
	audit     *logger.AuditLogger
	decisions metric.Int64Counter
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithAuditLogger sends denied decisions to the diagnostic audit log.
func WithAuditLogger(l *logger.AuditLogger) Option {
	return func(e *Evaluator) { e.audit = l }
}

// WithDecisionCounter counts decisions by actor kind, outcome and reason.
func WithDecisionCounter(c metric.Int64Counter) Option {
	return func(e *Evaluator) { e.decisions = c }
}

// NewEvaluator creates an evaluator backed by members for session actors.
func NewEvaluator(members MembershipResolver, opts ...Option) *Evaluator {
	counter, _ := noop.NewMeterProvider().Meter("authz").Int64Counter("noop")
	e := &Evaluator{
		members:   members,
		decisions: counter,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize checks whether actor may perform req against target.
//
// Checks run in the fixed order organization, project scope, then permission
// (tokens) or role threshold (sessions), and stop at the first failure. The
// returned error is one of ErrUnauthenticated, a Forbidden variant, or a
// wrapped storage error from the membership lookup.
func (e *Evaluator) Authorize(ctx context.Context, actor *Actor, target Target, req Requirement) error {
	err := e.decide(ctx, actor, target, req)
	e.observe(ctx, actor, target, req, err)
	return err
}

func (e *Evaluator) decide(ctx context.Context, actor *Actor, target Target, req Requirement) error {
	if actor == nil || actor.UserID == "" {
		return ErrUnauthenticated
	}

	switch actor.Kind {
	case ActorToken:
		return authorizeToken(actor, target, req)
	case ActorSession:
		return e.authorizeSession(ctx, actor, target, req)
	}
	return ErrUnauthenticated
}

func authorizeToken(actor *Actor, target Target, req Requirement) error {
	if target.OrganizationID == "" || actor.OrganizationID != target.OrganizationID {
		return ErrOrganizationMismatch
	}
	if target.ProjectID != "" && !HasProjectAccess(actor, target.ProjectID) {
		return ErrProjectScope
	}
	if !HasPermission(actor, req.Resource, req.Action) {
		return ErrPermission
	}
	return nil
}

func (e *Evaluator) authorizeSession(ctx context.Context, actor *Actor, target Target, req Requirement) error {
	if target.OrganizationID == "" {
		return ErrOrganizationMismatch
	}
	if actor.OrganizationID != "" && actor.OrganizationID != target.OrganizationID {
		return ErrOrganizationMismatch
	}
	if e.members == nil {
		return errors.New("membership resolver not configured")
	}

	role, err := e.members.MemberRole(ctx, target.OrganizationID, actor.UserID)
	if errors.Is(err, ErrNotMember) {
		return ErrOrganizationMismatch
	}
	if err != nil {
		return fmt.Errorf("failed to resolve membership: %w", err)
	}

	if !role.AtLeast(req.MinRole) {
		return ErrRoleThreshold
	}
	return nil
}

func (e *Evaluator) observe(ctx context.Context, actor *Actor, target Target, req Requirement, err error) {
	outcome := "allowed"
	reason := ""
	switch {
	case err == nil:
	case errors.Is(err, ErrForbidden):
		outcome = "denied"
		reason = DenyReason(err)
	case errors.Is(err, ErrUnauthenticated):
		outcome = "unauthenticated"
	default:
		outcome = "error"
	}

	if trail := DecisionTrailFromContext(ctx); trail != nil {
		trail.add(Decision{
			Resource: req.Resource,
			Action:   req.Action,
			Allowed:  err == nil,
			Reason:   reason,
		})
	}

	kind := "anonymous"
	if actor != nil {
		kind = string(actor.Kind)
	}
	e.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("actor_kind", kind),
		attribute.String("outcome", outcome),
		attribute.String("reason", reason),
	))

	if err == nil || e.audit == nil || actor == nil {
		return
	}
	e.audit.Log(ctx, logger.AuditEvent{
		EventType:      "authz_decision",
		ActorKind:      kind,
		UserID:         actor.UserID,
		TokenID:        actor.TokenID,
		OrganizationID: target.OrganizationID,
		ProjectID:      target.ProjectID,
		Action:         string(req.Action),
		Resource:       string(req.Resource),
		Result:         outcome,
		Reason:         reason,
	})
}
