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

package apitoken

import (
	"context"
	"log/slog"
	"time"

	"github.com/opentrusty/qaguard/internal/authz"
	"github.com/opentrusty/qaguard/internal/observability/logger"
	"github.com/opentrusty/qaguard/internal/observability/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// ClientInfo is the network origin of the request presenting the credential.
type ClientInfo struct {
	IPAddress string
}

// Validator authenticates bearer credentials against stored tokens.
type Validator struct {
	codec       *Codec
	creds       CredentialStore
	grants      GrantStore
	hasher      *SecretHasher
	tasks       Submitter
	now         func() time.Time
	validations metric.Int64Counter
	verifyTime  metric.Float64Histogram
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithClock overrides the time source.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) { v.now = now }
}

// WithValidationMetrics records validation results and verification time.
func WithValidationMetrics(validations metric.Int64Counter, verifyTime metric.Float64Histogram) ValidatorOption {
	return func(v *Validator) {
		v.validations = validations
		v.verifyTime = verifyTime
	}
}

// NewValidator creates a validator. tasks runs the last-used update.
func NewValidator(codec *Codec, creds CredentialStore, grants GrantStore, hasher *SecretHasher, tasks Submitter, opts ...ValidatorOption) *Validator {
	meter := noop.NewMeterProvider().Meter("apitoken")
	validations, _ := meter.Int64Counter("noop")
	verifyTime, _ := meter.Float64Histogram("noop")

	v := &Validator{
		codec:       codec,
		creds:       creds,
		grants:      grants,
		hasher:      hasher,
		tasks:       tasks,
		now:         time.Now,
		validations: validations,
		verifyTime:  verifyTime,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate resolves raw into a token actor.
//
// Every failure returns authz.ErrUnauthenticated: malformed input, no hash
// match, expired, not approved, revoked, soft-deleted, and storage errors
// alike. Callers cannot tell them apart.
func (v *Validator) Validate(ctx context.Context, raw string, client ClientInfo) (*authz.Actor, error) {
	ctx, span := tracing.Start(ctx, "apitoken.Validate")
	defer span.End()

	actor, result := v.validate(ctx, raw, client)
	span.SetAttributes(attribute.String("apitoken.result", result))
	v.validations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))

	if actor == nil {
		return nil, authz.ErrUnauthenticated
	}
	return actor, nil
}

func (v *Validator) validate(ctx context.Context, raw string, client ClientInfo) (*authz.Actor, string) {
	cred, err := v.codec.Parse(raw)
	if err != nil {
		return nil, "malformed"
	}

	token, result := v.match(ctx, cred)
	if token == nil {
		return nil, result
	}

	if !token.Usable(v.now()) {
		return nil, "unusable"
	}

	perms, err := v.grants.ListPermissions(ctx, token.ID)
	if err != nil {
		slog.WarnContext(ctx, "failed to load token permissions", logger.TokenID(token.ID), logger.Error(err))
		tracing.Fail(trace.SpanFromContext(ctx), err)
		return nil, "store_error"
	}
	scopes, err := v.grants.ListProjectScopes(ctx, token.ID)
	if err != nil {
		slog.WarnContext(ctx, "failed to load token project scopes", logger.TokenID(token.ID), logger.Error(err))
		tracing.Fail(trace.SpanFromContext(ctx), err)
		return nil, "store_error"
	}
	if len(scopes) == 0 {
		// no rows: unrestricted
		scopes = nil
	}

	v.scheduleTouch(ctx, token.ID, client.IPAddress)

	return &authz.Actor{
		Kind:           authz.ActorToken,
		UserID:         token.UserID,
		OrganizationID: token.OrganizationID,
		TokenID:        token.ID,
		ScopeType:      token.ScopeType,
		Permissions:    authz.NewPermissionSet(perms...),
		ProjectScopes:  scopes,
	}, "ok"
}

// match scans the active candidates sharing the lookup prefix and verifies
// each one-way hash until the first match.
func (v *Validator) match(ctx context.Context, cred *Credential) (*Token, string) {
	start := time.Now()
	defer func() {
		v.verifyTime.Record(ctx, time.Since(start).Seconds())
	}()

	candidates, err := v.creds.ListActiveByLookupPrefix(ctx, cred.LookupPrefix)
	if err != nil {
		slog.WarnContext(ctx, "failed to load token candidates", logger.Error(err))
		tracing.Fail(trace.SpanFromContext(ctx), err)
		return nil, "store_error"
	}

	for _, candidate := range candidates {
		ok, err := v.hasher.Verify(cred.Raw, candidate.SecretHash)
		if err != nil {
			slog.WarnContext(ctx, "unreadable token hash", logger.TokenID(candidate.ID), logger.Error(err))
			continue
		}
		if ok {
			return candidate, ""
		}
	}
	return nil, "no_match"
}

func (v *Validator) scheduleTouch(ctx context.Context, tokenID, ip string) {
	if v.tasks == nil {
		return
	}
	at := v.now().UTC()
	v.tasks.Submit(ctx, "token_last_used", func(ctx context.Context) error {
		return v.creds.TouchLastUsed(ctx, tokenID, at, ip)
	})
}
