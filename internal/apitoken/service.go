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
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/opentrusty/qaguard/internal/audit"
	"github.com/opentrusty/qaguard/internal/authz"
	"github.com/opentrusty/qaguard/internal/id"
	"github.com/opentrusty/qaguard/internal/organization"
)

const maxNameLength = 100

// CreateRequest describes a token to issue.
type CreateRequest struct {
	OrganizationID string
	Name           string
	ScopeType      authz.ScopeType
	Permissions    []authz.Permission
	// ProjectIDs nil means unrestricted. An explicit empty list is rejected:
	// with zero stored rows it would read back as unrestricted.
	ProjectIDs []string
	ExpiresAt  *time.Time
}

// IssuedToken is returned once at creation. Secret is never retrievable again.
type IssuedToken struct {
	Token  *Token `json:"token"`
	Secret string `json:"secret"`
}

// EscalationError lists requested grants the issuer does not hold.
type EscalationError struct {
	Invalid []authz.Permission
}

func (e *EscalationError) Error() string {
	names := make([]string, len(e.Invalid))
	for i, p := range e.Invalid {
		names[i] = p.String()
	}
	return fmt.Sprintf("%s: %s", ErrPermissionEscalation, strings.Join(names, ", "))
}

func (e *EscalationError) Unwrap() error {
	return ErrPermissionEscalation
}

// Service manages the token lifecycle.
type Service struct {
	creds       CredentialStore
	members     authz.MembershipResolver
	projects    ProjectDirectory
	guard       *authz.IssuanceGuard
	codec       *Codec
	hasher      *SecretHasher
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a token management service.
func NewService(
	creds CredentialStore,
	members authz.MembershipResolver,
	projects ProjectDirectory,
	codec *Codec,
	hasher *SecretHasher,
	auditLogger audit.Logger,
) *Service {
	return &Service{
		creds:       creds,
		members:     members,
		projects:    projects,
		guard:       authz.NewIssuanceGuard(members),
		codec:       codec,
		hasher:      hasher,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// Create issues a token on behalf of a session actor. Organization-scoped
// tokens start pending and need an admin's approval; personal and team tokens
// are usable immediately.
func (s *Service) Create(ctx context.Context, issuer *authz.Actor, req CreateRequest) (*IssuedToken, error) {
	if err := requireSession(issuer); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	perms, projectIDs, err := normalize(req, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.memberRole(ctx, req.OrganizationID, issuer.UserID); err != nil {
		return nil, err
	}
	if err := s.checkProjects(ctx, req.OrganizationID, projectIDs); err != nil {
		return nil, err
	}

	result, err := s.guard.ValidateRequestedPermissions(ctx, issuer.UserID, req.OrganizationID, perms)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		return nil, &EscalationError{Invalid: result.Invalid}
	}

	cred, err := s.codec.Generate()
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(cred.Raw)
	if err != nil {
		return nil, fmt.Errorf("failed to hash token secret: %w", err)
	}

	scopeStatus := ScopeStatusApproved
	if req.ScopeType == authz.ScopeOrganization {
		scopeStatus = ScopeStatusPending
	}

	token := &Token{
		ID:             id.NewUUIDv7(),
		UserID:         issuer.UserID,
		OrganizationID: req.OrganizationID,
		Name:           strings.TrimSpace(req.Name),
		LookupPrefix:   cred.LookupPrefix,
		SecretHash:     hash,
		ScopeType:      req.ScopeType,
		ScopeStatus:    scopeStatus,
		Status:         StatusActive,
		ExpiresAt:      req.ExpiresAt,
		CreatedAt:      now,
		UpdatedAt:      now,
		Permissions:    perms,
		ProjectScopes:  projectIDs,
	}

	if err := s.creds.Create(ctx, token, perms, projectIDs); err != nil {
		return nil, fmt.Errorf("failed to create api token: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeTokenIssued,
		OrganizationID: token.OrganizationID,
		ActorID:        issuer.UserID,
		Resource:       token.ID,
		Metadata:       map[string]any{
			"scope_type":   string(token.ScopeType),
			"scope_status": string(token.ScopeStatus),
			"permissions":  permissionNames(perms),
			"project_ids":  projectIDs,
		},
	})

	return &IssuedToken{Token: token, Secret: cred.Raw}, nil
}

// checkProjects rejects project ids that do not exist or belong to another
// organization. Both read as unknown to the caller.
func (s *Service) checkProjects(ctx context.Context, organizationID string, projectIDs []string) error {
	for _, pid := range projectIDs {
		project, err := s.projects.GetProject(ctx, pid)
		switch {
		case errors.Is(err, organization.ErrProjectNotFound):
			return fmt.Errorf("%w: unknown project %q", ErrInvalidRequest, pid)
		case err != nil:
			return fmt.Errorf("failed to look up project: %w", err)
		case project.OrganizationID != organizationID:
			return fmt.Errorf("%w: unknown project %q", ErrInvalidRequest, pid)
		}
	}
	return nil
}

// ListOwn lists the actor's own tokens in an organization.
func (s *Service) ListOwn(ctx context.Context, actor *authz.Actor, organizationID string) ([]*Token, error) {
	if err := requireSession(actor); err != nil {
		return nil, err
	}
	if _, err := s.memberRole(ctx, organizationID, actor.UserID); err != nil {
		return nil, err
	}
	return s.creds.ListByUser(ctx, organizationID, actor.UserID)
}

// ListPending lists organization-scoped tokens awaiting review.
func (s *Service) ListPending(ctx context.Context, actor *authz.Actor, organizationID string) ([]*Token, error) {
	if err := s.requireReviewer(ctx, actor, organizationID); err != nil {
		return nil, err
	}
	return s.creds.ListPending(ctx, organizationID)
}

// Approve makes a pending organization-scoped token usable.
func (s *Service) Approve(ctx context.Context, actor *authz.Actor, organizationID, tokenID string) (*Token, error) {
	return s.review(ctx, actor, organizationID, tokenID, ScopeStatusApproved, audit.TypeTokenApproved)
}

// Reject permanently blocks a pending organization-scoped token.
func (s *Service) Reject(ctx context.Context, actor *authz.Actor, organizationID, tokenID string) (*Token, error) {
	return s.review(ctx, actor, organizationID, tokenID, ScopeStatusRejected, audit.TypeTokenRejected)
}

func (s *Service) review(ctx context.Context, actor *authz.Actor, organizationID, tokenID string, to ScopeStatus, eventType string) (*Token, error) {
	// role first, so non-reviewers learn nothing about token ids
	if err := s.requireReviewer(ctx, actor, organizationID); err != nil {
		return nil, err
	}

	token, err := s.creds.GetByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	if token.OrganizationID != organizationID {
		return nil, ErrTokenNotFound
	}
	if token.ScopeType != authz.ScopeOrganization || token.ScopeStatus != ScopeStatusPending {
		return nil, ErrNotPending
	}

	now := s.now().UTC()
	if err := s.creds.UpdateScopeStatus(ctx, token.ID, ScopeStatusPending, to, actor.UserID, now); err != nil {
		return nil, err
	}
	token.ScopeStatus = to
	token.ReviewedBy = actor.UserID
	token.ReviewedAt = &now
	token.UpdatedAt = now

	s.auditLogger.Log(ctx, audit.Event{
		Type:           eventType,
		OrganizationID: organizationID,
		ActorID:        actor.UserID,
		Resource:       token.ID,
		Metadata:       map[string]any{"owner_id": token.UserID},
	})

	return token, nil
}

// Revoke revokes and soft-deletes a token. Only the token's owner may revoke
// it; anyone else gets ErrTokenNotFound.
func (s *Service) Revoke(ctx context.Context, actor *authz.Actor, tokenID string) error {
	if err := requireSession(actor); err != nil {
		return err
	}

	token, err := s.creds.GetByID(ctx, tokenID)
	if err != nil {
		return err
	}
	if token.UserID != actor.UserID {
		return ErrTokenNotFound
	}

	if err := s.creds.Revoke(ctx, token.ID, s.now().UTC()); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeTokenRevoked,
		OrganizationID: token.OrganizationID,
		ActorID:        actor.UserID,
		Resource:       token.ID,
	})
	return nil
}

func (s *Service) memberRole(ctx context.Context, organizationID, userID string) (authz.Role, error) {
	role, err := s.members.MemberRole(ctx, organizationID, userID)
	if errors.Is(err, authz.ErrNotMember) {
		return "", authz.ErrOrganizationMismatch
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve membership: %w", err)
	}
	return role, nil
}

func (s *Service) requireReviewer(ctx context.Context, actor *authz.Actor, organizationID string) error {
	if err := requireSession(actor); err != nil {
		return err
	}
	role, err := s.memberRole(ctx, organizationID, actor.UserID)
	if err != nil {
		return err
	}
	if !role.AtLeast(authz.RoleAdmin) {
		return authz.ErrRoleThreshold
	}
	return nil
}

// requireSession keeps token management with interactive users. A token may
// not mint, review or revoke tokens.
func requireSession(actor *authz.Actor) error {
	if actor == nil || actor.UserID == "" {
		return authz.ErrUnauthenticated
	}
	if actor.Kind != authz.ActorSession {
		return authz.ErrPermission
	}
	return nil
}

func normalize(req CreateRequest, now time.Time) ([]authz.Permission, []string, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" || len(name) > maxNameLength {
		return nil, nil, fmt.Errorf("%w: name must be 1-%d characters", ErrInvalidRequest, maxNameLength)
	}
	if req.OrganizationID == "" {
		return nil, nil, fmt.Errorf("%w: organization is required", ErrInvalidRequest)
	}
	if !req.ScopeType.Valid() {
		return nil, nil, fmt.Errorf("%w: unknown scope type %q", ErrInvalidRequest, req.ScopeType)
	}
	if len(req.Permissions) == 0 {
		return nil, nil, fmt.Errorf("%w: at least one permission is required", ErrInvalidRequest)
	}
	if req.ProjectIDs != nil && len(req.ProjectIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: project_ids must be omitted or non-empty", ErrInvalidRequest)
	}
	if req.ScopeType == authz.ScopeTeam && len(req.ProjectIDs) == 0 {
		return nil, nil, fmt.Errorf("%w: team tokens require project_ids", ErrInvalidRequest)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		return nil, nil, fmt.Errorf("%w: expires_at must be in the future", ErrInvalidRequest)
	}

	perms := make([]authz.Permission, 0, len(req.Permissions))
	for _, p := range req.Permissions {
		if p.Resource == "" || p.Action == "" {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidRequest, authz.ErrInvalidPermission)
		}
		if !slices.Contains(perms, p) {
			perms = append(perms, p)
		}
	}

	var projectIDs []string
	for _, pid := range req.ProjectIDs {
		if pid == "" {
			return nil, nil, fmt.Errorf("%w: empty project id", ErrInvalidRequest)
		}
		if !slices.Contains(projectIDs, pid) {
			projectIDs = append(projectIDs, pid)
		}
	}

	return perms, projectIDs, nil
}

func permissionNames(perms []authz.Permission) []string {
	names := make([]string, len(perms))
	for i, p := range perms {
		names[i] = p.String()
	}
	return names
}
