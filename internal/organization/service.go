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

package organization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentrusty/qaguard/internal/audit"
	"github.com/opentrusty/qaguard/internal/authz"
)

// Service provides membership and project lookups for the organization
// collaborator.
type Service struct {
	members     MemberRepository
	projects    ProjectRepository
	auditLogger audit.Logger
	now         func() time.Time
}

// NewService creates a new organization service
func NewService(members MemberRepository, projects ProjectRepository, auditLogger audit.Logger) *Service {
	return &Service{
		members:     members,
		projects:    projects,
		auditLogger: auditLogger,
		now:         time.Now,
	}
}

// MemberRole implements authz.MembershipResolver.
func (s *Service) MemberRole(ctx context.Context, organizationID, userID string) (authz.Role, error) {
	m, err := s.members.Get(ctx, organizationID, userID)
	if errors.Is(err, ErrMemberNotFound) {
		return "", authz.ErrNotMember
	}
	if err != nil {
		return "", err
	}
	return m.Role, nil
}

// ListMembers lists all members of an organization.
func (s *Service) ListMembers(ctx context.Context, organizationID string) ([]*Member, error) {
	return s.members.List(ctx, organizationID)
}

// AddMember adds userID to the organization with role.
func (s *Service) AddMember(ctx context.Context, actorID, organizationID, userID string, role authz.Role) (*Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}
	if role == authz.RoleOwner {
		if err := s.requireOwner(ctx, organizationID, actorID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	m := &Member{
		OrganizationID: organizationID,
		UserID:         userID,
		Role:           role,
		JoinedAt:       now,
		UpdatedAt:      now,
	}
	if err := s.members.Add(ctx, m); err != nil {
		return nil, err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleAssigned,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       string(role),
		Metadata:       map[string]any{"user_id": userID},
	})
	return m, nil
}

// ChangeRole sets a member's role. Only owners may grant or take away the
// owner role, and the last owner cannot be demoted.
func (s *Service) ChangeRole(ctx context.Context, actorID, organizationID, userID string, role authz.Role) (*Member, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRole, role)
	}

	m, err := s.members.Get(ctx, organizationID, userID)
	if err != nil {
		return nil, err
	}
	if m.Role == role {
		return m, nil
	}

	if role == authz.RoleOwner || m.Role == authz.RoleOwner {
		if err := s.requireOwner(ctx, organizationID, actorID); err != nil {
			return nil, err
		}
	}
	if m.Role == authz.RoleOwner {
		if err := s.ensureAnotherOwner(ctx, organizationID); err != nil {
			return nil, err
		}
	}

	now := s.now().UTC()
	if err := s.members.UpdateRole(ctx, organizationID, userID, role, now); err != nil {
		return nil, err
	}
	previous := m.Role
	m.Role = role
	m.UpdatedAt = now

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeRoleAssigned,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       string(role),
		Metadata:       map[string]any{"user_id": userID, "previous_role": string(previous)},
	})
	return m, nil
}

// RemoveMember ends a membership. Tokens the member issued stay as they are;
// they stop working only through expiry or revocation.
func (s *Service) RemoveMember(ctx context.Context, actorID, organizationID, userID string) error {
	m, err := s.members.Get(ctx, organizationID, userID)
	if err != nil {
		return err
	}
	if m.Role == authz.RoleOwner {
		if err := s.requireOwner(ctx, organizationID, actorID); err != nil {
			return err
		}
		if err := s.ensureAnotherOwner(ctx, organizationID); err != nil {
			return err
		}
	}

	if err := s.members.Remove(ctx, organizationID, userID); err != nil {
		return err
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:           audit.TypeMemberRemoved,
		OrganizationID: organizationID,
		ActorID:        actorID,
		Resource:       string(m.Role),
		Metadata:       map[string]any{"user_id": userID},
	})
	return nil
}

// GetProject returns the project so callers can resolve its organization.
func (s *Service) GetProject(ctx context.Context, projectID string) (*Project, error) {
	return s.projects.GetByID(ctx, projectID)
}

// ListProjects lists an organization's projects.
func (s *Service) ListProjects(ctx context.Context, organizationID string) ([]*Project, error) {
	return s.projects.ListByOrganization(ctx, organizationID)
}

func (s *Service) requireOwner(ctx context.Context, organizationID, actorID string) error {
	role, err := s.MemberRole(ctx, organizationID, actorID)
	if errors.Is(err, authz.ErrNotMember) {
		return authz.ErrOrganizationMismatch
	}
	if err != nil {
		return fmt.Errorf("failed to resolve actor role: %w", err)
	}
	if role != authz.RoleOwner {
		return authz.ErrRoleThreshold
	}
	return nil
}

func (s *Service) ensureAnotherOwner(ctx context.Context, organizationID string) error {
	owners, err := s.members.CountOwners(ctx, organizationID)
	if err != nil {
		return fmt.Errorf("failed to count owners: %w", err)
	}
	if owners <= 1 {
		return ErrLastOwner
	}
	return nil
}
