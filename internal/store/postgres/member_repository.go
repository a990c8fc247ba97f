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

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opentrusty/qaguard/internal/authz"
	"github.com/opentrusty/qaguard/internal/organization"
)

// MemberRepository implements organization.MemberRepository
type MemberRepository struct {
	db *DB
}

// NewMemberRepository creates a new membership repository
func NewMemberRepository(db *DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// Add inserts a membership
func (r *MemberRepository) Add(ctx context.Context, m *organization.Member) error {
	_, err := r.db.sql.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role, joined_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.OrganizationID, m.UserID, string(m.Role), m.JoinedAt, m.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return organization.ErrMemberExists
		}
		return fmt.Errorf("failed to add member: %w", err)
	}
	return nil
}

// Get retrieves one membership
func (r *MemberRepository) Get(ctx context.Context, organizationID, userID string) (*organization.Member, error) {
	var m organization.Member
	var role string
	err := r.db.sql.QueryRowContext(ctx, `
		SELECT organization_id, user_id, role, joined_at, updated_at
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
	`, organizationID, userID).Scan(&m.OrganizationID, &m.UserID, &role, &m.JoinedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, organization.ErrMemberNotFound
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	m.Role = authz.Role(role)
	return &m, nil
}

// List lists an organization's members ordered by join time
func (r *MemberRepository) List(ctx context.Context, organizationID string) ([]*organization.Member, error) {
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT organization_id, user_id, role, joined_at, updated_at
		FROM organization_members
		WHERE organization_id = $1
		ORDER BY joined_at, user_id
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*organization.Member
	for rows.Next() {
		var m organization.Member
		var role string
		if err := rows.Scan(&m.OrganizationID, &m.UserID, &role, &m.JoinedAt, &m.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		m.Role = authz.Role(role)
		members = append(members, &m)
	}
	return members, rows.Err()
}

// UpdateRole changes a member's role
func (r *MemberRepository) UpdateRole(ctx context.Context, organizationID, userID string, role authz.Role, at time.Time) error {
	result, err := r.db.sql.ExecContext(ctx, `
		UPDATE organization_members SET role = $3, updated_at = $4
		WHERE organization_id = $1 AND user_id = $2
	`, organizationID, userID, string(role), at)
	if err != nil {
		return fmt.Errorf("failed to update member role: %w", err)
	}
	return expectRow(result, organization.ErrMemberNotFound)
}

// Remove deletes a membership
func (r *MemberRepository) Remove(ctx context.Context, organizationID, userID string) error {
	result, err := r.db.sql.ExecContext(ctx, `
		DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2
	`, organizationID, userID)
	if err != nil {
		return fmt.Errorf("failed to remove member: %w", err)
	}
	return expectRow(result, organization.ErrMemberNotFound)
}

// CountOwners counts the owners of an organization
func (r *MemberRepository) CountOwners(ctx context.Context, organizationID string) (int, error) {
	var n int
	err := r.db.sql.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM organization_members WHERE organization_id = $1 AND role = 'owner'
	`, organizationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count owners: %w", err)
	}
	return n, nil
}

func expectRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
