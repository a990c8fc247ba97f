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

	"github.com/opentrusty/qaguard/internal/apitoken"
	"github.com/opentrusty/qaguard/internal/authz"
)

const tokenColumns = `id, user_id, organization_id, name, lookup_prefix, secret_hash,
	scope_type, scope_status, status, expires_at, last_used_at, last_used_ip,
	reviewed_by, reviewed_at, created_at, updated_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

// APITokenRepository implements apitoken.CredentialStore and apitoken.GrantStore
type APITokenRepository struct {
	db *DB
}

// NewAPITokenRepository creates a new API token repository
func NewAPITokenRepository(db *DB) *APITokenRepository {
	return &APITokenRepository{db: db}
}

// Create stores the token with its grants in one transaction.
func (r *APITokenRepository) Create(ctx context.Context, token *apitoken.Token, permissions []authz.Permission, projectIDs []string) error {
	return r.db.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO api_tokens (
				id, user_id, organization_id, name, lookup_prefix, secret_hash,
				scope_type, scope_status, status, expires_at, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`,
			token.ID, token.UserID, token.OrganizationID, token.Name, token.LookupPrefix, token.SecretHash,
			string(token.ScopeType), string(token.ScopeStatus), string(token.Status), nullTime(token.ExpiresAt),
			token.CreatedAt, token.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("api token %s already exists: %w", token.ID, err)
			}
			return fmt.Errorf("failed to create api token: %w", err)
		}

		for _, p := range permissions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO api_token_permissions (token_id, resource, action) VALUES ($1, $2, $3)
			`, token.ID, string(p.Resource), string(p.Action)); err != nil {
				return fmt.Errorf("failed to store token permission: %w", err)
			}
		}

		for _, pid := range projectIDs {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO api_token_project_scopes (token_id, project_id) VALUES ($1, $2)
			`, token.ID, pid); err != nil {
				return fmt.Errorf("failed to store token project scope: %w", err)
			}
		}
		return nil
	})
}

// GetByID retrieves a token that has not been soft-deleted.
func (r *APITokenRepository) GetByID(ctx context.Context, id string) (*apitoken.Token, error) {
	row := r.db.sql.QueryRowContext(ctx, `
		SELECT `+tokenColumns+`
		FROM api_tokens
		WHERE id = $1 AND deleted_at IS NULL
	`, id)

	token, err := scanToken(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apitoken.ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to get api token: %w", err)
	}
	return token, nil
}

// ListActiveByLookupPrefix returns the active, non-deleted candidates for a
// lookup prefix. Expiry and approval are checked by the caller.
func (r *APITokenRepository) ListActiveByLookupPrefix(ctx context.Context, prefix string) ([]*apitoken.Token, error) {
	return r.list(ctx, `
		SELECT `+tokenColumns+`
		FROM api_tokens
		WHERE lookup_prefix = $1 AND status = 'active' AND deleted_at IS NULL
	`, prefix)
}

// ListByUser lists a user's tokens in an organization, newest first.
func (r *APITokenRepository) ListByUser(ctx context.Context, organizationID, userID string) ([]*apitoken.Token, error) {
	return r.list(ctx, `
		SELECT `+tokenColumns+`
		FROM api_tokens
		WHERE organization_id = $1 AND user_id = $2 AND deleted_at IS NULL
		ORDER BY created_at DESC
	`, organizationID, userID)
}

// ListPending lists tokens in an organization awaiting review.
func (r *APITokenRepository) ListPending(ctx context.Context, organizationID string) ([]*apitoken.Token, error) {
	return r.list(ctx, `
		SELECT `+tokenColumns+`
		FROM api_tokens
		WHERE organization_id = $1 AND scope_status = 'pending' AND deleted_at IS NULL
		ORDER BY created_at
	`, organizationID)
}

// UpdateScopeStatus moves a token from one approval state to another. The
// from condition makes concurrent reviews of the same token race safely.
func (r *APITokenRepository) UpdateScopeStatus(ctx context.Context, id string, from, to apitoken.ScopeStatus, reviewedBy string, at time.Time) error {
	result, err := r.db.sql.ExecContext(ctx, `
		UPDATE api_tokens
		SET scope_status = $3, reviewed_by = $4, reviewed_at = $5, updated_at = $5
		WHERE id = $1 AND scope_status = $2 AND deleted_at IS NULL
	`, id, string(from), string(to), reviewedBy, at)
	if err != nil {
		return fmt.Errorf("failed to update token scope status: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update token scope status: %w", err)
	}
	if n == 0 {
		return apitoken.ErrNotPending
	}
	return nil
}

// Revoke marks a token revoked and soft-deletes it.
func (r *APITokenRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.sql.ExecContext(ctx, `
		UPDATE api_tokens
		SET status = 'revoked', deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`, id, at)
	if err != nil {
		return fmt.Errorf("failed to revoke api token: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to revoke api token: %w", err)
	}
	if n == 0 {
		return apitoken.ErrTokenNotFound
	}
	return nil
}

// TouchLastUsed records the time and address of the latest successful use.
func (r *APITokenRepository) TouchLastUsed(ctx context.Context, id string, at time.Time, ip string) error {
	_, err := r.db.sql.ExecContext(ctx, `
		UPDATE api_tokens SET last_used_at = $2, last_used_ip = $3 WHERE id = $1
	`, id, at, nullString(ip))
	if err != nil {
		return fmt.Errorf("failed to update token last use: %w", err)
	}
	return nil
}

// ListPermissions returns the token's explicit grants.
func (r *APITokenRepository) ListPermissions(ctx context.Context, tokenID string) ([]authz.Permission, error) {
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT resource, action FROM api_token_permissions
		WHERE token_id = $1
		ORDER BY resource, action
	`, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to list token permissions: %w", err)
	}
	defer rows.Close()

	var perms []authz.Permission
	for rows.Next() {
		var res, act string
		if err := rows.Scan(&res, &act); err != nil {
			return nil, fmt.Errorf("failed to scan token permission: %w", err)
		}
		perms = append(perms, authz.Permission{Resource: authz.Resource(res), Action: authz.Action(act)})
	}
	return perms, rows.Err()
}

// ListProjectScopes returns the token's project allow-list. No rows means
// unrestricted.
func (r *APITokenRepository) ListProjectScopes(ctx context.Context, tokenID string) ([]string, error) {
	rows, err := r.db.sql.QueryContext(ctx, `
		SELECT project_id FROM api_token_project_scopes
		WHERE token_id = $1
		ORDER BY project_id
	`, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to list token project scopes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var pid string
		if err := rows.Scan(&pid); err != nil {
			return nil, fmt.Errorf("failed to scan token project scope: %w", err)
		}
		ids = append(ids, pid)
	}
	return ids, rows.Err()
}

func (r *APITokenRepository) list(ctx context.Context, query string, args ...any) ([]*apitoken.Token, error) {
	rows, err := r.db.sql.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list api tokens: %w", err)
	}
	defer rows.Close()

	var tokens []*apitoken.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api token: %w", err)
		}
		tokens = append(tokens, token)
	}
	return tokens, rows.Err()
}

func scanToken(row scanner) (*apitoken.Token, error) {
	var (
		t                                     apitoken.Token
		scopeType, scopeStatus, status        string
		lastUsedIP, reviewedBy                sql.NullString
		expiresAt, lastUsedAt, reviewedAt, da sql.NullTime
	)
	err := row.Scan(
		&t.ID, &t.UserID, &t.OrganizationID, &t.Name, &t.LookupPrefix, &t.SecretHash,
		&scopeType, &scopeStatus, &status, &expiresAt, &lastUsedAt, &lastUsedIP,
		&reviewedBy, &reviewedAt, &t.CreatedAt, &t.UpdatedAt, &da,
	)
	if err != nil {
		return nil, err
	}

	t.ScopeType = authz.ScopeType(scopeType)
	t.ScopeStatus = apitoken.ScopeStatus(scopeStatus)
	t.Status = apitoken.Status(status)
	t.ExpiresAt = timePtr(expiresAt)
	t.LastUsedAt = timePtr(lastUsedAt)
	t.LastUsedIP = lastUsedIP.String
	t.ReviewedBy = reviewedBy.String
	t.ReviewedAt = timePtr(reviewedAt)
	t.DeletedAt = timePtr(da)
	return &t, nil
}
