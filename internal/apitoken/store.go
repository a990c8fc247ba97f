package apitoken

import (
	"context"
	"time"

	"github.com/opentrusty/qaguard/internal/authz"
	"github.com/opentrusty/qaguard/internal/organization"
)

// CredentialStore persists token records.
type CredentialStore interface {
	// Create inserts the token with its permission and project scope rows in
	// one transaction.
	Create(ctx context.Context, token *Token, permissions []authz.Permission, projectIDs []string) error

	// GetByID returns a token that is not soft-deleted.
	GetByID(ctx context.Context, id string) (*Token, error)

	// ListActiveByLookupPrefix returns active, non-deleted tokens whose lookup
	// prefix matches.
	ListActiveByLookupPrefix(ctx context.Context, prefix string) ([]*Token, error)

	// ListByUser returns a user's non-deleted tokens in an organization.
	ListByUser(ctx context.Context, organizationID, userID string) ([]*Token, error)

	// ListPending returns organization-scoped tokens awaiting approval.
	ListPending(ctx context.Context, organizationID string) ([]*Token, error)

	// UpdateScopeStatus moves a token from one approval state to another.
	// Returns ErrNotPending when the token is not in state from.
	UpdateScopeStatus(ctx context.Context, id string, from, to ScopeStatus, reviewedBy string, at time.Time) error

	// Revoke marks the token revoked and soft-deleted.
	Revoke(ctx context.Context, id string, at time.Time) error

	// TouchLastUsed records the most recent use.
	TouchLastUsed(ctx context.Context, id string, at time.Time, ip string) error
}

// GrantStore reads the explicit grants attached to a token.
type GrantStore interface {
	ListPermissions(ctx context.Context, tokenID string) ([]authz.Permission, error)
	ListProjectScopes(ctx context.Context, tokenID string) ([]string, error)
}

// ProjectDirectory looks up projects named in a token's project scope.
// Satisfied by *organization.Service.
type ProjectDirectory interface {
	// GetProject returns organization.ErrProjectNotFound for unknown ids.
	GetProject(ctx context.Context, projectID string) (*organization.Project, error)
}

// Submitter schedules background work. Satisfied by *worker.Pool.
type Submitter interface {
	Submit(ctx context.Context, name string, fn func(ctx context.Context) error) bool
}
