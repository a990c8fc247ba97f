package organization

import (
	"context"
	"time"

	"github.com/opentrusty/qaguard/internal/authz"
)

// MemberRepository defines the interface for membership storage
type MemberRepository interface {
	Add(ctx context.Context, member *Member) error
	// Get returns ErrMemberNotFound when there is no membership.
	Get(ctx context.Context, organizationID, userID string) (*Member, error)
	List(ctx context.Context, organizationID string) ([]*Member, error)
	UpdateRole(ctx context.Context, organizationID, userID string, role authz.Role, at time.Time) error
	Remove(ctx context.Context, organizationID, userID string) error
	CountOwners(ctx context.Context, organizationID string) (int, error)
}

// ProjectRepository defines the interface for project storage
type ProjectRepository interface {
	// GetByID returns ErrProjectNotFound for unknown ids.
	GetByID(ctx context.Context, id string) (*Project, error)
	ListByOrganization(ctx context.Context, organizationID string) ([]*Project, error)
}
