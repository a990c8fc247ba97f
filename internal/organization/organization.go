package organization

import (
	"errors"
	"time"

	"github.com/opentrusty/qaguard/internal/authz"
)

var (
	ErrMemberNotFound  = errors.New("member not found")
	ErrMemberExists    = errors.New("member already exists")
	ErrProjectNotFound = errors.New("project not found")
	ErrLastOwner       = errors.New("organization must keep at least one owner")
	ErrInvalidRole     = errors.New("invalid role")
)

// Member is a user's membership in an organization.
type Member struct {
	OrganizationID string     `json:"organization_id"`
	UserID         string     `json:"user_id"`
	Role           authz.Role `json:"role"`
	JoinedAt       time.Time  `json:"joined_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Project belongs to exactly one organization.
type Project struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	CreatedAt      time.Time `json:"created_at"`
}
