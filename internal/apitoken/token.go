package apitoken

import (
	"errors"
	"time"

	"github.com/opentrusty/qaguard/internal/authz"
)

// Domain errors
var (
	ErrTokenNotFound        = errors.New("api token not found")
	ErrNotPending           = errors.New("api token is not awaiting approval")
	ErrInvalidRequest       = errors.New("invalid token request")
	ErrPermissionEscalation = errors.New("requested permissions exceed issuer role")
	ErrMalformedCredential  = errors.New("malformed credential")
)

// ScopeStatus is the approval state of a token.
type ScopeStatus string

const (
	ScopeStatusPending  ScopeStatus = "pending"
	ScopeStatusApproved ScopeStatus = "approved"
	ScopeStatusRejected ScopeStatus = "rejected"
)

// Status is the credential's lifecycle state.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Token is a long-lived programmatic credential. The raw secret is never held
// here; SecretHash is its salted one-way hash.
type Token struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	OrganizationID string          `json:"organization_id"`
	Name           string          `json:"name"`
	LookupPrefix   string          `json:"prefix"`
	SecretHash     string          `json:"-"`
	ScopeType      authz.ScopeType `json:"scope_type"`
	ScopeStatus    ScopeStatus     `json:"scope_status"`
	Status         Status          `json:"status"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	LastUsedAt     *time.Time      `json:"last_used_at,omitempty"`
	LastUsedIP     string          `json:"last_used_ip,omitempty"`
	ReviewedBy     string          `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time      `json:"reviewed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `json:"-"`

	// Filled on reads that join the grant tables.
	Permissions   []authz.Permission `json:"permissions,omitempty"`
	ProjectScopes []string           `json:"project_ids,omitempty"`
}

// Usable reports whether the token may authenticate at now: active, approved,
// not soft-deleted and not expired.
func (t *Token) Usable(now time.Time) bool {
	if t.Status != StatusActive || t.ScopeStatus != ScopeStatusApproved || t.DeletedAt != nil {
		return false
	}
	return t.ExpiresAt == nil || now.Before(*t.ExpiresAt)
}
