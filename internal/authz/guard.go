package authz

import (
	"context"
	"errors"
	"fmt"
)

// IssuanceResult reports which requested grants exceed the issuer's role.
type IssuanceResult struct {
	Valid   bool         `json:"valid"`
	Invalid []Permission `json:"invalid"`
}

// IssuanceGuard keeps a token from carrying more privilege than its creator.
type IssuanceGuard struct {
	members MembershipResolver
}

// NewIssuanceGuard creates a guard that reads live roles from members.
func NewIssuanceGuard(members MembershipResolver) *IssuanceGuard {
	return &IssuanceGuard{members: members}
}

// ValidateRequestedPermissions expands the issuer's organization role through
// the Role Permission Table and reports every requested pair outside it. An
// issuer without membership holds nothing, so every pair is invalid.
//
// The check runs once at issuance. Tokens keep their grants if the issuer is
// later demoted.
func (g *IssuanceGuard) ValidateRequestedPermissions(ctx context.Context, issuerUserID, organizationID string, requested []Permission) (*IssuanceResult, error) {
	role, err := g.members.MemberRole(ctx, organizationID, issuerUserID)
	if err != nil && !errors.Is(err, ErrNotMember) {
		return nil, fmt.Errorf("failed to resolve issuer role: %w", err)
	}

	allowed := PermissionsForRole(role)
	result := &IssuanceResult{Invalid: []Permission{}}
	seen := make(map[Permission]struct{}, len(requested))
	for _, p := range requested {
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		if !allowed.Has(p.Resource, p.Action) {
			result.Invalid = append(result.Invalid, p)
		}
	}
	result.Valid = len(result.Invalid) == 0
	return result, nil
}
