package authz

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain errors. Every Forbidden variant wraps ErrForbidden so transport code
// can map the whole family to a single status without inspecting the reason.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotMember       = errors.New("not a member of organization")

	ErrOrganizationMismatch = fmt.Errorf("%w: organization mismatch", ErrForbidden)
	ErrProjectScope         = fmt.Errorf("%w: project outside token scope", ErrForbidden)
	ErrPermission           = fmt.Errorf("%w: missing permission", ErrForbidden)
	ErrRoleThreshold        = fmt.Errorf("%w: role below required minimum", ErrForbidden)

	ErrInvalidPermission = errors.New("invalid permission")
)

// DenyReason returns the short code for a Forbidden error, or "" when err is
// not one of the Forbidden variants.
func DenyReason(err error) string {
	switch {
	case errors.Is(err, ErrOrganizationMismatch):
		return "organization_mismatch"
	case errors.Is(err, ErrProjectScope):
		return "project_scope"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrRoleThreshold):
		return "role_threshold"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	}
	return ""
}

// Resource names a class of domain object a permission applies to.
type Resource string

const (
	ResourceOrganization Resource = "organization"
	ResourceProject      Resource = "project"
	ResourceMember       Resource = "member"
	ResourceTestCase     Resource = "testCase"
	ResourceTestSuite    Resource = "testSuite"
	ResourceTestPlan     Resource = "testPlan"
	ResourceTestRun      Resource = "testRun"
	ResourceCycle        Resource = "cycle"
	ResourceDefect       Resource = "defect"
	ResourceComment      Resource = "comment"
	ResourceAttachment   Resource = "attachment"
	ResourceRequirement  Resource = "requirement"
	ResourceReport       Resource = "report"
)

// Resources lists every known resource.
var Resources = []Resource{
	ResourceOrganization,
	ResourceProject,
	ResourceMember,
	ResourceTestCase,
	ResourceTestSuite,
	ResourceTestPlan,
	ResourceTestRun,
	ResourceCycle,
	ResourceDefect,
	ResourceComment,
	ResourceAttachment,
	ResourceRequirement,
	ResourceReport,
}

// Action is an operation on a resource.
type Action string

const (
	ActionRead   Action = "read"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Permission is a single (resource, action) grant.
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

func (p Permission) String() string {
	return string(p.Resource) + ":" + string(p.Action)
}

// ParsePermission parses the "resource:action" form.
func ParsePermission(s string) (Permission, error) {
	res, act, ok := strings.Cut(s, ":")
	if !ok || res == "" || act == "" {
		return Permission{}, fmt.Errorf("%w: %q", ErrInvalidPermission, s)
	}
	return Permission{Resource: Resource(res), Action: Action(act)}, nil
}

// PermissionSet maps a resource to the actions allowed on it.
type PermissionSet map[Resource]map[Action]struct{}

// NewPermissionSet builds a set from individual grants.
func NewPermissionSet(perms ...Permission) PermissionSet {
	s := make(PermissionSet)
	for _, p := range perms {
		s.Add(p)
	}
	return s
}

// Add inserts a grant.
func (s PermissionSet) Add(p Permission) {
	actions, ok := s[p.Resource]
	if !ok {
		actions = make(map[Action]struct{})
		s[p.Resource] = actions
	}
	actions[p.Action] = struct{}{}
}

// Has reports whether the set grants action on resource. A missing resource
// key grants nothing.
func (s PermissionSet) Has(resource Resource, action Action) bool {
	actions, ok := s[resource]
	if !ok {
		return false
	}
	_, ok = actions[action]
	return ok
}

// List returns the grants sorted by resource then action.
func (s PermissionSet) List() []Permission {
	out := make([]Permission, 0, len(s))
	for res, actions := range s {
		for act := range actions {
			out = append(out, Permission{Resource: res, Action: act})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Resource != out[j].Resource {
			return out[i].Resource < out[j].Resource
		}
		return out[i].Action < out[j].Action
	})
	return out
}

// ScopeType is the breadth a token was issued for.
type ScopeType string

const (
	ScopePersonal     ScopeType = "personal"
	ScopeTeam         ScopeType = "team"
	ScopeOrganization ScopeType = "organization"
)

// Valid reports whether t is a known scope type.
func (t ScopeType) Valid() bool {
	switch t {
	case ScopePersonal, ScopeTeam, ScopeOrganization:
		return true
	}
	return false
}

// ActorKind distinguishes interactive sessions from API tokens.
type ActorKind string

const (
	ActorSession ActorKind = "session"
	ActorToken   ActorKind = "token"
)

// Actor is the identity resolved for a single request. It is rebuilt on every
// request and never persisted.
type Actor struct {
	Kind           ActorKind
	UserID         string
	OrganizationID string // empty for a session without a resolved organization

	// Session actors only. Opaque to authorization.
	SessionHandle string

	// Token actors only.
	TokenID     string
	ScopeType   ScopeType
	Permissions PermissionSet
	// ProjectScopes is nil when the token is unrestricted. A non-nil empty
	// slice allows no project at all.
	ProjectScopes []string
}

// IsToken reports whether the actor authenticated with an API token.
func (a *Actor) IsToken() bool {
	return a != nil && a.Kind == ActorToken
}

// Target identifies where the resource a route acts on lives.
type Target struct {
	OrganizationID string
	ProjectID      string
}

// Requirement is what a route needs from the actor. Tokens are checked against
// Resource/Action, sessions against MinRole.
type Requirement struct {
	Resource Resource
	Action   Action
	MinRole  Role
}

func (r Requirement) Permission() Permission {
	return Permission{Resource: r.Resource, Action: r.Action}
}
