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

package authz

// -----------------------------------------------------------------------------
// Organization Roles
// These are the canonical role names stored on organization memberships.
// -----------------------------------------------------------------------------

// Role is a position in an organization's fixed privilege hierarchy.
type Role string

const (
	// RoleOwner has full control over the organization, including deleting it.
	RoleOwner Role = "owner"

	// RoleAdmin manages projects, members and token approvals.
	RoleAdmin Role = "admin"

	// RoleMember authors and executes test artifacts.
	RoleMember Role = "member"

	// RoleViewer has read-only access.
	RoleViewer Role = "viewer"
)

var roleRank = map[Role]int{
	RoleViewer: 1,
	RoleMember: 2,
	RoleAdmin:  3,
	RoleOwner:  4,
}

// Rank returns the role's position in the hierarchy. Unknown roles rank 0.
func (r Role) Rank() int {
	return roleRank[r]
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// AtLeast reports whether r meets or exceeds min. An unknown role never
// satisfies a threshold, and an unknown threshold is never satisfied.
func (r Role) AtLeast(min Role) bool {
	return r.Valid() && min.Valid() && r.Rank() >= min.Rank()
}

// -----------------------------------------------------------------------------
// Role Permission Table
// Fixed mapping from role to the (resource, action) pairs it may perform.
// Token issuance is bounded by this table, so it is deliberately not
// configurable at runtime.
// -----------------------------------------------------------------------------

// authoredResources are the test artifacts members create and edit.
var authoredResources = []Resource{
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

var rolePermissions = buildRolePermissions()

func buildRolePermissions() map[Role]PermissionSet {
	viewer := NewPermissionSet()
	for _, res := range Resources {
		viewer.Add(Permission{res, ActionRead})
	}

	member := copySet(viewer)
	for _, res := range authoredResources {
		member.Add(Permission{res, ActionCreate})
		member.Add(Permission{res, ActionUpdate})
	}
	member.Add(Permission{ResourceComment, ActionDelete})
	member.Add(Permission{ResourceAttachment, ActionDelete})

	admin := copySet(member)
	for _, res := range authoredResources {
		admin.Add(Permission{res, ActionDelete})
	}
	for _, res := range []Resource{ResourceProject, ResourceMember} {
		admin.Add(Permission{res, ActionCreate})
		admin.Add(Permission{res, ActionUpdate})
		admin.Add(Permission{res, ActionDelete})
	}

	owner := copySet(admin)
	owner.Add(Permission{ResourceOrganization, ActionUpdate})
	owner.Add(Permission{ResourceOrganization, ActionDelete})

	return map[Role]PermissionSet{
		RoleViewer: viewer,
		RoleMember: member,
		RoleAdmin:  admin,
		RoleOwner:  owner,
	}
}

// PermissionsForRole returns a copy of the role's entry in the table. Unknown
// roles get an empty set.
func PermissionsForRole(role Role) PermissionSet {
	set, ok := rolePermissions[role]
	if !ok {
		return NewPermissionSet()
	}
	return copySet(set)
}

func copySet(s PermissionSet) PermissionSet {
	out := make(PermissionSet, len(s))
	for res, actions := range s {
		cp := make(map[Action]struct{}, len(actions))
		for act := range actions {
			cp[act] = struct{}{}
		}
		out[res] = cp
	}
	return out
}
