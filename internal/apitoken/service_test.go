package apitoken

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/opentrusty/qaguard/internal/audit"
	"github.com/opentrusty/qaguard/internal/authz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sessionActor(userID string) *authz.Actor {
	return &authz.Actor{Kind: authz.ActorSession, UserID: userID, SessionHandle: "sess-" + userID}
}

func perm(res authz.Resource, act authz.Action) authz.Permission {
	return authz.Permission{Resource: res, Action: act}
}

type serviceFixture struct {
	creds   *mockCredentialStore
	members *mockMembers
	audit   *captureAudit
	service *Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		creds:   new(mockCredentialStore),
		members: new(mockMembers),
		audit:   &captureAudit{},
	}
	f.service = NewService(f.creds, f.members, testProjects(), NewCodec("qag"), testHasher(), f.audit)
	f.service.now = func() time.Time { return testNow }
	return f
}

func (f *serviceFixture) role(orgID, userID string, role authz.Role) {
	f.members.On("MemberRole", mock.Anything, orgID, userID).Return(role, nil)
}

func (f *serviceFixture) notMember(orgID, userID string) {
	f.members.On("MemberRole", mock.Anything, orgID, userID).Return(authz.Role(""), authz.ErrNotMember)
}

func TestService_CreatePersonalTokenIsApproved(t *testing.T) {
	f := newServiceFixture()
	f.role("org-1", "alice", authz.RoleMember)
	f.creds.On("Create", mock.Anything, mock.AnythingOfType("*apitoken.Token"),
		[]authz.Permission{perm(authz.ResourceTestCase, authz.ActionRead), perm(authz.ResourceTestCase, authz.ActionCreate)},
		[]string{"p1"}).Return(nil)

	issued, err := f.service.Create(context.Background(), sessionActor("alice"), CreateRequest{
		OrganizationID: "org-1",
		Name:           " ci runner ",
		ScopeType:      authz.ScopePersonal,
		Permissions: []authz.Permission{
			perm(authz.ResourceTestCase, authz.ActionRead),
			perm(authz.ResourceTestCase, authz.ActionCreate),
			perm(authz.ResourceTestCase, authz.ActionRead),
		},
		ProjectIDs: []string{"p1", "p1"},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(issued.Secret, "qag_v1_"))
	assert.Equal(t, "ci runner", issued.Token.Name)
	assert.Equal(t, ScopeStatusApproved, issued.Token.ScopeStatus)
	assert.Equal(t, StatusActive, issued.Token.Status)
	assert.Equal(t, issued.Secret[7:7+lookupPrefixLen], issued.Token.LookupPrefix)
	assert.NotContains(t, issued.Token.SecretHash, issued.Secret)

	ok, err := testHasher().Verify(issued.Secret, issued.Token.SecretHash)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, []string{audit.TypeTokenIssued}, f.audit.types())
	f.creds.AssertExpectations(t)
}

func TestService_CreateOrganizationTokenIsPending(t *testing.T) {
	f := newServiceFixture()
	f.role("org-1", "alice", authz.RoleAdmin)
	f.creds.On("Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	issued, err := f.service.Create(context.Background(), sessionActor("alice"), CreateRequest{
		OrganizationID: "org-1",
		Name:           "nightly export",
		ScopeType:      authz.ScopeOrganization,
		Permissions:    []authz.Permission{perm(authz.ResourceReport, authz.ActionRead)},
	})
	require.NoError(t, err)
	assert.Equal(t, ScopeStatusPending, issued.Token.ScopeStatus)
	assert.Nil(t, issued.Token.ProjectScopes)
}

// TestPurpose: Validates that a token can never be issued with more privilege than the issuer's role grants.
// Scope: Unit Test
// Security: Privilege escalation prevention
// Expected: A member requesting cycle:delete is refused with the offending pair listed; nothing is stored.
// Test Case ID: TOK-06
func TestService_CreateRejectsEscalation(t *testing.T) {
	f := newServiceFixture()
	f.role("org-1", "alice", authz.RoleMember)

	_, err := f.service.Create(context.Background(), sessionActor("alice"), CreateRequest{
		OrganizationID: "org-1",
		Name:           "cleanup",
		ScopeType:      authz.ScopePersonal,
		Permissions: []authz.Permission{
			perm(authz.ResourceCycle, authz.ActionRead),
			perm(authz.ResourceCycle, authz.ActionDelete),
		},
	})

	require.ErrorIs(t, err, ErrPermissionEscalation)
	var esc *EscalationError
	require.True(t, errors.As(err, &esc))
	assert.Equal(t, []authz.Permission{perm(authz.ResourceCycle, authz.ActionDelete)}, esc.Invalid)
	assert.Contains(t, err.Error(), "cycle:delete")
	f.creds.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.audit.types())
}

func TestService_CreateRefusals(t *testing.T) {
	past := testNow.Add(-time.Hour)
	valid := []authz.Permission{perm(authz.ResourceTestCase, authz.ActionRead)}

	tests := []struct {
		name    string
		actor   *authz.Actor
		req     CreateRequest
		wantErr error
	}{
		{
			name:    "no actor",
			req:     CreateRequest{OrganizationID: "org-1", Name: "x", ScopeType: authz.ScopePersonal, Permissions: valid},
			wantErr: authz.ErrUnauthenticated,
		},
		{
			name:    "token cannot mint tokens",
			actor:   &authz.Actor{Kind: authz.ActorToken, UserID: "alice", TokenID: "tok-1"},
			req:     CreateRequest{OrganizationID: "org-1", Name: "x", ScopeType: authz.ScopePersonal, Permissions: valid},
			wantErr: authz.ErrPermission,
		},
		{
			name:    "not a member",
			actor:   sessionActor("mallory"),
			req:     CreateRequest{OrganizationID: "org-1", Name: "x", ScopeType: authz.ScopePersonal, Permissions: valid},
			wantErr: authz.ErrOrganizationMismatch,
		},
		{
			name:    "empty name",
			actor:   sessionActor("alice"),
			req:     CreateRequest{OrganizationID: "org-1", Name: "  ", ScopeType: authz.ScopePersonal, Permissions: valid},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "name too long",
			actor:   sessionActor("alice"),
			req:     CreateRequest{OrganizationID: "org-1", Name: strings.Repeat("n", 101), ScopeType: authz.ScopePersonal, Permissions: valid},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "unknown scope",
			actor:   sessionActor("alice"),
			req:     CreateRequest{OrganizationID: "org-1", Name: "x", ScopeType: "global", Permissions: valid},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "no permissions",
			actor:   sessionActor("alice"),
			req:     CreateRequest{OrganizationID: "org-1", Name: "x", ScopeType: authz.ScopePersonal},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "explicit empty project list",
			actor:   sessionActor("alice"),
			req:     CreateRequest{OrganizationID: "org-1", Name: "x", ScopeType: authz.ScopePersonal, Permissions: valid, ProjectIDs: []string{}},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "team without projects",
			actor:   sessionActor("alice"),
			req:     CreateRequest{OrganizationID: "org-1", Name: "x", ScopeType: authz.ScopeTeam, Permissions: valid},
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "expiry in the past",
			actor:   sessionActor("alice"),
			req:     CreateRequest{OrganizationID: "org-1", Name: "x", ScopeType: authz.ScopePersonal, Permissions: valid, ExpiresAt: &past},
			wantErr: ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			f.role("org-1", "alice", authz.RoleOwner)
			f.notMember("org-1", "mallory")

			_, err := f.service.Create(context.Background(), tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.wantErr)
			f.creds.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

// TestPurpose: Validates that a token's project scope may only name projects of the token's organization.
// Scope: Unit Test
// Security: Tenant isolation of project scopes
// Expected: Unknown and foreign project ids are refused as invalid requests before the issuance guard; storage errors are not reported as invalid input; nothing is stored.
// Test Case ID: TOK-09
func TestService_CreateChecksProjects(t *testing.T) {
	valid := []authz.Permission{perm(authz.ResourceTestCase, authz.ActionRead)}

	tests := []struct {
		name        string
		projectIDs  []string
		wantInvalid bool
	}{
		{name: "unknown project", projectIDs: []string{"p1", "p404"}, wantInvalid: true},
		{name: "project of another organization", projectIDs: []string{"px"}, wantInvalid: true},
		{name: "lookup failure", projectIDs: []string{"broken"}, wantInvalid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			f.role("org-1", "alice", authz.RoleOwner)

			_, err := f.service.Create(context.Background(), sessionActor("alice"), CreateRequest{
				OrganizationID: "org-1",
				Name:           "scoped",
				ScopeType:      authz.ScopeTeam,
				Permissions:    valid,
				ProjectIDs:     tt.projectIDs,
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantInvalid, errors.Is(err, ErrInvalidRequest), err.Error())
			f.creds.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			assert.Empty(t, f.audit.types())
		})
	}
}

func pendingOrgToken() *Token {
	return &Token{
		ID:             "tok-9",
		UserID:         "bob",
		OrganizationID: "org-1",
		ScopeType:      authz.ScopeOrganization,
		ScopeStatus:    ScopeStatusPending,
		Status:         StatusActive,
	}
}

func TestService_ApproveAndReject(t *testing.T) {
	tests := []struct {
		name      string
		call      func(*Service, context.Context, *authz.Actor, string, string) (*Token, error)
		to        ScopeStatus
		eventType string
	}{
		{"approve", (*Service).Approve, ScopeStatusApproved, audit.TypeTokenApproved},
		{"reject", (*Service).Reject, ScopeStatusRejected, audit.TypeTokenRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newServiceFixture()
			f.role("org-1", "admin-1", authz.RoleAdmin)
			f.creds.On("GetByID", mock.Anything, "tok-9").Return(pendingOrgToken(), nil)
			f.creds.On("UpdateScopeStatus", mock.Anything, "tok-9", ScopeStatusPending, tt.to, "admin-1", testNow).Return(nil)

			token, err := tt.call(f.service, context.Background(), sessionActor("admin-1"), "org-1", "tok-9")
			require.NoError(t, err)
			assert.Equal(t, tt.to, token.ScopeStatus)
			assert.Equal(t, "admin-1", token.ReviewedBy)
			assert.Equal(t, []string{tt.eventType}, f.audit.types())
		})
	}
}

// TestPurpose: Validates that only admins and owners review organization tokens and that the role check precedes any lookup.
// Scope: Unit Test
// Security: Authorization, enumeration resistance
// Expected: Member gets ErrRoleThreshold without a token lookup; cross-org ids read as not found; non-pending refused.
// Test Case ID: TOK-07
func TestService_ReviewRefusals(t *testing.T) {
	t.Run("member below threshold", func(t *testing.T) {
		f := newServiceFixture()
		f.role("org-1", "carol", authz.RoleMember)

		_, err := f.service.Approve(context.Background(), sessionActor("carol"), "org-1", "tok-9")
		assert.ErrorIs(t, err, authz.ErrRoleThreshold)
		assert.ErrorIs(t, err, authz.ErrForbidden)
		f.creds.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
	})

	t.Run("token from another organization", func(t *testing.T) {
		f := newServiceFixture()
		f.role("org-2", "admin-2", authz.RoleOwner)
		f.creds.On("GetByID", mock.Anything, "tok-9").Return(pendingOrgToken(), nil)

		_, err := f.service.Approve(context.Background(), sessionActor("admin-2"), "org-2", "tok-9")
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})

	t.Run("already approved", func(t *testing.T) {
		f := newServiceFixture()
		f.role("org-1", "admin-1", authz.RoleAdmin)
		tok := pendingOrgToken()
		tok.ScopeStatus = ScopeStatusApproved
		f.creds.On("GetByID", mock.Anything, "tok-9").Return(tok, nil)

		_, err := f.service.Reject(context.Background(), sessionActor("admin-1"), "org-1", "tok-9")
		assert.ErrorIs(t, err, ErrNotPending)
		f.creds.AssertNotCalled(t, "UpdateScopeStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("personal token has no review", func(t *testing.T) {
		f := newServiceFixture()
		f.role("org-1", "admin-1", authz.RoleAdmin)
		tok := pendingOrgToken()
		tok.ScopeType = authz.ScopePersonal
		f.creds.On("GetByID", mock.Anything, "tok-9").Return(tok, nil)

		_, err := f.service.Approve(context.Background(), sessionActor("admin-1"), "org-1", "tok-9")
		assert.ErrorIs(t, err, ErrNotPending)
	})
}

func TestService_Revoke(t *testing.T) {
	t.Run("owner revokes", func(t *testing.T) {
		f := newServiceFixture()
		tok := pendingOrgToken()
		f.creds.On("GetByID", mock.Anything, "tok-9").Return(tok, nil)
		f.creds.On("Revoke", mock.Anything, "tok-9", testNow).Return(nil)

		require.NoError(t, f.service.Revoke(context.Background(), sessionActor("bob"), "tok-9"))
		assert.Equal(t, []string{audit.TypeTokenRevoked}, f.audit.types())
	})

	t.Run("other user sees not found", func(t *testing.T) {
		f := newServiceFixture()
		f.creds.On("GetByID", mock.Anything, "tok-9").Return(pendingOrgToken(), nil)

		err := f.service.Revoke(context.Background(), sessionActor("eve"), "tok-9")
		assert.ErrorIs(t, err, ErrTokenNotFound)
		f.creds.AssertNotCalled(t, "Revoke", mock.Anything, mock.Anything, mock.Anything)
	})
}

// TestPurpose: Validates the full token lifecycle against stateful storage.
// Scope: Integration Test (in-memory store)
// Security: Lifecycle enforcement
// Expected: Personal tokens validate until revoked; organization tokens fail until approved.
// Test Case ID: TOK-08
func TestLifecycle(t *testing.T) {
	store := newMemStore()
	members := new(mockMembers)
	members.On("MemberRole", mock.Anything, "org-1", "alice").Return(authz.RoleMember, nil)
	members.On("MemberRole", mock.Anything, "org-1", "root").Return(authz.RoleOwner, nil)

	codec := NewCodec("qag")
	hasher := testHasher()
	svc := NewService(store, members, testProjects(), codec, hasher, &captureAudit{})
	validator := NewValidator(codec, store, store, hasher, &syncSubmitter{})
	ctx := context.Background()

	t.Run("personal token until revoked", func(t *testing.T) {
		issued, err := svc.Create(ctx, sessionActor("alice"), CreateRequest{
			OrganizationID: "org-1",
			Name:           "laptop",
			ScopeType:      authz.ScopePersonal,
			Permissions:    []authz.Permission{perm(authz.ResourceTestCase, authz.ActionRead)},
		})
		require.NoError(t, err)

		actor, err := validator.Validate(ctx, issued.Secret, ClientInfo{IPAddress: "192.0.2.1"})
		require.NoError(t, err)
		assert.True(t, actor.Permissions.Has(authz.ResourceTestCase, authz.ActionRead))
		assert.Nil(t, actor.ProjectScopes)

		stored, err := store.GetByID(ctx, issued.Token.ID)
		require.NoError(t, err)
		assert.Equal(t, "192.0.2.1", stored.LastUsedIP)

		require.NoError(t, svc.Revoke(ctx, sessionActor("alice"), issued.Token.ID))
		_, err = validator.Validate(ctx, issued.Secret, ClientInfo{})
		assert.ErrorIs(t, err, authz.ErrUnauthenticated)
	})

	t.Run("organization token after approval", func(t *testing.T) {
		issued, err := svc.Create(ctx, sessionActor("root"), CreateRequest{
			OrganizationID: "org-1",
			Name:           "reporting",
			ScopeType:      authz.ScopeOrganization,
			Permissions:    []authz.Permission{perm(authz.ResourceReport, authz.ActionRead)},
		})
		require.NoError(t, err)

		_, err = validator.Validate(ctx, issued.Secret, ClientInfo{})
		assert.ErrorIs(t, err, authz.ErrUnauthenticated)

		pending, err := svc.ListPending(ctx, sessionActor("root"), "org-1")
		require.NoError(t, err)
		require.Len(t, pending, 1)

		_, err = svc.Approve(ctx, sessionActor("root"), "org-1", issued.Token.ID)
		require.NoError(t, err)

		actor, err := validator.Validate(ctx, issued.Secret, ClientInfo{})
		require.NoError(t, err)
		assert.Equal(t, authz.ScopeOrganization, actor.ScopeType)
	})
}
