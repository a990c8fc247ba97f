package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/opentrusty/qaguard/internal/authz"
	"github.com/opentrusty/qaguard/internal/organization"
)

// MemberRoleRequest carries a role change
type MemberRoleRequest struct {
	Role string `json:"role" binding:"required" example:"member"`
}

// AddMemberRequest represents membership creation data
type AddMemberRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Role   string `json:"role" binding:"required" example:"viewer"`
}

// ListMembers lists an organization's members
// @Summary List Members
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Security CookieAuth
// @Param orgID path string true "Organization ID"
// @Success 200 {array} organization.Member
// @Failure 403 {object} map[string]string
// @Router /organizations/{orgID}/members [get]
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if _, ok := h.authorizeOrganization(w, r, orgID, authz.Requirement{
		Resource: authz.ResourceMember, Action: authz.ActionRead, MinRole: authz.RoleViewer,
	}); !ok {
		return
	}

	members, err := h.orgService.ListMembers(r.Context(), orgID)
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(members))
}

// AddMember adds a user to an organization
// @Summary Add Member
// @Description Admins add members; only owners add owners
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Security CookieAuth
// @Param orgID path string true "Organization ID"
// @Param request body AddMemberRequest true "Member Data"
// @Success 201 {object} organization.Member
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /organizations/{orgID}/members [post]
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	actor, ok := h.authorizeOrganization(w, r, orgID, authz.Requirement{
		Resource: authz.ResourceMember, Action: authz.ActionCreate, MinRole: authz.RoleAdmin,
	})
	if !ok {
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.orgService.AddMember(r.Context(), actor.UserID, orgID, req.UserID, authz.Role(req.Role))
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

// ChangeMemberRole changes a member's role
// @Summary Change Member Role
// @Description Admins change roles; only owners grant or remove the owner role
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Security CookieAuth
// @Param orgID path string true "Organization ID"
// @Param userID path string true "User ID"
// @Param request body MemberRoleRequest true "Role"
// @Success 200 {object} organization.Member
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /organizations/{orgID}/members/{userID} [patch]
func (h *Handler) ChangeMemberRole(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	actor, ok := h.authorizeOrganization(w, r, orgID, authz.Requirement{
		Resource: authz.ResourceMember, Action: authz.ActionUpdate, MinRole: authz.RoleAdmin,
	})
	if !ok {
		return
	}

	var req MemberRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.orgService.ChangeRole(r.Context(), actor.UserID, orgID, chi.URLParam(r, "userID"), authz.Role(req.Role))
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// RemoveMember removes a member from an organization
// @Summary Remove Member
// @Tags Members
// @Security BearerAuth
// @Security CookieAuth
// @Param orgID path string true "Organization ID"
// @Param userID path string true "User ID"
// @Success 204
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /organizations/{orgID}/members/{userID} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	actor, ok := h.authorizeOrganization(w, r, orgID, authz.Requirement{
		Resource: authz.ResourceMember, Action: authz.ActionDelete, MinRole: authz.RoleAdmin,
	})
	if !ok {
		return
	}

	if err := h.orgService.RemoveMember(r.Context(), actor.UserID, orgID, chi.URLParam(r, "userID")); err != nil {
		respondAuthzError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListProjects lists an organization's projects
// @Summary List Projects
// @Tags Projects
// @Produce json
// @Security BearerAuth
// @Security CookieAuth
// @Param orgID path string true "Organization ID"
// @Success 200 {array} organization.Project
// @Failure 403 {object} map[string]string
// @Router /organizations/{orgID}/projects [get]
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	actor, ok := h.authorizeOrganization(w, r, orgID, authz.Requirement{
		Resource: authz.ResourceProject, Action: authz.ActionRead, MinRole: authz.RoleViewer,
	})
	if !ok {
		return
	}

	projects, err := h.orgService.ListProjects(r.Context(), orgID)
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}

	// Project-scoped tokens only see the projects they may act on.
	visible := make([]*organization.Project, 0, len(projects))
	for _, p := range projects {
		if !actor.IsToken() || authz.HasProjectAccess(actor, p.ID) {
			visible = append(visible, p)
		}
	}
	respondJSON(w, http.StatusOK, visible)
}
