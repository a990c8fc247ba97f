package http

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opentrusty/qaguard/internal/apitoken"
	"github.com/opentrusty/qaguard/internal/authz"
)

// CreateTokenRequest represents API token creation data
type CreateTokenRequest struct {
	Name        string   `json:"name" binding:"required" example:"ci-pipeline"`
	ScopeType   string   `json:"scope_type" binding:"required" example:"personal"`
	Permissions []string `json:"permissions" binding:"required" example:"testCase:read,testCase:create"`
	// Omit for unrestricted. An empty list is rejected.
	ProjectIDs []string   `json:"project_ids,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// CreateToken issues a new API token
// @Summary Create API Token
// @Description Issue a token for the caller. The secret is returned once. Organization-scoped tokens start pending.
// @Tags Tokens
// @Accept json
// @Produce json
// @Security CookieAuth
// @Param orgID path string true "Organization ID"
// @Param request body CreateTokenRequest true "Token Data"
// @Success 201 {object} apitoken.IssuedToken
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]any
// @Router /organizations/{orgID}/tokens [post]
func (h *Handler) CreateToken(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	perms := make([]authz.Permission, 0, len(req.Permissions))
	for _, s := range req.Permissions {
		p, err := authz.ParsePermission(s)
		if err != nil {
			respondAuthzError(w, r, err)
			return
		}
		perms = append(perms, p)
	}

	actor, _ := authz.ActorFromContext(r.Context())
	issued, err := h.tokenService.Create(r.Context(), actor, apitoken.CreateRequest{
		OrganizationID: chi.URLParam(r, "orgID"),
		Name:           req.Name,
		ScopeType:      authz.ScopeType(req.ScopeType),
		Permissions:    perms,
		ProjectIDs:     req.ProjectIDs,
		ExpiresAt:      req.ExpiresAt,
	})
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, issued)
}

// ListTokens lists the caller's tokens
// @Summary List My API Tokens
// @Tags Tokens
// @Produce json
// @Security CookieAuth
// @Param orgID path string true "Organization ID"
// @Success 200 {array} apitoken.Token
// @Failure 403 {object} map[string]string
// @Router /organizations/{orgID}/tokens [get]
func (h *Handler) ListTokens(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	tokens, err := h.tokenService.ListOwn(r.Context(), actor, chi.URLParam(r, "orgID"))
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(tokens))
}

// ListPendingTokens lists organization tokens awaiting review
// @Summary List Pending API Tokens
// @Description Admins and owners only
// @Tags Tokens
// @Produce json
// @Security CookieAuth
// @Param orgID path string true "Organization ID"
// @Success 200 {array} apitoken.Token
// @Failure 403 {object} map[string]string
// @Router /organizations/{orgID}/tokens/pending [get]
func (h *Handler) ListPendingTokens(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	tokens, err := h.tokenService.ListPending(r.Context(), actor, chi.URLParam(r, "orgID"))
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, nonNil(tokens))
}

// ApproveToken approves a pending organization token
// @Summary Approve API Token
// @Tags Tokens
// @Produce json
// @Security CookieAuth
// @Param orgID path string true "Organization ID"
// @Param tokenID path string true "Token ID"
// @Success 200 {object} apitoken.Token
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /organizations/{orgID}/tokens/{tokenID}/approve [post]
func (h *Handler) ApproveToken(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	token, err := h.tokenService.Approve(r.Context(), actor, chi.URLParam(r, "orgID"), chi.URLParam(r, "tokenID"))
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, token)
}

// RejectToken rejects a pending organization token
// @Summary Reject API Token
// @Tags Tokens
// @Produce json
// @Security CookieAuth
// @Param orgID path string true "Organization ID"
// @Param tokenID path string true "Token ID"
// @Success 200 {object} apitoken.Token
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /organizations/{orgID}/tokens/{tokenID}/reject [post]
func (h *Handler) RejectToken(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	token, err := h.tokenService.Reject(r.Context(), actor, chi.URLParam(r, "orgID"), chi.URLParam(r, "tokenID"))
	if err != nil {
		respondAuthzError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, token)
}

// RevokeToken revokes one of the caller's tokens
// @Summary Revoke API Token
// @Tags Tokens
// @Security CookieAuth
// @Param tokenID path string true "Token ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /tokens/{tokenID} [delete]
func (h *Handler) RevokeToken(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	if err := h.tokenService.Revoke(r.Context(), actor, chi.URLParam(r, "tokenID")); err != nil {
		respondAuthzError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
