package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/brightdesk/classportal/internal/domain"
	"github.com/brightdesk/classportal/internal/http/response"
	"github.com/go-chi/chi/v5"
)

// ListUsers handles GET /admin/users
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)

	users, err := h.userRepo.List(r.Context(), limit, offset)
	if err != nil {
		response.InternalError(w, "Failed to list users")
		return
	}

	infos := make([]*domain.UserInfo, len(users))
	for i := range users {
		infos[i] = users[i].ToUserInfo()
	}

	response.WriteJSON(w, http.StatusOK, infos)
}

// GetUser handles GET /admin/users/{id}
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	user, err := h.userRepo.FindByID(r.Context(), id)
	if err != nil {
		response.InternalError(w, "Failed to load user")
		return
	}
	if user == nil {
		response.NotFound(w, "User not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, user.ToUserInfo())
}

// UpdateUser handles PATCH /admin/users/{id} (name, role, status)
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	var req domain.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	user, err := h.userRepo.Update(r.Context(), id, &req)
	if err != nil {
		response.InternalError(w, "Failed to update user")
		return
	}
	if user == nil {
		response.NotFound(w, "User not found")
		return
	}

	response.WriteJSON(w, http.StatusOK, user.ToUserInfo())
}

// RevokeUserTokens handles POST /admin/users/{id}/revoke
func (h *Handlers) RevokeUserTokens(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		response.BadRequest(w, "Invalid user ID")
		return
	}

	revoked, err := h.authService.RevokeTokens(r.Context(), id)
	if err != nil {
		response.InternalError(w, "Failed to revoke tokens")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]int64{
		"revoked": revoked,
	})
}

type createInviteRequest struct {
	Identifier string `json:"identifier"`
	Role       string `json:"role"`
}

type createInviteResponse struct {
	Invite    string    `json:"invite"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CreateInvite handles POST /admin/invites
func (h *Handlers) CreateInvite(w http.ResponseWriter, r *http.Request) {
	var req createInviteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	token, expiresAt, err := h.invites.Issue(r.Context(), req.Identifier, req.Role)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusCreated, createInviteResponse{
		Invite:    token,
		ExpiresAt: expiresAt,
	})
}
