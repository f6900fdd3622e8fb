package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/brightdesk/classportal/internal/domain"
	"github.com/brightdesk/classportal/internal/http/response"
)

// RequestOTP handles POST /auth/otp/request
func (h *Handlers) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}
	req.Normalize()

	result, err := h.authService.RequestOTP(r.Context(), req.Identifier, getClientIP(r))
	if err != nil {
		writeAuthError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

// VerifyOTP handles POST /auth/otp/verify
func (h *Handlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req domain.OTPVerify
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid JSON format")
		return
	}

	sid := h.ensureSessionID(w, r)

	result, err := h.authService.VerifyOTP(r.Context(), &req, getClientIP(r), r.UserAgent(), sid)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	response.WriteJSON(w, http.StatusOK, result)
}

// Me handles GET /auth/me
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.Authenticate(r.Context(), sessionID(r), r.Header.Get("Authorization"))
	if err != nil {
		response.InternalError(w, "Something went wrong. Please try again.")
		return
	}
	if user == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	response.WriteJSON(w, http.StatusOK, user.ToUserInfo())
}

// Logout handles POST /auth/logout. Only the session is cleared; bearer
// tokens issued earlier stay valid until expiry or revocation.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context(), sessionID(r)); err != nil {
		response.InternalError(w, "Something went wrong. Please try again.")
		return
	}
	clearSessionCookie(w)

	response.WriteJSON(w, http.StatusOK, map[string]string{
		"message": "Signed out",
	})
}

// RevokeTokens handles POST /auth/revoke — revokes every bearer token of
// the signed-in user.
func (h *Handlers) RevokeTokens(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)
	if user == nil {
		response.Unauthorized(w, "Authentication required")
		return
	}

	revoked, err := h.authService.RevokeTokens(r.Context(), user.ID)
	if err != nil {
		response.InternalError(w, "Something went wrong. Please try again.")
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]int64{
		"revoked": revoked,
	})
}
