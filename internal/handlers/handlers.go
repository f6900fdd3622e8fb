package handlers

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/brightdesk/classportal/internal/domain"
	"github.com/brightdesk/classportal/internal/extract"
	"github.com/brightdesk/classportal/internal/http/response"
	"github.com/brightdesk/classportal/internal/repository"
	"github.com/brightdesk/classportal/internal/service"
	"github.com/brightdesk/classportal/internal/session"
	"github.com/brightdesk/classportal/pkg/config"
	"github.com/brightdesk/classportal/pkg/logger"
)

const sessionCookie = "classportal_session"

type contextKey string

const userContextKey contextKey = "auth_user"

type Handlers struct {
	authService service.AuthService
	invites     *service.InviteService
	userRepo    repository.UserRepository
	extractor   *extract.Extractor
	config      *config.Config
}

func New(
	authService service.AuthService,
	invites *service.InviteService,
	userRepo repository.UserRepository,
	extractor *extract.Extractor,
	config *config.Config,
) *Handlers {
	return &Handlers{
		authService: authService,
		invites:     invites,
		userRepo:    userRepo,
		extractor:   extractor,
		config:      config,
	}
}

// RequireRole authenticates the request (session first, bearer token
// second) and enforces a minimum role. system_admin passes every check.
func (h *Handlers) RequireRole(role string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := h.authService.Authenticate(r.Context(), sessionID(r), r.Header.Get("Authorization"))
			if err != nil {
				response.InternalError(w, "Something went wrong. Please try again.")
				return
			}
			if user == nil {
				response.Unauthorized(w, "Authentication required")
				return
			}

			if role != "" && user.Role != role && user.Role != domain.RoleSystemAdmin {
				response.Forbidden(w, "Insufficient permissions")
				return
			}

			ctx := context.WithValue(r.Context(), logger.UserIDKey, user.ID)
			ctx = context.WithValue(ctx, userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func currentUser(r *http.Request) *domain.User {
	if user, ok := r.Context().Value(userContextKey).(*domain.User); ok {
		return user
	}
	return nil
}

// sessionID returns the request's session cookie value, if any.
func sessionID(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// ensureSessionID returns the existing session ID or mints a new one and
// sets the cookie.
func (h *Handlers) ensureSessionID(w http.ResponseWriter, r *http.Request) string {
	if sid := sessionID(r); sid != "" {
		return sid
	}

	sid := session.NewSessionID()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(h.config.Auth.SessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sid
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeAuthError maps the service error taxonomy onto HTTP responses.
// Internal detail never reaches the client.
func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidIdentifier):
		response.WriteError(w, http.StatusBadRequest,
			"Enter a valid email address or phone number.", response.CodeInvalidIdentifier)
	case errors.Is(err, domain.ErrRateLimited):
		response.RateLimit(w, "Too many attempts. Please wait a few minutes and try again.")
	case errors.Is(err, domain.ErrInvalidOtp):
		response.WriteError(w, http.StatusUnauthorized,
			"The code is invalid or has expired.", response.CodeInvalidOTP)
	case errors.Is(err, domain.ErrDispatchFailed):
		response.WriteError(w, http.StatusBadGateway,
			"We could not send the code right now. Please try again shortly.", response.CodeDispatchFailed)
	default:
		response.InternalError(w, "Something went wrong. Please try again.")
	}
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	offset = 0

	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			limit = n
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			offset = n
		}
	}

	return limit, offset
}
