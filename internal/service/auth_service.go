package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/brightdesk/classportal/internal/domain"
	"github.com/brightdesk/classportal/internal/notify"
	"github.com/brightdesk/classportal/internal/ratelimit"
	"github.com/brightdesk/classportal/internal/repository"
	"github.com/brightdesk/classportal/internal/session"
	"github.com/brightdesk/classportal/pkg/config"
	"github.com/brightdesk/classportal/pkg/events"
	"github.com/brightdesk/classportal/pkg/logger"
	"golang.org/x/crypto/bcrypt"
)

type AuthService interface {
	// RequestOTP issues a sign-in code for the identifier and dispatches
	// it via email or SMS.
	RequestOTP(ctx context.Context, rawIdentifier, ip string) (*domain.OTPRequestResult, error)
	// VerifyOTP checks a code and, on success, establishes a login:
	// bearer token, session, lazily created user.
	VerifyOTP(ctx context.Context, req *domain.OTPVerify, ip, userAgent, sessionID string) (*domain.LoginResult, error)
	// Authenticate resolves the current user from an active session or a
	// Bearer credential. (nil, nil) means unauthenticated.
	Authenticate(ctx context.Context, sessionID, authorization string) (*domain.User, error)
	// Logout clears the session. Outstanding bearer tokens stay valid
	// until they expire or RevokeTokens is called.
	Logout(ctx context.Context, sessionID string) error
	RevokeTokens(ctx context.Context, userID int64) (int64, error)
}

// OTP abuse ceilings, all on 5-minute fixed windows.
const (
	otpRequestMax   = 3
	otpRequestPerIP = 10
	otpVerifyMax    = 5
	otpWindow       = 5 * time.Minute
)

type authService struct {
	userRepo   repository.UserRepository
	otpRepo    repository.OTPRepository
	tokenRepo  repository.TokenRepository
	limiter    ratelimit.Limiter
	sessions   session.Store
	dispatcher notify.Dispatcher
	invites    *InviteService
	eventBus   events.Publisher
	config     *config.Config
}

func NewAuthService(
	userRepo repository.UserRepository,
	otpRepo repository.OTPRepository,
	tokenRepo repository.TokenRepository,
	limiter ratelimit.Limiter,
	sessions session.Store,
	dispatcher notify.Dispatcher,
	invites *InviteService,
	eventBus events.Publisher,
	config *config.Config,
) AuthService {
	return &authService{
		userRepo:   userRepo,
		otpRepo:    otpRepo,
		tokenRepo:  tokenRepo,
		limiter:    limiter,
		sessions:   sessions,
		dispatcher: dispatcher,
		invites:    invites,
		eventBus:   eventBus,
		config:     config,
	}
}

func (s *authService) RequestOTP(ctx context.Context, rawIdentifier, ip string) (*domain.OTPRequestResult, error) {
	id, err := domain.ParseIdentifier(rawIdentifier)
	if err != nil {
		return nil, domain.ErrInvalidIdentifier
	}

	// The operator account is exempt from OTP rate limiting.
	if !s.isAdmin(id) {
		if !s.allow(ctx, "otp_req:"+id.Value, otpRequestMax) ||
			!s.allow(ctx, "otp_ip:"+ip, otpRequestPerIP) {
			s.publish(ctx, events.OTPDenied, events.OTPDeniedEvent{
				Identifier: id.Value,
				Reason:     "rate_limited",
				DeniedAt:   time.Now(),
			})
			return nil, domain.ErrRateLimited
		}
	}

	code, err := generateCode()
	if err != nil {
		return nil, s.fault(ctx, "Failed to generate OTP code", err)
	}

	codeHash, err := hashCode(code)
	if err != nil {
		return nil, s.fault(ctx, "Failed to hash OTP code", err)
	}

	expiresAt := time.Now().Add(s.config.Auth.OTPCodeTTL)
	record, err := s.otpRepo.Create(ctx, id.Value, codeHash, expiresAt)
	if err != nil {
		return nil, s.fault(ctx, "Failed to persist OTP code", err, "identifier", id.Value)
	}

	channel := domain.ChannelEmail
	if id.IsPhone() {
		channel = domain.ChannelSMS
	}

	var dispatchErr error
	if id.IsPhone() {
		dispatchErr = s.dispatcher.SendOTPSMS(ctx, id.Value, code)
	} else {
		dispatchErr = s.dispatcher.SendOTPEmail(ctx, id.Value, code)
	}
	if dispatchErr != nil {
		// The code stays valid; a later verify or re-request still works.
		logger.ErrorContext(ctx, "OTP dispatch failed",
			"error", dispatchErr,
			"channel", channel,
			"identifier", id.Value,
		)
		return nil, fmt.Errorf("%w: %s", domain.ErrDispatchFailed, dispatchErr)
	}

	s.publish(ctx, events.OTPRequested, events.OTPRequestedEvent{
		Identifier:  id.Value,
		Channel:     channel,
		RequestedAt: time.Now(),
	})

	message := "We sent a sign-in code to your email address."
	if channel == domain.ChannelSMS {
		message = "We sent a sign-in code to your phone."
	}

	return &domain.OTPRequestResult{
		Channel:   channel,
		Message:   message,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

func (s *authService) VerifyOTP(ctx context.Context, req *domain.OTPVerify, ip, userAgent, sessionID string) (*domain.LoginResult, error) {
	req.Normalize()

	id, err := domain.ParseIdentifier(req.Identifier)
	if err != nil {
		return nil, domain.ErrInvalidIdentifier
	}
	if req.Code == "" {
		return nil, domain.ErrInvalidOtp
	}

	// Master-code bypass for the operator account: no OTP on file, no
	// rate-limit budget consumed.
	if s.isAdmin(id) && s.config.Auth.MasterCode != "" && req.Code == s.config.Auth.MasterCode {
		return s.completeLogin(ctx, id, ip, userAgent, sessionID, "", true)
	}

	if !s.allow(ctx, "otp_verify:"+id.Value, otpVerifyMax) {
		return nil, domain.ErrRateLimited
	}

	record, err := s.otpRepo.FindActive(ctx, id.Value)
	if err != nil {
		return nil, s.fault(ctx, "Failed to load OTP code", err, "identifier", id.Value)
	}

	// Wrong, expired, used and exhausted codes all look the same to the
	// caller; only the attempt counter distinguishes them internally.
	if record == nil {
		if err := s.otpRepo.IncrementAttempts(ctx, id.Value); err != nil {
			logger.WarnContext(ctx, "Failed to increment OTP attempts", "error", err)
		}
		return nil, domain.ErrInvalidOtp
	}

	if !checkCode(record.CodeHash, req.Code) {
		if err := s.otpRepo.IncrementAttempts(ctx, id.Value); err != nil {
			logger.WarnContext(ctx, "Failed to increment OTP attempts", "error", err)
		}
		return nil, domain.ErrInvalidOtp
	}

	if err := s.otpRepo.MarkUsed(ctx, record.ID); err != nil {
		return nil, s.fault(ctx, "Failed to consume OTP code", err, "otp_id", record.ID)
	}

	inviteRole := s.redeemInvite(ctx, req.Invite, id)

	return s.completeLogin(ctx, id, ip, userAgent, sessionID, inviteRole, false)
}

func (s *authService) completeLogin(ctx context.Context, id domain.Identifier, ip, userAgent, sessionID, inviteRole string, masterBypass bool) (*domain.LoginResult, error) {
	user, err := s.userRepo.FindByIdentifier(ctx, id.Value)
	if err != nil {
		return nil, s.fault(ctx, "Failed to look up user", err, "identifier", id.Value)
	}

	if user == nil {
		role := domain.RolePageAdmin
		switch {
		case s.isAdmin(id):
			role = domain.RoleSystemAdmin
		case inviteRole != "":
			role = inviteRole
		}

		user, err = s.userRepo.Create(ctx, id.Value, "", role)
		if err != nil {
			return nil, s.fault(ctx, "Failed to create user", err, "identifier", id.Value)
		}

		s.publish(ctx, events.UserCreated, events.UserCreatedEvent{
			UserID:     user.ID,
			Identifier: user.Identifier,
			Role:       user.Role,
			CreatedAt:  user.CreatedAt,
		})
	}

	// A deactivated account fails the same way a bad code does.
	if !user.IsActive() {
		return nil, domain.ErrInvalidOtp
	}

	rawToken, tokenHash, err := newBearerToken()
	if err != nil {
		return nil, s.fault(ctx, "Failed to generate bearer token", err)
	}

	expiresAt := time.Now().Add(s.config.Auth.TokenTTL)
	token, err := s.tokenRepo.Create(ctx, user.ID, tokenHash, ip, userAgent, expiresAt)
	if err != nil {
		return nil, s.fault(ctx, "Failed to persist bearer token", err, "user_id", user.ID)
	}

	if err := s.userRepo.TouchLastLogin(ctx, user.ID); err != nil {
		logger.WarnContext(ctx, "Failed to update last login", "error", err, "user_id", user.ID)
	}
	now := time.Now()
	user.LastLoginAt = &now

	if sessionID != "" {
		if err := s.sessions.Put(ctx, sessionID, &session.Data{
			UserID:     user.ID,
			Identifier: user.Identifier,
			Role:       user.Role,
		}); err != nil {
			// The bearer token alone is enough to stay signed in.
			logger.WarnContext(ctx, "Failed to establish session", "error", err, "user_id", user.ID)
		}
	}

	s.publish(ctx, events.LoginSucceeded, events.LoginSucceededEvent{
		UserID:       user.ID,
		Identifier:   user.Identifier,
		Role:         user.Role,
		IP:           ip,
		MasterBypass: masterBypass,
		LoginAt:      now,
	})

	return &domain.LoginResult{
		Token:     rawToken,
		ExpiresAt: token.ExpiresAt,
		User:      user.ToUserInfo(),
	}, nil
}

func (s *authService) Authenticate(ctx context.Context, sessionID, authorization string) (*domain.User, error) {
	if sessionID != "" {
		data, err := s.sessions.Get(ctx, sessionID)
		if err != nil {
			logger.WarnContext(ctx, "Session lookup failed", "error", err)
		} else if data != nil {
			user, err := s.userRepo.FindByID(ctx, data.UserID)
			if err != nil {
				return nil, s.fault(ctx, "Failed to load session user", err, "user_id", data.UserID)
			}
			if user != nil && user.IsActive() {
				return user, nil
			}
		}
	}

	raw := parseBearer(authorization)
	if raw == "" {
		return nil, nil
	}

	token, err := s.tokenRepo.FindByHash(ctx, hashToken(raw))
	if err != nil {
		return nil, s.fault(ctx, "Failed to look up bearer token", err)
	}
	if token == nil {
		return nil, nil
	}

	user, err := s.userRepo.FindByID(ctx, token.UserID)
	if err != nil {
		return nil, s.fault(ctx, "Failed to load token user", err, "user_id", token.UserID)
	}
	if user == nil || !user.IsActive() {
		return nil, nil
	}

	if err := s.tokenRepo.Touch(ctx, token.ID); err != nil {
		logger.WarnContext(ctx, "Failed to touch bearer token", "error", err, "token_id", token.ID)
	}

	// Re-establish the session for subsequent same-browser requests.
	// This does not extend the token's expiry.
	if sessionID != "" {
		if err := s.sessions.Put(ctx, sessionID, &session.Data{
			UserID:     user.ID,
			Identifier: user.Identifier,
			Role:       user.Role,
		}); err != nil {
			logger.WarnContext(ctx, "Failed to re-establish session", "error", err, "user_id", user.ID)
		}
	}

	return user, nil
}

func (s *authService) Logout(ctx context.Context, sessionID string) error {
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return s.fault(ctx, "Failed to clear session", err)
	}
	return nil
}

func (s *authService) RevokeTokens(ctx context.Context, userID int64) (int64, error) {
	revoked, err := s.tokenRepo.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, s.fault(ctx, "Failed to revoke tokens", err, "user_id", userID)
	}

	s.publish(ctx, events.TokensRevoked, events.TokensRevokedEvent{
		UserID:    userID,
		Revoked:   revoked,
		RevokedAt: time.Now(),
	})

	return revoked, nil
}

// Helper methods

func (s *authService) isAdmin(id domain.Identifier) bool {
	return id.MatchesAdmin(s.config.Auth.AdminEmail, s.config.Auth.AdminPhone)
}

// allow checks one rate-limit window, failing open when the limiter
// itself is unavailable.
func (s *authService) allow(ctx context.Context, key string, max int) bool {
	ok, err := s.limiter.Check(ctx, key, max, otpWindow)
	if err != nil {
		logger.WarnContext(ctx, "Rate limit check failed", "error", err)
		return true
	}
	return ok
}

func (s *authService) redeemInvite(ctx context.Context, token string, id domain.Identifier) string {
	if token == "" || s.invites == nil {
		return ""
	}

	claims, err := s.invites.Parse(token)
	if err != nil {
		logger.WarnContext(ctx, "Rejected invite token", "error", err, "identifier", id.Value)
		return ""
	}
	if claims.Identifier != id.Value {
		logger.WarnContext(ctx, "Invite token identifier mismatch", "identifier", id.Value)
		return ""
	}
	return claims.Role
}

// fault logs an unexpected collaborator failure with full context and
// collapses it into the generic internal error.
func (s *authService) fault(ctx context.Context, msg string, err error, args ...any) error {
	logger.ErrorContext(ctx, msg, append([]any{"error", err}, args...)...)
	return domain.ErrInternal
}

func (s *authService) publish(ctx context.Context, subject string, payload interface{}) {
	if s.eventBus == nil {
		return
	}
	if err := s.eventBus.Publish(ctx, subject, payload); err != nil {
		logger.WarnContext(ctx, "Failed to publish event", "error", err, "subject", subject)
	}
}

func parseBearer(authorization string) string {
	if !strings.HasPrefix(authorization, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authorization, "Bearer "))
}

// generateCode draws a 6-digit zero-padded code from crypto/rand.
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// newBearerToken returns a 256-bit random token and its sha256 hex.
// Only the hash ever reaches storage.
func newBearerToken() (raw, hash string, err error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(buf)
	return raw, hashToken(raw), nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func hashCode(code string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func checkCode(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
