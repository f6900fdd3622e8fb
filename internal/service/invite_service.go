package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/brightdesk/classportal/internal/domain"
	"github.com/brightdesk/classportal/pkg/config"
	"github.com/brightdesk/classportal/pkg/events"
	"github.com/brightdesk/classportal/pkg/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// InviteService issues signed invitation tokens that bind an identifier
// to a role. A valid invite decides the role when the invited user is
// created on first login; it grants nothing by itself.
type InviteService struct {
	secret   []byte
	ttl      time.Duration
	eventBus events.Publisher
}

type InviteClaims struct {
	Identifier string `json:"identifier"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

func NewInviteService(cfg *config.Config, eventBus events.Publisher) *InviteService {
	return &InviteService{
		secret:   []byte(cfg.Auth.InviteSecret),
		ttl:      cfg.Auth.InviteTTL,
		eventBus: eventBus,
	}
}

// Issue creates an invite for rawIdentifier with the given role.
// Only parent and page_admin are invitable; system_admin is decided by
// deployment configuration, never by a token.
func (s *InviteService) Issue(ctx context.Context, rawIdentifier, role string) (string, time.Time, error) {
	id, err := domain.ParseIdentifier(rawIdentifier)
	if err != nil {
		return "", time.Time{}, domain.ErrInvalidIdentifier
	}

	if role != domain.RoleParent && role != domain.RolePageAdmin {
		return "", time.Time{}, fmt.Errorf("role %q is not invitable", role)
	}

	now := time.Now()
	expiresAt := now.Add(s.ttl)
	claims := InviteClaims{
		Identifier: id.Value,
		Role:       role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Audience:  []string{"classportal-invite"},
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign invite: %w", err)
	}

	if s.eventBus != nil {
		if err := s.eventBus.Publish(ctx, events.InviteIssued, events.InviteIssuedEvent{
			Identifier: id.Value,
			Role:       role,
			ExpiresAt:  expiresAt,
			IssuedAt:   now,
		}); err != nil {
			logger.WarnContext(ctx, "Failed to publish invite event", "error", err)
		}
	}

	return token, expiresAt, nil
}

func (s *InviteService) Parse(token string) (*InviteClaims, error) {
	tok, err := jwt.ParseWithClaims(token, &InviteClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := tok.Claims.(*InviteClaims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid invite token")
	}
	if !domain.IsValidRole(claims.Role) {
		return nil, errors.New("invite carries unknown role")
	}
	return claims, nil
}
