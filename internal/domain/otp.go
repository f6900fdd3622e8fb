package domain

import (
	"fmt"
	"strings"
	"time"
)

// OTPCode is one issued sign-in code. Only a bcrypt hash of the code is
// persisted; the raw code lives exactly as long as the dispatch call.
type OTPCode struct {
	ID         int64      `json:"id"`
	Identifier string     `json:"identifier"`
	CodeHash   string     `json:"-"`
	Attempts   int        `json:"attempts"`
	ExpiresAt  time.Time  `json:"expires_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

const (
	MaxOTPAttempts = 5
	OTPCodeLength  = 6
)

func (o *OTPCode) IsExpired() bool {
	return time.Now().After(o.ExpiresAt)
}

func (o *OTPCode) IsUsed() bool {
	return o.UsedAt != nil
}

func (o *OTPCode) CanAttempt() bool {
	return o.Attempts < MaxOTPAttempts && !o.IsExpired() && !o.IsUsed()
}

// AuthToken is a long-lived bearer credential. Only the sha256 of the
// raw token is persisted.
type AuthToken struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	TokenHash  string     `json:"-"`
	IP         string     `json:"ip"`
	UserAgent  string     `json:"user_agent"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  time.Time  `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
}

func (t *AuthToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// Delivery channels for OTP dispatch
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

type OTPRequest struct {
	Identifier string `json:"identifier"`
}

type OTPVerify struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
	Invite     string `json:"invite,omitempty"`
}

func (r *OTPRequest) Normalize() {
	r.Identifier = strings.TrimSpace(r.Identifier)
}

func (r *OTPVerify) Normalize() {
	r.Identifier = strings.TrimSpace(r.Identifier)
	r.Code = strings.TrimSpace(r.Code)
	r.Invite = strings.TrimSpace(r.Invite)
}

func (r *OTPVerify) Validate() error {
	if r.Identifier == "" {
		return fmt.Errorf("identifier is required")
	}
	if r.Code == "" {
		return fmt.Errorf("code is required")
	}
	return nil
}

// OTPRequestResult is what a successful code request reports back.
type OTPRequestResult struct {
	Channel   string    `json:"channel"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginResult carries the raw bearer token. It is returned exactly once
// and never persisted.
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	User      *UserInfo `json:"user"`
}
