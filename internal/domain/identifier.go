package domain

import (
	"regexp"
	"strings"
)

type IdentifierKind string

const (
	IdentifierEmail IdentifierKind = "email"
	IdentifierPhone IdentifierKind = "phone"
)

// Identifier is the login handle for an account: a lowercased email
// address or a phone number normalized to bare digits. It keys OTP and
// rate-limit lookups, so normalization must happen exactly once, here.
type Identifier struct {
	Value string
	Kind  IdentifierKind
}

var (
	emailRegex  = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	nonDigitsRe = regexp.MustCompile(`\D`)
)

// ParseIdentifier validates raw input as an email address or a phone
// number. Phones are reduced to digits and must end up 8-15 digits long.
func ParseIdentifier(raw string) (Identifier, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return Identifier{}, ErrInvalidIdentifier
	}

	if emailRegex.MatchString(trimmed) {
		return Identifier{Value: strings.ToLower(trimmed), Kind: IdentifierEmail}, nil
	}

	digits := nonDigitsRe.ReplaceAllString(trimmed, "")
	if len(digits) >= 8 && len(digits) <= 15 {
		return Identifier{Value: digits, Kind: IdentifierPhone}, nil
	}

	return Identifier{}, ErrInvalidIdentifier
}

func (i Identifier) IsPhone() bool {
	return i.Kind == IdentifierPhone
}

func (i Identifier) String() string {
	return i.Value
}

// MatchesAdmin reports whether this identifier names the configured
// operator account, comparing emails case-insensitively and phones by
// their digits.
func (i Identifier) MatchesAdmin(adminEmail, adminPhone string) bool {
	switch i.Kind {
	case IdentifierEmail:
		return adminEmail != "" && strings.EqualFold(i.Value, strings.TrimSpace(adminEmail))
	case IdentifierPhone:
		return adminPhone != "" && i.Value == nonDigitsRe.ReplaceAllString(adminPhone, "")
	}
	return false
}
