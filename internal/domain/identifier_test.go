package domain

import (
	"errors"
	"testing"
)

func TestParseIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		want     string
		wantKind IdentifierKind
		wantErr  bool
	}{
		{name: "plain email", raw: "parent@example.com", want: "parent@example.com", wantKind: IdentifierEmail},
		{name: "email lowercased", raw: "Parent@Example.COM", want: "parent@example.com", wantKind: IdentifierEmail},
		{name: "email trimmed", raw: "  a@b.dk  ", want: "a@b.dk", wantKind: IdentifierEmail},
		{name: "email with plus tag", raw: "a+tag@b.com", want: "a+tag@b.com", wantKind: IdentifierEmail},
		{name: "bare phone", raw: "12345678", want: "12345678", wantKind: IdentifierPhone},
		{name: "formatted phone", raw: "+45 12 34 56 78", want: "4512345678", wantKind: IdentifierPhone},
		{name: "phone with dashes", raw: "123-456-7890", want: "1234567890", wantKind: IdentifierPhone},
		{name: "max length phone", raw: "123456789012345", want: "123456789012345", wantKind: IdentifierPhone},
		{name: "empty", raw: "", wantErr: true},
		{name: "whitespace only", raw: "   ", wantErr: true},
		{name: "email without tld", raw: "a@b", wantErr: true},
		{name: "email without local part", raw: "@example.com", wantErr: true},
		{name: "phone too short", raw: "1234567", wantErr: true},
		{name: "phone too long", raw: "1234567890123456", wantErr: true},
		{name: "random text", raw: "hello there", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseIdentifier(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidIdentifier) {
					t.Fatalf("ParseIdentifier(%q) err = %v, want ErrInvalidIdentifier", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseIdentifier(%q) errored: %v", tt.raw, err)
			}
			if id.Value != tt.want || id.Kind != tt.wantKind {
				t.Errorf("ParseIdentifier(%q) = {%q, %s}, want {%q, %s}", tt.raw, id.Value, id.Kind, tt.want, tt.wantKind)
			}
		})
	}
}

func TestMatchesAdmin(t *testing.T) {
	email, _ := ParseIdentifier("Admin@Example.com")
	if !email.MatchesAdmin("admin@example.com", "") {
		t.Error("case-insensitive admin email did not match")
	}
	if email.MatchesAdmin("other@example.com", "") {
		t.Error("non-admin email matched")
	}
	if email.MatchesAdmin("", "") {
		t.Error("empty admin config matched")
	}

	phone, _ := ParseIdentifier("45 12 34 56 78")
	if !phone.MatchesAdmin("", "+45 12 34 56 78") {
		t.Error("digit-normalized admin phone did not match")
	}
	if phone.MatchesAdmin("", "+45 99 99 99 99") {
		t.Error("non-admin phone matched")
	}

	// A phone identifier never matches the admin email and vice versa.
	if phone.MatchesAdmin("4512345678@example.com", "") {
		t.Error("phone identifier matched against admin email")
	}
}
