package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"slotswap/pkg/model"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestIssueAndParse(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "slotswap", time.Hour)

	token, err := issuer.Issue(model.Principal{ID: "u1", Email: "u1@example.com", Role: "member"})
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	p, err := issuer.Parse(token)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if p.ID != "u1" || p.Email != "u1@example.com" || p.Role != "member" {
		t.Errorf("Parse() = %+v", p)
	}
}

func TestParse_Rejects(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "slotswap", time.Hour)
	valid, _ := issuer.Issue(model.Principal{ID: "u1"})

	otherKey := NewTokenIssuer("ffffffffffffffffffffffffffffffff", "slotswap", time.Hour)
	forged, _ := otherKey.Issue(model.Principal{ID: "u1"})

	otherIssuer := NewTokenIssuer(testSecret, "someone-else", time.Hour)
	foreign, _ := otherIssuer.Issue(model.Principal{ID: "u1"})

	expiredIssuer := NewTokenIssuer(testSecret, "slotswap", time.Hour)
	expiredIssuer.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	expired, _ := expiredIssuer.Issue(model.Principal{ID: "u1"})

	tests := []struct {
		name    string
		token   string
		wantErr error
	}{
		{"empty", "", ErrMissingToken},
		{"garbage", "not.a.jwt", ErrInvalidToken},
		{"wrong key", forged, ErrInvalidToken},
		{"wrong issuer", foreign, ErrInvalidToken},
		{"expired", expired, ErrInvalidToken},
		{"tampered", valid + "x", ErrInvalidToken},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := issuer.Parse(tt.token)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Parse() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestIssue_RequiresSubject(t *testing.T) {
	issuer := NewTokenIssuer(testSecret, "slotswap", time.Hour)
	if _, err := issuer.Issue(model.Principal{ID: "  "}); err == nil {
		t.Errorf("Issue() should reject an empty principal id")
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":    "abc",
		"bearer  abc ":  "abc",
		"Basic abc":     "",
		"Bearer":        "",
		"":              "",
		"abc":           "",
	}
	for header, want := range tests {
		if got := BearerToken(header); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestPrincipalContext(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Errorf("empty context should carry no principal")
	}
	ctx := WithPrincipal(context.Background(), model.Principal{ID: "u2"})
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.ID != "u2" {
		t.Errorf("PrincipalFromContext() = %+v, %v", p, ok)
	}
}
