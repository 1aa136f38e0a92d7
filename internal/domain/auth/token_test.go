package auth

import (
	"testing"
	"time"

	"nutrilens-server-go/internal/platform/errors"
)

func TestTokenRoundTrip(t *testing.T) {
	at := NewAuthToken("secret").WithTTL(time.Hour)

	token, err := at.GenerateToken("operator-1")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := at.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if claims.Subject != "operator-1" || claims.Scope != "analyze" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestVerifyRejects(t *testing.T) {
	at := NewAuthToken("secret")
	good, err := at.GenerateToken("someone")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	expired := NewAuthToken("secret").WithTTL(time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	stale, err := expired.GenerateToken("someone")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	tests := []struct {
		name  string
		token string
		at    *AuthToken
	}{
		{name: "wrong secret", token: good, at: NewAuthToken("other")},
		{name: "expired", token: stale, at: at},
		{name: "garbage", token: "not-a-jwt", at: at},
		{name: "empty", token: "", at: at},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.at.VerifyToken(tt.token)
			if !errors.IsKind(err, errors.KindValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestGenerateRequiresSecretAndSubject(t *testing.T) {
	if _, err := NewAuthToken("").GenerateToken("x"); !errors.IsKind(err, errors.KindConfig) {
		t.Fatalf("expected config error, got %v", err)
	}
	if _, err := NewAuthToken("s").GenerateToken(" "); !errors.IsKind(err, errors.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc ", "abc", true},
		{"Basic abc", "", false},
		{"Bearer", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := BearerToken(tt.header)
		if got != tt.want || ok != tt.ok {
			t.Errorf("BearerToken(%q) = %q, %v; want %q, %v", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}
