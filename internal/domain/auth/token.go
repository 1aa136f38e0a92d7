// Package auth issues and verifies the bearer tokens that guard the analyze API.
package auth

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"nutrilens-server-go/internal/platform/errors"
)

const (
	issuer     = "nutrilens"
	defaultTTL = 24 * time.Hour
)

// Claims carries the caller identity in the standard subject claim.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// AuthToken signs and verifies HS256 tokens.
type AuthToken struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewAuthToken(secretKey string) *AuthToken {
	return &AuthToken{
		secretKey: []byte(secretKey),
		ttl:       defaultTTL,
		now:       time.Now,
	}
}

// WithTTL sets the lifetime of issued tokens. Non-positive values are ignored.
func (at *AuthToken) WithTTL(ttl time.Duration) *AuthToken {
	if ttl > 0 {
		at.ttl = ttl
	}
	return at
}

// GenerateToken issues a token for subject.
func (at *AuthToken) GenerateToken(subject string) (string, error) {
	if at == nil || len(at.secretKey) == 0 {
		return "", errors.New(errors.KindConfig, "auth.generate", "auth token secret is empty")
	}
	if strings.TrimSpace(subject) == "" {
		return "", errors.New(errors.KindValidation, "auth.generate", "subject is required")
	}

	now := at.now()
	claims := Claims{
		Scope: "analyze",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(at.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(at.secretKey)
	if err != nil {
		return "", errors.Wrap(errors.KindInternal, "auth.generate", "failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken validates tokenString and returns its claims. Every failure is a
// KindValidation error so callers can answer 401 without inspecting the cause.
func (at *AuthToken) VerifyToken(tokenString string) (*Claims, error) {
	if at == nil || len(at.secretKey) == 0 {
		return nil, errors.New(errors.KindConfig, "auth.verify", "auth token secret is empty")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return at.secretKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(at.now),
	)
	if err != nil {
		return nil, errors.Wrap(errors.KindValidation, "auth.verify", "invalid token", err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, errors.New(errors.KindValidation, "auth.verify", "invalid token")
	}
	return claims, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
