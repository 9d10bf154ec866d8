// Package auth issues and verifies the bearer tokens API clients present.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"medid-server-go/internal/platform/errors"
)

const (
	defaultTTL = time.Hour
	issuer     = "medid-server"
)

// Claims identify the calling client.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// AuthToken signs and verifies HS256 client tokens.
type AuthToken struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewAuthToken(secretKey string) (*AuthToken, error) {
	if secretKey == "" {
		return nil, errors.New(errors.KindConfig, "auth.token", "auth token secret key cannot be empty")
	}
	return &AuthToken{secretKey: []byte(secretKey), ttl: defaultTTL, now: time.Now}, nil
}

// WithTTL customises the expiration duration. Non-positive values are ignored.
func (at *AuthToken) WithTTL(ttl time.Duration) *AuthToken {
	if ttl > 0 {
		at.ttl = ttl
	}
	return at
}

// GenerateToken issues a token for subject.
func (at *AuthToken) GenerateToken(subject, scope string) (string, error) {
	if subject == "" {
		return "", errors.New(errors.KindValidation, "auth.generate", "token subject cannot be empty")
	}
	now := at.now()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(at.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(at.secretKey)
	if err != nil {
		return "", errors.Wrap(errors.KindPlatform, "auth.generate", "failed to sign token", err)
	}
	return signed, nil
}

// VerifyToken validates signature, issuer and expiry and returns the claims.
func (at *AuthToken) VerifyToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return at.secretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errors.Wrap(errors.KindValidation, "auth.verify", "invalid token", err).WithCode("authentication_error")
	}
	if !token.Valid {
		return nil, errors.New(errors.KindValidation, "auth.verify", "invalid token").WithCode("authentication_error")
	}
	return claims, nil
}
