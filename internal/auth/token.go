// ABOUTME: JWT tokens for operators calling the ops API
// ABOUTME: HS256 signing with a configured secret; carries the operator name and role

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest signing secret accepted.
const MinSecretLength = 32

// Operator roles.
const (
	RoleViewer = "viewer"
	RoleAdmin  = "admin"
)

// Token errors
var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrWeakSecret   = fmt.Errorf("secret must be at least %d bytes", MinSecretLength)
)

// Claims are the verified contents of an operator token.
type Claims struct {
	Subject string
	Role    string
}

// TokenVerifier verifies operator tokens.
type TokenVerifier interface {
	Verify(tokenString string) (Claims, error)
}

type tokenClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// JWTVerifier implements TokenVerifier using HS256 signed JWTs
type JWTVerifier struct {
	secret []byte
	now    func() time.Time
}

// NewJWTVerifier creates a verifier. The secret must be at least
// MinSecretLength bytes.
func NewJWTVerifier(secret []byte) (*JWTVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	return &JWTVerifier{secret: secret, now: time.Now}, nil
}

// Verify validates the token and returns its subject and role. Tokens without
// a role claim are treated as viewers.
func (v *JWTVerifier) Verify(tokenString string) (Claims, error) {
	var tc tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &tc, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrExpiredToken
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if tc.Subject == "" {
		return Claims{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	role := tc.Role
	if role == "" {
		role = RoleViewer
	}
	return Claims{Subject: tc.Subject, Role: role}, nil
}

// Generate issues a token for subject with the given role.
func (v *JWTVerifier) Generate(subject, role string, expiresIn time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	if role != RoleViewer && role != RoleAdmin {
		return "", fmt.Errorf("unknown role %q", role)
	}

	now := v.now()
	claims := tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
