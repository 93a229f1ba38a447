package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Roles recognized by the rental service. The core does no permission
// enforcement of its own beyond coarse route gating; it trusts the identity
// provider and uses the acting user solely for audit stamping.
const (
	RoleRenter RoleName = "renter"
	RoleStaff  RoleName = "staff"
	RoleAdmin  RoleName = "admin"
)

// RoleName is an opaque role label issued by the identity provider.
type RoleName string

// Claims carries the acting user's identity extracted from a bearer token.
type Claims struct {
	UserID uuid.UUID `json:"uid"`
	Role   RoleName  `json:"role"`
	jwt.RegisteredClaims
}

// JWTManager verifies access tokens issued by the identity provider.
type JWTManager struct {
	secret   []byte
	tokenTTL time.Duration
}

// NewJWTManager creates a JWTManager with the shared signing secret.
func NewJWTManager(secret string, tokenTTL time.Duration) *JWTManager {
	return &JWTManager{secret: []byte(secret), tokenTTL: tokenTTL}
}

// Verify parses and validates a token string, returning its claims.
func (m *JWTManager) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == uuid.Nil {
		return nil, fmt.Errorf("token carries no user id")
	}
	return claims, nil
}

// Issue signs a token for the given user. Used by tests and local tooling;
// production tokens come from the identity provider.
func (m *JWTManager) Issue(userID uuid.UUID, role RoleName) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.tokenTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}
