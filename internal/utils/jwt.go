package utils

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"medflow-web/internal/models"
)

// Claims is the subset of upstream token claims the front-end reads.
type Claims struct {
	Username string      `json:"username,omitempty"`
	Role     models.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// PeekClaims decodes a bearer token without verifying its signature. The
// front-end does not hold the signing key; the upstream API remains the only
// judge of whether a token is valid or expired.
func PeekClaims(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, fmt.Errorf("failed to decode token: %w", err)
	}
	return claims, nil
}

// TokenUsername returns the username carried by the token, falling back to
// its subject. It returns "" for opaque tokens.
func TokenUsername(tokenString string) string {
	claims, err := PeekClaims(tokenString)
	if err != nil {
		return ""
	}
	if claims.Username != "" {
		return claims.Username
	}
	return claims.Subject
}
