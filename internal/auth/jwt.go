// CADRelay - Real-Time Dispatch Channel Routing and Authorization
// Copyright 2026 CADRelay Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/cadrelay/cadrelay

package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/cadrelay/cadrelay/internal/config"
	"github.com/cadrelay/cadrelay/internal/models"
)

// Claims represents the JWT claims carried by a CADRelay session token.
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Verifier validates bearer credentials and yields the caller identity.
// It is implemented by *JWTManager and stubbed in tests.
type Verifier interface {
	VerifyToken(tokenString string) (models.Identity, error)
}

// JWTManager handles session token creation and verification.
type JWTManager struct {
	secret  []byte
	timeout time.Duration
}

// NewJWTManager creates a token manager with the configured secret and
// session timeout.
//
// Parameters:
//   - cfg: Security configuration containing JWT secret and session timeout
//
// Returns:
//   - Pointer to initialized JWTManager
//   - error if JWT_SECRET is empty
//
// Security Requirements:
//   - JWT_SECRET must be at least 32 characters (enforced by config validation)
//   - Uses HS256 signing (HMAC with SHA-256); asymmetric algorithms are rejected
func NewJWTManager(cfg config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}

	return &JWTManager{
		secret:  []byte(cfg.JWTSecret),
		timeout: cfg.SessionTimeout,
	}, nil
}

// GenerateToken creates a signed session token for the given identity.
//
// The token carries the subject and roles claims and is valid for the
// configured session timeout. Tokens are stateless and cannot be
// revoked before expiration.
//
// Parameters:
//   - id: opaque identity of the principal (becomes the subject claim)
//   - roles: roles granted to the principal, carried verbatim
//
// Returns:
//   - Signed JWT token string
//   - error if signing fails
func (m *JWTManager) GenerateToken(id string, roles []models.Role) (string, error) {
	now := time.Now()
	roleStrings := make([]string, len(roles))
	for i, r := range roles {
		roleStrings[i] = string(r)
	}

	claims := &Claims{
		Roles: roleStrings,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(now.Add(m.timeout)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// VerifyToken verifies a session token and extracts the caller identity.
//
// Validation checks the HMAC signature, the signing algorithm (HS256
// only, preventing algorithm confusion), and the time claims. Roles are
// copied into the identity exactly as the token carries them: an
// unknown role grants access to nothing, so rejecting it here would add
// a failure mode without adding safety.
//
// Returns:
//   - models.Identity with ID (subject) and roles on success
//   - ErrMissingCredentials if tokenString is empty
//   - ErrExpiredCredentials if the token is past its expiry
//   - ErrInvalidCredentials for every other verification failure
func (m *JWTManager) VerifyToken(tokenString string) (models.Identity, error) {
	if tokenString == "" {
		return models.Identity{}, ErrMissingCredentials
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return models.Identity{}, fmt.Errorf("%w: %s", ErrExpiredCredentials, "token is expired")
		}
		return models.Identity{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, err.Error())
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return models.Identity{}, ErrInvalidCredentials
	}
	if claims.Subject == "" {
		return models.Identity{}, fmt.Errorf("%w: %s", ErrInvalidCredentials, "missing subject claim")
	}

	roles := make([]models.Role, len(claims.Roles))
	for i, r := range claims.Roles {
		roles[i] = models.Role(r)
	}

	return models.Identity{
		ID:    claims.Subject,
		Roles: roles,
	}, nil
}
