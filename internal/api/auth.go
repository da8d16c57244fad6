package api

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/lo"
)

var (
	ErrUnauthorized = errors.New("unauthorized: insufficient permissions")
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUnknownRole  = errors.New("unknown role")
	ErrEmptySecret  = errors.New("jwt secret is empty")
)

// Role definitions
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Permission definitions
const (
	PermissionViewHistory  = "history:read"
	PermissionTriggerSweep = "sweep:trigger"
	PermissionWatchEvents  = "events:read"
)

// RolePermissions maps roles to their allowed permissions
var RolePermissions = map[string][]string{
	RoleAdmin:    {PermissionViewHistory, PermissionTriggerSweep, PermissionWatchEvents},
	RoleOperator: {PermissionViewHistory, PermissionTriggerSweep, PermissionWatchEvents},
	RoleViewer:   {PermissionViewHistory, PermissionWatchEvents},
}

// HasPermission checks if user roles include the required permission
func HasPermission(userRoles []string, requiredPermission string) bool {
	return lo.SomeBy(userRoles, func(role string) bool {
		return lo.Contains(RolePermissions[role], requiredPermission)
	})
}

// Claims are the JWT claims accepted by the API
type Claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// TokenManager issues and validates HS256 tokens
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenManager creates a TokenManager; ttl bounds issued tokens
func NewTokenManager(secret []byte, ttl time.Duration) (*TokenManager, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &TokenManager{secret: secret, ttl: ttl}, nil
}

// LoadSecret reads a signing key from a file, ignoring surrounding whitespace
func LoadSecret(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read jwt secret: %w", err)
	}
	secret := strings.TrimSpace(string(data))
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return []byte(secret), nil
}

// Issue signs a token for subject carrying roles
func (m *TokenManager) Issue(subject string, roles []string) (string, error) {
	for _, r := range roles {
		if _, ok := RolePermissions[r]; !ok {
			return "", fmt.Errorf("%w: %s", ErrUnknownRole, r)
		}
	}

	now := time.Now()
	claims := &Claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    "dirsweep",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

// Validate parses token and returns its claims
func (m *TokenManager) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("dirsweep"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
