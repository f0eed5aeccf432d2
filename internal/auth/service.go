package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/fweiler/OpenSupplyCore/internal/config"
	"github.com/fweiler/OpenSupplyCore/internal/storage"
)

// Permission levels for the API surface. Viewers read parameters, operators
// write setpoints and clear events, admins manage users.
type Permission string

const (
	PermViewer   Permission = "viewer"
	PermOperator Permission = "operator"
	PermAdmin    Permission = "admin"
)

type AuthService struct {
	storage        *storage.PostgresClient
	jwtHandler     *JWTHandler
	passwordHasher *PasswordHasher
}

func NewAuthService(store *storage.PostgresClient, cfg config.AuthConfig) *AuthService {
	return &AuthService{
		storage:        store,
		jwtHandler:     NewJWTHandler(cfg.GetJWTSecret(), cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		passwordHasher: NewPasswordHasher(),
	}
}

// LoginUser authenticates a user and returns an access and a refresh token.
func (a *AuthService) LoginUser(ctx context.Context, username, password string) (accessToken, refreshToken string, err error) {
	user, err := a.storage.GetUserByUsername(ctx, username)
	if err != nil {
		return "", "", fmt.Errorf("invalid credentials")
	}

	valid, err := a.passwordHasher.VerifyPassword(password, user.PasswordHash)
	if err != nil || !valid {
		return "", "", fmt.Errorf("invalid credentials")
	}

	accessToken, err = a.jwtHandler.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err = a.jwtHandler.GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(a.jwtHandler.refreshTokenTTL)
	if err := a.storage.StoreRefreshToken(ctx, user.ID, hashRefreshToken(refreshToken), expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return accessToken, refreshToken, nil
}

// RefreshTokens exchanges a valid refresh token for a fresh token pair.
func (a *AuthService) RefreshTokens(ctx context.Context, refreshToken string) (string, string, error) {
	user, err := a.storage.GetUserByRefreshToken(ctx, hashRefreshToken(refreshToken))
	if err != nil {
		return "", "", fmt.Errorf("invalid refresh token")
	}

	accessToken, err := a.jwtHandler.GenerateAccessToken(user.ID, user.Username, user.Role)
	if err != nil {
		return "", "", fmt.Errorf("failed to generate access token: %w", err)
	}

	newRefresh, err := a.jwtHandler.GenerateRefreshToken()
	if err != nil {
		return "", "", fmt.Errorf("failed to generate refresh token: %w", err)
	}

	expiresAt := time.Now().Add(a.jwtHandler.refreshTokenTTL)
	if err := a.storage.StoreRefreshToken(ctx, user.ID, hashRefreshToken(newRefresh), expiresAt); err != nil {
		return "", "", fmt.Errorf("failed to store refresh token: %w", err)
	}

	return accessToken, newRefresh, nil
}

// ValidateToken validates an access token and returns the permissions its
// role grants.
func (a *AuthService) ValidateToken(token string) (*JWTClaims, []Permission, error) {
	claims, err := a.jwtHandler.ValidateAccessToken(token)
	if err != nil {
		return nil, nil, err
	}
	return claims, a.roleToPermissions(claims.Role), nil
}

// CreateUser hashes the password and stores a new user.
func (a *AuthService) CreateUser(ctx context.Context, username, password, role string) error {
	hash, err := a.passwordHasher.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if _, err := a.storage.CreateUser(ctx, username, hash, role); err != nil {
		return err
	}

	return nil
}

// roleToPermissions expands a role into the permissions it implies.
func (a *AuthService) roleToPermissions(role string) []Permission {
	switch role {
	case string(PermAdmin):
		return []Permission{PermViewer, PermOperator, PermAdmin}
	case string(PermOperator):
		return []Permission{PermViewer, PermOperator}
	case string(PermViewer):
		return []Permission{PermViewer}
	default:
		return nil
	}
}

func hashRefreshToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
