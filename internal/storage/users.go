package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GetUserByUsername fetches one user for login.
func (p *PostgresClient) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var u User
	err := p.pool.QueryRow(ctx, `
		SELECT id, username, password_hash, role, created_at
		FROM users
		WHERE username = $1
	`, username).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}

	return &u, nil
}

// CreateUser inserts a new user and returns its ID.
func (p *PostgresClient) CreateUser(ctx context.Context, username, passwordHash, role string) (uuid.UUID, error) {
	var id uuid.UUID
	err := p.pool.QueryRow(ctx, `
		INSERT INTO users (username, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id
	`, username, passwordHash, role).Scan(&id)

	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create user: %w", err)
	}

	return id, nil
}

// StoreRefreshToken persists the hash of an issued refresh token.
func (p *PostgresClient) StoreRefreshToken(ctx context.Context, userID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`, userID, tokenHash, expiresAt)

	if err != nil {
		return fmt.Errorf("failed to store refresh token: %w", err)
	}

	return nil
}

// GetUserByRefreshToken resolves a refresh token hash to its user, if the
// token is still valid.
func (p *PostgresClient) GetUserByRefreshToken(ctx context.Context, tokenHash string) (*User, error) {
	var u User
	err := p.pool.QueryRow(ctx, `
		SELECT u.id, u.username, u.password_hash, u.role, u.created_at
		FROM users u
		JOIN refresh_tokens rt ON rt.user_id = u.id
		WHERE rt.token_hash = $1 AND rt.expires_at > now()
	`, tokenHash).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.CreatedAt)

	if err != nil {
		return nil, fmt.Errorf("failed to resolve refresh token: %w", err)
	}

	return &u, nil
}

// DeleteRefreshTokens revokes all refresh tokens of a user.
func (p *PostgresClient) DeleteRefreshTokens(ctx context.Context, userID uuid.UUID) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete refresh tokens: %w", err)
	}
	return nil
}
