package repository

import (
	"context"
	"time"

	"github.com/brightdesk/classportal/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokenRepository interface {
	// Create persists a token hash and opportunistically purges the
	// user's expired tokens.
	Create(ctx context.Context, userID int64, tokenHash, ip, userAgent string, expiresAt time.Time) (*domain.AuthToken, error)
	// FindByHash returns the unexpired token with this hash, or nil.
	FindByHash(ctx context.Context, tokenHash string) (*domain.AuthToken, error)
	Touch(ctx context.Context, id int64) error
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
}

type tokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) TokenRepository {
	return &tokenRepository{pool: pool}
}

const tokenCols = `id, user_id, token_hash, ip, user_agent, last_used_at, expires_at, created_at`

func (r *tokenRepository) Create(ctx context.Context, userID int64, tokenHash, ip, userAgent string, expiresAt time.Time) (*domain.AuthToken, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	const purge = `DELETE FROM auth_tokens WHERE user_id = $1 AND expires_at < now()`
	if _, err := r.pool.Exec(ctx, purge, userID); err != nil {
		return nil, err
	}

	const insert = `
		INSERT INTO auth_tokens (user_id, token_hash, ip, user_agent, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + tokenCols

	var t domain.AuthToken
	err := r.pool.QueryRow(ctx, insert, userID, tokenHash, ip, userAgent, expiresAt).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.IP, &t.UserAgent, &t.LastUsedAt, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepository) FindByHash(ctx context.Context, tokenHash string) (*domain.AuthToken, error) {
	const q = `
		SELECT ` + tokenCols + `
		FROM auth_tokens
		WHERE token_hash = $1
		  AND expires_at > now()`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var t domain.AuthToken
	err := r.pool.QueryRow(ctx, q, tokenHash).Scan(
		&t.ID, &t.UserID, &t.TokenHash, &t.IP, &t.UserAgent, &t.LastUsedAt, &t.ExpiresAt, &t.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *tokenRepository) Touch(ctx context.Context, id int64) error {
	const q = `UPDATE auth_tokens SET last_used_at = now() WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *tokenRepository) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	const q = `DELETE FROM auth_tokens WHERE user_id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q, userID)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
