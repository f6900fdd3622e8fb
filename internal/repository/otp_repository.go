package repository

import (
	"context"
	"time"

	"github.com/brightdesk/classportal/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type OTPRepository interface {
	// Create persists a new code and expires any prior unexpired, unused
	// codes for the same identifier in the same transaction.
	Create(ctx context.Context, identifier, codeHash string, expiresAt time.Time) (*domain.OTPCode, error)
	// FindActive returns the newest code that is unexpired, unused and
	// below the attempt ceiling, or nil.
	FindActive(ctx context.Context, identifier string) (*domain.OTPCode, error)
	// IncrementAttempts bumps the attempt counter on the identifier's
	// live code, if one exists.
	IncrementAttempts(ctx context.Context, identifier string) error
	// MarkUsed consumes a code: sets used_at and expires it immediately.
	MarkUsed(ctx context.Context, id int64) error
	DeleteExpired(ctx context.Context) (int64, error)
}

type otpRepository struct {
	pool *pgxpool.Pool
}

func NewOTPRepository(pool *pgxpool.Pool) OTPRepository {
	return &otpRepository{pool: pool}
}

const otpCols = `id, identifier, code_hash, attempts, expires_at, used_at, created_at`

func (r *otpRepository) Create(ctx context.Context, identifier, codeHash string, expiresAt time.Time) (*domain.OTPCode, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// Supersede, don't delete: expired rows stay behind for auditing
	// until housekeeping removes them.
	const expire = `
		UPDATE otp_codes
		SET expires_at = now()
		WHERE identifier = $1
		  AND used_at IS NULL
		  AND expires_at > now()`

	if _, err := tx.Exec(ctx, expire, identifier); err != nil {
		return nil, err
	}

	const insert = `
		INSERT INTO otp_codes (identifier, code_hash, attempts, expires_at)
		VALUES ($1, $2, 0, $3)
		RETURNING ` + otpCols

	var o domain.OTPCode
	err = tx.QueryRow(ctx, insert, identifier, codeHash, expiresAt).Scan(
		&o.ID, &o.Identifier, &o.CodeHash, &o.Attempts, &o.ExpiresAt, &o.UsedAt, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *otpRepository) FindActive(ctx context.Context, identifier string) (*domain.OTPCode, error) {
	const q = `
		SELECT ` + otpCols + `
		FROM otp_codes
		WHERE identifier = $1
		  AND used_at IS NULL
		  AND expires_at > now()
		  AND attempts < $2
		ORDER BY id DESC
		LIMIT 1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var o domain.OTPCode
	err := r.pool.QueryRow(ctx, q, identifier, domain.MaxOTPAttempts).Scan(
		&o.ID, &o.Identifier, &o.CodeHash, &o.Attempts, &o.ExpiresAt, &o.UsedAt, &o.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *otpRepository) IncrementAttempts(ctx context.Context, identifier string) error {
	const q = `
		UPDATE otp_codes
		SET attempts = attempts + 1
		WHERE identifier = $1
		  AND used_at IS NULL
		  AND expires_at > now()`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, identifier)
	return err
}

func (r *otpRepository) MarkUsed(ctx context.Context, id int64) error {
	const q = `
		UPDATE otp_codes
		SET used_at = now(), expires_at = now()
		WHERE id = $1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	_, err := r.pool.Exec(ctx, q, id)
	return err
}

func (r *otpRepository) DeleteExpired(ctx context.Context) (int64, error) {
	const q = `DELETE FROM otp_codes WHERE expires_at < now() - interval '1 day'`

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	result, err := r.pool.Exec(ctx, q)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected(), nil
}
