package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/AndreyDiak/muzloto-server/internal/model"
)

// ErrTokenNotFound is returned when a transfer token does not exist,
// was already consumed, or has expired.
var ErrTokenNotFound = errors.New("transfer token not found or expired")

// TransferTokenRepository persists the short-lived single-use tokens
// backing the scan-to-transfer flow. Tokens live in the shared store
// rather than process memory so they survive restarts and work across
// instances; expired rows are evicted lazily.
type TransferTokenRepository struct {
	db DB
}

// NewTransferTokenRepository creates a new TransferTokenRepository instance.
func NewTransferTokenRepository(db DB) *TransferTokenRepository {
	return &TransferTokenRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *TransferTokenRepository) WithTx(tx pgx.Tx) *TransferTokenRepository {
	return &TransferTokenRepository{db: tx}
}

// Create inserts a token valid until expiresAt.
func (r *TransferTokenRepository) Create(ctx context.Context, token string, fromUserID int64, amount int64, expiresAt time.Time) (*model.TransferToken, error) {
	const query = `
		INSERT INTO transfer_tokens (token, from_user_id, amount, expires_at, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING token, from_user_id, amount, expires_at, created_at
	`

	var t model.TransferToken
	err := r.db.QueryRow(ctx, query, token, fromUserID, amount, expiresAt).Scan(
		&t.Token, &t.FromUserID, &t.Amount, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer token: %w", err)
	}
	return &t, nil
}

// Consume atomically deletes and returns an unexpired token. Single use
// is guaranteed by the delete: of two concurrent calls exactly one gets
// the row back.
func (r *TransferTokenRepository) Consume(ctx context.Context, token string) (*model.TransferToken, error) {
	const query = `
		DELETE FROM transfer_tokens
		WHERE token = $1 AND expires_at > NOW()
		RETURNING token, from_user_id, amount, expires_at, created_at
	`

	var t model.TransferToken
	err := r.db.QueryRow(ctx, query, token).Scan(
		&t.Token, &t.FromUserID, &t.Amount, &t.ExpiresAt, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, fmt.Errorf("failed to consume transfer token: %w", err)
	}
	return &t, nil
}

// SweepExpired removes expired tokens. Called opportunistically when
// new tokens are issued; losing an expired token is always safe since
// it could no longer be redeemed.
func (r *TransferTokenRepository) SweepExpired(ctx context.Context) (int64, error) {
	const query = `DELETE FROM transfer_tokens WHERE expires_at <= NOW()`

	result, err := r.db.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired tokens: %w", err)
	}
	return result.RowsAffected(), nil
}
