package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AndreyDiak/muzloto-server/internal/model"
)

// Common errors for code operations.
var (
	ErrCodeNotFound  = errors.New("code not found")
	ErrDuplicateCode = errors.New("code value already exists")
)

const codeColumns = `id, value, namespace, event_id, catalog_item_id, coins_amount,
		used_at, used_by, created_by, created_at`

// CodeRepository handles redemption code persistence. Code values are
// globally unique across every namespace: the value column carries a
// table-wide unique index, so a registration code can never collide
// with a purchase or prize code.
type CodeRepository struct {
	db DB
}

// NewCodeRepository creates a new CodeRepository instance.
func NewCodeRepository(db DB) *CodeRepository {
	return &CodeRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *CodeRepository) WithTx(tx pgx.Tx) *CodeRepository {
	return &CodeRepository{db: tx}
}

func scanCode(row pgx.Row) (*model.Code, error) {
	var c model.Code
	err := row.Scan(
		&c.ID,
		&c.Value,
		&c.Namespace,
		&c.EventID,
		&c.CatalogItemID,
		&c.CoinsAmount,
		&c.UsedAt,
		&c.UsedBy,
		&c.CreatedBy,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create inserts a new code. Returns ErrDuplicateCode when the value
// collides with any existing code regardless of namespace, letting the
// issuer retry with a fresh value.
func (r *CodeRepository) Create(ctx context.Context, c *model.Code) (*model.Code, error) {
	query := `
		INSERT INTO codes (value, namespace, event_id, catalog_item_id, coins_amount, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		RETURNING ` + codeColumns

	created, err := scanCode(r.db.QueryRow(ctx, query,
		c.Value, c.Namespace, c.EventID, c.CatalogItemID, c.CoinsAmount, c.CreatedBy))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateCode
		}
		return nil, fmt.Errorf("failed to create code: %w", err)
	}
	return created, nil
}

// GetByValue retrieves a code by value across all namespaces.
func (r *CodeRepository) GetByValue(ctx context.Context, value string) (*model.Code, error) {
	query := `SELECT ` + codeColumns + ` FROM codes WHERE value = $1`

	c, err := scanCode(r.db.QueryRow(ctx, query, value))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get code: %w", err)
	}
	return c, nil
}

// GetByValueInNamespace retrieves a code by value scoped to a namespace.
func (r *CodeRepository) GetByValueInNamespace(ctx context.Context, value string, ns model.Namespace) (*model.Code, error) {
	query := `SELECT ` + codeColumns + ` FROM codes WHERE value = $1 AND namespace = $2`

	c, err := scanCode(r.db.QueryRow(ctx, query, value, ns))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get code: %w", err)
	}
	return c, nil
}

// MarkUsed performs the single unused->used transition. The guard is
// the conditional update itself, not any prior read: of two concurrent
// calls for the same code exactly one observes used_at IS NULL and
// wins. Returns false when the code was already used.
func (r *CodeRepository) MarkUsed(ctx context.Context, codeID int64, userID int64) (bool, error) {
	const query = `
		UPDATE codes
		SET used_at = NOW(), used_by = $2
		WHERE id = $1 AND used_at IS NULL
	`

	result, err := r.db.Exec(ctx, query, codeID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to mark code used: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// ValueExists checks if any code carries the given value.
func (r *CodeRepository) ValueExists(ctx context.Context, value string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM codes WHERE value = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, value).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check code existence: %w", err)
	}
	return exists, nil
}

// ListByCreator retrieves codes issued by the given user, newest first.
func (r *CodeRepository) ListByCreator(ctx context.Context, createdBy int64, limit int) ([]*model.Code, error) {
	query := `
		SELECT ` + codeColumns + `
		FROM codes
		WHERE created_by = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.db.Query(ctx, query, createdBy, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list codes: %w", err)
	}
	defer rows.Close()

	var codes []*model.Code
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating codes: %w", err)
	}
	return codes, nil
}
