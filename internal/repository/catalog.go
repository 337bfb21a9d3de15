package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AndreyDiak/muzloto-server/internal/model"
)

// ErrItemNotFound is returned when a catalog item does not exist or is
// no longer active.
var ErrItemNotFound = errors.New("catalog item not found")

// CatalogRepository handles catalog item persistence. The catalog row
// is the single source of truth for prices; list and purchase paths
// both read it, so they cannot drift.
type CatalogRepository struct {
	db DB
}

// NewCatalogRepository creates a new CatalogRepository instance.
func NewCatalogRepository(db DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *CatalogRepository) WithTx(tx pgx.Tx) *CatalogRepository {
	return &CatalogRepository{db: tx}
}

// Create inserts a new catalog item.
func (r *CatalogRepository) Create(ctx context.Context, title string, price int64) (*model.CatalogItem, error) {
	const query = `
		INSERT INTO catalog_items (title, price, active, created_at)
		VALUES ($1, $2, TRUE, NOW())
		RETURNING id, title, price, active, created_at
	`

	var item model.CatalogItem
	err := r.db.QueryRow(ctx, query, title, price).Scan(
		&item.ID, &item.Title, &item.Price, &item.Active, &item.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog item: %w", err)
	}
	return &item, nil
}

// GetByID retrieves an active catalog item by ID.
func (r *CatalogRepository) GetByID(ctx context.Context, id int64) (*model.CatalogItem, error) {
	const query = `
		SELECT id, title, price, active, created_at
		FROM catalog_items
		WHERE id = $1 AND active
	`

	var item model.CatalogItem
	err := r.db.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.Title, &item.Price, &item.Active, &item.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get catalog item: %w", err)
	}
	return &item, nil
}

// ListActive retrieves all active catalog items ordered by price.
func (r *CatalogRepository) ListActive(ctx context.Context) ([]*model.CatalogItem, error) {
	const query = `
		SELECT id, title, price, active, created_at
		FROM catalog_items
		WHERE active
		ORDER BY price ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog items: %w", err)
	}
	defer rows.Close()

	var items []*model.CatalogItem
	for rows.Next() {
		var item model.CatalogItem
		if err := rows.Scan(&item.ID, &item.Title, &item.Price, &item.Active, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan catalog item: %w", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating catalog items: %w", err)
	}
	return items, nil
}
