package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/AndreyDiak/muzloto-server/internal/model"
)

// Common errors for event operations.
var (
	ErrEventNotFound         = errors.New("event not found")
	ErrDuplicateRegistration = errors.New("user already registered for event")
)

// EventRepository handles event and registration persistence.
type EventRepository struct {
	db DB
}

// NewEventRepository creates a new EventRepository instance.
func NewEventRepository(db DB) *EventRepository {
	return &EventRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *EventRepository) WithTx(tx pgx.Tx) *EventRepository {
	return &EventRepository{db: tx}
}

// Create inserts a new event.
func (r *EventRepository) Create(ctx context.Context, title string, startsAt time.Time, timezone string) (*model.Event, error) {
	const query = `
		INSERT INTO events (title, starts_at, timezone, created_at)
		VALUES ($1, $2, $3, NOW())
		RETURNING id, title, starts_at, timezone, created_at
	`

	var e model.Event
	err := r.db.QueryRow(ctx, query, title, startsAt, timezone).Scan(
		&e.ID, &e.Title, &e.StartsAt, &e.Timezone, &e.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return &e, nil
}

// GetByID retrieves an event by ID.
func (r *EventRepository) GetByID(ctx context.Context, id int64) (*model.Event, error) {
	const query = `
		SELECT id, title, starts_at, timezone, created_at
		FROM events
		WHERE id = $1
	`

	var e model.Event
	err := r.db.QueryRow(ctx, query, id).Scan(
		&e.ID, &e.Title, &e.StartsAt, &e.Timezone, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &e, nil
}

// CreateRegistration inserts a registration row. The unique constraint
// on (event_id, user_id) turns a duplicate attempt into
// ErrDuplicateRegistration instead of a silent merge.
func (r *EventRepository) CreateRegistration(ctx context.Context, eventID, userID int64) (*model.Registration, error) {
	const query = `
		INSERT INTO registrations (event_id, user_id, registered_at)
		VALUES ($1, $2, NOW())
		RETURNING id, event_id, user_id, registered_at
	`

	var reg model.Registration
	err := r.db.QueryRow(ctx, query, eventID, userID).Scan(
		&reg.ID, &reg.EventID, &reg.UserID, &reg.RegisteredAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrDuplicateRegistration
		}
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}
	return &reg, nil
}

// IsRegistered checks whether a user is already registered for an event.
func (r *EventRepository) IsRegistered(ctx context.Context, eventID, userID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM registrations WHERE event_id = $1 AND user_id = $2)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, eventID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check registration: %w", err)
	}
	return exists, nil
}

// CountRegistrations returns the number of registrations for an event.
func (r *EventRepository) CountRegistrations(ctx context.Context, eventID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE event_id = $1`

	var count int
	if err := r.db.QueryRow(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return count, nil
}
