package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AndreyDiak/muzloto-server/internal/model"
)

// Common errors for user operations.
var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrMilestoneNotReached = errors.New("milestone not reached")
)

const userColumns = `telegram_id, username, coins, games_visited, tickets_purchased,
		bingo_collected, visit_rewards_claimed, created_at, updated_at`

// UserRepository handles user balance and counter persistence.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository instance.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.TelegramID,
		&u.Username,
		&u.Coins,
		&u.GamesVisited,
		&u.TicketsPurchased,
		&u.BingoCollected,
		&u.VisitRewardsClaimed,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create creates a new user with a zero balance and zero counters.
func (r *UserRepository) Create(ctx context.Context, telegramID int64, username string) (*model.User, error) {
	query := `
		INSERT INTO users (telegram_id, username, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW())
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID, username))
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

// GetByID retrieves a user by their Telegram ID.
// Returns ErrUserNotFound if the user does not exist.
func (r *UserRepository) GetByID(ctx context.Context, telegramID int64) (*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// GetOrCreate retrieves a user by Telegram ID, creating one if it
// doesn't exist. The bool result reports whether a row was created.
func (r *UserRepository) GetOrCreate(ctx context.Context, telegramID int64, username string) (*model.User, bool, error) {
	user, err := r.GetByID(ctx, telegramID)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, false, err
	}

	user, err = r.Create(ctx, telegramID, username)
	if err != nil {
		// Another request may have created the user concurrently
		if isUniqueViolation(err) {
			user, err = r.GetByID(ctx, telegramID)
			if err != nil {
				return nil, false, err
			}
			return user, false, nil
		}
		return nil, false, err
	}
	return user, true, nil
}

// ApplyDelta atomically mutates a user's balance and optionally one
// usage counter in a single statement. counterColumn must be one of the
// allowed counter names or empty for a balance-only change. A negative
// coin delta that would take the balance below zero affects no row and
// returns ErrInsufficientFunds.
func (r *UserRepository) ApplyDelta(ctx context.Context, telegramID int64, counterColumn string, counterDelta int, coinsDelta int64) (*model.User, error) {
	set := "coins = coins + $2, updated_at = NOW()"
	switch counterColumn {
	case "":
	case "games_visited", "tickets_purchased", "bingo_collected", "visit_rewards_claimed":
		set += fmt.Sprintf(", %s = %s + %d", counterColumn, counterColumn, counterDelta)
	default:
		return nil, fmt.Errorf("unknown counter column %q", counterColumn)
	}

	query := `
		UPDATE users
		SET ` + set + `
		WHERE telegram_id = $1 AND coins + $2 >= 0
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID, coinsDelta))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing user from a would-be negative balance.
			if _, getErr := r.GetByID(ctx, telegramID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrInsufficientFunds
		}
		return nil, fmt.Errorf("failed to apply balance delta: %w", err)
	}
	return user, nil
}

// Credit adds coins to a user's balance.
func (r *UserRepository) Credit(ctx context.Context, telegramID int64, amount int64) (*model.User, error) {
	return r.ApplyDelta(ctx, telegramID, "", 0, amount)
}

// Debit removes coins from a user's balance, failing closed with
// ErrInsufficientFunds rather than allowing a negative balance.
func (r *UserRepository) Debit(ctx context.Context, telegramID int64, amount int64) (*model.User, error) {
	return r.ApplyDelta(ctx, telegramID, "", 0, -amount)
}

// ClaimVisitMilestone atomically advances the claimed counter by one
// interval and credits the reward. The progress guard lives in the
// UPDATE's WHERE clause, so two concurrent claims against one interval
// of progress resolve to one payout and one ErrMilestoneNotReached.
func (r *UserRepository) ClaimVisitMilestone(ctx context.Context, telegramID int64, interval int, reward int64) (*model.User, error) {
	query := `
		UPDATE users
		SET visit_rewards_claimed = visit_rewards_claimed + 1,
			coins = coins + $2,
			updated_at = NOW()
		WHERE telegram_id = $1
			AND games_visited - (visit_rewards_claimed + 1) * $3 >= 0
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRow(ctx, query, telegramID, reward, interval))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Distinguish a missing user from insufficient progress.
			if _, getErr := r.GetByID(ctx, telegramID); getErr != nil {
				return nil, getErr
			}
			return nil, ErrMilestoneNotReached
		}
		return nil, fmt.Errorf("failed to claim visit milestone: %w", err)
	}
	return user, nil
}

// UpdateUsername updates a user's username.
func (r *UserRepository) UpdateUsername(ctx context.Context, telegramID int64, username string) error {
	const query = `
		UPDATE users
		SET username = $2, updated_at = NOW()
		WHERE telegram_id = $1
	`

	result, err := r.db.Exec(ctx, query, telegramID, username)
	if err != nil {
		return fmt.Errorf("failed to update username: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// Exists checks if a user with the given Telegram ID exists.
func (r *UserRepository) Exists(ctx context.Context, telegramID int64) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM users WHERE telegram_id = $1)`

	var exists bool
	if err := r.db.QueryRow(ctx, query, telegramID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return exists, nil
}
