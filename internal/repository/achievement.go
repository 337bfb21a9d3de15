package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AndreyDiak/muzloto-server/internal/model"
)

// ErrUnlockNotFound is returned when no unlock row exists for a
// (user, slug) pair.
var ErrUnlockNotFound = errors.New("achievement unlock not found")

// AchievementRepository handles achievement unlock persistence.
// Unlocking and claiming are two independent write-once transitions:
// unlock is an insert guarded by the primary key, claim is a
// conditional update on reward_claimed_at IS NULL.
type AchievementRepository struct {
	db DB
}

// NewAchievementRepository creates a new AchievementRepository instance.
func NewAchievementRepository(db DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// WithTx returns a copy of the repository bound to the given transaction.
func (r *AchievementRepository) WithTx(tx pgx.Tx) *AchievementRepository {
	return &AchievementRepository{db: tx}
}

// Unlock records an achievement unlock. A duplicate attempt is treated
// as "already unlocked", not an error: the bool result reports whether
// this call inserted the row.
func (r *AchievementRepository) Unlock(ctx context.Context, userID int64, slug string) (bool, error) {
	const query = `
		INSERT INTO achievements (user_id, slug, unlocked_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id, slug) DO NOTHING
	`

	result, err := r.db.Exec(ctx, query, userID, slug)
	if err != nil {
		return false, fmt.Errorf("failed to unlock achievement: %w", err)
	}
	return result.RowsAffected() == 1, nil
}

// Get retrieves a single unlock row.
func (r *AchievementRepository) Get(ctx context.Context, userID int64, slug string) (*model.AchievementUnlock, error) {
	const query = `
		SELECT user_id, slug, unlocked_at, reward_claimed_at
		FROM achievements
		WHERE user_id = $1 AND slug = $2
	`

	var a model.AchievementUnlock
	err := r.db.QueryRow(ctx, query, userID, slug).Scan(
		&a.UserID, &a.Slug, &a.UnlockedAt, &a.RewardClaimedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUnlockNotFound
		}
		return nil, fmt.Errorf("failed to get achievement: %w", err)
	}
	return &a, nil
}

// ListByUser retrieves all unlocks for a user, oldest first.
func (r *AchievementRepository) ListByUser(ctx context.Context, userID int64) ([]*model.AchievementUnlock, error) {
	const query = `
		SELECT user_id, slug, unlocked_at, reward_claimed_at
		FROM achievements
		WHERE user_id = $1
		ORDER BY unlocked_at ASC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	defer rows.Close()

	var unlocks []*model.AchievementUnlock
	for rows.Next() {
		var a model.AchievementUnlock
		if err := rows.Scan(&a.UserID, &a.Slug, &a.UnlockedAt, &a.RewardClaimedAt); err != nil {
			return nil, fmt.Errorf("failed to scan achievement: %w", err)
		}
		unlocks = append(unlocks, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievements: %w", err)
	}
	return unlocks, nil
}

// MarkClaimed performs the write-once claim transition. Returns false
// when the reward was already claimed.
func (r *AchievementRepository) MarkClaimed(ctx context.Context, userID int64, slug string) (bool, error) {
	const query = `
		UPDATE achievements
		SET reward_claimed_at = NOW()
		WHERE user_id = $1 AND slug = $2 AND reward_claimed_at IS NULL
	`

	result, err := r.db.Exec(ctx, query, userID, slug)
	if err != nil {
		return false, fmt.Errorf("failed to mark achievement claimed: %w", err)
	}
	return result.RowsAffected() == 1, nil
}
