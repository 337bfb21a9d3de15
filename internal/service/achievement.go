package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/AndreyDiak/muzloto-server/internal/config"
	"github.com/AndreyDiak/muzloto-server/internal/model"
	"github.com/AndreyDiak/muzloto-server/internal/repository"
)

// EvalResult is what one evaluator pass produced: the achievements
// newly unlocked by the triggering action and the sum of auto-paid
// bonuses that must fold into the same balance update.
type EvalResult struct {
	Unlocked []config.AchievementDef
	AutoPaid int64
}

// ClaimResult is the outcome of an explicit reward claim.
type ClaimResult struct {
	User        *model.User
	CoinsEarned int64
}

// AchievementStatus is one achievement with the caller's progress
// against it.
type AchievementStatus struct {
	Def      config.AchievementDef
	Unlocked bool
	Claimed  bool
}

// AchievementService translates monotonic counters into one-time and
// repeating bonus payouts without double-paying.
type AchievementService struct {
	pool              TxBeginner
	repos             repos
	defs              []config.AchievementDef
	milestoneInterval int
	milestoneReward   int64
}

// NewAchievementService creates a new AchievementService instance.
func NewAchievementService(
	pool TxBeginner,
	userRepo *repository.UserRepository,
	achievementRepo *repository.AchievementRepository,
	ledgerRepo *repository.LedgerRepository,
	defs []config.AchievementDef,
	milestoneInterval int,
	milestoneReward int64,
) *AchievementService {
	if milestoneInterval <= 0 {
		milestoneInterval = 5
	}
	return &AchievementService{
		pool: pool,
		repos: repos{
			users:        userRepo,
			achievements: achievementRepo,
			ledger:       ledgerRepo,
		},
		defs:              defs,
		milestoneInterval: milestoneInterval,
		milestoneReward:   milestoneReward,
	}
}

// ReachedThresholds returns the definitions for the given counter whose
// threshold is covered by value. Pure; the unlock insert decides
// whether a reached threshold is actually new.
func ReachedThresholds(defs []config.AchievementDef, counter string, value int) []config.AchievementDef {
	var reached []config.AchievementDef
	for _, def := range defs {
		if def.Counter == counter && value >= def.Threshold {
			reached = append(reached, def)
		}
	}
	return reached
}

// MilestoneProgress computes remaining progress toward the repeating
// visit milestone: visits not yet consumed by a claim. Claiming
// consumes exactly one interval, so overshoot carries over.
func MilestoneProgress(visits, claimed, interval int) int {
	progress := visits - claimed*interval
	if progress < 0 {
		return 0
	}
	return progress
}

// VisitRewardPending reports whether the user has an unclaimed visit
// milestone reward available.
func (s *AchievementService) VisitRewardPending(user *model.User) bool {
	return MilestoneProgress(user.GamesVisited, user.VisitRewardsClaimed, s.milestoneInterval) >= s.milestoneInterval
}

// evaluate runs inside the caller's transaction after a counter
// increment. counterValue is the counter's value after the increment.
// It unlocks every reached-but-locked threshold for that counter,
// marks auto-pay unlocks claimed and reports their summed reward so
// the caller can fold it into the action's single balance update.
// Safe to call when nothing is newly unlocked: returns an empty result.
func (s *AchievementService) evaluate(ctx context.Context, r *txRepos, userID int64, counter string, counterValue int) (*EvalResult, error) {
	result := &EvalResult{}
	for _, def := range ReachedThresholds(s.defs, counter, counterValue) {
		inserted, err := r.achievements.Unlock(ctx, userID, def.Slug)
		if err != nil {
			return nil, err
		}
		if !inserted {
			continue // already unlocked by an earlier action
		}
		result.Unlocked = append(result.Unlocked, def)
		if def.AutoPay {
			// Paid together with the action reward; the claimed mark
			// keeps the explicit claim path from paying again.
			if _, err := r.achievements.MarkClaimed(ctx, userID, def.Slug); err != nil {
				return nil, err
			}
			result.AutoPaid += def.Reward
		}
	}
	return result, nil
}

// writeBonusEntries records one ledger entry per newly unlocked
// auto-pay achievement.
func writeBonusEntries(ctx context.Context, r *txRepos, userID int64, unlocked []config.AchievementDef) error {
	for _, def := range unlocked {
		if !def.AutoPay {
			continue
		}
		desc := def.Slug
		if _, err := r.ledger.Create(ctx, userID, def.Reward, model.TxTypeAchievementBonus, &desc); err != nil {
			return err
		}
	}
	return nil
}

// Claim pays out an unlocked achievement's one-time coin bonus.
// Claiming twice fails with ErrAlreadyClaimed; claiming before
// unlocking fails with ErrNotUnlocked.
func (s *AchievementService) Claim(ctx context.Context, userID int64, slug string) (*ClaimResult, error) {
	def, ok := s.findDef(slug)
	if !ok {
		return nil, ErrUnknownAchievement
	}

	var result *ClaimResult
	err := runInTx(ctx, s.pool, s.repos, func(r *txRepos) error {
		if _, err := r.achievements.Get(ctx, userID, slug); err != nil {
			if errors.Is(err, repository.ErrUnlockNotFound) {
				return ErrNotUnlocked
			}
			return err
		}

		claimed, err := r.achievements.MarkClaimed(ctx, userID, slug)
		if err != nil {
			return err
		}
		if !claimed {
			return ErrAlreadyClaimed
		}

		user, err := r.users.ApplyDelta(ctx, userID, "", 0, def.Reward)
		if err != nil {
			return mapUserErr(err)
		}

		desc := def.Slug
		if _, err := r.ledger.Create(ctx, userID, def.Reward, model.TxTypeAchievementBonus, &desc); err != nil {
			return err
		}

		result = &ClaimResult{User: user, CoinsEarned: def.Reward}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ClaimVisitReward pays out the repeating "every N visits" milestone.
// The claimed counter advances by exactly one interval, so overshoot
// (12 visits, interval 5, one prior claim) keeps its remainder. The
// progress check rides inside the conditional update, so concurrent
// claims against the same interval pay at most once.
func (s *AchievementService) ClaimVisitReward(ctx context.Context, userID int64) (*ClaimResult, error) {
	var result *ClaimResult
	err := runInTx(ctx, s.pool, s.repos, func(r *txRepos) error {
		user, err := r.users.ClaimVisitMilestone(ctx, userID, s.milestoneInterval, s.milestoneReward)
		if err != nil {
			if errors.Is(err, repository.ErrMilestoneNotReached) {
				return ErrMilestoneNotReached
			}
			return mapUserErr(err)
		}

		if _, err := r.ledger.Create(ctx, userID, s.milestoneReward, model.TxTypeMilestoneReward, nil); err != nil {
			return err
		}

		result = &ClaimResult{User: user, CoinsEarned: s.milestoneReward}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListWithStatus returns every defined achievement with the user's
// unlock/claim state.
func (s *AchievementService) ListWithStatus(ctx context.Context, userID int64) ([]AchievementStatus, error) {
	unlocks, err := s.repos.achievements.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	bySlug := make(map[string]*model.AchievementUnlock, len(unlocks))
	for _, u := range unlocks {
		bySlug[u.Slug] = u
	}

	statuses := make([]AchievementStatus, 0, len(s.defs))
	for _, def := range s.defs {
		status := AchievementStatus{Def: def}
		if u, ok := bySlug[def.Slug]; ok {
			status.Unlocked = true
			status.Claimed = u.RewardClaimedAt != nil
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// MilestoneInterval exposes the configured repeating milestone interval.
func (s *AchievementService) MilestoneInterval() int {
	return s.milestoneInterval
}

func (s *AchievementService) findDef(slug string) (config.AchievementDef, bool) {
	for _, def := range s.defs {
		if def.Slug == slug {
			return def, true
		}
	}
	return config.AchievementDef{}, false
}

func mapUserErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repository.ErrInsufficientFunds):
		return ErrInsufficientBalance
	default:
		return fmt.Errorf("user repository: %w", err)
	}
}
