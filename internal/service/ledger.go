package service

import (
	"context"
	"errors"

	"github.com/AndreyDiak/muzloto-server/internal/config"
	"github.com/AndreyDiak/muzloto-server/internal/model"
	"github.com/AndreyDiak/muzloto-server/internal/repository"
)

// ApplyResult is the outcome of a coin-earning action. CoinsEarned is
// the total credited, auto-paid achievement bonuses included, and User
// carries the post-mutation balance so callers never need a second
// read.
type ApplyResult struct {
	User        *model.User
	CoinsEarned int64
	Unlocked    []config.AchievementDef
}

// Receipt is the outcome of a catalog purchase.
type Receipt struct {
	Item        *model.CatalogItem
	User        *model.User
	BonusEarned int64
	Unlocked    []config.AchievementDef
}

// LedgerService is the single reward-application pipeline. Every
// earning or spending path (registration, purchase, bingo, manual
// award) goes through here, so counter increment, balance mutation,
// ledger entry and achievement evaluation always happen together in
// one transaction.
type LedgerService struct {
	pool         TxBeginner
	repos        repos
	evaluator    *AchievementService
	visitReward  int64
	bingoDefault int64
}

// NewLedgerService creates a new LedgerService instance.
func NewLedgerService(
	pool TxBeginner,
	userRepo *repository.UserRepository,
	catalogRepo *repository.CatalogRepository,
	achievementRepo *repository.AchievementRepository,
	ledgerRepo *repository.LedgerRepository,
	evaluator *AchievementService,
	visitReward, bingoDefault int64,
) *LedgerService {
	return &LedgerService{
		pool: pool,
		repos: repos{
			users:        userRepo,
			catalog:      catalogRepo,
			achievements: achievementRepo,
			ledger:       ledgerRepo,
		},
		evaluator:    evaluator,
		visitReward:  visitReward,
		bingoDefault: bingoDefault,
	}
}

// VisitReward exposes the configured per-visit reward amount.
func (s *LedgerService) VisitReward() int64 {
	return s.visitReward
}

// BingoDefault exposes the configured default bingo prize amount.
func (s *LedgerService) BingoDefault() int64 {
	return s.bingoDefault
}

// applyVisitRewardTx increments the visit counter, credits the
// per-visit reward plus any newly auto-paid achievement bonuses in a
// single balance update, and writes the ledger entries. Runs inside
// the caller's transaction.
func (s *LedgerService) applyVisitRewardTx(ctx context.Context, r *txRepos, userID int64) (*ApplyResult, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}

	eval, err := s.evaluator.evaluate(ctx, r, userID, config.CounterVisits, user.GamesVisited+1)
	if err != nil {
		return nil, err
	}

	user, err = r.users.ApplyDelta(ctx, userID, "games_visited", 1, s.visitReward+eval.AutoPaid)
	if err != nil {
		return nil, mapUserErr(err)
	}

	if _, err := r.ledger.Create(ctx, userID, s.visitReward, model.TxTypeVisitReward, nil); err != nil {
		return nil, err
	}
	if err := writeBonusEntries(ctx, r, userID, eval.Unlocked); err != nil {
		return nil, err
	}

	return &ApplyResult{
		User:        user,
		CoinsEarned: s.visitReward + eval.AutoPaid,
		Unlocked:    eval.Unlocked,
	}, nil
}

// applyPurchaseTx debits the item price, increments the purchase
// counter and evaluates purchase achievements, folding any auto-paid
// bonus into the same balance update. The price check happens before
// any mutation so an underfunded purchase changes nothing.
func (s *LedgerService) applyPurchaseTx(ctx context.Context, r *txRepos, userID int64, item *model.CatalogItem) (*Receipt, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}

	// The balance must cover the full price on its own; a bonus about
	// to unlock is not allowed to finance the purchase.
	if user.Coins < item.Price {
		return nil, ErrInsufficientBalance
	}

	eval, err := s.evaluator.evaluate(ctx, r, userID, config.CounterPurchases, user.TicketsPurchased+1)
	if err != nil {
		return nil, err
	}

	user, err = r.users.ApplyDelta(ctx, userID, "tickets_purchased", 1, -item.Price+eval.AutoPaid)
	if err != nil {
		return nil, mapUserErr(err)
	}

	desc := item.Title
	if _, err := r.ledger.Create(ctx, userID, -item.Price, model.TxTypePurchase, &desc); err != nil {
		return nil, err
	}
	if err := writeBonusEntries(ctx, r, userID, eval.Unlocked); err != nil {
		return nil, err
	}

	return &Receipt{
		Item:        item,
		User:        user,
		BonusEarned: eval.AutoPaid,
		Unlocked:    eval.Unlocked,
	}, nil
}

// applyBingoWinTx credits a bingo prize and increments the bingo
// counter inside the caller's transaction.
func (s *LedgerService) applyBingoWinTx(ctx context.Context, r *txRepos, userID int64, amount int64) (*ApplyResult, error) {
	user, err := r.users.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserErr(err)
	}

	eval, err := s.evaluator.evaluate(ctx, r, userID, config.CounterBingo, user.BingoCollected+1)
	if err != nil {
		return nil, err
	}

	user, err = r.users.ApplyDelta(ctx, userID, "bingo_collected", 1, amount+eval.AutoPaid)
	if err != nil {
		return nil, mapUserErr(err)
	}

	if _, err := r.ledger.Create(ctx, userID, amount, model.TxTypeBingoWin, nil); err != nil {
		return nil, err
	}
	if err := writeBonusEntries(ctx, r, userID, eval.Unlocked); err != nil {
		return nil, err
	}

	return &ApplyResult{
		User:        user,
		CoinsEarned: amount + eval.AutoPaid,
		Unlocked:    eval.Unlocked,
	}, nil
}

// ApplyVisitReward runs the visit pipeline in its own transaction.
// Used by every registration path: typed code, scanned code or bot
// button all share this one implementation.
func (s *LedgerService) ApplyVisitReward(ctx context.Context, userID int64) (*ApplyResult, error) {
	var result *ApplyResult
	err := runInTx(ctx, s.pool, s.repos, func(r *txRepos) error {
		var txErr error
		result, txErr = s.applyVisitRewardTx(ctx, r, userID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ApplyPurchase purchases a catalog item directly by ID (the mini-app
// "buy" button, no code involved).
func (s *LedgerService) ApplyPurchase(ctx context.Context, userID, itemID int64) (*Receipt, error) {
	var receipt *Receipt
	err := runInTx(ctx, s.pool, s.repos, func(r *txRepos) error {
		item, err := r.catalog.GetByID(ctx, itemID)
		if err != nil {
			if errors.Is(err, repository.ErrItemNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
		receipt, err = s.applyPurchaseTx(ctx, r, userID, item)
		return err
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// ApplyBingoWin runs the bingo pipeline in its own transaction.
func (s *LedgerService) ApplyBingoWin(ctx context.Context, userID int64, amount int64) (*ApplyResult, error) {
	var result *ApplyResult
	err := runInTx(ctx, s.pool, s.repos, func(r *txRepos) error {
		var txErr error
		result, txErr = s.applyBingoWinTx(ctx, r, userID, amount)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Award credits an arbitrary amount outside the normal earning paths
// (admin gift). No counter moves and no achievements are evaluated.
func (s *LedgerService) Award(ctx context.Context, userID int64, amount int64, description string) (*ApplyResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var result *ApplyResult
	err := runInTx(ctx, s.pool, s.repos, func(r *txRepos) error {
		user, err := r.users.ApplyDelta(ctx, userID, "", 0, amount)
		if err != nil {
			return mapUserErr(err)
		}
		var desc *string
		if description != "" {
			desc = &description
		}
		if _, err := r.ledger.Create(ctx, userID, amount, model.TxTypeManualAward, desc); err != nil {
			return err
		}
		result = &ApplyResult{User: user, CoinsEarned: amount}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
