package service

import (
	"context"
	"errors"
	"time"

	"github.com/AndreyDiak/muzloto-server/internal/code"
	"github.com/AndreyDiak/muzloto-server/internal/config"
	"github.com/AndreyDiak/muzloto-server/internal/model"
	"github.com/AndreyDiak/muzloto-server/internal/repository"
)

// RedemptionResult describes a completed redemption: what the code
// granted, the acting user's post-redemption state and everything
// earned along the way.
type RedemptionResult struct {
	Code         *model.Code // nil for the fixed test codes
	Target       model.CodeTarget
	User         *model.User
	CoinsEarned  int64
	Unlocked     []config.AchievementDef
	Registration *model.Registration
	Item         *model.CatalogItem
}

// RedemptionService owns the at-most-once unused->used transition.
// Each redemption runs in one transaction: the conditional mark-used
// update and the paired ledger mutation commit together or not at all,
// so a concurrent duplicate or a mid-flight failure can never leave a
// consumed code without its reward or vice versa.
type RedemptionService struct {
	pool   TxBeginner
	repos  repos
	ledger *LedgerService
	now    func() time.Time
}

// NewRedemptionService creates a new RedemptionService instance.
func NewRedemptionService(
	pool TxBeginner,
	userRepo *repository.UserRepository,
	codeRepo *repository.CodeRepository,
	eventRepo *repository.EventRepository,
	catalogRepo *repository.CatalogRepository,
	achievementRepo *repository.AchievementRepository,
	ledgerRepo *repository.LedgerRepository,
	ledger *LedgerService,
) *RedemptionService {
	return &RedemptionService{
		pool: pool,
		repos: repos{
			users:        userRepo,
			codes:        codeRepo,
			events:       eventRepo,
			catalog:      catalogRepo,
			achievements: achievementRepo,
			ledger:       ledgerRepo,
		},
		ledger: ledger,
		now:    time.Now,
	}
}

// RedeemRegistration redeems an event registration code for the acting
// user: marks the code used, inserts the registration row and applies
// the visit reward, all in one transaction.
func (s *RedemptionService) RedeemRegistration(ctx context.Context, value string, userID int64) (*RedemptionResult, error) {
	if !code.Valid(value) {
		return nil, ErrInvalidCodeFormat
	}

	// The fixed test code always succeeds and consumes nothing.
	if value == code.TestRegistrationValue {
		applied, err := s.ledger.ApplyVisitReward(ctx, userID)
		if err != nil {
			return nil, err
		}
		return &RedemptionResult{
			User:        applied.User,
			CoinsEarned: applied.CoinsEarned,
			Unlocked:    applied.Unlocked,
		}, nil
	}

	var result *RedemptionResult
	err := runInTx(ctx, s.pool, s.repos, func(r *txRepos) error {
		c, err := r.codes.GetByValueInNamespace(ctx, value, model.NamespaceRegistration)
		if err != nil {
			return mapCodeErr(err)
		}
		if c.Used() {
			return ErrCodeAlreadyUsed
		}

		// Resolve the target before mutating anything: a dangling event
		// reference leaves the code redeemable once the data is fixed.
		if c.EventID == nil {
			return ErrTargetNotFound
		}
		event, err := r.events.GetByID(ctx, *c.EventID)
		if err != nil {
			if errors.Is(err, repository.ErrEventNotFound) {
				return ErrTargetNotFound
			}
			return err
		}
		if event.Over(s.now()) {
			return ErrEventOver
		}

		// Second idempotency boundary: a user replaying a still-valid
		// code after registering by another path must not consume it.
		registered, err := r.events.IsRegistered(ctx, event.ID, userID)
		if err != nil {
			return err
		}
		if registered {
			return ErrAlreadyRegistered
		}

		marked, err := r.codes.MarkUsed(ctx, c.ID, userID)
		if err != nil {
			return err
		}
		if !marked {
			return ErrCodeAlreadyUsed
		}

		reg, err := r.events.CreateRegistration(ctx, event.ID, userID)
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateRegistration) {
				return ErrAlreadyRegistered
			}
			return err
		}

		applied, err := s.ledger.applyVisitRewardTx(ctx, r, userID)
		if err != nil {
			return err
		}

		result = &RedemptionResult{
			Code:         c,
			Target:       model.CodeTarget{Registration: &model.RegistrationTarget{Event: event}},
			User:         applied.User,
			CoinsEarned:  applied.CoinsEarned,
			Unlocked:     applied.Unlocked,
			Registration: reg,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RedeemPurchaseCode redeems a purchase code: resolves the catalog
// item, verifies the balance covers the price, then marks the code
// used and debits in the same transaction.
func (s *RedemptionService) RedeemPurchaseCode(ctx context.Context, value string, userID int64) (*RedemptionResult, error) {
	if !code.Valid(value) {
		return nil, ErrInvalidCodeFormat
	}

	var result *RedemptionResult
	err := runInTx(ctx, s.pool, s.repos, func(r *txRepos) error {
		c, err := r.codes.GetByValueInNamespace(ctx, value, model.NamespacePurchase)
		if err != nil {
			return mapCodeErr(err)
		}
		if c.Used() {
			return ErrCodeAlreadyUsed
		}

		if c.CatalogItemID == nil {
			return ErrTargetNotFound
		}
		item, err := r.catalog.GetByID(ctx, *c.CatalogItemID)
		if err != nil {
			if errors.Is(err, repository.ErrItemNotFound) {
				return ErrTargetNotFound
			}
			return err
		}

		// Fail before the mark-used update so an underfunded attempt
		// leaves the code redeemable.
		user, err := r.users.GetByID(ctx, userID)
		if err != nil {
			return mapUserErr(err)
		}
		if user.Coins < item.Price {
			return ErrInsufficientBalance
		}

		marked, err := r.codes.MarkUsed(ctx, c.ID, userID)
		if err != nil {
			return err
		}
		if !marked {
			return ErrCodeAlreadyUsed
		}

		receipt, err := s.ledger.applyPurchaseTx(ctx, r, userID, item)
		if err != nil {
			return err
		}

		result = &RedemptionResult{
			Code:        c,
			Target:      model.CodeTarget{Purchase: &model.PurchaseTarget{Item: item}},
			User:        receipt.User,
			CoinsEarned: receipt.BonusEarned,
			Unlocked:    receipt.Unlocked,
			Item:        item,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RedeemPrize redeems a bingo prize code, crediting either the code's
// override amount or the configured default.
func (s *RedemptionService) RedeemPrize(ctx context.Context, value string, userID int64) (*RedemptionResult, error) {
	if !code.Valid(value) {
		return nil, ErrInvalidCodeFormat
	}

	// The fixed test prize always pays the default reward.
	if value == code.TestPrizeValue {
		applied, err := s.ledger.ApplyBingoWin(ctx, userID, s.ledger.BingoDefault())
		if err != nil {
			return nil, err
		}
		return &RedemptionResult{
			Target:      model.CodeTarget{Prize: &model.PrizeTarget{Coins: s.ledger.BingoDefault()}},
			User:        applied.User,
			CoinsEarned: applied.CoinsEarned,
			Unlocked:    applied.Unlocked,
		}, nil
	}

	var result *RedemptionResult
	err := runInTx(ctx, s.pool, s.repos, func(r *txRepos) error {
		c, err := r.codes.GetByValueInNamespace(ctx, value, model.NamespacePrize)
		if err != nil {
			return mapCodeErr(err)
		}
		if c.Used() {
			return ErrCodeAlreadyUsed
		}

		amount := s.ledger.BingoDefault()
		if c.CoinsAmount != nil {
			amount = *c.CoinsAmount
		}

		marked, err := r.codes.MarkUsed(ctx, c.ID, userID)
		if err != nil {
			return err
		}
		if !marked {
			return ErrCodeAlreadyUsed
		}

		applied, err := s.ledger.applyBingoWinTx(ctx, r, userID, amount)
		if err != nil {
			return err
		}

		result = &RedemptionResult{
			Code:        c,
			Target:      model.CodeTarget{Prize: &model.PrizeTarget{Coins: amount}},
			User:        applied.User,
			CoinsEarned: applied.CoinsEarned,
			Unlocked:    applied.Unlocked,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Redeem resolves a code whose namespace is not known ahead of time
// (the staff scanner path) with an unscoped lookup, then dispatches to
// the matching namespace's redemption.
func (s *RedemptionService) Redeem(ctx context.Context, value string, userID int64) (*RedemptionResult, error) {
	if !code.Valid(value) {
		return nil, ErrInvalidCodeFormat
	}

	switch value {
	case code.TestRegistrationValue:
		return s.RedeemRegistration(ctx, value, userID)
	case code.TestPrizeValue:
		return s.RedeemPrize(ctx, value, userID)
	}

	c, err := s.repos.codes.GetByValue(ctx, value)
	if err != nil {
		return nil, mapCodeErr(err)
	}

	switch c.Namespace {
	case model.NamespaceRegistration:
		return s.RedeemRegistration(ctx, value, userID)
	case model.NamespacePurchase:
		return s.RedeemPurchaseCode(ctx, value, userID)
	case model.NamespacePrize:
		return s.RedeemPrize(ctx, value, userID)
	default:
		return nil, ErrCodeNotFound
	}
}

func mapCodeErr(err error) error {
	if errors.Is(err, repository.ErrCodeNotFound) {
		return ErrCodeNotFound
	}
	return err
}
