package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/AndreyDiak/muzloto-server/internal/model"
	"github.com/AndreyDiak/muzloto-server/internal/repository"
)

// TransferService implements the scan-to-transfer flow: the sender
// issues a short-lived single-use token, the receiver's device scans
// it, and redeeming the token moves coins. Tokens live in the shared
// store so they survive restarts; expiry is enforced on consume and
// swept opportunistically on issue.
type TransferService struct {
	pool     TxBeginner
	repos    repos
	tokenTTL time.Duration
}

// NewTransferService creates a new TransferService instance.
func NewTransferService(
	pool TxBeginner,
	userRepo *repository.UserRepository,
	ledgerRepo *repository.LedgerRepository,
	tokenRepo *repository.TransferTokenRepository,
	tokenTTL time.Duration,
) *TransferService {
	if tokenTTL <= 0 {
		tokenTTL = 5 * time.Minute
	}
	return &TransferService{
		pool: pool,
		repos: repos{
			users:  userRepo,
			ledger: ledgerRepo,
			tokens: tokenRepo,
		},
		tokenTTL: tokenTTL,
	}
}

// IssueToken creates a transfer token for the sender. The sender's
// balance is checked up front so an obviously unfundable token is
// rejected early, but the authoritative check happens on redeem.
func (s *TransferService) IssueToken(ctx context.Context, fromUserID int64, amount int64) (*model.TransferToken, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	sender, err := s.repos.users.GetByID(ctx, fromUserID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	if sender.Coins < amount {
		return nil, ErrInsufficientBalance
	}

	// Opportunistic eviction keeps the table from accumulating dead
	// rows; failure here never blocks issuance.
	if _, err := s.repos.tokens.SweepExpired(ctx); err != nil {
		log.Warn().Err(err).Msg("Failed to sweep expired transfer tokens")
	}

	token := uuid.NewString()
	return s.repos.tokens.Create(ctx, token, fromUserID, amount, time.Now().Add(s.tokenTTL))
}

// RedeemToken consumes a token and moves its amount from the sender to
// the acting user. The delete-returning consume and both balance
// updates share one transaction, so a token can pay out at most once
// and a failed debit (sender spent the coins meanwhile) releases
// nothing.
func (s *TransferService) RedeemToken(ctx context.Context, token string, toUserID int64) (*model.User, error) {
	var receiver *model.User
	err := runInTx(ctx, s.pool, s.repos, func(r *txRepos) error {
		t, err := r.tokens.Consume(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrTokenNotFound) {
				return ErrTransferTokenInvalid
			}
			return err
		}

		if t.FromUserID == toUserID {
			return ErrSelfTransfer
		}

		if _, err := r.users.ApplyDelta(ctx, t.FromUserID, "", 0, -t.Amount); err != nil {
			return mapUserErr(err)
		}
		receiver, err = r.users.ApplyDelta(ctx, toUserID, "", 0, t.Amount)
		if err != nil {
			return mapUserErr(err)
		}

		outDesc := fmt.Sprintf("transfer to %d", toUserID)
		inDesc := fmt.Sprintf("transfer from %d", t.FromUserID)
		if _, err := r.ledger.Create(ctx, t.FromUserID, -t.Amount, model.TxTypeTransferOut, &outDesc); err != nil {
			return err
		}
		if _, err := r.ledger.Create(ctx, toUserID, t.Amount, model.TxTypeTransferIn, &inDesc); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return receiver, nil
}
