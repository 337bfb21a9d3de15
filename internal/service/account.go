package service

import (
	"context"

	"github.com/AndreyDiak/muzloto-server/internal/model"
	"github.com/AndreyDiak/muzloto-server/internal/repository"
)

// AccountService covers the profile surface: ensuring a row exists for
// a Telegram identity and reading balance and history back.
type AccountService struct {
	users  *repository.UserRepository
	ledger *repository.LedgerRepository
}

// NewAccountService creates a new AccountService instance.
func NewAccountService(userRepo *repository.UserRepository, ledgerRepo *repository.LedgerRepository) *AccountService {
	return &AccountService{users: userRepo, ledger: ledgerRepo}
}

// EnsureUser returns the user for a Telegram identity, creating the row
// with a zero balance on first contact. The stored username follows the
// Telegram profile on subsequent logins.
func (s *AccountService) EnsureUser(ctx context.Context, telegramID int64, username string) (*model.User, error) {
	user, created, err := s.users.GetOrCreate(ctx, telegramID, username)
	if err != nil {
		return nil, mapUserErr(err)
	}
	if !created && username != "" && user.Username != username {
		if err := s.users.UpdateUsername(ctx, telegramID, username); err != nil {
			return nil, mapUserErr(err)
		}
		user.Username = username
	}
	return user, nil
}

// GetUser returns the user by Telegram ID.
func (s *AccountService) GetUser(ctx context.Context, telegramID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, telegramID)
	if err != nil {
		return nil, mapUserErr(err)
	}
	return user, nil
}

// History returns the user's ledger entries, newest first.
func (s *AccountService) History(ctx context.Context, telegramID int64, limit int) ([]*model.LedgerEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.ledger.ListByUser(ctx, telegramID, limit)
}
