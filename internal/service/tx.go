package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/AndreyDiak/muzloto-server/internal/repository"
)

// TxBeginner starts database transactions. *pgxpool.Pool satisfies it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// repos is the repository set a service is constructed with, bound to
// the pool. Services only populate the aggregates they touch.
type repos struct {
	users        *repository.UserRepository
	codes        *repository.CodeRepository
	events       *repository.EventRepository
	catalog      *repository.CatalogRepository
	achievements *repository.AchievementRepository
	ledger       *repository.LedgerRepository
	tokens       *repository.TransferTokenRepository
}

// txRepos is the same set rebound to one transaction. Every logical
// operation (redeem, purchase, claim, transfer) builds one of these so
// its mutations commit or roll back together.
type txRepos struct {
	users        *repository.UserRepository
	codes        *repository.CodeRepository
	events       *repository.EventRepository
	catalog      *repository.CatalogRepository
	achievements *repository.AchievementRepository
	ledger       *repository.LedgerRepository
	tokens       *repository.TransferTokenRepository
}

func (r repos) withTx(tx pgx.Tx) *txRepos {
	bound := &txRepos{}
	if r.users != nil {
		bound.users = r.users.WithTx(tx)
	}
	if r.codes != nil {
		bound.codes = r.codes.WithTx(tx)
	}
	if r.events != nil {
		bound.events = r.events.WithTx(tx)
	}
	if r.catalog != nil {
		bound.catalog = r.catalog.WithTx(tx)
	}
	if r.achievements != nil {
		bound.achievements = r.achievements.WithTx(tx)
	}
	if r.ledger != nil {
		bound.ledger = r.ledger.WithTx(tx)
	}
	if r.tokens != nil {
		bound.tokens = r.tokens.WithTx(tx)
	}
	return bound
}

// runInTx executes fn inside a transaction, committing on nil error and
// rolling back otherwise.
func runInTx(ctx context.Context, pool TxBeginner, base repos, fn func(r *txRepos) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(base.withTx(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
