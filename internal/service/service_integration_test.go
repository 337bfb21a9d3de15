// End-to-end service tests against a real PostgreSQL instance via
// testcontainers-go. Skipped when Docker is unavailable.
package service

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/AndreyDiak/muzloto-server/internal/code"
	"github.com/AndreyDiak/muzloto-server/internal/config"
	"github.com/AndreyDiak/muzloto-server/internal/model"
	"github.com/AndreyDiak/muzloto-server/internal/repository"
)

func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// env bundles everything a service test needs against one database.
type env struct {
	pool         *pgxpool.Pool
	users        *repository.UserRepository
	codes        *repository.CodeRepository
	events       *repository.EventRepository
	catalog      *repository.CatalogRepository
	achievements *repository.AchievementRepository
	ledgerRepo   *repository.LedgerRepository
	tokens       *repository.TransferTokenRepository

	accounts    *AccountService
	evaluator   *AchievementService
	ledger      *LedgerService
	redemptions *RedemptionService
	issuer      *IssuerService
	transfers   *TransferService
}

func setupEnv(t *testing.T) (*env, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, applySchema(ctx, pool))

	e := &env{
		pool:         pool,
		users:        repository.NewUserRepository(pool),
		codes:        repository.NewCodeRepository(pool),
		events:       repository.NewEventRepository(pool),
		catalog:      repository.NewCatalogRepository(pool),
		achievements: repository.NewAchievementRepository(pool),
		ledgerRepo:   repository.NewLedgerRepository(pool),
		tokens:       repository.NewTransferTokenRepository(pool),
	}
	e.accounts = NewAccountService(e.users, e.ledgerRepo)
	e.evaluator = NewAchievementService(pool, e.users, e.achievements, e.ledgerRepo,
		config.DefaultAchievements(), 5, 200)
	e.ledger = NewLedgerService(pool, e.users, e.catalog, e.achievements, e.ledgerRepo,
		e.evaluator, 100, 300)
	e.redemptions = NewRedemptionService(pool, e.users, e.codes, e.events, e.catalog,
		e.achievements, e.ledgerRepo, e.ledger)
	e.issuer = NewIssuerService(e.codes, false, 25)
	e.transfers = NewTransferService(pool, e.users, e.ledgerRepo, e.tokens, 5*time.Minute)

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}
	return e, cleanup
}

func applySchema(ctx context.Context, pool *pgxpool.Pool) error {
	statements := []string{
		`CREATE TABLE users (
			telegram_id BIGINT PRIMARY KEY,
			username VARCHAR(255) NOT NULL DEFAULT '',
			coins BIGINT NOT NULL DEFAULT 0,
			games_visited INT NOT NULL DEFAULT 0,
			tickets_purchased INT NOT NULL DEFAULT 0,
			bingo_collected INT NOT NULL DEFAULT 0,
			visit_rewards_claimed INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE events (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			starts_at TIMESTAMPTZ NOT NULL,
			timezone TEXT NOT NULL DEFAULT 'UTC',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE catalog_items (
			id BIGSERIAL PRIMARY KEY,
			title TEXT NOT NULL,
			price BIGINT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE codes (
			id BIGSERIAL PRIMARY KEY,
			value VARCHAR(16) NOT NULL UNIQUE,
			namespace VARCHAR(32) NOT NULL,
			event_id BIGINT REFERENCES events(id),
			catalog_item_id BIGINT REFERENCES catalog_items(id),
			coins_amount BIGINT,
			used_at TIMESTAMPTZ,
			used_by BIGINT,
			created_by BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE registrations (
			id BIGSERIAL PRIMARY KEY,
			event_id BIGINT NOT NULL REFERENCES events(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			registered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (event_id, user_id)
		)`,
		`CREATE TABLE achievements (
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			slug VARCHAR(64) NOT NULL,
			unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			reward_claimed_at TIMESTAMPTZ,
			PRIMARY KEY (user_id, slug)
		)`,
		`CREATE TABLE ledger_entries (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			type VARCHAR(50) NOT NULL,
			description TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE transfer_tokens (
			token VARCHAR(64) PRIMARY KEY,
			from_user_id BIGINT NOT NULL REFERENCES users(telegram_id) ON DELETE CASCADE,
			amount BIGINT NOT NULL,
			expires_at TIMESTAMPTZ NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (e *env) newUser(t *testing.T, id int64) *model.User {
	t.Helper()
	user, err := e.users.Create(context.Background(), id, "user")
	require.NoError(t, err)
	return user
}

func (e *env) futureEvent(t *testing.T) *model.Event {
	t.Helper()
	event, err := e.events.Create(context.Background(), "Музлото", time.Now().Add(24*time.Hour), "UTC")
	require.NoError(t, err)
	return event
}

// ============================================================================
// Registration redemption
// ============================================================================

func TestRedeemRegistration(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	event := e.futureEvent(t)
	c, err := e.issuer.IssueRegistration(ctx, event.ID, nil)
	require.NoError(t, err)

	result, err := e.redemptions.RedeemRegistration(ctx, c.Value, 100)
	require.NoError(t, err)

	// Visit reward plus the auto-paid first-visit bonus land together
	assert.Equal(t, 1, result.User.GamesVisited)
	assert.Equal(t, int64(100), result.User.Coins-autoPaidSum(result.Unlocked))
	require.NotNil(t, result.Registration)
	assert.Equal(t, event.ID, result.Registration.EventID)

	// Ledger stays consistent with the balance
	sum, err := e.ledgerRepo.SumByUser(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, result.User.Coins, sum)
}

func autoPaidSum(unlocked []config.AchievementDef) int64 {
	var sum int64
	for _, def := range unlocked {
		if def.AutoPay {
			sum += def.Reward
		}
	}
	return sum
}

func TestRedeemRegistration_Replay(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	e.newUser(t, 200)
	event := e.futureEvent(t)
	c, err := e.issuer.IssueRegistration(ctx, event.ID, nil)
	require.NoError(t, err)

	_, err = e.redemptions.RedeemRegistration(ctx, c.Value, 100)
	require.NoError(t, err)

	// Same code again: used wins over "already registered" for another user
	_, err = e.redemptions.RedeemRegistration(ctx, c.Value, 200)
	assert.ErrorIs(t, err, ErrCodeAlreadyUsed)

	// The registered user replaying a fresh code for the same event
	c2, err := e.issuer.IssueRegistration(ctx, event.ID, nil)
	require.NoError(t, err)
	_, err = e.redemptions.RedeemRegistration(ctx, c2.Value, 100)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	// The rejected attempt consumed nothing
	fresh, err := e.codes.GetByValue(ctx, c2.Value)
	require.NoError(t, err)
	assert.False(t, fresh.Used())

	// And no second visit was counted
	user, err := e.users.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, user.GamesVisited)
}

func TestRedeemRegistration_EventOver(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	event, err := e.events.Create(ctx, "Прошедшая игра", time.Now().Add(-48*time.Hour), "UTC")
	require.NoError(t, err)
	c, err := e.issuer.IssueRegistration(ctx, event.ID, nil)
	require.NoError(t, err)

	_, err = e.redemptions.RedeemRegistration(ctx, c.Value, 100)
	assert.ErrorIs(t, err, ErrEventOver)

	stored, err := e.codes.GetByValue(ctx, c.Value)
	require.NoError(t, err)
	assert.False(t, stored.Used())
}

func TestRedeemRegistration_TestCode(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)

	// The fixed test code pays the visit reward and never persists
	result, err := e.redemptions.RedeemRegistration(ctx, code.TestRegistrationValue, 100)
	require.NoError(t, err)
	assert.Nil(t, result.Code)
	assert.Equal(t, 1, result.User.GamesVisited)

	// It keeps working
	result, err = e.redemptions.RedeemRegistration(ctx, code.TestRegistrationValue, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, result.User.GamesVisited)

	_, err = e.codes.GetByValue(ctx, code.TestRegistrationValue)
	assert.ErrorIs(t, err, repository.ErrCodeNotFound)
}

func TestRedeemRegistration_BadFormat(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()

	_, err := e.redemptions.RedeemRegistration(context.Background(), "nope", 100)
	assert.ErrorIs(t, err, ErrInvalidCodeFormat)

	_, err = e.redemptions.RedeemRegistration(context.Background(), "ZZZZZ", 100)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

// ============================================================================
// Purchase redemption
// ============================================================================

func TestRedeemPurchaseCode(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	_, err := e.users.Credit(ctx, 100, 500)
	require.NoError(t, err)

	item, err := e.catalog.Create(ctx, "Пиво", 50)
	require.NoError(t, err)
	c, err := e.issuer.IssuePurchase(ctx, item.ID, nil)
	require.NoError(t, err)

	result, err := e.redemptions.RedeemPurchaseCode(ctx, c.Value, 100)
	require.NoError(t, err)
	require.NotNil(t, result.Item)
	assert.Equal(t, item.ID, result.Item.ID)
	assert.Equal(t, 1, result.User.TicketsPurchased)
	// 500 - 50 plus the auto-paid first-purchase bonus
	assert.Equal(t, int64(450)+autoPaidSum(result.Unlocked), result.User.Coins)

	// A used purchase code is dead
	_, err = e.redemptions.RedeemPurchaseCode(ctx, c.Value, 100)
	assert.ErrorIs(t, err, ErrCodeAlreadyUsed)
}

func TestRedeemPurchaseCode_Concurrent(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	_, err := e.users.Credit(ctx, 100, 500)
	require.NoError(t, err)

	item, err := e.catalog.Create(ctx, "Пиво", 50)
	require.NoError(t, err)
	c, err := e.issuer.IssuePurchase(ctx, item.ID, nil)
	require.NoError(t, err)

	// Two redemptions of one code race; the used_at guard on the code
	// row must let exactly one through.
	start := make(chan struct{})
	type outcome struct {
		result *RedemptionResult
		err    error
	}
	outcomes := make(chan outcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			result, err := e.redemptions.RedeemPurchaseCode(ctx, c.Value, 100)
			outcomes <- outcome{result, err}
		}()
	}
	close(start)

	var won *RedemptionResult
	var conflicts int
	for i := 0; i < 2; i++ {
		o := <-outcomes
		switch {
		case o.err == nil:
			won = o.result
		case errors.Is(o.err, ErrCodeAlreadyUsed):
			conflicts++
		default:
			t.Fatalf("unexpected redemption error: %v", o.err)
		}
	}
	require.NotNil(t, won, "one redemption must succeed")
	assert.Equal(t, 1, conflicts)

	// The purchase debited and counted exactly once
	user, err := e.users.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, user.TicketsPurchased)
	assert.Equal(t, int64(450)+autoPaidSum(won.Unlocked), user.Coins)
}

func TestRedeemPurchaseCode_InsufficientBalance(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100) // zero balance
	item, err := e.catalog.Create(ctx, "Футболка", 200)
	require.NoError(t, err)
	c, err := e.issuer.IssuePurchase(ctx, item.ID, nil)
	require.NoError(t, err)

	_, err = e.redemptions.RedeemPurchaseCode(ctx, c.Value, 100)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// Failed purchase leaves the code unused and the counter untouched
	stored, err := e.codes.GetByValue(ctx, c.Value)
	require.NoError(t, err)
	assert.False(t, stored.Used())

	user, err := e.users.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, user.TicketsPurchased)
	assert.Equal(t, int64(0), user.Coins)
}

func TestApplyPurchase_Direct(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	_, err := e.users.Credit(ctx, 100, 100)
	require.NoError(t, err)
	item, err := e.catalog.Create(ctx, "Пиво", 50)
	require.NoError(t, err)

	receipt, err := e.ledger.ApplyPurchase(ctx, 100, item.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, receipt.User.TicketsPurchased)

	_, err = e.ledger.ApplyPurchase(ctx, 100, 99999)
	assert.ErrorIs(t, err, ErrTargetNotFound)
}

// ============================================================================
// Prize redemption
// ============================================================================

func TestRedeemPrize(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	amount := int64(500)
	c, err := e.issuer.IssuePrize(ctx, &amount, nil)
	require.NoError(t, err)

	result, err := e.redemptions.RedeemPrize(ctx, c.Value, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, result.User.BingoCollected)
	require.NotNil(t, result.Target.Prize)
	assert.Equal(t, int64(500), result.Target.Prize.Coins)

	_, err = e.redemptions.RedeemPrize(ctx, c.Value, 100)
	assert.ErrorIs(t, err, ErrCodeAlreadyUsed)
}

func TestRedeemPrize_DefaultAmount(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	c, err := e.issuer.IssuePrize(ctx, nil, nil)
	require.NoError(t, err)

	result, err := e.redemptions.RedeemPrize(ctx, c.Value, 100)
	require.NoError(t, err)
	require.NotNil(t, result.Target.Prize)
	assert.Equal(t, int64(300), result.Target.Prize.Coins) // configured default
}

// ============================================================================
// Unscoped dispatch
// ============================================================================

func TestRedeem_Dispatch(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	event := e.futureEvent(t)
	c, err := e.issuer.IssueRegistration(ctx, event.ID, nil)
	require.NoError(t, err)

	// The stored namespace decides, not the value's shape
	result, err := e.redemptions.Redeem(ctx, c.Value, 100)
	require.NoError(t, err)
	require.NotNil(t, result.Registration)

	_, err = e.redemptions.Redeem(ctx, "ZZZZZ", 100)
	assert.ErrorIs(t, err, ErrCodeNotFound)
}

// ============================================================================
// Achievements
// ============================================================================

func TestAchievements_ClaimFlow(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)

	// First visit unlocks the claimable first-visit achievement
	_, err := e.ledger.ApplyVisitReward(ctx, 100)
	require.NoError(t, err)

	statuses, err := e.evaluator.ListWithStatus(ctx, 100)
	require.NoError(t, err)
	var firstVisit *AchievementStatus
	for i := range statuses {
		if statuses[i].Def.Counter == config.CounterVisits && statuses[i].Def.Threshold == 1 {
			firstVisit = &statuses[i]
		}
	}
	require.NotNil(t, firstVisit)
	assert.True(t, firstVisit.Unlocked)
	assert.False(t, firstVisit.Claimed)

	before, err := e.users.GetByID(ctx, 100)
	require.NoError(t, err)

	claim, err := e.evaluator.Claim(ctx, 100, firstVisit.Def.Slug)
	require.NoError(t, err)
	assert.Equal(t, firstVisit.Def.Reward, claim.CoinsEarned)
	assert.Equal(t, before.Coins+firstVisit.Def.Reward, claim.User.Coins)

	// Double claim pays nothing
	_, err = e.evaluator.Claim(ctx, 100, firstVisit.Def.Slug)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)

	// Locked and unknown achievements are rejected
	_, err = e.evaluator.Claim(ctx, 100, "bingo_master")
	assert.ErrorIs(t, err, ErrNotUnlocked)
	_, err = e.evaluator.Claim(ctx, 100, "no_such_slug")
	assert.ErrorIs(t, err, ErrUnknownAchievement)
}

func TestAchievements_AutoPayOnce(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	_, err := e.users.Credit(ctx, 100, 1000)
	require.NoError(t, err)
	item, err := e.catalog.Create(ctx, "Пиво", 10)
	require.NoError(t, err)

	first, err := e.ledger.ApplyPurchase(ctx, 100, item.ID)
	require.NoError(t, err)
	assert.NotZero(t, first.BonusEarned) // first-purchase bonus auto-pays

	second, err := e.ledger.ApplyPurchase(ctx, 100, item.ID)
	require.NoError(t, err)
	assert.Zero(t, second.BonusEarned) // threshold already consumed

	// The auto-paid achievement cannot be claimed again by hand
	require.NotEmpty(t, first.Unlocked)
	_, err = e.evaluator.Claim(ctx, 100, first.Unlocked[0].Slug)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestMilestone_ClaimFlow(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)

	// Below the interval there is nothing to claim
	_, err := e.evaluator.ClaimVisitReward(ctx, 100)
	assert.ErrorIs(t, err, ErrMilestoneNotReached)

	for i := 0; i < 5; i++ {
		_, err := e.ledger.ApplyVisitReward(ctx, 100)
		require.NoError(t, err)
	}

	user, err := e.users.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.True(t, e.evaluator.VisitRewardPending(user))

	claim, err := e.evaluator.ClaimVisitReward(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(200), claim.CoinsEarned)
	assert.Equal(t, 1, claim.User.VisitRewardsClaimed)

	// The interval is consumed
	_, err = e.evaluator.ClaimVisitReward(ctx, 100)
	assert.ErrorIs(t, err, ErrMilestoneNotReached)
}

func TestMilestone_ConcurrentClaim(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	for i := 0; i < 5; i++ {
		_, err := e.ledger.ApplyVisitReward(ctx, 100)
		require.NoError(t, err)
	}

	// One interval of progress, two simultaneous claims: the guard in
	// the claim update must pay exactly once.
	start := make(chan struct{})
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() {
			<-start
			_, err := e.evaluator.ClaimVisitReward(ctx, 100)
			errs <- err
		}()
	}
	close(start)

	var paid, rejected int
	for i := 0; i < 2; i++ {
		switch err := <-errs; {
		case err == nil:
			paid++
		case errors.Is(err, ErrMilestoneNotReached):
			rejected++
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	assert.Equal(t, 1, paid)
	assert.Equal(t, 1, rejected)

	user, err := e.users.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, user.VisitRewardsClaimed)
	assert.Equal(t, int64(700), user.Coins) // 5 visit rewards + one milestone
}

// ============================================================================
// Transfers
// ============================================================================

func TestTransfer_EndToEnd(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	e.newUser(t, 200)
	_, err := e.users.Credit(ctx, 100, 500)
	require.NoError(t, err)

	token, err := e.transfers.IssueToken(ctx, 100, 150)
	require.NoError(t, err)

	receiver, err := e.transfers.RedeemToken(ctx, token.Token, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(150), receiver.Coins)

	sender, err := e.users.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(350), sender.Coins)

	// Token is single use
	_, err = e.transfers.RedeemToken(ctx, token.Token, 200)
	assert.ErrorIs(t, err, ErrTransferTokenInvalid)

	// Both sides of the move are on the books
	sum100, err := e.ledgerRepo.SumByUser(ctx, 100)
	require.NoError(t, err)
	sum200, err := e.ledgerRepo.SumByUser(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(-150), sum100)
	assert.Equal(t, int64(150), sum200)
}

func TestTransfer_SenderSpentMeanwhile(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	e.newUser(t, 200)
	_, err := e.users.Credit(ctx, 100, 200)
	require.NoError(t, err)

	token, err := e.transfers.IssueToken(ctx, 100, 150)
	require.NoError(t, err)

	// Sender spends the coins before the token is redeemed
	_, err = e.users.Debit(ctx, 100, 100)
	require.NoError(t, err)

	_, err = e.transfers.RedeemToken(ctx, token.Token, 200)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	// The failed redeem moved nothing
	receiver, err := e.users.GetByID(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(0), receiver.Coins)
}

func TestTransfer_Guards(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	e.newUser(t, 100)
	_, err := e.users.Credit(ctx, 100, 500)
	require.NoError(t, err)

	_, err = e.transfers.IssueToken(ctx, 100, 0)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = e.transfers.IssueToken(ctx, 100, 501)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	token, err := e.transfers.IssueToken(ctx, 100, 50)
	require.NoError(t, err)
	_, err = e.transfers.RedeemToken(ctx, token.Token, 100)
	assert.ErrorIs(t, err, ErrSelfTransfer)
}

// ============================================================================
// Issuer
// ============================================================================

func TestIssuer_Namespaces(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	event := e.futureEvent(t)
	item, err := e.catalog.Create(ctx, "Пиво", 50)
	require.NoError(t, err)

	reg, err := e.issuer.IssueRegistration(ctx, event.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.NamespaceRegistration, reg.Namespace)
	assert.True(t, code.Valid(reg.Value))

	pur, err := e.issuer.IssuePurchase(ctx, item.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.NamespacePurchase, pur.Namespace)

	prize, err := e.issuer.IssuePrize(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, model.NamespacePrize, prize.Namespace)
	assert.Equal(t, code.PrizePrefix, prize.Value[:1])
}

// ============================================================================
// Scanner
// ============================================================================

func TestScanner_DispatchForms(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	scanner := NewScannerService(e.redemptions)

	e.newUser(t, 100)
	event := e.futureEvent(t)
	reg, err := e.issuer.IssueRegistration(ctx, event.ID, nil)
	require.NoError(t, err)

	// Bare value resolves the namespace from the stored code
	result, err := scanner.Scan(ctx, reg.Value, 100)
	require.NoError(t, err)
	assert.NotNil(t, result.Redemption.Registration)
	assert.Equal(t, int64(100), result.Participant.TelegramID)

	// shop- payload goes straight to the purchase flow, case-folded
	item, err := e.catalog.Create(ctx, "Футболка", 50)
	require.NoError(t, err)
	pur, err := e.issuer.IssuePurchase(ctx, item.ID, nil)
	require.NoError(t, err)

	result, err = scanner.Scan(ctx, "shop-"+strings.ToLower(pur.Value), 100)
	require.NoError(t, err)
	require.NotNil(t, result.Redemption.Item)
	assert.Equal(t, item.ID, result.Redemption.Item.ID)

	// Deep-link URL form carries a prize code
	amount := int64(70)
	prize, err := e.issuer.IssuePrize(ctx, &amount, nil)
	require.NoError(t, err)

	result, err = scanner.Scan(ctx, "https://t.me/muzlotobot?startapp="+prize.Value, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(70), result.Redemption.CoinsEarned)

	_, err = scanner.Scan(ctx, "not a code", 100)
	assert.ErrorIs(t, err, ErrInvalidCodeFormat)
}

// ============================================================================
// Accounts
// ============================================================================

func TestAccountService_EnsureUser(t *testing.T) {
	e, cleanup := setupEnv(t)
	defer cleanup()
	ctx := context.Background()

	user, err := e.accounts.EnsureUser(ctx, 100, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(0), user.Coins)

	// Username follows the Telegram profile
	user, err = e.accounts.EnsureUser(ctx, 100, "alice_new")
	require.NoError(t, err)
	assert.Equal(t, "alice_new", user.Username)

	stored, err := e.users.GetByID(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, "alice_new", stored.Username)
}
