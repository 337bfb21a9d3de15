// Package model defines the data models for the muzloto loyalty backend.
package model

import "time"

// User represents a Telegram user participating in the loyalty program.
type User struct {
	TelegramID          int64     `db:"telegram_id"`
	Username            string    `db:"username"`
	Coins               int64     `db:"coins"`
	GamesVisited        int       `db:"games_visited"`
	TicketsPurchased    int       `db:"tickets_purchased"`
	BingoCollected      int       `db:"bingo_collected"`
	VisitRewardsClaimed int       `db:"visit_rewards_claimed"`
	CreatedAt           time.Time `db:"created_at"`
	UpdatedAt           time.Time `db:"updated_at"`
}

// Namespace categorizes a code and determines what redeeming it grants.
type Namespace string

// Code namespaces.
const (
	NamespaceRegistration Namespace = "registration"
	NamespacePurchase     Namespace = "purchase"
	NamespacePrize        Namespace = "prize"
)

// Code is a short one-time redemption right. A code is never deleted;
// redemption sets UsedAt/UsedBy and the row stays as an audit record.
type Code struct {
	ID            int64      `db:"id"`
	Value         string     `db:"value"`
	Namespace     Namespace  `db:"namespace"`
	EventID       *int64     `db:"event_id"`
	CatalogItemID *int64     `db:"catalog_item_id"`
	CoinsAmount   *int64     `db:"coins_amount"`
	UsedAt        *time.Time `db:"used_at"`
	UsedBy        *int64     `db:"used_by"`
	CreatedBy     *int64     `db:"created_by"`
	CreatedAt     time.Time  `db:"created_at"`
}

// Used reports whether the code has already been redeemed.
func (c *Code) Used() bool {
	return c.UsedAt != nil
}

// Event represents a live music-bingo event guests register for.
type Event struct {
	ID        int64     `db:"id"`
	Title     string    `db:"title"`
	StartsAt  time.Time `db:"starts_at"`
	Timezone  string    `db:"timezone"`
	CreatedAt time.Time `db:"created_at"`
}

// Over reports whether the event date has passed relative to now in the
// event's configured timezone. A bad timezone falls back to UTC.
func (e *Event) Over(now time.Time) bool {
	loc, err := time.LoadLocation(e.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := e.StartsAt.In(loc)
	y1, m1, d1 := start.Date()
	y2, m2, d2 := local.Date()
	if y1 != y2 {
		return y2 > y1
	}
	if m1 != m2 {
		return m2 > m1
	}
	return d2 > d1
}

// Registration ties a user to an event. At most one row exists per
// (event_id, user_id) pair.
type Registration struct {
	ID           int64     `db:"id"`
	EventID      int64     `db:"event_id"`
	UserID       int64     `db:"user_id"`
	RegisteredAt time.Time `db:"registered_at"`
}

// CatalogItem is a product purchasable with coins.
type CatalogItem struct {
	ID        int64     `db:"id"`
	Title     string    `db:"title"`
	Price     int64     `db:"price"`
	Active    bool      `db:"active"`
	CreatedAt time.Time `db:"created_at"`
}

// AchievementUnlock records that a user reached an achievement
// threshold. Unlocking and claiming the coin bonus are two separate
// write-once transitions.
type AchievementUnlock struct {
	UserID          int64      `db:"user_id"`
	Slug            string     `db:"slug"`
	UnlockedAt      time.Time  `db:"unlocked_at"`
	RewardClaimedAt *time.Time `db:"reward_claimed_at"`
}

// LedgerEntry is a single coin balance mutation record.
type LedgerEntry struct {
	ID          int64     `db:"id"`
	UserID      int64     `db:"user_id"`
	Amount      int64     `db:"amount"`
	Type        string    `db:"type"`
	Description *string   `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
}

// TransferToken is a short-lived single-use token for the
// scan-to-transfer flow. Expired tokens are evicted lazily on read.
type TransferToken struct {
	Token      string    `db:"token"`
	FromUserID int64     `db:"from_user_id"`
	Amount     int64     `db:"amount"`
	ExpiresAt  time.Time `db:"expires_at"`
	CreatedAt  time.Time `db:"created_at"`
}

// Ledger entry types for categorizing balance changes.
const (
	TxTypeVisitReward      = "visit_reward"      // Event registration reward
	TxTypePurchase         = "purchase"          // Catalog item purchase (debit)
	TxTypeBingoWin         = "bingo_win"         // Bingo prize credit
	TxTypeAchievementBonus = "achievement_bonus" // One-time achievement payout
	TxTypeMilestoneReward  = "milestone_reward"  // Repeating visit milestone payout
	TxTypeTransferOut      = "transfer_out"      // Scan-to-transfer debit
	TxTypeTransferIn       = "transfer_in"       // Scan-to-transfer credit
	TxTypeManualAward      = "manual_award"      // Admin-granted coins
)

// CodeTarget is the resolved grant behind a redeemed code. Exactly one
// of the variants is non-nil.
type CodeTarget struct {
	Registration *RegistrationTarget
	Purchase     *PurchaseTarget
	Prize        *PrizeTarget
}

// RegistrationTarget grants registration to an event.
type RegistrationTarget struct {
	Event *Event
}

// PurchaseTarget grants a catalog item purchase.
type PurchaseTarget struct {
	Item *CatalogItem
}

// PrizeTarget grants a fixed coin amount.
type PrizeTarget struct {
	Coins int64
}
