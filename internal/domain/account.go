package domain

import "time"

// OwnerType identifies who an account belongs to.
type OwnerType string

const (
	OwnerTypePlatform OwnerType = "PLATFORM"
	OwnerTypeProvider OwnerType = "PROVIDER"
	OwnerTypeUser     OwnerType = "USER"
)

// AccountStatus is the lifecycle status of an account. Accounts are never
// deleted, only closed.
type AccountStatus string

const (
	AccountStatusActive AccountStatus = "ACTIVE"
	AccountStatusFrozen AccountStatus = "FROZEN"
	AccountStatusClosed AccountStatus = "CLOSED"
)

// AccountType decides whether an account may go below zero.
type AccountType string

const (
	// AccountTypeWallet holds funds owned by a platform participant.
	AccountTypeWallet AccountType = "WALLET"
	// AccountTypeClearing is an internal transit account (payout clearing, fees).
	AccountTypeClearing AccountType = "CLEARING"
	// AccountTypeExternal mirrors money held outside the platform, for example
	// at a payment provider. It is normally negative.
	AccountTypeExternal AccountType = "EXTERNAL"
)

// AllowsOverdraft reports whether balances of this type may be negative.
func (t AccountType) AllowsOverdraft() bool {
	return t == AccountTypeClearing || t == AccountTypeExternal
}

// PlatformOwnerID is the owner id used for platform-owned accounts.
const PlatformOwnerID = "platform"

// Account holds the balance for one (owner, currency) pair. It is the only
// mutable aggregate of the ledger; every write bumps Version.
type Account struct {
	ID                   string        `json:"id"`
	OwnerID              string        `json:"owner_id"`
	OwnerType            OwnerType     `json:"owner_type"`
	Currency             string        `json:"currency"`
	AccountType          AccountType   `json:"account_type"`
	Status               AccountStatus `json:"status"`
	BalanceMinor         int64         `json:"balance_minor"`
	ReservedBalanceMinor int64         `json:"reserved_balance_minor"`
	Version              int64         `json:"version"`
	CreatedAt            time.Time     `json:"created_at"`
	UpdatedAt            time.Time     `json:"updated_at"`
}

// AvailableMinor is the balance that can still be held or withdrawn.
func (a *Account) AvailableMinor() int64 {
	return a.BalanceMinor - a.ReservedBalanceMinor
}

// CanPost reports whether new entries may be posted against the account.
func (a *Account) CanPost() bool {
	return a.Status == AccountStatusActive
}

// Balance is the read model returned by balance queries.
type Balance struct {
	AccountID string `json:"account_id"`
	Currency  string `json:"currency"`
	Balance   int64  `json:"balance"`
	Reserved  int64  `json:"reserved"`
	Available int64  `json:"available"`
}

// BalanceOf builds the read model for an account.
func BalanceOf(a *Account) Balance {
	return Balance{
		AccountID: a.ID,
		Currency:  a.Currency,
		Balance:   a.BalanceMinor,
		Reserved:  a.ReservedBalanceMinor,
		Available: a.AvailableMinor(),
	}
}

// AccountKey is the natural identity of an account.
type AccountKey struct {
	OwnerID   string
	OwnerType OwnerType
	Currency  string
}
