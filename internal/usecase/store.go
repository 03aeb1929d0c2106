package usecase

import (
	"context"

	"payledger/internal/domain"
)

// LedgerReader reads accounts and transactions.
type LedgerReader interface {
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	FindAccount(ctx context.Context, key domain.AccountKey) (*domain.Account, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error)
}

// Tx is a unit of work. Everything written through a Tx is applied together
// when the function passed to Store.WithinTx returns nil, and discarded
// otherwise.
type Tx interface {
	LedgerReader

	// LockAccounts takes the per-account locks in ascending id order and
	// returns the locked accounts keyed by id. It is called at most once per
	// unit of work.
	LockAccounts(ctx context.Context, ids ...string) (map[string]*domain.Account, error)
	UpdateAccount(ctx context.Context, account *domain.Account) error
	InsertTransaction(ctx context.Context, txn *domain.Transaction) error
	UpdateTransaction(ctx context.Context, txn *domain.Transaction) error

	GetPayout(ctx context.Context, id string) (*domain.Payout, error)
	InsertPayout(ctx context.Context, p *domain.Payout) error
	UpdatePayout(ctx context.Context, p *domain.Payout) error

	GetDispute(ctx context.Context, id string) (*domain.Dispute, error)
	FindDisputeByProviderID(ctx context.Context, provider, providerDisputeID string) (*domain.Dispute, error)
	InsertDispute(ctx context.Context, d *domain.Dispute) error
	UpdateDispute(ctx context.Context, d *domain.Dispute) error
}

// Store is the persistence boundary of the ledger core.
type Store interface {
	LedgerReader
	IntegrityReader
	ReconciliationRepository

	// CreateAccount inserts the account unless one with the same owner, owner
	// type and currency exists; it returns the stored account either way.
	CreateAccount(ctx context.Context, account *domain.Account) (*domain.Account, error)

	GetPayout(ctx context.Context, id string) (*domain.Payout, error)
	ListPayouts(ctx context.Context, filter domain.PayoutFilter) ([]domain.Payout, error)

	GetDispute(ctx context.Context, id string) (*domain.Dispute, error)
	FindDisputeByProviderID(ctx context.Context, provider, providerDisputeID string) (*domain.Dispute, error)
	ListDisputes(ctx context.Context, statuses ...domain.DisputeStatus) ([]domain.Dispute, error)

	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}
