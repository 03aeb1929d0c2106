package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

// pgTx is a unit of work on one database transaction. Locked accounts are
// remembered so repeated lookups return the same copies.
type pgTx struct {
	tx     pgx.Tx
	locked map[string]*domain.Account
}

var _ usecase.Tx = (*pgTx)(nil)

func newTx(tx pgx.Tx) *pgTx {
	return &pgTx{tx: tx, locked: make(map[string]*domain.Account)}
}

// LockAccounts locks the account rows with SELECT ... FOR UPDATE, ordered by
// id so that concurrent units of work always lock in the same order.
func (t *pgTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*domain.Account, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	var pending []string
	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			continue
		}
		if _, ok := t.locked[id]; !ok {
			pending = append(pending, id)
		}
	}

	if len(pending) > 0 {
		rows, err := t.tx.Query(ctx,
			`SELECT `+accountColumns+` FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, pending)
		if err != nil {
			return nil, fmt.Errorf("failed to lock accounts: %w", err)
		}
		accounts, err := collect(rows, scanAccount)
		if err != nil {
			return nil, fmt.Errorf("failed to lock accounts: %w", err)
		}
		for i := range accounts {
			t.locked[accounts[i].ID] = &accounts[i]
		}
		for _, id := range pending {
			if _, ok := t.locked[id]; !ok {
				return nil, fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
			}
		}
	}

	out := make(map[string]*domain.Account, len(sorted))
	for _, id := range sorted {
		out[id] = t.locked[id]
	}
	return out, nil
}

// UpdateAccount writes the balances and status of a locked account. The
// version column guards against writes that bypassed the row lock.
func (t *pgTx) UpdateAccount(ctx context.Context, account *domain.Account) error {
	if _, ok := t.locked[account.ID]; !ok {
		return fmt.Errorf("account %s updated without its lock: %w", account.ID, domain.ErrConcurrentUpdate)
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE accounts SET
			status = $2,
			balance_minor = $3,
			reserved_balance_minor = $4,
			updated_at = $5,
			version = version + 1
		WHERE id = $1 AND version = $6`,
		account.ID, account.Status, account.BalanceMinor, account.ReservedBalanceMinor, account.UpdatedAt, account.Version)
	if err != nil {
		return fmt.Errorf("failed to update account %s: %w", account.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %s: %w", account.ID, domain.ErrConcurrentUpdate)
	}
	account.Version++
	t.locked[account.ID] = account
	return nil
}

func (t *pgTx) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return getAccount(ctx, t.tx, id)
}

func (t *pgTx) FindAccount(ctx context.Context, key domain.AccountKey) (*domain.Account, error) {
	return findAccount(ctx, t.tx, key)
}

func (t *pgTx) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	return getTransaction(ctx, t.tx, id)
}

func (t *pgTx) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	return findTransactionByKey(ctx, t.tx, key)
}

// InsertTransaction writes the transaction row and its entries. A reused
// idempotency key surfaces as domain.ErrDuplicateTransaction.
func (t *pgTx) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO transactions (
			id, transaction_type, status, currency, amount_minor, payment_provider, provider_transaction_id,
			idempotency_key, description, reversal_of, reversed_by, failure_reason, reconciled_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, NULLIF($10, ''), NULLIF($11, ''), $12, $13, $14)`,
		txn.ID, txn.TransactionType, txn.Status, txn.Currency, txn.AmountMinor, txn.PaymentProvider,
		txn.ProviderTransactionID, txn.IdempotencyKey, txn.Description, txn.ReversalOf, txn.ReversedBy,
		txn.FailureReason, txn.ReconciledAt, txn.CreatedAt)
	if constraint, ok := uniqueConstraint(err); ok && constraint == idempotencyKeyIndex {
		return domain.ErrDuplicateTransaction
	}
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	batch := &pgx.Batch{}
	for i, e := range txn.Entries {
		batch.Queue(`
			INSERT INTO ledger_entries (id, transaction_id, account_id, position, entry_type, amount_minor, currency, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			e.ID, e.TransactionID, e.AccountID, i, e.EntryType, e.AmountMinor, e.Currency, e.CreatedAt)
	}
	if err := t.tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert entries of %s: %w", txn.ID, err)
	}
	return nil
}

// UpdateTransaction stores the mutable fields of a transaction. Entries are
// immutable once written.
func (t *pgTx) UpdateTransaction(ctx context.Context, txn *domain.Transaction) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE transactions SET
			status = $2,
			reversed_by = NULLIF($3, ''),
			failure_reason = $4,
			reconciled_at = $5
		WHERE id = $1`,
		txn.ID, txn.Status, txn.ReversedBy, txn.FailureReason, txn.ReconciledAt)
	if err != nil {
		return fmt.Errorf("failed to update transaction %s: %w", txn.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTransactionNotFound
	}
	return nil
}

// GetPayout reads a payout and locks its row until the unit of work ends.
func (t *pgTx) GetPayout(ctx context.Context, id string) (*domain.Payout, error) {
	return getPayout(ctx, t.tx, id, true)
}

func (t *pgTx) InsertPayout(ctx context.Context, p *domain.Payout) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payouts (`+payoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		p.ID, p.ReferenceNumber, p.AccountID, p.ProviderID, p.AmountMinor, p.Currency, p.Method, p.Destination,
		p.Status, p.RequestedBy, p.ApprovedBy, p.ProcessedBy, p.ExternalTransactionID, p.SettlementTxID,
		p.FailureReason, p.CancelReason, p.RequestedAt, p.ApprovedAt, p.ProcessedAt, p.CompletedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payout: %w", err)
	}
	return nil
}

func (t *pgTx) UpdatePayout(ctx context.Context, p *domain.Payout) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE payouts SET
			status = $2,
			approved_by = $3,
			processed_by = $4,
			external_transaction_id = $5,
			settlement_tx_id = $6,
			failure_reason = $7,
			cancel_reason = $8,
			approved_at = $9,
			processed_at = $10,
			completed_at = $11,
			updated_at = $12
		WHERE id = $1`,
		p.ID, p.Status, p.ApprovedBy, p.ProcessedBy, p.ExternalTransactionID, p.SettlementTxID,
		p.FailureReason, p.CancelReason, p.ApprovedAt, p.ProcessedAt, p.CompletedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update payout %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPayoutNotFound
	}
	return nil
}

// GetDispute reads a dispute and locks its row until the unit of work ends.
func (t *pgTx) GetDispute(ctx context.Context, id string) (*domain.Dispute, error) {
	return getDispute(ctx, t.tx, id, true)
}

func (t *pgTx) FindDisputeByProviderID(ctx context.Context, provider, providerDisputeID string) (*domain.Dispute, error) {
	return findDispute(ctx, t.tx, provider, providerDisputeID)
}

func (t *pgTx) InsertDispute(ctx context.Context, d *domain.Dispute) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO disputes (`+disputeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		d.ID, d.ProviderDisputeID, d.PaymentProvider, d.TransactionID, d.AccountID, d.DisputeType, d.Reason,
		d.DisputedAmount, d.Currency, d.Status, d.EvidenceDueBy, d.EvidenceSubmitted, d.DeadlineMissed,
		d.FundsFrozen, d.FrozenAmount, d.FundsReleasedAt, d.ChargebackTxID, d.ChargebackBlocked, d.ResolvedAt, d.CreatedAt, d.UpdatedAt)
	if constraint, ok := uniqueConstraint(err); ok && constraint == providerDisputeKey {
		return fmt.Errorf("provider dispute %s already recorded: %w", d.ProviderDisputeID, domain.ErrDuplicateDispute)
	}
	if err != nil {
		return fmt.Errorf("failed to insert dispute: %w", err)
	}
	return nil
}

func (t *pgTx) UpdateDispute(ctx context.Context, d *domain.Dispute) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE disputes SET
			status = $2,
			evidence_due_by = $3,
			evidence_submitted = $4,
			deadline_missed = $5,
			funds_frozen = $6,
			frozen_amount = $7,
			funds_released_at = $8,
			chargeback_tx_id = $9,
			chargeback_blocked = $10,
			resolved_at = $11,
			updated_at = $12
		WHERE id = $1`,
		d.ID, d.Status, d.EvidenceDueBy, d.EvidenceSubmitted, d.DeadlineMissed, d.FundsFrozen,
		d.FrozenAmount, d.FundsReleasedAt, d.ChargebackTxID, d.ChargebackBlocked, d.ResolvedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update dispute %s: %w", d.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrDisputeNotFound
	}
	return nil
}
