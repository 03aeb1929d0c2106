package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

// memTx stages writes until commit. Reads see staged records first.
type memTx struct {
	s    *Store
	held []*sync.Mutex

	locked       map[string]*domain.Account
	transactions map[string]*domain.Transaction
	newTxs       []string
	payouts      map[string]*domain.Payout
	newPayouts   []string
	disputes     map[string]*domain.Dispute
	newDisputes  []string
}

// WithinTx runs fn in a unit of work. Account locks taken by fn are held until
// the staged writes are committed or discarded.
func (s *Store) WithinTx(ctx context.Context, fn func(tx usecase.Tx) error) error {
	tx := &memTx{
		s:            s,
		locked:       make(map[string]*domain.Account),
		transactions: make(map[string]*domain.Transaction),
		payouts:      make(map[string]*domain.Payout),
		disputes:     make(map[string]*domain.Dispute),
	}
	defer tx.release()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (tx *memTx) release() {
	for i := len(tx.held) - 1; i >= 0; i-- {
		tx.held[i].Unlock()
	}
	tx.held = nil
}

// LockAccounts locks ids in ascending order. Ids already locked by this unit
// of work are skipped.
func (tx *memTx) LockAccounts(ctx context.Context, ids ...string) (map[string]*domain.Account, error) {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)

	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			continue
		}
		if _, ok := tx.locked[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tx.s.mu.RLock()
		mu, ok := tx.s.locks[id]
		tx.s.mu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("account %s: %w", id, domain.ErrAccountNotFound)
		}
		mu.Lock()
		tx.held = append(tx.held, mu)

		tx.s.mu.RLock()
		tx.locked[id] = cloneAccount(tx.s.accounts[id])
		tx.s.mu.RUnlock()
	}

	out := make(map[string]*domain.Account, len(sorted))
	for _, id := range sorted {
		out[id] = tx.locked[id]
	}
	return out, nil
}

func (tx *memTx) UpdateAccount(_ context.Context, account *domain.Account) error {
	if _, ok := tx.locked[account.ID]; !ok {
		return fmt.Errorf("account %s updated without its lock: %w", account.ID, domain.ErrConcurrentUpdate)
	}
	account.Version++
	tx.locked[account.ID] = account
	return nil
}

func (tx *memTx) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	if acc, ok := tx.locked[id]; ok {
		return cloneAccount(acc), nil
	}
	return tx.s.GetAccount(ctx, id)
}

func (tx *memTx) FindAccount(ctx context.Context, key domain.AccountKey) (*domain.Account, error) {
	acc, err := tx.s.FindAccount(ctx, key)
	if err != nil {
		return nil, err
	}
	if staged, ok := tx.locked[acc.ID]; ok {
		return cloneAccount(staged), nil
	}
	return acc, nil
}

func (tx *memTx) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	if txn, ok := tx.transactions[id]; ok {
		return cloneTransaction(txn), nil
	}
	return tx.s.GetTransaction(ctx, id)
}

func (tx *memTx) FindTransactionByIdempotencyKey(ctx context.Context, key string) (*domain.Transaction, error) {
	for _, id := range tx.newTxs {
		if txn := tx.transactions[id]; txn.IdempotencyKey == key {
			return cloneTransaction(txn), nil
		}
	}
	return tx.s.FindTransactionByIdempotencyKey(ctx, key)
}

func (tx *memTx) InsertTransaction(ctx context.Context, txn *domain.Transaction) error {
	if txn.IdempotencyKey != "" {
		if _, err := tx.FindTransactionByIdempotencyKey(ctx, txn.IdempotencyKey); err == nil {
			return domain.ErrDuplicateTransaction
		}
	}
	tx.transactions[txn.ID] = cloneTransaction(txn)
	tx.newTxs = append(tx.newTxs, txn.ID)
	return nil
}

func (tx *memTx) UpdateTransaction(ctx context.Context, txn *domain.Transaction) error {
	if _, ok := tx.transactions[txn.ID]; !ok {
		if _, err := tx.s.GetTransaction(ctx, txn.ID); err != nil {
			return err
		}
	}
	tx.transactions[txn.ID] = cloneTransaction(txn)
	return nil
}

func (tx *memTx) GetPayout(ctx context.Context, id string) (*domain.Payout, error) {
	if p, ok := tx.payouts[id]; ok {
		return clonePayout(p), nil
	}
	return tx.s.GetPayout(ctx, id)
}

func (tx *memTx) InsertPayout(_ context.Context, p *domain.Payout) error {
	tx.payouts[p.ID] = clonePayout(p)
	tx.newPayouts = append(tx.newPayouts, p.ID)
	return nil
}

func (tx *memTx) UpdatePayout(ctx context.Context, p *domain.Payout) error {
	if _, ok := tx.payouts[p.ID]; !ok {
		if _, err := tx.s.GetPayout(ctx, p.ID); err != nil {
			return err
		}
	}
	tx.payouts[p.ID] = clonePayout(p)
	return nil
}

func (tx *memTx) GetDispute(ctx context.Context, id string) (*domain.Dispute, error) {
	if d, ok := tx.disputes[id]; ok {
		return cloneDispute(d), nil
	}
	return tx.s.GetDispute(ctx, id)
}

func (tx *memTx) FindDisputeByProviderID(ctx context.Context, provider, providerDisputeID string) (*domain.Dispute, error) {
	for _, id := range tx.newDisputes {
		if d := tx.disputes[id]; d.PaymentProvider == provider && d.ProviderDisputeID == providerDisputeID {
			return cloneDispute(d), nil
		}
	}
	return tx.s.FindDisputeByProviderID(ctx, provider, providerDisputeID)
}

func (tx *memTx) InsertDispute(_ context.Context, d *domain.Dispute) error {
	tx.disputes[d.ID] = cloneDispute(d)
	tx.newDisputes = append(tx.newDisputes, d.ID)
	return nil
}

func (tx *memTx) UpdateDispute(ctx context.Context, d *domain.Dispute) error {
	if _, ok := tx.disputes[d.ID]; !ok {
		if _, err := tx.s.GetDispute(ctx, d.ID); err != nil {
			return err
		}
	}
	tx.disputes[d.ID] = cloneDispute(d)
	return nil
}

// commit applies the staged writes. Uniqueness is checked before anything is
// applied so a conflict leaves the store untouched.
func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range tx.newTxs {
		if key := tx.transactions[id].IdempotencyKey; key != "" {
			if _, dup := s.idempotency[key]; dup {
				return domain.ErrDuplicateTransaction
			}
		}
	}
	for _, id := range tx.newDisputes {
		d := tx.disputes[id]
		if _, dup := s.disputeKeys[disputeKey(d.PaymentProvider, d.ProviderDisputeID)]; dup {
			return fmt.Errorf("provider dispute %s already recorded: %w", d.ProviderDisputeID, domain.ErrDuplicateDispute)
		}
	}

	for id, acc := range tx.locked {
		s.accounts[id] = cloneAccount(acc)
	}

	for _, id := range tx.newTxs {
		s.txSeq = append(s.txSeq, id)
		if key := tx.transactions[id].IdempotencyKey; key != "" {
			s.idempotency[key] = id
		}
	}
	for id, txn := range tx.transactions {
		s.transactions[id] = txn
	}

	s.payoutSeq = append(s.payoutSeq, tx.newPayouts...)
	for id, p := range tx.payouts {
		s.payouts[id] = p
	}

	for _, id := range tx.newDisputes {
		d := tx.disputes[id]
		s.disputeSeq = append(s.disputeSeq, id)
		s.disputeKeys[disputeKey(d.PaymentProvider, d.ProviderDisputeID)] = id
	}
	for id, d := range tx.disputes {
		s.disputes[id] = d
	}
	return nil
}
