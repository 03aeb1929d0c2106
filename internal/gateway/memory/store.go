// Package memory is an in-process implementation of the ledger store. It keeps
// the same locking discipline as the Postgres store: per-account mutexes taken
// in ascending id order, with staged writes applied on commit.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

var _ usecase.Store = (*Store)(nil)

// Store keeps every record in maps guarded by mu. Balance mutations are
// serialized per account through locks.
type Store struct {
	mu sync.RWMutex

	accounts    map[string]*domain.Account
	accountKeys map[domain.AccountKey]string
	accountSeq  []string
	locks       map[string]*sync.Mutex

	transactions map[string]*domain.Transaction
	txSeq        []string
	idempotency  map[string]string

	payouts   map[string]*domain.Payout
	payoutSeq []string

	disputes    map[string]*domain.Dispute
	disputeKeys map[string]string
	disputeSeq  []string

	jobs           map[string]*domain.ReconciliationJob
	jobSeq         []string
	discrepancies  map[string]*domain.Discrepancy
	discrepancySeq []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		accounts:      make(map[string]*domain.Account),
		accountKeys:   make(map[domain.AccountKey]string),
		locks:         make(map[string]*sync.Mutex),
		transactions:  make(map[string]*domain.Transaction),
		idempotency:   make(map[string]string),
		payouts:       make(map[string]*domain.Payout),
		disputes:      make(map[string]*domain.Dispute),
		disputeKeys:   make(map[string]string),
		jobs:          make(map[string]*domain.ReconciliationJob),
		discrepancies: make(map[string]*domain.Discrepancy),
	}
}

func disputeKey(provider, providerDisputeID string) string {
	return provider + "/" + providerDisputeID
}

// CreateAccount inserts account unless its natural key exists.
func (s *Store) CreateAccount(_ context.Context, account *domain.Account) (*domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.AccountKey{OwnerID: account.OwnerID, OwnerType: account.OwnerType, Currency: account.Currency}
	if id, ok := s.accountKeys[key]; ok {
		return cloneAccount(s.accounts[id]), nil
	}
	stored := cloneAccount(account)
	s.accounts[stored.ID] = stored
	s.accountKeys[key] = stored.ID
	s.accountSeq = append(s.accountSeq, stored.ID)
	s.locks[stored.ID] = &sync.Mutex{}
	return cloneAccount(stored), nil
}

// GetAccount returns an account by id.
func (s *Store) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(acc), nil
}

// FindAccount returns an account by its natural key.
func (s *Store) FindAccount(_ context.Context, key domain.AccountKey) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.accountKeys[key]
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return cloneAccount(s.accounts[id]), nil
}

// GetTransaction returns a transaction with its entries.
func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txn, ok := s.transactions[id]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(txn), nil
}

// FindTransactionByIdempotencyKey returns the transaction posted under key.
func (s *Store) FindTransactionByIdempotencyKey(_ context.Context, key string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.idempotency[key]
	if !ok {
		return nil, domain.ErrTransactionNotFound
	}
	return cloneTransaction(s.transactions[id]), nil
}

// GetPayout returns a payout by id.
func (s *Store) GetPayout(_ context.Context, id string) (*domain.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.payouts[id]
	if !ok {
		return nil, domain.ErrPayoutNotFound
	}
	return clonePayout(p), nil
}

// ListPayouts returns payouts matching filter in request order.
func (s *Store) ListPayouts(_ context.Context, filter domain.PayoutFilter) ([]domain.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Payout, 0)
	for _, id := range s.payoutSeq {
		p := s.payouts[id]
		if filter.ProviderID != "" && p.ProviderID != filter.ProviderID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.ProcessedBefore != nil && (p.ProcessedAt == nil || !p.ProcessedAt.Before(*filter.ProcessedBefore)) {
			continue
		}
		out = append(out, *clonePayout(p))
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// GetDispute returns a dispute by id.
func (s *Store) GetDispute(_ context.Context, id string) (*domain.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.disputes[id]
	if !ok {
		return nil, domain.ErrDisputeNotFound
	}
	return cloneDispute(d), nil
}

// FindDisputeByProviderID returns the dispute a provider knows as providerDisputeID.
func (s *Store) FindDisputeByProviderID(_ context.Context, provider, providerDisputeID string) (*domain.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.disputeKeys[disputeKey(provider, providerDisputeID)]
	if !ok {
		return nil, domain.ErrDisputeNotFound
	}
	return cloneDispute(s.disputes[id]), nil
}

// ListDisputes returns disputes in any of statuses, or all when none is given.
func (s *Store) ListDisputes(_ context.Context, statuses ...domain.DisputeStatus) ([]domain.Dispute, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Dispute, 0)
	for _, id := range s.disputeSeq {
		d := s.disputes[id]
		if len(statuses) > 0 && !containsStatus(statuses, d.Status) {
			continue
		}
		out = append(out, *cloneDispute(d))
	}
	return out, nil
}

// ListAccounts returns every account in creation order.
func (s *Store) ListAccounts(_ context.Context) ([]domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Account, 0, len(s.accountSeq))
	for _, id := range s.accountSeq {
		out = append(out, *cloneAccount(s.accounts[id]))
	}
	return out, nil
}

// AccountEntrySums returns Σ signed entry amounts per account.
func (s *Store) AccountEntrySums(_ context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sums := make(map[string]int64, len(s.accounts))
	for _, txn := range s.transactions {
		for _, e := range txn.Entries {
			sums[e.AccountID] += e.SignedAmount()
		}
	}
	return sums, nil
}

// TransactionTotals returns the signed sum of every transaction per currency.
func (s *Store) TransactionTotals(_ context.Context) ([]domain.TransactionTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.TransactionTotal, 0, len(s.txSeq))
	for _, id := range s.txSeq {
		txn := s.transactions[id]
		byCurrency := make(map[string]*domain.TransactionTotal)
		var currencies []string
		for _, e := range txn.Entries {
			t, ok := byCurrency[e.Currency]
			if !ok {
				t = &domain.TransactionTotal{TransactionID: txn.ID, Currency: e.Currency}
				byCurrency[e.Currency] = t
				currencies = append(currencies, e.Currency)
			}
			t.SignedSum += e.SignedAmount()
			t.EntryCount++
		}
		for _, c := range currencies {
			out = append(out, *byCurrency[c])
		}
	}
	return out, nil
}

// OrphanedEntries returns entries whose account or transaction is missing.
func (s *Store) OrphanedEntries(_ context.Context) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.LedgerEntry
	for _, id := range s.txSeq {
		for _, e := range s.transactions[id].Entries {
			if _, ok := s.accounts[e.AccountID]; !ok || e.TransactionID != id {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// TryStartJob inserts job unless an active job overlaps it.
func (s *Store) TryStartJob(_ context.Context, job *domain.ReconciliationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.jobSeq {
		existing := s.jobs[id]
		active := existing.Status == domain.JobStatusPending || existing.Status == domain.JobStatusRunning
		if active && existing.Overlaps(job.Provider, job.PeriodStart, job.PeriodEnd) {
			return domain.ErrReconciliationInProgress
		}
	}
	stored := *job
	s.jobs[job.ID] = &stored
	s.jobSeq = append(s.jobSeq, job.ID)
	return nil
}

// UpdateJob replaces a job.
func (s *Store) UpdateJob(_ context.Context, job *domain.ReconciliationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return domain.ErrJobNotFound
	}
	stored := *job
	s.jobs[job.ID] = &stored
	return nil
}

// GetJob returns a job by id.
func (s *Store) GetJob(_ context.Context, id string) (*domain.ReconciliationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	out := *job
	return &out, nil
}

// ListJobs returns jobs in status, or all jobs when status is empty.
func (s *Store) ListJobs(_ context.Context, status domain.JobStatus) ([]domain.ReconciliationJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ReconciliationJob, 0)
	for _, id := range s.jobSeq {
		if job := s.jobs[id]; status == "" || job.Status == status {
			out = append(out, *job)
		}
	}
	return out, nil
}

// InsertDiscrepancy stores a discrepancy.
func (s *Store) InsertDiscrepancy(_ context.Context, d *domain.Discrepancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *d
	s.discrepancies[d.ID] = &stored
	s.discrepancySeq = append(s.discrepancySeq, d.ID)
	return nil
}

// GetDiscrepancy returns a discrepancy by id.
func (s *Store) GetDiscrepancy(_ context.Context, id string) (*domain.Discrepancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.discrepancies[id]
	if !ok {
		return nil, domain.ErrDiscrepancyNotFound
	}
	out := *d
	return &out, nil
}

// UpdateDiscrepancy replaces a discrepancy.
func (s *Store) UpdateDiscrepancy(_ context.Context, d *domain.Discrepancy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.discrepancies[d.ID]; !ok {
		return domain.ErrDiscrepancyNotFound
	}
	stored := *d
	s.discrepancies[d.ID] = &stored
	return nil
}

// ListDiscrepancies returns the discrepancies of a job, or all when jobID is empty.
func (s *Store) ListDiscrepancies(_ context.Context, jobID string) ([]domain.Discrepancy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Discrepancy, 0)
	for _, id := range s.discrepancySeq {
		if d := s.discrepancies[id]; jobID == "" || d.JobID == jobID {
			out = append(out, *d)
		}
	}
	return out, nil
}

// ListProviderTransactions returns the provider-originated transactions
// created in [start, end). Compensating reversals are not provider records.
func (s *Store) ListProviderTransactions(_ context.Context, provider string, start, end time.Time) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, 0)
	for _, id := range s.txSeq {
		txn := s.transactions[id]
		if txn.PaymentProvider != provider || txn.ProviderTransactionID == "" || txn.ReversalOf != "" {
			continue
		}
		if txn.CreatedAt.Before(start) || !txn.CreatedAt.Before(end) {
			continue
		}
		out = append(out, *cloneTransaction(txn))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// MarkReconciled sets ReconciledAt on the given transactions.
func (s *Store) MarkReconciled(_ context.Context, transactionIDs []string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range transactionIDs {
		if txn, ok := s.transactions[id]; ok {
			reconciledAt := at
			txn.ReconciledAt = &reconciledAt
		}
	}
	return nil
}

func containsStatus(statuses []domain.DisputeStatus, s domain.DisputeStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func cloneAccount(a *domain.Account) *domain.Account {
	out := *a
	return &out
}

func cloneTransaction(t *domain.Transaction) *domain.Transaction {
	out := *t
	out.Entries = append([]domain.LedgerEntry(nil), t.Entries...)
	return &out
}

func clonePayout(p *domain.Payout) *domain.Payout {
	out := *p
	return &out
}

func cloneDispute(d *domain.Dispute) *domain.Dispute {
	out := *d
	return &out
}
