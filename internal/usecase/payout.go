package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// PayoutRequest is a withdrawal request from a provider.
type PayoutRequest struct {
	ProviderID  string                   `json:"provider_id"`
	AmountMinor int64                    `json:"amount_minor"`
	Currency    string                   `json:"currency"`
	Method      domain.PayoutMethod      `json:"method"`
	Destination domain.PayoutDestination `json:"destination"`
	RequestedBy string                   `json:"requested_by"`
}

// PayoutUseCase drives the payout state machine.
type PayoutUseCase struct {
	store             Store
	ledger            *LedgerUseCase
	log               *zap.Logger
	processingTimeout time.Duration
	now               func() time.Time
}

// NewPayoutUseCase creates a new instance of the payout workflow.
func NewPayoutUseCase(store Store, ledger *LedgerUseCase, log *zap.Logger, processingTimeout time.Duration) *PayoutUseCase {
	return &PayoutUseCase{
		store:             store,
		ledger:            ledger,
		log:               log,
		processingTimeout: processingTimeout,
		now:               ledger.now,
	}
}

// RequestPayout reserves the amount on the provider account and records a
// PENDING payout.
func (uc *PayoutUseCase) RequestPayout(ctx context.Context, req PayoutRequest) (*domain.Payout, error) {
	if req.AmountMinor <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if err := req.Destination.Validate(req.Method); err != nil {
		return nil, fmt.Errorf("%s payout: %w", req.Method, err)
	}

	acc, err := uc.store.FindAccount(ctx, domain.AccountKey{
		OwnerID:   req.ProviderID,
		OwnerType: domain.OwnerTypeProvider,
		Currency:  domain.NormalizeCurrency(req.Currency),
	})
	if err != nil {
		return nil, fmt.Errorf("could not find provider account: %w", err)
	}

	now := uc.now()
	payout := &domain.Payout{
		ID:              uuid.NewString(),
		ReferenceNumber: payoutReference(now),
		AccountID:       acc.ID,
		ProviderID:      req.ProviderID,
		AmountMinor:     req.AmountMinor,
		Currency:        acc.Currency,
		Method:          req.Method,
		Destination:     req.Destination,
		Status:          domain.PayoutStatusPending,
		RequestedBy:     req.RequestedBy,
		RequestedAt:     now,
		UpdatedAt:       now,
	}

	err = uc.store.WithinTx(ctx, func(tx Tx) error {
		accounts, err := tx.LockAccounts(ctx, acc.ID)
		if err != nil {
			return err
		}
		locked := accounts[acc.ID]
		if !locked.CanPost() {
			return fmt.Errorf("account %s is %s: %w", locked.ID, locked.Status, domain.ErrAccountFrozen)
		}
		if err := holdFunds(locked, req.AmountMinor); err != nil {
			return err
		}
		locked.UpdatedAt = now
		if err := tx.UpdateAccount(ctx, locked); err != nil {
			return err
		}
		return tx.InsertPayout(ctx, payout)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPayoutTransition(string(payout.Status))
	uc.log.Info("payout requested",
		zap.String("payout_id", payout.ID),
		zap.String("reference", payout.ReferenceNumber),
		zap.String("provider_id", payout.ProviderID),
		zap.Int64("amount_minor", payout.AmountMinor))
	return payout, nil
}

// ApprovePayout moves a PENDING payout to APPROVED.
func (uc *PayoutUseCase) ApprovePayout(ctx context.Context, id, approvedBy string) (*domain.Payout, error) {
	return uc.transition(ctx, id, domain.PayoutStatusApproved, func(_ Tx, p *domain.Payout, _ *domain.Account, now time.Time) error {
		p.ApprovedBy = approvedBy
		p.ApprovedAt = &now
		return nil
	})
}

// ProcessPayout marks the external transfer as initiated. No money moves yet.
func (uc *PayoutUseCase) ProcessPayout(ctx context.Context, id, processedBy string) (*domain.Payout, error) {
	return uc.transition(ctx, id, domain.PayoutStatusProcessing, func(_ Tx, p *domain.Payout, _ *domain.Account, now time.Time) error {
		p.ProcessedBy = processedBy
		p.ProcessedAt = &now
		return nil
	})
}

// MarkPayoutPaid settles a PROCESSING payout: the reservation is released and
// a PAYOUT transaction debits the provider account in the same unit of work.
func (uc *PayoutUseCase) MarkPayoutPaid(ctx context.Context, id, externalTxID string) (*domain.Payout, error) {
	current, err := uc.store.GetPayout(ctx, id)
	if err != nil {
		return nil, err
	}
	clearing, err := uc.ledger.PlatformAccount(ctx, PayoutClearingOwner, current.Currency, domain.AccountTypeClearing)
	if err != nil {
		return nil, err
	}

	return uc.transitionWith(ctx, id, domain.PayoutStatusPaid, []string{clearing.ID}, func(tx Tx, p *domain.Payout, accounts map[string]*domain.Account, now time.Time) error {
		acc := accounts[p.AccountID]
		if err := releaseFunds(acc, p.AmountMinor); err != nil {
			return err
		}
		settlement, err := uc.ledger.postLocked(ctx, tx, accounts, PostTransactionRequest{
			TransactionType:       domain.TransactionTypePayout,
			ProviderTransactionID: externalTxID,
			IdempotencyKey:        "payout:" + p.ID,
			Description:           "payout " + p.ReferenceNumber,
			Entries: []EntryRequest{
				{AccountID: p.AccountID, EntryType: domain.EntryTypeDebit, AmountMinor: p.AmountMinor, Currency: p.Currency},
				{AccountID: clearing.ID, EntryType: domain.EntryTypeCredit, AmountMinor: p.AmountMinor, Currency: p.Currency},
			},
			// the transfer already left the platform
			allowFrozen: true,
		})
		if err != nil {
			return err
		}
		p.ExternalTransactionID = externalTxID
		p.SettlementTxID = settlement.ID
		p.CompletedAt = &now
		return nil
	})
}

// MarkPayoutFailed releases the reservation of a PROCESSING payout without
// debiting the account.
func (uc *PayoutUseCase) MarkPayoutFailed(ctx context.Context, id, reason string) (*domain.Payout, error) {
	return uc.transition(ctx, id, domain.PayoutStatusFailed, func(_ Tx, p *domain.Payout, acc *domain.Account, now time.Time) error {
		if err := releaseFunds(acc, p.AmountMinor); err != nil {
			return err
		}
		p.FailureReason = reason
		p.CompletedAt = &now
		return nil
	})
}

// CancelPayout releases the reservation of a PENDING or APPROVED payout.
func (uc *PayoutUseCase) CancelPayout(ctx context.Context, id, reason string) (*domain.Payout, error) {
	return uc.transition(ctx, id, domain.PayoutStatusCancelled, func(_ Tx, p *domain.Payout, acc *domain.Account, now time.Time) error {
		if err := releaseFunds(acc, p.AmountMinor); err != nil {
			return err
		}
		p.CancelReason = reason
		p.CompletedAt = &now
		return nil
	})
}

// GetPayout returns a payout by id.
func (uc *PayoutUseCase) GetPayout(ctx context.Context, id string) (*domain.Payout, error) {
	return uc.store.GetPayout(ctx, id)
}

// ListPayouts returns payouts matching filter.
func (uc *PayoutUseCase) ListPayouts(ctx context.Context, filter domain.PayoutFilter) ([]domain.Payout, error) {
	return uc.store.ListPayouts(ctx, filter)
}

// ListStuckPayouts returns payouts that have been PROCESSING for longer than
// the configured timeout. They are reported, never resolved automatically.
func (uc *PayoutUseCase) ListStuckPayouts(ctx context.Context) ([]domain.Payout, error) {
	cutoff := uc.now().Add(-uc.processingTimeout)
	return uc.store.ListPayouts(ctx, domain.PayoutFilter{
		Status:          domain.PayoutStatusProcessing,
		ProcessedBefore: &cutoff,
	})
}

// Stats aggregates count and amount per status, optionally for one provider.
func (uc *PayoutUseCase) Stats(ctx context.Context, providerID string) (domain.PayoutStats, error) {
	payouts, err := uc.store.ListPayouts(ctx, domain.PayoutFilter{ProviderID: providerID})
	if err != nil {
		return domain.PayoutStats{}, fmt.Errorf("could not list payouts: %w", err)
	}
	stats := domain.PayoutStats{
		Count:       make(map[domain.PayoutStatus]int),
		AmountMinor: make(map[domain.PayoutStatus]int64),
	}
	for _, p := range payouts {
		stats.Count[p.Status]++
		stats.AmountMinor[p.Status] += p.AmountMinor
	}
	return stats, nil
}

type payoutMutation func(tx Tx, p *domain.Payout, acc *domain.Account, now time.Time) error

func (uc *PayoutUseCase) transition(ctx context.Context, id string, next domain.PayoutStatus, mutate payoutMutation) (*domain.Payout, error) {
	return uc.transitionWith(ctx, id, next, nil, func(tx Tx, p *domain.Payout, accounts map[string]*domain.Account, now time.Time) error {
		return mutate(tx, p, accounts[p.AccountID], now)
	})
}

// transitionWith locks the payout's account (plus extra), re-reads the payout
// under the lock and applies mutate only if the edge is legal. Illegal
// transitions leave everything untouched.
func (uc *PayoutUseCase) transitionWith(ctx context.Context, id string, next domain.PayoutStatus, extra []string,
	mutate func(tx Tx, p *domain.Payout, accounts map[string]*domain.Account, now time.Time) error,
) (*domain.Payout, error) {
	var out *domain.Payout
	err := uc.store.WithinTx(ctx, func(tx Tx) error {
		p, err := tx.GetPayout(ctx, id)
		if err != nil {
			return err
		}
		accounts, err := tx.LockAccounts(ctx, append([]string{p.AccountID}, extra...)...)
		if err != nil {
			return err
		}
		if p, err = tx.GetPayout(ctx, id); err != nil {
			return err
		}
		if !p.Status.CanTransitionTo(next) {
			return fmt.Errorf("payout %s is %s, cannot move to %s: %w", p.ID, p.Status, next, domain.ErrInvalidPayoutTransition)
		}

		now := uc.now()
		if err := mutate(tx, p, accounts, now); err != nil {
			return err
		}
		acc := accounts[p.AccountID]
		acc.UpdatedAt = now
		if err := tx.UpdateAccount(ctx, acc); err != nil {
			return err
		}
		p.Status = next
		p.UpdatedAt = now
		out = p
		return tx.UpdatePayout(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordPayoutTransition(string(next))
	uc.log.Info("payout transitioned",
		zap.String("payout_id", out.ID),
		zap.String("status", string(out.Status)))
	return out, nil
}

// payoutReference formats PO-YYYYMMDD-XXXXXXXX.
func payoutReference(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("PO-%s-%s", now.Format("20060102"), suffix)
}
