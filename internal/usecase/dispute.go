package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// DeadlinePolicy decides what the deadline sweep does with overdue disputes.
type DeadlinePolicy string

const (
	// DeadlinePolicyFlag marks overdue disputes for an operator.
	DeadlinePolicyFlag DeadlinePolicy = "flag"
	// DeadlinePolicyExpire moves overdue disputes to EXPIRED and charges the account.
	DeadlinePolicyExpire DeadlinePolicy = "expire"
)

// DisputeRequest is a dispute notification from a payment provider.
type DisputeRequest struct {
	Provider          string     `json:"provider"`
	ProviderDisputeID string     `json:"provider_dispute_id"`
	TransactionID     string     `json:"transaction_id"`
	AccountID         string     `json:"account_id,omitempty"`
	DisputeType       string     `json:"dispute_type"`
	Reason            string     `json:"reason"`
	AmountMinor       int64      `json:"amount_minor"`
	EvidenceDueBy     *time.Time `json:"evidence_due_by,omitempty"`
	FreezeFunds       bool       `json:"freeze_funds"`
}

// DisputeConfig holds the dispute workflow settings.
type DisputeConfig struct {
	FeeMinor       int64
	DeadlinePolicy DeadlinePolicy
}

// DisputeUseCase drives the dispute workflow.
type DisputeUseCase struct {
	store  Store
	ledger *LedgerUseCase
	log    *zap.Logger
	cfg    DisputeConfig
	now    func() time.Time
}

// NewDisputeUseCase creates a new instance of the dispute workflow.
func NewDisputeUseCase(store Store, ledger *LedgerUseCase, log *zap.Logger, cfg DisputeConfig) *DisputeUseCase {
	if cfg.DeadlinePolicy == "" {
		cfg.DeadlinePolicy = DeadlinePolicyFlag
	}
	return &DisputeUseCase{store: store, ledger: ledger, log: log, cfg: cfg, now: ledger.now}
}

// OpenDispute records a dispute in RECEIVED. A second notification with the
// same provider dispute id returns the existing dispute. When FreezeFunds is
// set, up to the disputed amount is held on the account through the same
// primitive payouts use.
func (uc *DisputeUseCase) OpenDispute(ctx context.Context, req DisputeRequest) (*domain.Dispute, error) {
	if req.ProviderDisputeID == "" || req.TransactionID == "" {
		return nil, fmt.Errorf("provider dispute id and transaction are required: %w", domain.ErrInvalidDispute)
	}
	if req.AmountMinor <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	if existing, err := uc.store.FindDisputeByProviderID(ctx, req.Provider, req.ProviderDisputeID); err == nil {
		return existing, nil
	} else if !errors.Is(err, domain.ErrDisputeNotFound) {
		return nil, err
	}

	txn, err := uc.store.GetTransaction(ctx, req.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("could not get disputed transaction: %w", err)
	}
	if req.AmountMinor > txn.AmountMinor {
		return nil, fmt.Errorf("disputed %d of a %d transaction: %w", req.AmountMinor, txn.AmountMinor, domain.ErrInvalidDispute)
	}
	accountID := req.AccountID
	if accountID == "" {
		if accountID, err = uc.disputedAccount(ctx, txn); err != nil {
			return nil, err
		}
	}

	now := uc.now()
	dispute := &domain.Dispute{
		ID:                uuid.NewString(),
		ProviderDisputeID: req.ProviderDisputeID,
		PaymentProvider:   req.Provider,
		TransactionID:     txn.ID,
		AccountID:         accountID,
		DisputeType:       req.DisputeType,
		Reason:            req.Reason,
		DisputedAmount:    req.AmountMinor,
		Currency:          txn.Currency,
		Status:            domain.DisputeStatusReceived,
		EvidenceDueBy:     req.EvidenceDueBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = uc.store.WithinTx(ctx, func(tx Tx) error {
		if existing, err := tx.FindDisputeByProviderID(ctx, req.Provider, req.ProviderDisputeID); err == nil {
			dispute = existing
			return nil
		}
		accounts, err := tx.LockAccounts(ctx, accountID)
		if err != nil {
			return err
		}
		acc := accounts[accountID]
		if acc.Currency != dispute.Currency {
			return fmt.Errorf("dispute in %s against %s account: %w", dispute.Currency, acc.Currency, domain.ErrCurrencyMismatch)
		}
		if req.FreezeFunds {
			// hold what is there; a short account is still disputed in full
			hold := min(dispute.DisputedAmount, acc.AvailableMinor())
			if hold > 0 {
				if err := holdFunds(acc, hold); err != nil {
					return err
				}
				dispute.FundsFrozen = true
				dispute.FrozenAmount = hold
				acc.UpdatedAt = now
				if err := tx.UpdateAccount(ctx, acc); err != nil {
					return err
				}
			}
		}
		return tx.InsertDispute(ctx, dispute)
	})
	if errors.Is(err, domain.ErrDuplicateDispute) {
		// a concurrent delivery of the same notification won the insert
		existing, findErr := uc.store.FindDisputeByProviderID(ctx, req.Provider, req.ProviderDisputeID)
		if findErr != nil {
			return nil, errors.Join(err, findErr)
		}
		return existing, nil
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordDisputeTransition(string(dispute.Status))
	uc.log.Info("dispute opened",
		zap.String("dispute_id", dispute.ID),
		zap.String("provider_dispute_id", dispute.ProviderDisputeID),
		zap.String("transaction_id", dispute.TransactionID),
		zap.Int64("frozen_minor", dispute.FrozenAmount))
	return dispute, nil
}

// GetDispute returns a dispute by id.
func (uc *DisputeUseCase) GetDispute(ctx context.Context, id string) (*domain.Dispute, error) {
	return uc.store.GetDispute(ctx, id)
}

// ListDisputes returns disputes in any of statuses, or all disputes.
func (uc *DisputeUseCase) ListDisputes(ctx context.Context, statuses ...domain.DisputeStatus) ([]domain.Dispute, error) {
	return uc.store.ListDisputes(ctx, statuses...)
}

// StartReview moves a RECEIVED dispute to UNDER_REVIEW.
func (uc *DisputeUseCase) StartReview(ctx context.Context, id string) (*domain.Dispute, error) {
	return uc.transition(ctx, id, domain.DisputeStatusUnderReview, nil)
}

// RequestEvidence moves an UNDER_REVIEW dispute to EVIDENCE_REQUIRED. A zero
// dueBy keeps the deadline from the provider notification.
func (uc *DisputeUseCase) RequestEvidence(ctx context.Context, id string, dueBy time.Time) (*domain.Dispute, error) {
	return uc.transition(ctx, id, domain.DisputeStatusEvidenceRequired, func(d *domain.Dispute) {
		if !dueBy.IsZero() {
			d.EvidenceDueBy = &dueBy
		}
	})
}

// SubmitEvidence records the evidence submission, which takes the dispute out
// of the deadline sweep.
func (uc *DisputeUseCase) SubmitEvidence(ctx context.Context, id string) (*domain.Dispute, error) {
	return uc.transition(ctx, id, domain.DisputeStatusEvidenceSubmitted, func(d *domain.Dispute) {
		d.EvidenceSubmitted = true
		d.DeadlineMissed = false
	})
}

// ResolveDispute applies the provider's decision (WON or LOST) on a dispute
// with submitted evidence.
func (uc *DisputeUseCase) ResolveDispute(ctx context.Context, id string, outcome domain.DisputeStatus) (*domain.Dispute, error) {
	if outcome != domain.DisputeStatusWon && outcome != domain.DisputeStatusLost {
		return nil, fmt.Errorf("outcome %q: %w", outcome, domain.ErrInvalidDisputeTransition)
	}
	return uc.transition(ctx, id, outcome, nil)
}

// AcceptDispute concedes a dispute before evidence is requested.
func (uc *DisputeUseCase) AcceptDispute(ctx context.Context, id string) (*domain.Dispute, error) {
	return uc.transition(ctx, id, domain.DisputeStatusAccepted, nil)
}

// SweepDeadlines finds active disputes whose evidence deadline passed without
// a submission and applies the configured policy. It returns the disputes it
// touched.
func (uc *DisputeUseCase) SweepDeadlines(ctx context.Context) ([]domain.Dispute, error) {
	active, err := uc.store.ListDisputes(ctx, domain.ActiveDisputeStatuses()...)
	if err != nil {
		return nil, fmt.Errorf("could not list active disputes: %w", err)
	}

	now := uc.now()
	var swept []domain.Dispute
	for i := range active {
		d := &active[i]
		if !d.EvidenceOverdue(now) {
			continue
		}

		var updated *domain.Dispute
		switch uc.cfg.DeadlinePolicy {
		case DeadlinePolicyExpire:
			updated, err = uc.transition(ctx, d.ID, domain.DisputeStatusExpired, func(d *domain.Dispute) {
				d.DeadlineMissed = true
			})
		default:
			if d.DeadlineMissed {
				continue
			}
			updated, err = uc.flagDeadline(ctx, d.ID)
		}
		if err != nil {
			uc.log.Error("dispute deadline sweep failed", zap.String("dispute_id", d.ID), zap.Error(err))
			continue
		}
		uc.log.Warn("dispute evidence deadline missed",
			zap.String("dispute_id", updated.ID),
			zap.String("status", string(updated.Status)),
			zap.Timep("evidence_due_by", updated.EvidenceDueBy))
		swept = append(swept, *updated)
	}
	return swept, nil
}

// ListOverdue returns active disputes past their evidence deadline.
func (uc *DisputeUseCase) ListOverdue(ctx context.Context) ([]domain.Dispute, error) {
	active, err := uc.store.ListDisputes(ctx, domain.ActiveDisputeStatuses()...)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	var overdue []domain.Dispute
	for _, d := range active {
		if d.EvidenceOverdue(now) {
			overdue = append(overdue, d)
		}
	}
	return overdue, nil
}

// ListChargebackBlocked returns active disputes whose debiting outcome was
// refused because the account could not cover the chargeback.
func (uc *DisputeUseCase) ListChargebackBlocked(ctx context.Context) ([]domain.Dispute, error) {
	active, err := uc.store.ListDisputes(ctx, domain.ActiveDisputeStatuses()...)
	if err != nil {
		return nil, err
	}
	var blocked []domain.Dispute
	for _, d := range active {
		if d.ChargebackBlocked {
			blocked = append(blocked, d)
		}
	}
	return blocked, nil
}

func (uc *DisputeUseCase) flagChargebackBlocked(ctx context.Context, id string) error {
	return uc.store.WithinTx(ctx, func(tx Tx) error {
		d, err := tx.GetDispute(ctx, id)
		if err != nil {
			return err
		}
		if d.ChargebackBlocked || d.Status.IsTerminal() {
			return nil
		}
		d.ChargebackBlocked = true
		d.UpdatedAt = uc.now()
		return tx.UpdateDispute(ctx, d)
	})
}

func (uc *DisputeUseCase) flagDeadline(ctx context.Context, id string) (*domain.Dispute, error) {
	var out *domain.Dispute
	err := uc.store.WithinTx(ctx, func(tx Tx) error {
		d, err := tx.GetDispute(ctx, id)
		if err != nil {
			return err
		}
		d.DeadlineMissed = true
		d.UpdatedAt = uc.now()
		out = d
		return tx.UpdateDispute(ctx, d)
	})
	return out, err
}

// transition locks the dispute's account and the platform accounts a
// chargeback posts to, re-reads the dispute and applies the edge. Entering a
// terminal state releases the frozen hold; a debiting outcome also posts the
// CHARGEBACK transaction in the same unit of work.
func (uc *DisputeUseCase) transition(ctx context.Context, id string, next domain.DisputeStatus, mutate func(d *domain.Dispute)) (*domain.Dispute, error) {
	current, err := uc.store.GetDispute(ctx, id)
	if err != nil {
		return nil, err
	}
	lockIDs := []string{current.AccountID}
	var chargebacks, fees *domain.Account
	if next.DebitsAccount() {
		if chargebacks, err = uc.ledger.PlatformAccount(ctx, ChargebackClearingOwner, current.Currency, domain.AccountTypeClearing); err != nil {
			return nil, err
		}
		if fees, err = uc.ledger.PlatformAccount(ctx, FeeRevenueOwner, current.Currency, domain.AccountTypeClearing); err != nil {
			return nil, err
		}
		lockIDs = append(lockIDs, chargebacks.ID, fees.ID)
	}

	var out *domain.Dispute
	err = uc.store.WithinTx(ctx, func(tx Tx) error {
		accounts, err := tx.LockAccounts(ctx, lockIDs...)
		if err != nil {
			return err
		}
		d, err := tx.GetDispute(ctx, id)
		if err != nil {
			return err
		}
		if !d.Status.CanTransitionTo(next) {
			return fmt.Errorf("dispute %s is %s, cannot move to %s: %w", d.ID, d.Status, next, domain.ErrInvalidDisputeTransition)
		}

		now := uc.now()
		if mutate != nil {
			mutate(d)
		}
		if next.IsTerminal() {
			acc := accounts[d.AccountID]
			if d.FundsFrozen {
				if err := releaseFunds(acc, d.FrozenAmount); err != nil {
					return err
				}
				d.FundsFrozen = false
				d.FundsReleasedAt = &now
				acc.UpdatedAt = now
				if err := tx.UpdateAccount(ctx, acc); err != nil {
					return err
				}
			}
			if next.DebitsAccount() {
				chargeback, err := uc.ledger.postLocked(ctx, tx, accounts, uc.chargebackRequest(d, chargebacks.ID, fees.ID))
				if err != nil {
					return err
				}
				d.ChargebackTxID = chargeback.ID
			}
			d.ChargebackBlocked = false
			d.ResolvedAt = &now
		}
		d.Status = next
		d.UpdatedAt = now
		out = d
		return tx.UpdateDispute(ctx, d)
	})
	if next.DebitsAccount() && errors.Is(err, domain.ErrInsufficientBalance) {
		// the dispute stays open; an operator has to fund the account and retry
		if flagErr := uc.flagChargebackBlocked(ctx, id); flagErr != nil {
			uc.log.Error("could not flag blocked chargeback", zap.String("dispute_id", id), zap.Error(flagErr))
		}
		uc.log.Warn("chargeback blocked by insufficient balance",
			zap.String("dispute_id", id),
			zap.String("outcome", string(next)),
			zap.Error(err))
	}
	if err != nil {
		return nil, err
	}

	metrics.RecordDisputeTransition(string(next))
	uc.log.Info("dispute transitioned",
		zap.String("dispute_id", out.ID),
		zap.String("status", string(out.Status)))
	return out, nil
}

func (uc *DisputeUseCase) chargebackRequest(d *domain.Dispute, chargebacksID, feesID string) PostTransactionRequest {
	req := PostTransactionRequest{
		TransactionType: domain.TransactionTypeChargeback,
		PaymentProvider: d.PaymentProvider,
		IdempotencyKey:  "chargeback:" + d.ID,
		Description:     fmt.Sprintf("dispute %s %s", d.ProviderDisputeID, d.Status),
		Entries: []EntryRequest{
			{AccountID: d.AccountID, EntryType: domain.EntryTypeDebit, AmountMinor: d.DisputedAmount + uc.cfg.FeeMinor, Currency: d.Currency},
			{AccountID: chargebacksID, EntryType: domain.EntryTypeCredit, AmountMinor: d.DisputedAmount, Currency: d.Currency},
		},
		// the provider already pulled the money
		allowFrozen: true,
	}
	if uc.cfg.FeeMinor > 0 {
		req.Entries = append(req.Entries, EntryRequest{
			AccountID: feesID, EntryType: domain.EntryTypeCredit, AmountMinor: uc.cfg.FeeMinor, Currency: d.Currency,
		})
	}
	return req
}

// disputedAccount picks the participant account credited by the payment.
func (uc *DisputeUseCase) disputedAccount(ctx context.Context, txn *domain.Transaction) (string, error) {
	for _, e := range txn.Entries {
		if e.EntryType != domain.EntryTypeCredit {
			continue
		}
		acc, err := uc.store.GetAccount(ctx, e.AccountID)
		if err != nil {
			return "", err
		}
		if acc.OwnerType != domain.OwnerTypePlatform {
			return acc.ID, nil
		}
	}
	return "", fmt.Errorf("transaction %s credits no participant account: %w", txn.ID, domain.ErrInvalidDispute)
}
