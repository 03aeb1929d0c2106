package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"payledger/internal/domain"
	"payledger/internal/metrics"
)

// errPaymentNotRecorded is returned when a dispute arrives before the payment
// it refers to. It is transient: the payment webhook may still be in flight.
var errPaymentNotRecorded = errors.New("disputed payment not recorded yet")

// IngestionConfig bounds webhook redelivery.
type IngestionConfig struct {
	MaxRetries     int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
}

// IngestionResult tells the delivery channel how to settle an event.
type IngestionResult struct {
	Outcome    domain.IngestionOutcome `json:"outcome"`
	RetryAfter time.Duration           `json:"retry_after,omitempty"`
	RecordID   string                  `json:"record_id,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// IngestionUseCase turns provider notifications into ledger operations.
type IngestionUseCase struct {
	ledger   *LedgerUseCase
	payouts  *PayoutUseCase
	disputes *DisputeUseCase
	log      *zap.Logger
	cfg      IngestionConfig
}

// NewIngestionUseCase creates a new instance of the webhook boundary.
func NewIngestionUseCase(ledger *LedgerUseCase, payouts *PayoutUseCase, disputes *DisputeUseCase, log *zap.Logger, cfg IngestionConfig) *IngestionUseCase {
	return &IngestionUseCase{ledger: ledger, payouts: payouts, disputes: disputes, log: log, cfg: cfg}
}

// Handle applies ev. Validation errors are dead-lettered at once; any other
// error is retried until the event has been redelivered MaxRetries times.
func (uc *IngestionUseCase) Handle(ctx context.Context, ev domain.InboundEvent) IngestionResult {
	recordID, err := uc.apply(ctx, ev)

	var res IngestionResult
	switch {
	case err == nil:
		res = IngestionResult{Outcome: domain.OutcomeAck, RecordID: recordID}
	case domain.IsValidationError(err):
		res = IngestionResult{Outcome: domain.OutcomeDeadLetter, Error: err.Error()}
	case ev.RetryCount >= uc.cfg.MaxRetries:
		res = IngestionResult{Outcome: domain.OutcomeDeadLetter, Error: err.Error()}
	default:
		res = IngestionResult{Outcome: domain.OutcomeRetry, RetryAfter: uc.retryDelay(ev.RetryCount), Error: err.Error()}
	}

	metrics.RecordIngestion(string(ev.Kind), string(res.Outcome))
	fields := []zap.Field{
		zap.String("event_id", ev.EventID),
		zap.String("provider", ev.Provider),
		zap.String("kind", string(ev.Kind)),
		zap.Int("retry_count", ev.RetryCount),
		zap.String("outcome", string(res.Outcome)),
	}
	switch res.Outcome {
	case domain.OutcomeAck:
		uc.log.Info("event ingested", fields...)
	case domain.OutcomeRetry:
		uc.log.Warn("event will be retried", append(fields, zap.Duration("retry_after", res.RetryAfter), zap.Error(err))...)
	default:
		uc.log.Error("event dead-lettered", append(fields, zap.Error(err))...)
	}
	return res
}

// retryDelay is the exponential delay before redelivery number retryCount+1.
func (uc *IngestionUseCase) retryDelay(retryCount int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxElapsedTime = 0
	if uc.cfg.RetryBaseDelay > 0 {
		b.InitialInterval = uc.cfg.RetryBaseDelay
	}
	if uc.cfg.RetryMaxDelay > 0 {
		b.MaxInterval = uc.cfg.RetryMaxDelay
	}
	b.Reset()

	delay := b.NextBackOff()
	for i := 0; i < retryCount; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

func (uc *IngestionUseCase) apply(ctx context.Context, ev domain.InboundEvent) (string, error) {
	if ev.EventID == "" || ev.Provider == "" {
		return "", fmt.Errorf("event id and provider are required: %w", domain.ErrInvalidEvent)
	}

	switch ev.Kind {
	case domain.EventPaymentCaptured:
		return uc.paymentCaptured(ctx, ev)
	case domain.EventRefundSucceeded:
		return uc.refundSucceeded(ctx, ev)
	case domain.EventDisputeOpened:
		return uc.disputeOpened(ctx, ev)
	case domain.EventPayoutPaid:
		p, err := uc.payouts.MarkPayoutPaid(ctx, ev.PayoutID, ev.ExternalTransactionID)
		if err != nil {
			return "", uc.redelivered(ctx, ev.PayoutID, domain.PayoutStatusPaid, err)
		}
		return p.SettlementTxID, nil
	case domain.EventPayoutFailed:
		if _, err := uc.payouts.MarkPayoutFailed(ctx, ev.PayoutID, ev.FailureReason); err != nil {
			return "", uc.redelivered(ctx, ev.PayoutID, domain.PayoutStatusFailed, err)
		}
		return ev.PayoutID, nil
	default:
		return "", fmt.Errorf("unknown event kind %q: %w", ev.Kind, domain.ErrInvalidEvent)
	}
}

func (uc *IngestionUseCase) paymentCaptured(ctx context.Context, ev domain.InboundEvent) (string, error) {
	if err := validateMoneyEvent(ev); err != nil {
		return "", err
	}
	if ev.FeeMinor < 0 || ev.FeeMinor >= ev.AmountMinor {
		return "", fmt.Errorf("fee %d of %d: %w", ev.FeeMinor, ev.AmountMinor, domain.ErrInvalidEvent)
	}
	settlement, err := uc.ledger.PlatformAccount(ctx, SettlementOwner(ev.Provider), ev.Currency, domain.AccountTypeExternal)
	if err != nil {
		return "", err
	}

	entries := []EntryRequest{
		{AccountID: settlement.ID, EntryType: domain.EntryTypeDebit, AmountMinor: ev.AmountMinor, Currency: ev.Currency},
		{AccountID: ev.AccountID, EntryType: domain.EntryTypeCredit, AmountMinor: ev.AmountMinor - ev.FeeMinor, Currency: ev.Currency},
	}
	if ev.FeeMinor > 0 {
		fees, err := uc.ledger.PlatformAccount(ctx, FeeRevenueOwner, ev.Currency, domain.AccountTypeClearing)
		if err != nil {
			return "", err
		}
		entries = append(entries, EntryRequest{AccountID: fees.ID, EntryType: domain.EntryTypeCredit, AmountMinor: ev.FeeMinor, Currency: ev.Currency})
	}

	txn, err := uc.ledger.PostTransaction(ctx, PostTransactionRequest{
		TransactionType:       domain.TransactionTypePayment,
		PaymentProvider:       ev.Provider,
		ProviderTransactionID: ev.ProviderTransactionID,
		IdempotencyKey:        IdempotencyKey(ev.Provider, domain.TransactionTypePayment, ev.ProviderTransactionID),
		Description:           "payment " + ev.ProviderTransactionID,
		Entries:               entries,
	})
	if err != nil {
		return "", err
	}
	return txn.ID, nil
}

func (uc *IngestionUseCase) refundSucceeded(ctx context.Context, ev domain.InboundEvent) (string, error) {
	if err := validateMoneyEvent(ev); err != nil {
		return "", err
	}
	settlement, err := uc.ledger.PlatformAccount(ctx, SettlementOwner(ev.Provider), ev.Currency, domain.AccountTypeExternal)
	if err != nil {
		return "", err
	}
	txn, err := uc.ledger.PostTransaction(ctx, PostTransactionRequest{
		TransactionType:       domain.TransactionTypeRefund,
		PaymentProvider:       ev.Provider,
		ProviderTransactionID: ev.ProviderTransactionID,
		IdempotencyKey:        IdempotencyKey(ev.Provider, domain.TransactionTypeRefund, ev.ProviderTransactionID),
		Description:           "refund " + ev.ProviderTransactionID,
		Entries: []EntryRequest{
			{AccountID: ev.AccountID, EntryType: domain.EntryTypeDebit, AmountMinor: ev.AmountMinor, Currency: ev.Currency},
			{AccountID: settlement.ID, EntryType: domain.EntryTypeCredit, AmountMinor: ev.AmountMinor, Currency: ev.Currency},
		},
	})
	if err != nil {
		return "", err
	}
	return txn.ID, nil
}

func (uc *IngestionUseCase) disputeOpened(ctx context.Context, ev domain.InboundEvent) (string, error) {
	if ev.Dispute == nil || ev.ProviderTransactionID == "" {
		return "", fmt.Errorf("dispute details and disputed payment are required: %w", domain.ErrInvalidEvent)
	}
	payment, err := uc.ledger.FindByIdempotencyKey(ctx, IdempotencyKey(ev.Provider, domain.TransactionTypePayment, ev.ProviderTransactionID))
	if errors.Is(err, domain.ErrTransactionNotFound) {
		return "", fmt.Errorf("%s: %w", ev.ProviderTransactionID, errPaymentNotRecorded)
	}
	if err != nil {
		return "", err
	}

	amount := ev.AmountMinor
	if amount == 0 {
		amount = payment.AmountMinor
	}
	dispute, err := uc.disputes.OpenDispute(ctx, DisputeRequest{
		Provider:          ev.Provider,
		ProviderDisputeID: ev.Dispute.ProviderDisputeID,
		TransactionID:     payment.ID,
		AccountID:         ev.AccountID,
		DisputeType:       ev.Dispute.DisputeType,
		Reason:            ev.Dispute.Reason,
		AmountMinor:       amount,
		EvidenceDueBy:     ev.Dispute.EvidenceDueBy,
		FreezeFunds:       ev.Dispute.FreezeFunds,
	})
	if err != nil {
		return "", err
	}
	return dispute.ID, nil
}

// redelivered acks a payout event whose payout already reached the status the
// event reports.
func (uc *IngestionUseCase) redelivered(ctx context.Context, payoutID string, status domain.PayoutStatus, err error) error {
	if !errors.Is(err, domain.ErrInvalidPayoutTransition) {
		return err
	}
	p, getErr := uc.payouts.GetPayout(ctx, payoutID)
	if getErr == nil && p.Status == status {
		return nil
	}
	return err
}

func validateMoneyEvent(ev domain.InboundEvent) error {
	if ev.AccountID == "" || ev.ProviderTransactionID == "" || ev.Currency == "" {
		return fmt.Errorf("account, provider transaction id and currency are required: %w", domain.ErrInvalidEvent)
	}
	if ev.AmountMinor <= 0 {
		return domain.ErrInvalidAmount
	}
	return nil
}

// IdempotencyKey builds the key under which a provider event is posted.
func IdempotencyKey(provider string, txType domain.TransactionType, providerTransactionID string) string {
	return fmt.Sprintf("%s:%s:%s", provider, txType, providerTransactionID)
}
