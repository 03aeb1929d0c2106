package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

var _ usecase.StatementSource = (*HTTPStatementSource)(nil)

// HTTPStatementSource fetches provider statements from a settlement API:
//
//	GET {baseURL}/statements/{provider}?start=RFC3339&end=RFC3339
type HTTPStatementSource struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPStatementSource creates a new statement client. token is sent as a
// bearer token when set.
func NewHTTPStatementSource(baseURL, token string, timeout time.Duration) *HTTPStatementSource {
	return &HTTPStatementSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

type statementResponse struct {
	Records []statementLine `json:"records"`
}

type statementLine struct {
	ProviderTransactionID string          `json:"provider_transaction_id"`
	Amount                decimal.Decimal `json:"amount"`
	Currency              string          `json:"currency"`
	Status                string          `json:"status"`
	OccurredAt            time.Time       `json:"occurred_at"`
}

// FetchStatement implements usecase.StatementSource.
func (s *HTTPStatementSource) FetchStatement(ctx context.Context, provider string, start, end time.Time) ([]domain.ProviderRecord, error) {
	q := url.Values{}
	q.Set("start", start.UTC().Format(time.RFC3339))
	q.Set("end", end.UTC().Format(time.RFC3339))
	endpoint := fmt.Sprintf("%s/statements/%s?%s", s.baseURL, url.PathEscape(provider), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build statement request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("statement request for %s failed: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("statement request for %s returned %d: %s", provider, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload statementResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode statement for %s: %w", provider, err)
	}

	records := make([]domain.ProviderRecord, 0, len(payload.Records))
	for _, line := range payload.Records {
		currency := domain.NormalizeCurrency(line.Currency)
		amount, err := ParseMinorUnits(line.Amount.String(), currency)
		if err != nil {
			return nil, fmt.Errorf("statement line %s: %w", line.ProviderTransactionID, err)
		}
		records = append(records, domain.ProviderRecord{
			ProviderTransactionID: line.ProviderTransactionID,
			AmountMinor:           amount,
			Currency:              currency,
			Status:                domain.ParseProviderStatus(line.Status),
			OccurredAt:            line.OccurredAt,
			Source:                "api:" + provider,
		})
	}
	return records, nil
}
