package gateway

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"payledger/internal/domain"
	"payledger/internal/usecase"
)

var _ usecase.StatementSource = (*CSVStatementReader)(nil)

// Column order of a provider settlement file.
const (
	colProviderTransactionID = iota
	colAmount
	colCurrency
	colStatus
	colOccurredAt
	statementColumns
)

// CSVStatementReader implements the StatementSource interface for provider
// settlement files. Files are either registered per provider or found in dir
// as <provider>*.csv.
type CSVStatementReader struct {
	dir   string
	files map[string][]string
}

// NewCSVStatementReader creates a new reader over dir. dir may be empty when
// every provider's files are registered with WithFiles.
func NewCSVStatementReader(dir string) *CSVStatementReader {
	return &CSVStatementReader{dir: dir, files: make(map[string][]string)}
}

// WithFiles registers the settlement files of provider.
func (r *CSVStatementReader) WithFiles(provider string, paths ...string) *CSVStatementReader {
	r.files[provider] = append(r.files[provider], paths...)
	return r
}

// FetchStatement reads every settlement file of provider. Period filtering is
// left to the matcher.
func (r *CSVStatementReader) FetchStatement(ctx context.Context, provider string, _, _ time.Time) ([]domain.ProviderRecord, error) {
	paths := r.files[provider]
	if len(paths) == 0 && r.dir != "" {
		matches, err := filepath.Glob(filepath.Join(r.dir, provider+"*.csv"))
		if err != nil {
			return nil, fmt.Errorf("failed to list statement files for %s: %w", provider, err)
		}
		sort.Strings(matches)
		paths = matches
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no statement files for provider %s", provider)
	}
	return r.ReadStatement(ctx, paths...)
}

// ReadStatement reads and parses settlement files in order.
func (r *CSVStatementReader) ReadStatement(ctx context.Context, paths ...string) ([]domain.ProviderRecord, error) {
	var allRecords []domain.ProviderRecord
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := readStatementFile(path)
		if err != nil {
			return nil, err
		}
		allRecords = append(allRecords, records...)
	}
	return allRecords, nil
}

func readStatementFile(path string) ([]domain.ProviderRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open statement file %s: %w", path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = statementColumns
	reader.TrimLeadingSpace = true
	// Skip header
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read header from %s: %w", path, err)
	}

	var records []domain.ProviderRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading record from %s: %w", path, err)
		}

		id := strings.TrimSpace(row[colProviderTransactionID])
		if id == "" {
			return nil, fmt.Errorf("missing provider transaction id in %s", path)
		}

		currency := domain.NormalizeCurrency(row[colCurrency])
		amount, err := ParseMinorUnits(row[colAmount], currency)
		if err != nil {
			return nil, fmt.Errorf("could not parse amount '%s' in %s: %w", row[colAmount], path, err)
		}

		occurredAt, err := parseStatementTime(row[colOccurredAt])
		if err != nil {
			return nil, fmt.Errorf("could not parse occurred_at '%s' in %s: %w", row[colOccurredAt], path, err)
		}

		records = append(records, domain.ProviderRecord{
			ProviderTransactionID: id,
			AmountMinor:           amount,
			Currency:              currency,
			Status:                domain.ParseProviderStatus(row[colStatus]),
			OccurredAt:            occurredAt,
			Source:                filepath.Base(path),
		})
	}
	return records, nil
}

// ParseMinorUnits converts a major-unit decimal string ("150.25") into minor
// units of currency. The sign is dropped: statements report refunds as
// negative amounts, and the direction is carried by the status. Amounts with
// more precision than the currency allows are rejected.
func ParseMinorUnits(raw, currency string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	minor := d.Abs().Shift(domain.CurrencyExponent(currency))
	if !minor.IsInteger() {
		return 0, fmt.Errorf("%s has more than %d decimal places", raw, domain.CurrencyExponent(currency))
	}
	return minor.IntPart(), nil
}

// parseStatementTime accepts RFC 3339 timestamps or plain dates. An empty
// value yields the zero time.
func parseStatementTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}
