package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payledger/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("PAYLEDGER_DATABASE_URL", "")
	t.Setenv("PAYLEDGER_LOG_LEVEL", "error")

	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestReconcileCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bkash.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"provider_transaction_id,amount,currency,status,occurred_at\n"+
			"PT-001,150.00,BDT,SUCCESS,2024-05-01T10:00:00Z\n"), 0o600))

	out, err := execute(t, "reconcile", "--provider", "bkash", "--statement", path, "--start", "2024-05-01", "--end", "2024-05-02")
	require.NoError(t, err)

	var report reconcileReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.NotNil(t, report.Job)
	assert.Equal(t, domain.JobStatusCompleted, report.Job.Status)
	assert.Equal(t, 1, report.Job.TotalProviderTransactions)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, domain.DiscrepancyMissingInternal, report.Discrepancies[0].DiscrepancyType)
	assert.Equal(t, int64(15000), report.Discrepancies[0].ProviderAmount)
}

func TestReconcileCommand_BadDate(t *testing.T) {
	_, err := execute(t, "reconcile", "--provider", "bkash", "--start", "01/05/2024", "--end", "2024-05-02")
	assert.ErrorContains(t, err, "invalid start date")
}

func TestReconcileCommand_RequiredFlags(t *testing.T) {
	_, err := execute(t, "reconcile", "--start", "2024-05-01")
	assert.Error(t, err)
}

func TestVerifyCommand_EmptyLedger(t *testing.T) {
	out, err := execute(t, "verify")
	require.NoError(t, err)
	assert.Contains(t, out, "unbalanced_transactions")
}

func TestMigrateCommand_RequiresDatabase(t *testing.T) {
	_, err := execute(t, "migrate")
	assert.ErrorContains(t, err, "PAYLEDGER_DATABASE_URL")
}
