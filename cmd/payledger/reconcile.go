package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"payledger/internal/app"
	"payledger/internal/domain"
	"payledger/internal/gateway"
	"payledger/internal/usecase"
)

const dateLayout = "2006-01-02"

type reconcileReport struct {
	Job           *domain.ReconciliationJob `json:"job"`
	Discrepancies []domain.Discrepancy      `json:"discrepancies"`
	Error         string                    `json:"error,omitempty"`
}

func reconcileCmd(load loader) *cobra.Command {
	var (
		provider   string
		statements string
		startStr   string
		endStr     string
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Reconcile one provider over [start, end) and print the report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse(dateLayout, startStr)
			if err != nil {
				return fmt.Errorf("invalid start date: %w", err)
			}
			end, err := time.Parse(dateLayout, endStr)
			if err != nil {
				return fmt.Errorf("invalid end date: %w", err)
			}

			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			var source usecase.StatementSource
			if statements != "" {
				source = gateway.NewCSVStatementReader("").WithFiles(provider, strings.Split(statements, ",")...)
			}

			ctx := cmd.Context()
			a, err := app.New(ctx, cfg, log, source)
			if err != nil {
				return err
			}
			defer a.Close()

			report := reconcileReport{}
			job, runErr := a.Reconciliation.RunReconciliation(ctx, provider, start, end)
			if job == nil {
				return runErr
			}
			report.Job = job
			if runErr != nil {
				report.Error = runErr.Error()
			}
			report.Discrepancies, err = a.Reconciliation.ListDiscrepancies(ctx, job.ID)
			if err != nil {
				return err
			}

			output, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to generate JSON report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			return runErr
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "", "payment provider to reconcile (required)")
	cmd.Flags().StringVar(&statements, "statement", "", "comma-separated settlement CSV files; defaults to the configured source")
	cmd.Flags().StringVar(&startStr, "start", "", "start date, inclusive (YYYY-MM-DD) (required)")
	cmd.Flags().StringVar(&endStr, "end", "", "end date, exclusive (YYYY-MM-DD) (required)")
	_ = cmd.MarkFlagRequired("provider")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
