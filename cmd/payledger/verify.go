package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payledger/internal/app"
	"payledger/internal/usecase"
)

func verifyCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Check ledger integrity and print the report as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx := cmd.Context()
			store, closeStore, err := app.OpenStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer closeStore()

			report, err := usecase.NewVerificationUseCase(store, log.Named("verification")).Verify(ctx)
			if err != nil {
				return err
			}
			output, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to generate JSON report: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(output))
			if !report.Healthy() {
				log.Warn("ledger integrity check failed",
					zap.Int("unbalanced", len(report.UnbalancedTransactions)),
					zap.Int("drifted", len(report.BalanceDrift)))
				return errors.New("ledger is not healthy")
			}
			return nil
		},
	}
}
