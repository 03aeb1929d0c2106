// Package main provides the payledger binary: the HTTP service plus one-shot
// reconciliation, verification and migration commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"payledger/internal/config"
	"payledger/internal/logging"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "payledger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var envFiles []string

	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Double-entry ledger with payouts, disputes and provider reconciliation",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "dotenv files to load (default .env)")

	load := func() (*config.Config, *zap.Logger, error) {
		cfg, err := config.Load(envFiles...)
		if err != nil {
			return nil, nil, err
		}
		log, err := logging.New(cfg.LogLevel, cfg.Env)
		if err != nil {
			return nil, nil, err
		}
		return cfg, log, nil
	}

	cmd.AddCommand(serveCmd(load))
	cmd.AddCommand(reconcileCmd(load))
	cmd.AddCommand(verifyCmd(load))
	cmd.AddCommand(migrateCmd(load))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	})
	return cmd
}

type loader func() (*config.Config, *zap.Logger, error)
