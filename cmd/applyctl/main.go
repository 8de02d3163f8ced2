// Command applyctl is the operator tool for migrations, demo data, dev
// tokens, offline boolean queries, one-off scrapes and stored secrets.
package main

import (
	"fmt"
	"os"

	"apply-codes/internal/config"
	"apply-codes/internal/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

var verbose bool

func main() {
	rootCmd := &cobra.Command{
		Use:           "applyctl",
		Short:         "Operator tool for the apply-codes backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(booleanCmd())
	rootCmd.AddCommand(scrapeCmd())
	rootCmd.AddCommand(secretCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() *zap.Logger {
	log, err := logger.New(false, verbose)
	if err != nil {
		return zap.NewNop()
	}
	return log
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
