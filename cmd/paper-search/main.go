package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/paper-search/pkg/app"
	"github.com/mikeboe/paper-search/pkg/config"
)

var (
	configFile string
	logLevel   string

	application *app.App
)

func main() {
	// A missing .env is fine as long as the environment is set.
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:   "paper-search",
		Short: "Search, ingest and evaluate a scientific paper index",
		Long: `paper-search runs a tool-using retrieval agent over an indexed paper collection.
It can ingest papers, run keyword and semantic searches, answer research questions
and score the agent against labeled queries.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			application = app.New(cfg)
			slog.SetDefault(application.Logger)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default ./paper-search.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override LOG_LEVEL (debug, info, warn, error)")

	rootCmd.AddCommand(
		newMigrateCmd(),
		newIngestCmd(),
		newEmbedMissingCmd(),
		newImportArxivCmd(),
		newSearchCmd(),
		newReadCmd(),
		newAskCmd(),
		newEvalCmd(),
		newGenerateCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if application != nil {
		application.Close()
	}
	if err != nil {
		slog.Error("Command execution failed", "error", err)
		stop()
		os.Exit(1)
	}
}
