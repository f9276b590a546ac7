package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/dialtone-ai/greenroom/internal/analysis"
)

func newAnalyzeCmd() *cobra.Command {
	var (
		configPath string
		daemon     bool
		cronExpr   string
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the automated optimization loop",
		Long: `Aggregates recent call outcomes per agent and files improvement
suggestions for agents lagging the configured floors. One-shot by
default; --daemon runs on the configured cron schedule.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, configPath, daemon, cronExpr)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	cmd.Flags().BoolVar(&daemon, "daemon", false, "run continuously on a cron schedule")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "override the configured cron expression")
	return cmd
}

func runAnalyze(cmd *cobra.Command, configPath string, daemon bool, cronExpr string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	gen, err := generatorFromConfig(cfg)
	if err != nil {
		return err
	}

	deps := analysis.Deps{
		DB:        gormDB,
		Generator: gen,
		Analysis:  cfg.Analysis,
		Out:       cmd.OutOrStdout(),
	}

	if !daemon {
		_, err := analysis.RunOnce(cmd.Context(), deps)
		return err
	}

	if cronExpr == "" {
		cronExpr = cfg.Analysis.Cron
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(cmd.OutOrStdout(), "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	return analysis.RunDaemon(ctx, deps, cronExpr)
}
