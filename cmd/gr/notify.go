package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/dialtone-ai/greenroom/internal/config"
	"github.com/dialtone-ai/greenroom/internal/notify"
	"github.com/dialtone-ai/greenroom/internal/notify/discord"
	"github.com/dialtone-ai/greenroom/internal/notify/slack"
)

func newNotifyDaemonCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "notify-daemon",
		Short: "Stream engine events to the configured chat platforms",
		Long:  "Tails the event log and posts new events to Slack and/or Discord until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNotifyDaemon(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}

func runNotifyDaemon(cmd *cobra.Command, configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	adapters, err := buildAdapters(cfg)
	if err != nil {
		return err
	}
	if len(adapters) == 0 {
		return fmt.Errorf("no notification adapters configured (set notify.slack or notify.discord)")
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	for _, a := range adapters {
		if err := a.Connect(ctx); err != nil {
			return err
		}
		defer a.Close()
	}
	fmt.Fprintf(out, "Notify daemon starting (%d adapter(s))...\n", len(adapters))

	watcher := notify.NewWatcher(gormDB, adapters, notify.WatcherOpts{
		PollInterval: time.Duration(cfg.Notify.PollIntervalSec) * time.Second,
	})
	if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	fmt.Fprintln(out, "Notify daemon stopped.")
	return nil
}

func buildAdapters(cfg *config.Config) ([]notify.Adapter, error) {
	var adapters []notify.Adapter
	if cfg.Notify.Slack.BotToken != "" {
		a, err := slack.New(slack.AdapterOpts{
			BotToken:  cfg.Notify.Slack.BotToken,
			ChannelID: cfg.Notify.Slack.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	if cfg.Notify.Discord.BotToken != "" {
		a, err := discord.New(discord.AdapterOpts{
			BotToken:  cfg.Notify.Discord.BotToken,
			ChannelID: cfg.Notify.Discord.ChannelID,
		})
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}
	return adapters, nil
}
