package main

import (
	"testing"

	"github.com/dialtone-ai/greenroom/internal/config"
)

func TestNewNotifyDaemonCmd(t *testing.T) {
	cmd := newNotifyDaemonCmd()
	if cmd.Use != "notify-daemon" {
		t.Errorf("Use = %q, want %q", cmd.Use, "notify-daemon")
	}
	flag := cmd.Flags().Lookup("config")
	if flag == nil {
		t.Fatal("expected --config flag")
	}
	if flag.DefValue != "greenroom.yaml" {
		t.Errorf("--config default = %q, want %q", flag.DefValue, "greenroom.yaml")
	}
}

func TestNotifyDaemonCmd_MissingConfig(t *testing.T) {
	_, err := runCLI(t, "notify-daemon", "--config", "/nonexistent/greenroom.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestBuildAdapters_NoneConfigured(t *testing.T) {
	adapters, err := buildAdapters(&config.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(adapters) != 0 {
		t.Errorf("expected no adapters, got %d", len(adapters))
	}
}

func TestBuildAdapters_SlackMissingChannel(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notify.Slack.BotToken = "xoxb-test"
	if _, err := buildAdapters(cfg); err == nil {
		t.Fatal("expected error when Slack channel is missing")
	}
}

func TestBuildAdapters_Both(t *testing.T) {
	cfg := &config.Config{}
	cfg.Notify.Slack.BotToken = "xoxb-test"
	cfg.Notify.Slack.ChannelID = "C123"
	cfg.Notify.Discord.BotToken = "token"
	cfg.Notify.Discord.ChannelID = "456"
	adapters, err := buildAdapters(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(adapters) != 2 {
		t.Errorf("expected 2 adapters, got %d", len(adapters))
	}
}
