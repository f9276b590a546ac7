package main

import (
	"testing"
)

func TestNewAnalyzeCmd(t *testing.T) {
	cmd := newAnalyzeCmd()
	if cmd.Use != "analyze" {
		t.Errorf("Use = %q, want %q", cmd.Use, "analyze")
	}
	daemonFlag := cmd.Flags().Lookup("daemon")
	if daemonFlag == nil {
		t.Fatal("expected --daemon flag")
	}
	if daemonFlag.DefValue != "false" {
		t.Errorf("--daemon default = %q, want %q", daemonFlag.DefValue, "false")
	}
	cronFlag := cmd.Flags().Lookup("cron")
	if cronFlag == nil {
		t.Fatal("expected --cron flag")
	}
	if cronFlag.DefValue != "" {
		t.Errorf("--cron default = %q, want empty", cronFlag.DefValue)
	}
}

func TestAnalyzeCmd_MissingConfig(t *testing.T) {
	_, err := runCLI(t, "analyze", "--config", "/nonexistent/greenroom.yaml")
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}
