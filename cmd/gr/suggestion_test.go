package main

import (
	"strings"
	"testing"
)

func TestSuggestionCmd_Help(t *testing.T) {
	out, err := runCLI(t, "suggestion", "--help")
	if err != nil {
		t.Fatalf("suggestion --help failed: %v", err)
	}
	for _, sub := range []string{"list", "accept", "reject", "reject-all"} {
		if !strings.Contains(out, sub) {
			t.Errorf("expected help to list %q subcommand, got: %s", sub, out)
		}
	}
}

func TestNewSuggestionListCmd(t *testing.T) {
	cmd := newSuggestionListCmd()
	if cmd.Use != "list <agent-id>" {
		t.Errorf("Use = %q, want %q", cmd.Use, "list <agent-id>")
	}
	if cmd.Flags().Lookup("status") == nil {
		t.Error("expected --status flag")
	}
}

func TestSuggestionAcceptCmd_NoArgs(t *testing.T) {
	_, err := runCLI(t, "suggestion", "accept", "agt-12345")
	if err == nil {
		t.Fatal("expected error for missing suggestion argument")
	}
}

func TestSuggestionRejectAllCmd_NoArgs(t *testing.T) {
	_, err := runCLI(t, "suggestion", "reject-all")
	if err == nil {
		t.Fatal("expected error for missing agent argument")
	}
}

func TestSuggestionListCmd_Empty(t *testing.T) {
	cfgPath, agentID := seedAgentWithScript(t)

	out, err := runCLI(t, "suggestion", "list", "--config", cfgPath, agentID)
	if err != nil {
		t.Fatalf("suggestion list failed: %v", err)
	}
	if !strings.Contains(out, "No suggestions.") {
		t.Errorf("expected 'No suggestions.', got: %s", out)
	}
}

func TestSuggestionRejectAllCmd_Empty(t *testing.T) {
	cfgPath, agentID := seedAgentWithScript(t)

	out, err := runCLI(t, "suggestion", "reject-all", "--config", cfgPath, agentID)
	if err != nil {
		t.Fatalf("suggestion reject-all failed: %v", err)
	}
	if !strings.Contains(out, "Rejected 0 suggestion(s)") {
		t.Errorf("expected zero rejections, got: %s", out)
	}
}
