package discord

import (
	"context"
	"errors"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/dialtone-ai/greenroom/internal/notify"
)

// mockSession records sent embeds for assertions.
type mockSession struct {
	sendErr  error
	channels []string
	embeds   []*discordgo.MessageEmbed
	closed   bool
}

func (m *mockSession) ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.channels = append(m.channels, channelID)
	m.embeds = append(m.embeds, embed)
	if m.sendErr != nil {
		return nil, m.sendErr
	}
	return &discordgo.Message{ID: "1"}, nil
}

func (m *mockSession) Close() error {
	m.closed = true
	return nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(AdapterOpts{ChannelID: "123"}); err == nil {
		t.Error("expected error without bot token or session")
	}
	if _, err := New(AdapterOpts{Session: &mockSession{}}); err == nil {
		t.Error("expected error without channel ID")
	}
}

func TestSend(t *testing.T) {
	mock := &mockSession{}
	a, err := New(AdapterOpts{Session: mock, ChannelID: "123"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	n := notify.Notice{
		Title:    "Agent agt-1a2b3: script repaired",
		Body:     "restored 2 version(s) from v1",
		Severity: "warning",
		Color:    notify.ColorWarning,
		Fields:   []notify.Field{{Name: "Event", Value: "repair.applied", Short: true}},
	}
	if err := a.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mock.embeds) != 1 {
		t.Fatalf("embeds = %d, want 1", len(mock.embeds))
	}
	embed := mock.embeds[0]
	if embed.Title != n.Title {
		t.Errorf("Title = %q", embed.Title)
	}
	if embed.Color != 0xff9800 {
		t.Errorf("Color = %#x, want %#x", embed.Color, 0xff9800)
	}
	if len(embed.Fields) != 1 || embed.Fields[0].Value != "repair.applied" {
		t.Errorf("Fields = %+v", embed.Fields)
	}
}

func TestSend_Error(t *testing.T) {
	mock := &mockSession{sendErr: errors.New("missing access")}
	a, _ := New(AdapterOpts{Session: mock, ChannelID: "123"})
	if err := a.Send(context.Background(), notify.Notice{Title: "t"}); err == nil {
		t.Error("expected error from failed send")
	}
}

func TestClose(t *testing.T) {
	mock := &mockSession{}
	a, _ := New(AdapterOpts{Session: mock, ChannelID: "123"})
	if err := a.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if !mock.closed {
		t.Error("session not closed")
	}
}

func TestHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#36a64f", 0x36a64f},
		{"2196f3", 0x2196f3},
		{"", 0x2196f3},
		{"not-a-color", 0x2196f3},
	}
	for _, tt := range tests {
		if got := hexColor(tt.in); got != tt.want {
			t.Errorf("hexColor(%q) = %#x, want %#x", tt.in, got, tt.want)
		}
	}
}
