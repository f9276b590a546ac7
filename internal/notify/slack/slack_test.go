package slack

import (
	"context"
	"errors"
	"testing"

	slackapi "github.com/slack-go/slack"
	"github.com/dialtone-ai/greenroom/internal/notify"
)

// mockClient records PostMessage calls for assertions.
type mockClient struct {
	authErr  error
	postErr  error
	channels []string
	options  [][]slackapi.MsgOption
}

func (m *mockClient) AuthTestContext(ctx context.Context) (*slackapi.AuthTestResponse, error) {
	if m.authErr != nil {
		return nil, m.authErr
	}
	return &slackapi.AuthTestResponse{UserID: "U123"}, nil
}

func (m *mockClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.channels = append(m.channels, channelID)
	m.options = append(m.options, options)
	if m.postErr != nil {
		return "", "", m.postErr
	}
	return channelID, "1234.5678", nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(AdapterOpts{ChannelID: "C1"}); err == nil {
		t.Error("expected error without bot token or client")
	}
	if _, err := New(AdapterOpts{Client: &mockClient{}}); err == nil {
		t.Error("expected error without channel ID")
	}
	if _, err := New(AdapterOpts{Client: &mockClient{}, ChannelID: "C1"}); err != nil {
		t.Errorf("New with mock client: %v", err)
	}
}

func TestConnect(t *testing.T) {
	mock := &mockClient{}
	a, _ := New(AdapterOpts{Client: mock, ChannelID: "C1"})
	if err := a.Connect(context.Background()); err != nil {
		t.Errorf("Connect: %v", err)
	}

	mock.authErr = errors.New("invalid_auth")
	if err := a.Connect(context.Background()); err == nil {
		t.Error("expected error from failed auth test")
	}
}

func TestSend(t *testing.T) {
	mock := &mockClient{}
	a, _ := New(AdapterOpts{Client: mock, ChannelID: "C1"})

	n := notify.Notice{
		Title:    "Agent agt-1a2b3: suggestion accepted",
		Body:     "detail",
		Severity: "success",
		Color:    notify.ColorSuccess,
		Fields:   []notify.Field{{Name: "Subject", Value: "sug-abcde", Short: true}},
	}
	if err := a.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mock.channels) != 1 || mock.channels[0] != "C1" {
		t.Errorf("channels = %v", mock.channels)
	}
}

func TestSend_Error(t *testing.T) {
	mock := &mockClient{postErr: errors.New("channel_not_found")}
	a, _ := New(AdapterOpts{Client: mock, ChannelID: "C1"})

	if err := a.Send(context.Background(), notify.Notice{Title: "t"}); err == nil {
		t.Error("expected error from failed post")
	}
}
