// Package runtime propagates compiled scripts to the live
// conversational runtime. Sync is eventually consistent: the persisted
// version row is the source of truth and a failed push is retryable.
package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/dialtone-ai/greenroom/internal/config"
)

// Syncer pushes a compiled script to the runtime identified by handle.
type Syncer interface {
	PushScript(ctx context.Context, handle, compiledText string) error
}

// HTTPSyncer posts script updates to a configured runtime endpoint.
type HTTPSyncer struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPSyncer creates an HTTPSyncer from runtime configuration.
func NewHTTPSyncer(cfg config.RuntimeConfig) (*HTTPSyncer, error) {
	if cfg.SyncURL == "" {
		return nil, fmt.Errorf("runtime: sync_url is required")
	}
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPSyncer{
		url:    cfg.SyncURL,
		token:  cfg.AuthToken,
		client: &http.Client{Timeout: timeout},
	}, nil
}

type pushPayload struct {
	Handle string `json:"handle"`
	Script string `json:"script"`
}

// PushScript posts the compiled script for one runtime handle.
func (s *HTTPSyncer) PushScript(ctx context.Context, handle, compiledText string) error {
	if handle == "" {
		return fmt.Errorf("runtime: handle is required")
	}
	body, err := json.Marshal(pushPayload{Handle: handle, Script: compiledText})
	if err != nil {
		return fmt.Errorf("runtime: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("runtime: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("runtime: push to %s: %w", s.url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("runtime: push to %s: status %d", s.url, resp.StatusCode)
	}
	return nil
}

// Nop is a Syncer that does nothing, for deployments without a live
// runtime connection and for tests.
type Nop struct{}

// PushScript implements Syncer.
func (Nop) PushScript(context.Context, string, string) error { return nil }
