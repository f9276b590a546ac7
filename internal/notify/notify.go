// Package notify delivers engine events to chat platforms (Slack,
// Discord). Delivery is outbound-only and best-effort: a notification
// that cannot be sent is logged and dropped, never retried into the
// engine's critical path.
package notify

import (
	"context"
	"fmt"
)

// Adapter is the interface platform-specific senders must satisfy.
type Adapter interface {
	// Connect establishes whatever session the platform needs. Safe to
	// call before any Send.
	Connect(ctx context.Context) error

	// Send delivers one notice to the platform's configured channel.
	Send(ctx context.Context, n Notice) error

	// Close shuts the adapter down.
	Close() error
}

// Notice is an engine event formatted for chat delivery.
type Notice struct {
	Title    string
	Body     string
	Severity string // "info", "warning", "error", "success"
	Color    string // sidebar color hint, e.g. "#36a64f"
	Fields   []Field
}

// Field is a key-value pair rendered alongside a notice.
type Field struct {
	Name  string
	Value string
	Short bool
}

// Color constants for notice severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// SeverityColor maps a severity string to a sidebar color.
func SeverityColor(severity string) string {
	switch severity {
	case "success":
		return ColorSuccess
	case "info":
		return ColorInfo
	case "warning":
		return ColorWarning
	case "error":
		return ColorError
	default:
		return ColorInfo
	}
}

// Fanout sends a notice to every adapter, collecting per-adapter
// failures into one error. A failing adapter never blocks the others.
func Fanout(ctx context.Context, adapters []Adapter, n Notice) error {
	var firstErr error
	failures := 0
	for _, a := range adapters {
		if err := a.Send(ctx, n); err != nil {
			failures++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return fmt.Errorf("notify: %d adapter(s) failed: %w", failures, firstErr)
	}
	return nil
}
