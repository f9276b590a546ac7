package api

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/dialtone-ai/greenroom/internal/events"
	"github.com/dialtone-ai/greenroom/internal/models"
	"gorm.io/gorm"
)

// engineEvent is the SSE payload for one engine event.
type engineEvent struct {
	ID      uint   `json:"id"`
	AgentID string `json:"agent_id"`
	Kind    string `json:"kind"`
	Subject string `json:"subject"`
	Detail  string `json:"detail"`
	At      string `json:"at"`
}

// handleSSE streams engine events as they are logged. An optional
// ?agent_id= filters to one agent.
func handleSSE(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
		c.Writer.Flush()

		agentFilter := c.Query("agent_id")

		// Only stream events logged after the client connected.
		var lastSeenID uint
		if recent, err := events.Recent(db, "", 1); err == nil && len(recent) > 0 {
			lastSeenID = recent[0].ID
		}

		ctx := c.Request.Context()
		ticker := time.NewTicker(3 * time.Second)
		heartbeat := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				writeSSE(c.Writer, "heartbeat", map[string]string{
					"timestamp": time.Now().UTC().Format(time.RFC3339),
				})
				c.Writer.Flush()
			case <-ticker.C:
				evs, err := events.Since(db, lastSeenID, 100)
				if err != nil {
					continue
				}
				for _, ev := range evs {
					lastSeenID = ev.ID
					if agentFilter != "" && ev.AgentID != agentFilter {
						continue
					}
					writeSSE(c.Writer, "event", toEngineEvent(ev))
				}
				if len(evs) > 0 {
					c.Writer.Flush()
				}
			}
		}
	}
}

func toEngineEvent(ev models.EventLog) engineEvent {
	return engineEvent{
		ID:      ev.ID,
		AgentID: ev.AgentID,
		Kind:    ev.Kind,
		Subject: ev.Subject,
		Detail:  ev.Detail,
		At:      ev.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
