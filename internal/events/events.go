// Package events writes the append-only engine event log consumed by
// the SSE stream and the notification watcher.
package events

import (
	"fmt"
	"log"
	"time"

	"github.com/dialtone-ai/greenroom/internal/models"
	"gorm.io/gorm"
)

// Log appends an event. Returns the created row for callers that need
// its ID; most don't.
func Log(db *gorm.DB, agentID, kind, subject, detail string) (*models.EventLog, error) {
	ev := models.EventLog{
		AgentID:   agentID,
		Kind:      kind,
		Subject:   subject,
		Detail:    detail,
		CreatedAt: time.Now(),
	}
	if err := db.Create(&ev).Error; err != nil {
		return nil, fmt.Errorf("events: log %s: %w", kind, err)
	}
	return &ev, nil
}

// LogBestEffort appends an event, logging instead of returning on
// failure. Event history is observability, never a reason to fail the
// operation that produced it.
func LogBestEffort(db *gorm.DB, agentID, kind, subject, detail string) {
	if _, err := Log(db, agentID, kind, subject, detail); err != nil {
		log.Printf("events: %v", err)
	}
}

// Since returns events with ID greater than afterID, oldest first,
// capped at limit. Used by pollers tailing the log.
func Since(db *gorm.DB, afterID uint, limit int) ([]models.EventLog, error) {
	if limit <= 0 {
		limit = 100
	}
	var evs []models.EventLog
	if err := db.Where("id > ?", afterID).Order("id ASC").Limit(limit).Find(&evs).Error; err != nil {
		return nil, fmt.Errorf("events: since %d: %w", afterID, err)
	}
	return evs, nil
}

// Recent returns the newest limit events for an agent, newest first.
// An empty agentID returns events across all agents.
func Recent(db *gorm.DB, agentID string, limit int) ([]models.EventLog, error) {
	if limit <= 0 {
		limit = 50
	}
	q := db.Order("id DESC").Limit(limit)
	if agentID != "" {
		q = q.Where("agent_id = ?", agentID)
	}
	var evs []models.EventLog
	if err := q.Find(&evs).Error; err != nil {
		return nil, fmt.Errorf("events: recent: %w", err)
	}
	return evs, nil
}
