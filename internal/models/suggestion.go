package models

import "time"

// Suggestion is a reviewable, proposed set of script section changes.
// It leaves pending exactly once; after accept or reject the row is
// immutable apart from the AppliedVersionID back-reference written at
// acceptance time.
type Suggestion struct {
	ID               string  `gorm:"primaryKey;size:32"`
	AgentID          string  `gorm:"size:32;not null;index"`
	Status           string  `gorm:"size:16;default:pending;index"`
	Changes          string  `gorm:"type:json"` // array of {section, op, text}
	Source           string  `gorm:"size:16"`   // feedback, analysis
	Rationale        string  `gorm:"type:text"`
	AppliedVersionID *string `gorm:"size:32"`
	ReviewedAt       *time.Time
	CreatedAt        time.Time
}

// Suggestion statuses.
const (
	SuggestionPending  = "pending"
	SuggestionAccepted = "accepted"
	SuggestionRejected = "rejected"
)

// Suggestion sources.
const (
	SourceFeedback = "feedback"
	SourceAnalysis = "analysis"
)
