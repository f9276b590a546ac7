package models

import "time"

// Experiment is a controlled comparison of a challenger script version
// against the control (current) version under live call traffic.
type Experiment struct {
	ID                  string `gorm:"primaryKey;size:32"`
	AgentID             string `gorm:"size:32;not null;index"`
	ControlVersionID    string `gorm:"size:32;not null"`
	ChallengerVersionID string `gorm:"size:32;not null"`
	Status              string `gorm:"size:16;default:running;index"`
	Decision            string `gorm:"size:16"` // control, challenger, inconclusive

	ControlSentiment     float64
	ControlConversion    float64
	ControlDurationSec   float64
	ControlSamples       int
	ChallengerSentiment  float64
	ChallengerConversion float64
	ChallengerDuration   float64
	ChallengerSamples    int

	PromotedVersionID *string `gorm:"size:32"`
	CreatedAt         time.Time
	CompletedAt       *time.Time
}

// Experiment statuses.
const (
	ExperimentRunning   = "running"
	ExperimentCompleted = "completed"
)

// Experiment decisions.
const (
	DecisionControl      = "control"
	DecisionChallenger   = "challenger"
	DecisionInconclusive = "inconclusive"
)

// CallOutcome is one observed call result attributed to a script
// version, supplied by the outcome-metrics collaborator.
type CallOutcome struct {
	ID          uint    `gorm:"primaryKey;autoIncrement"`
	AgentID     string  `gorm:"size:32;not null;index"`
	VersionID   string  `gorm:"size:32;not null;index"`
	Sentiment   float64 // in [0,1]
	Converted   bool
	DurationSec float64
	CreatedAt   time.Time
}

// EventLog is the append-only record of engine events, consumed by the
// SSE stream and the notification watcher.
type EventLog struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	AgentID   string `gorm:"size:32;index"`
	Kind      string `gorm:"size:32;index"` // e.g. version.created, experiment.promoted
	Subject   string `gorm:"size:128"`
	Detail    string `gorm:"type:text"`
	CreatedAt time.Time
}

// Event kinds written by the engine.
const (
	EventVersionCreated     = "version.created"
	EventSuggestionCreated  = "suggestion.created"
	EventSuggestionAccepted = "suggestion.accepted"
	EventSuggestionRejected = "suggestion.rejected"
	EventExperimentStarted  = "experiment.started"
	EventExperimentDecided  = "experiment.decided"
	EventRepairApplied      = "repair.applied"
)
