package models

import "time"

// Agent is a voice agent owning a line of script versions. The
// CurrentVersionID pointer is the single version the agent speaks from;
// it moves only on version creation, suggestion acceptance, or
// experiment promotion, always through a compare-and-swap update.
type Agent struct {
	ID               string  `gorm:"primaryKey;size:32"`
	Name             string  `gorm:"not null"`
	Business         string  `gorm:"type:text"` // business self-description from onboarding
	RuntimeHandle    string  `gorm:"size:128"`  // external conversational-runtime identifier
	CurrentVersionID *string `gorm:"size:32;index"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Versions    []ScriptVersion `gorm:"foreignKey:AgentID"`
	Suggestions []Suggestion    `gorm:"foreignKey:AgentID"`
}

// ScriptVersion is one immutable snapshot of an agent's script.
// Sections holds the JSON object form of the sectioned document;
// CompiledText is always its deterministic compilation. History is
// append-only; structural repair is the sole in-place mutation.
type ScriptVersion struct {
	ID              string  `gorm:"primaryKey;size:32"`
	AgentID         string  `gorm:"size:32;not null;uniqueIndex:idx_agent_seq,priority:1"`
	Seq             int     `gorm:"not null;uniqueIndex:idx_agent_seq,priority:2"`
	Sections        string  `gorm:"type:json"`
	CompiledText    string  `gorm:"type:text"`
	ParentVersionID *string `gorm:"size:32"`
	Origin          string  `gorm:"size:16;index"` // generated, manual, feedback, suggestion, promotion, repair-template
	ChangeNote      string  `gorm:"type:text"`
	CreatedAt       time.Time

	Parent *ScriptVersion `gorm:"foreignKey:ParentVersionID"`
}

// Version origins.
const (
	OriginGenerated  = "generated"
	OriginManual     = "manual"
	OriginFeedback   = "feedback"
	OriginSuggestion = "suggestion"
	OriginPromotion  = "promotion"
	OriginRepair     = "repair-template"
)
