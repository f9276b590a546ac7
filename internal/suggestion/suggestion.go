// Package suggestion implements the reviewable-change workflow:
// proposed script edits move from pending to accepted or rejected
// exactly once, and accepted changes are applied onto the agent's
// current version to produce a new one.
package suggestion

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/dialtone-ai/greenroom/internal/agent"
	"github.com/dialtone-ai/greenroom/internal/events"
	"github.com/dialtone-ai/greenroom/internal/models"
	"github.com/dialtone-ai/greenroom/internal/runtime"
	"github.com/dialtone-ai/greenroom/internal/version"
	"gorm.io/gorm"
)

// ErrNotPending is returned when accept or reject is attempted on a
// suggestion that already left pending. The first review wins; the
// caller gets a conflict, never a double-apply.
var ErrNotPending = errors.New("suggestion: not pending")

// GenerateID creates a unique suggestion ID in sug-xxxxx format.
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("suggestion: generate ID: %w", err)
	}
	return "sug-" + hex.EncodeToString(b)[:5], nil
}

// CreateOpts holds parameters for filing a new suggestion.
type CreateOpts struct {
	Source    string // models.SourceFeedback or models.SourceAnalysis
	Rationale string
}

// Create files a pending suggestion for the agent.
func Create(db *gorm.DB, agentID string, changes []Change, opts CreateOpts) (*models.Suggestion, error) {
	if len(changes) == 0 {
		return nil, fmt.Errorf("suggestion: at least one change is required")
	}
	for _, ch := range changes {
		if err := ch.validate(); err != nil {
			return nil, err
		}
	}
	if _, err := agent.Get(db, agentID); err != nil {
		return nil, err
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}
	encoded, err := EncodeChanges(changes)
	if err != nil {
		return nil, err
	}
	source := opts.Source
	if source == "" {
		source = models.SourceFeedback
	}

	s := models.Suggestion{
		ID:        id,
		AgentID:   agentID,
		Status:    models.SuggestionPending,
		Changes:   encoded,
		Source:    source,
		Rationale: opts.Rationale,
		CreatedAt: time.Now(),
	}
	if err := db.Create(&s).Error; err != nil {
		return nil, fmt.Errorf("suggestion: create: %w", err)
	}
	events.LogBestEffort(db, agentID, models.EventSuggestionCreated, s.ID, opts.Rationale)
	return &s, nil
}

// Get retrieves a suggestion by ID.
func Get(db *gorm.DB, id string) (*models.Suggestion, error) {
	var s models.Suggestion
	if err := db.Where("id = ?", id).First(&s).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("suggestion: not found: %s", id)
		}
		return nil, fmt.Errorf("suggestion: get %s: %w", id, err)
	}
	return &s, nil
}

// List returns the agent's suggestions, optionally filtered by status,
// newest first.
func List(db *gorm.DB, agentID, status string) ([]models.Suggestion, error) {
	q := db.Where("agent_id = ?", agentID).Order("created_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var ss []models.Suggestion
	if err := q.Find(&ss).Error; err != nil {
		return nil, fmt.Errorf("suggestion: list for %s: %w", agentID, err)
	}
	return ss, nil
}

// Accept applies a pending suggestion to the agent's current script,
// creating a new version and advancing the pointer. The status change
// is a compare-and-swap on pending: a concurrent or repeated review
// gets ErrNotPending instead of a second application. The runtime push
// afterwards is best-effort; the persisted version is the source of
// truth.
func Accept(ctx context.Context, db *gorm.DB, syncer runtime.Syncer, agentID, suggestionID string) (*models.ScriptVersion, error) {
	s, err := Get(db, suggestionID)
	if err != nil {
		return nil, err
	}
	if s.AgentID != agentID {
		return nil, fmt.Errorf("suggestion: %s does not belong to agent %s", suggestionID, agentID)
	}
	if s.Status != models.SuggestionPending {
		return nil, fmt.Errorf("suggestion: %s is %s: %w", suggestionID, s.Status, ErrNotPending)
	}

	changes, err := DecodeChanges(s.Changes)
	if err != nil {
		return nil, err
	}

	base, sections, err := version.CurrentSections(db, agentID)
	if err != nil {
		return nil, err
	}
	for _, ch := range changes {
		if err := ch.applyTo(&sections); err != nil {
			return nil, err
		}
	}

	var created *models.ScriptVersion
	err = db.Transaction(func(tx *gorm.DB) error {
		// Claim the suggestion first: zero rows means another reviewer
		// already decided it.
		now := time.Now()
		result := tx.Model(&models.Suggestion{}).
			Where("id = ? AND status = ?", suggestionID, models.SuggestionPending).
			Updates(map[string]interface{}{
				"status":      models.SuggestionAccepted,
				"reviewed_at": now,
			})
		if result.Error != nil {
			return fmt.Errorf("suggestion: accept %s: %w", suggestionID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("suggestion: accept %s: %w", suggestionID, ErrNotPending)
		}

		v, err := version.Create(tx, agentID, sections, version.CreateOpts{
			Origin:           models.OriginSuggestion,
			ChangeNote:       fmt.Sprintf("applied suggestion %s", suggestionID),
			ExpectedParentID: &base.ID,
			EnforceParent:    true,
		})
		if err != nil {
			return err
		}
		created = v

		if err := tx.Model(&models.Suggestion{}).
			Where("id = ?", suggestionID).
			Update("applied_version_id", v.ID).Error; err != nil {
			return fmt.Errorf("suggestion: record applied version: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.LogBestEffort(db, agentID, models.EventSuggestionAccepted, suggestionID,
		fmt.Sprintf("created %s (v%d)", created.ID, created.Seq))

	if syncer != nil {
		a, aerr := agent.Get(db, agentID)
		if aerr == nil && a.RuntimeHandle != "" {
			if perr := syncer.PushScript(ctx, a.RuntimeHandle, created.CompiledText); perr != nil {
				log.Printf("suggestion: runtime sync for %s failed (retryable): %v", agentID, perr)
			}
		}
	}
	return created, nil
}

// Reject marks a pending suggestion rejected. Versions are untouched.
func Reject(db *gorm.DB, agentID, suggestionID string) error {
	s, err := Get(db, suggestionID)
	if err != nil {
		return err
	}
	if s.AgentID != agentID {
		return fmt.Errorf("suggestion: %s does not belong to agent %s", suggestionID, agentID)
	}
	result := db.Model(&models.Suggestion{}).
		Where("id = ? AND status = ?", suggestionID, models.SuggestionPending).
		Updates(map[string]interface{}{
			"status":      models.SuggestionRejected,
			"reviewed_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("suggestion: reject %s: %w", suggestionID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("suggestion: reject %s: %w", suggestionID, ErrNotPending)
	}
	events.LogBestEffort(db, agentID, models.EventSuggestionRejected, suggestionID, "")
	return nil
}

// RejectAll transitions every pending suggestion for the agent to
// rejected in one statement. Returns the number rejected.
func RejectAll(db *gorm.DB, agentID string) (int64, error) {
	if _, err := agent.Get(db, agentID); err != nil {
		return 0, err
	}
	result := db.Model(&models.Suggestion{}).
		Where("agent_id = ? AND status = ?", agentID, models.SuggestionPending).
		Updates(map[string]interface{}{
			"status":      models.SuggestionRejected,
			"reviewed_at": time.Now(),
		})
	if result.Error != nil {
		return 0, fmt.Errorf("suggestion: reject all for %s: %w", agentID, result.Error)
	}
	if result.RowsAffected > 0 {
		events.LogBestEffort(db, agentID, models.EventSuggestionRejected,
			fmt.Sprintf("%d suggestions", result.RowsAffected), "bulk reject")
	}
	return result.RowsAffected, nil
}

// boilerplateLeadIns are phrases older analysis proposals prefixed to
// append-style modifications; they are stripped before appending.
var boilerplateLeadIns = []string{
	"Suggested update:",
	"Suggestion:",
	"Consider the following change:",
	"You could improve this section by",
	"Here is the updated section:",
}

// stripLeadIn removes a known boilerplate lead-in phrase, if present.
func stripLeadIn(text string) string {
	trimmed := strings.TrimSpace(text)
	for _, phrase := range boilerplateLeadIns {
		if strings.HasPrefix(strings.ToLower(trimmed), strings.ToLower(phrase)) {
			return strings.TrimSpace(trimmed[len(phrase):])
		}
	}
	return trimmed
}
