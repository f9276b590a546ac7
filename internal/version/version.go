// Package version implements the append-only script version store and
// the agent's current-version pointer.
package version

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dialtone-ai/greenroom/internal/events"
	"github.com/dialtone-ai/greenroom/internal/models"
	"github.com/dialtone-ai/greenroom/internal/script"
	"gorm.io/gorm"
)

// ErrStalePointer is returned when the agent's current-version pointer
// changed between reading the base version and committing the new one.
// Callers re-read and retry.
var ErrStalePointer = errors.New("version: current pointer is stale")

// CreateOpts holds parameters for creating a new script version.
type CreateOpts struct {
	Origin     string // one of the models.Origin* constants
	ChangeNote string
	// ExpectedParentID, when EnforceParent is set, requires the agent's
	// current pointer to still reference it at commit time; a writer
	// whose base went stale gets ErrStalePointer instead of silently
	// building on a version it never read.
	ExpectedParentID *string
	EnforceParent    bool
	// HoldPointer persists the version without advancing the agent's
	// current pointer. Used for challenger versions that only become
	// current if their experiment decides in their favor.
	HoldPointer bool
}

// GenerateID creates a unique version ID in ver-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("version: generate ID: %w", err)
	}
	return "ver-" + hex.EncodeToString(b)[:5], nil
}

// Create persists a new version for the agent and advances its current
// pointer, all in one transaction. The new version's parent is the
// pointer value read inside the transaction, its sequence number is the
// previous maximum plus one, and the pointer advance is a compare-and-
// swap against that parent: either the row exists and the pointer moved,
// or neither happened.
func Create(db *gorm.DB, agentID string, sections script.Sections, opts CreateOpts) (*models.ScriptVersion, error) {
	if agentID == "" {
		return nil, fmt.Errorf("version: agentID is required")
	}
	if opts.Origin == "" {
		return nil, fmt.Errorf("version: origin is required")
	}

	var created models.ScriptVersion

	err := db.Transaction(func(tx *gorm.DB) error {
		var a models.Agent
		if err := tx.Where("id = ?", agentID).First(&a).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("version: agent not found: %s", agentID)
			}
			return fmt.Errorf("version: load agent %s: %w", agentID, err)
		}

		if opts.EnforceParent && !pointerEqual(a.CurrentVersionID, opts.ExpectedParentID) {
			return fmt.Errorf("version: create for %s: %w", agentID, ErrStalePointer)
		}

		var maxSeq int
		if err := tx.Model(&models.ScriptVersion{}).
			Where("agent_id = ?", agentID).
			Select("COALESCE(MAX(seq), 0)").
			Scan(&maxSeq).Error; err != nil {
			return fmt.Errorf("version: max seq for %s: %w", agentID, err)
		}

		id, err := GenerateID()
		if err != nil {
			return err
		}
		encoded, err := script.EncodeJSON(sections)
		if err != nil {
			return err
		}

		created = models.ScriptVersion{
			ID:              id,
			AgentID:         agentID,
			Seq:             maxSeq + 1,
			Sections:        encoded,
			CompiledText:    script.Compile(sections),
			ParentVersionID: a.CurrentVersionID,
			Origin:          opts.Origin,
			ChangeNote:      opts.ChangeNote,
			CreatedAt:       time.Now(),
		}
		if err := tx.Create(&created).Error; err != nil {
			return fmt.Errorf("version: create: %w", err)
		}

		if opts.HoldPointer {
			return nil
		}
		return AdvancePointer(tx, agentID, a.CurrentVersionID, created.ID)
	})
	if err != nil {
		return nil, err
	}

	events.LogBestEffort(db, agentID, models.EventVersionCreated, created.ID,
		fmt.Sprintf("v%d (%s) %s", created.Seq, created.Origin, created.ChangeNote))
	return &created, nil
}

// pointerEqual compares two nullable version IDs.
func pointerEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// AdvancePointer moves the agent's current-version pointer from
// expected to newID with a compare-and-swap. A zero-row update means
// another writer won the race; the caller gets ErrStalePointer.
func AdvancePointer(db *gorm.DB, agentID string, expected *string, newID string) error {
	q := db.Model(&models.Agent{}).Where("id = ?", agentID)
	if expected == nil {
		q = q.Where("current_version_id IS NULL")
	} else {
		q = q.Where("current_version_id = ?", *expected)
	}
	result := q.Update("current_version_id", newID)
	if result.Error != nil {
		return fmt.Errorf("version: advance pointer for %s: %w", agentID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("version: advance pointer for %s: %w", agentID, ErrStalePointer)
	}
	return nil
}

// Get retrieves a version by ID.
func Get(db *gorm.DB, id string) (*models.ScriptVersion, error) {
	var v models.ScriptVersion
	if err := db.Where("id = ?", id).First(&v).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("version: not found: %s", id)
		}
		return nil, fmt.Errorf("version: get %s: %w", id, err)
	}
	return &v, nil
}

// Current returns the version the agent's pointer references.
func Current(db *gorm.DB, agentID string) (*models.ScriptVersion, error) {
	var a models.Agent
	if err := db.Where("id = ?", agentID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("version: agent not found: %s", agentID)
		}
		return nil, fmt.Errorf("version: load agent %s: %w", agentID, err)
	}
	if a.CurrentVersionID == nil {
		return nil, fmt.Errorf("version: agent %s has no script yet", agentID)
	}
	return Get(db, *a.CurrentVersionID)
}

// CurrentSections returns the decoded sections of the current version.
func CurrentSections(db *gorm.DB, agentID string) (*models.ScriptVersion, script.Sections, error) {
	v, err := Current(db, agentID)
	if err != nil {
		return nil, script.NewSections(), err
	}
	sections, err := script.DecodeJSON(v.Sections)
	if err != nil {
		return nil, script.NewSections(), err
	}
	return v, sections, nil
}

// History returns all versions for an agent ordered by sequence number.
func History(db *gorm.DB, agentID string) ([]models.ScriptVersion, error) {
	var vs []models.ScriptVersion
	if err := db.Where("agent_id = ?", agentID).Order("seq ASC").Find(&vs).Error; err != nil {
		return nil, fmt.Errorf("version: history for %s: %w", agentID, err)
	}
	return vs, nil
}

// Rollback makes an older version current again by creating a new
// version with its sections. History stays append-only: rolling back is
// itself a recorded change, not a pointer rewind.
func Rollback(db *gorm.DB, agentID, versionID string) (*models.ScriptVersion, error) {
	old, err := Get(db, versionID)
	if err != nil {
		return nil, err
	}
	if old.AgentID != agentID {
		return nil, fmt.Errorf("version: %s does not belong to agent %s", versionID, agentID)
	}
	sections, err := script.DecodeJSON(old.Sections)
	if err != nil {
		return nil, err
	}
	return Create(db, agentID, sections, CreateOpts{
		Origin:     models.OriginManual,
		ChangeNote: fmt.Sprintf("rollback to v%d (%s)", old.Seq, old.ID),
	})
}
