// Package agent provides voice-agent lifecycle operations.
package agent

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dialtone-ai/greenroom/internal/models"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for registering a new agent.
type CreateOpts struct {
	Name          string
	Business      string // the business's self-description from onboarding
	RuntimeHandle string // external conversational-runtime identifier
}

// GenerateID creates a unique agent ID in agt-xxxxx format (5-char hex).
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("agent: generate ID: %w", err)
	}
	return "agt-" + hex.EncodeToString(b)[:5], nil
}

// Create registers a new agent with no script yet. The first script
// version is created separately (see the version package) so a failed
// generation never leaves a half-initialized agent pointer.
func Create(db *gorm.DB, opts CreateOpts) (*models.Agent, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("agent: name is required")
	}

	id, err := generateUniqueID(db)
	if err != nil {
		return nil, err
	}

	a := models.Agent{
		ID:            id,
		Name:          opts.Name,
		Business:      opts.Business,
		RuntimeHandle: opts.RuntimeHandle,
	}
	if err := db.Create(&a).Error; err != nil {
		return nil, fmt.Errorf("agent: create: %w", err)
	}
	return &a, nil
}

// Get retrieves an agent by ID.
func Get(db *gorm.DB, id string) (*models.Agent, error) {
	var a models.Agent
	if err := db.Where("id = ?", id).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("agent: not found: %s", id)
		}
		return nil, fmt.Errorf("agent: get %s: %w", id, err)
	}
	return &a, nil
}

// List returns all agents ordered by creation time.
func List(db *gorm.DB) ([]models.Agent, error) {
	var agents []models.Agent
	if err := db.Order("created_at ASC").Find(&agents).Error; err != nil {
		return nil, fmt.Errorf("agent: list: %w", err)
	}
	return agents, nil
}

// generateUniqueID generates an ID and retries once on collision.
func generateUniqueID(db *gorm.DB) (string, error) {
	for i := 0; i < 2; i++ {
		id, err := GenerateID()
		if err != nil {
			return "", err
		}
		var count int64
		if err := db.Model(&models.Agent{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return "", fmt.Errorf("agent: check ID uniqueness: %w", err)
		}
		if count == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("agent: failed to generate unique ID after retries")
}
