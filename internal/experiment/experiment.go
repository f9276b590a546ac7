// Package experiment compares a challenger script version against the
// agent's current (control) version under live call traffic and decides
// whether to promote it.
package experiment

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dialtone-ai/greenroom/internal/events"
	"github.com/dialtone-ai/greenroom/internal/models"
	"github.com/dialtone-ai/greenroom/internal/script"
	"github.com/dialtone-ai/greenroom/internal/version"
	"gorm.io/gorm"
)

// ErrInsufficientData is returned when an arm has fewer samples than
// required for a decision. The experiment stays running; evaluate again
// once more outcomes have been recorded.
var ErrInsufficientData = errors.New("experiment: insufficient data")

// GenerateID creates a unique experiment ID in exp-xxxxx format.
func GenerateID() (string, error) {
	b := make([]byte, 3)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("experiment: generate ID: %w", err)
	}
	return "exp-" + hex.EncodeToString(b)[:5], nil
}

// Start opens an experiment pitting an existing version against the
// agent's current one. The challenger must belong to the agent and must
// not already be current.
func Start(db *gorm.DB, agentID, challengerVersionID string) (*models.Experiment, error) {
	control, err := version.Current(db, agentID)
	if err != nil {
		return nil, err
	}
	challenger, err := version.Get(db, challengerVersionID)
	if err != nil {
		return nil, err
	}
	if challenger.AgentID != agentID {
		return nil, fmt.Errorf("experiment: version %s does not belong to agent %s", challengerVersionID, agentID)
	}
	if challenger.ID == control.ID {
		return nil, fmt.Errorf("experiment: challenger %s is already current", challengerVersionID)
	}

	var running int64
	if err := db.Model(&models.Experiment{}).
		Where("agent_id = ? AND status = ?", agentID, models.ExperimentRunning).
		Count(&running).Error; err != nil {
		return nil, fmt.Errorf("experiment: count running for %s: %w", agentID, err)
	}
	if running > 0 {
		return nil, fmt.Errorf("experiment: agent %s already has a running experiment", agentID)
	}

	id, err := GenerateID()
	if err != nil {
		return nil, err
	}
	e := models.Experiment{
		ID:                  id,
		AgentID:             agentID,
		ControlVersionID:    control.ID,
		ChallengerVersionID: challenger.ID,
		Status:              models.ExperimentRunning,
		CreatedAt:           time.Now(),
	}
	if err := db.Create(&e).Error; err != nil {
		return nil, fmt.Errorf("experiment: create: %w", err)
	}
	events.LogBestEffort(db, agentID, models.EventExperimentStarted, e.ID,
		fmt.Sprintf("%s vs %s", control.ID, challenger.ID))
	return &e, nil
}

// StartWithSections stages a brand-new challenger version from the
// given sections, without touching the agent's current pointer, and
// opens an experiment against the current version. The challenger only
// becomes current on a favorable decision.
func StartWithSections(db *gorm.DB, agentID string, sections script.Sections, note string) (*models.Experiment, error) {
	challenger, err := version.Create(db, agentID, sections, version.CreateOpts{
		Origin:      models.OriginPromotion,
		ChangeNote:  note,
		HoldPointer: true,
	})
	if err != nil {
		return nil, err
	}
	return Start(db, agentID, challenger.ID)
}

// Get retrieves an experiment by ID.
func Get(db *gorm.DB, id string) (*models.Experiment, error) {
	var e models.Experiment
	if err := db.Where("id = ?", id).First(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("experiment: not found: %s", id)
		}
		return nil, fmt.Errorf("experiment: get %s: %w", id, err)
	}
	return &e, nil
}

// List returns an agent's experiments, newest first. An empty status
// matches all.
func List(db *gorm.DB, agentID, status string) ([]models.Experiment, error) {
	q := db.Where("agent_id = ?", agentID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var es []models.Experiment
	if err := q.Order("created_at DESC").Find(&es).Error; err != nil {
		return nil, fmt.Errorf("experiment: list for %s: %w", agentID, err)
	}
	return es, nil
}

// RecordOutcome attributes one observed call result to a script version.
func RecordOutcome(db *gorm.DB, agentID, versionID string, sentiment float64, converted bool, durationSec float64) error {
	if sentiment < 0 || sentiment > 1 {
		return fmt.Errorf("experiment: sentiment %v out of [0,1]", sentiment)
	}
	v, err := version.Get(db, versionID)
	if err != nil {
		return err
	}
	if v.AgentID != agentID {
		return fmt.Errorf("experiment: version %s does not belong to agent %s", versionID, agentID)
	}
	o := models.CallOutcome{
		AgentID:     agentID,
		VersionID:   versionID,
		Sentiment:   sentiment,
		Converted:   converted,
		DurationSec: durationSec,
		CreatedAt:   time.Now(),
	}
	if err := db.Create(&o).Error; err != nil {
		return fmt.Errorf("experiment: record outcome: %w", err)
	}
	return nil
}

// ArmMetrics are the per-arm aggregates an evaluation is decided on.
type ArmMetrics struct {
	MeanSentiment  float64
	ConversionRate float64
	MeanDuration   float64
	Samples        int
}

// armMetrics aggregates all outcomes recorded against a version.
func armMetrics(db *gorm.DB, versionID string) (ArmMetrics, error) {
	var outcomes []models.CallOutcome
	if err := db.Where("version_id = ?", versionID).Find(&outcomes).Error; err != nil {
		return ArmMetrics{}, fmt.Errorf("experiment: outcomes for %s: %w", versionID, err)
	}
	m := ArmMetrics{Samples: len(outcomes)}
	if m.Samples == 0 {
		return m, nil
	}
	converted := 0
	for _, o := range outcomes {
		m.MeanSentiment += o.Sentiment
		m.MeanDuration += o.DurationSec
		if o.Converted {
			converted++
		}
	}
	n := float64(m.Samples)
	m.MeanSentiment /= n
	m.MeanDuration /= n
	m.ConversionRate = float64(converted) / n
	return m, nil
}

// Decide applies the promotion rule to a pair of arm aggregates. The
// challenger wins only by strictly improving both mean sentiment and
// conversion rate. The control label is reserved for a strict
// regression on both metrics; a tie on either metric lands in
// inconclusive even when the other metric got worse. The pointer stays
// on control in both non-promote cases, so the label only records how
// decisively the challenger lost. No significance test is applied, so
// a decision at small sample counts is exactly as noisy as its inputs.
func Decide(control, challenger ArmMetrics) string {
	sentimentUp := challenger.MeanSentiment > control.MeanSentiment
	conversionUp := challenger.ConversionRate > control.ConversionRate
	sentimentDown := challenger.MeanSentiment < control.MeanSentiment
	conversionDown := challenger.ConversionRate < control.ConversionRate

	switch {
	case sentimentUp && conversionUp:
		return models.DecisionChallenger
	case sentimentDown && conversionDown:
		return models.DecisionControl
	default:
		return models.DecisionInconclusive
	}
}

// EvaluateOpts tunes evaluation preconditions.
type EvaluateOpts struct {
	// MinSamples is the per-arm sample count required before a decision
	// is made. Values below 1 are treated as 1.
	MinSamples int
}

// Evaluate aggregates each arm's outcomes, decides, and completes the
// experiment. On a challenger decision the agent's current pointer
// advances to the challenger version; otherwise control stays current.
// With fewer than MinSamples outcomes on either arm it returns
// ErrInsufficientData and the experiment remains running.
func Evaluate(db *gorm.DB, experimentID string, opts EvaluateOpts) (*models.Experiment, error) {
	e, err := Get(db, experimentID)
	if err != nil {
		return nil, err
	}
	if e.Status != models.ExperimentRunning {
		return nil, fmt.Errorf("experiment: %s is not running (status %s)", experimentID, e.Status)
	}

	minSamples := opts.MinSamples
	if minSamples < 1 {
		minSamples = 1
	}

	control, err := armMetrics(db, e.ControlVersionID)
	if err != nil {
		return nil, err
	}
	challenger, err := armMetrics(db, e.ChallengerVersionID)
	if err != nil {
		return nil, err
	}
	if control.Samples < minSamples || challenger.Samples < minSamples {
		return nil, fmt.Errorf("experiment: %s has %d control / %d challenger samples, need %d per arm: %w",
			experimentID, control.Samples, challenger.Samples, minSamples, ErrInsufficientData)
	}

	decision := Decide(control, challenger)
	now := time.Now()

	err = db.Transaction(func(tx *gorm.DB) error {
		updates := map[string]interface{}{
			"status":                models.ExperimentCompleted,
			"decision":              decision,
			"control_sentiment":     control.MeanSentiment,
			"control_conversion":    control.ConversionRate,
			"control_duration_sec":  control.MeanDuration,
			"control_samples":       control.Samples,
			"challenger_sentiment":  challenger.MeanSentiment,
			"challenger_conversion": challenger.ConversionRate,
			"challenger_duration":   challenger.MeanDuration,
			"challenger_samples":    challenger.Samples,
			"completed_at":          &now,
		}
		if decision == models.DecisionChallenger {
			updates["promoted_version_id"] = e.ChallengerVersionID
		}

		result := tx.Model(&models.Experiment{}).
			Where("id = ? AND status = ?", e.ID, models.ExperimentRunning).
			Updates(updates)
		if result.Error != nil {
			return fmt.Errorf("experiment: complete %s: %w", e.ID, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("experiment: %s was completed concurrently", e.ID)
		}

		if decision == models.DecisionChallenger {
			expected := &e.ControlVersionID
			if err := version.AdvancePointer(tx, e.AgentID, expected, e.ChallengerVersionID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	events.LogBestEffort(db, e.AgentID, models.EventExperimentDecided, e.ID,
		fmt.Sprintf("decision=%s control=(%.2f, %.2f, n=%d) challenger=(%.2f, %.2f, n=%d)",
			decision,
			control.MeanSentiment, control.ConversionRate, control.Samples,
			challenger.MeanSentiment, challenger.ConversionRate, challenger.Samples))

	return Get(db, e.ID)
}
