// Package repair detects structurally corrupted script versions and
// restores them from a known-good template version.
//
// Detection is structural, not semantic: a section is flagged when it
// is empty, implausibly short, begins mid-word, or carries
// meta-instruction text that generation should have stripped. Repair is
// the sole place versions are mutated in place; a corrupted snapshot
// has no historical value worth preserving.
package repair

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/dialtone-ai/greenroom/internal/events"
	"github.com/dialtone-ai/greenroom/internal/models"
	"github.com/dialtone-ai/greenroom/internal/script"
	"github.com/dialtone-ai/greenroom/internal/version"
	"gorm.io/gorm"
)

// ErrNoCleanVersion is returned when every version of an agent fails
// the structural test, leaving nothing to restore from.
var ErrNoCleanVersion = errors.New("repair: no clean version to use as template")

// minSectionChars is the shortest section text considered plausible.
const minSectionChars = 10

// leakSignatures are fragments of generator meta-instruction output
// that must never appear in a live script.
var leakSignatures = []string{
	"as an ai",
	"as a language model",
	"here is the updated",
	"here's the updated",
	"i have updated",
	"i cannot",
	"[insert",
	"your task is to",
	"return the sections",
}

// Detector reports the structural problems in one section's text. An
// empty result means the section is clean. The rules are product
// heuristics, kept pluggable so they can evolve without touching the
// repair algorithm.
type Detector func(name, text string) []string

// DefaultDetector applies the built-in structural rules.
func DefaultDetector(name, text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return []string{"empty"}
	}

	var issues []string
	if len(trimmed) < minSectionChars {
		issues = append(issues, fmt.Sprintf("shorter than %d chars", minSectionChars))
	}

	first := []rune(trimmed)[0]
	if unicode.IsLower(first) {
		issues = append(issues, "begins mid-word")
	}

	lower := strings.ToLower(trimmed)
	for _, sig := range leakSignatures {
		if strings.Contains(lower, sig) {
			issues = append(issues, fmt.Sprintf("meta-instruction leak: %q", sig))
			break
		}
	}
	return issues
}

// Issue is one structural problem found in one section of a version.
type Issue struct {
	Section string
	Problem string
}

// Report is the inspection result for a single version.
type Report struct {
	VersionID string
	Seq       int
	Issues    []Issue
}

// Clean reports whether the version passed every structural check.
func (r Report) Clean() bool {
	return len(r.Issues) == 0
}

// inspectVersion runs the detector over every schema section of a
// stored version. A version whose sections fail to decode is reported
// as a single undecodable issue rather than an error.
func inspectVersion(v models.ScriptVersion, detect Detector) Report {
	r := Report{VersionID: v.ID, Seq: v.Seq}
	sections, err := script.DecodeJSON(v.Sections)
	if err != nil {
		r.Issues = append(r.Issues, Issue{Section: "*", Problem: "sections undecodable"})
		return r
	}
	for _, name := range script.Names() {
		text, _ := sections.Get(name)
		for _, problem := range detect(name, text) {
			r.Issues = append(r.Issues, Issue{Section: name, Problem: problem})
		}
	}
	return r
}

// Inspect checks every version of an agent and returns one report per
// version in sequence order. Nothing is modified.
func Inspect(db *gorm.DB, agentID string, detect Detector) ([]Report, error) {
	if detect == nil {
		detect = DefaultDetector
	}
	versions, err := version.History(db, agentID)
	if err != nil {
		return nil, err
	}
	reports := make([]Report, 0, len(versions))
	for _, v := range versions {
		reports = append(reports, inspectVersion(v, detect))
	}
	return reports, nil
}

// RunOpts tunes a repair run.
type RunOpts struct {
	Detector Detector
	// DryRun reports what would change without writing anything.
	DryRun bool
}

// Result summarizes a repair run.
type Result struct {
	TemplateVersionID string
	RepairedIDs       []string
	CurrentVersionID  string
}

// Run restores every corrupted version of an agent from a template.
// The template is the earliest version that passes every structural
// check; each flagged version's sections are overwritten in place with
// the template's. Afterwards the agent's current pointer is set to the
// latest version that was clean before the run.
func Run(db *gorm.DB, agentID string, opts RunOpts) (*Result, error) {
	detect := opts.Detector
	if detect == nil {
		detect = DefaultDetector
	}

	versions, err := version.History(db, agentID)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("repair: agent %s has no versions", agentID)
	}

	var template *models.ScriptVersion
	var latestClean *models.ScriptVersion
	var flagged []models.ScriptVersion
	for i := range versions {
		v := versions[i]
		if inspectVersion(v, detect).Clean() {
			if template == nil {
				template = &versions[i]
			}
			latestClean = &versions[i]
			continue
		}
		flagged = append(flagged, v)
	}
	if template == nil {
		return nil, fmt.Errorf("repair: agent %s: %w", agentID, ErrNoCleanVersion)
	}

	result := Result{
		TemplateVersionID: template.ID,
		CurrentVersionID:  latestClean.ID,
	}
	for _, v := range flagged {
		result.RepairedIDs = append(result.RepairedIDs, v.ID)
	}
	if opts.DryRun {
		return &result, nil
	}
	if len(flagged) == 0 {
		// Nothing corrupted; still normalize the pointer.
		if err := setPointer(db, agentID, latestClean.ID); err != nil {
			return nil, err
		}
		return &result, nil
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		for _, v := range flagged {
			updates := map[string]interface{}{
				"sections":      template.Sections,
				"compiled_text": template.CompiledText,
				"origin":        models.OriginRepair,
				"change_note":   fmt.Sprintf("restored from v%d (%s)", template.Seq, template.ID),
			}
			if err := tx.Model(&models.ScriptVersion{}).
				Where("id = ?", v.ID).
				Updates(updates).Error; err != nil {
				return fmt.Errorf("repair: overwrite %s: %w", v.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := setPointer(db, agentID, latestClean.ID); err != nil {
		return nil, err
	}

	events.LogBestEffort(db, agentID, models.EventRepairApplied, template.ID,
		fmt.Sprintf("restored %d version(s) from v%d", len(flagged), template.Seq))
	log.Printf("repair: agent %s: restored %d version(s) from template %s", agentID, len(flagged), template.ID)

	return &result, nil
}

// setPointer moves the agent's current pointer to versionID if it is
// not already there.
func setPointer(db *gorm.DB, agentID, versionID string) error {
	var a models.Agent
	if err := db.Where("id = ?", agentID).First(&a).Error; err != nil {
		return fmt.Errorf("repair: load agent %s: %w", agentID, err)
	}
	if a.CurrentVersionID != nil && *a.CurrentVersionID == versionID {
		return nil
	}
	return version.AdvancePointer(db, agentID, a.CurrentVersionID, versionID)
}
