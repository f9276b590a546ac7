// Package revision turns free-text feedback into new script versions,
// enforcing the mutation contract on generator output before any
// version is accepted.
package revision

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/dialtone-ai/greenroom/internal/agent"
	"github.com/dialtone-ai/greenroom/internal/llm"
	"github.com/dialtone-ai/greenroom/internal/models"
	"github.com/dialtone-ai/greenroom/internal/runtime"
	"github.com/dialtone-ai/greenroom/internal/script"
	"github.com/dialtone-ai/greenroom/internal/version"
	"gorm.io/gorm"
)

// ErrEmptiedSection is returned when a revision would erase a section
// that had content. The edit is discarded and the previous version
// stays current.
var ErrEmptiedSection = errors.New("revision: generator emptied a non-empty section")

// ErrNoChanges is returned when the generator echoed the input back
// unchanged; no version is created for a no-op edit.
var ErrNoChanges = errors.New("revision: revision produced no changes")

// minSectionLen is the minimum plausible length of a written section.
// A non-targeted section that comes back shorter while its input was at
// least this long is treated as truncated and restored from the input.
const minSectionLen = 20

// changeNoteLen caps the feedback text recorded as the change note.
const changeNoteLen = 200

// ApplyOpts holds optional parameters for a feedback edit.
type ApplyOpts struct {
	Constraints []string       // defaults to llm.DefaultConstraints
	Syncer      runtime.Syncer // optional; best-effort push on success
}

// Apply revises the agent's current script from a feedback instruction.
// The generator's candidate is validated before acceptance: the section
// set is fixed by construction, sections not implicated by the feedback
// are restored from the input when they come back empty or truncated,
// and an edit that would erase a previously written section is rejected
// outright. On success a new version (origin feedback) is created, the
// current pointer advances, and the compiled text is pushed to the
// runtime best-effort.
func Apply(ctx context.Context, db *gorm.DB, gen llm.Generator, agentID, feedback string, opts ApplyOpts) (*models.ScriptVersion, error) {
	if strings.TrimSpace(feedback) == "" {
		return nil, fmt.Errorf("revision: feedback is required")
	}
	if gen == nil {
		return nil, fmt.Errorf("revision: generator is required")
	}

	base, current, err := version.CurrentSections(db, agentID)
	if err != nil {
		return nil, err
	}

	candidate, err := gen.ReviseSections(ctx, llm.ReviseRequest{
		Sections:    current,
		Instruction: feedback,
		Constraints: opts.Constraints,
	})
	if err != nil {
		return nil, fmt.Errorf("revision: generate: %w", err)
	}

	checked, err := enforceContract(current, candidate, feedback)
	if err != nil {
		return nil, err
	}
	if checked == current {
		return nil, ErrNoChanges
	}

	note := feedback
	if len(note) > changeNoteLen {
		note = note[:changeNoteLen]
	}
	v, err := version.Create(db, agentID, checked, version.CreateOpts{
		Origin:           models.OriginFeedback,
		ChangeNote:       note,
		ExpectedParentID: &base.ID,
		EnforceParent:    true,
	})
	if err != nil {
		return nil, err
	}

	syncBestEffort(ctx, db, opts.Syncer, agentID, v.CompiledText)
	return v, nil
}

// ApplyManual creates a new version directly from flat script text,
// the manual-edit entry point. Content outside section markers is
// dropped by parsing; it is logged, not an error.
func ApplyManual(db *gorm.DB, agentID, flatText, note string, syncer runtime.Syncer) (*models.ScriptVersion, error) {
	sections, report := script.Parse(flatText)
	if report.DroppedBytes > 0 {
		log.Printf("revision: manual edit for %s dropped %d bytes outside markers: %q",
			agentID, report.DroppedBytes, report.DroppedPreview)
	}
	if sections.IsEmpty() {
		return nil, fmt.Errorf("revision: manual edit contains no recognizable sections")
	}
	if note == "" {
		note = "manual edit"
	}
	v, err := version.Create(db, agentID, sections, version.CreateOpts{
		Origin:     models.OriginManual,
		ChangeNote: note,
	})
	if err != nil {
		return nil, err
	}
	syncBestEffort(context.Background(), db, syncer, agentID, v.CompiledText)
	return v, nil
}

// Bootstrap generates and persists the first script version for an
// agent that has none, using its onboarding business description.
func Bootstrap(ctx context.Context, db *gorm.DB, gen llm.Generator, agentID string) (*models.ScriptVersion, error) {
	a, err := agent.Get(db, agentID)
	if err != nil {
		return nil, err
	}
	if a.CurrentVersionID != nil {
		return nil, fmt.Errorf("revision: agent %s already has a script", agentID)
	}
	sections, err := gen.GenerateScript(ctx, llm.BusinessProfile{Name: a.Name, Business: a.Business})
	if err != nil {
		return nil, fmt.Errorf("revision: generate script: %w", err)
	}
	if sections.IsEmpty() {
		return nil, fmt.Errorf("revision: generator returned an empty script")
	}
	return version.Create(db, agentID, sections, version.CreateOpts{
		Origin:     models.OriginGenerated,
		ChangeNote: "initial script",
	})
}

// enforceContract validates a generator candidate against the input.
func enforceContract(input, candidate script.Sections, feedback string) (script.Sections, error) {
	result := candidate

	// Restore non-targeted sections that came back empty or truncated.
	// The contract says the generator echoes them unchanged; when it
	// drops one instead, the input is authoritative.
	for i := range result {
		in := input[i].Text
		out := result[i].Text
		if out == in {
			continue
		}
		if mentionsSection(feedback, result[i].Name) {
			continue
		}
		if out == "" || (len(out) < minSectionLen && len(in) >= minSectionLen) {
			log.Printf("revision: restoring section %s (generator returned %d bytes, input had %d)",
				result[i].Name, len(out), len(in))
			result[i].Text = in
		}
	}

	// No edit may erase a section that had content.
	for i := range result {
		if result[i].Text == "" && input[i].Text != "" {
			return input, fmt.Errorf("%w: %s", ErrEmptiedSection, result[i].Name)
		}
	}
	return result, nil
}

// mentionsSection reports whether the feedback implicates a section,
// matching its schema name (underscores tolerated) or display title.
func mentionsSection(feedback, name string) bool {
	f := strings.ToLower(feedback)
	if strings.Contains(f, name) {
		return true
	}
	if strings.Contains(f, strings.ReplaceAll(name, "_", " ")) {
		return true
	}
	title, err := script.Title(name)
	if err != nil {
		return false
	}
	return strings.Contains(f, strings.ToLower(title))
}

// syncBestEffort pushes the compiled text to the runtime, logging on
// failure. The version row is already durable; runtime sync is
// eventually consistent and retryable.
func syncBestEffort(ctx context.Context, db *gorm.DB, syncer runtime.Syncer, agentID, compiledText string) {
	if syncer == nil {
		return
	}
	a, err := agent.Get(db, agentID)
	if err != nil || a.RuntimeHandle == "" {
		return
	}
	if err := syncer.PushScript(ctx, a.RuntimeHandle, compiledText); err != nil {
		log.Printf("revision: runtime sync for %s failed (will retry on next change): %v", agentID, err)
	}
}
