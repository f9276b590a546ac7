package revision

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dialtone-ai/greenroom/internal/agent"
	"github.com/dialtone-ai/greenroom/internal/db"
	"github.com/dialtone-ai/greenroom/internal/llm"
	"github.com/dialtone-ai/greenroom/internal/models"
	"github.com/dialtone-ai/greenroom/internal/script"
	"github.com/dialtone-ai/greenroom/internal/version"
	"gorm.io/gorm"
)

// mockGenerator returns canned sections or an error.
type mockGenerator struct {
	sections script.Sections
	err      error
	lastReq  llm.ReviseRequest
}

func (m *mockGenerator) GenerateScript(context.Context, llm.BusinessProfile) (script.Sections, error) {
	return m.sections, m.err
}

func (m *mockGenerator) ReviseSections(_ context.Context, req llm.ReviseRequest) (script.Sections, error) {
	m.lastReq = req
	return m.sections, m.err
}

// recordingSyncer captures the last push.
type recordingSyncer struct {
	handle string
	text   string
	err    error
	calls  int
}

func (r *recordingSyncer) PushScript(_ context.Context, handle, text string) error {
	r.calls++
	r.handle = handle
	r.text = text
	return r.err
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.ConnectLocal(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return gdb
}

func fullSections() script.Sections {
	s := script.NewSections()
	s.Set(script.SectionRole, "You are the booking assistant for Brightside Dental, a family practice.")
	s.Set(script.SectionPersonality, "Warm, unhurried, plain-spoken with every caller.")
	s.Set(script.SectionCallFlow, "1. Greet the caller.\n2. Ask how you can help.\n3. Book or answer.")
	s.Set(script.SectionInfoRecap, "Repeat date, time and phone number back to the caller.")
	s.Set(script.SectionFunctions, "book_appointment(date, time, name)\ntransfer_to_human()")
	s.Set(script.SectionKnowledge, "Open Mon-Fri 8am-5pm. Parking behind the building.")
	return s
}

func agentWithScript(t *testing.T, gdb *gorm.DB, s script.Sections) *models.Agent {
	t.Helper()
	a, err := agent.Create(gdb, agent.CreateOpts{Name: "Brightside", RuntimeHandle: "rt-77"})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if _, err := version.Create(gdb, a.ID, s, version.CreateOpts{Origin: models.OriginGenerated}); err != nil {
		t.Fatalf("create v1: %v", err)
	}
	return a
}

func TestApply_FeedbackEdit(t *testing.T) {
	gdb := openTestDB(t)
	base := fullSections()
	a := agentWithScript(t, gdb, base)

	revised := base
	revised.Set(script.SectionRole, "Greet callers for Brightside Dental.")
	gen := &mockGenerator{sections: revised}
	syncer := &recordingSyncer{}

	v2, err := Apply(context.Background(), gdb, gen, a.ID, "shorten the role", ApplyOpts{Syncer: syncer})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if v2.Seq != 2 {
		t.Errorf("Seq = %d, want 2", v2.Seq)
	}
	if v2.Origin != models.OriginFeedback {
		t.Errorf("Origin = %q", v2.Origin)
	}

	v1s, _ := version.History(gdb, a.ID)
	if v2.ParentVersionID == nil || *v2.ParentVersionID != v1s[0].ID {
		t.Errorf("parent = %v, want %q", v2.ParentVersionID, v1s[0].ID)
	}

	// Untouched sections are byte-identical to the input version's.
	got, _ := script.DecodeJSON(v2.Sections)
	for _, name := range script.Names() {
		if name == script.SectionRole {
			continue
		}
		want, _ := base.Get(name)
		have, _ := got.Get(name)
		if have != want {
			t.Errorf("section %s changed: %q != %q", name, have, want)
		}
	}

	if syncer.calls != 1 || syncer.handle != "rt-77" {
		t.Errorf("syncer calls = %d handle = %q", syncer.calls, syncer.handle)
	}
}

func TestApply_GeneratorFailureLeavesStateUnchanged(t *testing.T) {
	gdb := openTestDB(t)
	a := agentWithScript(t, gdb, fullSections())

	gen := &mockGenerator{err: fmt.Errorf("model overloaded")}
	_, err := Apply(context.Background(), gdb, gen, a.ID, "shorten the role", ApplyOpts{})
	if err == nil {
		t.Fatal("expected error")
	}

	cur, err := version.Current(gdb, a.ID)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.Seq != 1 {
		t.Errorf("current Seq = %d, want 1 (no version created)", cur.Seq)
	}
}

func TestApply_EmptiedTargetSectionDiscarded(t *testing.T) {
	gdb := openTestDB(t)
	base := fullSections()
	a := agentWithScript(t, gdb, base)

	revised := base
	revised.Set(script.SectionRole, "")
	gen := &mockGenerator{sections: revised}

	_, err := Apply(context.Background(), gdb, gen, a.ID, "rewrite the role section", ApplyOpts{})
	if !errors.Is(err, ErrEmptiedSection) {
		t.Fatalf("err = %v, want ErrEmptiedSection", err)
	}

	cur, _ := version.Current(gdb, a.ID)
	if cur.Seq != 1 {
		t.Errorf("current Seq = %d, want 1", cur.Seq)
	}
}

func TestApply_UntargetedEmptySectionRestored(t *testing.T) {
	gdb := openTestDB(t)
	base := fullSections()
	a := agentWithScript(t, gdb, base)

	// Generator changed role as asked but dropped knowledge entirely.
	revised := base
	revised.Set(script.SectionRole, "Short role.")
	revised.Set(script.SectionKnowledge, "")
	gen := &mockGenerator{sections: revised}

	v2, err := Apply(context.Background(), gdb, gen, a.ID, "shorten the role", ApplyOpts{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, _ := script.DecodeJSON(v2.Sections)
	kn, _ := got.Get(script.SectionKnowledge)
	want, _ := base.Get(script.SectionKnowledge)
	if kn != want {
		t.Errorf("knowledge = %q, want restored %q", kn, want)
	}
}

func TestApply_UntargetedTruncatedSectionRestored(t *testing.T) {
	gdb := openTestDB(t)
	base := fullSections()
	a := agentWithScript(t, gdb, base)

	revised := base
	revised.Set(script.SectionRole, "Short role.")
	revised.Set(script.SectionCallFlow, "1. Gr") // truncated mid-word
	gen := &mockGenerator{sections: revised}

	v2, err := Apply(context.Background(), gdb, gen, a.ID, "shorten the role", ApplyOpts{})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	got, _ := script.DecodeJSON(v2.Sections)
	flow, _ := got.Get(script.SectionCallFlow)
	want, _ := base.Get(script.SectionCallFlow)
	if flow != want {
		t.Errorf("call_flow = %q, want restored %q", flow, want)
	}
}

func TestApply_NoChanges(t *testing.T) {
	gdb := openTestDB(t)
	base := fullSections()
	a := agentWithScript(t, gdb, base)

	gen := &mockGenerator{sections: base}
	_, err := Apply(context.Background(), gdb, gen, a.ID, "keep everything as is", ApplyOpts{})
	if !errors.Is(err, ErrNoChanges) {
		t.Errorf("err = %v, want ErrNoChanges", err)
	}
}

func TestApply_RequiresFeedback(t *testing.T) {
	gdb := openTestDB(t)
	a := agentWithScript(t, gdb, fullSections())
	_, err := Apply(context.Background(), gdb, &mockGenerator{}, a.ID, "   ", ApplyOpts{})
	if err == nil || !strings.Contains(err.Error(), "feedback is required") {
		t.Errorf("err = %v", err)
	}
}

func TestApply_SyncFailureDoesNotRollBack(t *testing.T) {
	gdb := openTestDB(t)
	base := fullSections()
	a := agentWithScript(t, gdb, base)

	revised := base
	revised.Set(script.SectionRole, "New role for the agent.")
	gen := &mockGenerator{sections: revised}
	syncer := &recordingSyncer{err: fmt.Errorf("runtime unreachable")}

	v2, err := Apply(context.Background(), gdb, gen, a.ID, "change the role", ApplyOpts{Syncer: syncer})
	if err != nil {
		t.Fatalf("Apply: %v (sync failure must not fail the edit)", err)
	}
	cur, _ := version.Current(gdb, a.ID)
	if cur.ID != v2.ID {
		t.Errorf("current = %q, want %q", cur.ID, v2.ID)
	}
}

func TestApplyManual(t *testing.T) {
	gdb := openTestDB(t)
	a := agentWithScript(t, gdb, fullSections())

	flat := "## Role\nHand-edited role.\n\n## Personality\nCrisp."
	v2, err := ApplyManual(gdb, a.ID, flat, "tightened wording", nil)
	if err != nil {
		t.Fatalf("ApplyManual: %v", err)
	}
	if v2.Origin != models.OriginManual {
		t.Errorf("Origin = %q", v2.Origin)
	}
	got, _ := script.DecodeJSON(v2.Sections)
	role, _ := got.Get(script.SectionRole)
	if role != "Hand-edited role." {
		t.Errorf("role = %q", role)
	}
}

func TestApplyManual_NoSections(t *testing.T) {
	gdb := openTestDB(t)
	a := agentWithScript(t, gdb, fullSections())
	if _, err := ApplyManual(gdb, a.ID, "no markers here", "", nil); err == nil {
		t.Error("expected error for text without sections")
	}
}

func TestBootstrap(t *testing.T) {
	gdb := openTestDB(t)
	a, err := agent.Create(gdb, agent.CreateOpts{Name: "Fresh", Business: "A bakery."})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	gen := &mockGenerator{sections: fullSections()}

	v1, err := Bootstrap(context.Background(), gdb, gen, a.ID)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	if v1.Seq != 1 || v1.Origin != models.OriginGenerated {
		t.Errorf("Seq = %d Origin = %q", v1.Seq, v1.Origin)
	}

	// A second bootstrap must refuse.
	if _, err := Bootstrap(context.Background(), gdb, gen, a.ID); err == nil {
		t.Error("second Bootstrap should fail")
	}
}

func TestBootstrap_EmptyGeneration(t *testing.T) {
	gdb := openTestDB(t)
	a, _ := agent.Create(gdb, agent.CreateOpts{Name: "Fresh"})
	gen := &mockGenerator{sections: script.NewSections()}
	if _, err := Bootstrap(context.Background(), gdb, gen, a.ID); err == nil {
		t.Error("expected error for empty generation")
	}
}

func TestMentionsSection(t *testing.T) {
	tests := []struct {
		feedback string
		name     string
		want     bool
	}{
		{"shorten the role", script.SectionRole, true},
		{"make the call flow friendlier", script.SectionCallFlow, true},
		{"update call_flow step 2", script.SectionCallFlow, true},
		{"fix the Info Recap wording", script.SectionInfoRecap, true},
		{"be warmer overall", script.SectionKnowledge, false},
		{"shorten the role", script.SectionPersonality, false},
	}
	for _, tt := range tests {
		if got := mentionsSection(tt.feedback, tt.name); got != tt.want {
			t.Errorf("mentionsSection(%q, %q) = %v, want %v", tt.feedback, tt.name, got, tt.want)
		}
	}
}
