package experiment

import (
	"errors"
	"testing"

	"github.com/dialtone-ai/greenroom/internal/agent"
	"github.com/dialtone-ai/greenroom/internal/db"
	"github.com/dialtone-ai/greenroom/internal/models"
	"github.com/dialtone-ai/greenroom/internal/script"
	"github.com/dialtone-ai/greenroom/internal/version"
	"gorm.io/gorm"
)

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

func testSections(role string) script.Sections {
	s := script.NewSections()
	s.Set(script.SectionRole, role)
	s.Set(script.SectionPersonality, "Friendly.")
	s.Set(script.SectionCallFlow, "Greet, help, close.")
	s.Set(script.SectionInfoRecap, "Recap details.")
	s.Set(script.SectionFunctions, "none")
	s.Set(script.SectionKnowledge, "Hours: 9-5.")
	return s
}

// runningExperiment sets up an agent with a current version, a held
// challenger, and a running experiment between them.
func runningExperiment(t *testing.T, gdb *gorm.DB) (*models.Agent, *models.Experiment) {
	t.Helper()
	a, err := agent.Create(gdb, agent.CreateOpts{Name: "Test"})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	if _, err := version.Create(gdb, a.ID, testSections("Control role."), version.CreateOpts{Origin: models.OriginGenerated}); err != nil {
		t.Fatalf("create control: %v", err)
	}
	e, err := StartWithSections(gdb, a.ID, testSections("Challenger role."), "trial")
	if err != nil {
		t.Fatalf("start experiment: %v", err)
	}
	return a, e
}

func recordN(t *testing.T, gdb *gorm.DB, agentID, versionID string, n int, sentiment float64, convRate float64) {
	t.Helper()
	converted := int(convRate * float64(n))
	for i := 0; i < n; i++ {
		if err := RecordOutcome(gdb, agentID, versionID, sentiment, i < converted, 120); err != nil {
			t.Fatalf("record outcome: %v", err)
		}
	}
}

func TestDecide_Matrix(t *testing.T) {
	tests := []struct {
		name       string
		control    ArmMetrics
		challenger ArmMetrics
		want       string
	}{
		{
			name:       "better on both promotes challenger",
			control:    ArmMetrics{MeanSentiment: 0.6, ConversionRate: 0.30},
			challenger: ArmMetrics{MeanSentiment: 0.7, ConversionRate: 0.35},
			want:       models.DecisionChallenger,
		},
		{
			name:       "mixed is inconclusive",
			control:    ArmMetrics{MeanSentiment: 0.6, ConversionRate: 0.30},
			challenger: ArmMetrics{MeanSentiment: 0.7, ConversionRate: 0.25},
			want:       models.DecisionInconclusive,
		},
		{
			name:       "equal sentiment is inconclusive",
			control:    ArmMetrics{MeanSentiment: 0.6, ConversionRate: 0.30},
			challenger: ArmMetrics{MeanSentiment: 0.6, ConversionRate: 0.35},
			want:       models.DecisionInconclusive,
		},
		{
			name:       "equal conversion is inconclusive",
			control:    ArmMetrics{MeanSentiment: 0.6, ConversionRate: 0.30},
			challenger: ArmMetrics{MeanSentiment: 0.7, ConversionRate: 0.30},
			want:       models.DecisionInconclusive,
		},
		{
			name:       "worse on both keeps control",
			control:    ArmMetrics{MeanSentiment: 0.6, ConversionRate: 0.30},
			challenger: ArmMetrics{MeanSentiment: 0.5, ConversionRate: 0.25},
			want:       models.DecisionControl,
		},
		{
			name:       "identical arms are inconclusive",
			control:    ArmMetrics{MeanSentiment: 0.6, ConversionRate: 0.30},
			challenger: ArmMetrics{MeanSentiment: 0.6, ConversionRate: 0.30},
			want:       models.DecisionInconclusive,
		},
		{
			name:       "worse on one tied on the other is inconclusive",
			control:    ArmMetrics{MeanSentiment: 0.6, ConversionRate: 0.30},
			challenger: ArmMetrics{MeanSentiment: 0.5, ConversionRate: 0.30},
			want:       models.DecisionInconclusive,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Decide(tt.control, tt.challenger); got != tt.want {
				t.Errorf("Decide() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStartWithSections_HoldsPointer(t *testing.T) {
	gdb := openTestDB(t)
	a, e := runningExperiment(t, gdb)

	cur, err := version.Current(gdb, a.ID)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if cur.ID != e.ControlVersionID {
		t.Errorf("current = %q, want control %q", cur.ID, e.ControlVersionID)
	}
	challenger, err := version.Get(gdb, e.ChallengerVersionID)
	if err != nil {
		t.Fatalf("Get challenger: %v", err)
	}
	if challenger.Seq != 2 {
		t.Errorf("challenger Seq = %d, want 2", challenger.Seq)
	}
	if challenger.Origin != models.OriginPromotion {
		t.Errorf("challenger Origin = %q", challenger.Origin)
	}
}

func TestStart_Validation(t *testing.T) {
	gdb := openTestDB(t)
	a, err := agent.Create(gdb, agent.CreateOpts{Name: "Test"})
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	// No current version yet.
	if _, err := Start(gdb, a.ID, "ver-zzzzz"); err == nil {
		t.Error("expected error with no current version")
	}

	v1, err := version.Create(gdb, a.ID, testSections("Role."), version.CreateOpts{Origin: models.OriginGenerated})
	if err != nil {
		t.Fatalf("create version: %v", err)
	}

	// Challenger is already current.
	if _, err := Start(gdb, a.ID, v1.ID); err == nil {
		t.Error("expected error for challenger == control")
	}

	// Challenger belongs to another agent.
	b, _ := agent.Create(gdb, agent.CreateOpts{Name: "Other"})
	bv, err := version.Create(gdb, b.ID, testSections("Other."), version.CreateOpts{Origin: models.OriginGenerated})
	if err != nil {
		t.Fatalf("create other version: %v", err)
	}
	if _, err := Start(gdb, a.ID, bv.ID); err == nil {
		t.Error("expected error for cross-agent challenger")
	}
}

func TestStart_OneRunningPerAgent(t *testing.T) {
	gdb := openTestDB(t)
	a, _ := runningExperiment(t, gdb)

	if _, err := StartWithSections(gdb, a.ID, testSections("Second challenger."), "again"); err == nil {
		t.Error("expected error starting a second running experiment")
	}
}

func TestEvaluate_PromotesChallenger(t *testing.T) {
	gdb := openTestDB(t)
	a, e := runningExperiment(t, gdb)

	recordN(t, gdb, a.ID, e.ControlVersionID, 20, 0.6, 0.30)
	recordN(t, gdb, a.ID, e.ChallengerVersionID, 20, 0.7, 0.35)

	done, err := Evaluate(gdb, e.ID, EvaluateOpts{MinSamples: 10})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if done.Status != models.ExperimentCompleted {
		t.Errorf("Status = %q", done.Status)
	}
	if done.Decision != models.DecisionChallenger {
		t.Errorf("Decision = %q", done.Decision)
	}
	if done.PromotedVersionID == nil || *done.PromotedVersionID != e.ChallengerVersionID {
		t.Errorf("PromotedVersionID = %v", done.PromotedVersionID)
	}
	if done.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if done.ControlSamples != 20 || done.ChallengerSamples != 20 {
		t.Errorf("samples = %d/%d", done.ControlSamples, done.ChallengerSamples)
	}

	cur, _ := version.Current(gdb, a.ID)
	if cur.ID != e.ChallengerVersionID {
		t.Errorf("current = %q, want challenger %q", cur.ID, e.ChallengerVersionID)
	}
}

func TestEvaluate_MixedKeepsControl(t *testing.T) {
	gdb := openTestDB(t)
	a, e := runningExperiment(t, gdb)

	recordN(t, gdb, a.ID, e.ControlVersionID, 10, 0.6, 0.30)
	recordN(t, gdb, a.ID, e.ChallengerVersionID, 10, 0.7, 0.20)

	done, err := Evaluate(gdb, e.ID, EvaluateOpts{})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if done.Decision != models.DecisionInconclusive {
		t.Errorf("Decision = %q", done.Decision)
	}
	if done.PromotedVersionID != nil {
		t.Errorf("PromotedVersionID = %v, want nil", done.PromotedVersionID)
	}

	cur, _ := version.Current(gdb, a.ID)
	if cur.ID != e.ControlVersionID {
		t.Errorf("current = %q, want control %q", cur.ID, e.ControlVersionID)
	}
}

func TestEvaluate_InsufficientData(t *testing.T) {
	gdb := openTestDB(t)
	a, e := runningExperiment(t, gdb)

	// Control has samples, challenger does not.
	recordN(t, gdb, a.ID, e.ControlVersionID, 5, 0.6, 0.30)

	_, err := Evaluate(gdb, e.ID, EvaluateOpts{})
	if !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData", err)
	}

	reloaded, _ := Get(gdb, e.ID)
	if reloaded.Status != models.ExperimentRunning {
		t.Errorf("Status = %q, want running", reloaded.Status)
	}
}

func TestEvaluate_MinSamplesGate(t *testing.T) {
	gdb := openTestDB(t)
	a, e := runningExperiment(t, gdb)

	recordN(t, gdb, a.ID, e.ControlVersionID, 5, 0.6, 0.40)
	recordN(t, gdb, a.ID, e.ChallengerVersionID, 5, 0.7, 0.60)

	if _, err := Evaluate(gdb, e.ID, EvaluateOpts{MinSamples: 10}); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("err = %v, want ErrInsufficientData below MinSamples", err)
	}
	if _, err := Evaluate(gdb, e.ID, EvaluateOpts{MinSamples: 5}); err != nil {
		t.Fatalf("Evaluate at threshold: %v", err)
	}
}

func TestEvaluate_NotRunning(t *testing.T) {
	gdb := openTestDB(t)
	a, e := runningExperiment(t, gdb)

	recordN(t, gdb, a.ID, e.ControlVersionID, 2, 0.5, 0.5)
	recordN(t, gdb, a.ID, e.ChallengerVersionID, 2, 0.4, 0.0)

	if _, err := Evaluate(gdb, e.ID, EvaluateOpts{}); err != nil {
		t.Fatalf("first Evaluate: %v", err)
	}
	if _, err := Evaluate(gdb, e.ID, EvaluateOpts{}); err == nil {
		t.Error("expected error evaluating a completed experiment")
	}
}

func TestRecordOutcome_Validation(t *testing.T) {
	gdb := openTestDB(t)
	a, e := runningExperiment(t, gdb)

	if err := RecordOutcome(gdb, a.ID, e.ControlVersionID, 1.5, true, 60); err == nil {
		t.Error("expected error for sentiment out of range")
	}
	if err := RecordOutcome(gdb, a.ID, "ver-zzzzz", 0.5, true, 60); err == nil {
		t.Error("expected error for unknown version")
	}
	b, _ := agent.Create(gdb, agent.CreateOpts{Name: "Other"})
	if err := RecordOutcome(gdb, b.ID, e.ControlVersionID, 0.5, true, 60); err == nil {
		t.Error("expected error for cross-agent outcome")
	}
}

func TestArmMetrics_Aggregation(t *testing.T) {
	gdb := openTestDB(t)
	a, e := runningExperiment(t, gdb)

	recordN(t, gdb, a.ID, e.ControlVersionID, 4, 0.5, 0.5)

	m, err := armMetrics(gdb, e.ControlVersionID)
	if err != nil {
		t.Fatalf("armMetrics: %v", err)
	}
	if m.Samples != 4 {
		t.Errorf("Samples = %d", m.Samples)
	}
	if m.MeanSentiment != 0.5 {
		t.Errorf("MeanSentiment = %v", m.MeanSentiment)
	}
	if m.ConversionRate != 0.5 {
		t.Errorf("ConversionRate = %v", m.ConversionRate)
	}
	if m.MeanDuration != 120 {
		t.Errorf("MeanDuration = %v", m.MeanDuration)
	}
}

func TestList_FilterByStatus(t *testing.T) {
	gdb := openTestDB(t)
	a, e := runningExperiment(t, gdb)

	running, err := List(gdb, a.ID, models.ExperimentRunning)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(running) != 1 || running[0].ID != e.ID {
		t.Errorf("running = %+v", running)
	}
	completed, _ := List(gdb, a.ID, models.ExperimentCompleted)
	if len(completed) != 0 {
		t.Errorf("completed = %d, want 0", len(completed))
	}
}
