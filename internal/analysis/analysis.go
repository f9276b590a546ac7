// Package analysis implements the automated optimization loop: it
// aggregates recent call outcomes per agent and, when performance lags
// the configured floors, asks the generator for an improved script,
// filing the result as a pending suggestion and optionally starting an
// experiment with it as challenger.
//
// The loop is externally triggered (one-shot or cron-driven daemon);
// the engine itself stays synchronous.
package analysis

import (
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/dialtone-ai/greenroom/internal/agent"
	"github.com/dialtone-ai/greenroom/internal/config"
	"github.com/dialtone-ai/greenroom/internal/experiment"
	"github.com/dialtone-ai/greenroom/internal/llm"
	"github.com/dialtone-ai/greenroom/internal/models"
	"github.com/dialtone-ai/greenroom/internal/script"
	"github.com/dialtone-ai/greenroom/internal/suggestion"
	"github.com/dialtone-ai/greenroom/internal/version"
	"gorm.io/gorm"
)

// Deps bundles what a run needs.
type Deps struct {
	DB        *gorm.DB
	Generator llm.Generator
	Analysis  config.AnalysisConfig
	Out       io.Writer // progress output; nil discards
}

// Summary reports what one run did.
type Summary struct {
	AgentsChecked      int
	AgentsSkipped      int
	SuggestionsFiled   int
	ExperimentsStarted int
}

// agentMetrics aggregates the most recent outcomes for an agent's
// current version.
type agentMetrics struct {
	MeanSentiment  float64
	ConversionRate float64
	Samples        int
}

// recentMetrics aggregates up to lookback outcomes attributed to the
// version, newest first.
func recentMetrics(db *gorm.DB, versionID string, lookback int) (agentMetrics, error) {
	if lookback <= 0 {
		lookback = 100
	}
	var outcomes []models.CallOutcome
	if err := db.Where("version_id = ?", versionID).
		Order("id DESC").Limit(lookback).
		Find(&outcomes).Error; err != nil {
		return agentMetrics{}, fmt.Errorf("analysis: outcomes for %s: %w", versionID, err)
	}
	m := agentMetrics{Samples: len(outcomes)}
	if m.Samples == 0 {
		return m, nil
	}
	converted := 0
	for _, o := range outcomes {
		m.MeanSentiment += o.Sentiment
		if o.Converted {
			converted++
		}
	}
	m.MeanSentiment /= float64(m.Samples)
	m.ConversionRate = float64(converted) / float64(m.Samples)
	return m, nil
}

// healthy reports whether the metrics clear both configured floors.
func healthy(m agentMetrics, cfg config.AnalysisConfig) bool {
	return m.MeanSentiment >= cfg.SentimentFloor && m.ConversionRate >= cfg.ConversionFloor
}

// RunOnce analyzes every agent once and files proposals for the
// underperformers. Per-agent failures are logged and counted as
// skipped, never fatal to the run.
func RunOnce(ctx context.Context, deps Deps) (*Summary, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("analysis: db is required")
	}
	if deps.Generator == nil {
		return nil, fmt.Errorf("analysis: generator is required")
	}
	out := deps.Out
	if out == nil {
		out = io.Discard
	}

	agents, err := agent.List(deps.DB)
	if err != nil {
		return nil, err
	}

	var sum Summary
	for _, a := range agents {
		if err := ctx.Err(); err != nil {
			return &sum, err
		}
		sum.AgentsChecked++
		filed, started, err := analyzeAgent(ctx, deps, a, out)
		if err != nil {
			log.Printf("analysis: agent %s: %v", a.ID, err)
			sum.AgentsSkipped++
			continue
		}
		if !filed {
			sum.AgentsSkipped++
			continue
		}
		sum.SuggestionsFiled++
		if started {
			sum.ExperimentsStarted++
		}
	}
	fmt.Fprintf(out, "Analysis complete: %d agent(s) checked, %d suggestion(s) filed, %d experiment(s) started\n",
		sum.AgentsChecked, sum.SuggestionsFiled, sum.ExperimentsStarted)
	return &sum, nil
}

// analyzeAgent checks one agent and files a proposal if warranted.
// Returns whether a suggestion was filed and whether an experiment was
// started.
func analyzeAgent(ctx context.Context, deps Deps, a models.Agent, out io.Writer) (bool, bool, error) {
	if a.CurrentVersionID == nil {
		return false, false, nil
	}
	base, sections, err := version.CurrentSections(deps.DB, a.ID)
	if err != nil {
		return false, false, err
	}

	m, err := recentMetrics(deps.DB, base.ID, deps.Analysis.LookbackCalls)
	if err != nil {
		return false, false, err
	}
	if m.Samples < deps.Analysis.MinCalls {
		return false, false, nil
	}
	if healthy(m, deps.Analysis) {
		return false, false, nil
	}

	// One proposal at a time per agent: don't pile pending analysis
	// suggestions or race a running experiment.
	pending, err := suggestion.List(deps.DB, a.ID, models.SuggestionPending)
	if err != nil {
		return false, false, err
	}
	for _, s := range pending {
		if s.Source == models.SourceAnalysis {
			return false, false, nil
		}
	}
	running, err := experiment.List(deps.DB, a.ID, models.ExperimentRunning)
	if err != nil {
		return false, false, err
	}
	if len(running) > 0 {
		return false, false, nil
	}

	instruction := buildInstruction(m, deps.Analysis)
	candidate, err := deps.Generator.ReviseSections(ctx, llm.ReviseRequest{
		Sections:    sections,
		Instruction: instruction,
		Constraints: llm.DefaultConstraints,
	})
	if err != nil {
		return false, false, fmt.Errorf("analysis: generate proposal: %w", err)
	}

	changes := diffChanges(sections, candidate)
	if len(changes) == 0 {
		return false, false, nil
	}

	rationale := fmt.Sprintf("last %d calls: mean sentiment %.2f (floor %.2f), conversion %.2f (floor %.2f)",
		m.Samples, m.MeanSentiment, deps.Analysis.SentimentFloor,
		m.ConversionRate, deps.Analysis.ConversionFloor)
	s, err := suggestion.Create(deps.DB, a.ID, changes, suggestion.CreateOpts{
		Source:    models.SourceAnalysis,
		Rationale: rationale,
	})
	if err != nil {
		return false, false, err
	}
	fmt.Fprintf(out, "Agent %s: filed suggestion %s (%s)\n", a.ID, s.ID, rationale)

	if !deps.Analysis.AutoExperiment {
		return true, false, nil
	}
	e, err := experiment.StartWithSections(deps.DB, a.ID, candidate,
		fmt.Sprintf("challenger from suggestion %s", s.ID))
	if err != nil {
		log.Printf("analysis: agent %s: start experiment: %v", a.ID, err)
		return true, false, nil
	}
	fmt.Fprintf(out, "Agent %s: started experiment %s\n", a.ID, e.ID)
	return true, true, nil
}

// buildInstruction turns lagging metrics into a revision instruction.
func buildInstruction(m agentMetrics, cfg config.AnalysisConfig) string {
	var problems []string
	if m.MeanSentiment < cfg.SentimentFloor {
		problems = append(problems, fmt.Sprintf(
			"callers rate these conversations poorly (mean sentiment %.2f over the last %d calls); revise the personality and call_flow sections to sound warmer and less scripted",
			m.MeanSentiment, m.Samples))
	}
	if m.ConversionRate < cfg.ConversionFloor {
		problems = append(problems, fmt.Sprintf(
			"too few calls convert (%.0f%% over the last %d calls); revise the call_flow and info_recap sections to ask for the booking earlier and confirm details more clearly",
			m.ConversionRate*100, m.Samples))
	}
	return strings.Join(problems, "; also, ")
}

// diffChanges builds replace changes for every section whose candidate
// text differs from the base.
func diffChanges(base, candidate script.Sections) []suggestion.Change {
	var changes []suggestion.Change
	for _, name := range script.Names() {
		before, _ := base.Get(name)
		after, _ := candidate.Get(name)
		if after == before {
			continue
		}
		// A proposal may not erase a section; drop the emptying change
		// rather than the whole proposal.
		if strings.TrimSpace(after) == "" && strings.TrimSpace(before) != "" {
			continue
		}
		changes = append(changes, suggestion.Change{
			Section: name,
			Op:      suggestion.OpReplace,
			Text:    after,
		})
	}
	return changes
}

// RunDaemon runs RunOnce on a 5-field cron schedule until the context
// is cancelled. Run errors are logged, never fatal.
func RunDaemon(ctx context.Context, deps Deps, cronExpr string) error {
	out := deps.Out
	if out == nil {
		out = io.Discard
	}
	if _, err := nextCronDuration(cronExpr); err != nil {
		return fmt.Errorf("analysis: invalid cron expression %q: %w", cronExpr, err)
	}
	fmt.Fprintf(out, "Analysis daemon starting (cron %q)...\n", cronExpr)

	for {
		wait, err := nextCronDuration(cronExpr)
		if err != nil {
			return fmt.Errorf("analysis: invalid cron expression %q: %w", cronExpr, err)
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			fmt.Fprintf(out, "Analysis daemon stopped.\n")
			return nil
		case <-timer.C:
		}
		if _, err := RunOnce(ctx, deps); err != nil && ctx.Err() == nil {
			log.Printf("analysis: run: %v", err)
		}
	}
}
