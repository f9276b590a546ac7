package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/dialtone-ai/greenroom/internal/experiment"
	"github.com/dialtone-ai/greenroom/internal/models"
	"github.com/dialtone-ai/greenroom/internal/version"
)

func newOutcomeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "outcome",
		Short: "Call outcome commands",
	}
	cmd.AddCommand(newOutcomeAddCmd())
	return cmd
}

func newOutcomeAddCmd() *cobra.Command {
	var (
		configPath string
		sentiment  float64
		converted  bool
		duration   float64
	)

	cmd := &cobra.Command{
		Use:   "add <agent-id> <version-id>",
		Short: "Record one call outcome against a script version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := experiment.RecordOutcome(gormDB, args[0], args[1], sentiment, converted, duration); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded outcome for %s\n", args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	cmd.Flags().Float64Var(&sentiment, "sentiment", 0, "caller sentiment in [0,1] (required)")
	cmd.Flags().BoolVar(&converted, "converted", false, "the call converted")
	cmd.Flags().Float64Var(&duration, "duration", 0, "call duration in seconds")
	cmd.MarkFlagRequired("sentiment")
	return cmd
}

func newExperimentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "experiment",
		Short: "Experiment commands",
	}

	cmd.AddCommand(newExperimentStartCmd())
	cmd.AddCommand(newExperimentEvaluateCmd())
	cmd.AddCommand(newExperimentShowCmd())
	cmd.AddCommand(newExperimentListCmd())
	return cmd
}

func newExperimentStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start <agent-id> <challenger-version-id>",
		Short: "Start an experiment against the current version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			e, err := experiment.Start(gormDB, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Started experiment %s (%s vs %s)\n",
				e.ID, e.ControlVersionID, e.ChallengerVersionID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}

func newExperimentEvaluateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "evaluate <experiment-id>",
		Short: "Evaluate a running experiment and apply its decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExperimentEvaluate(cmd, configPath, args[0])
		},
		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}

func runExperimentEvaluate(cmd *cobra.Command, configPath, experimentID string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	e, err := experiment.Evaluate(gormDB, experimentID,
		experiment.EvaluateOpts{MinSamples: cfg.Experiment.MinSamples})
	if err != nil {
		if errors.Is(err, experiment.ErrInsufficientData) {
			fmt.Fprintf(out, "Not enough samples yet; experiment stays running.\n")
		}
		return err
	}

	fmt.Fprintf(out, "Decision: %s\n", e.Decision)
	fmt.Fprintf(out, "Control:    sentiment %.2f, conversion %.2f (%d calls)\n",
		e.ControlSentiment, e.ControlConversion, e.ControlSamples)
	fmt.Fprintf(out, "Challenger: sentiment %.2f, conversion %.2f (%d calls)\n",
		e.ChallengerSentiment, e.ChallengerConversion, e.ChallengerSamples)

	if e.PromotedVersionID != nil {
		fmt.Fprintf(out, "Promoted %s to current.\n", *e.PromotedVersionID)
		if v, err := version.Get(gormDB, *e.PromotedVersionID); err == nil {
			pushCurrent(cmd, cfg, gormDB, e.AgentID, v.CompiledText)
		}
	}
	return nil
}

func newExperimentShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <experiment-id>",
		Short: "Show an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			e, err := experiment.Get(gormDB, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Experiment: %s (agent %s)\n", e.ID, e.AgentID)
			fmt.Fprintf(out, "Status:     %s\n", e.Status)
			fmt.Fprintf(out, "Control:    %s\n", e.ControlVersionID)
			fmt.Fprintf(out, "Challenger: %s\n", e.ChallengerVersionID)
			if e.Status == models.ExperimentCompleted {
				fmt.Fprintf(out, "Decision:   %s\n", e.Decision)
				fmt.Fprintf(out, "Control:    sentiment %.2f, conversion %.2f (%d calls)\n",
					e.ControlSentiment, e.ControlConversion, e.ControlSamples)
				fmt.Fprintf(out, "Challenger: sentiment %.2f, conversion %.2f (%d calls)\n",
					e.ChallengerSentiment, e.ChallengerConversion, e.ChallengerSamples)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}

func newExperimentListCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List an agent's experiments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			es, err := experiment.List(gormDB, args[0], status)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(es) == 0 {
				fmt.Fprintln(out, "No experiments.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tDECISION\tCONTROL\tCHALLENGER\tCREATED")
			for _, e := range es {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.ID, e.Status, orDash(e.Decision),
					e.ControlVersionID, e.ChallengerVersionID, formatTime(e.CreatedAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (running, completed)")
	return cmd
}
