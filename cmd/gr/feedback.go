package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/dialtone-ai/greenroom/internal/revision"
)

func newFeedbackCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "feedback <agent-id> <instruction...>",
		Short: "Revise an agent's script from a feedback instruction",
		Long: `Asks the generator to revise the current script per the instruction,
validates the result, and creates a new feedback-edited version. If the
generator fails or violates the edit contract, the current version is
left unchanged.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeedback(cmd, configPath, args[0], strings.Join(args[1:], " "))
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}

func runFeedback(cmd *cobra.Command, configPath, agentID, instruction string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	gen, err := generatorFromConfig(cfg)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Revising script for %s...\n", agentID)

	v, err := revision.Apply(cmd.Context(), gormDB, gen, agentID, instruction,
		revision.ApplyOpts{Syncer: syncerFromConfig(cfg)})
	if err != nil {
		if errors.Is(err, revision.ErrNoChanges) {
			fmt.Fprintln(out, "Generator returned the script unchanged; no new version created.")
			return nil
		}
		return err
	}
	fmt.Fprintf(out, "Created v%d (%s)\n", v.Seq, v.ID)
	return nil
}
