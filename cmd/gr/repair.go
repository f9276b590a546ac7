package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/dialtone-ai/greenroom/internal/repair"
	"github.com/dialtone-ai/greenroom/internal/version"
)

func newRepairCmd() *cobra.Command {
	var (
		configPath string
		inspect    bool
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "repair <agent-id>",
		Short: "Detect and repair structurally corrupted script versions",
		Long: `Checks every version for structural corruption (empty or truncated
sections, leaked generator meta-instructions) and overwrites corrupted
versions from the earliest clean one. With --inspect, only reports.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepair(cmd, configPath, args[0], inspect, dryRun)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "report structural issues without repairing")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what a repair would change")
	return cmd
}

func runRepair(cmd *cobra.Command, configPath, agentID string, inspect, dryRun bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if inspect {
		reports, err := repair.Inspect(gormDB, agentID, nil)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tID\tSTATUS")
		for _, r := range reports {
			if r.Clean() {
				fmt.Fprintf(w, "v%d\t%s\tclean\n", r.Seq, r.VersionID)
				continue
			}
			for _, issue := range r.Issues {
				fmt.Fprintf(w, "v%d\t%s\t%s: %s\n", r.Seq, r.VersionID, issue.Section, issue.Problem)
			}
		}
		return w.Flush()
	}

	res, err := repair.Run(gormDB, agentID, repair.RunOpts{DryRun: dryRun})
	if err != nil {
		return err
	}
	if len(res.RepairedIDs) == 0 {
		fmt.Fprintln(out, "No corrupted versions found.")
	} else {
		verb := "Restored"
		if dryRun {
			verb = "Would restore"
		}
		fmt.Fprintf(out, "%s %d version(s) from template %s:", verb, len(res.RepairedIDs), res.TemplateVersionID)
		for _, id := range res.RepairedIDs {
			fmt.Fprintf(out, " %s", id)
		}
		fmt.Fprintln(out)
	}
	fmt.Fprintf(out, "Current version: %s\n", res.CurrentVersionID)

	if !dryRun {
		if v, err := version.Get(gormDB, res.CurrentVersionID); err == nil {
			pushCurrent(cmd, cfg, gormDB, agentID, v.CompiledText)
		}
	}
	return nil
}
