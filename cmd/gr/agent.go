package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/dialtone-ai/greenroom/internal/agent"
	"github.com/dialtone-ai/greenroom/internal/revision"
	"github.com/dialtone-ai/greenroom/internal/version"
)

func newAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Agent management commands",
	}

	cmd.AddCommand(newAgentCreateCmd())
	cmd.AddCommand(newAgentListCmd())
	cmd.AddCommand(newAgentShowCmd())
	return cmd
}

func newAgentCreateCmd() *cobra.Command {
	var (
		configPath string
		name       string
		business   string
		handle     string
		bootstrap  bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new voice agent",
		Long:  "Registers an agent. With --bootstrap, also generates its first script version.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgentCreate(cmd, configPath, agent.CreateOpts{
				Name:          name,
				Business:      business,
				RuntimeHandle: handle,
			}, bootstrap)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	cmd.Flags().StringVar(&name, "name", "", "agent name (required)")
	cmd.Flags().StringVar(&business, "business", "", "business self-description used for script generation")
	cmd.Flags().StringVar(&handle, "handle", "", "external conversational-runtime identifier")
	cmd.Flags().BoolVar(&bootstrap, "bootstrap", false, "generate the first script version now")
	cmd.MarkFlagRequired("name")
	return cmd
}

func runAgentCreate(cmd *cobra.Command, configPath string, opts agent.CreateOpts, bootstrap bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	a, err := agent.Create(gormDB, opts)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created agent %s (%s)\n", a.ID, a.Name)

	if !bootstrap {
		return nil
	}
	gen, err := generatorFromConfig(cfg)
	if err != nil {
		return err
	}
	v, err := revision.Bootstrap(context.Background(), gormDB, gen, a.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Generated script v%d (%s)\n", v.Seq, v.ID)
	return nil
}

func newAgentListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			agents, err := agent.List(gormDB)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(agents) == 0 {
				fmt.Fprintln(out, "No agents.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCURRENT\tHANDLE")
			for _, a := range agents {
				current := "-"
				if a.CurrentVersionID != nil {
					current = *a.CurrentVersionID
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					a.ID, truncate(a.Name, 30), current, orDash(a.RuntimeHandle))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}

func newAgentShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Show an agent and its current version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			a, err := agent.Get(gormDB, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Agent:    %s\n", a.ID)
			fmt.Fprintf(out, "Name:     %s\n", a.Name)
			fmt.Fprintf(out, "Business: %s\n", orDash(truncate(a.Business, 80)))
			fmt.Fprintf(out, "Handle:   %s\n", orDash(a.RuntimeHandle))
			if a.CurrentVersionID == nil {
				fmt.Fprintln(out, "Current:  (no script yet)")
				return nil
			}
			v, err := version.Get(gormDB, *a.CurrentVersionID)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Current:  v%d (%s, origin %s, %s)\n",
				v.Seq, v.ID, v.Origin, formatTime(v.CreatedAt))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}
