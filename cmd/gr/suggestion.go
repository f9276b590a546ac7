package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/dialtone-ai/greenroom/internal/suggestion"
)

func newSuggestionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggestion",
		Short: "Suggestion review commands",
	}

	cmd.AddCommand(newSuggestionListCmd())
	cmd.AddCommand(newSuggestionAcceptCmd())
	cmd.AddCommand(newSuggestionRejectCmd())
	cmd.AddCommand(newSuggestionRejectAllCmd())
	return cmd
}

func newSuggestionListCmd() *cobra.Command {
	var (
		configPath string
		status     string
	)

	cmd := &cobra.Command{
		Use:   "list <agent-id>",
		Short: "List an agent's suggestions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			ss, err := suggestion.List(gormDB, args[0], status)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(ss) == 0 {
				fmt.Fprintln(out, "No suggestions.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATUS\tSOURCE\tCREATED\tRATIONALE")
			for _, s := range ss {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Status, s.Source, formatTime(s.CreatedAt),
					truncate(firstLine(s.Rationale), 60))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending, accepted, rejected)")
	return cmd
}

func newSuggestionAcceptCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "accept <agent-id> <suggestion-id>",
		Short: "Accept a pending suggestion",
		Long:  "Applies the suggestion's changes to the current script, creating a new version.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			v, err := suggestion.Accept(cmd.Context(), gormDB, syncerFromConfig(cfg), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Accepted %s: created v%d (%s)\n", args[1], v.Seq, v.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}

func newSuggestionRejectCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reject <agent-id> <suggestion-id>",
		Short: "Reject a pending suggestion",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			if err := suggestion.Reject(gormDB, args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rejected %s\n", args[1])
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}

func newSuggestionRejectAllCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "reject-all <agent-id>",
		Short: "Reject every pending suggestion for an agent",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			n, err := suggestion.RejectAll(gormDB, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rejected %d suggestion(s)\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}
