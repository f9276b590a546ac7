package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/dialtone-ai/greenroom/internal/revision"
	"github.com/dialtone-ai/greenroom/internal/version"
)

func newScriptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "script",
		Short: "Script version commands",
	}

	cmd.AddCommand(newScriptShowCmd())
	cmd.AddCommand(newScriptHistoryCmd())
	cmd.AddCommand(newScriptEditCmd())
	cmd.AddCommand(newScriptRollbackCmd())
	return cmd
}

func newScriptShowCmd() *cobra.Command {
	var (
		configPath string
		versionID  string
	)

	cmd := &cobra.Command{
		Use:   "show <agent-id>",
		Short: "Print an agent's compiled script",
		Long:  "Prints the current version's compiled text, or a specific version with --version.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if versionID != "" {
				v, err := version.Get(gormDB, versionID)
				if err != nil {
					return err
				}
				if v.AgentID != args[0] {
					return fmt.Errorf("version %s does not belong to agent %s", versionID, args[0])
				}
				fmt.Fprintln(out, v.CompiledText)
				return nil
			}
			v, err := version.Current(gormDB, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(out, v.CompiledText)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	cmd.Flags().StringVar(&versionID, "version", "", "show a specific version instead of the current one")
	return cmd
}

func newScriptHistoryCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "history <agent-id>",
		Short: "List an agent's version history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			vs, err := version.History(gormDB, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(vs) == 0 {
				fmt.Fprintln(out, "No versions.")
				return nil
			}
			cur, _ := version.Current(gormDB, args[0])
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "SEQ\tID\tORIGIN\tCREATED\tNOTE")
			for _, v := range vs {
				marker := ""
				if cur != nil && v.ID == cur.ID {
					marker = " *"
				}
				fmt.Fprintf(w, "v%d%s\t%s\t%s\t%s\t%s\n",
					v.Seq, marker, v.ID, v.Origin, formatTime(v.CreatedAt),
					truncate(firstLine(v.ChangeNote), 50))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}

func newScriptEditCmd() *cobra.Command {
	var (
		configPath string
		file       string
		note       string
	)

	cmd := &cobra.Command{
		Use:   "edit <agent-id>",
		Short: "Replace an agent's script from a file",
		Long:  "Parses the file into sections and creates a new manually-edited version. Content outside section markers is dropped with a warning.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read %s: %w", file, err)
			}
			v, err := revision.ApplyManual(gormDB, args[0], string(data), note, syncerFromConfig(cfg))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created v%d (%s)\n", v.Seq, v.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	cmd.Flags().StringVarP(&file, "file", "f", "", "path to the script file (required)")
	cmd.Flags().StringVar(&note, "note", "", "change note")
	cmd.MarkFlagRequired("file")
	return cmd
}

func newScriptRollbackCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "rollback <agent-id> <version-id>",
		Short: "Make an older version's script current again",
		Long:  "Creates a new version carrying the old version's sections. History stays append-only.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, gormDB, err := connectFromConfig(configPath)
			if err != nil {
				return err
			}
			v, err := version.Rollback(gormDB, args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Rolled back: created v%d (%s)\n", v.Seq, v.ID)
			pushCurrent(cmd, cfg, gormDB, args[0], v.CompiledText)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Greenroom config file")
	return cmd
}
