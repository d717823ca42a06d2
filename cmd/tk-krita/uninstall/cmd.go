// Package uninstallcmd implements the `tk-krita uninstall` command group.
package uninstallcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	setupcmd "github.com/go-ports/tk-krita/cmd/tk-krita/setup"
	"github.com/go-ports/tk-krita/cmd/tk-krita/shared"
	"github.com/go-ports/tk-krita/internal/setup"
)

// Command implements `tk-krita uninstall`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the uninstall command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the tk-krita MCP server from an agent",
		RunE:  func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	c.cmd.AddCommand(
		newUninstallClaudeCode(),
		newUninstallCursor(),
		newUninstallCodex(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func newUninstallClaudeCode() *cobra.Command {
	var configDir string
	var project bool
	cmd := &cobra.Command{
		Use:   "claude-code",
		Short: "Remove the MCP server from Claude Code",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := setupcmd.ResolveConfigDir(".claude", configDir, project)
			result, err := setup.UninstallClaudeCode(target, project)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "Path to .claude directory")
	cmd.Flags().BoolVar(&project, "project", false, "Uninstall from current project instead of globally")
	return cmd
}

func newUninstallCursor() *cobra.Command {
	var configDir string
	cmd := &cobra.Command{
		Use:   "cursor",
		Short: "Remove the MCP server from Cursor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := setupcmd.ResolveConfigDir(".cursor", configDir, false)
			result, err := setup.UninstallCursor(target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "Path to .cursor directory")
	return cmd
}

func newUninstallCodex() *cobra.Command {
	var configDir string
	cmd := &cobra.Command{
		Use:   "codex",
		Short: "Remove the MCP server from Codex",
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := setupcmd.ResolveConfigDir(".codex", configDir, false)
			result, err := setup.UninstallCodex(target)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&configDir, "config-dir", "", "Path to .codex directory")
	return cmd
}
