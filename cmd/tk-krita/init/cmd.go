// Package initcmd implements the `tk-krita init` command.
package initcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/go-ports/tk-krita/cmd/tk-krita/shared"
)

// Command implements `tk-krita init`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the init command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "init",
		Short: "Initialize the engine home (registry and startup directory)",
		RunE:  c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.OpenService(cmd.ErrOrStderr())
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer svc.Close()

	if err := os.MkdirAll(svc.Config.StartupDir(svc.Home), 0o755); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Engine home initialized at %s\n", svc.Home)
	return nil
}
