// Package mcpcmd implements the `tk-krita mcp` command.
package mcpcmd

import (
	"github.com/spf13/cobra"

	"github.com/go-ports/tk-krita/cmd/tk-krita/shared"
	internalmcp "github.com/go-ports/tk-krita/internal/mcp"
)

// Command implements `tk-krita mcp`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the mcp command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "mcp",
		Short: "Start the tk-krita MCP server (stdio transport)",
		RunE:  c.run,
	}
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	log, err := c.ctx.Logger(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	home, _ := c.ctx.ResolveHome()
	return internalmcp.Serve(cmd.Context(), home, log)
}
