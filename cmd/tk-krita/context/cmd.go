// Package contextcmd implements the `tk-krita context` command.
package contextcmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/tk-krita/cmd/tk-krita/shared"
	"github.com/go-ports/tk-krita/internal/models"
	"github.com/go-ports/tk-krita/internal/toolkit"
)

// Command implements `tk-krita context`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	serialize bool
	asJSON    bool
}

// New creates the context command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "context <path>",
		Short: "Show the pipeline context of a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE:  c.run,
	}

	f := c.cmd.Flags()
	f.BoolVar(&c.serialize, "serialize", false, "Print only the serialized context (the SGTK_CONTEXT value)")
	f.BoolVar(&c.asJSON, "json", false, "Print the resolution as JSON")
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, args []string) error {
	svc, err := c.ctx.OpenService(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer svc.Close()

	out := cmd.OutOrStdout()
	res, err := svc.ResolveContext(args[0], models.Context{})
	if errors.Is(err, toolkit.ErrUnresolvableProject) {
		if c.serialize || c.asJSON {
			return err
		}
		fmt.Fprintf(out, "%s: %s (outside every registered project)\n", args[0], models.Context{}.String())
		return nil
	}
	if err != nil {
		return err
	}

	switch {
	case c.serialize:
		fmt.Fprintln(out, res.Serialized)
	case c.asJSON:
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
	default:
		fmt.Fprintf(out, "Context: %s\n", res.Label)
		fmt.Fprintf(out, "Project: %s (%s)\n", res.Project, res.Root)
	}
	return nil
}
