// Package projectcmd implements the `tk-krita project` command group.
package projectcmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/go-ports/tk-krita/cmd/tk-krita/shared"
)

// Command implements `tk-krita project`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the project command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "project",
		Short: "Manage the projects of the registry",
	}
	c.cmd.AddCommand(
		&cobra.Command{
			Use:   "add <name> <root>",
			Short: "Register a project rooted at a directory",
			Args:  cobra.ExactArgs(2),
			RunE:  c.runAdd,
		},
		&cobra.Command{
			Use:   "list",
			Short: "List registered projects",
			Args:  cobra.NoArgs,
			RunE:  c.runList,
		},
		&cobra.Command{
			Use:   "remove <name>",
			Short: "Remove a project and its entities",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runRemove,
		},
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) runAdd(cmd *cobra.Command, args []string) error {
	svc, err := c.ctx.OpenService(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer svc.Close()

	p, err := svc.AddProject(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added project %s at %s (id: %d)\n", p.Name, p.Root, p.ID)
	return nil
}

func (c *Command) runList(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.OpenService(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer svc.Close()

	projects, err := svc.ListProjects()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(projects) == 0 {
		fmt.Fprintln(out, "No projects registered.")
		return nil
	}
	for _, p := range projects {
		fmt.Fprintf(out, "%d\t%s\t%s\n", p.ID, p.Name, p.Root)
	}
	return nil
}

func (c *Command) runRemove(cmd *cobra.Command, args []string) error {
	svc, err := c.ctx.OpenService(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer svc.Close()

	removed, err := svc.RemoveProject(args[0])
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("project %q not found", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed project %s\n", args[0])
	return nil
}
