// Package entitycmd implements the `tk-krita entity` command group.
package entitycmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/tk-krita/cmd/tk-krita/shared"
	"github.com/go-ports/tk-krita/internal/models"
)

// Command implements `tk-krita entity`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	parent int64
}

// New creates the entity command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "entity",
		Short: "Manage the entities of a project",
	}

	add := &cobra.Command{
		Use:   "add <project> <type> <name> <path>",
		Short: "Bind an entity to a directory of the project",
		Long: "Bind an entity to a directory of the project. <type> is one of " +
			strings.Join(models.ValidEntityTypes, ", ") + "; a Task needs --parent.",
		Args: cobra.ExactArgs(4),
		RunE: c.runAdd,
	}
	add.Flags().Int64Var(&c.parent, "parent", 0, "Id of the parent entity")

	c.cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "list <project>",
			Short: "List the entities of a project",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runList,
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

	e, err := svc.AddEntity(args[0], args[1], args[2], args[3], c.parent)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s %s at %s (id: %d)\n", e.Type, e.Name, e.Path, e.ID)
	return nil
}

func (c *Command) runList(cmd *cobra.Command, args []string) error {
	svc, err := c.ctx.OpenService(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer svc.Close()

	entities, err := svc.ListEntities(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entities) == 0 {
		fmt.Fprintln(out, "No entities registered.")
		return nil
	}
	for _, e := range entities {
		parent := "-"
		if e.ParentID != 0 {
			parent = fmt.Sprint(e.ParentID)
		}
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\tparent=%s\n", e.ID, e.Type, e.Name, e.Path, parent)
	}
	return nil
}
