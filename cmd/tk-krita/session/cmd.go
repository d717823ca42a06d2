// Package sessioncmd implements the `tk-krita session` command.
package sessioncmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/go-ports/tk-krita/cmd/tk-krita/shared"
	"github.com/go-ports/tk-krita/internal/models"
	"github.com/go-ports/tk-krita/internal/service"
)

// Command implements `tk-krita session`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	open        []string
	commands    []string
	contextPath string
	hostVersion string
	fromEnv     bool
	asJSON      bool
}

// New creates the session command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "session",
		Short: "Run the engine headless and replay document events",
		Long: `Start the engine against a windowless host the way the in-host
bootstrap does, open each --open document in turn and report how the
integration state, context and pipeline menu follow.`,
		Args: cobra.NoArgs,
		RunE: c.run,
	}

	f := c.cmd.Flags()
	f.StringArrayVar(&c.open, "open", nil, "Document to open (repeatable, in order)")
	f.StringArrayVar(&c.commands, "command", nil, "Register a command as app_instance/name (repeatable)")
	f.StringVar(&c.contextPath, "context-path", "", "Resolve the initial context from this path")
	f.StringVar(&c.hostVersion, "host-version", "", "Version reported by the simulated host")
	f.BoolVar(&c.fromEnv, "from-env", false, "Read engine name and context from SGTK_ENGINE and SGTK_CONTEXT")
	f.BoolVar(&c.asJSON, "json", false, "Print the session record as JSON")
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.OpenService(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer svc.Close()

	var initial models.Context
	if c.contextPath != "" {
		res, err := svc.ResolveContext(c.contextPath, models.Context{})
		if err != nil {
			return err
		}
		initial = res.Context
	}

	out := cmd.OutOrStdout()
	cmdOut := out
	if c.asJSON {
		cmdOut = cmd.ErrOrStderr()
	}
	res, err := svc.Session(service.SessionOptions{
		Documents:   c.open,
		Commands:    c.commands,
		Context:     initial,
		HostVersion: c.hostVersion,
		FromEnv:     c.fromEnv,
		Out:         cmdOut,
	})
	if err != nil {
		return err
	}

	if c.asJSON {
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}
	Print(out, res)
	return nil
}

// Print writes a human-readable session record.
func Print(w io.Writer, res *service.SessionResult) {
	fmt.Fprintf(w, "Session %s: %s on %s %s\n", res.SessionID, res.Engine, res.Host.Name, res.Host.Version)
	for _, name := range res.Startup.Ran {
		fmt.Fprintf(w, "startup: ran %s\n", name)
	}
	for _, f := range res.Startup.Failed {
		fmt.Fprintf(w, "startup: failed %s\n", f)
	}
	for _, warn := range res.Startup.Warnings {
		fmt.Fprintf(w, "startup: %s\n", warn)
	}
	for _, step := range res.Steps {
		marker := " "
		if step.Changed {
			marker = "*"
		}
		fmt.Fprintf(w, "%s %s: %s -> %s [%s]\n", marker, step.Document, step.From, step.To, step.Context.String())
		if step.Error != "" {
			fmt.Fprintf(w, "    %s\n", step.Error)
		}
	}
	for _, m := range res.Messages {
		fmt.Fprintf(w, "message: %s: %s\n", m.Title, m.Text)
	}
}
