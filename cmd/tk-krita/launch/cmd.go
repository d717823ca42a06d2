// Package launchcmd implements the `tk-krita launch` command.
package launchcmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/go-ports/tk-krita/cmd/tk-krita/shared"
	"github.com/go-ports/tk-krita/internal/launch"
	"github.com/go-ports/tk-krita/internal/service"
)

// Command implements `tk-krita launch`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	contextPath string
	print       bool
}

// New creates the launch command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "launch <executable> [file]",
		Short: "Start Krita with the pipeline integration for a file",
		Long: `Start Krita with the pipeline integration. The context handed to the
engine is resolved from the file (or --context-path) through the project
registry; outside every project the engine starts disabled.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: c.run,
	}

	f := c.cmd.Flags()
	f.StringVar(&c.contextPath, "context-path", "", "Resolve the context from this path instead of the file")
	f.BoolVar(&c.print, "print", false, "Print the prepared process (credentials redacted) instead of starting it")
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

	req := service.LaunchRequest{Executable: args[0], ContextPath: c.contextPath}
	if len(args) == 2 {
		req.File = args[1]
	}
	info, err := svc.PrepareLaunch(req)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if c.print {
		Print(out, svc.Redacted(info))
		return nil
	}

	pid, err := svc.Launch(info, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Launched %s (pid %d)\n", info.Path, pid)
	return nil
}

// Print writes info in a shell-like form: variables sorted by name, then the
// command line.
func Print(w io.Writer, info launch.Information) {
	names := make([]string, 0, len(info.Env))
	for k := range info.Env {
		names = append(names, k)
	}
	sort.Strings(names)

	if info.Dir != "" {
		fmt.Fprintf(w, "cd %s\n", info.Dir)
	}
	for _, k := range names {
		fmt.Fprintf(w, "%s=%s\n", k, info.Env[k])
	}
	fmt.Fprintln(w, strings.Join(append([]string{info.Path}, info.Args...), " "))
}
