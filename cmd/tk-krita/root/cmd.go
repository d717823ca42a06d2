// Package rootcmd wires the root cobra.Command for the tk-krita CLI binary.
package rootcmd

import (
	"github.com/spf13/cobra"

	configcmd "github.com/go-ports/tk-krita/cmd/tk-krita/config"
	contextcmd "github.com/go-ports/tk-krita/cmd/tk-krita/context"
	entitycmd "github.com/go-ports/tk-krita/cmd/tk-krita/entity"
	initcmd "github.com/go-ports/tk-krita/cmd/tk-krita/init"
	launchcmd "github.com/go-ports/tk-krita/cmd/tk-krita/launch"
	mcpcmd "github.com/go-ports/tk-krita/cmd/tk-krita/mcp"
	projectcmd "github.com/go-ports/tk-krita/cmd/tk-krita/project"
	scancmd "github.com/go-ports/tk-krita/cmd/tk-krita/scan"
	sessioncmd "github.com/go-ports/tk-krita/cmd/tk-krita/session"
	setupcmd "github.com/go-ports/tk-krita/cmd/tk-krita/setup"
	"github.com/go-ports/tk-krita/cmd/tk-krita/shared"
	uninstallcmd "github.com/go-ports/tk-krita/cmd/tk-krita/uninstall"
)

// New creates and returns the root cobra.Command for the tk-krita CLI.
func New() *cobra.Command {
	ctx := &shared.Context{}

	root := &cobra.Command{
		Use:           "tk-krita",
		Short:         "Shotgun pipeline integration for Krita",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}
	root.SuggestionsMinimumDistance = 2

	pf := root.PersistentFlags()
	pf.StringVar(
		&ctx.Home, "home", "",
		"Override engine home directory (default: $TK_KRITA_HOME env → persisted config → ~/.tk-krita)",
	)
	pf.StringVar(&ctx.LogLevel, "log-level", "warn", "Log level: debug | info | warn | error")

	root.AddCommand(
		initcmd.New(ctx).Cmd(),
		configcmd.New(ctx).Cmd(),
		scancmd.New(ctx).Cmd(),
		launchcmd.New(ctx).Cmd(),
		projectcmd.New(ctx).Cmd(),
		entitycmd.New(ctx).Cmd(),
		contextcmd.New(ctx).Cmd(),
		sessioncmd.New(ctx).Cmd(),
		mcpcmd.New(ctx).Cmd(),
		setupcmd.New(ctx).Cmd(),
		uninstallcmd.New(ctx).Cmd(),
	)

	return root
}
