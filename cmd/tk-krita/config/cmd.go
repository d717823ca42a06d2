// Package configcmd implements the `tk-krita config` command group.
package configcmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/go-ports/tk-krita/cmd/tk-krita/shared"
	"github.com/go-ports/tk-krita/internal/config"
)

const configTemplate = `# tk-krita configuration

engine:
  menu_name: Shotgun
  # Commands replayed once the engine has started. Omit name to run every
  # command of the app instance.
  run_at_startup: []
  #  - app_instance: tk-multi-workfiles2
  #    name: File Open...

software:
  minimum_version: 4.0.0
  # versions: [5.2.2]           # optional allow-list
  # templates:
  #   linux: ["$HOME/Applications/krita-{version}-{mach}.appimage"]

launch:
  # startup_dir: /opt/tk-krita/startup   # defaults to <home>/startup
`

// Command implements `tk-krita config`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command
}

// New creates the config command group.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "config",
		Short: "Show or manage configuration",
		RunE:  c.runShow,
	}
	c.cmd.AddCommand(
		newConfigInit(ctx),
		newSetHome(),
		newClearHome(),
	)
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) runShow(cmd *cobra.Command, _ []string) error {
	home, source := c.ctx.ResolveHome()
	cfg, err := config.Load(config.ConfigPath(home))
	if err != nil {
		return err
	}
	data := map[string]any{
		"engine": cfg.Engine,
		"software": map[string]any{
			"product_name":    cfg.Software.ProductName,
			"minimum_version": cfg.Software.MinimumVersion,
			"versions":        cfg.Software.Versions,
			"default_icon":    cfg.DefaultIcon(home),
			"icon_name":       cfg.Software.IconName,
			"components":      cfg.Software.Components,
			"templates":       cfg.Software.Templates,
		},
		"launch": map[string]any{
			"startup_dir": cfg.StartupDir(home),
		},
		"home":        home,
		"home_source": source,
	}
	b, err := yaml.Marshal(data)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(b))
	return nil
}

// ---------------------------------------------------------------------------
// config init
// ---------------------------------------------------------------------------

func newConfigInit(ctx *shared.Context) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Generate a starter config.yaml",
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, _ := ctx.ResolveHome()
			cfgPath := config.ConfigPath(home)
			out := cmd.OutOrStdout()
			if _, err := os.Stat(cfgPath); err == nil && !force {
				fmt.Fprintf(out, "Config already exists at %s\n", cfgPath)
				fmt.Fprintln(out, "Use --force to overwrite.")
				return nil
			}
			if err := os.MkdirAll(home, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(cfgPath, []byte(configTemplate), 0o600); err != nil {
				return err
			}
			fmt.Fprintf(out, "Created %s\n", cfgPath)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing config")
	return cmd
}

// ---------------------------------------------------------------------------
// config set-home
// ---------------------------------------------------------------------------

func newSetHome() *cobra.Command {
	return &cobra.Command{
		Use:   "set-home <path>",
		Short: "Persist engine home location (used when TK_KRITA_HOME is unset)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolved, err := config.SetPersistedHome(args[0])
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(resolved, "startup"), 0o755); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Persisted engine home: %s\n", resolved)
			fmt.Fprintf(out, "Override anytime with %s.\n", config.HomeEnv)
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// config clear-home
// ---------------------------------------------------------------------------

func newClearHome() *cobra.Command {
	return &cobra.Command{
		Use:   "clear-home",
		Short: "Remove persisted engine home location from global config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			changed, err := config.ClearPersistedHome()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if changed {
				fmt.Fprintln(out, "Cleared persisted engine home setting.")
			} else {
				fmt.Fprintln(out, "No persisted engine home setting was found.")
			}
			return nil
		},
	}
}
