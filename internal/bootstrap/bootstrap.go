// Package bootstrap starts the engine inside a freshly launched host process
// from the variables prepared by the launcher.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/go-ports/tk-krita/internal/commands"
	"github.com/go-ports/tk-krita/internal/config"
	"github.com/go-ports/tk-krita/internal/engine"
	"github.com/go-ports/tk-krita/internal/launch"
	"github.com/go-ports/tk-krita/internal/menu"
	"github.com/go-ports/tk-krita/internal/models"
	"github.com/go-ports/tk-krita/internal/toolkit"
)

// ErrMissingConfiguration is matched by every MissingConfigurationError.
var ErrMissingConfiguration = errors.New("missing configuration")

// MissingConfigurationError reports a required startup variable that is
// absent or unusable.
type MissingConfigurationError struct {
	Var string
	Err error // decode failure, nil when the variable is unset
}

func (e *MissingConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not create context from %s; the integration will be disabled: %v", e.Var, e.Err)
	}
	return fmt.Sprintf("missing required environment variable %s", e.Var)
}

func (e *MissingConfigurationError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMissingConfiguration) true.
func (e *MissingConfigurationError) Is(target error) bool { return target == ErrMissingConfiguration }

// Environment is what the launcher handed over.
type Environment struct {
	SearchPaths []string
	EngineName  string
	Context     models.Context
}

// ReadEnvironment reads the startup variables through v, which defaults to a
// fresh viper bound to the process environment.
func ReadEnvironment(v *viper.Viper) (Environment, error) {
	if v == nil {
		v = viper.New()
	}
	for key, name := range map[string]string{
		"search_path": launch.EnvSearchPath,
		"engine":      launch.EnvEngine,
		"context":     launch.EnvContext,
	} {
		if err := v.BindEnv(key, name); err != nil {
			return Environment{}, fmt.Errorf("bind %s: %w", name, err)
		}
	}

	env := Environment{
		SearchPaths: launch.SplitPathList(v.GetString("search_path")),
		EngineName:  v.GetString("engine"),
	}
	if env.EngineName == "" {
		return Environment{}, &MissingConfigurationError{Var: launch.EnvEngine}
	}
	blob := v.GetString("context")
	if blob == "" {
		return Environment{}, &MissingConfigurationError{Var: launch.EnvContext}
	}
	ctx, err := toolkit.Deserialize(blob)
	if err != nil {
		return Environment{}, &MissingConfigurationError{Var: launch.EnvContext, Err: err}
	}
	env.Context = ctx
	return env, nil
}

// Deps are the host-side collaborators of a session.
type Deps struct {
	App      engine.Application
	MenuHost menu.Host
	Resolver engine.Resolver
	Commands *commands.Registry
	Home     string // fallback location of config.yaml
	Logger   *slog.Logger
}

// ConfigPath returns the first search path holding a config.yaml, or the
// home config when none does.
func ConfigPath(searchPaths []string, home string) string {
	for _, dir := range searchPaths {
		p := filepath.Join(dir, "config.yaml")
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return config.ConfigPath(home)
}

// Main reads the environment and starts the engine. Failures are shown to the
// user and returned; the host keeps running without the integration.
func Main(v *viper.Viper, deps Deps) (*engine.Engine, commands.Report, error) {
	env, err := ReadEnvironment(v)
	if err != nil {
		report(deps, err)
		return nil, commands.Report{}, err
	}
	return Start(env, deps)
}

// Start builds the engine for env, runs its post-init step and syncs it with
// the active document. The report lists the startup commands that ran.
func Start(env Environment, deps Deps) (*engine.Engine, commands.Report, error) {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	cfgPath := ConfigPath(env.SearchPaths, deps.Home)
	cfg, err := config.Load(cfgPath)
	if err != nil {
		err = fmt.Errorf("could not start engine: %w", err)
		report(deps, err)
		return nil, commands.Report{}, err
	}
	cfg.Engine.Name = env.EngineName

	log.Debug("Launching engine instance", "engine", env.EngineName, "context", env.Context.String(), "config", cfgPath)
	eng, err := engine.New(engine.Options{
		Config:   cfg.Engine,
		App:      deps.App,
		Resolver: deps.Resolver,
		MenuHost: deps.MenuHost,
		Commands: deps.Commands,
		Logger:   log,
		Context:  env.Context,
	})
	if err != nil {
		err = fmt.Errorf("could not start engine: %w", err)
		report(deps, err)
		return nil, commands.Report{}, err
	}

	startup, err := eng.PostAppInit()
	if err != nil {
		_ = eng.Teardown()
		err = fmt.Errorf("could not start engine: %w", err)
		report(deps, err)
		return nil, commands.Report{}, err
	}
	eng.Refresh()
	return eng, startup, nil
}

func report(deps Deps, err error) {
	if deps.App != nil {
		deps.App.ShowError("Shotgun", err.Error())
	}
}
