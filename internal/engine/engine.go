// Package engine coordinates the in-host session: it follows the active
// document, switches the integration between enabled and disabled, keeps the
// pipeline menu in step and replays the startup commands once.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/go-ports/tk-krita/internal/commands"
	"github.com/go-ports/tk-krita/internal/config"
	"github.com/go-ports/tk-krita/internal/logging"
	"github.com/go-ports/tk-krita/internal/menu"
	"github.com/go-ports/tk-krita/internal/models"
	"github.com/go-ports/tk-krita/internal/toolkit"
)

// HostName is the name reported by HostInfo.
const HostName = "Krita"

// Text of the prompt explaining the disabled state.
const (
	DisabledTitle   = menu.DisabledLabel
	DisabledMessage = "Shotgun integration is disabled because it cannot recognize " +
		"the currently opened file. Try opening another file or restarting Krita."
)

// State is the integration state of a session.
type State int

// Session states. There is no terminal state; Teardown returns to
// StateUninitialized.
const (
	StateUninitialized State = iota
	StateDisabled
	StateEnabled
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateDisabled:
		return "disabled"
	case StateEnabled:
		return "enabled"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Application is the running host application.
type Application interface {
	// ActiveDocumentPath returns the absolute path of the active document, or
	// "" when no document is open.
	ActiveDocumentPath() string
	Version() string
	ShowMessage(title, text string)
	ShowError(title, text string)
}

// Resolver maps a document path to a toolkit instance and context.
type Resolver interface {
	Resolve(path string, prev models.Context) (*toolkit.Instance, models.Context, error)
}

// HostInfo describes the application hosting the engine.
type HostInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Options configures an Engine.
type Options struct {
	Config   config.EngineConfig
	App      Application
	Resolver Resolver
	MenuHost menu.Host
	Commands *commands.Registry // optional, a new registry is created when nil
	Logger   *slog.Logger

	// Initial instance and context handed over by the launcher.
	Instance *toolkit.Instance
	Context  models.Context
}

// Engine is the session state of one running host process. It is driven by
// host events on a single goroutine and is not safe for concurrent use.
type Engine struct {
	name      string
	sessionID string
	cfg       config.EngineConfig
	app       Application
	resolver  Resolver
	registry  *commands.Registry
	runner    *commands.Runner
	menu      *menu.Manager
	log       *slog.Logger

	state       State
	instance    *toolkit.Instance
	ctx         models.Context
	initialized bool
	promptShown bool
	dialogs     []Dialog
}

// New returns an engine in StateUninitialized.
func New(opts Options) (*Engine, error) {
	if opts.App == nil {
		return nil, errors.New("engine.New: application is required")
	}
	if opts.Resolver == nil {
		return nil, errors.New("engine.New: resolver is required")
	}
	if opts.MenuHost == nil {
		return nil, errors.New("engine.New: menu host is required")
	}
	name := opts.Config.Name
	if name == "" {
		name = config.Default().Engine.Name
	}
	base := opts.Logger
	if base == nil {
		base = slog.Default()
	}
	registry := opts.Commands
	if registry == nil {
		registry = commands.NewRegistry()
	}

	e := &Engine{
		name:      name,
		sessionID: uuid.NewString(),
		cfg:       opts.Config,
		app:       opts.App,
		resolver:  opts.Resolver,
		registry:  registry,
		instance:  opts.Instance,
		ctx:       opts.Context,
		log:       logging.Component(base, name),
	}
	e.log = e.log.With("session", e.sessionID)
	e.runner = commands.NewRunner(registry, e.log)
	e.menu = menu.NewManager(opts.MenuHost, opts.Config.MenuName,
		menu.WithLogger(e.log),
		menu.WithHandler(e.activate),
	)
	return e, nil
}

// Name returns the engine name.
func (e *Engine) Name() string { return e.name }

// SessionID identifies this engine session in logs.
func (e *Engine) SessionID() string { return e.sessionID }

// State returns the current integration state.
func (e *Engine) State() State { return e.state }

// Context returns the current context; the zero value when there is none.
func (e *Engine) Context() models.Context { return e.ctx }

// Instance returns the current toolkit instance, or nil.
func (e *Engine) Instance() *toolkit.Instance { return e.instance }

// MenuEnabled reports whether the full command menu is available.
func (e *Engine) MenuEnabled() bool { return e.state == StateEnabled }

// Menu returns the pipeline menu manager.
func (e *Engine) Menu() *menu.Manager { return e.menu }

// Commands returns the command registry app instances register into.
func (e *Engine) Commands() *commands.Registry { return e.registry }

// HostInfo reports the host name and version, "unknown" when the host does
// not report one.
func (e *Engine) HostInfo() HostInfo {
	v := e.app.Version()
	if v == "" {
		v = "unknown"
	}
	return HostInfo{Name: HostName, Version: v}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

// PostAppInit runs once the apps have registered their commands: it creates
// the pipeline menu and replays the startup commands. Further calls only make
// sure the menu exists. An engine started with a context is enabled from here
// on, before any document event.
func (e *Engine) PostAppInit() (commands.Report, error) {
	if _, err := e.menu.EnsurePresent(); err != nil {
		return commands.Report{}, fmt.Errorf("post app init: %w", err)
	}
	if !e.initialized {
		e.initialized = true
		if !e.ctx.IsZero() && e.state == StateUninitialized {
			e.state = StateEnabled
		}
		if err := e.menu.Rebuild(e.menuItems()); err != nil {
			return commands.Report{}, fmt.Errorf("post app init: %w", err)
		}
	}
	report, _ := e.runner.Run(e.cfg.RunAtStartup)
	return report, nil
}

// Transition describes the effect of a document event.
type Transition struct {
	From    State
	To      State
	Context models.Context
	// Changed is true when the context was replaced and the menu rebuilt, or
	// when the integration switched to disabled.
	Changed bool
	// Err is the resolution failure that disabled the integration.
	Err error
}

// Refresh re-evaluates the active document of the host.
func (e *Engine) Refresh() Transition {
	return e.OnDocumentChanged(e.app.ActiveDocumentPath())
}

// OnDocumentChanged updates the session for the document at path. An empty
// path means no document is active and leaves the session untouched.
func (e *Engine) OnDocumentChanged(path string) Transition {
	from := e.state
	if path == "" {
		return Transition{From: from, To: from, Context: e.ctx}
	}

	inst, ctx, err := e.resolver.Resolve(path, e.ctx)
	if err != nil {
		return e.disable(from, err)
	}
	return e.enable(from, inst, ctx)
}

func (e *Engine) disable(from State, cause error) Transition {
	if errors.Is(cause, toolkit.ErrUnresolvableProject) {
		e.log.Warn("Engine cannot be started", "err", cause)
	} else {
		e.log.Error("context resolution failed", "err", cause)
	}

	changed := from != StateDisabled
	e.state = StateDisabled
	e.instance = nil
	e.ctx = models.Context{}

	if err := e.menu.ShowDisabledPlaceholder(); err != nil {
		e.log.Error("cannot show disabled menu", "err", err)
	}
	if !e.promptShown {
		e.promptShown = true
		e.app.ShowMessage(DisabledTitle, DisabledMessage)
	}
	return Transition{From: from, To: StateDisabled, Changed: changed, Err: cause}
}

func (e *Engine) enable(from State, inst *toolkit.Instance, ctx models.Context) Transition {
	created, err := e.menu.EnsurePresent()
	if err != nil {
		e.log.Error("cannot create pipeline menu", "err", err)
	}
	removed, err := e.menu.RemoveDisabledPlaceholder()
	if err != nil {
		e.log.Error("cannot remove disabled menu", "err", err)
	}

	if from == StateEnabled && !created && !removed && ctx.Equal(e.ctx) && inst.Same(e.instance) {
		return Transition{From: from, To: from, Context: e.ctx}
	}

	old := e.ctx
	e.state = StateEnabled
	e.instance = inst
	e.ctx = ctx
	if err := e.menu.Rebuild(e.menuItems()); err != nil {
		e.log.Error("cannot rebuild pipeline menu", "err", err)
	}
	e.log.Debug("context changed", "from", old.String(), "to", ctx.String())
	return Transition{From: from, To: StateEnabled, Context: ctx, Changed: true}
}

// Teardown removes the pipeline menu and forgets the current context. It is
// safe to call after a partial setup.
func (e *Engine) Teardown() error {
	e.log.Debug("Destroying...", "engine", e.name)
	err := e.menu.Teardown()
	e.state = StateUninitialized
	e.instance = nil
	e.ctx = models.Context{}
	return err
}

// RegisterCommand adds a command and refreshes the menu when it is showing
// commands.
func (e *Engine) RegisterCommand(appInstance, name string, callback func() error) {
	e.registry.Register(appInstance, name, callback)
	if e.menu.Present() && !e.menu.ShowingPlaceholder() {
		if err := e.menu.Rebuild(e.menuItems()); err != nil {
			e.log.Error("cannot rebuild pipeline menu", "err", err)
		}
	}
}

// ---------------------------------------------------------------------------
// Menu contents
// ---------------------------------------------------------------------------

// menuItems lists the context label, a separator and every registered command.
func (e *Engine) menuItems() []menu.Item {
	cmds := e.registry.All()
	items := make([]menu.Item, 0, len(cmds)+2)
	items = append(items,
		menu.Item{Label: e.ctx.String(), Disabled: true},
		menu.Item{Separator: true},
	)
	for _, cmd := range cmds {
		items = append(items, menu.Item{Label: cmd.Name, AppInstance: cmd.AppInstance, Command: cmd.Name})
	}
	return items
}

func (e *Engine) activate(it menu.Item) {
	if it.Marker == menu.DisabledMarker {
		e.app.ShowMessage(DisabledTitle, DisabledMessage)
		return
	}
	if it.Command == "" {
		return
	}
	cmd, ok := e.registry.Lookup(it.AppInstance, it.Command)
	if !ok {
		e.log.Warn("menu command is no longer registered", "app_instance", it.AppInstance, "command", it.Command)
		return
	}
	if err := cmd.Run(); err != nil {
		e.log.Error("command failed", "app_instance", it.AppInstance, "command", it.Command, "err", err)
	}
}
