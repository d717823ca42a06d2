package service

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/viper"

	"github.com/go-ports/tk-krita/internal/bootstrap"
	"github.com/go-ports/tk-krita/internal/commands"
	"github.com/go-ports/tk-krita/internal/engine"
	"github.com/go-ports/tk-krita/internal/menu"
	"github.com/go-ports/tk-krita/internal/models"
)

// SessionOptions drives a headless engine session.
type SessionOptions struct {
	// Documents are opened one after the other.
	Documents []string
	// Commands are registered as "app_instance/name" before startup; each
	// prints a line to Out when run.
	Commands []string
	// Context is the initial context, as handed over by a launcher.
	Context     models.Context
	HostVersion string
	// FromEnv reads the engine name and initial context from SGTK_ENGINE and
	// SGTK_CONTEXT instead of Context.
	FromEnv bool
	Out     io.Writer
}

// SessionStep is the outcome of one document event.
type SessionStep struct {
	Document string         `json:"document"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Changed  bool           `json:"changed"`
	Context  models.Context `json:"context"`
	Error    string         `json:"error,omitempty"`
	Menu     []menu.Item    `json:"menu"`
}

// StartupResult summarises the startup command run.
type StartupResult struct {
	Ran      []string `json:"ran"`
	Failed   []string `json:"failed"`
	Warnings []string `json:"warnings"`
}

// SessionResult is the record of a headless session.
type SessionResult struct {
	SessionID string           `json:"session_id"`
	Engine    string           `json:"engine"`
	Host      engine.HostInfo  `json:"host"`
	Startup   StartupResult    `json:"startup"`
	Steps     []SessionStep    `json:"steps"`
	Messages  []engine.Message `json:"messages"`
}

// Session runs the engine against a windowless host: it starts it the way
// the in-host bootstrap does, replays the documents and tears it down.
func (s *Service) Session(opts SessionOptions) (*SessionResult, error) {
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	registry := commands.NewRegistry()
	for _, spec := range opts.Commands {
		app, name, ok := strings.Cut(spec, "/")
		if !ok || app == "" || name == "" {
			return nil, fmt.Errorf("session: command %q must be app_instance/name", spec)
		}
		registry.Register(app, name, func() error {
			_, err := fmt.Fprintf(out, "ran %s/%s\n", app, name)
			return err
		})
	}

	app := &engine.HeadlessApp{HostVersion: opts.HostVersion}
	host := menu.NewMemoryHost()
	deps := bootstrap.Deps{
		App:      app,
		MenuHost: host,
		Resolver: s.resolver,
		Commands: registry,
		Home:     s.Home,
		Logger:   s.log,
	}

	var (
		eng     *engine.Engine
		startup commands.Report
		err     error
	)
	if opts.FromEnv {
		eng, startup, err = bootstrap.Main(viper.New(), deps)
	} else {
		eng, startup, err = bootstrap.Start(bootstrap.Environment{
			SearchPaths: []string{s.Config.StartupDir(s.Home)},
			EngineName:  s.Config.Engine.Name,
			Context:     opts.Context,
		}, deps)
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := eng.Teardown(); err != nil {
			s.log.Warn("session teardown", "err", err)
		}
	}()

	res := &SessionResult{
		SessionID: eng.SessionID(),
		Engine:    eng.Name(),
		Host:      eng.HostInfo(),
		Startup:   summarise(startup),
		Steps:     make([]SessionStep, 0, len(opts.Documents)),
	}

	for _, doc := range opts.Documents {
		app.Document = doc
		tr := eng.Refresh()
		step := SessionStep{
			Document: doc,
			From:     tr.From.String(),
			To:       tr.To.String(),
			Changed:  tr.Changed,
			Context:  eng.Context(),
			Menu:     eng.Menu().Items(),
		}
		if tr.Err != nil {
			step.Error = tr.Err.Error()
		}
		res.Steps = append(res.Steps, step)
	}

	res.Messages = app.Messages
	if res.Messages == nil {
		res.Messages = make([]engine.Message, 0)
	}
	return res, nil
}

func summarise(r commands.Report) StartupResult {
	out := StartupResult{
		Ran:      make([]string, 0, len(r.Ran)),
		Failed:   make([]string, 0),
		Warnings: make([]string, 0, len(r.Warnings)),
	}
	for _, o := range r.Ran {
		name := o.AppInstance + "/" + o.Command
		out.Ran = append(out.Ran, name)
		if o.Err != nil {
			out.Failed = append(out.Failed, name+": "+o.Err.Error())
		}
	}
	for _, w := range r.Warnings {
		out.Warnings = append(out.Warnings, w.Error())
	}
	return out
}
