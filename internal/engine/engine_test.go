package engine_test

import (
	"errors"
	"fmt"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/tk-krita/internal/commands"
	"github.com/go-ports/tk-krita/internal/config"
	"github.com/go-ports/tk-krita/internal/engine"
	"github.com/go-ports/tk-krita/internal/logging"
	"github.com/go-ports/tk-krita/internal/menu"
	"github.com/go-ports/tk-krita/internal/models"
	"github.com/go-ports/tk-krita/internal/toolkit"
)

var (
	demo   = models.Entity{Type: models.EntityProject, ID: 1, Name: "demo"}
	sh010  = models.Context{Project: demo, Entity: models.Entity{Type: models.EntityShot, ID: 2, Name: "sh010"}}
	sh020  = models.Context{Project: demo, Entity: models.Entity{Type: models.EntityShot, ID: 3, Name: "sh020"}}
	sh010P = "/projects/demo/sh010/paint.kra"
	sh020P = "/projects/demo/sh020/paint.kra"
	otherP = "/tmp/scratch.kra"
)

// fakeResolver resolves a fixed set of paths and counts calls.
type fakeResolver struct {
	contexts map[string]models.Context
	calls    int
	prevs    []models.Context
}

func (r *fakeResolver) Resolve(path string, prev models.Context) (*toolkit.Instance, models.Context, error) {
	r.calls++
	r.prevs = append(r.prevs, prev)
	ctx, ok := r.contexts[path]
	if !ok {
		return nil, models.Context{}, fmt.Errorf("%w: %q", toolkit.ErrUnresolvableProject, path)
	}
	return &toolkit.Instance{Project: models.Project{ID: ctx.Project.ID, Name: ctx.Project.Name}}, ctx, nil
}

type harness struct {
	eng      *engine.Engine
	app      *engine.HeadlessApp
	host     *menu.MemoryHost
	resolver *fakeResolver
}

func newHarness(c *qt.C, cfg config.EngineConfig) *harness {
	h := &harness{
		app:  &engine.HeadlessApp{HostVersion: "5.2.2"},
		host: menu.NewMemoryHost(),
		resolver: &fakeResolver{contexts: map[string]models.Context{
			sh010P: sh010,
			sh020P: sh020,
		}},
	}
	eng, err := engine.New(engine.Options{
		Config:   cfg,
		App:      h.app,
		Resolver: h.resolver,
		MenuHost: h.host,
		Logger:   logging.Discard(),
	})
	c.Assert(err, qt.IsNil)
	h.eng = eng
	return h
}

func (h *harness) labels(c *qt.C) []string {
	m, ok := h.host.Menu(menu.Marker)
	c.Assert(ok, qt.IsTrue)
	out := make([]string, len(m.Items))
	for i, it := range m.Items {
		if it.Separator {
			out[i] = "---"
			continue
		}
		out[i] = it.Label
	}
	return out
}

// ---------------------------------------------------------------------------
// Construction
// ---------------------------------------------------------------------------

func TestNew_RequiresCollaborators(t *testing.T) {
	c := qt.New(t)

	_, err := engine.New(engine.Options{})
	c.Assert(err, qt.ErrorMatches, `engine.New: application is required`)

	_, err = engine.New(engine.Options{App: &engine.HeadlessApp{}})
	c.Assert(err, qt.ErrorMatches, `engine.New: resolver is required`)

	_, err = engine.New(engine.Options{App: &engine.HeadlessApp{}, Resolver: &fakeResolver{}})
	c.Assert(err, qt.ErrorMatches, `engine.New: menu host is required`)
}

func TestNew_Defaults(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, config.EngineConfig{})

	c.Assert(h.eng.Name(), qt.Equals, "tk-krita")
	c.Assert(h.eng.State(), qt.Equals, engine.StateUninitialized)
	c.Assert(h.eng.SessionID(), qt.HasLen, 36)
	c.Assert(h.eng.Context().IsZero(), qt.IsTrue)
	c.Assert(h.eng.MenuEnabled(), qt.IsFalse)
}

func TestHostInfo(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, config.EngineConfig{})

	c.Assert(h.eng.HostInfo(), qt.Equals, engine.HostInfo{Name: "Krita", Version: "5.2.2"})
	h.app.HostVersion = ""
	c.Assert(h.eng.HostInfo().Version, qt.Equals, "unknown")
}

// ---------------------------------------------------------------------------
// Document events
// ---------------------------------------------------------------------------

func TestOnDocumentChanged_UnresolvableDisablesFromAnyState(t *testing.T) {
	c := qt.New(t)

	setups := map[string][]string{
		"from uninitialized": nil,
		"from enabled":       {sh010P},
		"from disabled":      {otherP},
	}
	for name, before := range setups {
		c.Run(name, func(c *qt.C) {
			h := newHarness(c, config.EngineConfig{})
			for _, p := range before {
				h.eng.OnDocumentChanged(p)
			}

			tr := h.eng.OnDocumentChanged(otherP)
			c.Assert(tr.To, qt.Equals, engine.StateDisabled)
			c.Assert(errors.Is(tr.Err, toolkit.ErrUnresolvableProject), qt.IsTrue)
			c.Assert(h.eng.State(), qt.Equals, engine.StateDisabled)
			c.Assert(h.eng.Context().IsZero(), qt.IsTrue)
			c.Assert(h.eng.Instance(), qt.IsNil)
			c.Assert(h.labels(c), qt.DeepEquals, []string{menu.DisabledLabel})
		})
	}
}

func TestOnDocumentChanged_EnableAndIdempotence(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, config.EngineConfig{})
	h.eng.RegisterCommand("tk-multi-workfiles2", "File Open...", func() error { return nil })

	first := h.eng.OnDocumentChanged(sh010P)
	c.Assert(first, qt.DeepEquals, engine.Transition{
		From: engine.StateUninitialized, To: engine.StateEnabled, Context: sh010, Changed: true,
	})
	c.Assert(h.eng.MenuEnabled(), qt.IsTrue)
	c.Assert(h.labels(c), qt.DeepEquals, []string{"demo, Shot sh010", "---", "File Open..."})

	synced, attached := h.host.Synced, h.host.Attached
	second := h.eng.OnDocumentChanged(sh010P)
	c.Assert(second.Changed, qt.IsFalse)
	c.Assert(second.Context.Equal(first.Context), qt.IsTrue)
	c.Assert(h.host.Synced, qt.Equals, synced)
	c.Assert(h.host.Attached, qt.Equals, attached)

	// The previous context is the disambiguation hint.
	c.Assert(h.resolver.prevs[1], qt.DeepEquals, sh010)
}

func TestOnDocumentChanged_ContextSwitch(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, config.EngineConfig{})

	h.eng.OnDocumentChanged(sh010P)
	tr := h.eng.OnDocumentChanged(sh020P)
	c.Assert(tr.Changed, qt.IsTrue)
	c.Assert(tr.From, qt.Equals, engine.StateEnabled)
	c.Assert(h.eng.Context(), qt.DeepEquals, sh020)
	c.Assert(h.labels(c)[0], qt.Equals, "demo, Shot sh020")
	c.Assert(h.host.Menus(), qt.HasLen, 1)
}

func TestOnDocumentChanged_DisabledThenEnabled(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, config.EngineConfig{})
	h.eng.RegisterCommand("A", "Publish...", func() error { return nil })

	h.eng.OnDocumentChanged(otherP)
	c.Assert(h.eng.Menu().ShowingPlaceholder(), qt.IsTrue)

	tr := h.eng.OnDocumentChanged(sh010P)
	c.Assert(tr.From, qt.Equals, engine.StateDisabled)
	c.Assert(tr.To, qt.Equals, engine.StateEnabled)
	c.Assert(h.eng.Menu().ShowingPlaceholder(), qt.IsFalse)
	c.Assert(h.labels(c), qt.DeepEquals, []string{"demo, Shot sh010", "---", "Publish..."})
}

func TestOnDocumentChanged_NoActiveDocument(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, config.EngineConfig{})

	h.eng.OnDocumentChanged(sh010P)
	calls := h.resolver.calls

	tr := h.eng.OnDocumentChanged("")
	c.Assert(tr.Changed, qt.IsFalse)
	c.Assert(tr.To, qt.Equals, engine.StateEnabled)
	c.Assert(h.eng.Context(), qt.DeepEquals, sh010)
	c.Assert(h.resolver.calls, qt.Equals, calls)

	h.app.Document = ""
	c.Assert(h.eng.Refresh().Changed, qt.IsFalse)
	h.app.Document = sh020P
	c.Assert(h.eng.Refresh().Context, qt.DeepEquals, sh020)
}

func TestDisabledPrompt(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, config.EngineConfig{})

	h.eng.OnDocumentChanged(otherP)
	h.eng.OnDocumentChanged(sh010P)
	h.eng.OnDocumentChanged(otherP)
	c.Assert(h.app.Messages, qt.DeepEquals, []engine.Message{{Title: engine.DisabledTitle, Text: engine.DisabledMessage}})

	c.Assert(h.eng.Menu().Activate(menu.DisabledLabel), qt.IsNil)
	c.Assert(h.app.Messages, qt.HasLen, 2)
}

// ---------------------------------------------------------------------------
// Startup
// ---------------------------------------------------------------------------

func TestPostAppInit_RunsStartupCommandsOnce(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, config.EngineConfig{RunAtStartup: []config.StartupCommand{
		{AppInstance: "A"},
		{AppInstance: "missing"},
	}})

	var calls []string
	h.eng.RegisterCommand("A", "first", func() error {
		calls = append(calls, "first")
		return errors.New("broken")
	})
	h.eng.RegisterCommand("A", "second", func() error {
		calls = append(calls, "second")
		return nil
	})

	report, err := h.eng.PostAppInit()
	c.Assert(err, qt.IsNil)
	c.Assert(calls, qt.DeepEquals, []string{"first", "second"})
	c.Assert(report.Failed(), qt.HasLen, 1)
	c.Assert(report.Warnings, qt.HasLen, 1)
	c.Assert(errors.Is(report.Warnings[0], commands.ErrUnknownAppInstance), qt.IsTrue)
	c.Assert(report.Warnings[0], qt.ErrorMatches, `.*"missing".*`)
	c.Assert(h.labels(c), qt.DeepEquals, []string{"No context", "---", "first", "second"})

	report, err = h.eng.PostAppInit()
	c.Assert(err, qt.IsNil)
	c.Assert(report.Ran, qt.HasLen, 0)
	c.Assert(calls, qt.HasLen, 2)
	c.Assert(h.host.Menus(), qt.HasLen, 1)

	h.eng.OnDocumentChanged(sh010P)
	c.Assert(calls, qt.HasLen, 2)
}

func TestPostAppInit_InitialContext(t *testing.T) {
	c := qt.New(t)

	app := &engine.HeadlessApp{}
	host := menu.NewMemoryHost()
	eng, err := engine.New(engine.Options{
		Config:   config.EngineConfig{MenuName: "Pipeline"},
		App:      app,
		Resolver: &fakeResolver{},
		MenuHost: host,
		Logger:   logging.Discard(),
		Context:  sh010,
	})
	c.Assert(err, qt.IsNil)

	c.Assert(eng.State(), qt.Equals, engine.StateUninitialized)
	_, err = eng.PostAppInit()
	c.Assert(err, qt.IsNil)
	m, ok := host.Menu(menu.Marker)
	c.Assert(ok, qt.IsTrue)
	c.Assert(m.Title, qt.Equals, "Pipeline")
	c.Assert(m.Items[0].Label, qt.Equals, "demo, Shot sh010")

	// The full menu is showing, so the state says so too.
	c.Assert(eng.State(), qt.Equals, engine.StateEnabled)
	c.Assert(eng.MenuEnabled(), qt.IsTrue)

	// No active document leaves it that way.
	tr := eng.Refresh()
	c.Assert(tr.From, qt.Equals, engine.StateEnabled)
	c.Assert(tr.To, qt.Equals, engine.StateEnabled)
	c.Assert(tr.Changed, qt.IsFalse)
}

func TestPostAppInit_WithoutContextStaysUninitialized(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, config.EngineConfig{})

	_, err := h.eng.PostAppInit()
	c.Assert(err, qt.IsNil)
	c.Assert(h.eng.State(), qt.Equals, engine.StateUninitialized)
	c.Assert(h.eng.MenuEnabled(), qt.IsFalse)
	c.Assert(h.labels(c), qt.DeepEquals, []string{"No context", "---"})
}

// ---------------------------------------------------------------------------
// Menu activation / teardown
// ---------------------------------------------------------------------------

func TestMenuActivationRunsCommand(t *testing.T) {
	c := qt.New(t)
	h := newHarness(c, config.EngineConfig{})

	ran := 0
	h.eng.RegisterCommand("A", "Publish...", func() error { ran++; return nil })
	h.eng.RegisterCommand("A", "Crash", func() error { panic("boom") })
	h.eng.OnDocumentChanged(sh010P)

	c.Assert(h.eng.Menu().Activate("Publish..."), qt.IsNil)
	c.Assert(h.eng.Menu().Activate("Crash"), qt.IsNil)
	c.Assert(h.eng.Menu().Activate("demo, Shot sh010"), qt.IsNil)
	c.Assert(ran, qt.Equals, 1)
}

func TestTeardown(t *testing.T) {
	c := qt.New(t)

	c.Run("removes the menu", func(c *qt.C) {
		h := newHarness(c, config.EngineConfig{})
		h.eng.OnDocumentChanged(sh010P)

		c.Assert(h.eng.Teardown(), qt.IsNil)
		c.Assert(h.host.Menus(), qt.HasLen, 0)
		c.Assert(h.eng.State(), qt.Equals, engine.StateUninitialized)
		c.Assert(h.eng.Context().IsZero(), qt.IsTrue)
	})

	c.Run("safe before setup and twice", func(c *qt.C) {
		h := newHarness(c, config.EngineConfig{})
		c.Assert(h.eng.Teardown(), qt.IsNil)
		c.Assert(h.eng.Teardown(), qt.IsNil)
	})
}

func TestState_String(t *testing.T) {
	c := qt.New(t)

	c.Assert(engine.StateUninitialized.String(), qt.Equals, "uninitialized")
	c.Assert(engine.StateDisabled.String(), qt.Equals, "disabled")
	c.Assert(engine.StateEnabled.String(), qt.Equals, "enabled")
	c.Assert(engine.State(7).String(), qt.Equals, "State(7)")
}
