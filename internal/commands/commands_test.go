package commands_test

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/tk-krita/internal/commands"
	"github.com/go-ports/tk-krita/internal/config"
	"github.com/go-ports/tk-krita/internal/logging"
)

// recorder registers commands that append their name to calls when run.
type recorder struct {
	reg   *commands.Registry
	calls []string
}

func newRecorder() *recorder {
	return &recorder{reg: commands.NewRegistry()}
}

func (r *recorder) add(app, name string, err error) {
	r.reg.Register(app, name, func() error {
		r.calls = append(r.calls, app+"/"+name)
		return err
	})
}

func newRunner(reg *commands.Registry) *commands.Runner {
	return commands.NewRunner(reg, logging.Discard())
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

func TestRegistry_OrderAndOverwrite(t *testing.T) {
	c := qt.New(t)
	r := newRecorder()

	r.add("tk-multi-workfiles2", "File Open...", nil)
	r.add("tk-multi-publish2", "Publish...", nil)
	r.add("tk-multi-workfiles2", "File Save...", nil)
	r.reg.Register("tk-multi-workfiles2", "File Open...", func() error { return errors.New("replaced") })

	c.Assert(r.reg.Len(), qt.Equals, 3)
	c.Assert(r.reg.AppInstances(), qt.DeepEquals, []string{"tk-multi-workfiles2", "tk-multi-publish2"})

	var names []string
	for _, cmd := range r.reg.All() {
		names = append(names, cmd.Name)
	}
	c.Assert(names, qt.DeepEquals, []string{"File Open...", "Publish...", "File Save..."})

	cmd, ok := r.reg.Lookup("tk-multi-workfiles2", "File Open...")
	c.Assert(ok, qt.IsTrue)
	c.Assert(cmd.Run(), qt.ErrorMatches, "replaced")

	_, ok = r.reg.Lookup("tk-multi-publish2", "File Open...")
	c.Assert(ok, qt.IsFalse)
}

func TestCommand_RunRecoversPanic(t *testing.T) {
	c := qt.New(t)

	cmd := commands.Command{Name: "boom", Callback: func() error { panic("kaboom") }}
	c.Assert(cmd.Run(), qt.ErrorMatches, `command "boom" panicked: kaboom`)

	c.Assert(commands.Command{Name: "empty"}.Run(), qt.ErrorMatches, `command "empty" has no callback`)
}

// ---------------------------------------------------------------------------
// Runner
// ---------------------------------------------------------------------------

func TestRun_AllCommandsOfAnAppInstance(t *testing.T) {
	c := qt.New(t)
	r := newRecorder()
	r.add("A", "first", errors.New("first failed"))
	r.add("A", "second", nil)
	r.add("B", "other", nil)

	report, ran := newRunner(r.reg).Run([]config.StartupCommand{{AppInstance: "A"}})
	c.Assert(ran, qt.IsTrue)
	c.Assert(r.calls, qt.DeepEquals, []string{"A/first", "A/second"})
	c.Assert(report.Ran, qt.HasLen, 2)
	c.Assert(report.Failed(), qt.HasLen, 1)
	c.Assert(report.Failed()[0].Command, qt.Equals, "first")
	c.Assert(report.Warnings, qt.HasLen, 0)
}

func TestRun_PanickingCommandDoesNotStopTheRest(t *testing.T) {
	c := qt.New(t)
	r := newRecorder()
	r.reg.Register("A", "panics", func() error { panic("bad") })
	r.add("A", "after", nil)

	report, _ := newRunner(r.reg).Run([]config.StartupCommand{{AppInstance: "A"}})
	c.Assert(r.calls, qt.DeepEquals, []string{"A/after"})
	c.Assert(report.Failed(), qt.HasLen, 1)
}

func TestRun_NamedCommand(t *testing.T) {
	c := qt.New(t)
	r := newRecorder()
	r.add("A", "first", nil)
	r.add("A", "second", nil)

	_, _ = newRunner(r.reg).Run([]config.StartupCommand{{AppInstance: "A", Name: "second"}})
	c.Assert(r.calls, qt.DeepEquals, []string{"A/second"})
}

func TestRun_UnknownAppInstance(t *testing.T) {
	c := qt.New(t)
	r := newRecorder()
	r.add("tk-multi-workfiles2", "File Open...", nil)

	report, ran := newRunner(r.reg).Run([]config.StartupCommand{
		{AppInstance: "tk-multi-workfile2"},
		{AppInstance: "tk-multi-workfiles2"},
	})
	c.Assert(ran, qt.IsTrue)
	c.Assert(r.calls, qt.DeepEquals, []string{"tk-multi-workfiles2/File Open..."})
	c.Assert(report.Warnings, qt.HasLen, 1)

	err := report.Warnings[0]
	c.Assert(errors.Is(err, commands.ErrUnknownAppInstance), qt.IsTrue)
	c.Assert(err, qt.ErrorMatches, `startup command app instance "tk-multi-workfile2" is not installed; installed app instances: tk-multi-workfiles2 \(did you mean "tk-multi-workfiles2"\?\)`)

	var lookupErr *commands.LookupError
	c.Assert(errors.As(err, &lookupErr), qt.IsTrue)
	c.Assert(lookupErr.AppInstance, qt.Equals, "tk-multi-workfile2")
}

func TestRun_UnknownAppInstanceWithEmptyRegistry(t *testing.T) {
	c := qt.New(t)

	report, _ := newRunner(commands.NewRegistry()).Run([]config.StartupCommand{{AppInstance: "ghost"}})
	c.Assert(report.Warnings, qt.HasLen, 1)
	c.Assert(report.Warnings[0], qt.ErrorMatches, `startup command app instance "ghost" is not installed`)
}

func TestRun_UnknownCommandListsKnownNames(t *testing.T) {
	c := qt.New(t)
	r := newRecorder()
	r.add("A", "Publish...", nil)
	r.add("A", "Load...", nil)

	report, _ := newRunner(r.reg).Run([]config.StartupCommand{
		{AppInstance: "A", Name: "Shutdown"},
		{AppInstance: "A", Name: "Load..."},
	})
	c.Assert(r.calls, qt.DeepEquals, []string{"A/Load..."})
	c.Assert(report.Warnings, qt.HasLen, 1)
	c.Assert(errors.Is(report.Warnings[0], commands.ErrUnknownCommand), qt.IsTrue)
	c.Assert(report.Warnings[0], qt.ErrorMatches, `startup command "Shutdown" not found for app instance "A"; known commands: Publish\.\.\., Load\.\.\.`)
}

func TestRun_OnlyOnce(t *testing.T) {
	c := qt.New(t)
	r := newRecorder()
	r.add("A", "first", nil)
	runner := newRunner(r.reg)
	spec := []config.StartupCommand{{AppInstance: "A"}}

	_, ran := runner.Run(spec)
	c.Assert(ran, qt.IsTrue)
	report, ran := runner.Run(spec)
	c.Assert(ran, qt.IsFalse)
	c.Assert(report.Ran, qt.HasLen, 0)
	c.Assert(runner.Done(), qt.IsTrue)
	c.Assert(r.calls, qt.DeepEquals, []string{"A/first"})
}
