// Package commands holds the commands registered by app instances and replays
// the configured startup commands once per session.
package commands

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/go-ports/tk-krita/internal/config"
)

var (
	// ErrUnknownAppInstance is wrapped by warnings for startup entries naming
	// an app instance that registered no commands.
	ErrUnknownAppInstance = errors.New("unknown app instance")
	// ErrUnknownCommand is wrapped by warnings for startup entries naming a
	// command the app instance did not register.
	ErrUnknownCommand = errors.New("unknown command")
)

// Command is a named action registered by an app instance.
type Command struct {
	AppInstance string
	Name        string
	Callback    func() error
}

// Run invokes the callback. A panic is recovered and returned as an error.
func (c Command) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command %q panicked: %v", c.Name, r)
		}
	}()
	if c.Callback == nil {
		return fmt.Errorf("command %q has no callback", c.Name)
	}
	return c.Callback()
}

// ---------------------------------------------------------------------------
// Registry
// ---------------------------------------------------------------------------

type key struct{ app, name string }

// Registry maps (app instance, command name) to commands and remembers the
// order of first registration.
type Registry struct {
	order    []key
	commands map[key]Command
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[key]Command)}
}

// Register adds a command. Registering an existing name again replaces its
// callback and keeps its original position.
func (r *Registry) Register(appInstance, name string, callback func() error) {
	k := key{appInstance, name}
	if _, ok := r.commands[k]; !ok {
		r.order = append(r.order, k)
	}
	r.commands[k] = Command{AppInstance: appInstance, Name: name, Callback: callback}
}

// Len returns the number of registered commands.
func (r *Registry) Len() int { return len(r.order) }

// All returns every command in registration order.
func (r *Registry) All() []Command {
	out := make([]Command, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.commands[k])
	}
	return out
}

// AppInstances returns the app instances with registered commands, in order
// of their first registration.
func (r *Registry) AppInstances() []string {
	var out []string
	seen := make(map[string]bool)
	for _, k := range r.order {
		if !seen[k.app] {
			seen[k.app] = true
			out = append(out, k.app)
		}
	}
	return out
}

// ForApp returns the commands of one app instance in registration order.
func (r *Registry) ForApp(appInstance string) []Command {
	var out []Command
	for _, k := range r.order {
		if k.app == appInstance {
			out = append(out, r.commands[k])
		}
	}
	return out
}

// Lookup returns the command registered under (appInstance, name).
func (r *Registry) Lookup(appInstance, name string) (Command, bool) {
	cmd, ok := r.commands[key{appInstance, name}]
	return cmd, ok
}

// ---------------------------------------------------------------------------
// Startup runner
// ---------------------------------------------------------------------------

// LookupError is a non-fatal warning about a startup entry that matched
// nothing. It wraps ErrUnknownAppInstance or ErrUnknownCommand.
type LookupError struct {
	AppInstance string
	Command     string   // empty for ErrUnknownAppInstance
	Known       []string // known app instances or command names
	Suggestion  string
	Err         error
}

func (e *LookupError) Error() string {
	var b strings.Builder
	if errors.Is(e.Err, ErrUnknownAppInstance) {
		fmt.Fprintf(&b, "startup command app instance %q is not installed", e.AppInstance)
		if len(e.Known) > 0 {
			fmt.Fprintf(&b, "; installed app instances: %s", strings.Join(e.Known, ", "))
		}
	} else {
		fmt.Fprintf(&b, "startup command %q not found for app instance %q", e.Command, e.AppInstance)
		fmt.Fprintf(&b, "; known commands: %s", strings.Join(e.Known, ", "))
	}
	if e.Suggestion != "" {
		fmt.Fprintf(&b, " (did you mean %q?)", e.Suggestion)
	}
	return b.String()
}

func (e *LookupError) Unwrap() error { return e.Err }

// Outcome records one executed command.
type Outcome struct {
	AppInstance string
	Command     string
	Err         error
}

// Report accumulates the result of a startup run.
type Report struct {
	Ran      []Outcome
	Warnings []error
}

// Failed returns the outcomes whose command returned an error.
func (r Report) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Ran {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Runner replays startup commands at most once.
type Runner struct {
	reg  *Registry
	log  *slog.Logger
	done bool
}

// NewRunner returns a Runner executing commands from reg.
func NewRunner(reg *Registry, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{reg: reg, log: log}
}

// Done reports whether the runner has already run.
func (r *Runner) Done() bool { return r.done }

// Run executes spec in order. Unknown app instances and commands are reported
// as warnings and skipped; a failing command does not stop the rest. It
// returns false without doing anything when called again.
func (r *Runner) Run(spec []config.StartupCommand) (Report, bool) {
	if r.done {
		r.log.Debug("startup commands already ran")
		return Report{}, false
	}
	r.done = true

	var report Report
	for _, entry := range spec {
		cmds := r.reg.ForApp(entry.AppInstance)
		if len(cmds) == 0 {
			known := r.reg.AppInstances()
			r.warn(&report, &LookupError{
				AppInstance: entry.AppInstance,
				Known:       known,
				Suggestion:  suggest(entry.AppInstance, known),
				Err:         ErrUnknownAppInstance,
			})
			continue
		}

		if entry.Name == "" {
			for _, cmd := range cmds {
				r.execute(&report, cmd)
			}
			continue
		}

		cmd, ok := r.reg.Lookup(entry.AppInstance, entry.Name)
		if !ok {
			names := make([]string, len(cmds))
			for i, c := range cmds {
				names[i] = c.Name
			}
			r.warn(&report, &LookupError{
				AppInstance: entry.AppInstance,
				Command:     entry.Name,
				Known:       names,
				Suggestion:  suggest(entry.Name, names),
				Err:         ErrUnknownCommand,
			})
			continue
		}
		r.execute(&report, cmd)
	}
	return report, true
}

func (r *Runner) warn(report *Report, err error) {
	r.log.Warn(err.Error())
	report.Warnings = append(report.Warnings, err)
}

func (r *Runner) execute(report *Report, cmd Command) {
	r.log.Debug("Running startup command", "app_instance", cmd.AppInstance, "command", cmd.Name)
	err := cmd.Run()
	if err != nil {
		r.log.Error("startup command failed", "app_instance", cmd.AppInstance, "command", cmd.Name, "err", err)
	}
	report.Ran = append(report.Ran, Outcome{AppInstance: cmd.AppInstance, Command: cmd.Name, Err: err})
}

// suggest returns the closest known name when it is near enough to be a typo.
func suggest(name string, known []string) string {
	best, bestDist := "", -1
	for _, k := range known {
		d := levenshtein.ComputeDistance(strings.ToLower(name), strings.ToLower(k))
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(name)/3) {
		return ""
	}
	return best
}
