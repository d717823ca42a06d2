// Package menu keeps the pipeline menu in the host window in sync with the
// engine state. The Manager owns the menu value and pushes it to the host
// through a thin Host adapter.
package menu

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
)

// Stable markers identifying the pipeline menu and its disabled placeholder.
// Display labels are configurable and are never used for lookup.
const (
	Marker           = "shotgun"
	DisabledMarker   = "shotgun_disabled"
	DisabledLabel    = "Sgtk is disabled."
	DefaultMenuTitle = "Shotgun"
)

// ErrNoMenu is returned by Activate when no pipeline menu exists.
var ErrNoMenu = errors.New("no pipeline menu")

// Item is one menu entry.
type Item struct {
	Marker      string `json:"marker,omitempty"`
	Label       string `json:"label,omitempty"`
	AppInstance string `json:"app_instance,omitempty"`
	Command     string `json:"command,omitempty"` // registered command run on activation
	Separator   bool   `json:"separator,omitempty"`
	Disabled    bool   `json:"disabled,omitempty"`
}

// Menu is a top-level menu in the host window.
type Menu struct {
	Marker string `json:"marker"`
	Title  string `json:"title"`
	Items  []Item `json:"items"`
}

// Clone returns a deep copy of m.
func (m Menu) Clone() Menu {
	m.Items = slices.Clone(m.Items)
	return m
}

// Host is the boundary with the host window's menu bar.
type Host interface {
	// HasMenu reports whether a top-level menu carrying marker exists.
	HasMenu(marker string) bool
	AttachMenu(m Menu) error
	SyncMenu(m Menu) error
	DetachMenu(marker string) error
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithHandler sets the function called when an entry is activated.
func WithHandler(fn func(Item)) Option {
	return func(m *Manager) { m.handler = fn }
}

// Manager guarantees at most one pipeline menu and keeps the placeholder and
// the regular entries mutually exclusive.
type Manager struct {
	host    Host
	title   string
	log     *slog.Logger
	handler func(Item)

	menu        *Menu
	placeholder bool
	stash       []Item // regular entries hidden behind the placeholder
}

// NewManager returns a Manager that publishes a menu titled title to host.
func NewManager(host Host, title string, opts ...Option) *Manager {
	if title == "" {
		title = DefaultMenuTitle
	}
	m := &Manager{host: host, title: title, log: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsurePresent creates the pipeline menu unless the host already has one.
// It reports whether a menu was created.
func (m *Manager) EnsurePresent() (bool, error) {
	if m.host.HasMenu(Marker) {
		if m.menu == nil {
			// Adopt a menu left behind by an earlier session.
			m.menu = &Menu{Marker: Marker, Title: m.title}
			if err := m.host.SyncMenu(m.menu.Clone()); err != nil {
				return false, fmt.Errorf("adopt menu: %w", err)
			}
		}
		return false, nil
	}

	if m.menu == nil {
		m.menu = &Menu{Marker: Marker, Title: m.title}
	}
	if err := m.host.AttachMenu(m.menu.Clone()); err != nil {
		m.menu = nil
		m.placeholder = false
		m.stash = nil
		return false, fmt.Errorf("attach menu: %w", err)
	}
	m.log.Debug("created pipeline menu", "title", m.title)
	return true, nil
}

// ShowDisabledPlaceholder hides every entry behind a single inert entry
// explaining that the integration is disabled. It creates the menu first when
// none exists.
func (m *Manager) ShowDisabledPlaceholder() error {
	if _, err := m.EnsurePresent(); err != nil {
		return err
	}
	if m.placeholder {
		return nil
	}
	m.stash = m.menu.Items
	m.menu.Items = []Item{{Marker: DisabledMarker, Label: DisabledLabel}}
	m.placeholder = true
	return m.sync()
}

// RemoveDisabledPlaceholder removes the placeholder and restores the entries
// it hid. It reports whether a placeholder was present.
func (m *Manager) RemoveDisabledPlaceholder() (bool, error) {
	if m.menu == nil || !m.placeholder {
		return false, nil
	}
	m.menu.Items = m.stash
	m.stash = nil
	m.placeholder = false
	return true, m.sync()
}

// Rebuild replaces the regular entries. While the placeholder is shown the new
// entries stay hidden until it is removed.
func (m *Manager) Rebuild(items []Item) error {
	if _, err := m.EnsurePresent(); err != nil {
		return err
	}
	items = slices.Clone(items)
	if m.placeholder {
		m.stash = items
		return nil
	}
	m.menu.Items = items
	return m.sync()
}

// Teardown removes the pipeline menu from the host. It is safe to call when no
// menu was ever created.
func (m *Manager) Teardown() error {
	m.menu = nil
	m.placeholder = false
	m.stash = nil
	if !m.host.HasMenu(Marker) {
		return nil
	}
	if err := m.host.DetachMenu(Marker); err != nil {
		return fmt.Errorf("detach menu: %w", err)
	}
	m.log.Debug("removed pipeline menu")
	return nil
}

// Present reports whether the manager owns a menu.
func (m *Manager) Present() bool { return m.menu != nil }

// ShowingPlaceholder reports whether the disabled placeholder is shown.
func (m *Manager) ShowingPlaceholder() bool { return m.placeholder }

// Items returns a copy of the visible entries.
func (m *Manager) Items() []Item {
	if m.menu == nil {
		return nil
	}
	return slices.Clone(m.menu.Items)
}

// Activate triggers the visible entry with the given label.
func (m *Manager) Activate(label string) error {
	if m.menu == nil {
		return ErrNoMenu
	}
	for _, it := range m.menu.Items {
		if it.Separator || it.Label != label {
			continue
		}
		if m.handler != nil {
			m.handler(it)
		}
		return nil
	}
	return fmt.Errorf("no menu entry %q", label)
}

func (m *Manager) sync() error {
	if err := m.host.SyncMenu(m.menu.Clone()); err != nil {
		return fmt.Errorf("sync menu: %w", err)
	}
	return nil
}
