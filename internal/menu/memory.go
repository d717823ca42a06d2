package menu

import (
	"fmt"
	"slices"
)

// MemoryHost is an in-process Host that stores menus as values. It backs the
// CLI session simulator and tests.
type MemoryHost struct {
	menus []Menu

	Attached int
	Synced   int
	Detached int
}

// NewMemoryHost returns an empty host menu bar. Menus in existing are
// installed up front, for example unrelated menus sharing a title.
func NewMemoryHost(existing ...Menu) *MemoryHost {
	h := &MemoryHost{}
	for _, m := range existing {
		h.menus = append(h.menus, m.Clone())
	}
	return h
}

// HasMenu implements Host.
func (h *MemoryHost) HasMenu(marker string) bool {
	return h.index(marker) >= 0
}

// AttachMenu implements Host.
func (h *MemoryHost) AttachMenu(m Menu) error {
	if h.HasMenu(m.Marker) {
		return fmt.Errorf("menu %q already attached", m.Marker)
	}
	h.menus = append(h.menus, m.Clone())
	h.Attached++
	return nil
}

// SyncMenu implements Host.
func (h *MemoryHost) SyncMenu(m Menu) error {
	i := h.index(m.Marker)
	if i < 0 {
		return fmt.Errorf("menu %q is not attached", m.Marker)
	}
	h.menus[i] = m.Clone()
	h.Synced++
	return nil
}

// DetachMenu implements Host.
func (h *MemoryHost) DetachMenu(marker string) error {
	i := h.index(marker)
	if i < 0 {
		return fmt.Errorf("menu %q is not attached", marker)
	}
	h.menus = slices.Delete(h.menus, i, i+1)
	h.Detached++
	return nil
}

// Menus returns a copy of every attached menu in attach order.
func (h *MemoryHost) Menus() []Menu {
	out := make([]Menu, len(h.menus))
	for i, m := range h.menus {
		out[i] = m.Clone()
	}
	return out
}

// Menu returns the menu carrying marker.
func (h *MemoryHost) Menu(marker string) (Menu, bool) {
	i := h.index(marker)
	if i < 0 {
		return Menu{}, false
	}
	return h.menus[i].Clone(), true
}

func (h *MemoryHost) index(marker string) int {
	return slices.IndexFunc(h.menus, func(m Menu) bool { return m.Marker == marker })
}
