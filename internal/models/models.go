// Package models defines the core data types shared by the engine, the
// launcher and the project registry.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Entity types known to the project registry.
const (
	EntityProject  = "Project"
	EntityAsset    = "Asset"
	EntitySequence = "Sequence"
	EntityShot     = "Shot"
	EntityTask     = "Task"
)

// ValidEntityTypes lists the entity types that can be registered below a project.
var ValidEntityTypes = []string{EntityAsset, EntitySequence, EntityShot, EntityTask}

// IsValidEntityType reports whether t can be registered below a project.
func IsValidEntityType(t string) bool {
	for _, v := range ValidEntityTypes {
		if v == t {
			return true
		}
	}
	return false
}

// Project is a pipeline project rooted at a directory on disk.
type Project struct {
	ID        int64
	Name      string
	Root      string
	CreatedAt time.Time
}

// EntityRecord is a registry row describing an entity bound to a directory.
type EntityRecord struct {
	ID        int64
	ProjectID int64
	Type      string
	Name      string
	Path      string
	ParentID  int64 // 0 when the entity has no parent
	CreatedAt time.Time
}

// Ref returns the identifying reference of the record.
func (e *EntityRecord) Ref() Entity {
	return Entity{Type: e.Type, ID: e.ID, Name: e.Name}
}

// Entity identifies a project, entity or task. The zero value means "none".
type Entity struct {
	Type string `json:"type"`
	ID   int64  `json:"id"`
	Name string `json:"name,omitempty"`
}

// IsZero reports whether e denotes nothing.
func (e Entity) IsZero() bool { return e.Type == "" && e.ID == 0 }

// Same reports whether e and o denote the same entity. Names are display
// only and do not take part in the comparison.
func (e Entity) Same(o Entity) bool { return e.Type == o.Type && e.ID == o.ID }

func (e Entity) String() string {
	if e.IsZero() {
		return ""
	}
	if e.Name != "" {
		return fmt.Sprintf("%s %s", e.Type, e.Name)
	}
	return fmt.Sprintf("%s %d", e.Type, e.ID)
}

// Context is the current working context: a project, optionally narrowed to an
// entity and a task. Contexts are values; a new one replaces the old wholesale.
type Context struct {
	Project Entity `json:"project"`
	Entity  Entity `json:"entity,omitzero"`
	Task    Entity `json:"task,omitzero"`
}

// IsZero reports whether c carries no project.
func (c Context) IsZero() bool { return c.Project.IsZero() }

// Equal reports whether c and o denote the same project, entity and task.
func (c Context) Equal(o Context) bool {
	return c.Project.Same(o.Project) && c.Entity.Same(o.Entity) && c.Task.Same(o.Task)
}

// String renders the context the way it is shown in the pipeline menu.
func (c Context) String() string {
	if c.IsZero() {
		return "No context"
	}
	parts := []string{c.Project.Name}
	if !c.Entity.IsZero() {
		parts = append(parts, c.Entity.String())
	}
	if !c.Task.IsZero() {
		parts = append(parts, c.Task.Name)
	}
	return strings.Join(parts, ", ")
}

// SoftwareVersion is one discovered, launchable copy of the host application.
type SoftwareVersion struct {
	Version     string `json:"version,omitempty"` // empty when the template has no version slot
	ProductName string `json:"product_name"`
	Path        string `json:"path"`
	Icon        string `json:"icon,omitempty"`
}

func (v SoftwareVersion) String() string {
	if v.Version == "" {
		return fmt.Sprintf("%s (%s)", v.ProductName, v.Path)
	}
	return fmt.Sprintf("%s %s (%s)", v.ProductName, v.Version, v.Path)
}
