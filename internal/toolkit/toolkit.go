// Package toolkit binds filesystem paths to pipeline projects and resolves
// the working context of a document from its location on disk.
package toolkit

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-ports/tk-krita/internal/db"
	"github.com/go-ports/tk-krita/internal/models"
)

// ErrUnresolvableProject is returned when a path is not inside any registered
// project. Callers degrade to a disabled state rather than failing.
var ErrUnresolvableProject = errors.New("unresolvable project")

// Registry is the subset of the project registry the resolver reads.
type Registry interface {
	ProjectForPath(path string) (*models.Project, error)
	EntitiesAtPaths(projectID int64, paths []string) ([]models.EntityRecord, error)
	GetEntity(id int64) (*models.EntityRecord, error)
}

// Instance is a toolkit handle bound to one project.
type Instance struct {
	Project models.Project
	reg     Registry
}

// Root returns the project root directory.
func (i *Instance) Root() string { return i.Project.Root }

// Same reports whether i and o are bound to the same project.
func (i *Instance) Same(o *Instance) bool {
	if i == nil || o == nil {
		return i == o
	}
	return i.Project.ID == o.Project.ID
}

// ProjectRef returns the context entity for the instance's project.
func (i *Instance) ProjectRef() models.Entity {
	return models.Entity{Type: models.EntityProject, ID: i.Project.ID, Name: i.Project.Name}
}

// ---------------------------------------------------------------------------
// Resolution
// ---------------------------------------------------------------------------

// Resolver locates toolkit instances and contexts for paths.
type Resolver struct {
	reg Registry
}

// NewResolver returns a Resolver reading from reg.
func NewResolver(reg Registry) *Resolver {
	return &Resolver{reg: reg}
}

// InstanceFromPath returns the instance whose project contains path.
func (r *Resolver) InstanceFromPath(path string) (*Instance, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("InstanceFromPath: path is required")
	}
	p, err := r.reg.ProjectForPath(path)
	if errors.Is(err, db.ErrNotFound) {
		return nil, fmt.Errorf("%w: %q is not inside any registered project", ErrUnresolvableProject, path)
	}
	if err != nil {
		return nil, fmt.Errorf("InstanceFromPath: %w", err)
	}
	return &Instance{Project: *p, reg: r.reg}, nil
}

// Resolve returns the instance and context for path. prev only breaks ties
// between entities registered at the same directory. It has no side effects.
func (r *Resolver) Resolve(path string, prev models.Context) (*Instance, models.Context, error) {
	inst, err := r.InstanceFromPath(path)
	if err != nil {
		return nil, models.Context{}, err
	}
	ctx, err := inst.ContextFromPath(path, prev)
	if err != nil {
		return nil, models.Context{}, err
	}
	return inst, ctx, nil
}

// ContextFromPath derives the context for path inside the instance's project.
// The deepest directory between path and the project root that has registered
// entities provides the candidates.
func (i *Instance) ContextFromPath(path string, prev models.Context) (models.Context, error) {
	path = filepath.Clean(path)
	if !db.Contains(i.Project.Root, path) {
		return models.Context{}, fmt.Errorf("%w: %q is outside project %q", ErrUnresolvableProject, path, i.Project.Name)
	}

	ancestors := ancestorsOf(path, i.Project.Root)
	records, err := i.reg.EntitiesAtPaths(i.Project.ID, ancestors)
	if err != nil {
		return models.Context{}, fmt.Errorf("ContextFromPath: %w", err)
	}

	ctx := models.Context{Project: i.ProjectRef()}
	candidates := deepest(records, ancestors)
	if len(candidates) == 0 {
		return ctx, nil
	}

	chosen := i.pick(candidates, prev)
	if chosen.Type != models.EntityTask {
		ctx.Entity = chosen.Ref()
		return ctx, nil
	}

	ctx.Task = chosen.Ref()
	parent, err := i.reg.GetEntity(chosen.ParentID)
	if err != nil {
		return models.Context{}, fmt.Errorf("ContextFromPath: task %q parent: %w", chosen.Name, err)
	}
	ctx.Entity = parent.Ref()
	return ctx, nil
}

// ancestorsOf lists path and its parents up to and including root, deepest first.
func ancestorsOf(path, root string) []string {
	root = filepath.Clean(root)
	var out []string
	for p := path; ; {
		out = append(out, p)
		if p == root {
			return out
		}
		parent := filepath.Dir(p)
		if parent == p {
			return out
		}
		p = parent
	}
}

// deepest returns the records bound to the first directory in ancestors that
// has any, in id order.
func deepest(records []models.EntityRecord, ancestors []string) []models.EntityRecord {
	for _, dir := range ancestors {
		var out []models.EntityRecord
		for _, rec := range records {
			if rec.Path == dir {
				out = append(out, rec)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

// pick chooses among entities registered at the same directory: the one
// related to prev first, then tasks, then the lowest id.
func (i *Instance) pick(candidates []models.EntityRecord, prev models.Context) models.EntityRecord {
	var prevParent int64
	if !prev.Entity.IsZero() {
		if rec, err := i.reg.GetEntity(prev.Entity.ID); err == nil && rec.Type == prev.Entity.Type {
			prevParent = rec.ParentID
		}
	}

	rank := func(rec models.EntityRecord) int {
		ref := rec.Ref()
		switch {
		case !prev.Task.IsZero() && ref.Same(prev.Task):
			return 0
		case !prev.Entity.IsZero() && ref.Same(prev.Entity):
			return 1
		case !prev.Entity.IsZero() && rec.ParentID == prev.Entity.ID:
			return 2
		case prevParent != 0 && rec.ID == prevParent:
			return 2
		case rec.Type == models.EntityTask:
			return 3
		default:
			return 4
		}
	}

	best := candidates[0]
	for _, rec := range candidates[1:] {
		if r, b := rank(rec), rank(best); r < b || (r == b && rec.ID < best.ID) {
			best = rec
		}
	}
	return best
}

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// Serialize encodes ctx for hand-off to a launched host process.
func Serialize(ctx models.Context) (string, error) {
	b, err := json.Marshal(ctx)
	if err != nil {
		return "", fmt.Errorf("serialize context: %w", err)
	}
	return string(b), nil
}

// Deserialize decodes a context produced by Serialize.
func Deserialize(s string) (models.Context, error) {
	if strings.TrimSpace(s) == "" {
		return models.Context{}, errors.New("deserialize context: empty input")
	}
	var ctx models.Context
	if err := json.Unmarshal([]byte(s), &ctx); err != nil {
		return models.Context{}, fmt.Errorf("deserialize context: %w", err)
	}
	return ctx, nil
}
