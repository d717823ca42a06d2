// Package db manages the SQLite project registry that binds pipeline
// projects and their entities to directories on disk.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver with database/sql

	"github.com/go-ports/tk-krita/internal/models"
)

// ErrNotFound is returned when a project or entity does not exist.
var ErrNotFound = errors.New("not found")

// DB wraps a *sql.DB with the path it was opened from.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and initialises the schema.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("db.Open: %w", err)
	}
	d := &DB{db: sqldb, path: path}
	if err := d.createSchema(); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("db.Open createSchema: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the file the database was opened from.
func (d *DB) Path() string { return d.path }

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func (d *DB) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT UNIQUE NOT NULL,
			root       TEXT UNIQUE NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS entities (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			type       TEXT NOT NULL,
			name       TEXT NOT NULL,
			path       TEXT NOT NULL,
			parent_id  INTEGER REFERENCES entities(id) ON DELETE CASCADE,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS entities_path ON entities(project_id, path)`,
	}

	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("createSchema exec: %w\nSQL: %s", err, s)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

// AddProject registers a project rooted at root. root is cleaned and must be absolute.
func (d *DB) AddProject(name, root string) (*models.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("AddProject: name is required")
	}
	if !filepath.IsAbs(root) {
		return nil, fmt.Errorf("AddProject: root %q must be absolute", root)
	}
	root = filepath.Clean(root)
	now := time.Now().UTC()

	res, err := d.db.Exec(
		`INSERT INTO projects (name, root, created_at) VALUES (?, ?, ?)`,
		name, root, now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("AddProject: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("AddProject: %w", err)
	}
	return &models.Project{ID: id, Name: name, Root: root, CreatedAt: now.Truncate(time.Second)}, nil
}

// ListProjects returns every registered project ordered by name.
func (d *DB) ListProjects() ([]models.Project, error) {
	rows, err := d.db.Query(`SELECT id, name, root, created_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("ListProjects: %w", err)
	}
	defer rows.Close()

	projects := make([]models.Project, 0)
	for rows.Next() {
		var p models.Project
		var created string
		if err := rows.Scan(&p.ID, &p.Name, &p.Root, &created); err != nil {
			return nil, fmt.Errorf("ListProjects scan: %w", err)
		}
		p.CreatedAt = parseTime(created)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetProject looks a project up by name.
func (d *DB) GetProject(name string) (*models.Project, error) {
	var p models.Project
	var created string
	err := d.db.QueryRow(
		`SELECT id, name, root, created_at FROM projects WHERE name = ?`, name,
	).Scan(&p.ID, &p.Name, &p.Root, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("GetProject: %w", err)
	}
	p.CreatedAt = parseTime(created)
	return &p, nil
}

// RemoveProject deletes a project and its entities. Returns false when no
// project had that name.
func (d *DB) RemoveProject(name string) (bool, error) {
	res, err := d.db.Exec(`DELETE FROM projects WHERE name = ?`, name)
	if err != nil {
		return false, fmt.Errorf("RemoveProject: %w", err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// ProjectForPath returns the project whose root is the longest directory
// prefix of path, or ErrNotFound.
func (d *DB) ProjectForPath(path string) (*models.Project, error) {
	projects, err := d.ListProjects()
	if err != nil {
		return nil, err
	}
	path = filepath.Clean(path)

	var best *models.Project
	for i := range projects {
		p := &projects[i]
		if !Contains(p.Root, path) {
			continue
		}
		if best == nil || len(p.Root) > len(best.Root) {
			best = p
		}
	}
	if best == nil {
		return nil, fmt.Errorf("no project contains %q: %w", path, ErrNotFound)
	}
	return best, nil
}

// Contains reports whether path is root or lies below it.
func Contains(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

// AddEntity registers an entity of the given type bound to path. path must lie
// inside the project root; parentID may be zero.
func (d *DB) AddEntity(projectID int64, typ, name, path string, parentID int64) (*models.EntityRecord, error) {
	if !models.IsValidEntityType(typ) {
		return nil, fmt.Errorf("AddEntity: unknown entity type %q", typ)
	}
	var root string
	err := d.db.QueryRow(`SELECT root FROM projects WHERE id = ?`, projectID).Scan(&root)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("AddEntity: project %d: %w", projectID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("AddEntity: %w", err)
	}
	path = filepath.Clean(path)
	if !Contains(root, path) {
		return nil, fmt.Errorf("AddEntity: %q is outside project root %q", path, root)
	}
	if typ == models.EntityTask && parentID == 0 {
		return nil, fmt.Errorf("AddEntity: Task %q needs a parent entity", name)
	}

	var parent any
	if parentID != 0 {
		parentRec, err := d.GetEntity(parentID)
		if err != nil {
			return nil, fmt.Errorf("AddEntity: parent: %w", err)
		}
		if parentRec.ProjectID != projectID {
			return nil, fmt.Errorf("AddEntity: parent %d belongs to another project", parentID)
		}
		parent = parentID
	}

	now := time.Now().UTC()
	res, err := d.db.Exec(
		`INSERT INTO entities (project_id, type, name, path, parent_id, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		projectID, typ, name, path, parent, now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("AddEntity: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("AddEntity: %w", err)
	}
	return &models.EntityRecord{
		ID: id, ProjectID: projectID, Type: typ, Name: name, Path: path,
		ParentID: parentID, CreatedAt: now.Truncate(time.Second),
	}, nil
}

// GetEntity fetches an entity by id.
func (d *DB) GetEntity(id int64) (*models.EntityRecord, error) {
	rows, err := d.db.Query(entitySelect+` WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("GetEntity: %w", err)
	}
	recs, err := scanEntities(rows)
	if err != nil {
		return nil, fmt.Errorf("GetEntity: %w", err)
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("entity %d: %w", id, ErrNotFound)
	}
	return &recs[0], nil
}

// ListEntities returns every entity of a project ordered by path then id.
func (d *DB) ListEntities(projectID int64) ([]models.EntityRecord, error) {
	rows, err := d.db.Query(entitySelect+` WHERE project_id = ? ORDER BY path, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("ListEntities: %w", err)
	}
	return scanEntities(rows)
}

// EntitiesAtPaths returns the entities of a project bound to any of paths,
// ordered by id.
func (d *DB) EntitiesAtPaths(projectID int64, paths []string) ([]models.EntityRecord, error) {
	if len(paths) == 0 {
		return make([]models.EntityRecord, 0), nil
	}
	args := make([]any, 0, len(paths)+1)
	args = append(args, projectID)
	for _, p := range paths {
		args = append(args, filepath.Clean(p))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(paths)), ",")
	rows, err := d.db.Query(
		entitySelect+` WHERE project_id = ? AND path IN (`+placeholders+`) ORDER BY id`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("EntitiesAtPaths: %w", err)
	}
	return scanEntities(rows)
}

const entitySelect = `SELECT id, project_id, type, name, path, COALESCE(parent_id, 0), created_at FROM entities`

func scanEntities(rows *sql.Rows) ([]models.EntityRecord, error) {
	defer rows.Close()
	out := make([]models.EntityRecord, 0)
	for rows.Next() {
		var e models.EntityRecord
		var created string
		if err := rows.Scan(&e.ID, &e.ProjectID, &e.Type, &e.Name, &e.Path, &e.ParentID, &created); err != nil {
			return nil, err
		}
		e.CreatedAt = parseTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
