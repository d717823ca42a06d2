package db_test

import (
	"errors"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/tk-krita/internal/db"
	"github.com/go-ports/tk-krita/internal/models"
)

// openTestDB opens a fresh SQLite database in a temp directory and registers
// t.Cleanup to close it.
func openTestDB(t *testing.T) *db.DB {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("openTestDB: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// ---------------------------------------------------------------------------
// Open
// ---------------------------------------------------------------------------

func TestOpen_HappyPath(t *testing.T) {
	c := qt.New(t)
	d := openTestDB(t)
	c.Assert(d, qt.IsNotNil)

	projects, err := d.ListProjects()
	c.Assert(err, qt.IsNil)
	c.Assert(projects, qt.HasLen, 0)
}

func TestOpen_Reopen(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "registry.db")
	d, err := db.Open(path)
	c.Assert(err, qt.IsNil)
	_, err = d.AddProject("demo", "/projects/demo")
	c.Assert(err, qt.IsNil)
	c.Assert(d.Close(), qt.IsNil)

	d, err = db.Open(path)
	c.Assert(err, qt.IsNil)
	defer d.Close()
	p, err := d.GetProject("demo")
	c.Assert(err, qt.IsNil)
	c.Assert(p.Root, qt.Equals, filepath.Clean("/projects/demo"))
}

// ---------------------------------------------------------------------------
// Projects
// ---------------------------------------------------------------------------

func TestAddProject(t *testing.T) {
	c := qt.New(t)

	c.Run("added project is listed", func(c *qt.C) {
		d := openTestDB(t)
		p, err := d.AddProject("demo", "/projects/demo/")
		c.Assert(err, qt.IsNil)
		c.Assert(p.ID, qt.Not(qt.Equals), int64(0))
		c.Assert(p.Root, qt.Equals, filepath.Clean("/projects/demo"))

		projects, err := d.ListProjects()
		c.Assert(err, qt.IsNil)
		c.Assert(projects, qt.HasLen, 1)
		c.Assert(projects[0].Name, qt.Equals, "demo")
		c.Assert(projects[0].CreatedAt.IsZero(), qt.IsFalse)
	})

	c.Run("duplicate name is rejected", func(c *qt.C) {
		d := openTestDB(t)
		_, err := d.AddProject("demo", "/projects/demo")
		c.Assert(err, qt.IsNil)
		_, err = d.AddProject("demo", "/projects/other")
		c.Assert(err, qt.IsNotNil)
	})

	c.Run("relative root is rejected", func(c *qt.C) {
		d := openTestDB(t)
		_, err := d.AddProject("demo", "projects/demo")
		c.Assert(err, qt.ErrorMatches, `AddProject: root .* must be absolute`)
	})

	c.Run("blank name is rejected", func(c *qt.C) {
		d := openTestDB(t)
		_, err := d.AddProject("  ", "/projects/demo")
		c.Assert(err, qt.ErrorMatches, `AddProject: name is required`)
	})
}

func TestRemoveProject(t *testing.T) {
	c := qt.New(t)
	d := openTestDB(t)

	p, err := d.AddProject("demo", "/projects/demo")
	c.Assert(err, qt.IsNil)
	_, err = d.AddEntity(p.ID, models.EntityShot, "sh010", "/projects/demo/shots/sh010", 0)
	c.Assert(err, qt.IsNil)

	removed, err := d.RemoveProject("demo")
	c.Assert(err, qt.IsNil)
	c.Assert(removed, qt.IsTrue)

	entities, err := d.ListEntities(p.ID)
	c.Assert(err, qt.IsNil)
	c.Assert(entities, qt.HasLen, 0)

	removed, err = d.RemoveProject("demo")
	c.Assert(err, qt.IsNil)
	c.Assert(removed, qt.IsFalse)
}

func TestGetProject_NotFound(t *testing.T) {
	c := qt.New(t)
	d := openTestDB(t)

	_, err := d.GetProject("missing")
	c.Assert(errors.Is(err, db.ErrNotFound), qt.IsTrue)
}

func TestProjectForPath(t *testing.T) {
	c := qt.New(t)
	d := openTestDB(t)

	_, err := d.AddProject("outer", "/projects")
	c.Assert(err, qt.IsNil)
	_, err = d.AddProject("demo", "/projects/demo")
	c.Assert(err, qt.IsNil)

	cases := []struct {
		path string
		want string
	}{
		{"/projects/demo/shots/sh010/comp.kra", "demo"},
		{"/projects/demo", "demo"},
		{"/projects/demo2/file.kra", "outer"},
		{"/projects/other/file.kra", "outer"},
	}
	for _, tc := range cases {
		c.Run(tc.path, func(c *qt.C) {
			p, err := d.ProjectForPath(tc.path)
			c.Assert(err, qt.IsNil)
			c.Assert(p.Name, qt.Equals, tc.want)
		})
	}

	c.Run("outside every project", func(c *qt.C) {
		_, err := d.ProjectForPath("/tmp/file.kra")
		c.Assert(errors.Is(err, db.ErrNotFound), qt.IsTrue)
	})
}

func TestContains(t *testing.T) {
	c := qt.New(t)

	c.Assert(db.Contains("/a/b", "/a/b"), qt.IsTrue)
	c.Assert(db.Contains("/a/b", "/a/b/c"), qt.IsTrue)
	c.Assert(db.Contains("/a/b", "/a/bc"), qt.IsFalse)
	c.Assert(db.Contains("/a/b", "/a"), qt.IsFalse)
	c.Assert(db.Contains("/a/b", "/a/b/..foo"), qt.IsTrue)
}

// ---------------------------------------------------------------------------
// Entities
// ---------------------------------------------------------------------------

func TestAddEntity(t *testing.T) {
	c := qt.New(t)

	c.Run("shot and task are retrievable", func(c *qt.C) {
		d := openTestDB(t)
		p, err := d.AddProject("demo", "/projects/demo")
		c.Assert(err, qt.IsNil)

		shot, err := d.AddEntity(p.ID, models.EntityShot, "sh010", "/projects/demo/shots/sh010", 0)
		c.Assert(err, qt.IsNil)
		task, err := d.AddEntity(p.ID, models.EntityTask, "comp", "/projects/demo/shots/sh010/comp", shot.ID)
		c.Assert(err, qt.IsNil)

		got, err := d.GetEntity(task.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(got.Type, qt.Equals, models.EntityTask)
		c.Assert(got.ParentID, qt.Equals, shot.ID)
		c.Assert(got.Ref(), qt.DeepEquals, models.Entity{Type: models.EntityTask, ID: task.ID, Name: "comp"})

		got, err = d.GetEntity(shot.ID)
		c.Assert(err, qt.IsNil)
		c.Assert(got.ParentID, qt.Equals, int64(0))
	})

	c.Run("unknown type is rejected", func(c *qt.C) {
		d := openTestDB(t)
		p, err := d.AddProject("demo", "/projects/demo")
		c.Assert(err, qt.IsNil)
		_, err = d.AddEntity(p.ID, "Camera", "cam", "/projects/demo/cam", 0)
		c.Assert(err, qt.ErrorMatches, `AddEntity: unknown entity type "Camera"`)
	})

	c.Run("path outside the project root is rejected", func(c *qt.C) {
		d := openTestDB(t)
		p, err := d.AddProject("demo", "/projects/demo")
		c.Assert(err, qt.IsNil)
		_, err = d.AddEntity(p.ID, models.EntityShot, "sh010", "/elsewhere/sh010", 0)
		c.Assert(err, qt.ErrorMatches, `AddEntity: .* is outside project root .*`)
	})

	c.Run("task without parent is rejected", func(c *qt.C) {
		d := openTestDB(t)
		p, err := d.AddProject("demo", "/projects/demo")
		c.Assert(err, qt.IsNil)
		_, err = d.AddEntity(p.ID, models.EntityTask, "comp", "/projects/demo/comp", 0)
		c.Assert(err, qt.ErrorMatches, `AddEntity: Task "comp" needs a parent entity`)
	})

	c.Run("parent from another project is rejected", func(c *qt.C) {
		d := openTestDB(t)
		a, err := d.AddProject("a", "/projects/a")
		c.Assert(err, qt.IsNil)
		b, err := d.AddProject("b", "/projects/b")
		c.Assert(err, qt.IsNil)
		shot, err := d.AddEntity(a.ID, models.EntityShot, "sh010", "/projects/a/sh010", 0)
		c.Assert(err, qt.IsNil)
		_, err = d.AddEntity(b.ID, models.EntityTask, "comp", "/projects/b/comp", shot.ID)
		c.Assert(err, qt.ErrorMatches, `AddEntity: parent \d+ belongs to another project`)
	})

	c.Run("unknown project", func(c *qt.C) {
		d := openTestDB(t)
		_, err := d.AddEntity(42, models.EntityShot, "sh010", "/projects/demo/sh010", 0)
		c.Assert(errors.Is(err, db.ErrNotFound), qt.IsTrue)
	})
}

func TestEntitiesAtPaths(t *testing.T) {
	c := qt.New(t)
	d := openTestDB(t)

	p, err := d.AddProject("demo", "/projects/demo")
	c.Assert(err, qt.IsNil)
	seq, err := d.AddEntity(p.ID, models.EntitySequence, "sq01", "/projects/demo/sq01", 0)
	c.Assert(err, qt.IsNil)
	shot, err := d.AddEntity(p.ID, models.EntityShot, "sh010", "/projects/demo/sq01/sh010", 0)
	c.Assert(err, qt.IsNil)
	_, err = d.AddEntity(p.ID, models.EntityShot, "sh020", "/projects/demo/sq01/sh020", 0)
	c.Assert(err, qt.IsNil)

	got, err := d.EntitiesAtPaths(p.ID, []string{"/projects/demo/sq01/sh010/", "/projects/demo/sq01"})
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 2)
	c.Assert(got[0].ID, qt.Equals, seq.ID)
	c.Assert(got[1].ID, qt.Equals, shot.ID)

	got, err = d.EntitiesAtPaths(p.ID, nil)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.HasLen, 0)
}

func TestGetEntity_NotFound(t *testing.T) {
	c := qt.New(t)
	d := openTestDB(t)

	_, err := d.GetEntity(99)
	c.Assert(errors.Is(err, db.ErrNotFound), qt.IsTrue)
}
