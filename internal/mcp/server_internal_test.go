package mcp

// White-box testing required: envList and nonNil shape the tool responses
// and are not reachable through NewServer without a full client round trip.

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/tk-krita/internal/launch"
)

// ---------------------------------------------------------------------------
// envList
// ---------------------------------------------------------------------------

func TestEnvList_SortedByName(t *testing.T) {
	c := qt.New(t)

	got := envList(launch.Information{Env: map[string]string{
		"SGTK_ENGINE":   "tk-krita",
		"PYTHONPATH":    "/opt/startup",
		"SG_PYTHONPATH": "/opt/startup",
	}})
	c.Assert(got, qt.DeepEquals, []map[string]string{
		{"name": "PYTHONPATH", "value": "/opt/startup"},
		{"name": "SGTK_ENGINE", "value": "tk-krita"},
		{"name": "SG_PYTHONPATH", "value": "/opt/startup"},
	})
}

func TestEnvList_Empty(t *testing.T) {
	c := qt.New(t)

	got := envList(launch.Information{})
	c.Assert(got, qt.IsNotNil)
	c.Assert(got, qt.HasLen, 0)
}

// ---------------------------------------------------------------------------
// nonNil
// ---------------------------------------------------------------------------

func TestNonNil(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil becomes empty", nil, []string{}},
		{"values kept", []string{"a.kra"}, []string{"a.kra"}},
	}
	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			c.Assert(nonNil(tc.in), qt.DeepEquals, tc.want)
		})
	}
}
