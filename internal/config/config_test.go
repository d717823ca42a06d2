package config_test

import (
	"os"
	"path/filepath"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/tk-krita/internal/config"
)

func TestDefault_HappyPath(t *testing.T) {
	c := qt.New(t)
	cfg := config.Default()
	c.Assert(cfg, qt.IsNotNil)
	c.Assert(cfg.Engine.Name, qt.Equals, "tk-krita")
	c.Assert(cfg.Engine.MenuName, qt.Equals, "Shotgun")
	c.Assert(cfg.Engine.RunAtStartup, qt.HasLen, 0)
	c.Assert(cfg.Software.ProductName, qt.Equals, "Krita")
	c.Assert(cfg.Software.MinimumVersion, qt.Equals, "4.0.0")
	c.Assert(cfg.Software.Components["version"], qt.Equals, `[\d.]+`)
	c.Assert(cfg.Software.Components["mach"], qt.Equals, `x[\d_]+`)
	c.Assert(cfg.Software.Templates["linux"], qt.HasLen, 1)
	c.Assert(cfg.Software.Templates["darwin"], qt.HasLen, 0)
	c.Assert(cfg.Software.Templates["windows"], qt.HasLen, 0)
}

func TestLoad_HappyPath(t *testing.T) {
	c := qt.New(t)

	c.Run("non-existent file returns defaults without error", func(c *qt.C) {
		cfg, err := config.Load("/nonexistent/config.yaml")
		c.Assert(err, qt.IsNil)
		c.Assert(cfg.Engine.MenuName, qt.Equals, "Shotgun")
		c.Assert(cfg.Software.MinimumVersion, qt.Equals, "4.0.0")
	})

	tests := []struct {
		name         string
		yaml         string
		wantMenu     string
		wantMin      string
		wantStartup  []config.StartupCommand
		wantProduct  string
		wantStartDir string
	}{
		{
			name:        "menu name override",
			yaml:        "engine:\n  menu_name: Sgtk\n",
			wantMenu:    "Sgtk",
			wantMin:     "4.0.0",
			wantProduct: "Krita",
		},
		{
			name: "run_at_startup keeps order and empty names",
			yaml: "engine:\n  run_at_startup:\n" +
				"    - app_instance: tk-multi-workfiles2\n      name: File Open...\n" +
				"    - app_instance: tk-multi-shotgunpanel\n",
			wantMenu: "Shotgun",
			wantMin:  "4.0.0",
			wantStartup: []config.StartupCommand{
				{AppInstance: "tk-multi-workfiles2", Name: "File Open..."},
				{AppInstance: "tk-multi-shotgunpanel", Name: ""},
			},
			wantProduct: "Krita",
		},
		{
			name:        "numeric minimum version is read as a string",
			yaml:        "software:\n  minimum_version: 4.2\n  product_name: Krita Next\n",
			wantMenu:    "Shotgun",
			wantMin:     "4.2",
			wantProduct: "Krita Next",
		},
		{
			name:         "launch startup dir",
			yaml:         "launch:\n  startup_dir: /opt/tk-krita/startup\n",
			wantMenu:     "Shotgun",
			wantMin:      "4.0.0",
			wantProduct:  "Krita",
			wantStartDir: "/opt/tk-krita/startup",
		},
	}

	for _, tt := range tests {
		c.Run(tt.name, func(c *qt.C) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			err := os.WriteFile(path, []byte(tt.yaml), 0o600)
			c.Assert(err, qt.IsNil)

			cfg, err := config.Load(path)
			c.Assert(err, qt.IsNil)
			c.Assert(cfg.Engine.MenuName, qt.Equals, tt.wantMenu)
			c.Assert(cfg.Software.MinimumVersion, qt.Equals, tt.wantMin)
			c.Assert(cfg.Software.ProductName, qt.Equals, tt.wantProduct)
			c.Assert(cfg.Launch.StartupDir, qt.Equals, tt.wantStartDir)
			if tt.wantStartup == nil {
				c.Assert(cfg.Engine.RunAtStartup, qt.HasLen, 0)
			} else {
				c.Assert(cfg.Engine.RunAtStartup, qt.DeepEquals, tt.wantStartup)
			}
		})
	}
}

func TestLoad_TemplatesAndComponentsMerge(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := "software:\n" +
		"  components:\n    mach: 'x86_64'\n" +
		"  templates:\n    linux:\n      - /opt/krita-{version}/bin/krita\n    darwin: []\n"
	c.Assert(os.WriteFile(path, []byte(yml), 0o600), qt.IsNil)

	cfg, err := config.Load(path)
	c.Assert(err, qt.IsNil)
	c.Assert(cfg.Software.Components["mach"], qt.Equals, "x86_64")
	c.Assert(cfg.Software.Components["version"], qt.Equals, `[\d.]+`)
	c.Assert(cfg.Software.Templates["linux"], qt.DeepEquals, []string{"/opt/krita-{version}/bin/krita"})
	c.Assert(cfg.Software.Templates["darwin"], qt.HasLen, 0)
	c.Assert(cfg.Software.Templates["windows"], qt.HasLen, 0)
	c.Assert(cfg.Software.Templates, qt.HasLen, 3)
}

func TestLoad_InvalidStartupEntry(t *testing.T) {
	c := qt.New(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	c.Assert(os.WriteFile(path, []byte("engine:\n  run_at_startup:\n    - name: orphan\n"), 0o600), qt.IsNil)

	_, err := config.Load(path)
	c.Assert(err, qt.ErrorMatches, `config: run_at_startup\[0\]: app_instance is required`)
}

func TestResolveHome_EnvOverride(t *testing.T) {
	c := qt.New(t)

	tmp := t.TempDir()
	t.Setenv(config.HomeEnv, tmp)

	path, source := config.ResolveHome()
	c.Assert(source, qt.Equals, "env")
	c.Assert(path, qt.Equals, tmp)
}

func TestPersistedHome_RoundTrip(t *testing.T) {
	c := qt.New(t)

	userHome := t.TempDir()
	t.Setenv("HOME", userHome)
	t.Setenv(config.HomeEnv, "")

	target := filepath.Join(userHome, "studio")
	got, err := config.SetPersistedHome(target)
	c.Assert(err, qt.IsNil)
	c.Assert(got, qt.Equals, target)

	path, source := config.ResolveHome()
	c.Assert(source, qt.Equals, "config")
	c.Assert(path, qt.Equals, target)

	changed, err := config.ClearPersistedHome()
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsTrue)

	path, source = config.ResolveHome()
	c.Assert(source, qt.Equals, "default")
	c.Assert(path, qt.Equals, filepath.Join(userHome, ".tk-krita"))

	changed, err = config.ClearPersistedHome()
	c.Assert(err, qt.IsNil)
	c.Assert(changed, qt.IsFalse)
}

func TestDerivedPaths(t *testing.T) {
	c := qt.New(t)
	cfg := config.Default()
	c.Assert(cfg.StartupDir("/h"), qt.Equals, filepath.Join("/h", "startup"))
	c.Assert(cfg.DefaultIcon("/h"), qt.Equals, filepath.Join("/h", "icon_256.png"))
	c.Assert(config.RegistryPath("/h"), qt.Equals, filepath.Join("/h", "registry.db"))
	cfg.Software.DefaultIcon = "/icons/krita.png"
	c.Assert(cfg.DefaultIcon("/h"), qt.Equals, "/icons/krita.png")
}
