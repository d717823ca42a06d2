// Package service implements the orchestrator that wires together
// configuration, the project registry, software discovery, context
// resolution, launch preparation and headless engine sessions.
package service

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-ports/tk-krita/internal/config"
	"github.com/go-ports/tk-krita/internal/db"
	"github.com/go-ports/tk-krita/internal/launch"
	"github.com/go-ports/tk-krita/internal/models"
	"github.com/go-ports/tk-krita/internal/redaction"
	"github.com/go-ports/tk-krita/internal/software"
	"github.com/go-ports/tk-krita/internal/toolkit"
)

// Service orchestrates the launcher-side operations.
type Service struct {
	Home   string
	Config *config.Config

	database       *db.DB
	resolver       *toolkit.Resolver
	log            *slog.Logger
	ignorePatterns []*regexp.Regexp
	mu             sync.Mutex
}

// New initialises a Service rooted at home.
// If home is empty it is resolved via config.GetHome.
func New(home string, log *slog.Logger) (*Service, error) {
	if home == "" {
		home = config.GetHome()
	}
	if log == nil {
		log = slog.Default()
	}

	if err := os.MkdirAll(home, 0o755); err != nil {
		return nil, fmt.Errorf("service.New: create home: %w", err)
	}

	cfg, err := config.Load(config.ConfigPath(home))
	if err != nil {
		return nil, fmt.Errorf("service.New: load config: %w", err)
	}

	database, err := db.Open(config.RegistryPath(home))
	if err != nil {
		return nil, fmt.Errorf("service.New: open registry: %w", err)
	}

	return &Service{
		Home:     home,
		Config:   cfg,
		database: database,
		resolver: toolkit.NewResolver(database),
		log:      log,
	}, nil
}

// Close releases all resources held by the service.
func (s *Service) Close() error {
	return s.database.Close()
}

// Resolver returns the context resolver backed by the project registry.
func (s *Service) Resolver() *toolkit.Resolver { return s.resolver }

// getIgnorePatterns returns redaction patterns, lazily loaded from .launchignore.
func (s *Service) getIgnorePatterns() []*regexp.Regexp {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ignorePatterns != nil {
		return s.ignorePatterns
	}
	patterns, err := redaction.LoadIgnore(filepath.Join(s.Home, ".launchignore"))
	if err != nil {
		s.log.Warn("failed to load .launchignore", "err", err)
	}
	if patterns == nil {
		patterns = make([]*regexp.Regexp, 0)
	}
	s.ignorePatterns = patterns
	return patterns
}

// ---------------------------------------------------------------------------
// Projects and entities
// ---------------------------------------------------------------------------

// AddProject registers a project rooted at root.
func (s *Service) AddProject(name, root string) (*models.Project, error) {
	abs, err := config.NormalizePath(root)
	if err != nil {
		return nil, err
	}
	return s.database.AddProject(name, abs)
}

// ListProjects returns every registered project.
func (s *Service) ListProjects() ([]models.Project, error) {
	return s.database.ListProjects()
}

// RemoveProject deletes a project and its entities.
func (s *Service) RemoveProject(name string) (bool, error) {
	return s.database.RemoveProject(name)
}

// AddEntity registers an entity of project at path. parentID may be zero.
func (s *Service) AddEntity(project, typ, name, path string, parentID int64) (*models.EntityRecord, error) {
	p, err := s.database.GetProject(project)
	if err != nil {
		return nil, err
	}
	abs, err := config.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	return s.database.AddEntity(p.ID, typ, name, abs, parentID)
}

// ListEntities returns the entities of project.
func (s *Service) ListEntities(project string) ([]models.EntityRecord, error) {
	p, err := s.database.GetProject(project)
	if err != nil {
		return nil, err
	}
	return s.database.ListEntities(p.ID)
}

// ---------------------------------------------------------------------------
// Discovery and resolution
// ---------------------------------------------------------------------------

// Scan discovers installed host executables for the running platform.
func (s *Service) Scan() software.Report {
	return software.FromConfig(s.Config, s.Home, s.log).ScanReport()
}

// ContextResult is the resolved context of a path.
type ContextResult struct {
	Path       string         `json:"path"`
	Project    string         `json:"project"`
	Root       string         `json:"root"`
	Context    models.Context `json:"context"`
	Label      string         `json:"label"`
	Serialized string         `json:"serialized"`
}

// ResolveContext resolves the context of path. prev may be the zero value.
func (s *Service) ResolveContext(path string, prev models.Context) (*ContextResult, error) {
	abs, err := config.NormalizePath(path)
	if err != nil {
		return nil, err
	}
	inst, ctx, err := s.resolver.Resolve(abs, prev)
	if err != nil {
		return nil, err
	}
	blob, err := toolkit.Serialize(ctx)
	if err != nil {
		return nil, err
	}
	return &ContextResult{
		Path:       abs,
		Project:    inst.Project.Name,
		Root:       inst.Root(),
		Context:    ctx,
		Label:      ctx.String(),
		Serialized: blob,
	}, nil
}

// ---------------------------------------------------------------------------
// Launch
// ---------------------------------------------------------------------------

// LaunchRequest describes a host process to prepare.
type LaunchRequest struct {
	Executable  string
	Args        []string
	File        string // document to open, optional
	ContextPath string // path the context is resolved from; defaults to File
}

// Preparer returns the launch preparer configured for this home.
func (s *Service) Preparer() launch.Preparer {
	return launch.Preparer{
		EngineName: s.Config.Engine.Name,
		StartupDir: s.Config.StartupDir(s.Home),
	}
}

// PrepareLaunch builds the launch information for req. A context path outside
// every project launches with an empty context, so the engine starts disabled.
func (s *Service) PrepareLaunch(req LaunchRequest) (launch.Information, error) {
	ctx := &models.Context{}
	ctxPath := req.ContextPath
	if ctxPath == "" {
		ctxPath = req.File
	}
	if ctxPath != "" {
		res, err := s.ResolveContext(ctxPath, models.Context{})
		switch {
		case errors.Is(err, toolkit.ErrUnresolvableProject):
			s.log.Warn("launching without a context", "err", err)
		case err != nil:
			return launch.Information{}, err
		default:
			ctx = &res.Context
		}
	}

	file := req.File
	if file != "" {
		abs, err := config.NormalizePath(file)
		if err != nil {
			return launch.Information{}, err
		}
		file = abs
	}
	return s.Preparer().Prepare(req.Executable, req.Args, file, ctx)
}

// Redacted returns a copy of info with credentials in its environment masked.
func (s *Service) Redacted(info launch.Information) launch.Information {
	info.Env = redaction.Env(info.Env, s.getIgnorePatterns())
	return info
}

// Launch starts the host process described by info and returns its pid. The
// process is not waited for.
func (s *Service) Launch(info launch.Information, stdout, stderr io.Writer) (int, error) {
	cmd := exec.Command(info.Path, info.Args...) // #nosec G204 -- the executable is chosen by the user
	cmd.Dir = info.Dir
	cmd.Env = info.Environ(os.Environ())
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("launch %s: %w", info.Path, err)
	}
	pid := cmd.Process.Pid
	s.log.Info("launched host", "path", info.Path, "pid", pid, "args", strings.Join(info.Args, " "))
	if err := cmd.Process.Release(); err != nil {
		s.log.Warn("release process", "pid", pid, "err", err)
	}
	return pid, nil
}
