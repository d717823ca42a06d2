// Package launch assembles the environment a host process needs to start the
// engine. It does not spawn the process itself.
package launch

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-ports/tk-krita/internal/models"
	"github.com/go-ports/tk-krita/internal/toolkit"
)

// Environment variables shared with the in-host bootstrap.
const (
	EnvPythonPath   = "PYTHONPATH"
	EnvSearchPath   = "SG_PYTHONPATH"
	EnvEngine       = "SGTK_ENGINE"
	EnvContext      = "SGTK_CONTEXT"
	listSeparator   = string(os.PathListSeparator)
	defaultEngineID = "tk-krita"
)

// Information describes how to launch one host process.
type Information struct {
	Path string            `json:"path"`
	Args []string          `json:"args"`
	Dir  string            `json:"dir,omitempty"`
	Env  map[string]string `json:"env"`
}

// Environ overlays the launch variables onto base (KEY=VALUE pairs, as from
// os.Environ) and returns the result. Variables not present in base are
// appended in sorted order.
func (i Information) Environ(base []string) []string {
	out := make([]string, 0, len(base)+len(i.Env))
	seen := make(map[string]bool, len(i.Env))
	for _, kv := range base {
		k, _, _ := strings.Cut(kv, "=")
		if v, ok := i.Env[k]; ok {
			out = append(out, k+"="+v)
			seen[k] = true
			continue
		}
		out = append(out, kv)
	}
	keys := make([]string, 0, len(i.Env))
	for k := range i.Env {
		if !seen[k] {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	for _, k := range keys {
		out = append(out, k+"="+i.Env[k])
	}
	return out
}

// Preparer builds launch information for an engine whose startup scripts live
// in StartupDir.
type Preparer struct {
	EngineName string
	StartupDir string
	// Getenv reads the launching process environment; defaults to os.Getenv.
	Getenv func(string) string
}

// Prepare returns the launch information for execPath. fileToOpen may be
// empty; ctx may be nil when the host should start without a context.
func (p Preparer) Prepare(execPath string, args []string, fileToOpen string, ctx *models.Context) (Information, error) {
	if execPath == "" {
		return Information{}, errors.New("prepare launch: executable path is required")
	}
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	engine := p.EngineName
	if engine == "" {
		engine = defaultEngineID
	}

	info := Information{
		Path: execPath,
		Args: slices.Clone(args),
		Env:  map[string]string{EnvEngine: engine},
	}
	if info.Args == nil {
		info.Args = []string{}
	}

	if p.StartupDir != "" {
		pythonPath := appendPath(getenv(EnvPythonPath), p.StartupDir)
		info.Env[EnvPythonPath] = pythonPath
		info.Env[EnvSearchPath] = pythonPath
	}

	if ctx != nil {
		blob, err := toolkit.Serialize(*ctx)
		if err != nil {
			return Information{}, err
		}
		info.Env[EnvContext] = blob
	}

	if fileToOpen != "" {
		info.Args = append(info.Args, fileToOpen)
		info.Dir = filepath.Dir(fileToOpen)
	}
	return info, nil
}

// appendPath adds dir to a path list unless it is already there.
func appendPath(list, dir string) string {
	if list == "" {
		return dir
	}
	if slices.Contains(strings.Split(list, listSeparator), dir) {
		return list
	}
	return list + listSeparator + dir
}

// SplitPathList splits a search path list such as SG_PYTHONPATH, dropping
// empty entries.
func SplitPathList(list string) []string {
	var out []string
	for _, p := range strings.Split(list, listSeparator) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
