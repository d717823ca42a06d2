// Package mcp provides the stdio MCP server exposing software discovery,
// context resolution and launch preparation to tool clients.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/go-ports/tk-krita/internal/buildinfo"
	"github.com/go-ports/tk-krita/internal/launch"
	"github.com/go-ports/tk-krita/internal/models"
	"github.com/go-ports/tk-krita/internal/service"
	"github.com/go-ports/tk-krita/internal/toolkit"
)

const scanDescription = `List the installed copies of Krita that can be launched with the pipeline integration. Versions below the configured minimum are reported under "skipped" with the reason.` //nolint:lll

const resolveDescription = `Resolve the pipeline context (project, entity, task) of a file or directory from the project registry. Returns "resolved": false when the path is outside every registered project.` //nolint:lll

const launchDescription = `Prepare, without starting it, the process that launches Krita with the pipeline integration. Returns the executable, arguments, working directory and environment; credentials in the environment are redacted.` //nolint:lll

// NewServer creates and registers all tools on a new MCP server.
// It is separate from Serve so that tests and other callers can obtain a
// fully configured server without committing to the stdio transport.
func NewServer(svc *service.Service) *mcpserver.MCPServer {
	s := mcpserver.NewMCPServer("tk-krita", buildinfo.Version)
	registerTools(s, svc)
	return s
}

// Serve starts the stdio MCP server for home, blocking until stdin closes.
func Serve(_ context.Context, home string, log *slog.Logger) error {
	svc, err := service.New(home, log)
	if err != nil {
		return fmt.Errorf("mcp: init service: %w", err)
	}
	defer svc.Close()

	return mcpserver.ServeStdio(NewServer(svc))
}

func registerTools(s *mcpserver.MCPServer, svc *service.Service) {
	s.AddTool(mcp.NewTool("software_scan",
		mcp.WithDescription(scanDescription),
	), func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleScan(svc)
	})

	s.AddTool(mcp.NewTool("context_resolve",
		mcp.WithDescription(resolveDescription),
		mcp.WithString("path",
			mcp.Description("Absolute path of a document or directory."),
			mcp.Required(),
		),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleResolve(svc, req)
	})

	s.AddTool(mcp.NewTool("launch_prepare",
		mcp.WithDescription(launchDescription),
		mcp.WithString("executable",
			mcp.Description("Path of the Krita executable, usually one returned by software_scan."),
			mcp.Required(),
		),
		mcp.WithString("file",
			mcp.Description("Document to open."),
		),
		mcp.WithString("context_path",
			mcp.Description("Path the context is resolved from. Defaults to file."),
		),
	), func(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleLaunch(svc, req)
	})
}

// ---------------------------------------------------------------------------
// Tool handlers
// ---------------------------------------------------------------------------

func handleScan(svc *service.Service) (*mcp.CallToolResult, error) {
	report := svc.Scan()

	skipped := make([]map[string]any, 0, len(report.Skipped))
	for _, s := range report.Skipped {
		skipped = append(skipped, map[string]any{"subject": s.Subject, "reason": s.Reason})
	}
	found := report.Found
	if found == nil {
		found = make([]models.SoftwareVersion, 0)
	}
	return jsonResult(map[string]any{
		"found":   found,
		"skipped": skipped,
	})
}

func handleResolve(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path := req.GetString("path", "")
	if path == "" {
		return mcp.NewToolResultError("path is required"), nil
	}

	res, err := svc.ResolveContext(path, models.Context{})
	if errors.Is(err, toolkit.ErrUnresolvableProject) {
		return jsonResult(map[string]any{
			"resolved": false,
			"path":     path,
			"label":    models.Context{}.String(),
		})
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]any{
		"resolved":   true,
		"path":       res.Path,
		"project":    res.Project,
		"root":       res.Root,
		"context":    res.Context,
		"label":      res.Label,
		"serialized": res.Serialized,
	})
}

func handleLaunch(svc *service.Service, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	info, err := svc.PrepareLaunch(service.LaunchRequest{
		Executable:  req.GetString("executable", ""),
		File:        req.GetString("file", ""),
		ContextPath: req.GetString("context_path", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	info = svc.Redacted(info)
	return jsonResult(map[string]any{
		"path": info.Path,
		"args": nonNil(info.Args),
		"dir":  info.Dir,
		"env":  envList(info),
	})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(b)), nil
}

// envList returns the prepared variables as name/value pairs in name order.
func envList(info launch.Information) []map[string]string {
	names := make([]string, 0, len(info.Env))
	for k := range info.Env {
		names = append(names, k)
	}
	sort.Strings(names)

	out := make([]map[string]string, 0, len(names))
	for _, k := range names {
		out = append(out, map[string]string{"name": k, "value": info.Env[k]})
	}
	return out
}

func nonNil(s []string) []string {
	if s == nil {
		return make([]string, 0)
	}
	return s
}
