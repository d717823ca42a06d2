// Package setup registers and unregisters the tk-krita MCP server with
// supported agent clients (Claude Code, Cursor, Codex).
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ServerName is the key of the MCP server entry written into client configs.
const ServerName = "tk-krita"

// Result is the return value from all Setup/Uninstall functions.
type Result struct {
	Changed bool
	Message string
}

func changed(f string, a ...any) Result { return Result{Changed: true, Message: fmt.Sprintf(f, a...)} }
func unchanged(msg string) Result       { return Result{Message: msg} }

// serverArgs returns the arguments of the MCP server command. An explicit
// engine home is passed through so the server opens the same registry.
func serverArgs(home string) []string {
	if home == "" {
		return []string{"mcp"}
	}
	return []string{"--home", home, "mcp"}
}

func mcpEntry(home string) map[string]any {
	args := serverArgs(home)
	anyArgs := make([]any, len(args))
	for i, a := range args {
		anyArgs[i] = a
	}
	return map[string]any{
		"command": ServerName,
		"args":    anyArgs,
		"type":    "stdio",
	}
}

// ---------------------------------------------------------------------------
// Default path helpers
// ---------------------------------------------------------------------------

// DefaultClaudeHome returns the default ~/.claude directory.
func DefaultClaudeHome() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude")
}

// DefaultCursorHome returns the default ~/.cursor directory.
func DefaultCursorHome() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".cursor")
}

// DefaultCodexHome returns the default ~/.codex directory.
func DefaultCodexHome() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".codex")
}

// ---------------------------------------------------------------------------
// JSON helpers
// ---------------------------------------------------------------------------

func readJSON(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return make(map[string]any), nil
	}
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if m == nil {
		m = make(map[string]any)
	}
	return m, nil
}

func writeJSON(path string, data map[string]any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644) // #nosec G306 -- agent config files (MCP server entries) do not contain secrets
}

// installMCPServers adds the server under "mcpServers". An existing entry is
// left alone.
func installMCPServers(path, home string) (bool, error) {
	data, err := readJSON(path)
	if err != nil {
		return false, err
	}
	servers, _ := data["mcpServers"].(map[string]any)
	if servers == nil {
		servers = make(map[string]any)
		data["mcpServers"] = servers
	}
	if _, exists := servers[ServerName]; exists {
		return false, nil
	}
	servers[ServerName] = mcpEntry(home)
	return true, writeJSON(path, data)
}

func uninstallMCPServers(path string) (bool, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return false, nil
	}
	data, err := readJSON(path)
	if err != nil {
		return false, err
	}
	servers, _ := data["mcpServers"].(map[string]any)
	if _, exists := servers[ServerName]; !exists {
		return false, nil
	}
	delete(servers, ServerName)
	if len(servers) == 0 {
		delete(data, "mcpServers")
	}
	if len(data) == 0 {
		return true, os.Remove(path)
	}
	return true, writeJSON(path, data)
}

// ---------------------------------------------------------------------------
// TOML helpers (text-based; only handles the [mcp_servers.tk-krita] table)
// ---------------------------------------------------------------------------

const tomlHeader = "[mcp_servers." + ServerName + "]"

func tomlSection(home string) string {
	args := serverArgs(home)
	quoted := make([]string, len(args))
	for i, a := range args {
		quoted[i] = strconv.Quote(a)
	}
	return fmt.Sprintf("\n%s\ncommand = %q\nargs = [%s]\n", tomlHeader, ServerName, strings.Join(quoted, ", "))
}

func appendTOMLSection(path, home string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return false, err
	}
	if strings.Contains(string(data), tomlHeader) {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return false, err
	}
	defer f.Close()
	if _, err := f.WriteString(tomlSection(home)); err != nil {
		return false, err
	}
	return true, nil
}

func removeTOMLSection(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	content := string(data)
	if !strings.Contains(content, tomlHeader) {
		return false, nil
	}
	// Skip the header and its key-value pairs up to the next table header or EOF.
	lines := strings.Split(content, "\n")
	result := make([]string, 0, len(lines))
	inSection := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == tomlHeader {
			inSection = true
			continue
		}
		if inSection && strings.HasPrefix(trimmed, "[") {
			inSection = false
		}
		if !inSection {
			result = append(result, line)
		}
	}
	cleaned := strings.TrimSpace(strings.Join(result, "\n"))
	if cleaned == "" {
		return true, os.Remove(path)
	}
	return true, os.WriteFile(path, []byte(cleaned+"\n"), 0o644) // #nosec G306 -- agent TOML config is not a sensitive credential file
}

// ---------------------------------------------------------------------------
// Claude Code
// ---------------------------------------------------------------------------

//revive:disable:flag-parameter
func claudeMCPPath(claudeHome string, project bool) string {
	if project {
		return filepath.Join(filepath.Dir(claudeHome), ".mcp.json")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".claude.json")
}

// SetupClaudeCode registers the MCP server with Claude Code, in the project
// .mcp.json next to claudeHome when project is set, else in ~/.claude.json.
// claudeHome defaults to ~/.claude when empty.
func SetupClaudeCode(claudeHome string, project bool, home string) (Result, error) {
	if claudeHome == "" {
		claudeHome = DefaultClaudeHome()
	}
	path := claudeMCPPath(claudeHome, project)
	added, err := installMCPServers(path, home)
	if err != nil {
		return Result{}, fmt.Errorf("setup claude-code: %w", err)
	}
	if !added {
		return unchanged("Already installed"), nil
	}
	return changed("Installed: mcpServers in %s", path), nil
}

// UninstallClaudeCode removes the MCP server from Claude Code.
func UninstallClaudeCode(claudeHome string, project bool) (Result, error) {
	if claudeHome == "" {
		claudeHome = DefaultClaudeHome()
	}
	path := claudeMCPPath(claudeHome, project)
	done, err := uninstallMCPServers(path)
	if err != nil {
		return Result{}, fmt.Errorf("uninstall claude-code: %w", err)
	}
	if !done {
		return unchanged("Nothing to remove"), nil
	}
	return changed("Removed: mcpServers from %s", filepath.Base(path)), nil
}

//revive:enable:flag-parameter

// ---------------------------------------------------------------------------
// Cursor
// ---------------------------------------------------------------------------

// SetupCursor registers the MCP server in <cursorHome>/mcp.json.
// cursorHome defaults to ~/.cursor when empty.
func SetupCursor(cursorHome, home string) (Result, error) {
	if cursorHome == "" {
		cursorHome = DefaultCursorHome()
	}
	path := filepath.Join(cursorHome, "mcp.json")
	added, err := installMCPServers(path, home)
	if err != nil {
		return Result{}, fmt.Errorf("setup cursor: %w", err)
	}
	if !added {
		return unchanged("Already installed"), nil
	}
	return changed("Installed: mcpServers in %s", path), nil
}

// UninstallCursor removes the MCP server from Cursor.
func UninstallCursor(cursorHome string) (Result, error) {
	if cursorHome == "" {
		cursorHome = DefaultCursorHome()
	}
	done, err := uninstallMCPServers(filepath.Join(cursorHome, "mcp.json"))
	if err != nil {
		return Result{}, fmt.Errorf("uninstall cursor: %w", err)
	}
	if !done {
		return unchanged("Nothing to remove"), nil
	}
	return changed("Removed: mcpServers from mcp.json"), nil
}

// ---------------------------------------------------------------------------
// Codex
// ---------------------------------------------------------------------------

// SetupCodex appends the MCP server table to <codexHome>/config.toml.
// codexHome defaults to ~/.codex when empty.
func SetupCodex(codexHome, home string) (Result, error) {
	if codexHome == "" {
		codexHome = DefaultCodexHome()
	}
	path := filepath.Join(codexHome, "config.toml")
	added, err := appendTOMLSection(path, home)
	if err != nil {
		return Result{}, fmt.Errorf("setup codex: %w", err)
	}
	if !added {
		return unchanged("Already installed"), nil
	}
	return changed("Installed: %s in %s", tomlHeader, path), nil
}

// UninstallCodex removes the MCP server table from Codex.
func UninstallCodex(codexHome string) (Result, error) {
	if codexHome == "" {
		codexHome = DefaultCodexHome()
	}
	done, err := removeTOMLSection(filepath.Join(codexHome, "config.toml"))
	if err != nil {
		return Result{}, fmt.Errorf("uninstall codex: %w", err)
	}
	if !done {
		return unchanged("Nothing to remove"), nil
	}
	return changed("Removed: %s from config.toml", tomlHeader), nil
}
