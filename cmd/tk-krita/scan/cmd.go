// Package scancmd implements the `tk-krita scan` command.
package scancmd

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/go-ports/tk-krita/cmd/tk-krita/shared"
	"github.com/go-ports/tk-krita/internal/models"
	"github.com/go-ports/tk-krita/internal/software"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// Command implements `tk-krita scan`.
type Command struct {
	ctx *shared.Context
	cmd *cobra.Command

	asJSON bool
}

// New creates the scan command.
func New(ctx *shared.Context) *Command {
	c := &Command{ctx: ctx}
	c.cmd = &cobra.Command{
		Use:   "scan",
		Short: "List installed Krita executables that can be launched",
		RunE:  c.run,
	}
	c.cmd.Flags().BoolVar(&c.asJSON, "json", false, "Print the scan report as JSON")
	return c
}

// Cmd returns the cobra command.
func (c *Command) Cmd() *cobra.Command { return c.cmd }

func (c *Command) run(cmd *cobra.Command, _ []string) error {
	svc, err := c.ctx.OpenService(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer svc.Close()

	report := svc.Scan()
	out := cmd.OutOrStdout()

	if c.asJSON {
		b, err := json.MarshalIndent(toJSON(report), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}

	if len(report.Found) == 0 {
		fmt.Fprintln(out, "No supported Krita executables found.")
	} else {
		fmt.Fprintln(out, Render(report))
	}
	for _, s := range report.Skipped {
		fmt.Fprintln(out, skippedStyle.Render(fmt.Sprintf("skipped %s: %s", s.Subject, s.Reason)))
	}
	return nil
}

// Render draws the supported versions as a table.
func Render(report software.Report) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PRODUCT", "VERSION", "PATH", "ICON").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, sw := range report.Found {
		version := sw.Version
		if version == "" {
			version = "-"
		}
		t.Row(sw.ProductName, version, sw.Path, sw.Icon)
	}
	return t.String()
}

type jsonSkipped struct {
	Subject string `json:"subject"`
	Reason  string `json:"reason"`
}

type jsonReport struct {
	Found   []models.SoftwareVersion `json:"found"`
	Skipped []jsonSkipped            `json:"skipped"`
}

func toJSON(report software.Report) jsonReport {
	skipped := make([]jsonSkipped, 0, len(report.Skipped))
	for _, s := range report.Skipped {
		skipped = append(skipped, jsonSkipped{Subject: s.Subject, Reason: s.Reason})
	}
	return jsonReport{Found: report.Found, Skipped: skipped}
}
