// Package software discovers installed copies of the host application from
// per-platform executable path templates.
package software

import (
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"

	"github.com/go-ports/tk-krita/internal/config"
	"github.com/go-ports/tk-krita/internal/models"
	"github.com/go-ports/tk-krita/internal/pathtemplate"
)

// Options configures a Scanner.
type Options struct {
	ProductName    string
	MinimumVersion string   // empty disables the minimum-version filter
	Versions       []string // optional allow-list of exact versions
	Templates      []string // executable templates for the current platform
	Components     map[string]string
	DefaultIcon    string // bundled icon used when no platform icon exists
	IconName       string // file name of the platform icon near the executable
	GOOS           string // defaults to runtime.GOOS
	Logger         *slog.Logger
}

// Skipped records a template or candidate that did not produce a result.
type Skipped struct {
	Subject string // template or executable path
	Reason  string
}

// Report is the outcome of a scan: supported versions in discovery order and
// everything that was left out.
type Report struct {
	Found   []models.SoftwareVersion
	Skipped []Skipped
}

// Scanner enumerates installed host executables. It holds no state between
// calls; every Scan walks the filesystem again.
type Scanner struct {
	opts Options
	log  *slog.Logger
}

// NewScanner returns a Scanner for opts.
func NewScanner(opts Options) *Scanner {
	if opts.GOOS == "" {
		opts.GOOS = runtime.GOOS
	}
	if opts.ProductName == "" {
		opts.ProductName = "Krita"
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Scanner{opts: opts, log: log}
}

// FromConfig builds a Scanner for the running platform from cfg.
func FromConfig(cfg *config.Config, home string, log *slog.Logger) *Scanner {
	return NewScanner(Options{
		ProductName:    cfg.Software.ProductName,
		MinimumVersion: cfg.Software.MinimumVersion,
		Versions:       cfg.Software.Versions,
		Templates:      cfg.Software.Templates[runtime.GOOS],
		Components:     cfg.Software.Components,
		DefaultIcon:    cfg.DefaultIcon(home),
		IconName:       cfg.Software.IconName,
		Logger:         log,
	})
}

// Scan returns the supported executables in discovery order.
func (s *Scanner) Scan() []models.SoftwareVersion {
	return s.ScanReport().Found
}

// ScanReport runs a scan and returns both the results and the skipped entries.
func (s *Scanner) ScanReport() Report {
	s.log.Debug("Scanning for executables...", "product", s.opts.ProductName)

	report := Report{Found: make([]models.SoftwareVersion, 0)}
	for _, sw := range s.find(&report) {
		if ok, reason := s.isSupported(sw); !ok {
			s.log.Debug("SoftwareVersion is not supported", "software", sw.String(), "reason", reason)
			report.Skipped = append(report.Skipped, Skipped{Subject: sw.Path, Reason: reason})
			continue
		}
		report.Found = append(report.Found, sw)
	}
	return report
}

func (s *Scanner) find(report *Report) []models.SoftwareVersion {
	var opts []pathtemplate.Option
	if s.opts.GOOS == "windows" {
		opts = append(opts, pathtemplate.WithFoldCase())
	}

	var found []models.SoftwareVersion
	for _, tmpl := range s.opts.Templates {
		s.log.Debug("Processing template", "template", tmpl)

		m, err := pathtemplate.Compile(expandTemplate(tmpl), s.opts.Components, opts...)
		if err != nil {
			s.log.Warn("skipping executable template", "template", tmpl, "err", err)
			report.Skipped = append(report.Skipped, Skipped{Subject: tmpl, Reason: err.Error()})
			continue
		}
		matches, err := m.Scan()
		if err != nil {
			s.log.Warn("skipping executable template", "template", tmpl, "err", err)
			report.Skipped = append(report.Skipped, Skipped{Subject: tmpl, Reason: err.Error()})
			continue
		}
		for _, match := range matches {
			found = append(found, models.SoftwareVersion{
				Version:     match.Values["version"],
				ProductName: s.opts.ProductName,
				Path:        match.Path,
				Icon:        s.iconFromExecutable(match.Path),
			})
		}
	}
	return found
}

// isSupported applies the version allow-list and the minimum-version filter.
func (s *Scanner) isSupported(sw models.SoftwareVersion) (bool, string) {
	if len(s.opts.Versions) > 0 && !slices.Contains(s.opts.Versions, sw.Version) {
		return false, "version " + quoteVersion(sw.Version) + " is not in the supported versions list"
	}
	if s.opts.MinimumVersion == "" {
		return true, ""
	}
	ok, err := AtLeast(sw.Version, s.opts.MinimumVersion)
	if err != nil {
		return false, err.Error()
	}
	if !ok {
		return false, "version " + quoteVersion(sw.Version) + " is older than the minimum supported version " + s.opts.MinimumVersion
	}
	return true, ""
}

func quoteVersion(v string) string {
	if v == "" {
		return "<none>"
	}
	return v
}

// iconFromExecutable walks the icon fallback chain: a platform icon near the
// executable, then the bundled default icon, then none.
func (s *Scanner) iconFromExecutable(execPath string) string {
	for _, candidate := range iconCandidates(s.opts.GOOS, execPath, s.opts.IconName) {
		if fileExists(candidate) {
			s.log.Debug("Resolved icon path", "icon", candidate, "executable", execPath)
			return candidate
		}
	}
	if s.opts.DefaultIcon != "" && fileExists(s.opts.DefaultIcon) {
		s.log.Debug("Couldn't find application icon. Using engine icon.", "executable", execPath)
		return s.opts.DefaultIcon
	}
	s.log.Debug("No icon found", "executable", execPath)
	return ""
}

// iconCandidates lists where a platform icon may live relative to execPath.
func iconCandidates(goos, execPath, iconName string) []string {
	if iconName == "" {
		return nil
	}
	var out []string
	switch goos {
	case "darwin":
		// e.g. /Applications/krita.app/Contents/MacOS/krita
		if i := strings.Index(execPath, ".app/"); i >= 0 {
			bundle := execPath[:i+len(".app")]
			out = append(out, filepath.Join(bundle, "Contents", "Resources", iconName))
		}
	default:
		// e.g. C:\Program Files\Krita (x64)\bin\krita.exe or /opt/krita/bin/krita
		sep := string(filepath.Separator) + "bin" + string(filepath.Separator)
		if i := strings.LastIndex(execPath, sep); i >= 0 {
			base := execPath[:i]
			out = append(out,
				filepath.Join(base, "share", "icons", "hicolor", "256x256", "apps", iconName),
				filepath.Join(base, "icons", iconName),
			)
		}
	}
	return append(out, filepath.Join(filepath.Dir(execPath), iconName))
}

func expandTemplate(tmpl string) string {
	if tmpl == "~" || strings.HasPrefix(tmpl, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			tmpl = home + tmpl[1:]
		}
	}
	return os.ExpandEnv(tmpl)
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
