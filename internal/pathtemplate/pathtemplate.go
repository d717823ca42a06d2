// Package pathtemplate turns executable path templates with named
// placeholders, such as "/opt/krita-{version}-{mach}.appimage", into a glob
// used to enumerate candidates and an anchored regular expression used to
// extract the placeholder values from each candidate.
package pathtemplate

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ErrUnknownPlaceholder is returned when a template references a placeholder
// missing from the component lookup.
var ErrUnknownPlaceholder = errors.New("unknown placeholder")

var placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Match is a concrete path that satisfied a template, with the substring
// captured for each placeholder.
type Match struct {
	Path   string
	Values map[string]string
}

// Matcher is a compiled template.
type Matcher struct {
	template string
	keys     []string
	glob     string
	re       *regexp.Regexp
}

// Option tweaks compilation.
type Option func(*options)

type options struct {
	foldCase bool
}

// WithFoldCase makes the regex form case-insensitive, for platforms whose
// filesystems are.
func WithFoldCase() Option {
	return func(o *options) { o.foldCase = true }
}

// Compile builds a Matcher for template. lookup maps each placeholder name
// to the regex fragment its value must match.
func Compile(template string, lookup map[string]string, opts ...Option) (*Matcher, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var (
		glob  strings.Builder
		expr  strings.Builder
		keys  []string
		seen  = make(map[string]bool)
		start int
	)
	if o.foldCase {
		expr.WriteString("(?i)")
	}
	expr.WriteString("^")

	for _, loc := range placeholderRe.FindAllStringSubmatchIndex(template, -1) {
		literal := template[start:loc[0]]
		glob.WriteString(escapeGlob(literal))
		expr.WriteString(regexp.QuoteMeta(literal))

		key := template[loc[2]:loc[3]]
		frag, ok := lookup[key]
		if !ok {
			return nil, fmt.Errorf("pathtemplate: %q: %w {%s}", template, ErrUnknownPlaceholder, key)
		}
		glob.WriteString("*")
		if seen[key] {
			// No backreferences in RE2: later occurrences only match the fragment.
			fmt.Fprintf(&expr, "(?:%s)", frag)
		} else {
			fmt.Fprintf(&expr, "(?P<%s>%s)", key, frag)
			keys = append(keys, key)
			seen[key] = true
		}
		start = loc[1]
	}
	literal := template[start:]
	glob.WriteString(escapeGlob(literal))
	expr.WriteString(regexp.QuoteMeta(literal))
	expr.WriteString("$")

	re, err := regexp.Compile(expr.String())
	if err != nil {
		return nil, fmt.Errorf("pathtemplate: %q: %w", template, err)
	}
	return &Matcher{template: template, keys: keys, glob: glob.String(), re: re}, nil
}

// Template returns the source template.
func (m *Matcher) Template() string { return m.template }

// Glob returns the filesystem glob form of the template.
func (m *Matcher) Glob() string { return m.glob }

// Regexp returns the regex form of the template.
func (m *Matcher) Regexp() *regexp.Regexp { return m.re }

// Keys returns the placeholder names in order of first appearance.
func (m *Matcher) Keys() []string { return append([]string(nil), m.keys...) }

// MatchPath re-matches a concrete path against the regex form and returns the
// extracted placeholder values.
func (m *Matcher) MatchPath(path string) (Match, bool) {
	sub := m.re.FindStringSubmatch(path)
	if sub == nil {
		return Match{}, false
	}
	values := make(map[string]string, len(m.keys))
	for i, name := range m.re.SubexpNames() {
		if name != "" {
			values[name] = sub[i]
		}
	}
	return Match{Path: path, Values: values}, true
}

// Scan globs the filesystem and returns every candidate that matches the
// regex form, in the order the glob produced them.
func (m *Matcher) Scan() ([]Match, error) {
	candidates, err := filepath.Glob(m.glob)
	if err != nil {
		return nil, fmt.Errorf("pathtemplate: glob %q: %w", m.glob, err)
	}
	matches := make([]Match, 0, len(candidates))
	for _, p := range candidates {
		if match, ok := m.MatchPath(p); ok {
			matches = append(matches, match)
		}
	}
	return matches, nil
}

// escapeGlob protects glob metacharacters in literal template text. Backslash
// is the separator on Windows, so metacharacters are wrapped in character
// classes there instead.
func escapeGlob(s string) string {
	if filepath.Separator == '\\' {
		r := strings.NewReplacer("[", "[[]", "*", "[*]", "?", "[?]")
		return r.Replace(s)
	}
	r := strings.NewReplacer(`\`, `\\`, "[", `\[`, "*", `\*`, "?", `\?`)
	return r.Replace(s)
}
