// Package redaction masks credentials in launch environments before they are
// printed or returned to tool clients.
package redaction

import (
	"bufio"
	"os"
	"regexp"
	"strings"
)

// sensitiveKeyRe matches variable names whose whole value is masked.
var sensitiveKeyRe = regexp.MustCompile(`(?i)(token|secret|passw(or)?d|api[_-]?key|credential|private[_-]?key|session[_-]?id)`)

// sensitivePatterns are applied to every value.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`ghp_[a-zA-Z0-9]+`),                     // GitHub PATs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),                     // AWS access key IDs
	regexp.MustCompile(`xoxb-[a-zA-Z0-9-]+`),                   // Slack bot tokens
	regexp.MustCompile(`-----BEGIN (?:RSA )?PRIVATE KEY-----`), // Private keys
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+`), // JWT tokens
	regexp.MustCompile(`(?i)(?:password|secret)\s*[:=]\s*\S+`), // password=... inside a value
}

// userinfoRe matches the password part of URLs such as https://user:pw@host.
var userinfoRe = regexp.MustCompile(`(://[^/:@\s]+:)[^/@\s]+@`)

const replacement = "[REDACTED]"

// Value masks credentials inside a single value: URL passwords, built-in
// token patterns, then caller-supplied extraPatterns (see LoadIgnore).
func Value(value string, extraPatterns []*regexp.Regexp) string {
	value = userinfoRe.ReplaceAllString(value, "${1}"+replacement+"@")
	for _, re := range sensitivePatterns {
		value = re.ReplaceAllString(value, replacement)
	}
	for _, re := range extraPatterns {
		value = re.ReplaceAllString(value, replacement)
	}
	return value
}

// Env returns a copy of env with sensitive variables fully masked and every
// other value passed through Value.
func Env(env map[string]string, extraPatterns []*regexp.Regexp) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[k] = redactVar(k, v, extraPatterns)
	}
	return out
}

// Pairs redacts KEY=VALUE pairs as produced by os.Environ.
func Pairs(pairs []string, extraPatterns []*regexp.Regexp) []string {
	out := make([]string, len(pairs))
	for i, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			out[i] = kv
			continue
		}
		out[i] = k + "=" + redactVar(k, v, extraPatterns)
	}
	return out
}

func redactVar(key, value string, extraPatterns []*regexp.Regexp) string {
	if value != "" && sensitiveKeyRe.MatchString(key) {
		return replacement
	}
	return Value(value, extraPatterns)
}

// LoadIgnore reads an ignore file (one regular expression per non-blank,
// non-comment line) and compiles its patterns.
// Returns nil (no error) if the file does not exist.
func LoadIgnore(path string) ([]*regexp.Regexp, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []*regexp.Regexp
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return patterns, scanner.Err()
}
