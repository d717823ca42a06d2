// Package checkers holds quicktest checkers shared by the test suites.
package checkers

import (
	"encoding/json"
	"fmt"

	qt "github.com/frankban/quicktest"
	"github.com/yalp/jsonpath"
)

type jsonPathChecker struct {
	path string
}

// JSONPathEquals returns a checker that decodes the got value (a string or
// byte slice holding JSON), reads path from it and compares the result with
// the wanted value using qt.DeepEquals. JSON numbers decode as float64.
//
//	c.Assert(out, checkers.JSONPathEquals("$.found[0].version"), "5.2.2")
func JSONPathEquals(path string) qt.Checker {
	return &jsonPathChecker{path: path}
}

// ArgNames implements qt.Checker.
func (c *jsonPathChecker) ArgNames() []string {
	return []string{"got", "want"}
}

// Check implements qt.Checker.
func (c *jsonPathChecker) Check(got any, args []any, note func(key string, value any)) error {
	var raw []byte
	switch v := got.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		note("type", fmt.Sprintf("%T", got))
		return qt.BadCheckf("got must be a JSON string or byte slice")
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("cannot decode JSON: %w", err)
	}
	value, err := jsonpath.Read(doc, c.path)
	if err != nil {
		note("path", c.path)
		return fmt.Errorf("cannot read path: %w", err)
	}
	note("path", c.path)
	return qt.DeepEquals.Check(value, args, note)
}
