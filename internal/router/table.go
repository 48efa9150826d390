// Package router holds the application route table and performs guarded
// navigation between routes.
package router

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	domainauth "github.com/skala/skip-session/internal/domain/auth"
	apperrors "github.com/skala/skip-session/internal/errors"
	"gopkg.in/yaml.v3"
)

//go:embed routes.yaml
var defaultRoutes []byte

// Table is an immutable set of routes indexed by path.
type Table struct {
	routes []domainauth.Route
	byPath map[string]domainauth.Route
}

// DefaultTable parses the embedded application route table.
func DefaultTable() (*Table, error) {
	return ParseTable(defaultRoutes)
}

// ParseTable reads a route table from YAML.
func ParseTable(data []byte) (*Table, error) {
	var doc struct {
		Routes []domainauth.Route `yaml:"routes"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse route table: %w", err)
	}
	return NewTable(doc.Routes)
}

// NewTable validates routes and builds a Table.
func NewTable(routes []domainauth.Route) (*Table, error) {
	if len(routes) == 0 {
		return nil, errors.New("route table is empty")
	}

	t := &Table{byPath: make(map[string]domainauth.Route, len(routes))}
	for _, r := range routes {
		if !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route %q: path must start with /", r.Name)
		}
		if _, dup := t.byPath[r.Path]; dup {
			return nil, fmt.Errorf("route %q: duplicate path %s", r.Name, r.Path)
		}
		t.byPath[r.Path] = r
		t.routes = append(t.routes, r)
	}
	return t, nil
}

// Lookup resolves a path, ignoring any query string or trailing slash.
func (t *Table) Lookup(path string) (domainauth.Route, error) {
	p := path
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	r, ok := t.byPath[p]
	if !ok {
		return domainauth.Route{}, apperrors.NotFoundf("route not found: %s", path)
	}
	return r, nil
}

// Routes returns the routes in declaration order.
func (t *Table) Routes() []domainauth.Route {
	return append([]domainauth.Route(nil), t.routes...)
}
