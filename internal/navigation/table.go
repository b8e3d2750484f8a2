package navigation

import (
	"fmt"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// Route is one entry of the route table.
type Route struct {
	Path         string `yaml:"path"`
	Name         string `yaml:"name"`
	Title        string `yaml:"title"`
	RequiresAuth bool   `yaml:"requires_auth"`
	// Redirect, when set, sends every visit to another path.
	Redirect string `yaml:"redirect"`
}

// Table lists the known routes and the well-known destinations.
type Table struct {
	Routes []Route `yaml:"routes"`

	Login    string `yaml:"login"`
	Register string `yaml:"register"`
	Landing  string `yaml:"landing"` // where authenticated users start
	NotFound string `yaml:"not_found"`
}

// DefaultTable is the stock route layout of the application.
func DefaultTable() Table {
	return Table{
		Routes: []Route{
			{Path: "/", Redirect: "/home"},
			{Path: "/home", Redirect: "/login"},
			{Path: "/login", Name: "Login", Title: "Login"},
			{Path: "/register", Name: "Register", Title: "Register"},
			{Path: "/dashboard", Name: "Dashboard", Title: "Dashboard", RequiresAuth: true},
			{Path: "/workspace", Redirect: "/repo"},
			{Path: "/repo", Name: "Repo", RequiresAuth: true},
			{Path: "/file", Name: "File", RequiresAuth: true},
			{Path: "/chat", Name: "Chat", Title: "Chat", RequiresAuth: true},
			{Path: "/404", Name: "404", Title: "404"},
		},
		Login:    "/login",
		Register: "/register",
		Landing:  "/dashboard",
		NotFound: "/404",
	}
}

// LoadTable reads a YAML route table. ${VAR} references are expanded from
// the environment before parsing.
func LoadTable(file string) (Table, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Table{}, fmt.Errorf("reading route table: %w", err)
	}
	return ParseTable(data)
}

// ParseTable parses and validates a YAML route table.
func ParseTable(data []byte) (Table, error) {
	var t Table
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &t); err != nil {
		return Table{}, fmt.Errorf("parsing route table: %w", err)
	}
	if err := t.Validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// Validate checks that paths are absolute and unique and that every
// redirect and destination names a known route.
func (t Table) Validate() error {
	seen := make(map[string]bool, len(t.Routes))
	for _, r := range t.Routes {
		if !strings.HasPrefix(r.Path, "/") {
			return fmt.Errorf("route %q: path must start with /", r.Path)
		}
		p := cleanPath(r.Path)
		if seen[p] {
			return fmt.Errorf("route %q defined twice", p)
		}
		seen[p] = true
	}
	for _, r := range t.Routes {
		if r.Redirect != "" && !seen[cleanPath(r.Redirect)] {
			return fmt.Errorf("route %q redirects to unknown %q", r.Path, r.Redirect)
		}
	}
	for name, dest := range map[string]string{"login": t.Login, "landing": t.Landing, "not_found": t.NotFound} {
		if dest == "" {
			return fmt.Errorf("route table: %s destination is required", name)
		}
		if !seen[cleanPath(dest)] {
			return fmt.Errorf("route table: %s destination %q is not a route", name, dest)
		}
	}
	if t.Register != "" && !seen[cleanPath(t.Register)] {
		return fmt.Errorf("route table: register destination %q is not a route", t.Register)
	}
	return nil
}

// Lookup finds the route for p.
func (t Table) Lookup(p string) (Route, bool) {
	p = cleanPath(p)
	for _, r := range t.Routes {
		if cleanPath(r.Path) == p {
			return r, true
		}
	}
	return Route{}, false
}

func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}
