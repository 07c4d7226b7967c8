// File: internal/route/route.go
// Package route defines the declarative navigation model: a named set of
// routes, each an acyclic chain of levels describing how to walk a framed
// web interface down to its terminal data tables. The model is pure data;
// all behavior beyond load-time validation lives in the traversal engine.
package route

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// Level is one node of the navigation tree, corresponding to one logical
// screen of the target interface.
//
// Shape rules, enforced by Validate:
//   - ListSelector set: a branch level fanning out over sibling items.
//   - TableID set and no NextLevel: a leaf level exposing a data table.
//   - Neither set: a pure pass-through, which must have a NextLevel.
type Level struct {
	Name string `yaml:"-"`

	// Trigger is an optional element id clicked before entering the level.
	Trigger string `yaml:"trigger,omitempty"`

	// ListSelector locates the repeated sibling items of a branch level.
	// NameSelector locates, relative to one item, its display name.
	ListSelector string `yaml:"list_selector,omitempty"`
	NameSelector string `yaml:"name_selector,omitempty"`

	// NextLevel references a deeper level within the same route.
	NextLevel string `yaml:"next_level,omitempty"`

	// TableID is the element id of the terminal data table.
	TableID string `yaml:"table_id,omitempty"`
}

// IsBranch reports whether the level fans out over a list of items.
func (l *Level) IsBranch() bool { return l.ListSelector != "" }

// IsLeaf reports whether the level terminates in a data table.
func (l *Level) IsLeaf() bool { return l.TableID != "" && l.NextLevel == "" }

// Route is an immutable, named tree of levels rooted at the numerically
// lowest level identifier.
type Route struct {
	Name string `yaml:"-"`

	// Artifact is the output file name for this route.
	Artifact string `yaml:"artifact"`

	// BaseHeaders are prefixed before the resolved table headers when the
	// artifact is written (partition key first, then ancestor levels).
	BaseHeaders []string `yaml:"base_headers,omitempty"`

	Levels map[string]*Level `yaml:"levels"`
}

// Set is the full route configuration supplied once at process start,
// plus the selectors shared by every route on the target site.
type Set struct {
	// StartURL is the entry page of the target interface.
	StartURL string `yaml:"start_url"`

	// MainFrame is the name of the primary content frame every level's
	// elements live in.
	MainFrame string `yaml:"main_frame"`

	// YearDropdown is the element id of the partition-key selector.
	YearDropdown string `yaml:"year_dropdown"`

	Routes map[string]*Route `yaml:"routes"`
}

// LoadFile reads and validates a route set from a YAML file. The path may
// be ~-prefixed.
func LoadFile(path string) (*Set, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding routes path %q: %w", path, err)
	}
	raw, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("reading routes file: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a route set from YAML bytes.
func Parse(raw []byte) (*Set, error) {
	var s Set
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decoding routes file: %w", err)
	}
	// Back-fill the names maps keys carry.
	for name, r := range s.Routes {
		r.Name = name
		for lname, l := range r.Levels {
			l.Name = lname
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Route returns the named route or an error listing what is available.
func (s *Set) Route(name string) (*Route, error) {
	r, ok := s.Routes[name]
	if !ok {
		return nil, fmt.Errorf("unknown route %q (available: %s)", name, strings.Join(s.Names(), ", "))
	}
	return r, nil
}

// Names returns the route names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.Routes))
	for name := range s.Routes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the whole set: global selectors present, every route
// well formed.
func (s *Set) Validate() error {
	if s.StartURL == "" {
		return fmt.Errorf("routes file: start_url is required")
	}
	if s.MainFrame == "" {
		return fmt.Errorf("routes file: main_frame is required")
	}
	if len(s.Routes) == 0 {
		return fmt.Errorf("routes file: no routes defined")
	}
	for _, name := range s.Names() {
		if err := s.Routes[name].Validate(); err != nil {
			return fmt.Errorf("route %q: %w", name, err)
		}
	}
	return nil
}

// Level returns the named level, or nil if the route does not define it.
func (r *Route) Level(name string) *Level { return r.Levels[name] }

// Root returns the name of the route's entry level: the one with the
// numerically lowest identifier suffix (level_1 before level_2, and so on).
func (r *Route) Root() (string, error) {
	best := ""
	bestN := 0
	for name := range r.Levels {
		n, err := levelOrdinal(name)
		if err != nil {
			return "", err
		}
		if best == "" || n < bestN {
			best, bestN = name, n
		}
	}
	if best == "" {
		return "", fmt.Errorf("route has no levels")
	}
	return best, nil
}

// Validate enforces the structural invariants the traversal engine relies
// on: resolvable next-level references, no cycles (the engine has no
// run-time cycle detection), and a recognizable shape for every level.
func (r *Route) Validate() error {
	if r.Artifact == "" {
		return fmt.Errorf("artifact is required")
	}
	if len(r.Levels) == 0 {
		return fmt.Errorf("no levels defined")
	}
	for name, l := range r.Levels {
		if _, err := levelOrdinal(name); err != nil {
			return err
		}
		if l.NextLevel != "" {
			if _, ok := r.Levels[l.NextLevel]; !ok {
				return fmt.Errorf("level %q: next_level %q does not exist", name, l.NextLevel)
			}
		}
		if l.ListSelector != "" && l.NameSelector == "" {
			return fmt.Errorf("level %q: list_selector requires name_selector", name)
		}
		if l.ListSelector == "" && l.NameSelector != "" {
			return fmt.Errorf("level %q: name_selector requires list_selector", name)
		}
		if l.ListSelector != "" && l.TableID != "" {
			return fmt.Errorf("level %q: list_selector and table_id are mutually exclusive", name)
		}
		if l.ListSelector == "" && l.TableID == "" && l.NextLevel == "" {
			return fmt.Errorf("level %q: a pass-through level requires next_level", name)
		}
	}
	return r.checkCycles()
}

// checkCycles follows every level's next_level chain; because each level
// has at most one outgoing edge a simple pointer walk suffices.
func (r *Route) checkCycles() error {
	for start := range r.Levels {
		seen := map[string]bool{}
		cur := start
		for cur != "" {
			if seen[cur] {
				return fmt.Errorf("cycle detected through level %q", cur)
			}
			seen[cur] = true
			cur = r.Levels[cur].NextLevel
		}
	}
	return nil
}

// levelOrdinal parses the trailing numeric identifier of a level name
// (e.g. "level_3" -> 3).
func levelOrdinal(name string) (int, error) {
	idx := strings.LastIndex(name, "_")
	if idx < 0 || idx == len(name)-1 {
		return 0, fmt.Errorf("level name %q must end in a numeric suffix (e.g. level_1)", name)
	}
	n, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("level name %q must end in a numeric suffix (e.g. level_1)", name)
	}
	return n, nil
}
