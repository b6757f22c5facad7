// Package collections manages the YAML list of collections a backfill run targets.
package collections

import (
	"fmt"
	"os"
	"sort"

	"github.com/thebtf/chroma-backfill/internal/vector/chroma"
	"gopkg.in/yaml.v3"
)

// Collection is one backfill target: a Chroma collection and the project
// whose records it receives.
type Collection struct {
	Name        string `yaml:"name"`
	Project     string `yaml:"project"`
	Description string `yaml:"description"`
}

// Config is the top-level YAML structure.
type Config struct {
	Collections []Collection `yaml:"collections"`
}

// Registry holds loaded collections, keyed by name.
type Registry struct {
	byName map[string]*Collection
	order  []string // preserves definition order
}

// Load reads the YAML file at path and returns a Registry.
// If the file does not exist, Load returns an empty Registry (not an error).
// A collection without a name gets the memory worker's name for its project.
func Load(path string) (*Registry, error) {
	// #nosec G304 -- path is supplied by the operator
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{byName: make(map[string]*Collection)}, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	r := &Registry{
		byName: make(map[string]*Collection, len(cfg.Collections)),
	}
	for i := range cfg.Collections {
		c := &cfg.Collections[i]
		c.Name = ResolveName(c.Name, c.Project)
		if _, dup := r.byName[c.Name]; dup {
			return nil, fmt.Errorf("parse %s: collection %q listed twice", path, c.Name)
		}
		r.byName[c.Name] = c
		r.order = append(r.order, c.Name)
	}
	return r, nil
}

// ResolveName returns name when set, otherwise the collection the memory
// worker uses for project, otherwise the default collection.
func ResolveName(name, project string) string {
	switch {
	case name != "":
		return name
	case project != "":
		return chroma.CollectionName(project)
	default:
		return chroma.DefaultCollection
	}
}

// All returns all collections in definition order.
func (r *Registry) All() []*Collection {
	result := make([]*Collection, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.byName[name])
	}
	return result
}

// Names returns a sorted list of collection names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Len returns the number of collections.
func (r *Registry) Len() int {
	return len(r.order)
}
