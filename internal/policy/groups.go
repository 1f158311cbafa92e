package policy

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed groups.yaml
var groupsData []byte

// Group is a prebuilt, named set of distracting domains that the user
// activates by id instead of typing every domain by hand.
type Group struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Domains []string `yaml:"domains"`
}

// Registry holds all prebuilt domain groups, loaded from embedded data.
type Registry struct {
	groups map[string]Group
}

// NewRegistry loads the embedded group catalog.
func NewRegistry() (*Registry, error) {
	return newRegistryFrom(groupsData)
}

// NewRegistryWithGroups creates a registry with custom groups (for testing).
func NewRegistryWithGroups(groups ...Group) *Registry {
	r := &Registry{groups: make(map[string]Group)}
	for _, g := range groups {
		r.groups[g.ID] = g
	}
	return r
}

func newRegistryFrom(data []byte) (*Registry, error) {
	var doc struct {
		Groups []Group `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse group catalog: %w", err)
	}

	r := &Registry{groups: make(map[string]Group, len(doc.Groups))}
	for _, g := range doc.Groups {
		r.groups[g.ID] = g
	}
	return r, nil
}

// Get returns a group by id.
func (r *Registry) Get(id string) (Group, bool) {
	g, ok := r.groups[id]
	return g, ok
}

// Has reports whether id names a known group.
func (r *Registry) Has(id string) bool {
	_, ok := r.groups[id]
	return ok
}

// List returns all group ids, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// GetAll returns all groups, ordered by id.
func (r *Registry) GetAll() []Group {
	out := make([]Group, 0, len(r.groups))
	for _, id := range r.List() {
		out = append(out, r.groups[id])
	}
	return out
}
