// Package profile provides named clustering parameter presets. Presets come
// from a YAML file and overlay the configured clustering defaults, so a run
// can switch between coarse and fine topic granularity without editing the
// main config.
package profile

import (
	"os"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/civiclens/appeals-cli/internal/model"
)

// Profile is a named set of clustering parameter overrides. Zero-valued
// fields inherit from the base configuration.
type Profile struct {
	NeighborCount  int    `yaml:"neighbor_count"`
	ComponentCount int    `yaml:"component_count"`
	MinClusterSize int    `yaml:"min_cluster_size"`
	KeywordTopN    int    `yaml:"keyword_top_n"`
	TextColumn     string `yaml:"text_column"`
	IDColumn       string `yaml:"id_column"`
}

// Apply overlays the profile's non-zero fields on base and returns the
// resulting configuration.
func (p Profile) Apply(base model.ClusterConfig) model.ClusterConfig {
	if p.NeighborCount > 0 {
		base.NeighborCount = p.NeighborCount
	}
	if p.ComponentCount > 0 {
		base.ComponentCount = p.ComponentCount
	}
	if p.MinClusterSize > 0 {
		base.MinClusterSize = p.MinClusterSize
	}
	if p.KeywordTopN > 0 {
		base.KeywordTopN = p.KeywordTopN
	}
	if p.TextColumn != "" {
		base.TextColumn = p.TextColumn
	}
	if p.IDColumn != "" {
		base.IDColumn = p.IDColumn
	}
	return base
}

// Set holds the named profiles from one source.
type Set struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// Builtin returns the presets available without a profiles file. "fine"
// favors many small topics, "coarse" fewer large ones.
func Builtin() *Set {
	return &Set{Profiles: map[string]Profile{
		"fine":   {NeighborCount: 10, MinClusterSize: 5},
		"coarse": {NeighborCount: 30, MinClusterSize: 25},
	}}
}

// Load reads a profile set from a YAML file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "profile: read %s", path)
	}

	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, eris.Wrapf(err, "profile: parse %s", path)
	}
	return &set, nil
}

// Names lists the profile names in sorted order.
func (s *Set) Names() []string {
	names := make([]string, 0, len(s.Profiles))
	for name := range s.Profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the named profile, or an error listing the available names.
func (s *Set) Get(name string) (Profile, error) {
	if p, ok := s.Profiles[name]; ok {
		return p, nil
	}
	return Profile{}, eris.Errorf("profile: unknown profile %q (available: %s)", name, strings.Join(s.Names(), ", "))
}

// Resolve finds a named profile, merging the profiles file at path (when it
// exists) over the built-in presets. An empty path uses the built-ins alone.
func Resolve(path, name string) (Profile, error) {
	set := Builtin()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			for k, v := range loaded.Profiles {
				set.Profiles[k] = v
			}
		case eris.Is(err, os.ErrNotExist):
			// No profiles file is fine; built-ins still apply.
		default:
			return Profile{}, err
		}
	}
	return set.Get(name)
}
