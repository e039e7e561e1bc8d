// Package presets loads the named production presets a queue item refers to.
// A preset bundles the voice, visual style, target platform, and language for
// one kind of production; the queue stores only the preset name and callers
// resolve it here before submitting work.
package presets

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Preset is one named production profile.
type Preset struct {
	Name        string `yaml:"name"`
	Voice       string `yaml:"voice"`
	Style       string `yaml:"style"`
	Platform    string `yaml:"platform"`
	Language    string `yaml:"language"`
	Description string `yaml:"description"`
}

// Catalog holds the loaded presets keyed by name.
type Catalog struct {
	byName map[string]Preset
}

type catalogFile struct {
	Presets []Preset `yaml:"presets"`
}

// Load reads a preset catalog from a YAML file. Preset names must be unique
// and non-empty.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets file: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse presets file: %w", err)
	}

	catalog := &Catalog{byName: make(map[string]Preset, len(file.Presets))}
	for i, preset := range file.Presets {
		name := strings.TrimSpace(preset.Name)
		if name == "" {
			return nil, fmt.Errorf("preset %d has no name", i+1)
		}
		if _, exists := catalog.byName[name]; exists {
			return nil, fmt.Errorf("duplicate preset name %q", name)
		}
		preset.Name = name
		catalog.byName[name] = preset
	}
	return catalog, nil
}

// Empty returns a catalog with no presets.
func Empty() *Catalog {
	return &Catalog{byName: make(map[string]Preset)}
}

// Get resolves a preset by name.
func (c *Catalog) Get(name string) (Preset, bool) {
	preset, ok := c.byName[strings.TrimSpace(name)]
	return preset, ok
}

// Names returns the known preset names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of presets in the catalog.
func (c *Catalog) Len() int {
	return len(c.byName)
}
