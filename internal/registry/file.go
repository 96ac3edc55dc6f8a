package registry

import (
	"fmt"
	"os"

	yaml "go.yaml.in/yaml/v2"
)

type routeEntry struct {
	Name     string   `yaml:"name"`
	Prefixes []string `yaml:"prefixes"`
	Port     int      `yaml:"port"`
	BaseURL  string   `yaml:"base_url"`
	Host     string   `yaml:"host"`
}

// LoadFile reads a YAML route table. When present it replaces the default
// fleet entirely; entries keep file order for precedence.
func LoadFile(path string) ([]Route, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read routes file: %w", err)
	}

	var entries []routeEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse routes file: %w", err)
	}

	routes := make([]Route, 0, len(entries))
	for i, entry := range entries {
		if entry.Name == "" {
			return nil, fmt.Errorf("routes file entry %d: missing name", i)
		}
		if len(entry.Prefixes) == 0 {
			return nil, fmt.Errorf("route %q: at least one prefix required", entry.Name)
		}
		var target Target
		switch {
		case entry.BaseURL != "" && entry.Port != 0:
			return nil, fmt.Errorf("route %q: base_url and port are mutually exclusive", entry.Name)
		case entry.BaseURL != "":
			target = Remote(entry.BaseURL)
		case entry.Port != 0:
			target = Local(entry.Port)
			if entry.Host != "" {
				target.Host = entry.Host
			}
		default:
			return nil, fmt.Errorf("route %q: base_url or port required", entry.Name)
		}
		routes = append(routes, Route{Name: entry.Name, Prefixes: entry.Prefixes, Target: target})
	}
	return routes, nil
}
