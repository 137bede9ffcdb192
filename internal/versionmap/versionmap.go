package versionmap

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// ErrUnknownVersion indicates a requested version or alias that the map does
// not know about.
var ErrUnknownVersion = errors.New("unknown frida version")

// Map associates frida-server versions with their companion frida-tools
// versions and resolves symbolic aliases. It is persisted as YAML in the
// global fridamgr directory and only changes through an explicit refresh.
type Map struct {
	RefreshedAt time.Time         `yaml:"refreshed_at,omitempty"`
	Aliases     map[string]string `yaml:"aliases"`
	Mappings    map[string]string `yaml:"mappings"`
}

// Resolved is the outcome of a successful version lookup.
type Resolved struct {
	Version      string
	ToolsVersion string
}

// Builtin returns the seed map shipped with the tool, used until the first
// successful refresh.
func Builtin() Map {
	return Map{
		Aliases: map[string]string{
			"latest": "16.6.6",
			"stable": "16.4.0",
			"lts":    "15.2.2",
		},
		Mappings: map[string]string{
			"16.6.6":  "13.3.0",
			"16.5.2":  "13.2.2",
			"16.4.0":  "13.1.0",
			"16.1.4":  "12.2.1",
			"16.0.19": "12.1.3",
			"15.2.2":  "12.0.4",
			"15.1.17": "11.0.2",
		},
	}
}

// LoadOrInit reads the persisted map, falling back to the builtin seed when no
// map has been written yet.
func LoadOrInit(path string) (Map, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Builtin(), nil
		}
		return Map{}, fmt.Errorf("read version map: %w", err)
	}

	var m Map
	if err := yaml.Unmarshal(contents, &m); err != nil {
		return Map{}, fmt.Errorf("unmarshal version map: %w", err)
	}
	if m.Aliases == nil {
		m.Aliases = map[string]string{}
	}
	if m.Mappings == nil {
		m.Mappings = map[string]string{}
	}
	return m, nil
}

// Save writes the map, replacing the file atomically so an interrupted write
// never corrupts the existing map.
func (m Map) Save(path string) error {
	buf, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("marshal version map: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("write temp version map: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace version map: %w", err)
	}
	return nil
}

// Resolve looks up a concrete version or alias. Resolution never touches the
// network; staleness is only addressed by an explicit refresh.
func (m Map) Resolve(request string) (Resolved, error) {
	if tools, ok := m.Mappings[request]; ok {
		return Resolved{Version: request, ToolsVersion: tools}, nil
	}
	if version, ok := m.Aliases[request]; ok {
		return Resolved{Version: version, ToolsVersion: m.Mappings[version]}, nil
	}
	return Resolved{}, fmt.Errorf("%w: %q (try `fridamgr sync` to refresh the version map)", ErrUnknownVersion, request)
}

// Versions returns every known frida-server version, newest first.
func (m Map) Versions() []string {
	versions := make([]string, 0, len(m.Mappings))
	for v := range m.Mappings {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		return semver.Compare("v"+versions[i], "v"+versions[j]) > 0
	})
	return versions
}

// AliasNames returns the alias names in a stable order.
func (m Map) AliasNames() []string {
	names := make([]string, 0, len(m.Aliases))
	for name := range m.Aliases {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
