package schema

import (
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var definitions embed.FS

// Load parses a YAML schema definition and checks it.
func Load(data []byte) (Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Descriptor{}, fmt.Errorf("parsing schema: %w", err)
	}
	if d.Type == "" {
		d.Type = TypeObject
	}
	if d.Type != TypeObject {
		return Descriptor{}, fmt.Errorf("schema %q: root must be an object, got %s", d.Name, d.Type)
	}
	if err := d.Check(); err != nil {
		return Descriptor{}, fmt.Errorf("schema %q: %w", d.Name, err)
	}
	return d, nil
}

func LoadFile(path string) (Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Descriptor{}, fmt.Errorf("reading schema file: %w", err)
	}
	return Load(data)
}

// Builtin returns one of the embedded definitions by name, e.g. "form".
func Builtin(name string) (Descriptor, error) {
	data, err := definitions.ReadFile("definitions/" + name + ".yaml")
	if err != nil {
		return Descriptor{}, fmt.Errorf("unknown schema %q (available: %s)", name, strings.Join(BuiltinNames(), ", "))
	}
	return Load(data)
}

func MustBuiltin(name string) Descriptor {
	d, err := Builtin(name)
	if err != nil {
		panic(err)
	}
	return d
}

func BuiltinNames() []string {
	entries, _ := definitions.ReadDir("definitions")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".yaml"))
	}
	sort.Strings(names)
	return names
}
