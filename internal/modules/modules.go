// Package modules lists the runtime's plugin modules. A module is a
// directory containing a module.yml descriptor; the provisioner only
// reads and displays descriptors, it never mutates them.
package modules

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/survon/provision/internal/monitoring"
)

// descriptor file names accepted inside a module directory.
var descriptorNames = []string{"module.yml", "module.yaml"}

// Descriptor is the declarative config of one module.
type Descriptor struct {
	// Name is the module directory name.
	Name string `yaml:"-"`

	Description string `yaml:"description"`
	Version     string `yaml:"version,omitempty"`
}

// Scan reads every module descriptor under dir, sorted by module name.
// A missing modules directory yields an empty list: a freshly provisioned
// appliance has no modules yet.
func Scan(dir string) ([]Descriptor, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read modules directory %s: %w", dir, err)
	}

	var found []Descriptor
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		desc, ok := readDescriptor(filepath.Join(dir, entry.Name()))
		if !ok {
			continue
		}
		desc.Name = entry.Name()
		found = append(found, desc)
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found, nil
}

func readDescriptor(moduleDir string) (Descriptor, bool) {
	for _, name := range descriptorNames {
		data, err := os.ReadFile(filepath.Join(moduleDir, name))
		if err != nil {
			continue
		}
		var desc Descriptor
		if err := yaml.Unmarshal(data, &desc); err != nil {
			monitoring.Logf("modules: unreadable descriptor in %s: %v", moduleDir, err)
			return Descriptor{}, false
		}
		if desc.Description == "" {
			desc.Description = "(no description)"
		}
		return desc, true
	}
	monitoring.Debugf("modules: %s has no descriptor, ignoring", moduleDir)
	return Descriptor{}, false
}

// List writes a human-readable module listing to w.
func List(w io.Writer, dir string) error {
	descs, err := Scan(dir)
	if err != nil {
		return err
	}
	if len(descs) == 0 {
		fmt.Fprintln(w, "No modules installed.")
		return nil
	}

	fmt.Fprintf(w, "%d module(s) in %s:\n", len(descs), dir)
	for _, d := range descs {
		if d.Version != "" {
			fmt.Fprintf(w, "  %-20s %s (version %s)\n", d.Name, d.Description, d.Version)
			continue
		}
		fmt.Fprintf(w, "  %-20s %s\n", d.Name, d.Description)
	}
	return nil
}
