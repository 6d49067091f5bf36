package wire

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/HumbleRetreat/meru/errs"
)

// Manifest declares, for documentation and startup-audit purposes, the
// set of type tags a deployment expects to end up registered: a YAML
// list checked against what Discover actually registered, since Go
// cannot enumerate a package's types at runtime the way a dynamic
// language's module scanner can.
type Manifest struct {
	Types []string `yaml:"types"`
}

// LoadManifest reads a YAML manifest file from path.
func LoadManifest(path string) (*Manifest, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(buf, &m); err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return &m, nil
}

// Verify checks that every tag named in the manifest is registered.
// Any missing tag is reported together in a single *errs.RegistryError;
// nil means every declared tag was found.
func (r *Registry) Verify(m *Manifest) error {
	var missing []string
	for _, tag := range m.Types {
		if !r.Has(tag) {
			missing = append(missing, tag)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return &errs.RegistryError{
		Tag:     strings.Join(missing, ", "),
		Message: "declared in manifest but never registered",
	}
}
