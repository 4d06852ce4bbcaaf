package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nexuscore/nexuscore/pkg/types"
)

// ManifestEntry is one config record in a bootstrap YAML manifest.
type ManifestEntry struct {
	DataID  string `yaml:"dataId"`
	Group   string `yaml:"group"`
	Tenant  string `yaml:"tenant,omitempty"`
	Content string `yaml:"content"`
}

// Manifest is the top-level shape of a bootstrap-config YAML file:
//
//	entries:
//	  - dataId: app.properties
//	    group: DEFAULT_GROUP
//	    content: |
//	      timeout=3000
type Manifest struct {
	Entries []ManifestEntry `yaml:"entries"`
}

// LoadManifest reads and parses a bootstrap config manifest from path.
func LoadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}
	for i, e := range m.Entries {
		if e.DataID == "" || e.Group == "" {
			return Manifest{}, fmt.Errorf("entry %d: dataId and group are required", i)
		}
	}
	return m, nil
}

// Key returns the canonical ConfigKey for this entry.
func (e ManifestEntry) Key() types.ConfigKey {
	return types.ConfigKey{DataID: e.DataID, Group: e.Group, Tenant: e.Tenant}
}
