package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nexuscore/nexuscore/pkg/types"
)

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadManifestParsesEntries(t *testing.T) {
	path := writeManifest(t, `
entries:
  - dataId: app.properties
    group: DEFAULT_GROUP
    content: "timeout=3000"
  - dataId: db.properties
    group: DEFAULT_GROUP
    tenant: tenant-a
    content: "url=jdbc:..."
`)

	m, err := LoadManifest(path)
	require.NoError(t, err)
	require.Len(t, m.Entries, 2)
	require.Equal(t, "app.properties", m.Entries[0].DataID)
	require.Equal(t, types.ConfigKey{DataID: "db.properties", Group: "DEFAULT_GROUP", Tenant: "tenant-a"}, m.Entries[1].Key())
}

func TestLoadManifestRejectsMissingDataID(t *testing.T) {
	path := writeManifest(t, `
entries:
  - group: DEFAULT_GROUP
    content: "x"
`)

	_, err := LoadManifest(path)
	require.Error(t, err)
}

func TestLoadManifestRejectsMissingFile(t *testing.T) {
	_, err := LoadManifest(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
}
