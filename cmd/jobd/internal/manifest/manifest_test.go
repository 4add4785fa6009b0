package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeManifest(t, `
jobs:
  - id: nap
    kind: sleep
    params:
      duration: 5s
  - kind: checksum-walk
    params:
      root: /tmp
`)

	jobs, err := Load(path)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, "nap", jobs[0].ID)
	require.Equal(t, "sleep", jobs[0].Kind)
	require.Equal(t, "5s", jobs[0].Params["duration"])
	require.Empty(t, jobs[1].ID)
}

func TestLoad_MissingKind(t *testing.T) {
	path := writeManifest(t, `
jobs:
  - id: broken
    params:
      duration: 5s
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing kind")
}

func TestLoad_DuplicateID(t *testing.T) {
	path := writeManifest(t, `
jobs:
  - id: twin
    kind: sleep
  - id: twin
    kind: sleep
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate id")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_Malformed(t *testing.T) {
	path := writeManifest(t, "jobs: [not: {valid")
	_, err := Load(path)
	require.Error(t, err)
}
