package yamlspec

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Spec_FallsBackToDefaultForUnknownBin(t *testing.T) {
	s := &Spec{
		Default: BinLimits{MaxOpenConnections: 2, MinMsPerFetch: 100, MinMsPerByte: 0.5},
		Bins: map[string]BinLimits{
			"example.com": {MaxOpenConnections: 9, MinMsPerFetch: 1, MinMsPerByte: 0},
		},
	}

	require.EqualValues(t, 9, s.MaxOpenConnections("example.com"))
	require.EqualValues(t, 2, s.MaxOpenConnections("unknown.example"))
	require.EqualValues(t, 100, s.MinMillisecondsPerFetch("unknown.example"))
	require.InDelta(t, 0.5, s.MinMillisecondsPerByte("unknown.example"), 0.0001)
}

func Test_Spec_NilReceiverIsSafe(t *testing.T) {
	var s *Spec
	require.EqualValues(t, 0, s.MaxOpenConnections("anything"))
}

func Test_Load_ParsesYamlDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spec.yaml")
	doc := `
default:
  maxOpenConnections: 2
  minMsPerFetch: 100
  minMsPerByte: 0
bins:
  slow-cdn.net:
    maxOpenConnections: 1
    minMsPerFetch: 250
    minMsPerByte: 1
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	spec, err := Load(path)
	require.NoError(t, err)
	require.EqualValues(t, 2, spec.MaxOpenConnections("example.com"))
	require.EqualValues(t, 1, spec.MaxOpenConnections("slow-cdn.net"))
	require.EqualValues(t, 250, spec.MinMillisecondsPerFetch("slow-cdn.net"))
}

func Test_Load_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
