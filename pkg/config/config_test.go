package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "float32", cfg.Data.Type)
	assert.Equal(t, "median", cfg.Interpolation.Reducer)
	assert.Positive(t, cfg.Interpolation.NumThreads)
}

func TestLoadConfig_MissingFile_ReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Interpolation.NumNeighbors, cfg.Interpolation.NumNeighbors)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
interpolation:
  numNeighbors: 4
  metric: manhattan
tessellation:
  enabled: true
  tileSize: [10, 20]
  numChannels: [2, 2]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Interpolation.NumNeighbors)
	assert.Equal(t, "manhattan", cfg.Interpolation.Metric)
	assert.Equal(t, []int{10, 20}, cfg.Tessellation.TileSize)

	// Untouched keys keep their defaults
	assert.Equal(t, "median", cfg.Interpolation.Reducer)
	assert.Equal(t, 0.1, cfg.Tessellation.RemainderFrac)
}

func TestLoadConfig_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0644))

	_, err := LoadConfig(path)
	assert.NoError(t, err)
}

func TestLoadConfig_Rejects(t *testing.T) {
	testCases := []struct {
		name string
		yaml string
	}{
		{"unknown key", "interpolation:\n  neighbours: 3\n"},
		{"unknown metric", "interpolation:\n  metric: chebyshev\n"},
		{"unknown reducer", "interpolation:\n  reducer: mode\n"},
		{"unknown type", "data:\n  type: complex64\n"},
		{"zero neighbors", "interpolation:\n  numNeighbors: 0\n"},
		{"negative map size", "memory:\n  minMapSize: -1\n"},
		{"mismatched tessellation", "tessellation:\n  enabled: true\n  tileSize: [4]\n  numChannels: [1, 1]\n"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0644))

			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestCreateDefaultConfigFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	require.NoError(t, CreateDefaultConfigFile(path))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}
