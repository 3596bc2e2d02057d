package main

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tilefill/pkg/config"
	"tilefill/pkg/dataset"
	"tilefill/pkg/dimension"
	"tilefill/pkg/interpolation"
)

func TestBuildParams_FromDefaults(t *testing.T) {
	cfg := config.DefaultConfig()

	params, err := buildParams(cfg, "in.png", "out.png")
	require.NoError(t, err)
	assert.Equal(t, dataset.Float32, params.DataType)
	assert.Equal(t, dimension.Radial, params.Interpolation.Metric)
	assert.Equal(t, interpolation.Median, params.Interpolation.Reduce)
	assert.Equal(t, 9, params.Interpolation.NumNeighbors)
	assert.Nil(t, params.Tessellation)

	_, err = buildParams(cfg, "", "out.png")
	assert.Error(t, err)
}

func TestApplyFlags_OverrideConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	flags := fillCmd.Flags()
	require.NoError(t, flags.Set("metric", "manhattan"))
	require.NoError(t, flags.Set("reducer", "max"))
	require.NoError(t, flags.Set("neighbors", "4"))
	require.NoError(t, flags.Set("tile", "8,8"))
	require.NoError(t, flags.Set("channels", "2,1"))
	require.NoError(t, flags.Set("restrict-channel", "false"))

	applyFlags(fillCmd, cfg)
	params, err := buildParams(cfg, "in.png", "")
	require.NoError(t, err)

	assert.Equal(t, dimension.Manhattan, params.Interpolation.Metric)
	assert.Equal(t, interpolation.Max, params.Interpolation.Reduce)
	assert.Equal(t, 4, params.Interpolation.NumNeighbors)
	require.NotNil(t, params.Tessellation)
	assert.Equal(t, []int{8, 8}, params.Tessellation.TileSize)
	assert.Equal(t, []int{2, 1}, params.Tessellation.NumChannels)
	assert.True(t, params.Tessellation.WorkOverChannels)
}

func TestConfigInit_WritesLoadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tilefill.yaml")
	rootCmd.SetArgs([]string{"config", "init", path, "--log-level", "warn"})
	require.NoError(t, rootCmd.Execute())

	_, err := os.Stat(path)
	require.NoError(t, err)
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig(), cfg)
}

func TestLoadInput_UsesConfiguredTypeAndMemory(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "js" || runtime.GOOS == "wasip1" {
		t.Skip("mapped storage needs a unix platform")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "input.png")
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	for i := range img.Pix {
		img.Pix[i] = 200
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	cfg := config.DefaultConfig()
	cfg.Memory.MinMapSize = 64
	cfg.Memory.MapDir = dir

	d, err := loadInput(cfg, path)
	require.NoError(t, err)
	defer d.Release()
	assert.Equal(t, dataset.Float32, d.Type())
	assert.Equal(t, dataset.Mapped, d.Residency())
	// 8-bit pixels land on the 16-bit scale without overflowing
	assert.Equal(t, 200.0*257, d.Value(0))

	cfg.Data.Type = "complex64"
	_, err = loadInput(cfg, path)
	assert.Error(t, err)
}
