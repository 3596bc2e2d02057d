// Package config provides configuration loading and management for tilefill.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"tilefill/pkg/dataset"
	"tilefill/pkg/dimension"
	"tilefill/pkg/interpolation"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input data handling
	Data struct {
		// Type is the element type images are loaded as
		Type string `yaml:"type"`

		// BlankValue is the pixel value treated as blank
		BlankValue float64 `yaml:"blankValue"`

		// MarkBlank enables BlankValue
		MarkBlank bool `yaml:"markBlank"`
	} `yaml:"data"`

	// Memory residency
	Memory struct {
		// MinMapSize is the allocation size in bytes from which storage is
		// mapped from a file; 0 keeps everything in memory
		MinMapSize int64 `yaml:"minMapSize"`

		// MapDir holds the files backing mapped storage
		MapDir string `yaml:"mapDir"`
	} `yaml:"memory"`

	// Tessellation parameters
	Tessellation struct {
		// Enabled turns tiling and per-tile statistics on
		Enabled bool `yaml:"enabled"`

		// TileSize is the tile extent per dimension, slowest first
		TileSize []int `yaml:"tileSize"`

		// NumChannels is the channel count per dimension
		NumChannels []int `yaml:"numChannels"`

		// RemainderFrac decides whether a partial tile is merged
		RemainderFrac float64 `yaml:"remainderFrac"`

		// WorkOverChannels lets searches cross channel borders
		WorkOverChannels bool `yaml:"workOverChannels"`

		// TileNeighbors is the neighbor count used for empty tiles
		TileNeighbors int `yaml:"tileNeighbors"`
	} `yaml:"tessellation"`

	// Interpolation parameters
	Interpolation struct {
		NumNeighbors int    `yaml:"numNeighbors"`
		Metric       string `yaml:"metric"`
		Reducer      string `yaml:"reducer"`
		OnlyBlank    bool   `yaml:"onlyBlank"`
		NumThreads   int    `yaml:"numThreads"`
	} `yaml:"interpolation"`

	// Output parameters
	Output struct {
		// TileStatsPath optionally receives the per-tile median image
		TileStatsPath string `yaml:"tileStatsPath"`

		// LogLevel is a logrus level name
		LogLevel string `yaml:"logLevel"`

		// Verbose raises the log level to debug
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Data.Type = dataset.Float32.String()
	cfg.Data.BlankValue = 0
	cfg.Data.MarkBlank = true

	cfg.Memory.MinMapSize = 0
	cfg.Memory.MapDir = os.TempDir()

	cfg.Tessellation.Enabled = false
	cfg.Tessellation.TileSize = []int{32, 32}
	cfg.Tessellation.NumChannels = []int{1, 1}
	cfg.Tessellation.RemainderFrac = 0.1
	cfg.Tessellation.WorkOverChannels = false
	cfg.Tessellation.TileNeighbors = 1

	cfg.Interpolation.NumNeighbors = 9
	cfg.Interpolation.Metric = dimension.Radial.String()
	cfg.Interpolation.Reducer = interpolation.Median.String()
	cfg.Interpolation.OnlyBlank = true
	cfg.Interpolation.NumThreads = runtime.NumCPU() // Use all available cores by default

	cfg.Output.LogLevel = "info"
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML, rejecting keys that match no field
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return cfg, nil
}

// Validate reports unknown names and out-of-range values
func (c *Config) Validate() error {
	if _, err := dataset.ParseDataType(c.Data.Type); err != nil {
		return err
	}
	if c.Memory.MinMapSize < 0 {
		return fmt.Errorf("memory.minMapSize must not be negative, got %d", c.Memory.MinMapSize)
	}
	if _, err := dimension.ParseMetric(c.Interpolation.Metric); err != nil {
		return err
	}
	if _, err := interpolation.ParseReducer(c.Interpolation.Reducer); err != nil {
		return err
	}
	if c.Interpolation.NumNeighbors < 1 {
		return fmt.Errorf("interpolation.numNeighbors must be positive, got %d", c.Interpolation.NumNeighbors)
	}
	if c.Interpolation.NumThreads < 0 {
		return fmt.Errorf("interpolation.numThreads must not be negative, got %d", c.Interpolation.NumThreads)
	}
	if c.Tessellation.Enabled {
		if len(c.Tessellation.TileSize) != len(c.Tessellation.NumChannels) {
			return fmt.Errorf("tessellation.tileSize has %d dimensions but numChannels has %d",
				len(c.Tessellation.TileSize), len(c.Tessellation.NumChannels))
		}
		if c.Tessellation.RemainderFrac < 0 {
			return fmt.Errorf("tessellation.remainderFrac must not be negative, got %g", c.Tessellation.RemainderFrac)
		}
	}
	return nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
