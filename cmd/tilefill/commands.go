package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"tilefill/pkg/config"
	"tilefill/pkg/dataset"
	"tilefill/pkg/dimension"
	"tilefill/pkg/imageio"
	"tilefill/pkg/interpolation"
	"tilefill/pkg/pipeline"
	"tilefill/pkg/tessellation"
)

var (
	configPath      string  // YAML configuration file
	inputPath       string  // Image file or directory of numbered images
	outputPath      string  // Filled image, or directory of planes for a stack
	logLevel        string  // Log verbosity level
	blankValue      float64 // Pixel value treated as blank
	tileSize        []int   // Tile extent per dimension
	numChannels     []int   // Channel count per dimension
	numNeighbors    int     // Valid neighbors per fill
	metric          string  // Distance metric
	reducer         string  // Neighbor reduction
	numThreads      int     // Worker count
	onlyBlank       bool    // Fill blanks only
	restrictChannel bool    // Keep searches inside a channel
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "tilefill",
	Short: "Fill blank pixels of rasters and image stacks from their closest valid neighbors",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// fillCmd runs the fill pipeline
var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Fill the blank pixels of an image or an image stack",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load configuration: %v", err)
		}
		applyFlags(cmd, cfg)
		if cfg.Output.Verbose && !cmd.Flags().Changed("log-level") {
			logrus.SetLevel(logrus.DebugLevel)
		}

		params, err := buildParams(cfg, inputPath, outputPath)
		if err != nil {
			logrus.Fatalf("Invalid parameters: %v", err)
		}

		filler := pipeline.NewFiller(params)
		if err := filler.Process(); err != nil {
			logrus.Fatalf("Fill failed: %v", err)
		}
		printReport(filler.GetReport())
	},
}

// tilesCmd prints the tessellation of an input without filling it
var tilesCmd = &cobra.Command{
	Use:   "tiles",
	Short: "Show how an image or image stack would be tessellated",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			logrus.Fatalf("Failed to load configuration: %v", err)
		}
		applyFlags(cmd, cfg)

		d, err := loadInput(cfg, inputPath)
		if err != nil {
			logrus.Fatalf("Failed to load input: %v", err)
		}
		defer d.Release()

		tess, err := tessellation.Build(d, tessellationParams(cfg))
		if err != nil {
			logrus.Fatalf("Tessellation failed: %v", err)
		}
		defer tess.Release()
		fmt.Print(tess)
	},
}

// configCmd groups configuration helpers
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
}

// configInitCmd writes the default configuration
var configInitCmd = &cobra.Command{
	Use:   "init PATH",
	Short: "Write the default configuration to PATH",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.CreateDefaultConfigFile(args[0]); err != nil {
			return err
		}
		logrus.Infof("Default configuration written to %s", args[0])
		return nil
	},
}

// applyFlags overrides configuration values with the flags set on cmd
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("blank-value") {
		cfg.Data.BlankValue = blankValue
		cfg.Data.MarkBlank = true
	}
	if flags.Changed("tile") {
		cfg.Tessellation.TileSize = tileSize
		cfg.Tessellation.Enabled = true
	}
	if flags.Changed("channels") {
		cfg.Tessellation.NumChannels = numChannels
		cfg.Tessellation.Enabled = true
	}
	if flags.Changed("neighbors") {
		cfg.Interpolation.NumNeighbors = numNeighbors
	}
	if flags.Changed("metric") {
		cfg.Interpolation.Metric = metric
	}
	if flags.Changed("reducer") {
		cfg.Interpolation.Reducer = reducer
	}
	if flags.Changed("threads") {
		cfg.Interpolation.NumThreads = numThreads
	}
	if flags.Changed("only-blank") {
		cfg.Interpolation.OnlyBlank = onlyBlank
	}
	if flags.Changed("restrict-channel") {
		cfg.Tessellation.WorkOverChannels = !restrictChannel
	}
}

// buildParams converts a configuration into pipeline parameters
func buildParams(cfg *config.Config, input, output string) (*pipeline.Params, error) {
	if input == "" {
		return nil, fmt.Errorf("no input given")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	typ, err := dataset.ParseDataType(cfg.Data.Type)
	if err != nil {
		return nil, err
	}
	m, err := dimension.ParseMetric(cfg.Interpolation.Metric)
	if err != nil {
		return nil, err
	}
	r, err := interpolation.ParseReducer(cfg.Interpolation.Reducer)
	if err != nil {
		return nil, err
	}

	params := &pipeline.Params{
		InputPath:     input,
		OutputPath:    output,
		TileStatsPath: cfg.Output.TileStatsPath,
		DataType:      typ,
		BlankValue:    cfg.Data.BlankValue,
		MarkBlank:     cfg.Data.MarkBlank,
		TileNeighbors: cfg.Tessellation.TileNeighbors,
		Interpolation: interpolation.Params{
			Metric:       m,
			NumNeighbors: cfg.Interpolation.NumNeighbors,
			NumThreads:   cfg.Interpolation.NumThreads,
			OnlyBlank:    cfg.Interpolation.OnlyBlank,
			Reduce:       r,
		},
		Memory: memoryOptions(cfg),
	}
	if cfg.Tessellation.Enabled {
		tp := tessellationParams(cfg)
		params.Tessellation = &tp
	}
	return params, nil
}

func tessellationParams(cfg *config.Config) tessellation.Params {
	return tessellation.Params{
		TileSize:         cfg.Tessellation.TileSize,
		NumChannels:      cfg.Tessellation.NumChannels,
		RemainderFrac:    cfg.Tessellation.RemainderFrac,
		WorkOverChannels: cfg.Tessellation.WorkOverChannels,
	}
}

func memoryOptions(cfg *config.Config) dataset.Options {
	return dataset.Options{
		MinMapSize: cfg.Memory.MinMapSize,
		MapDir:     cfg.Memory.MapDir,
	}
}

// loadInput reads an image or a stack with the configured type and storage
func loadInput(cfg *config.Config, path string) (*dataset.Dataset, error) {
	typ, err := dataset.ParseDataType(cfg.Data.Type)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return imageio.LoadStack(path, typ, memoryOptions(cfg))
	}
	return imageio.Load(path, typ, memoryOptions(cfg))
}

func printReport(r pipeline.Report) {
	fmt.Printf("Dataset:        %v (%s)\n", r.Size, r.Residency)
	fmt.Printf("Blank elements: %d\n", r.BlankCount)
	if r.NumTiles > 0 {
		fmt.Printf("Tiles:          %d (%d without valid elements)\n", r.NumTiles, r.EmptyTiles)
		fmt.Printf("Tile medians:   %.3f to %.3f\n", r.TileMedianMin, r.TileMedianMax)
	}
	if r.BlankCount > 0 {
		fmt.Printf("Filled values:  mean %.3f, std dev %.3f\n", r.FilledMean, r.FilledStdDev)
	}
	fmt.Printf("Elapsed:        %v\n", r.Elapsed)
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "tilefill.yaml", "YAML configuration file")

	for _, cmd := range []*cobra.Command{fillCmd, tilesCmd} {
		cmd.Flags().StringVar(&inputPath, "input", "", "Image file, or directory of numbered images")
		cmd.Flags().IntSliceVar(&tileSize, "tile", nil, "Tile extent per dimension, slowest first")
		cmd.Flags().IntSliceVar(&numChannels, "channels", nil, "Channel count per dimension")
		_ = cmd.MarkFlagRequired("input")
	}

	fillCmd.Flags().StringVar(&outputPath, "output", "", "Filled image, or output directory for a stack")
	fillCmd.Flags().Float64Var(&blankValue, "blank-value", 0, "Pixel value treated as blank")
	fillCmd.Flags().IntVar(&numNeighbors, "neighbors", 9, "Valid neighbors used for each fill")
	fillCmd.Flags().StringVar(&metric, "metric", "radial", "Distance metric (radial, manhattan)")
	fillCmd.Flags().StringVar(&reducer, "reducer", "median", "Neighbor reduction (median, mean, min, max)")
	fillCmd.Flags().IntVar(&numThreads, "threads", 0, "Worker count (0 uses every CPU)")
	fillCmd.Flags().BoolVar(&onlyBlank, "only-blank", true, "Fill blank pixels only; otherwise recompute every pixel")
	fillCmd.Flags().BoolVar(&restrictChannel, "restrict-channel", true, "Keep neighbor searches inside each channel")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(fillCmd, tilesCmd, configCmd)
}
