// Package pipeline runs a complete fill: it loads a raster or a stack of
// rasters, marks the blank pixels, tessellates the data, measures every tile
// and fills the blanks from their closest valid neighbors.
package pipeline

import (
	"fmt"
	"math"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"tilefill/internal/models"
	"tilefill/pkg/dataset"
	"tilefill/pkg/imageio"
	"tilefill/pkg/interpolation"
	"tilefill/pkg/tessellation"
	"tilefill/pkg/traverse"
)

// Report summarizes a completed fill
type Report struct {
	// Shape of the processed dataset
	Size []int

	// Residency of the loaded dataset
	Residency dataset.Residency

	// BlankCount is the number of blank elements before the fill
	BlankCount int

	// NumTiles is the number of tiles, 0 without a tessellation
	NumTiles int

	// EmptyTiles is the number of tiles without any valid element; their
	// statistic is filled from neighboring tiles of the same channel.
	EmptyTiles int

	// TileMedianMin and TileMedianMax bound the per-tile medians
	TileMedianMin float64
	TileMedianMax float64

	// FilledMean and FilledStdDev describe the values written into blanks
	FilledMean   float64
	FilledStdDev float64

	Elapsed time.Duration
}

// Params holds the fill configuration
type Params struct {
	// InputPath is an image file (2D) or a directory of numbered images (3D)
	InputPath string

	// OutputPath receives the filled image for 2D input, or a directory of
	// z planes for 3D input. Nothing is written when it is empty.
	OutputPath string

	// TileStatsPath optionally receives the per-tile median grid of a 2D
	// input as an image
	TileStatsPath string

	// DataType is the element type the input is loaded as
	DataType dataset.DataType

	// BlankValue marks blank pixels when MarkBlank is set
	BlankValue float64
	MarkBlank  bool

	// Tessellation is optional; it is required to restrict the search to
	// channels and enables per-tile statistics
	Tessellation *tessellation.Params

	// TileNeighbors is the number of neighboring tiles a tile without valid
	// elements takes its statistic from; at least 1
	TileNeighbors int

	Interpolation interpolation.Params

	Memory dataset.Options
}

// Filler runs the fill pipeline
type Filler struct {
	params *Params

	data   *dataset.Dataset
	tess   *tessellation.Tessellation
	blanks []int
	stats  *dataset.Dataset
	filled *dataset.Dataset

	report Report
}

// NewFiller creates a new filler with the provided parameters
func NewFiller(params *Params) *Filler {
	return &Filler{params: params}
}

// Process runs the complete fill pipeline
func (f *Filler) Process() error {
	start := time.Now()
	f.report = Report{}
	f.stats, f.filled = nil, nil
	defer f.release()

	logrus.Infof("Step 1: Loading %s...", f.params.InputPath)
	if err := f.load(); err != nil {
		return fmt.Errorf("failed to load input: %w", err)
	}

	logrus.Info("Step 2: Marking blank elements...")
	f.markBlanks()

	if f.params.Tessellation != nil {
		logrus.Info("Step 3: Tessellating and measuring tiles...")
		if err := f.measureTiles(); err != nil {
			return fmt.Errorf("failed to measure tiles: %w", err)
		}
	}

	logrus.Info("Step 4: Filling blank elements...")
	if err := f.fill(); err != nil {
		return fmt.Errorf("failed to fill blanks: %w", err)
	}

	if f.params.OutputPath != "" {
		logrus.Infof("Step 5: Saving to %s...", f.params.OutputPath)
		if err := f.save(); err != nil {
			return fmt.Errorf("failed to save output: %w", err)
		}
	}

	f.report.Elapsed = time.Since(start)
	logrus.Infof("Filled %d blank elements in %v", f.report.BlankCount, f.report.Elapsed)
	return nil
}

// GetReport returns the summary of the last Process call
func (f *Filler) GetReport() Report {
	return f.report
}

func (f *Filler) load() error {
	info, err := os.Stat(f.params.InputPath)
	if err != nil {
		return err
	}
	if info.IsDir() {
		f.data, err = imageio.LoadStack(f.params.InputPath, f.params.DataType, f.params.Memory)
	} else {
		f.data, err = imageio.Load(f.params.InputPath, f.params.DataType, f.params.Memory)
	}
	if err != nil {
		return err
	}
	f.report.Size = f.data.Size()
	f.report.Residency = f.data.Residency()
	logrus.Infof("Loaded %v %s dataset (%s)", f.data.Size(), f.data.Type(), f.data.Residency())
	return nil
}

func (f *Filler) markBlanks() {
	if f.params.MarkBlank {
		n := imageio.MarkBlank(f.data, f.params.BlankValue)
		logrus.Debugf("marked %d elements equal to %g as blank", n, f.params.BlankValue)
	}

	// Remember where the blanks were to describe the filled values later
	f.blanks = f.blanks[:0]
	if traverse.HasBlank(f.data) {
		for i := 0; i < f.data.Len(); i++ {
			if f.data.IsBlank(i) {
				f.blanks = append(f.blanks, i)
			}
		}
	}
	f.report.BlankCount = len(f.blanks)
	logrus.Infof("Found %d blank elements", len(f.blanks))
}

// measureTiles computes the median of every tile's valid elements, in
// parallel, and fills the medians of tiles without valid elements from the
// other tiles of their channel.
func (f *Filler) measureTiles() error {
	tess, err := tessellation.Build(f.data, *f.params.Tessellation)
	if err != nil {
		return err
	}
	f.tess = tess
	f.report.NumTiles = len(tess.Tiles)
	logrus.Infof("Tessellated into %d channels of %v tiles", tess.TotalChannels(), tess.TilesPerChannel())

	// Medians in tessellation order, one slot per tile
	medians := make([]float64, len(tess.Tiles))
	workers := f.params.Interpolation.NumThreads
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	var g errgroup.Group
	for _, r := range models.Partition(len(tess.Tiles), workers) {
		r := r
		g.Go(func() error {
			for id := r.Start; id < r.End; id++ {
				medians[id] = tileMedian(tess.Tiles[id])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	// Back to memory order over the tile grid
	grid, err := dataset.FromSlice(tess.TileGrid(), tessellation.Inverse(medians, tess.Permutation()))
	if err != nil {
		return err
	}
	grid.Name = "tile medians"
	for _, m := range medians {
		if math.IsNaN(m) {
			f.report.EmptyTiles++
		}
	}

	p := f.params.Interpolation
	p.NumNeighbors = max(f.params.TileNeighbors, 1)
	p.OnlyBlank = true
	p.Tessellation = tess
	p.RestrictToChannel = !f.params.Tessellation.WorkOverChannels
	out, err := interpolation.CloseNeighbors([]*dataset.Dataset{grid}, p)
	if err != nil {
		return fmt.Errorf("tile medians: %w", err)
	}
	f.stats = out[0]

	vals := traverse.Values(f.stats, true)
	f.report.TileMedianMin = floats.Min(vals)
	f.report.TileMedianMax = floats.Max(vals)
	logrus.Infof("Tile medians range from %g to %g (%d empty tiles)",
		f.report.TileMedianMin, f.report.TileMedianMax, f.report.EmptyTiles)
	return nil
}

// tileMedian returns the median of a tile's valid elements, or NaN when it
// has none.
func tileMedian(tile *dataset.Dataset) float64 {
	vals := traverse.Values(tile, true)
	if len(vals) == 0 {
		return math.NaN()
	}
	return interpolation.Median.Reduce(vals)
}

func (f *Filler) fill() error {
	p := f.params.Interpolation
	p.Tessellation = f.tess
	p.RestrictToChannel = f.tess != nil && !f.params.Tessellation.WorkOverChannels
	p.Memory = f.params.Memory

	out, err := interpolation.CloseNeighbors([]*dataset.Dataset{f.data}, p)
	if err != nil {
		return err
	}
	f.filled = out[0]

	if len(f.blanks) > 0 {
		vals := make([]float64, len(f.blanks))
		for k, i := range f.blanks {
			vals[k] = f.filled.Value(i)
		}
		f.report.FilledMean, f.report.FilledStdDev = stat.MeanStdDev(vals, nil)
	}
	return nil
}

func (f *Filler) save() error {
	if f.filled.NDim() == 3 {
		if err := imageio.SaveSequence(f.filled, "z", f.params.OutputPath); err != nil {
			return err
		}
	} else if err := imageio.Save(f.params.OutputPath, f.filled); err != nil {
		return err
	}

	if f.params.TileStatsPath != "" && f.stats != nil && f.stats.NDim() == 2 {
		if err := imageio.Save(f.params.TileStatsPath, f.stats); err != nil {
			return fmt.Errorf("tile statistics: %w", err)
		}
	}
	return nil
}

// Filled returns the filled dataset of the last Process call
func (f *Filler) Filled() *dataset.Dataset {
	return f.filled
}

// TileStats returns the per-tile medians over the tile grid, or nil when
// no tessellation was requested
func (f *Filler) TileStats() *dataset.Dataset {
	return f.stats
}

func (f *Filler) release() {
	if f.tess != nil {
		f.tess.Release()
		f.tess = nil
	}
	if f.data != nil {
		f.data.Release()
		f.data = nil
	}
}
