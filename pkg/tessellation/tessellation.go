// Package tessellation covers a dataset with a two-layer grid: the dataset is
// split into equal channels, and every channel into a regular grid of tiles.
// Channels and tiles are views of the dataset's block, so building a
// tessellation never copies element data.
package tessellation

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"tilefill/pkg/dataset"
	"tilefill/pkg/dimension"
)

// ErrConfiguration is returned when the requested tile or channel layout
// cannot cover the dataset.
var ErrConfiguration = errors.New("tessellation: invalid configuration")

// DefaultRemainderFrac is the remainder fraction used when none is configured
const DefaultRemainderFrac = 0.1

// Params holds the requested layout
type Params struct {
	// TileSize is the requested tile extent per dimension
	TileSize []int

	// NumChannels is the number of channels per dimension; each must
	// divide the dataset extent exactly
	NumChannels []int

	// RemainderFrac decides the fate of a partial tile along a dimension.
	// A remainder smaller than this fraction of the tile extent is merged
	// into the last tile; a larger one becomes its own tile.
	RemainderFrac float64

	// WorkOverChannels lets neighborhood operations cross channel borders
	WorkOverChannels bool
}

// Validate checks the parameters against a dataset of the given extents
func (p Params) Validate(size []int) error {
	if len(p.TileSize) != len(size) {
		return fmt.Errorf("%w: %d tile extents for a %d-dimensional dataset",
			ErrConfiguration, len(p.TileSize), len(size))
	}
	if len(p.NumChannels) != len(size) {
		return fmt.Errorf("%w: %d channel counts for a %d-dimensional dataset",
			ErrConfiguration, len(p.NumChannels), len(size))
	}
	if p.RemainderFrac < 0 {
		return fmt.Errorf("%w: negative remainder fraction %g", ErrConfiguration, p.RemainderFrac)
	}
	for i := range size {
		ch := p.NumChannels[i]
		if ch < 1 || size[i]%ch != 0 {
			return fmt.Errorf("%w: dimension %d: %d channels do not divide extent %d",
				ErrConfiguration, i, ch, size[i])
		}
		chanExt := size[i] / ch
		tile := p.TileSize[i]
		if tile < 1 || tile > chanExt {
			return fmt.Errorf("%w: dimension %d: tile extent %d outside 1..%d",
				ErrConfiguration, i, tile, chanExt)
		}
	}
	return nil
}

// Tessellation is a built two-layer grid over one dataset
type Tessellation struct {
	Params Params

	// Channels in row-major order over the channel grid
	Channels []*dataset.Dataset

	// Tiles in tessellation order: all tiles of channel 0 in row-major
	// order inside the channel, then channel 1, and so on.
	Tiles []*dataset.Dataset

	size        []int
	channelSize []int
	numChannels []int
	tilesPerCh  []int
	tileGrid    []int

	// Tile starts and extents along each dimension, relative to the channel
	tileStarts [][]int
	tileSizes  [][]int

	permMu   sync.Mutex
	perm     []int
	elemPerm []int
}

// Build tessellates d. d may be a block or a tile; the channels are views of
// d and the tiles are views of their channel.
func Build(d *dataset.Dataset, p Params) (*Tessellation, error) {
	size := d.Size()
	if err := p.Validate(size); err != nil {
		return nil, err
	}

	nd := len(size)
	t := &Tessellation{
		Params:      p,
		size:        append([]int(nil), size...),
		channelSize: make([]int, nd),
		numChannels: append([]int(nil), p.NumChannels...),
		tilesPerCh:  make([]int, nd),
		tileGrid:    make([]int, nd),
		tileStarts:  make([][]int, nd),
		tileSizes:   make([][]int, nd),
	}

	// Every dimension decides its remainder on its own
	for i := range size {
		chanExt := size[i] / p.NumChannels[i]
		tile := p.TileSize[i]
		n, rem := chanExt/tile, chanExt%tile
		if n == 0 {
			return nil, fmt.Errorf("%w: dimension %d has no tiles", ErrConfiguration, i)
		}
		sizes := make([]int, n, n+1)
		for k := range sizes {
			sizes[k] = tile
		}
		if rem > 0 {
			if float64(rem)/float64(tile) < p.RemainderFrac {
				sizes[n-1] += rem
			} else {
				sizes = append(sizes, rem)
			}
		}
		starts := make([]int, len(sizes))
		for k := 1; k < len(sizes); k++ {
			starts[k] = starts[k-1] + sizes[k-1]
		}

		t.channelSize[i] = chanExt
		t.tilesPerCh[i] = len(sizes)
		t.tileGrid[i] = len(sizes) * p.NumChannels[i]
		t.tileStarts[i] = starts
		t.tileSizes[i] = sizes
	}

	if err := t.makeViews(d); err != nil {
		t.Release()
		return nil, err
	}
	t.BuildPermutation()

	logrus.Debugf("tessellation: %v dataset, %v channels of %v, %v tiles per channel, %d tiles",
		t.size, t.numChannels, t.channelSize, t.tilesPerCh, len(t.Tiles))
	return t, nil
}

func (t *Tessellation) makeViews(d *dataset.Dataset) error {
	nd := len(t.size)
	nch := dimension.Total(t.numChannels)
	ntile := dimension.Total(t.tilesPerCh)
	t.Channels = make([]*dataset.Dataset, 0, nch)
	t.Tiles = make([]*dataset.Dataset, 0, nch*ntile)

	coord := make([]int, nd)
	start := make([]int, nd)
	extent := make([]int, nd)
	for c := 0; c < nch; c++ {
		dimension.IndexToCoord(c, t.numChannels, coord)
		for i := range coord {
			start[i] = coord[i] * t.channelSize[i]
		}
		ch, err := d.View(start, t.channelSize)
		if err != nil {
			return err
		}
		ch.Name = fmt.Sprintf("channel %d", c)
		t.Channels = append(t.Channels, ch)

		for k := 0; k < ntile; k++ {
			dimension.IndexToCoord(k, t.tilesPerCh, coord)
			for i := range coord {
				start[i] = t.tileStarts[i][coord[i]]
				extent[i] = t.tileSizes[i][coord[i]]
			}
			tile, err := ch.View(start, extent)
			if err != nil {
				return err
			}
			tile.Name = fmt.Sprintf("tile %d", len(t.Tiles))
			t.Tiles = append(t.Tiles, tile)
		}
	}
	return nil
}

// Size returns the extents of the tessellated dataset
func (t *Tessellation) Size() []int { return t.size }

// ChannelSize returns the extents of one channel
func (t *Tessellation) ChannelSize() []int { return t.channelSize }

// NumChannels returns the channel count per dimension
func (t *Tessellation) NumChannels() []int { return t.numChannels }

// TilesPerChannel returns the realized tile count per dimension inside one
// channel, after the remainder policy.
func (t *Tessellation) TilesPerChannel() []int { return t.tilesPerCh }

// TileGrid returns the tile count per dimension over the whole dataset
func (t *Tessellation) TileGrid() []int { return t.tileGrid }

// TotalChannels returns the number of channels
func (t *Tessellation) TotalChannels() int { return dimension.Total(t.numChannels) }

// TotalTiles returns the number of tiles
func (t *Tessellation) TotalTiles() int { return dimension.Total(t.tileGrid) }

// ChannelLen returns the number of elements in one channel
func (t *Tessellation) ChannelLen() int { return dimension.Total(t.channelSize) }

// ChannelOf returns the channel holding tile id
func (t *Tessellation) ChannelOf(id int) int {
	return id / dimension.Total(t.tilesPerCh)
}

// TileOf returns the ID of the tile holding the element at flat index
// index of the tessellated dataset.
func (t *Tessellation) TileOf(index int) int {
	var cbuf, chbuf, tbuf [dimension.MaxDims]int
	nd := len(t.size)
	coord := dimension.IndexToCoord(index, t.size, cbuf[:nd])
	ch := chbuf[:nd]
	tc := tbuf[:nd]
	for i, c := range coord {
		ch[i] = c / t.channelSize[i]
		k := (c % t.channelSize[i]) / t.Params.TileSize[i]
		// A merged remainder makes the last tile longer than TileSize
		if k >= t.tilesPerCh[i] {
			k = t.tilesPerCh[i] - 1
		}
		tc[i] = k
	}
	return dimension.CoordToIndex(ch, t.numChannels)*dimension.Total(t.tilesPerCh) +
		dimension.CoordToIndex(tc, t.tilesPerCh)
}

// Release detaches every tile and channel from the dataset. The tessellation
// must not be used afterwards.
func (t *Tessellation) Release() {
	for _, tile := range t.Tiles {
		tile.Release()
	}
	for _, ch := range t.Channels {
		ch.Release()
	}
	t.Tiles = nil
	t.Channels = nil
}

func (t *Tessellation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "dataset:           %v\n", t.size)
	fmt.Fprintf(&b, "channels:          %v (%d) of %v\n", t.numChannels, t.TotalChannels(), t.channelSize)
	fmt.Fprintf(&b, "tiles per channel: %v\n", t.tilesPerCh)
	fmt.Fprintf(&b, "tile grid:         %v (%d)\n", t.tileGrid, t.TotalTiles())
	for i := range t.size {
		fmt.Fprintf(&b, "dimension %d tiles: %v\n", i, t.tileSizes[i])
	}
	return b.String()
}
