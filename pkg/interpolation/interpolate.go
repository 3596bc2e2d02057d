// Package interpolation fills blank elements of gridded datasets from their
// closest valid neighbors.
package interpolation

import (
	"errors"
	"fmt"
	"runtime"
	"slices"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"tilefill/internal/models"
	"tilefill/pkg/dataset"
	"tilefill/pkg/dimension"
	"tilefill/pkg/tessellation"
	"tilefill/pkg/traverse"
)

// ErrInsufficientNeighbors is returned when a search runs out of reachable
// elements before collecting the requested number of valid samples.
var ErrInsufficientNeighbors = errors.New("interpolation: insufficient valid neighbors")

// Params holds the parameters of a close-neighbor interpolation
type Params struct {
	Metric       dimension.Metric
	NumNeighbors int // K valid samples per target
	NumThreads   int // workers; 0 uses every CPU

	// OnlyBlank fills blank elements only and copies valid ones through.
	// Otherwise every element is recomputed from its own neighborhood.
	OnlyBlank bool

	// RestrictToChannel keeps each search inside the target's channel of
	// Tessellation. It has no effect with a single channel.
	RestrictToChannel bool
	Tessellation      *tessellation.Tessellation

	Reduce Reducer

	// Memory is used to allocate the outputs
	Memory dataset.Options
}

// job is the state shared by all workers. Samples are read straight from the
// inputs unless a channel restriction reorders them; only then does vals hold
// permuted copies.
type job struct {
	params  Params
	inputs  []*dataset.Dataset
	vals    [][]float64 // permuted inputs; nil when reading in memory order
	results [][]float64 // one value per target and input
	blank   []bool      // in search order
	perm    []int       // search order to memory order; nil when not permuted
	domain  []int       // extents of one search domain
	length  int         // elements per search domain
	targets []int
}

// CloseNeighbors returns a filled copy of every input. All inputs must share
// one shape; an element is blank when it is blank in any input, and its fill
// value comes from the same K positions in every input. A single input that
// links further datasets through Next is treated as that whole list.
//
// No outputs are returned on error.
func CloseNeighbors(inputs []*dataset.Dataset, p Params) ([]*dataset.Dataset, error) {
	if len(inputs) == 1 && inputs[0].Next != nil {
		inputs = inputs[0].Collection()
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("interpolation: no input datasets")
	}
	for _, in := range inputs[1:] {
		if !dataset.SameShape(inputs[0], in) {
			return nil, fmt.Errorf("%w: %v and %v", dataset.ErrTypeMismatch, inputs[0].Size(), in.Size())
		}
	}
	if p.NumNeighbors < 1 {
		return nil, fmt.Errorf("interpolation: %d neighbors requested", p.NumNeighbors)
	}
	if p.NumThreads < 1 {
		p.NumThreads = runtime.NumCPU()
	}

	if p.OnlyBlank && !anyBlank(inputs) {
		logrus.Debugf("interpolation: no blank elements, copying %d datasets", len(inputs))
		return copyAll(inputs, p.Memory)
	}

	j, err := newJob(inputs, p)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	if err := j.run(); err != nil {
		return nil, err
	}
	logrus.Debugf("interpolation: %d targets filled in %v", len(j.targets), time.Since(start))

	return j.outputs()
}

func anyBlank(inputs []*dataset.Dataset) bool {
	for _, in := range inputs {
		if traverse.HasBlank(in) {
			return true
		}
	}
	return false
}

func copyAll(inputs []*dataset.Dataset, opts dataset.Options) ([]*dataset.Dataset, error) {
	outs := make([]*dataset.Dataset, 0, len(inputs))
	for _, in := range inputs {
		c, err := in.CopyWith(opts)
		if err != nil {
			releaseAll(outs)
			return nil, err
		}
		c.Flags.Blank = dataset.False
		outs = append(outs, c)
	}
	return outs, nil
}

func releaseAll(ds []*dataset.Dataset) {
	for _, d := range ds {
		d.Release()
	}
}

func newJob(inputs []*dataset.Dataset, p Params) (*job, error) {
	size := inputs[0].Size()
	j := &job{
		params: p,
		inputs: inputs,
		domain: size,
		length: inputs[0].Len(),
	}

	if t := p.Tessellation; p.RestrictToChannel && t != nil && t.TotalChannels() > 1 {
		switch {
		case slices.Equal(size, t.Size()):
			j.perm = t.ElementPermutation()
			j.domain = t.ChannelSize()
		case slices.Equal(size, t.TileGrid()):
			j.perm = t.Permutation()
			j.domain = t.TilesPerChannel()
		default:
			return nil, fmt.Errorf("%w: %v matches neither the tessellated dataset %v nor its tile grid %v",
				dataset.ErrTypeMismatch, size, t.Size(), t.TileGrid())
		}
		j.length = dimension.Total(j.domain)
	}

	n := inputs[0].Len()
	j.blank = make([]bool, n)
	for _, in := range inputs {
		markBlank(in, j.blank)
	}

	if j.perm != nil {
		j.blank = tessellation.Apply(j.blank, j.perm)
		j.vals = make([][]float64, len(inputs))
		for k, in := range inputs {
			j.vals[k] = tessellation.Apply(traverse.Values(in, false), j.perm)
		}
	}

	if p.OnlyBlank {
		for i, b := range j.blank {
			if b {
				j.targets = append(j.targets, i)
			}
		}
	} else {
		j.targets = make([]int, n)
		for i := range j.targets {
			j.targets[i] = i
		}
	}

	j.results = make([][]float64, len(inputs))
	for k := range j.results {
		j.results[k] = make([]float64, len(j.targets))
	}
	return j, nil
}

// markBlank sets mask[i] for every blank element i of d, in element order
func markBlank(d *dataset.Dataset, mask []bool) {
	if !traverse.HasBlank(d) {
		return
	}
	i := 0
	traverse.Rows(d, func(start, w int) bool {
		for bi := start; bi < start+w; bi++ {
			if d.BlockIsBlank(bi) {
				mask[i] = true
			}
			i++
		}
		return true
	})
}

// value returns input k's element at search-order index g
func (j *job) value(k, g int) float64 {
	if j.vals != nil {
		return j.vals[k][g]
	}
	in := j.inputs[k]
	return in.BlockValue(in.BlockIndex(g))
}

// memoryIndex maps a search-order index to its element index
func (j *job) memoryIndex(g int) int {
	if j.perm != nil {
		return j.perm[g]
	}
	return g
}

// run splits the targets into one contiguous range per worker and waits for
// all of them.
func (j *job) run() error {
	ranges := models.Partition(len(j.targets), j.params.NumThreads)
	logrus.Debugf("interpolation: %d targets over %d workers, %d neighbors, %s metric",
		len(j.targets), len(ranges), j.params.NumNeighbors, j.params.Metric)

	var g errgroup.Group
	for _, r := range ranges {
		r := r
		g.Go(func() error {
			w := j.newWorker()
			for ti := r.Start; ti < r.End; ti++ {
				if err := w.fill(ti); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// outputs copies every input into a new block and writes the results over
// the targets. Elements that were not targets keep their exact bytes.
func (j *job) outputs() ([]*dataset.Dataset, error) {
	outs := make([]*dataset.Dataset, 0, len(j.inputs))
	for k, in := range j.inputs {
		o, err := in.CopyWith(j.params.Memory)
		if err != nil {
			releaseAll(outs)
			return nil, fmt.Errorf("interpolation output %d: %w", k, err)
		}
		for ti, t := range j.targets {
			o.SetBlockValue(j.memoryIndex(t), j.results[k][ti])
		}
		o.Flags.Reset()
		o.Flags.Blank = dataset.False
		outs = append(outs, o)
	}
	for k := 0; k+1 < len(outs); k++ {
		outs[k].Next = outs[k+1]
	}
	return outs, nil
}

// worker holds the private scratch of one goroutine
type worker struct {
	*job
	finder    *dimension.NeighborFinder
	visited   []bool
	touched   []int
	queue     nodeQueue
	samples   [][]float64
	neighbors []int
	target    []int
	coord     []int
}

func (j *job) newWorker() *worker {
	finder := dimension.NewNeighborFinder(j.domain, 1)
	w := &worker{
		job:       j,
		finder:    finder,
		visited:   make([]bool, j.length),
		samples:   make([][]float64, len(j.inputs)),
		neighbors: make([]int, 0, finder.MaxNeighbors()),
		target:    make([]int, len(j.domain)),
		coord:     make([]int, len(j.domain)),
	}
	for k := range w.samples {
		w.samples[k] = make([]float64, j.params.NumNeighbors)
	}
	return w
}

// fill searches outward from the ti-th target, in search order, until K
// valid samples are found and stores their reduction as that target's result.
func (w *worker) fill(ti int) error {
	K := w.params.NumNeighbors
	t := w.targets[ti]

	// Searches stay inside the domain holding t
	base := (t / w.length) * w.length
	local := t - base

	for _, i := range w.touched {
		w.visited[i] = false
	}
	w.touched = w.touched[:0]
	w.queue.reset()

	dimension.IndexToCoord(local, w.domain, w.target)
	w.queue.push(local, 0)
	w.visited[local] = true
	w.touched = append(w.touched, local)

	n := 0
	for w.queue.Len() > 0 {
		p := w.queue.pop()
		if g := base + p.index; !w.blank[g] {
			for k := range w.samples {
				w.samples[k][n] = w.value(k, g)
			}
			n++
			if n == K {
				break
			}
		}

		w.neighbors = w.finder.Neighbors(p.index, w.neighbors[:0])
		for _, nb := range w.neighbors {
			if w.visited[nb] {
				continue
			}
			w.visited[nb] = true
			w.touched = append(w.touched, nb)
			dimension.IndexToCoord(nb, w.domain, w.coord)
			w.queue.push(nb, dimension.Distance(w.target, w.coord, w.params.Metric))
		}
	}

	if n < K {
		return fmt.Errorf("%w: element %d reached %d of %d", ErrInsufficientNeighbors, w.memoryIndex(t), n, K)
	}

	for k := range w.samples {
		w.results[k][ti] = w.params.Reduce.Reduce(w.samples[k])
	}
	return nil
}
