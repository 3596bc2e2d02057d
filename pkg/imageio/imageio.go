// Package imageio reads grayscale rasters into datasets and writes datasets
// back out as images.
//
// Pixel values are kept on the 16-bit gray scale, 0 to 65535, whatever the
// bit depth of the file; an 8-bit pixel v is read as v*257. Load into a
// float type, or an integer type wider than 16 bits, to keep a full-white
// pixel apart from the Uint16 blank.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/tiff"

	"tilefill/pkg/dataset"
	"tilefill/pkg/traverse"
)

// Supported image file extensions
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
}

// IsImage reports whether path has a supported image extension
func IsImage(path string) bool {
	return imageExts[strings.ToLower(filepath.Ext(path))]
}

// Load reads a grayscale image into a new 2D block of type t with extents
// height by width, allocated with opts.
func Load(path string, t dataset.DataType, opts dataset.Options) (*dataset.Dataset, error) {
	img, err := loadImage(path)
	if err != nil {
		return nil, err
	}
	b := img.Bounds()
	d, err := dataset.Allocate(t, []int{b.Dy(), b.Dx()}, opts)
	if err != nil {
		return nil, err
	}
	d.Name = filepath.Base(path)
	writePlane(d, 0, img)
	return d, nil
}

// LoadStack reads every image in dir, ordered by the number in its file name,
// into a 3D block of extents count by height by width. All images must have
// the same size.
func LoadStack(dir string, t dataset.DataType, opts dataset.Options) (*dataset.Dataset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsImage(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	sort.SliceStable(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})

	var d *dataset.Dataset
	var bounds image.Rectangle
	for i, name := range files {
		img, err := loadImage(filepath.Join(dir, name))
		if err != nil {
			if d != nil {
				d.Release()
			}
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}

		// The first image fixes the plane size
		if d == nil {
			bounds = img.Bounds()
			d, err = dataset.Allocate(t, []int{len(files), bounds.Dy(), bounds.Dx()}, opts)
			if err != nil {
				return nil, err
			}
			d.Name = filepath.Base(dir)
		} else if img.Bounds().Size() != bounds.Size() {
			d.Release()
			return nil, fmt.Errorf("image %s is %v, expected %v", name, img.Bounds().Size(), bounds.Size())
		}
		writePlane(d, i, img)
	}

	logrus.Debugf("imageio: loaded %d planes of %dx%d from %s (%s)", len(files), bounds.Dx(), bounds.Dy(), dir, d.Residency())
	return d, nil
}

// MarkBlank turns every element of d equal to value into a blank and
// returns how many were changed.
func MarkBlank(d *dataset.Dataset, value float64) int {
	n := 0
	traverse.Rows(d, func(start, w int) bool {
		for bi := start; bi < start+w; bi++ {
			if d.BlockValue(bi) == value {
				d.SetBlockValue(bi, math.NaN())
				n++
			}
		}
		return true
	})
	d.Flags.Reset()
	if n > 0 {
		d.Flags.Blank = dataset.True
	}
	return n
}

// Save writes a 2D dataset as a 16-bit grayscale image. The format follows
// the file extension; JPEG output is 8-bit. Values are clamped to 0..65535
// and blank elements are written as 0.
func Save(path string, d *dataset.Dataset) error {
	img, err := ToImage(d)
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		err = png.Encode(file, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	case ".tif", ".tiff":
		err = tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = fmt.Errorf("unsupported image format %q", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return file.Close()
}

// ToImage converts a 2D dataset into a 16-bit grayscale image
func ToImage(d *dataset.Dataset) (*image.Gray16, error) {
	if d.NDim() != 2 {
		return nil, fmt.Errorf("%w: image from %d-dimensional dataset", dataset.ErrTypeMismatch, d.NDim())
	}
	size := d.Size()
	img := image.NewGray16(image.Rect(0, 0, size[1], size[0]))
	for i := 0; i < d.Len(); i++ {
		var value uint16
		if !d.IsBlank(i) {
			value = uint16(math.Max(0, math.Min(65535, d.Value(i))))
		}
		img.SetGray16(i%size[1], i/size[1], color.Gray16{Y: value})
	}
	return img, nil
}

// ExtractPlane returns a copy of one plane of a 3D dataset of extents
// depth by height by width, as a 2D block. axis names the dimension held at
// position: "z" (depth), "y" (height) or "x" (width).
func ExtractPlane(d *dataset.Dataset, axis string, position int) (*dataset.Dataset, error) {
	if d.NDim() != 3 {
		return nil, fmt.Errorf("%w: plane of %d-dimensional dataset", dataset.ErrTypeMismatch, d.NDim())
	}
	dim, err := axisDim(axis)
	if err != nil {
		return nil, err
	}

	size := d.Size()
	start := []int{0, 0, 0}
	extent := append([]int(nil), size...)
	start[dim] = position
	extent[dim] = 1
	plane, err := d.View(start, extent)
	if err != nil {
		return nil, err
	}
	defer plane.Release()

	var dims []int
	for i, s := range size {
		if i != dim {
			dims = append(dims, s)
		}
	}
	out := dataset.New(d.Type(), dims...)
	out.Name = fmt.Sprintf("%s %s=%d", d.Name, strings.ToLower(axis), position)

	esize := d.Type().Size()
	src, dst := d.Bytes(), out.Bytes()
	off := 0
	traverse.Rows(plane, func(start, n int) bool {
		off += copy(dst[off:], src[start*esize:(start+n)*esize])
		return true
	})
	return out, nil
}

// SaveSequence writes every plane of a 3D dataset along axis into outputDir
// as slice_<axis>_<position>.png.
func SaveSequence(d *dataset.Dataset, axis string, outputDir string) error {
	dim, err := axisDim(axis)
	if err != nil {
		return err
	}
	if d.NDim() != 3 {
		return fmt.Errorf("%w: planes of %d-dimensional dataset", dataset.ErrTypeMismatch, d.NDim())
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	for pos := 0; pos < d.Size()[dim]; pos++ {
		plane, err := ExtractPlane(d, axis, pos)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", strings.ToLower(axis), pos))
		if err := Save(filename, plane); err != nil {
			return err
		}
	}
	return nil
}

func axisDim(axis string) (int, error) {
	switch axis {
	case "z", "Z":
		return 0, nil
	case "y", "Y":
		return 1, nil
	case "x", "X":
		return 2, nil
	}
	return 0, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
}

// loadImage decodes a PNG, JPEG or TIFF file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err = png.Decode(file)
	case ".jpg", ".jpeg":
		img, err = jpeg.Decode(file)
	case ".tif", ".tiff":
		img, err = tiff.Decode(file)
	default:
		return nil, fmt.Errorf("unsupported image format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

// writePlane stores img's gray levels as plane z of d. A 2D d has one plane.
func writePlane(d *dataset.Dataset, z int, img image.Image) {
	b := img.Bounds()
	base := z * b.Dx() * b.Dy()
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			d.SetBlockValue(base+y*b.Dx()+x, float64(g.Y))
		}
	}
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}
