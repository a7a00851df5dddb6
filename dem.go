// Package dem converts LiDAR point clouds into gridded Digital Elevation
// Models and persists them as GeoTIFFs.
package dem

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log"
	"math"
)

var (
	ErrEmptyInput        = errors.New("empty input")
	ErrInvalidResolution = errors.New("invalid resolution")
	ErrMismatchedLengths = errors.New("mismatched coordinate lengths")
	ErrNonFinite         = errors.New("non-finite coordinate")
	ErrUnsupportedFormat = errors.New("unsupported point cloud format")
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces Logf. Passing nil mutes it.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}

// A Point is a single LiDAR return.
type Point struct {
	X float64
	Y float64
	Z float64
}

// A Cloud is a point cloud stored as three parallel coordinate slices.
type Cloud struct {
	X []float64
	Y []float64
	Z []float64
}

// NewCloud returns a new Cloud containing points.
func NewCloud(points ...Point) *Cloud {
	c := &Cloud{
		X: make([]float64, len(points)),
		Y: make([]float64, len(points)),
		Z: make([]float64, len(points)),
	}
	for i, p := range points {
		c.X[i], c.Y[i], c.Z[i] = p.X, p.Y, p.Z
	}
	return c
}

// Len returns the number of points in c.
func (c *Cloud) Len() int {
	return len(c.X)
}

// Point returns the ith point.
func (c *Cloud) Point(i int) Point {
	return Point{X: c.X[i], Y: c.Y[i], Z: c.Z[i]}
}

// All iterates over the points of c in input order.
func (c *Cloud) All() iter.Seq2[int, Point] {
	return func(yield func(int, Point) bool) {
		for i := range c.X {
			if !yield(i, c.Point(i)) {
				return
			}
		}
	}
}

// Validate checks that c's coordinate slices have equal length and that
// every coordinate is finite.
func (c *Cloud) Validate() error {
	if len(c.X) != len(c.Y) || len(c.X) != len(c.Z) {
		return fmt.Errorf("%w: x=%d y=%d z=%d", ErrMismatchedLengths, len(c.X), len(c.Y), len(c.Z))
	}
	for i := range c.X {
		if !isFinite(c.X[i]) || !isFinite(c.Y[i]) || !isFinite(c.Z[i]) {
			return fmt.Errorf("%w: point %d (%v, %v, %v)", ErrNonFinite, i, c.X[i], c.Y[i], c.Z[i])
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ReadPoints returns c itself, so an in-memory Cloud is a PointSource.
func (c *Cloud) ReadPoints(ctx context.Context) (*Cloud, error) {
	return c, nil
}

// A PointSource supplies a point cloud.
type PointSource interface {
	ReadPoints(ctx context.Context) (*Cloud, error)
}

// A RasterSink persists an elevation grid.
type RasterSink interface {
	WriteGrid(ctx context.Context, grid *Grid) error
}

// A Raster is a north-up grid of square cells that can be sampled at
// geographic coordinates.
type Raster interface {
	Samples(ctx context.Context, coords [][]float64) ([]float64, error)
	Origin() (float64, float64)
	Resolution() float64
}

// A SourceReadError is returned when a point cloud cannot be read.
type SourceReadError struct {
	Path string
	Err  error
}

func (e *SourceReadError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("read point cloud: %v", e.Err)
	}
	return fmt.Sprintf("%s: read point cloud: %v", e.Path, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// A SinkWriteError is returned when a raster cannot be written.
type SinkWriteError struct {
	Path string
	Err  error
}

func (e *SinkWriteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("write raster: %v", e.Err)
	}
	return fmt.Sprintf("%s: write raster: %v", e.Path, e.Err)
}

func (e *SinkWriteError) Unwrap() error {
	return e.Err
}
