package dem

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pointsRead = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lidardem_points_read_total",
		Help: "The total number of points read from point sources",
	})
	conversions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lidardem_conversions_total",
		Help: "The total number of conversions by result",
	}, []string{"result"})
)

// DefaultResolution is the cell size used when none is configured.
const DefaultResolution = 1.0

// A ConvertResult describes a completed conversion.
type ConvertResult struct {
	Statistics Statistics
	Geometry   Geometry
	Rasterize  RasterizeResult
	Grid       *Grid
}

type convertOptions struct {
	resolution       float64
	crs              CRS
	rasterizeOptions []RasterizeOption
	logf             func(string, ...any)
}

// A ConvertOption sets an option on Convert.
type ConvertOption func(*convertOptions)

// WithResolution sets the cell size, in the units of the point coordinates.
func WithResolution(resolution float64) ConvertOption {
	return func(o *convertOptions) {
		o.resolution = resolution
	}
}

// WithCRS sets the CRS the grid is tagged with.
func WithCRS(crs CRS) ConvertOption {
	return func(o *convertOptions) {
		o.crs = crs
	}
}

// WithRasterizeOptions sets options passed to Rasterize.
func WithRasterizeOptions(rasterizeOptions ...RasterizeOption) ConvertOption {
	return func(o *convertOptions) {
		o.rasterizeOptions = append(o.rasterizeOptions, rasterizeOptions...)
	}
}

// WithLogf sets the function used to report statistics and diagnostics.
func WithLogf(logf func(string, ...any)) ConvertOption {
	return func(o *convertOptions) {
		o.logf = logf
	}
}

// Convert reads a point cloud from source, rasterizes it, and writes the
// resulting grid to sink. Elevation statistics are reported before the grid
// is built.
func Convert(ctx context.Context, source PointSource, sink RasterSink, options ...ConvertOption) (*ConvertResult, error) {
	result, err := convert(ctx, source, sink, options...)
	if err != nil {
		conversions.WithLabelValues("error").Inc()
		return nil, err
	}
	conversions.WithLabelValues("ok").Inc()
	return result, nil
}

func convert(ctx context.Context, source PointSource, sink RasterSink, options ...ConvertOption) (*ConvertResult, error) {
	o := convertOptions{
		resolution: DefaultResolution,
		crs:        DefaultCRS,
		logf:       Logf,
	}
	for _, option := range options {
		option(&o)
	}

	if err := checkResolution(o.resolution); err != nil {
		return nil, err
	}

	cloud, err := source.ReadPoints(ctx)
	if err != nil {
		if sourceReadError := (*SourceReadError)(nil); !errors.As(err, &sourceReadError) {
			err = &SourceReadError{Err: err}
		}
		return nil, err
	}
	if err := cloud.Validate(); err != nil {
		return nil, &SourceReadError{Err: err}
	}
	pointsRead.Add(float64(cloud.Len()))

	statistics, err := ComputeStatistics(cloud.Z)
	if err != nil {
		return nil, err
	}
	o.logf("Min elevation: %v", statistics.Min)
	o.logf("Max elevation: %v", statistics.Max)
	o.logf("Mean elevation: %v", statistics.Mean)

	geometry, err := NewGeometry(cloud.X, cloud.Y, o.resolution)
	if err != nil {
		return nil, err
	}

	grid, rasterizeResult, err := Rasterize(cloud, geometry, o.rasterizeOptions...)
	if err != nil {
		return nil, err
	}
	grid.CRS = o.crs
	o.logf("Grid: %s", geometry)
	o.logf("Points: %d binned, %d dropped, %d collisions, %d/%d cells filled",
		rasterizeResult.Binned, rasterizeResult.Dropped, rasterizeResult.Collisions,
		rasterizeResult.FilledCells, geometry.Cells())

	if err := sink.WriteGrid(ctx, grid); err != nil {
		if sinkWriteError := (*SinkWriteError)(nil); !errors.As(err, &sinkWriteError) {
			err = &SinkWriteError{Err: err}
		}
		return nil, err
	}

	return &ConvertResult{
		Statistics: statistics,
		Geometry:   geometry,
		Rasterize:  rasterizeResult,
		Grid:       grid,
	}, nil
}
