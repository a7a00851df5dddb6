package dem_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert/v2"

	dem "github.com/twpayne/go-lidardem"
)

type failingSource struct {
	err error
}

func (s failingSource) ReadPoints(ctx context.Context) (*dem.Cloud, error) {
	return nil, s.err
}

type failingSink struct {
	err error
}

func (s failingSink) WriteGrid(ctx context.Context, grid *dem.Grid) error {
	return s.err
}

var scenarioA = dem.NewCloud(
	dem.Point{X: 0, Y: 0, Z: 10},
	dem.Point{X: 0.5, Y: 0.5, Z: 20},
	dem.Point{X: 1.5, Y: 0.5, Z: 30},
)

func TestConvert(t *testing.T) {
	var logs []string
	logf := func(format string, args ...any) {
		logs = append(logs, fmt.Sprintf(format, args...))
	}

	sink := &dem.MemorySink{}
	result, err := dem.Convert(t.Context(), scenarioA, sink,
		dem.WithResolution(1),
		dem.WithCRS(dem.CRS{EPSG: 32633}),
		dem.WithLogf(logf),
	)
	assert.NoError(t, err)

	assert.Equal(t, dem.Statistics{Min: 10, Max: 30, Mean: 20}, result.Statistics)
	assert.Equal(t, 2, result.Geometry.Width)
	assert.Equal(t, 1, result.Geometry.Height)
	assert.Equal(t, 1, result.Rasterize.Collisions)
	assert.Equal(t, []float32{20, 30}, sink.Grid.Values)
	assert.Equal(t, dem.CRS{EPSG: 32633}, sink.Grid.CRS)
	assert.Equal(t, []string{
		"Min elevation: 10",
		"Max elevation: 30",
		"Mean elevation: 20",
	}, logs[:3])

	// The sink holds an independent copy.
	result.Grid.Set(0, 0, 99)
	assert.Equal(t, float32(20), sink.Grid.At(0, 0))
}

func TestConvertErrors(t *testing.T) {
	errSource := errors.New("source")
	errSink := errors.New("sink")

	for _, tc := range []struct {
		name           string
		source         dem.PointSource
		sink           dem.RasterSink
		options        []dem.ConvertOption
		expectedErr    error
		expectedSource bool
		expectedSink   bool
	}{
		{
			name:        "empty",
			source:      dem.NewCloud(),
			sink:        &dem.MemorySink{},
			expectedErr: dem.ErrEmptyInput,
		},
		{
			name:        "zero_resolution",
			source:      scenarioA,
			sink:        &dem.MemorySink{},
			options:     []dem.ConvertOption{dem.WithResolution(0)},
			expectedErr: dem.ErrInvalidResolution,
		},
		{
			name:        "zero_resolution_empty",
			source:      dem.NewCloud(),
			sink:        &dem.MemorySink{},
			options:     []dem.ConvertOption{dem.WithResolution(0)},
			expectedErr: dem.ErrInvalidResolution,
		},
		{
			name:           "mismatched",
			source:         &dem.Cloud{X: []float64{0, 1}, Y: []float64{0, 1}, Z: []float64{0}},
			sink:           &dem.MemorySink{},
			expectedErr:    dem.ErrMismatchedLengths,
			expectedSource: true,
		},
		{
			name:           "non_finite",
			source:         dem.NewCloud(dem.Point{X: 0, Y: 0, Z: 1}, dem.Point{X: math.Inf(1), Y: 0, Z: 5}, dem.Point{X: 2, Y: 2, Z: 2}),
			sink:           &dem.MemorySink{},
			expectedErr:    dem.ErrNonFinite,
			expectedSource: true,
		},
		{
			name:        "tiny_resolution",
			source:      scenarioA,
			sink:        failingSink{err: errSink},
			options:     []dem.ConvertOption{dem.WithResolution(1e-300)},
			expectedErr: dem.ErrInvalidResolution,
		},
		{
			name:           "source",
			source:         failingSource{err: errSource},
			sink:           &dem.MemorySink{},
			expectedErr:    errSource,
			expectedSource: true,
		},
		{
			name:         "sink",
			source:       scenarioA,
			sink:         failingSink{err: errSink},
			expectedErr:  errSink,
			expectedSink: true,
		},
		{
			name:         "geotiff_sink",
			source:       scenarioA,
			sink:         dem.NewGeoTIFFSink(filepath.Join(t.TempDir(), "missing", "dem.tif")),
			expectedSink: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			options := append([]dem.ConvertOption{dem.WithLogf(func(string, ...any) {})}, tc.options...)
			_, err := dem.Convert(t.Context(), tc.source, tc.sink, options...)
			assert.Error(t, err)
			if tc.expectedErr != nil {
				assert.IsError(t, err, tc.expectedErr)
			}
			var sourceReadError *dem.SourceReadError
			assert.Equal(t, tc.expectedSource, errors.As(err, &sourceReadError))
			var sinkWriteError *dem.SinkWriteError
			assert.Equal(t, tc.expectedSink, errors.As(err, &sinkWriteError))
		})
	}
}

func TestConvertGeoTIFF(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dem.tif")

	result, err := dem.Convert(t.Context(), scenarioA, dem.NewGeoTIFFSink(path), dem.WithLogf(t.Logf))
	assert.NoError(t, err)

	raster, err := dem.OpenGeoTIFF(os.DirFS(dir), "dem.tif")
	assert.NoError(t, err)
	defer func() {
		assert.NoError(t, raster.Close())
	}()

	grid, err := raster.ReadGrid(t.Context())
	assert.NoError(t, err)
	assert.Equal(t, result.Grid.Values, grid.Values)
	assert.Equal(t, dem.DefaultCRS, grid.CRS)
}
