package dem

import (
	"fmt"
	"math"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rasterizedPoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lidardem_rasterized_points_total",
		Help: "The total number of points written to a grid cell",
	})
	droppedPoints = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lidardem_dropped_points_total",
		Help: "The total number of points that fell outside the grid",
	})
	cellCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lidardem_cell_collisions_total",
		Help: "The total number of points that overwrote an existing cell value",
	})
)

// A RowOrder selects how a point's Y coordinate maps to a grid row.
type RowOrder int

const (
	// RowOrderNorthUp maps YMax to row 0, matching the georeferencing of the
	// written raster.
	RowOrderNorthUp RowOrder = iota
	// RowOrderSouthUp maps YMin to row 0 while the raster is still anchored
	// at YMax, so the image is vertically mirrored. It reproduces rasters
	// produced by earlier tools.
	RowOrderSouthUp
)

// ParseRowOrder parses "north-up" or "south-up".
func ParseRowOrder(s string) (RowOrder, error) {
	switch s {
	case "north-up", "":
		return RowOrderNorthUp, nil
	case "south-up":
		return RowOrderSouthUp, nil
	default:
		return 0, fmt.Errorf("%s: unknown row order", s)
	}
}

func (o RowOrder) String() string {
	switch o {
	case RowOrderNorthUp:
		return "north-up"
	case RowOrderSouthUp:
		return "south-up"
	default:
		return fmt.Sprintf("RowOrder(%d)", int(o))
	}
}

// A RasterizeResult summarizes a call to Rasterize.
type RasterizeResult struct {
	Points      int // Points considered.
	Binned      int // Points written to a cell.
	Dropped     int // Points outside the grid.
	Collisions  int // Points that overwrote an earlier value.
	FilledCells int // Cells holding data.
}

type rasterizeOptions struct {
	rowOrder RowOrder
}

// A RasterizeOption sets an option on Rasterize.
type RasterizeOption func(*rasterizeOptions)

// WithRowOrder sets the row order.
func WithRowOrder(rowOrder RowOrder) RasterizeOption {
	return func(o *rasterizeOptions) {
		o.rowOrder = rowOrder
	}
}

// Rasterize bins the points of cloud into a new grid with geometry. Points
// are visited in input order and each in-bounds point overwrites the cell it
// falls in, so a cell holds the Z of the last point mapped to it. Cells with
// no points hold NoData. Points outside the grid, including points lying
// exactly on the maximum X edge or the far Y edge, are dropped.
func Rasterize(cloud *Cloud, geometry Geometry, options ...RasterizeOption) (*Grid, RasterizeResult, error) {
	o := rasterizeOptions{
		rowOrder: RowOrderNorthUp,
	}
	for _, option := range options {
		option(&o)
	}

	if err := cloud.Validate(); err != nil {
		return nil, RasterizeResult{}, err
	}
	if err := checkResolution(geometry.Resolution); err != nil {
		return nil, RasterizeResult{}, err
	}

	grid := NewGrid(geometry)
	width, height := float64(geometry.Width), float64(geometry.Height)
	result := RasterizeResult{
		Points: cloud.Len(),
	}
	for i, x := range cloud.X {
		y := cloud.Y[i]
		fc := math.Floor((x - geometry.XMin) / geometry.Resolution)
		var fr float64
		switch o.rowOrder {
		case RowOrderSouthUp:
			fr = math.Floor((y - geometry.YMin) / geometry.Resolution)
		default:
			fr = math.Floor((geometry.YMax - y) / geometry.Resolution)
		}
		if !(0 <= fr && fr < height && 0 <= fc && fc < width) {
			result.Dropped++
			continue
		}
		index := int(fr)*geometry.Width + int(fc)
		if !isNoData(grid.Values[index]) {
			result.Collisions++
		}
		grid.Values[index] = float32(cloud.Z[i])
		result.Binned++
	}
	result.FilledCells = grid.FilledCells()

	rasterizedPoints.Add(float64(result.Binned))
	droppedPoints.Add(float64(result.Dropped))
	cellCollisions.Add(float64(result.Collisions))

	return grid, result, nil
}
