package dem

import (
	"context"
	"math"
	"slices"
)

// NoData is the value of cells with no assigned elevation.
var NoData = float32(math.NaN())

// A Grid is a single-band elevation raster stored row-major with row 0
// northernmost.
type Grid struct {
	Geometry Geometry
	CRS      CRS
	Values   []float32
}

// NewGrid returns a new Grid with geometry and every cell set to NoData.
func NewGrid(geometry Geometry) *Grid {
	values := make([]float32, geometry.Cells())
	for i := range values {
		values[i] = NoData
	}
	return &Grid{
		Geometry: geometry,
		CRS:      DefaultCRS,
		Values:   values,
	}
}

// Width returns the number of columns in g.
func (g *Grid) Width() int {
	return g.Geometry.Width
}

// Height returns the number of rows in g.
func (g *Grid) Height() int {
	return g.Geometry.Height
}

// At returns the value at row, col.
func (g *Grid) At(row, col int) float32 {
	return g.Values[row*g.Geometry.Width+col]
}

// Set sets the value at row, col.
func (g *Grid) Set(row, col int, value float32) {
	g.Values[row*g.Geometry.Width+col] = value
}

// Row returns the values of row r. The returned slice aliases g.
func (g *Grid) Row(r int) []float32 {
	return g.Values[r*g.Geometry.Width : (r+1)*g.Geometry.Width]
}

// Rows returns g's values as a slice of rows. The rows alias g.
func (g *Grid) Rows() [][]float32 {
	rows := make([][]float32, g.Geometry.Height)
	for r := range rows {
		rows[r] = g.Row(r)
	}
	return rows
}

// Clone returns an independent copy of g.
func (g *Grid) Clone() *Grid {
	return &Grid{
		Geometry: g.Geometry,
		CRS:      g.CRS,
		Values:   slices.Clone(g.Values),
	}
}

// FilledCells returns the number of cells in g holding data.
func (g *Grid) FilledCells() int {
	n := 0
	for _, v := range g.Values {
		if !isNoData(v) {
			n++
		}
	}
	return n
}

// Range returns the minimum and maximum values in g, ignoring NoData. ok is
// false if g holds no data.
func (g *Grid) Range() (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range g.Values {
		if isNoData(v) {
			continue
		}
		lo = min(lo, float64(v))
		hi = max(hi, float64(v))
		ok = true
	}
	return lo, hi, ok
}

// Sample returns the value of the cell containing x, y, or NaN.
func (g *Grid) Sample(x, y float64) float64 {
	row, col, ok := g.Geometry.Cell(x, y)
	if !ok {
		return math.NaN()
	}
	return float64(g.At(row, col))
}

// Samples returns the values of the cells containing coords. Missing samples
// are represented by NaNs.
func (g *Grid) Samples(ctx context.Context, coords [][]float64) ([]float64, error) {
	samples := make([]float64, len(coords))
	for i, coord := range coords {
		samples[i] = g.Sample(coord[0], coord[1])
	}
	return samples, nil
}

// Origin returns the coordinate of the top-left corner of g.
func (g *Grid) Origin() (float64, float64) {
	return g.Geometry.Origin()
}

// Resolution returns g's cell size.
func (g *Grid) Resolution() float64 {
	return g.Geometry.Resolution
}

func isNoData(v float32) bool {
	return v != v
}
