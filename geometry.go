package dem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// A Geometry describes the extent and cell layout of an elevation grid. Cell
// (row=0, col=0) is anchored at the origin (XMin, YMax).
type Geometry struct {
	XMin       float64
	YMin       float64
	XMax       float64
	YMax       float64
	Resolution float64
	Width      int
	Height     int
}

// MaxCells is the largest number of cells in a Geometry.
const MaxCells = 1<<31 - 1

// maxAxisCells is the largest width or height a GeoTIFF can record.
const maxAxisCells = math.MaxUint32

// NewGeometry returns the Geometry covering x and y at resolution.
//
// Width and height are ceil(extent/resolution), clamped to at least one cell
// so that clouds with zero extent along an axis still produce a grid. Grids
// with more than MaxCells cells are rejected with ErrInvalidResolution.
func NewGeometry(x, y []float64, resolution float64) (Geometry, error) {
	if err := checkResolution(resolution); err != nil {
		return Geometry{}, err
	}
	if len(x) == 0 || len(y) == 0 {
		return Geometry{}, ErrEmptyInput
	}
	if len(x) != len(y) {
		return Geometry{}, fmt.Errorf("%w: x=%d y=%d", ErrMismatchedLengths, len(x), len(y))
	}
	for i := range x {
		if !isFinite(x[i]) || !isFinite(y[i]) {
			return Geometry{}, fmt.Errorf("%w: point %d (%v, %v)", ErrNonFinite, i, x[i], y[i])
		}
	}
	g := Geometry{
		XMin:       floats.Min(x),
		YMin:       floats.Min(y),
		XMax:       floats.Max(x),
		YMax:       floats.Max(y),
		Resolution: resolution,
	}
	if err := g.setDimensions(); err != nil {
		return Geometry{}, err
	}
	return g, nil
}

// setDimensions sets g's width and height from its extent and resolution.
func (g *Geometry) setDimensions() error {
	width, err := cellCount(g.XMax-g.XMin, g.Resolution)
	if err != nil {
		return err
	}
	height, err := cellCount(g.YMax-g.YMin, g.Resolution)
	if err != nil {
		return err
	}
	if width > MaxCells/height {
		return fmt.Errorf("%w: %v: grid too large: %dx%d cells", ErrInvalidResolution, g.Resolution, width, height)
	}
	g.Width, g.Height = width, height
	return nil
}

// checkResolution returns ErrInvalidResolution unless resolution is a
// positive finite number.
func checkResolution(resolution float64) error {
	if !(resolution > 0) || math.IsInf(resolution, 1) {
		return fmt.Errorf("%w: %v", ErrInvalidResolution, resolution)
	}
	return nil
}

// cellCount returns ceil(extent/resolution), at least one.
func cellCount(extent, resolution float64) (int, error) {
	n := math.Ceil(extent / resolution)
	if math.IsNaN(n) || n > maxAxisCells {
		return 0, fmt.Errorf("%w: %v: grid too large: %v cells across %v", ErrInvalidResolution, resolution, n, extent)
	}
	return max(int(n), 1), nil
}

// Origin returns the geographic position of the top-left corner of cell
// (0, 0).
func (g Geometry) Origin() (float64, float64) {
	return g.XMin, g.YMax
}

// Cells returns the number of cells in g.
func (g Geometry) Cells() int {
	return g.Width * g.Height
}

// Transform returns g's affine transform in GDAL order: origin x, pixel
// width, row rotation, origin y, column rotation, negative pixel height.
func (g Geometry) Transform() [6]float64 {
	return [6]float64{g.XMin, g.Resolution, 0, g.YMax, 0, -g.Resolution}
}

// CellCenter returns the geographic coordinate of the center of the cell at
// row, col, with row 0 northernmost.
func (g Geometry) CellCenter(row, col int) (float64, float64) {
	return g.XMin + (float64(col)+0.5)*g.Resolution, g.YMax - (float64(row)+0.5)*g.Resolution
}

// Cell returns the north-up row and column containing the coordinate x, y,
// and whether it lies within g.
func (g Geometry) Cell(x, y float64) (int, int, bool) {
	fc := math.Floor((x - g.XMin) / g.Resolution)
	fr := math.Floor((g.YMax - y) / g.Resolution)
	if !(0 <= fr && fr < float64(g.Height) && 0 <= fc && fc < float64(g.Width)) {
		return 0, 0, false
	}
	return int(fr), int(fc), true
}

func (g Geometry) String() string {
	return fmt.Sprintf("%dx%d cells at %g from (%g, %g) to (%g, %g)",
		g.Width, g.Height, g.Resolution, g.XMin, g.YMin, g.XMax, g.YMax)
}
