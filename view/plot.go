package view

import (
	"bufio"
	"image/color"
	"io"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	dem "github.com/twpayne/go-lidardem"
)

const (
	defaultTitle      = "Digital Elevation Model"
	elevationLabel    = "Elevation"
	xCoordinateLabel  = "X Coordinate"
	yCoordinateLabel  = "Y Coordinate"
	defaultPlotSize   = 10 * vg.Inch
	colorBarWidth     = 1.2 * vg.Inch
	paletteColorCount = 256
)

// gridXYZ adapts a dem.Grid to plotter.GridXYZ. Plot rows run south to
// north, so row r of the plot is row height-1-r of the grid.
type gridXYZ struct {
	grid     *dem.Grid
	min, max float64
}

func (g gridXYZ) Dims() (c, r int) {
	return g.grid.Width(), g.grid.Height()
}

func (g gridXYZ) Z(c, r int) float64 {
	return float64(g.grid.At(g.grid.Height()-1-r, c))
}

func (g gridXYZ) X(c int) float64 {
	x, _ := g.grid.Geometry.CellCenter(0, c)
	return x
}

func (g gridXYZ) Y(r int) float64 {
	_, y := g.grid.Geometry.CellCenter(g.grid.Height()-1-r, 0)
	return y
}

func (g gridXYZ) Min() float64 {
	return g.min
}

func (g gridXYZ) Max() float64 {
	return g.max
}

type plotOptions struct {
	title  string
	width  vg.Length
	height vg.Length
	ramp   *Ramp
}

// A PlotOption sets an option on a plot.
type PlotOption func(*plotOptions)

// WithTitle sets the plot title.
func WithTitle(title string) PlotOption {
	return func(o *plotOptions) {
		o.title = title
	}
}

// WithPlotSize sets the size of the plot.
func WithPlotSize(width, height vg.Length) PlotOption {
	return func(o *plotOptions) {
		o.width = width
		o.height = height
	}
}

// WithRamp sets the color ramp.
func WithRamp(ramp *Ramp) PlotOption {
	return func(o *plotOptions) {
		o.ramp = ramp
	}
}

// SavePlot writes a PNG heat map of grid with a colorbar to filename.
func SavePlot(grid *dem.Grid, filename string, options ...PlotOption) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); err == nil {
			err = closeErr
		}
	}()
	w := bufio.NewWriter(file)
	if err := WritePlot(w, grid, options...); err != nil {
		return err
	}
	return w.Flush()
}

// WritePlot writes a PNG heat map of grid with a colorbar to w.
func WritePlot(w io.Writer, grid *dem.Grid, options ...PlotOption) error {
	o := plotOptions{
		title:  defaultTitle,
		width:  defaultPlotSize,
		height: defaultPlotSize,
	}
	for _, option := range options {
		option(&o)
	}
	if o.ramp == nil {
		o.ramp = Viridis()
	}

	lo, hi := elevationRange(grid)
	o.ramp.SetMin(lo)
	o.ramp.SetMax(hi)

	heatMap := plotter.NewHeatMap(gridXYZ{grid: grid, min: lo, max: hi}, o.ramp.Palette(paletteColorCount))
	heatMap.NaN = color.Transparent
	heatMap.Rasterized = true

	p := plot.New()
	p.Title.Text = o.title
	p.X.Label.Text = xCoordinateLabel
	p.Y.Label.Text = yCoordinateLabel
	p.Add(heatMap)

	colorBar := plot.New()
	colorBar.HideX()
	colorBar.Y.Label.Text = elevationLabel
	colorBar.Y.Padding = 0
	colorBar.Add(&plotter.ColorBar{
		ColorMap: o.ramp,
		Vertical: true,
	})

	img := vgimg.New(o.width, o.height)
	dc := draw.New(img)
	p.Draw(draw.Crop(dc, 0, -colorBarWidth, 0, 0))
	colorBar.Draw(draw.Crop(dc, o.width-colorBarWidth, 0, 0, -p.Title.TextStyle.FontExtents().Height))

	_, err := vgimg.PngCanvas{Canvas: img}.WriteTo(w)
	return err
}

// elevationRange returns the range of grid's values, widened so that it is
// never empty.
func elevationRange(grid *dem.Grid) (float64, float64) {
	lo, hi, ok := grid.Range()
	switch {
	case !ok:
		return 0, 1
	case lo == hi:
		return lo - 0.5, hi + 0.5
	default:
		return lo, hi
	}
}
