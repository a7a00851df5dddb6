package view

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	dem "github.com/twpayne/go-lidardem"
)

// WriteHTML writes an interactive HTML heat map of grid to w. Cells holding
// no data are omitted.
func WriteHTML(w io.Writer, grid *dem.Grid, options ...PlotOption) error {
	o := plotOptions{
		title: defaultTitle,
	}
	for _, option := range options {
		option(&o)
	}
	if o.ramp == nil {
		o.ramp = Viridis()
	}

	width, height := grid.Width(), grid.Height()
	xLabels := make([]string, width)
	for c := range xLabels {
		x, _ := grid.Geometry.CellCenter(0, c)
		xLabels[c] = strconv.FormatFloat(x, 'f', -1, 64)
	}
	// The y axis runs upwards, so the southernmost row comes first.
	yLabels := make([]string, height)
	for i := range yLabels {
		_, y := grid.Geometry.CellCenter(height-1-i, 0)
		yLabels[i] = strconv.FormatFloat(y, 'f', -1, 64)
	}

	data := make([]opts.HeatMapData, 0, grid.FilledCells())
	for r := range height {
		for c := range width {
			z := float64(grid.At(r, c))
			if math.IsNaN(z) {
				continue
			}
			data = append(data, opts.HeatMapData{Value: [3]any{c, height - 1 - r, z}})
		}
	}

	lo, hi := elevationRange(grid)
	heatMap := charts.NewHeatMap()
	heatMap.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: o.title, Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: o.title, Subtitle: fmt.Sprintf("%s %s", grid.Geometry, grid.CRS)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Type: "category", Data: xLabels, Name: xCoordinateLabel, NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "category", Data: yLabels, Name: yCoordinateLabel}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        float32(lo),
			Max:        float32(hi),
			Text:       []string{elevationLabel},
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: o.ramp.Hex(len(viridisStops))},
		}),
	)
	heatMap.SetXAxis(xLabels)
	heatMap.AddSeries(elevationLabel, data)

	return heatMap.Render(w)
}
