package dem

import (
	"context"
	"math"
)

// InterpolateBilinear returns the bilinear interpolation of raster's cell
// centers at coords. The result is NaN wherever a surrounding cell with
// non-zero weight holds no data.
func InterpolateBilinear(ctx context.Context, raster Raster, coords [][]float64) ([]float64, error) {
	xOrigin, yOrigin := raster.Origin()
	resolution := raster.Resolution()
	cellCenters := make([][]float64, 4*len(coords))
	weights := make([][2]float64, len(coords))
	for i, coord := range coords {
		// Fractional column and row relative to the center of cell (0, 0).
		fc := (coord[0]-xOrigin)/resolution - 0.5
		fr := (yOrigin-coord[1])/resolution - 0.5
		c0, r0 := math.Floor(fc), math.Floor(fr)
		weights[i] = [2]float64{fc - c0, fr - r0}
		x0 := xOrigin + (c0+0.5)*resolution
		y0 := yOrigin - (r0+0.5)*resolution
		x1 := x0 + resolution
		y1 := y0 - resolution
		cellCenters[4*i+0] = []float64{x0, y0}
		cellCenters[4*i+1] = []float64{x1, y0}
		cellCenters[4*i+2] = []float64{x0, y1}
		cellCenters[4*i+3] = []float64{x1, y1}
	}
	samples, err := raster.Samples(ctx, cellCenters)
	if err != nil {
		return nil, err
	}
	result := make([]float64, len(coords))
	for i := range coords {
		dx, dy := weights[i][0], weights[i][1]
		result[i] = 0 +
			weighted(samples[4*i+0], (1-dx)*(1-dy)) +
			weighted(samples[4*i+1], dx*(1-dy)) +
			weighted(samples[4*i+2], (1-dx)*dy) +
			weighted(samples[4*i+3], dx*dy)
	}
	return result, nil
}

func weighted(sample, weight float64) float64 {
	if weight == 0 {
		return 0
	}
	return sample * weight
}
