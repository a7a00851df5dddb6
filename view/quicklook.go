package view

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/disintegration/imaging"

	dem "github.com/twpayne/go-lidardem"
)

// DefaultQuicklookSize is the default length of the longer side of a
// quicklook image, in pixels.
const DefaultQuicklookSize = 512

// RenderImage returns an image of grid with one pixel per cell, north at the
// top. Cells holding no data are transparent.
func RenderImage(grid *dem.Grid, ramp *Ramp) *image.NRGBA {
	if ramp == nil {
		ramp = Viridis()
	}
	lo, hi := elevationRange(grid)
	ramp.SetMin(lo)
	ramp.SetMax(hi)

	img := image.NewNRGBA(image.Rect(0, 0, grid.Width(), grid.Height()))
	for r := range grid.Height() {
		for c, z := range grid.Row(r) {
			if math.IsNaN(float64(z)) {
				img.Set(c, r, color.Transparent)
				continue
			}
			col, err := ramp.At(float64(z))
			if err != nil {
				continue
			}
			img.Set(c, r, col)
		}
	}
	return img
}

// Quicklook returns RenderImage(grid, ramp) scaled with nearest-neighbor
// resampling so that its longer side is size pixels.
func Quicklook(grid *dem.Grid, ramp *Ramp, size int) *image.NRGBA {
	img := RenderImage(grid, ramp)
	if size <= 0 {
		size = DefaultQuicklookSize
	}
	if grid.Width() >= grid.Height() {
		return imaging.Resize(img, size, 0, imaging.NearestNeighbor)
	}
	return imaging.Resize(img, 0, size, imaging.NearestNeighbor)
}

// SaveQuicklook saves a quicklook image of grid to filename. The format is
// taken from filename's extension.
func SaveQuicklook(grid *dem.Grid, filename string, size int) error {
	return imaging.Save(Quicklook(grid, nil, size), filename)
}

// WriteQuicklook writes a PNG quicklook image of grid to w.
func WriteQuicklook(w io.Writer, grid *dem.Grid, size int) error {
	return imaging.Encode(w, Quicklook(grid, nil, size), imaging.PNG)
}
