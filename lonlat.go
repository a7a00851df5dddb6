package dem

import (
	"context"

	"github.com/twpayne/go-proj/v10"
)

// A LonLatRaster samples a Raster at WGS 84 longitude/latitude coordinates.
// Projected CRSs are assumed to have easting first.
type LonLatRaster struct {
	raster Raster
	crs    CRS
	pj     *proj.PJ
}

// NewLonLatRaster returns a new LonLatRaster for raster, whose coordinates are
// in crs.
func NewLonLatRaster(raster Raster, crs CRS) (*LonLatRaster, error) {
	r := &LonLatRaster{
		raster: raster,
		crs:    crs,
	}
	if crs.EPSG != DefaultCRS.EPSG {
		pj, err := proj.NewCRSToCRS("epsg:4326", crs.String(), nil)
		if err != nil {
			return nil, err
		}
		r.pj = pj
	}
	return r, nil
}

// Samples returns the values of the cells containing lonLats.
func (r *LonLatRaster) Samples(ctx context.Context, lonLats [][]float64) ([]float64, error) {
	coords, err := r.project(lonLats)
	if err != nil {
		return nil, err
	}
	return r.raster.Samples(ctx, coords)
}

// InterpolateBilinear returns the bilinear interpolation of r's cell centers
// at lonLats.
func (r *LonLatRaster) InterpolateBilinear(ctx context.Context, lonLats [][]float64) ([]float64, error) {
	coords, err := r.project(lonLats)
	if err != nil {
		return nil, err
	}
	return InterpolateBilinear(ctx, r.raster, coords)
}

// project returns lonLats transformed into r's CRS. lonLats is not modified.
func (r *LonLatRaster) project(lonLats [][]float64) ([][]float64, error) {
	coords := cloneCoords(lonLats)
	if r.pj == nil {
		return coords, nil
	}
	flipCoords(coords)
	if err := r.pj.ForwardFloat64Slices(coords); err != nil {
		return nil, err
	}
	if r.crs.Geographic() {
		flipCoords(coords)
	}
	return coords, nil
}

func cloneCoords(coords [][]float64) [][]float64 {
	clonedCoordsFlat := make([]float64, 2*len(coords))
	clonedCoords := make([][]float64, len(coords))
	for i, coord := range coords {
		copy(clonedCoordsFlat[2*i:2*i+2], coord)
		clonedCoords[i] = clonedCoordsFlat[2*i : 2*i+2]
	}
	return clonedCoords
}
