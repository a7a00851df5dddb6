package dem

import (
	"fmt"
	"strings"

	"github.com/twpayne/go-proj/v10"
)

// A CRS is the coordinate reference system a grid is tagged with. It is
// metadata only: point coordinates are never reprojected.
type CRS struct {
	EPSG     int
	Citation string
}

// DefaultCRS is the geographic WGS 84 tag applied when no CRS is configured.
var DefaultCRS = CRS{
	EPSG:     4326,
	Citation: "WGS 84",
}

// Geographic returns whether c is a geographic (latitude/longitude) CRS.
func (c CRS) Geographic() bool {
	return 4000 <= c.EPSG && c.EPSG < 5000
}

func (c CRS) String() string {
	return fmt.Sprintf("EPSG:%d", c.EPSG)
}

// GeoKeys returns the GeoKey directory and ASCII parameters describing c.
func (c CRS) GeoKeys() ([]uint16, string, error) {
	params := map[GeoKey]int{
		GeoKeyGTRasterType: rasterPixelIsArea,
	}
	if c.Geographic() {
		params[GeoKeyGTModelType] = modelTypeGeographic
		params[GeoKeyGeodeticCRS] = c.EPSG
	} else {
		params[GeoKeyGTModelType] = modelTypeProjected
		params[GeoKeyProjectedCRS] = c.EPSG
	}
	asciiParams := make(map[GeoKey]string)
	if c.Citation != "" {
		asciiParams[GeoKeyGTCitation] = c.Citation
	}
	directory, ascii, err := EncodeGeoKeys(params, asciiParams)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", c, err)
	}
	return directory, ascii, nil
}

// CRSFromGeoKeys returns the CRS described by parsedGeoKeys.
func CRSFromGeoKeys(parsedGeoKeys *ParsedGeoKeys) CRS {
	var crs CRS
	switch parsedGeoKeys.Params[GeoKeyGTModelType] {
	case modelTypeGeographic:
		crs.EPSG = parsedGeoKeys.Params[GeoKeyGeodeticCRS]
	default:
		crs.EPSG = parsedGeoKeys.Params[GeoKeyProjectedCRS]
	}
	crs.Citation = strings.TrimSuffix(parsedGeoKeys.ASCIIParams[GeoKeyGTCitation], "|")
	return crs
}

// Bounds is a longitude/latitude bounding box.
type Bounds struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// GeographicBounds returns the longitude/latitude bounding box of the
// corners of geometry, interpreting geometry in crs.
func GeographicBounds(geometry Geometry, crs CRS) (Bounds, error) {
	xMax := geometry.XMin + float64(geometry.Width)*geometry.Resolution
	yMin := geometry.YMax - float64(geometry.Height)*geometry.Resolution
	if crs.EPSG == 4326 {
		return Bounds{
			MinLon: geometry.XMin,
			MinLat: yMin,
			MaxLon: xMax,
			MaxLat: geometry.YMax,
		}, nil
	}

	pj, err := proj.NewCRSToCRS(crs.String(), "epsg:4326", nil)
	if err != nil {
		return Bounds{}, err
	}
	coords := [][]float64{
		{geometry.XMin, geometry.YMax},
		{xMax, geometry.YMax},
		{geometry.XMin, yMin},
		{xMax, yMin},
	}
	if crs.Geographic() {
		flipCoords(coords)
	}
	if err := pj.ForwardFloat64Slices(coords); err != nil {
		return Bounds{}, err
	}
	// EPSG:4326 has latitude first.
	flipCoords(coords)

	bounds := Bounds{
		MinLon: coords[0][0],
		MinLat: coords[0][1],
		MaxLon: coords[0][0],
		MaxLat: coords[0][1],
	}
	for _, coord := range coords[1:] {
		bounds.MinLon = min(bounds.MinLon, coord[0])
		bounds.MinLat = min(bounds.MinLat, coord[1])
		bounds.MaxLon = max(bounds.MaxLon, coord[0])
		bounds.MaxLat = max(bounds.MaxLat, coord[1])
	}
	return bounds, nil
}

func flipCoords(coords [][]float64) {
	for i, coord := range coords {
		coords[i][0], coords[i][1] = coord[1], coord[0]
	}
}
