package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	dem "github.com/twpayne/go-lidardem"
)

var (
	errNoMatches      = errors.New("no matching DEMs")
	errOddCoordinates = errors.New("coordinates must be x y pairs")
)

func newSampleCmd() *cobra.Command {
	sampleCmd := &cobra.Command{
		Use:   "sample pattern x y [x y...]",
		Short: "Print the elevation of DEMs at coordinates",
		Long: `Print the elevation of one or more GeoTIFF DEMs at one or more coordinates,
given in the DEMs' CRS or, with --lonlat, as WGS 84 longitude and latitude.
The pattern may match several DEMs with a common resolution and CRS, which are
sampled as a single mosaic. Coordinates outside every DEM or in empty cells
print NaN.

Examples:
  lidardem sample lidar_dem.tif 100.5 200.5
  lidardem sample 'tiles/*.tif' 100.5 200.5 101 201 --bilinear
  lidardem sample 'tiles/*.tif' 15.25 45.5 --lonlat`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			coords, err := parseCoords(args[1:])
			if err != nil {
				return err
			}
			bilinear, _ := cmd.Flags().GetBool("bilinear")
			lonLat, _ := cmd.Flags().GetBool("lonlat")

			mosaic, err := openMosaic(args[0])
			if err != nil {
				return err
			}
			defer mosaic.Close()

			samples := mosaic.Samples
			interpolate := func(ctx context.Context, coords [][]float64) ([]float64, error) {
				return dem.InterpolateBilinear(ctx, mosaic, coords)
			}
			if lonLat {
				lonLatRaster, err := dem.NewLonLatRaster(mosaic, mosaic.CRS())
				if err != nil {
					return err
				}
				samples, interpolate = lonLatRaster.Samples, lonLatRaster.InterpolateBilinear
			}

			var elevations []float64
			if bilinear {
				elevations, err = interpolate(cmd.Context(), coords)
			} else {
				elevations, err = samples(cmd.Context(), coords)
			}
			if err != nil {
				return err
			}
			for i, elevation := range elevations {
				fmt.Fprintf(cmd.OutOrStdout(), "%v %v %v\n", coords[i][0], coords[i][1], elevation)
			}
			return nil
		},
	}

	sampleCmd.Flags().Bool("bilinear", false, "Interpolate between cell centers")
	sampleCmd.Flags().Bool("lonlat", false, "Coordinates are WGS 84 longitude and latitude")

	return sampleCmd
}

func parseCoords(args []string) ([][]float64, error) {
	if len(args)%2 != 0 {
		return nil, errOddCoordinates
	}
	coords := make([][]float64, 0, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		x, err := strconv.ParseFloat(args[i], 64)
		if err != nil {
			return nil, err
		}
		y, err := strconv.ParseFloat(args[i+1], 64)
		if err != nil {
			return nil, err
		}
		coords = append(coords, []float64{x, y})
	}
	return coords, nil
}

func openMosaic(pattern string) (*dem.Mosaic, error) {
	fsys := os.DirFS(filepath.Dir(pattern))
	filenames, err := fs.Glob(fsys, filepath.Base(pattern))
	if err != nil {
		return nil, err
	}
	if len(filenames) == 0 {
		return nil, fmt.Errorf("%s: %w", pattern, errNoMatches)
	}
	return dem.OpenMosaic(fsys, filenames)
}
