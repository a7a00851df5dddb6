package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	dem "github.com/twpayne/go-lidardem"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info dem.tif",
		Short: "Describe a GeoTIFF DEM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raster, err := openGeoTIFF(args[0])
			if err != nil {
				return err
			}
			defer raster.Close()

			grid, err := raster.ReadGrid(cmd.Context())
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			geometry := raster.Geometry()
			fmt.Fprintf(w, "Grid: %s\n", geometry)
			fmt.Fprintf(w, "CRS: %s %s\n", raster.CRS(), raster.CRS().Citation)
			fmt.Fprintf(w, "Compression: %s\n", raster.Compression())
			fmt.Fprintf(w, "Cells: %d/%d filled\n", grid.FilledCells(), geometry.Cells())

			if bounds, err := dem.GeographicBounds(geometry, raster.CRS()); err != nil {
				fmt.Fprintf(w, "Bounds: %v\n", err)
			} else {
				fmt.Fprintf(w, "Bounds: %+v\n", bounds)
			}

			z := make([]float64, 0, grid.FilledCells())
			for _, value := range grid.Values {
				if !math.IsNaN(float64(value)) {
					z = append(z, float64(value))
				}
			}
			if statistics, err := dem.ComputeStatistics(z); err == nil {
				fmt.Fprintf(w, "Elevation: %s\n", statistics)
			}
			return nil
		},
	}
}
