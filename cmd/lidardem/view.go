package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	dem "github.com/twpayne/go-lidardem"
	"github.com/twpayne/go-lidardem/view"
)

var errNoViews = errors.New("no output: set --plot, --html, or --quicklook")

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view dem.tif",
		Short: "Render a GeoTIFF DEM",
		Long: `Render a GeoTIFF DEM as a PNG heat map, an interactive HTML heat map, or
a quicklook image.

Examples:
  lidardem view lidar_dem.tif --plot dem.png
  lidardem view lidar_dem.tif --html dem.html --quicklook dem.jpg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Plot == "" && cfg.HTML == "" && cfg.Quicklook == "" {
				return errNoViews
			}
			raster, err := openGeoTIFF(args[0])
			if err != nil {
				return err
			}
			defer raster.Close()
			grid, err := raster.ReadGrid(cmd.Context())
			if err != nil {
				return err
			}
			return writeViews(cmd, cfg, grid)
		},
	}
}

func openGeoTIFF(path string) (*dem.GeoTIFFRaster, error) {
	return dem.OpenGeoTIFF(os.DirFS(filepath.Dir(path)), filepath.Base(path))
}

func writeViews(cmd *cobra.Command, cfg Config, grid *dem.Grid) error {
	if cfg.Plot != "" {
		if err := view.SavePlot(grid, cfg.Plot); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfg.Plot)
	}
	if cfg.HTML != "" {
		if err := saveHTML(grid, cfg.HTML); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfg.HTML)
	}
	if cfg.Quicklook != "" {
		if err := view.SaveQuicklook(grid, cfg.Quicklook, cfg.QuicklookSize); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfg.Quicklook)
	}
	return nil
}

func saveHTML(grid *dem.Grid, filename string) (err error) {
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
	if err := view.WriteHTML(w, grid); err != nil {
		return err
	}
	return w.Flush()
}
