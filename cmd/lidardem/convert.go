package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	dem "github.com/twpayne/go-lidardem"
	"github.com/twpayne/go-lidardem/catalog"
)

func newConvertCmd() *cobra.Command {
	convertCmd := &cobra.Command{
		Use:   "convert input",
		Short: "Rasterize a point cloud into a GeoTIFF DEM",
		Long: `Rasterize a LAS, LAZ, or ASCII XYZ point cloud into a GeoTIFF digital
elevation model. Each cell holds the elevation of the last point that falls in
it. LAZ files are decompressed with laszip, which must be in $PATH.

Examples:
  lidardem convert points.las
  lidardem convert points.laz --resolution 2
  lidardem convert points.xyz --resolution 0.5 --output dem.tif --plot dem.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			cfg, err := LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.MetricsFile != "" {
				defer func() {
					err = errors.Join(err, prometheus.WriteToTextfile(cfg.MetricsFile, prometheus.DefaultGatherer))
				}()
			}
			return runConvert(cmd, cfg, args[0])
		},
	}

	convertCmd.Flags().Float64P("resolution", "r", dem.DefaultResolution, "Cell size in input coordinate units")
	convertCmd.Flags().StringP("output", "o", "lidar_dem.tif", "Output GeoTIFF")
	convertCmd.Flags().String("row-order", dem.RowOrderNorthUp.String(), "Row order (north-up or south-up)")
	convertCmd.Flags().Int("epsg", dem.DefaultCRS.EPSG, "EPSG code of the output CRS")
	convertCmd.Flags().String("compression", dem.CompressionDeflate.String(), "Tile compression (none or deflate)")
	convertCmd.Flags().Int("tile-size", 256, "Tile width and length")
	convertCmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file")
	convertCmd.Flags().String("catalog", "", "Record the run in this SQLite catalog")

	return convertCmd
}

func runConvert(cmd *cobra.Command, cfg Config, input string) error {
	ctx := cmd.Context()

	source, err := dem.OpenPointSource(input)
	if err != nil {
		return err
	}
	sink := dem.NewGeoTIFFSink(cfg.Output,
		dem.WithCompression(cfg.Compression),
		dem.WithTileSize(cfg.TileSize),
	)

	result, err := dem.Convert(ctx, source, sink,
		dem.WithResolution(cfg.Resolution),
		dem.WithCRS(cfg.CRS()),
		dem.WithRasterizeOptions(dem.WithRowOrder(cfg.RowOrder)),
		dem.WithLogf(printfln(cmd.OutOrStdout())),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", cfg.Output)

	if err := writeViews(cmd, cfg, result.Grid); err != nil {
		return err
	}

	if cfg.Catalog != "" {
		c, err := catalog.Open(ctx, cfg.Catalog)
		if err != nil {
			return err
		}
		defer c.Close()
		run := catalog.NewRun(input, cfg.Output, result)
		if err := c.Record(ctx, run); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Run: %s\n", run.ID)
	}

	return nil
}

func printfln(w io.Writer) func(string, ...any) {
	return func(format string, args ...any) {
		fmt.Fprintf(w, format+"\n", args...)
	}
}
