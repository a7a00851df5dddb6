package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lidardem",
		Short: "Rasterize LiDAR point clouds into digital elevation models",
		Long: `lidardem bins LiDAR points into a regular grid of elevations and writes
the grid as a georeferenced GeoTIFF.

Configuration can be set via environment variables (LIDARDEM_*) or
command-line flags. Flags take precedence over environment variables.`,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	rootCmd.PersistentFlags().String("plot", "", "Write a PNG heat map to this file")
	rootCmd.PersistentFlags().String("html", "", "Write an interactive HTML heat map to this file")
	rootCmd.PersistentFlags().String("quicklook", "", "Write a quicklook image to this file")
	rootCmd.PersistentFlags().Int("quicklook-size", 512, "Longer side of the quicklook image in pixels")

	rootCmd.AddCommand(
		newConvertCmd(),
		newViewCmd(),
		newSampleCmd(),
		newInfoCmd(),
		newRunsCmd(),
	)

	return rootCmd
}
