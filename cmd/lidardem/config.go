package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	dem "github.com/twpayne/go-lidardem"
)

// Config holds the command configuration.
type Config struct {
	Resolution    float64
	Output        string
	RowOrder      dem.RowOrder
	EPSG          int
	Compression   dem.Compression
	TileSize      int
	Plot          string
	HTML          string
	Quicklook     string
	QuicklookSize int
	MetricsFile   string
	Catalog       string
}

// LoadConfig loads configuration from command flags, then environment
// variables, then defaults.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	cfg := Config{
		Output:      getConfigString(cmd, "output", "LIDARDEM_OUTPUT", "lidar_dem.tif"),
		Plot:        getConfigString(cmd, "plot", "LIDARDEM_PLOT", ""),
		HTML:        getConfigString(cmd, "html", "LIDARDEM_HTML", ""),
		Quicklook:   getConfigString(cmd, "quicklook", "LIDARDEM_QUICKLOOK", ""),
		MetricsFile: getConfigString(cmd, "metrics-file", "LIDARDEM_METRICS_FILE", ""),
		Catalog:     getConfigString(cmd, "catalog", "LIDARDEM_CATALOG", ""),
	}

	var err error
	if cfg.Resolution, err = getConfigFloat(cmd, "resolution", "LIDARDEM_RESOLUTION", dem.DefaultResolution); err != nil {
		return Config{}, err
	}
	if cfg.EPSG, err = getConfigInt(cmd, "epsg", "LIDARDEM_EPSG", dem.DefaultCRS.EPSG); err != nil {
		return Config{}, err
	}
	if cfg.TileSize, err = getConfigInt(cmd, "tile-size", "LIDARDEM_TILE_SIZE", 256); err != nil {
		return Config{}, err
	}
	if cfg.QuicklookSize, err = getConfigInt(cmd, "quicklook-size", "LIDARDEM_QUICKLOOK_SIZE", 512); err != nil {
		return Config{}, err
	}

	rowOrder, err := dem.ParseRowOrder(getConfigString(cmd, "row-order", "LIDARDEM_ROW_ORDER", dem.RowOrderNorthUp.String()))
	if err != nil {
		return Config{}, err
	}
	cfg.RowOrder = rowOrder

	compression, err := dem.ParseCompression(getConfigString(cmd, "compression", "LIDARDEM_COMPRESSION", dem.CompressionDeflate.String()))
	if err != nil {
		return Config{}, err
	}
	cfg.Compression = compression

	return cfg, nil
}

// CRS returns the CRS to tag grids with.
func (c *Config) CRS() dem.CRS {
	if c.EPSG == dem.DefaultCRS.EPSG {
		return dem.DefaultCRS
	}
	return dem.CRS{EPSG: c.EPSG}
}

func getConfigString(cmd *cobra.Command, flagName, envName, defaultValue string) string {
	if cmd.Flags().Changed(flagName) {
		val, _ := cmd.Flags().GetString(flagName)
		return val
	}
	if v := os.Getenv(envName); v != "" {
		return v
	}
	return defaultValue
}

func getConfigInt(cmd *cobra.Command, flagName, envName string, defaultValue int) (int, error) {
	if cmd.Flags().Changed(flagName) {
		return cmd.Flags().GetInt(flagName)
	}
	if v := os.Getenv(envName); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", envName, err)
		}
		return n, nil
	}
	return defaultValue, nil
}

func getConfigFloat(cmd *cobra.Command, flagName, envName string, defaultValue float64) (float64, error) {
	if cmd.Flags().Changed(flagName) {
		return cmd.Flags().GetFloat64(flagName)
	}
	if v := os.Getenv(envName); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", envName, err)
		}
		return f, nil
	}
	return defaultValue, nil
}
