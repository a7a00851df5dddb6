package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alecthomas/assert/v2"

	dem "github.com/twpayne/go-lidardem"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	rootCmd := newRootCmd()
	var stdout bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stdout)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(t.Context())
	return stdout.String(), err
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "points.xyz")
	output := filepath.Join(dir, "dem.tif")
	catalogPath := filepath.Join(dir, "catalog.db")
	metricsFile := filepath.Join(dir, "metrics.prom")
	assert.NoError(t, os.WriteFile(input, []byte(strings.Join([]string{
		"x y z",
		"0 0 10",
		"0.5 0.5 20",
		"1.5 0.5 30",
	}, "\n")), 0o666))

	stdout, err := execute(t, "convert", input,
		"--output", output,
		"--catalog", catalogPath,
		"--metrics-file", metricsFile,
		"--html", filepath.Join(dir, "dem.html"),
		"--quicklook", filepath.Join(dir, "dem.png"),
	)
	assert.NoError(t, err)
	assert.Contains(t, stdout, "Min elevation: 10\n")
	assert.Contains(t, stdout, "Max elevation: 30\n")
	assert.Contains(t, stdout, "Mean elevation: 20\n")
	assert.Contains(t, stdout, "Wrote "+output+"\n")
	assert.Contains(t, stdout, "Run: ")

	metrics, err := os.ReadFile(metricsFile)
	assert.NoError(t, err)
	assert.Contains(t, string(metrics), "lidardem_points_read_total")

	for _, name := range []string{"dem.html", "dem.png"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err)
	}

	stdout, err = execute(t, "sample", output, "0.25", "0.25", "1.25", "0.25", "5", "5")
	assert.NoError(t, err)
	assert.Equal(t, "0.25 0.25 20\n1.25 0.25 30\n5 5 NaN\n", stdout)

	stdout, err = execute(t, "info", output)
	assert.NoError(t, err)
	assert.Contains(t, stdout, "Grid: 2x1 cells at 1 from (0, -0.5) to (2, 0.5)\n")
	assert.Contains(t, stdout, "CRS: EPSG:4326 WGS 84\n")
	assert.Contains(t, stdout, "Compression: deflate\n")
	assert.Contains(t, stdout, "Cells: 2/2 filled\n")

	stdout, err = execute(t, "runs", "--catalog", catalogPath)
	assert.NoError(t, err)
	assert.Contains(t, stdout, input+" -> "+output)
}

func TestSampleMosaic(t *testing.T) {
	dir := t.TempDir()
	for i, value := range []float32{100, 200} {
		grid := dem.NewGrid(dem.Geometry{
			XMin:       float64(10 * i),
			YMin:       40,
			XMax:       float64(10*i + 10),
			YMax:       50,
			Resolution: 5,
			Width:      2,
			Height:     2,
		})
		for j := range grid.Values {
			grid.Values[j] = value
		}
		filename := filepath.Join(dir, fmt.Sprintf("tile%d.tif", i))
		assert.NoError(t, dem.NewGeoTIFFSink(filename).WriteGrid(t.Context(), grid))
	}
	pattern := filepath.Join(dir, "*.tif")

	stdout, err := execute(t, "sample", pattern, "2.5", "47.5", "12.5", "42.5", "25", "45")
	assert.NoError(t, err)
	assert.Equal(t, "2.5 47.5 100\n12.5 42.5 200\n25 45 NaN\n", stdout)

	stdout, err = execute(t, "sample", pattern, "10", "45", "--bilinear", "--lonlat")
	assert.NoError(t, err)
	assert.Equal(t, "10 45 150\n", stdout)

	_, err = execute(t, "sample", filepath.Join(dir, "*.dem"), "0", "0")
	assert.IsError(t, err, errNoMatches)
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := execute(t, "convert", filepath.Join(dir, "points.ply"))
	assert.IsError(t, err, dem.ErrUnsupportedFormat)

	input := filepath.Join(dir, "points.xyz")
	assert.NoError(t, os.WriteFile(input, []byte("0 0 0\n"), 0o666))
	_, err = execute(t, "convert", input, "--resolution", "0", "--output", filepath.Join(dir, "dem.tif"))
	assert.IsError(t, err, dem.ErrInvalidResolution)

	_, err = execute(t, "convert", input, "--row-order", "sideways")
	assert.Error(t, err)

	_, err = execute(t, "view", filepath.Join(dir, "dem.tif"))
	assert.IsError(t, err, errNoViews)
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("LIDARDEM_RESOLUTION", "2.5")
	t.Setenv("LIDARDEM_OUTPUT", "env.tif")
	t.Setenv("LIDARDEM_ROW_ORDER", "south-up")

	cmd := newConvertCmd()
	assert.NoError(t, cmd.ParseFlags([]string{"--output", "flag.tif", "--epsg", "32633"}))
	cfg, err := LoadConfig(cmd)
	assert.NoError(t, err)
	assert.Equal(t, 2.5, cfg.Resolution)
	assert.Equal(t, "flag.tif", cfg.Output)
	assert.Equal(t, dem.RowOrderSouthUp, cfg.RowOrder)
	assert.Equal(t, dem.CompressionDeflate, cfg.Compression)
	assert.Equal(t, 256, cfg.TileSize)
	assert.Equal(t, dem.CRS{EPSG: 32633}, cfg.CRS())
}

func TestLoadConfigErrors(t *testing.T) {
	for _, tc := range []struct {
		envName     string
		envValue    string
		expectedErr string
	}{
		{envName: "LIDARDEM_RESOLUTION", envValue: "1m", expectedErr: "LIDARDEM_RESOLUTION: "},
		{envName: "LIDARDEM_EPSG", envValue: "EPSG:32633", expectedErr: "LIDARDEM_EPSG: "},
		{envName: "LIDARDEM_TILE_SIZE", envValue: "large", expectedErr: "LIDARDEM_TILE_SIZE: "},
		{envName: "LIDARDEM_ROW_ORDER", envValue: "sideways", expectedErr: "sideways: unknown row order"},
		{envName: "LIDARDEM_COMPRESSION", envValue: "zstd", expectedErr: "zstd: unknown compression"},
	} {
		t.Run(tc.envName, func(t *testing.T) {
			t.Setenv(tc.envName, tc.envValue)
			_, err := LoadConfig(newConvertCmd())
			assert.Error(t, err)
			assert.Contains(t, err.Error(), tc.expectedErr)
		})
	}

	t.Run("flag_overrides_env", func(t *testing.T) {
		t.Setenv("LIDARDEM_RESOLUTION", "1m")
		cmd := newConvertCmd()
		assert.NoError(t, cmd.ParseFlags([]string{"--resolution", "2"}))
		cfg, err := LoadConfig(cmd)
		assert.NoError(t, err)
		assert.Equal(t, 2.0, cfg.Resolution)
	})
}

func TestParseCoords(t *testing.T) {
	coords, err := parseCoords([]string{"1", "2", "3.5", "-4"})
	assert.NoError(t, err)
	assert.Equal(t, [][]float64{{1, 2}, {3.5, -4}}, coords)

	_, err = parseCoords([]string{"1"})
	assert.IsError(t, err, errOddCoordinates)

	_, err = parseCoords([]string{"x", "2"})
	assert.Error(t, err)
}
