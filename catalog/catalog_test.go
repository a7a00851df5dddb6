package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/assert/v2"

	dem "github.com/twpayne/go-lidardem"
)

func TestCatalog(t *testing.T) {
	ctx := t.Context()
	path := filepath.Join(t.TempDir(), "catalog.db")

	c, err := Open(ctx, path)
	assert.NoError(t, err)

	runs, err := c.Runs(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 0, len(runs))

	sink := &dem.MemorySink{}
	result, err := dem.Convert(ctx, dem.NewCloud(
		dem.Point{X: 0, Y: 0, Z: 10},
		dem.Point{X: 1, Y: 1, Z: 20},
		dem.Point{X: 2, Y: 2, Z: 30},
	), sink)
	assert.NoError(t, err)

	first := NewRun("points.xyz", "dem.tif", result)
	first.Time = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, c.Record(ctx, first))
	assert.NotEqual(t, "", first.ID)

	second := NewRun("more.xyz", "more.tif", result)
	second.Time = time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.NoError(t, c.Record(ctx, second))
	assert.NotEqual(t, first.ID, second.ID)

	assert.NoError(t, c.Close())

	c, err = Open(ctx, path)
	assert.NoError(t, err)
	defer c.Close()

	runs, err = c.Runs(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 2, len(runs))
	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, "more.xyz", runs[0].Input)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, 2, runs[1].Width)
	assert.Equal(t, 2, runs[1].Height)
	assert.Equal(t, 3, runs[1].Points)
	assert.Equal(t, 2, runs[1].Dropped)
	assert.Equal(t, 4326, runs[1].EPSG)
	assert.Equal(t, dem.Statistics{Min: 10, Max: 30, Mean: 20}, runs[1].Statistics)
	assert.True(t, runs[1].Time.Equal(first.Time))
}
