package dem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mosaicCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lidardem_mosaic_cache_hits_total",
		Help: "The total number of hits on the mosaic raster cache",
	})
	mosaicCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lidardem_mosaic_cache_misses_total",
		Help: "The total number of misses on the mosaic raster cache",
	})
	mosaicCacheEvictions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lidardem_mosaic_cache_evictions_total",
		Help: "The total number of evictions from the mosaic raster cache",
	})
)

var errMismatchedMosaic = errors.New("mismatched resolution or CRS")

type mosaicTile struct {
	filename string
	geometry Geometry
}

// A Mosaic is a set of GeoTIFF DEMs with a common resolution and CRS, such
// as the DEMs of adjacent LiDAR tiles, sampled as a single raster. Where
// DEMs overlap, the first one listed containing a coordinate is used.
type Mosaic struct {
	mutex         sync.Mutex
	fsys          fs.FS
	tiles         []mosaicTile
	geometry      Geometry
	crs           CRS
	cacheSize     int
	rasterOptions []GeoTIFFRasterOption
	rasterCache   *lru.Cache[int, *GeoTIFFRaster]
}

// A MosaicOption sets an option on a Mosaic.
type MosaicOption func(*Mosaic)

// WithMosaicCacheSize sets the maximum number of open GeoTIFFs.
func WithMosaicCacheSize(cacheSize int) MosaicOption {
	return func(m *Mosaic) {
		m.cacheSize = cacheSize
	}
}

// WithMosaicRasterOptions sets the options used to open each GeoTIFF.
func WithMosaicRasterOptions(rasterOptions ...GeoTIFFRasterOption) MosaicOption {
	return func(m *Mosaic) {
		m.rasterOptions = rasterOptions
	}
}

// OpenMosaic returns a new Mosaic of filenames in fsys.
func OpenMosaic(fsys fs.FS, filenames []string, options ...MosaicOption) (*Mosaic, error) {
	if len(filenames) == 0 {
		return nil, ErrEmptyInput
	}

	m := &Mosaic{
		fsys:      fsys,
		cacheSize: 16,
	}
	for _, option := range options {
		option(m)
	}

	var err error
	m.rasterCache, err = lru.NewWithEvict(m.cacheSize, func(key int, value *GeoTIFFRaster) {
		_ = value.Close()
	})
	if err != nil {
		return nil, err
	}

	for i, filename := range filenames {
		raster, err := OpenGeoTIFF(fsys, filename, m.rasterOptions...)
		if err != nil {
			m.Close()
			return nil, fmt.Errorf("%s: %w", filename, err)
		}
		geometry, crs := raster.Geometry(), raster.CRS()
		if i == 0 {
			m.geometry, m.crs = geometry, crs
		} else if geometry.Resolution != m.geometry.Resolution || crs.EPSG != m.crs.EPSG {
			_ = raster.Close()
			m.Close()
			return nil, fmt.Errorf("%s: %w", filename, errMismatchedMosaic)
		}
		m.tiles = append(m.tiles, mosaicTile{
			filename: filename,
			geometry: geometry,
		})
		if m.rasterCache.Add(i, raster) {
			mosaicCacheEvictions.Inc()
		}
	}

	for _, tile := range m.tiles[1:] {
		m.geometry.XMin = min(m.geometry.XMin, tile.geometry.XMin)
		m.geometry.YMin = min(m.geometry.YMin, tile.geometry.YMin)
		m.geometry.XMax = max(m.geometry.XMax, tile.geometry.XMax)
		m.geometry.YMax = max(m.geometry.YMax, tile.geometry.YMax)
	}
	if err := m.geometry.setDimensions(); err != nil {
		m.Close()
		return nil, err
	}

	return m, nil
}

// Close closes all GeoTIFFs open in m.
func (m *Mosaic) Close() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.rasterCache.Purge()
}

// Len returns the number of DEMs in m.
func (m *Mosaic) Len() int {
	return len(m.tiles)
}

// Geometry returns the geometry covering every DEM in m.
func (m *Mosaic) Geometry() Geometry {
	return m.geometry
}

// CRS returns m's CRS.
func (m *Mosaic) CRS() CRS {
	return m.crs
}

// Origin returns the top-left corner of m. Bilinear interpolation across DEMs
// is exact only when the DEMs share a lattice anchored there.
func (m *Mosaic) Origin() (float64, float64) {
	return m.geometry.Origin()
}

// Resolution returns m's cell size.
func (m *Mosaic) Resolution() float64 {
	return m.geometry.Resolution
}

// Samples returns the samples at coords. Missing samples are represented by
// NaNs. It is safe to call Samples concurrently.
func (m *Mosaic) Samples(ctx context.Context, coords [][]float64) ([]float64, error) {
	samples := make([]float64, len(coords))

	// Group indexes by tile.
	type group struct {
		coords  [][]float64
		indexes []int
	}
	groupsByTile := make(map[int]group)
	for index, coord := range coords {
		tileIndex := m.tileIndex(coord[0], coord[1])
		if tileIndex < 0 {
			samples[index] = math.NaN()
			continue
		}
		g := groupsByTile[tileIndex]
		g.coords = append(g.coords, coord)
		g.indexes = append(g.indexes, index)
		groupsByTile[tileIndex] = g
	}

	// Populate samples one tile at a time. The mutex is held across reads so
	// that no raster is evicted and closed while it is being read.
	m.mutex.Lock()
	defer m.mutex.Unlock()
	for tileIndex, g := range groupsByTile {
		raster, err := m.getRasterCached(tileIndex)
		if err != nil {
			return nil, err
		}
		localSamples, err := raster.Samples(ctx, g.coords)
		if err != nil {
			return nil, err
		}
		for localIndex, index := range g.indexes {
			samples[index] = localSamples[localIndex]
		}
	}

	return samples, nil
}

// tileIndex returns the index of the first tile containing x, y, or -1.
func (m *Mosaic) tileIndex(x, y float64) int {
	for i, tile := range m.tiles {
		if _, _, ok := tile.geometry.Cell(x, y); ok {
			return i
		}
	}
	return -1
}

// getRasterCached returns the open raster of the tile at tileIndex, opening it
// if needed. m.mutex must be held.
func (m *Mosaic) getRasterCached(tileIndex int) (*GeoTIFFRaster, error) {
	if raster, ok := m.rasterCache.Get(tileIndex); ok {
		mosaicCacheHits.Inc()
		return raster, nil
	}

	mosaicCacheMisses.Inc()

	raster, err := OpenGeoTIFF(m.fsys, m.tiles[tileIndex].filename, m.rasterOptions...)
	if err != nil {
		return nil, err
	}

	if eviction := m.rasterCache.Add(tileIndex, raster); eviction {
		mosaicCacheEvictions.Inc()
	}

	return raster, nil
}
