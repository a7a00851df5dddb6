package dem

import (
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/google/tiff"
	_ "github.com/google/tiff/bigtiff"
	_ "github.com/google/tiff/geotiff"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/tiff/lzw"
)

const compressionAdobeDeflate = 32946

var errShortRead = errors.New("short read")

// A TileCoord is a tile coordinate.
type TileCoord struct {
	C int // Column.
	R int // Row.
}

// A cellCoord is the coordinate of a cell in a raster.
type cellCoord struct {
	C int // Column.
	R int // Row.
}

// A GeoTIFFRaster is an open single-band floating point GeoTIFF.
type GeoTIFFRaster struct {
	file                      readAtReadSeekCloser
	geometry                  Geometry
	crs                       CRS
	compression               Compression
	tileWidth                 int
	tileLength                int
	tilesAcross               int
	tilesDown                 int
	tileOffsets               []uint64
	tileByteCounts            []uint64
	tileSampleCount           int
	tileByteCountUncompressed int
	tileCacheSizeBytes        int
	tileSamplesCache          *lru.Cache[TileCoord, []float32]
	noData                    float32
	hasNoData                 bool
}

type readAtReadSeekCloser interface {
	io.ReaderAt
	io.ReadSeeker
	io.Closer
}

// A GeoTIFFRasterOption sets an option on a GeoTIFFRaster.
type GeoTIFFRasterOption func(*GeoTIFFRaster)

// A geoTIFFIFD is a struct into which github.com/google/tiff can unmarshal an
// IFD.
type geoTIFFIFD struct {
	ImageWidth                uint32    `tiff:"field,tag=256"`
	ImageLength               uint32    `tiff:"field,tag=257"`
	BitsPerSample             uint16    `tiff:"field,tag=258"`
	Compression               uint16    `tiff:"field,tag=259"`
	PhotometricInterpretation uint16    `tiff:"field,tag=262"`
	SamplesPerPixel           uint16    `tiff:"field,tag=277"`
	PlanarConfiguration       uint16    `tiff:"field,tag=284"`
	Predictor                 uint16    `tiff:"field,tag=317"`
	TileWidth                 uint16    `tiff:"field,tag=322"`
	TileLength                uint16    `tiff:"field,tag=323"`
	TileOffsets               []uint64  `tiff:"field,tag=324"`
	TileByteCounts            []uint64  `tiff:"field,tag=325"`
	SampleFormat              uint16    `tiff:"field,tag=339"`
	ModelPixelScaleTag        []float64 `tiff:"field,tag=33550"`
	ModelTiepointTag          []float64 `tiff:"field,tag=33922"`
	GeoKeyDirectoryTag        []uint16  `tiff:"field,tag=34735"`
	GeoDoubleParamsTag        []float64 `tiff:"field,tag=34736"`
	GeoASCIIParamsTag         string    `tiff:"field,tag=34737"`
	GDALMetadata              string    `tiff:"field,tag=42112"`
	GDALNoData                string    `tiff:"field,tag=42113"`
}

// OpenGeoTIFF opens the GeoTIFF filename in fsys. Only tiled, single-band,
// 32-bit floating point rasters with square cells, no rotation, and no,
// LZW, or Deflate compression are supported.
func OpenGeoTIFF(fsys fs.FS, filename string, options ...GeoTIFFRasterOption) (*GeoTIFFRaster, error) {
	ok := false

	r := &GeoTIFFRaster{
		tileCacheSizeBytes: 128 << 20, // 128MB.
	}
	for _, option := range options {
		option(r)
	}

	file, err := fsys.Open(filename)
	if err != nil {
		return nil, err
	}
	rasterFile, isRasterFile := file.(readAtReadSeekCloser)
	if !isRasterFile {
		_ = file.Close()
		return nil, errors.ErrUnsupported
	}
	r.file = rasterFile
	defer func() {
		if !ok {
			_ = r.file.Close()
		}
	}()

	tiffTIFF, err := tiff.Parse(r.file, tiff.GetTagSpace("GeoTIFF"), nil)
	if err != nil {
		return nil, err
	}

	if len(tiffTIFF.IFDs()) != 1 {
		return nil, fmt.Errorf("found %d IFDs, expected 1", len(tiffTIFF.IFDs()))
	}

	var ifd geoTIFFIFD
	if err := tiff.UnmarshalIFD(tiffTIFF.IFDs()[0], &ifd); err != nil {
		return nil, err
	}

	switch Compression(ifd.Compression) {
	case CompressionNone, CompressionLZW, CompressionDeflate:
		r.compression = Compression(ifd.Compression)
	case compressionAdobeDeflate:
		r.compression = CompressionDeflate
	default:
		return nil, fmt.Errorf("compression %d: %w", ifd.Compression, errors.ErrUnsupported)
	}

	if ifd.BitsPerSample != 32 ||
		ifd.SamplesPerPixel != 1 ||
		ifd.PlanarConfiguration != 1 ||
		(ifd.Predictor != 0 && ifd.Predictor != 1) ||
		ifd.SampleFormat != sampleFormatIEEEFP ||
		ifd.TileWidth == 0 || ifd.TileLength == 0 ||
		len(ifd.ModelPixelScaleTag) != 3 ||
		len(ifd.ModelTiepointTag) != 6 {
		return nil, errors.ErrUnsupported
	}

	scaleX, scaleY := ifd.ModelPixelScaleTag[0], ifd.ModelPixelScaleTag[1]
	if scaleX != scaleY || !(scaleX > 0) {
		return nil, errors.ErrUnsupported
	}
	i, j := ifd.ModelTiepointTag[0], ifd.ModelTiepointTag[1]
	if i != 0 || j != 0 {
		return nil, errors.ErrUnsupported
	}
	x, y := ifd.ModelTiepointTag[3], ifd.ModelTiepointTag[4]
	width, height := int(ifd.ImageWidth), int(ifd.ImageLength)
	if width == 0 || height == 0 || width > MaxCells/height {
		return nil, fmt.Errorf("%dx%d cells: %w", width, height, errors.ErrUnsupported)
	}
	r.geometry = Geometry{
		XMin:       x,
		YMin:       y - float64(height)*scaleY,
		XMax:       x + float64(width)*scaleX,
		YMax:       y,
		Resolution: scaleX,
		Width:      width,
		Height:     height,
	}

	r.tileWidth = int(ifd.TileWidth)
	r.tileLength = int(ifd.TileLength)
	r.tilesAcross = (width + r.tileWidth - 1) / r.tileWidth
	r.tilesDown = (height + r.tileLength - 1) / r.tileLength
	tilesPerImage := r.tilesAcross * r.tilesDown
	if len(ifd.TileByteCounts) != tilesPerImage || len(ifd.TileOffsets) != tilesPerImage {
		return nil, errors.New("incorrect number of tile byte counts or offsets")
	}
	r.tileOffsets = ifd.TileOffsets
	r.tileByteCounts = ifd.TileByteCounts
	r.tileSampleCount = r.tileWidth * r.tileLength
	r.tileByteCountUncompressed = r.tileSampleCount * int(ifd.BitsPerSample) / 8

	switch noData := strings.TrimRight(ifd.GDALNoData, "\x00 "); {
	case noData == "":
	case strings.EqualFold(noData, gdalNoDataNaN):
		r.noData, r.hasNoData = NoData, true
	default:
		value, err := strconv.ParseFloat(noData, 32)
		if err != nil {
			return nil, fmt.Errorf("GDAL_NODATA: %w", err)
		}
		r.noData, r.hasNoData = float32(value), true
	}

	r.crs = DefaultCRS
	if len(ifd.GeoKeyDirectoryTag) != 0 {
		parsedGeoKeys, err := ParseGeoKeys(ifd.GeoKeyDirectoryTag, ifd.GeoDoubleParamsTag, []byte(ifd.GeoASCIIParamsTag))
		if err != nil {
			return nil, fmt.Errorf("GeoKeyDirectory: %w", err)
		}
		r.crs = CRSFromGeoKeys(parsedGeoKeys)
	}

	tileCacheCount := max(r.tileCacheSizeBytes/r.tileByteCountUncompressed, 1)
	r.tileSamplesCache, err = lru.New[TileCoord, []float32](tileCacheCount)
	if err != nil {
		return nil, err
	}

	ok = true
	return r, nil
}

// WithTileCacheSize sets the maximum size in bytes of decoded tiles kept in
// memory.
func WithTileCacheSize(tileCacheSize int) GeoTIFFRasterOption {
	return func(r *GeoTIFFRaster) {
		r.tileCacheSizeBytes = tileCacheSize
	}
}

// Close closes r's underlying file.
func (r *GeoTIFFRaster) Close() error {
	return r.file.Close()
}

// Geometry returns r's geometry.
func (r *GeoTIFFRaster) Geometry() Geometry {
	return r.geometry
}

// CRS returns the CRS r is tagged with.
func (r *GeoTIFFRaster) CRS() CRS {
	return r.crs
}

// Compression returns r's compression.
func (r *GeoTIFFRaster) Compression() Compression {
	return r.compression
}

// Origin returns the coordinate of the top-left corner of r.
func (r *GeoTIFFRaster) Origin() (float64, float64) {
	return r.geometry.Origin()
}

// Resolution returns r's cell size.
func (r *GeoTIFFRaster) Resolution() float64 {
	return r.geometry.Resolution
}

// Sample returns the value of the cell containing x, y, or NaN.
func (r *GeoTIFFRaster) Sample(ctx context.Context, x, y float64) (float64, error) {
	row, col, ok := r.geometry.Cell(x, y)
	if !ok {
		return math.NaN(), nil
	}
	coord := cellCoord{C: col, R: row}
	tileSamples, err := r.getTileSamplesCached(r.tileCoord(coord))
	if err != nil {
		return 0, err
	}
	return r.tileSample(tileSamples, coord), nil
}

// Samples returns the values of the cells containing coords. It is
// significantly faster than calling [Sample] for each coordinate. Missing
// samples are represented by NaNs.
func (r *GeoTIFFRaster) Samples(ctx context.Context, coords [][]float64) ([]float64, error) {
	samples := make([]float64, len(coords))
	cellCoords := make([]cellCoord, len(coords))

	// Group indexes by tile coord.
	indexesByTileCoord := make(map[TileCoord][]int)
	for index, coord := range coords {
		row, col, ok := r.geometry.Cell(coord[0], coord[1])
		if !ok {
			samples[index] = math.NaN()
			continue
		}
		cellCoords[index] = cellCoord{C: col, R: row}
		tileCoord := r.tileCoord(cellCoords[index])
		indexesByTileCoord[tileCoord] = append(indexesByTileCoord[tileCoord], index)
	}

	// Populate samples one tile at a time.
	for tileCoord, indexes := range indexesByTileCoord {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		slices.Sort(indexes)
		tileSamples, err := r.getTileSamplesCached(tileCoord)
		if err != nil {
			return nil, err
		}
		for _, index := range indexes {
			samples[index] = r.tileSample(tileSamples, cellCoords[index])
		}
	}

	return samples, nil
}

// ReadGrid reads the whole of r into a new Grid.
func (r *GeoTIFFRaster) ReadGrid(ctx context.Context) (*Grid, error) {
	grid := NewGrid(r.geometry)
	grid.CRS = r.crs
	for tr := range r.tilesDown {
		for tc := range r.tilesAcross {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			tileSamples, err := r.getTileSamples(TileCoord{C: tc, R: tr})
			if err != nil {
				return nil, err
			}
			for y := range r.tileLength {
				row := tr*r.tileLength + y
				if row >= r.geometry.Height {
					break
				}
				for x := range r.tileWidth {
					col := tc*r.tileWidth + x
					if col >= r.geometry.Width {
						break
					}
					grid.Set(row, col, r.tileSample32(tileSamples, cellCoord{C: col, R: row}))
				}
			}
		}
	}
	return grid, nil
}

// getCompressedTileData returns the compressed tile data for the tile at
// tileCoord.
func (r *GeoTIFFRaster) getCompressedTileData(tileCoord TileCoord) ([]byte, error) {
	tileIndex := tileCoord.C + r.tilesAcross*tileCoord.R
	tileByteCount := r.tileByteCounts[tileIndex]
	tileOffset := r.tileOffsets[tileIndex]
	compressedData := make([]byte, tileByteCount)
	switch n, err := r.file.ReadAt(compressedData, int64(tileOffset)); {
	case n == int(tileByteCount):
		return compressedData, nil
	case err != nil:
		return nil, err
	default:
		return nil, errShortRead
	}
}

// decompressTileData decompresses the tile data in compressedData.
func (r *GeoTIFFRaster) decompressTileData(compressedData []byte) ([]byte, error) {
	var rd io.Reader
	switch r.compression {
	case CompressionNone:
		rd = bytes.NewReader(compressedData)
	case CompressionLZW:
		lzwReader := lzw.NewReader(bytes.NewReader(compressedData), lzw.MSB, 8)
		defer lzwReader.Close()
		rd = lzwReader
	case CompressionDeflate:
		zlibReader, err := zlib.NewReader(bytes.NewReader(compressedData))
		if err != nil {
			return nil, err
		}
		defer zlibReader.Close()
		rd = zlibReader
	default:
		return nil, errors.ErrUnsupported
	}
	tileData := make([]byte, r.tileByteCountUncompressed)
	if _, err := io.ReadFull(rd, tileData); err != nil {
		return nil, err
	}
	return tileData, nil
}

// decodeTileData decodes tileData, replacing r's no data value with NoData.
func (r *GeoTIFFRaster) decodeTileData(tileData []byte) []float32 {
	tileSamples := make([]float32, r.tileSampleCount)
	for i := range r.tileSampleCount {
		sample := math.Float32frombits(binary.LittleEndian.Uint32(tileData[i*4 : (i+1)*4]))
		if r.hasNoData && sample == r.noData {
			sample = NoData
		}
		tileSamples[i] = sample
	}
	return tileSamples
}

// getTileSamples returns the tile samples at tileCoord.
func (r *GeoTIFFRaster) getTileSamples(tileCoord TileCoord) ([]float32, error) {
	compressedTileData, err := r.getCompressedTileData(tileCoord)
	if err != nil {
		return nil, err
	}
	tileData, err := r.decompressTileData(compressedTileData)
	if err != nil {
		return nil, fmt.Errorf("tile %d,%d: %w", tileCoord.C, tileCoord.R, err)
	}
	return r.decodeTileData(tileData), nil
}

// getTileSamplesCached returns the tile at tileCoord using r's cache.
func (r *GeoTIFFRaster) getTileSamplesCached(tileCoord TileCoord) ([]float32, error) {
	if tileSamples, ok := r.tileSamplesCache.Get(tileCoord); ok {
		return tileSamples, nil
	}
	tileSamples, err := r.getTileSamples(tileCoord)
	if err != nil {
		return nil, err
	}
	r.tileSamplesCache.Add(tileCoord, tileSamples)
	return tileSamples, nil
}

// tileCoord returns the tile coord containing coord.
func (r *GeoTIFFRaster) tileCoord(coord cellCoord) TileCoord {
	return TileCoord{
		C: coord.C / r.tileWidth,
		R: coord.R / r.tileLength,
	}
}

// tileSample returns the sample from tileSamples at coord.
func (r *GeoTIFFRaster) tileSample(tileSamples []float32, coord cellCoord) float64 {
	return float64(r.tileSample32(tileSamples, coord))
}

func (r *GeoTIFFRaster) tileSample32(tileSamples []float32, coord cellCoord) float32 {
	return tileSamples[coord.C%r.tileWidth+(coord.R%r.tileLength)*r.tileWidth]
}
