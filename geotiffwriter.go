package dem

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// A Compression is a TIFF compression scheme.
type Compression uint16

const (
	CompressionNone    Compression = 1
	CompressionLZW     Compression = 5 // Read only.
	CompressionDeflate Compression = 8
)

// ParseCompression parses a compression name.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "none":
		return CompressionNone, nil
	case "lzw":
		return CompressionLZW, nil
	case "", "deflate":
		return CompressionDeflate, nil
	default:
		return 0, fmt.Errorf("%s: unknown compression", s)
	}
}

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZW:
		return "lzw"
	case CompressionDeflate, compressionAdobeDeflate:
		return "deflate"
	default:
		return strconv.Itoa(int(c))
	}
}

// TIFF field types.
const (
	typeASCII  = 2
	typeShort  = 3
	typeLong   = 4
	typeDouble = 12
)

// TIFF tags written by WriteGeoTIFF.
const (
	tagImageWidth                = 256
	tagImageLength               = 257
	tagBitsPerSample             = 258
	tagCompression               = 259
	tagPhotometricInterpretation = 262
	tagSamplesPerPixel           = 277
	tagPlanarConfiguration       = 284
	tagPredictor                 = 317
	tagTileWidth                 = 322
	tagTileLength                = 323
	tagTileOffsets               = 324
	tagTileByteCounts            = 325
	tagSampleFormat              = 339
	tagModelPixelScale           = 33550
	tagModelTiepoint             = 33922
	tagGDALNoData                = 42113
)

const (
	defaultTileSize     = 256
	sampleFormatIEEEFP  = 3
	photometricMinBlack = 1
	gdalNoDataNaN       = "nan"
)

type geoTIFFWriterOptions struct {
	compression Compression
	tileSize    int
}

// A GeoTIFFWriterOption sets an option on a GeoTIFF writer.
type GeoTIFFWriterOption func(*geoTIFFWriterOptions)

// WithCompression sets the compression used for tiles.
func WithCompression(compression Compression) GeoTIFFWriterOption {
	return func(o *geoTIFFWriterOptions) {
		o.compression = compression
	}
}

// WithTileSize sets the width and length of tiles. It must be a positive
// multiple of 16.
func WithTileSize(tileSize int) GeoTIFFWriterOption {
	return func(o *geoTIFFWriterOptions) {
		o.tileSize = tileSize
	}
}

// A GeoTIFFSink writes grids to a GeoTIFF file.
type GeoTIFFSink struct {
	path    string
	options []GeoTIFFWriterOption
}

// NewGeoTIFFSink returns a new GeoTIFFSink that writes to path.
func NewGeoTIFFSink(path string, options ...GeoTIFFWriterOption) *GeoTIFFSink {
	return &GeoTIFFSink{
		path:    path,
		options: options,
	}
}

// Path returns the path s writes to.
func (s *GeoTIFFSink) Path() string {
	return s.path
}

// WriteGrid writes grid to s's path. The file is written to a temporary file
// in the same directory and renamed into place, so a failed write never
// leaves a partial raster behind.
func (s *GeoTIFFSink) WriteGrid(ctx context.Context, grid *Grid) error {
	if err := ctx.Err(); err != nil {
		return &SinkWriteError{Path: s.path, Err: err}
	}
	if err := s.writeFile(grid); err != nil {
		return &SinkWriteError{Path: s.path, Err: err}
	}
	return nil
}

func (s *GeoTIFFSink) writeFile(grid *Grid) (err error) {
	dir, base := filepath.Split(s.path)
	if dir == "" {
		dir = "."
	}
	tempFile, err := os.CreateTemp(dir, "."+base+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tempFile.Close()
			_ = os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	if err := WriteGeoTIFF(w, grid, s.options...); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := tempFile.Close(); err != nil {
		return err
	}
	return os.Rename(tempFile.Name(), s.path)
}

// A MemorySink keeps an independent copy of the last grid written to it.
type MemorySink struct {
	Grid *Grid
}

// WriteGrid stores a clone of grid.
func (s *MemorySink) WriteGrid(ctx context.Context, grid *Grid) error {
	s.Grid = grid.Clone()
	return nil
}

// An ifdEntry is a TIFF IFD entry with its values encoded little-endian.
type ifdEntry struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

func shortEntry(tag uint16, values ...uint16) ifdEntry {
	data := make([]byte, 2*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint16(data[2*i:], value)
	}
	return ifdEntry{tag: tag, typ: typeShort, count: uint32(len(values)), data: data}
}

func longEntry(tag uint16, values ...uint32) ifdEntry {
	data := make([]byte, 4*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint32(data[4*i:], value)
	}
	return ifdEntry{tag: tag, typ: typeLong, count: uint32(len(values)), data: data}
}

func doubleEntry(tag uint16, values ...float64) ifdEntry {
	data := make([]byte, 8*len(values))
	for i, value := range values {
		binary.LittleEndian.PutUint64(data[8*i:], math.Float64bits(value))
	}
	return ifdEntry{tag: tag, typ: typeDouble, count: uint32(len(values)), data: data}
}

func asciiEntry(tag uint16, value string) ifdEntry {
	data := append([]byte(value), 0)
	return ifdEntry{tag: tag, typ: typeASCII, count: uint32(len(data)), data: data}
}

// WriteGeoTIFF writes grid to w as a single-band, tiled, little-endian
// GeoTIFF with 32-bit floating point samples. NoData cells are written as
// NaN and flagged with the GDAL_NODATA tag.
func WriteGeoTIFF(w io.Writer, grid *Grid, options ...GeoTIFFWriterOption) error {
	o := geoTIFFWriterOptions{
		compression: CompressionDeflate,
		tileSize:    defaultTileSize,
	}
	for _, option := range options {
		option(&o)
	}

	switch {
	case o.compression != CompressionNone && o.compression != CompressionDeflate:
		return fmt.Errorf("compression %d: %w", o.compression, errors.ErrUnsupported)
	case o.tileSize <= 0 || o.tileSize%16 != 0 || o.tileSize > math.MaxUint16:
		return fmt.Errorf("%d: invalid tile size", o.tileSize)
	}

	geometry := grid.Geometry
	if geometry.Width <= 0 || geometry.Height <= 0 || len(grid.Values) != geometry.Cells() {
		return fmt.Errorf("%s: %w", geometry, ErrMismatchedLengths)
	}
	if err := checkResolution(geometry.Resolution); err != nil {
		return err
	}

	tiles, err := encodeTiles(grid, o.tileSize, o.compression)
	if err != nil {
		return err
	}

	geoKeyDirectory, geoASCIIParams, err := grid.CRS.GeoKeys()
	if err != nil {
		return err
	}

	tileByteCounts := make([]uint32, len(tiles))
	for i, tile := range tiles {
		tileByteCounts[i] = uint32(len(tile))
	}
	xOrigin, yOrigin := geometry.Origin()
	entries := []ifdEntry{
		longEntry(tagImageWidth, uint32(geometry.Width)),
		longEntry(tagImageLength, uint32(geometry.Height)),
		shortEntry(tagBitsPerSample, 32),
		shortEntry(tagCompression, uint16(o.compression)),
		shortEntry(tagPhotometricInterpretation, photometricMinBlack),
		shortEntry(tagSamplesPerPixel, 1),
		shortEntry(tagPlanarConfiguration, 1),
		shortEntry(tagPredictor, 1),
		shortEntry(tagTileWidth, uint16(o.tileSize)),
		shortEntry(tagTileLength, uint16(o.tileSize)),
		longEntry(tagTileOffsets, make([]uint32, len(tiles))...),
		longEntry(tagTileByteCounts, tileByteCounts...),
		shortEntry(tagSampleFormat, sampleFormatIEEEFP),
		doubleEntry(tagModelPixelScale, geometry.Resolution, geometry.Resolution, 0),
		doubleEntry(tagModelTiepoint, 0, 0, 0, xOrigin, yOrigin, 0),
		shortEntry(tagGeoKeyDirectory, geoKeyDirectory...),
		asciiEntry(tagGeoASCIIParams, geoASCIIParams),
		asciiEntry(tagGDALNoData, gdalNoDataNaN),
	}
	slices.SortFunc(entries, func(a, b ifdEntry) int {
		return int(a.tag) - int(b.tag)
	})

	// Layout: header, IFD, out-of-line values, tile data.
	const headerSize = 8
	ifdSize := 2 + 12*len(entries) + 4
	valueOffsets := make([]uint32, len(entries))
	offset := headerSize + ifdSize
	for i, entry := range entries {
		if len(entry.data) <= 4 {
			continue
		}
		valueOffsets[i] = uint32(offset)
		offset += len(entry.data) + len(entry.data)%2
	}
	tileOffsets := make([]uint32, len(tiles))
	for i, tile := range tiles {
		if uint64(offset)+uint64(len(tile)) > math.MaxUint32 {
			return fmt.Errorf("%d bytes: %w", offset, errors.ErrUnsupported)
		}
		tileOffsets[i] = uint32(offset)
		offset += len(tile)
	}
	for i, entry := range entries {
		if entry.tag == tagTileOffsets {
			entries[i] = longEntry(tagTileOffsets, tileOffsets...)
		}
	}

	buf := &bytes.Buffer{}
	buf.WriteString("II")
	_ = binary.Write(buf, binary.LittleEndian, uint16(42))
	_ = binary.Write(buf, binary.LittleEndian, uint32(headerSize))
	_ = binary.Write(buf, binary.LittleEndian, uint16(len(entries)))
	for i, entry := range entries {
		_ = binary.Write(buf, binary.LittleEndian, entry.tag)
		_ = binary.Write(buf, binary.LittleEndian, entry.typ)
		_ = binary.Write(buf, binary.LittleEndian, entry.count)
		if len(entry.data) <= 4 {
			var value [4]byte
			copy(value[:], entry.data)
			buf.Write(value[:])
		} else {
			_ = binary.Write(buf, binary.LittleEndian, valueOffsets[i])
		}
	}
	_ = binary.Write(buf, binary.LittleEndian, uint32(0)) // No next IFD.
	for _, entry := range entries {
		if len(entry.data) <= 4 {
			continue
		}
		buf.Write(entry.data)
		if len(entry.data)%2 != 0 {
			buf.WriteByte(0)
		}
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return err
	}
	for _, tile := range tiles {
		if _, err := w.Write(tile); err != nil {
			return err
		}
	}
	return nil
}

// encodeTiles returns the encoded tiles of grid in row-major tile order.
// Tiles overhanging the edge of the grid are padded with NoData.
func encodeTiles(grid *Grid, tileSize int, compression Compression) ([][]byte, error) {
	geometry := grid.Geometry
	tilesAcross := (geometry.Width + tileSize - 1) / tileSize
	tilesDown := (geometry.Height + tileSize - 1) / tileSize
	tiles := make([][]byte, 0, tilesAcross*tilesDown)
	tileData := make([]byte, 4*tileSize*tileSize)
	for tr := range tilesDown {
		for tc := range tilesAcross {
			for y := range tileSize {
				row := tr*tileSize + y
				for x := range tileSize {
					col := tc*tileSize + x
					sample := NoData
					if row < geometry.Height && col < geometry.Width {
						sample = grid.At(row, col)
					}
					binary.LittleEndian.PutUint32(tileData[4*(y*tileSize+x):], math.Float32bits(sample))
				}
			}
			tile, err := compressTileData(tileData, compression)
			if err != nil {
				return nil, err
			}
			tiles = append(tiles, tile)
		}
	}
	return tiles, nil
}

// compressTileData compresses tileData, returning a new slice.
func compressTileData(tileData []byte, compression Compression) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return slices.Clone(tileData), nil
	case CompressionDeflate:
		buf := &bytes.Buffer{}
		zw := zlib.NewWriter(buf)
		if _, err := zw.Write(tileData); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, errors.ErrUnsupported
	}
}
