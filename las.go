package dem

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jblindsay/lidario"
)

// ErrNoLAZDecompressor is returned when no LAZ decompressor is found.
var ErrNoLAZDecompressor = errors.New("no LAZ decompressor found")

var errTruncatedLAS = errors.New("truncated LAS file")

// LAZDecompressors are the commands searched for in $PATH to decompress LAZ
// files. Each is run as `command -i input.laz -o output.las`.
var LAZDecompressors = []string{"laszip", "laszip64", "laszip-cli"}

const lasCompressedFormatBit = 0x80

// lasHeader is the part of a LAS public header block common to versions 1.0
// to 1.4.
type lasHeader struct {
	FileSignature             [4]byte
	FileSourceID              uint16
	GlobalEncoding            uint16
	ProjectID                 [16]byte
	VersionMajor              uint8
	VersionMinor              uint8
	SystemIdentifier          [32]byte
	GeneratingSoftware        [32]byte
	FileCreationDayOfYear     uint16
	FileCreationYear          uint16
	HeaderSize                uint16
	OffsetToPointData         uint32
	NumberOfVLRs              uint32
	PointDataFormatID         uint8
	PointDataRecordLength     uint16
	NumberOfPointRecords      uint32
	NumberOfPointsByReturn    [5]uint32
	XScale, YScale, ZScale    float64
	XOffset, YOffset, ZOffset float64
	MaxX, MinX                float64
	MaxY, MinY                float64
	MaxZ, MinZ                float64
}

// A LASSource reads points from an uncompressed LAS file.
type LASSource struct {
	Path string
}

// ReadPoints reads every point record in s.Path. Coordinates are returned
// with the file's scale and offset applied.
func (s *LASSource) ReadPoints(ctx context.Context) (*Cloud, error) {
	cloud, err := readLAS(ctx, s.Path)
	if err != nil {
		return nil, &SourceReadError{Path: s.Path, Err: err}
	}
	return cloud, nil
}

// A LAZSource reads points from a compressed LAZ file by decompressing it to a
// temporary LAS file.
type LAZSource struct {
	Path string
	// Decompressor is the decompression command. If empty, the first of
	// LAZDecompressors found in $PATH is used.
	Decompressor string
}

// ReadPoints decompresses s.Path and reads every point record in it.
func (s *LAZSource) ReadPoints(ctx context.Context) (*Cloud, error) {
	cloud, err := s.readPoints(ctx)
	if err != nil {
		return nil, &SourceReadError{Path: s.Path, Err: err}
	}
	return cloud, nil
}

func (s *LAZSource) readPoints(ctx context.Context) (*Cloud, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return nil, err
	}
	decompressor, err := s.decompressor()
	if err != nil {
		return nil, err
	}

	tempDir, err := os.MkdirTemp("", "lidardem-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	base := strings.TrimSuffix(filepath.Base(s.Path), filepath.Ext(s.Path))
	lasPath := filepath.Join(tempDir, base+".las")
	cmd := exec.CommandContext(ctx, decompressor, "-i", s.Path, "-o", lasPath)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("%s: %w: %s", decompressor, err, bytes.TrimSpace(output))
	}
	Logf("%s: decompressed with %s", s.Path, decompressor)

	return readLAS(ctx, lasPath)
}

func (s *LAZSource) decompressor() (string, error) {
	if s.Decompressor != "" {
		return s.Decompressor, nil
	}
	for _, name := range LAZDecompressors {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %w: tried %s", ErrUnsupportedFormat, ErrNoLAZDecompressor, strings.Join(LAZDecompressors, ", "))
}

// readLASHeader reads and checks the header of the LAS file at path.
func readLASHeader(path string) (*lasHeader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var header lasHeader
	if err := binary.Read(file, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}
	if string(header.FileSignature[:]) != "LASF" {
		return nil, fmt.Errorf("header: invalid file signature %q", header.FileSignature[:])
	}
	if header.PointDataFormatID&lasCompressedFormatBit != 0 {
		return nil, fmt.Errorf("%w: compressed point data", ErrUnsupportedFormat)
	}

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, err
	}
	expectedSize := int64(header.OffsetToPointData) + int64(header.NumberOfPointRecords)*int64(header.PointDataRecordLength)
	if fileInfo.Size() < expectedSize {
		return nil, fmt.Errorf("%w: %d bytes, expected %d", errTruncatedLAS, fileInfo.Size(), expectedSize)
	}
	return &header, nil
}

func readLAS(ctx context.Context, path string) (*Cloud, error) {
	if _, err := readLASHeader(path); err != nil {
		return nil, err
	}
	lasFile, err := lidario.NewLasFile(path, "r")
	if err != nil {
		return nil, err
	}
	defer lasFile.Close()

	n := int(lasFile.Header.NumberPoints)
	cloud := &Cloud{
		X: make([]float64, n),
		Y: make([]float64, n),
		Z: make([]float64, n),
	}
	for i := range n {
		if i%(1<<20) == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		x, y, z, err := lasFile.GetXYZ(i)
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		cloud.X[i], cloud.Y[i], cloud.Z[i] = x, y, z
	}
	return cloud, nil
}
