package dem

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/alecthomas/assert/v2"
)

type lasPointRecord0 struct {
	X, Y, Z        int32
	Intensity      uint16
	ReturnFlags    uint8
	Classification uint8
	ScanAngleRank  int8
	UserData       uint8
	PointSourceID  uint16
}

var testLASRecords = []lasPointRecord0{
	{X: 4, Y: 8, Z: 80},
	{X: -4, Y: 0, Z: 16},
	{X: 100, Y: 200, Z: 0},
}

var testLASCloud = NewCloud(
	Point{X: 1001, Y: 2004, Z: 20},
	Point{X: 999, Y: 2000, Z: 12},
	Point{X: 1025, Y: 2100, Z: 10},
)

// newTestLAS returns a LAS 1.2 file with point data format 0 containing
// testLASRecords.
func newTestLAS(t *testing.T) []byte {
	t.Helper()
	header := lasHeader{
		VersionMajor:          1,
		VersionMinor:          2,
		HeaderSize:            227,
		OffsetToPointData:     227,
		PointDataFormatID:     0,
		PointDataRecordLength: 20,
		NumberOfPointRecords:  uint32(len(testLASRecords)),
		XScale:                0.25,
		YScale:                0.5,
		ZScale:                0.125,
		XOffset:               1000,
		YOffset:               2000,
		ZOffset:               10,
		MaxX:                  1025,
		MinX:                  999,
		MaxY:                  2100,
		MinY:                  2000,
		MaxZ:                  20,
		MinZ:                  10,
	}
	copy(header.FileSignature[:], "LASF")
	copy(header.GeneratingSoftware[:], "lidardem test")
	header.NumberOfPointsByReturn[0] = uint32(len(testLASRecords))

	var buffer bytes.Buffer
	assert.NoError(t, binary.Write(&buffer, binary.LittleEndian, &header))
	assert.Equal(t, 227, buffer.Len())
	for _, record := range testLASRecords {
		record.ReturnFlags = 0x09
		record.Classification = 2
		assert.NoError(t, binary.Write(&buffer, binary.LittleEndian, &record))
	}
	assert.Equal(t, 227+20*len(testLASRecords), buffer.Len())
	return buffer.Bytes()
}

func writeTestFile(t *testing.T, path string, data []byte) {
	t.Helper()
	assert.NoError(t, os.WriteFile(path, data, 0o666))
}

func assertCloud(t *testing.T, expected, actual *Cloud) {
	t.Helper()
	assert.Equal(t, expected.Len(), actual.Len())
	for i, point := range actual.All() {
		assert.Equal(t, expected.Point(i), point)
	}
}

func TestLASSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.las")
	writeTestFile(t, path, newTestLAS(t))

	source, err := OpenPointSource(path)
	assert.NoError(t, err)
	cloud, err := source.ReadPoints(t.Context())
	assert.NoError(t, err)
	assertCloud(t, testLASCloud, cloud)
}

func TestLASSourceErrors(t *testing.T) {
	data := newTestLAS(t)
	compressed := bytes.Clone(data)
	compressed[104] |= lasCompressedFormatBit
	badSignature := bytes.Clone(data)
	copy(badSignature, "LASX")

	for _, tc := range []struct {
		name        string
		data        []byte
		expectedErr error
	}{
		{name: "truncated_points", data: data[:len(data)-10], expectedErr: errTruncatedLAS},
		{name: "truncated_header", data: data[:100], expectedErr: io.ErrUnexpectedEOF},
		{name: "bad_signature", data: badSignature},
		{name: "compressed", data: compressed, expectedErr: ErrUnsupportedFormat},
		{name: "empty", data: nil, expectedErr: io.EOF},
	} {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "points.las")
			writeTestFile(t, path, tc.data)
			_, err := (&LASSource{Path: path}).ReadPoints(t.Context())
			assert.Error(t, err)
			var sourceReadError *SourceReadError
			assert.True(t, errors.As(err, &sourceReadError))
			assert.Equal(t, path, sourceReadError.Path)
			if tc.expectedErr != nil {
				assert.IsError(t, err, tc.expectedErr)
			}
		})
	}
}

// writeTestDecompressor writes a fake LAZ decompressor named name to dir that
// copies its input to its output.
func writeTestDecompressor(t *testing.T, dir, name, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts not supported")
	}
	path := filepath.Join(dir, name)
	assert.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script+"\n"), 0o755))
	return path
}

func TestLAZSource(t *testing.T) {
	dir := t.TempDir()
	binDir := filepath.Join(dir, "bin")
	assert.NoError(t, os.Mkdir(binDir, 0o777))
	writeTestDecompressor(t, binDir, "laszip", `exec /bin/cp "$2" "$4"`)
	t.Setenv("PATH", binDir)

	path := filepath.Join(dir, "points.laz")
	writeTestFile(t, path, newTestLAS(t))

	source, err := OpenPointSource(path)
	assert.NoError(t, err)
	_, ok := source.(*LAZSource)
	assert.True(t, ok)
	cloud, err := source.ReadPoints(t.Context())
	assert.NoError(t, err)
	assertCloud(t, testLASCloud, cloud)
}

func TestLAZSourceErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "points.laz")
	writeTestFile(t, path, newTestLAS(t))

	t.Run("no_decompressor", func(t *testing.T) {
		t.Setenv("PATH", t.TempDir())
		_, err := (&LAZSource{Path: path}).ReadPoints(t.Context())
		assert.IsError(t, err, ErrNoLAZDecompressor)
		assert.IsError(t, err, ErrUnsupportedFormat)
		var sourceReadError *SourceReadError
		assert.True(t, errors.As(err, &sourceReadError))
	})

	t.Run("decompressor_fails", func(t *testing.T) {
		decompressor := writeTestDecompressor(t, t.TempDir(), "laszip", `echo "corrupt chunk table" >&2; exit 1`)
		_, err := (&LAZSource{Path: path, Decompressor: decompressor}).ReadPoints(t.Context())
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "corrupt chunk table")
	})

	t.Run("missing", func(t *testing.T) {
		_, err := (&LAZSource{Path: filepath.Join(dir, "missing.laz")}).ReadPoints(t.Context())
		assert.IsError(t, err, os.ErrNotExist)
	})
}
