package dem

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// OpenPointSource returns a PointSource for path, chosen by its extension.
func OpenPointSource(path string) (PointSource, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".las":
		return &LASSource{Path: path}, nil
	case ".laz":
		return &LAZSource{Path: path}, nil
	case ".xyz", ".txt", ".csv":
		return &XYZSource{Path: path}, nil
	default:
		return nil, &SourceReadError{Path: path, Err: fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)}
	}
}

// An XYZSource reads points from a text file with one point per line. Fields
// are separated by whitespace or commas; only the first three are used.
// Blank lines, lines starting with '#', and one header line before the first
// point whose first three fields are all non-numeric are ignored.
type XYZSource struct {
	Path string
}

// ReadPoints reads every point in s.Path.
func (s *XYZSource) ReadPoints(ctx context.Context) (*Cloud, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, &SourceReadError{Path: s.Path, Err: err}
	}
	defer file.Close()
	cloud, err := ReadXYZ(ctx, file)
	if err != nil {
		return nil, &SourceReadError{Path: s.Path, Err: err}
	}
	return cloud, nil
}

// ReadXYZ reads points in XYZ text format from r.
func ReadXYZ(ctx context.Context, r io.Reader) (*Cloud, error) {
	cloud := &Cloud{}
	scanner := bufio.NewScanner(r)
	lineNumber := 0
	skippedHeader := false
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t' || r == ';'
		})
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 fields, got %d", lineNumber, len(fields))
		}
		var xyz [3]float64
		var firstErr error
		parsed := 0
		for i := range xyz {
			value, err := strconv.ParseFloat(fields[i], 64)
			switch {
			case err != nil:
				if firstErr == nil {
					firstErr = err
				}
				continue
			case !isFinite(value):
				return nil, fmt.Errorf("line %d: %w: %s", lineNumber, ErrNonFinite, fields[i])
			}
			xyz[i] = value
			parsed++
		}
		switch {
		case parsed == 0 && cloud.Len() == 0 && !skippedHeader:
			skippedHeader = true
			continue
		case firstErr != nil:
			return nil, fmt.Errorf("line %d: %w", lineNumber, firstErr)
		}
		cloud.X = append(cloud.X, xyz[0])
		cloud.Y = append(cloud.Y, xyz[1])
		cloud.Z = append(cloud.Z, xyz[2])
		if lineNumber%(1<<20) == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return cloud, nil
}
