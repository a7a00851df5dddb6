package dem

import (
	"math"
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestNewGeometry(t *testing.T) {
	for _, tc := range []struct {
		name       string
		x          []float64
		y          []float64
		resolution float64
		expected   Geometry
	}{
		{
			name:       "scenario_a",
			x:          []float64{0, 0.5, 1.5},
			y:          []float64{0, 0.5, 0.5},
			resolution: 1,
			expected:   Geometry{XMin: 0, YMin: 0, XMax: 1.5, YMax: 0.5, Resolution: 1, Width: 2, Height: 1},
		},
		{
			name:       "exact_multiple",
			x:          []float64{10, 20},
			y:          []float64{100, 130},
			resolution: 5,
			expected:   Geometry{XMin: 10, YMin: 100, XMax: 20, YMax: 130, Resolution: 5, Width: 2, Height: 6},
		},
		{
			name:       "single_point",
			x:          []float64{3},
			y:          []float64{4},
			resolution: 1,
			expected:   Geometry{XMin: 3, YMin: 4, XMax: 3, YMax: 4, Resolution: 1, Width: 1, Height: 1},
		},
		{
			name:       "collinear",
			x:          []float64{0, 1, 2, 3},
			y:          []float64{7, 7, 7, 7},
			resolution: 0.5,
			expected:   Geometry{XMin: 0, YMin: 7, XMax: 3, YMax: 7, Resolution: 0.5, Width: 6, Height: 1},
		},
		{
			name:       "max_cells",
			x:          []float64{0, MaxCells},
			y:          []float64{0, 0},
			resolution: 1,
			expected:   Geometry{XMin: 0, YMin: 0, XMax: MaxCells, YMax: 0, Resolution: 1, Width: MaxCells, Height: 1},
		},
		{
			name:       "tiny_resolution_single_point",
			x:          []float64{1000},
			y:          []float64{1000},
			resolution: 1e-300,
			expected:   Geometry{XMin: 1000, YMin: 1000, XMax: 1000, YMax: 1000, Resolution: 1e-300, Width: 1, Height: 1},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := NewGeometry(tc.x, tc.y, tc.resolution)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, actual)

			again, err := NewGeometry(tc.x, tc.y, tc.resolution)
			assert.NoError(t, err)
			assert.Equal(t, actual, again)
		})
	}
}

func TestNewGeometryErrors(t *testing.T) {
	for _, tc := range []struct {
		name       string
		x          []float64
		y          []float64
		resolution float64
		expected   error
	}{
		{name: "empty", resolution: 1, expected: ErrEmptyInput},
		{name: "zero_resolution", x: []float64{0}, y: []float64{0}, resolution: 0, expected: ErrInvalidResolution},
		{name: "negative_resolution", x: []float64{0}, y: []float64{0}, resolution: -1, expected: ErrInvalidResolution},
		{name: "nan_resolution", x: []float64{0}, y: []float64{0}, resolution: math.NaN(), expected: ErrInvalidResolution},
		{name: "inf_resolution", x: []float64{0}, y: []float64{0}, resolution: math.Inf(1), expected: ErrInvalidResolution},
		{name: "empty_zero_resolution", resolution: 0, expected: ErrInvalidResolution},
		{name: "mismatched", x: []float64{0, 1}, y: []float64{0}, resolution: 1, expected: ErrMismatchedLengths},
		{name: "tiny_resolution", x: []float64{0, 1000}, y: []float64{0, 1000}, resolution: 1e-300, expected: ErrInvalidResolution},
		{name: "infinite_quotient", x: []float64{0, 1e300}, y: []float64{0, 0}, resolution: 1e-300, expected: ErrInvalidResolution},
		{name: "width_overflow", x: []float64{0, 1e6}, y: []float64{0, 1e6}, resolution: 1e-7, expected: ErrInvalidResolution},
		{name: "cells_overflow", x: []float64{0, 1e6}, y: []float64{0, 1e6}, resolution: 1e-3, expected: ErrInvalidResolution},
		{name: "too_many_cells", x: []float64{0, MaxCells + 1}, y: []float64{0, 0}, resolution: 1, expected: ErrInvalidResolution},
		{name: "inf_x", x: []float64{0, math.Inf(1), 2}, y: []float64{0, 0, 2}, resolution: 1, expected: ErrNonFinite},
		{name: "nan_y", x: []float64{0, 1, 2}, y: []float64{0, math.NaN(), 2}, resolution: 1, expected: ErrNonFinite},
	} {
		t.Run(tc.name, func(t *testing.T) {
			actual, err := NewGeometry(tc.x, tc.y, tc.resolution)
			assert.IsError(t, err, tc.expected)
			assert.Equal(t, Geometry{}, actual)
		})
	}
}

func TestGeometryCell(t *testing.T) {
	g := Geometry{XMin: 0, YMin: 0, XMax: 3, YMax: 2, Resolution: 1, Width: 3, Height: 2}

	x, y := g.Origin()
	assert.Equal(t, 0.0, x)
	assert.Equal(t, 2.0, y)
	assert.Equal(t, 6, g.Cells())
	assert.Equal(t, [6]float64{0, 1, 0, 2, 0, -1}, g.Transform())

	for _, tc := range []struct {
		x, y        float64
		expectedRow int
		expectedCol int
		expectedOK  bool
	}{
		{x: 0, y: 2, expectedRow: 0, expectedCol: 0, expectedOK: true},
		{x: 0.5, y: 1.5, expectedRow: 0, expectedCol: 0, expectedOK: true},
		{x: 2.5, y: 0.5, expectedRow: 1, expectedCol: 2, expectedOK: true},
		{x: 2.999, y: 0.001, expectedRow: 1, expectedCol: 2, expectedOK: true},
		{x: 3, y: 1, expectedOK: false},
		{x: 1, y: 0, expectedOK: false},
		{x: -0.001, y: 1, expectedOK: false},
		{x: 1, y: 2.001, expectedOK: false},
	} {
		row, col, ok := g.Cell(tc.x, tc.y)
		assert.Equal(t, tc.expectedOK, ok)
		if ok {
			assert.Equal(t, tc.expectedRow, row)
			assert.Equal(t, tc.expectedCol, col)
		}
	}

	for row := range g.Height {
		for col := range g.Width {
			x, y := g.CellCenter(row, col)
			actualRow, actualCol, ok := g.Cell(x, y)
			assert.True(t, ok)
			assert.Equal(t, row, actualRow)
			assert.Equal(t, col, actualCol)
		}
	}
}
