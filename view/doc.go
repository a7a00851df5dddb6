// Package view renders elevation grids as images and interactive charts.
//
// Grids are drawn north-up: row 0 of a grid is placed at the top of the
// image. Cells holding no data are drawn transparent in images and omitted
// from charts. Colors come from a perceptually ordered viridis ramp.
package view
