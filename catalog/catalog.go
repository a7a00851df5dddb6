// Package catalog records conversion runs in a SQLite database.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	dem "github.com/twpayne/go-lidardem"
)

const schema = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		input TEXT NOT NULL,
		output TEXT NOT NULL,
		resolution DOUBLE NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		points INTEGER NOT NULL,
		dropped INTEGER NOT NULL,
		collisions INTEGER NOT NULL,
		filled_cells INTEGER NOT NULL,
		min_z DOUBLE,
		max_z DOUBLE,
		mean_z DOUBLE,
		epsg INTEGER NOT NULL,
		timestamp TIMESTAMP NOT NULL
	);
`

// A Catalog is a SQLite database of conversion runs.
type Catalog struct {
	db *sql.DB
}

// A Run is a single conversion.
type Run struct {
	ID          string
	Input       string
	Output      string
	Resolution  float64
	Width       int
	Height      int
	Points      int
	Dropped     int
	Collisions  int
	FilledCells int
	Statistics  dem.Statistics
	EPSG        int
	Time        time.Time
}

// NewRun returns a new Run describing the conversion of input to output.
func NewRun(input, output string, result *dem.ConvertResult) *Run {
	return &Run{
		Input:       input,
		Output:      output,
		Resolution:  result.Geometry.Resolution,
		Width:       result.Geometry.Width,
		Height:      result.Geometry.Height,
		Points:      result.Rasterize.Points,
		Dropped:     result.Rasterize.Dropped,
		Collisions:  result.Rasterize.Collisions,
		FilledCells: result.Rasterize.FilledCells,
		Statistics:  result.Statistics,
		EPSG:        result.Grid.CRS.EPSG,
	}
}

func (r *Run) String() string {
	return fmt.Sprintf("%s %s -> %s %dx%d@%g %s", r.ID, r.Input, r.Output, r.Width, r.Height, r.Resolution, r.Statistics)
}

// Open opens the catalog at path, creating it if needed.
func Open(ctx context.Context, path string) (*Catalog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Catalog{db: db}, nil
}

// Close closes c.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Record inserts run into c. If run has no ID or time then they are set.
func (c *Catalog) Record(ctx context.Context, run *Run) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Time.IsZero() {
		run.Time = time.Now().UTC()
	}
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, input, output, resolution, width, height, points, dropped,
			collisions, filled_cells, min_z, max_z, mean_z, epsg, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Input, run.Output, run.Resolution, run.Width, run.Height, run.Points, run.Dropped,
		run.Collisions, run.FilledCells, run.Statistics.Min, run.Statistics.Max, run.Statistics.Mean, run.EPSG, run.Time,
	)
	return err
}

// Runs returns all runs in c, most recent first.
func (c *Catalog) Runs(ctx context.Context) ([]*Run, error) {
	rows, err := c.db.QueryContext(ctx, `
		SELECT
			run_id, input, output, resolution, width, height, points, dropped,
			collisions, filled_cells, min_z, max_z, mean_z, epsg, timestamp
		FROM runs
		ORDER BY timestamp DESC, run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID, &run.Input, &run.Output, &run.Resolution, &run.Width, &run.Height, &run.Points, &run.Dropped,
			&run.Collisions, &run.FilledCells, &run.Statistics.Min, &run.Statistics.Max, &run.Statistics.Mean, &run.EPSG, &run.Time,
		); err != nil {
			return nil, err
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}
