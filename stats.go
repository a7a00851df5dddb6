package dem

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistics summarizes a set of elevations.
type Statistics struct {
	Min  float64
	Max  float64
	Mean float64
}

// ComputeStatistics returns the minimum, maximum, and mean of z.
func ComputeStatistics(z []float64) (Statistics, error) {
	if len(z) == 0 {
		return Statistics{}, ErrEmptyInput
	}
	return Statistics{
		Min:  floats.Min(z),
		Max:  floats.Max(z),
		Mean: stat.Mean(z, nil),
	}, nil
}

func (s Statistics) String() string {
	return fmt.Sprintf("min %v max %v mean %v", s.Min, s.Max, s.Mean)
}
