package stats

import "math"

// Direction of a short series.
type Direction string

const (
	DirectionUnknown    Direction = "unknown"
	DirectionIncreasing Direction = "increasing"
	DirectionDecreasing Direction = "decreasing"
	DirectionStable     Direction = "stable"
)

// DetectChangepoints returns indices where the cumulative sum of deviations
// from the mean jumps by more than threshold population standard deviations.
// Series shorter than 10 values have no changepoints.
func DetectChangepoints(values []float64, threshold float64) []int {
	if len(values) < 10 {
		return nil
	}

	mean := Mean(values)
	limit := threshold * PopStdDev(values)

	var points []int
	cumsum := values[0] - mean
	for i := 1; i < len(values); i++ {
		prev := cumsum
		cumsum += values[i] - mean
		if math.Abs(cumsum-prev) > limit {
			points = append(points, i)
		}
	}
	return points
}

// TrendDirection classifies the OLS slope of a series against ±2 minutes per step.
func TrendDirection(values []float64) (Direction, float64) {
	if len(values) < 5 {
		return DirectionUnknown, 0
	}

	slope := Slope(values)
	switch {
	case slope > 2:
		return DirectionIncreasing, slope
	case slope < -2:
		return DirectionDecreasing, slope
	default:
		return DirectionStable, slope
	}
}
