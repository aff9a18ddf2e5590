package stats

import (
	"math"
	"sort"

	"dsa-mcp/internal/features"
	"dsa-mcp/internal/orders"

	"github.com/rs/zerolog/log"
	"github.com/sajari/regression"
	"gonum.org/v1/gonum/stat"
)

// Trend is a coarse classification of how deviations evolved.
type Trend string

const (
	TrendStable          Trend = "STABLE"
	TrendIncreasingDelay Trend = "INCREASING_DELAY"
	TrendDecreasingDelay Trend = "DECREASING_DELAY"
	TrendShift           Trend = "SHIFT"
)

// Label returns the short operator-facing name of the trend.
func (t Trend) Label() string {
	switch t {
	case TrendIncreasingDelay:
		return "delay"
	case TrendDecreasingDelay:
		return "early"
	case TrendShift:
		return "shift"
	default:
		return "stable"
	}
}

// AllHours is the hour wildcard for slice filters.
const AllHours = -1

// TrendThresholds controls trend classification.
type TrendThresholds struct {
	MinSamples  int     // below this the slice is STABLE
	StableSlope float64 // |slope| below this is STABLE
	DriftSlope  float64 // |slope| above this is a drift
	ShiftDiff   float64 // |half-mean diff| above this is a SHIFT
}

// DefaultTrendThresholds returns the standard classification thresholds.
func DefaultTrendThresholds() TrendThresholds {
	return TrendThresholds{
		MinSamples:  5,
		StableSlope: 1,
		DriftSlope:  5,
		ShiftDiff:   30,
	}
}

// TrendResult is the outcome of a trend classification.
type TrendResult struct {
	Trend   Trend   `json:"trend"`
	Slope   float64 `json:"slope"`
	Diff    float64 `json:"diff"`
	Samples int     `json:"samples"`
}

// Slice selects the orders a trend is computed over.
type Slice struct {
	Supplier  string
	Warehouse string
	// PickupPoint filters when non-empty.
	PickupPoint string
	DayOfWeek   int // 0 = Monday
	Hour        int // AllHours for the whole day
}

// Matches reports whether the record falls into the slice.
func (s Slice) Matches(r orders.Record) bool {
	if !r.HasOrderTime() || r.Supplier != s.Supplier || r.Warehouse != s.Warehouse {
		return false
	}
	if s.PickupPoint != "" && orders.NormalizePickupPoint(r.PickupPoint) != orders.NormalizePickupPoint(s.PickupPoint) {
		return false
	}
	if features.Weekday(r.OrderedAt) != s.DayOfWeek {
		return false
	}
	return s.Hour == AllHours || r.OrderedAt.Hour() == s.Hour
}

// DetectTrend classifies the deviations of the records in the slice.
func DetectTrend(records []orders.Record, slice Slice, th TrendThresholds) TrendResult {
	var subset []orders.Record
	for _, r := range records {
		if slice.Matches(r) && !math.IsNaN(r.Deviation()) {
			subset = append(subset, r)
		}
	}
	sort.SliceStable(subset, func(i, j int) bool {
		return subset[i].OrderedAt.Before(subset[j].OrderedAt)
	})

	values := make([]float64, len(subset))
	for i, r := range subset {
		values[i] = r.Deviation()
	}
	return ClassifyTrend(values, th)
}

// ClassifyTrend classifies a time-ordered series of deviations. NaN values are ignored.
func ClassifyTrend(values []float64, th TrendThresholds) TrendResult {
	values = DropNaN(values)
	res := TrendResult{Trend: TrendStable, Samples: len(values)}
	if len(values) < th.MinSamples || len(values) < 2 {
		return res
	}

	mid := len(values) / 2
	res.Diff = Mean(values[mid:]) - Mean(values[:mid])
	res.Slope = Slope(values)

	switch {
	case math.Abs(res.Slope) < th.StableSlope:
		res.Trend = TrendStable
	case res.Slope > th.DriftSlope:
		res.Trend = TrendIncreasingDelay
	case res.Slope < -th.DriftSlope:
		res.Trend = TrendDecreasingDelay
	case math.Abs(res.Diff) > th.ShiftDiff:
		res.Trend = TrendShift
	default:
		res.Trend = TrendStable
	}
	return res
}

// Slope fits an ordinary least squares line of value against index and returns its slope.
func Slope(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var r regression.Regression
	r.SetObserved("deviation")
	r.SetVar(0, "index")
	for i, v := range values {
		r.Train(regression.DataPoint(v, []float64{float64(i)}))
	}

	if err := r.Run(); err == nil {
		if coeffs := r.GetCoeffs(); len(coeffs) > 1 && !math.IsNaN(coeffs[1]) {
			return coeffs[1]
		}
	} else {
		log.Debug().Err(err).Int("samples", len(values)).Msg("Regression failed, using closed-form slope")
	}

	xs := make([]float64, len(values))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, beta := stat.LinearRegression(xs, values, nil, false)
	return beta
}
