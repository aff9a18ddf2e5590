package features

// FeatureNames lists the model inputs in vector order.
var FeatureNames = []string{
	"hour",
	"day_of_week",
	"week",
	"day",
	"month",
	"is_weekend",
	"hour_sin",
	"hour_cos",
	"dow_sin",
	"dow_cos",
	"rolling_mean_3",
	"rolling_std_3",
	"rolling_mean_7",
	"rolling_std_7",
	"rolling_mean_14",
	"rolling_std_14",
	"trend_7d",
	"pv_encoded",
}

// Vector returns the row's features in FeatureNames order.
func (r Row) Vector() []float64 {
	weekend := 0.0
	if r.Weekend {
		weekend = 1
	}
	return []float64{
		float64(r.Hour),
		float64(r.DayOfWeek),
		float64(r.Week),
		float64(r.Day),
		float64(r.Month),
		weekend,
		r.HourSin,
		r.HourCos,
		r.DowSin,
		r.DowCos,
		r.RollMean3,
		r.RollStd3,
		r.RollMean7,
		r.RollStd7,
		r.RollMean14,
		r.RollStd14,
		r.Trend7d,
		float64(r.PickupCode),
	}
}
