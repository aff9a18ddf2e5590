package features

import (
	"math"
	"time"

	"dsa-mcp/internal/orders"

	"gonum.org/v1/gonum/stat"
)

// RollingWindows are the trailing record counts used for rolling statistics.
var RollingWindows = [3]int{3, 7, 14}

// Row is an order record augmented with model features.
type Row struct {
	Record    orders.Record
	Key       orders.EntityKey
	Deviation float64 // NaN when unknown
	HasTime   bool

	Hour      int
	DayOfWeek int // 0 = Monday
	Week      int // ISO week
	Day       int
	Month     int
	Weekend   bool

	HourSin float64
	HourCos float64
	DowSin  float64
	DowCos  float64

	PickupCode int

	// Rolling stats over the same (entity, weekday, hour); NaN for timeless rows.
	RollMean3  float64
	RollStd3   float64
	RollMean7  float64
	RollStd7   float64
	RollMean14 float64
	RollStd14  float64
	Trend7d    float64
}

// Valid reports whether the row can be used for training.
func (r Row) Valid() bool {
	return r.HasTime && !math.IsNaN(r.Deviation)
}

// Builder turns order records into feature rows.
type Builder struct {
	Encoder *PickupEncoder
}

// NewBuilder creates a builder with a fresh pickup point encoder.
func NewBuilder() *Builder {
	return &Builder{Encoder: NewPickupEncoder()}
}

// Build returns feature rows sorted by order time; rows without an order time
// come last and carry no calendar or rolling features. The input is not modified.
func (b *Builder) Build(records []orders.Record) []Row {
	sorted := orders.Normalize(records)
	orders.SortByOrderTime(sorted)

	rows := make([]Row, len(sorted))
	for i, rec := range sorted {
		rows[i] = b.baseRow(rec)
	}

	applyRolling(rows)
	return rows
}

func (b *Builder) baseRow(rec orders.Record) Row {
	row := Row{
		Record:     rec,
		Key:        rec.Key(),
		Deviation:  rec.Deviation(),
		HasTime:    rec.HasOrderTime(),
		PickupCode: b.Encoder.Encode(rec.Key().PickupPoint),
		RollMean3:  math.NaN(),
		RollStd3:   math.NaN(),
		RollMean7:  math.NaN(),
		RollStd7:   math.NaN(),
		RollMean14: math.NaN(),
		RollStd14:  math.NaN(),
		Trend7d:    math.NaN(),
	}
	if !row.HasTime {
		return row
	}

	t := rec.OrderedAt
	_, week := t.ISOWeek()
	row.Hour = t.Hour()
	row.DayOfWeek = Weekday(t)
	row.Week = week
	row.Day = t.Day()
	row.Month = int(t.Month())
	row.Weekend = row.DayOfWeek >= 5

	row.HourSin = math.Sin(2 * math.Pi * float64(row.Hour) / 24)
	row.HourCos = math.Cos(2 * math.Pi * float64(row.Hour) / 24)
	row.DowSin = math.Sin(2 * math.Pi * float64(row.DayOfWeek) / 7)
	row.DowCos = math.Cos(2 * math.Pi * float64(row.DayOfWeek) / 7)
	return row
}

// Weekday returns the day of week with Monday as 0.
func Weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

type slotKey struct {
	entity    orders.EntityKey
	dayOfWeek int
	hour      int
}

// applyRolling expects rows already in time order.
func applyRolling(rows []Row) {
	history := make(map[slotKey][]float64)

	for i := range rows {
		row := &rows[i]
		if !row.HasTime {
			continue
		}
		k := slotKey{entity: row.Key, dayOfWeek: row.DayOfWeek, hour: row.Hour}
		history[k] = append(history[k], row.Deviation)
		past := history[k]

		row.RollMean3, row.RollStd3 = trailing(past, RollingWindows[0])
		row.RollMean7, row.RollStd7 = trailing(past, RollingWindows[1])
		row.RollMean14, row.RollStd14 = trailing(past, RollingWindows[2])
		row.Trend7d = row.RollMean7 - row.RollMean14
	}
}

// trailing computes mean and sample std over the last n entries, skipping NaN.
// Std of fewer than two values is 0; mean of no values is NaN.
func trailing(values []float64, n int) (float64, float64) {
	start := len(values) - n
	if start < 0 {
		start = 0
	}

	window := make([]float64, 0, n)
	for _, v := range values[start:] {
		if !math.IsNaN(v) {
			window = append(window, v)
		}
	}

	switch len(window) {
	case 0:
		return math.NaN(), 0
	case 1:
		return window[0], 0
	}
	mean, std := stat.MeanStdDev(window, nil)
	return mean, std
}
