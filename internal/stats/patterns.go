package stats

import (
	"fmt"
	"math"
	"sort"
	"time"

	"dsa-mcp/internal/features"
	"dsa-mcp/internal/orders"
)

// OnTimeTolerance is the absolute deviation in minutes still counted as on time.
const OnTimeTolerance = 30.0

// VeryLateThreshold marks deliveries more than an hour late.
const VeryLateThreshold = 60.0

// patternMinOrders is the minimum group size reported in breakdowns.
const patternMinOrders = 3

// WeekdayNames are indexed by day of week with Monday as 0.
var WeekdayNames = [7]string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}

// DeviationStats summarizes a set of deviations.
type DeviationStats struct {
	Orders          int     `json:"orders"`
	MeanDeviation   float64 `json:"mean_deviation"`
	MedianDeviation float64 `json:"median_deviation"`
	StdDeviation    float64 `json:"std_deviation"`
	OnTimePct       float64 `json:"on_time_pct"`
}

// WeekdayStats adds the all-hours trend of the weekday.
type WeekdayStats struct {
	Orders          int     `json:"orders"`
	MeanDeviation   float64 `json:"mean_deviation"`
	MedianDeviation float64 `json:"median_deviation"`
	Trend           string  `json:"trend"`
}

// HourStats covers one order hour.
type HourStats struct {
	Orders          int     `json:"orders"`
	MeanDeviation   float64 `json:"mean_deviation"`
	MedianDeviation float64 `json:"median_deviation"`
}

// SupplierAnalysis is the pattern breakdown for one supplier and warehouse.
type SupplierAnalysis struct {
	Supplier    string                    `json:"supplier"`
	Warehouse   string                    `json:"warehouse"`
	PickupPoint string                    `json:"pickup_point"`
	TotalOrders int                       `json:"total_orders"`
	From        string                    `json:"from"`
	To          string                    `json:"to"`
	Overall     DeviationStats            `json:"overall"`
	ByWeekday   map[string]WeekdayStats   `json:"by_weekday"`
	ByHour      map[string]HourStats      `json:"by_hour"`
	ByPickup    map[string]DeviationStats `json:"by_pickup_point"`
	Stability   XmRResult                 `json:"stability"`
}

// AnalyzeSupplier breaks down deviations of a supplier at a warehouse by weekday,
// order hour (06-21) and pickup point. An empty pickupPoint analyzes all of them.
// It returns false when no usable orders match.
func AnalyzeSupplier(records []orders.Record, supplier, warehouse, pickupPoint string, th TrendThresholds) (SupplierAnalysis, bool) {
	subset := usable(records, supplier, warehouse, pickupPoint)
	if len(subset) == 0 {
		return SupplierAnalysis{}, false
	}

	label := "all"
	if pickupPoint != "" {
		label = orders.NormalizePickupPoint(pickupPoint)
	}

	first, last := Span(subset)

	a := SupplierAnalysis{
		Supplier:    supplier,
		Warehouse:   warehouse,
		PickupPoint: label,
		TotalOrders: len(subset),
		From:        first.Format("02.01.2006"),
		To:          last.Format("02.01.2006"),
		Overall:     summarize(deviations(subset)),
		ByWeekday:   make(map[string]WeekdayStats),
		ByHour:      make(map[string]HourStats),
		ByPickup:    make(map[string]DeviationStats),
		Stability:   DeviationStability(subset),
	}

	if pickupPoint == "" {
		for pv, group := range groupBy(subset, func(r orders.Record) string { return r.Key().PickupPoint }) {
			if len(group) >= patternMinOrders {
				a.ByPickup[pv] = summarize(deviations(group))
			}
		}
	}

	byDay := groupBy(subset, func(r orders.Record) string { return fmt.Sprint(features.Weekday(r.OrderedAt)) })
	for dow := 0; dow < 7; dow++ {
		group := byDay[fmt.Sprint(dow)]
		if len(group) < patternMinOrders {
			continue
		}
		devs := deviations(group)
		trend := DetectTrend(records, Slice{
			Supplier:    supplier,
			Warehouse:   warehouse,
			PickupPoint: pickupPoint,
			DayOfWeek:   dow,
			Hour:        AllHours,
		}, th)
		a.ByWeekday[WeekdayNames[dow]] = WeekdayStats{
			Orders:          len(group),
			MeanDeviation:   Round(Mean(devs), 1),
			MedianDeviation: Round(Median(devs), 1),
			Trend:           trend.Trend.Label(),
		}
	}

	byHour := groupBy(subset, func(r orders.Record) string { return fmt.Sprintf("%02d:00", r.OrderedAt.Hour()) })
	for hour := 6; hour < 22; hour++ {
		slot := fmt.Sprintf("%02d:00", hour)
		group := byHour[slot]
		if len(group) < patternMinOrders {
			continue
		}
		devs := deviations(group)
		a.ByHour[slot] = HourStats{
			Orders:          len(group),
			MeanDeviation:   Round(Mean(devs), 1),
			MedianDeviation: Round(Median(devs), 1),
		}
	}

	return a, true
}

// PickupStats is the delivery quality of one pickup point.
type PickupStats struct {
	PickupPoint     string  `json:"pickup_point"`
	Orders          int     `json:"orders"`
	UniqueOrders    int     `json:"unique_orders"`
	MeanDeviation   float64 `json:"mean_deviation"`
	MedianDeviation float64 `json:"median_deviation"`
	StdDeviation    float64 `json:"std_deviation"`
	MinDeviation    float64 `json:"min_deviation"`
	MaxDeviation    float64 `json:"max_deviation"`
	OnTimePct       float64 `json:"on_time_pct"`
	EarlyPct        float64 `json:"early_pct"`
	LatePct         float64 `json:"late_pct"`
	VeryLatePct     float64 `json:"very_late_pct"`
}

// PickupPointStats returns per pickup point statistics for a supplier at a warehouse,
// ordered by on-time share (best first). Pickup points with fewer than 3 orders are omitted.
func PickupPointStats(records []orders.Record, supplier, warehouse string) []PickupStats {
	subset := usable(records, supplier, warehouse, "")

	var out []PickupStats
	for pv, group := range groupBy(subset, func(r orders.Record) string { return r.Key().PickupPoint }) {
		if len(group) < patternMinOrders {
			continue
		}
		devs := deviations(group)
		lo, hi := MinMax(devs)

		ids := make(map[string]bool)
		for _, r := range group {
			ids[r.OrderID] = true
		}

		out = append(out, PickupStats{
			PickupPoint:     pv,
			Orders:          len(group),
			UniqueOrders:    len(ids),
			MeanDeviation:   Round(Mean(devs), 1),
			MedianDeviation: Round(Median(devs), 1),
			StdDeviation:    Round(StdDev(devs), 1),
			MinDeviation:    Round(lo, 1),
			MaxDeviation:    Round(hi, 1),
			OnTimePct:       Share(devs, isOnTime),
			EarlyPct:        Share(devs, func(v float64) bool { return v < -OnTimeTolerance }),
			LatePct:         Share(devs, func(v float64) bool { return v > OnTimeTolerance }),
			VeryLatePct:     Share(devs, func(v float64) bool { return v > VeryLateThreshold }),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OnTimePct != out[j].OnTimePct {
			return out[i].OnTimePct > out[j].OnTimePct
		}
		return out[i].PickupPoint < out[j].PickupPoint
	})
	return out
}

// BestWorstPickupPoint returns the pickup points with the highest and lowest on-time share.
// Worst is empty when only one pickup point qualifies.
func BestWorstPickupPoint(stats []PickupStats) (best, worst string) {
	if len(stats) == 0 {
		return "", ""
	}
	best = stats[0].PickupPoint
	if len(stats) > 1 {
		worst = stats[len(stats)-1].PickupPoint
	}
	return best, worst
}

func isOnTime(v float64) bool {
	return math.Abs(v) <= OnTimeTolerance
}

func summarize(devs []float64) DeviationStats {
	return DeviationStats{
		Orders:          len(devs),
		MeanDeviation:   Round(Mean(devs), 1),
		MedianDeviation: Round(Median(devs), 1),
		StdDeviation:    Round(StdDev(devs), 1),
		OnTimePct:       Share(devs, isOnTime),
	}
}

// usable returns timed records with a known deviation for the supplier and warehouse.
func usable(records []orders.Record, supplier, warehouse, pickupPoint string) []orders.Record {
	var out []orders.Record
	for _, r := range records {
		if r.Supplier != supplier || r.Warehouse != warehouse {
			continue
		}
		if !r.HasOrderTime() || math.IsNaN(r.Deviation()) {
			continue
		}
		if pickupPoint != "" && r.Key().PickupPoint != orders.NormalizePickupPoint(pickupPoint) {
			continue
		}
		out = append(out, r)
	}
	return out
}

func deviations(records []orders.Record) []float64 {
	out := make([]float64, len(records))
	for i, r := range records {
		out[i] = r.Deviation()
	}
	return out
}

func groupBy(records []orders.Record, key func(orders.Record) string) map[string][]orders.Record {
	out := make(map[string][]orders.Record)
	for _, r := range records {
		k := key(r)
		out[k] = append(out[k], r)
	}
	return out
}

// Span returns the earliest and latest order times in the records.
func Span(records []orders.Record) (time.Time, time.Time) {
	var first, last time.Time
	for _, r := range records {
		if !r.HasOrderTime() {
			continue
		}
		if first.IsZero() || r.OrderedAt.Before(first) {
			first = r.OrderedAt
		}
		if r.OrderedAt.After(last) {
			last = r.OrderedAt
		}
	}
	return first, last
}
