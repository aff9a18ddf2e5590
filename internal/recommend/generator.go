package recommend

import (
	"fmt"
	"math"
	"sort"
	"time"

	"dsa-mcp/internal/features"
	"dsa-mcp/internal/orders"
	"dsa-mcp/internal/schedule"
	"dsa-mcp/internal/stats"

	"github.com/rs/zerolog/log"
)

// Generator turns historical orders into schedule correction recommendations.
type Generator struct {
	cfg Config
}

// NewGenerator creates a generator; a nil Now defaults to time.Now.
func NewGenerator(cfg Config) *Generator {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.BucketHours < 1 {
		cfg.BucketHours = 1
	}
	return &Generator{cfg: cfg}
}

type group struct {
	slot  SlotKey
	mode  Mode
	match schedule.Match
	rows  []features.Row
}

// GenerateFromRecords builds feature rows and runs Generate over them.
func (g *Generator) GenerateFromRecords(records []orders.Record, ix *schedule.Index) Report {
	return g.Generate(features.NewBuilder().Build(records), ix)
}

// Generate groups rows by entity, weekday and order window and emits a
// recommendation for every group whose recent deviation moved enough.
// Entity pairs without a schedule in ix are grouped by hour of day instead.
// rows must be sorted by order time, as returned by features.Builder.
func (g *Generator) Generate(rows []features.Row, ix *schedule.Index) Report {
	report := Report{Groups: make(map[Mode]int)}

	groups := make(map[SlotKey]*group)
	var order []SlotKey
	malformed := make(map[orders.EntityKey]int)
	unmatched := make(map[orders.EntityKey]int)

	for _, row := range rows {
		if !row.Valid() {
			malformed[row.Key]++
			continue
		}

		slot, mode, match, ok := g.assign(row, ix)
		if !ok {
			unmatched[row.Key]++
			continue
		}

		grp, exists := groups[slot]
		if !exists {
			grp = &group{slot: slot, mode: mode, match: match}
			groups[slot] = grp
			order = append(order, slot)
		}
		grp.rows = append(grp.rows, row)
	}

	report.Skipped = append(report.Skipped, entitySkips(malformed, SkipMalformed)...)
	report.Skipped = append(report.Skipped, entitySkips(unmatched, SkipUnmatched)...)

	sort.Slice(order, func(i, j int) bool { return order[i].String() < order[j].String() })

	var recs []Recommendation
	for _, slot := range order {
		grp := groups[slot]
		report.Groups[grp.mode]++

		rec, reason := g.evaluate(grp)
		if reason != "" {
			report.Skipped = append(report.Skipped, Skipped{Slot: slot, Reason: reason, Samples: len(grp.rows)})
			continue
		}
		recs = append(recs, rec)
	}

	deduped, dropped := dedupe(recs)
	report.Skipped = append(report.Skipped, dropped...)
	Sort(deduped)
	report.Recommendations = deduped

	log.Info().
		Int("rows", len(rows)).
		Int("groups", len(order)).
		Int("recommendations", len(deduped)).
		Int("skipped", len(report.Skipped)).
		Msg("Recommendations generated")

	return report
}

// assign attributes a row to its order window.
func (g *Generator) assign(row features.Row, ix *schedule.Index) (SlotKey, Mode, schedule.Match, bool) {
	weekday := row.DayOfWeek + 1

	if ix.HasSchedule(row.Key.Warehouse, row.Key.PickupPoint) {
		at := row.Record.OrderedAt
		m, ok := ix.Match(row.Key.Warehouse, row.Key.PickupPoint, weekday, at.Hour()*60+at.Minute())
		if !ok {
			return SlotKey{}, "", schedule.Match{}, false
		}
		slot := SlotKey{Entity: row.Key, Weekday: m.Weekday, Window: "by " + m.Window.OrderByClock()}
		return slot, ModeSchedule, m, true
	}

	start := row.Hour / g.cfg.BucketHours * g.cfg.BucketHours
	slot := SlotKey{Entity: row.Key, Weekday: weekday, Window: g.bucketLabel(start)}
	return slot, ModeHourBucket, schedule.Match{}, true
}

func (g *Generator) bucketLabel(startHour int) string {
	end := startHour + g.cfg.BucketHours
	if end > 24 {
		end = 24
	}
	return fmt.Sprintf("%02d:00-%02d:59", startHour, end-1)
}

// evaluate computes the recommendation of a group, or the reason it has none.
func (g *Generator) evaluate(grp *group) (Recommendation, SkipReason) {
	prof := g.cfg.profile(grp.mode)
	rows := grp.rows

	if len(rows) < prof.MinSamples {
		return Recommendation{}, SkipInsufficientSamples
	}
	if prof.StripOutliers {
		rows = stripOutliers(rows, g.cfg.OutlierStd, prof.MinSamples)
	}

	older, recent := split(rows, prof)
	if len(older) < prof.MinPerSide || len(recent) < prof.MinPerSide {
		return Recommendation{}, SkipInsufficientSplit
	}

	olderMedian := stats.Median(older)
	recentMedian := stats.Median(recent)
	shift := recentMedian - olderMedian

	if math.Abs(recentMedian) <= g.cfg.LargeDeviation && math.Abs(shift) < g.cfg.MinShift {
		return Recommendation{}, SkipBelowThreshold
	}

	// Trend and consistency see every order, outliers included.
	all := deviations(grp.rows)
	trend := stats.ClassifyTrend(all, g.cfg.Trend)

	rec := Recommendation{
		Key:               grp.slot.Entity,
		Weekday:           grp.slot.Weekday,
		Day:               stats.WeekdayNames[grp.slot.Weekday-1],
		Mode:              grp.mode,
		Window:            grp.slot.Window,
		CurrentOffset:     roundInt(olderMedian),
		RecommendedOffset: roundInt(recentMedian),
		ShiftMinutes:      roundInt(shift),
		Confidence:        g.confidence(prof, recent, all),
		Trend:             trend.Trend,
		TrendSlope:        stats.Round(trend.Slope, 2),
		EffectiveFrom:     g.cfg.Now().AddDate(0, 0, 1).Format("2006-01-02"),
		Samples:           len(rows),
		Examples:          examples(rows, g.cfg.MaxExamples),
	}
	rec.TrendLabel = trendLabel(rec)

	if grp.mode == ModeSchedule {
		w := grp.match.Window
		rec.OrderBy = w.OrderByClock()
		if grp.match.OrderFrom >= 0 {
			rec.OrderFrom = schedule.FormatClock(grp.match.OrderFrom)
		}
		rec.DeliverBy = w.DeliverBy()
		rec.WindowDuration = w.Duration
		rec.RecommendedDuration = max(0, w.Duration+rec.RecommendedOffset)
		rec.RecommendedDeliverBy = schedule.FormatClock(w.OrderBy + rec.RecommendedDuration)
	} else {
		start := rows[0].Hour / g.cfg.BucketHours * g.cfg.BucketHours
		rec.OrderFrom = schedule.FormatClock(start * 60)
		rec.OrderBy = schedule.FormatClock(min(start+g.cfg.BucketHours, 24)*60 - 1)
	}
	rec.Reason = reason(rec)

	return rec, ""
}

// confidence scores a group from the recent sample count, the recent spread
// and, for large groups, the overall spread.
func (g *Generator) confidence(prof Profile, recent, all []float64) float64 {
	countFactor := math.Min(1, float64(len(recent))/prof.CountSaturation)

	std := g.cfg.FallbackStd
	if len(recent) > 1 {
		std = stats.StdDev(recent)
	}
	stdFactor := clamp(1-std/g.cfg.StdScale, 0, 1)

	consistency := 1.0
	if len(all) >= g.cfg.ConsistencyMinSamples {
		consistency = clamp(1-stats.StdDev(all)/g.cfg.ConsistencyScale, g.cfg.ConsistencyFloor, 1)
	}

	c := g.cfg.BaseConfidence +
		prof.CountWeight*countFactor +
		prof.StdWeight*stdFactor +
		prof.ConsistencyWeight*consistency
	return stats.Round(clamp(c, 0, g.cfg.MaxConfidence), 2)
}

// split divides time-ordered rows into the older and recent periods.
func split(rows []features.Row, prof Profile) ([]float64, []float64) {
	switch prof.Split {
	case SplitByRecentDays:
		latest := rows[len(rows)-1].Record.OrderedAt
		cutoff := latest.AddDate(0, 0, -prof.RecentDays)
		var older, recent []float64
		for _, r := range rows {
			if r.Record.OrderedAt.Before(cutoff) {
				older = append(older, r.Deviation)
			} else {
				recent = append(recent, r.Deviation)
			}
		}
		return older, recent
	default:
		cut := len(rows) * 2 / 3
		return deviations(rows[:cut]), deviations(rows[cut:])
	}
}

// stripOutliers drops rows beyond k standard deviations of the group mean,
// keeping the unfiltered rows if fewer than minKeep would remain.
func stripOutliers(rows []features.Row, k float64, minKeep int) []features.Row {
	values := deviations(rows)
	if len(values) < 2 {
		return rows
	}
	mean, std := stats.Mean(values), stats.StdDev(values)
	if std == 0 {
		return rows
	}

	kept := make([]features.Row, 0, len(rows))
	for _, r := range rows {
		if math.Abs(r.Deviation-mean) <= k*std {
			kept = append(kept, r)
		}
	}
	if len(kept) < minKeep {
		return rows
	}
	return kept
}

// examples returns up to n of the most recent orders, newest first.
func examples(rows []features.Row, n int) []ExampleOrder {
	out := make([]ExampleOrder, 0, n)
	for i := len(rows) - 1; i >= 0 && len(out) < n; i-- {
		rec := rows[i].Record
		out = append(out, ExampleOrder{
			OrderID:     rec.OrderID,
			PickupPoint: rec.PickupPoint,
			OrderDate:   rec.OrderedAt.Format("02.01.2006"),
			OrderTime:   rec.OrderedAt.Format("15:04"),
			PlanTime:    clockOf(rec.PlannedAt),
			FactTime:    clockOf(rec.ArrivedAt),
			Deviation:   roundInt(rows[i].Deviation),
		})
	}
	return out
}

func clockOf(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("15:04")
}

// trendLabel names the direction operators should act on. Drifts keep the
// detector's direction; otherwise the sign of the shift (or offset) decides.
func trendLabel(rec Recommendation) string {
	switch rec.Trend {
	case stats.TrendIncreasingDelay, stats.TrendDecreasingDelay:
		return rec.Trend.Label()
	}
	v := rec.ShiftMinutes
	if v == 0 {
		v = rec.RecommendedOffset
	}
	switch {
	case v > 0:
		return "delay"
	case v < 0:
		return "early"
	default:
		return "stable"
	}
}

func reason(rec Recommendation) string {
	var where string
	if rec.Mode == ModeSchedule {
		where = fmt.Sprintf("%s, orders by %s", rec.Day, rec.OrderBy)
	} else {
		where = fmt.Sprintf("%s, orders %s", rec.Day, rec.Window)
	}

	var msg string
	switch rec.Trend {
	case stats.TrendIncreasingDelay:
		msg = fmt.Sprintf("Delays are growing on %s: median moved from %+d to %+d min.", where, rec.CurrentOffset, rec.RecommendedOffset)
	case stats.TrendDecreasingDelay:
		msg = fmt.Sprintf("Deliveries are getting earlier on %s: median moved from %+d to %+d min.", where, rec.CurrentOffset, rec.RecommendedOffset)
	case stats.TrendShift:
		msg = fmt.Sprintf("Sudden shift of %+d min on %s.", rec.ShiftMinutes, where)
	default:
		if abs(rec.ShiftMinutes) >= 1 {
			msg = fmt.Sprintf("Deviation changed by %+d min on %s, now %+d min from plan.", rec.ShiftMinutes, where, rec.RecommendedOffset)
		} else {
			msg = fmt.Sprintf("Systematic deviation of %+d min from plan on %s.", rec.RecommendedOffset, where)
		}
	}

	if rec.Mode == ModeSchedule && rec.RecommendedDuration != rec.WindowDuration {
		msg += fmt.Sprintf(" Set delivery duration to %d min (was %d), deliver by %s.", rec.RecommendedDuration, rec.WindowDuration, rec.RecommendedDeliverBy)
	}
	return msg
}

func entitySkips(counts map[orders.EntityKey]int, reason SkipReason) []Skipped {
	out := make([]Skipped, 0, len(counts))
	for key, n := range counts {
		out = append(out, Skipped{Slot: SlotKey{Entity: key}, Reason: reason, Samples: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slot.Entity.String() < out[j].Slot.Entity.String() })
	return out
}

func deviations(rows []features.Row) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = r.Deviation
	}
	return out
}

func roundInt(v float64) int {
	return int(math.Round(v))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
