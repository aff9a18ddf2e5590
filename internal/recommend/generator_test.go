package recommend

import (
	"fmt"
	"math"
	"testing"
	"time"

	"dsa-mcp/internal/features"
	"dsa-mcp/internal/orders"
	"dsa-mcp/internal/schedule"
)

var (
	olderDevs  = []float64{0, 2, 4, 5, 5, 5, 5, 6, 8, 10, 3, 7}
	recentDevs = []float64{40, 42, 44, 45, 45, 46, 48, 50}
)

// mondayOrders places one 09:00 order per Monday starting 2024-01-01,
// planned three hours later and arriving devs[i] minutes after plan.
func mondayOrders(warehouse, pv string, devs ...[]float64) []orders.Record {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	var out []orders.Record
	i := 0
	for _, set := range devs {
		for _, d := range set {
			ordered := start.AddDate(0, 0, 7*i)
			planned := ordered.Add(3 * time.Hour)
			out = append(out, orders.Record{
				OrderID:     fmt.Sprintf("o%d", i),
				Supplier:    "Acme",
				Warehouse:   warehouse,
				PickupPoint: pv,
				Article:     "A-1",
				OrderedAt:   ordered,
				PlannedAt:   planned,
				ArrivedAt:   planned.Add(time.Duration(d) * time.Minute),
			})
			i++
		}
	}
	return out
}

func testGenerator() *Generator {
	cfg := DefaultConfig()
	cfg.Now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return NewGenerator(cfg)
}

func mondayTenIndex() *schedule.Index {
	return schedule.NewIndex([]schedule.Window{
		{Warehouse: "WarehouseA", PickupPoint: "PV1", Weekday: 1, OrderBy: 600, Duration: 180},
	})
}

func TestGenerate_ScheduleShift(t *testing.T) {
	records := mondayOrders("WarehouseA", "PV1", olderDevs, recentDevs)
	report := testGenerator().GenerateFromRecords(records, mondayTenIndex())

	if len(report.Recommendations) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d (skipped %v)", len(report.Recommendations), report.Skipped)
	}
	rec := report.Recommendations[0]

	if rec.Key != orders.NewEntityKey("Acme", "WarehouseA", "PV1") {
		t.Errorf("Key = %v", rec.Key)
	}
	if rec.Mode != ModeSchedule || rec.Window != "by 10:00" || rec.Weekday != 1 || rec.Day != "Monday" {
		t.Errorf("Unexpected slot: mode=%s window=%s weekday=%d day=%s", rec.Mode, rec.Window, rec.Weekday, rec.Day)
	}
	if rec.ShiftMinutes != 40 {
		t.Errorf("ShiftMinutes = %d, want 40", rec.ShiftMinutes)
	}
	if rec.CurrentOffset != 5 || rec.RecommendedOffset != 45 {
		t.Errorf("Offsets = %d -> %d, want 5 -> 45", rec.CurrentOffset, rec.RecommendedOffset)
	}
	if rec.TrendLabel != "delay" {
		t.Errorf("TrendLabel = %s, want delay (trend %s)", rec.TrendLabel, rec.Trend)
	}
	if rec.Confidence < 0.8 || rec.Confidence > 0.86 {
		t.Errorf("Confidence = %v, want about 0.83", rec.Confidence)
	}
	if rec.DeliverBy != "13:00" || rec.RecommendedDuration != 225 || rec.RecommendedDeliverBy != "13:45" {
		t.Errorf("Delivery = %s / %d / %s", rec.DeliverBy, rec.RecommendedDuration, rec.RecommendedDeliverBy)
	}
	if rec.EffectiveFrom != "2024-06-02" {
		t.Errorf("EffectiveFrom = %s, want 2024-06-02", rec.EffectiveFrom)
	}
	if rec.Samples != 20 {
		t.Errorf("Samples = %d, want 20", rec.Samples)
	}
	if rec.Reason == "" {
		t.Error("Expected a reason")
	}

	if len(rec.Examples) != 5 {
		t.Fatalf("Expected 5 examples, got %d", len(rec.Examples))
	}
	ex := rec.Examples[0]
	if ex.OrderID != "o19" || ex.Deviation != 50 || ex.OrderTime != "09:00" || ex.PlanTime != "12:00" || ex.FactTime != "12:50" {
		t.Errorf("Newest example = %+v", ex)
	}
	if report.Groups[ModeSchedule] != 1 {
		t.Errorf("Expected 1 schedule group, got %v", report.Groups)
	}
}

func TestGenerate_HourBucketWithoutSchedule(t *testing.T) {
	records := mondayOrders("WarehouseA", "PV1", olderDevs, recentDevs)

	for name, ix := range map[string]*schedule.Index{
		"NilIndex":   nil,
		"EmptyIndex": schedule.NewIndex(nil),
		"OtherWarehouse": schedule.NewIndex([]schedule.Window{
			{Warehouse: "Elsewhere", Weekday: 1, OrderBy: 600, Duration: 60},
		}),
	} {
		t.Run(name, func(t *testing.T) {
			report := testGenerator().GenerateFromRecords(records, ix)
			if len(report.Recommendations) != 1 {
				t.Fatalf("Expected 1 recommendation, got %d", len(report.Recommendations))
			}
			rec := report.Recommendations[0]
			if rec.Mode != ModeHourBucket || rec.Window != "09:00-09:59" {
				t.Errorf("Expected hour bucket 09:00-09:59, got %s %s", rec.Mode, rec.Window)
			}
			// Recent period is the last 14 days: the final three Mondays.
			if rec.RecommendedOffset != 48 || rec.CurrentOffset != 6 || rec.ShiftMinutes != 42 {
				t.Errorf("Offsets = %d -> %d (shift %d), want 6 -> 48 (42)", rec.CurrentOffset, rec.RecommendedOffset, rec.ShiftMinutes)
			}
			if rec.OrderFrom != "09:00" || rec.OrderBy != "09:59" {
				t.Errorf("Bucket bounds = %s-%s", rec.OrderFrom, rec.OrderBy)
			}
			if rec.RecommendedDuration != 0 {
				t.Error("Hour bucket recommendation must not carry a duration")
			}
		})
	}
}

func TestGenerate_TooFewOrders(t *testing.T) {
	records := mondayOrders("WarehouseA", "PV1", []float64{60, 90})
	report := testGenerator().GenerateFromRecords(records, mondayTenIndex())

	if len(report.Recommendations) != 0 {
		t.Fatalf("Expected no recommendations, got %d", len(report.Recommendations))
	}
	if got := report.SkippedBy()[SkipInsufficientSamples]; got != 1 {
		t.Errorf("Expected 1 insufficient_samples skip, got %d", got)
	}
}

func TestGenerate_SkipReasons(t *testing.T) {
	t.Run("BelowThreshold", func(t *testing.T) {
		flat := make([]float64, 20)
		for i := range flat {
			flat[i] = 5
		}
		report := testGenerator().GenerateFromRecords(mondayOrders("WarehouseA", "PV1", flat), mondayTenIndex())
		if len(report.Recommendations) != 0 || report.SkippedBy()[SkipBelowThreshold] != 1 {
			t.Errorf("Expected one below_threshold skip, got %v", report.Skipped)
		}
	})

	t.Run("SystematicDeviationIsReported", func(t *testing.T) {
		late := make([]float64, 20)
		for i := range late {
			late[i] = 60
		}
		report := testGenerator().GenerateFromRecords(mondayOrders("WarehouseA", "PV1", late), mondayTenIndex())
		if len(report.Recommendations) != 1 {
			t.Fatalf("Expected 1 recommendation, got %d", len(report.Recommendations))
		}
		rec := report.Recommendations[0]
		if rec.ShiftMinutes != 0 || rec.RecommendedOffset != 60 || rec.TrendLabel != "delay" {
			t.Errorf("Unexpected recommendation %+v", rec)
		}
	})

	t.Run("UnmatchedWindow", func(t *testing.T) {
		ix := schedule.NewIndex([]schedule.Window{
			{Warehouse: "WarehouseA", PickupPoint: "PV1", Weekday: 3, OrderBy: 600, Duration: 60},
		})
		report := testGenerator().GenerateFromRecords(mondayOrders("WarehouseA", "PV1", olderDevs, recentDevs), ix)
		if len(report.Recommendations) != 0 {
			t.Errorf("Expected no recommendations, got %d", len(report.Recommendations))
		}
		if report.SkippedBy()[SkipUnmatched] != 1 || report.Skipped[0].Samples != 20 {
			t.Errorf("Expected one unmatched skip with 20 rows, got %v", report.Skipped)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		records := mondayOrders("WarehouseA", "PV1", olderDevs)
		records[0].ArrivedAt = time.Time{}
		records[1].OrderedAt = time.Time{}
		report := testGenerator().GenerateFromRecords(records, mondayTenIndex())
		var found bool
		for _, s := range report.Skipped {
			if s.Reason == SkipMalformed {
				found = true
				if s.Samples != 2 {
					t.Errorf("Expected 2 malformed rows, got %d", s.Samples)
				}
			}
		}
		if !found {
			t.Error("Expected a malformed skip")
		}
	})
}

func TestGenerate_EmptyInput(t *testing.T) {
	report := testGenerator().Generate(nil, nil)
	if len(report.Recommendations) != 0 || len(report.Skipped) != 0 {
		t.Errorf("Expected empty report, got %+v", report)
	}
}

func TestConfidence_Bounds(t *testing.T) {
	g := testGenerator()

	steady := make([]float64, 20)
	for i := range steady {
		steady[i] = 60
	}
	if got := g.confidence(g.cfg.Schedule, steady, steady); got != 0.95 {
		t.Errorf("confidence(steady) = %v, want 0.95", got)
	}

	noisy := []float64{-100, 100, 0}
	if got := g.confidence(g.cfg.Schedule, noisy, noisy); math.Abs(got-0.46) > 1e-9 {
		t.Errorf("confidence(noisy) = %v, want 0.46", got)
	}

	// Single recent value falls back to a 30 minute spread.
	if got := g.confidence(g.cfg.Schedule, []float64{10}, []float64{10}); math.Abs(got-0.57) > 1e-9 {
		t.Errorf("confidence(single) = %v, want 0.57", got)
	}

	// Hour bucket groups of 10+ get the consistency term, floored at 0.7.
	wide := []float64{-300, 300, -300, 300, -300, 300, -300, 300, -300, 300}
	if got := g.confidence(g.cfg.HourBucket, []float64{0, 0, 0}, wide); math.Abs(got-0.77) > 1e-9 {
		t.Errorf("confidence(wide) = %v, want 0.77", got)
	}
}

func TestStripOutliers(t *testing.T) {
	devs := []float64{10, 11, 9, 10, 12, 8, 10, 11, 9, 10, 400}
	rows := features.NewBuilder().Build(mondayOrders("W", "P", devs))

	kept := stripOutliers(rows, 2.5, 5)
	if len(kept) != 10 {
		t.Errorf("Expected 10 rows after stripping, got %d", len(kept))
	}
	if got := stripOutliers(rows, 2.5, 11); len(got) != 11 {
		t.Errorf("Expected unfiltered rows when too few remain, got %d", len(got))
	}
}

func TestGenerate_HourBucketConsistencyKeepsOutliers(t *testing.T) {
	older := append([]float64(nil), olderDevs...)
	older[3] = 600
	all := append(older, recentDevs...)

	g := testGenerator()
	report := g.GenerateFromRecords(mondayOrders("WarehouseA", "PV1", older, recentDevs), nil)
	if len(report.Recommendations) != 1 {
		t.Fatalf("Expected 1 recommendation, got %d (skipped %v)", len(report.Recommendations), report.Skipped)
	}
	rec := report.Recommendations[0]
	if rec.Samples != len(all)-1 {
		t.Errorf("Expected the outlier to be stripped from the split, got %d samples", rec.Samples)
	}

	recent := []float64{46, 48, 50}
	want := g.confidence(g.cfg.HourBucket, recent, all)
	stripped := g.confidence(g.cfg.HourBucket, recent, append(append([]float64(nil), olderDevs[:3]...), append(olderDevs[4:], recentDevs...)...))
	if want == stripped {
		t.Fatalf("Fixture does not separate stripped and unstripped consistency (%v)", want)
	}
	if rec.Confidence != want {
		t.Errorf("Confidence = %v, want %v from every order (stripped would give %v)", rec.Confidence, want, stripped)
	}
}
