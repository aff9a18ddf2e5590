package recommend

import "sort"

// Dedupe keeps one recommendation per (entity, weekday, window), preferring
// the higher confidence and then the larger shift. Input order is kept.
func Dedupe(recs []Recommendation) []Recommendation {
	out, _ := dedupe(recs)
	return out
}

func dedupe(recs []Recommendation) ([]Recommendation, []Skipped) {
	best := make(map[SlotKey]int, len(recs))
	var out []Recommendation
	var dropped []Skipped

	for _, rec := range recs {
		slot := rec.SlotKey()
		i, seen := best[slot]
		if !seen {
			best[slot] = len(out)
			out = append(out, rec)
			continue
		}
		loser := rec
		if better(rec, out[i]) {
			loser = out[i]
			out[i] = rec
		}
		dropped = append(dropped, Skipped{Slot: slot, Reason: SkipDuplicate, Samples: loser.Samples})
	}
	return out, dropped
}

func better(a, b Recommendation) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return abs(a.ShiftMinutes) > abs(b.ShiftMinutes)
}

// Sort orders recommendations by confidence, then absolute shift, both descending.
func Sort(recs []Recommendation) {
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := recs[i], recs[j]
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if abs(a.ShiftMinutes) != abs(b.ShiftMinutes) {
			return abs(a.ShiftMinutes) > abs(b.ShiftMinutes)
		}
		return a.SlotKey().String() < b.SlotKey().String()
	})
}

// Filter returns the recommendations matching the supplier and warehouse
// (empty matches all) with at least minConfidence.
func Filter(recs []Recommendation, supplier, warehouse string, minConfidence float64) []Recommendation {
	var out []Recommendation
	for _, r := range recs {
		if supplier != "" && r.Key.Supplier != supplier {
			continue
		}
		if warehouse != "" && r.Key.Warehouse != warehouse {
			continue
		}
		if r.Confidence < minConfidence {
			continue
		}
		out = append(out, r)
	}
	return out
}
