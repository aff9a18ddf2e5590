package schedule

import (
	"sort"
	"strings"

	"dsa-mcp/internal/orders"

	"github.com/rs/zerolog/log"
)

type dayKey struct {
	warehouse   string
	pickupPoint string
	weekday     int
}

type pairKey struct {
	warehouse   string
	pickupPoint string
}

// Match is the window an order was attributed to.
type Match struct {
	Window Window
	// Weekday is the schedule weekday (1-7) the order counts towards.
	Weekday int
	// NextDay is set when the order missed the last cutoff of its own day.
	NextDay bool
	// OrderFrom is the previous cutoff in minutes since midnight, or -1 when unknown.
	OrderFrom int
}

// Index looks up schedule windows by warehouse, pickup point and weekday.
// Lookups are case-insensitive and ignore surrounding whitespace.
type Index struct {
	days  map[dayKey][]Window
	pairs map[pairKey]bool
	// warehouses holds the distinct normalized warehouse names, sorted.
	warehouses []string
}

// NewIndex builds an index, dropping invalid windows.
func NewIndex(windows []Window) *Index {
	ix := &Index{
		days:  make(map[dayKey][]Window),
		pairs: make(map[pairKey]bool),
	}

	seen := make(map[string]bool)
	for _, w := range windows {
		if err := w.Validate(); err != nil {
			log.Debug().Err(err).Str("warehouse", w.Warehouse).Msg("Skipping invalid schedule window")
			continue
		}
		wh, pv := normalize(w.Warehouse), normalizePickup(w.PickupPoint)
		k := dayKey{warehouse: wh, pickupPoint: pv, weekday: w.Weekday}
		ix.days[k] = append(ix.days[k], w)
		ix.pairs[pairKey{warehouse: wh, pickupPoint: pv}] = true
		if !seen[wh] {
			seen[wh] = true
			ix.warehouses = append(ix.warehouses, wh)
		}
	}

	for k := range ix.days {
		sort.SliceStable(ix.days[k], func(i, j int) bool {
			return ix.days[k][i].OrderBy < ix.days[k][j].OrderBy
		})
	}
	sort.Strings(ix.warehouses)
	return ix
}

// Len returns the number of indexed windows.
func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	n := 0
	for _, ws := range ix.days {
		n += len(ws)
	}
	return n
}

// HasSchedule reports whether any window applies to the warehouse and pickup point.
func (ix *Index) HasSchedule(warehouse, pickupPoint string) bool {
	if ix == nil {
		return false
	}
	for _, src := range ix.sources(warehouse, pickupPoint) {
		if ix.pairs[src] {
			return true
		}
	}
	return false
}

// Match returns the first window of the weekday whose cutoff is at or after
// minutes; orders after the last cutoff roll to the first window of the next day.
func (ix *Index) Match(warehouse, pickupPoint string, weekday, minutes int) (Match, bool) {
	if ix == nil || weekday < 1 || weekday > 7 {
		return Match{}, false
	}

	for _, src := range ix.sources(warehouse, pickupPoint) {
		if !ix.pairs[src] {
			continue
		}
		if m, ok := ix.matchIn(src, weekday, minutes); ok {
			return m, true
		}
	}
	return Match{}, false
}

func (ix *Index) matchIn(src pairKey, weekday, minutes int) (Match, bool) {
	day := ix.windowsOn(src, weekday)
	for i, w := range day {
		if minutes <= w.OrderBy {
			from := -1
			if i > 0 {
				from = day[i-1].OrderBy
			} else if prev := ix.windowsOn(src, PrevWeekday(weekday)); len(prev) > 0 {
				from = prev[len(prev)-1].OrderBy
			}
			return Match{Window: w, Weekday: weekday, OrderFrom: from}, true
		}
	}

	next := ix.windowsOn(src, NextWeekday(weekday))
	if len(next) == 0 {
		return Match{}, false
	}
	from := -1
	if len(day) > 0 {
		from = day[len(day)-1].OrderBy
	}
	return Match{Window: next[0], Weekday: NextWeekday(weekday), NextDay: true, OrderFrom: from}, true
}

func (ix *Index) windowsOn(src pairKey, weekday int) []Window {
	return ix.days[dayKey{warehouse: src.warehouse, pickupPoint: src.pickupPoint, weekday: weekday}]
}

// sources lists the schedules that may apply, most specific first: the exact
// pickup point, the warehouse-wide schedule, then warehouses sharing the first
// word of the name.
func (ix *Index) sources(warehouse, pickupPoint string) []pairKey {
	wh, pv := normalize(warehouse), normalizePickup(pickupPoint)
	if wh == "" {
		return nil
	}

	var out []pairKey
	if pv != "" {
		out = append(out, pairKey{warehouse: wh, pickupPoint: pv})
	}
	out = append(out, pairKey{warehouse: wh})

	if ix.pairs[pairKey{warehouse: wh, pickupPoint: pv}] || ix.pairs[pairKey{warehouse: wh}] {
		return out
	}

	first := strings.Fields(wh)[0]
	for _, other := range ix.warehouses {
		if other == wh || !strings.HasPrefix(other, first) {
			continue
		}
		if pv != "" {
			out = append(out, pairKey{warehouse: other, pickupPoint: pv})
		}
		out = append(out, pairKey{warehouse: other})
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizePickup(pv string) string {
	pv = normalize(pv)
	if pv == normalize(orders.UnspecifiedPickupPoint) {
		return ""
	}
	return pv
}
