package orders

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// UnspecifiedPickupPoint is the grouping label for orders without a pickup point.
const UnspecifiedPickupPoint = "unspecified"

// Record is a single delivery event as reported by the CRM.
type Record struct {
	// OrderID is the CRM order number.
	OrderID string `json:"orderId"`
	// Supplier delivering the position.
	Supplier string `json:"supplier"`
	// Warehouse receiving the delivery.
	Warehouse string `json:"warehouse"`
	// PickupPoint is the drop-off point; may be empty in raw data.
	PickupPoint string `json:"pickupPoint,omitempty"`
	Brand       string `json:"brand,omitempty"`
	Article     string `json:"article,omitempty"`

	// OrderedAt is when the position was ordered. Zero means unknown.
	OrderedAt time.Time `json:"orderedAt"`
	// PlannedAt is the scheduled arrival. Zero means unknown.
	PlannedAt time.Time `json:"plannedAt"`
	// ArrivedAt is the actual arrival at the warehouse. Zero means unknown.
	ArrivedAt time.Time `json:"arrivedAt"`

	// ReportedDeviation is the CRM's own "actual - planned" column in minutes.
	ReportedDeviation *float64 `json:"reportedDeviation,omitempty"`
}

// EntityKey identifies one modeling unit.
type EntityKey struct {
	Supplier    string `json:"supplier"`
	Warehouse   string `json:"warehouse"`
	PickupPoint string `json:"pickupPoint"`
}

// NewEntityKey builds a key with a normalized pickup point.
func NewEntityKey(supplier, warehouse, pickupPoint string) EntityKey {
	return EntityKey{
		Supplier:    supplier,
		Warehouse:   warehouse,
		PickupPoint: NormalizePickupPoint(pickupPoint),
	}
}

func (k EntityKey) String() string {
	return fmt.Sprintf("%s / %s / %s", k.Supplier, k.Warehouse, k.PickupPoint)
}

// NormalizePickupPoint trims the label and maps blank values to UnspecifiedPickupPoint.
func NormalizePickupPoint(pv string) string {
	pv = strings.TrimSpace(pv)
	if pv == "" {
		return UnspecifiedPickupPoint
	}
	return pv
}

// Key returns the entity key of the record.
func (r Record) Key() EntityKey {
	return NewEntityKey(r.Supplier, r.Warehouse, r.PickupPoint)
}

// HasOrderTime reports whether the order timestamp is known.
func (r Record) HasOrderTime() bool {
	return !r.OrderedAt.IsZero()
}

// Deviation returns actual minus planned arrival in minutes (positive = late).
// Timestamps win over the reported column; NaN when neither is usable.
func (r Record) Deviation() float64 {
	if !r.PlannedAt.IsZero() && !r.ArrivedAt.IsZero() {
		return r.ArrivedAt.Sub(r.PlannedAt).Minutes()
	}
	if r.ReportedDeviation != nil && !math.IsNaN(*r.ReportedDeviation) && !math.IsInf(*r.ReportedDeviation, 0) {
		return *r.ReportedDeviation
	}
	return math.NaN()
}

// Normalize returns a copy of the records with pickup points normalized.
func Normalize(records []Record) []Record {
	out := make([]Record, len(records))
	for i, r := range records {
		r.PickupPoint = NormalizePickupPoint(r.PickupPoint)
		out[i] = r
	}
	return out
}

// Dedupe drops repeated (order id, article, order time) rows, keeping the first.
func Dedupe(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	out := make([]Record, 0, len(records))
	for _, r := range records {
		id := r.identity()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, r)
	}
	return out
}

// FilterRange returns records ordered within [from, to]. Zero bounds are open.
// Records without an order time are dropped.
func FilterRange(records []Record, from, to time.Time) []Record {
	var out []Record
	for _, r := range records {
		if !r.HasOrderTime() {
			continue
		}
		if !from.IsZero() && r.OrderedAt.Before(from) {
			continue
		}
		if !to.IsZero() && r.OrderedAt.After(to) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// SortByOrderTime sorts in place, oldest first; records without an order time go last.
func SortByOrderTime(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].OrderedAt, records[j].OrderedAt
		if a.IsZero() != b.IsZero() {
			return !a.IsZero()
		}
		return a.Before(b)
	})
}

func (r Record) identity() string {
	return fmt.Sprintf("%s|%s|%d", r.OrderID, r.Article, r.OrderedAt.UnixMicro())
}
