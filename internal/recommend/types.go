package recommend

import (
	"fmt"

	"dsa-mcp/internal/orders"
	"dsa-mcp/internal/stats"
)

// Mode is how orders were grouped into windows.
type Mode string

const (
	ModeSchedule   Mode = "schedule"
	ModeHourBucket Mode = "hour_bucket"
)

// ExampleOrder is a recent order shown to back a recommendation.
type ExampleOrder struct {
	OrderID     string `json:"order_id"`
	PickupPoint string `json:"pickup_point"`
	OrderDate   string `json:"order_date"`
	OrderTime   string `json:"order_time"`
	PlanTime    string `json:"plan_time"`
	FactTime    string `json:"fact_time"`
	Deviation   int    `json:"deviation"`
}

// Recommendation is a proposed correction of the expected delivery time for one window.
type Recommendation struct {
	Key     orders.EntityKey `json:"key"`
	Weekday int              `json:"weekday"` // 1 = Monday
	Day     string           `json:"day"`
	Mode    Mode             `json:"mode"`
	// Window identifies the order window, e.g. "by 10:00" or "10:00-10:59".
	Window    string `json:"window"`
	OrderFrom string `json:"order_from"`
	OrderBy   string `json:"order_by"`
	DeliverBy string `json:"deliver_by,omitempty"`

	// Offsets are median deviations from the planned time in minutes.
	CurrentOffset     int `json:"current_offset"`
	RecommendedOffset int `json:"recommended_offset"`
	ShiftMinutes      int `json:"shift_minutes"`

	// Schedule mode only.
	WindowDuration       int    `json:"window_duration,omitempty"`
	RecommendedDuration  int    `json:"recommended_duration,omitempty"`
	RecommendedDeliverBy string `json:"recommended_deliver_by,omitempty"`

	Confidence    float64        `json:"confidence"`
	Trend         stats.Trend    `json:"trend"`
	TrendLabel    string         `json:"trend_label"`
	TrendSlope    float64        `json:"trend_slope"`
	Reason        string         `json:"reason"`
	EffectiveFrom string         `json:"effective_from"`
	Samples       int            `json:"samples"`
	Examples      []ExampleOrder `json:"examples"`
}

// SlotKey returns the deduplication key of the recommendation.
func (r Recommendation) SlotKey() SlotKey {
	return SlotKey{Entity: r.Key, Weekday: r.Weekday, Window: r.Window}
}

// SlotKey identifies one (entity, weekday, window) group.
type SlotKey struct {
	Entity  orders.EntityKey `json:"entity"`
	Weekday int              `json:"weekday"`
	Window  string           `json:"window"`
}

func (k SlotKey) String() string {
	return fmt.Sprintf("%s / %d / %s", k.Entity, k.Weekday, k.Window)
}

// SkipReason says why a group produced no recommendation.
type SkipReason string

const (
	SkipInsufficientSamples SkipReason = "insufficient_samples"
	SkipInsufficientSplit   SkipReason = "insufficient_split"
	SkipBelowThreshold      SkipReason = "below_threshold"
	SkipUnmatched           SkipReason = "no_matching_window"
	SkipMalformed           SkipReason = "malformed"
	SkipDuplicate           SkipReason = "duplicate"
)

// Skipped records a group that produced no recommendation.
type Skipped struct {
	Slot    SlotKey    `json:"slot"`
	Reason  SkipReason `json:"reason"`
	Samples int        `json:"samples"`
}

// Report is the outcome of a generation run.
type Report struct {
	Recommendations []Recommendation `json:"recommendations"`
	Skipped         []Skipped        `json:"skipped"`
	// Groups counts evaluated groups per mode.
	Groups map[Mode]int `json:"groups"`
}

// SkippedBy counts skipped groups per reason.
func (r Report) SkippedBy() map[SkipReason]int {
	out := make(map[SkipReason]int)
	for _, s := range r.Skipped {
		out[s.Reason]++
	}
	return out
}
