package stats

import (
	"math"
	"sort"

	"dsa-mcp/internal/orders"
)

// xmrScale is Wheeler's scaling constant for individuals charts.
const xmrScale = 2.66

// shiftRun is the number of consecutive points on one side of the average
// that signals a process shift.
const shiftRun = 8

// Stability statuses.
const (
	StatusStable   = "stable"
	StatusVolatile = "volatile"
	StatusShifted  = "shifted"
)

// XmRResult is an individuals and moving range chart of delivery deviations.
type XmRResult struct {
	Average     float64   `json:"average"`
	AmR         float64   `json:"average_moving_range"`
	UNPL        float64   `json:"upper_natural_process_limit"`
	LNPL        float64   `json:"lower_natural_process_limit"`
	Values      []float64 `json:"-"`
	MovingRange []float64 `json:"-"`
	Signals     []Signal  `json:"signals"`
	Status      string    `json:"status"`
}

// Signal is a special cause found on the chart.
type Signal struct {
	Index       int    `json:"index"`
	OrderID     string `json:"order_id,omitempty"`
	Type        string `json:"type"` // "outlier", "shift"
	Description string `json:"description"`
}

// CalculateXmR builds the chart for values in order.
func CalculateXmR(values []float64) XmRResult {
	return CalculateXmRWithKeys(values, nil)
}

// CalculateXmRWithKeys builds the chart and binds order IDs to signals.
// Deviations may be negative, so the lower limit is not floored at zero.
func CalculateXmRWithKeys(values []float64, keys []string) XmRResult {
	if len(values) == 0 {
		return XmRResult{Status: StatusStable}
	}

	result := XmRResult{
		Values:  values,
		Average: Mean(values),
	}

	if len(values) > 1 {
		result.MovingRange = make([]float64, len(values)-1)
		for i := 0; i < len(values)-1; i++ {
			result.MovingRange[i] = math.Abs(values[i+1] - values[i])
		}
		result.AmR = Mean(result.MovingRange)
	}

	result.UNPL = result.Average + xmrScale*result.AmR
	result.LNPL = result.Average - xmrScale*result.AmR
	result.Signals = detectSignals(values, result.Average, result.UNPL, result.LNPL, keys)

	result.Status = StatusStable
	for _, s := range result.Signals {
		if s.Type == "shift" {
			result.Status = StatusShifted
			break
		}
		result.Status = StatusVolatile
	}

	result.Average = Round(result.Average, 1)
	result.AmR = Round(result.AmR, 1)
	result.UNPL = Round(result.UNPL, 1)
	result.LNPL = Round(result.LNPL, 1)
	return result
}

// DeviationStability charts the deviations of records in order time.
// Records without a deviation are ignored.
func DeviationStability(records []orders.Record) XmRResult {
	sorted := make([]orders.Record, 0, len(records))
	for _, r := range records {
		if !math.IsNaN(r.Deviation()) {
			sorted = append(sorted, r)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].OrderedAt.Before(sorted[j].OrderedAt) })

	values := make([]float64, len(sorted))
	keys := make([]string, len(sorted))
	for i, r := range sorted {
		values[i] = r.Deviation()
		keys[i] = r.OrderID
	}
	return CalculateXmRWithKeys(values, keys)
}

func detectSignals(values []float64, avg, unpl, lnpl float64, keys []string) []Signal {
	var signals []Signal

	key := func(i int) string {
		if i < len(keys) {
			return keys[i]
		}
		return ""
	}

	for i, v := range values {
		if v > unpl {
			signals = append(signals, Signal{
				Index:       i,
				OrderID:     key(i),
				Type:        "outlier",
				Description: "Delivery later than the upper natural process limit",
			})
		} else if v < lnpl {
			signals = append(signals, Signal{
				Index:       i,
				OrderID:     key(i),
				Type:        "outlier",
				Description: "Delivery earlier than the lower natural process limit",
			})
		}
	}

	if len(values) < shiftRun {
		return signals
	}

	side, count := 0, 0
	for i, v := range values {
		current := 0
		if v > avg {
			current = 1
		} else if v < avg {
			current = -1
		}

		if current == side && current != 0 {
			count++
		} else {
			side = current
			count = 1
		}

		if count == shiftRun {
			signals = append(signals, Signal{
				Index:       i,
				OrderID:     key(i),
				Type:        "shift",
				Description: "8 consecutive deliveries on one side of the average",
			})
		}
	}
	return signals
}
