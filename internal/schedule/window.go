package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// DeliveryType describes who brings the goods to the pickup point.
type DeliveryType string

const (
	DeliverySelf    DeliveryType = "self"
	DeliveryCourier DeliveryType = "courier"
)

const minutesPerDay = 24 * 60

// Window is one declared "order by HH:MM" cutoff of a warehouse schedule.
type Window struct {
	Warehouse   string `json:"warehouse"`
	PickupPoint string `json:"pickup_point"` // empty means warehouse-wide
	// Weekday is 1 (Monday) through 7 (Sunday).
	Weekday int `json:"weekday"`
	// OrderBy is the cutoff in minutes since midnight.
	OrderBy      int          `json:"order_by"`
	Duration     int          `json:"duration"` // minutes from cutoff to delivery
	DeliveryType DeliveryType `json:"delivery_type,omitempty"` // empty counts as self
}

// OrderByClock returns the cutoff formatted as HH:MM.
func (w Window) OrderByClock() string {
	return FormatClock(w.OrderBy)
}

// DeliverBy returns the expected delivery time of day as HH:MM.
func (w Window) DeliverBy() string {
	return FormatClock(w.OrderBy + w.Duration)
}

// Validate checks the window fields.
func (w Window) Validate() error {
	if strings.TrimSpace(w.Warehouse) == "" {
		return fmt.Errorf("window has no warehouse")
	}
	if w.Weekday < 1 || w.Weekday > 7 {
		return fmt.Errorf("weekday %d out of range 1-7", w.Weekday)
	}
	if w.OrderBy < 0 || w.OrderBy >= minutesPerDay {
		return fmt.Errorf("order-by %d out of range", w.OrderBy)
	}
	if w.Duration < 0 {
		return fmt.Errorf("negative delivery duration %d", w.Duration)
	}
	switch w.DeliveryType {
	case "", DeliverySelf, DeliveryCourier:
	default:
		return fmt.Errorf("unknown delivery type %q, expected self or courier", w.DeliveryType)
	}
	return nil
}

// ParseClock parses "HH:MM" (or "HH:MM:SS") into minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q: %w", s, err)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q: %w", s, err)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("time %q out of range", s)
	}
	return h*60 + m, nil
}

// FormatClock formats minutes since midnight as HH:MM, wrapping past midnight.
func FormatClock(minutes int) string {
	minutes %= minutesPerDay
	if minutes < 0 {
		minutes += minutesPerDay
	}
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// NextWeekday returns the schedule weekday after d, wrapping 7 to 1.
func NextWeekday(d int) int {
	return d%7 + 1
}

// PrevWeekday returns the schedule weekday before d, wrapping 1 to 7.
func PrevWeekday(d int) int {
	return (d+5)%7 + 1
}
