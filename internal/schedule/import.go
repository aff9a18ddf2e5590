package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
)

// ParseCRM decodes the CRM schedule export: a JSON array of objects with
// warehouseName, branchAddress, weekday, timeOrder, deliveryDuration and
// deliveryType. Entries without a warehouse, weekday or valid time are skipped.
func ParseCRM(r io.Reader) ([]Window, error) {
	var raw []map[string]any
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode schedule JSON: %w", err)
	}

	out := make([]Window, 0, len(raw))
	for i, item := range raw {
		w, err := windowFromCRM(item)
		if err != nil {
			log.Debug().Err(err).Int("index", i).Msg("Skipping schedule entry")
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

func windowFromCRM(item map[string]any) (Window, error) {
	warehouse := strings.TrimSpace(cast.ToString(item["warehouseName"]))
	if warehouse == "" {
		return Window{}, fmt.Errorf("missing warehouseName")
	}

	weekday, err := cast.ToIntE(item["weekday"])
	if err != nil || weekday == 0 {
		return Window{}, fmt.Errorf("missing or invalid weekday %v", item["weekday"])
	}

	timeOrder := cast.ToString(item["timeOrder"])
	if timeOrder == "" {
		timeOrder = "00:00"
	}
	orderBy, err := ParseClock(timeOrder)
	if err != nil {
		return Window{}, err
	}

	w := Window{
		Warehouse:    warehouse,
		PickupPoint:  strings.TrimSpace(cast.ToString(item["branchAddress"])),
		Weekday:      weekday,
		OrderBy:      orderBy,
		Duration:     cast.ToInt(item["deliveryDuration"]),
		DeliveryType: parseDeliveryType(cast.ToString(item["deliveryType"])),
	}
	return w, w.Validate()
}

// parseDeliveryType keeps unknown values so that Validate rejects the entry.
func parseDeliveryType(s string) DeliveryType {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "courier":
		return DeliveryCourier
	case "self", "":
		return DeliverySelf
	default:
		return DeliveryType(strings.ToLower(strings.TrimSpace(s)))
	}
}

// ImportCRM parses a CRM schedule export and upserts every window.
// It returns the number of parsed windows and how many of them changed.
func (s *Store) ImportCRM(ctx context.Context, r io.Reader) (int, int, error) {
	windows, err := ParseCRM(r)
	if err != nil {
		return 0, 0, err
	}
	changed, err := s.UpsertAll(ctx, windows)
	if err != nil {
		return len(windows), changed, err
	}
	log.Info().Int("windows", len(windows)).Int("changed", changed).Msg("Schedule imported")
	return len(windows), changed, nil
}
