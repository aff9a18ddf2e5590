package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dsa-mcp/internal/model"
	"dsa-mcp/internal/orders"
	"dsa-mcp/internal/recommend"
	"dsa-mcp/internal/schedule"

	"github.com/rs/zerolog/log"
)

const dayLayout = "2006-01-02"

// Response wraps tool output with warnings the agent should relay to the user.
type Response struct {
	Data     any      `json:"data"`
	Warnings []string `json:"warnings,omitempty"`
}

// WrapResponse builds a tool response, dropping empty warnings.
func WrapResponse(data any, warnings ...string) Response {
	res := Response{Data: data}
	for _, w := range warnings {
		if w != "" {
			res.Warnings = append(res.Warnings, w)
		}
	}
	return res
}

// parseDay parses a YYYY-MM-DD day in the local zone; empty input returns fallback.
func parseDay(s string, fallback time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return fallback, nil
	}
	t, err := time.ParseInLocation(dayLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

// ordersInRange returns cached orders placed within the inclusive day range.
// Without bounds every cached order is returned, including untimed ones.
func (s *Server) ordersInRange(from, to string) ([]orders.Record, error) {
	records := s.snapshots.Records(OrdersSnapshot)
	if len(records) == 0 {
		return nil, fmt.Errorf("no cached orders, run refresh_orders first")
	}
	if from == "" && to == "" {
		return records, nil
	}

	start, err := parseDay(from, time.Time{})
	if err != nil {
		return nil, err
	}
	end, err := parseDay(to, time.Time{})
	if err != nil {
		return nil, err
	}
	if !end.IsZero() {
		end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
	}

	subset := orders.FilterRange(records, start, end)
	if len(subset) == 0 {
		return nil, fmt.Errorf("no cached orders between %s and %s", from, to)
	}
	return subset, nil
}

// scheduleIndex loads every schedule window. Without a store (or on error) it
// returns a nil index, which makes recommendations fall back to hour buckets.
func (s *Server) scheduleIndex(ctx context.Context) (*schedule.Index, string) {
	if s.schedules == nil {
		return nil, "No schedule store configured; orders were grouped by order hour."
	}
	windows, err := s.schedules.Windows(ctx, "")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load schedule windows")
		return nil, "Schedule could not be loaded; orders were grouped by order hour."
	}
	if len(windows) == 0 {
		return nil, "The schedule is empty; orders were grouped by order hour. Use import_schedule to load it."
	}
	ix := schedule.NewIndex(windows)
	if ix.Len() == 0 {
		return nil, "No stored schedule window is valid; orders were grouped by order hour."
	}
	if dropped := len(windows) - ix.Len(); dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("Ignoring invalid schedule windows")
	}
	return ix, ""
}

func (s *Server) recommendConfig() recommend.Config {
	rc := s.cfg.Recommend()
	rc.Now = s.now
	return rc
}

// predictorLocked returns the fitted predictor, training it on the cached
// orders on first use. Callers hold s.mu.
func (s *Server) predictorLocked() (*model.Predictor, error) {
	if s.predictor != nil && s.predictor.Fitted() {
		return s.predictor, nil
	}

	records := s.snapshots.Records(OrdersSnapshot)
	cfg := model.DefaultConfig()
	if s.cfg.MinSamplesModel > 0 {
		cfg.MinSamples = s.cfg.MinSamplesModel
	}

	p := model.NewPredictor(cfg)
	if _, err := p.Fit(records); err != nil {
		return nil, fmt.Errorf("failed to train delivery models: %w", err)
	}
	s.predictor = p
	return p, nil
}

// invalidateLocked drops state derived from the order cache. Callers hold s.mu.
func (s *Server) invalidateLocked() {
	s.predictor = nil
	s.lastReport = nil
}

func validWeekday(d int) error {
	if d < 1 || d > 7 {
		return fmt.Errorf("weekday %d out of range, use 1 (Monday) to 7 (Sunday)", d)
	}
	return nil
}
