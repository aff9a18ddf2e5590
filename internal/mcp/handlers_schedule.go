package mcp

import (
	"context"
	"fmt"
	"os"
	"strings"

	"dsa-mcp/internal/crm"
	"dsa-mcp/internal/schedule"
	"dsa-mcp/internal/stats"
)

type windowView struct {
	Warehouse    string                `json:"warehouse"`
	PickupPoint  string                `json:"pickup_point,omitempty"`
	Weekday      int                   `json:"weekday"`
	Day          string                `json:"day"`
	OrderBy      string                `json:"order_by"`
	Duration     int                   `json:"duration"`
	DeliverBy    string                `json:"deliver_by"`
	DeliveryType schedule.DeliveryType `json:"delivery_type,omitempty"`
}

func viewOf(w schedule.Window) windowView {
	return windowView{
		Warehouse:    w.Warehouse,
		PickupPoint:  w.PickupPoint,
		Weekday:      w.Weekday,
		Day:          stats.WeekdayNames[w.Weekday-1],
		OrderBy:      w.OrderByClock(),
		Duration:     w.Duration,
		DeliverBy:    w.DeliverBy(),
		DeliveryType: w.DeliveryType,
	}
}

func (s *Server) requireSchedules() error {
	if s.schedules == nil {
		return fmt.Errorf("schedule store is not available, check SCHEDULE_DB")
	}
	return nil
}

func (s *Server) handleGetSchedule(ctx context.Context, in scheduleInput) (any, error) {
	if err := s.requireSchedules(); err != nil {
		return nil, err
	}
	var weekdays []int
	if in.Weekday != 0 {
		if err := validWeekday(in.Weekday); err != nil {
			return nil, err
		}
		weekdays = append(weekdays, in.Weekday)
	}

	windows, err := s.schedules.Windows(ctx, in.Warehouse, weekdays...)
	if err != nil {
		return nil, err
	}
	views := make([]windowView, len(windows))
	for i, w := range windows {
		views[i] = viewOf(w)
	}

	var warning string
	if len(views) == 0 {
		warning = "No schedule windows match. Recommendations for these warehouses use hourly grouping."
	}
	return WrapResponse(views, warning), nil
}

func (s *Server) handleSetScheduleWindow(ctx context.Context, in setWindowInput) (any, error) {
	if err := s.requireSchedules(); err != nil {
		return nil, err
	}
	orderBy, err := schedule.ParseClock(in.OrderBy)
	if err != nil {
		return nil, err
	}

	deliveryType := schedule.DeliveryType(strings.ToLower(strings.TrimSpace(in.DeliveryType)))
	if deliveryType == "" {
		deliveryType = schedule.DeliverySelf
	}

	w := schedule.Window{
		Warehouse:    strings.TrimSpace(in.Warehouse),
		PickupPoint:  strings.TrimSpace(in.PickupPoint),
		Weekday:      in.Weekday,
		OrderBy:      orderBy,
		Duration:     in.Duration,
		DeliveryType: deliveryType,
	}
	changed, err := s.schedules.Upsert(ctx, w)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastReport = nil
	s.mu.Unlock()

	return WrapResponse(map[string]any{
		"window":  viewOf(w),
		"changed": changed,
	}), nil
}

func (s *Server) handleScheduleHistory(ctx context.Context, in historyInput) (any, error) {
	if err := s.requireSchedules(); err != nil {
		return nil, err
	}
	history, err := s.schedules.History(ctx, in.Warehouse, in.PickupPoint)
	if err != nil {
		return nil, err
	}
	return WrapResponse(history), nil
}

func (s *Server) handleImportSchedule(ctx context.Context, in importScheduleInput) (any, error) {
	if err := s.requireSchedules(); err != nil {
		return nil, err
	}
	file, err := os.Open(in.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schedule export: %w", err)
	}
	defer file.Close()

	parsed, changed, err := s.schedules.ImportCRM(ctx, file)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.lastReport = nil
	s.mu.Unlock()

	return WrapResponse(map[string]any{
		"parsed":  parsed,
		"changed": changed,
	}), nil
}

func (s *Server) handleOrderURL(_ context.Context, in orderURLInput) (any, error) {
	if s.cfg.CRM.BaseURL == "" {
		return nil, fmt.Errorf("CRM_URL is not configured")
	}
	if strings.TrimSpace(in.OrderID) == "" {
		return nil, fmt.Errorf("order_id is required")
	}
	return WrapResponse(map[string]string{"url": crm.OrderURL(s.cfg.CRM.BaseURL, in.OrderID)}), nil
}
