package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dsa-mcp/internal/crm"
	"dsa-mcp/internal/orders"
	"dsa-mcp/internal/stats"

	"github.com/rs/zerolog/log"
)

func (s *Server) handleRefreshOrders(ctx context.Context, in refreshOrdersInput) (any, error) {
	if s.crm == nil {
		return nil, fmt.Errorf("CRM client is not configured, set CRM_URL")
	}

	from, err := parseDay(in.From, time.Time{})
	if err != nil {
		return nil, err
	}
	if from.IsZero() && !in.Replace {
		// Resume from the day of the newest cached order.
		if latest := s.snapshots.Latest(OrdersSnapshot); !latest.IsZero() {
			from = time.Date(latest.Year(), latest.Month(), latest.Day(), 0, 0, 0, 0, time.Local)
		}
	}
	if from.IsZero() {
		return nil, fmt.Errorf("from is required when the order cache is empty")
	}
	to, err := parseDay(in.To, s.now())
	if err != nil {
		return nil, err
	}
	if to.Before(from) {
		return nil, fmt.Errorf("to (%s) is before from (%s)", to.Format(dayLayout), from.Format(dayLayout))
	}

	fetched, err := s.crm.FetchOrders(ctx, from, to)
	if err != nil {
		if errors.Is(err, crm.ErrUnauthorized) {
			return nil, fmt.Errorf("%w. Log in to the CRM in a browser and update the session cookie", err)
		}
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if in.Replace {
		s.snapshots.Clear(OrdersSnapshot)
	}
	added := s.snapshots.Append(OrdersSnapshot, fetched)
	if err := s.snapshots.Save(s.cfg.CacheDir, OrdersSnapshot); err != nil {
		log.Warn().Err(err).Msg("Failed to persist order cache")
	}
	s.invalidateLocked()

	var warning string
	if len(fetched) == 0 {
		warning = "The CRM returned no orders for this range."
	}
	return WrapResponse(map[string]any{
		"fetched": len(fetched),
		"added":   added,
		"cached":  s.snapshots.Count(OrdersSnapshot),
		"from":    from.Format(dayLayout),
		"to":      to.Format(dayLayout),
	}, warning), nil
}

func (s *Server) handleOrdersSummary(_ context.Context, _ ordersSummaryInput) (any, error) {
	records := s.snapshots.Records(OrdersSnapshot)

	summary := map[string]any{"cached": len(records)}
	if first, last := stats.Span(records); !first.IsZero() {
		summary["first_order"] = first.Format(dayLayout)
		summary["last_order"] = last.Format(dayLayout)
	}
	if mod, err := orders.ModTime(s.cfg.CacheDir, OrdersSnapshot); err == nil {
		summary["cache_written"] = mod.Format(time.RFC3339)
	}

	suppliers := make(map[string]bool)
	for _, r := range records {
		suppliers[r.Supplier] = true
	}
	summary["suppliers"] = len(suppliers)

	var warning string
	if len(records) == 0 {
		warning = "The order cache is empty. Run refresh_orders first."
	}
	return WrapResponse(summary, warning), nil
}
