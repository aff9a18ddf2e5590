package mcp

import (
	"context"
	"fmt"
	"math"
	"sort"

	"dsa-mcp/internal/model"
	"dsa-mcp/internal/orders"
	"dsa-mcp/internal/stats"
	"dsa-mcp/internal/visuals"
)

const defaultChangepointThreshold = 2.0

func (s *Server) handlePredictDelivery(_ context.Context, in predictInput) (any, error) {
	if err := validWeekday(in.Weekday); err != nil {
		return nil, err
	}
	if in.Hour < 0 || in.Hour > 23 {
		return nil, fmt.Errorf("hour %d out of range 0-23", in.Hour)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.predictorLocked()
	if err != nil {
		return nil, err
	}

	pred, ok, err := p.Predict(model.Query{
		Supplier:    in.Supplier,
		Warehouse:   in.Warehouse,
		PickupPoint: in.PickupPoint,
		DayOfWeek:   in.Weekday - 1,
		Hour:        in.Hour,
	})
	if err != nil {
		return nil, err
	}
	if !ok {
		return WrapResponse(map[string]any{"found": false},
			fmt.Sprintf("No model or order history for %s at %s on that slot. Do not estimate a deviation yourself.", in.Supplier, in.Warehouse)), nil
	}

	var warning string
	if pred.Fallback {
		warning = fmt.Sprintf("No model for this pickup point; used the model of %s.", pred.ModelKey.PickupPoint)
	}
	return WrapResponse(pred, warning), nil
}

func (s *Server) handleFeatureImportance(_ context.Context, in supplierInput) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.predictorLocked()
	if err != nil {
		return nil, err
	}

	key, entry, ok := p.Registry().Resolve(orders.NewEntityKey(in.Supplier, in.Warehouse, in.PickupPoint))
	if !ok {
		return nil, fmt.Errorf("no trained model for %s at %s", in.Supplier, in.Warehouse)
	}
	return WrapResponse(map[string]any{
		"model_key":   key,
		"samples":     entry.Samples,
		"trained_at":  entry.TrainedAt,
		"importances": entry.Importances(),
	}), nil
}

func (s *Server) handleAnalyzeSupplier(_ context.Context, in supplierInput) (any, error) {
	records, err := s.ordersInRange("", "")
	if err != nil {
		return nil, err
	}
	analysis, ok := stats.AnalyzeSupplier(records, in.Supplier, in.Warehouse, in.PickupPoint, s.recommendConfig().Trend)
	if !ok {
		return nil, fmt.Errorf("no usable orders for %s at %s", in.Supplier, in.Warehouse)
	}
	return WrapResponse(map[string]any{
		"analysis": analysis,
		"chart":    visuals.GenerateWeekdayChart(analysis),
	}), nil
}

func (s *Server) handlePickupPointStats(_ context.Context, in supplierInput) (any, error) {
	records, err := s.ordersInRange("", "")
	if err != nil {
		return nil, err
	}
	points := stats.PickupPointStats(records, in.Supplier, in.Warehouse)
	if len(points) == 0 {
		return nil, fmt.Errorf("no pickup point of %s at %s has at least 3 orders", in.Supplier, in.Warehouse)
	}
	best, worst := stats.BestWorstPickupPoint(points)
	return WrapResponse(map[string]any{
		"pickup_points": points,
		"best":          best,
		"worst":         worst,
	}), nil
}

type changepoint struct {
	Index     int     `json:"index"`
	OrderID   string  `json:"order_id"`
	Date      string  `json:"date"`
	Deviation float64 `json:"deviation"`
}

func (s *Server) handleDetectTrend(_ context.Context, in trendInput) (any, error) {
	if err := validWeekday(in.Weekday); err != nil {
		return nil, err
	}
	records, err := s.ordersInRange("", "")
	if err != nil {
		return nil, err
	}

	slice := stats.Slice{
		Supplier:    in.Supplier,
		Warehouse:   in.Warehouse,
		PickupPoint: in.PickupPoint,
		DayOfWeek:   in.Weekday - 1,
		Hour:        stats.AllHours,
	}
	if in.Hour != nil {
		slice.Hour = *in.Hour
	}

	var subset []orders.Record
	for _, r := range records {
		if slice.Matches(r) && !math.IsNaN(r.Deviation()) {
			subset = append(subset, r)
		}
	}
	sort.SliceStable(subset, func(i, j int) bool { return subset[i].OrderedAt.Before(subset[j].OrderedAt) })

	values := make([]float64, len(subset))
	for i, r := range subset {
		values[i] = r.Deviation()
	}

	threshold := in.Threshold
	if threshold <= 0 {
		threshold = defaultChangepointThreshold
	}

	result := stats.DetectTrend(records, slice, s.recommendConfig().Trend)
	stability := stats.DeviationStability(subset)
	direction, slope := stats.TrendDirection(values)

	points := []changepoint{}
	for _, i := range stats.DetectChangepoints(values, threshold) {
		points = append(points, changepoint{
			Index:     i,
			OrderID:   subset[i].OrderID,
			Date:      subset[i].OrderedAt.Format(dayLayout),
			Deviation: stats.Round(values[i], 1),
		})
	}

	var warning string
	if len(values) < 10 {
		warning = fmt.Sprintf("Only %d orders in this slice; changepoints need at least 10.", len(values))
	}
	return WrapResponse(map[string]any{
		"trend":        result,
		"label":        result.Trend.Label(),
		"direction":    direction,
		"slope":        stats.Round(slope, 2),
		"changepoints": points,
		"stability":    stability,
		"chart":        visuals.GenerateXmRChart(stability),
	}, warning), nil
}
