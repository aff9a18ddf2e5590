package mcp

import (
	"context"
	"fmt"
	"path/filepath"

	"dsa-mcp/internal/export"
	"dsa-mcp/internal/recommend"
)

const defaultRecommendationLimit = 50

type recommendationsResponse struct {
	Total           int                          `json:"total"`
	Returned        int                          `json:"returned"`
	Recommendations []recommend.Recommendation   `json:"recommendations"`
	Groups          map[recommend.Mode]int       `json:"groups"`
	Skipped         map[recommend.SkipReason]int `json:"skipped"`
}

func (s *Server) handleGenerateRecommendations(ctx context.Context, in recommendInput) (any, error) {
	records, err := s.ordersInRange(in.From, in.To)
	if err != nil {
		return nil, err
	}

	ix, warning := s.scheduleIndex(ctx)
	report := recommend.NewGenerator(s.recommendConfig()).GenerateFromRecords(records, ix)

	s.mu.Lock()
	s.lastReport = &report
	s.mu.Unlock()

	recs := recommend.Filter(report.Recommendations, in.Supplier, in.Warehouse, in.MinConfidence)
	total := len(recs)

	limit := in.Limit
	if limit <= 0 {
		limit = defaultRecommendationLimit
	}
	if len(recs) > limit {
		recs = recs[:limit]
	}

	var emptyWarning string
	if total == 0 {
		emptyWarning = "No window moved enough to recommend a change. Do not invent corrections."
	}

	return WrapResponse(recommendationsResponse{
		Total:           total,
		Returned:        len(recs),
		Recommendations: recs,
		Groups:          report.Groups,
		Skipped:         report.SkippedBy(),
	}, warning, emptyWarning), nil
}

func (s *Server) handleExportRecommendations(ctx context.Context, in exportInput) (any, error) {
	s.mu.Lock()
	report := s.lastReport
	s.mu.Unlock()

	if report == nil {
		records, err := s.ordersInRange("", "")
		if err != nil {
			return nil, err
		}
		ix, _ := s.scheduleIndex(ctx)
		fresh := recommend.NewGenerator(s.recommendConfig()).GenerateFromRecords(records, ix)
		report = &fresh
	}

	path := in.Path
	if path == "" {
		name := fmt.Sprintf("recommendations_%s.xlsx", s.now().Format("2006-01-02_150405"))
		path = filepath.Join(s.cfg.ExportDir, name)
	}

	if err := export.SaveRecommendations(path, report.Recommendations); err != nil {
		return nil, err
	}
	return WrapResponse(map[string]any{
		"path":            path,
		"recommendations": len(report.Recommendations),
	}), nil
}
