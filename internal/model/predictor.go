package model

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"dsa-mcp/internal/features"
	"dsa-mcp/internal/orders"
	"dsa-mcp/internal/stats"

	"github.com/rs/zerolog/log"
)

var (
	// ErrEmptyDataset is returned by Fit when there is nothing to train on.
	ErrEmptyDataset = errors.New("no valid order rows to train on")
	// ErrNotFitted is returned by Predict before a successful Fit.
	ErrNotFitted = errors.New("predictor is not fitted, call Fit first")
)

// Config controls training and prediction.
type Config struct {
	// MinSamples is the minimum number of valid rows an entity needs to get a model.
	MinSamples int
	Boosting   BoostingParams
	Trend      stats.TrendThresholds
	// ConfidenceStdScale is the rolling std (minutes) at which confidence drops to 0.
	ConfidenceStdScale float64
	// MatchTolerance is the |shift| below which the schedule is considered accurate.
	MatchTolerance float64
}

// DefaultConfig returns the standard training configuration.
func DefaultConfig() Config {
	return Config{
		MinSamples:         10,
		Boosting:           DefaultBoostingParams(),
		Trend:              stats.DefaultTrendThresholds(),
		ConfidenceStdScale: 60,
		MatchTolerance:     15,
	}
}

// Predictor owns the model registry and the feature rows it was trained on.
// It is not safe for concurrent use; callers serialize Fit and Predict.
type Predictor struct {
	cfg      Config
	registry *Registry
	rows     []features.Row
	records  []orders.Record
	encoder  *features.PickupEncoder
	fitted   bool
}

func NewPredictor(cfg Config) *Predictor {
	return &Predictor{
		cfg:      cfg,
		registry: NewRegistry(),
	}
}

// FitSummary reports what a Fit trained.
type FitSummary struct {
	Rows         int                `json:"rows"`
	Entities     int                `json:"entities"`
	PickupPoints int                `json:"pickup_points"`
	Trained      []orders.EntityKey `json:"trained"`
	Skipped      []orders.EntityKey `json:"skipped"`
}

// Fit trains one model per entity with enough valid rows, replacing any previous models.
func (p *Predictor) Fit(records []orders.Record) (FitSummary, error) {
	if len(records) == 0 {
		return FitSummary{}, ErrEmptyDataset
	}

	var valid []orders.Record
	for _, r := range records {
		if r.HasOrderTime() && !math.IsNaN(r.Deviation()) {
			valid = append(valid, r)
		}
	}
	if len(valid) == 0 {
		return FitSummary{}, ErrEmptyDataset
	}

	builder := features.NewBuilder()
	rows := builder.Build(valid)
	builder.Encoder.Freeze()

	groups := make(map[orders.EntityKey][]features.Row)
	for _, row := range rows {
		groups[row.Key] = append(groups[row.Key], row)
	}

	keys := make([]orders.EntityKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })

	registry := NewRegistry()
	summary := FitSummary{Rows: len(rows), Entities: len(groups), PickupPoints: builder.Encoder.Len()}
	now := time.Now()

	for _, key := range keys {
		group := groups[key]
		if len(group) < p.cfg.MinSamples {
			log.Debug().Str("entity", key.String()).Int("rows", len(group)).Msg("Skipping entity with insufficient history")
			summary.Skipped = append(summary.Skipped, key)
			continue
		}

		entry := trainEntity(group, p.cfg.Boosting)
		entry.TrainedAt = now
		registry.Put(key, entry)
		summary.Trained = append(summary.Trained, key)
	}

	p.registry = registry
	p.rows = rows
	p.records = valid
	p.encoder = builder.Encoder
	p.fitted = true

	log.Info().
		Int("rows", summary.Rows).
		Int("entities", summary.Entities).
		Int("models", registry.Len()).
		Msg("Delivery models trained")
	return summary, nil
}

func trainEntity(rows []features.Row, params BoostingParams) *Entry {
	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, row := range rows {
		X[i] = sanitize(row.Vector())
		y[i] = row.Deviation
	}

	scaler := FitScaler(X)
	ensemble := FitEnsemble(scaler.TransformAll(X), y, params)
	return &Entry{Model: ensemble, Scaler: scaler, Samples: len(rows)}
}

// Registry exposes the trained models.
func (p *Predictor) Registry() *Registry {
	return p.registry
}

// Fitted reports whether Fit has succeeded at least once.
func (p *Predictor) Fitted() bool {
	return p.fitted
}

// Query selects what to predict. An empty PickupPoint means any pickup point.
type Query struct {
	Supplier    string `json:"supplier"`
	Warehouse   string `json:"warehouse"`
	PickupPoint string `json:"pickup_point,omitempty"`
	DayOfWeek   int    `json:"day_of_week"`
	Hour        int    `json:"hour"`
}

// Prediction is the expected deviation for a supplier slot.
type Prediction struct {
	Supplier       string      `json:"supplier"`
	Warehouse      string      `json:"warehouse"`
	PickupPoint    string      `json:"pickup_point"`
	Weekday        string      `json:"weekday"`
	Hour           int         `json:"hour"`
	Deviation      float64     `json:"predicted_deviation"`
	Confidence     float64     `json:"confidence"`
	Trend          stats.Trend `json:"trend"`
	ShiftMinutes   int         `json:"shift_minutes"`
	Recommendation string      `json:"recommendation"`
	// ModelKey is the entity whose model produced the prediction.
	ModelKey orders.EntityKey `json:"model_key"`
	Fallback bool             `json:"fallback"`
}

// Predict estimates the deviation for the query from the most recent matching row.
// ok is false when no model or no matching history exists.
func (p *Predictor) Predict(q Query) (Prediction, bool, error) {
	if !p.fitted {
		return Prediction{}, false, ErrNotFitted
	}
	if q.DayOfWeek < 0 || q.DayOfWeek > 6 {
		return Prediction{}, false, nil
	}

	if q.PickupPoint != "" && p.encoder.Lookup(orders.NormalizePickupPoint(q.PickupPoint)) == features.UnknownPickupCode {
		log.Debug().Str("pickup_point", q.PickupPoint).Msg("Pickup point not seen in training data")
		return Prediction{}, false, nil
	}

	wanted := orders.NewEntityKey(q.Supplier, q.Warehouse, q.PickupPoint)
	modelKey, entry, ok := p.registry.Resolve(wanted)
	if !ok {
		return Prediction{}, false, nil
	}

	latest, ok := p.latestRow(q)
	if !ok {
		return Prediction{}, false, nil
	}

	value := entry.Predict(latest.Vector())

	std := latest.RollStd7
	if math.IsNaN(std) {
		std = 30
	}
	confidence := math.Max(0, math.Min(1, 1-std/p.cfg.ConfidenceStdScale))

	pv := latest.Key.PickupPoint
	if q.PickupPoint != "" {
		pv = orders.NormalizePickupPoint(q.PickupPoint)
	}
	trend := stats.DetectTrend(p.records, stats.Slice{
		Supplier:    q.Supplier,
		Warehouse:   q.Warehouse,
		PickupPoint: pv,
		DayOfWeek:   q.DayOfWeek,
		Hour:        q.Hour,
	}, p.cfg.Trend)

	shift := int(math.Round(value))
	weekday := stats.WeekdayNames[q.DayOfWeek]

	var text string
	switch {
	case math.Abs(float64(shift)) < p.cfg.MatchTolerance:
		text = "Schedule matches reality. No correction needed."
	case shift > 0:
		text = fmt.Sprintf("Shift expected arrival by +%d min (%s, orders at %d:00)", shift, weekday, q.Hour)
	default:
		text = fmt.Sprintf("Shift expected arrival by %d min (%s, orders at %d:00)", shift, weekday, q.Hour)
	}

	return Prediction{
		Supplier:       q.Supplier,
		Warehouse:      q.Warehouse,
		PickupPoint:    pv,
		Weekday:        weekday,
		Hour:           q.Hour,
		Deviation:      value,
		Confidence:     confidence,
		Trend:          trend.Trend,
		ShiftMinutes:   shift,
		Recommendation: text,
		ModelKey:       modelKey,
		Fallback:       modelKey != wanted,
	}, true, nil
}

func (p *Predictor) latestRow(q Query) (features.Row, bool) {
	pv := ""
	if q.PickupPoint != "" {
		pv = orders.NormalizePickupPoint(q.PickupPoint)
	}

	for i := len(p.rows) - 1; i >= 0; i-- {
		row := p.rows[i]
		if !row.HasTime || row.Key.Supplier != q.Supplier || row.Key.Warehouse != q.Warehouse {
			continue
		}
		if row.DayOfWeek != q.DayOfWeek || row.Hour != q.Hour {
			continue
		}
		if pv != "" && row.Key.PickupPoint != pv {
			continue
		}
		return row, true
	}
	return features.Row{}, false
}
