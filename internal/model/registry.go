package model

import (
	"sort"
	"time"

	"dsa-mcp/internal/features"
	"dsa-mcp/internal/orders"
)

// Entry is a trained model for one entity.
type Entry struct {
	Model     *Ensemble
	Scaler    *Scaler
	Samples   int
	TrainedAt time.Time
}

// FeatureImportance pairs a feature name with its share of the model's splits.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// Importances returns feature importances, most important first.
func (e *Entry) Importances() []FeatureImportance {
	out := make([]FeatureImportance, 0, len(features.FeatureNames))
	for i, name := range features.FeatureNames {
		imp := 0.0
		if i < len(e.Model.Importances) {
			imp = e.Model.Importances[i]
		}
		out = append(out, FeatureImportance{Feature: name, Importance: imp})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Importance > out[j].Importance
	})
	return out
}

// Predict scales the raw feature vector and runs the model.
func (e *Entry) Predict(x []float64) float64 {
	return e.Model.Predict(e.Scaler.Transform(sanitize(x)))
}

// Registry holds trained models keyed by entity.
type Registry struct {
	entries map[orders.EntityKey]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[orders.EntityKey]*Entry)}
}

func (r *Registry) Put(key orders.EntityKey, e *Entry) {
	r.entries[key] = e
}

func (r *Registry) Get(key orders.EntityKey) (*Entry, bool) {
	e, ok := r.entries[key]
	return e, ok
}

func (r *Registry) Len() int {
	return len(r.entries)
}

// Keys returns the registered entities in a stable order.
func (r *Registry) Keys() []orders.EntityKey {
	keys := make([]orders.EntityKey, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Supplier != b.Supplier {
			return a.Supplier < b.Supplier
		}
		if a.Warehouse != b.Warehouse {
			return a.Warehouse < b.Warehouse
		}
		return a.PickupPoint < b.PickupPoint
	})
	return keys
}

// Resolve returns the model for key, falling back to the model of the same
// supplier and warehouse with the most training samples (ties by pickup point).
func (r *Registry) Resolve(key orders.EntityKey) (orders.EntityKey, *Entry, bool) {
	if e, ok := r.entries[key]; ok {
		return key, e, true
	}

	var bestKey orders.EntityKey
	var best *Entry
	for _, k := range r.Keys() {
		if k.Supplier != key.Supplier || k.Warehouse != key.Warehouse {
			continue
		}
		e := r.entries[k]
		if best == nil || e.Samples > best.Samples {
			bestKey, best = k, e
		}
	}
	return bestKey, best, best != nil
}
