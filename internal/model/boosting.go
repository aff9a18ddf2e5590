package model

import (
	"math/rand"
)

// BoostingParams configures the gradient-boosted ensemble.
type BoostingParams struct {
	Trees           int
	MaxDepth        int
	LearningRate    float64
	MinSamplesSplit int
	Seed            int64
}

// DefaultBoostingParams returns 100 depth-5 trees at learning rate 0.1 with seed 42.
func DefaultBoostingParams() BoostingParams {
	return BoostingParams{
		Trees:           100,
		MaxDepth:        5,
		LearningRate:    0.1,
		MinSamplesSplit: 2,
		Seed:            42,
	}
}

// Ensemble is a gradient-boosted regression model with squared loss.
type Ensemble struct {
	Init         float64
	LearningRate float64
	Trees        []*Tree
	Importances  []float64 // normalized to sum to 1
}

// FitEnsemble trains an ensemble starting from the target mean, each tree
// fitting the residuals of the previous stages.
func FitEnsemble(X [][]float64, y []float64, p BoostingParams) *Ensemble {
	width := 0
	if len(X) > 0 {
		width = len(X[0])
	}
	e := &Ensemble{
		LearningRate: p.LearningRate,
		Importances:  make([]float64, width),
	}
	if len(y) == 0 {
		return e
	}

	var sum float64
	for _, v := range y {
		sum += v
	}
	e.Init = sum / float64(len(y))

	pred := make([]float64, len(y))
	for i := range pred {
		pred[i] = e.Init
	}

	rng := rand.New(rand.NewSource(p.Seed))
	params := treeParams{maxDepth: p.MaxDepth, minSamplesSplit: p.MinSamplesSplit}
	cols := presort(X)
	residual := make([]float64, len(y))
	treeImp := make([]float64, width)

	for t := 0; t < p.Trees; t++ {
		for i := range y {
			residual[i] = y[i] - pred[i]
		}

		clear(treeImp)
		tree := fitSortedTree(X, residual, cols, params, rng, treeImp)
		e.Trees = append(e.Trees, tree)

		var total float64
		for _, v := range treeImp {
			total += v
		}
		if total > 0 {
			for j, v := range treeImp {
				e.Importances[j] += v / total
			}
		}

		for i, row := range X {
			pred[i] += p.LearningRate * tree.Predict(row)
		}
	}

	var total float64
	for _, v := range e.Importances {
		total += v
	}
	if total > 0 {
		for j := range e.Importances {
			e.Importances[j] /= total
		}
	}
	return e
}

// Predict returns the ensemble output for one row.
func (e *Ensemble) Predict(x []float64) float64 {
	out := e.Init
	for _, t := range e.Trees {
		out += e.LearningRate * t.Predict(x)
	}
	return out
}
