package model

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func TestFitScaler(t *testing.T) {
	X := [][]float64{
		{1, 5},
		{3, 5},
	}
	s := FitScaler(X)

	if s.Mean[0] != 2 || s.Scale[0] != 1 {
		t.Errorf("Column 0: expected mean 2 scale 1, got %v %v", s.Mean[0], s.Scale[0])
	}
	if s.Mean[1] != 5 || s.Scale[1] != 1 {
		t.Errorf("Constant column: expected mean 5 scale 1, got %v %v", s.Mean[1], s.Scale[1])
	}

	got := s.Transform([]float64{3, 5})
	if got[0] != 1 || got[1] != 0 {
		t.Errorf("Transform() = %v, want [1 0]", got)
	}
}

func TestSanitize(t *testing.T) {
	got := sanitize([]float64{1, math.NaN(), math.Inf(-1)})
	if got[0] != 1 || got[1] != 0 || got[2] != 0 {
		t.Errorf("sanitize() = %v", got)
	}
}

func TestFitTree_StepFunction(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}, {4}, {5}}
	y := []float64{10, 10, 10, 50, 50, 50}

	imp := make([]float64, 1)
	tree := fitTree(X, y, treeParams{maxDepth: 3, minSamplesSplit: 2}, newTestRand(), imp)

	if got := tree.Predict([]float64{1.2}); got != 10 {
		t.Errorf("Predict(1.2) = %v, want 10", got)
	}
	if got := tree.Predict([]float64{4.8}); got != 50 {
		t.Errorf("Predict(4.8) = %v, want 50", got)
	}
	if tree.Depth() != 1 {
		t.Errorf("Expected a single split for pure children, got depth %d", tree.Depth())
	}
	if imp[0] <= 0 {
		t.Error("Expected positive importance for the split feature")
	}
}

func TestFitTree_RespectsMaxDepth(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 64; i++ {
		X = append(X, []float64{float64(i)})
		y = append(y, float64(i*i))
	}

	tree := fitTree(X, y, treeParams{maxDepth: 5, minSamplesSplit: 2}, newTestRand(), make([]float64, 1))
	if d := tree.Depth(); d > 5 {
		t.Errorf("Expected depth <= 5, got %d", d)
	}
}

func TestFitEnsemble(t *testing.T) {
	var X [][]float64
	var y []float64
	for i := 0; i < 40; i++ {
		x0 := float64(i % 10)
		noise := float64((i * 7) % 3)
		X = append(X, []float64{x0, noise})
		y = append(y, 10*x0)
	}

	e := FitEnsemble(X, y, DefaultBoostingParams())
	if len(e.Trees) != 100 {
		t.Fatalf("Expected 100 trees, got %d", len(e.Trees))
	}
	if e.Init != 45 {
		t.Errorf("Expected initial prediction 45, got %v", e.Init)
	}

	for _, x0 := range []float64{0, 5, 9} {
		got := e.Predict([]float64{x0, 1})
		if math.Abs(got-10*x0) > 1 {
			t.Errorf("Predict(%v) = %v, want ~%v", x0, got, 10*x0)
		}
	}

	if e.Importances[0] <= e.Importances[1] {
		t.Errorf("Expected informative feature to dominate importances, got %v", e.Importances)
	}
	if sum := e.Importances[0] + e.Importances[1]; math.Abs(sum-1) > 1e-9 {
		t.Errorf("Expected importances to sum to 1, got %v", sum)
	}
}

func TestFitEnsemble_Deterministic(t *testing.T) {
	X := [][]float64{{1, 1}, {1, 2}, {2, 1}, {2, 2}, {3, 3}, {3, 1}}
	y := []float64{5, 6, 7, 8, 20, 9}

	a := FitEnsemble(X, y, DefaultBoostingParams())
	b := FitEnsemble(X, y, DefaultBoostingParams())

	for _, x := range X {
		if a.Predict(x) != b.Predict(x) {
			t.Fatalf("Expected identical predictions for %v", x)
		}
	}
}

func TestPresort_StableOrder(t *testing.T) {
	X := [][]float64{{3, 1}, {1, 1}, {2, 0}, {1, 0}}
	cols := presort(X)

	want := [][]int{{1, 3, 2, 0}, {2, 3, 0, 1}}
	for f := range want {
		for k, i := range want[f] {
			if cols[f][k] != i {
				t.Fatalf("presort() column %d = %v, want %v", f, cols[f], want[f])
			}
		}
	}
}

func TestFitSortedTree_KeepsColumns(t *testing.T) {
	X := [][]float64{{0, 5}, {1, 4}, {2, 3}, {3, 2}, {4, 1}, {5, 0}}
	y := []float64{1, 2, 3, 10, 11, 12}
	cols := presort(X)
	before := make([][]int, len(cols))
	for f, c := range cols {
		before[f] = append([]int(nil), c...)
	}

	params := treeParams{maxDepth: 3, minSamplesSplit: 2}
	a := fitSortedTree(X, y, cols, params, newTestRand(), make([]float64, 2))
	b := fitSortedTree(X, y, cols, params, newTestRand(), make([]float64, 2))

	for f := range cols {
		for k := range cols[f] {
			if cols[f][k] != before[f][k] {
				t.Fatalf("Expected column %d untouched, got %v", f, cols[f])
			}
		}
	}
	for _, x := range X {
		if a.Predict(x) != b.Predict(x) {
			t.Errorf("Expected the same tree from shared columns for %v", x)
		}
	}
}

// syntheticHistory returns n rows of 18 features whose target depends on
// the first two columns.
func syntheticHistory(n int) ([][]float64, []float64) {
	rng := rand.New(rand.NewSource(7))
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		row := make([]float64, 18)
		for j := range row {
			row[j] = rng.NormFloat64()
		}
		X[i] = row
		y[i] = 20*row[0] - 10*row[1] + rng.NormFloat64()
	}
	return X, y
}

func TestFitEnsemble_LargeHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping large training run in short mode")
	}
	X, y := syntheticHistory(5000)

	start := time.Now()
	e := FitEnsemble(X, y, DefaultBoostingParams())
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("Expected 5000 rows to train within 10s, took %v", elapsed)
	}
	if len(e.Trees) != 100 {
		t.Errorf("Expected 100 trees, got %d", len(e.Trees))
	}
	if e.Importances[0] < e.Importances[5] {
		t.Errorf("Expected feature 0 to outrank noise, got %v", e.Importances)
	}
}

func BenchmarkFitEnsemble(b *testing.B) {
	X, y := syntheticHistory(5000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		FitEnsemble(X, y, DefaultBoostingParams())
	}
}
