package model

import (
	"cmp"
	"math/rand"
	"slices"
)

const leafNode = -1

type treeNode struct {
	Feature   int // leafNode for leaves
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Tree is a regression tree fitted by recursive binary splitting on squared error.
type Tree struct {
	nodes []treeNode
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
}

type treeBuilder struct {
	X           [][]float64
	y           []float64
	params      treeParams
	rng         *rand.Rand
	importances []float64
	tree        *Tree
	goesLeft    []bool
}

// presort returns, per feature, the row indices ordered by that feature's
// value with ties kept in row order.
func presort(X [][]float64) [][]int {
	if len(X) == 0 {
		return nil
	}
	cols := make([][]int, len(X[0]))
	for f := range cols {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = i
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			return cmp.Compare(X[a][f], X[b][f])
		})
		cols[f] = idx
	}
	return cols
}

// fitTree grows a tree on the given rows; importances accumulates the
// weighted impurity decrease per feature.
func fitTree(X [][]float64, y []float64, params treeParams, rng *rand.Rand, importances []float64) *Tree {
	return fitSortedTree(X, y, presort(X), params, rng, importances)
}

// fitSortedTree grows a tree from columns already ordered by presort.
// cols is not modified, so one presort serves every tree of an ensemble.
func fitSortedTree(X [][]float64, y []float64, cols [][]int, params treeParams, rng *rand.Rand, importances []float64) *Tree {
	b := &treeBuilder{
		X:           X,
		y:           y,
		params:      params,
		rng:         rng,
		importances: importances,
		tree:        &Tree{},
		goesLeft:    make([]bool, len(y)),
	}
	if len(cols) == 0 {
		idx := make([]int, len(y))
		for i := range idx {
			idx[i] = i
		}
		mean, _ := meanSSE(y, idx)
		b.tree.nodes = append(b.tree.nodes, treeNode{Feature: leafNode, Value: mean})
		return b.tree
	}
	b.grow(cols, 0)
	return b.tree
}

// grow adds the node holding the rows of cols, where cols[f] lists those
// rows ordered by feature f.
func (b *treeBuilder) grow(cols [][]int, depth int) int {
	idx := cols[0]
	mean, sse := meanSSE(b.y, idx)
	id := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, treeNode{Feature: leafNode, Value: mean})

	if depth >= b.params.maxDepth || len(idx) < b.params.minSamplesSplit || sse <= 1e-12 {
		return id
	}

	feature, threshold, gain, ok := b.bestSplit(cols, sse)
	if !ok {
		return id
	}

	nLeft := 0
	for _, i := range idx {
		b.goesLeft[i] = b.X[i][feature] <= threshold
		if b.goesLeft[i] {
			nLeft++
		}
	}

	left := make([][]int, len(cols))
	right := make([][]int, len(cols))
	for f, col := range cols {
		l := make([]int, 0, nLeft)
		r := make([]int, 0, len(col)-nLeft)
		for _, i := range col {
			if b.goesLeft[i] {
				l = append(l, i)
			} else {
				r = append(r, i)
			}
		}
		left[f], right[f] = l, r
	}

	b.importances[feature] += gain
	lid := b.grow(left, depth+1)
	rid := b.grow(right, depth+1)

	b.tree.nodes[id] = treeNode{Feature: feature, Threshold: threshold, Left: lid, Right: rid, Value: mean}
	return id
}

// bestSplit scans features in a random order and keeps the first split with
// the largest reduction of the sum of squared errors.
func (b *treeBuilder) bestSplit(cols [][]int, parentSSE float64) (int, float64, float64, bool) {
	order := b.rng.Perm(len(cols))

	var totalSum, totalSq float64
	for _, i := range cols[0] {
		totalSum += b.y[i]
		totalSq += b.y[i] * b.y[i]
	}
	n := float64(len(cols[0]))

	bestFeature, bestThreshold, bestGain := -1, 0.0, 0.0
	for _, f := range order {
		sorted := cols[f]

		var leftSum, leftSq float64
		for k := 0; k < len(sorted)-1; k++ {
			v := b.y[sorted[k]]
			leftSum += v
			leftSq += v * v

			cur, next := b.X[sorted[k]][f], b.X[sorted[k+1]][f]
			if next <= cur {
				continue
			}

			nl := float64(k + 1)
			nr := n - nl
			rightSum := totalSum - leftSum
			rightSq := totalSq - leftSq
			sse := (leftSq - leftSum*leftSum/nl) + (rightSq - rightSum*rightSum/nr)
			gain := parentSSE - sse

			if gain > bestGain+1e-12 {
				bestFeature = f
				bestThreshold = cur + (next-cur)/2
				bestGain = gain
			}
		}
	}

	return bestFeature, bestThreshold, bestGain, bestFeature >= 0
}

// Predict walks the tree for a single row.
func (t *Tree) Predict(x []float64) float64 {
	if len(t.nodes) == 0 {
		return 0
	}
	n := t.nodes[0]
	for n.Feature != leafNode {
		if x[n.Feature] <= n.Threshold {
			n = t.nodes[n.Left]
		} else {
			n = t.nodes[n.Right]
		}
	}
	return n.Value
}

// Depth returns the maximum depth of the tree.
func (t *Tree) Depth() int {
	if len(t.nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.nodes[i]
		if n.Feature == leafNode {
			return 0
		}
		return 1 + max(walk(n.Left), walk(n.Right))
	}
	return walk(0)
}

func meanSSE(y []float64, idx []int) (float64, float64) {
	if len(idx) == 0 {
		return 0, 0
	}
	var sum, sq float64
	for _, i := range idx {
		sum += y[i]
		sq += y[i] * y[i]
	}
	n := float64(len(idx))
	mean := sum / n
	sse := sq - sum*sum/n
	if sse < 0 {
		sse = 0
	}
	return mean, sse
}
