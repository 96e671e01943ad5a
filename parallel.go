package signmf

import (
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
	"sync/atomic"
)

// solveEach runs solve for every column index of dst on at most
// Config.Workers goroutines and stores each solution in its column.
// The sub-problems only read shared state and write disjoint columns.
// Solver errors are counted and logged, never returned.
func (m *CorrNMF) solveEach(name string, n int, dst *mat.Dense, solve func(i int) ([]float64, error)) {
	var failures atomic.Int64
	var g errgroup.Group
	g.SetLimit(m.workers())
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			x, err := solve(i)
			if err != nil {
				failures.Add(1)
			}
			dst.SetCol(i, x)
			return nil
		})
	}
	_ = g.Wait()

	if f := failures.Load(); f > 0 {
		m.logger().Debug("embedding solver stopped early, keeping best iterate",
			"embeddings", name, "failures", f, "total", n)
	}
}
