package signmf

import "math"

// convergenceTest decides after each iteration whether a fit stops.
type convergenceTest struct {
	direction     Direction
	tol           float64
	minIterations int
	maxIterations int
}

func newConvergenceTest(cfg *Config, direction Direction) convergenceTest {
	return convergenceTest{
		direction:     direction,
		tol:           cfg.Tol,
		minIterations: cfg.MinIterations,
		maxIterations: cfg.MaxIterations,
	}
}

// improvement is the change from prev to cur relative to |prev|, signed so
// that progress is positive.
func (c convergenceTest) improvement(prev, cur float64) float64 {
	diff := cur - prev
	if c.direction == Minimize {
		diff = -diff
	}
	if prev == 0 {
		return diff
	}
	return diff / math.Abs(prev)
}

// status returns Converged once the relative improvement drops below the
// tolerance after at least minIterations, MaxIterationsReached at
// maxIterations, and Iterating otherwise. When prev is zero the absolute
// improvement is compared against the tolerance instead.
func (c convergenceTest) status(n int, prev, cur float64) Status {
	if c.improvement(prev, cur) < c.tol && n >= c.minIterations {
		return Converged
	}
	if n >= c.maxIterations {
		return MaxIterationsReached
	}
	return Iterating
}
