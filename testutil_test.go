package signmf

import (
	"fmt"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
	"testing"
)

// smallCounts is a 4 x 3 count matrix generated from two signatures.
func smallCounts(t *testing.T) *CountMatrix {
	t.Helper()
	counts := mat.NewDense(4, 3, []float64{
		51, 14, 30,
		31, 13, 20,
		13, 31, 20,
		15, 51, 30,
	})
	data, err := NewCountMatrix(counts, []string{"A[C>A]A", "A[C>G]A", "A[C>T]A", "A[T>A]A"}, []string{"s1", "s2", "s3"})
	if err != nil {
		t.Fatalf("NewCountMatrix: %v", err)
	}
	return data
}

// poissonCounts draws a nFeatures x nSamples matrix of Poisson counts from
// nSignatures random signatures with random exposures.
func poissonCounts(t *testing.T, nFeatures, nSamples, nSignatures int, seed uint64) *CountMatrix {
	t.Helper()
	src := rand.NewSource(seed)
	rnd := rand.New(src)

	w := mat.NewDense(nFeatures, nSignatures, nil)
	w.Apply(func(_, _ int, _ float64) float64 { return rnd.Float64() + 0.05 }, w)
	normalizeColumns(w)
	h := mat.NewDense(nSignatures, nSamples, nil)
	h.Apply(func(_, _ int, _ float64) float64 { return 200 * rnd.Float64() }, h)

	var rates mat.Dense
	rates.Mul(w, h)
	counts := mat.NewDense(nFeatures, nSamples, nil)
	counts.Apply(func(i, j int, _ float64) float64 {
		return distuv.Poisson{Lambda: rates.At(i, j) + 1, Src: src}.Rand()
	}, counts)

	types := make([]string, nFeatures)
	for v := range types {
		types[v] = fmt.Sprintf("type%d", v)
	}
	samples := make([]string, nSamples)
	for d := range samples {
		samples[d] = fmt.Sprintf("sample%d", d)
	}
	data, err := NewCountMatrix(counts, types, samples)
	if err != nil {
		t.Fatalf("NewCountMatrix: %v", err)
	}
	return data
}

func testConfig(nSignatures int) Config {
	cfg := DefaultConfig(nSignatures)
	cfg.MinIterations = 5
	cfg.MaxIterations = 50
	cfg.Tol = 1e-6
	return cfg
}

func randomDense(r, c int, rnd *rand.Rand) *mat.Dense {
	m := mat.NewDense(r, c, nil)
	m.Apply(func(_, _ int, _ float64) float64 { return rnd.NormFloat64() }, m)
	return m
}
