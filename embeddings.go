package signmf

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
	"math"
)

const (
	// sampleNewtonIterations caps the Newton steps per sample embedding and
	// outer iteration. Signature embeddings are solved to convergence.
	sampleNewtonIterations = 3

	newtonGradientThreshold = 1e-8
)

// embeddingProblem is the strictly convex sub-problem for one embedding
// vector x, with the other embedding set y_j, the scalings and the variance
// held fixed:
//
//	f(x) = sum_j exp(o_j + x·y_j) - sum_j c_j x·y_j + |x|^2 / (2 sigma^2)
//
// o_j is the sum of the two scalings and c_j the expected count of the pair.
type embeddingProblem struct {
	others   [][]float64
	outer    []*mat.SymDense
	offsets  []float64
	counts   []float64
	variance float64

	// sum_j c_j y_j, the constant part of the gradient
	sGrad []float64
}

func newEmbeddingProblem(others [][]float64, outer []*mat.SymDense, offsets, counts []float64, variance float64) *embeddingProblem {
	sGrad := make([]float64, len(others[0]))
	for j, y := range others {
		floats.AddScaled(sGrad, counts[j], y)
	}
	return &embeddingProblem{
		others:   others,
		outer:    outer,
		offsets:  offsets,
		counts:   counts,
		variance: variance,
		sGrad:    sGrad,
	}
}

// outerProducts returns y y^T for every vector. They do not depend on the
// vector being solved, so one set serves a whole pass.
func outerProducts(vecs [][]float64) []*mat.SymDense {
	outer := make([]*mat.SymDense, len(vecs))
	for j, y := range vecs {
		o := mat.NewSymDense(len(y), nil)
		o.SymOuterK(1, mat.NewVecDense(len(y), y))
		outer[j] = o
	}
	return outer
}

func (p *embeddingProblem) rates(x []float64) []float64 {
	r := make([]float64, len(p.others))
	for j, y := range p.others {
		r[j] = math.Exp(p.offsets[j] + floats.Dot(x, y))
	}
	return r
}

// Func evaluates f.
func (p *embeddingProblem) Func(x []float64) float64 {
	var f float64
	for j, y := range p.others {
		dot := floats.Dot(x, y)
		f += math.Exp(p.offsets[j]+dot) - p.counts[j]*dot
	}
	return f + floats.Dot(x, x)/(2*p.variance)
}

// Grad stores sum_j exp(o_j + x·y_j) y_j - sum_j c_j y_j + x / sigma^2 in grad.
func (p *embeddingProblem) Grad(grad, x []float64) {
	copy(grad, x)
	floats.Scale(1/p.variance, grad)
	floats.Sub(grad, p.sGrad)
	for j, r := range p.rates(x) {
		floats.AddScaled(grad, r, p.others[j])
	}
}

// Hess stores sum_j exp(o_j + x·y_j) y_j y_j^T + I / sigma^2 in hess.
func (p *embeddingProblem) Hess(hess *mat.SymDense, x []float64) {
	r := p.rates(x)
	dim := len(x)
	for a := 0; a < dim; a++ {
		for b := a; b < dim; b++ {
			var s float64
			for j, o := range p.outer {
				s += r[j] * o.At(a, b)
			}
			if a == b {
				s += 1 / p.variance
			}
			hess.SetSym(a, b, s)
		}
	}
}

// solve runs Newton's method from x0 for at most maxIterations major
// iterations, zero meaning no cap. The best iterate is returned even when
// the solver fails; the error is only informative. Coordinates are pushed
// out of (-epsilon, epsilon).
func (p *embeddingProblem) solve(x0 []float64, maxIterations int) ([]float64, error) {
	problem := optimize.Problem{Func: p.Func, Grad: p.Grad, Hess: p.Hess}
	settings := &optimize.Settings{
		GradientThreshold: newtonGradientThreshold,
		MajorIterations:   maxIterations,
	}
	res, err := optimize.Minimize(problem, x0, settings, &optimize.Newton{})
	if err != nil && res != nil && res.Status == optimize.IterationLimit {
		err = nil
	}

	x := append([]float64(nil), x0...)
	if res != nil && len(res.X) == len(x) && isFinite(res.F) && res.F <= p.Func(x0) {
		copy(x, res.X)
	}
	clipAwayFromZero(x)
	return x, err
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// updateSignatureEmbeddings solves every signature embedding sub-problem
// against the current sample embeddings. aux holds the expected counts.
func (m *CorrNMF) updateSignatureEmbeddings(aux *mat.Dense) {
	p := &m.params
	others := columnVectors(p.SampleEmbeddings)
	outer := outerProducts(others)
	m.solveEach("signature", len(p.SignatureScalings), p.SignatureEmbeddings, func(k int) ([]float64, error) {
		offsets := make([]float64, len(others))
		for d := range offsets {
			offsets[d] = p.SignatureScalings[k] + p.SampleScalings[d]
		}
		prob := newEmbeddingProblem(others, outer, offsets, aux.RawRowView(k), p.Variance)
		return prob.solve(mat.Col(nil, k, p.SignatureEmbeddings), 0)
	})
}

// updateSampleEmbeddings solves every sample embedding sub-problem against
// the current signature embeddings with a few warm-started Newton steps.
func (m *CorrNMF) updateSampleEmbeddings(aux *mat.Dense) {
	p := &m.params
	others := columnVectors(p.SignatureEmbeddings)
	outer := outerProducts(others)
	m.solveEach("sample", len(p.SampleScalings), p.SampleEmbeddings, func(d int) ([]float64, error) {
		offsets := make([]float64, len(others))
		for k := range offsets {
			offsets[k] = p.SignatureScalings[k] + p.SampleScalings[d]
		}
		prob := newEmbeddingProblem(others, outer, offsets, mat.Col(nil, d, aux), p.Variance)
		return prob.solve(mat.Col(nil, d, p.SampleEmbeddings), sampleNewtonIterations)
	})
}
