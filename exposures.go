package signmf

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"math"
)

// computeExposures returns the K x D matrix
//
//	E[k,d] = exp(signatureScalings[k] + sampleScalings[d] + L[:,k]·U[:,d]).
func computeExposures(signatureScalings, sampleScalings []float64, l, u *mat.Dense) *mat.Dense {
	sigEmb := columnVectors(l)
	sampleEmb := columnVectors(u)
	e := mat.NewDense(len(sigEmb), len(sampleEmb), nil)
	for k, lk := range sigEmb {
		row := e.RawRowView(k)
		for d, ud := range sampleEmb {
			row[d] = math.Exp(signatureScalings[k] + sampleScalings[d] + floats.Dot(lk, ud))
		}
	}
	return e
}

// samplewiseKLDivergence returns, for every column d, the generalized
// Kullback-Leibler divergence between x[:,d] and (w*h)[:,d].
func samplewiseKLDivergence(x, w, h *mat.Dense) []float64 {
	var r mat.Dense
	r.Mul(w, h)
	nFeatures, nSamples := x.Dims()
	errs := make([]float64, nSamples)
	for v := 0; v < nFeatures; v++ {
		for d := 0; d < nSamples; d++ {
			obs, rec := x.At(v, d), math.Max(r.At(v, d), epsilon)
			errs[d] += xlogy(obs, obs/rec) - obs + rec
		}
	}
	return errs
}

// klDivergence is the generalized Kullback-Leibler divergence between x and w*h.
func klDivergence(x, w, h *mat.Dense) float64 {
	return floats.Sum(samplewiseKLDivergence(x, w, h))
}

// poissonLoglikelihood is the log-likelihood of x under independent Poisson
// counts with means w*h.
func poissonLoglikelihood(x, w, h *mat.Dense) float64 {
	var r mat.Dense
	r.Mul(w, h)
	nFeatures, nSamples := x.Dims()
	var llh float64
	for v := 0; v < nFeatures; v++ {
		for d := 0; d < nSamples; d++ {
			obs, rate := x.At(v, d), math.Max(r.At(v, d), epsilon)
			llh += xlogy(obs, rate) - rate - logFactorial(obs)
		}
	}
	return llh
}

func logFactorial(x float64) float64 {
	lg, _ := math.Lgamma(x + 1)
	return lg
}

// reconstruct returns w*h with every entry rounded to the nearest integer.
func reconstruct(w, h *mat.Dense) *mat.Dense {
	var r mat.Dense
	r.Mul(w, h)
	r.Apply(func(_, _ int, v float64) float64 { return math.Round(v) }, &r)
	return &r
}
