package signmf

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"math"
)

// embeddingPosteriorVariance is the fixed variance of the Gaussian posterior
// around every embedding coordinate.
const embeddingPosteriorVariance = 1e-4

// auxiliary holds the responsibilities p[v,k,d] of signature k for the
// counts of mutation type v in sample d. For every (v, d) they sum to one
// over k before the epsilon floor is applied.
type auxiliary struct {
	nFeatures, nSignatures, nSamples int
	p                                []float64
}

func (a *auxiliary) index(v, k, d int) int {
	return (v*a.nSignatures+k)*a.nSamples + d
}

func (a *auxiliary) at(v, k, d int) float64 {
	return a.p[a.index(v, k, d)]
}

// updateAuxiliary computes p[v,k,d] proportional to w[v,k]*e[k,d].
func updateAuxiliary(w, e *mat.Dense) *auxiliary {
	nFeatures, nSignatures := w.Dims()
	_, nSamples := e.Dims()
	a := &auxiliary{
		nFeatures:   nFeatures,
		nSignatures: nSignatures,
		nSamples:    nSamples,
		p:           make([]float64, nFeatures*nSignatures*nSamples),
	}
	weights := make([]float64, nSignatures)
	for v := 0; v < nFeatures; v++ {
		for d := 0; d < nSamples; d++ {
			for k := range weights {
				weights[k] = w.At(v, k) * e.At(k, d)
			}
			total := floats.Sum(weights)
			for k, x := range weights {
				q := 1 / float64(nSignatures)
				if total > 0 {
					q = x / total
				}
				a.p[a.index(v, k, d)] = math.Max(q, epsilon)
			}
		}
	}
	return a
}

// expectedCounts returns the K x D matrix of sufficient statistics
// aux[k,d] = sum_v x[v,d]*p[v,k,d].
func (a *auxiliary) expectedCounts(x *mat.Dense) *mat.Dense {
	aux := mat.NewDense(a.nSignatures, a.nSamples, nil)
	for v := 0; v < a.nFeatures; v++ {
		for k := 0; k < a.nSignatures; k++ {
			row := aux.RawRowView(k)
			for d := range row {
				row[d] += x.At(v, d) * a.at(v, k, d)
			}
		}
	}
	return aux
}

// updateSampleScalings maximizes the likelihood in the sample biases with
// everything else fixed:
//
//	alpha[d] = log(sum_v x[v,d]) - log(sum_k exp(alpha0[k] + L[:,k]·U[:,d])).
func updateSampleScalings(x *mat.Dense, signatureScalings []float64, l, u *mat.Dense) []float64 {
	nFeatures, nSamples := x.Dims()
	sigEmb := columnVectors(l)
	alpha := make([]float64, nSamples)
	logits := make([]float64, len(sigEmb))
	col := make([]float64, nFeatures)
	ud := make([]float64, len(sigEmb[0]))
	for d := range alpha {
		mat.Col(col, d, x)
		mat.Col(ud, d, u)
		for k, lk := range sigEmb {
			logits[k] = signatureScalings[k] + floats.Dot(lk, ud)
		}
		alpha[d] = math.Log(math.Max(floats.Sum(col), epsilon)) - floats.LogSumExp(logits)
	}
	return alpha
}

// updateVariance returns the second moment of all embedding coordinates
// under their Gaussian posteriors, which maximizes the prior term in the
// variance.
func updateVariance(l, u *mat.Dense) float64 {
	dim, nSignatures := l.Dims()
	_, nSamples := u.Dims()
	n := float64(dim * (nSignatures + nSamples))
	variance := (sumSquares(l)+sumSquares(u))/n + embeddingPosteriorVariance
	return math.Max(variance, epsilon)
}

// updateSignatures applies the Kullback-Leibler multiplicative update to
// the columns of w from column nGiven on, with the exposures e held fixed,
// and renormalizes them. The first nGiven columns are left untouched.
func updateSignatures(w, x, e *mat.Dense, nGiven int) {
	multiplySignatures(w, x, e, nGiven)
	normalizeColumnsFrom(w, nGiven)
}

// multiplySignatures applies
//
//	w[v,k] <- w[v,k] * sum_d e[k,d]*x[v,d]/(w*e)[v,d] / sum_d e[k,d]
//
// in place for k >= nGiven without renormalizing.
func multiplySignatures(w, x, e *mat.Dense, nGiven int) {
	var ratio mat.Dense
	ratio.Mul(w, e)
	ratio.Apply(func(v, d int, rec float64) float64 {
		if rec <= 0 {
			return 0
		}
		return x.At(v, d) / rec
	}, &ratio)

	var num mat.Dense
	num.Mul(&ratio, e.T())

	nSignatures, _ := e.Dims()
	colSums := make([]float64, nSignatures)
	for k := range colSums {
		colSums[k] = floats.Sum(e.RawRowView(k))
	}
	w.Apply(func(v, k int, old float64) float64 {
		if k < nGiven || colSums[k] <= 0 {
			return old
		}
		return old * num.At(v, k) / colSums[k]
	}, w)
}
