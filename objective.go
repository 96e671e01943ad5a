package signmf

import (
	"gonum.org/v1/gonum/mat"
	"math"
)

// embeddingPenalty returns -KL(q || p) summed over all coordinates of emb,
// where q is Gaussian around each coordinate with variance
// embeddingPosteriorVariance and p is the zero-mean prior with the given variance.
func embeddingPenalty(emb *mat.Dense, variance float64) float64 {
	r, c := emb.Dims()
	n := float64(r * c)
	tau := embeddingPosteriorVariance
	kl := 0.5*n*(math.Log(variance/tau)+tau/variance-1) + sumSquares(emb)/(2*variance)
	return -kl
}

// ELBO is the evidence lower bound: the Poisson log-likelihood minus the KL
// divergence of the embedding posteriors from the prior. The signature
// embeddings are always penalized; the sample embeddings only if
// penalizeSampleEmbeddings is set, which makes values comparable across
// data sets with different numbers of samples when unset.
func (m *CorrNMF) ELBO(penalizeSampleEmbeddings bool) float64 {
	if m.data == nil {
		return math.NaN()
	}
	p := &m.params
	elbo := poissonLoglikelihood(m.data.Counts, p.Signatures, m.exposures)
	elbo += embeddingPenalty(p.SignatureEmbeddings, p.Variance)
	if penalizeSampleEmbeddings {
		elbo += embeddingPenalty(p.SampleEmbeddings, p.Variance)
	}
	return elbo
}

// surrogateObjective is the lower bound of the ELBO obtained from Jensen's
// inequality with the auxiliary distribution held fixed:
//
//	sum_{v,k,d} x[v,d] p[v,k,d] (log W[v,k] + log E[k,d] - log p[v,k,d])
//	- sum_{k,d} E[k,d] - sum_{v,d} log x[v,d]! + penalties.
//
// It is tight at the auxiliary distribution of the current parameters and
// every update of a pass increases it.
func (m *CorrNMF) surrogateObjective(aux *auxiliary) float64 {
	p := &m.params
	x, w, e := m.data.Counts, p.Signatures, m.exposures
	nFeatures, nSamples := x.Dims()

	var sof float64
	for v := 0; v < nFeatures; v++ {
		for d := 0; d < nSamples; d++ {
			obs := x.At(v, d)
			sof -= logFactorial(obs)
			if obs == 0 {
				continue
			}
			for k := 0; k < aux.nSignatures; k++ {
				q := aux.at(v, k, d)
				sof += obs * q * (safeLog(w.At(v, k)) + safeLog(e.At(k, d)) - math.Log(q))
			}
		}
	}
	sof -= mat.Sum(e)
	sof += embeddingPenalty(p.SignatureEmbeddings, p.Variance)
	sof += embeddingPenalty(p.SampleEmbeddings, p.Variance)
	return sof
}

func safeLog(x float64) float64 {
	return math.Log(math.Max(x, math.SmallestNonzeroFloat64))
}
