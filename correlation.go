package signmf

import (
	"fmt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"math"
)

// CorrelationTarget selects the embedding set a correlation is computed for.
type CorrelationTarget string

const (
	CorrelateSignatures CorrelationTarget = "signatures"
	CorrelateSamples    CorrelationTarget = "samples"
)

// ComputeCorrelationScaled stores the cosine similarity of the signature or
// sample embeddings, i.e. the correlation of the scaled log exposures.
// The result is read with SignatureCorrelation or SampleCorrelation.
func (m *CorrNMF) ComputeCorrelationScaled(target CorrelationTarget) error {
	if m.params.SignatureEmbeddings == nil {
		return fmt.Errorf("%w: correlations require fitted embeddings", ErrNotFitted)
	}
	switch target {
	case CorrelateSignatures:
		m.signatureCorrelation = scaledCorrelation(m.params.SignatureEmbeddings)
	case CorrelateSamples:
		m.sampleCorrelation = scaledCorrelation(m.params.SampleEmbeddings)
	default:
		return unknownTarget(target)
	}
	return nil
}

func unknownTarget(target CorrelationTarget) error {
	return fmt.Errorf("signmf: correlation target must be %q or %q, got %q",
		CorrelateSignatures, CorrelateSamples, target)
}

// SignatureCorrelation returns the last matrix computed by
// ComputeCorrelationScaled(CorrelateSignatures), or nil.
func (m *CorrNMF) SignatureCorrelation() *mat.SymDense {
	return m.signatureCorrelation
}

// SampleCorrelation returns the last matrix computed by
// ComputeCorrelationScaled(CorrelateSamples), or nil.
func (m *CorrNMF) SampleCorrelation() *mat.SymDense {
	return m.sampleCorrelation
}

// scaledCorrelation returns the cosine similarities between the columns of
// emb with a unit diagonal.
func scaledCorrelation(emb *mat.Dense) *mat.SymDense {
	vecs := columnVectors(emb)
	norms := make([]float64, len(vecs))
	for i, v := range vecs {
		norms[i] = floats.Norm(v, 2)
	}
	corr := mat.NewSymDense(len(vecs), nil)
	for i, vi := range vecs {
		corr.SetSym(i, i, 1)
		for j := i + 1; j < len(vecs); j++ {
			var c float64
			if norms[i] > 0 && norms[j] > 0 {
				c = floats.Dot(vi, vecs[j]) / (norms[i] * norms[j])
			}
			corr.SetSym(i, j, math.Max(-1, math.Min(1, c)))
		}
	}
	return corr
}

// ComputeCorrelation stores the Pearson correlation of the exposures,
// between signatures across samples or between samples across signatures.
// Signatures or samples with constant exposures get NaN entries.
func (m *StandardNMF) ComputeCorrelation(target CorrelationTarget) error {
	if m.h == nil {
		return fmt.Errorf("%w: correlations require fitted exposures", ErrNotFitted)
	}
	switch target {
	case CorrelateSignatures:
		m.signatureCorrelation = correlationMatrix(m.h.T())
	case CorrelateSamples:
		m.sampleCorrelation = correlationMatrix(m.h)
	default:
		return unknownTarget(target)
	}
	return nil
}

// SignatureCorrelation returns the last matrix computed by
// ComputeCorrelation(CorrelateSignatures), or nil.
func (m *StandardNMF) SignatureCorrelation() *mat.SymDense {
	return m.signatureCorrelation
}

// SampleCorrelation returns the last matrix computed by
// ComputeCorrelation(CorrelateSamples), or nil.
func (m *StandardNMF) SampleCorrelation() *mat.SymDense {
	return m.sampleCorrelation
}

// correlationMatrix returns the correlations between the columns of obs,
// with one observation per row.
func correlationMatrix(obs mat.Matrix) *mat.SymDense {
	_, n := obs.Dims()
	corr := mat.NewSymDense(n, nil)
	stat.CorrelationMatrix(corr, obs, nil)
	return corr
}
