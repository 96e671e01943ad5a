package signmf

import (
	"errors"
	"fmt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"math"
	"slices"
)

// simplexTolerance bounds how far a given signature column may sum from one.
const simplexTolerance = 1e-6

// LabeledSignatures is a V x g signature matrix with its labels. Given
// signatures may be a subset of the K fitted ones; they occupy the first g
// columns of the signature matrix.
type LabeledSignatures struct {
	Matrix        *mat.Dense
	MutationTypes []string
	// Names defaults to Sig1..Sig<g> when nil.
	Names []string
}

// count returns the number of given signatures, zero for nil.
func (s *LabeledSignatures) count() int {
	if s == nil || s.Matrix == nil {
		return 0
	}
	_, c := s.Matrix.Dims()
	return c
}

// GivenParameters are a priori known parameters. Every non-nil field is
// used as is and never modified by the fit. The standard model only
// supports Signatures.
type GivenParameters struct {
	Signatures *LabeledSignatures

	// Length K and D.
	SignatureScalings []float64
	SampleScalings    []float64

	// dim_embeddings x K and dim_embeddings x D.
	SignatureEmbeddings *mat.Dense
	SampleEmbeddings    *mat.Dense

	Variance *float64
}

// check validates every given parameter against the data and the model
// dimensions. All failures are joined into the returned error, and each one
// is a *ParameterError.
func (g *GivenParameters) check(data *CountMatrix, nSignatures, dimEmbeddings int) error {
	nFeatures, nSamples := data.Dims()
	var errs []error
	fail := func(param, format string, args ...any) {
		errs = append(errs, &ParameterError{Param: param, Reason: fmt.Sprintf(format, args...)})
	}

	if s := g.Signatures; s != nil {
		switch {
		case s.Matrix == nil:
			fail("signatures", "matrix is nil")
		case !slices.Equal(s.MutationTypes, data.MutationTypes):
			fail("signatures", "mutation types do not match the data")
		default:
			r, c := s.Matrix.Dims()
			if r != nFeatures || c > nSignatures {
				fail("signatures", "shape %dx%d, want %d rows and at most %d columns", r, c, nFeatures, nSignatures)
			} else if k, ok := firstNonSimplexColumn(s.Matrix); !ok {
				fail("signatures", "column %d is not a probability distribution", k)
			}
			if s.Names != nil && len(s.Names) != c {
				fail("signatures", "%d names for %d signatures", len(s.Names), c)
			}
		}
	}
	if g.SignatureScalings != nil && len(g.SignatureScalings) != nSignatures {
		fail("signature scalings", "length %d, want %d", len(g.SignatureScalings), nSignatures)
	}
	if g.SampleScalings != nil && len(g.SampleScalings) != nSamples {
		fail("sample scalings", "length %d, want %d", len(g.SampleScalings), nSamples)
	}
	if e := g.SignatureEmbeddings; e != nil {
		if r, c := e.Dims(); r != dimEmbeddings || c != nSignatures {
			fail("signature embeddings", "shape %dx%d, want %dx%d", r, c, dimEmbeddings, nSignatures)
		}
	}
	if e := g.SampleEmbeddings; e != nil {
		if r, c := e.Dims(); r != dimEmbeddings || c != nSamples {
			fail("sample embeddings", "shape %dx%d, want %dx%d", r, c, dimEmbeddings, nSamples)
		}
	}
	if v := g.Variance; v != nil && !(*v > 0 && !math.IsInf(*v, 1)) {
		fail("variance", "must be positive and finite, got %v", *v)
	}
	return errors.Join(errs...)
}

// onlySignatures returns an error for every given parameter other than the
// signatures.
func (g *GivenParameters) onlySignatures() error {
	var errs []error
	unsupported := func(param string) {
		errs = append(errs, &ParameterError{Param: param, Reason: "not a parameter of the standard model"})
	}
	if g.SignatureScalings != nil {
		unsupported("signature scalings")
	}
	if g.SampleScalings != nil {
		unsupported("sample scalings")
	}
	if g.SignatureEmbeddings != nil {
		unsupported("signature embeddings")
	}
	if g.SampleEmbeddings != nil {
		unsupported("sample embeddings")
	}
	if g.Variance != nil {
		unsupported("variance")
	}
	return errors.Join(errs...)
}

func firstNonSimplexColumn(m *mat.Dense) (int, bool) {
	r, c := m.Dims()
	col := make([]float64, r)
	for k := 0; k < c; k++ {
		mat.Col(col, k, m)
		if floats.Min(col) < 0 || math.Abs(floats.Sum(col)-1) > simplexTolerance {
			return k, false
		}
	}
	return 0, true
}
