package signmf

import (
	"fmt"
	"gonum.org/v1/gonum/mat"
	"math"
)

// CountMatrix holds mutation counts with mutation types as rows and samples
// as columns. It is never modified by a fit.
type CountMatrix struct {
	Counts        *mat.Dense
	MutationTypes []string
	SampleNames   []string
}

// NewCountMatrix validates counts and labels and returns them as a CountMatrix.
// Counts must be finite and non-negative, and the labels must be unique and
// match the matrix dimensions.
func NewCountMatrix(counts *mat.Dense, mutationTypes, sampleNames []string) (*CountMatrix, error) {
	if counts == nil || counts.IsEmpty() {
		return nil, fmt.Errorf("%w: empty count matrix", ErrInvalidData)
	}
	nFeatures, nSamples := counts.Dims()
	if len(mutationTypes) != nFeatures {
		return nil, fmt.Errorf("%w: %d mutation types for %d rows", ErrInvalidData, len(mutationTypes), nFeatures)
	}
	if len(sampleNames) != nSamples {
		return nil, fmt.Errorf("%w: %d sample names for %d columns", ErrInvalidData, len(sampleNames), nSamples)
	}
	if dup, ok := firstDuplicate(mutationTypes); ok {
		return nil, fmt.Errorf("%w: duplicate mutation type %q", ErrInvalidData, dup)
	}
	if dup, ok := firstDuplicate(sampleNames); ok {
		return nil, fmt.Errorf("%w: duplicate sample name %q", ErrInvalidData, dup)
	}
	for v := 0; v < nFeatures; v++ {
		for d := 0; d < nSamples; d++ {
			x := counts.At(v, d)
			if x < 0 || math.IsNaN(x) || math.IsInf(x, 0) {
				return nil, fmt.Errorf("%w: count %v at (%s, %s)", ErrInvalidData, x, mutationTypes[v], sampleNames[d])
			}
		}
	}
	return &CountMatrix{
		Counts:        mat.DenseCopyOf(counts),
		MutationTypes: append([]string(nil), mutationTypes...),
		SampleNames:   append([]string(nil), sampleNames...),
	}, nil
}

// Dims returns the number of mutation types and samples.
func (c *CountMatrix) Dims() (nFeatures, nSamples int) {
	return c.Counts.Dims()
}

func firstDuplicate(labels []string) (string, bool) {
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			return l, true
		}
		seen[l] = struct{}{}
	}
	return "", false
}
