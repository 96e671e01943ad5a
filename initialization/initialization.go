// Package initialization produces starting signature and exposure matrices
// for the signature models.
package initialization

import (
	"errors"
	"fmt"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Method names an initialization strategy.
type Method string

const (
	Flat         Method = "flat"
	Random       Method = "random"
	NNDSVD       Method = "nndsvd"
	NNDSVDA      Method = "nndsvda"
	NNDSVDAR     Method = "nndsvdar"
	SeparableNMF Method = "separableNMF"
)

var (
	// ErrUnknownMethod indicates a method outside Methods().
	ErrUnknownMethod = errors.New("initialization: unknown method")
	// ErrGivenSignatures indicates given signatures that do not fit the data or k.
	ErrGivenSignatures = errors.New("initialization: incompatible given signatures")
)

// epsilon is the floor applied to initial entries.
const epsilon = 1.0 / (1 << 23)

// Methods returns all supported methods.
func Methods() []Method {
	return []Method{Flat, Random, NNDSVD, NNDSVDA, NNDSVDAR, SeparableNMF}
}

// Valid reports whether m is one of Methods().
func (m Method) Valid() bool {
	for _, x := range Methods() {
		if m == x {
			return true
		}
	}
	return false
}

// Options are passed through from the caller of a fit.
type Options struct {
	// Seed of the random source used by the stochastic methods.
	Seed uint64 `toml:"seed" yaml:"seed"`
}

// Result is the output of Initialize.
type Result struct {
	// Signatures is V x k with columns summing to one.
	Signatures *mat.Dense
	// Exposures is k x D.
	Exposures *mat.Dense
	Names     []string
}

// Initialize returns k starting signatures for the V x D count matrix x.
// If given is non-nil, its g <= k columns are used unchanged as the first
// signatures and named by givenNames (or Sig1..Sig<g> when givenNames is nil);
// the others are named Sig<g+1>..Sig<k>.
func Initialize(x *mat.Dense, k int, method Method, given *mat.Dense, givenNames []string, opts Options) (*Result, error) {
	if !method.Valid() {
		return nil, fmt.Errorf("%w %q", ErrUnknownMethod, method)
	}
	nFeatures, _ := x.Dims()
	nGiven := 0
	if given != nil {
		r, c := given.Dims()
		if r != nFeatures || c > k {
			return nil, fmt.Errorf("%w: got %dx%d for %d features and %d signatures", ErrGivenSignatures, r, c, nFeatures, k)
		}
		if givenNames != nil && len(givenNames) != c {
			return nil, fmt.Errorf("%w: %d names for %d signatures", ErrGivenSignatures, len(givenNames), c)
		}
		nGiven = c
	}

	src := rand.NewSource(opts.Seed)
	var w, h *mat.Dense
	switch method {
	case Flat:
		w, h = flat(x, k)
	case Random:
		w, h = random(x, k, src)
	case NNDSVD, NNDSVDA, NNDSVDAR:
		w, h = nndsvd(x, k, method, src)
	case SeparableNMF:
		w, h = separable(x, k)
	}
	normalize(w, h)

	if nGiven > 0 {
		col := make([]float64, nFeatures)
		for j := 0; j < nGiven; j++ {
			mat.Col(col, j, given)
			w.SetCol(j, col)
		}
	}

	names := givenNames
	if nGiven > 0 && names == nil {
		names = signatureNames(0, nGiven)
	}
	names = append(append([]string(nil), names...), signatureNames(nGiven, k)...)

	return &Result{Signatures: w, Exposures: h, Names: names}, nil
}

func signatureNames(from, to int) []string {
	names := make([]string, 0, to-from)
	for j := from; j < to; j++ {
		names = append(names, fmt.Sprintf("Sig%d", j+1))
	}
	return names
}

// flat uses uniform signatures and splits every sample's total evenly.
func flat(x *mat.Dense, k int) (w, h *mat.Dense) {
	nFeatures, nSamples := x.Dims()
	w = mat.NewDense(nFeatures, k, nil)
	for v := 0; v < nFeatures; v++ {
		for j := 0; j < k; j++ {
			w.Set(v, j, 1/float64(nFeatures))
		}
	}
	h = mat.NewDense(k, nSamples, nil)
	col := make([]float64, nFeatures)
	for d := 0; d < nSamples; d++ {
		mat.Col(col, d, x)
		total := floats.Sum(col)
		for j := 0; j < k; j++ {
			h.Set(j, d, total/float64(k))
		}
	}
	return w, h
}

// random draws uniform entries scaled to the data magnitude.
func random(x *mat.Dense, k int, src rand.Source) (w, h *mat.Dense) {
	nFeatures, nSamples := x.Dims()
	rnd := rand.New(src)
	w = mat.NewDense(nFeatures, k, nil)
	w.Apply(func(_, _ int, _ float64) float64 { return rnd.Float64() }, w)
	scale := float64(nFeatures) * meanCount(x) / float64(k)
	h = mat.NewDense(k, nSamples, nil)
	h.Apply(func(_, _ int, _ float64) float64 { return 2 * scale * rnd.Float64() }, h)
	return w, h
}

func meanCount(x *mat.Dense) float64 {
	r, c := x.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, x.RawRowView(i)...)
	}
	return stat.Mean(data, nil)
}

// normalize rescales the columns of w to sum to one and moves the scale
// into the rows of h, leaving w*h unchanged up to the epsilon floor.
func normalize(w, h *mat.Dense) {
	nFeatures, k := w.Dims()
	col := make([]float64, nFeatures)
	for j := 0; j < k; j++ {
		mat.Col(col, j, w)
		for v, x := range col {
			if x < epsilon {
				col[v] = epsilon
			}
		}
		s := floats.Sum(col)
		floats.Scale(1/s, col)
		w.SetCol(j, col)
		row := h.RawRowView(j)
		floats.Scale(s, row)
		for d, x := range row {
			if x < epsilon {
				row[d] = epsilon
			}
		}
	}
}
