package signmf

import (
	"context"
	"fmt"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"log/slog"
	"math"
	"signmf/initialization"
)

// StandardNMF factorizes the counts into signatures W and exposures H by
// minimizing the generalized Kullback-Leibler divergence with the
// multiplicative updates of Lee and Seung.
type StandardNMF struct {
	Config

	data           *CountMatrix
	w, h           *mat.Dense
	signatureNames []string
	nGiven         int

	history    History
	status     Status
	iterations int

	signatureCorrelation *mat.SymDense
	sampleCorrelation    *mat.SymDense
}

// NewStandardNMF returns an unfitted StandardNMF model.
func NewStandardNMF(cfg Config) (*StandardNMF, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &StandardNMF{Config: cfg}, nil
}

// Fit fits the model to data. Only given signatures are supported; they
// occupy the first columns of W and are never modified.
func (m *StandardNMF) Fit(data *CountMatrix, opts FitOptions) error {
	if err := m.Config.validate(); err != nil {
		return err
	}
	*m = StandardNMF{Config: m.Config}
	if data == nil || data.Counts == nil {
		return fmt.Errorf("%w: nil count matrix", ErrInvalidData)
	}
	if err := opts.Given.onlySignatures(); err != nil {
		return err
	}
	if err := opts.Given.check(data, m.NSignatures, m.DimEmbeddings); err != nil {
		return err
	}

	var givenW *mat.Dense
	var givenNames []string
	if s := opts.Given.Signatures; s != nil {
		givenW, givenNames = s.Matrix, s.Names
	}
	init, err := initialization.Initialize(data.Counts, m.NSignatures, m.InitMethod, givenW, givenNames, opts.Init)
	if err != nil {
		return err
	}
	m.data = data
	m.w, m.h = init.Signatures, init.Exposures
	m.signatureNames = init.Names
	m.nGiven = opts.Given.Signatures.count()

	logger := m.logger().With("model", KindStandard.String())
	level := slog.LevelDebug
	if opts.Verbose {
		level = slog.LevelInfo
	}
	conv := newConvergenceTest(&m.Config, Minimize)

	prev := m.ObjectiveFunction()
	m.status = Iterating
	for m.status == Iterating {
		m.iterations++
		if m.iterations%100 == 0 {
			logger.Log(context.Background(), level, "iteration", "n", m.iterations, "objective", prev)
		}

		updateExposuresKL(m.h, data.Counts, m.w)
		if m.nGiven < m.NSignatures {
			multiplySignatures(m.w, data.Counts, m.h, m.nGiven)
			rescaleToSimplex(m.w, m.h, m.nGiven)
		}
		floorAt(m.h, epsilon)

		of := m.ObjectiveFunction()
		if opts.History {
			m.history.Objective = append(m.history.Objective, of)
		}
		m.status = conv.status(m.iterations, prev, of)
		prev = of
	}

	logger.Debug("fit finished", "status", m.status, "iterations", m.iterations, "objective", prev)
	return nil
}

// updateExposuresKL applies the Kullback-Leibler multiplicative update to h
// in place with w fixed:
//
//	h[k,d] <- h[k,d] * sum_v w[v,k]*x[v,d]/(w*h)[v,d] / sum_v w[v,k].
func updateExposuresKL(h, x, w *mat.Dense) {
	var ratio mat.Dense
	ratio.Mul(w, h)
	ratio.Apply(func(v, d int, rec float64) float64 {
		if rec <= 0 {
			return 0
		}
		return x.At(v, d) / rec
	}, &ratio)

	var num mat.Dense
	num.Mul(w.T(), &ratio)

	nFeatures, nSignatures := w.Dims()
	colSums := make([]float64, nSignatures)
	col := make([]float64, nFeatures)
	for k := range colSums {
		mat.Col(col, k, w)
		colSums[k] = floats.Sum(col)
	}
	h.Apply(func(k, d int, old float64) float64 {
		if colSums[k] <= 0 {
			return old
		}
		return old * num.At(k, d) / colSums[k]
	}, h)
}

// rescaleToSimplex normalizes the columns of w from column nGiven on and
// moves their sums into the rows of h, so that w*h is unchanged.
func rescaleToSimplex(w, h *mat.Dense, nGiven int) {
	nFeatures, nSignatures := w.Dims()
	col := make([]float64, nFeatures)
	for k := nGiven; k < nSignatures; k++ {
		mat.Col(col, k, w)
		s := floats.Sum(col)
		if s <= 0 {
			continue
		}
		floats.Scale(1/s, col)
		w.SetCol(k, col)
		floats.Scale(s, h.RawRowView(k))
	}
	normalizeColumnsFrom(w, nGiven)
}

func floorAt(m *mat.Dense, floor float64) {
	m.Apply(func(_, _ int, v float64) float64 { return math.Max(v, floor) }, m)
}

// ObjectiveFunction is the generalized Kullback-Leibler divergence between
// the counts and the reconstruction.
func (m *StandardNMF) ObjectiveFunction() float64 {
	if m.data == nil {
		return math.NaN()
	}
	return klDivergence(m.data.Counts, m.w, m.h)
}

// Objective reports that StandardNMF minimizes its objective.
func (m *StandardNMF) Objective() Direction {
	return Minimize
}

// Loglikelihood is the Poisson log-likelihood of the counts.
func (m *StandardNMF) Loglikelihood() float64 {
	if m.data == nil {
		return math.NaN()
	}
	return poissonLoglikelihood(m.data.Counts, m.w, m.h)
}

// BIC is the Bayesian information criterion of the fit.
func (m *StandardNMF) BIC() float64 {
	if m.data == nil {
		return math.NaN()
	}
	nFeatures, nSamples := m.data.Dims()
	nParams := m.NSignatures * (nFeatures - 1 + nSamples)
	return float64(nParams)*math.Log(float64(nSamples)) - 2*m.Loglikelihood()
}

// Signatures returns a copy of the V x K signature matrix.
func (m *StandardNMF) Signatures() *mat.Dense { return copyOrNil(m.w) }

// SignatureNames returns the names of the signature columns.
func (m *StandardNMF) SignatureNames() []string { return append([]string(nil), m.signatureNames...) }

// Exposures returns a copy of the K x D exposure matrix.
func (m *StandardNMF) Exposures() *mat.Dense { return copyOrNil(m.h) }

// Reconstructed returns the signatures times the exposures, rounded.
func (m *StandardNMF) Reconstructed() *mat.Dense {
	if m.data == nil {
		return nil
	}
	return reconstruct(m.w, m.h)
}

// ReconstructionError is the objective, the total Kullback-Leibler divergence.
func (m *StandardNMF) ReconstructionError() float64 { return m.ObjectiveFunction() }

// SamplewiseReconstructionErrors is ReconstructionError per sample.
func (m *StandardNMF) SamplewiseReconstructionErrors() []float64 {
	if m.data == nil {
		return nil
	}
	return samplewiseKLDivergence(m.data.Counts, m.w, m.h)
}

// History returns the recorded objective values, if requested in Fit.
func (m *StandardNMF) History() History { return m.history }

// Status returns the state of the last fit.
func (m *StandardNMF) Status() Status { return m.status }

// Iterations returns the number of iterations of the last fit.
func (m *StandardNMF) Iterations() int { return m.iterations }
