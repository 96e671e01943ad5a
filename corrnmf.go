package signmf

import (
	"context"
	"fmt"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
	"log/slog"
	"math"
	"signmf/initialization"
)

// CorrParameters are the parameters of a CorrNMF model. The exposures are
// derived from them and never stored separately.
type CorrParameters struct {
	// V x K, every column sums to one.
	Signatures *mat.Dense

	SignatureScalings []float64
	SampleScalings    []float64

	// dim_embeddings x K and dim_embeddings x D.
	SignatureEmbeddings *mat.Dense
	SampleEmbeddings    *mat.Dense

	// Variance of the zero-mean Gaussian prior of every embedding coordinate.
	Variance float64
}

func (p *CorrParameters) clone() CorrParameters {
	return CorrParameters{
		Signatures:          mat.DenseCopyOf(p.Signatures),
		SignatureScalings:   append([]float64(nil), p.SignatureScalings...),
		SampleScalings:      append([]float64(nil), p.SampleScalings...),
		SignatureEmbeddings: mat.DenseCopyOf(p.SignatureEmbeddings),
		SampleEmbeddings:    mat.DenseCopyOf(p.SampleEmbeddings),
		Variance:            p.Variance,
	}
}

type fixedParameters struct {
	// The first signatures columns of W are given.
	signatures          int
	sampleScalings      bool
	signatureEmbeddings bool
	sampleEmbeddings    bool
	variance            bool
}

// CorrNMF is correlated NMF: the exposures are
//
//	E[k,d] = exp(alpha0[k] + alpha[d] + L[:,k]·U[:,d])
//
// with signature and sample scalings alpha0, alpha and embeddings L, U under
// a shared Gaussian prior. Fitting maximizes the evidence lower bound by
// alternating closed-form updates and per-embedding Newton solves on an
// auxiliary-variable lower bound.
type CorrNMF struct {
	Config

	data           *CountMatrix
	params         CorrParameters
	exposures      *mat.Dense
	signatureNames []string
	fixed          fixedParameters

	history    History
	status     Status
	iterations int

	signatureCorrelation *mat.SymDense
	sampleCorrelation    *mat.SymDense
}

// NewCorrNMF returns an unfitted CorrNMF model.
func NewCorrNMF(cfg Config) (*CorrNMF, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &CorrNMF{Config: cfg}, nil
}

// Fit fits the model to data. Any state of a previous fit is discarded.
// Only incompatible given parameters, invalid data or an invalid
// configuration cause an error; reaching MaxIterations does not.
func (m *CorrNMF) Fit(data *CountMatrix, opts FitOptions) error {
	if err := m.Config.validate(); err != nil {
		return err
	}
	*m = CorrNMF{Config: m.Config}
	if err := m.initialize(data, opts); err != nil {
		return err
	}

	logger := m.logger().With("model", KindCorrelated.String())
	level := slog.LevelDebug
	if opts.Verbose {
		level = slog.LevelInfo
	}
	conv := newConvergenceTest(&m.Config, Maximize)

	// The first surrogate value is compared against the initial objective.
	prev := m.ObjectiveFunction()
	m.status = Iterating
	for m.status == Iterating {
		m.iterations++
		if m.iterations%100 == 0 {
			logger.Log(context.Background(), level, "iteration", "n", m.iterations, "surrogate", prev)
		}

		aux := m.step()
		surrogate := m.surrogateObjective(aux)
		if opts.History {
			m.history.Objective = append(m.history.Objective, m.ObjectiveFunction())
			m.history.Surrogate = append(m.history.Surrogate, surrogate)
		}
		m.status = conv.status(m.iterations, prev, surrogate)
		prev = surrogate
	}

	logger.Debug("fit finished", "status", m.status, "iterations", m.iterations, "objective", m.ObjectiveFunction())
	return nil
}

// step performs one pass of the alternating updates and returns the
// auxiliary distribution the pass was built on.
func (m *CorrNMF) step() *auxiliary {
	p := &m.params
	x := m.data.Counts

	if !m.fixed.sampleScalings {
		p.SampleScalings = updateSampleScalings(x, p.SignatureScalings, p.SignatureEmbeddings, p.SampleEmbeddings)
	}
	m.ComputeExposures()
	aux := updateAuxiliary(p.Signatures, m.exposures)

	// ComputeExposures allocates, so this keeps the exposures p was built
	// from for the signature update.
	exposures := m.exposures

	expected := aux.expectedCounts(x)
	if !m.fixed.signatureEmbeddings {
		m.updateSignatureEmbeddings(expected)
	}
	if !m.fixed.sampleEmbeddings {
		m.updateSampleEmbeddings(expected)
	}
	if !m.fixed.variance {
		p.Variance = updateVariance(p.SignatureEmbeddings, p.SampleEmbeddings)
	}
	if m.fixed.signatures < m.NSignatures {
		updateSignatures(p.Signatures, x, exposures, m.fixed.signatures)
	}
	m.ComputeExposures()
	return aux
}

// initialize merges the given parameters with initial values for all others.
func (m *CorrNMF) initialize(data *CountMatrix, opts FitOptions) error {
	if data == nil || data.Counts == nil {
		return fmt.Errorf("%w: nil count matrix", ErrInvalidData)
	}
	given := &opts.Given
	if err := given.check(data, m.NSignatures, m.DimEmbeddings); err != nil {
		return err
	}
	_, nSamples := data.Dims()

	var givenW *mat.Dense
	var givenNames []string
	if given.Signatures != nil {
		givenW, givenNames = given.Signatures.Matrix, given.Signatures.Names
	}
	init, err := initialization.Initialize(data.Counts, m.NSignatures, m.InitMethod, givenW, givenNames, opts.Init)
	if err != nil {
		return err
	}

	m.data = data
	m.signatureNames = init.Names
	m.fixed = fixedParameters{
		signatures:          given.Signatures.count(),
		sampleScalings:      given.SampleScalings != nil,
		signatureEmbeddings: given.SignatureEmbeddings != nil,
		sampleEmbeddings:    given.SampleEmbeddings != nil,
		variance:            given.Variance != nil,
	}

	src := rand.NewSource(opts.Init.Seed)
	m.params = CorrParameters{
		Signatures:          init.Signatures,
		SignatureScalings:   copyOrZeros(given.SignatureScalings, m.NSignatures),
		SampleScalings:      copyOrZeros(given.SampleScalings, nSamples),
		SignatureEmbeddings: copyOrDraw(given.SignatureEmbeddings, m.DimEmbeddings, m.NSignatures, src),
		SampleEmbeddings:    copyOrDraw(given.SampleEmbeddings, m.DimEmbeddings, nSamples, src),
		Variance:            1,
	}
	if given.Variance != nil {
		m.params.Variance = *given.Variance
	}
	m.ComputeExposures()
	return nil
}

func copyOrZeros(given []float64, n int) []float64 {
	if given != nil {
		return append([]float64(nil), given...)
	}
	return make([]float64, n)
}

// copyOrDraw copies given or draws n independent standard normal vectors
// of length dim as columns.
func copyOrDraw(given *mat.Dense, dim, n int, src rand.Source) *mat.Dense {
	if given != nil {
		return mat.DenseCopyOf(given)
	}
	cov := mat.NewSymDense(dim, nil)
	for i := 0; i < dim; i++ {
		cov.SetSym(i, i, 1)
	}
	normal, ok := distmv.NewNormal(make([]float64, dim), cov, src)
	if !ok {
		panic("signmf: identity covariance is not positive definite")
	}
	emb := mat.NewDense(dim, n, nil)
	for j := 0; j < n; j++ {
		emb.SetCol(j, normal.Rand(nil))
	}
	return emb
}

// ComputeExposures refreshes the exposures from the current scalings and
// embeddings. It is a no-op before a fit.
func (m *CorrNMF) ComputeExposures() {
	p := &m.params
	if p.SignatureEmbeddings == nil {
		return
	}
	m.exposures = computeExposures(p.SignatureScalings, p.SampleScalings, p.SignatureEmbeddings, p.SampleEmbeddings)
}

// Parameters returns a copy of the fitted parameters.
func (m *CorrNMF) Parameters() CorrParameters {
	if m.params.Signatures == nil {
		return CorrParameters{}
	}
	return m.params.clone()
}

// Signatures returns a copy of the V x K signature matrix.
func (m *CorrNMF) Signatures() *mat.Dense {
	return copyOrNil(m.params.Signatures)
}

// SignatureNames returns the names of the signature columns.
func (m *CorrNMF) SignatureNames() []string {
	return append([]string(nil), m.signatureNames...)
}

// Exposures returns a copy of the K x D exposure matrix.
func (m *CorrNMF) Exposures() *mat.Dense {
	return copyOrNil(m.exposures)
}

// ObjectiveFunction is the evidence lower bound with both embedding sets
// penalized.
func (m *CorrNMF) ObjectiveFunction() float64 {
	return m.ELBO(true)
}

// Objective reports that CorrNMF maximizes its objective.
func (m *CorrNMF) Objective() Direction {
	return Maximize
}

// Loglikelihood is the Poisson log-likelihood of the counts.
func (m *CorrNMF) Loglikelihood() float64 {
	if m.data == nil {
		return math.NaN()
	}
	return poissonLoglikelihood(m.data.Counts, m.params.Signatures, m.exposures)
}

func (m *CorrNMF) nParameters() int {
	nFeatures, nSamples := m.data.Dims()
	k, dim := m.NSignatures, m.DimEmbeddings
	return k*(nFeatures-1) + dim*(k+nSamples) + nSamples
}

// BIC is the Bayesian information criterion of the fit.
func (m *CorrNMF) BIC() float64 {
	if m.data == nil {
		return math.NaN()
	}
	_, nSamples := m.data.Dims()
	return float64(m.nParameters())*math.Log(float64(nSamples)) - 2*m.Loglikelihood()
}

// Reconstructed returns the signatures times the exposures, rounded.
func (m *CorrNMF) Reconstructed() *mat.Dense {
	if m.data == nil {
		return nil
	}
	return reconstruct(m.params.Signatures, m.exposures)
}

// ReconstructionError is the total Kullback-Leibler divergence between the
// counts and their reconstruction.
func (m *CorrNMF) ReconstructionError() float64 {
	if m.data == nil {
		return math.NaN()
	}
	m.ComputeExposures()
	return klDivergence(m.data.Counts, m.params.Signatures, m.exposures)
}

// SamplewiseReconstructionErrors is ReconstructionError per sample.
func (m *CorrNMF) SamplewiseReconstructionErrors() []float64 {
	if m.data == nil {
		return nil
	}
	m.ComputeExposures()
	return samplewiseKLDivergence(m.data.Counts, m.params.Signatures, m.exposures)
}

// History returns the recorded objective values, if requested in Fit.
func (m *CorrNMF) History() History {
	return m.history
}

// Status returns the state of the last fit.
func (m *CorrNMF) Status() Status {
	return m.status
}

// Iterations returns the number of iterations of the last fit.
func (m *CorrNMF) Iterations() int {
	return m.iterations
}

func copyOrNil(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	return mat.DenseCopyOf(m)
}
