package signmf

import (
	"errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"math"
	"signmf/initialization"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fitCorrNMF(t *testing.T, cfg Config, data *CountMatrix, opts FitOptions) *CorrNMF {
	t.Helper()
	m, err := NewCorrNMF(cfg)
	require.NoError(t, err)
	require.NoError(t, m.Fit(data, opts))
	return m
}

func TestCorrNMFSmallScenario(t *testing.T) {
	data := smallCounts(t)
	cfg := testConfig(2)
	cfg.DimEmbeddings = 2

	m := fitCorrNMF(t, cfg, data, FitOptions{History: true})

	assert.Contains(t, []Status{Converged, MaxIterationsReached}, m.Status())
	assert.GreaterOrEqual(t, m.Iterations(), cfg.MinIterations)
	assert.LessOrEqual(t, m.Iterations(), cfg.MaxIterations)

	e := m.Exposures()
	r, c := e.Dims()
	require.Equal(t, 2, r)
	require.Equal(t, 3, c)
	assert.GreaterOrEqual(t, mat.Min(e), 0.0)

	w := m.Signatures()
	for k := 0; k < 2; k++ {
		assert.InDelta(t, 1, floats.Sum(mat.Col(nil, k, w)), 1e-9)
	}

	// A flat fit is off by about 40 in KL on this data.
	assert.Less(t, m.ReconstructionError(), 15.0)
	rec := m.Reconstructed()
	var kl float64
	for v := 0; v < 4; v++ {
		for d := 0; d < 3; d++ {
			x, y := data.Counts.At(v, d), math.Max(rec.At(v, d), 0.5)
			kl += x*math.Log(x/y) - x + y
		}
	}
	assert.Less(t, kl, 15.0)

	h := m.History()
	assert.Len(t, h.Objective, m.Iterations())
	assert.Len(t, h.Surrogate, m.Iterations())
	assert.Equal(t, []string{"Sig1", "Sig2"}, m.SignatureNames())
}

func TestCorrNMFSurrogateIsNonDecreasing(t *testing.T) {
	for _, seed := range []uint64{1, 2, 3} {
		data := poissonCounts(t, 8, 10, 3, seed)
		cfg := testConfig(3)
		cfg.DimEmbeddings = 2
		cfg.MinIterations = 30
		cfg.MaxIterations = 30

		m := fitCorrNMF(t, cfg, data, FitOptions{History: true, Init: initialization.Options{Seed: seed}})
		sof := m.History().Surrogate
		require.Len(t, sof, 30)
		for i := 1; i < len(sof); i++ {
			assert.GreaterOrEqual(t, sof[i], sof[i-1]-1e-6*math.Abs(sof[i-1]), "seed %d iteration %d", seed, i+1)
		}
		// The surrogate bounds the objective from below.
		for i, of := range m.History().Objective {
			assert.LessOrEqual(t, sof[i], of+1e-6*math.Abs(of), "seed %d iteration %d", seed, i+1)
		}
	}
}

func TestCorrNMFExposuresStayInSync(t *testing.T) {
	data := poissonCounts(t, 6, 5, 2, 4)
	m := fitCorrNMF(t, testConfig(2), data, FitOptions{})

	p := m.Parameters()
	want := computeExposures(p.SignatureScalings, p.SampleScalings, p.SignatureEmbeddings, p.SampleEmbeddings)
	assert.True(t, mat.Equal(want, m.Exposures()))
	assert.Greater(t, p.Variance, 0.0)
}

func TestCorrNMFGivenSignaturesAreNotModified(t *testing.T) {
	data := smallCounts(t)
	given := mat.NewDense(4, 2, []float64{
		0.5, 0.1,
		0.3, 0.1,
		0.1, 0.3,
		0.1, 0.5,
	})
	orig := mat.DenseCopyOf(given)

	m := fitCorrNMF(t, testConfig(2), data, FitOptions{Given: GivenParameters{
		Signatures: &LabeledSignatures{Matrix: given, MutationTypes: data.MutationTypes, Names: []string{"SBS1", "SBS5"}},
	}})

	assert.True(t, mat.Equal(orig, m.Signatures()))
	assert.True(t, mat.Equal(orig, given))
	assert.Equal(t, []string{"SBS1", "SBS5"}, m.SignatureNames())
}

func TestCorrNMFGivenSubsetOfSignatures(t *testing.T) {
	data := smallCounts(t)
	given := mat.NewDense(4, 1, []float64{0.5, 0.3, 0.1, 0.1})
	orig := mat.DenseCopyOf(given)

	m := fitCorrNMF(t, testConfig(2), data, FitOptions{Given: GivenParameters{
		Signatures: &LabeledSignatures{Matrix: given, MutationTypes: data.MutationTypes, Names: []string{"SBS1"}},
	}})

	w := m.Signatures()
	assert.Equal(t, mat.Col(nil, 0, orig), mat.Col(nil, 0, w))
	assert.True(t, mat.Equal(orig, given))
	assert.Equal(t, []string{"SBS1", "Sig2"}, m.SignatureNames())

	// The free signature is fitted towards the second generating one.
	fitted := mat.Col(nil, 1, w)
	assert.InDelta(t, 1, floats.Sum(fitted), 1e-9)
	assert.Greater(t, fitted[3], fitted[0])
	assert.Less(t, m.ReconstructionError(), 15.0)
}

func TestCorrNMFGivenEmbeddingsAreNotModified(t *testing.T) {
	data := poissonCounts(t, 5, 4, 2, 9)
	sigEmb := mat.NewDense(2, 2, []float64{0.8, -0.3, 0.2, 0.9})
	sampleEmb := mat.NewDense(2, 4, []float64{0.1, 0.5, -0.7, 0.3, 0.4, -0.2, 0.6, 1.1})

	t.Run("signature", func(t *testing.T) {
		m := fitCorrNMF(t, testConfig(2), data, FitOptions{Given: GivenParameters{SignatureEmbeddings: sigEmb}})
		assert.True(t, mat.Equal(sigEmb, m.Parameters().SignatureEmbeddings))
	})
	t.Run("sample", func(t *testing.T) {
		m := fitCorrNMF(t, testConfig(2), data, FitOptions{Given: GivenParameters{SampleEmbeddings: sampleEmb}})
		assert.True(t, mat.Equal(sampleEmb, m.Parameters().SampleEmbeddings))
	})
	t.Run("scalings and variance", func(t *testing.T) {
		variance := 0.5
		scalings := []float64{1, 2, 3, 4}
		m := fitCorrNMF(t, testConfig(2), data, FitOptions{Given: GivenParameters{SampleScalings: scalings, Variance: &variance}})
		p := m.Parameters()
		assert.Equal(t, scalings, p.SampleScalings)
		assert.Equal(t, 0.5, p.Variance)
	})
}

func TestCorrNMFIncompatibleGivenParameters(t *testing.T) {
	data := smallCounts(t)
	variance := -1.0
	cases := map[string]GivenParameters{
		"signature shape": {Signatures: &LabeledSignatures{
			Matrix:        mat.NewDense(4, 3, []float64{0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25}),
			MutationTypes: data.MutationTypes,
		}},
		"signature names": {Signatures: &LabeledSignatures{
			Matrix:        mat.NewDense(4, 1, []float64{0.25, 0.25, 0.25, 0.25}),
			MutationTypes: data.MutationTypes,
			Names:         []string{"SBS1", "SBS5"},
		}},
		"mutation types": {Signatures: &LabeledSignatures{
			Matrix:        mat.NewDense(4, 2, []float64{0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25, 0.25}),
			MutationTypes: []string{"a", "b", "c", "d"},
		}},
		"not a simplex": {Signatures: &LabeledSignatures{
			Matrix:        mat.NewDense(4, 2, []float64{1, 1, 1, 1, 1, 1, 1, 1}),
			MutationTypes: data.MutationTypes,
		}},
		"sample scalings":      {SampleScalings: []float64{0, 0}},
		"signature scalings":   {SignatureScalings: []float64{0, 0, 0}},
		"signature embeddings": {SignatureEmbeddings: mat.NewDense(3, 2, nil)},
		"sample embeddings":    {SampleEmbeddings: mat.NewDense(2, 4, nil)},
		"variance":             {Variance: &variance},
	}
	for name, given := range cases {
		t.Run(name, func(t *testing.T) {
			m, err := NewCorrNMF(testConfig(2))
			require.NoError(t, err)
			err = m.Fit(data, FitOptions{Given: given})
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIncompatibleParameter)
			var perr *ParameterError
			assert.True(t, errors.As(err, &perr))
		})
	}
}

func TestCorrNMFStopsAtMaxIterations(t *testing.T) {
	data := smallCounts(t)
	cfg := testConfig(2)
	cfg.MinIterations = 8
	cfg.MaxIterations = 8
	cfg.Tol = 0

	m := fitCorrNMF(t, cfg, data, FitOptions{History: true})
	assert.Equal(t, 8, m.Iterations())
	assert.Len(t, m.History().Objective, 8)
}

func TestCorrNMFStopsAtMinIterationsWhenConverged(t *testing.T) {
	data := smallCounts(t)
	cfg := testConfig(2)
	cfg.MinIterations = 3
	cfg.Tol = math.Inf(1)

	m := fitCorrNMF(t, cfg, data, FitOptions{})
	assert.Equal(t, 3, m.Iterations())
	assert.Equal(t, Converged, m.Status())
	assert.Empty(t, m.History().Objective)
}

func TestCorrNMFWorkersDoNotChangeResults(t *testing.T) {
	data := poissonCounts(t, 6, 9, 3, 12)
	cfg := testConfig(3)
	cfg.MaxIterations = 10

	cfg.Workers = 1
	sequential := fitCorrNMF(t, cfg, data, FitOptions{Init: initialization.Options{Seed: 5}})
	cfg.Workers = 4
	parallel := fitCorrNMF(t, cfg, data, FitOptions{Init: initialization.Options{Seed: 5}})

	assert.True(t, mat.Equal(sequential.Exposures(), parallel.Exposures()))
	assert.True(t, mat.Equal(sequential.Signatures(), parallel.Signatures()))
	assert.Equal(t, sequential.Iterations(), parallel.Iterations())
}

func TestCorrNMFRefitDiscardsState(t *testing.T) {
	m, err := NewCorrNMF(testConfig(2))
	require.NoError(t, err)
	require.NoError(t, m.Fit(poissonCounts(t, 5, 6, 2, 1), FitOptions{History: true}))
	require.NoError(t, m.Fit(smallCounts(t), FitOptions{}))

	_, c := m.Exposures().Dims()
	assert.Equal(t, 3, c)
	assert.Empty(t, m.History().Objective)
}

func TestCorrNMFObjectiveWithoutSamplePenalty(t *testing.T) {
	m := fitCorrNMF(t, testConfig(2), smallCounts(t), FitOptions{})
	p := m.Parameters()
	diff := m.ELBO(false) - m.ELBO(true)
	assert.InDelta(t, -embeddingPenalty(p.SampleEmbeddings, p.Variance), diff, 1e-9)
	assert.Equal(t, m.ELBO(true), m.ObjectiveFunction())
	assert.Equal(t, Maximize, m.Objective())
}

func TestCorrNMFUnfitted(t *testing.T) {
	m, err := NewCorrNMF(testConfig(2))
	require.NoError(t, err)
	assert.True(t, math.IsNaN(m.ObjectiveFunction()))
	assert.Nil(t, m.Exposures())
	assert.ErrorIs(t, m.ComputeCorrelationScaled(CorrelateSamples), ErrNotFitted)
	assert.Error(t, m.Fit(nil, FitOptions{}))
}

func TestComputeCorrelationScaled(t *testing.T) {
	data := poissonCounts(t, 6, 7, 3, 2)
	m := fitCorrNMF(t, testConfig(3), data, FitOptions{})

	require.NoError(t, m.ComputeCorrelationScaled(CorrelateSignatures))
	require.NoError(t, m.ComputeCorrelationScaled(CorrelateSamples))
	assert.Error(t, m.ComputeCorrelationScaled("exposures"))

	for name, corr := range map[string]*mat.SymDense{
		"signatures": m.SignatureCorrelation(),
		"samples":    m.SampleCorrelation(),
	} {
		require.NotNil(t, corr, name)
		n := corr.SymmetricDim()
		for i := 0; i < n; i++ {
			assert.Equal(t, 1.0, corr.At(i, i), name)
			for j := 0; j < n; j++ {
				assert.Equal(t, corr.At(i, j), corr.At(j, i), name)
				assert.LessOrEqual(t, math.Abs(corr.At(i, j)), 1.0, name)
			}
		}
	}
	assert.Equal(t, 3, m.SignatureCorrelation().SymmetricDim())
	assert.Equal(t, 7, m.SampleCorrelation().SymmetricDim())
}

func TestScaledCorrelationOfParallelVectors(t *testing.T) {
	emb := mat.NewDense(2, 3, []float64{
		1, 2, -1,
		1, 2, -1,
	})
	corr := scaledCorrelation(emb)
	assert.InDelta(t, 1, corr.At(0, 1), 1e-12)
	assert.InDelta(t, -1, corr.At(0, 2), 1e-12)
}

func TestCorrNMFBIC(t *testing.T) {
	m := fitCorrNMF(t, testConfig(2), smallCounts(t), FitOptions{})
	// K(V-1) + dim(K+D) + D
	assert.Equal(t, 2*3+2*5+3, m.nParameters())
	assert.InDelta(t, float64(m.nParameters())*math.Log(3)-2*m.Loglikelihood(), m.BIC(), 1e-9)
	assert.Len(t, m.SamplewiseReconstructionErrors(), 3)
}
