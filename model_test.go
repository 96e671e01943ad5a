package signmf

import (
	"math"
	"signmf/initialization"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestNewCountMatrix(t *testing.T) {
	counts := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	types := []string{"a", "b"}
	samples := []string{"s1", "s2"}

	data, err := NewCountMatrix(counts, types, samples)
	require.NoError(t, err)
	counts.Set(0, 0, 100)
	types[0] = "z"
	assert.Equal(t, 1.0, data.Counts.At(0, 0))
	assert.Equal(t, []string{"a", "b"}, data.MutationTypes)

	tests := []struct {
		name    string
		counts  *mat.Dense
		types   []string
		samples []string
	}{
		{"nil", nil, nil, nil},
		{"row labels", mat.NewDense(2, 2, nil), []string{"a"}, []string{"s1", "s2"}},
		{"column labels", mat.NewDense(2, 2, nil), []string{"a", "b"}, []string{"s1"}},
		{"duplicate type", mat.NewDense(2, 2, nil), []string{"a", "a"}, []string{"s1", "s2"}},
		{"duplicate sample", mat.NewDense(2, 2, nil), []string{"a", "b"}, []string{"s1", "s1"}},
		{"negative", mat.NewDense(2, 2, []float64{1, -1, 0, 0}), []string{"a", "b"}, []string{"s1", "s2"}},
		{"nan", mat.NewDense(2, 2, []float64{1, math.NaN(), 0, 0}), []string{"a", "b"}, []string{"s1", "s2"}},
		{"inf", mat.NewDense(2, 2, []float64{1, math.Inf(1), 0, 0}), []string{"a", "b"}, []string{"s1", "s2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCountMatrix(tt.counts, tt.types, tt.samples)
			assert.ErrorIs(t, err, ErrInvalidData)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{NSignatures: 3, MaxIterations: 10}
	require.NoError(t, cfg.validate())
	assert.Equal(t, 3, cfg.DimEmbeddings)
	assert.Equal(t, initialization.NNDSVD, cfg.InitMethod)
	assert.Greater(t, cfg.workers(), 0)
	assert.NotNil(t, cfg.logger())

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no signatures", func(c *Config) { c.NSignatures = 0 }},
		{"negative dim", func(c *Config) { c.DimEmbeddings = -1 }},
		{"unknown init", func(c *Config) { c.InitMethod = "svd" }},
		{"min above max", func(c *Config) { c.MinIterations = 20 }},
		{"no iterations", func(c *Config) { c.MinIterations, c.MaxIterations = 0, 0 }},
		{"negative tol", func(c *Config) { c.Tol = -1 }},
		{"negative workers", func(c *Config) { c.Workers = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(2)
			cfg.MaxIterations = 10
			cfg.MinIterations = 1
			tt.modify(&cfg)
			err := cfg.validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	cfg = DefaultConfig(2)
	cfg.InitMethod = "svd"
	assert.ErrorIs(t, cfg.validate(), initialization.ErrUnknownMethod)
}

func TestNewModel(t *testing.T) {
	m, err := New(KindCorrelated, DefaultConfig(2))
	require.NoError(t, err)
	assert.IsType(t, &CorrNMF{}, m)
	assert.Equal(t, Maximize, m.Objective())

	m, err = New(KindStandard, DefaultConfig(2))
	require.NoError(t, err)
	assert.IsType(t, &StandardNMF{}, m)

	_, err = New(Kind(7), DefaultConfig(2))
	assert.ErrorIs(t, err, ErrUnknownKind)
	_, err = New(KindStandard, DefaultConfig(0))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestParseKind(t *testing.T) {
	for s, want := range map[string]Kind{"nmf": KindStandard, "CorrNMF": KindCorrelated, "correlated": KindCorrelated} {
		k, err := ParseKind(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, k)
	}
	_, err := ParseKind("mvnmf")
	assert.ErrorIs(t, err, ErrUnknownKind)
	assert.Equal(t, "corrnmf", KindCorrelated.String())
	assert.Equal(t, "Kind(9)", Kind(9).String())
}

func TestConvergenceStatus(t *testing.T) {
	cfg := Config{Tol: 1e-3, MinIterations: 3, MaxIterations: 10}
	maxTest := newConvergenceTest(&cfg, Maximize)
	minTest := newConvergenceTest(&cfg, Minimize)

	tests := []struct {
		name      string
		test      convergenceTest
		n         int
		prev, cur float64
		want      Status
	}{
		{"large gain", maxTest, 5, -100, -50, Iterating},
		{"small gain", maxTest, 5, -100, -99.99, Converged},
		{"decrease", maxTest, 5, -100, -101, Converged},
		{"small gain before min", maxTest, 2, -100, -99.99, Iterating},
		{"max reached", maxTest, 10, -100, -50, MaxIterationsReached},
		{"minimize large gain", minTest, 5, 100, 50, Iterating},
		{"minimize increase", minTest, 5, 100, 101, Converged},
		{"zero previous", maxTest, 5, 0, 1, Iterating},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.test.status(tt.n, tt.prev, tt.cur))
		})
	}
	assert.InDelta(t, 0.5, maxTest.improvement(-100, -50), 1e-12)
	assert.InDelta(t, 0.5, minTest.improvement(100, 50), 1e-12)
	assert.Equal(t, "max iterations reached", MaxIterationsReached.String())
}
