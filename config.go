package signmf

import (
	"fmt"
	"log/slog"
	"runtime"
	"signmf/initialization"
)

// Config holds the settings shared by every model kind.
type Config struct {
	// Number of signatures K.
	NSignatures int `toml:"n_signatures" yaml:"n_signatures"`

	// Method used to produce the starting signature matrix.
	InitMethod initialization.Method `toml:"init_method" yaml:"init_method"`

	// Dimension of the signature and sample embeddings. Only used by the
	// correlated model. Zero means NSignatures. Values below NSignatures
	// enforce a stronger correlation structure.
	DimEmbeddings int `toml:"dim_embeddings" yaml:"dim_embeddings"`

	MinIterations int     `toml:"min_iterations" yaml:"min_iterations"`
	MaxIterations int     `toml:"max_iterations" yaml:"max_iterations"`
	Tol           float64 `toml:"tol" yaml:"tol"`

	// Upper bound on concurrently solved embedding sub-problems.
	// Zero means GOMAXPROCS.
	Workers int `toml:"workers" yaml:"workers"`

	// Logger receives progress messages. Nil means slog.Default().
	Logger *slog.Logger `toml:"-" yaml:"-"`
}

// DefaultConfig returns the configuration used when only the number of
// signatures is known.
func DefaultConfig(nSignatures int) Config {
	return Config{
		NSignatures:   nSignatures,
		InitMethod:    initialization.NNDSVD,
		DimEmbeddings: nSignatures,
		MinIterations: 500,
		MaxIterations: 10000,
		Tol:           1e-7,
	}
}

func (c *Config) validate() error {
	if c.NSignatures < 1 {
		return fmt.Errorf("%w: n_signatures must be positive, got %d", ErrInvalidConfig, c.NSignatures)
	}
	if c.DimEmbeddings == 0 {
		c.DimEmbeddings = c.NSignatures
	}
	if c.DimEmbeddings < 0 {
		return fmt.Errorf("%w: dim_embeddings must be positive, got %d", ErrInvalidConfig, c.DimEmbeddings)
	}
	if c.InitMethod == "" {
		c.InitMethod = initialization.NNDSVD
	}
	if !c.InitMethod.Valid() {
		return fmt.Errorf("%w: %w %q", ErrInvalidConfig, initialization.ErrUnknownMethod, c.InitMethod)
	}
	if c.MinIterations < 0 || c.MaxIterations < 1 || c.MinIterations > c.MaxIterations {
		return fmt.Errorf("%w: need 0 <= min_iterations (%d) <= max_iterations (%d) and max_iterations >= 1",
			ErrInvalidConfig, c.MinIterations, c.MaxIterations)
	}
	if c.Tol < 0 {
		return fmt.Errorf("%w: tol must be non-negative, got %g", ErrInvalidConfig, c.Tol)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must be non-negative, got %d", ErrInvalidConfig, c.Workers)
	}
	return nil
}

func (c *Config) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

func (c *Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}
