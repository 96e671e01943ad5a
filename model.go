// Package signmf fits mutational signature models to mutation count matrices.
//
// Two model kinds share the Model interface: a standard Kullback-Leibler NMF
// and CorrNMF, which refactors the exposures into scalar biases and
// low-dimensional embeddings of signatures and samples, so that correlations
// among signatures and among samples are modeled explicitly.
package signmf

import (
	"fmt"
	"gonum.org/v1/gonum/mat"
	"signmf/initialization"
	"strings"
)

// Direction tells whether a model maximizes or minimizes its objective.
type Direction uint8

const (
	Maximize Direction = iota
	Minimize
)

func (d Direction) String() string {
	if d == Minimize {
		return "minimize"
	}
	return "maximize"
}

// Kind selects a model implementation.
type Kind uint8

const (
	KindStandard Kind = iota
	KindCorrelated
)

func (k Kind) String() string {
	switch k {
	case KindStandard:
		return "nmf"
	case KindCorrelated:
		return "corrnmf"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// ParseKind maps "nmf" and "corrnmf" to their Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(s) {
	case "nmf", "standard":
		return KindStandard, nil
	case "corrnmf", "correlated":
		return KindCorrelated, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// Status is the state of the fitting state machine.
type Status uint8

const (
	Initializing Status = iota
	Iterating
	Converged
	MaxIterationsReached
)

func (s Status) String() string {
	switch s {
	case Initializing:
		return "initializing"
	case Iterating:
		return "iterating"
	case Converged:
		return "converged"
	case MaxIterationsReached:
		return "max iterations reached"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// History holds one objective value per completed iteration. Surrogate is
// only filled by models that optimize a surrogate lower bound.
type History struct {
	Objective []float64
	Surrogate []float64
}

// FitOptions control a single call to Fit.
type FitOptions struct {
	// Parameters fixed during the fit.
	Given GivenParameters

	// Passed to the signature initialization. The seed also drives the
	// random embedding initialization.
	Init initialization.Options

	// Keep the objective values of every iteration.
	History bool

	// Log every 100th iteration at info instead of debug level.
	Verbose bool
}

// Model is the contract shared by all signature models.
type Model interface {
	// Fit replaces all model state by a fit to data.
	Fit(data *CountMatrix, opts FitOptions) error

	Signatures() *mat.Dense
	SignatureNames() []string
	Exposures() *mat.Dense

	ObjectiveFunction() float64
	Objective() Direction
	Loglikelihood() float64
	BIC() float64

	Reconstructed() *mat.Dense
	ReconstructionError() float64
	SamplewiseReconstructionErrors() []float64

	History() History
	Status() Status
	Iterations() int
}

// New returns an unfitted model of the given kind.
func New(kind Kind, cfg Config) (Model, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	switch kind {
	case KindStandard:
		return &StandardNMF{Config: cfg}, nil
	case KindCorrelated:
		return &CorrNMF{Config: cfg}, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrUnknownKind, kind)
}
