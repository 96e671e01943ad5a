package matrixio

import (
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
	"io"
	"signmf"
)

// Report summarizes a fitted model.
type Report struct {
	Kind       string        `yaml:"kind"`
	Config     signmf.Config `yaml:"config"`
	Status     string        `yaml:"status"`
	Iterations int           `yaml:"iterations"`

	Objective           float64 `yaml:"objective"`
	Direction           string  `yaml:"direction"`
	Loglikelihood       float64 `yaml:"loglikelihood"`
	BIC                 float64 `yaml:"bic"`
	ReconstructionError float64 `yaml:"reconstruction_error"`

	SignatureNames       []string           `yaml:"signature_names"`
	SampleErrors         map[string]float64 `yaml:"samplewise_reconstruction_errors"`
	Variance             *float64           `yaml:"variance,omitempty"`
	SignatureCorrelation [][]float64        `yaml:"signature_correlation,omitempty"`
	SampleCorrelation    [][]float64        `yaml:"sample_correlation,omitempty"`

	History *HistoryReport `yaml:"history,omitempty"`
}

// HistoryReport lists the objective values per iteration.
type HistoryReport struct {
	Objective []float64 `yaml:"objective"`
	Surrogate []float64 `yaml:"surrogate,omitempty"`
}

// NewReport collects the summary of model fitted to data under cfg.
// Correlations are included once computed on the model.
func NewReport(kind signmf.Kind, cfg signmf.Config, model signmf.Model, data *signmf.CountMatrix) *Report {
	rep := &Report{
		Kind:                kind.String(),
		Config:              cfg,
		Status:              model.Status().String(),
		Iterations:          model.Iterations(),
		Objective:           model.ObjectiveFunction(),
		Direction:           model.Objective().String(),
		Loglikelihood:       model.Loglikelihood(),
		BIC:                 model.BIC(),
		ReconstructionError: model.ReconstructionError(),
		SignatureNames:      model.SignatureNames(),
		SampleErrors:        make(map[string]float64, len(data.SampleNames)),
	}
	for d, e := range model.SamplewiseReconstructionErrors() {
		rep.SampleErrors[data.SampleNames[d]] = e
	}
	if h := model.History(); len(h.Objective) > 0 {
		rep.History = &HistoryReport{Objective: h.Objective, Surrogate: h.Surrogate}
	}
	if corr, ok := model.(*signmf.CorrNMF); ok {
		v := corr.Parameters().Variance
		rep.Variance = &v
	}
	if c, ok := model.(correlated); ok {
		rep.SignatureCorrelation = rows(c.SignatureCorrelation())
		rep.SampleCorrelation = rows(c.SampleCorrelation())
	}
	return rep
}

// correlated is implemented by the models that keep computed correlations.
type correlated interface {
	SignatureCorrelation() *mat.SymDense
	SampleCorrelation() *mat.SymDense
}

func rows(m *mat.SymDense) [][]float64 {
	if m == nil {
		return nil
	}
	n := m.SymmetricDim()
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
		for j := range out[i] {
			out[i][j] = m.At(i, j)
		}
	}
	return out
}

// WriteReport encodes rep as YAML.
func WriteReport(w io.Writer, rep *Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(rep); err != nil {
		return err
	}
	return enc.Close()
}
