// Command signmf fits mutational signature models to a mutation count table.
//
//	signmf fit --counts counts.tsv --config fit.toml --outdir results
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"

	"signmf"
	"signmf/initialization"
	"signmf/matrixio"
)

// fileConfig is the layout of the TOML configuration file:
//
//	kind = "corrnmf"
//
//	[model]
//	n_signatures = 4
//	dim_embeddings = 2
//	max_iterations = 2000
//
//	[init]
//	seed = 7
type fileConfig struct {
	Kind  string                 `toml:"kind"`
	Model signmf.Config          `toml:"model"`
	Init  initialization.Options `toml:"init"`
}

type fitFlags struct {
	counts     string
	config     string
	signatures string
	outdir     string

	kind          string
	nSignatures   int
	dimEmbeddings int
	initMethod    string
	minIterations int
	maxIterations int
	tol           float64
	workers       int
	seed          uint64

	history bool
	verbose bool
	debug   bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "signmf",
		Short:        "Fit mutational signature models",
		SilenceUsage: true,
	}
	root.AddCommand(newFitCommand())
	return root
}

func newFitCommand() *cobra.Command {
	var f fitFlags
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a model to a tab-separated mutation count table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFit(cmd, &f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.counts, "counts", "", "mutation count table, mutation types as rows and samples as columns")
	fl.StringVar(&f.config, "config", "", "TOML configuration file")
	fl.StringVar(&f.signatures, "signatures", "", "signature table to keep fixed during the fit")
	fl.StringVar(&f.outdir, "outdir", ".", "directory for signatures.tsv, exposures.tsv and report.yaml")
	fl.StringVar(&f.kind, "kind", "corrnmf", "model kind: corrnmf or nmf")
	fl.IntVarP(&f.nSignatures, "n-signatures", "k", 1, "number of signatures")
	fl.IntVar(&f.dimEmbeddings, "dim-embeddings", 0, "embedding dimension, 0 means the number of signatures")
	fl.StringVar(&f.initMethod, "init", string(initialization.NNDSVD), "signature initialization method")
	fl.IntVar(&f.minIterations, "min-iterations", 500, "minimum number of iterations")
	fl.IntVar(&f.maxIterations, "max-iterations", 10000, "maximum number of iterations")
	fl.Float64Var(&f.tol, "tol", 1e-7, "relative objective change below which the fit has converged")
	fl.IntVar(&f.workers, "workers", 0, "parallel embedding solves, 0 means GOMAXPROCS")
	fl.Uint64Var(&f.seed, "seed", 0, "random seed")
	fl.BoolVar(&f.history, "history", false, "record the objective of every iteration in the report")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "log every 100th iteration")
	fl.BoolVar(&f.debug, "debug", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("counts")
	return cmd
}

// loadConfig reads the optional configuration file and lets explicitly set
// flags override it.
func loadConfig(cmd *cobra.Command, f *fitFlags) (*fileConfig, error) {
	cfg := &fileConfig{Kind: f.kind, Model: signmf.DefaultConfig(f.nSignatures)}
	cfg.Model.DimEmbeddings = 0
	if f.config != "" {
		b, err := os.ReadFile(f.config)
		if err != nil {
			return nil, err
		}
		if err := toml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.config, err)
		}
	}

	changed := cmd.Flags().Changed
	if changed("kind") {
		cfg.Kind = f.kind
	}
	if changed("n-signatures") {
		cfg.Model.NSignatures = f.nSignatures
	}
	if changed("dim-embeddings") {
		cfg.Model.DimEmbeddings = f.dimEmbeddings
	}
	if changed("init") {
		cfg.Model.InitMethod = initialization.Method(f.initMethod)
	}
	if changed("min-iterations") {
		cfg.Model.MinIterations = f.minIterations
	}
	if changed("max-iterations") {
		cfg.Model.MaxIterations = f.maxIterations
	}
	if changed("tol") {
		cfg.Model.Tol = f.tol
	}
	if changed("workers") {
		cfg.Model.Workers = f.workers
	}
	if changed("seed") {
		cfg.Init.Seed = f.seed
	}
	return cfg, nil
}

func runFit(cmd *cobra.Command, f *fitFlags) error {
	level := slog.LevelInfo
	if f.debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}
	cfg.Model.Logger = logger
	kind, err := signmf.ParseKind(cfg.Kind)
	if err != nil {
		return err
	}

	data, err := readFile(f.counts, matrixio.ReadCounts)
	if err != nil {
		return err
	}
	opts := signmf.FitOptions{Init: cfg.Init, History: f.history, Verbose: f.verbose}
	if f.signatures != "" {
		if opts.Given.Signatures, err = readFile(f.signatures, matrixio.ReadSignatures); err != nil {
			return err
		}
	}

	model, err := signmf.New(kind, cfg.Model)
	if err != nil {
		return err
	}
	logger.Info("fitting", "kind", kind, "signatures", cfg.Model.NSignatures, "counts", f.counts)
	if err := model.Fit(data, opts); err != nil {
		return err
	}
	logger.Info("fit done", "status", model.Status(), "iterations", model.Iterations(), "objective", model.ObjectiveFunction())

	for _, target := range []signmf.CorrelationTarget{signmf.CorrelateSignatures, signmf.CorrelateSamples} {
		switch m := model.(type) {
		case *signmf.CorrNMF:
			err = m.ComputeCorrelationScaled(target)
		case *signmf.StandardNMF:
			err = m.ComputeCorrelation(target)
		}
		if err != nil {
			return err
		}
	}
	return writeResults(f.outdir, kind, cfg.Model, model, data)
}

func writeResults(dir string, kind signmf.Kind, cfg signmf.Config, model signmf.Model, data *signmf.CountMatrix) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	names := model.SignatureNames()
	if err := writeMatrix(filepath.Join(dir, "signatures.tsv"), "Type", model.Signatures(), data.MutationTypes, names); err != nil {
		return err
	}
	if err := writeMatrix(filepath.Join(dir, "exposures.tsv"), "Signature", model.Exposures(), names, data.SampleNames); err != nil {
		return err
	}

	out, err := os.Create(filepath.Join(dir, "report.yaml"))
	if err != nil {
		return err
	}
	defer out.Close()
	if err := matrixio.WriteReport(out, matrixio.NewReport(kind, cfg, model, data)); err != nil {
		return err
	}
	return out.Close()
}

func writeMatrix(path, corner string, m *mat.Dense, rowLabels, colLabels []string) error {
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	defer out.Close()
	if err := matrixio.Write(out, corner, m, rowLabels, colLabels); err != nil {
		return err
	}
	return out.Close()
}

func readFile[T any](path string, read func(io.Reader) (T, error)) (T, error) {
	var zero T
	in, err := os.Open(path)
	if err != nil {
		return zero, err
	}
	defer in.Close()
	v, err := read(in)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", path, err)
	}
	return v, nil
}
