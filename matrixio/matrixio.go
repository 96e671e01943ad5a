// Package matrixio reads and writes labeled matrices as tab-separated text
// and writes fit reports as YAML.
//
// A labeled matrix file has a header row whose first field is a corner
// label followed by the column labels. Every following row starts with its
// row label, followed by one value per column:
//
//	Type	sample1	sample2
//	A[C>A]A	12	3
//	A[C>A]C	0	7
package matrixio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"gonum.org/v1/gonum/mat"
	"io"
	"signmf"
	"strconv"
)

// ErrFormat indicates malformed tab-separated input.
var ErrFormat = errors.New("matrixio: malformed matrix")

// Labeled is a dense matrix with row and column labels.
type Labeled struct {
	Corner    string
	Matrix    *mat.Dense
	RowLabels []string
	ColLabels []string
}

// Read parses a tab-separated labeled matrix.
func Read(r io.Reader) (*Labeled, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.Comment = '#'
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFormat, err)
	}
	if len(records) < 2 || len(records[0]) < 2 {
		return nil, fmt.Errorf("%w: need a header and at least one row and column", ErrFormat)
	}

	header := records[0]
	nRows, nCols := len(records)-1, len(header)-1
	lm := &Labeled{
		Corner:    header[0],
		Matrix:    mat.NewDense(nRows, nCols, nil),
		RowLabels: make([]string, nRows),
		ColLabels: append([]string(nil), header[1:]...),
	}
	for i, rec := range records[1:] {
		lm.RowLabels[i] = rec[0]
		for j, field := range rec[1:] {
			x, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: row %q column %q: %w", ErrFormat, rec[0], header[j+1], err)
			}
			lm.Matrix.Set(i, j, x)
		}
	}
	return lm, nil
}

// Write writes m as a tab-separated labeled matrix.
func Write(w io.Writer, corner string, m mat.Matrix, rowLabels, colLabels []string) error {
	r, c := m.Dims()
	if len(rowLabels) != r || len(colLabels) != c {
		return fmt.Errorf("%w: %d row and %d column labels for a %dx%d matrix",
			ErrFormat, len(rowLabels), len(colLabels), r, c)
	}
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := cw.Write(append([]string{corner}, colLabels...)); err != nil {
		return err
	}
	rec := make([]string, c+1)
	for i := 0; i < r; i++ {
		rec[0] = rowLabels[i]
		for j := 0; j < c; j++ {
			rec[j+1] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCounts reads a count table with mutation types as rows and samples as
// columns and validates it.
func ReadCounts(r io.Reader) (*signmf.CountMatrix, error) {
	lm, err := Read(r)
	if err != nil {
		return nil, err
	}
	return signmf.NewCountMatrix(lm.Matrix, lm.RowLabels, lm.ColLabels)
}

// ReadSignatures reads a signature table with mutation types as rows and
// signature names as columns.
func ReadSignatures(r io.Reader) (*signmf.LabeledSignatures, error) {
	lm, err := Read(r)
	if err != nil {
		return nil, err
	}
	return &signmf.LabeledSignatures{
		Matrix:        lm.Matrix,
		MutationTypes: lm.RowLabels,
		Names:         lm.ColLabels,
	}, nil
}
