package initialization

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// separable picks k normalized samples as signatures with the successive
// projection algorithm: take the sample with the largest residual norm,
// then project all residuals onto the orthogonal complement of it.
func separable(x *mat.Dense, k int) (w, h *mat.Dense) {
	nFeatures, nSamples := x.Dims()

	normalized := mat.NewDense(nFeatures, nSamples, nil)
	totals := make([]float64, nSamples)
	col := make([]float64, nFeatures)
	for d := 0; d < nSamples; d++ {
		mat.Col(col, d, x)
		totals[d] = floats.Sum(col)
		if totals[d] > 0 {
			floats.Scale(1/totals[d], col)
		}
		normalized.SetCol(d, col)
	}
	residual := mat.DenseCopyOf(normalized)

	w = mat.NewDense(nFeatures, k, nil)
	chosen := make(map[int]bool, k)
	for j := 0; j < k; j++ {
		best, bestNorm := -1, 0.0
		for d := 0; d < nSamples; d++ {
			if chosen[d] {
				continue
			}
			mat.Col(col, d, residual)
			if n := floats.Norm(col, 2); best < 0 || n > bestNorm {
				best, bestNorm = d, n
			}
		}
		if best < 0 {
			// More signatures than samples; the remaining columns are
			// floored to uniform by normalize.
			break
		}
		chosen[best] = true
		mat.Col(col, best, normalized)
		w.SetCol(j, col)

		if bestNorm == 0 {
			continue
		}
		dir := mat.NewVecDense(nFeatures, mat.Col(nil, best, residual))
		dir.ScaleVec(1/bestNorm, dir)
		var proj mat.Dense
		proj.Mul(dir.T(), residual)
		var update mat.Dense
		update.Mul(dir, &proj)
		residual.Sub(residual, &update)
	}

	h = mat.NewDense(k, nSamples, nil)
	for d, total := range totals {
		for j := 0; j < k; j++ {
			h.Set(j, d, total/float64(k))
		}
	}
	return w, h
}
