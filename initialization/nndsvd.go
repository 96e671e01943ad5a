package initialization

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"math"
)

// nndsvd implements nonnegative double singular value decomposition
// (Boutsidis & Gallopoulos, 2008). NNDSVDA fills the zeros with the mean
// count, NNDSVDAR with small random values.
func nndsvd(x *mat.Dense, k int, method Method, src rand.Source) (w, h *mat.Dense) {
	nFeatures, nSamples := x.Dims()

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return flat(x, k)
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	w = mat.NewDense(nFeatures, k, nil)
	h = mat.NewDense(k, nSamples, nil)
	uCol := make([]float64, nFeatures)
	vCol := make([]float64, nSamples)

	for j := 0; j < k && j < len(values); j++ {
		mat.Col(uCol, j, &u)
		mat.Col(vCol, j, &v)

		// The leading singular vectors of a non-negative matrix can be
		// chosen non-negative.
		if j == 0 {
			s := math.Sqrt(values[0])
			for i, x := range uCol {
				uCol[i] = s * math.Abs(x)
			}
			for i, x := range vCol {
				vCol[i] = s * math.Abs(x)
			}
			w.SetCol(0, uCol)
			h.SetRow(0, vCol)
			continue
		}

		uPos, uNeg := splitSigns(uCol)
		vPos, vNeg := splitSigns(vCol)
		uPosNorm, uNegNorm := floats.Norm(uPos, 2), floats.Norm(uNeg, 2)
		vPosNorm, vNegNorm := floats.Norm(vPos, 2), floats.Norm(vNeg, 2)

		uu, vv, uNorm, vNorm := uNeg, vNeg, uNegNorm, vNegNorm
		if uPosNorm*vPosNorm > uNegNorm*vNegNorm {
			uu, vv, uNorm, vNorm = uPos, vPos, uPosNorm, vPosNorm
		}
		if uNorm == 0 || vNorm == 0 {
			continue
		}
		lambda := math.Sqrt(values[j] * uNorm * vNorm)
		floats.Scale(lambda/uNorm, uu)
		floats.Scale(lambda/vNorm, vv)
		w.SetCol(j, uu)
		h.SetRow(j, vv)
	}

	zero := func(_, _ int, x float64) float64 {
		if x < epsilon {
			return 0
		}
		return x
	}
	w.Apply(zero, w)
	h.Apply(zero, h)

	switch method {
	case NNDSVDA:
		avg := meanCount(x)
		fill := func(_, _ int, x float64) float64 {
			if x == 0 {
				return avg
			}
			return x
		}
		w.Apply(fill, w)
		h.Apply(fill, h)
	case NNDSVDAR:
		avg := meanCount(x)
		rnd := rand.New(src)
		fill := func(_, _ int, x float64) float64 {
			if x == 0 {
				return avg * rnd.Float64() / 100
			}
			return x
		}
		w.Apply(fill, w)
		h.Apply(fill, h)
	}
	return w, h
}

// splitSigns returns the positive part and the negated negative part of x.
func splitSigns(x []float64) (pos, neg []float64) {
	pos = make([]float64, len(x))
	neg = make([]float64, len(x))
	for i, v := range x {
		if v > 0 {
			pos[i] = v
		} else {
			neg[i] = -v
		}
	}
	return pos, neg
}
