package ols

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/xurannancy/micromacro/micromacro"
)

// Simple regression with hand-computed results:
//
//	x = (0,1,2,3), y = (0,1,1,2)
//	b = (0.1, 0.6), RSS = 0.2, TSS = 2, R^2 = 0.9
//	(U'U)^-1 = [[0.7,-0.3],[-0.3,0.2]]
func handFit(t *testing.T) (*mat.Dense, *FitResult) {
	t.Helper()
	u := mat.NewDense(4, 2, []float64{
		1, 0,
		1, 1,
		1, 2,
		1, 3,
	})
	r, err := Fit(u, []string{"(Intercept)", "x"}, []float64{0, 1, 1, 2})
	require.NoError(t, err)
	return u, r
}

func TestFitHandValues(t *testing.T) {

	_, r := handFit(t)

	require.True(t, floats.EqualApprox([]float64{0.1, 0.6}, r.Coeff, 1e-12))
	require.True(t, floats.EqualApprox([]float64{0.1, 0.7, 1.3, 1.9}, r.Fitted, 1e-12))
	require.True(t, floats.EqualApprox([]float64{-0.1, 0.3, -0.3, 0.1}, r.Resid, 1e-12))

	require.Equal(t, 2, r.DF)
	require.InDelta(t, 0.9, r.R2, 1e-12)
	require.InDelta(t, 0.85, r.AdjR2, 1e-12)

	// SE_j = sqrt(sigma^2 * (U'U)^-1_jj) with sigma^2 = 0.1.
	require.InDelta(t, math.Sqrt(0.07), r.StdErr[0], 1e-12)
	require.InDelta(t, math.Sqrt(0.02), r.StdErr[1], 1e-12)

	require.InDelta(t, 18.0, r.F, 1e-9)
	require.Equal(t, 1, r.FDF1)
	require.Equal(t, 2, r.FDF2)
	require.InDelta(t, 0.051317, r.FPValue, 1e-5)

	inv := r.XtXInv()
	require.InDelta(t, 0.7, inv.At(0, 0), 1e-12)
	require.InDelta(t, -0.3, inv.At(0, 1), 1e-12)
	require.InDelta(t, 0.2, inv.At(1, 1), 1e-12)
}

func TestFitExact(t *testing.T) {

	// Noise-free data is reproduced exactly.
	u := mat.NewDense(5, 2, []float64{
		1, 1,
		1, 2,
		1, 3,
		1, 4,
		1, 5,
	})
	y := make([]float64, 5)
	for i := range y {
		y[i] = 1 + 2*float64(i+1)
	}

	r, err := Fit(u, []string{"(Intercept)", "x"}, y)
	require.NoError(t, err)
	require.True(t, floats.EqualApprox([]float64{1, 2}, r.Coeff, 1e-10))
	require.InDelta(t, 0, floats.Norm(r.Resid, 2), 1e-10)
	require.InDelta(t, 1, r.R2, 1e-12)
}

func TestFitErrors(t *testing.T) {

	u := mat.NewDense(4, 2, []float64{1, 0, 1, 1, 1, 2, 1, 3})

	var de *micromacro.DimensionError
	_, err := Fit(u, []string{"a", "b"}, []float64{1, 2, 3})
	require.ErrorAs(t, err, &de)

	_, err = Fit(u, []string{"a"}, []float64{1, 2, 3, 4})
	require.ErrorAs(t, err, &de)

	// Rank-deficient design: duplicated column.
	ud := mat.NewDense(4, 2, []float64{1, 1, 1, 1, 1, 1, 1, 1})
	var sme *micromacro.SingularMatrixError
	_, err = Fit(ud, []string{"a", "b"}, []float64{1, 2, 3, 4})
	require.ErrorAs(t, err, &sme)
	require.Equal(t, "U'U", sme.Matrix)

	// More coefficients than observations.
	var ie *micromacro.InputError
	u2 := mat.NewDense(2, 2, []float64{1, 0, 1, 1})
	_, err = Fit(u2, []string{"a", "b"}, []float64{1, 2})
	require.ErrorAs(t, err, &ie)
}
