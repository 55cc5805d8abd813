// Package ols fits a linear model by ordinary least squares and reports
// the nominal (homoskedastic) inferential quantities.  The normal
// equations are solved through a Cholesky factorization of U'U, which is
// retained in the result for reuse by downstream leverage and sandwich
// computations.
package ols

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/xurannancy/micromacro/micromacro"
)

// FitResult holds an ordinary least squares fit.  Standard errors assume
// i.i.d. Gaussian errors.  Fields are set once by Fit; treat them as
// read-only.
type FitResult struct {

	// Column labels of the design matrix.
	Names []string

	// Coefficient estimates, fitted values, and residuals.
	Coeff  []float64
	Fitted []float64
	Resid  []float64

	// Nominal standard errors of the coefficients.
	StdErr []float64

	// Residual degrees of freedom, n - k.
	DF int

	// Coefficient of determination and its adjusted form.
	R2    float64
	AdjR2 float64

	// Overall F-statistic with its numerator and denominator degrees of
	// freedom, and its upper tail probability.  NaN when the model has
	// only an intercept.
	F       float64
	FDF1    int
	FDF2    int
	FPValue float64

	xtxInv *mat.SymDense
}

// XtXInv returns (U'U)^-1 from the fit, for leverage and sandwich
// covariance computations.
func (r *FitResult) XtXInv() *mat.SymDense {
	return r.xtxInv
}

// Fit estimates the linear model y = U b + e by least squares.  u is the
// n x k design matrix with column labels names, and y has one response per
// row of u.  A rank-deficient design matrix is a SingularMatrixError.
func Fit(u *mat.Dense, names []string, y []float64) (*FitResult, error) {

	n, k := u.Dims()
	if len(y) != n {
		return nil, &micromacro.DimensionError{Context: "response vector", Want: n, Got: len(y)}
	}
	if len(names) != k {
		return nil, &micromacro.DimensionError{Context: "design column labels", Want: k, Got: len(names)}
	}
	if n <= k {
		return nil, &micromacro.InputError{Msg: "least squares requires more observations than coefficients"}
	}

	var xtxd mat.Dense
	xtxd.Mul(u.T(), u)
	xtx := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			xtx.SetSym(i, j, xtxd.At(i, j))
		}
	}

	var chol mat.Cholesky
	if !chol.Factorize(xtx) {
		return nil, &micromacro.SingularMatrixError{Matrix: "U'U", Group: -1}
	}

	yv := mat.NewVecDense(n, y)
	var uty mat.VecDense
	uty.MulVec(u.T(), yv)

	var bv mat.VecDense
	if err := micromacro.SolveError(chol.SolveVecTo(&bv, &uty), "U'U", -1); err != nil {
		return nil, err
	}
	coeff := make([]float64, k)
	for j := range coeff {
		coeff[j] = bv.AtVec(j)
	}

	xtxInv := mat.NewSymDense(k, nil)
	if err := micromacro.SolveError(chol.InverseTo(xtxInv), "U'U", -1); err != nil {
		return nil, err
	}

	// Fitted values, residuals, and sums of squares.
	var fvv mat.VecDense
	fvv.MulVec(u, &bv)
	fitted := make([]float64, n)
	resid := make([]float64, n)
	var ybar, rss, tss float64
	for i := range y {
		ybar += y[i]
	}
	ybar /= float64(n)
	for i := range y {
		fitted[i] = fvv.AtVec(i)
		resid[i] = y[i] - fitted[i]
		rss += resid[i] * resid[i]
		d := y[i] - ybar
		tss += d * d
	}

	df := n - k
	sigma2 := rss / float64(df)
	stderr := make([]float64, k)
	for j := range stderr {
		stderr[j] = math.Sqrt(sigma2 * xtxInv.At(j, j))
	}

	r := &FitResult{
		Names:  names,
		Coeff:  coeff,
		Fitted: fitted,
		Resid:  resid,
		StdErr: stderr,
		DF:     df,
		R2:     1 - rss/tss,
		FDF1:   k - 1,
		FDF2:   df,
		xtxInv: xtxInv,
	}
	r.AdjR2 = 1 - (1-r.R2)*float64(n-1)/float64(df)

	if k > 1 {
		r.F = ((tss - rss) / float64(k-1)) / sigma2
		fdist := distuv.F{D1: float64(k - 1), D2: float64(df)}
		r.FPValue = fdist.Survival(r.F)
	} else {
		r.F = math.NaN()
		r.FPValue = math.NaN()
	}

	return r, nil
}
