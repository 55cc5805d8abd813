// Package inference computes coefficient-level statistics for the
// second-stage regression of a micro-macro model.  Because group sizes may
// differ, the residual variance need not be constant across groups, so the
// package carries a heteroskedasticity-consistent (sandwich) coefficient
// covariance alongside the nominal one and selects between them by the
// unequal-group-sizes policy.
package inference

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/xurannancy/micromacro/micromacro"
	"github.com/xurannancy/micromacro/ols"
)

// Coefficient holds the per-coefficient inferential statistics.  T, P and
// R are computed from the standard error selected for the report (robust
// or nominal); both standard errors are always present.
type Coefficient struct {
	Name      string
	Estimate  float64
	NominalSE float64
	RobustSE  float64
	DF        int
	T         float64
	P         float64
	R         float64
}

// Report is the inferential summary of a fitted micro-macro model.
type Report struct {

	// Call is the model formula, e.g. "y ~ x1 + x2 + z1".
	Call string

	// Robust records which standard errors the T/P/R statistics use.
	Robust bool

	Coefficients []Coefficient

	// Residuals and leverages of the second-stage fit, one per group.
	Resid    []float64
	Leverage []float64

	// Fit diagnostics copied through from the least squares stage.
	DF      int
	R2      float64
	AdjR2   float64
	F       float64
	FDF1    int
	FDF2    int
	FPValue float64
}

// Analyze computes the sandwich coefficient covariance for the fit of u
// and derives t, two-sided p, and effect size r for every coefficient,
// from the robust standard errors when robust is true and from the nominal
// ones otherwise.
//
// The sandwich uses leverage-adjusted squared residuals d_i =
// e_i^2/(1-h_i), where h_i is the i-th diagonal of the projection matrix;
// dividing by 1-h_i compensates for the leverage-induced shrinkage of the
// residuals that a naive squared-residual sandwich ignores.
func Analyze(u *mat.Dense, fit *ols.FitResult, robust bool) (*Report, error) {

	n, k := u.Dims()
	if len(fit.Coeff) != k {
		return nil, &micromacro.DimensionError{Context: "coefficient vector", Want: k, Got: len(fit.Coeff)}
	}
	if len(fit.Resid) != n {
		return nil, &micromacro.DimensionError{Context: "residual vector", Want: n, Got: len(fit.Resid)}
	}
	if fit.DF != n-k {
		return nil, &micromacro.DimensionError{Context: "residual degrees of freedom", Want: n - k, Got: fit.DF}
	}
	xtxInv := fit.XtXInv()
	if xtxInv == nil {
		return nil, &micromacro.InputError{Msg: "fit result does not carry the U'U inverse"}
	}

	// Leverages h_i = u_i (U'U)^-1 u_i' and adjusted squared residuals.
	h := make([]float64, n)
	d := make([]float64, n)
	for i := 0; i < n; i++ {
		for a := 0; a < k; a++ {
			var v float64
			for b := 0; b < k; b++ {
				v += xtxInv.At(a, b) * u.At(i, b)
			}
			h[i] += u.At(i, a) * v
		}
		d[i] = fit.Resid[i] * fit.Resid[i] / (1 - h[i])
	}

	// Sandwich covariance (U'U)^-1 U' diag(d) U (U'U)^-1.
	du := mat.NewDense(n, k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			du.Set(i, j, d[i]*u.At(i, j))
		}
	}
	var meat, half, vc mat.Dense
	meat.Mul(u.T(), du)
	half.Mul(xtxInv, &meat)
	vc.Mul(&half, xtxInv)

	df := fit.DF
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}

	coefs := make([]Coefficient, k)
	for j := 0; j < k; j++ {
		c := Coefficient{
			Name:      fit.Names[j],
			Estimate:  fit.Coeff[j],
			NominalSE: fit.StdErr[j],
			RobustSE:  math.Sqrt(vc.At(j, j)),
			DF:        df,
		}
		se := c.NominalSE
		if robust {
			se = c.RobustSE
		}
		c.T = c.Estimate / se
		c.P = 2 * tdist.CDF(-math.Abs(c.T))
		c.R = math.Sqrt(c.T * c.T / (c.T*c.T + float64(df)))
		coefs[j] = c
	}

	return &Report{
		Robust:       robust,
		Coefficients: coefs,
		Resid:        fit.Resid,
		Leverage:     h,
		DF:           df,
		R2:           fit.R2,
		AdjR2:        fit.AdjR2,
		F:            fit.F,
		FDF1:         fit.FDF1,
		FDF2:         fit.FDF2,
		FPValue:      fit.FPValue,
	}, nil
}
