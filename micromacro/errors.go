// Package micromacro holds types shared by the micro-macro estimation
// packages: the error taxonomy and the named-column data table passed
// between the adjustment and inference stages.
package micromacro

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// InputError indicates that the input data violate a precondition of the
// estimator: mismatched row counts, an individual record whose group id is
// not in the group table, a duplicated group id, or a group with no
// individual records.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string {
	return "micromacro: " + e.Msg
}

// SingularMatrixError indicates that a matrix required by the computation
// could not be factorized.  Matrix names the matrix.  Group is the index of
// the group whose composite matrix failed, or -1 when the failure is not
// specific to a group.
//
// Singular matrices are surfaced, never silently regularized: a
// pseudo-inverse would mask model mis-specification such as collinear
// predictors or more group covariates than informative groups.
type SingularMatrixError struct {
	Matrix string
	Group  int
}

func (e *SingularMatrixError) Error() string {
	if e.Group >= 0 {
		return fmt.Sprintf("micromacro: matrix %s is singular (group %d)", e.Matrix, e.Group)
	}
	return fmt.Sprintf("micromacro: matrix %s is singular", e.Matrix)
}

// UnknownTermError indicates that a model specification references a term
// that is not a declared main effect or is missing from the data table.
type UnknownTermError struct {
	Term string
}

func (e *UnknownTermError) Error() string {
	return fmt.Sprintf("micromacro: unknown term %q in model specification", e.Term)
}

// DimensionError indicates that two stages of the computation disagree
// about a dimension (number of rows, predictors, covariates, or
// coefficients).
type DimensionError struct {
	Context string
	Want    int
	Got     int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("micromacro: %s: dimension %d, want %d", e.Context, e.Got, e.Want)
}

// SolveError maps a gonum factorize/solve error to the package taxonomy.
// A finite condition number means the system was solved but is
// ill-conditioned; near-singular matrices are not specially flagged, so
// those solutions are accepted.  Exact singularity becomes a
// SingularMatrixError naming the matrix, with the group index or -1.
func SolveError(err error, matrix string, group int) error {
	if err == nil {
		return nil
	}
	if c, ok := err.(mat.Condition); ok && !math.IsInf(float64(c), 1) {
		return nil
	}
	return &SingularMatrixError{Matrix: matrix, Group: group}
}

func inputErrorf(format string, args ...interface{}) error {
	return &InputError{Msg: fmt.Sprintf(format, args...)}
}

// joinNames is a helper shared by error messages that list column names.
func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
