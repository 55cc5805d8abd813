// Package design expands a model term specification and a data table into
// a numeric design matrix with an intercept, main-effect columns, and
// elementwise-product interaction columns.  The expansion itself is purely
// numeric; formula strings are handled by a thin adapter (ParseFormula)
// that never touches the matrix construction.
package design

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/xurannancy/micromacro/micromacro"
)

// Spec lists the terms of a regression model: main effects in the order
// their columns should appear, and interactions as ordered lists of two or
// more main-effect names whose columns multiply elementwise.
type Spec struct {
	MainEffects  []string
	Interactions [][]string
}

// String renders the right-hand side of the model, e.g. "x1 + x2 + x1:x2".
func (s Spec) String() string {
	terms := make([]string, 0, len(s.MainEffects)+len(s.Interactions))
	terms = append(terms, s.MainEffects...)
	for _, ia := range s.Interactions {
		terms = append(terms, strings.Join(ia, ":"))
	}
	return strings.Join(terms, " + ")
}

// Expand builds the design matrix for spec from the named data columns.
// The output has an intercept column of ones, one column per main effect in
// first-appearance order, then one column per interaction in declared
// order, so the column count is 1 + main effects + interactions.  The
// second return value carries the column labels, "(Intercept)" first.
//
// Referencing a name absent from the table, or an interaction constituent
// that is not a declared main effect, is an UnknownTermError.
func Expand(spec Spec, names []string, cols [][]float64) (*mat.Dense, []string, error) {

	if len(names) != len(cols) {
		return nil, nil, &micromacro.DimensionError{Context: "design table names", Want: len(cols), Got: len(names)}
	}
	if len(cols) == 0 {
		return nil, nil, &micromacro.InputError{Msg: "design table has no columns"}
	}
	n := len(cols[0])
	for j, c := range cols[1:] {
		if len(c) != n {
			return nil, nil, &micromacro.DimensionError{Context: "design column " + names[j+1], Want: n, Got: len(c)}
		}
	}

	byName := make(map[string][]float64, len(names))
	for j, na := range names {
		byName[na] = cols[j]
	}

	// Main effects in first-appearance order; repeats collapse to the
	// first occurrence.
	var labels []string
	var out [][]float64
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	labels = append(labels, "(Intercept)")
	out = append(out, ones)

	main := make(map[string][]float64, len(spec.MainEffects))
	for _, term := range spec.MainEffects {
		if _, ok := main[term]; ok {
			continue
		}
		c, ok := byName[term]
		if !ok {
			return nil, nil, &micromacro.UnknownTermError{Term: term}
		}
		main[term] = c
		labels = append(labels, term)
		out = append(out, c)
	}

	for _, ia := range spec.Interactions {
		if len(ia) < 2 {
			return nil, nil, &micromacro.InputError{Msg: "interaction " + strings.Join(ia, ":") + " needs at least two terms"}
		}
		prod := make([]float64, n)
		for i := range prod {
			prod[i] = 1
		}
		for _, term := range ia {
			c, ok := main[term]
			if !ok {
				return nil, nil, &micromacro.UnknownTermError{Term: term}
			}
			for i := range prod {
				prod[i] *= c[i]
			}
		}
		labels = append(labels, strings.Join(ia, ":"))
		out = append(out, prod)
	}

	u := mat.NewDense(n, len(out), nil)
	for j, c := range out {
		u.SetCol(j, c)
	}

	return u, labels, nil
}

// ExpandTable is Expand applied to a data table.
func ExpandTable(spec Spec, tbl *micromacro.Table) (*mat.Dense, []string, error) {
	return Expand(spec, tbl.Names(), tbl.Cols())
}

// ParseFormula converts an R-style formula such as
//
//	y ~ x1 + x2 + x1:x2
//
// into the outcome name and a term specification.  Terms containing a
// colon become interactions; all other terms are main effects.  The parser
// does not validate term names against any table; Expand does that.
func ParseFormula(formula string) (string, Spec, error) {

	parts := strings.SplitN(formula, "~", 2)
	if len(parts) != 2 {
		return "", Spec{}, &micromacro.InputError{Msg: "formula must have the form outcome ~ terms"}
	}
	outcome := strings.TrimSpace(parts[0])
	if outcome == "" {
		return "", Spec{}, &micromacro.InputError{Msg: "formula has no outcome"}
	}

	var spec Spec
	for _, term := range strings.Split(parts[1], "+") {
		term = strings.TrimSpace(term)
		if term == "" {
			return "", Spec{}, &micromacro.InputError{Msg: "formula has an empty term"}
		}
		if strings.Contains(term, ":") {
			var ia []string
			for _, v := range strings.Split(term, ":") {
				v = strings.TrimSpace(v)
				if v == "" {
					return "", Spec{}, &micromacro.InputError{Msg: "interaction " + term + " has an empty constituent"}
				}
				ia = append(ia, v)
			}
			spec.Interactions = append(spec.Interactions, ia)
		} else {
			spec.MainEffects = append(spec.MainEffects, term)
		}
	}

	return outcome, spec, nil
}
