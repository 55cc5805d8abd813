package inference

import (
	"log"

	"github.com/xurannancy/micromacro/design"
	"github.com/xurannancy/micromacro/micromacro"
	"github.com/xurannancy/micromacro/ols"
)

// Model drives the second-stage regression of a group-level outcome on an
// adjusted-means table: design expansion, least squares, and the robust
// inference layer.
type Model struct {
	spec    design.Spec
	table   *micromacro.Table
	y       []float64
	outcome string
	unequal *bool
	logger  *log.Logger
}

// NewModel returns a model regressing y on the terms of spec, drawn from
// the columns of table.  y must have one value per table row.
func NewModel(spec design.Spec, table *micromacro.Table, y []float64) *Model {
	return &Model{
		spec:    spec,
		table:   table,
		y:       y,
		outcome: "y",
	}
}

// OutcomeName sets the outcome label used in the model call line.
func (m *Model) OutcomeName(name string) *Model {
	m.outcome = name
	return m
}

// UnequalGroups supplies the unequal-group-sizes indicator that selects
// the reported standard errors.  When the indicator is nil or false the
// report uses nominal standard errors; when true it uses robust ones,
// since unequal group sizes are the primary heteroskedasticity source in
// this design.  Callers wanting robust errors regardless can pass a true
// indicator explicitly.
func (m *Model) UnequalGroups(u *bool) *Model {
	m.unequal = u
	return m
}

// Log takes a Logger value that will be used to log the fit.
func (m *Model) Log(l *log.Logger) *Model {
	m.logger = l
	return m
}

// Fit expands the design matrix, fits the least squares stage, and
// returns the inference report.
func (m *Model) Fit() (*Report, error) {

	if len(m.y) != m.table.NumRows() {
		return nil, &micromacro.DimensionError{
			Context: "outcome vector",
			Want:    m.table.NumRows(),
			Got:     len(m.y),
		}
	}

	u, labels, err := design.ExpandTable(m.spec, m.table)
	if err != nil {
		return nil, err
	}

	fit, err := ols.Fit(u, labels, m.y)
	if err != nil {
		return nil, err
	}

	robust := m.unequal != nil && *m.unequal

	rpt, err := Analyze(u, fit, robust)
	if err != nil {
		return nil, err
	}
	rpt.Call = m.outcome + " ~ " + m.spec.String()

	if m.logger != nil {
		m.logger.Printf("fit %s: %d groups, %d coefficients, %d df, robust=%v",
			rpt.Call, m.table.NumRows(), len(labels), rpt.DF, robust)
	}

	return rpt, nil
}

// FitModel fits the second-stage regression with default settings.
// unequalGroups may be nil; see Model.UnequalGroups for the selection
// policy.
func FitModel(spec design.Spec, table *micromacro.Table, y []float64, unequalGroups *bool) (*Report, error) {
	return NewModel(spec, table, y).UnequalGroups(unequalGroups).Fit()
}
