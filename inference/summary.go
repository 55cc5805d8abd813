package inference

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"
)

// Summary returns the report as a human-readable table: the model call
// line, a five-number summary of the residuals, the coefficient table, and
// the fit diagnostics.
func (rpt *Report) Summary() string {

	var buf bytes.Buffer

	buf.WriteString("Call:\n  " + rpt.Call + "\n\n")

	if fn, err := fiveNumber(rpt.Resid); err == nil {
		buf.WriteString("Residuals:\n")
		hdr := []string{"Min", "1Q", "Median", "3Q", "Max"}
		for _, h := range hdr {
			buf.WriteString(fmt.Sprintf("%10s", h))
		}
		buf.WriteString("\n")
		for _, v := range fn {
			buf.WriteString(fmt.Sprintf("%10.4f", v))
		}
		buf.WriteString("\n\n")
	}

	seLabel := "Std. Error"
	if rpt.Robust {
		seLabel = "Robust SE"
	}

	nw := len("(Intercept)")
	for _, c := range rpt.Coefficients {
		if len(c.Name) > nw {
			nw = len(c.Name)
		}
	}

	buf.WriteString("Coefficients:\n")
	buf.WriteString(fmt.Sprintf("%-*s%12s%12s%6s%10s%10s%8s\n",
		nw, "", "Estimate", seLabel, "df", "t value", "Pr(>|t|)", "r"))
	for _, c := range rpt.Coefficients {
		se := c.NominalSE
		if rpt.Robust {
			se = c.RobustSE
		}
		buf.WriteString(fmt.Sprintf("%-*s%12.4f%12.4f%6d%10.3f%10.4f%8.4f\n",
			nw, c.Name, c.Estimate, se, c.DF, c.T, c.P, c.R))
	}
	buf.WriteString(strings.Repeat("-", nw+58) + "\n")

	buf.WriteString(fmt.Sprintf("Multiple R-squared: %.4f,  Adjusted R-squared: %.4f\n", rpt.R2, rpt.AdjR2))
	buf.WriteString(fmt.Sprintf("F-statistic: %.4f on %d and %d DF,  p-value: %.4g\n", rpt.F, rpt.FDF1, rpt.FDF2, rpt.FPValue))

	return buf.String()
}

// fiveNumber returns min, first quartile, median, third quartile, max.
func fiveNumber(x []float64) ([5]float64, error) {
	var fn [5]float64
	var err error
	if fn[0], err = stats.Min(x); err != nil {
		return fn, err
	}
	q, err := stats.Quartile(x)
	if err != nil {
		return fn, err
	}
	fn[1], fn[2], fn[3] = q.Q1, q.Q2, q.Q3
	fn[4], err = stats.Max(x)
	return fn, err
}
