package design

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/xurannancy/micromacro/micromacro"
)

func testTable() ([]string, [][]float64) {
	names := []string{"x1", "x2", "z1"}
	cols := [][]float64{
		{1, 2, 3, 4},
		{2, 0, -1, 1},
		{10, 20, 30, 40},
	}
	return names, cols
}

func TestExpandMainEffects(t *testing.T) {

	names, cols := testTable()
	spec := Spec{MainEffects: []string{"x1", "z1"}}

	u, labels, err := Expand(spec, names, cols)
	require.NoError(t, err)

	require.Equal(t, []string{"(Intercept)", "x1", "z1"}, labels)
	r, c := u.Dims()
	require.Equal(t, 4, r)
	require.Equal(t, 1+len(spec.MainEffects)+len(spec.Interactions), c)

	// Main-effects-only output is the direct concatenation of an
	// intercept with the named columns.
	want := mat.NewDense(4, 3, []float64{
		1, 1, 10,
		1, 2, 20,
		1, 3, 30,
		1, 4, 40,
	})
	require.True(t, mat.Equal(want, u))
}

func TestExpandInteractions(t *testing.T) {

	names, cols := testTable()
	spec := Spec{
		MainEffects:  []string{"x1", "x2"},
		Interactions: [][]string{{"x1", "x2"}},
	}

	u, labels, err := Expand(spec, names, cols)
	require.NoError(t, err)

	require.Equal(t, []string{"(Intercept)", "x1", "x2", "x1:x2"}, labels)
	_, c := u.Dims()
	require.Equal(t, 4, c)

	// Interaction column is the elementwise product of its constituents.
	for i := 0; i < 4; i++ {
		require.Equal(t, cols[0][i]*cols[1][i], u.At(i, 3))
	}
}

func TestExpandColumnCount(t *testing.T) {

	names, cols := testTable()
	for _, spec := range []Spec{
		{MainEffects: []string{"x1"}},
		{MainEffects: []string{"x1", "x2", "z1"}},
		{MainEffects: []string{"x1", "x2"}, Interactions: [][]string{{"x1", "x2"}, {"x2", "x1"}}},
	} {
		u, _, err := Expand(spec, names, cols)
		require.NoError(t, err)
		_, c := u.Dims()
		require.Equal(t, 1+len(spec.MainEffects)+len(spec.Interactions), c)
	}
}

func TestExpandRepeatedMainEffect(t *testing.T) {

	names, cols := testTable()
	u, labels, err := Expand(Spec{MainEffects: []string{"x1", "x1", "x2"}}, names, cols)
	require.NoError(t, err)

	// Repeats collapse to the first appearance.
	require.Equal(t, []string{"(Intercept)", "x1", "x2"}, labels)
	_, c := u.Dims()
	require.Equal(t, 3, c)
}

func TestExpandErrors(t *testing.T) {

	names, cols := testTable()
	var ute *micromacro.UnknownTermError

	_, _, err := Expand(Spec{MainEffects: []string{"x9"}}, names, cols)
	require.ErrorAs(t, err, &ute)
	require.Equal(t, "x9", ute.Term)

	// Interaction constituent that is not a declared main effect, even
	// though the table has the column.
	_, _, err = Expand(Spec{
		MainEffects:  []string{"x1"},
		Interactions: [][]string{{"x1", "z1"}},
	}, names, cols)
	require.ErrorAs(t, err, &ute)
	require.Equal(t, "z1", ute.Term)

	var ie *micromacro.InputError
	_, _, err = Expand(Spec{
		MainEffects:  []string{"x1"},
		Interactions: [][]string{{"x1"}},
	}, names, cols)
	require.ErrorAs(t, err, &ie)
}

func TestParseFormula(t *testing.T) {

	outcome, spec, err := ParseFormula("y ~ x1 + x2 + x1:x2")
	require.NoError(t, err)
	require.Equal(t, "y", outcome)
	require.Equal(t, []string{"x1", "x2"}, spec.MainEffects)
	require.Equal(t, [][]string{{"x1", "x2"}}, spec.Interactions)

	// The spec renders back to the right-hand side of the formula.
	require.Equal(t, "x1 + x2 + x1:x2", spec.String())

	_, _, err = ParseFormula("no tilde here")
	var ie *micromacro.InputError
	require.ErrorAs(t, err, &ie)

	_, _, err = ParseFormula("y ~ x1 + + x2")
	require.ErrorAs(t, err, &ie)
}
