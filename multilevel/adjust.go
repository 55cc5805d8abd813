package multilevel

import (
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/xurannancy/micromacro/micromacro"
)

// Use concurrent per-group shrinkage when the number of groups is at least
// this large.
const defaultConcurrentGroups = 256

// GroupSize reports the number of individual records observed for a group.
type GroupSize struct {
	ID string
	N  int
}

// AdjustedResult is the output of the shrinkage stage.
type AdjustedResult struct {

	// Table has one row per group, in sorted group-id order: the p
	// shrinkage-adjusted predictor means followed by the q group
	// covariates.
	Table *micromacro.Table

	// Balanced is true when every group has the same number of
	// individual records.
	Balanced bool

	// GroupSizes reports the per-group record counts.
	GroupSizes []GroupSize
}

// Shrinker computes empirical-Bayes adjusted group means from a variance
// decomposition.  The zero value is not usable; construct with NewShrinker.
type Shrinker struct {
	concurrentGroups int
}

// NewShrinker returns a Shrinker with default settings.
func NewShrinker() *Shrinker {
	return &Shrinker{concurrentGroups: defaultConcurrentGroups}
}

// ConcurrentGroups sets the minimum number of groups at which the per-group
// shrinkage runs concurrently.  The result is identical to the serial path.
func (s *Shrinker) ConcurrentGroups(n int) *Shrinker {
	s.concurrentGroups = n
	return s
}

// AdjustedMeans shrinks each group's raw predictor mean toward the grand
// mean, net of what the group covariates already explain.  For group g with
// n_g records the reliability weight is
//
//	W1 = [Sxx + Svv/n_g + Sxz Szz^-1 Szx]^-1 [Sxx + Sxz Szz^-1 Szx]
//
// and the adjusted mean is the blend
//
//	xbar'(I-W1) + xbar_g'W1 + (z_g - zbar)'W2,  W2 = Szz^-1 Szx (I-W1).
//
// Larger groups have smaller Svv/n_g terms, so W1 approaches the identity
// and the group's own mean dominates.  Without group covariates the weight
// reduces to W1 = [Sxx + Svv/n_g]^-1 Sxx.
//
// Szz is factorized once and Szz^-1 Szx is reused across all groups.  A
// singular Szz or per-group composite matrix is reported as a
// SingularMatrixError; an indefinite Sxx is used as computed, so the error
// also surfaces when it makes the composite matrix singular.
func (s *Shrinker) AdjustedMeans(d *Decomposition, xNames, zNames []string) (*AdjustedResult, error) {

	p := d.NumPredictors()
	q := d.NumCovariates()
	G := len(d.GroupIDs)
	if len(xNames) != p {
		return nil, &micromacro.DimensionError{Context: "predictor names", Want: p, Got: len(xNames)}
	}
	if len(zNames) != q {
		return nil, &micromacro.DimensionError{Context: "covariate names", Want: q, Got: len(zNames)}
	}

	// Shared across groups: the explained-by-covariates correction
	// K = Szz^-1 Szx and the weight numerator T = Sxx + Sxz K.
	var k *mat.Dense
	t := mat.NewDense(p, p, nil)
	if q > 0 {
		var chol mat.Cholesky
		if !chol.Factorize(d.Szz) {
			return nil, &micromacro.SingularMatrixError{Matrix: "Sigma_zz", Group: -1}
		}
		k = mat.NewDense(q, p, nil)
		if err := micromacro.SolveError(chol.SolveTo(k, d.Sxz.T()), "Sigma_zz", -1); err != nil {
			return nil, err
		}
		t.Mul(d.Sxz, k)
	}
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			t.Set(i, j, t.At(i, j)+d.Sxx.At(i, j))
		}
	}

	adj := mat.NewDense(G, p, nil)
	if G >= s.concurrentGroups {
		var eg errgroup.Group
		eg.SetLimit(runtime.GOMAXPROCS(0))
		for g := 0; g < G; g++ {
			g := g
			eg.Go(func() error {
				return adjustGroup(d, t, k, g, adj)
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
	} else {
		for g := 0; g < G; g++ {
			if err := adjustGroup(d, t, k, g, adj); err != nil {
				return nil, err
			}
		}
	}

	// Assemble the output table: adjusted means, then covariates.
	names := make([]string, 0, p+q)
	cols := make([][]float64, 0, p+q)
	for j := 0; j < p; j++ {
		col := make([]float64, G)
		mat.Col(col, j, adj)
		names = append(names, xNames[j])
		cols = append(cols, col)
	}
	for j := 0; j < q; j++ {
		col := make([]float64, G)
		mat.Col(col, j, d.ZData)
		names = append(names, zNames[j])
		cols = append(cols, col)
	}
	tbl, err := micromacro.NewTable(d.GroupIDs, names, cols)
	if err != nil {
		return nil, err
	}

	sizes := make([]GroupSize, G)
	for g, id := range d.GroupIDs {
		sizes[g] = GroupSize{ID: id, N: d.GroupSizes[g]}
	}

	return &AdjustedResult{
		Table:      tbl,
		Balanced:   balancedSizes(d.GroupSizes),
		GroupSizes: sizes,
	}, nil
}

// adjustGroup computes the adjusted mean for group g, writing row g of dst.
// t is the shared weight numerator Sxx + Sxz Szz^-1 Szx and k is
// Szz^-1 Szx (nil when there are no covariates).  Groups are independent,
// so adjustGroup is safe to call concurrently for distinct g.
func adjustGroup(d *Decomposition, t, k *mat.Dense, g int, dst *mat.Dense) error {

	p := d.NumPredictors()
	ng := float64(d.GroupSizes[g])

	// Composite matrix for this group's reliability weight.
	a := mat.NewDense(p, p, nil)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			a.Set(i, j, t.At(i, j)+d.Svv.At(i, j)/ng)
		}
	}

	var w1 mat.Dense
	if err := micromacro.SolveError(w1.Solve(a, t), "per-group composite", g); err != nil {
		return err
	}
	im := mat.NewDense(p, p, nil)
	for i := 0; i < p; i++ {
		for j := 0; j < p; j++ {
			v := -w1.At(i, j)
			if i == j {
				v++
			}
			im.Set(i, j, v)
		}
	}

	var w2 *mat.Dense
	if k != nil {
		w2 = mat.NewDense(d.NumCovariates(), p, nil)
		w2.Mul(k, im)
	}

	for j := 0; j < p; j++ {
		var v float64
		for i := 0; i < p; i++ {
			v += d.GrandMean[i]*im.At(i, j) + d.GroupMeans.At(g, i)*w1.At(i, j)
		}
		if w2 != nil {
			for i := 0; i < d.NumCovariates(); i++ {
				v += (d.ZData.At(g, i) - d.ZMean[i]) * w2.At(i, j)
			}
		}
		dst.Set(g, j, v)
	}

	return nil
}

// balancedSizes reports whether all group sizes are equal.
func balancedSizes(sizes []int) bool {
	for _, n := range sizes[1:] {
		if n != sizes[0] {
			return false
		}
	}
	return true
}

// ComputeAdjustedMeans decomposes the predictor variance and shrinks the
// per-group raw means in one call, with default settings.  x is the N x p
// individual predictor matrix with column names xNames and per-row group
// ids xGroups; z is the G x q group covariate matrix (nil when the model
// has no group covariates) with column names zNames and unique ids zGroups.
func ComputeAdjustedMeans(x *mat.Dense, xNames, xGroups []string, z *mat.Dense, zNames, zGroups []string) (*AdjustedResult, error) {
	d, err := Decompose(x, xGroups, z, zGroups)
	if err != nil {
		return nil, err
	}
	return NewShrinker().AdjustedMeans(d, xNames, zNames)
}
