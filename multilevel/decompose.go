// Package multilevel estimates bias-corrected group-level means from
// repeated individual-level measurements.  The raw mean of a group's
// individual records is a noisy estimate of the group's latent score, and
// regressing a group-level outcome on raw means biases the coefficients.
// The package decomposes the predictor (co)variance into within-group and
// between-group components by the method of moments and shrinks each
// group's raw mean toward the grand mean in proportion to its estimated
// unreliability, following Croon and van Veldhoven (2007).
package multilevel

import (
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/xurannancy/micromacro/micromacro"
)

// Decomposition holds the variance components of the individual-level
// predictors, their cross-covariance with the group-level covariates, and
// the per-group summaries they are computed from.  A Decomposition is
// computed once by Decompose and is not modified afterwards; treat all
// fields as read-only.
type Decomposition struct {

	// Group ids after a stable sort; all per-group values below follow
	// this order.
	GroupIDs []string

	// Number of individual records in each group.
	GroupSizes []int

	// Raw per-group means of the individual predictors (G x p).
	GroupMeans *mat.Dense

	// Grand mean of the individual predictors over all N records.
	GrandMean []float64

	// Mean of the group covariates over the G groups.  Nil when the
	// model has no group covariates.
	ZMean []float64

	// Covariance of the group covariates (q x q).  Nil when q == 0.
	Szz *mat.SymDense

	// Group covariate values in GroupIDs order (G x q).  Nil when q == 0.
	ZData *mat.Dense

	// Cross-covariance of the raw group means and the group covariates
	// (p x q).  Nil when q == 0.
	Sxz *mat.Dense

	// Between-group covariance component of the individual predictors
	// (p x p).  The moment estimator can produce an indefinite matrix
	// when G is small or group sizes are very uneven; it is reported
	// as computed, without eigenvalue clamping.
	Sxx *mat.SymDense

	// Within-group covariance component of the individual predictors
	// (p x p).
	Svv *mat.SymDense

	// Total number of individual records.
	NumObs int
}

// NumPredictors returns p, the number of individual-level predictors.
func (d *Decomposition) NumPredictors() int {
	_, p := d.GroupMeans.Dims()
	return p
}

// NumCovariates returns q, the number of group-level covariates.
func (d *Decomposition) NumCovariates() int {
	if d.Sxz == nil {
		return 0
	}
	_, q := d.Sxz.Dims()
	return q
}

// Decompose estimates the within-group and between-group covariance
// components of the individual predictors x (N x p, one row per individual
// record) and their cross-covariance with the group covariates z (G x q,
// one row per group).  xGroups and zGroups carry the group id of each row;
// zGroups must be unique and every xGroups id must appear in it.  z may be
// nil when the model has no group-level covariates.
//
// Sample covariances over the G groups use the G-1 denominator.  The
// between-group mean square is normalized by N-G and the within-group mean
// square by G-1, the moment-matching choices for the two-stage sampling
// model; the between component is then debiased as
// Sxx = [N(G-1)/(N^2 - sum n_g^2)] * (MSA - MSE).
func Decompose(x *mat.Dense, xGroups []string, z *mat.Dense, zGroups []string) (*Decomposition, error) {

	if x == nil {
		return nil, &micromacro.InputError{Msg: "individual predictor matrix is nil"}
	}
	n, p := x.Dims()
	if len(xGroups) != n {
		return nil, &micromacro.InputError{
			Msg: "individual table and its group id array have different row counts",
		}
	}
	G := len(zGroups)
	q := 0
	if z != nil {
		var gz int
		gz, q = z.Dims()
		if gz != G {
			return nil, &micromacro.InputError{
				Msg: "group table and its group id array have different row counts",
			}
		}
	}
	if G < 2 {
		return nil, &micromacro.InputError{Msg: "variance decomposition requires at least 2 groups"}
	}

	// Stable sort of the group table by id; everything downstream is
	// reported in this order.
	ord := make([]int, G)
	for i := range ord {
		ord[i] = i
	}
	sort.SliceStable(ord, func(i, j int) bool { return zGroups[ord[i]] < zGroups[ord[j]] })

	ids := make([]string, G)
	gidx := make(map[string]int, G)
	for k, i := range ord {
		id := zGroups[i]
		if _, ok := gidx[id]; ok {
			return nil, &micromacro.InputError{Msg: "duplicate group id " + id + " in group table"}
		}
		gidx[id] = k
		ids[k] = id
	}

	// Per-group counts and predictor sums, via direct id->index lookup.
	sizes := make([]int, G)
	gmeans := mat.NewDense(G, p, nil)
	grand := make([]float64, p)
	rowGroup := make([]int, n)
	for i := 0; i < n; i++ {
		k, ok := gidx[xGroups[i]]
		if !ok {
			return nil, &micromacro.InputError{
				Msg: "individual row " + xGroups[i] + " references a group id absent from the group table",
			}
		}
		rowGroup[i] = k
		sizes[k]++
		for j := 0; j < p; j++ {
			v := x.At(i, j)
			gmeans.Set(k, j, gmeans.At(k, j)+v)
			grand[j] += v
		}
	}
	for k, ng := range sizes {
		if ng == 0 {
			return nil, &micromacro.InputError{Msg: "group " + ids[k] + " has no individual records"}
		}
		for j := 0; j < p; j++ {
			gmeans.Set(k, j, gmeans.At(k, j)/float64(ng))
		}
	}
	if n <= G {
		return nil, &micromacro.InputError{
			Msg: "within-group replication required: every mean square is undefined when N <= G",
		}
	}
	for j := range grand {
		grand[j] /= float64(n)
	}

	d := &Decomposition{
		GroupIDs:   ids,
		GroupSizes: sizes,
		GroupMeans: gmeans,
		GrandMean:  grand,
		NumObs:     n,
	}

	// Group-covariate moments over the sorted group rows.
	var zs *mat.Dense
	if q > 0 {
		zs = mat.NewDense(G, q, nil)
		for k, i := range ord {
			for j := 0; j < q; j++ {
				zs.Set(k, j, z.At(i, j))
			}
		}
		d.ZData = zs
		d.ZMean = colMeans(zs)
		d.Szz = mat.NewSymDense(q, nil)
		stat.CovarianceMatrix(d.Szz, zs, nil)
		d.Sxz = crossCovariance(gmeans, zs)
	}

	// Between-group mean square, normalized by N-G rather than G-1 so
	// that the moment equations weight by individual counts.
	msa := mat.NewSymDense(p, nil)
	stat.CovarianceMatrix(msa, gmeans, nil)
	msa.ScaleSym(float64(n)/float64(n-G), msa)

	// Within-group scatter of every record about its own group mean,
	// normalized by G-1 (the moment-matching denominator, not N-G).
	e := mat.NewDense(n, p, nil)
	for i := 0; i < n; i++ {
		k := rowGroup[i]
		for j := 0; j < p; j++ {
			e.Set(i, j, x.At(i, j)-gmeans.At(k, j))
		}
	}
	var sse mat.Dense
	sse.Mul(e.T(), e)
	d.Svv = mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			d.Svv.SetSym(i, j, sse.At(i, j)/float64(G-1))
		}
	}

	// Debiased between-group component.  MSA - MSE need not be positive
	// definite; it is returned as computed.
	var ss int
	for _, ng := range sizes {
		ss += ng * ng
	}
	c := float64(n) * float64(G-1) / (float64(n)*float64(n) - float64(ss))
	d.Sxx = mat.NewSymDense(p, nil)
	for i := 0; i < p; i++ {
		for j := i; j < p; j++ {
			d.Sxx.SetSym(i, j, c*(msa.At(i, j)-d.Svv.At(i, j)))
		}
	}

	return d, nil
}

// colMeans returns the column means of m.
func colMeans(m *mat.Dense) []float64 {
	r, c := m.Dims()
	mn := make([]float64, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			mn[j] += m.At(i, j)
		}
		mn[j] /= float64(r)
	}
	return mn
}

// crossCovariance returns the sample cross-covariance of the rows of a
// (G x p) and b (G x q), using the G-1 denominator.
func crossCovariance(a, b *mat.Dense) *mat.Dense {
	g, p := a.Dims()
	_, q := b.Dims()
	am := colMeans(a)
	bm := colMeans(b)
	ca := mat.NewDense(g, p, nil)
	cb := mat.NewDense(g, q, nil)
	for i := 0; i < g; i++ {
		for j := 0; j < p; j++ {
			ca.Set(i, j, a.At(i, j)-am[j])
		}
		for j := 0; j < q; j++ {
			cb.Set(i, j, b.At(i, j)-bm[j])
		}
	}
	cc := mat.NewDense(p, q, nil)
	cc.Mul(ca.T(), cb)
	cc.Scale(1/float64(g-1), cc)
	return cc
}
