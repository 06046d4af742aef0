// Package registration aligns point samples of follow-up surfaces onto
// baseline surfaces with rigid iterative closest point.
package registration

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// ErrDegenerate marks inputs that cannot support a rigid fit, such as
// an empty or near-empty point set.
var ErrDegenerate = errors.New("degenerate registration input")

// Config bounds the iteration.
type Config struct {
	// MaxIterations caps the correspondence loop.
	MaxIterations int
	// Tolerance stops the loop when the relative cost improvement
	// between iterations falls below it.
	Tolerance float64
}

// DefaultConfig matches the audit policy: a hard cap of 100 iterations.
func DefaultConfig() Config {
	return Config{MaxIterations: 100, Tolerance: 1e-8}
}

// Result is a rigid transform mapping source points into the target
// frame, with the cost at convergence.
type Result struct {
	Rotation    [3][3]float64
	Translation [3]float64
	// Cost is the sum of squared nearest-neighbor residuals of the
	// transformed source against the target.
	Cost       float64
	Iterations int
}

// Apply maps one point through the transform.
func (r Result) Apply(p [3]float64) [3]float64 {
	var out [3]float64
	for i := 0; i < 3; i++ {
		out[i] = r.Rotation[i][0]*p[0] + r.Rotation[i][1]*p[1] + r.Rotation[i][2]*p[2] + r.Translation[i]
	}
	return out
}

// ApplyAll maps every point through the transform.
func (r Result) ApplyAll(points [][3]float64) [][3]float64 {
	out := make([][3]float64, len(points))
	for i, p := range points {
		out[i] = r.Apply(p)
	}
	return out
}

// ICP fits a rotation plus translation moving source onto target.
// Reflections are never produced; an anatomical surface and its mirror
// image are not the same object. A translation-only fit (identity
// rotation) is a valid outcome.
func ICP(source, target [][3]float64, cfg Config) (Result, error) {
	if len(source) < 3 || len(target) < 3 {
		return Result{}, fmt.Errorf("%w: %d source and %d target points", ErrDegenerate, len(source), len(target))
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultConfig().MaxIterations
	}

	tree := kdtree.New(asPoints(target), false)
	result := identity()
	prevCost := math.Inf(1)

	for iter := 1; iter <= cfg.MaxIterations; iter++ {
		moved := result.ApplyAll(source)
		matched, cost := correspond(tree, moved)

		next, err := kabsch(source, matched)
		if err != nil {
			return Result{}, err
		}
		next.Iterations = iter
		next.Cost = cost
		result = next

		if prevCost < math.Inf(1) {
			improvement := math.Abs(prevCost - cost)
			if improvement <= cfg.Tolerance*math.Max(prevCost, 1) {
				break
			}
		}
		prevCost = cost
	}

	// Report the cost of the final transform, not of the one the last
	// correspondences were computed against.
	_, result.Cost = correspond(tree, result.ApplyAll(source))
	return result, nil
}

// correspond finds the nearest target point for every query point. The
// tree metric is squared Euclidean distance, so the summed distances
// are the squared residuals directly.
func correspond(tree *kdtree.Tree, queries [][3]float64) (matched [][3]float64, cost float64) {
	matched = make([][3]float64, len(queries))
	for i, q := range queries {
		got, dist := tree.Nearest(kdtree.Point{q[0], q[1], q[2]})
		p := got.(kdtree.Point)
		matched[i] = [3]float64{p[0], p[1], p[2]}
		cost += dist
	}
	return matched, cost
}

// kabsch solves the least-squares rigid transform taking source onto
// matched, constrained to a proper rotation.
func kabsch(source, matched [][3]float64) (Result, error) {
	cs := centroid(source)
	cm := centroid(matched)

	h := mat.NewDense(3, 3, nil)
	for k := range source {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				h.Set(i, j, h.At(i, j)+(source[k][i]-cs[i])*(matched[k][j]-cm[j]))
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(h, mat.SVDFull) {
		return Result{}, fmt.Errorf("%w: cross-covariance decomposition failed", ErrDegenerate)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var rot mat.Dense
	rot.Mul(&v, u.T())
	if mat.Det(&rot) < 0 {
		// Flip the least-significant singular direction to stay in the
		// rotation group.
		d := mat.NewDiagDense(3, []float64{1, 1, -1})
		var vd mat.Dense
		vd.Mul(&v, d)
		rot.Mul(&vd, u.T())
	}

	var result Result
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			result.Rotation[i][j] = rot.At(i, j)
		}
	}
	for i := 0; i < 3; i++ {
		result.Translation[i] = cm[i] -
			(result.Rotation[i][0]*cs[0] + result.Rotation[i][1]*cs[1] + result.Rotation[i][2]*cs[2])
	}
	return result, nil
}

func centroid(points [][3]float64) [3]float64 {
	var c [3]float64
	for _, p := range points {
		for i := range c {
			c[i] += p[i]
		}
	}
	for i := range c {
		c[i] /= float64(len(points))
	}
	return c
}

func identity() Result {
	return Result{Rotation: [3][3]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}}
}

func asPoints(points [][3]float64) kdtree.Points {
	out := make(kdtree.Points, len(points))
	for i, p := range points {
		out[i] = kdtree.Point{p[0], p[1], p[2]}
	}
	return out
}
