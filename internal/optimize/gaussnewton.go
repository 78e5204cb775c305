// Package optimize implements the damped Gauss-Newton iteration the
// calibrator runs once per frame during the optimize phase.
package optimize

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Functor supplies the residual vector: one scalar error per measurement,
// evaluated at a parameter vector. The functor must not retain the slice.
type Functor interface {
	Residual(params []float64, measurement int) float64
	NumMeasurements() int
}

// GaussNewton performs one damped Gauss-Newton step per Iterate call. The
// Jacobian is estimated by forward differences with caller-supplied epsilons.
type GaussNewton struct {
	functor Functor
	// Damping is the fixed Levenberg term added to the normal-equation
	// diagonal. It keeps near-singular systems solvable at the cost of
	// slightly shorter steps.
	Damping float64
}

// NewGaussNewton returns an optimizer over the functor with the default
// damping.
func NewGaussNewton(f Functor) *GaussNewton {
	return &GaussNewton{functor: f, Damping: 1e-6}
}

// Iterate updates params in place by one step and returns the length of the
// parameter update. The result is NaN when the normal equations cannot be
// solved; callers treat a non-finite delta as divergence.
func (o *GaussNewton) Iterate(params []float64, epsilon []float64) float64 {
	m := o.functor.NumMeasurements()
	n := len(params)

	residuals := mat.NewVecDense(m, nil)
	jacobian := mat.NewDense(m, n, nil)

	probe := make([]float64, n)
	for i := 0; i < m; i++ {
		r := o.functor.Residual(params, i)
		residuals.SetVec(i, r)
		for j := 0; j < n; j++ {
			copy(probe, params)
			probe[j] += epsilon[j]
			jacobian.Set(i, j, (o.functor.Residual(probe, i)-r)/epsilon[j])
		}
	}

	// Normal equations with a fixed damping term on the diagonal.
	var jtj mat.Dense
	jtj.Mul(jacobian.T(), jacobian)
	for j := 0; j < n; j++ {
		jtj.Set(j, j, jtj.At(j, j)+o.Damping)
	}
	var jtr mat.VecDense
	jtr.MulVec(jacobian.T(), residuals)

	var step mat.VecDense
	if err := step.SolveVec(&jtj, &jtr); err != nil {
		return math.NaN()
	}

	delta := 0.0
	for j := 0; j < n; j++ {
		d := step.AtVec(j)
		params[j] -= d
		delta += d * d
	}
	return math.Sqrt(delta)
}
