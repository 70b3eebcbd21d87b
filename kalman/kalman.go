// Package kalman implements the per-subdomain Kalman filter steps
// spec.md §4.3 names: PropagateStateInverse (prior propagation through
// the inverse model matrix B) and SolveFilter (posterior correction
// from local observations). Grounded line-for-line on
// original_source/.../utils/kalman_filter.h's PropagateStateInverse and
// SolveFilter (by way of the earlier Iterate/PosteriorEstimation path,
// which this package's two public methods replace directly). The
// filter's own scratch vectors/matrices are preallocated once in
// NewFilter; the la.LU and la.Cholesky calls still allocate gonum
// copies of their inputs on every call.
package kalman

import (
	"github.com/fearghalodonncha/allscale-amdados/errs"
	"github.com/fearghalodonncha/allscale-amdados/la"
)

// Filter holds the preallocated scratchpad a subdomain's Kalman state
// update needs. n is the state dimension (Sx+2)(Sy+2); m is the number
// of local observations.
type Filter struct {
	n, m int

	lu   *la.LU
	chol *la.Cholesky

	xTmp Vector
	pTmp *Matrix

	y      Vector
	invSy  Vector
	s      *Matrix
	pHt    *Matrix
	hp     *Matrix
	invSHP *Matrix
}

// Vector and Matrix are aliases kept local so callers don't need to
// import la just to read this package's doc comments.
type Vector = la.Vector
type Matrix = la.Matrix

// NewFilter allocates a filter for an n-dimensional state and m local
// observations.
func NewFilter(n, m int) *Filter {
	return &Filter{
		n: n, m: m,
		lu:     la.NewLU(n),
		chol:   la.NewCholesky(m),
		xTmp:   la.VecAlloc(n),
		pTmp:   la.MatAlloc(n, n),
		y:      la.VecAlloc(m),
		invSy:  la.VecAlloc(m),
		s:      la.MatAlloc(m, m),
		pHt:    la.MatAlloc(n, m),
		hp:     la.MatAlloc(m, n),
		invSHP: la.MatAlloc(m, n),
	}
}

// PropagateStateInverse advances (x, P) through the inverse model
// matrix B and adds process noise Q:
//
//	x <- B^-1 x
//	P <- B^-1 (B^-1 P)^t + Q, then symmetrized
func (f *Filter) PropagateStateInverse(x Vector, P *Matrix, B *Matrix, Q *Matrix) error {
	la.VecCopy(f.xTmp, x)
	la.MatCopy(f.pTmp, P)

	if err := f.lu.Init(B); err != nil {
		return err
	}
	if err := f.lu.Solve(x, f.xTmp); err != nil {
		return err
	}
	if err := f.lu.BatchSolve(f.pTmp, P); err != nil {
		return err
	}
	la.Transpose(P, f.pTmp) // P <- (B^-1 P)^t
	if err := f.lu.BatchSolveTr(P, P); err != nil {
		return err
	}
	la.AddMat(P, P, Q)
	la.Symmetrize(P)
	return nil
}

// SolveDirect solves the extended subdomain field directly through B
// with no sensor correction, the branch spec.md describes for
// subdomains that carry no local sensors (grounded on the commented-out
// ComputeTrueFields direct-LU-solve reference path in
// original_source/.../Amdados2D.cpp).
func (f *Filter) SolveDirect(x Vector, B *Matrix) error {
	la.VecCopy(f.xTmp, x)
	if err := f.lu.Init(B); err != nil {
		return err
	}
	return f.lu.Solve(x, f.xTmp)
}

// SolveFilter applies the posterior correction from a local
// observation model (H, R, z) to the prior (x, P):
//
//	y = z - H x_prior
//	S = H P_prior H^t + R, symmetrized
//	x = x_prior + P_prior H^t S^-1 y
//	P = P_prior - P_prior H^t S^-1 H P_prior, symmetrized
func (f *Filter) SolveFilter(x Vector, P *Matrix, H, R *Matrix, z Vector) error {
	xPrior := f.xTmp
	pPrior := f.pTmp
	la.VecCopy(xPrior, x)
	la.MatCopy(pPrior, P)

	la.MatVecMul(f.y, H, xPrior)
	la.SubVec(f.y, z, f.y)

	la.MatMulTr(f.pHt, pPrior, H)
	la.MatMul(f.s, H, f.pHt)
	la.AddMat(f.s, f.s, R)
	la.Symmetrize(f.s)

	if err := f.chol.Init(f.s); err != nil {
		return errs.Fatalf(errs.FilterIllConditioned, "%v", err)
	}
	if err := f.chol.Solve(f.invSy, f.y); err != nil {
		return errs.Fatalf(errs.FilterIllConditioned, "%v", err)
	}

	la.MatVecMul(x, f.pHt, f.invSy)
	la.AddVec(x, x, xPrior)

	la.Transpose(f.hp, f.pHt)
	if err := f.chol.BatchSolve(f.invSHP, f.hp); err != nil {
		return errs.Fatalf(errs.FilterIllConditioned, "%v", err)
	}
	la.MatMul(P, f.pHt, f.invSHP)
	la.SubMat(P, pPrior, P)
	la.Symmetrize(P)
	return nil
}
