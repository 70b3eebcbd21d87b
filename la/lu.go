package la

import (
	"github.com/fearghalodonncha/allscale-amdados/errs"
	"gonum.org/v1/gonum/mat"
)

// condIllConditioned flags an LU factorization as unusable: a singular
// or near-singular implicit-Euler operator means the timestep violated
// the stability assumptions the model matrix was built under.
const condIllConditioned = 1e14

// LU factors a general square matrix once (with partial pivoting) and
// serves repeated Solve/BatchSolve/BatchSolveTr calls against it,
// mirroring the original's m_lu scratch kept alive inside KalmanFilter.
type LU struct {
	n  int
	lu mat.LU
}

// NewLU allocates a factorization scratchpad for n x n systems.
func NewLU(n int) *LU {
	return &LU{n: n}
}

// Init factors A = P*L*U. Returns errs.FactorizationFailure if A is
// singular or numerically indistinguishable from singular.
func (l *LU) Init(A *Matrix) error {
	if err := CheckSquare(A, l.n); err != nil {
		return err
	}
	dense := mat.NewDense(l.n, l.n, append([]float64(nil), A.Data...))
	l.lu.Factorize(dense)
	if c := l.lu.Cond(); c > condIllConditioned {
		return errs.Fatalf(errs.FactorizationFailure, "LU factorization is singular or ill-conditioned (cond=%.3e)", c)
	}
	return nil
}

// Solve computes x = A⁻¹*b using the factorization from Init.
func (l *LU) Solve(x, b Vector) error {
	var dst mat.VecDense
	if err := l.lu.SolveVecTo(&dst, false, mat.NewVecDense(l.n, append([]float64(nil), b...))); err != nil {
		return errs.Fatalf(errs.FactorizationFailure, "LU solve failed: %v", err)
	}
	copy(x, dst.RawVector().Data)
	return nil
}

// BatchSolve computes X = A⁻¹*B.
func (l *LU) BatchSolve(X, B *Matrix) error {
	if B.Rows != l.n {
		return errs.Fatalf(errs.InvalidInput, "expected %d rows, got %d", l.n, B.Rows)
	}
	bDense := mat.NewDense(B.Rows, B.Cols, append([]float64(nil), B.Data...))
	var dst mat.Dense
	if err := l.lu.SolveTo(&dst, false, bDense); err != nil {
		return errs.Fatalf(errs.FactorizationFailure, "LU batch solve failed: %v", err)
	}
	for i := 0; i < X.Rows; i++ {
		for j := 0; j < X.Cols; j++ {
			X.Set(i, j, dst.At(i, j))
		}
	}
	return nil
}

// BatchSolveTr computes X = (A⁻¹*B)ᵗ. X may alias B. The Kalman prior
// step uses it to form the congruence transform A⁻¹·P·A⁻ᵗ: it first
// computes T = A⁻¹·P with BatchSolve, then passes Tᵗ here as B.
func (l *LU) BatchSolveTr(X, B *Matrix) error {
	if B.Rows != l.n {
		return errs.Fatalf(errs.InvalidInput, "expected %d rows, got %d", l.n, B.Rows)
	}
	bDense := mat.NewDense(B.Rows, B.Cols, append([]float64(nil), B.Data...))
	var dst mat.Dense
	if err := l.lu.SolveTo(&dst, false, bDense); err != nil {
		return errs.Fatalf(errs.FactorizationFailure, "LU batch solve (tr) failed: %v", err)
	}
	for i := 0; i < X.Rows; i++ {
		for j := 0; j < X.Cols; j++ {
			X.Set(i, j, dst.At(j, i))
		}
	}
	return nil
}
