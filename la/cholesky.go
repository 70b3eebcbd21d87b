package la

import (
	"github.com/fearghalodonncha/allscale-amdados/errs"
	"gonum.org/v1/gonum/mat"
)

// Cholesky factors a symmetric positive-definite matrix once and serves
// repeated Solve/BatchSolve calls against it, grounded on the
// original's KalmanFilter keeping a single m_chol scratch factorization
// alive across steps. Init, Solve and BatchSolve each copy their inputs
// into freshly allocated gonum matrices.
type Cholesky struct {
	n    int
	chol mat.Cholesky
}

// NewCholesky allocates a factorization scratchpad for n x n systems.
func NewCholesky(n int) *Cholesky {
	return &Cholesky{n: n}
}

// Init factors S = L*Lᵗ. S must be symmetric positive-definite.
func (c *Cholesky) Init(S *Matrix) error {
	if err := CheckSquare(S, c.n); err != nil {
		return err
	}
	sym := mat.NewSymDense(c.n, append([]float64(nil), S.Data...))
	if ok := c.chol.Factorize(sym); !ok {
		return errs.Fatalf(errs.FactorizationFailure, "cholesky factorization failed (matrix not positive-definite)")
	}
	return nil
}

// Solve computes x = S⁻¹*b using the factorization from Init.
func (c *Cholesky) Solve(x, b Vector) error {
	var dst mat.VecDense
	if err := c.chol.SolveVecTo(&dst, mat.NewVecDense(c.n, append([]float64(nil), b...))); err != nil {
		return errs.Fatalf(errs.FactorizationFailure, "cholesky solve failed: %v", err)
	}
	copy(x, dst.RawVector().Data)
	return nil
}

// BatchSolve computes X = S⁻¹*B, one column-solve per column of B.
func (c *Cholesky) BatchSolve(X, B *Matrix) error {
	if B.Rows != c.n {
		return errs.Fatalf(errs.InvalidInput, "expected %d rows, got %d", c.n, B.Rows)
	}
	bDense := mat.NewDense(B.Rows, B.Cols, append([]float64(nil), B.Data...))
	var dst mat.Dense
	if err := c.chol.SolveTo(&dst, bDense); err != nil {
		return errs.Fatalf(errs.FactorizationFailure, "cholesky batch solve failed: %v", err)
	}
	for i := 0; i < X.Rows; i++ {
		for j := 0; j < X.Cols; j++ {
			X.Set(i, j, dst.At(i, j))
		}
	}
	return nil
}
