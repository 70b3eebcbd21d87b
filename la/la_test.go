package la

import "testing"

func approxEq(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

func TestMatMulTrMatchesExplicitTranspose(t *testing.T) {
	a := MatAlloc(2, 3)
	copy(a.Data, []float64{1, 2, 3, 4, 5, 6})
	b := MatAlloc(2, 3)
	copy(b.Data, []float64{7, 8, 9, 10, 11, 12})

	got := MatAlloc(2, 2)
	MatMulTr(got, a, b)

	bt := MatAlloc(3, 2)
	Transpose(bt, b)
	want := MatAlloc(2, 2)
	MatMul(want, a, bt)

	if NormDiffMat(got, want) > 1e-12 {
		t.Fatalf("MatMulTr mismatch: got %v want %v", got.Data, want.Data)
	}
}

func TestSymmetrizeAveragesOffDiagonal(t *testing.T) {
	m := MatAlloc(2, 2)
	copy(m.Data, []float64{1, 2, 4, 1})
	Symmetrize(m)
	if m.At(0, 1) != m.At(1, 0) || m.At(0, 1) != 3 {
		t.Fatalf("expected symmetric 3, got %v", m.Data)
	}
}

func TestLUSolveIdentity(t *testing.T) {
	n := 3
	a := MatAlloc(n, n)
	MatIdentity(a)
	for i := 0; i < n; i++ {
		a.Add(i, i, 0.5) // make it 1.5*I, still trivially invertible
	}
	lu := NewLU(n)
	if err := lu.Init(a); err != nil {
		t.Fatalf("Init: %v", err)
	}
	b := Vector{1.5, 3, 4.5}
	x := VecAlloc(n)
	if err := lu.Solve(x, b); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	want := Vector{1, 2, 3}
	for i := range want {
		if !approxEq(x[i], want[i], 1e-9) {
			t.Fatalf("x[%d]=%v want %v", i, x[i], want[i])
		}
	}
}

func TestLUBatchSolveTrIsTransposeOfBatchSolve(t *testing.T) {
	n := 3
	a := MatAlloc(n, n)
	copy(a.Data, []float64{4, 1, 0, 1, 3, 1, 0, 1, 2})
	lu := NewLU(n)
	if err := lu.Init(a); err != nil {
		t.Fatalf("Init: %v", err)
	}
	b := MatAlloc(n, n)
	copy(b.Data, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})

	x := MatAlloc(n, n)
	if err := lu.BatchSolve(x, b); err != nil {
		t.Fatalf("BatchSolve: %v", err)
	}
	xt := MatAlloc(n, n)
	Transpose(xt, x)

	y := MatAlloc(n, n)
	if err := lu.BatchSolveTr(y, b); err != nil {
		t.Fatalf("BatchSolveTr: %v", err)
	}
	if NormDiffMat(xt, y) > 1e-9 {
		t.Fatalf("BatchSolveTr mismatch: got %v want %v", y.Data, xt.Data)
	}
}

func TestLUInitSingularFails(t *testing.T) {
	n := 2
	a := MatAlloc(n, n)
	copy(a.Data, []float64{1, 2, 2, 4}) // rank-1, singular
	lu := NewLU(n)
	if err := lu.Init(a); err == nil {
		t.Fatalf("expected factorization failure for singular matrix")
	}
}

func TestCholeskySolveRoundTrip(t *testing.T) {
	n := 2
	s := MatAlloc(n, n)
	copy(s.Data, []float64{4, 1, 1, 3})
	ch := NewCholesky(n)
	if err := ch.Init(s); err != nil {
		t.Fatalf("Init: %v", err)
	}
	x := VecAlloc(n)
	b := Vector{1, 2}
	if err := ch.Solve(x, b); err != nil {
		t.Fatalf("Solve: %v", err)
	}
	check := VecAlloc(n)
	MatVecMul(check, s, x)
	if NormDiffVec(check, b) > 1e-9 {
		t.Fatalf("S*x != b: got %v want %v", check, b)
	}
}
