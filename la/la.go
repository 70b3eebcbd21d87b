// Package la implements the dense linear-algebra kernels the rest of
// this module builds on: a flat row-major Matrix/Vector pair, the
// elementwise arithmetic amdados needs (MatMul, MatMulTr, Symmetrize,
// Norm, ...), and Cholesky/LU factorizations exposing batched
// right-hand-side solves. Naming follows gosl/la (MatAlloc, MatFill,
// VecCopy, ...); the factorizations are backed by gonum.org/v1/gonum/mat.
package la

import (
	"math"

	"github.com/fearghalodonncha/allscale-amdados/errs"
)

// Vector is a dense vector of float64.
type Vector []float64

// VecAlloc allocates a zeroed vector of length n.
func VecAlloc(n int) Vector { return make(Vector, n) }

// VecFill sets every entry of v to val.
func VecFill(v Vector, val float64) {
	for i := range v {
		v[i] = val
	}
}

// VecCopy copies src into dst; dst and src must have equal length.
func VecCopy(dst, src Vector) {
	copy(dst, src)
}

// AddVec computes dst = a + b. dst may alias a or b.
func AddVec(dst, a, b Vector) {
	for i := range dst {
		dst[i] = a[i] + b[i]
	}
}

// SubVec computes dst = a - b. dst may alias a or b.
func SubVec(dst, a, b Vector) {
	for i := range dst {
		dst[i] = a[i] - b[i]
	}
}

// ScaleVec computes dst = s*a. dst may alias a.
func ScaleVec(dst Vector, s float64, a Vector) {
	for i := range dst {
		dst[i] = s * a[i]
	}
}

// NormVec returns the Euclidean (L2) norm of v.
func NormVec(v Vector) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// NormDiffVec returns the Euclidean norm of a-b without allocating.
func NormDiffVec(a, b Vector) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Matrix is a dense, row-major matrix.
type Matrix struct {
	Rows, Cols int
	Data       []float64
}

// MatAlloc allocates a zeroed rows x cols matrix.
func MatAlloc(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the (i,j) entry.
func (m *Matrix) At(i, j int) float64 { return m.Data[i*m.Cols+j] }

// Set assigns the (i,j) entry.
func (m *Matrix) Set(i, j int, v float64) { m.Data[i*m.Cols+j] = v }

// Add accumulates v into the (i,j) entry.
func (m *Matrix) Add(i, j int, v float64) { m.Data[i*m.Cols+j] += v }

// Row returns a slice view of row i (no copy).
func (m *Matrix) Row(i int) []float64 { return m.Data[i*m.Cols : (i+1)*m.Cols] }

// MatFill sets every entry of m to val.
func MatFill(m *Matrix, val float64) {
	for i := range m.Data {
		m.Data[i] = val
	}
}

// MatCopy copies src into dst; both must have identical shape.
func MatCopy(dst, src *Matrix) {
	copy(dst.Data, src.Data)
}

// MatIdentity resets m to the identity matrix; m must be square.
func MatIdentity(m *Matrix) {
	MatFill(m, 0)
	for i := 0; i < m.Rows; i++ {
		m.Set(i, i, 1)
	}
}

// MatMul computes dst = a*b. dst must be distinct from a and b.
func MatMul(dst, a, b *Matrix) {
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < b.Cols; j++ {
			var sum float64
			for k := 0; k < a.Cols; k++ {
				sum += a.At(i, k) * b.At(k, j)
			}
			dst.Set(i, j, sum)
		}
	}
}

// MatMulTr computes dst = a*bᵗ without materializing bᵗ. dst must be
// distinct from a and b.
func MatMulTr(dst, a, b *Matrix) {
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < b.Rows; j++ {
			var sum float64
			for k := 0; k < a.Cols; k++ {
				sum += a.At(i, k) * b.At(j, k)
			}
			dst.Set(i, j, sum)
		}
	}
}

// MatVecMul computes dst = a*x. dst must be distinct from x.
func MatVecMul(dst Vector, a *Matrix, x Vector) {
	for i := 0; i < a.Rows; i++ {
		var sum float64
		row := a.Row(i)
		for k, v := range row {
			sum += v * x[k]
		}
		dst[i] = sum
	}
}

// AddMat computes dst = a+b. dst may alias a or b.
func AddMat(dst, a, b *Matrix) {
	for i := range dst.Data {
		dst.Data[i] = a.Data[i] + b.Data[i]
	}
}

// SubMat computes dst = a-b. dst may alias a or b.
func SubMat(dst, a, b *Matrix) {
	for i := range dst.Data {
		dst.Data[i] = a.Data[i] - b.Data[i]
	}
}

// ScaleMat computes dst = s*a. dst may alias a.
func ScaleMat(dst *Matrix, s float64, a *Matrix) {
	for i := range dst.Data {
		dst.Data[i] = s * a.Data[i]
	}
}

// Transpose computes dst = aᵗ. dst must be distinct from a.
func Transpose(dst, a *Matrix) {
	for i := 0; i < a.Rows; i++ {
		for j := 0; j < a.Cols; j++ {
			dst.Set(j, i, a.At(i, j))
		}
	}
}

// Symmetrize corrects round-off asymmetry by averaging m with its
// transpose in place: m must be square.
func Symmetrize(m *Matrix) {
	for i := 0; i < m.Rows; i++ {
		for j := i + 1; j < m.Cols; j++ {
			avg := 0.5 * (m.At(i, j) + m.At(j, i))
			m.Set(i, j, avg)
			m.Set(j, i, avg)
		}
	}
}

// NormMat returns the Frobenius norm of m.
func NormMat(m *Matrix) float64 {
	var sum float64
	for _, v := range m.Data {
		sum += v * v
	}
	return math.Sqrt(sum)
}

// NormDiffMat returns the Frobenius norm of a-b without allocating.
func NormDiffMat(a, b *Matrix) float64 {
	var sum float64
	for i := range a.Data {
		d := a.Data[i] - b.Data[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CheckSquare returns errs.InvalidInput if m is not a square nxn matrix.
func CheckSquare(m *Matrix, n int) error {
	if m.Rows != n || m.Cols != n {
		return errs.Fatalf(errs.InvalidInput, "expected %dx%d matrix, got %dx%d", n, n, m.Rows, m.Cols)
	}
	return nil
}
