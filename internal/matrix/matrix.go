// Package matrix is a small dense-matrix layer over gonum used by the
// alignment transforms.
//
// 2x2 and 3x3 inverses and determinants use closed-form cofactor formulas so
// that a singular triangle is detected by an exact zero determinant. Larger
// matrices go through gonum's LU factorisation.
package matrix

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrShape is returned when matrix dimensions are invalid or incompatible.
	ErrShape = errors.New("matrix shape mismatch")

	// ErrSingular is returned when a matrix has no inverse.
	ErrSingular = errors.New("matrix is singular")
)

// Matrix is a dense row-major matrix of float64.
type Matrix struct {
	d *mat.Dense
}

// New returns a rows x cols zero matrix.
func New(rows, cols int) (*Matrix, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("new %dx%d: %w", rows, cols, ErrShape)
	}
	return &Matrix{d: mat.NewDense(rows, cols, nil)}, nil
}

// FromRows builds a matrix from a slice of equal-length rows.
func FromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("from rows: empty input: %w", ErrShape)
	}
	cols := len(rows[0])
	data := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("from rows: row %d has %d columns, want %d: %w", i, len(r), cols, ErrShape)
		}
		data = append(data, r...)
	}
	return &Matrix{d: mat.NewDense(len(rows), cols, data)}, nil
}

// Identity returns the n x n identity matrix. It panics if n < 1.
func Identity(n int) *Matrix {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return &Matrix{d: d}
}

func (m *Matrix) Dims() (rows, cols int) {
	return m.d.Dims()
}

func (m *Matrix) At(i, j int) float64 {
	return m.d.At(i, j)
}

func (m *Matrix) Set(i, j int, v float64) {
	m.d.Set(i, j, v)
}

// Rows returns a copy of the matrix contents as row slices.
func (m *Matrix) Rows() [][]float64 {
	r, c := m.d.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		out[i] = make([]float64, c)
		mat.Row(out[i], i, m.d)
	}
	return out
}

// -----------------------------
// Algebra
// -----------------------------

// Multiply returns m x other.
func (m *Matrix) Multiply(other *Matrix) (*Matrix, error) {
	ar, ac := m.Dims()
	br, bc := other.Dims()
	if ac != br {
		return nil, fmt.Errorf("multiply %dx%d by %dx%d: %w", ar, ac, br, bc, ErrShape)
	}
	var out mat.Dense
	out.Mul(m.d, other.d)
	return &Matrix{d: &out}, nil
}

// Transpose returns a new matrix holding mᵀ.
func (m *Matrix) Transpose() *Matrix {
	return &Matrix{d: mat.DenseCopyOf(m.d.T())}
}

// Determinant returns the determinant of a square matrix.
func (m *Matrix) Determinant() (float64, error) {
	r, c := m.Dims()
	if r != c {
		return 0, fmt.Errorf("determinant of %dx%d: %w", r, c, ErrShape)
	}
	switch r {
	case 1:
		return m.At(0, 0), nil
	case 2:
		return det2(m), nil
	case 3:
		return det3(m), nil
	default:
		return mat.Det(m.d), nil
	}
}

// Invert returns the inverse of a square matrix. A zero determinant on the
// closed-form sizes, or an ill-conditioned LU factorisation on larger ones,
// yields ErrSingular.
func (m *Matrix) Invert() (*Matrix, error) {
	r, c := m.Dims()
	if r != c {
		return nil, fmt.Errorf("invert %dx%d: %w", r, c, ErrShape)
	}

	switch r {
	case 2:
		det := det2(m)
		if det == 0 {
			return nil, fmt.Errorf("invert 2x2: %w", ErrSingular)
		}
		return FromRows([][]float64{
			{m.At(1, 1) / det, -m.At(0, 1) / det},
			{-m.At(1, 0) / det, m.At(0, 0) / det},
		})
	case 3:
		det := det3(m)
		if det == 0 {
			return nil, fmt.Errorf("invert 3x3: %w", ErrSingular)
		}
		a := m.Rows()
		return FromRows([][]float64{
			{
				(a[1][1]*a[2][2] - a[2][1]*a[1][2]) / det,
				(a[0][2]*a[2][1] - a[0][1]*a[2][2]) / det,
				(a[0][1]*a[1][2] - a[1][1]*a[0][2]) / det,
			},
			{
				(a[1][2]*a[2][0] - a[2][2]*a[1][0]) / det,
				(a[0][0]*a[2][2] - a[2][0]*a[0][2]) / det,
				(a[0][2]*a[1][0] - a[1][2]*a[0][0]) / det,
			},
			{
				(a[1][0]*a[2][1] - a[2][0]*a[1][1]) / det,
				(a[0][1]*a[2][0] - a[2][1]*a[0][0]) / det,
				(a[0][0]*a[1][1] - a[1][0]*a[0][1]) / det,
			},
		})
	}

	var inv mat.Dense
	if err := inv.Inverse(m.d); err != nil {
		return nil, fmt.Errorf("invert %dx%d: %v: %w", r, c, err, ErrSingular)
	}
	for _, v := range inv.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("invert %dx%d: %w", r, c, ErrSingular)
		}
	}
	return &Matrix{d: &inv}, nil
}

// IsEqualTo reports whether other has the same shape and every element is
// within tol of the corresponding element of m.
func (m *Matrix) IsEqualTo(other *Matrix, tol float64) bool {
	if other == nil {
		return false
	}
	ar, ac := m.Dims()
	br, bc := other.Dims()
	if ar != br || ac != bc {
		return false
	}
	for i := 0; i < ar; i++ {
		for j := 0; j < ac; j++ {
			if math.Abs(m.At(i, j)-other.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}

// maxCondition bounds the 1-norm condition number of the normal matrix
// after scaling it to a unit diagonal.
const maxCondition = 1e12

// SolveNormalEquation returns the least-squares coefficients
// (FᵀF)⁻¹FᵀV for a features matrix F and values matrix V. A normal matrix
// that is singular or too ill-conditioned to invert yields ErrSingular.
func SolveNormalEquation(features, values *Matrix) (*Matrix, error) {
	fr, _ := features.Dims()
	vr, _ := values.Dims()
	if fr != vr {
		return nil, fmt.Errorf("normal equation: %d feature rows, %d value rows: %w", fr, vr, ErrShape)
	}

	ft := features.Transpose()
	ftf, err := ft.Multiply(features)
	if err != nil {
		return nil, err
	}
	if c := ftf.scaledCond(); c > maxCondition {
		return nil, fmt.Errorf("normal equation: condition number %.3g: %w", c, ErrSingular)
	}
	inv, err := ftf.Invert()
	if err != nil {
		return nil, fmt.Errorf("normal equation: %w", err)
	}
	ftv, err := ft.Multiply(values)
	if err != nil {
		return nil, err
	}
	return inv.Multiply(ftv)
}

// scaledCond returns the 1-norm condition number of a symmetric positive
// semi-definite matrix scaled to a unit diagonal, or +Inf when it is singular.
func (m *Matrix) scaledCond() float64 {
	n, _ := m.Dims()
	s := make([]float64, n)
	for i := range s {
		d := m.At(i, i)
		if !(d > 0) {
			return math.Inf(1)
		}
		s[i] = math.Sqrt(d)
	}

	var scaled mat.Dense
	scaled.Apply(func(i, j int, v float64) float64 {
		return v / (s[i] * s[j])
	}, m.d)
	c := mat.Cond(&scaled, 1)
	if math.IsNaN(c) {
		return math.Inf(1)
	}
	return c
}

func (m *Matrix) String() string {
	return fmt.Sprintf("%v", mat.Formatted(m.d, mat.Squeeze()))
}

func det2(m *Matrix) float64 {
	return m.At(0, 0)*m.At(1, 1) - m.At(0, 1)*m.At(1, 0)
}

func det3(m *Matrix) float64 {
	return m.At(0, 0)*(m.At(1, 1)*m.At(2, 2)-m.At(2, 1)*m.At(1, 2)) -
		m.At(0, 1)*(m.At(1, 0)*m.At(2, 2)-m.At(2, 0)*m.At(1, 2)) +
		m.At(0, 2)*(m.At(1, 0)*m.At(2, 1)-m.At(2, 0)*m.At(1, 1))
}
