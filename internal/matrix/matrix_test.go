package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRows(t *testing.T, rows [][]float64) *Matrix {
	t.Helper()
	m, err := FromRows(rows)
	require.NoError(t, err)
	return m
}

func TestNew_InvalidShape(t *testing.T) {
	tests := []struct {
		rows, cols int
	}{
		{0, 3},
		{3, 0},
		{-1, 2},
	}
	for _, tt := range tests {
		_, err := New(tt.rows, tt.cols)
		assert.ErrorIs(t, err, ErrShape, "New(%d, %d)", tt.rows, tt.cols)
	}

	m, err := New(2, 3)
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 3, c)
	assert.Equal(t, 0.0, m.At(1, 2))
}

func TestFromRows_Ragged(t *testing.T) {
	_, err := FromRows([][]float64{{1, 2}, {3}})
	assert.ErrorIs(t, err, ErrShape)

	_, err = FromRows(nil)
	assert.ErrorIs(t, err, ErrShape)
}

func TestInvert_ThreeByThree(t *testing.T) {
	a := mustRows(t, [][]float64{
		{1, 18894.75675, 14226.78803},
		{1, 12831.49749, 16721.15369},
		{1, 9661.92668, 13113.96006},
	})
	want := mustRows(t, [][]float64{
		{0.225445485, -3.705052597, 4.479607112},
		{0.000121139, -0.000037372, -0.000083767},
		{-0.000106442, 0.000310061, -0.000203619},
	})

	det, err := a.Determinant()
	require.NoError(t, err)
	assert.InDelta(t, 29777418.77, det, 0.1)

	inv, err := a.Invert()
	require.NoError(t, err)
	assert.True(t, inv.IsEqualTo(want, 1e-4), "inverse = %v", inv)

	// A·A⁻¹ = I
	prod, err := a.Multiply(inv)
	require.NoError(t, err)
	assert.True(t, prod.IsEqualTo(Identity(3), 1e-9), "A*inv = %v", prod)
}

func TestInvert_TwoByTwo(t *testing.T) {
	a := mustRows(t, [][]float64{{4, 7}, {2, 6}})
	inv, err := a.Invert()
	require.NoError(t, err)
	want := mustRows(t, [][]float64{{0.6, -0.7}, {-0.2, 0.4}})
	assert.True(t, inv.IsEqualTo(want, 1e-12))
}

func TestInvert_Singular(t *testing.T) {
	tests := []struct {
		name string
		rows [][]float64
	}{
		{"2x2", [][]float64{{1, 2}, {2, 4}}},
		{"3x3", [][]float64{{1, 2, 3}, {2, 4, 6}, {1, 1, 1}}},
		{"4x4", [][]float64{{1, 2, 3, 4}, {2, 4, 6, 8}, {0, 1, 0, 1}, {1, 0, 1, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mustRows(t, tt.rows).Invert()
			assert.ErrorIs(t, err, ErrSingular)
		})
	}
}

func TestInvert_LargerUsesLU(t *testing.T) {
	a := mustRows(t, [][]float64{
		{2, 0, 0, 0},
		{0, 4, 0, 0},
		{0, 0, 5, 0},
		{0, 0, 0, 8},
	})
	inv, err := a.Invert()
	require.NoError(t, err)
	want := mustRows(t, [][]float64{
		{0.5, 0, 0, 0},
		{0, 0.25, 0, 0},
		{0, 0, 0.2, 0},
		{0, 0, 0, 0.125},
	})
	assert.True(t, inv.IsEqualTo(want, 1e-12))

	det, err := a.Determinant()
	require.NoError(t, err)
	assert.InDelta(t, 320.0, det, 1e-9)
}

func TestInvert_NotSquare(t *testing.T) {
	m, err := New(2, 3)
	require.NoError(t, err)

	_, err = m.Invert()
	assert.ErrorIs(t, err, ErrShape)

	_, err = m.Determinant()
	assert.ErrorIs(t, err, ErrShape)
}

func TestMultiply(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2, 3}, {4, 5, 6}})
	b := mustRows(t, [][]float64{{7, 8}, {9, 10}, {11, 12}})

	got, err := a.Multiply(b)
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{58, 64}, {139, 154}}, got.Rows())

	_, err = a.Multiply(a)
	assert.ErrorIs(t, err, ErrShape)
}

func TestTranspose(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2, 3}, {4, 5, 6}})
	assert.Equal(t, [][]float64{{1, 4}, {2, 5}, {3, 6}}, a.Transpose().Rows())
}

func TestIsEqualTo(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 2}, {3, 4}})
	b := mustRows(t, [][]float64{{1.00001, 2}, {3, 4}})
	c := mustRows(t, [][]float64{{1, 2, 0}, {3, 4, 0}})

	assert.True(t, a.IsEqualTo(b, 1e-4))
	assert.False(t, a.IsEqualTo(b, 1e-6))
	assert.False(t, a.IsEqualTo(c, 1))
	assert.False(t, a.IsEqualTo(nil, 1))
}

func TestSolveNormalEquation(t *testing.T) {
	features := mustRows(t, [][]float64{
		{1, 18894.75675, 14226.78803},
		{1, 12831.49749, 16721.15369},
		{1, 9661.92668, 13113.96006},
	})
	values := mustRows(t, [][]float64{
		{2.1449, 2.1487},
		{3.1759, 1.5399},
		{4.9241, 1.6036},
	})
	want := mustRows(t, [][]float64{
		{10.77471486, 1.962502184},
		{-0.00027134, 0.000068413},
		{-0.00024623, -0.000077773},
	})

	got, err := SolveNormalEquation(features, values)
	require.NoError(t, err)
	assert.True(t, got.IsEqualTo(want, 1e-4), "coefficients = %v", got)
}

func TestSolveNormalEquation_Errors(t *testing.T) {
	features := mustRows(t, [][]float64{{1, 1}, {1, 1}, {1, 1}})
	values := mustRows(t, [][]float64{{1}, {2}, {3}})
	_, err := SolveNormalEquation(features, values)
	assert.ErrorIs(t, err, ErrSingular)

	short := mustRows(t, [][]float64{{1}, {2}})
	_, err = SolveNormalEquation(features, short)
	assert.ErrorIs(t, err, ErrShape)
}

func TestSolveNormalEquation_NearlySingular(t *testing.T) {
	// Collinear points centred on their mean. Rounding leaves det(FᵀF)
	// a few ulps away from zero.
	pts := [][2]float64{{0.1, 0.3}, {0.2, 0.6}, {0.3, 0.9}, {0.7, 2.1}}
	var cx, cy float64
	for _, p := range pts {
		cx += p[0] / float64(len(pts))
		cy += p[1] / float64(len(pts))
	}
	rows := make([][]float64, len(pts))
	vals := make([][]float64, len(pts))
	for i, p := range pts {
		rows[i] = []float64{1, p[0] - cx, p[1] - cy}
		vals[i] = []float64{p[0] + 1, p[1] - 2}
	}

	_, err := SolveNormalEquation(mustRows(t, rows), mustRows(t, vals))
	assert.ErrorIs(t, err, ErrSingular)
}
