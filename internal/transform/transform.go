// Package transform builds the local corrections applied between the
// encoder and target frames:
//   - Affine: a 2D linear map plus offset fitted exactly to three point pairs
//   - Taki: a 3D direction-cosine map built from each triangle's two edge
//     vectors and their unit normal
//   - FitAffine: a least-squares affine map over three or more pairs
//
// Every constructor returns a value; nothing is cached between calls.
package transform

import (
	"fmt"
	"math"

	"github.com/thurmanmarka/nstaralign/internal/coords"
	"github.com/thurmanmarka/nstaralign/internal/matrix"
)

// ErrInsufficientPairs is returned by FitAffine when fewer than three point
// pairs are supplied.
var ErrInsufficientPairs = fmt.Errorf("need at least 3 point pairs: %w", matrix.ErrShape)

// Transform maps a working-frame point from one frame to the other.
type Transform interface {
	Apply(c coords.Coord) coords.Coord
}

// Identity leaves points unchanged.
type Identity struct{}

func (Identity) Apply(c coords.Coord) coords.Coord { return c }

// -----------------------------
// Affine
// -----------------------------

// Affine maps (x, y) to Offset + (x, y)·M, where M is 2x2.
type Affine struct {
	M      *matrix.Matrix
	Offset coords.Coord
}

// AssembleAffine fits the affine map that takes a1, a2, a3 onto m1, m2, m3.
// Collinear source points yield matrix.ErrSingular.
func AssembleAffine(a1, a2, a3, m1, m2, m3 coords.Coord) (Affine, error) {
	p, err := matrix.FromRows([][]float64{
		{a2.X - a1.X, a2.Y - a1.Y},
		{a3.X - a1.X, a3.Y - a1.Y},
	})
	if err != nil {
		return Affine{}, err
	}
	q, err := matrix.FromRows([][]float64{
		{m2.X - m1.X, m2.Y - m1.Y},
		{m3.X - m1.X, m3.Y - m1.Y},
	})
	if err != nil {
		return Affine{}, err
	}

	pInv, err := p.Invert()
	if err != nil {
		return Affine{}, fmt.Errorf("affine: %w", err)
	}
	m, err := pInv.Multiply(q)
	if err != nil {
		return Affine{}, err
	}

	t := Affine{M: m}
	mapped := t.linear(a1)
	t.Offset = coords.Coord{X: m1.X - mapped.X, Y: m1.Y - mapped.Y}
	return t, nil
}

func (t Affine) linear(c coords.Coord) coords.Coord {
	return coords.Coord{
		X: c.X*t.M.At(0, 0) + c.Y*t.M.At(1, 0),
		Y: c.X*t.M.At(0, 1) + c.Y*t.M.At(1, 1),
		Z: 1,
	}
}

// Apply maps c through the affine transform. Z is returned as 1.
func (t Affine) Apply(c coords.Coord) coords.Coord {
	l := t.linear(c)
	return coords.Coord{X: t.Offset.X + l.X, Y: t.Offset.Y + l.Y, Z: 1}
}

// -----------------------------
// Taki
// -----------------------------

// Taki maps c to Offset + c·M in three dimensions.
type Taki struct {
	M      *matrix.Matrix
	Offset coords.Coord
}

// LMN returns the rows p2-p1, p3-p1 and the unit normal of those two
// vectors. The normal row is zero when the vectors are parallel.
func LMN(p1, p2, p3 coords.Coord) (*matrix.Matrix, error) {
	u := p2.Sub(p1)
	v := p3.Sub(p1)
	n := cross(u, v)
	if l := math.Sqrt(n.X*n.X + n.Y*n.Y + n.Z*n.Z); l != 0 {
		n = n.Scale(1 / l)
	}
	return matrix.FromRows([][]float64{
		{u.X, u.Y, u.Z},
		{v.X, v.Y, v.Z},
		{n.X, n.Y, n.Z},
	})
}

// AssembleTaki builds the Taki transform taking a1, a2, a3 onto m1, m2, m3.
func AssembleTaki(a1, a2, a3, m1, m2, m3 coords.Coord) (Taki, error) {
	src, err := LMN(a1, a2, a3)
	if err != nil {
		return Taki{}, err
	}
	dst, err := LMN(m1, m2, m3)
	if err != nil {
		return Taki{}, err
	}

	srcInv, err := src.Invert()
	if err != nil {
		return Taki{}, fmt.Errorf("taki: %w", err)
	}
	m, err := srcInv.Multiply(dst)
	if err != nil {
		return Taki{}, err
	}

	t := Taki{M: m}
	t.Offset = m1.Sub(t.linear(a1))
	return t, nil
}

func (t Taki) linear(c coords.Coord) coords.Coord {
	return coords.Coord{
		X: c.X*t.M.At(0, 0) + c.Y*t.M.At(1, 0) + c.Z*t.M.At(2, 0),
		Y: c.X*t.M.At(0, 1) + c.Y*t.M.At(1, 1) + c.Z*t.M.At(2, 1),
		Z: c.X*t.M.At(0, 2) + c.Y*t.M.At(1, 2) + c.Z*t.M.At(2, 2),
	}
}

func (t Taki) Apply(c coords.Coord) coords.Coord {
	return t.Offset.Add(t.linear(c))
}

func cross(a, b coords.Coord) coords.Coord {
	return coords.Coord{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

// -----------------------------
// Least squares
// -----------------------------

// FitAffine returns the affine map minimising the squared error from src
// onto dst. Inputs are centred on the source mean before solving the normal
// equation.
func FitAffine(src, dst []coords.Coord) (Affine, error) {
	if len(src) != len(dst) {
		return Affine{}, fmt.Errorf("fit affine: %d source and %d destination points: %w", len(src), len(dst), matrix.ErrShape)
	}
	if len(src) < 3 {
		return Affine{}, ErrInsufficientPairs
	}

	var cx, cy float64
	for _, c := range src {
		cx += c.X
		cy += c.Y
	}
	cx /= float64(len(src))
	cy /= float64(len(src))

	features := make([][]float64, len(src))
	values := make([][]float64, len(dst))
	for i := range src {
		features[i] = []float64{1, src[i].X - cx, src[i].Y - cy}
		values[i] = []float64{dst[i].X, dst[i].Y}
	}

	f, err := matrix.FromRows(features)
	if err != nil {
		return Affine{}, err
	}
	v, err := matrix.FromRows(values)
	if err != nil {
		return Affine{}, err
	}

	coef, err := matrix.SolveNormalEquation(f, v)
	if err != nil {
		return Affine{}, fmt.Errorf("fit affine: %w", err)
	}

	m, err := matrix.FromRows([][]float64{
		{coef.At(1, 0), coef.At(1, 1)},
		{coef.At(2, 0), coef.At(2, 1)},
	})
	if err != nil {
		return Affine{}, err
	}

	t := Affine{M: m}
	centre := t.linear(coords.Coord{X: cx, Y: cy})
	t.Offset = coords.Coord{X: coef.At(0, 0) - centre.X, Y: coef.At(0, 1) - centre.Y}
	return t, nil
}
