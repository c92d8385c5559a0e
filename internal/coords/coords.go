// Package coords holds the coordinate types of the alignment engine and the
// conversions between raw encoder counts, axis hours/degrees, the
// spherical-polar plot and its Cartesian projection.
//
// All functions are pure. A Frame fixes the site latitude and mount geometry
// used by the encoder conversions.
package coords

import "math"

// Hemisphere of the observing site.
type Hemisphere int

const (
	North Hemisphere = iota
	South
)

// HemisphereFor returns South for negative latitudes, North otherwise.
func HemisphereFor(lat float64) Hemisphere {
	if lat < 0 {
		return South
	}
	return North
}

func (h Hemisphere) String() string {
	if h == South {
		return "south"
	}
	return "north"
}

// EncoderPosition is a pair of raw encoder counts.
type EncoderPosition struct {
	RA  int64 `json:"ra" yaml:"ra"`
	Dec int64 `json:"dec" yaml:"dec"`
}

func (p EncoderPosition) Add(o EncoderPosition) EncoderPosition {
	return EncoderPosition{RA: p.RA + o.RA, Dec: p.Dec + o.Dec}
}

func (p EncoderPosition) Sub(o EncoderPosition) EncoderPosition {
	return EncoderPosition{RA: p.RA - o.RA, Dec: p.Dec - o.Dec}
}

// DistanceSquared returns the squared Euclidean distance in encoder steps.
func (p EncoderPosition) DistanceSquared(o EncoderPosition) float64 {
	dx := float64(p.RA - o.RA)
	dy := float64(p.Dec - o.Dec)
	return dx*dx + dy*dy
}

// AxisPosition holds axis values: RA in hours, Dec in degrees.
type AxisPosition struct {
	RA  float64 `json:"ra" yaml:"ra"`
	Dec float64 `json:"dec" yaml:"dec"`
}

// Coord is a point in the working frame. Z is the homogeneous component and
// is 1 for every projected encoder position.
type Coord struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

func (c Coord) Add(o Coord) Coord {
	return Coord{X: c.X + o.X, Y: c.Y + o.Y, Z: c.Z + o.Z}
}

func (c Coord) Sub(o Coord) Coord {
	return Coord{X: c.X - o.X, Y: c.Y - o.Y, Z: c.Z - o.Z}
}

func (c Coord) Scale(f float64) Coord {
	return Coord{X: c.X * f, Y: c.Y * f, Z: c.Z * f}
}

// DistanceSquared returns the squared distance between c and o in the XY
// plane.
func (c Coord) DistanceSquared(o Coord) float64 {
	dx := c.X - o.X
	dy := c.Y - o.Y
	return dx*dx + dy*dy
}

// CartesCoord is a Cartesian point together with the radius sign R (+1 or
// -1) and the radius offset RA added back by the inverse projection.
type CartesCoord struct {
	X, Y, Z float64
	R       float64
	RA      float64
}

// Coord drops the radius bookkeeping and returns the homogeneous point.
func (c CartesCoord) Coord() Coord {
	return Coord{X: c.X, Y: c.Y, Z: 1}
}

// SphericalCoord is a spherical-polar point in encoder-equivalent units.
// R is 1 when the RA encoder was within a quarter revolution of home.
type SphericalCoord struct {
	X, Y float64
	R    int
}

// -----------------------------
// Spherical triangle solving
// -----------------------------

// solveSphere returns cos(a) and angle B of a spherical triangle given angle
// A, side b and the cosine and sine of side c.
func solveSphere(A, b, cc, sc float64) (ca, B float64) {
	cb := math.Cos(b)
	sb := math.Sin(b)
	ca = cb*cc + sb*sc*math.Cos(A)
	ca = math.Max(-1, math.Min(1, ca))

	if sc < 1e-7 {
		if cc < 0 {
			B = A
		} else {
			B = math.Pi - A
		}
	} else {
		y := math.Sin(A) * sb * sc
		x := cb - ca*cc
		B = math.Atan2(y, x)
	}

	B = math.Mod(B, 2*math.Pi)
	if B < 0 {
		B += 2 * math.Pi
	}
	return ca, B
}

func aaha(lat, x, y float64) (float64, float64) {
	ca, B := solveSphere(-x, math.Pi/2-y, math.Sin(lat), math.Cos(lat))
	return B, math.Pi/2 - math.Acos(ca)
}

// AltAz converts hour angle and declination to altitude and azimuth. All
// values are radians; azimuth is in [0, 2π).
func AltAz(lat, ha, dec float64) (alt, az float64) {
	az, alt = aaha(lat, ha, dec)
	return alt, az
}

// HaDec converts altitude and azimuth to hour angle and declination. All
// values are radians; the hour angle is folded to (-π, π].
func HaDec(lat, alt, az float64) (ha, dec float64) {
	ha, dec = aaha(lat, az, alt)
	if ha > math.Pi {
		ha -= 2 * math.Pi
	}
	return ha, dec
}
