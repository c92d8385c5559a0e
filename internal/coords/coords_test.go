package coords

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siteLat = 52.6683333333333

func eqmodFrame(polar bool) Frame {
	steps := EncoderPosition{RA: 2457601, Dec: 2457601}
	return NewFrame(siteLat, EncoderPosition{RA: 8388608, Dec: 9003008}, steps, polar)
}

func TestNewFrame_Hemisphere(t *testing.T) {
	assert.Equal(t, North, eqmodFrame(true).Hemisphere)
	assert.Equal(t, South, NewFrame(-33.9, EncoderPosition{}, EncoderPosition{RA: 1, Dec: 1}, true).Hemisphere)
	assert.Equal(t, "south", South.String())
	assert.Equal(t, "north", North.String())
}

func TestDefaultHome(t *testing.T) {
	home := DefaultHome(EncoderPosition{RA: 2457601, Dec: 2457601})
	assert.Equal(t, EncoderPosition{RA: 8388608, Dec: 9003008}, home)
}

func TestEncoderHours(t *testing.T) {
	f := eqmodFrame(true)
	tests := []struct {
		pos  int64
		want float64
	}{
		{8268421, 7.17370069429496},
		{8388037, 6.00557616960605},
		{8255092, 7.3038666569553},
		{8071485, 9.09690303674193},
		{8787006, 2.10939611434078},
		{8859092, 1.4054315570346851},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, f.EncoderHours(tt.pos), 1e-4, "EncoderHours(%d)", tt.pos)
		assert.Equal(t, tt.pos, f.EncoderFromHours(f.EncoderHours(tt.pos)), "round trip %d", tt.pos)
	}
}

func TestEncoderDegrees(t *testing.T) {
	f := eqmodFrame(true)
	tests := []struct {
		pos  int64
		want float64
	}{
		{8841712, 246.372629242908},
		{9196760, 298.381592455407},
		{8775416, 236.661305069456},
		{8417144, 184.180076424122},
		{9618872, 0.214379795581124},
	}
	for _, tt := range tests {
		got := math.Mod(f.EncoderDegrees(tt.pos)+270, 360)
		assert.InDelta(t, tt.want, got, 1e-4, "EncoderDegrees(%d)", tt.pos)
		assert.Equal(t, tt.pos, f.EncoderFromDegrees(f.EncoderDegrees(tt.pos)), "round trip %d", tt.pos)
	}
}

func TestEncoderRoundTrip_South(t *testing.T) {
	f := NewFrame(-33.9, EncoderPosition{RA: 8388608, Dec: 9003008}, EncoderPosition{RA: 2457601, Dec: 2457601}, true)
	for _, p := range []EncoderPosition{
		{RA: 8987817, Dec: 8919464},
		{RA: 7500000, Dec: 8600000},
		{RA: 8412924, Dec: 9595864},
	} {
		assert.Equal(t, p, f.Encoder(f.Axes(p)))
	}
}

func TestSphericalPolar(t *testing.T) {
	f := eqmodFrame(true)
	tests := []struct {
		in   EncoderPosition
		x, y float64
	}{
		{EncoderPosition{RA: 8388037, Dec: 9196760}, 8673472.03, 9625248.60},
		{EncoderPosition{RA: 8255092, Dec: 8775416}, 8126324.76, 9773690.13},
		{EncoderPosition{RA: 8787006, Dec: 8417144}, 7430599.89, 9754617.08},
		{EncoderPosition{RA: 8071485, Dec: 9618872}, 9276243.80, 9878388.38},
	}
	for _, tt := range tests {
		got := f.SphericalPolar(tt.in)
		assert.InDelta(t, tt.x, got.X, 1, "x for %v", tt.in)
		assert.InDelta(t, tt.y, got.Y, 1, "y for %v", tt.in)
		assert.Equal(t, 1, got.R)
	}

	far := f.SphericalPolar(EncoderPosition{RA: 7500000, Dec: 8600000})
	assert.Equal(t, 0, far.R)
}

func TestPolarSpherical(t *testing.T) {
	f := eqmodFrame(true)
	tests := []struct {
		in   SphericalCoord
		want EncoderPosition
	}{
		{SphericalCoord{X: 7471271.29753954, Y: 9742383.65611805, R: 1}, EncoderPosition{RA: 8759202, Dec: 8436394}},
		{SphericalCoord{X: 9161266.49146647, Y: 9750146.49564232, R: 1}, EncoderPosition{RA: 8122975, Dec: 9512771}},
		{SphericalCoord{X: 8697627.74809352, Y: 10016642.0517647, R: 1}, EncoderPosition{RA: 8584348, Dec: 9352474}},
		{SphericalCoord{X: 8082972.21063669, Y: 9800326.76416405, R: 1}, EncoderPosition{RA: 8284828, Dec: 8740647}},
	}
	for _, tt := range tests {
		got := f.PolarSpherical(tt.in, tt.in.R)
		assert.InDelta(t, tt.want.RA, got.RA, 1, "ra for %v", tt.in)
		assert.InDelta(t, tt.want.Dec, got.Dec, 1, "dec for %v", tt.in)
	}
}

func TestPolarToCartesian(t *testing.T) {
	f := eqmodFrame(true)
	got := f.PolarToCartesian(SphericalCoord{X: 8388607.58399624, Y: 9512710.14727313, R: 1})
	assert.InDelta(t, 509702.147272839, got.X, 1e-4)
	assert.InDelta(t, -0.5458, got.Y, 0.01)
	assert.Equal(t, 1.0, got.R)
	assert.Equal(t, 0.0, got.RA)

	neg := f.PolarToCartesian(SphericalCoord{X: 8388608, Y: 9000000})
	assert.Equal(t, -1.0, neg.R)

	zero := f.PolarToCartesian(SphericalCoord{X: 8388608, Y: 9003008})
	assert.InDelta(t, 1.0, zero.X, 1e-12, "zero radius is replaced by 1")
}

func TestCartesianToPolar(t *testing.T) {
	f := eqmodFrame(true)
	got := f.CartesianToPolar(Coord{X: 509688.110229567, Y: 43.3535014036799, Z: 1}, CartesCoord{R: 1})
	assert.InDelta(t, 8388641.26987594, got.X, 1e-6)
	assert.InDelta(t, 9512696.11207337, got.Y, 1e-6)
}

func TestPolarCartesian_RoundTripSweep(t *testing.T) {
	f := eqmodFrame(true)
	steps := float64(f.Steps.RA)
	home := float64(f.Home.RA)

	// The inverse returns X within half a revolution of home, so inputs
	// further out come back shifted by whole revolutions.
	for i := -400; i <= 400; i++ {
		x := home + float64(i)*steps/200 + 0.37
		for _, y := range []float64{float64(f.Home.Dec) + 500000.25, float64(f.Home.Dec) - 300000.5} {
			sp := SphericalCoord{X: x, Y: y}
			cart := f.PolarToCartesian(sp)
			got := f.CartesianToPolar(cart.Coord(), cart)

			d := got.X - x
			revs := math.Round(d / steps)
			assert.InDelta(t, 0, d-revs*steps, 1e-6, "x for %v", sp)
			assert.InDelta(t, y, got.Y, 1e-6, "y for %v", sp)
			if i > -100 && i < 100 {
				assert.Zero(t, revs, "x for %v", sp)
			}
		}
	}

	// zero angle one revolution out lands back on home
	sp := SphericalCoord{X: home + steps, Y: float64(f.Home.Dec) + 500000}
	cart := f.PolarToCartesian(sp)
	got := f.CartesianToPolar(cart.Coord(), cart)
	assert.InDelta(t, home, got.X, 1e-6)
}

func TestToCartesian(t *testing.T) {
	f := eqmodFrame(true)
	tests := []struct {
		in   EncoderPosition
		x, y float64
	}{
		{EncoderPosition{RA: 8619721, Dec: 8850776}, 322188.538, -258342.032},
		{EncoderPosition{RA: 8487504, Dec: 8913867}, 456444.628, -182935.357},
	}
	for _, tt := range tests {
		got := f.ToCartesian(tt.in)
		assert.InDelta(t, tt.x, got.X, 1, "x for %v", tt.in)
		assert.InDelta(t, tt.y, got.Y, 1, "y for %v", tt.in)
		assert.Equal(t, 1.0, got.Z)
	}

	raw := eqmodFrame(false).ToCartesian(EncoderPosition{RA: 10, Dec: 20})
	assert.Equal(t, Coord{X: 10, Y: 20, Z: 1}, raw)
}

func TestApply_IdentityRoundTrip(t *testing.T) {
	identity := func(c Coord) Coord { return c }
	for _, polar := range []bool{true, false} {
		f := eqmodFrame(polar)
		for _, p := range []EncoderPosition{
			{RA: 8987817, Dec: 8919464},
			{RA: 7985357, Dec: 9135000},
			{RA: 8412924, Dec: 9595864},
			{RA: 8052543, Dec: 8698296},
			{RA: 7500000, Dec: 8600000},
		} {
			got := f.Apply(p, identity)
			assert.InDelta(t, p.RA, got.RA, 1, "polar=%v ra for %v", polar, p)
			assert.InDelta(t, p.Dec, got.Dec, 1, "polar=%v dec for %v", polar, p)
		}
	}
}

func TestApply_Translation(t *testing.T) {
	f := eqmodFrame(false)
	got := f.Apply(EncoderPosition{RA: 100, Dec: 200}, func(c Coord) Coord {
		return c.Add(Coord{X: 10.4, Y: -20.6})
	})
	assert.Equal(t, EncoderPosition{RA: 110, Dec: 179}, got)
}

func TestAltAzHaDec_RoundTrip(t *testing.T) {
	lat := siteLat * math.Pi / 180
	for _, tt := range []struct{ ha, dec float64 }{
		{0.3, 0.5},
		{-1.2, 0.1},
		{2.5, -0.2},
	} {
		alt, az := AltAz(lat, tt.ha, tt.dec)
		require.True(t, az >= 0 && az < 2*math.Pi)
		ha, dec := HaDec(lat, alt, az)
		assert.InDelta(t, tt.ha, ha, 1e-9)
		assert.InDelta(t, tt.dec, dec, 1e-9)
	}
}

func TestRaDecToAltAz(t *testing.T) {
	const lst = 23.512585864433397
	tests := []struct {
		ra, dec, alt, az float64
	}{
		{23.6715774536133, 77.7643051147461, 64.88899443968386, 1.1907569471886876},
		{5.94036722183228, 7.41184711456299, 2.0267400415389205, 80.4182283547155},
		{14.0829401016235, 64.2641220092773, 30.686671389942585, 341.6569176081405},
	}
	for _, tt := range tests {
		alt, az := RaDecToAltAz(tt.ra, tt.dec, lst, siteLat)
		assert.InDelta(t, tt.alt, alt, 1e-9)
		assert.InDelta(t, tt.az, az, 1e-9)

		ra, dec := AltAzToRaDec(alt, az, siteLat, lst)
		assert.InDelta(t, tt.ra, ra, 1e-9)
		assert.InDelta(t, tt.dec, dec, 1e-9)
	}

	// on the meridian at the celestial equator
	alt, az := RaDecToAltAz(10, 0, 10, siteLat)
	assert.InDelta(t, 90-siteLat, alt, 1e-9)
	assert.InDelta(t, 180, az, 1e-9)
}

func TestCoordArithmetic(t *testing.T) {
	a := Coord{X: 1, Y: 2, Z: 1}
	b := Coord{X: 4, Y: 6, Z: 1}
	assert.Equal(t, Coord{X: 3, Y: 4, Z: 0}, b.Sub(a))
	assert.Equal(t, Coord{X: 5, Y: 8, Z: 2}, a.Add(b))
	assert.Equal(t, Coord{X: 2, Y: 4, Z: 2}, a.Scale(2))
	assert.Equal(t, 25.0, a.DistanceSquared(b))

	p := EncoderPosition{RA: 10, Dec: 20}
	q := EncoderPosition{RA: 13, Dec: 24}
	assert.Equal(t, EncoderPosition{RA: 3, Dec: 4}, q.Sub(p))
	assert.Equal(t, q, p.Add(EncoderPosition{RA: 3, Dec: 4}))
	assert.Equal(t, 25.0, p.DistanceSquared(q))
}
