package coords

import (
	"math"

	"github.com/thurmanmarka/nstaralign/internal/timeutil"
)

// EncoderLimit is the first encoder value outside the 24-bit range the
// mount reports. Positions at or above it are not corrected.
const EncoderLimit int64 = 0x1000000

// EncoderHome is the RA encoder count at the home (counterweight down)
// position.
const EncoderHome int64 = 0x800000

// Frame carries the fixed site and mount geometry used by the encoder
// conversions.
type Frame struct {
	Latitude    float64         // site latitude in degrees, north positive
	Hemisphere  Hemisphere      // derived from Latitude by NewFrame
	Home        EncoderPosition // encoder counts at the home position
	Steps       EncoderPosition // encoder counts per full revolution
	PolarEnable bool            // project through the spherical-polar plot
}

// NewFrame builds a frame and derives the hemisphere from the latitude.
func NewFrame(lat float64, home, steps EncoderPosition, polar bool) Frame {
	return Frame{
		Latitude:    lat,
		Hemisphere:  HemisphereFor(lat),
		Home:        home,
		Steps:       steps,
		PolarEnable: polar,
	}
}

// DefaultHome returns the home encoder position for a mount with the given
// steps per revolution: RA at EncoderHome and Dec a quarter turn above it.
func DefaultHome(steps EncoderPosition) EncoderPosition {
	return EncoderPosition{RA: EncoderHome, Dec: EncoderHome + steps.Dec/4}
}

// -----------------------------
// Encoder <-> axis values
// -----------------------------

// EncoderHours converts an RA encoder count to axis hours [0,24).
func (f Frame) EncoderHours(pos int64) float64 {
	home := float64(f.Home.RA)
	steps := float64(f.Steps.RA)
	p := float64(pos)

	var h float64
	if p > home {
		h = 24 - (p-home)/steps*24
	} else {
		h = (home - p) / steps * 24
	}

	if f.Hemisphere == South {
		return timeutil.Normalize24((24 - h) + 6)
	}
	return timeutil.Normalize24(h + 6)
}

// EncoderDegrees converts a Dec encoder count to axis degrees [0,360).
func (f Frame) EncoderDegrees(pos int64) float64 {
	home := float64(f.Home.Dec)
	steps := float64(f.Steps.Dec)
	p := float64(pos)

	var d float64
	if p > home {
		d = (p - home) / steps * 360
	} else {
		d = 360 - (home-p)/steps*360
	}

	if f.Hemisphere == South {
		return timeutil.Normalize360(360 - d)
	}
	return timeutil.Normalize360(d)
}

// EncoderFromHours is the inverse of EncoderHours, rounded to the nearest
// step.
func (f Frame) EncoderFromHours(hours float64) int64 {
	home := float64(f.Home.RA)
	steps := float64(f.Steps.RA)
	h := timeutil.Normalize24(hours - 6)

	var p float64
	if f.Hemisphere == South {
		if h < 12 {
			p = home + h/24*steps
		} else {
			p = home - (24-h)/24*steps
		}
	} else {
		if h < 12 {
			p = home - h/24*steps
		} else {
			p = (24-h)/24*steps + home
		}
	}
	return int64(math.Round(p))
}

// EncoderFromDegrees is the inverse of EncoderDegrees, rounded to the
// nearest step.
func (f Frame) EncoderFromDegrees(degrees float64) int64 {
	home := float64(f.Home.Dec)
	steps := float64(f.Steps.Dec)
	d := degrees
	if f.Hemisphere == South {
		d = 360 - d
	}

	if d > 180 {
		return int64(math.Round(home - (360-d)/360*steps))
	}
	return int64(math.Round(d/360*steps + home))
}

// Axes converts an encoder position to axis hours and degrees.
func (f Frame) Axes(p EncoderPosition) AxisPosition {
	return AxisPosition{RA: f.EncoderHours(p.RA), Dec: f.EncoderDegrees(p.Dec)}
}

// Encoder converts axis hours and degrees back to encoder counts.
func (f Frame) Encoder(a AxisPosition) EncoderPosition {
	return EncoderPosition{RA: f.EncoderFromHours(a.RA), Dec: f.EncoderFromDegrees(a.Dec)}
}

// -----------------------------
// Spherical polar plot
// -----------------------------

// SphericalPolar maps an encoder position onto the alt/az polar plot,
// expressed in encoder-equivalent units around home.
func (f Frame) SphericalPolar(p EncoderPosition) SphericalCoord {
	ha := timeutil.Hrs2Rad(f.EncoderHours(p.RA))
	dec := timeutil.Deg2Rad(timeutil.Normalize360(f.EncoderDegrees(p.Dec) + 270))

	alt, az := AltAz(timeutil.Deg2Rad(f.Latitude), ha, dec)
	altD := timeutil.Rad2Deg(alt)
	azD := timeutil.Rad2Deg(az)

	out := SphericalCoord{
		X: (azD-180)/360*float64(f.Steps.RA) + float64(f.Home.RA),
		Y: (altD+90)/180*float64(f.Steps.Dec) + float64(f.Home.Dec),
	}

	quarter := float64(f.Steps.RA) / 4
	ra := float64(p.RA)
	home := float64(f.Home.RA)
	if ra >= home-quarter && ra <= home+quarter {
		out.R = 1
	}
	return out
}

// PolarSpherical is the inverse of SphericalPolar. rangeFlag is the R value
// of the spherical point the position was originally derived from; it picks
// the side of the pole the declination unfolds to.
func (f Frame) PolarSpherical(pos SphericalCoord, rangeFlag int) EncoderPosition {
	az := (pos.X-float64(f.Home.RA))/float64(f.Steps.RA)*360 + 180
	alt := (pos.Y-float64(f.Home.Dec))/float64(f.Steps.Dec)*180 - 90

	haR, decR := HaDec(timeutil.Deg2Rad(f.Latitude), timeutil.Deg2Rad(alt), timeutil.Deg2Rad(az))
	ha := timeutil.Rad2Hrs(haR)
	dec := timeutil.Rad2Deg(decR)

	if az > 180 {
		if rangeFlag == 0 {
			dec = timeutil.Normalize360(180 - dec)
		} else {
			dec = timeutil.Normalize360(dec)
		}
	} else {
		if rangeFlag == 0 {
			dec = timeutil.Normalize360(dec)
		} else {
			dec = timeutil.Normalize360(180 - dec)
		}
	}

	if timeutil.Normalize360(dec+90) < 180 {
		if rangeFlag == 1 {
			ha = timeutil.Normalize24(ha)
		} else {
			ha = timeutil.Normalize24(24 + ha)
		}
	} else {
		ha = timeutil.Normalize24(12 + ha)
	}

	return EncoderPosition{
		RA:  f.EncoderFromHours(ha),
		Dec: f.EncoderFromDegrees(dec + 90),
	}
}

// PolarToCartesian projects a spherical-polar point onto the plane, using
// the RA offset from home as the angle and the Dec offset as the radius.
func (f Frame) PolarToCartesian(sp SphericalCoord) CartesCoord {
	theta := timeutil.Deg2Rad(timeutil.Normalize360((sp.X - float64(f.Home.RA)) / float64(f.Steps.RA) * 360))
	radius := sp.Y - float64(f.Home.Dec)
	if radius == 0 {
		radius = 1
	}

	out := CartesCoord{
		X:  math.Cos(theta) * radius,
		Y:  math.Sin(theta) * radius,
		Z:  1,
		R:  1,
		RA: 0,
	}
	if radius < 0 {
		out.R = -1
	}
	return out
}

// CartesianToPolar is the inverse of PolarToCartesian. rads supplies the
// radius sign and offset recorded when the point was projected.
func (f Frame) CartesianToPolar(c Coord, rads CartesCoord) SphericalCoord {
	radius := math.Sqrt(c.X*c.X+c.Y*c.Y) * rads.R

	angle := timeutil.Rad2Deg(math.Atan2(c.Y, c.X))
	if angle < 0 {
		angle += 360
	}
	if rads.R < 0 {
		angle = timeutil.Normalize360(angle + 180)
	}

	var x float64
	if angle > 180 {
		x = float64(f.Home.RA) - (360-angle)/360*float64(f.Steps.RA)
	} else {
		x = angle/360*float64(f.Steps.RA) + float64(f.Home.RA)
	}

	return SphericalCoord{
		X: x,
		Y: radius + float64(f.Home.Dec) + rads.RA,
	}
}

// -----------------------------
// Working frame
// -----------------------------

// ToCartesian projects an encoder position into the working frame. With
// PolarEnable off the encoder counts are used directly.
func (f Frame) ToCartesian(p EncoderPosition) Coord {
	if !f.PolarEnable {
		return Coord{X: float64(p.RA), Y: float64(p.Dec), Z: 1}
	}
	return f.PolarToCartesian(f.SphericalPolar(p)).Coord()
}

// Apply projects p into the working frame, maps it through fn and returns
// the result as encoder counts.
func (f Frame) Apply(p EncoderPosition, fn func(Coord) Coord) EncoderPosition {
	if !f.PolarEnable {
		c := fn(Coord{X: float64(p.RA), Y: float64(p.Dec), Z: 1})
		return EncoderPosition{RA: int64(math.Round(c.X)), Dec: int64(math.Round(c.Y))}
	}

	sp := f.SphericalPolar(p)
	cart := f.PolarToCartesian(sp)
	out := fn(cart.Coord())
	return f.PolarSpherical(f.CartesianToPolar(out, cart), sp.R)
}
