package timeutil

import (
	"math"
	"time"
)

// -----------------------------
// Time relative to J2000
// -----------------------------

// JulianDay returns the Julian day number of t, including the day fraction.
func JulianDay(t time.Time) float64 {
	u := t.UTC()
	year, month, day := u.Date()
	hour := float64(u.Hour()) +
		float64(u.Minute())/60.0 +
		float64(u.Second())/3600.0 +
		float64(u.Nanosecond())/(3600.0*1e9)

	y := year
	m := int(month)

	if m <= 2 {
		y -= 1
		m += 12
	}

	A := y / 100
	B := 2 - A + A/4

	jd := math.Floor(365.25*float64(y+4716)) +
		math.Floor(30.6001*float64(m+1)) +
		float64(day) + float64(B) - 1524.5 +
		hour/24.0

	return jd
}

// LocalSiderealTime returns the local mean sidereal time in hours [0,24) for
// the given instant and east-positive longitude in degrees.
func LocalSiderealTime(t time.Time, lonDeg float64) float64 {
	d := JulianDay(t) - 2451545.0
	gmst := 280.46061837 + 360.98564736629*d
	return Normalize360(gmst+lonDeg) / 15.0
}

// -----------------------------
// Basic degree/radian helpers and trig with degree inputs.
// -----------------------------

func Deg2Rad(d float64) float64 {
	return d * math.Pi / 180.0
}

func Rad2Deg(r float64) float64 {
	return r * 180.0 / math.Pi
}

func Hrs2Rad(h float64) float64 {
	return h * math.Pi / 12.0
}

func Rad2Hrs(r float64) float64 {
	return r * 12.0 / math.Pi
}

func SinD(deg float64) float64 {
	return math.Sin(Deg2Rad(deg))
}

func CosD(deg float64) float64 {
	return math.Cos(Deg2Rad(deg))
}

// -----------------------------
// Range reduction
// -----------------------------

// Normalize360 reduces d to [0,360).
func Normalize360(d float64) float64 {
	d = math.Mod(d, 360.0)
	if d < 0 {
		d += 360.0
	}
	// a tiny negative remainder rounds up to exactly 360
	if d >= 360.0 {
		d = 0
	}
	return d
}

// Normalize24 reduces h to [0,24).
func Normalize24(h float64) float64 {
	h = math.Mod(h, 24.0)
	if h < 0 {
		h += 24.0
	}
	if h >= 24.0 {
		h = 0
	}
	return h
}

// Normalize12 reduces h to (-12,12].
func Normalize12(h float64) float64 {
	h = Normalize24(h)
	if h > 12.0 {
		h -= 24.0
	}
	return h
}

// NormalizePM180 reduces d to (-180,180].
func NormalizePM180(d float64) float64 {
	d = Normalize360(d)
	if d > 180.0 {
		d -= 360.0
	}
	return d
}

// Reflect90 folds an angle onto [-90,90] the way a declination passes over
// a pole: 100 becomes 80, -100 becomes -80.
func Reflect90(d float64) float64 {
	d = NormalizePM180(d)
	switch {
	case d > 90.0:
		return 180.0 - d
	case d < -90.0:
		return -180.0 - d
	}
	return d
}
