package coords

import (
	"math"

	"github.com/thurmanmarka/nstaralign/internal/timeutil"
)

// RaDecToAltAz converts right ascension (hours) and declination (degrees)
// to altitude and azimuth (degrees) for the given local sidereal time
// (hours) and latitude (degrees). Azimuth is measured from north through
// east.
func RaDecToAltAz(ra, dec, lst, lat float64) (alt, az float64) {
	ha := timeutil.Normalize12(lst - ra)

	sinHa := math.Sin(timeutil.Hrs2Rad(ha))
	cosHa := math.Cos(timeutil.Hrs2Rad(ha))
	sinDec := timeutil.SinD(dec)
	cosDec := timeutil.CosD(dec)
	sinLat := timeutil.SinD(lat)
	cosLat := timeutil.CosD(lat)

	north := sinDec*cosLat - cosHa*cosDec*sinLat
	east := -(sinHa * cosDec)
	up := cosHa*cosDec*cosLat + sinDec*sinLat

	az = timeutil.Normalize360(timeutil.Rad2Deg(math.Atan2(east, north)))
	alt = timeutil.Reflect90(timeutil.Rad2Deg(math.Atan2(up, math.Hypot(north, east))))
	return alt, az
}

// AltAzToRaDec is the inverse of RaDecToAltAz.
func AltAzToRaDec(alt, az, lat, lst float64) (ra, dec float64) {
	sinAz := timeutil.SinD(az)
	cosAz := timeutil.CosD(az)
	sinAlt := timeutil.SinD(alt)
	cosAlt := timeutil.CosD(alt)
	sinLat := timeutil.SinD(lat)
	cosLat := timeutil.CosD(lat)

	dec = timeutil.Reflect90(timeutil.Rad2Deg(math.Asin(cosAz*cosLat*cosAlt + sinLat*sinAlt)))

	ha := timeutil.Rad2Hrs(math.Atan2(-sinAz*cosAlt, -cosAz*sinLat*cosAlt+sinAlt*cosLat))
	ra = timeutil.Normalize24(lst - ha)
	return ra, dec
}
