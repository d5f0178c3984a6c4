package geoproj

import (
	"math"

	"github.com/rotisserie/eris"
)

// WGS84 ellipsoid and UTM constants.
const (
	semiMajorAxis = 6378137.0
	flattening    = 1.0 / 298.257223563

	utmScale        = 0.9996
	utmFalseEasting = 500000.0
	utmFalseNorth   = 10000000.0 // southern hemisphere only
)

// UTMZone returns the standard UTM zone for a longitude/latitude pair.
func UTMZone(lon, lat float64) (zone int, north bool) {
	zone = int(math.Floor((lon+180)/6)) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return zone, lat >= 0
}

// Projector converts between WGS84 degrees and UTM meters for one zone,
// using the Krüger series expansion of the transverse Mercator mapping.
// Accuracy is sub-millimeter within the zone.
type Projector struct {
	crs        CRS
	lon0       float64 // central meridian, radians
	n          float64 // third flattening
	a          float64 // rectifying radius (scaled semi-major axis)
	alpha      [3]float64
	beta       [3]float64
	delta      [3]float64
	falseNorth float64
}

// NewProjector creates a Projector for the given UTM zone and hemisphere.
func NewProjector(zone int, north bool) (*Projector, error) {
	if zone < 1 || zone > 60 {
		return nil, eris.Errorf("geoproj: invalid UTM zone %d", zone)
	}

	n := flattening / (2 - flattening)
	n2 := n * n
	n3 := n2 * n

	p := &Projector{
		crs:  UTM(zone, north),
		lon0: float64(zone*6-183) * math.Pi / 180,
		n:    n,
		a:    semiMajorAxis / (1 + n) * (1 + n2/4 + n2*n2/64),
		alpha: [3]float64{
			n/2 - 2*n2/3 + 5*n3/16,
			13*n2/48 - 3*n3/5,
			61 * n3 / 240,
		},
		beta: [3]float64{
			n/2 - 2*n2/3 + 37*n3/96,
			n2/48 + n3/15,
			17 * n3 / 480,
		},
		delta: [3]float64{
			2*n - 2*n2/3 - 2*n3,
			7*n2/3 - 8*n3/5,
			56 * n3 / 15,
		},
	}
	if !north {
		p.falseNorth = utmFalseNorth
	}
	return p, nil
}

// ProjectorFor creates a Projector for the UTM zone containing the point.
func ProjectorFor(lon, lat float64) (*Projector, error) {
	zone, north := UTMZone(lon, lat)
	return NewProjector(zone, north)
}

// CRS returns the projected CRS this Projector maps into.
func (p *Projector) CRS() CRS { return p.crs }

// Forward converts WGS84 degrees to UTM easting/northing in meters.
func (p *Projector) Forward(lon, lat float64) (x, y float64) {
	phi := lat * math.Pi / 180
	lam := lon*math.Pi/180 - p.lon0

	sn := 2 * math.Sqrt(p.n) / (1 + p.n)
	t := math.Sinh(math.Atanh(math.Sin(phi)) - sn*math.Atanh(sn*math.Sin(phi)))

	xiP := math.Atan2(t, math.Cos(lam))
	etaP := math.Atanh(math.Sin(lam) / math.Sqrt(1+t*t))

	xi, eta := xiP, etaP
	for j, a := range p.alpha {
		k := float64(2 * (j + 1))
		xi += a * math.Sin(k*xiP) * math.Cosh(k*etaP)
		eta += a * math.Cos(k*xiP) * math.Sinh(k*etaP)
	}

	x = utmFalseEasting + utmScale*p.a*eta
	y = p.falseNorth + utmScale*p.a*xi
	return x, y
}

// Inverse converts UTM easting/northing in meters back to WGS84 degrees.
func (p *Projector) Inverse(x, y float64) (lon, lat float64) {
	xi := (y - p.falseNorth) / (utmScale * p.a)
	eta := (x - utmFalseEasting) / (utmScale * p.a)

	xiP, etaP := xi, eta
	for j, b := range p.beta {
		k := float64(2 * (j + 1))
		xiP -= b * math.Sin(k*xi) * math.Cosh(k*eta)
		etaP -= b * math.Cos(k*xi) * math.Sinh(k*eta)
	}

	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))

	phi := chi
	for j, d := range p.delta {
		k := float64(2 * (j + 1))
		phi += d * math.Sin(k*chi)
	}

	lam := math.Atan2(math.Sinh(etaP), math.Cos(xiP))

	lon = (lam + p.lon0) * 180 / math.Pi
	lat = phi * 180 / math.Pi
	return lon, lat
}

// Haversine returns the great-circle distance in meters between two
// WGS84 points. Used where a full projection is unnecessary, e.g.
// street-edge lengths and nearest-node snapping.
func Haversine(lat1, lon1, lat2, lon2 float64) float64 {
	const earthRadius = 6371000.0

	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLam := (lon2 - lon1) * math.Pi / 180

	s := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLam/2)*math.Sin(dLam/2)
	return 2 * earthRadius * math.Asin(math.Sqrt(s))
}
