package crs

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/FAIRiCUBE/querycube-web/internal/core/model"
)

type ellipsoid struct {
	a float64 // semi-major axis, metres
	f float64 // flattening
}

func (e ellipsoid) e2() float64 { return 2*e.f - e.f*e.f }

var (
	wgs84Ellipsoid = ellipsoid{a: 6378137, f: 1 / 298.257223563}
	grs80Ellipsoid = ellipsoid{a: 6378137, f: 1 / 298.257222101}
)

// EPSG:3857 spherical web mercator
type webMercator struct{}

const (
	mercatorMaxExtent = 20037508.342789244
	mercatorMaxLat    = 85.05112877980659
)

func (webMercator) toWGS84(p orb.Point) (orb.Point, error) {
	if math.Abs(p.X()) > mercatorMaxExtent || math.Abs(p.Y()) > mercatorMaxExtent {
		return orb.Point{}, fmt.Errorf("%w: web mercator coordinate %v outside +-%.0f",
			model.ErrOutOfDomain, p, mercatorMaxExtent)
	}
	return project.Mercator.ToWGS84(p), nil
}

func (webMercator) fromWGS84(p orb.Point) (orb.Point, error) {
	if err := checkLonLat(p); err != nil {
		return orb.Point{}, err
	}
	if math.Abs(p.Lat()) > mercatorMaxLat {
		return orb.Point{}, fmt.Errorf("%w: latitude %v beyond web mercator limit",
			model.ErrOutOfDomain, p.Lat())
	}
	return project.WGS84.ToMercator(p), nil
}

func (webMercator) geographic() bool { return false }

// ellipsoidal Lambert azimuthal equal-area (EPSG method 9820)
type laea struct {
	ell            ellipsoid
	lat0, lon0     float64 // radians
	falseE, falseN float64

	e, e2 float64
	qp    float64
	beta0 float64
	rq    float64
	d     float64
}

// EPSG:3035 ETRS89-extended / LAEA Europe
var etrsLAEA = newLAEA(grs80Ellipsoid, 52, 10, 4321000, 3210000)

func newLAEA(ell ellipsoid, lat0, lon0, fe, fn float64) *laea {
	l := &laea{
		ell:    ell,
		lat0:   lat0 * math.Pi / 180,
		lon0:   lon0 * math.Pi / 180,
		falseE: fe,
		falseN: fn,
	}
	l.e2 = ell.e2()
	l.e = math.Sqrt(l.e2)
	l.qp = l.q(math.Pi / 2)
	l.beta0 = math.Asin(l.q(l.lat0) / l.qp)
	l.rq = ell.a * math.Sqrt(l.qp/2)
	sin0 := math.Sin(l.lat0)
	l.d = ell.a * (math.Cos(l.lat0) / math.Sqrt(1-l.e2*sin0*sin0)) / (l.rq * math.Cos(l.beta0))
	return l
}

func (l *laea) q(phi float64) float64 {
	s := math.Sin(phi)
	es := l.e * s
	return (1 - l.e2) * (s/(1-l.e2*s*s) - (1/(2*l.e))*math.Log((1-es)/(1+es)))
}

func (l *laea) fromWGS84(p orb.Point) (orb.Point, error) {
	if err := checkLonLat(p); err != nil {
		return orb.Point{}, err
	}
	phi := p.Lat() * math.Pi / 180
	dLon := p.Lon()*math.Pi/180 - l.lon0

	ratio := l.q(phi) / l.qp
	ratio = math.Max(-1, math.Min(1, ratio))
	beta := math.Asin(ratio)

	denom := 1 + math.Sin(l.beta0)*math.Sin(beta) + math.Cos(l.beta0)*math.Cos(beta)*math.Cos(dLon)
	if denom <= 1e-12 {
		return orb.Point{}, fmt.Errorf("%w: %v is antipodal to the projection centre", model.ErrOutOfDomain, p)
	}
	b := l.rq * math.Sqrt(2/denom)

	x := l.falseE + b*l.d*math.Cos(beta)*math.Sin(dLon)
	y := l.falseN + (b/l.d)*(math.Cos(l.beta0)*math.Sin(beta)-math.Sin(l.beta0)*math.Cos(beta)*math.Cos(dLon))
	return orb.Point{x, y}, nil
}

func (l *laea) toWGS84(p orb.Point) (orb.Point, error) {
	dx := p.X() - l.falseE
	dy := p.Y() - l.falseN
	rho := math.Sqrt(dx*dx/(l.d*l.d) + l.d*l.d*dy*dy)
	if rho == 0 {
		return orb.Point{l.lon0 * 180 / math.Pi, l.lat0 * 180 / math.Pi}, nil
	}
	if rho > 2*l.rq {
		return orb.Point{}, fmt.Errorf("%w: %v outside the LAEA disc", model.ErrOutOfDomain, p)
	}
	c := 2 * math.Asin(rho/(2*l.rq))
	sinC, cosC := math.Sin(c), math.Cos(c)

	betaP := math.Asin(cosC*math.Sin(l.beta0) + (l.d*dy*sinC*math.Cos(l.beta0))/rho)
	lon := l.lon0 + math.Atan2(dx*sinC, l.d*rho*math.Cos(l.beta0)*cosC-l.d*l.d*dy*math.Sin(l.beta0)*sinC)

	e2, e4, e6 := l.e2, l.e2*l.e2, l.e2*l.e2*l.e2
	lat := betaP +
		(e2/3+31*e4/180+517*e6/5040)*math.Sin(2*betaP) +
		(23*e4/360+251*e6/3780)*math.Sin(4*betaP) +
		(761*e6/45360)*math.Sin(6*betaP)

	out := orb.Point{normalizeLon(lon * 180 / math.Pi), lat * 180 / math.Pi}
	if err := checkLonLat(out); err != nil {
		return orb.Point{}, err
	}
	return out, nil
}

func (*laea) geographic() bool { return false }

// transverse mercator (Krüger n-series) for UTM zones
type utm struct {
	zone   int
	south  bool
	lon0   float64 // radians
	k0     float64
	falseE float64
	falseN float64

	n           float64
	bigA        float64
	alpha, beta [3]float64
	delta       [3]float64
}

func newUTM(ell ellipsoid, zone int, south bool) *utm {
	n := ell.f / (2 - ell.f)
	n2, n3 := n*n, n*n*n
	u := &utm{
		zone:   zone,
		south:  south,
		lon0:   float64(-183+6*zone) * math.Pi / 180,
		k0:     0.9996,
		falseE: 500000,
		n:      n,
		bigA:   ell.a / (1 + n) * (1 + n2/4 + n2*n2/64),
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
	if south {
		u.falseN = 10000000
	}
	return u
}

func (u *utm) fromWGS84(p orb.Point) (orb.Point, error) {
	if err := checkLonLat(p); err != nil {
		return orb.Point{}, err
	}
	phi := p.Lat() * math.Pi / 180
	dLon := normalizeLonRad(p.Lon()*math.Pi/180 - u.lon0)
	if math.Abs(dLon) >= math.Pi/2 {
		return orb.Point{}, fmt.Errorf("%w: %v too far from zone %d central meridian",
			model.ErrOutOfDomain, p, u.zone)
	}
	c := 2 * math.Sqrt(u.n) / (1 + u.n)
	t := math.Sinh(math.Atanh(math.Sin(phi)) - c*math.Atanh(c*math.Sin(phi)))
	xiP := math.Atan2(t, math.Cos(dLon))
	etaP := math.Atanh(math.Sin(dLon) / math.Sqrt(1+t*t))

	xi, eta := xiP, etaP
	for j := 1; j <= 3; j++ {
		a := u.alpha[j-1]
		fj := float64(2 * j)
		xi += a * math.Sin(fj*xiP) * math.Cosh(fj*etaP)
		eta += a * math.Cos(fj*xiP) * math.Sinh(fj*etaP)
	}
	x := u.falseE + u.k0*u.bigA*eta
	y := u.falseN + u.k0*u.bigA*xi
	return orb.Point{x, y}, nil
}

func (u *utm) toWGS84(p orb.Point) (orb.Point, error) {
	if p.X() <= 0 || p.X() >= 1000000 || p.Y() < 0 || p.Y() > 10000000 {
		return orb.Point{}, fmt.Errorf("%w: %v outside UTM zone %d grid", model.ErrOutOfDomain, p, u.zone)
	}
	xi := (p.Y() - u.falseN) / (u.k0 * u.bigA)
	eta := (p.X() - u.falseE) / (u.k0 * u.bigA)

	xiP, etaP := xi, eta
	for j := 1; j <= 3; j++ {
		b := u.beta[j-1]
		fj := float64(2 * j)
		xiP -= b * math.Sin(fj*xi) * math.Cosh(fj*eta)
		etaP -= b * math.Cos(fj*xi) * math.Sinh(fj*eta)
	}
	chi := math.Asin(math.Sin(xiP) / math.Cosh(etaP))
	phi := chi
	for j := 1; j <= 3; j++ {
		phi += u.delta[j-1] * math.Sin(float64(2*j)*chi)
	}
	lon := u.lon0 + math.Atan2(math.Sinh(etaP), math.Cos(xiP))

	out := orb.Point{normalizeLon(lon * 180 / math.Pi), phi * 180 / math.Pi}
	if err := checkLonLat(out); err != nil {
		return orb.Point{}, err
	}
	return out, nil
}

func (*utm) geographic() bool { return false }

func normalizeLon(deg float64) float64 {
	for deg > 180 {
		deg -= 360
	}
	for deg < -180 {
		deg += 360
	}
	return deg
}

func normalizeLonRad(r float64) float64 {
	for r > math.Pi {
		r -= 2 * math.Pi
	}
	for r < -math.Pi {
		r += 2 * math.Pi
	}
	return r
}
