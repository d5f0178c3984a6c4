// Package geoproj provides coordinate reference system handling and the
// locally accurate metric (UTM) projection used for clipping, area, and
// centroid computation. Geographic degree coordinates never flow into a
// metric computation without passing through this package first.
package geoproj

import (
	"fmt"

	"go.uber.org/zap"
)

// Kind distinguishes geographic from projected coordinate systems.
type Kind int

const (
	// Unset means the source did not declare a CRS. It must be resolved
	// via EnsureGeographic before any metric computation.
	Unset Kind = iota
	// Geographic is WGS84 longitude/latitude in degrees (EPSG:4326).
	Geographic
	// Projected is a UTM zone with coordinates in meters.
	Projected
)

// CRS identifies the coordinate reference system of a geometry.
// The zero value is the unset CRS.
type CRS struct {
	Kind  Kind
	Zone  int  // UTM zone, 1-60; meaningful only when Kind == Projected
	North bool // hemisphere; meaningful only when Kind == Projected
}

// WGS84 is the geographic WGS84 CRS.
var WGS84 = CRS{Kind: Geographic}

// UTM returns the projected CRS for the given UTM zone and hemisphere.
func UTM(zone int, north bool) CRS {
	return CRS{Kind: Projected, Zone: zone, North: north}
}

// EPSG returns the EPSG code for the CRS, or 0 when unset.
func (c CRS) EPSG() int {
	switch c.Kind {
	case Geographic:
		return 4326
	case Projected:
		if c.North {
			return 32600 + c.Zone
		}
		return 32700 + c.Zone
	default:
		return 0
	}
}

func (c CRS) String() string {
	if code := c.EPSG(); code != 0 {
		return fmt.Sprintf("EPSG:%d", code)
	}
	return "unset"
}

// EnsureGeographic resolves an unset CRS to WGS84. The assumption is
// logged rather than made silently; the second return reports whether
// the default was applied. A projected CRS is returned unchanged and
// callers must check the Kind themselves.
func EnsureGeographic(c CRS) (CRS, bool) {
	if c.Kind != Unset {
		return c, false
	}
	zap.L().Warn("geoproj: geometry has no CRS, assuming WGS84 degrees")
	return WGS84, true
}
