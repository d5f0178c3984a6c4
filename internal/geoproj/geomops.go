package geoproj

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
)

// TransformFn maps one coordinate pair to another.
type TransformFn func(x, y float64) (float64, float64)

// Apply returns a copy of g with every coordinate mapped through fn.
// The input geometry is never mutated. Coordinates are X=longitude/easting,
// Y=latitude/northing; any Z/M values are carried through unchanged.
func Apply(g geom.T, fn TransformFn) (geom.T, error) {
	switch t := g.(type) {
	case *geom.Point:
		return geom.NewPointFlat(t.Layout(), transformFlat(t.FlatCoords(), t.Stride(), fn)), nil
	case *geom.MultiPoint:
		return geom.NewMultiPointFlat(t.Layout(), transformFlat(t.FlatCoords(), t.Stride(), fn)), nil
	case *geom.LineString:
		return geom.NewLineStringFlat(t.Layout(), transformFlat(t.FlatCoords(), t.Stride(), fn)), nil
	case *geom.MultiLineString:
		return geom.NewMultiLineStringFlat(t.Layout(), transformFlat(t.FlatCoords(), t.Stride(), fn), copyInts(t.Ends())), nil
	case *geom.LinearRing:
		return geom.NewLinearRingFlat(t.Layout(), transformFlat(t.FlatCoords(), t.Stride(), fn)), nil
	case *geom.Polygon:
		return geom.NewPolygonFlat(t.Layout(), transformFlat(t.FlatCoords(), t.Stride(), fn), copyInts(t.Ends())), nil
	case *geom.MultiPolygon:
		return geom.NewMultiPolygonFlat(t.Layout(), transformFlat(t.FlatCoords(), t.Stride(), fn), copyIntss(t.Endss())), nil
	default:
		return nil, eris.Errorf("geoproj: unsupported geometry type %T", g)
	}
}

// ToUTM projects a WGS84 geometry into the Projector's UTM zone.
func ToUTM(g geom.T, p *Projector) (geom.T, error) {
	return Apply(g, func(x, y float64) (float64, float64) { return p.Forward(x, y) })
}

// ToWGS84 unprojects a UTM geometry back to WGS84 degrees.
func ToWGS84(g geom.T, p *Projector) (geom.T, error) {
	return Apply(g, func(x, y float64) (float64, float64) { return p.Inverse(x, y) })
}

func transformFlat(coords []float64, stride int, fn TransformFn) []float64 {
	out := make([]float64, len(coords))
	copy(out, coords)
	for i := 0; i+1 < len(out); i += stride {
		out[i], out[i+1] = fn(out[i], out[i+1])
	}
	return out
}

func copyInts(in []int) []int {
	out := make([]int, len(in))
	copy(out, in)
	return out
}

func copyIntss(in [][]int) [][]int {
	out := make([][]int, len(in))
	for i, e := range in {
		out[i] = copyInts(e)
	}
	return out
}
