// Package osm models raw map features and the providers that fetch them.
package osm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/twpayne/go-geom"

	"github.com/relonav/navigator/internal/geoproj"
)

// ElementType identifies the kind of map element a feature came from.
type ElementType string

const (
	ElementNode     ElementType = "node"
	ElementWay      ElementType = "way"
	ElementRelation ElementType = "relation"
)

// FeatureID is the stable identity of a map feature across
// representations of the same real-world object.
type FeatureID struct {
	Type ElementType `json:"type"`
	Ref  int64       `json:"ref"`
}

func (id FeatureID) String() string {
	return fmt.Sprintf("%s/%d", id.Type, id.Ref)
}

// Feature is one raw map feature: an identity, a geometry with an
// explicit CRS, and zero or more simultaneous tag attributes.
type Feature struct {
	ID   FeatureID
	Geom geom.T
	CRS  geoproj.CRS
	Tags map[string]string
	Name string
}

// Tag returns the value for a tag key and whether it is present and non-empty.
func (f *Feature) Tag(key string) (string, bool) {
	v, ok := f.Tags[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// TagMatch describes how to match values for one tag key.
type TagMatch struct {
	Any    bool     // match any value for this key
	Values []string // match only these values; ignored when Any
}

// MatchAny matches any value for a key.
func MatchAny() TagMatch { return TagMatch{Any: true} }

// MatchValues matches only the listed values.
func MatchValues(values ...string) TagMatch { return TagMatch{Values: values} }

// TagFilter maps tag keys to the values requested for them.
type TagFilter map[string]TagMatch

// Keys returns the filter's tag keys in sorted order.
func (f TagFilter) Keys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CanonicalKey renders the filter as an order-independent string, so
// that logically equal filters produce the same cache key regardless of
// map iteration order.
func (f TagFilter) CanonicalKey() string {
	parts := make([]string, 0, len(f))
	for _, k := range f.Keys() {
		m := f[k]
		if m.Any {
			parts = append(parts, k+"=*")
			continue
		}
		values := make([]string, len(m.Values))
		copy(values, m.Values)
		sort.Strings(values)
		parts = append(parts, k+"="+strings.Join(values, "|"))
	}
	return strings.Join(parts, "&")
}

// Matches reports whether a feature carries at least one tag accepted
// by the filter.
func (f TagFilter) Matches(tags map[string]string) bool {
	for key, m := range f {
		v, ok := tags[key]
		if !ok || v == "" {
			continue
		}
		if m.Any {
			return true
		}
		for _, want := range m.Values {
			if v == want {
				return true
			}
		}
	}
	return false
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Source provides raw map features around a point. Implementations
// treat zero results as a valid empty collection, not an error.
type Source interface {
	FeaturesNear(ctx context.Context, center Point, filter TagFilter, radiusMeters float64) ([]Feature, error)
}

// FetchError wraps a provider failure (network error, malformed
// response). It distinguishes "provider unreachable" from the valid
// empty-result case.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string {
	return "osm: feature fetch: " + e.Err.Error()
}

func (e *FetchError) Unwrap() error { return e.Err }
