package landuse

import (
	"sort"
	"strings"

	"github.com/relonav/navigator/internal/taxonomy"
)

// CategoryAggregate is one slice of the catchment pie: all clipped area
// inside the circle that maps to one taxonomy category.
type CategoryAggregate struct {
	Category    string
	TotalAreaM2 float64
	// Values lists the distinct raw tag values that contributed,
	// display-normalized (underscores become spaces), sorted.
	Values []string
	// Count is the number of clipped rows behind this slice.
	Count int
}

// Aggregate joins clipped rows against the taxonomy and sums areas per
// category. Rows whose (key, value) pair has no taxonomy mapping are
// dropped, matching an inner join. The result is sorted by descending
// area, with category name breaking ties.
func Aggregate(rows []ClippedRow, tx *taxonomy.Taxonomy) []CategoryAggregate {
	type bucket struct {
		area   float64
		values map[string]struct{}
		count  int
	}
	buckets := make(map[string]*bucket)

	for _, row := range rows {
		category, ok := tx.CategoryFor(row.Key, row.Value)
		if !ok {
			continue
		}
		b := buckets[category]
		if b == nil {
			b = &bucket{values: make(map[string]struct{})}
			buckets[category] = b
		}
		b.area += row.AreaM2
		b.count++
		b.values[displayValue(row.Value)] = struct{}{}
	}

	out := make([]CategoryAggregate, 0, len(buckets))
	for category, b := range buckets {
		values := make([]string, 0, len(b.values))
		for v := range b.values {
			values = append(values, v)
		}
		sort.Strings(values)
		out = append(out, CategoryAggregate{
			Category:    category,
			TotalAreaM2: b.area,
			Values:      values,
			Count:       b.count,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalAreaM2 != out[j].TotalAreaM2 {
			return out[i].TotalAreaM2 > out[j].TotalAreaM2
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// TotalArea sums the aggregated areas, which is at most the catchment
// circle's own area when features do not overlap.
func TotalArea(aggs []CategoryAggregate) float64 {
	var sum float64
	for _, a := range aggs {
		sum += a.TotalAreaM2
	}
	return sum
}

// displayValue turns a raw OSM value into a label, e.g.
// "recreation_ground" becomes "recreation ground".
func displayValue(v string) string {
	return strings.ReplaceAll(v, "_", " ")
}
