// Package taxonomy loads and serves the land-use classification tables:
// the (tag key, tag value) → pie category mapping driving area
// aggregation, and the selectable point-of-interest catalogue driving
// marker styling and the POI fetch filter.
package taxonomy

import (
	"errors"
	"sync"

	"github.com/relonav/navigator/internal/osm"
)

// Sentinel errors for configuration problems. All are fatal at startup.
var (
	ErrMissingSheet     = errors.New("taxonomy: required sheet not found")
	ErrMissingColumn    = errors.New("taxonomy: required column not found")
	ErrDuplicateMapping = errors.New("taxonomy: conflicting categories for tag pair")
	ErrEmpty            = errors.New("taxonomy: no usable rows")
)

// Entry maps one (tag key, tag value) pair to a pie category.
type Entry struct {
	Key      string `json:"key"`
	Value    string `json:"value"`
	Category string `json:"category"`
}

// POISelector is one user-selectable amenity type with its marker styling.
type POISelector struct {
	Category string `json:"category"`
	SubLabel string `json:"sub_label"`
	Key      string `json:"key"`
	Value    string `json:"value"`
	Color    string `json:"color"`
	Icon     string `json:"icon"`
}

// Taxonomy holds both lookup tables, immutable after load.
type Taxonomy struct {
	Entries   []Entry
	Selectors []POISelector

	byPair map[[2]string]string
}

// New assembles a Taxonomy and its lookup index. Exact duplicate
// entries are collapsed; a pair mapped to two different categories is
// rejected rather than silently resolved.
func New(entries []Entry, selectors []POISelector) (*Taxonomy, error) {
	byPair := make(map[[2]string]string, len(entries))
	deduped := entries[:0:0]
	for _, e := range entries {
		pair := [2]string{e.Key, e.Value}
		if existing, ok := byPair[pair]; ok {
			if existing != e.Category {
				return nil, ErrDuplicateMapping
			}
			continue
		}
		byPair[pair] = e.Category
		deduped = append(deduped, e)
	}
	return &Taxonomy{Entries: deduped, Selectors: selectors, byPair: byPair}, nil
}

// CategoryFor returns the pie category for an exact (key, value) match.
func (t *Taxonomy) CategoryFor(key, value string) (string, bool) {
	cat, ok := t.byPair[[2]string{key, value}]
	return cat, ok
}

// Categories returns the distinct selector categories in first-seen order.
func (t *Taxonomy) Categories() []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range t.Selectors {
		if !seen[s.Category] {
			seen[s.Category] = true
			out = append(out, s.Category)
		}
	}
	return out
}

// SelectorsFor returns the selectors belonging to the given categories,
// preserving table order. An empty category set selects everything.
func (t *Taxonomy) SelectorsFor(categories []string) []POISelector {
	if len(categories) == 0 {
		return t.Selectors
	}
	want := make(map[string]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}
	var out []POISelector
	for _, s := range t.Selectors {
		if want[s.Category] {
			out = append(out, s)
		}
	}
	return out
}

// TagFilter builds the feature-provider filter matching the given selectors.
func TagFilter(selectors []POISelector) osm.TagFilter {
	byKey := make(map[string][]string)
	for _, s := range selectors {
		byKey[s.Key] = append(byKey[s.Key], s.Value)
	}
	filter := make(osm.TagFilter, len(byKey))
	for key, values := range byKey {
		filter[key] = osm.MatchValues(values...)
	}
	return filter
}

// CategoryOfTag returns the selector category a (key, value) pair
// belongs to, used to label POI candidates after fetching.
func (t *Taxonomy) CategoryOfTag(key, value string) (string, bool) {
	for _, s := range t.Selectors {
		if s.Key == key && s.Value == value {
			return s.Category, true
		}
	}
	return "", false
}

// SelectorOfTag returns the full selector for a (key, value) pair.
func (t *Taxonomy) SelectorOfTag(key, value string) (POISelector, bool) {
	for _, s := range t.Selectors {
		if s.Key == key && s.Value == value {
			return s, true
		}
	}
	return POISelector{}, false
}

var (
	sharedMu sync.Mutex
	shared   *Taxonomy
)

// Shared returns the process-wide taxonomy, loading it on first use.
// Reload requires Invalidate or a process restart.
func Shared(load func() (*Taxonomy, error)) (*Taxonomy, error) {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if shared != nil {
		return shared, nil
	}
	t, err := load()
	if err != nil {
		return nil, err
	}
	shared = t
	return shared, nil
}

// Invalidate drops the process-wide taxonomy so the next Shared reloads.
func Invalidate() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	shared = nil
}
