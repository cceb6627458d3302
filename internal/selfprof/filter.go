package selfprof

import (
	"slices"
	"strings"
)

// EventFilter is a set of event categories.
type EventFilter uint32

const (
	FilterGenericActivities EventFilter = 1 << iota // generic-activity
	FilterQueryProviders                            // query-provider
	FilterQueryCacheHits                            // query-cache-hit
	FilterQueryBlocked                              // query-blocked
	FilterIncrCacheLoads                            // incr-cache-load
	FilterQueryKeys                                 // query-keys
)

const (
	// FilterNone records nothing.
	FilterNone EventFilter = 0
	// FilterAll records everything.
	FilterAll = ^FilterNone
	// FilterDefault is used when no filter list is configured.
	FilterDefault = FilterGenericActivities |
		FilterQueryProviders |
		FilterQueryBlocked |
		FilterIncrCacheLoads
)

type namedFilter struct {
	name string
	mask EventFilter
}

var filtersByName = []namedFilter{
	{"none", FilterNone},
	{"all", FilterAll},
	{"default", FilterDefault},
	{"generic-activity", FilterGenericActivities},
	{"query-provider", FilterQueryProviders},
	{"query-cache-hit", FilterQueryCacheHits},
	{"query-blocked", FilterQueryBlocked},
	{"incr-cache-load", FilterIncrCacheLoads},
	{"query-keys", FilterQueryKeys},
}

// FilterNames returns every recognized filter name, presets first.
func FilterNames() []string {
	names := make([]string, len(filtersByName))
	for i, f := range filtersByName {
		names[i] = f.name
	}
	return names
}

// Contains reports whether every category in other is set in f.
func (f EventFilter) Contains(other EventFilter) bool {
	return f&other == other
}

// String returns the set categories joined by "|".
func (f EventFilter) String() string {
	switch f {
	case FilterNone:
		return "none"
	case FilterAll:
		return "all"
	}
	var parts []string
	for _, entry := range filtersByName {
		if isPreset(entry.mask) {
			continue
		}
		if f.Contains(entry.mask) {
			parts = append(parts, entry.name)
		}
	}
	return strings.Join(parts, "|")
}

// MaskFor turns a list of filter names into a mask. Recognized names are
// OR-combined, so "none" contributes nothing and "all" sets every bit.
// An empty or nil list selects FilterDefault. Names that are not
// recognized are returned sorted and deduplicated; they never make the
// call fail.
func MaskFor(names []string) (EventFilter, []string) {
	if len(names) == 0 {
		return FilterDefault, nil
	}

	mask := FilterNone
	var unknown []string
	for _, name := range names {
		idx := slices.IndexFunc(filtersByName, func(f namedFilter) bool {
			return f.name == name
		})
		if idx < 0 {
			unknown = append(unknown, name)
			continue
		}
		mask |= filtersByName[idx].mask
	}

	slices.Sort(unknown)
	return mask, slices.Compact(unknown)
}

func isPreset(mask EventFilter) bool {
	return mask == FilterNone || mask == FilterAll || mask == FilterDefault
}
