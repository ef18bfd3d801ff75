package c2c

import (
	"fmt"
	"strings"
)

// ResolvePlaceholderSets expands a stream's placeholders into one concrete set
// per source value reference.
//
// With no references the result is a single copy of placeholders. Otherwise
// each reference is split on "/" (a leading separator is ignored) and the
// first len(names) segments are paired positionally with names, overriding
// any configured value of the same name. A reference with fewer segments
// leaves the remaining names unset. Each returned map is independent of
// placeholders and of the other sets.
func ResolvePlaceholderSets(names []string, placeholders map[string]any, refs []string) []map[string]any {
	if len(refs) == 0 {
		return []map[string]any{copyPlaceholders(placeholders)}
	}
	sets := make([]map[string]any, 0, len(refs))
	for _, ref := range refs {
		set := copyPlaceholders(placeholders)
		segments := refSegments(ref)
		for i, name := range names {
			if i >= len(segments) {
				break
			}
			if segments[i] == "" {
				continue
			}
			set[name] = segments[i]
		}
		sets = append(sets, set)
	}
	return sets
}

// ResolveTemplate replaces every {name} token in template with the matching
// value from set. Unknown tokens are left in place.
func ResolveTemplate(template string, set map[string]any) string {
	if len(set) == 0 || !strings.Contains(template, "{") {
		return template
	}
	pairs := make([]string, 0, len(set)*2)
	for k, v := range set {
		if v == nil {
			continue
		}
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(template)
}

func copyPlaceholders(placeholders map[string]any) map[string]any {
	m := make(map[string]any, len(placeholders))
	for k, v := range placeholders {
		m[k] = v
	}
	return m
}

func refSegments(ref string) []string {
	ref = strings.TrimPrefix(ref, "/")
	if ref == "" {
		return nil
	}
	return strings.Split(ref, "/")
}
