package model

import "strings"

// DefaultTagColor is applied to tags created without an explicit color.
const DefaultTagColor = "#808080"

// Tag is a named, colored label shared by many documents.
type Tag struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// TagKey folds a tag name for case-insensitive comparison.
func TagKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// SplitTagNames splits a comma-separated list, trimming blanks and dropping
// case-insensitive duplicates while keeping first-seen order.
func SplitTagNames(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, raw := range strings.Split(s, ",") {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		key := TagKey(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out
}
