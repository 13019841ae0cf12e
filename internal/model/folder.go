package model

import (
	"sort"
	"strings"
)

// Folder is a derived grouping of documents sharing a folder path.
type Folder struct {
	Path          string `json:"path"`
	Name          string `json:"name"`
	DocumentCount int    `json:"document_count"`
}

// FolderName returns the last path segment, or "Root" for "/".
func FolderName(p string) string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return "Root"
	}
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		return trimmed[i+1:]
	}
	return trimmed
}

// DeriveFolders builds the folder listing from per-path document counts.
// Every prefix of every path is listed, the root always is, and counts are
// non-recursive (only documents whose folder equals the path exactly).
func DeriveFolders(counts map[string]int) []Folder {
	paths := map[string]struct{}{"/": {}}
	for p := range counts {
		current := "/"
		for _, part := range strings.Split(strings.Trim(p, "/"), "/") {
			if part == "" {
				continue
			}
			current += part + "/"
			paths[current] = struct{}{}
		}
	}

	out := make([]Folder, 0, len(paths))
	for p := range paths {
		out = append(out, Folder{Path: p, Name: FolderName(p), DocumentCount: counts[p]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}
