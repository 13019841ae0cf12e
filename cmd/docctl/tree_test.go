package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"docvault/internal/model"
)

func TestParentPath(t *testing.T) {
	tests := map[string]string{
		"/a/":     "/",
		"/a/b/":   "/a/",
		"/a/b/c/": "/a/b/",
		"/":       "/",
	}
	for in, want := range tests {
		assert.Equal(t, want, parentPath(in), in)
	}
}

func TestFolderTree(t *testing.T) {
	folders := model.DeriveFolders(map[string]int{
		"/":               1,
		"/finance/2024/":  2,
		"/finance/":       1,
		"/scans/receipt/": 3,
	})

	out := folderTree(folders)
	lines := strings.Split(strings.TrimSpace(out), "\n")

	assert.Equal(t, "/ (1)", lines[0])
	assert.Contains(t, out, "finance (1)")
	assert.Contains(t, out, "2024 (2)")
	assert.Contains(t, out, "scans (0)")
	assert.Contains(t, out, "receipt (3)")

	// nested folders render below their parent
	assert.Less(t, strings.Index(out, "finance (1)"), strings.Index(out, "2024 (2)"))
	assert.Len(t, lines, 5)
}
