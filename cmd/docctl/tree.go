package main

import (
	"fmt"
	"strings"

	"github.com/disiqueira/gotree/v3"

	"docvault/internal/model"
)

// folderTree renders folders (sorted by path, as model.DeriveFolders returns
// them) as an indented tree with per-folder document counts.
func folderTree(folders []model.Folder) string {
	root := gotree.New("/")
	nodes := map[string]gotree.Tree{"/": root}

	for _, f := range folders {
		if f.Path == "/" {
			root = gotree.New(label(f))
			nodes["/"] = root
			continue
		}
		parent, ok := nodes[parentPath(f.Path)]
		if !ok {
			parent = root
		}
		nodes[f.Path] = parent.Add(label(f))
	}
	return root.Print()
}

func label(f model.Folder) string {
	name := f.Name
	if f.Path == "/" {
		name = "/"
	}
	return fmt.Sprintf("%s (%d)", name, f.DocumentCount)
}

// parentPath maps "/a/b/" to "/a/" and "/a/" to "/".
func parentPath(p string) string {
	trimmed := strings.TrimSuffix(p, "/")
	i := strings.LastIndex(trimmed, "/")
	if i <= 0 {
		return "/"
	}
	return trimmed[:i+1]
}
