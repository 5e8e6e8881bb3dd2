package httpapi

import (
	"os"
	"path/filepath"
	"sort"
)

// FileTreeNode is one level of the directory listing served to the directory
// picker. Children are filled for the requested directory only, never
// recursively.
type FileTreeNode struct {
	Path     string         `json:"path"`
	Name     string         `json:"name"`
	IsDir    bool           `json:"is_dir"`
	Children []FileTreeNode `json:"children"`
}

func buildFileTree(path string) (FileTreeNode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileTreeNode{}, err
	}
	node := FileTreeNode{
		Path:     path,
		Name:     filepath.Base(path),
		IsDir:    info.IsDir(),
		Children: []FileTreeNode{},
	}
	if !node.IsDir {
		return node, nil
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return FileTreeNode{}, err
	}
	// Directories first, then plain name order within each group.
	sort.Slice(entries, func(i, j int) bool {
		di, dj := entries[i].IsDir(), entries[j].IsDir()
		if di != dj {
			return di
		}
		return entries[i].Name() < entries[j].Name()
	})
	for _, entry := range entries {
		node.Children = append(node.Children, FileTreeNode{
			Path:     filepath.Join(path, entry.Name()),
			Name:     entry.Name(),
			IsDir:    entry.IsDir(),
			Children: []FileTreeNode{},
		})
	}
	return node, nil
}
