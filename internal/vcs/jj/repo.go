package jj

import (
	"os"
	"path/filepath"
)

// FindRepoRoot returns the nearest ancestor of path (or path itself) that
// holds a .jj directory, or "" outside a jj workspace.
func FindRepoRoot(path string) string {
	dir, err := filepath.Abs(path)
	if err != nil {
		return ""
	}
	for ; ; dir = filepath.Dir(dir) {
		if isDir(filepath.Join(dir, ".jj")) {
			return dir
		}
		if filepath.Dir(dir) == dir {
			return ""
		}
	}
}

// IsColocated reports whether the workspace also has a .git checkout next
// to .jj, in which case git commands work on the same commits.
func IsColocated(root string) bool {
	if !isDir(filepath.Join(root, ".jj")) {
		return false
	}
	_, err := os.Stat(filepath.Join(root, ".git"))
	return err == nil
}

func isDir(p string) bool {
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
