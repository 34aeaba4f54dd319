package graph

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Location is an app label and its migrations directory.
type Location struct {
	Label string
	Dir   string
}

// MigrationsDirName is the conventional package holding an app's migrations.
const MigrationsDirName = "migrations"

var skipDirs = map[string]bool{
	"node_modules":  true,
	"__pycache__":   true,
	"site-packages": true,
	"venv":          true,
}

// Discover finds <app>/migrations packages below root. The app label is the
// name of the directory holding the migrations package. Hidden directories
// and virtualenvs are not descended into.
func Discover(root string) ([]Location, error) {
	var found []Location
	seen := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		name := d.Name()
		if path != root && (strings.HasPrefix(name, ".") || skipDirs[name] || isVirtualenv(path)) {
			return filepath.SkipDir
		}

		if name != MigrationsDirName {
			return nil
		}
		if _, err := os.Stat(filepath.Join(path, "__init__.py")); err != nil {
			return nil
		}

		label := filepath.Base(filepath.Dir(path))
		if prev, dup := seen[label]; dup {
			return fmt.Errorf("app label %q is used by both %s and %s", label, prev, path)
		}
		seen[label] = path
		found = append(found, Location{Label: label, Dir: path})
		return filepath.SkipDir
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Label < found[j].Label })
	return found, nil
}

func isVirtualenv(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "pyvenv.cfg"))
	return err == nil
}

// Resolve merges configured app directories over discovered ones.
// Relative configured paths are taken from root.
func Resolve(root string, discovered []Location, configured map[string]string) []Location {
	byLabel := make(map[string]string, len(discovered)+len(configured))
	for _, l := range discovered {
		byLabel[l.Label] = l.Dir
	}
	for label, dir := range configured {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		byLabel[label] = filepath.Clean(dir)
	}

	locs := make([]Location, 0, len(byLabel))
	for label, dir := range byLabel {
		locs = append(locs, Location{Label: label, Dir: dir})
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].Label < locs[j].Label })
	return locs
}

// LoadAll loads the graph of every location.
func LoadAll(locs []Location, ext string) ([]*App, error) {
	apps := make([]*App, 0, len(locs))
	for _, l := range locs {
		a, err := Load(l.Label, l.Dir, ext)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, nil
}

// Filter keeps the locations whose label is in labels. An empty labels
// slice keeps everything. Unknown labels are returned separately.
func Filter(locs []Location, labels []string) (kept []Location, unknown []string) {
	if len(labels) == 0 {
		return locs, nil
	}

	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		want[l] = true
	}
	for _, l := range locs {
		if want[l.Label] {
			kept = append(kept, l)
			delete(want, l.Label)
		}
	}
	for _, l := range labels {
		if want[l] {
			unknown = append(unknown, l)
			delete(want, l)
		}
	}
	return kept, unknown
}
