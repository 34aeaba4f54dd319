package migration

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// DefaultExtension is the migration source file extension.
const DefaultExtension = ".py"

// File is a numbered migration file on disk.
type File struct {
	Name
	Path string
}

// Read returns the file's contents.
func (f File) Read() (string, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return "", fmt.Errorf("read migration %s: %w", f.Path, err)
	}
	return string(data), nil
}

// ListMigrations returns the numbered migration files in dir with the given
// extension, ordered by SortFiles. Files that do not parse as migration
// names are skipped.
func ListMigrations(dir, ext string) ([]File, error) {
	if ext == "" {
		ext = DefaultExtension
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list migrations in %s: %w", dir, err)
	}

	var files []File
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		name, err := ParseName(e.Name())
		if err != nil {
			continue
		}
		files = append(files, File{Name: name, Path: filepath.Join(dir, e.Name())})
	}

	SortFiles(files)
	return files, nil
}

// ParseFiles parses each path as a migration file. Paths are cleaned.
// Unlike ListMigrations an unparsable name is an error.
func ParseFiles(paths []string) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		name, err := ParseName(p)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Name: name, Path: p})
	}
	return files, nil
}

// SortFiles orders files by sequence number, then file name. The sort is
// stable.
func SortFiles(files []File) {
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].Number != files[j].Number {
			return files[i].Number < files[j].Number
		}
		return filepath.Base(files[i].Path) < filepath.Base(files[j].Path)
	})
}

// MaxNumber returns the highest sequence number among files and the file
// carrying it. ok is false for an empty slice. Ties go to the later file
// in sort order.
func MaxNumber(files []File) (max int, file File, ok bool) {
	for _, f := range files {
		if !ok || f.Number > max || (f.Number == max && filepath.Base(f.Path) > filepath.Base(file.Path)) {
			max, file, ok = f.Number, f, true
		}
	}
	return max, file, ok
}
