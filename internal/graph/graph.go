// Package graph builds per-app migration dependency graphs from the files on
// disk and reports leaf sets. An app with more than one leaf is in conflict.
package graph

import (
	"fmt"
	"sort"

	"github.com/Mschirtzinger/migfix/internal/migration"
)

// Node is one migration of an app.
type Node struct {
	File migration.File

	// Deps holds every dependency tuple of the file, other apps included.
	Deps []migration.Dependency
}

// Name returns the migration name (file stem).
func (n *Node) Name() string {
	return n.File.Stem()
}

// App is the migration graph of one app.
type App struct {
	Label string
	Dir   string

	nodes map[string]*Node
	order []string
}

// Load reads every numbered migration in dir.
func Load(label, dir, ext string) (*App, error) {
	files, err := migration.ListMigrations(dir, ext)
	if err != nil {
		return nil, err
	}

	app := &App{
		Label: label,
		Dir:   dir,
		nodes: make(map[string]*Node, len(files)),
	}

	for _, f := range files {
		text, err := f.Read()
		if err != nil {
			return nil, err
		}
		name := f.Stem()
		if _, dup := app.nodes[name]; dup {
			return nil, fmt.Errorf("app %s: duplicate migration %s", label, name)
		}
		app.nodes[name] = &Node{File: f, Deps: migration.ParseDependencies(text)}
		app.order = append(app.order, name)
	}

	return app, nil
}

// Names returns the app's migration names in sequence order.
func (a *App) Names() []string {
	return append([]string(nil), a.order...)
}

// Node returns the named migration, or nil.
func (a *App) Node(name string) *Node {
	return a.nodes[name]
}

// Files returns the app's migration files in sequence order.
func (a *App) Files() []migration.File {
	files := make([]migration.File, 0, len(a.order))
	for _, name := range a.order {
		files = append(files, a.nodes[name].File)
	}
	return files
}

// Leaves returns the migrations no other migration of the app depends on.
func (a *App) Leaves() []string {
	return a.LeavesAmong(a.order)
}

// LeavesAmong computes the leaf set of the subgraph induced by names.
// Unknown names are ignored. The result is sorted.
func (a *App) LeavesAmong(names []string) []string {
	subset := make(map[string]bool, len(names))
	for _, n := range names {
		if a.nodes[n] != nil {
			subset[n] = true
		}
	}

	depended := make(map[string]bool)
	for n := range subset {
		for _, d := range a.nodes[n].Deps {
			if d.App == a.Label && d.Name != n && subset[d.Name] {
				depended[d.Name] = true
			}
		}
	}

	var leaves []string
	for n := range subset {
		if !depended[n] {
			leaves = append(leaves, n)
		}
	}
	sort.Strings(leaves)
	return leaves
}

// HasConflict reports whether the app has more than one leaf.
func (a *App) HasConflict() bool {
	return len(a.Leaves()) > 1
}

// Conflicts returns the leaf sets of every app with more than one leaf,
// keyed by app label.
func Conflicts(apps []*App) map[string][]string {
	conflicts := make(map[string][]string)
	for _, a := range apps {
		if leaves := a.Leaves(); len(leaves) > 1 {
			conflicts[a.Label] = leaves
		}
	}
	return conflicts
}
