package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mschirtzinger/migfix/internal/graph"
	"github.com/Mschirtzinger/migfix/internal/migration"
	"github.com/Mschirtzinger/migfix/internal/resolver"
)

// crossAppEdits finds migrations whose dependencies name a migration that
// a plan renames in a different app. Same-app references are the
// resolver's job. A file that a plan itself rewrites is edited in the
// plan's new text instead, so both rewrites land.
func crossAppEdits(apps []graph.Location, plans []*resolver.Plan, ext string) ([]Edit, error) {
	renames := make(map[string]map[string]string, len(plans))
	planned := make(map[string]*resolver.Step)
	for _, p := range plans {
		if r := p.Renames(); len(r) > 0 {
			renames[p.App] = r
		}
		for i := range p.Steps {
			planned[filepath.Clean(p.Steps[i].OldPath)] = &p.Steps[i]
		}
	}
	if len(renames) == 0 {
		return nil, nil
	}

	var edits []Edit
	for _, loc := range apps {
		files, err := migration.ListMigrations(loc.Dir, ext)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}

		for _, f := range files {
			replace := func(d migration.Dependency) (migration.Dependency, bool) {
				if d.App == loc.Label {
					return d, false
				}
				n, ok := renames[d.App][d.Name]
				return migration.Dependency{App: d.App, Name: n}, ok
			}

			if step, ok := planned[filepath.Clean(f.Path)]; ok {
				step.NewText, _ = migration.RewriteDependencies(step.NewText, replace)
				continue
			}

			text, err := f.Read()
			if err != nil {
				return nil, err
			}
			if out, n := migration.RewriteDependencies(text, replace); n > 0 {
				edits = append(edits, Edit{Path: f.Path, OldText: text, NewText: out})
			}
		}
	}
	return edits, nil
}

func applyEdits(edits []Edit, w func(string)) error {
	for _, e := range edits {
		mode := os.FileMode(0o644)
		if info, err := os.Stat(e.Path); err == nil {
			mode = info.Mode().Perm()
		}
		if err := os.WriteFile(e.Path, []byte(e.NewText), mode); err != nil {
			return fmt.Errorf("write %s: %w", e.Path, err)
		}
		w(fmt.Sprintf("Updated cross-app dependencies in %s", filepath.Base(e.Path)))
	}
	return nil
}
