// Package resolver renumbers an app's local migrations onto the upstream
// head and rewrites their dependency tuples so the app has a single leaf.
//
// A fix is two steps. BuildPlan reads the local files and decides every new
// name and every dependency rewrite without touching the disk. Apply then
// performs the renames. Apply is not transactional: a failure part way
// leaves earlier renames in place, and the caller is expected to have
// started from a clean work tree.
package resolver

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Mschirtzinger/migfix/internal/migration"
)

// Step renames one local migration and retargets its dependency.
type Step struct {
	OldPath string
	NewPath string

	OldName   string
	NewName   string
	NewNumber int

	// From is the dependency the step retargets; To is its replacement.
	From migration.Dependency
	To   migration.Dependency

	// OldText and NewText are the file contents before and after.
	OldText string
	NewText string
}

// Renamed reports whether the step changes the file name.
func (s Step) Renamed() bool {
	return filepath.Clean(s.OldPath) != filepath.Clean(s.NewPath)
}

// Plan is the renumbering of one app's local migrations.
type Plan struct {
	App       string
	Dir       string
	Seed      int
	StartName string
	Width     int
	Steps     []Step
}

// Renames maps the old name of every renamed migration to its new name.
func (p *Plan) Renames() map[string]string {
	renames := make(map[string]string, len(p.Steps))
	for _, s := range p.Steps {
		if s.OldName != s.NewName {
			renames[s.OldName] = s.NewName
		}
	}
	return renames
}

// Changed reports whether applying the plan would modify anything.
func (p *Plan) Changed() bool {
	for _, s := range p.Steps {
		if s.Renamed() || s.OldText != s.NewText {
			return true
		}
	}
	return false
}

// Input describes one app's conflict.
type Input struct {
	App string
	Dir string

	// Seed is the highest upstream sequence number; local files are
	// renumbered from Seed+1.
	Seed int

	// StartName is the upstream migration the first local file must
	// depend on.
	StartName string

	// LocalFiles are the paths of the migrations unique to this branch.
	LocalFiles []string

	// Width is the zero-padded width of new numbers; 0 means
	// migration.DefaultWidth.
	Width int
}

// BuildPlan computes the renumbering for in. It reads the local files but
// changes nothing on disk.
func BuildPlan(in Input) (*Plan, error) {
	files, err := migration.ParseFiles(in.LocalFiles)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, &AmbiguousConflictError{App: in.App, Reason: "no local migrations to renumber"}
	}
	if in.StartName == "" {
		return nil, &AmbiguousConflictError{App: in.App, Reason: "no upstream migration to attach to"}
	}

	width := in.Width
	if width <= 0 {
		width = migration.DefaultWidth
	}

	migration.SortFiles(files)

	plan := &Plan{
		App:       in.App,
		Dir:       in.Dir,
		Seed:      in.Seed,
		StartName: in.StartName,
		Width:     width,
		Steps:     make([]Step, len(files)),
	}

	renames := make(map[string]string, len(files))
	next := in.Seed
	for i, f := range files {
		next = migration.NextSequence(next)
		newName := f.WithNumber(next, width)
		plan.Steps[i] = Step{
			OldPath:   f.Path,
			NewPath:   filepath.Join(filepath.Dir(f.Path), newName.Filename()),
			OldName:   f.Stem(),
			NewName:   newName.Stem(),
			NewNumber: newName.Number,
		}
		renames[f.Stem()] = newName.Stem()
	}

	for i, f := range files {
		step := &plan.Steps[i]

		text, err := f.Read()
		if err != nil {
			return nil, err
		}
		step.OldText = text

		var prev string
		if i > 0 {
			prev = files[i-1].Stem()
			step.To = migration.Dependency{App: in.App, Name: plan.Steps[i-1].NewName}
		} else {
			step.To = migration.Dependency{App: in.App, Name: in.StartName}
		}

		from, ok := targetDependency(in.App, text, prev)
		if !ok {
			return nil, &AmbiguousConflictError{
				App:    in.App,
				Reason: fmt.Sprintf("%s has no dependency on another %s migration", f.Stem(), in.App),
			}
		}
		step.From = from

		step.NewText, _ = migration.RewriteDependencies(text, func(d migration.Dependency) (migration.Dependency, bool) {
			if d.Matches(from) {
				return step.To, true
			}
			if d.App == in.App {
				if n, ok := renames[d.Name]; ok {
					return migration.Dependency{App: in.App, Name: n}, true
				}
			}
			return d, false
		})
	}

	return plan, nil
}

// targetDependency picks the same-app dependency a local file's chain link
// runs through: the previous local file when the file depends on it,
// otherwise the same-app dependency with the highest sequence number.
func targetDependency(app, text, prev string) (migration.Dependency, bool) {
	var (
		best    migration.Dependency
		bestNum = -1
		found   bool
	)

	for _, d := range migration.ParseDependencies(text) {
		if d.App != app {
			continue
		}
		if prev != "" && d.Name == prev {
			return d, true
		}
		n, err := migration.ParseSequenceNumber(d.Name)
		if err != nil {
			n = -1
		}
		if !found || n >= bestNum {
			best, bestNum, found = d, n, true
		}
	}

	return best, found
}

// Validate checks that no step would overwrite a file that is not itself
// part of the plan.
func (p *Plan) Validate() error {
	sources := make(map[string]bool, len(p.Steps))
	for _, s := range p.Steps {
		sources[filepath.Clean(s.OldPath)] = true
	}

	for _, s := range p.Steps {
		if !s.Renamed() || sources[filepath.Clean(s.NewPath)] {
			continue
		}
		if _, err := os.Lstat(s.NewPath); err == nil {
			return &RenameCollisionError{
				App:  p.App,
				From: filepath.Base(s.OldPath),
				To:   filepath.Base(s.NewPath),
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("check %s: %w", s.NewPath, err)
		}
	}
	return nil
}
