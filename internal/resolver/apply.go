package resolver

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Writer receives human-readable progress lines.
type Writer func(msg string)

// Apply validates the plan and performs it. Each renamed file is written
// to its new path before the old path is removed. Steps run in an order
// that never writes over a file another step has yet to read from.
func Apply(p *Plan, w Writer) error {
	if w == nil {
		w = func(string) {}
	}

	if err := p.Validate(); err != nil {
		return err
	}

	renamed := 0
	for _, s := range applyOrder(p.Steps) {
		if !s.Renamed() && s.OldText == s.NewText {
			continue
		}

		mode := os.FileMode(0o644)
		if info, err := os.Stat(s.OldPath); err == nil {
			mode = info.Mode().Perm()
		}

		if err := os.WriteFile(s.NewPath, []byte(s.NewText), mode); err != nil {
			return fmt.Errorf("write %s: %w", s.NewPath, err)
		}

		if s.Renamed() {
			if err := os.Remove(s.OldPath); err != nil {
				return fmt.Errorf("remove %s: %w", s.OldPath, err)
			}
			renamed++
			w(fmt.Sprintf("Renamed %s to %s, now depends on %s",
				filepath.Base(s.OldPath), filepath.Base(s.NewPath), s.To))
		} else {
			w(fmt.Sprintf("Updated %s, now depends on %s", filepath.Base(s.NewPath), s.To))
		}
	}

	w(summary(p, renamed))
	return nil
}

func summary(p *Plan, renamed int) string {
	if len(p.Steps) == 0 {
		return fmt.Sprintf("No local migrations for %s", p.App)
	}
	names := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		names[i] = s.NewName
	}
	return fmt.Sprintf("Renumbered %d migration(s) in %s after %s: %s",
		renamed, p.App, p.StartName, strings.Join(names, ", "))
}

// applyOrder sorts steps so that a step whose new path is another step's
// old path runs after that step. Renumbering is monotonic, so the
// dependency never cycles; among ready steps the highest number runs first.
func applyOrder(steps []Step) []Step {
	pending := append([]Step(nil), steps...)
	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].NewNumber > pending[j].NewNumber
	})

	ordered := make([]Step, 0, len(pending))
	for len(pending) > 0 {
		blocked := make(map[string]bool, len(pending))
		for _, s := range pending {
			blocked[filepath.Clean(s.OldPath)] = true
		}

		next := -1
		for i, s := range pending {
			target := filepath.Clean(s.NewPath)
			if !s.Renamed() || !blocked[target] {
				next = i
				break
			}
		}
		if next < 0 {
			// Unreachable for monotonic plans; fall back to the given order.
			return append(ordered, pending...)
		}

		ordered = append(ordered, pending[next])
		pending = append(pending[:next], pending[next+1:]...)
	}
	return ordered
}

// FixNumberedMigration plans and applies the renumbering of one app's local
// migrations.
func FixNumberedMigration(in Input, w Writer) (*Plan, error) {
	plan, err := BuildPlan(in)
	if err != nil {
		return nil, err
	}
	if err := Apply(plan, w); err != nil {
		return plan, err
	}
	return plan, nil
}
