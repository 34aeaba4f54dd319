package resolver

import (
	"fmt"
	"path/filepath"

	"github.com/pmezard/go-difflib/difflib"
)

// FileDiff is the unified diff of one step.
type FileDiff struct {
	OldPath string
	NewPath string
	Diff    string
}

// Preview renders each step of the plan as a unified diff, with the old
// file name on the --- side and the new one on the +++ side.
func Preview(p *Plan) ([]FileDiff, error) {
	diffs := make([]FileDiff, 0, len(p.Steps))
	for _, s := range p.Steps {
		ud := difflib.UnifiedDiff{
			A:        difflib.SplitLines(s.OldText),
			B:        difflib.SplitLines(s.NewText),
			FromFile: filepath.Join(p.App, filepath.Base(s.OldPath)),
			ToFile:   filepath.Join(p.App, filepath.Base(s.NewPath)),
			Context:  3,
		}
		text, err := difflib.GetUnifiedDiffString(ud)
		if err != nil {
			return nil, fmt.Errorf("diff %s: %w", s.OldPath, err)
		}
		if text == "" && s.Renamed() {
			text = fmt.Sprintf("--- %s\n+++ %s\n", ud.FromFile, ud.ToFile)
		}
		diffs = append(diffs, FileDiff{OldPath: s.OldPath, NewPath: s.NewPath, Diff: text})
	}
	return diffs, nil
}
