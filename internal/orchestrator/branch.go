package orchestrator

import (
	"github.com/Mschirtzinger/migfix/internal/vcs"
)

// defaultBranchCandidates are tried in order when no branch is configured.
var defaultBranchCandidates = []string{"main", "master"}

// DefaultBranch infers the default branch name from the available refs:
// main if any local or remote-tracking ref on remote is named main, then
// master. ok is false when neither exists, in which case name is still
// "main" so callers have something to report.
func DefaultBranch(refs []vcs.RefInfo, remote string) (name string, ok bool) {
	present := make(map[string]bool, len(refs))
	for _, r := range refs {
		if r.IsRemote && r.Remote != remote {
			continue
		}
		present[r.Name] = true
	}

	for _, c := range defaultBranchCandidates {
		if present[c] {
			return c, true
		}
	}
	return defaultBranchCandidates[0], false
}

// branchRefs lists the refs to try, most authoritative first. The
// remote-tracking ref is preferred unless remote refs are skipped.
func branchRefs(branch, remote string, skipRemote bool) []string {
	if skipRemote || remote == "" {
		return []string{branch}
	}
	return []string{remote + "/" + branch, branch}
}
