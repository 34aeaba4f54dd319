// Package vcs provides a unified interface for the version control operations
// migfix needs while repairing migration conflicts.
//
// The fixer only ever asks the repository a handful of questions: where is the
// work tree, is it clean, what does a ref resolve to, where do two histories
// meet, and which files differ between two revisions. This package abstracts
// those questions so that git and jj (Jujutsu) repositories are handled the
// same way. The design follows a strategy pattern with runtime detection and
// factory creation.
//
// # Usage
//
//	v, err := vcs.GetForPath(dir)
//	if err != nil {
//	    return err
//	}
//	base, ok := v.MergeBase(ctx, "HEAD", "origin/main")
//
// # Implementations
//
//   - internal/vcs/git: git, including linked worktrees
//   - internal/vcs/jj: Jujutsu, native or colocated with git
//
// "Not found" conditions (an unknown ref, unrelated histories) are reported
// through boolean results. Only a failing external command produces an error,
// and that error is always a *CommandError.
package vcs

import (
	"context"
)

// Type represents the VCS backend type
type Type string

const (
	// TypeGit indicates a git-only repository
	TypeGit Type = "git"

	// TypeJJ indicates a jj-only repository (non-colocated)
	TypeJJ Type = "jj"

	// TypeColocate indicates a colocated repository (jj + git together)
	TypeColocate Type = "colocate"
)

// String returns the string representation of the VCS type
func (t Type) String() string {
	return string(t)
}

// VCS defines the capability set the migration fixer consumes.
// Implementations exist for git (internal/vcs/git) and jj (internal/vcs/jj).
type VCS interface {
	// Name returns the VCS type (git, jj, or colocate)
	Name() Type

	// IsRepository returns true if the work tree is under version control.
	IsRepository(ctx context.Context) bool

	// WorktreeRoot returns the top-level directory of the current checkout.
	// Inside a linked git worktree this is the worktree's own root, not the
	// main repository's.
	WorktreeRoot() (string, error)

	// ResolveRevision resolves a ref (HEAD, main, origin/main, a commit id)
	// to a commit id. ok is false when the ref cannot be resolved.
	ResolveRevision(ctx context.Context, ref string) (id string, ok bool)

	// MergeBase returns the nearest common ancestor of a and b. ok is false
	// when either side is unresolvable or the histories are unrelated.
	MergeBase(ctx context.Context, a, b string) (id string, ok bool)

	// DiffNamesOnly returns the work-tree-relative paths that differ between
	// base and head, in the order reported, with duplicates and blank
	// entries removed. An empty head means the work tree, untracked files
	// included.
	DiffNamesOnly(ctx context.Context, base, head string) ([]string, error)

	// IsDirty returns true if there are staged, unstaged, or untracked changes.
	IsDirty(ctx context.Context) (bool, error)

	// Fetch fetches branch from remote. Network and authentication failures
	// are returned as *CommandError.
	Fetch(ctx context.Context, remote, branch string) error

	// ListRefs returns local branches and remote-tracking branches.
	ListRefs(ctx context.Context) ([]RefInfo, error)
}

// RefInfo contains information about a reference (branch/bookmark)
type RefInfo struct {
	// Name is the reference name (e.g., "main")
	Name string

	// Hash is the commit hash
	Hash string

	// Remote is the remote name for remote refs, empty for local
	Remote string

	// IsRemote indicates if this is a remote-tracking reference
	IsRemote bool
}

// FullName returns the name a caller would pass to ResolveRevision:
// "main" for a local branch, "origin/main" for a remote-tracking one.
func (r RefInfo) FullName() string {
	if r.IsRemote && r.Remote != "" {
		return r.Remote + "/" + r.Name
	}
	return r.Name
}

// DefaultRemote is used when no remote is configured or given.
const DefaultRemote = "origin"
