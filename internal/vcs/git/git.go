// Package git provides a Git implementation of the VCS interface.
//
// This package wraps the handful of git plumbing commands migfix needs to
// classify migration files: revision resolution, merge-base discovery,
// name-only diffs, cleanliness checks and fetch. Linked worktrees are
// handled transparently.
package git

import (
	"context"
	"strings"

	"github.com/Mschirtzinger/migfix/internal/vcs"
)

// Git implements the VCS interface for git repositories.
type Git struct {
	// repoRoot is the top-level directory of the current checkout
	repoRoot string

	// vcsDir is the git directory of this checkout (.git, or
	// .git/worktrees/<name> for a linked worktree)
	vcsDir string

	// isWorktree indicates if this is a linked git worktree
	isWorktree bool

	// mainRepoRoot is the main repository root (for worktrees)
	mainRepoRoot string
}

// New creates a new Git VCS instance for the given repository.
// The path should be somewhere within a git repository.
func New(path string) (*Git, error) {
	g := &Git{}

	// Detect repository information
	if err := g.detect(path); err != nil {
		return nil, err
	}

	return g, nil
}

// Name returns the VCS type (git)
func (g *Git) Name() vcs.Type {
	return vcs.TypeGit
}

// WorktreeRoot returns the top-level directory of the current checkout.
func (g *Git) WorktreeRoot() (string, error) {
	if g.repoRoot == "" {
		return "", vcs.ErrNotInVCS
	}
	return g.repoRoot, nil
}

// MainRepoRoot returns the main repository root. It differs from
// WorktreeRoot only inside a linked worktree.
func (g *Git) MainRepoRoot() string {
	return g.mainRepoRoot
}

// IsWorktree returns true when the checkout is a linked worktree.
func (g *Git) IsWorktree() bool {
	return g.isWorktree
}

// IsRepository returns true if the checkout is inside a git work tree.
func (g *Git) IsRepository(ctx context.Context) bool {
	if g.repoRoot == "" {
		return false
	}
	output, err := g.exec(ctx, "rev-parse", "--is-inside-work-tree")
	if err != nil {
		return false
	}
	return vcs.TrimOutput(output) == "true"
}

// exec runs git in the checkout root. Paths in output are never quoted so
// non-ASCII migration names survive intact.
func (g *Git) exec(ctx context.Context, args ...string) ([]byte, error) {
	return vcs.ExecContext(ctx, g.repoRoot, "git", append([]string{"-c", "core.quotePath=false"}, args...)...)
}

// shortArgs is used in log lines and error text.
func shortArgs(args []string) string {
	return "git " + strings.Join(args, " ")
}
