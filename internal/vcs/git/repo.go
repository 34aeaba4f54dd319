package git

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/Mschirtzinger/migfix/internal/vcs"
)

// detect asks git where the checkout is. One rev-parse call reports the
// checkout's git dir, the shared git dir, and the top level; the first two
// differ only in a linked worktree.
func (g *Git) detect(path string) error {
	dir, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	out, err := exec.Command("git", "-C", dir, "rev-parse", "--git-dir", "--git-common-dir", "--show-toplevel").Output()
	if err != nil {
		return vcs.ErrNotInVCS
	}

	fields := vcs.ParseLines(out)
	if len(fields) != 3 {
		// Bare repositories print no top level.
		return fmt.Errorf("%w: %s has no work tree", vcs.ErrNotInVCS, dir)
	}
	abs := func(p string) string {
		if !filepath.IsAbs(p) {
			p = filepath.Join(dir, p)
		}
		return resolvePath(p)
	}

	g.vcsDir = abs(fields[0])
	common := abs(fields[1])
	g.repoRoot = resolvePath(fields[2])
	g.isWorktree = g.vcsDir != common

	g.mainRepoRoot = g.repoRoot
	if g.isWorktree {
		g.mainRepoRoot = filepath.Dir(common)
	}
	return nil
}

// resolvePath cleans p and follows symlinks when it exists, so paths
// compare equal however the checkout was reached.
func resolvePath(p string) string {
	p = filepath.Clean(filepath.FromSlash(p))
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return p
}

// IsDirty reports staged, unstaged and untracked changes. Ignored files
// do not count.
func (g *Git) IsDirty(ctx context.Context) (bool, error) {
	out, err := g.exec(ctx, "status", "--porcelain", "--untracked-files=all")
	if err != nil {
		return false, fmt.Errorf("git status failed: %w", err)
	}
	return len(vcs.ParseLines(out)) > 0, nil
}
