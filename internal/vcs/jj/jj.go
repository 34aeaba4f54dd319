// Package jj implements the VCS interface for Jujutsu (jj).
//
// Jujutsu is a Git-compatible version control system. migfix speaks in git
// terms (HEAD, origin/main); this package translates those names into jj
// revsets before asking jj anything, so the orchestrator never needs to know
// which backend it is talking to.
//
// This implementation wraps the jj CLI using os/exec.
package jj

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"github.com/Mschirtzinger/migfix/internal/vcs"
)

// JJ talks to a jj workspace through the jj CLI.
type JJ struct {
	root      string
	colocated bool
}

// New opens the jj workspace containing path.
func New(path string) (*JJ, error) {
	root := FindRepoRoot(path)
	if root == "" {
		return nil, vcs.ErrNotInVCS
	}
	return &JJ{root: root, colocated: IsColocated(root)}, nil
}

// Init creates a workspace backed by a new git repository in path, with
// the git checkout alongside when colocate is set.
func Init(path string, colocate bool) (*JJ, error) {
	args := []string{"git", "init"}
	if colocate {
		args = append(args, "--colocate")
	}
	cmd := exec.Command("jj", args...)
	cmd.Dir = path
	if out, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("jj git init failed: %w\n%s", err, out)
	}
	return New(path)
}

// Name reports TypeColocate when a git checkout shares the workspace.
func (j *JJ) Name() vcs.Type {
	if j.colocated {
		return vcs.TypeColocate
	}
	return vcs.TypeJJ
}

// WorktreeRoot returns the workspace root.
func (j *JJ) WorktreeRoot() (string, error) {
	if j.root == "" {
		return "", vcs.ErrNotInVCS
	}
	return j.root, nil
}

// IsRepository checks that the workspace still exists and jj accepts it.
func (j *JJ) IsRepository(ctx context.Context) bool {
	if j.root == "" || !isDir(filepath.Join(j.root, ".jj")) {
		return false
	}
	_, err := j.exec(ctx, "workspace", "root")
	return err == nil
}

// exec runs jj in the workspace root without color or pager.
func (j *JJ) exec(ctx context.Context, args ...string) ([]byte, error) {
	return vcs.ExecContext(ctx, j.root, "jj", append([]string{"--color=never", "--no-pager"}, args...)...)
}
