package git

import (
	"context"
	"fmt"

	"github.com/Mschirtzinger/migfix/internal/vcs"
)

// HasRemote returns true if the named remote is configured.
func (g *Git) HasRemote(ctx context.Context, name string) bool {
	output, err := g.exec(ctx, "remote")
	if err != nil {
		return false
	}

	for _, r := range vcs.ParseLines(output) {
		if r == name {
			return true
		}
	}
	return false
}

// Fetch fetches branch from remote, updating the remote-tracking ref
// <remote>/<branch>. If remote is empty, uses the default remote (origin).
func (g *Git) Fetch(ctx context.Context, remote, branch string) error {
	if remote == "" {
		remote = vcs.DefaultRemote
	}

	args := []string{"fetch", "--quiet", remote}
	if branch != "" {
		args = append(args, branch)
	}

	if _, err := g.exec(ctx, args...); err != nil {
		return fmt.Errorf("%s: %w", shortArgs(args), err)
	}

	return nil
}
