package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mschirtzinger/migfix/internal/vcs"
)

// ResolveRevision resolves ref to a full commit id. An unknown ref, or HEAD
// in an unborn repository, yields ok == false.
func (g *Git) ResolveRevision(ctx context.Context, ref string) (string, bool) {
	if ref == "" {
		return "", false
	}

	output, err := g.exec(ctx, "rev-parse", "--verify", "--quiet", ref+"^{commit}")
	if err != nil {
		return "", false
	}

	id := vcs.FirstLine(output)
	return id, id != ""
}

// MergeBase returns the best common ancestor of a and b. git exits 1 when
// the histories share nothing; that and unresolvable refs yield ok == false.
func (g *Git) MergeBase(ctx context.Context, a, b string) (string, bool) {
	if a == "" || b == "" {
		return "", false
	}

	output, err := g.exec(ctx, "merge-base", a, b)
	if err != nil {
		return "", false
	}

	id := vcs.FirstLine(output)
	return id, id != ""
}

// DiffNamesOnly lists the paths that differ between base and head, relative
// to the work tree root. An empty head compares base against the work tree,
// untracked files included.
func (g *Git) DiffNamesOnly(ctx context.Context, base, head string) ([]string, error) {
	args := []string{"diff", "--name-only", "--no-renames", base}
	if head != "" {
		args = append(args, head)
	}
	args = append(args, "--")

	output, err := g.exec(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", shortArgs(args), err)
	}

	if head == "" {
		untracked, err := g.exec(ctx, "ls-files", "--others", "--exclude-standard")
		if err != nil {
			return nil, fmt.Errorf("git ls-files failed: %w", err)
		}
		output = append(append(output, '\n'), untracked...)
	}
	return vcs.UniqueLines(output), nil
}

// ListRefs returns local branches and remote-tracking branches. Symbolic
// refs such as origin/HEAD are skipped.
func (g *Git) ListRefs(ctx context.Context) ([]vcs.RefInfo, error) {
	output, err := g.exec(ctx, "for-each-ref", "--format=%(refname) %(objectname)", "refs/heads", "refs/remotes")
	if err != nil {
		return nil, fmt.Errorf("git for-each-ref failed: %w", err)
	}

	var refs []vcs.RefInfo
	for _, line := range vcs.ParseLines(output) {
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		refName := parts[0]
		ref := vcs.RefInfo{Hash: parts[1]}

		switch {
		case strings.HasPrefix(refName, "refs/heads/"):
			ref.Name = strings.TrimPrefix(refName, "refs/heads/")
		case strings.HasPrefix(refName, "refs/remotes/"):
			remote, name, ok := strings.Cut(strings.TrimPrefix(refName, "refs/remotes/"), "/")
			if !ok || name == "HEAD" {
				continue
			}
			ref.Remote = remote
			ref.Name = name
			ref.IsRemote = true
		default:
			continue
		}

		refs = append(refs, ref)
	}

	return refs, nil
}
