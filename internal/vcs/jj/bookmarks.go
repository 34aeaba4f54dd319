package jj

import (
	"context"
	"fmt"
	"strings"

	"github.com/Mschirtzinger/migfix/internal/vcs"
)

// ===================
// Reference Operations (Bookmarks)
// ===================
// In jj, references are called "bookmarks" (similar to git branches).

const bookmarkTemplate = `name ++ "\t" ++ if(remote, remote) ++ "\t" ++ if(normal_target, normal_target.commit_id()) ++ "\n"`

// ListRefs returns local bookmarks and remote-tracking bookmarks. Conflicted
// bookmarks and jj's internal "git" remote are skipped.
func (j *JJ) ListRefs(ctx context.Context) ([]vcs.RefInfo, error) {
	output, err := j.exec(ctx, "bookmark", "list", "--all-remotes", "-T", bookmarkTemplate)
	if err != nil {
		return nil, fmt.Errorf("jj bookmark list failed: %w", err)
	}

	return parseBookmarks(string(output)), nil
}

// parseBookmarks parses bookmarkTemplate output: name, remote, commit id.
func parseBookmarks(output string) []vcs.RefInfo {
	var refs []vcs.RefInfo

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			continue
		}

		name := strings.TrimSpace(fields[0])
		remote := strings.TrimSpace(fields[1])
		hash := strings.TrimSpace(fields[2])
		if name == "" || hash == "" || remote == "git" {
			continue
		}

		refs = append(refs, vcs.RefInfo{
			Name:     name,
			Hash:     hash,
			Remote:   remote,
			IsRemote: remote != "",
		})
	}

	return refs
}

// Fetch fetches branch from remote via jj's git bridge.
func (j *JJ) Fetch(ctx context.Context, remote, branch string) error {
	if remote == "" {
		remote = vcs.DefaultRemote
	}

	args := []string{"git", "fetch", "--remote", remote}
	if branch != "" {
		args = append(args, "--branch", branch)
	}

	if _, err := j.exec(ctx, args...); err != nil {
		return fmt.Errorf("jj %s: %w", strings.Join(args, " "), err)
	}
	return nil
}
