package jj

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Mschirtzinger/migfix/internal/vcs"
)

// rootCommitID is the id jj gives the virtual root commit every history
// descends from.
const rootCommitID = "0000000000000000000000000000000000000000"

const commitIDTemplate = `commit_id ++ "\n"`

var (
	headRelative = regexp.MustCompile(`^HEAD(?:~(\d+)|(\^+))?$`)
	hexCommitID  = regexp.MustCompile(`^[0-9a-f]{7,40}$`)
)

// translateRef turns a git-style ref into a jj revset expression.
//
//	HEAD        -> @
//	HEAD~2      -> @--
//	origin/main -> "main"@"origin"   (when origin is a known remote)
//	main        -> "main"
//
// Commit ids and expressions that already start with @ pass through.
func translateRef(ref string, remotes map[string]bool) string {
	switch {
	case ref == "":
		return ""
	case strings.HasPrefix(ref, "@"):
		return ref
	case hexCommitID.MatchString(ref):
		return ref
	}

	if m := headRelative.FindStringSubmatch(ref); m != nil {
		n := len(m[2])
		if m[1] != "" {
			n, _ = strconv.Atoi(m[1])
		}
		return "@" + strings.Repeat("-", n)
	}

	if remote, name, ok := strings.Cut(ref, "/"); ok && remotes[remote] {
		return strconv.Quote(name) + "@" + strconv.Quote(remote)
	}

	return strconv.Quote(ref)
}

// remoteNames lists the git remotes configured for the repository.
func (j *JJ) remoteNames(ctx context.Context) map[string]bool {
	remotes := make(map[string]bool)

	output, err := j.exec(ctx, "git", "remote", "list")
	if err != nil {
		return remotes
	}

	// Format: "origin https://example.com/repo.git"
	for _, line := range vcs.ParseLines(output) {
		if fields := strings.Fields(line); len(fields) > 0 {
			remotes[fields[0]] = true
		}
	}
	return remotes
}

// revset translates ref, consulting the remote list only when the ref could
// name a remote-tracking bookmark.
func (j *JJ) revset(ctx context.Context, ref string) string {
	var remotes map[string]bool
	if strings.Contains(ref, "/") {
		remotes = j.remoteNames(ctx)
	}
	return translateRef(ref, remotes)
}

// logCommitIDs evaluates a revset and returns the matching commit ids,
// newest first.
func (j *JJ) logCommitIDs(ctx context.Context, revset string, limit int) ([]string, error) {
	args := []string{"log", "--no-graph", "-r", revset, "-T", commitIDTemplate}
	if limit > 0 {
		args = append(args, "--limit", strconv.Itoa(limit))
	}

	output, err := j.exec(ctx, args...)
	if err != nil {
		return nil, err
	}
	return vcs.ParseLines(output), nil
}

// ResolveRevision resolves ref to a commit id.
func (j *JJ) ResolveRevision(ctx context.Context, ref string) (string, bool) {
	revset := j.revset(ctx, ref)
	if revset == "" {
		return "", false
	}

	ids, err := j.logCommitIDs(ctx, revset, 1)
	if err != nil || len(ids) == 0 || ids[0] == rootCommitID {
		return "", false
	}
	return ids[0], true
}

// MergeBase returns the newest commit that is an ancestor of both a and b.
// Histories that only meet at jj's root commit are unrelated.
func (j *JJ) MergeBase(ctx context.Context, a, b string) (string, bool) {
	ra, rb := j.revset(ctx, a), j.revset(ctx, b)
	if ra == "" || rb == "" {
		return "", false
	}

	ids, err := j.logCommitIDs(ctx, fmt.Sprintf("heads(::(%s) & ::(%s))", ra, rb), 1)
	if err != nil || len(ids) == 0 || ids[0] == rootCommitID {
		return "", false
	}
	return ids[0], true
}

// DiffNamesOnly lists the paths that differ between base and head. An empty
// head means the working-copy commit.
func (j *JJ) DiffNamesOnly(ctx context.Context, base, head string) ([]string, error) {
	to := "@"
	if head != "" {
		to = j.revset(ctx, head)
	}

	args := []string{"diff", "--name-only", "--from", j.revset(ctx, base), "--to", to}
	output, err := j.exec(ctx, args...)
	if err != nil {
		return nil, fmt.Errorf("jj %s: %w", strings.Join(args, " "), err)
	}

	return vcs.UniqueLines(output), nil
}

// IsDirty returns true if the working-copy commit has changes relative to
// its parent. jj has no staging area, so new files count immediately.
func (j *JJ) IsDirty(ctx context.Context) (bool, error) {
	output, err := j.exec(ctx, "diff", "--name-only", "-r", "@")
	if err != nil {
		return false, fmt.Errorf("jj diff failed: %w", err)
	}
	return len(vcs.ParseLines(output)) > 0, nil
}
