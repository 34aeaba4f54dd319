package vcs

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DetectionResult contains information about the detected VCS
type DetectionResult struct {
	// Type is the detected VCS type
	Type Type

	// RepoRoot is the root of the checkout containing the start path
	RepoRoot string

	// VCSDir is the VCS metadata directory path (.git or .jj)
	VCSDir string

	// HasGit indicates a .git directory/file was found
	HasGit bool

	// HasJJ indicates a .jj directory was found
	HasJJ bool

	// IsWorktree indicates this is a linked git worktree (not main repo)
	IsWorktree bool

	// MainRepoRoot is the main repo root (different from RepoRoot for worktrees)
	MainRepoRoot string
}

// Detect finds the repository containing path by walking up from it. The
// nearest directory holding .jj or .git wins; when both are present the
// result is TypeColocate. A .git file marks a linked worktree, whose main
// checkout is read from the file's gitdir line.
//
// Returns ErrNotInVCS when no ancestor is a checkout.
func Detect(path string) (*DetectionResult, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	for {
		if result := probe(dir); result != nil {
			return result, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, ErrNotInVCS
		}
		dir = parent
	}
}

// probe inspects a single directory. It returns nil when dir holds neither
// .jj nor .git.
func probe(dir string) *DetectionResult {
	r := &DetectionResult{RepoRoot: dir, MainRepoRoot: dir}

	jjDir := filepath.Join(dir, ".jj")
	if info, err := os.Stat(jjDir); err == nil && info.IsDir() {
		r.HasJJ = true
		r.VCSDir = jjDir
	}

	gitPath := filepath.Join(dir, ".git")
	if info, err := os.Stat(gitPath); err == nil {
		r.HasGit = true
		gitDir := gitPath
		if info.Mode().IsRegular() {
			r.IsWorktree = true
			r.MainRepoRoot, gitDir = worktreeMain(dir, gitPath)
		}
		if !r.HasJJ {
			r.VCSDir = gitDir
		}
	}

	switch {
	case r.HasJJ && r.HasGit:
		r.Type = TypeColocate
	case r.HasJJ:
		r.Type = TypeJJ
	case r.HasGit:
		r.Type = TypeGit
	default:
		return nil
	}
	return r
}

// worktreeMain reads a linked worktree's .git file, which holds a line like
//
//	gitdir: /src/project/.git/worktrees/feature
//
// and returns the main checkout (/src/project) and the worktree's git dir.
// Unreadable files leave the worktree as its own main checkout.
func worktreeMain(worktree, gitFile string) (mainRoot, gitDir string) {
	content, err := os.ReadFile(gitFile)
	if err != nil {
		return worktree, gitFile
	}
	gitDir, ok := strings.CutPrefix(strings.TrimSpace(string(content)), "gitdir: ")
	if !ok {
		return worktree, gitFile
	}
	if !filepath.IsAbs(gitDir) {
		gitDir = filepath.Join(worktree, gitDir)
	}
	gitDir = filepath.Clean(gitDir)

	marker := string(filepath.Separator) + "worktrees" + string(filepath.Separator)
	if i := strings.Index(gitDir, marker); i > 0 {
		return filepath.Dir(gitDir[:i]), gitDir
	}
	return worktree, gitDir
}

// IsJJAvailable checks if the jj command is available on the system
func IsJJAvailable() bool {
	_, err := exec.LookPath("jj")
	return err == nil
}

// IsGitAvailable checks if the git command is available on the system
func IsGitAvailable() bool {
	_, err := exec.LookPath("git")
	return err == nil
}

// ParseType converts a configuration string into a Type.
// Unknown values fall back to TypeGit.
func ParseType(s string) Type {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "jj", "jujutsu":
		return TypeJJ
	default:
		return TypeGit
	}
}
