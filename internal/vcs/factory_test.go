package vcs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// Use a test-only type to avoid conflicting with real registrations
const (
	testTypeA Type = "test-type-a"
	testTypeB Type = "test-type-b"
)

func TestFactoryWithMockRegistration(t *testing.T) {
	Register(testTypeA, newMockVCS(testTypeA))
	Register(testTypeB, newMockVCS(testTypeB))

	tests := []struct {
		name         string
		implType     Type
		repoRoot     string
		wantErr      bool
		expectedName Type
	}{
		{
			name:         "test type A implementation",
			implType:     testTypeA,
			repoRoot:     "/test/a/repo",
			expectedName: testTypeA,
		},
		{
			name:         "test type B implementation",
			implType:     testTypeB,
			repoRoot:     "/test/b/repo",
			expectedName: testTypeB,
		},
		{
			name:     "unregistered type",
			implType: "unknown",
			repoRoot: "/test/unknown/repo",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			factory := NewFactory()
			result := &DetectionResult{
				Type:     tt.implType,
				RepoRoot: tt.repoRoot,
			}

			v, err := factory.createImplementation(tt.implType, result)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			if v.Name() != tt.expectedName {
				t.Errorf("Expected VCS name '%s', got '%s'", tt.expectedName, v.Name())
			}

			root, err := v.WorktreeRoot()
			if err != nil {
				t.Fatalf("WorktreeRoot() failed: %v", err)
			}
			if root != tt.repoRoot {
				t.Errorf("WorktreeRoot() = %s, want %s", root, tt.repoRoot)
			}
		})
	}
}

func TestFactoryNotInVCS(t *testing.T) {
	dir := t.TempDir()

	_, err := NewFactory().Create(dir)
	if err == nil {
		// A temp dir nested inside a checkout is possible on some CI hosts.
		t.Skip("temp dir is inside a repository")
	}
	if !errors.Is(err, ErrNotInVCS) {
		t.Errorf("Create() error = %v, want ErrNotInVCS", err)
	}
}

func TestDetermineImplementationType(t *testing.T) {
	if !IsGitAvailable() {
		t.Skip("git not available")
	}

	f := NewFactory()
	got, err := f.determineImplementationType(&DetectionResult{Type: TypeGit, HasGit: true})
	if err != nil {
		t.Fatalf("determineImplementationType() error: %v", err)
	}
	if got != TypeGit {
		t.Errorf("determineImplementationType() = %v, want git", got)
	}

	// Colocated with git preferred (the default) and git available.
	got, err = f.determineImplementationType(&DetectionResult{Type: TypeColocate, HasGit: true, HasJJ: true})
	if err != nil {
		t.Fatalf("determineImplementationType() error: %v", err)
	}
	if got != TypeGit {
		t.Errorf("colocated default = %v, want git", got)
	}
}

func TestDetect(t *testing.T) {
	t.Run("git directory", func(t *testing.T) {
		root := t.TempDir()
		if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
			t.Fatal(err)
		}
		sub := filepath.Join(root, "app", "migrations")
		if err := os.MkdirAll(sub, 0o755); err != nil {
			t.Fatal(err)
		}

		result, err := Detect(sub)
		if err != nil {
			t.Fatalf("Detect() failed: %v", err)
		}
		if result.Type != TypeGit {
			t.Errorf("Type = %v, want git", result.Type)
		}
		if result.RepoRoot != root {
			t.Errorf("RepoRoot = %s, want %s", result.RepoRoot, root)
		}
		if result.IsWorktree {
			t.Error("IsWorktree = true for a regular repository")
		}
	})

	t.Run("linked worktree file", func(t *testing.T) {
		main := t.TempDir()
		wt := t.TempDir()
		gitDir := filepath.Join(main, ".git", "worktrees", "wt")
		if err := os.MkdirAll(gitDir, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(wt, ".git"), []byte("gitdir: "+gitDir+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}

		result, err := Detect(wt)
		if err != nil {
			t.Fatalf("Detect() failed: %v", err)
		}
		if !result.IsWorktree {
			t.Error("IsWorktree = false, want true")
		}
		if result.RepoRoot != wt {
			t.Errorf("RepoRoot = %s, want %s", result.RepoRoot, wt)
		}
		if result.MainRepoRoot != main {
			t.Errorf("MainRepoRoot = %s, want %s", result.MainRepoRoot, main)
		}
	})

	t.Run("colocated", func(t *testing.T) {
		root := t.TempDir()
		for _, d := range []string{".git", ".jj"} {
			if err := os.Mkdir(filepath.Join(root, d), 0o755); err != nil {
				t.Fatal(err)
			}
		}

		result, err := Detect(root)
		if err != nil {
			t.Fatalf("Detect() failed: %v", err)
		}
		if result.Type != TypeColocate {
			t.Errorf("Type = %v, want colocate", result.Type)
		}
	})
}

func TestParseType(t *testing.T) {
	tests := map[string]Type{
		"git":      TypeGit,
		"jj":       TypeJJ,
		"Jujutsu":  TypeJJ,
		"":         TypeGit,
		"mercurial": TypeGit,
	}
	for in, want := range tests {
		if got := ParseType(in); got != want {
			t.Errorf("ParseType(%q) = %v, want %v", in, got, want)
		}
	}
}
