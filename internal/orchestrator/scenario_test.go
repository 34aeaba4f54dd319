package orchestrator_test

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Mschirtzinger/migfix/internal/graph"
	"github.com/Mschirtzinger/migfix/internal/orchestrator"
	"github.com/Mschirtzinger/migfix/internal/vcs"
	"github.com/Mschirtzinger/migfix/internal/vcs/git"
)

func runGit(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output))
}

func configureUser(t *testing.T, dir string) {
	t.Helper()
	runGit(t, dir, "config", "user.name", "Test User")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "commit.gpgsign", "false")
}

// newRepo creates a repository whose first commit holds shop's initial
// migration, with HEAD on branch.
func newRepo(t *testing.T, branch string) string {
	t.Helper()
	if !vcs.IsGitAvailable() {
		t.Skip("git not available")
	}

	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "init", "--quiet")
	runGit(t, dir, "symbolic-ref", "HEAD", "refs/heads/"+branch)
	configureUser(t, dir)

	writeFile(t, dir, "shop/migrations/__init__.py", "")
	commitMigration(t, dir, "shop", "0001_initial")
	return dir
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func migration(deps ...string) string {
	text := "from django.db import migrations\n\n\nclass Migration(migrations.Migration):\n\n    dependencies = [\n"
	for _, d := range deps {
		text += "        " + d + ",\n"
	}
	return text + "    ]\n\n    operations = []\n"
}

// commitMigration adds app/migrations/name.py depending on deps and
// commits it.
func commitMigration(t *testing.T, dir, app, name string, deps ...string) {
	t.Helper()
	rel := app + "/migrations/" + name + ".py"
	writeFile(t, dir, rel, migration(deps...))
	runGit(t, dir, "add", "-A")
	runGit(t, dir, "commit", "--quiet", "-m", "add "+rel)
}

func readFile(t *testing.T, dir, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(name)))
	if err != nil {
		t.Fatalf("read %s: %v", name, err)
	}
	return string(data)
}

func exists(dir, name string) bool {
	_, err := os.Stat(filepath.Join(dir, filepath.FromSlash(name)))
	return err == nil
}

// conflictOnFeature branches feature off the current branch, adds
// 0002_feature there and 0002_main on the base branch, then merges the base
// branch back into feature.
func conflictOnFeature(t *testing.T, dir, base string) {
	t.Helper()
	runGit(t, dir, "checkout", "--quiet", "-b", "feature")
	commitMigration(t, dir, "shop", "0002_feature", "('shop', '0001_initial')")

	runGit(t, dir, "checkout", "--quiet", base)
	commitMigration(t, dir, "shop", "0002_main", "('shop', '0001_initial')")

	runGit(t, dir, "checkout", "--quiet", "feature")
	runGit(t, dir, "merge", "--quiet", "--no-edit", base)
}

func fix(t *testing.T, dir string, opts orchestrator.Options, apps ...string) (*orchestrator.Result, []string, error) {
	t.Helper()
	g, err := git.New(dir)
	if err != nil {
		t.Fatalf("git.New() failed: %v", err)
	}
	root, err := g.WorktreeRoot()
	if err != nil {
		t.Fatal(err)
	}
	locs, err := graph.Discover(root)
	if err != nil {
		t.Fatal(err)
	}

	var out []string
	opts.Writer = func(m string) { out = append(out, m) }
	res, err := orchestrator.New(g, opts).Fix(context.Background(), locs, apps)
	return res, out, err
}

func assertFixed(t *testing.T, dir string) {
	t.Helper()
	if exists(dir, "shop/migrations/0002_feature.py") {
		t.Error("0002_feature.py still exists")
	}
	if got, want := readFile(t, dir, "shop/migrations/0003_feature.py"), migration("('shop', '0002_main')"); got != want {
		t.Errorf("0003_feature.py =\n%s\nwant\n%s", got, want)
	}
}

func TestGitSingleLocalMigration(t *testing.T) {
	dir := newRepo(t, "main")
	conflictOnFeature(t, dir, "main")

	res, out, err := fix(t, dir, orchestrator.Options{}, "shop")
	if err != nil {
		t.Fatalf("Fix() failed: %v", err)
	}

	assertFixed(t, dir)
	if res.DefaultRef != "main" {
		t.Errorf("DefaultRef = %s, want main", res.DefaultRef)
	}
	if want := runGit(t, dir, "rev-parse", "main"); res.Base != want {
		t.Errorf("Base = %s, want %s", res.Base, want)
	}
	if out[len(out)-1] != "Successfully fixed migrations for: shop" {
		t.Errorf("output = %q", out)
	}
}

func TestGitLocalChain(t *testing.T) {
	dir := newRepo(t, "main")
	runGit(t, dir, "checkout", "--quiet", "-b", "feature")
	commitMigration(t, dir, "shop", "0002_local_a", "('shop', '0001_initial')")
	commitMigration(t, dir, "shop", "0003_local_b", "('shop', '0002_local_a')")
	runGit(t, dir, "checkout", "--quiet", "main")
	commitMigration(t, dir, "shop", "0002_main", "('shop', '0001_initial')")
	commitMigration(t, dir, "shop", "0003_main_more", "('shop', '0002_main')")
	runGit(t, dir, "checkout", "--quiet", "feature")
	runGit(t, dir, "merge", "--quiet", "--no-edit", "main")

	if _, _, err := fix(t, dir, orchestrator.Options{}, "shop"); err != nil {
		t.Fatalf("Fix() failed: %v", err)
	}

	if got, want := readFile(t, dir, "shop/migrations/0004_local_a.py"), migration("('shop', '0003_main_more')"); got != want {
		t.Errorf("0004_local_a.py =\n%s", got)
	}
	if got, want := readFile(t, dir, "shop/migrations/0005_local_b.py"), migration("('shop', '0004_local_a')"); got != want {
		t.Errorf("0005_local_b.py =\n%s", got)
	}
	for _, old := range []string{"0002_local_a.py", "0003_local_b.py"} {
		if exists(dir, "shop/migrations/"+old) {
			t.Errorf("%s still exists", old)
		}
	}
	if !exists(dir, "shop/migrations/0003_main_more.py") {
		t.Error("upstream migration was removed")
	}
}

func TestGitDirtyWorkingTree(t *testing.T) {
	dir := newRepo(t, "main")
	conflictOnFeature(t, dir, "main")
	writeFile(t, dir, "shop/models.py", "# wip\n")

	_, _, err := fix(t, dir, orchestrator.Options{}, "shop")
	if !errors.Is(err, orchestrator.ErrDirtyWorkingTree) {
		t.Fatalf("Fix() error = %v, want ErrDirtyWorkingTree", err)
	}
	if !exists(dir, "shop/migrations/0002_feature.py") {
		t.Error("files changed despite a dirty tree")
	}
}

func TestGitMultipleApps(t *testing.T) {
	dir := newRepo(t, "main")
	writeFile(t, dir, "cart/migrations/__init__.py", "")
	commitMigration(t, dir, "cart", "0001_initial")

	runGit(t, dir, "checkout", "--quiet", "-b", "feature")
	commitMigration(t, dir, "shop", "0002_feature", "('shop', '0001_initial')")
	commitMigration(t, dir, "cart", "0002_feature", "('cart', '0001_initial')", "('shop', '0002_feature')")
	runGit(t, dir, "checkout", "--quiet", "main")
	commitMigration(t, dir, "shop", "0002_main", "('shop', '0001_initial')")
	commitMigration(t, dir, "cart", "0002_main", "('cart', '0001_initial')")
	runGit(t, dir, "checkout", "--quiet", "feature")
	runGit(t, dir, "merge", "--quiet", "--no-edit", "main")

	res, out, err := fix(t, dir, orchestrator.Options{}, "shop", "cart")
	if err != nil {
		t.Fatalf("Fix() failed: %v", err)
	}

	assertFixed(t, dir)
	want := migration("('cart', '0002_main')", "('shop', '0003_feature')")
	if got := readFile(t, dir, "cart/migrations/0003_feature.py"); got != want {
		t.Errorf("cart 0003_feature.py =\n%s\nwant\n%s", got, want)
	}
	if len(res.Plans) != 2 {
		t.Errorf("Plans = %d, want 2", len(res.Plans))
	}
	if out[len(out)-1] != "Successfully fixed migrations for: cart, shop" {
		t.Errorf("last line = %q", out[len(out)-1])
	}
}

func TestGitMasterDefaultBranch(t *testing.T) {
	dir := newRepo(t, "master")
	conflictOnFeature(t, dir, "master")

	res, _, err := fix(t, dir, orchestrator.Options{}, "shop")
	if err != nil {
		t.Fatalf("Fix() failed: %v", err)
	}
	assertFixed(t, dir)
	if res.DefaultRef != "master" {
		t.Errorf("DefaultRef = %s, want master", res.DefaultRef)
	}
}

func TestGitExplicitDefaultBranch(t *testing.T) {
	dir := newRepo(t, "master")
	conflictOnFeature(t, dir, "master")

	if _, _, err := fix(t, dir, orchestrator.Options{DefaultBranch: "master"}, "shop"); err != nil {
		t.Fatalf("Fix() failed: %v", err)
	}
	assertFixed(t, dir)
}

func TestGitLinkedWorktree(t *testing.T) {
	dir := newRepo(t, "main")
	wt := filepath.Join(filepath.Dir(dir), filepath.Base(dir)+"-wt")
	runGit(t, dir, "worktree", "add", "--quiet", "-b", "feature", wt, "main")
	t.Cleanup(func() { os.RemoveAll(wt) })
	configureUser(t, wt)

	commitMigration(t, wt, "shop", "0002_feature", "('shop', '0001_initial')")
	commitMigration(t, dir, "shop", "0002_main", "('shop', '0001_initial')")
	runGit(t, wt, "merge", "--quiet", "--no-edit", "main")

	if _, _, err := fix(t, filepath.Join(wt, "shop"), orchestrator.Options{}, "shop"); err != nil {
		t.Fatalf("Fix() failed: %v", err)
	}
	assertFixed(t, wt)
	if exists(dir, "shop/migrations/0003_feature.py") {
		t.Error("main checkout was modified")
	}
}

func TestGitForceUpdate(t *testing.T) {
	upstream := newRepo(t, "main")

	parent, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	clone := filepath.Join(parent, "clone")
	runGit(t, parent, "clone", "--quiet", upstream, clone)
	configureUser(t, clone)

	runGit(t, clone, "checkout", "--quiet", "-b", "feature")
	commitMigration(t, clone, "shop", "0002_feature", "('shop', '0001_initial')")
	commitMigration(t, upstream, "shop", "0002_main", "('shop', '0001_initial')")

	// The clone's local main stays at 0001; only origin/main moves.
	runGit(t, clone, "fetch", "--quiet", "origin")
	runGit(t, clone, "merge", "--quiet", "--no-edit", "origin/main")

	res, out, err := fix(t, clone, orchestrator.Options{ForceUpdate: true}, "shop")
	if err != nil {
		t.Fatalf("Fix() failed: %v", err)
	}
	assertFixed(t, clone)
	if res.DefaultRef != "origin/main" {
		t.Errorf("DefaultRef = %s, want origin/main", res.DefaultRef)
	}
	if out[0] != "Fetching main from origin" {
		t.Errorf("first line = %q", out[0])
	}
}

func TestGitNotARepository(t *testing.T) {
	if !vcs.IsGitAvailable() {
		t.Skip("git not available")
	}
	dir := t.TempDir()
	if _, err := vcs.Detect(dir); err == nil {
		t.Skip("temp dir is inside a repository")
	}

	_, err := orchestrator.Open(dir, "")
	if !errors.Is(err, orchestrator.ErrNotARepository) {
		t.Errorf("Open() error = %v, want ErrNotARepository", err)
	}
}

func TestGitDryRunSeesUncommittedMigration(t *testing.T) {
	dir := newRepo(t, "main")
	commitMigration(t, dir, "shop", "0002_main", "('shop', '0001_initial')")
	writeFile(t, dir, "shop/migrations/0002_feature.py", migration("('shop', '0001_initial')"))

	res, _, err := fix(t, dir, orchestrator.Options{DryRun: true}, "shop")
	if err != nil {
		t.Fatalf("Fix() failed: %v", err)
	}
	if len(res.Plans) != 1 || len(res.Plans[0].Steps) != 1 {
		t.Fatalf("Plans = %+v, want one step", res.Plans)
	}
	step := res.Plans[0].Steps[0]
	if step.OldName != "0002_feature" || step.NewName != "0003_feature" {
		t.Errorf("step = %s -> %s, want 0002_feature -> 0003_feature", step.OldName, step.NewName)
	}
	if !exists(dir, "shop/migrations/0002_feature.py") {
		t.Error("dry run renamed the uncommitted migration")
	}
}

func TestGitForceUpdateWithoutRemote(t *testing.T) {
	dir := newRepo(t, "main")
	conflictOnFeature(t, dir, "main")

	_, out, err := fix(t, dir, orchestrator.Options{ForceUpdate: true}, "shop")
	if !errors.Is(err, orchestrator.ErrRemoteNotFound) {
		t.Fatalf("Fix() error = %v, want ErrRemoteNotFound", err)
	}
	if len(out) != 0 {
		t.Errorf("output = %v, want none", out)
	}
	if !exists(dir, "shop/migrations/0002_feature.py") {
		t.Error("0002_feature.py was renamed")
	}
}
