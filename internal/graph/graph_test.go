package graph

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func migrationText(deps ...string) string {
	text := "from django.db import migrations\n\n\nclass Migration(migrations.Migration):\n\n    dependencies = [\n"
	for _, d := range deps {
		text += "        " + d + ",\n"
	}
	return text + "    ]\n\n    operations = []\n"
}

func writeMigration(t *testing.T, dir, name string, deps ...string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(migrationText(deps...)), 0o644); err != nil {
		t.Fatal(err)
	}
}

func setupApp(t *testing.T, root, label string) string {
	t.Helper()
	dir := filepath.Join(root, label, MigrationsDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "__init__.py"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestLeaves(t *testing.T) {
	root := t.TempDir()
	dir := setupApp(t, root, "shop")
	writeMigration(t, dir, "0001_initial.py")
	writeMigration(t, dir, "0002_main.py", "('shop', '0001_initial')")
	writeMigration(t, dir, "0002_feature.py", "('shop', '0001_initial')", "('auth', '0012_alter_user')")
	writeMigration(t, dir, "0003_feature_more.py", `("shop", "0002_feature")`)

	app, err := Load("shop", dir, ".py")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	wantNames := []string{"0001_initial", "0002_feature", "0002_main", "0003_feature_more"}
	if got := app.Names(); !reflect.DeepEqual(got, wantNames) {
		t.Errorf("Names() = %v, want %v", got, wantNames)
	}

	if got, want := app.Leaves(), []string{"0002_main", "0003_feature_more"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Leaves() = %v, want %v", got, want)
	}
	if !app.HasConflict() {
		t.Error("HasConflict() = false")
	}

	upstream := app.LeavesAmong([]string{"0001_initial", "0002_main"})
	if !reflect.DeepEqual(upstream, []string{"0002_main"}) {
		t.Errorf("LeavesAmong(upstream) = %v", upstream)
	}

	local := app.LeavesAmong([]string{"0002_feature", "0003_feature_more", "9999_unknown"})
	if !reflect.DeepEqual(local, []string{"0003_feature_more"}) {
		t.Errorf("LeavesAmong(local) = %v", local)
	}

	if n := app.Node("0002_feature"); n == nil || len(n.Deps) != 2 {
		t.Errorf("Node(0002_feature) = %+v", n)
	}

	conflicts := Conflicts([]*App{app})
	if !reflect.DeepEqual(conflicts["shop"], []string{"0002_main", "0003_feature_more"}) {
		t.Errorf("Conflicts() = %v", conflicts)
	}
}

func TestLinearChainHasOneLeaf(t *testing.T) {
	root := t.TempDir()
	dir := setupApp(t, root, "billing")
	writeMigration(t, dir, "0001_initial.py")
	writeMigration(t, dir, "0002_invoice.py", "('billing', '0001_initial')")

	app, err := Load("billing", dir, "")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if app.HasConflict() {
		t.Errorf("HasConflict() = true, leaves %v", app.Leaves())
	}
	if len(Conflicts([]*App{app})) != 0 {
		t.Error("Conflicts() reported a linear app")
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	setupApp(t, root, "shop")
	setupApp(t, filepath.Join(root, "src"), "billing")
	setupApp(t, filepath.Join(root, ".venv", "lib"), "hidden")
	setupApp(t, filepath.Join(root, "node_modules"), "npm")

	venv := filepath.Join(root, "myenv")
	setupApp(t, venv, "vendored")
	if err := os.WriteFile(filepath.Join(venv, "pyvenv.cfg"), nil, 0o644); err != nil {
		t.Fatal(err)
	}

	// migrations directory without __init__.py is not a package
	if err := os.MkdirAll(filepath.Join(root, "scripts", MigrationsDirName), 0o755); err != nil {
		t.Fatal(err)
	}

	locs, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover() failed: %v", err)
	}

	want := []Location{
		{Label: "billing", Dir: filepath.Join(root, "src", "billing", MigrationsDirName)},
		{Label: "shop", Dir: filepath.Join(root, "shop", MigrationsDirName)},
	}
	if !reflect.DeepEqual(locs, want) {
		t.Errorf("Discover() = %v, want %v", locs, want)
	}
}

func TestDiscoverDuplicateLabel(t *testing.T) {
	root := t.TempDir()
	setupApp(t, filepath.Join(root, "a"), "core")
	setupApp(t, filepath.Join(root, "b"), "core")

	if _, err := Discover(root); err == nil {
		t.Error("Discover() with duplicate labels succeeded")
	}
}

func TestResolveAndFilter(t *testing.T) {
	root := "/repo"
	discovered := []Location{
		{Label: "shop", Dir: "/repo/shop/migrations"},
		{Label: "billing", Dir: "/repo/billing/migrations"},
	}
	configured := map[string]string{
		"shop":  "apps/shop/migrations",
		"extra": "/elsewhere/migrations",
	}

	locs := Resolve(root, discovered, configured)
	want := []Location{
		{Label: "billing", Dir: "/repo/billing/migrations"},
		{Label: "extra", Dir: "/elsewhere/migrations"},
		{Label: "shop", Dir: filepath.Join("/repo", "apps/shop/migrations")},
	}
	if !reflect.DeepEqual(locs, want) {
		t.Errorf("Resolve() = %v, want %v", locs, want)
	}

	kept, unknown := Filter(locs, []string{"shop", "nope"})
	if len(kept) != 1 || kept[0].Label != "shop" {
		t.Errorf("Filter() kept = %v", kept)
	}
	if !reflect.DeepEqual(unknown, []string{"nope"}) {
		t.Errorf("Filter() unknown = %v", unknown)
	}

	if all, _ := Filter(locs, nil); len(all) != 3 {
		t.Errorf("Filter(nil) = %v", all)
	}
}
