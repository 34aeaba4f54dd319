package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/Mschirtzinger/migfix/internal/resolver"
)

func openTest(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func testPlan(app string, steps ...[2]string) *resolver.Plan {
	p := &resolver.Plan{App: app, Seed: 2, StartName: "0002_main"}
	for _, s := range steps {
		p.Steps = append(p.Steps, resolver.Step{OldName: s[0], NewName: s[1]})
	}
	return p
}

func TestOpenCreatesSchema(t *testing.T) {
	j := openTest(t)

	var count int
	err := j.conn.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='fixes'`).Scan(&count)
	if err != nil {
		t.Fatalf("query sqlite_master: %v", err)
	}
	if count != 1 {
		t.Error("fixes table does not exist")
	}
}

func TestOpenIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	for i := 0; i < 2; i++ {
		j, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d failed: %v", i+1, err)
		}
		if err := j.Close(); err != nil {
			t.Fatalf("Close() failed: %v", err)
		}
	}
}

func TestRecordAndList(t *testing.T) {
	j := openTest(t)
	ctx := context.Background()
	fixed := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	j.now = func() time.Time { return fixed }

	plan := testPlan("shop",
		[2]string{"0002_local_a", "0003_local_a"},
		[2]string{"0003_local_b", "0004_local_b"},
		[2]string{"0004_same", "0004_same"},
	)
	if err := j.Record(ctx, "/repo/one", "abc123", plan); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}
	if err := j.Record(ctx, "/repo/two", "def456", testPlan("cart", [2]string{"0002_x", "0003_x"})); err != nil {
		t.Fatalf("Record() failed: %v", err)
	}

	entries, err := j.List(ctx, "/repo/one", 0)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("List() returned %d entries, want 2", len(entries))
	}

	newest := entries[0]
	if newest.OldName != "0003_local_b" || newest.NewName != "0004_local_b" {
		t.Errorf("newest = %s -> %s", newest.OldName, newest.NewName)
	}
	if newest.App != "shop" || newest.Seed != 2 || newest.StartName != "0002_main" || newest.Base != "abc123" {
		t.Errorf("newest = %+v", newest)
	}
	if !newest.AppliedAt.Equal(fixed) {
		t.Errorf("AppliedAt = %v, want %v", newest.AppliedAt, fixed)
	}

	all, err := j.List(ctx, "", 0)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("List(all) returned %d entries, want 3", len(all))
	}

	limited, err := j.List(ctx, "", 1)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(limited) != 1 || limited[0].App != "cart" {
		t.Errorf("List(limit 1) = %+v", limited)
	}
}

func TestCloseTwice(t *testing.T) {
	j, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}
