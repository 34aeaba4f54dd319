package vcs

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
)

// mockVCS is a mock VCS implementation for testing
type mockVCS struct {
	name     Type
	repoRoot string
}

func (m *mockVCS) Name() Type                              { return m.name }
func (m *mockVCS) IsRepository(ctx context.Context) bool   { return true }
func (m *mockVCS) WorktreeRoot() (string, error)           { return m.repoRoot, nil }
func (m *mockVCS) IsDirty(ctx context.Context) (bool, error) { return false, nil }
func (m *mockVCS) ResolveRevision(ctx context.Context, ref string) (string, bool) {
	return "abc123", true
}
func (m *mockVCS) MergeBase(ctx context.Context, a, b string) (string, bool) {
	return "abc123", true
}
func (m *mockVCS) DiffNamesOnly(ctx context.Context, base, head string) ([]string, error) {
	return nil, nil
}
func (m *mockVCS) Fetch(ctx context.Context, remote, branch string) error { return nil }
func (m *mockVCS) ListRefs(ctx context.Context) ([]RefInfo, error)      { return nil, nil }

// newMockVCS creates a mock VCS instance
func newMockVCS(name Type) func(repoRoot string) (VCS, error) {
	return func(repoRoot string) (VCS, error) {
		return &mockVCS{name: name, repoRoot: repoRoot}, nil
	}
}

// testTypeCounter generates unique test type names
var testTypeCounter int64

func uniqueTestType(prefix string) Type {
	n := atomic.AddInt64(&testTypeCounter, 1)
	return Type(fmt.Sprintf("%s-%d", prefix, n))
}

func TestRegister(t *testing.T) {
	typeName := uniqueTestType("register-test")

	Register(typeName, newMockVCS(typeName))

	if !IsRegistered(typeName) {
		t.Error("Expected type to be registered")
	}

	constructor := constructorFor(typeName)
	if constructor == nil {
		t.Fatal("no constructor for registered type")
	}

	v, err := constructor("/some/root")
	if err != nil {
		t.Fatalf("constructor returned error: %v", err)
	}
	if v.Name() != typeName {
		t.Errorf("Name() = %v, want %v", v.Name(), typeName)
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	typeName := uniqueTestType("double-register")
	Register(typeName, newMockVCS(typeName))

	defer func() {
		if recover() == nil {
			t.Error("Expected panic on duplicate registration")
		}
	}()
	Register(typeName, newMockVCS(typeName))
}

func TestRegisterNilPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic on nil constructor")
		}
	}()
	Register(uniqueTestType("nil-register"), nil)
}

func TestRegisteredTypes(t *testing.T) {
	typeName := uniqueTestType("listed")
	Register(typeName, newMockVCS(typeName))

	found := false
	for _, rt := range RegisteredTypes() {
		if rt == typeName {
			found = true
		}
	}
	if !found {
		t.Errorf("RegisteredTypes() does not include %s", typeName)
	}
}
