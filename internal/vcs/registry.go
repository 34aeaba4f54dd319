package vcs

import (
	"fmt"
	"sort"
	"sync"
)

// Constructor opens a backend rooted at the detected repository root.
type Constructor func(repoRoot string) (VCS, error)

var (
	backendsMu sync.RWMutex
	backends   = make(map[Type]Constructor)
)

// Register makes a backend available to the Factory. Backends call it from
// init, so importing a backend package is enough to enable it:
//
//	import _ "github.com/Mschirtzinger/migfix/internal/vcs/git"
//
// Register panics on a nil constructor or a second registration of t.
func Register(t Type, c Constructor) {
	backendsMu.Lock()
	defer backendsMu.Unlock()

	if c == nil {
		panic(fmt.Sprintf("vcs: nil constructor for %s", t))
	}
	if _, dup := backends[t]; dup {
		panic(fmt.Sprintf("vcs: %s registered twice", t))
	}
	backends[t] = c
}

func constructorFor(t Type) Constructor {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	return backends[t]
}

// IsRegistered reports whether a backend for t has been registered.
func IsRegistered(t Type) bool {
	return constructorFor(t) != nil
}

// RegisteredTypes lists the registered backends in name order.
func RegisteredTypes() []Type {
	backendsMu.RLock()
	types := make([]Type, 0, len(backends))
	for t := range backends {
		types = append(types, t)
	}
	backendsMu.RUnlock()

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
