package vcs

import (
	"fmt"
)

// Factory opens the backend for a checkout.
type Factory struct {
	// preferred picks the backend in colocated repositories.
	preferred Type
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// NewFactory returns a factory that prefers git in colocated repositories.
func NewFactory(opts ...FactoryOption) *Factory {
	f := &Factory{preferred: TypeGit}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithPreferredType selects the backend for colocated repositories. The
// empty type keeps the default.
func WithPreferredType(t Type) FactoryOption {
	return func(f *Factory) {
		if t != "" {
			f.preferred = t
		}
	}
}

// Create detects the checkout containing path and opens its backend.
func (f *Factory) Create(path string) (VCS, error) {
	result, err := Detect(path)
	if err != nil {
		return nil, err
	}

	t, err := f.determineImplementationType(result)
	if err != nil {
		return nil, err
	}
	return f.createImplementation(t, result)
}

// determineImplementationType picks a backend whose binary is installed.
// Colocated repositories fall back to whichever binary exists.
func (f *Factory) determineImplementationType(result *DetectionResult) (Type, error) {
	usable := map[Type]bool{
		TypeGit: result.HasGit && IsGitAvailable(),
		TypeJJ:  result.HasJJ && IsJJAvailable(),
	}

	var order []Type
	switch result.Type {
	case TypeGit, TypeJJ:
		order = []Type{result.Type}
	case TypeColocate:
		order = []Type{f.preferred, TypeGit, TypeJJ}
	default:
		return "", fmt.Errorf("unknown VCS type: %s", result.Type)
	}

	for _, t := range order {
		if usable[t] {
			return t, nil
		}
	}
	return "", ErrVCSNotAvailable
}

func (f *Factory) createImplementation(t Type, result *DetectionResult) (VCS, error) {
	c := constructorFor(t)
	if c == nil {
		return nil, fmt.Errorf("no %s backend registered (available: %v)", t, RegisteredTypes())
	}

	v, err := c(result.RepoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s repository: %w", t, err)
	}
	return v, nil
}

// GetForPath opens the checkout containing path with default options.
func GetForPath(path string) (VCS, error) {
	return NewFactory().Create(path)
}
