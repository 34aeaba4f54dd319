package orchestrator

import "errors"

var (
	// ErrNotARepository is returned when no version-controlled work tree
	// contains the project.
	ErrNotARepository = errors.New("Git repository is not yet setup")

	// ErrDirtyWorkingTree is returned when the work tree has uncommitted
	// changes. The fixer rewrites tracked files in place and refuses to run
	// on a tree it could not cleanly revert.
	ErrDirtyWorkingTree = errors.New("Git repository has uncommitted changes")

	// ErrDefaultBranchNotFound is returned when an explicitly named default
	// branch resolves neither locally nor on the remote.
	ErrDefaultBranchNotFound = errors.New("default branch not found")

	// ErrRemoteNotFound is returned when --force-update names a remote
	// the repository does not have.
	ErrRemoteNotFound = errors.New("remote not found")

	// ErrAborted is returned when the Confirm hook declines the plans.
	ErrAborted = errors.New("fix aborted")
)
