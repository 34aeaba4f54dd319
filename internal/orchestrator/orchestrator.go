// Package orchestrator repairs conflicting migration leaves across apps.
//
// For every conflicted app it works out which migrations were introduced
// on the current branch, which upstream migration they must now follow,
// and hands both to the resolver. The base for "introduced on this branch"
// is the merge-base of HEAD and the default branch, with HEAD~1 and then
// "everything is local" as fallbacks.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Mschirtzinger/migfix/internal/graph"
	"github.com/Mschirtzinger/migfix/internal/migration"
	"github.com/Mschirtzinger/migfix/internal/resolver"
	"github.com/Mschirtzinger/migfix/internal/vcs"
)

// Recorder persists applied plans.
type Recorder interface {
	Record(ctx context.Context, repoRoot, base string, plan *resolver.Plan) error
}

// remoteChecker is implemented by backends that can list their remotes.
type remoteChecker interface {
	HasRemote(ctx context.Context, name string) bool
}

// Options configures a fix run.
type Options struct {
	// DefaultBranch names the branch local migrations are measured
	// against. Empty means infer main or master from the refs.
	DefaultBranch string

	// Remote is the remote holding the default branch.
	Remote string

	// ForceUpdate fetches the default branch before computing the base.
	ForceUpdate bool

	// SkipDefaultBranchUpdate uses the local branch only: no fetch and
	// no remote-tracking ref.
	SkipDefaultBranchUpdate bool

	// DryRun computes plans without applying them. The dirty-tree check
	// is skipped.
	DryRun bool

	// Width and Extension describe migration file names.
	Width     int
	Extension string

	// Confirm, when set, sees every plan before anything is written.
	// Returning false aborts the run with ErrAborted.
	Confirm func(plans []*resolver.Plan) (bool, error)

	// Writer receives progress lines. Nil discards them.
	Writer resolver.Writer

	// Recorder, when set, is given every applied plan.
	Recorder Recorder

	Logger *slog.Logger
}

// Edit is a whole-file rewrite outside the renumbered apps.
type Edit struct {
	Path    string
	OldText string
	NewText string
}

// Result describes a fix run.
type Result struct {
	// DefaultRef is the ref the base was computed against, or "" when it
	// could not be resolved.
	DefaultRef string

	// Base is the commit local migrations were measured from, or "" when
	// every migration was treated as local.
	Base string

	Plans []*resolver.Plan

	// CrossApp holds rewrites of other apps' dependencies on renamed
	// migrations.
	CrossApp []Edit

	Applied bool
}

// Apps returns the labels of the fixed apps.
func (r *Result) Apps() []string {
	labels := make([]string, len(r.Plans))
	for i, p := range r.Plans {
		labels[i] = p.App
	}
	return labels
}

// Orchestrator runs fixes against one repository.
type Orchestrator struct {
	vcs    vcs.VCS
	opts   Options
	logger *slog.Logger
}

// New creates an orchestrator over v.
func New(v vcs.VCS, opts Options) *Orchestrator {
	if opts.Remote == "" {
		opts.Remote = vcs.DefaultRemote
	}
	if opts.Width <= 0 {
		opts.Width = migration.DefaultWidth
	}
	if opts.Extension == "" {
		opts.Extension = migration.DefaultExtension
	}
	if opts.Writer == nil {
		opts.Writer = func(string) {}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Orchestrator{vcs: v, opts: opts, logger: logger}
}

// Open finds the repository containing dir, preferring the given backend in
// colocated repositories.
func Open(dir string, prefer vcs.Type) (vcs.VCS, error) {
	v, err := vcs.NewFactory(vcs.WithPreferredType(prefer)).Create(dir)
	if errors.Is(err, vcs.ErrNotInVCS) {
		return nil, ErrNotARepository
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Fix renumbers the local migrations of every conflicted app. apps lists
// every known app so cross-app dependencies on renamed migrations can be
// rewritten too; conflicted names the labels to fix.
func (o *Orchestrator) Fix(ctx context.Context, apps []graph.Location, conflicted []string) (*Result, error) {
	if o.vcs == nil || !o.vcs.IsRepository(ctx) {
		return nil, ErrNotARepository
	}

	if !o.opts.DryRun {
		dirty, err := o.vcs.IsDirty(ctx)
		if err != nil {
			return nil, err
		}
		if dirty {
			return nil, ErrDirtyWorkingTree
		}
	}

	root, err := o.vcs.WorktreeRoot()
	if err != nil {
		return nil, err
	}
	root = canonical(root)

	result := &Result{}

	result.DefaultRef, err = o.resolveDefaultRef(ctx)
	if err != nil {
		return nil, err
	}
	result.Base = o.diffBase(ctx, result.DefaultRef)

	var changed map[string]bool
	if result.Base != "" {
		// A dry run may see uncommitted migrations; they are local too.
		head := "HEAD"
		if o.opts.DryRun {
			head = ""
		}
		names, err := o.vcs.DiffNamesOnly(ctx, result.Base, head)
		if err != nil {
			return nil, err
		}
		changed = make(map[string]bool, len(names))
		for _, n := range names {
			changed[filepath.Join(root, filepath.FromSlash(n))] = true
		}
		o.logger.Debug("changed files", "base", result.Base, "count", len(names))
	}

	byLabel := make(map[string]graph.Location, len(apps))
	for _, a := range apps {
		byLabel[a.Label] = a
	}

	labels := append([]string(nil), conflicted...)
	sort.Strings(labels)

	for _, label := range labels {
		loc, ok := byLabel[label]
		if !ok {
			return nil, &resolver.AmbiguousConflictError{App: label, Reason: "migrations directory not found"}
		}

		plan, err := o.planApp(loc, root, changed)
		if err != nil {
			return nil, err
		}
		result.Plans = append(result.Plans, plan)
	}

	result.CrossApp, err = crossAppEdits(apps, result.Plans, o.opts.Extension)
	if err != nil {
		return nil, err
	}

	if o.opts.DryRun || len(result.Plans) == 0 {
		return result, nil
	}


	if o.opts.Confirm != nil {
		ok, err := o.opts.Confirm(result.Plans)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrAborted
		}
	}

	// Every plan is checked before the first app is touched.
	for _, plan := range result.Plans {
		if err := plan.Validate(); err != nil {
			return result, fmt.Errorf("fix %s: %w", plan.App, err)
		}
	}

	for _, plan := range result.Plans {
		if err := resolver.Apply(plan, o.opts.Writer); err != nil {
			return result, fmt.Errorf("fix %s: %w", plan.App, err)
		}
		o.logger.Info("fixed migrations", "app", plan.App, "seed", plan.Seed, "start", plan.StartName, "files", len(plan.Steps))

		if o.opts.Recorder != nil {
			if err := o.opts.Recorder.Record(ctx, root, result.Base, plan); err != nil {
				o.logger.Warn("failed to record fix", "app", plan.App, "error", err)
			}
		}
	}

	if err := applyEdits(result.CrossApp, o.opts.Writer); err != nil {
		return result, err
	}

	result.Applied = true
	o.opts.Writer(fmt.Sprintf("Successfully fixed migrations for: %s", strings.Join(result.Apps(), ", ")))
	return result, nil
}

// resolveDefaultRef returns the ref of the default branch, fetching it
// first when ForceUpdate is set. An inferred branch that cannot be resolved
// is logged and yields "".
func (o *Orchestrator) resolveDefaultRef(ctx context.Context) (string, error) {
	branch := o.opts.DefaultBranch
	explicit := branch != ""

	if !explicit {
		refs, err := o.vcs.ListRefs(ctx)
		if err != nil {
			o.logger.Warn("could not list refs", "error", err)
		}
		var found bool
		branch, found = DefaultBranch(refs, o.opts.Remote)
		if !found {
			o.logger.Debug("no main or master branch found, assuming main")
		}
	}

	skip := o.opts.SkipDefaultBranchUpdate
	if o.opts.ForceUpdate && !skip {
		if rc, ok := o.vcs.(remoteChecker); ok && !rc.HasRemote(ctx, o.opts.Remote) {
			return "", fmt.Errorf("%w: %s", ErrRemoteNotFound, o.opts.Remote)
		}
		o.opts.Writer(fmt.Sprintf("Fetching %s from %s", branch, o.opts.Remote))
		if err := o.vcs.Fetch(ctx, o.opts.Remote, branch); err != nil {
			return "", err
		}
	}

	for _, ref := range branchRefs(branch, o.opts.Remote, skip) {
		if _, ok := o.vcs.ResolveRevision(ctx, ref); ok {
			return ref, nil
		}
	}

	if explicit {
		return "", fmt.Errorf("%w: %s", ErrDefaultBranchNotFound, branch)
	}
	o.logger.Warn("default branch not found; falling back to previous commit", "branch", branch)
	return "", nil
}

// diffBase picks the revision local migrations are measured from.
func (o *Orchestrator) diffBase(ctx context.Context, defaultRef string) string {
	if defaultRef != "" {
		if base, ok := o.vcs.MergeBase(ctx, "HEAD", defaultRef); ok {
			return base
		}
		o.logger.Warn("no merge-base with default branch", "ref", defaultRef)
	}

	if prev, ok := o.vcs.ResolveRevision(ctx, "HEAD~1"); ok {
		return prev
	}

	o.logger.Warn("no previous commit; treating every migration as local")
	return ""
}

// planApp splits the app's migrations into local and upstream sets and
// builds the renumbering plan.
func (o *Orchestrator) planApp(loc graph.Location, root string, changed map[string]bool) (*resolver.Plan, error) {
	app, err := graph.Load(loc.Label, loc.Dir, o.opts.Extension)
	if err != nil {
		return nil, err
	}

	dir := canonical(loc.Dir)
	var local, upstream []string
	var localFiles []string
	var upstreamFiles []migration.File
	for _, f := range app.Files() {
		path := filepath.Join(dir, filepath.Base(f.Path))
		if changed == nil || changed[path] {
			local = append(local, f.Stem())
			localFiles = append(localFiles, f.Path)
		} else {
			upstream = append(upstream, f.Stem())
			upstreamFiles = append(upstreamFiles, f)
		}
	}

	if len(local) == 0 {
		return nil, &resolver.AmbiguousConflictError{App: loc.Label, Reason: "no migrations were introduced on this branch"}
	}

	upstreamLeaves := app.LeavesAmong(upstream)
	if len(upstreamLeaves) != 1 {
		reason := "no upstream migration to attach to"
		if len(upstreamLeaves) > 1 {
			reason = fmt.Sprintf("upstream has %d leaves (%s)", len(upstreamLeaves), strings.Join(upstreamLeaves, ", "))
		}
		return nil, &resolver.AmbiguousConflictError{App: loc.Label, Reason: reason}
	}

	if leaves := app.LeavesAmong(local); len(leaves) > 1 && linksWithin(app, local) {
		return nil, &resolver.AmbiguousConflictError{
			App:    loc.Label,
			Reason: fmt.Sprintf("local migrations branch into %d leaves (%s)", len(leaves), strings.Join(leaves, ", ")),
		}
	}

	seed, _, _ := migration.MaxNumber(upstreamFiles)

	o.logger.Debug("planning app", "app", loc.Label, "seed", seed, "start", upstreamLeaves[0], "local", local)

	return resolver.BuildPlan(resolver.Input{
		App:        loc.Label,
		Dir:        loc.Dir,
		Seed:       seed,
		StartName:  upstreamLeaves[0],
		LocalFiles: localFiles,
		Width:      o.opts.Width,
	})
}

// linksWithin reports whether any of names depends on another of names.
// Local migrations that all hang off upstream carry no order of their own
// and are chained by sequence number instead.
func linksWithin(app *graph.App, names []string) bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	for _, n := range names {
		for _, d := range app.Node(n).Deps {
			if d.App == app.Label && d.Name != n && set[d.Name] {
				return true
			}
		}
	}
	return false
}

// canonical resolves symlinks so paths compare equal to the ones built
// from the VCS work tree root.
func canonical(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return filepath.Clean(path)
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved
	}
	return abs
}
