package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/migfix/internal/config"
	"github.com/Mschirtzinger/migfix/internal/graph"
	"github.com/Mschirtzinger/migfix/internal/history"
	"github.com/Mschirtzinger/migfix/internal/orchestrator"
	"github.com/Mschirtzinger/migfix/internal/resolver"
	"github.com/Mschirtzinger/migfix/internal/ui"
	"github.com/Mschirtzinger/migfix/internal/vcs"
)

// fixFlags are the flags shared by every command that renumbers.
type fixFlags struct {
	defaultBranch string
	remote        string
	forceUpdate   bool
	skipUpdate    bool
	dryRun        bool
	diff          bool
	interactive   bool
}

func (f *fixFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.defaultBranch, "default-branch", "b", "", "Default branch (default: main, else master)")
	cmd.Flags().StringVar(&f.remote, "remote", "", "Remote holding the default branch (default: origin)")
	cmd.Flags().BoolVar(&f.forceUpdate, "force-update", false, "Fetch the default branch before computing the base")
	cmd.Flags().BoolVar(&f.skipUpdate, "skip-default-branch-update", false, "Use the local default branch only; never fetch")
	cmd.Flags().BoolVar(&f.diff, "diff", false, "Show unified diffs of the rewritten files")
}

// apply pushes explicitly set flags over the loaded configuration.
func (f *fixFlags) apply(cmd *cobra.Command) {
	if cmd.Flags().Changed("default-branch") {
		config.Set(config.KeyDefaultBranch, f.defaultBranch)
	}
	if cmd.Flags().Changed("remote") {
		config.Set(config.KeyRemote, f.remote)
	}
}

// fixer runs the orchestrator for one command invocation.
type fixer struct {
	flags fixFlags
	out   io.Writer
}

func (fx *fixer) options() orchestrator.Options {
	return orchestrator.Options{
		DefaultBranch:           config.GetString(config.KeyDefaultBranch),
		Remote:                  config.GetString(config.KeyRemote),
		ForceUpdate:             fx.flags.forceUpdate,
		SkipDefaultBranchUpdate: fx.flags.skipUpdate,
		DryRun:                  fx.flags.dryRun,
		Width:                   config.GetInt(config.KeyMigrationsWidth),
		Extension:               config.GetString(config.KeyMigrationsExtension),
		Writer:                  fx.write,
		Logger:                  logger,
	}
}

func (fx *fixer) write(msg string) {
	if strings.HasPrefix(msg, "Successfully") {
		fmt.Fprintf(fx.out, "%s %s\n", ui.RenderPassIcon(), msg)
		return
	}
	fmt.Fprintln(fx.out, msg)
}

// run fixes the conflicted apps and prints the plans of a dry run.
func (fx *fixer) run(ctx context.Context, v vcs.VCS, apps []graph.Location, conflicted []string) (*orchestrator.Result, error) {
	opts := fx.options()

	if fx.flags.interactive && !fx.flags.dryRun {
		if !ui.IsTerminal(os.Stdin.Fd()) {
			return nil, errors.New("--interactive needs a terminal on stdin")
		}
		opts.Confirm = fx.confirm
	}

	if !fx.flags.dryRun && config.GetBool(config.KeyHistoryEnabled) {
		journal, err := openHistory()
		if err != nil {
			logger.Warn("fix history disabled", "error", err)
		} else {
			defer journal.Close()
			opts.Recorder = journal
		}
	}

	res, err := orchestrator.New(v, opts).Fix(ctx, apps, conflicted)
	if err != nil {
		return res, err
	}

	if fx.flags.dryRun {
		printPlans(fx.out, res)
	}
	if fx.flags.diff {
		if err := printDiffs(fx.out, res.Plans); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (fx *fixer) confirm(plans []*resolver.Plan) (bool, error) {
	printPlanSteps(fx.out, plans)

	ok := false
	err := huh.NewConfirm().
		Title("Apply these renames?").
		Affirmative("Apply").
		Negative("Cancel").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

func openHistory() (*history.Journal, error) {
	path := config.GetString(config.KeyHistoryPath)
	if path == "" {
		path = history.DefaultPath()
	}
	return history.Open(path)
}

// printPlans writes a human-readable summary of a dry run.
func printPlans(w io.Writer, res *orchestrator.Result) {
	if res.DefaultRef != "" {
		fmt.Fprintf(w, "Default branch: %s\n", res.DefaultRef)
	}
	if res.Base != "" {
		fmt.Fprintf(w, "Base: %s\n", res.Base)
	} else {
		fmt.Fprintln(w, "Base: none (every migration is local)")
	}
	printPlanSteps(w, res.Plans)
	for _, e := range res.CrossApp {
		fmt.Fprintf(w, "%s also update %s\n", ui.RenderMuted(ui.IconArrow), e.Path)
	}
	fmt.Fprintln(w, ui.RenderMuted("Dry run: no files were changed"))
}

func printPlanSteps(w io.Writer, plans []*resolver.Plan) {
	for _, p := range plans {
		fmt.Fprintf(w, "\n%s after %s\n", ui.RenderHeader(p.App), p.StartName)
		for _, s := range p.Steps {
			fmt.Fprintf(w, "  %s %s %s, depends on %s\n", s.OldName, ui.IconArrow, ui.RenderAccent(s.NewName), s.To)
		}
	}
	fmt.Fprintln(w)
}

func printDiffs(w io.Writer, plans []*resolver.Plan) error {
	for _, p := range plans {
		diffs, err := resolver.Preview(p)
		if err != nil {
			return err
		}
		for _, d := range diffs {
			fmt.Fprint(w, d.Diff)
		}
	}
	return nil
}
