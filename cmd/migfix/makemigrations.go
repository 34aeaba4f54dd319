package main

import (
	"errors"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/migfix/internal/config"
	"github.com/Mschirtzinger/migfix/internal/host"
)

var mmFlags struct {
	fixFlags
	fix bool
}

var makemigrationsCmd = &cobra.Command{
	Use:   "makemigrations [app...] [-- host-args...]",
	Short: "Run makemigrations, fixing conflicting migrations with --fix",
	Long: `Run the project's makemigrations command (host.command, by default
"python manage.py makemigrations").

Without a conflict the command's output is passed through unchanged. When it
reports conflicting migrations and --fix is given, the migrations added on
this branch are renumbered after the default branch's latest migration and
makemigrations is run again.

The work tree must be clean: the fix rewrites tracked files in place.`,
	Example: `  migfix makemigrations --fix
  migfix makemigrations shop --fix -b develop --force-update
  migfix makemigrations --fix --dry-run --diff
  migfix makemigrations shop -- --settings=project.settings.test`,
	RunE: runMakemigrations,
}

func init() {
	mmFlags.register(makemigrationsCmd)
	makemigrationsCmd.Flags().BoolVar(&mmFlags.fix, "fix", false, "Fix conflicting migrations")
	makemigrationsCmd.Flags().BoolVar(&mmFlags.dryRun, "dry-run", false, "Show the renames without changing anything")
	makemigrationsCmd.Flags().BoolVarP(&mmFlags.interactive, "interactive", "i", false, "Confirm the renames before applying them")
	rootCmd.AddCommand(makemigrationsCmd)
}

func runMakemigrations(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	mmFlags.apply(cmd)
	labels, hostArgs := splitAtDash(cmd, args)

	dir, err := resolveWorkDir()
	if err != nil {
		return err
	}
	h := host.NewCommandHost(config.GetStringSlice(config.KeyHostCommand), dir)

	res, err := h.MakeMigrations(ctx, labels, hostArgs)
	var conflict *host.ConflictError
	switch {
	case err == nil:
		passThrough(cmd, res)
		return nil
	case errors.As(err, &conflict) && mmFlags.fix:
		logger.Debug("host reported conflicting migrations", "output", res.Output())
	case res != nil:
		passThrough(cmd, res)
		return &exitError{code: res.ExitCode}
	default:
		return err
	}

	v, err := openRepository()
	if err != nil {
		return err
	}
	_, apps, err := discoverApps(v)
	if err != nil {
		return err
	}

	conflicted := conflict.Apps()
	if len(conflicted) == 0 {
		// The report did not name the apps; find them on disk.
		scope, err := selectApps(apps, labels)
		if err != nil {
			return err
		}
		leaves, err := conflictsOnDisk(scope)
		if err != nil {
			return err
		}
		conflicted = sortedKeys(leaves)
	} else {
		conflicted = restrict(conflicted, labels)
	}
	if len(conflicted) == 0 {
		return errors.New("makemigrations reported conflicting migrations, but no conflicted app was found")
	}
	logger.Info("fixing conflicting migrations", "apps", conflicted)

	fx := &fixer{flags: mmFlags.fixFlags, out: cmd.OutOrStdout()}
	if _, err := fx.run(ctx, v, apps, conflicted); err != nil {
		return err
	}
	if mmFlags.dryRun {
		return nil
	}

	res, err = h.MakeMigrations(ctx, labels, hostArgs)
	if res != nil {
		passThrough(cmd, res)
	}
	if err != nil {
		if res != nil {
			return &exitError{code: res.ExitCode}
		}
		return err
	}
	return nil
}

// splitAtDash separates app labels from arguments given after "--".
func splitAtDash(cmd *cobra.Command, args []string) (labels, rest []string) {
	if n := cmd.ArgsLenAtDash(); n >= 0 {
		return args[:n], args[n:]
	}
	return args, nil
}

// passThrough copies the host's output unchanged.
func passThrough(cmd *cobra.Command, res *host.Result) {
	_, _ = cmd.OutOrStdout().Write([]byte(res.Stdout))
	_, _ = cmd.ErrOrStderr().Write([]byte(res.Stderr))
}

// restrict keeps the labels in want; an empty want keeps everything.
func restrict(labels, want []string) []string {
	if len(want) == 0 {
		return labels
	}
	keep := make(map[string]bool, len(want))
	for _, w := range want {
		keep[w] = true
	}
	var out []string
	for _, l := range labels {
		if keep[l] {
			out = append(out, l)
		}
	}
	return out
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
