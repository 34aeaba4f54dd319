package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/migfix/internal/ui"
)

var checkCmd = &cobra.Command{
	Use:   "check [app...]",
	Short: "Report apps with conflicting migrations",
	Long: `Read every app's migrations from disk and report the apps with more than
one leaf migration. Exits 1 when any conflict is found, so it can gate CI.

The project's makemigrations command is not run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// A repository is optional here; without one the working
		// directory is searched.
		v, err := openRepository()
		if err != nil {
			logger.Debug("no repository", "error", err)
			v = nil
		}

		_, apps, err := discoverApps(v)
		if err != nil {
			return err
		}
		scope, err := selectApps(apps, args)
		if err != nil {
			return err
		}
		conflicts, err := conflictsOnDisk(scope)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(conflicts) == 0 {
			fmt.Fprintf(out, "%s No conflicting migrations in %d app(s)\n", ui.RenderPassIcon(), len(scope))
			return nil
		}

		for _, app := range sortedKeys(conflicts) {
			fmt.Fprintf(out, "%s %s: %s\n", ui.RenderFailIcon(), ui.RenderHeader(app), strings.Join(conflicts[app], ", "))
		}
		fmt.Fprintf(out, "\nRun %s to fix them.\n", ui.RenderAccent("migfix makemigrations --fix"))
		return &exitError{code: 1}
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
