package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/migfix/internal/ui"
)

var (
	historyLimit int
	historyAll   bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List fixes applied in this repository",
	RunE: func(cmd *cobra.Command, args []string) error {
		repoRoot := ""
		if !historyAll {
			v, err := openRepository()
			if err != nil {
				return err
			}
			if repoRoot, err = v.WorktreeRoot(); err != nil {
				return err
			}
			// Fixes are recorded under the resolved root.
			if resolved, err := filepath.EvalSymlinks(repoRoot); err == nil {
				repoRoot = resolved
			}
		}

		journal, err := openHistory()
		if err != nil {
			return err
		}
		defer journal.Close()

		entries, err := journal.List(cmd.Context(), repoRoot, historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(entries) == 0 {
			fmt.Fprintln(out, "No fixes recorded")
			return nil
		}
		for _, e := range entries {
			line := fmt.Sprintf("%s  %s  %s %s %s  (after %s)",
				ui.RenderMuted(e.AppliedAt.Local().Format(time.DateTime)),
				ui.RenderHeader(e.App), e.OldName, ui.IconArrow, ui.RenderAccent(e.NewName), e.StartName)
			if historyAll {
				line += "  " + ui.RenderMuted(e.RepoRoot)
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Show at most this many renames (0 for all)")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "Show fixes from every repository")
	rootCmd.AddCommand(historyCmd)
}
