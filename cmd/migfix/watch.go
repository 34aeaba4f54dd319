package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/migfix/internal/config"
	"github.com/Mschirtzinger/migfix/internal/ui"
	"github.com/Mschirtzinger/migfix/internal/watch"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch [app...]",
	Short: "Report migration conflicts as they appear",
	Long: `Watch every app's migrations directory and print a line whenever an
app gains or loses a migration conflict, for example after a pull or a
branch switch. Stop with Ctrl+C.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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
		if len(scope) == 0 {
			return fmt.Errorf("no migrations directories found")
		}

		w, err := watch.New(scope, watch.Options{
			Extension: config.GetString(config.KeyMigrationsExtension),
			Debounce:  watchDebounce,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Watching %d app(s). Press Ctrl+C to stop.\n", len(scope))

		ctx := cmd.Context()
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-w.Events():
				if !ok {
					return nil
				}
				stamp := ui.RenderMuted(time.Now().Format("15:04:05"))
				if ev.Conflict {
					fmt.Fprintf(out, "%s %s %s conflicting leaves: %s\n", stamp, ui.RenderFailIcon(), ui.RenderHeader(ev.App), strings.Join(ev.Leaves, ", "))
				} else {
					fmt.Fprintf(out, "%s %s %s ok\n", stamp, ui.RenderPassIcon(), ui.RenderHeader(ev.App))
				}
			case err, ok := <-w.Errors():
				if !ok {
					return nil
				}
				logger.Warn("watch error", "error", err)
			}
		}
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "Quiet period before a directory is re-read")
	rootCmd.AddCommand(watchCmd)
}
