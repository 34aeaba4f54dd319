package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Mschirtzinger/migfix/internal/config"
	"github.com/Mschirtzinger/migfix/internal/graph"
	"github.com/Mschirtzinger/migfix/internal/logging"
	"github.com/Mschirtzinger/migfix/internal/orchestrator"
	"github.com/Mschirtzinger/migfix/internal/ui"
	"github.com/Mschirtzinger/migfix/internal/vcs"
	_ "github.com/Mschirtzinger/migfix/internal/vcs/git"
	_ "github.com/Mschirtzinger/migfix/internal/vcs/jj"
)

var (
	workDir     string
	configFile  string
	verboseFlag bool
	quietFlag   bool
	noColorFlag bool
	logFileFlag string

	logger    = logging.Discard()
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "migfix",
	Short: "Fix conflicting numbered Django migrations",
	Long: `migfix repairs migration conflicts left behind by merging branches that
each added migrations to the same app.

The migrations introduced on the current branch are renumbered to follow
the default branch's latest migration, and their dependencies are rewritten
to keep each app's chain linear.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveWorkDir()
		if err != nil {
			return err
		}
		if err := config.Initialize(dir, configFile); err != nil {
			return err
		}
		if cmd.Flags().Changed("log-file") {
			config.Set(config.KeyLogFile, logFileFlag)
		}

		ui.Init(noColorFlag)

		l, closer, err := logging.New(logging.Options{
			Level:     config.GetString(config.KeyLogLevel),
			Verbose:   verboseFlag,
			Quiet:     quietFlag,
			Stderr:    os.Stderr,
			File:      config.GetString(config.KeyLogFile),
			MaxSizeMB: config.GetInt(config.KeyLogMaxSizeMB),
		})
		if err != nil {
			return err
		}
		logger, logCloser = l, closer
		if used := config.ConfigFileUsed(); used != "" {
			logger.Debug("loaded config", "file", used)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", "", "Run as if started in this directory")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: .migfix.yaml up to the repository root)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Only log warnings and errors")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Also write JSON logs to this file")
}

func closeLog() {
	if logCloser != nil {
		_ = logCloser.Close()
	}
}

func resolveWorkDir() (string, error) {
	dir := workDir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

// openRepository opens the repository containing the working directory.
func openRepository() (vcs.VCS, error) {
	dir, err := resolveWorkDir()
	if err != nil {
		return nil, err
	}
	return orchestrator.Open(dir, vcs.ParseType(config.GetString(config.KeyVCSPrefer)))
}

// discoverApps finds every app's migrations directory below the repository
// root, or below the working directory when v is nil.
func discoverApps(v vcs.VCS) (root string, apps []graph.Location, err error) {
	if v != nil {
		root, err = v.WorktreeRoot()
	} else {
		root, err = resolveWorkDir()
	}
	if err != nil {
		return "", nil, err
	}

	found, err := graph.Discover(root)
	if err != nil {
		return "", nil, err
	}
	apps = graph.Resolve(root, found, config.GetStringMapString(config.KeyApps))
	logger.Debug("discovered apps", "root", root, "count", len(apps))
	return root, apps, nil
}

// selectApps narrows apps to labels. Unknown labels are an error.
func selectApps(apps []graph.Location, labels []string) ([]graph.Location, error) {
	kept, unknown := graph.Filter(apps, labels)
	if len(unknown) > 0 {
		return nil, fmt.Errorf("no migrations directory found for app(s): %v", unknown)
	}
	return kept, nil
}

// conflictsOnDisk returns the leaf sets of the conflicted apps among locs.
func conflictsOnDisk(locs []graph.Location) (map[string][]string, error) {
	loaded, err := graph.LoadAll(locs, config.GetString(config.KeyMigrationsExtension))
	if err != nil {
		return nil, err
	}
	return graph.Conflicts(loaded), nil
}
