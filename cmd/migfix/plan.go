package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Mschirtzinger/migfix/internal/orchestrator"
)

var (
	planFlags  fixFlags
	planOutput string
)

var planCmd = &cobra.Command{
	Use:   "plan [app...]",
	Short: "Show how conflicting migrations would be renumbered",
	Long: `Detect conflicting apps on disk and print the renumbering that
"makemigrations --fix" would apply. Nothing is changed and the work tree
may be dirty.`,
	RunE: runPlan,
}

func init() {
	planFlags.register(planCmd)
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "text", "Output format: text, yaml or json")
	rootCmd.AddCommand(planCmd)
}

// planReport is the yaml/json form of a dry run.
type planReport struct {
	DefaultRef string    `json:"default_ref,omitempty" yaml:"default_ref,omitempty"`
	Base       string    `json:"base,omitempty" yaml:"base,omitempty"`
	Apps       []appPlan `json:"apps" yaml:"apps"`
	CrossApp   []string  `json:"cross_app,omitempty" yaml:"cross_app,omitempty"`
}

type appPlan struct {
	App     string       `json:"app" yaml:"app"`
	Seed    int          `json:"seed" yaml:"seed"`
	Start   string       `json:"start" yaml:"start"`
	Renames []renamePlan `json:"renames" yaml:"renames"`
}

type renamePlan struct {
	From      string `json:"from" yaml:"from"`
	To        string `json:"to" yaml:"to"`
	DependsOn string `json:"depends_on" yaml:"depends_on"`
}

func runPlan(cmd *cobra.Command, args []string) error {
	switch planOutput {
	case "text", "yaml", "json":
	default:
		return fmt.Errorf("unknown output format %q", planOutput)
	}

	planFlags.apply(cmd)
	planFlags.dryRun = true

	v, err := openRepository()
	if err != nil {
		return err
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
		if planOutput == "text" {
			fmt.Fprintln(out, "No conflicting migrations")
			return nil
		}
		return writeReport(out, planReport{Apps: []appPlan{}})
	}

	fx := &fixer{flags: planFlags, out: out}
	if planOutput != "text" {
		// Structured output carries the plans; diffs would corrupt it.
		fx.flags.diff = false
		fx.out = io.Discard
	}

	res, err := fx.run(cmd.Context(), v, apps, sortedKeys(conflicts))
	if err != nil {
		return err
	}
	if planOutput == "text" {
		return nil
	}
	return writeReport(out, buildReport(res))
}

func buildReport(res *orchestrator.Result) planReport {
	report := planReport{DefaultRef: res.DefaultRef, Base: res.Base, Apps: []appPlan{}}
	for _, p := range res.Plans {
		ap := appPlan{App: p.App, Seed: p.Seed, Start: p.StartName, Renames: []renamePlan{}}
		for _, s := range p.Steps {
			ap.Renames = append(ap.Renames, renamePlan{From: s.OldName, To: s.NewName, DependsOn: s.To.String()})
		}
		report.Apps = append(report.Apps, ap)
	}
	for _, e := range res.CrossApp {
		report.CrossApp = append(report.CrossApp, e.Path)
	}
	return report
}

func writeReport(w io.Writer, report planReport) error {
	if planOutput == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
