// Package config loads migfix settings.
//
// Precedence, highest first: values Set from command-line flags, MIGFIX_*
// environment variables, .migfix.yaml, the [tool.migfix] table of
// pyproject.toml, built-in defaults. Both files are looked up from the
// working directory towards the repository root.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"

	"github.com/Mschirtzinger/migfix/internal/host"
	"github.com/Mschirtzinger/migfix/internal/migration"
	"github.com/Mschirtzinger/migfix/internal/vcs"
)

// FileName is the YAML config file looked up from the working directory.
const FileName = ".migfix.yaml"

// EnvPrefix prefixes environment overrides: log.level is MIGFIX_LOG_LEVEL.
const EnvPrefix = "MIGFIX"

// Keys.
const (
	KeyDefaultBranch       = "default-branch"
	KeyRemote              = "remote"
	KeyHostCommand         = "host.command"
	KeyApps                = "apps"
	KeyMigrationsExtension = "migrations.extension"
	KeyMigrationsWidth     = "migrations.width"
	KeyVCSPrefer           = "vcs.prefer"
	KeyLogFile             = "log.file"
	KeyLogLevel            = "log.level"
	KeyLogMaxSizeMB        = "log.max-size-mb"
	KeyHistoryEnabled      = "history.enabled"
	KeyHistoryPath         = "history.path"
)

var v *viper.Viper

// Initialize loads configuration for a run in dir. file, when set, replaces
// the .migfix.yaml lookup.
func Initialize(dir, file string) error {
	nv := viper.New()
	nv.SetEnvPrefix(EnvPrefix)
	nv.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	nv.AutomaticEnv()
	setDefaults(nv)

	if pyproject := findUp(dir, "pyproject.toml"); pyproject != "" {
		table, err := readPyproject(pyproject)
		if err != nil {
			return err
		}
		if len(table) > 0 {
			if err := nv.MergeConfigMap(table); err != nil {
				return fmt.Errorf("merge %s: %w", pyproject, err)
			}
		}
	}

	if file == "" {
		file = findUp(dir, FileName)
	}
	if file != "" {
		nv.SetConfigFile(file)
		nv.SetConfigType("yaml")
		if err := nv.MergeInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	v = nv
	return nil
}

func setDefaults(nv *viper.Viper) {
	nv.SetDefault(KeyDefaultBranch, "")
	nv.SetDefault(KeyRemote, vcs.DefaultRemote)
	nv.SetDefault(KeyHostCommand, host.DefaultCommand)
	nv.SetDefault(KeyApps, map[string]string{})
	nv.SetDefault(KeyMigrationsExtension, migration.DefaultExtension)
	nv.SetDefault(KeyMigrationsWidth, migration.DefaultWidth)
	nv.SetDefault(KeyVCSPrefer, string(vcs.TypeGit))
	nv.SetDefault(KeyLogFile, "")
	nv.SetDefault(KeyLogLevel, "info")
	nv.SetDefault(KeyLogMaxSizeMB, 10)
	nv.SetDefault(KeyHistoryEnabled, true)
	nv.SetDefault(KeyHistoryPath, "")
}

// findUp returns the first dir/name found walking up from dir. The walk
// stops after the repository root (a directory holding .git or .jj).
func findUp(dir, name string) string {
	if dir == "" {
		dir = "."
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, name)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return candidate
		}
		if isRepoRoot(dir) {
			return ""
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func isRepoRoot(dir string) bool {
	for _, marker := range []string{".git", ".jj"} {
		if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
			return true
		}
	}
	return false
}

// readPyproject returns the [tool.migfix] table of a pyproject.toml, or nil
// when it has none.
func readPyproject(path string) (map[string]any, error) {
	var doc struct {
		Tool struct {
			Migfix map[string]any `toml:"migfix"`
		} `toml:"tool"`
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return doc.Tool.Migfix, nil
}

// ConfigFileUsed returns the YAML file that was loaded, if any.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// Set overrides key for the rest of the run.
func Set(key string, value any) {
	if v != nil {
		v.Set(key, value)
	}
}

func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

func GetStringSlice(key string) []string {
	if v == nil {
		return []string{}
	}
	return v.GetStringSlice(key)
}

func GetStringMapString(key string) map[string]string {
	if v == nil {
		return map[string]string{}
	}
	return v.GetStringMapString(key)
}

// AllSettings returns every resolved setting.
func AllSettings() map[string]any {
	if v == nil {
		return map[string]any{}
	}
	return v.AllSettings()
}

// ResetForTesting drops the loaded configuration.
func ResetForTesting() {
	v = nil
}
