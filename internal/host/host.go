// Package host runs the web framework's own makemigrations command and
// recognises its conflicting-migrations report.
package host

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"sort"
	"strings"
)

// DefaultCommand is the makemigrations invocation used when none is
// configured.
var DefaultCommand = []string{"python", "manage.py", "makemigrations"}

// conflictMarker starts the framework's error when an app has more than
// one leaf.
const conflictMarker = "Conflicting migrations detected"

var (
	// ErrConflict matches every *ConflictError.
	ErrConflict = errors.New("conflicting migrations detected")

	// ErrFailed matches every *ExitError.
	ErrFailed = errors.New("makemigrations failed")
)

// Result is the captured output of one host run.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Output returns stdout followed by stderr.
func (r *Result) Output() string {
	return r.Stdout + r.Stderr
}

// ConflictError is returned when the host reports conflicting migrations.
// Leaves is empty when the report could not be parsed; callers then fall
// back to detecting conflicts on disk.
type ConflictError struct {
	Leaves map[string][]string
	Result *Result
}

func (e *ConflictError) Error() string {
	if len(e.Leaves) == 0 {
		return conflictMarker
	}
	return fmt.Sprintf("%s in %s", conflictMarker, strings.Join(e.Apps(), ", "))
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

// Apps returns the conflicted app labels, sorted.
func (e *ConflictError) Apps() []string {
	apps := make([]string, 0, len(e.Leaves))
	for app := range e.Leaves {
		apps = append(apps, app)
	}
	sort.Strings(apps)
	return apps
}

// ExitError is returned when the host fails for any other reason.
type ExitError struct {
	Command []string
	Result  *Result
	Err     error
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s: exit %d", strings.Join(e.Command, " "), e.Result.ExitCode)
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func (e *ExitError) Is(target error) bool {
	return target == ErrFailed
}

// Host runs the framework's migration generator.
type Host interface {
	// MakeMigrations runs the generator for apps (all apps when empty)
	// with extra arguments. The result is returned alongside any
	// *ConflictError or *ExitError.
	MakeMigrations(ctx context.Context, apps, args []string) (*Result, error)
}

// CommandHost runs a configured command line.
type CommandHost struct {
	// Command is the program and its leading arguments; app labels and
	// extra arguments are appended.
	Command []string

	// Dir is the working directory. Empty means the current one.
	Dir string

	// Env, when set, replaces the process environment.
	Env []string
}

// NewCommandHost returns a host running command in dir.
func NewCommandHost(command []string, dir string) *CommandHost {
	if len(command) == 0 {
		command = DefaultCommand
	}
	return &CommandHost{Command: command, Dir: dir}
}

// MakeMigrations implements Host.
func (h *CommandHost) MakeMigrations(ctx context.Context, apps, args []string) (*Result, error) {
	if len(h.Command) == 0 {
		return nil, fmt.Errorf("no makemigrations command configured")
	}

	argv := append(append(append([]string(nil), h.Command[1:]...), apps...), args...)
	cmd := exec.CommandContext(ctx, h.Command[0], argv...)
	cmd.Dir = h.Dir
	if h.Env != nil {
		cmd.Env = h.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("run %s: %w", h.Command[0], err)
	}

	if leaves, ok := ParseConflict(res.Output()); ok {
		return res, &ConflictError{Leaves: leaves, Result: res}
	}
	return res, &ExitError{Command: append([]string{h.Command[0]}, argv...), Result: res, Err: err}
}

var leafList = regexp.MustCompile(`multiple leaf nodes in the migration graph: \((.*)\)`)

// ParseConflict recognises the framework's conflict report. ok is true
// whenever the report is present; leaves maps each app to its leaf names
// when the report lists them, e.g.
//
//	Conflicting migrations detected; multiple leaf nodes in the migration
//	graph: (0002_a, 0002_b in shop; 0003_x, 0003_y in cart).
func ParseConflict(output string) (leaves map[string][]string, ok bool) {
	if !strings.Contains(output, conflictMarker) {
		return nil, false
	}

	leaves = make(map[string][]string)
	m := leafList.FindStringSubmatch(output)
	if m == nil {
		return leaves, true
	}

	for _, group := range strings.Split(m[1], ";") {
		i := strings.LastIndex(group, " in ")
		if i < 0 {
			continue
		}
		app := strings.TrimSpace(group[i+len(" in "):])
		if app == "" {
			continue
		}
		for _, name := range strings.Split(group[:i], ",") {
			if name = strings.TrimSpace(name); name != "" {
				leaves[app] = append(leaves[app], name)
			}
		}
	}
	return leaves, true
}
