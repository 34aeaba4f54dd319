package vcs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ExecContext runs name with args in workDir and returns stdout.
// A non-zero exit is returned as *CommandError carrying stderr (or stdout
// when stderr is empty). A missing binary wraps ErrVCSNotAvailable.
func ExecContext(ctx context.Context, workDir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}
	if errors.Is(err, exec.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrVCSNotAvailable, name)
	}

	output := stderr.String()
	if strings.TrimSpace(output) == "" {
		output = stdout.String()
	}
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return stdout.Bytes(), &CommandError{
		Command:  append([]string{name}, args...),
		Output:   output,
		ExitCode: code,
		Err:      err,
	}
}

// ParseLines splits command output into trimmed, non-empty lines.
func ParseLines(output []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(output), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// UniqueLines is ParseLines without repeats, keeping first occurrences.
func UniqueLines(output []byte) []string {
	seen := make(map[string]bool)
	var lines []string
	for _, line := range ParseLines(output) {
		if !seen[line] {
			seen[line] = true
			lines = append(lines, line)
		}
	}
	return lines
}

// TrimOutput returns output without surrounding whitespace.
func TrimOutput(output []byte) string {
	return strings.TrimSpace(string(output))
}

// FirstLine returns the first non-empty line of output.
func FirstLine(output []byte) string {
	if lines := ParseLines(output); len(lines) > 0 {
		return lines[0]
	}
	return ""
}
