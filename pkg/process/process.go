// Package process runs external commands and captures their output.
//
// It is the only place govend spawns processes; the git provider drives the
// git binary through a [Runner] so tests can substitute a fake.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Result holds the captured output of a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a command in dir and returns its captured output.
// A non-zero exit status is reported as an *Error that still carries the
// Result.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) (*Result, error)
}

// Error describes a command that could not be started or exited non-zero.
type Error struct {
	Cmd    string
	Result *Result
	Err    error
}

func (e *Error) Error() string {
	stderr := ""
	if e.Result != nil {
		stderr = strings.TrimSpace(e.Result.Stderr)
	}
	if stderr != "" {
		return fmt.Sprintf("running %s: %v: %s", e.Cmd, e.Err, stderr)
	}
	return fmt.Sprintf("running %s: %v", e.Cmd, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// Env is appended to the parent environment.
	Env []string
}

// Run executes name with args in dir.
func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) (*Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.Env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return res, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else {
		res.ExitCode = -1
	}
	return res, &Error{Cmd: commandLine(name, args), Result: res, Err: err}
}

func commandLine(name string, args []string) string {
	return strings.TrimSpace(name + " " + strings.Join(args, " "))
}

var _ Runner = ExecRunner{}
