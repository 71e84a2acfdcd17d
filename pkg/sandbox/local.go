package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// LocalExecutor runs contracts as subprocesses on the host. Memory and
// CPU caps are not enforceable without a container runtime; it honors
// timeouts and output caps and is intended for development and tests.
type LocalExecutor struct {
	// Shell is the interpreter for Code contracts. Defaults to sh.
	Shell string
}

// NewLocalExecutor returns a subprocess-backed adapter.
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{Shell: "sh"}
}

func (e *LocalExecutor) AdapterID() string { return "local" }

// Execute runs the contract's command, or its code through the shell.
func (e *LocalExecutor) Execute(ctx context.Context, c Contract) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Sandbox.Timeout())
	defer cancel()

	var cmd *exec.Cmd
	switch {
	case len(c.Inputs.Command) > 0:
		cmd = exec.CommandContext(ctx, c.Inputs.Command[0], c.Inputs.Command[1:]...)
	case c.Inputs.Code != "":
		shell := e.Shell
		if shell == "" {
			shell = "sh"
		}
		script, err := writeScript(c.Inputs.WorkDir, c.Inputs.Code)
		if err != nil {
			return Output{}, err
		}
		defer os.Remove(script)
		cmd = exec.CommandContext(ctx, shell, script)
	default:
		return Output{}, errors.New("sandbox: contract carries neither command nor code")
	}

	if c.Inputs.WorkDir != "" {
		cmd.Dir = c.Inputs.WorkDir
	}
	for k, v := range c.Inputs.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdout := newCapWriter(StdoutCap)
	stderr := newCapWriter(StderrCap)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	err := cmd.Run()
	out := Output{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		DurationMs: time.Since(start).Milliseconds(),
		Truncated:  stdout.truncated || stderr.truncated,
	}
	if ctx.Err() == context.DeadlineExceeded {
		out.ExitCode = -1
		return out, context.DeadlineExceeded
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, err
	}
	out.Success = true
	return out, nil
}

func writeScript(dir, code string) (string, error) {
	f, err := os.CreateTemp(dir, "praetor-code-*.sh")
	if err != nil {
		return "", err
	}
	path := f.Name()
	if _, err := f.WriteString(code); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return filepath.Clean(path), nil
}
