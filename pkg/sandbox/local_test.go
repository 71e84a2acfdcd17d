package sandbox

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalExecutorCommand(t *testing.T) {
	e := NewLocalExecutor()

	out, err := e.Execute(context.Background(), Contract{
		ToolID: "echo-check",
		Inputs: Inputs{Command: []string{"echo", "hello"}},
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Zero(t, out.ExitCode)
	assert.Equal(t, "hello\n", out.Stdout)
	assert.False(t, out.Truncated)
}

func TestLocalExecutorCode(t *testing.T) {
	e := NewLocalExecutor()

	out, err := e.Execute(context.Background(), Contract{
		ToolID: "script",
		Inputs: Inputs{Code: "echo from-script\nexit 0\n", WorkDir: t.TempDir()},
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.Contains(t, out.Stdout, "from-script")
}

func TestLocalExecutorNonZeroExit(t *testing.T) {
	e := NewLocalExecutor()

	out, err := e.Execute(context.Background(), Contract{
		ToolID: "fail",
		Inputs: Inputs{Command: []string{"sh", "-c", "echo oops >&2; exit 2"}},
	})
	require.NoError(t, err)
	assert.False(t, out.Success)
	assert.Equal(t, 2, out.ExitCode)
	assert.Contains(t, out.Stderr, "oops")
}

func TestLocalExecutorTimeout(t *testing.T) {
	e := NewLocalExecutor()

	_, err := e.Execute(context.Background(), Contract{
		ToolID:  "sleepy",
		Inputs:  Inputs{Command: []string{"sleep", "5"}},
		Sandbox: Limits{TimeoutMs: 50},
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocalExecutorStdoutTruncation(t *testing.T) {
	e := NewLocalExecutor()

	// Emit just over the 1 MiB stdout cap.
	out, err := e.Execute(context.Background(), Contract{
		ToolID: "noisy",
		Inputs: Inputs{Command: []string{"sh", "-c", "head -c 1100000 /dev/zero | tr '\\0' 'x'"}},
	})
	require.NoError(t, err)
	assert.True(t, out.Truncated)
	assert.Len(t, out.Stdout, StdoutCap)
}

func TestLocalExecutorEmptyContract(t *testing.T) {
	e := NewLocalExecutor()

	_, err := e.Execute(context.Background(), Contract{ToolID: "empty"})
	assert.ErrorContains(t, err, "neither command nor code")
}

func TestRegistryResolvesDefaultAndNamed(t *testing.T) {
	r := NewRegistry()
	local := NewLocalExecutor()
	r.Register(local)

	e, err := r.Resolve("")
	require.NoError(t, err)
	assert.Equal(t, "local", e.AdapterID())

	e, err = r.Resolve("local")
	require.NoError(t, err)
	assert.Equal(t, "local", e.AdapterID())

	_, err = r.Resolve("docker")
	assert.ErrorIs(t, err, ErrAdapterNotFound)
}

func TestRegistryExecute(t *testing.T) {
	r := NewRegistry()
	r.Register(NewLocalExecutor())

	out, err := r.Execute(context.Background(), Contract{
		ToolID: "via-registry",
		Inputs: Inputs{Command: []string{"echo", "routed"}},
	})
	require.NoError(t, err)
	assert.True(t, out.Success)
	assert.True(t, strings.HasPrefix(out.Stdout, "routed"))
}

func TestCapWriterBoundary(t *testing.T) {
	w := newCapWriter(4)
	n, err := w.Write([]byte("abcd"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.False(t, w.truncated)

	n, err = w.Write([]byte("e"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, w.truncated)
	assert.Equal(t, "abcd", w.String())
}

func TestLimitsTimeout(t *testing.T) {
	assert.Equal(t, DefaultTimeout, Limits{}.Timeout())
	assert.Equal(t, 250*time.Millisecond, Limits{TimeoutMs: 250}.Timeout())
}
