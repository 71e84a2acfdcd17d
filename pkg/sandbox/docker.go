package sandbox

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerExecutor runs contracts in throwaway containers with enforced
// memory, CPU, and network caps.
type DockerExecutor struct {
	cli   client.APIClient
	image string
}

// NewDockerExecutor connects to the local Docker daemon. The image must
// already be present or pullable by the daemon.
func NewDockerExecutor(image string) (*DockerExecutor, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	return NewDockerExecutorWithClient(cli, image), nil
}

// NewDockerExecutorWithClient accepts an explicit API client, for tests.
func NewDockerExecutorWithClient(cli client.APIClient, image string) *DockerExecutor {
	if image == "" {
		image = "alpine:3.20"
	}
	return &DockerExecutor{cli: cli, image: image}
}

func (e *DockerExecutor) AdapterID() string { return "docker" }

// Execute creates a container for the contract, waits for it under the
// contract's timeout, captures capped output, and removes the container.
func (e *DockerExecutor) Execute(ctx context.Context, c Contract) (Output, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Sandbox.Timeout())
	defer cancel()

	cmd := c.Inputs.Command
	if len(cmd) == 0 {
		if c.Inputs.Code == "" {
			return Output{}, fmt.Errorf("sandbox: contract carries neither command nor code")
		}
		cmd = []string{"sh", "-c", c.Inputs.Code}
	}

	env := make([]string, 0, len(c.Inputs.Env))
	for k, v := range c.Inputs.Env {
		env = append(env, k+"="+v)
	}

	hostCfg := &container.HostConfig{
		AutoRemove: false,
		Resources: container.Resources{
			Memory:   c.Sandbox.MemoryBytes,
			CPUQuota: c.Sandbox.CPUQuota,
		},
	}
	if c.Sandbox.NetworkOff {
		hostCfg.NetworkMode = "none"
	}

	created, err := e.cli.ContainerCreate(ctx, &container.Config{
		Image:      e.image,
		Cmd:        cmd,
		Env:        env,
		WorkingDir: c.Inputs.WorkDir,
	}, hostCfg, nil, nil, "")
	if err != nil {
		return Output{}, fmt.Errorf("container create: %w", err)
	}
	id := created.ID
	defer func() {
		// Removal uses a fresh context so cleanup survives the deadline.
		rmCtx, rmCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer rmCancel()
		e.cli.ContainerRemove(rmCtx, id, container.RemoveOptions{Force: true}) //nolint:errcheck
	}()

	start := time.Now()
	if err := e.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return Output{}, fmt.Errorf("container start: %w", err)
	}

	waitCh, errCh := e.cli.ContainerWait(ctx, id, container.WaitConditionNotRunning)
	var exitCode int
	select {
	case res := <-waitCh:
		exitCode = int(res.StatusCode)
	case err := <-errCh:
		if ctx.Err() == context.DeadlineExceeded {
			return Output{
				ExitCode:   -1,
				DurationMs: time.Since(start).Milliseconds(),
			}, context.DeadlineExceeded
		}
		return Output{}, fmt.Errorf("container wait: %w", err)
	}

	out := Output{
		ExitCode:   exitCode,
		Success:    exitCode == 0,
		DurationMs: time.Since(start).Milliseconds(),
	}

	logs, err := e.cli.ContainerLogs(ctx, id, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return out, fmt.Errorf("container logs: %w", err)
	}
	defer logs.Close()

	stdout := newCapWriter(StdoutCap)
	stderr := newCapWriter(StderrCap)
	if _, err := stdcopy.StdCopy(stdout, stderr, logs); err != nil {
		return out, fmt.Errorf("demux logs: %w", err)
	}
	out.Stdout = stdout.String()
	out.Stderr = stderr.String()
	out.Truncated = stdout.truncated || stderr.truncated
	return out, nil
}
