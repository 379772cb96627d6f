// Package sandbox runs untrusted plotting code inside a throwaway
// Docker container.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"

	"github.com/skaldhq/skald/internal/core/ports"
)

const (
	containerWorkDir = "/work"
	scriptName       = "render.py"
)

// Runner executes Python code in an isolated container: no network, a
// read-only rootfs, and a single bind-mounted working directory. The code
// deposits any artifact (output.png) into that directory.
type Runner struct {
	cli   *client.Client
	image string
}

var _ ports.CodeSandbox = (*Runner)(nil)

func NewRunner(sandboxImage string) (*Runner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Runner{cli: cli, image: sandboxImage}, nil
}

// Run writes code into workDir, executes it with the sandbox image's Python
// interpreter, and returns the combined stdout/stderr. The container is
// force-removed on every path; workDir ownership stays with the caller.
func (r *Runner) Run(ctx context.Context, code string, workDir string) (string, error) {
	scriptPath := filepath.Join(workDir, scriptName)
	if err := os.WriteFile(scriptPath, []byte(code), 0644); err != nil {
		return "", fmt.Errorf("failed to write script: %w", err)
	}

	cfg := &container.Config{
		Image:      r.image,
		Cmd:        []string{"python", containerWorkDir + "/" + scriptName},
		WorkingDir: containerWorkDir,
		Tty:        false,
		Labels: map[string]string{
			"skald.managed": "true",
		},
	}

	hostCfg := &container.HostConfig{
		NetworkMode: "none",
		Mounts: []mount.Mount{
			{
				Type:   mount.TypeBind,
				Source: workDir,
				Target: containerWorkDir,
			},
		},
		ReadonlyRootfs: true,
		Tmpfs: map[string]string{
			"/tmp": "rw,noexec,nosuid,size=64m",
		},
	}

	name := "skald-render-" + uuid.New().String()[:8]
	resp, err := r.cli.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	if client.IsErrNotFound(err) {
		reader, pullErr := r.cli.ImagePull(ctx, r.image, image.PullOptions{})
		if pullErr != nil {
			return "", fmt.Errorf("failed to pull image %s: %w", r.image, pullErr)
		}
		io.Copy(io.Discard, reader)
		reader.Close()
		resp, err = r.cli.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, name)
	}
	if err != nil {
		return "", fmt.Errorf("failed to create sandbox container: %w", err)
	}

	defer func() {
		_ = r.cli.ContainerRemove(context.Background(), resp.ID, container.RemoveOptions{Force: true})
	}()

	if err := r.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("failed to start sandbox container: %w", err)
	}

	waitCh, errCh := r.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	var exitCode int64
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-errCh:
		return "", fmt.Errorf("failed to wait for sandbox: %w", err)
	case status := <-waitCh:
		exitCode = status.StatusCode
	}

	output, err := r.collectLogs(ctx, resp.ID)
	if err != nil {
		return "", err
	}

	if exitCode != 0 {
		return output, fmt.Errorf("sandbox exited with code %d", exitCode)
	}
	return output, nil
}

func (r *Runner) collectLogs(ctx context.Context, containerID string) (string, error) {
	logs, err := r.cli.ContainerLogs(ctx, containerID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to read sandbox logs: %w", err)
	}
	defer logs.Close()

	var buf bytes.Buffer
	if _, err := stdcopy.StdCopy(&buf, &buf, logs); err != nil {
		return "", fmt.Errorf("failed to demux sandbox logs: %w", err)
	}
	return buf.String(), nil
}
