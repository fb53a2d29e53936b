package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	logrus "github.com/sirupsen/logrus"
)

// TaskLabel marks containers owned by this service so the operator CLI
// can find and reap them.
const TaskLabel = "codesession.sandbox"

const codeCellPath = "/tmp/cell.py"

// DockerProvider runs sandboxes as local Docker containers. Used when
// no remote sandbox API key is configured.
type DockerProvider struct {
	dockerClient *client.Client
	image        string
	logger       *logrus.Logger
}

// NewDockerProvider creates a provider backed by the local Docker
// daemon. image must contain python3 with the plotting stack installed.
func NewDockerProvider(image string) (*DockerProvider, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %v", err)
	}

	logger := logrus.New()
	if err := os.MkdirAll("logs", 0755); err == nil {
		logFile, err := os.OpenFile("logs/sandbox.log", os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
		if err == nil {
			logger.SetOutput(logFile)
		}
	}

	return &DockerProvider{
		dockerClient: dockerClient,
		image:        image,
		logger:       logger,
	}, nil
}

// Create starts a fresh sandbox container. The container's command is a
// plain sleep, so the sandbox expires on its own after timeoutSeconds.
func (p *DockerProvider) Create(ctx context.Context, timeoutSeconds int) (Handle, error) {
	config := &container.Config{
		Image:  p.image,
		Cmd:    []string{"sleep", strconv.Itoa(timeoutSeconds)},
		Labels: map[string]string{TaskLabel: "1"},
	}
	hostConfig := &container.HostConfig{
		Resources: container.Resources{
			Memory:   500 * 1024 * 1024, // 500MB
			NanoCPUs: 1000000000,        // 1 CPU
		},
		NetworkMode: "none",
	}

	resp, err := p.dockerClient.ContainerCreate(ctx, config, hostConfig, nil, nil, "")
	if err != nil {
		p.logger.Errorf("failed to create container: %v", err)
		return nil, fmt.Errorf("failed to create container: %v", err)
	}

	if err := p.dockerClient.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.dockerClient.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		p.logger.Errorf("failed to start container %s: %v", shortID(resp.ID), err)
		return nil, fmt.Errorf("failed to start container: %v", err)
	}

	p.logger.Printf("Started sandbox container: %s", shortID(resp.ID))
	return &dockerHandle{
		dockerClient: p.dockerClient,
		containerID:  resp.ID,
		logger:       p.logger,
	}, nil
}

type dockerHandle struct {
	dockerClient *client.Client
	containerID  string
	logger       *logrus.Logger
}

// RunCode copies the code into the container and runs it with python3.
// A non-zero exit is carried as an ExecutionError, not a Go error.
func (h *dockerHandle) RunCode(ctx context.Context, code string) (*Execution, error) {
	if err := h.WriteFile(ctx, codeCellPath, []byte(code)); err != nil {
		return nil, fmt.Errorf("failed to stage code file: %v", err)
	}

	stdout, stderr, exitCode, err := h.exec(ctx, []string{"python3", codeCellPath})
	if err != nil {
		return nil, err
	}

	execution := &Execution{
		Stdout: splitLines(stdout),
		Stderr: splitLines(stderr),
	}
	if exitCode != 0 {
		execution.Error = &ExecutionError{
			Name:      "ExecutionError",
			Value:     lastLine(stderr),
			Traceback: stderr,
		}
	}
	return execution, nil
}

func (h *dockerHandle) WriteFile(ctx context.Context, filePath string, data []byte) error {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	hdr := &tar.Header{
		Name: strings.TrimPrefix(filePath, "/"),
		Mode: 0644,
		Size: int64(len(data)),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write tar header: %v", err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write tar body: %v", err)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize tar: %v", err)
	}

	if err := h.dockerClient.CopyToContainer(ctx, h.containerID, "/", &buf, container.CopyToContainerOptions{}); err != nil {
		h.logger.Errorf("failed to copy %s into %s: %v", filePath, shortID(h.containerID), err)
		return fmt.Errorf("failed to copy file into container: %v", err)
	}
	return nil
}

func (h *dockerHandle) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	reader, _, err := h.dockerClient.CopyFromContainer(ctx, h.containerID, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to copy file from container: %v", err)
	}
	defer reader.Close()

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read tar stream: %v", err)
		}
		if hdr.Typeflag == tar.TypeReg {
			return io.ReadAll(tr)
		}
	}
	return nil, fmt.Errorf("no regular file in archive for %s", filePath)
}

// ListFiles lists the plain files directly under dir. The trailing
// slash from ls -1p marks directories, which are skipped.
func (h *dockerHandle) ListFiles(ctx context.Context, dir string) ([]FileInfo, error) {
	stdout, stderr, exitCode, err := h.exec(ctx, []string{"ls", "-1p", dir})
	if err != nil {
		return nil, err
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("ls failed: %s", lastLine(stderr))
	}

	var files []FileInfo
	for _, name := range splitLines(stdout) {
		if name == "" || strings.HasSuffix(name, "/") {
			continue
		}
		files = append(files, FileInfo{Name: name, Path: path.Join(dir, name)})
	}
	return files, nil
}

func (h *dockerHandle) IsRunning(ctx context.Context) bool {
	inspect, err := h.dockerClient.ContainerInspect(ctx, h.containerID)
	if err != nil {
		return false
	}
	return inspect.State != nil && inspect.State.Running
}

func (h *dockerHandle) Kill(ctx context.Context) error {
	if err := h.dockerClient.ContainerRemove(ctx, h.containerID, container.RemoveOptions{Force: true}); err != nil {
		h.logger.Errorf("failed to remove container %s: %v", shortID(h.containerID), err)
		return fmt.Errorf("failed to remove container: %v", err)
	}
	h.logger.Printf("Removed sandbox container: %s", shortID(h.containerID))
	return nil
}

// exec runs a command in the container and demuxes stdout/stderr.
func (h *dockerHandle) exec(ctx context.Context, cmd []string) (stdout, stderr string, exitCode int, err error) {
	execResp, err := h.dockerClient.ContainerExecCreate(ctx, h.containerID, container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to create exec: %v", err)
	}

	attach, err := h.dockerClient.ContainerExecAttach(ctx, execResp.ID, container.ExecAttachOptions{})
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to attach exec: %v", err)
	}
	defer attach.Close()

	var outBuf, errBuf bytes.Buffer
	if _, err := stdcopy.StdCopy(&outBuf, &errBuf, attach.Reader); err != nil {
		return "", "", 0, fmt.Errorf("failed to read exec output: %v", err)
	}

	inspect, err := h.dockerClient.ContainerExecInspect(ctx, execResp.ID)
	if err != nil {
		return "", "", 0, fmt.Errorf("failed to inspect exec: %v", err)
	}

	return outBuf.String(), errBuf.String(), inspect.ExitCode, nil
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func lastLine(s string) string {
	lines := splitLines(s)
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return "execution failed"
}

// shortID returns a shortened container ID for logging.
func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
