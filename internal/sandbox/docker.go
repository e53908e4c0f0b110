package sandbox

import (
	"archive/tar"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"path"
	"strconv"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	dockerclient "github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/docker/go-units"

	"github.com/natemcgrady/web-based-ide/internal/apperr"
)

const labelManagedBy = "web-based-ide"

// DockerConfig configures the Docker-backed provider.
type DockerConfig struct {
	Host    string // docker daemon address; empty uses the environment
	Image   string // sandbox container image
	Workdir string // working directory created inside every sandbox
}

// DockerProvider runs each sandbox as a long-lived container and executes
// terminal commands with docker exec. Preview ports are published on
// ephemeral host ports.
type DockerProvider struct {
	client *dockerclient.Client
	cfg    DockerConfig
}

func NewDockerProvider(ctx context.Context, cfg DockerConfig) (*DockerProvider, error) {
	opts := []dockerclient.Opt{dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, dockerclient.WithHost(cfg.Host))
	}

	client, err := dockerclient.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("docker client: %w", err)
	}
	if _, err := client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("docker ping: %w", err)
	}
	log.Println("Docker daemon connected")
	return &DockerProvider{client: client, cfg: cfg}, nil
}

func (p *DockerProvider) ensureImage(ctx context.Context, img string) error {
	_, _, err := p.client.ImageInspectWithRaw(ctx, img)
	if err == nil {
		return nil
	}
	log.Printf("Image %s not found locally, pulling...", img)
	reader, err := p.client.ImagePull(ctx, img, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("pull image %s: %w", img, err)
	}
	defer reader.Close()
	io.Copy(io.Discard, reader)
	return nil
}

func (p *DockerProvider) Create(ctx context.Context, opts CreateOptions) (Handle, error) {
	if err := p.ensureImage(ctx, p.cfg.Image); err != nil {
		return nil, err
	}

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, port := range opts.Ports {
		cp := nat.Port(fmt.Sprintf("%d/tcp", port))
		exposed[cp] = struct{}{}
		// HostPort 0 lets the daemon pick an ephemeral port.
		bindings[cp] = []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "0"}}
	}

	shmSize, _ := units.RAMInBytes("512m")

	containerCfg := &container.Config{
		Image:        p.cfg.Image,
		Cmd:          []string{"sleep", "infinity"},
		WorkingDir:   p.cfg.Workdir,
		ExposedPorts: exposed,
		Labels:       map[string]string{"managed-by": labelManagedBy},
	}
	hostCfg := &container.HostConfig{
		PortBindings: bindings,
		ShmSize:      shmSize,
		AutoRemove:   false,
	}

	resp, err := p.client.ContainerCreate(ctx, containerCfg, hostCfg, nil, nil, "")
	if err != nil {
		return nil, fmt.Errorf("create container: %w", err)
	}
	if err := p.client.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		p.client.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("start container: %w", err)
	}

	handle := &dockerHandle{provider: p, id: resp.ID}
	if err := handle.prepareWorkdir(ctx); err != nil {
		handle.Stop(ctx, true)
		return nil, err
	}

	if opts.Timeout > 0 {
		go p.stopAfter(resp.ID, opts.Timeout)
	}
	return handle, nil
}

// stopAfter enforces the provider-side hard lifetime, mirroring a hosted
// provider's createSandbox timeout. The lifecycle manager usually terminates
// sessions first; this is the backstop when the control plane dies.
func (p *DockerProvider) stopAfter(id string, timeout time.Duration) {
	time.Sleep(timeout)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	stopTimeout := 10
	p.client.ContainerStop(ctx, id, container.StopOptions{Timeout: &stopTimeout})
	p.client.ContainerRemove(ctx, id, container.RemoveOptions{Force: true})
}

func (p *DockerProvider) Get(ctx context.Context, sandboxID string) (Handle, error) {
	_, err := p.client.ContainerInspect(ctx, sandboxID)
	if err != nil {
		if dockerclient.IsErrNotFound(err) {
			return nil, apperr.New(apperr.NotFound, "sandbox not found")
		}
		return nil, fmt.Errorf("inspect container: %w", err)
	}
	return &dockerHandle{provider: p, id: sandboxID}, nil
}

type dockerHandle struct {
	provider *DockerProvider
	id       string
}

func (h *dockerHandle) ID() string { return h.id }

func (h *dockerHandle) prepareWorkdir(ctx context.Context) error {
	res, err := h.Run(ctx, RunOptions{Cmd: "mkdir", Args: []string{"-p", h.provider.cfg.Workdir}})
	if err != nil {
		return fmt.Errorf("prepare workdir: %w", err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("prepare workdir: exit code %d", res.ExitCode)
	}
	return nil
}

func (h *dockerHandle) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	cmd := append([]string{opts.Cmd}, opts.Args...)
	execCfg := container.ExecOptions{
		Cmd:          cmd,
		AttachStdout: true,
		AttachStderr: true,
	}
	if opts.Cwd != "" {
		execCfg.WorkingDir = opts.Cwd
	}

	execID, err := h.provider.client.ContainerExecCreate(ctx, h.id, execCfg)
	if err != nil {
		if dockerclient.IsErrNotFound(err) {
			return nil, apperr.New(apperr.NotFound, "sandbox not found")
		}
		return nil, fmt.Errorf("exec create: %w", err)
	}

	resp, err := h.provider.client.ContainerExecAttach(ctx, execID.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("exec attach: %w", err)
	}

	if opts.Detached {
		// Drain output into the sinks in the background; the process keeps
		// running inside the container after this call returns.
		go func() {
			defer resp.Close()
			stdout := opts.Stdout
			stderr := opts.Stderr
			if stdout == nil {
				stdout = io.Discard
			}
			if stderr == nil {
				stderr = io.Discard
			}
			stdcopy.StdCopy(stdout, stderr, resp.Reader)
		}()
		return &RunResult{CommandID: execID.ID}, nil
	}

	defer resp.Close()

	var stdoutBuf, stderrBuf bytes.Buffer
	var stdout io.Writer = &stdoutBuf
	var stderr io.Writer = &stderrBuf
	if opts.Stdout != nil {
		stdout = io.MultiWriter(&stdoutBuf, opts.Stdout)
	}
	if opts.Stderr != nil {
		stderr = io.MultiWriter(&stderrBuf, opts.Stderr)
	}
	if _, err := stdcopy.StdCopy(stdout, stderr, resp.Reader); err != nil {
		return nil, fmt.Errorf("read exec output: %w", err)
	}

	inspect, err := h.provider.client.ContainerExecInspect(ctx, execID.ID)
	if err != nil {
		return nil, fmt.Errorf("exec inspect: %w", err)
	}

	return &RunResult{
		CommandID: execID.ID,
		ExitCode:  inspect.ExitCode,
		Stdout:    stdoutBuf.String(),
		Stderr:    stderrBuf.String(),
	}, nil
}

func (h *dockerHandle) Command(ctx context.Context, commandID string) (*CommandStatus, error) {
	inspect, err := h.provider.client.ContainerExecInspect(ctx, commandID)
	if err != nil {
		if dockerclient.IsErrNotFound(err) {
			return nil, apperr.New(apperr.NotFound, "command not found")
		}
		return nil, fmt.Errorf("exec inspect: %w", err)
	}
	return &CommandStatus{
		CommandID: commandID,
		Running:   inspect.Running,
		ExitCode:  inspect.ExitCode,
	}, nil
}

func (h *dockerHandle) WriteFiles(ctx context.Context, files []FileEntry) error {
	if len(files) == 0 {
		return nil
	}

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, f := range files {
		hdr := &tar.Header{
			Name: f.Path,
			Mode: 0644,
			Size: int64(len(f.Content)),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("tar header %s: %w", f.Path, err)
		}
		if _, err := tw.Write(f.Content); err != nil {
			return fmt.Errorf("tar write %s: %w", f.Path, err)
		}
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("tar close: %w", err)
	}

	err := h.provider.client.CopyToContainer(ctx, h.id, h.provider.cfg.Workdir, &buf, container.CopyToContainerOptions{})
	if err != nil {
		return fmt.Errorf("copy to container: %w", err)
	}
	return nil
}

func (h *dockerHandle) ReadFile(ctx context.Context, filePath string) ([]byte, error) {
	full := path.Join(h.provider.cfg.Workdir, filePath)
	reader, _, err := h.provider.client.CopyFromContainer(ctx, h.id, full)
	if err != nil {
		if dockerclient.IsErrNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("copy from container: %w", err)
	}
	defer reader.Close()

	tr := tar.NewReader(reader)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read tar: %w", err)
		}
		if hdr.Typeflag == tar.TypeReg {
			return io.ReadAll(tr)
		}
	}
}

func (h *dockerHandle) Stop(ctx context.Context, blocking bool) error {
	stop := func(ctx context.Context) error {
		timeout := 10
		err := h.provider.client.ContainerStop(ctx, h.id, container.StopOptions{Timeout: &timeout})
		if err != nil && !dockerclient.IsErrNotFound(err) {
			return fmt.Errorf("stop container: %w", err)
		}
		err = h.provider.client.ContainerRemove(ctx, h.id, container.RemoveOptions{Force: true})
		if err != nil && !dockerclient.IsErrNotFound(err) {
			return fmt.Errorf("remove container: %w", err)
		}
		return nil
	}

	if !blocking {
		go func() {
			bg, cancel := context.WithTimeout(context.Background(), time.Minute)
			defer cancel()
			if err := stop(bg); err != nil {
				log.Printf("Background sandbox stop %s: %v", h.id, err)
			}
		}()
		return nil
	}
	return stop(ctx)
}

func (h *dockerHandle) PreviewURL(ctx context.Context, port int) (string, error) {
	inspect, err := h.provider.client.ContainerInspect(ctx, h.id)
	if err != nil {
		if dockerclient.IsErrNotFound(err) {
			return "", apperr.New(apperr.NotFound, "sandbox not found")
		}
		return "", fmt.Errorf("inspect container: %w", err)
	}

	cp := nat.Port(fmt.Sprintf("%d/tcp", port))
	bindings := inspect.NetworkSettings.Ports[cp]
	for _, b := range bindings {
		if b.HostPort != "" {
			hostPort, err := strconv.Atoi(b.HostPort)
			if err != nil {
				continue
			}
			return fmt.Sprintf("http://localhost:%d", hostPort), nil
		}
	}
	return "", fmt.Errorf("port %d is not published", port)
}

var _ Provider = (*DockerProvider)(nil)
var _ Handle = (*dockerHandle)(nil)
