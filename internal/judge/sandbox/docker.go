package sandbox

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/google/shlex"
	"go.uber.org/zap"

	appErr "arbiter/pkg/errors"
	"arbiter/pkg/logger"
)

const (
	containerDataDir   = "/etc/data"
	containerCodeDir   = "/etc/data/code"
	containerScriptDir = "/etc/data/plscript"
	containerInputDir  = "/etc/data/inputs"
	containerLogDir    = "/etc/data/logs"
)

// DockerConfig holds settings for the Docker-backed executor.
type DockerConfig struct {
	// Image is the default judge image; a language may override it.
	Image string `yaml:"image"`

	// ScriptsDir holds one sub-directory per language with its compile/run
	// scripts, mounted read-only into the container.
	ScriptsDir string `yaml:"scriptsDir"`

	// MemoryHeadroomMB is added on top of the problem space limit for the
	// container memory cap, so the sandbox scripts themselves have room.
	MemoryHeadroomMB int64 `yaml:"memoryHeadroomMB"`

	// MaxWallTime bounds one whole execution (compile plus all testcases)
	// as a safety net over the in-container per-test limits.
	MaxWallTime time.Duration `yaml:"maxWallTime"`
}

// DockerExecutor runs submissions in one-shot judge containers.
type DockerExecutor struct {
	docker *client.Client
	cfg    DockerConfig
}

// NewDockerExecutor creates an executor talking to the local Docker daemon.
func NewDockerExecutor(cfg DockerConfig) (*DockerExecutor, error) {
	if cfg.Image == "" {
		return nil, fmt.Errorf("judge image is required")
	}
	if cfg.MemoryHeadroomMB <= 0 {
		cfg.MemoryHeadroomMB = 10
	}
	if cfg.MaxWallTime <= 0 {
		cfg.MaxWallTime = 5 * time.Minute
	}
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("init docker client failed: %w", err)
	}
	return &DockerExecutor{docker: cli, cfg: cfg}, nil
}

// Run executes one submission in a fresh container and waits for it to exit.
// A non-zero container exit code is not an error here: the scripts report
// submission failures through the artifact files.
func (e *DockerExecutor) Run(ctx context.Context, req ExecRequest) error {
	if req.CodePath == "" || req.InputsDir == "" || req.LogDir == "" {
		return appErr.New(appErr.InvalidParams).WithMessage("code path, inputs dir and log dir are required")
	}
	if err := os.MkdirAll(req.LogDir, 0755); err != nil {
		return appErr.Wrapf(err, appErr.SandboxUnavailable, "create log dir failed")
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.MaxWallTime)
	defer cancel()

	codeTarget := filepath.Join(containerCodeDir, filepath.Base(req.CodePath))
	mounts := []mount.Mount{
		{Type: mount.TypeBind, Source: req.CodePath, Target: codeTarget, ReadOnly: true},
		{Type: mount.TypeBind, Source: req.InputsDir, Target: containerInputDir, ReadOnly: true},
		{Type: mount.TypeBind, Source: req.LogDir, Target: containerLogDir},
	}
	scriptsDir := e.scriptsDirFor(req.Language.Name)
	if scriptsDir != "" {
		mounts = append(mounts, mount.Mount{
			Type: mount.TypeBind, Source: scriptsDir, Target: containerScriptDir, ReadOnly: true,
		})
	}

	cmd, err := buildCommand(req.Language.Command, codeTarget)
	if err != nil {
		return err
	}

	image := req.Language.Image
	if image == "" {
		image = e.cfg.Image
	}

	containerCfg := &container.Config{
		Image: image,
		Cmd:   cmd,
		Env: []string{
			"CODE_PATH=" + codeTarget,
			"PL_SCRIPT_DIR=" + containerScriptDir,
			"TESTCASE_DIR=" + containerInputDir,
			"LOG_DIR=" + containerLogDir,
			"TIME_LIMIT=" + strconv.FormatFloat(req.TimeLimit, 'f', -1, 64),
			"SPACE_LIMIT=" + strconv.Itoa(req.SpaceLimit),
		},
		WorkingDir:      containerDataDir,
		NetworkDisabled: true,
	}
	hostCfg := &container.HostConfig{
		Mounts:      mounts,
		NetworkMode: "none",
		Resources: container.Resources{
			Memory:           (int64(req.SpaceLimit) + e.cfg.MemoryHeadroomMB) * 1024 * 1024,
			MemorySwappiness: int64Ptr(0),
			CPUQuota:         100000,
		},
	}

	resp, err := e.docker.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return appErr.Wrapf(err, appErr.SandboxUnavailable, "container create failed")
	}
	containerID := resp.ID
	defer func() {
		removeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.docker.ContainerRemove(removeCtx, containerID, container.RemoveOptions{Force: true}); err != nil {
			logger.Warn(removeCtx, "remove judge container failed",
				zap.String("container_id", containerID), zap.Error(err))
		}
	}()

	if err := e.docker.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		return appErr.Wrapf(err, appErr.SandboxUnavailable, "container start failed")
	}

	statusCh, errCh := e.docker.ContainerWait(ctx, containerID, container.WaitConditionNextExit)
	select {
	case err := <-errCh:
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			e.kill(containerID)
			return appErr.Wrapf(err, appErr.SandboxUnavailable, "execution exceeded the wall time bound")
		}
		return appErr.Wrapf(err, appErr.SandboxUnavailable, "container wait failed")
	case <-statusCh:
		// Exit code intentionally ignored; the artifacts carry the outcome.
	case <-ctx.Done():
		e.kill(containerID)
		return appErr.Wrap(ctx.Err(), appErr.SandboxUnavailable)
	}
	return nil
}

func (e *DockerExecutor) scriptsDirFor(language string) string {
	if e.cfg.ScriptsDir == "" || language == "" {
		return ""
	}
	return filepath.Join(e.cfg.ScriptsDir, language)
}

func (e *DockerExecutor) kill(containerID string) {
	killCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.docker.ContainerKill(killCtx, containerID, "KILL"); err != nil {
		logger.Warn(killCtx, "kill judge container failed",
			zap.String("container_id", containerID), zap.Error(err))
	}
}

// buildCommand expands the language command template and splits it
// shell-style. An empty template defers to the image entrypoint.
func buildCommand(tpl, codeTarget string) ([]string, error) {
	if tpl == "" {
		return nil, nil
	}
	expanded := tpl
	expanded = strings.ReplaceAll(expanded, "{code}", codeTarget)
	expanded = strings.ReplaceAll(expanded, "{inputs}", containerInputDir)
	expanded = strings.ReplaceAll(expanded, "{logs}", containerLogDir)
	fields, err := shlex.Split(expanded)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.InvalidParams, "parse command template failed")
	}
	if len(fields) == 0 {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("command is empty after expansion")
	}
	return fields, nil
}

func int64Ptr(v int64) *int64 { return &v }
