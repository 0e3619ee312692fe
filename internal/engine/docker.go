package engine

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/redis/go-redis/v9"
)

// DockerLauncherConfig configures the per-session worker containers.
type DockerLauncherConfig struct {
	WorkerImage    string
	RedisAddr      string
	Headless       bool
	StartupTimeout time.Duration
	RPCWait        time.Duration
}

// DockerLauncher starts one automation-worker container per session. The
// worker runs the browser and the vision model; we only ever talk to it
// over its Redis task queue.
type DockerLauncher struct {
	cli *client.Client
	rdb *redis.Client
	cfg DockerLauncherConfig
}

// NewDockerLauncher creates a launcher backed by the local Docker daemon.
func NewDockerLauncher(rdb *redis.Client, cfg DockerLauncherConfig) (*DockerLauncher, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	if cfg.StartupTimeout <= 0 {
		cfg.StartupTimeout = 60 * time.Second
	}
	return &DockerLauncher{cli: cli, rdb: rdb, cfg: cfg}, nil
}

// EnsureImage pulls the worker image if it is not present locally.
func (l *DockerLauncher) EnsureImage(ctx context.Context) error {
	images, err := l.cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return err
	}
	for _, img := range images {
		for _, tag := range img.RepoTags {
			if tag == l.cfg.WorkerImage {
				return nil
			}
		}
	}

	reader, err := l.cli.ImagePull(ctx, l.cfg.WorkerImage, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull worker image: %w", err)
	}
	defer reader.Close()

	_, err = io.Copy(io.Discard, reader)
	return err
}

// Launch starts a worker container for the session and waits until the
// worker reports ready over Redis.
func (l *DockerLauncher) Launch(ctx context.Context, sessionID string) (Engine, error) {
	containerConfig := &container.Config{
		Image: l.cfg.WorkerImage,
		Labels: map[string]string{
			"session-id": sessionID,
			"managed-by": "formpilot",
		},
		Env: []string{
			fmt.Sprintf("SESSION_ID=%s", sessionID),
			fmt.Sprintf("REDIS_ADDR=%s", l.cfg.RedisAddr),
			fmt.Sprintf("HEADLESS=%t", l.cfg.Headless),
			"MAX_CONCURRENT_SESSIONS=1",
		},
		ExposedPorts: nat.PortSet{},
	}

	hostConfig := &container.HostConfig{
		AutoRemove:  false,
		NetworkMode: "host",
	}

	name := fmt.Sprintf("formpilot-%s", shortID(sessionID))
	resp, err := l.cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker container: %w", err)
	}

	if err := l.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		l.remove(resp.ID)
		return nil, fmt.Errorf("failed to start worker container: %w", err)
	}

	if err := l.waitForWorkerReady(ctx, sessionID); err != nil {
		l.remove(resp.ID)
		return nil, fmt.Errorf("worker failed to become ready: %w", err)
	}

	return &containerEngine{
		Remote:      NewRemote(l.rdb, sessionID, l.cfg.RPCWait),
		launcher:    l,
		containerID: resp.ID,
	}, nil
}

// waitForWorkerReady polls the worker's readiness key until it appears.
func (l *DockerLauncher) waitForWorkerReady(ctx context.Context, sessionID string) error {
	deadline := time.Now().Add(l.cfg.StartupTimeout)
	key := ReadyKey(sessionID)

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		ok, err := l.rdb.Exists(ctx, key).Result()
		if err == nil && ok > 0 {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return fmt.Errorf("worker did not register within %s", l.cfg.StartupTimeout)
}

func (l *DockerLauncher) stop(ctx context.Context, containerID string) error {
	timeout := 10
	if err := l.cli.ContainerStop(ctx, containerID, container.StopOptions{Timeout: &timeout}); err != nil {
		return fmt.Errorf("failed to stop worker container: %w", err)
	}
	if err := l.cli.ContainerRemove(ctx, containerID, container.RemoveOptions{}); err != nil {
		return fmt.Errorf("failed to remove worker container: %w", err)
	}
	return nil
}

func (l *DockerLauncher) remove(containerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := l.stop(ctx, containerID); err != nil {
		log.Printf("warning: cleanup of container %s failed: %v", shortID(containerID), err)
	}
}

func (l *DockerLauncher) Close() error {
	return l.cli.Close()
}

// containerEngine couples the Redis transport with the lifetime of the
// worker container it talks to.
type containerEngine struct {
	*Remote
	launcher    *DockerLauncher
	containerID string
}

func (e *containerEngine) Close(ctx context.Context) error {
	// Ask the worker to release its browser first; a dead worker must not
	// keep the container alive.
	if err := e.Remote.Close(ctx); err != nil {
		log.Printf("warning: worker release failed: %v", err)
	}
	return e.launcher.stop(ctx, e.containerID)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
