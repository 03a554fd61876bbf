package database

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/davguerra/filmoteca/pkg/logger"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const postgresImage = "postgres:14.1-alpine"

var spawnLogger = logger.Get("DockerDB")

// EmbeddedPostgres represents a Postgres server which was spawned by us
// via the Docker SDK, as opposed to an externally managed database the
// user pointed us at.
type EmbeddedPostgres struct {
	cli         *client.Client
	containerID string
}

// SpawnPostgres pulls the Postgres image and creates+starts a container
// for it, binding the containers port to the host port found in the
// provided config. This lowers the barrier to running the server locally
// as no database installation is required on the host.
//
// The returned EmbeddedPostgres must be closed by the caller on shutdown.
// A crash of the container after a successful spawn is reported via the
// provided callback.
func SpawnPostgres(ctx context.Context, config DatabaseConfig, onCrash func(error)) (*EmbeddedPostgres, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to construct docker client: %w", err)
	}

	spawnLogger.Infof("Pulling image %s...\n", postgresImage)
	pull, err := cli.ImagePull(ctx, postgresImage, image.PullOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to pull image %s: %w", postgresImage, err)
	}

	// The pull is complete once the event stream is drained.
	if _, err := io.Copy(io.Discard, pull); err != nil {
		pull.Close()
		return nil, fmt.Errorf("failed to pull image %s: %w", postgresImage, err)
	}
	pull.Close()

	containerConfig := &container.Config{
		Image: postgresImage,
		Env: []string{
			fmt.Sprintf("POSTGRES_PASSWORD=%s", config.Password),
			fmt.Sprintf("POSTGRES_USER=%s", config.User),
			fmt.Sprintf("POSTGRES_DB=%s", config.Name),
		},
		ExposedPorts: nat.PortSet{"5432/tcp": struct{}{}},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			"5432/tcp": []nat.PortBinding{{
				HostIP:   config.Host,
				HostPort: config.Port,
			}},
		},
	}

	created, err := cli.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "filmoteca-db")
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres container: %w", err)
	}

	if err := cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	spawnLogger.Emit(logger.SUCCESS, "Embedded postgres container %s is UP\n", created.ID[:10])

	// Watch for container teardown; a non-zero exit while we're still
	// running is a crash.
	go func() {
		statusCh, errCh := cli.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)
		select {
		case err := <-errCh:
			if err != nil && ctx.Err() == nil {
				onCrash(fmt.Errorf("embedded postgres wait failed: %w", err))
			}
		case status := <-statusCh:
			if ctx.Err() == nil {
				onCrash(fmt.Errorf("embedded postgres exited with status %d", status.StatusCode))
			}
		}
	}()

	return &EmbeddedPostgres{cli: cli, containerID: created.ID}, nil
}

// Close stops and removes the embedded postgres container.
func (db *EmbeddedPostgres) Close(timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout*2)
	defer cancel()

	timeoutSeconds := int(timeout.Seconds())
	if err := db.cli.ContainerStop(ctx, db.containerID, container.StopOptions{Timeout: &timeoutSeconds}); err != nil {
		spawnLogger.Warnf("Failed to stop embedded postgres: %s\n", err.Error())
	}

	if err := db.cli.ContainerRemove(ctx, db.containerID, container.RemoveOptions{}); err != nil {
		spawnLogger.Warnf("Failed to remove embedded postgres: %s\n", err.Error())
	}

	spawnLogger.Emit(logger.STOP, "Embedded postgres container closed\n")
}
