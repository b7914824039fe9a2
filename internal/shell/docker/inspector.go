// Package docker inspects the containers a compose deployment started on the
// cluster master.
package docker

import (
	"context"
	"log/slog"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/samber/lo"
)

// SwarmHost is the docker endpoint of the swarm manager on the master.
const SwarmHost = "tcp://localhost:2375"

// Dialer opens connections on behalf of the docker client. The SSH client
// implements it so the swarm endpoint is reached through the master.
type Dialer interface {
	DialContext(ctx context.Context, network, addr string) (net.Conn, error)
}

// Inspector lists the containers of compose projects.
type Inspector struct {
	cli    *client.Client
	logger *slog.Logger
}

// NewInspector creates an inspector for the docker endpoint at host. When
// dialer is nil connections are opened locally.
func NewInspector(host string, dialer Dialer, logger *slog.Logger) (*Inspector, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := []client.Opt{
		client.WithHost(host),
		client.WithAPIVersionNegotiation(),
	}
	if dialer != nil {
		opts = append(opts, client.WithDialContext(dialer.DialContext))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewInspector", "", "", err.Error(), ErrConnectionFailed)
	}
	return &Inspector{
		cli:    cli,
		logger: logger.With("component", "docker", "host", host),
	}, nil
}

// Close closes the docker client connection.
func (i *Inspector) Close() error {
	return i.cli.Close()
}

// Ping checks if the docker daemon is reachable.
func (i *Inspector) Ping(ctx context.Context) error {
	if _, err := i.cli.Ping(ctx); err != nil {
		return NewDockerError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// ListProjectContainers returns every container, stopped ones included,
// that compose created for project. Containers are sorted by name.
func (i *Inspector) ListProjectContainers(ctx context.Context, project string) ([]ContainerInfo, error) {
	f := filters.NewArgs()
	f.Add("label", LabelComposeProject+"="+project)

	containers, err := i.cli.ContainerList(ctx, container.ListOptions{All: true, Filters: f})
	if err != nil {
		return nil, NewDockerError("ListProjectContainers", "project", project, err.Error(), ErrConnectionFailed)
	}

	result := lo.Map(containers, func(c container.Summary, _ int) ContainerInfo {
		return fromSummary(c)
	})
	sort.Slice(result, func(a, b int) bool { return result[a].Name < result[b].Name })

	i.logger.Debug("listed project containers", "project", project, "count", len(result))
	return result, nil
}

// RunningServices returns the sorted compose service names with at least one
// running container. It fails with ErrNoContainers when nothing is running.
func (i *Inspector) RunningServices(ctx context.Context, project string) ([]string, error) {
	containers, err := i.ListProjectContainers(ctx, project)
	if err != nil {
		return nil, err
	}
	running := lo.Filter(containers, func(c ContainerInfo, _ int) bool { return c.IsRunning() })
	if len(running) == 0 {
		return nil, NewDockerError("RunningServices", "project", project, "nothing is running", ErrNoContainers)
	}
	services := lo.Uniq(lo.Map(running, func(c ContainerInfo, _ int) string { return c.Service }))
	sort.Strings(services)
	return services, nil
}

func fromSummary(c container.Summary) ContainerInfo {
	name := ""
	if len(c.Names) > 0 {
		name = strings.TrimPrefix(c.Names[0], "/")
	}

	var ports []PortBinding
	for _, p := range c.Ports {
		ports = append(ports, PortBinding{
			ContainerPort: int(p.PrivatePort),
			HostPort:      int(p.PublicPort),
			Protocol:      p.Type,
			HostIP:        p.IP,
		})
	}

	return ContainerInfo{
		ID:        c.ID,
		Name:      name,
		Service:   c.Labels[LabelComposeService],
		Image:     c.Image,
		Status:    ContainerStatus(c.State),
		State:     c.Status,
		CreatedAt: time.Unix(c.Created, 0),
		Ports:     ports,
		Labels:    c.Labels,
	}
}
