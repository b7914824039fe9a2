package docker

import "time"

// =============================================================================
// Container Info
// =============================================================================

// ContainerStatus represents the container status.
type ContainerStatus string

const (
	ContainerStatusCreated    ContainerStatus = "created"
	ContainerStatusRunning    ContainerStatus = "running"
	ContainerStatusPaused     ContainerStatus = "paused"
	ContainerStatusRestarting ContainerStatus = "restarting"
	ContainerStatusRemoving   ContainerStatus = "removing"
	ContainerStatusExited     ContainerStatus = "exited"
	ContainerStatusDead       ContainerStatus = "dead"
)

// PortBinding is a published container port.
type PortBinding struct {
	ContainerPort int
	HostPort      int    // 0 when not published
	Protocol      string // "tcp" or "udp"
	HostIP        string
}

// ContainerInfo contains information about a container of a compose project.
type ContainerInfo struct {
	ID        string
	Name      string
	Service   string
	Image     string
	Status    ContainerStatus
	State     string // human readable, e.g. "Up 2 minutes"
	CreatedAt time.Time
	Ports     []PortBinding
	Labels    map[string]string
}

// IsRunning reports whether the container is up.
func (c ContainerInfo) IsRunning() bool {
	return c.Status == ContainerStatusRunning
}

// =============================================================================
// Label Constants
// =============================================================================

// Labels docker-compose puts on the containers it creates.
const (
	LabelComposeProject = "com.docker.compose.project"
	LabelComposeService = "com.docker.compose.service"
)
