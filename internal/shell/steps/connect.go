package steps

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/ssh"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/shell/docker"
	sshclient "github.com/artpar/clusterdeploy/internal/shell/ssh"
)

// SSHConnector reaches cluster masters over SSH with a single key.
type SSHConnector struct {
	signer         ssh.Signer
	knownHostsFile string
	port           int
	logger         *slog.Logger
}

// NewSSHConnector creates a connector. port overrides the orchestrator's
// default master SSH port when non-zero.
func NewSSHConnector(signer ssh.Signer, knownHostsFile string, port int, logger *slog.Logger) *SSHConnector {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSHConnector{
		signer:         signer,
		knownHostsFile: knownHostsFile,
		port:           port,
		logger:         logger,
	}
}

func (c *SSHConnector) client(cluster domain.Cluster) *sshclient.Client {
	port := c.port
	if port == 0 {
		port = cluster.Orchestrator.SSHPort()
	}
	cfg := sshclient.DefaultConfig(cluster.MasterFQDN, port, cluster.AdminUser)
	cfg.KnownHostsFile = c.knownHostsFile
	return sshclient.NewClient(cfg, c.signer, c.logger)
}

// Connect returns a shell on the master. The connection is opened lazily by
// the first command.
func (c *SSHConnector) Connect(_ context.Context, cluster domain.Cluster) (Runner, error) {
	return c.client(cluster), nil
}

// Inspect returns a docker inspector talking to the swarm endpoint through
// an SSH tunnel to the master.
func (c *SSHConnector) Inspect(_ context.Context, cluster domain.Cluster) (ServiceInspector, error) {
	client := c.client(cluster)
	inspector, err := docker.NewInspector(docker.SwarmHost, client, c.logger)
	if err != nil {
		client.Close()
		return nil, err
	}
	return &tunnelInspector{Inspector: inspector, tunnel: client}, nil
}

type tunnelInspector struct {
	*docker.Inspector
	tunnel *sshclient.Client
}

func (t *tunnelInspector) Close() error {
	t.Inspector.Close()
	return t.tunnel.Close()
}
