// Package steps implements the deployment pipeline steps and assembles them
// into the reference pipeline for each orchestrator.
//
// Steps never reach for global state: the capabilities they need (cluster
// directory, master shell, container inspection, network exposure) are
// injected when the pipeline is built, and the values they exchange travel
// through typed keys in the run context.
package steps

import (
	"context"
	"time"

	"github.com/artpar/clusterdeploy/internal/core/deployment"
	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/exposure"
	"github.com/artpar/clusterdeploy/internal/core/portspec"
	"github.com/artpar/clusterdeploy/internal/engine"
	"github.com/artpar/clusterdeploy/internal/shell/network"
)

// =============================================================================
// Capabilities
// =============================================================================

// ClusterDirectory resolves a container service cluster.
type ClusterDirectory interface {
	Lookup(ctx context.Context, resourceGroup, name string) (domain.Cluster, error)
}

// Runner executes commands on the cluster master.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
	Upload(ctx context.Context, remotePath string, content []byte) error
	Close() error
}

// ServiceInspector reports the compose services running on the master.
type ServiceInspector interface {
	RunningServices(ctx context.Context, project string) ([]string, error)
	Close() error
}

// Connector opens sessions to the master of a cluster.
type Connector interface {
	Connect(ctx context.Context, cluster domain.Cluster) (Runner, error)
	Inspect(ctx context.Context, cluster domain.Cluster) (ServiceInspector, error)
}

// Exposer opens service ports on the agent pool of a cluster.
type Exposer interface {
	Reconcile(ctx context.Context, target network.Target, ports []domain.ServicePort) (*exposure.Plan, error)
}

// Clock returns the current time.
type Clock func() time.Time

// =============================================================================
// Keys
// =============================================================================

// Run context keys. The host seeds BuildResultKey and FilesKey; the
// remaining keys are written by the steps.
var (
	BuildResultKey = engine.NewKey[deployment.BuildResult]("build_result")
	FilesKey       = engine.NewKey[[]portspec.Source]("deployment_files")
	ClusterKey     = engine.NewKey[domain.Cluster]("cluster")
	ProjectKey     = engine.NewKey[string]("compose_project")
	ServicesKey    = engine.NewKey[[]string]("running_services")
	PortsKey       = engine.NewKey[[]domain.ServicePort]("service_ports")
	PlanKey        = engine.NewKey[*exposure.Plan]("exposure_plan")
	SecretKey      = engine.NewKey[string]("pull_secret")
	ArchiveURIKey  = engine.NewKey[string]("docker_archive_uri")
)

// Registry is a private container registry. Swarm masters log into it;
// Kubernetes and DC/OS receive its credentials as a docker config.
type Registry = deployment.Registry
