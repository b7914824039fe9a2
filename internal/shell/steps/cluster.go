package steps

import (
	"context"
	"errors"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/engine"
)

var errOrchestratorMismatch = errors.New("orchestrator mismatch")

// ClusterInfo resolves the cluster the deployment targets and stores it for
// the following steps.
type ClusterInfo struct {
	Directory     ClusterDirectory
	ResourceGroup string
	Name          string
	Orchestrator  domain.Orchestrator
	Cluster       engine.Key[domain.Cluster]
}

func (s *ClusterInfo) Execute(ctx context.Context, rc *engine.Context) {
	rc.Statusf("getting information for container service %s in resource group %s", s.Name, s.ResourceGroup)

	cluster, err := s.Directory.Lookup(ctx, s.ResourceGroup, s.Name)
	if err != nil {
		rc.Fail(err, "container service %s not found", s.Name)
		return
	}
	if cluster.Orchestrator != s.Orchestrator {
		rc.Fail(errOrchestratorMismatch, "container service %s runs %s, not %s", s.Name, cluster.Orchestrator, s.Orchestrator)
		return
	}
	if cluster.MasterFQDN == "" || cluster.AdminUser == "" {
		rc.Fail(nil, "container service %s has no master endpoint", s.Name)
		return
	}

	engine.Set(rc.Values, s.Cluster, cluster)
	rc.Statusf("master is %s@%s", cluster.AdminUser, cluster.MasterFQDN)
	rc.SetState(domain.StateSuccess)
}
