package steps

import (
	"context"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/exposure"
	"github.com/artpar/clusterdeploy/internal/core/portspec"
	"github.com/artpar/clusterdeploy/internal/engine"
	"github.com/artpar/clusterdeploy/internal/shell/network"
)

// EnablePorts opens the ports the deployment files declare on the public
// agent rule group and load balancer of the cluster.
type EnablePorts struct {
	Exposer Exposer

	Cluster engine.Key[domain.Cluster]
	Files   engine.Key[[]portspec.Source]
	Ports   engine.Key[[]domain.ServicePort]
	Plan    engine.Key[*exposure.Plan]
}

func (s *EnablePorts) Execute(ctx context.Context, rc *engine.Context) {
	cluster, ok := engine.Get(rc.Values, s.Cluster)
	if !ok {
		rc.Fail(errNoCluster, "cannot enable ports")
		return
	}
	if cluster.Orchestrator.ManagesExposure() {
		rc.Statusf("%s exposes service ports itself", cluster.Orchestrator)
		rc.SetState(domain.StateSuccess)
		return
	}

	files, _ := engine.Get(rc.Values, s.Files)
	ports, err := portspec.Parse(portspec.FormatFor(cluster.Orchestrator), files)
	if err != nil {
		rc.Fail(err, "failed to read service ports")
		return
	}
	engine.Set(rc.Values, s.Ports, ports)
	rc.Statusf("service ports: %v", ports)

	plan, err := s.Exposer.Reconcile(ctx, network.AgentTarget(cluster.ResourceGroup, cluster.Orchestrator), ports)
	if err != nil {
		rc.Fail(err, "failed to enable ports")
		return
	}
	engine.Set(rc.Values, s.Plan, plan)

	lines := plan.Describe()
	if len(lines) == 0 {
		rc.Statusf("all ports are already open")
	}
	for _, line := range lines {
		rc.Statusf("%s", line)
	}
	rc.SetState(domain.StateSuccess)
}
