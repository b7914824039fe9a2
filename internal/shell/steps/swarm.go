package steps

import (
	"context"
	"errors"

	"github.com/artpar/clusterdeploy/internal/core/compose"
	"github.com/artpar/clusterdeploy/internal/core/deployment"
	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/portspec"
	"github.com/artpar/clusterdeploy/internal/engine"
	"github.com/artpar/clusterdeploy/internal/shell/docker"
)

// =============================================================================
// Deploy
// =============================================================================

// DeploySwarm runs every compose file on the swarm master.
type DeploySwarm struct {
	Connector             Connector
	Project               string
	Registries            []Registry
	RemoveContainersFirst bool
	Clock                 Clock

	Cluster     engine.Key[domain.Cluster]
	Files       engine.Key[[]portspec.Source]
	ProjectName engine.Key[string]
}

func (s *DeploySwarm) Execute(ctx context.Context, rc *engine.Context) {
	sess, ok := openSession(ctx, rc, s.Connector, s.Cluster, s.Files)
	if !ok {
		return
	}
	defer sess.close(rc)

	project := deployment.ProjectName(s.Project)
	for _, src := range sess.files {
		p, err := compose.LoadProject(src.Content, project, nil)
		if err != nil {
			rc.Fail(err, "invalid compose file %s", src.Path)
			return
		}
		rc.Statusf("%s defines services %v", src.Path, p.ServiceNames())
	}

	for _, reg := range s.Registries {
		rc.Statusf("logging in to registry %s", reg.Server)
		if _, err := sess.runner.Run(ctx, deployment.DockerLoginCommand(reg.Server, reg.Username, reg.Password)); err != nil {
			rc.Fail(err, "failed to log in to registry %s", reg.Server)
			return
		}
	}

	for i, src := range sess.files {
		if !s.deployFile(ctx, rc, sess, src, project, i) {
			return
		}
	}

	engine.Set(rc.Values, s.ProjectName, project)
	rc.SetState(domain.StateSuccess)
}

func (s *DeploySwarm) deployFile(ctx context.Context, rc *engine.Context, sess *session, src portspec.Source, project string, i int) bool {
	remote, err := sess.copyFile(ctx, rc, src, "yml", fileTime(s.Clock, i))
	if err != nil {
		rc.Fail(err, "failed to copy %s", src.Path)
		return false
	}
	defer sess.removeFile(ctx, rc, remote)

	if s.RemoveContainersFirst {
		rc.Statusf("removing containers of %s", src.Path)
		if _, err := sess.runner.Run(ctx, deployment.ComposeDownCommand(remote, project)); err != nil {
			rc.Errorf("failed to remove containers: %v", err)
		}
	}

	rc.Statusf("starting services of %s", src.Path)
	out, err := sess.runner.Run(ctx, deployment.ComposeUpCommand(remote, project))
	if err != nil {
		rc.Fail(err, "docker-compose up failed for %s", src.Path)
		return false
	}
	if out != "" {
		rc.Statusf("%s", out)
	}
	return true
}

// =============================================================================
// Verify
// =============================================================================

// VerifySwarm checks that the compose project has running containers. An
// empty project ends the branch with UnSuccessful.
type VerifySwarm struct {
	Connector Connector

	Cluster     engine.Key[domain.Cluster]
	ProjectName engine.Key[string]
	Services    engine.Key[[]string]
}

func (s *VerifySwarm) Execute(ctx context.Context, rc *engine.Context) {
	cluster, ok := engine.Get(rc.Values, s.Cluster)
	if !ok {
		rc.Fail(errNoCluster, "cannot verify deployment")
		return
	}
	project, _ := engine.Get(rc.Values, s.ProjectName)

	inspector, err := s.Connector.Inspect(ctx, cluster)
	if err != nil {
		rc.Fail(err, "failed to reach docker on %s", cluster.MasterFQDN)
		return
	}
	defer inspector.Close()

	services, err := inspector.RunningServices(ctx, project)
	switch {
	case errors.Is(err, docker.ErrNoContainers):
		rc.Errorf("no containers of project %s are running", project)
		rc.SetState(domain.StateUnSuccessful)
		return
	case err != nil:
		rc.Fail(err, "failed to list containers of project %s", project)
		return
	}

	engine.Set(rc.Values, s.Services, services)
	rc.Statusf("running services: %v", services)
	rc.SetState(domain.StateSuccess)
}
