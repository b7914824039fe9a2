package steps

import (
	"context"
	"path"

	"github.com/artpar/clusterdeploy/internal/core/deployment"
	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/portspec"
	"github.com/artpar/clusterdeploy/internal/engine"
)

// DeployMarathon replaces each Marathon application on a DC/OS master. With
// registry credentials configured it first places a docker config archive
// on the master; applications fetch it through $MARATHON_DOCKER_CFG_ARCHIVE_URI.
type DeployMarathon struct {
	Connector       Connector
	Clock           Clock
	Registries      []Registry
	Name            string
	CredentialsPath string

	Cluster    engine.Key[domain.Cluster]
	Files      engine.Key[[]portspec.Source]
	ArchiveURI engine.Key[string]
}

func (s *DeployMarathon) Execute(ctx context.Context, rc *engine.Context) {
	sess, ok := openSession(ctx, rc, s.Connector, s.Cluster, s.Files)
	if !ok {
		return
	}
	defer sess.close(rc)

	if len(s.Registries) > 0 && !s.copyDockerConfig(ctx, rc, sess) {
		return
	}

	for i, src := range sess.files {
		appID, err := deployment.MarathonAppID(src.Content)
		if err != nil {
			rc.Fail(err, "invalid application definition %s", src.Path)
			return
		}
		if !s.deployApp(ctx, rc, sess, src, appID, i) {
			return
		}
	}
	rc.SetState(domain.StateSuccess)
}

func (s *DeployMarathon) deployApp(ctx context.Context, rc *engine.Context, sess *session, src portspec.Source, appID string, i int) bool {
	remote, err := sess.copyFile(ctx, rc, src, "json", fileTime(s.Clock, i))
	if err != nil {
		rc.Fail(err, "failed to copy %s", src.Path)
		return false
	}
	defer sess.removeFile(ctx, rc, remote)

	rc.Statusf("removing application %s", appID)
	if _, err := sess.runner.Run(ctx, deployment.MarathonDeleteCommand(appID)); err != nil {
		rc.Errorf("failed to remove application %s: %v", appID, err)
	}

	rc.Statusf("deploying application %s", appID)
	out, err := sess.runner.Run(ctx, deployment.MarathonDeployCommand(remote))
	if err != nil {
		rc.Fail(err, "failed to deploy application %s", appID)
		return false
	}
	if out != "" {
		rc.Statusf("%s", out)
	}
	return true
}

// copyDockerConfig uploads docker.tar.gz to the credentials directory. Tasks
// on the agents fetch it by path, so a custom directory should be on storage
// the agents share.
func (s *DeployMarathon) copyDockerConfig(ctx context.Context, rc *engine.Context, sess *session) bool {
	dir, err := deployment.CredentialsPath(s.CredentialsPath, sess.cluster.AdminUser, s.Name)
	if err != nil {
		rc.Fail(err, "invalid docker credentials path")
		return false
	}
	uri, err := deployment.ArchiveURI(dir)
	if err != nil {
		rc.Fail(err, "invalid docker credentials path")
		return false
	}
	archive, err := deployment.DockerConfigArchive(s.Registries)
	if err != nil {
		rc.Fail(err, "cannot build docker config archive")
		return false
	}

	if _, err := sess.runner.Run(ctx, deployment.MakeDirCommand(dir)); err != nil {
		rc.Fail(err, "failed to create %s", dir)
		return false
	}
	remote := path.Join(dir, deployment.DockerArchiveName)
	rc.Statusf("copying docker config to %s", remote)
	if err := sess.runner.Upload(ctx, remote, archive); err != nil {
		rc.Fail(err, "failed to copy docker config to %s", remote)
		return false
	}
	rc.Statusf("injecting %s=%s", deployment.DockerArchiveURIVariable, uri)
	engine.Set(rc.Values, s.ArchiveURI, uri)
	return true
}
