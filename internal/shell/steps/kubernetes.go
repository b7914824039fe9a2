package steps

import (
	"context"

	"github.com/artpar/clusterdeploy/internal/core/deployment"
	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/portspec"
	"github.com/artpar/clusterdeploy/internal/engine"
)

// DeployKubernetes applies each manifest with kubectl on the master. With
// registry credentials configured it first creates or replaces the image
// pull secret the manifests refer to as $KUBERNETES_SECRET_NAME.
type DeployKubernetes struct {
	Connector       Connector
	Clock           Clock
	Registries      []Registry
	SecretName      string
	SecretNamespace string

	Cluster engine.Key[domain.Cluster]
	Files   engine.Key[[]portspec.Source]
	Secret  engine.Key[string]
}

func (s *DeployKubernetes) Execute(ctx context.Context, rc *engine.Context) {
	sess, ok := openSession(ctx, rc, s.Connector, s.Cluster, s.Files)
	if !ok {
		return
	}
	defer sess.close(rc)

	if len(s.Registries) > 0 && !s.prepareSecret(ctx, rc, sess) {
		return
	}

	for i, src := range sess.files {
		remote, err := sess.copyFile(ctx, rc, src, "yml", fileTime(s.Clock, i))
		if err != nil {
			rc.Fail(err, "failed to copy %s", src.Path)
			return
		}
		out, err := sess.runner.Run(ctx, deployment.KubectlApplyCommand(remote))
		sess.removeFile(ctx, rc, remote)
		if err != nil {
			rc.Fail(err, "kubectl apply failed for %s", src.Path)
			return
		}
		if out != "" {
			rc.Statusf("%s", out)
		}
	}
	rc.SetState(domain.StateSuccess)
}

// prepareSecret uploads the docker config and turns it into a secret. The
// config file holds credentials, so it is removed whatever the outcome.
func (s *DeployKubernetes) prepareSecret(ctx context.Context, rc *engine.Context, sess *session) bool {
	cfg, err := deployment.DockerConfigJSON(s.Registries)
	if err != nil {
		rc.Fail(err, "cannot build image pull secret %s", s.SecretName)
		return false
	}
	remote := deployment.RemoteFileName("json", fileTime(s.Clock, 0))
	if err := sess.runner.Upload(ctx, remote, cfg); err != nil {
		rc.Fail(err, "failed to copy docker config for secret %s", s.SecretName)
		return false
	}
	defer sess.removeFile(ctx, rc, remote)

	rc.Statusf("preparing image pull secret %s", s.SecretName)
	if _, err := sess.runner.Run(ctx, deployment.KubectlSecretCommand(s.SecretName, s.SecretNamespace, remote)); err != nil {
		rc.Fail(err, "failed to create image pull secret %s", s.SecretName)
		return false
	}
	rc.Statusf("injecting %s=%s", deployment.SecretNameVariable, s.SecretName)
	engine.Set(rc.Values, s.Secret, s.SecretName)
	return true
}
