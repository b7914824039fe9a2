package steps

import (
	"context"
	"errors"
	"time"

	"github.com/artpar/clusterdeploy/internal/core/deployment"
	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/portspec"
	"github.com/artpar/clusterdeploy/internal/engine"
)

var (
	errNoCluster = errors.New("cluster information is missing")
	errNoFiles   = errors.New("no deployment files")
)

// session holds what a deploy step needs to talk to the master.
type session struct {
	cluster domain.Cluster
	files   []portspec.Source
	runner  Runner
}

// openSession reads the cluster and the deployment files from the run
// context and connects to the master. On failure the run is already moved
// to HasError.
func openSession(ctx context.Context, rc *engine.Context, connector Connector, clusterKey engine.Key[domain.Cluster], filesKey engine.Key[[]portspec.Source]) (*session, bool) {
	cluster, ok := engine.Get(rc.Values, clusterKey)
	if !ok {
		rc.Fail(errNoCluster, "cannot deploy")
		return nil, false
	}
	files, _ := engine.Get(rc.Values, filesKey)
	if len(files) == 0 {
		rc.Fail(errNoFiles, "cannot deploy")
		return nil, false
	}

	runner, err := connector.Connect(ctx, cluster)
	if err != nil {
		rc.Fail(err, "failed to connect to %s", cluster.MasterFQDN)
		return nil, false
	}
	return &session{cluster: cluster, files: files, runner: runner}, true
}

// copyFile uploads content under a fresh name in the admin user's home
// directory. Files copied in one step are spaced one millisecond apart so
// their names never collide.
func (s *session) copyFile(ctx context.Context, rc *engine.Context, src portspec.Source, ext string, now time.Time) (string, error) {
	remote := deployment.RemoteFileName(ext, now)
	rc.Statusf("copying %s to %s", src.Path, remote)
	if err := s.runner.Upload(ctx, remote, src.Content); err != nil {
		return "", err
	}
	return remote, nil
}

// removeFile deletes a copied file. A failure is reported but does not
// change the state.
func (s *session) removeFile(ctx context.Context, rc *engine.Context, remote string) {
	if _, err := s.runner.Run(ctx, deployment.RemoveFileCommand(remote)); err != nil {
		rc.Errorf("failed to remove %s: %v", remote, err)
	}
}

func (s *session) close(rc *engine.Context) {
	if err := s.runner.Close(); err != nil {
		rc.Logger().Warn("failed to close master session", "error", err)
	}
}

func fileTime(clock Clock, i int) time.Time {
	if clock == nil {
		clock = time.Now
	}
	return clock().Add(time.Duration(i) * time.Millisecond)
}
