package steps

import (
	"context"

	"github.com/artpar/clusterdeploy/internal/core/deployment"
	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/engine"
)

// CheckBuild gates the deployment on the result of the CI build. A build
// that RunOn does not allow ends the branch with Done.
type CheckBuild struct {
	RunOn  deployment.RunOn
	Result engine.Key[deployment.BuildResult]
}

func (s *CheckBuild) Execute(_ context.Context, rc *engine.Context) {
	result, _ := engine.Get(rc.Values, s.Result)
	if !s.RunOn.Allows(result) {
		rc.Statusf("build result is %s, deployments run on %s: skipping", result, s.RunOn)
		rc.SetState(domain.StateDone)
		return
	}
	rc.SetState(domain.StateSuccess)
}
