package steps

import (
	"errors"

	"github.com/artpar/clusterdeploy/internal/core/deployment"
	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/engine"
)

// Step IDs of the reference pipeline.
const (
	StepCheckBuild       engine.StepID = "check-build"
	StepClusterInfo      engine.StepID = "cluster-info"
	StepDeploySwarm      engine.StepID = "deploy-swarm"
	StepVerifySwarm      engine.StepID = "verify-swarm"
	StepDeployMarathon   engine.StepID = "deploy-marathon"
	StepDeployKubernetes engine.StepID = "deploy-kubernetes"
	StepEnablePorts      engine.StepID = "enable-ports"
)

var (
	ErrMissingDirectory = errors.New("cluster directory is required")
	ErrMissingConnector = errors.New("master connector is required")
	ErrMissingExposer   = errors.New("network exposer is required")
)

// Options describe one deployment.
type Options struct {
	ResourceGroup         string
	ClusterName           string
	Orchestrator          domain.Orchestrator
	RunOn                 deployment.RunOn
	Project               string
	Registries            []Registry
	RemoveContainersFirst bool
	SecretName            string
	SecretNamespace       string
	DockerCredentialsPath string
}

func (o Options) name() string {
	if o.Project != "" {
		return o.Project
	}
	return o.ClusterName
}

// RegistryVariables returns the variables the deploy step exports when
// registry credentials are configured, so deployment files can refer to them
// before the run starts. Swarm exports nothing.
func RegistryVariables(opts Options, cluster domain.Cluster) (map[string]string, error) {
	vars := map[string]string{}
	if len(opts.Registries) == 0 {
		return vars, nil
	}
	switch opts.Orchestrator {
	case domain.OrchestratorKubernetes:
		vars[deployment.SecretNameVariable] = deployment.SecretName(opts.SecretName, opts.name())
	case domain.OrchestratorDCOS:
		dir, err := deployment.CredentialsPath(opts.DockerCredentialsPath, cluster.AdminUser, opts.name())
		if err != nil {
			return nil, err
		}
		uri, err := deployment.ArchiveURI(dir)
		if err != nil {
			return nil, err
		}
		vars[deployment.DockerArchiveURIVariable] = uri
	}
	return vars, nil
}

// Dependencies are the capabilities injected into the steps.
type Dependencies struct {
	Directory ClusterDirectory
	Connector Connector
	Exposer   Exposer
	Clock     Clock
}

// BuildPipeline assembles the reference pipeline for the orchestrator:
//
//	check-build -> cluster-info -> deploy-<orchestrator> [-> verify-swarm] -> enable-ports
//
// Kubernetes opens service ports itself, so its pipeline ends after the
// deployment.
func BuildPipeline(opts Options, deps Dependencies) (*engine.Graph, error) {
	if !opts.Orchestrator.IsValid() {
		return nil, domain.ErrUnsupportedOrchestrator
	}
	if deps.Directory == nil {
		return nil, ErrMissingDirectory
	}
	if deps.Connector == nil {
		return nil, ErrMissingConnector
	}
	if deps.Exposer == nil && !opts.Orchestrator.ManagesExposure() {
		return nil, ErrMissingExposer
	}

	b := engine.NewBuilder().
		Add(StepCheckBuild, &CheckBuild{RunOn: opts.RunOn, Result: BuildResultKey},
			engine.OnSuccess(StepClusterInfo)).
		Add(StepClusterInfo, &ClusterInfo{
			Directory:     deps.Directory,
			ResourceGroup: opts.ResourceGroup,
			Name:          opts.ClusterName,
			Orchestrator:  opts.Orchestrator,
			Cluster:       ClusterKey,
		}, engine.OnSuccess(deployStep(opts.Orchestrator)))

	enablePorts := &EnablePorts{
		Exposer: deps.Exposer,
		Cluster: ClusterKey,
		Files:   FilesKey,
		Ports:   PortsKey,
		Plan:    PlanKey,
	}

	switch opts.Orchestrator {
	case domain.OrchestratorSwarm:
		b.Add(StepDeploySwarm, &DeploySwarm{
			Connector:             deps.Connector,
			Project:               opts.name(),
			Registries:            opts.Registries,
			RemoveContainersFirst: opts.RemoveContainersFirst,
			Clock:                 deps.Clock,
			Cluster:               ClusterKey,
			Files:                 FilesKey,
			ProjectName:           ProjectKey,
		}, engine.OnSuccess(StepVerifySwarm)).
			Add(StepVerifySwarm, &VerifySwarm{
				Connector:   deps.Connector,
				Cluster:     ClusterKey,
				ProjectName: ProjectKey,
				Services:    ServicesKey,
			}, engine.OnSuccess(StepEnablePorts)).
			Add(StepEnablePorts, enablePorts)
	case domain.OrchestratorDCOS:
		b.Add(StepDeployMarathon, &DeployMarathon{
			Connector:       deps.Connector,
			Clock:           deps.Clock,
			Registries:      opts.Registries,
			Name:            opts.name(),
			CredentialsPath: opts.DockerCredentialsPath,
			Cluster:         ClusterKey,
			Files:           FilesKey,
			ArchiveURI:      ArchiveURIKey,
		}, engine.OnSuccess(StepEnablePorts)).
			Add(StepEnablePorts, enablePorts)
	case domain.OrchestratorKubernetes:
		b.Add(StepDeployKubernetes, &DeployKubernetes{
			Connector:       deps.Connector,
			Clock:           deps.Clock,
			Registries:      opts.Registries,
			SecretName:      deployment.SecretName(opts.SecretName, opts.name()),
			SecretNamespace: opts.SecretNamespace,
			Cluster:         ClusterKey,
			Files:           FilesKey,
			Secret:          SecretKey,
		})
	}

	return b.Build()
}

func deployStep(o domain.Orchestrator) engine.StepID {
	switch o {
	case domain.OrchestratorSwarm:
		return StepDeploySwarm
	case domain.OrchestratorDCOS:
		return StepDeployMarathon
	default:
		return StepDeployKubernetes
	}
}
