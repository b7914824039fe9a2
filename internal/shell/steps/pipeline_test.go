package steps

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/clusterdeploy/internal/core/deployment"
	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/portspec"
	"github.com/artpar/clusterdeploy/internal/engine"
	"github.com/artpar/clusterdeploy/internal/shell/network"
)

func testOptions(o domain.Orchestrator) Options {
	return Options{
		ResourceGroup: testResourceGroup,
		ClusterName:   testClusterName,
		Orchestrator:  o,
		RunOn:         deployment.RunOnSuccess,
	}
}

func testDependencies(o domain.Orchestrator, remote *network.MemoryRemote, connector *fakeConnector) Dependencies {
	return Dependencies{
		Directory: fakeDirectory{testResourceGroup + "/" + testClusterName: testCluster(o)},
		Connector: connector,
		Exposer:   network.NewReconciler(remote, fastWait(), testLogger()),
		Clock:     fixedClock,
	}
}

func TestBuildPipeline_Topology(t *testing.T) {
	connector := &fakeConnector{runner: newFakeRunner(), inspector: &fakeInspector{}}

	tests := []struct {
		orchestrator domain.Orchestrator
		want         []engine.StepID
	}{
		{domain.OrchestratorSwarm, []engine.StepID{StepCheckBuild, StepClusterInfo, StepDeploySwarm, StepVerifySwarm, StepEnablePorts}},
		{domain.OrchestratorDCOS, []engine.StepID{StepCheckBuild, StepClusterInfo, StepDeployMarathon, StepEnablePorts}},
		{domain.OrchestratorKubernetes, []engine.StepID{StepCheckBuild, StepClusterInfo, StepDeployKubernetes}},
	}

	for _, tt := range tests {
		t.Run(string(tt.orchestrator), func(t *testing.T) {
			deps := testDependencies(tt.orchestrator, network.NewMemoryRemote(), connector)
			g, err := BuildPipeline(testOptions(tt.orchestrator), deps)
			require.NoError(t, err)
			assert.Equal(t, tt.want, g.IDs())
			assert.Equal(t, StepCheckBuild, g.Start())
		})
	}
}

func TestBuildPipeline_MissingDependencies(t *testing.T) {
	connector := &fakeConnector{runner: newFakeRunner()}
	deps := testDependencies(domain.OrchestratorSwarm, network.NewMemoryRemote(), connector)

	noDirectory := deps
	noDirectory.Directory = nil
	_, err := BuildPipeline(testOptions(domain.OrchestratorSwarm), noDirectory)
	assert.ErrorIs(t, err, ErrMissingDirectory)

	noConnector := deps
	noConnector.Connector = nil
	_, err = BuildPipeline(testOptions(domain.OrchestratorSwarm), noConnector)
	assert.ErrorIs(t, err, ErrMissingConnector)

	noExposer := deps
	noExposer.Exposer = nil
	_, err = BuildPipeline(testOptions(domain.OrchestratorSwarm), noExposer)
	assert.ErrorIs(t, err, ErrMissingExposer)

	_, err = BuildPipeline(testOptions(domain.OrchestratorKubernetes), noExposer)
	assert.NoError(t, err)

	_, err = BuildPipeline(testOptions("nomad"), deps)
	assert.ErrorIs(t, err, domain.ErrUnsupportedOrchestrator)
}

func TestPipeline_SwarmEndToEnd(t *testing.T) {
	remote := agentRemote(domain.OrchestratorSwarm)
	runner := newFakeRunner()
	connector := &fakeConnector{runner: runner, inspector: &fakeInspector{services: []string{"api", "web"}}}

	g, err := BuildPipeline(testOptions(domain.OrchestratorSwarm), testDependencies(domain.OrchestratorSwarm, remote, connector))
	require.NoError(t, err)

	rc, sink := newRunContext(
		func(v *engine.Values) { engine.Set(v, BuildResultKey, deployment.BuildSuccess) },
		withFiles(portspec.Source{Path: "docker-compose.yml", Content: []byte(composeFile)}),
	)
	result := engine.NewExecutor(testLogger()).Run(context.Background(), g, "", rc)

	require.True(t, result.Success, "errors: %v", sink.Errors())
	assert.Equal(t, []engine.StepID{StepCheckBuild, StepClusterInfo, StepDeploySwarm, StepVerifySwarm, StepEnablePorts}, result.Visited)
	assert.Equal(t, []string{"shopmgmt.westeurope.example.com"}, connector.connected)

	group, _ := remote.RuleGroup("nsg-1")
	assert.Len(t, group.Rules, 4)

	// a second deployment of the same files changes nothing
	rc, _ = newRunContext(
		func(v *engine.Values) { engine.Set(v, BuildResultKey, deployment.BuildSuccess) },
		withFiles(portspec.Source{Path: "docker-compose.yml", Content: []byte(composeFile)}),
	)
	result = engine.NewExecutor(testLogger()).Run(context.Background(), g, "", rc)
	require.True(t, result.Success)

	groups, lbs := remote.ApplyCalls()
	assert.Equal(t, 1, groups)
	assert.Equal(t, 1, lbs)
}

func TestPipeline_RefusedBuildStopsBeforeDeploy(t *testing.T) {
	runner := newFakeRunner()
	connector := &fakeConnector{runner: runner}
	g, err := BuildPipeline(testOptions(domain.OrchestratorSwarm),
		testDependencies(domain.OrchestratorSwarm, network.NewMemoryRemote(), connector))
	require.NoError(t, err)

	rc, _ := newRunContext(func(v *engine.Values) { engine.Set(v, BuildResultKey, deployment.BuildFailure) })
	result := engine.NewExecutor(testLogger()).Run(context.Background(), g, "", rc)

	assert.True(t, result.Success)
	assert.Equal(t, domain.StateDone, result.State)
	assert.Equal(t, []engine.StepID{StepCheckBuild}, result.Visited)
	assert.Empty(t, runner.commands)
}

func TestPipeline_UnknownClusterFails(t *testing.T) {
	connector := &fakeConnector{runner: newFakeRunner()}
	deps := testDependencies(domain.OrchestratorDCOS, network.NewMemoryRemote(), connector)
	deps.Directory = fakeDirectory{}

	g, err := BuildPipeline(testOptions(domain.OrchestratorDCOS), deps)
	require.NoError(t, err)

	rc, _ := newRunContext(withFiles(portspec.Source{Path: "marathon.json", Content: []byte(marathonApp)}))
	result := engine.NewExecutor(testLogger()).Run(context.Background(), g, "", rc)

	assert.False(t, result.Success)
	assert.Equal(t, domain.StateHasError, result.State)
	assert.Equal(t, []engine.StepID{StepCheckBuild, StepClusterInfo}, result.Visited)
	assert.Empty(t, connector.connected)
}

func TestRegistryVariables(t *testing.T) {
	registries := []Registry{{Server: "registry.example.com", Username: "ci", Password: "secret"}}

	opts := testOptions(domain.OrchestratorSwarm)
	opts.Registries = registries
	vars, err := RegistryVariables(opts, testCluster(domain.OrchestratorSwarm))
	require.NoError(t, err)
	assert.Empty(t, vars)

	opts = testOptions(domain.OrchestratorKubernetes)
	vars, err = RegistryVariables(opts, testCluster(domain.OrchestratorKubernetes))
	require.NoError(t, err)
	assert.Empty(t, vars, "no registries, nothing exported")

	opts.Registries = registries
	vars, err = RegistryVariables(opts, testCluster(domain.OrchestratorKubernetes))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"KUBERNETES_SECRET_NAME": "acs-plugin-shop"}, vars)

	opts.SecretName = "pull"
	vars, err = RegistryVariables(opts, testCluster(domain.OrchestratorKubernetes))
	require.NoError(t, err)
	assert.Equal(t, "pull", vars["KUBERNETES_SECRET_NAME"])

	opts = testOptions(domain.OrchestratorDCOS)
	opts.Registries = registries
	vars, err = RegistryVariables(opts, testCluster(domain.OrchestratorDCOS))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"MARATHON_DOCKER_CFG_ARCHIVE_URI": "file:///home/azureuser/acs-plugin-dcos.docker/acs-plugin-dcos-shop/docker.tar.gz",
	}, vars)

	opts.DockerCredentialsPath = "relative/path"
	_, err = RegistryVariables(opts, testCluster(domain.OrchestratorDCOS))
	assert.ErrorIs(t, err, deployment.ErrRelativeCredsPath)
}

func TestPipeline_RegistryVariablesMatchSteps(t *testing.T) {
	registries := []Registry{{Server: "registry.example.com", Username: "ci", Password: "secret"}}

	tests := []struct {
		orchestrator domain.Orchestrator
		key          engine.Key[string]
		variable     string
		file         portspec.Source
	}{
		{domain.OrchestratorKubernetes, SecretKey, deployment.SecretNameVariable,
			portspec.Source{Path: "deploy.yml", Content: []byte("kind: Deployment\n")}},
		{domain.OrchestratorDCOS, ArchiveURIKey, deployment.DockerArchiveURIVariable,
			portspec.Source{Path: "marathon.json", Content: []byte(marathonApp)}},
	}

	for _, tt := range tests {
		t.Run(string(tt.orchestrator), func(t *testing.T) {
			opts := testOptions(tt.orchestrator)
			opts.Registries = registries
			connector := &fakeConnector{runner: newFakeRunner(), inspector: &fakeInspector{}}
			g, err := BuildPipeline(opts, testDependencies(tt.orchestrator, agentRemote(tt.orchestrator), connector))
			require.NoError(t, err)

			rc, sink := newRunContext(
				func(v *engine.Values) { engine.Set(v, BuildResultKey, deployment.BuildSuccess) },
				withFiles(tt.file),
			)
			result := engine.NewExecutor(testLogger()).Run(context.Background(), g, "", rc)
			require.True(t, result.Success, "errors: %v", sink.Errors())

			vars, err := RegistryVariables(opts, testCluster(tt.orchestrator))
			require.NoError(t, err)
			got, ok := engine.Get(rc.Values, tt.key)
			require.True(t, ok)
			assert.Equal(t, vars[tt.variable], got)
		})
	}
}
