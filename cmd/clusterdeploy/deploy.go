package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/artpar/clusterdeploy/internal/core/crypto"
	"github.com/artpar/clusterdeploy/internal/core/deployment"
	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/exposure"
	"github.com/artpar/clusterdeploy/internal/core/portspec"
	"github.com/artpar/clusterdeploy/internal/engine"
	"github.com/artpar/clusterdeploy/internal/shell/credentials"
	"github.com/artpar/clusterdeploy/internal/shell/network"
	"github.com/artpar/clusterdeploy/internal/shell/provider"
	"github.com/artpar/clusterdeploy/internal/shell/steps"
	"github.com/artpar/clusterdeploy/internal/shell/store"
	"github.com/artpar/clusterdeploy/internal/shell/workspace"
)

var ErrSSHKeyRequired = errors.New("cluster.ssh_key_file is required")

// =============================================================================
// Commands
// =============================================================================

func newDeployCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Run the deployment pipeline against the configured cluster",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			run, err := a.deploy(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "run %s %s (%s)\n", run.ID, run.Status, run.FinalState)
			if run.Status != domain.RunStatusSucceeded {
				msg := run.ErrorMessage
				if msg == "" {
					msg = "pipeline ended in " + run.FinalState.String()
				}
				return exitError("deploy", ExitDeployFailed, errors.New(msg))
			}
			return nil
		},
	}
}

func newPortsCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "ports",
		Short: "Print the service ports declared by the deployment files",
		RunE: func(*cobra.Command, []string) error {
			ports, err := a.servicePorts()
			if err != nil {
				return err
			}
			for _, p := range ports {
				fmt.Fprintln(a.out, p.String())
			}
			return nil
		},
	}
}

func newPlanCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the network changes that would expose the declared ports",
		RunE: func(cmd *cobra.Command, _ []string) error {
			plan, err := a.plan(cmd.Context())
			if err != nil {
				return err
			}
			printPlan(a, plan)
			return nil
		},
	}
}

func printPlan(a *app, plan *exposure.Plan) {
	if plan.Firewall == nil {
		fmt.Fprintln(a.out, "no agent rule group found")
	}
	if plan.LoadBalancer == nil {
		fmt.Fprintln(a.out, "no agent load balancer found")
	}
	lines := plan.Describe()
	if len(lines) == 0 {
		fmt.Fprintln(a.out, "no changes")
		return
	}
	for _, line := range lines {
		fmt.Fprintln(a.out, line)
	}
}

// =============================================================================
// Operations
// =============================================================================

func (a *app) orchestrator() (domain.Orchestrator, error) {
	o, err := domain.ParseOrchestrator(a.cfg.Deployment.Orchestrator)
	if err != nil {
		return "", exitError("config", ExitConfigError, err)
	}
	return o, nil
}

// loadFiles reads the deployment files matched by deployment.config_files.
// Variables in extra take precedence over deployment.variables.
func (a *app) loadFiles(extra map[string]string) ([]portspec.Source, error) {
	variables, err := a.cfg.Deployment.VariableMap()
	if err != nil {
		return nil, exitError("config", ExitConfigError, err)
	}
	for name, value := range extra {
		variables[name] = value
	}
	loader := workspace.NewLoader(a.fs, a.cfg.Deployment.WorkDir, a.logger)
	files, err := loader.Load(a.cfg.Deployment.ConfigFiles, a.cfg.Deployment.EnableConfigSubstitution, variables)
	if err != nil {
		return nil, exitError("load deployment files", ExitConfigError, err)
	}
	return files, nil
}

func (a *app) servicePorts() ([]domain.ServicePort, error) {
	o, err := a.orchestrator()
	if err != nil {
		return nil, err
	}
	files, err := a.loadFiles(nil)
	if err != nil {
		return nil, err
	}
	ports, err := portspec.Parse(portspec.FormatFor(o), files)
	if err != nil {
		return nil, exitError("parse ports", ExitConfigError, err)
	}
	return ports, nil
}

// reconciler connects to the configured provider.
func (a *app) reconciler() (*network.Reconciler, error) {
	providerType, err := a.cfg.ProviderType()
	if err != nil {
		return nil, exitError("config", ExitConfigError, err)
	}
	src, err := credentials.NewSource(a.cfg.Provider.CredentialsSource)
	if err != nil {
		return nil, exitError("config", ExitConfigError, err)
	}
	creds, err := credentials.Resolve(src, providerType, a.cfg.Provider.CredentialsRef)
	if err != nil {
		return nil, exitError("load credentials", ExitProviderError, err)
	}
	remote, err := provider.NewRemote(providerType, creds, a.cfg.Provider.Region, a.logger)
	if err != nil {
		return nil, exitError("connect provider", ExitProviderError, err)
	}
	a.logger.Info("provider ready", "provider", providerType.DisplayName(), "region", a.cfg.Provider.Region)
	return network.NewReconciler(remote, a.cfg.Exposure.WaitConfig(), a.logger), nil
}

func (a *app) plan(ctx context.Context) (*exposure.Plan, error) {
	o, err := a.orchestrator()
	if err != nil {
		return nil, err
	}
	if o.ManagesExposure() {
		return &exposure.Plan{}, nil
	}
	ports, err := a.servicePorts()
	if err != nil {
		return nil, err
	}
	r, err := a.reconciler()
	if err != nil {
		return nil, err
	}
	plan, err := r.Plan(ctx, network.AgentTarget(a.cfg.Deployment.ResourceGroup, o), ports)
	if err != nil {
		return nil, exitError("plan", ExitProviderError, err)
	}
	return plan, nil
}

// sshConnector builds the master connector from the cluster key. A sealed key
// file is opened with cluster.encryption_key first.
func (a *app) sshConnector() (steps.Connector, error) {
	if a.connector != nil {
		return a.connector, nil
	}
	if a.cfg.Cluster.SSHKeyFile == "" {
		return nil, exitError("config", ExitConfigError, ErrSSHKeyRequired)
	}
	key, err := afero.ReadFile(a.fs, a.cfg.Cluster.SSHKeyFile)
	if err != nil {
		return nil, exitError("read ssh key", ExitConfigError, err)
	}
	if a.cfg.Cluster.SSHKeyEncrypted || crypto.IsSealed(key) {
		key, err = crypto.OpenKey(string(key), a.cfg.Cluster.EncryptionKey)
		if err != nil {
			return nil, exitError("open ssh key", ExitConfigError, err)
		}
	}
	signer, err := crypto.ParseSSHPrivateKey(key, a.cfg.Cluster.SSHPassphrase)
	if err != nil {
		return nil, exitError("parse ssh key", ExitConfigError, err)
	}
	a.logger.Debug("ssh key loaded", "fingerprint", crypto.Fingerprint(signer))
	return steps.NewSSHConnector(signer, a.cfg.Cluster.KnownHostsFile, a.cfg.Cluster.SSHPort, a.logger), nil
}

// deploy builds the pipeline, runs it and records the run history.
func (a *app) deploy(ctx context.Context) (domain.Run, error) {
	opts, err := a.cfg.PipelineOptions()
	if err != nil {
		return domain.Run{}, exitError("config", ExitConfigError, err)
	}
	cluster, err := a.cfg.Target()
	if err != nil {
		return domain.Run{}, exitError("config", ExitConfigError, err)
	}
	buildResult, err := deployment.ParseBuildResult(a.cfg.Deployment.BuildResult)
	if err != nil {
		return domain.Run{}, exitError("config", ExitConfigError, err)
	}
	registryVars, err := steps.RegistryVariables(opts, cluster)
	if err != nil {
		return domain.Run{}, exitError("config", ExitConfigError, err)
	}
	files, err := a.loadFiles(registryVars)
	if err != nil {
		return domain.Run{}, err
	}
	connector, err := a.sshConnector()
	if err != nil {
		return domain.Run{}, err
	}

	deps := steps.Dependencies{
		Directory: workspace.NewStaticDirectory(cluster),
		Connector: connector,
		Clock:     time.Now,
	}
	if !opts.Orchestrator.ManagesExposure() {
		r, err := a.reconciler()
		if err != nil {
			return domain.Run{}, err
		}
		deps.Exposer = r
	}

	graph, err := steps.BuildPipeline(opts, deps)
	if err != nil {
		return domain.Run{}, exitError("build pipeline", ExitConfigError, err)
	}

	s, err := store.NewSQLiteStore(a.cfg.Database.DSN)
	if err != nil {
		return domain.Run{}, exitError("open database", ExitDatabaseError, err)
	}
	defer s.Close()

	name := opts.Project
	if name == "" {
		name = opts.ClusterName
	}
	run, err := domain.NewRun(name, opts.ResourceGroup, opts.ClusterName, opts.Orchestrator)
	if err != nil {
		return domain.Run{}, exitError("config", ExitConfigError, err)
	}
	recorder := store.NewRecorder(s, run, a.logger)
	if err := recorder.Start(ctx); err != nil {
		return domain.Run{}, exitError("record run", ExitDatabaseError, err)
	}

	logger := a.logger.With("run_id", run.ID)
	sink := engine.MultiSink{engine.NewLineSink(a.out), engine.NewSlogSink(logger)}
	rc := engine.NewContext(sink, logger)
	engine.Set(rc.Values, steps.BuildResultKey, buildResult)
	engine.Set(rc.Values, steps.FilesKey, files)

	logger.Info("starting deployment",
		"cluster", opts.ClusterName,
		"orchestrator", opts.Orchestrator,
		"files", len(files),
		"steps", len(graph.IDs()))

	result := engine.NewExecutor(logger, recorder).Run(ctx, graph, "", rc)
	if err := recorder.Finish(ctx, result); err != nil {
		logger.Error("failed to record run verdict", "error", err)
	}
	return recorder.Run(), nil
}
