package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/artpar/clusterdeploy/internal/core/deployment"
	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/shell/network"
	"github.com/artpar/clusterdeploy/internal/shell/steps"
)

// =============================================================================
// Config Types
// =============================================================================

// Config holds all application configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Server     ServerConfig     `mapstructure:"server"`
	Deployment DeploymentConfig `mapstructure:"deployment"`
	Cluster    ClusterConfig    `mapstructure:"cluster"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Exposure   ExposureConfig   `mapstructure:"exposure"`
	Registries []steps.Registry `mapstructure:"registries"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig holds the run history database configuration.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ServerConfig holds the history API server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Address returns the server address in host:port format.
func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DeploymentConfig describes what gets deployed where.
type DeploymentConfig struct {
	ResourceGroup            string   `mapstructure:"resource_group"`
	ClusterName              string   `mapstructure:"cluster_name"`
	Location                 string   `mapstructure:"location"`
	Orchestrator             string   `mapstructure:"orchestrator"`
	ConfigFiles              []string `mapstructure:"config_files"`
	WorkDir                  string   `mapstructure:"work_dir"`
	BuildResult              string   `mapstructure:"build_result"`
	RunOn                    string   `mapstructure:"run_on"`
	Project                  string   `mapstructure:"project"`
	EnableConfigSubstitution bool     `mapstructure:"enable_config_substitution"`
	Variables                []string `mapstructure:"variables"`
	RemoveContainersFirst    bool     `mapstructure:"remove_containers_first"`
	SecretName               string   `mapstructure:"secret_name"`
	SecretNamespace          string   `mapstructure:"secret_namespace"`
	DockerCredentialsPath    string   `mapstructure:"dcos_docker_credentials_path"`
}

var ErrInvalidVariable = errors.New("deployment variable must be NAME=value")

// VariableMap parses the NAME=value entries of deployment.variables. Names
// keep their case, which viper does not preserve for map keys.
func (c DeploymentConfig) VariableMap() (map[string]string, error) {
	vars := make(map[string]string, len(c.Variables))
	for _, entry := range c.Variables {
		name, value, ok := strings.Cut(entry, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidVariable, entry)
		}
		vars[strings.TrimSpace(name)] = value
	}
	return vars, nil
}

// ClusterConfig holds the master endpoint and the SSH key used to reach it.
type ClusterConfig struct {
	MasterFQDN      string `mapstructure:"master_fqdn"`
	AdminUser       string `mapstructure:"admin_user"`
	SSHPort         int    `mapstructure:"ssh_port"`
	SSHKeyFile      string `mapstructure:"ssh_key_file"`
	SSHKeyEncrypted bool   `mapstructure:"ssh_key_encrypted"`
	SSHPassphrase   string `mapstructure:"ssh_passphrase"`
	EncryptionKey   string `mapstructure:"encryption_key"`
	KnownHostsFile  string `mapstructure:"known_hosts_file"`
}

// ProviderConfig selects the platform owning the agent network resources.
type ProviderConfig struct {
	Type              string `mapstructure:"type"`
	Region            string `mapstructure:"region"`
	CredentialsSource string `mapstructure:"credentials_source"`
	CredentialsRef    string `mapstructure:"credentials_ref"`
}

// ExposureConfig bounds the confirmation polling after each network apply.
type ExposureConfig struct {
	ConfirmAttempts int           `mapstructure:"confirm_attempts"`
	ConfirmInterval time.Duration `mapstructure:"confirm_interval"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout"`
}

// WaitConfig converts the exposure settings for the reconciler.
func (c ExposureConfig) WaitConfig() network.WaitConfig {
	return network.WaitConfig{
		Attempts: c.ConfirmAttempts,
		Interval: c.ConfirmInterval,
		Timeout:  c.ConfirmTimeout,
	}
}

// =============================================================================
// Derived Values
// =============================================================================

var ErrMissingCluster = errors.New("deployment.resource_group and deployment.cluster_name are required")

// Target returns the cluster the deployment targets as the directory knows it.
func (c *Config) Target() (domain.Cluster, error) {
	if c.Deployment.ResourceGroup == "" || c.Deployment.ClusterName == "" {
		return domain.Cluster{}, ErrMissingCluster
	}
	orchestrator, err := domain.ParseOrchestrator(c.Deployment.Orchestrator)
	if err != nil {
		return domain.Cluster{}, err
	}
	return domain.Cluster{
		ResourceGroup: c.Deployment.ResourceGroup,
		Name:          c.Deployment.ClusterName,
		Orchestrator:  orchestrator,
		MasterFQDN:    c.Cluster.MasterFQDN,
		AdminUser:     c.Cluster.AdminUser,
		Location:      c.Deployment.Location,
	}, nil
}

// PipelineOptions returns the options of the reference pipeline.
func (c *Config) PipelineOptions() (steps.Options, error) {
	cluster, err := c.Target()
	if err != nil {
		return steps.Options{}, err
	}
	runOn, err := deployment.ParseRunOn(c.Deployment.RunOn)
	if err != nil {
		return steps.Options{}, err
	}
	return steps.Options{
		ResourceGroup:         cluster.ResourceGroup,
		ClusterName:           cluster.Name,
		Orchestrator:          cluster.Orchestrator,
		RunOn:                 runOn,
		Project:               c.Deployment.Project,
		Registries:            c.Registries,
		RemoveContainersFirst: c.Deployment.RemoveContainersFirst,
		SecretName:            c.Deployment.SecretName,
		SecretNamespace:       c.Deployment.SecretNamespace,
		DockerCredentialsPath: c.Deployment.DockerCredentialsPath,
	}, nil
}

// ProviderType returns the configured provider type.
func (c *Config) ProviderType() (domain.ProviderType, error) {
	p := domain.ProviderType(strings.ToLower(c.Provider.Type))
	if !p.IsValid() {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidProviderType, c.Provider.Type)
	}
	return p, nil
}

// =============================================================================
// Config Loading
// =============================================================================

// LoadConfig loads configuration from file and environment variables.
// Environment variables override file values and use the CLUSTERDEPLOY_
// prefix, e.g. CLUSTERDEPLOY_DEPLOYMENT_CLUSTER_NAME.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("database.dsn", "./data/clusterdeploy.db")
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	v.SetDefault("deployment.resource_group", "")
	v.SetDefault("deployment.cluster_name", "")
	v.SetDefault("deployment.location", "")
	v.SetDefault("deployment.orchestrator", "swarm")
	v.SetDefault("deployment.config_files", []string{})
	v.SetDefault("deployment.work_dir", ".")
	v.SetDefault("deployment.build_result", "")
	v.SetDefault("deployment.run_on", "success")
	v.SetDefault("deployment.project", "")
	v.SetDefault("deployment.enable_config_substitution", false)
	v.SetDefault("deployment.variables", []string{})
	v.SetDefault("deployment.remove_containers_first", false)
	v.SetDefault("deployment.secret_name", "")
	v.SetDefault("deployment.secret_namespace", "")
	v.SetDefault("deployment.dcos_docker_credentials_path", "")

	v.SetDefault("cluster.master_fqdn", "")
	v.SetDefault("cluster.admin_user", "azureuser")
	v.SetDefault("cluster.ssh_port", 0) // orchestrator default
	v.SetDefault("cluster.ssh_key_file", "")
	v.SetDefault("cluster.ssh_key_encrypted", false)
	v.SetDefault("cluster.ssh_passphrase", "")
	v.SetDefault("cluster.encryption_key", "") // Must be set via environment
	v.SetDefault("cluster.known_hosts_file", "")

	v.SetDefault("provider.type", "memory")
	v.SetDefault("provider.region", "")
	v.SetDefault("provider.credentials_source", "env")
	v.SetDefault("provider.credentials_ref", "")

	wait := network.DefaultWaitConfig()
	v.SetDefault("exposure.confirm_attempts", wait.Attempts)
	v.SetDefault("exposure.confirm_interval", wait.Interval.String())
	v.SetDefault("exposure.confirm_timeout", wait.Timeout.String())

	// Load from file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigParseError); ok {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
			// File not found is OK, we'll use defaults
		}
	}

	v.SetEnvPrefix("CLUSTERDEPLOY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// =============================================================================
// Logger Setup
// =============================================================================

// SetupLogger creates a logger with the configured level and format. The CLI
// logs to stderr so that stdout carries only the run's status lines.
func SetupLogger(cfg *Config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if strings.ToLower(cfg.Log.Format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}
