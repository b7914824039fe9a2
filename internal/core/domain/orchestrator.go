package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnsupportedOrchestrator = errors.New("unsupported orchestrator: must be kubernetes, dcos or swarm")

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator is the container platform running on the target cluster.
type Orchestrator string

const (
	OrchestratorKubernetes Orchestrator = "kubernetes"
	OrchestratorDCOS       Orchestrator = "dcos"
	OrchestratorSwarm      Orchestrator = "swarm"
)

// ParseOrchestrator accepts the orchestrator name in any case.
func ParseOrchestrator(value string) (Orchestrator, error) {
	o := Orchestrator(strings.ToLower(strings.TrimSpace(value)))
	if !o.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOrchestrator, value)
	}
	return o, nil
}

// IsValid checks if the orchestrator is supported.
func (o Orchestrator) IsValid() bool {
	switch o {
	case OrchestratorKubernetes, OrchestratorDCOS, OrchestratorSwarm:
		return true
	default:
		return false
	}
}

// ResourcePrefix is the prefix of agent resource names the platform creates
// for a cluster of this orchestrator.
func (o Orchestrator) ResourcePrefix() string {
	switch o {
	case OrchestratorKubernetes:
		return "k8s"
	default:
		return string(o)
	}
}

// SSHPort is the port of the master SSH endpoint.
func (o Orchestrator) SSHPort() int {
	if o == OrchestratorKubernetes {
		return 22
	}
	return 2200
}

// ManagesExposure reports whether the platform opens service ports itself,
// so no firewall or load balancer changes are needed.
func (o Orchestrator) ManagesExposure() bool {
	return o == OrchestratorKubernetes
}

// AgentRuleGroupPrefix is the name prefix of the public agent rule group.
func (o Orchestrator) AgentRuleGroupPrefix() string {
	return o.ResourcePrefix() + "-agent-public-nsg-"
}

// AgentLoadBalancerPrefix is the name prefix of the public agent load balancer.
func (o Orchestrator) AgentLoadBalancerPrefix() string {
	return o.ResourcePrefix() + "-agent-lb-"
}

// =============================================================================
// Cluster
// =============================================================================

// Cluster describes a container service cluster as reported by the platform.
type Cluster struct {
	ResourceGroup string       `json:"resource_group" mapstructure:"resource_group"`
	Name          string       `json:"name" mapstructure:"name"`
	Orchestrator  Orchestrator `json:"orchestrator" mapstructure:"orchestrator"`
	MasterFQDN    string       `json:"master_fqdn" mapstructure:"master_fqdn"`
	AdminUser     string       `json:"admin_user" mapstructure:"admin_user"`
	Location      string       `json:"location,omitempty" mapstructure:"location"`
}
