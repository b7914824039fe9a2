package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/docker/go-connections/nat"
)

var ErrInvalidPortSpec = errors.New("invalid port specification")

// =============================================================================
// Port Spec
// =============================================================================

// PortSpecKind tells how a firewall rule names its destination ports.
type PortSpecKind string

const (
	PortSpecExact    PortSpecKind = "exact"
	PortSpecRange    PortSpecKind = "range"
	PortSpecWildcard PortSpecKind = "wildcard"
)

// Wildcard is the textual form of a rule that matches every port.
const Wildcard = "*"

// PortSpec is the destination port specification of a firewall rule.
type PortSpec struct {
	Kind PortSpecKind `json:"kind"`
	From int          `json:"from,omitempty"`
	To   int          `json:"to,omitempty"`
}

// ExactPort returns a spec that matches a single port.
func ExactPort(port int) PortSpec {
	return PortSpec{Kind: PortSpecExact, From: port, To: port}
}

// PortRange returns a spec that matches from..to inclusive.
func PortRange(from, to int) PortSpec {
	if from == to {
		return ExactPort(from)
	}
	return PortSpec{Kind: PortSpecRange, From: from, To: to}
}

// AnyPort returns the wildcard spec.
func AnyPort() PortSpec {
	return PortSpec{Kind: PortSpecWildcard}
}

// ParsePortSpec parses "*", "8080" or "8000-8100".
func ParsePortSpec(value string) (PortSpec, error) {
	value = strings.TrimSpace(value)
	if value == Wildcard {
		return AnyPort(), nil
	}
	start, end, err := nat.ParsePortRange(value)
	if err != nil {
		return PortSpec{}, fmt.Errorf("%w: %q: %v", ErrInvalidPortSpec, value, err)
	}
	return PortRange(int(start), int(end)), nil
}

// Covers reports whether port falls inside the spec.
func (s PortSpec) Covers(port int) bool {
	switch s.Kind {
	case PortSpecWildcard:
		return true
	case PortSpecExact:
		return s.From == port
	case PortSpecRange:
		return port >= s.From && port <= s.To
	default:
		return false
	}
}

func (s PortSpec) String() string {
	switch s.Kind {
	case PortSpecWildcard:
		return Wildcard
	case PortSpecRange:
		return fmt.Sprintf("%d-%d", s.From, s.To)
	default:
		return fmt.Sprintf("%d", s.From)
	}
}

// =============================================================================
// Firewall Rules
// =============================================================================

// Access is the verdict of a firewall rule.
type Access string

const (
	AccessAllow Access = "allow"
	AccessDeny  Access = "deny"
)

// Direction is the traffic direction a firewall rule applies to.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// AnySource is the source address of a rule open to every client.
const AnySource = "Internet"

// NetworkRule is one rule of a remote firewall rule group. Within a group
// priorities are unique and lower values are evaluated first.
type NetworkRule struct {
	Name        string    `json:"name"`
	Priority    int       `json:"priority"`
	Protocol    string    `json:"protocol"` // tcp, udp or "*"
	Destination PortSpec  `json:"destination"`
	Source      string    `json:"source"`
	Access      Access    `json:"access"`
	Direction   Direction `json:"direction"`
	Description string    `json:"description,omitempty"`
}

// IsInboundAllow reports whether the rule admits incoming traffic.
func (r NetworkRule) IsInboundAllow() bool {
	return r.Direction == DirectionInbound && r.Access == AccessAllow
}

// RuleGroup is a named set of firewall rules (a security group or network
// security group on the remote platform).
type RuleGroup struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Rules []NetworkRule `json:"rules"`
}

// HasRule reports whether the group holds a rule with the given name.
func (g RuleGroup) HasRule(name string) bool {
	for _, r := range g.Rules {
		if r.Name == name {
			return true
		}
	}
	return false
}

// =============================================================================
// Load Balancers
// =============================================================================

// LoadDistribution is the session affinity mode of a forwarding rule.
type LoadDistribution string

const (
	DistributionDefault  LoadDistribution = "default"
	DistributionSourceIP LoadDistribution = "source_ip"
)

// Frontend is a frontend IP configuration of a load balancer.
type Frontend struct {
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
}

// Backend is a backend address pool of a load balancer.
type Backend struct {
	Name string `json:"name"`
}

// Probe is a health probe of a load balancer.
type Probe struct {
	Name     string   `json:"name"`
	Port     int      `json:"port"`
	Protocol Protocol `json:"protocol"`
}

// LoadBalancerRule forwards one frontend port to the backend pool.
type LoadBalancerRule struct {
	Name               string           `json:"name"`
	FrontendPort       int              `json:"frontend_port"`
	BackendPort        int              `json:"backend_port"`
	Protocol           Protocol         `json:"protocol"`
	FrontendRef        string           `json:"frontend_ref"`
	BackendRef         string           `json:"backend_ref"`
	ProbeRef           string           `json:"probe_ref"`
	IdleTimeoutMinutes int              `json:"idle_timeout_minutes"`
	Distribution       LoadDistribution `json:"distribution"`
}

// LoadBalancer is a remote load balancer configuration.
type LoadBalancer struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Frontends []Frontend         `json:"frontends"`
	Backends  []Backend          `json:"backends"`
	Rules     []LoadBalancerRule `json:"rules"`
	Probes    []Probe            `json:"probes"`
}

// HasRule reports whether the load balancer holds a rule with the given name.
func (lb LoadBalancer) HasRule(name string) bool {
	for _, r := range lb.Rules {
		if r.Name == name {
			return true
		}
	}
	return false
}

// FindProbe returns the probe with the given name.
func (lb LoadBalancer) FindProbe(name string) (Probe, bool) {
	for _, p := range lb.Probes {
		if p.Name == name {
			return p, true
		}
	}
	return Probe{}, false
}
