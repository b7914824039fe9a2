package exposure

import (
	"fmt"

	"github.com/samber/lo"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// IdleTimeoutMinutes is the idle timeout of every forwarding rule created.
const IdleTimeoutMinutes = 5

// LoadBalancerRuleName is the deterministic name of the forwarding rule for
// a port and protocol.
func LoadBalancerRuleName(protocol domain.Protocol, port int) string {
	return fmt.Sprintf("lb-rule-%s-%d", protocol, port)
}

// ProbeName is the deterministic name of the health probe for a port.
// Probes always use tcp, so one probe serves both protocols of a port.
func ProbeName(port int) string {
	return fmt.Sprintf("tcp-probe-%d", port)
}

// =============================================================================
// Load Balancer Plan
// =============================================================================

// LoadBalancerPlan is the outcome of comparing one load balancer with the
// desired ports.
type LoadBalancerPlan struct {
	LoadBalancer domain.LoadBalancer
	Covered      []domain.ServicePort
	NewProbes    []domain.Probe
	NewRules     []domain.LoadBalancerRule
}

// Changed reports whether the plan adds rules or probes.
func (p LoadBalancerPlan) Changed() bool {
	return len(p.NewRules) > 0 || len(p.NewProbes) > 0
}

// Desired returns the load balancer with the new probes and rules appended.
func (p LoadBalancerPlan) Desired() domain.LoadBalancer {
	lb := p.LoadBalancer
	lb.Probes = append(append([]domain.Probe{}, p.LoadBalancer.Probes...), p.NewProbes...)
	lb.Rules = append(append([]domain.LoadBalancerRule{}, p.LoadBalancer.Rules...), p.NewRules...)
	return lb
}

type frontendKey struct {
	port     int
	protocol domain.Protocol
}

// PlanLoadBalancer defines a probe and a forwarding rule for every desired
// port the load balancer does not forward yet. Existing rules are matched
// by frontend port and protocol. The load balancer must have exactly one
// frontend and one backend pool.
func PlanLoadBalancer(lb domain.LoadBalancer, ports []domain.ServicePort) (LoadBalancerPlan, error) {
	if len(lb.Backends) != 1 || len(lb.Frontends) != 1 {
		return LoadBalancerPlan{}, NewError("PlanLoadBalancer", lb.Name,
			fmt.Sprintf("expected exactly one backend pool and one frontend, found %d backend pools and %d frontends",
				len(lb.Backends), len(lb.Frontends)),
			domain.ErrInvalidConfig)
	}
	frontend := lb.Frontends[0].Name
	backend := lb.Backends[0].Name

	existing := lo.SliceToMap(lb.Rules, func(r domain.LoadBalancerRule) (frontendKey, struct{}) {
		return frontendKey{port: r.FrontendPort, protocol: r.Protocol}, struct{}{}
	})

	desired := lo.UniqBy(ports, func(p domain.ServicePort) frontendKey {
		return frontendKey{port: p.ExternalPort, protocol: p.Protocol}
	})
	domain.SortServicePorts(desired)

	plan := LoadBalancerPlan{LoadBalancer: lb}
	probes := make(map[string]struct{})
	for _, p := range lb.Probes {
		probes[p.Name] = struct{}{}
	}

	for _, port := range desired {
		if _, ok := existing[frontendKey{port: port.ExternalPort, protocol: port.Protocol}]; ok {
			plan.Covered = append(plan.Covered, port)
			continue
		}

		probe := ProbeName(port.ExternalPort)
		if _, ok := probes[probe]; !ok {
			plan.NewProbes = append(plan.NewProbes, domain.Probe{
				Name:     probe,
				Port:     port.ExternalPort,
				Protocol: domain.ProtocolTCP,
			})
			probes[probe] = struct{}{}
		}

		plan.NewRules = append(plan.NewRules, domain.LoadBalancerRule{
			Name:               LoadBalancerRuleName(port.Protocol, port.ExternalPort),
			FrontendPort:       port.ExternalPort,
			BackendPort:        port.ExternalPort,
			Protocol:           port.Protocol,
			FrontendRef:        frontend,
			BackendRef:         backend,
			ProbeRef:           probe,
			IdleTimeoutMinutes: IdleTimeoutMinutes,
			Distribution:       domain.DistributionDefault,
		})
	}
	return plan, nil
}
