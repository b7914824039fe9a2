package exposure

import (
	"fmt"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// Plan bundles the firewall and load balancer plans of one reconciliation.
// Either part is nil when the matching resource was not found.
type Plan struct {
	Ports        []domain.ServicePort
	Firewall     *FirewallPlan
	LoadBalancer *LoadBalancerPlan
}

// Changed reports whether applying the plan mutates anything.
func (p Plan) Changed() bool {
	return (p.Firewall != nil && p.Firewall.Changed()) ||
		(p.LoadBalancer != nil && p.LoadBalancer.Changed())
}

// Describe renders the planned changes one per line.
func (p Plan) Describe() []string {
	var lines []string
	if p.Firewall != nil {
		for _, r := range p.Firewall.NewRules {
			lines = append(lines, fmt.Sprintf("+ rule %s on %s: %s %s port %s priority %d",
				r.Name, p.Firewall.Group.Name, r.Direction, r.Access, r.Destination, r.Priority))
		}
	}
	if p.LoadBalancer != nil {
		for _, pr := range p.LoadBalancer.NewProbes {
			lines = append(lines, fmt.Sprintf("+ probe %s on %s: %s port %d",
				pr.Name, p.LoadBalancer.LoadBalancer.Name, pr.Protocol, pr.Port))
		}
		for _, r := range p.LoadBalancer.NewRules {
			lines = append(lines, fmt.Sprintf("+ lb rule %s on %s: %s %d -> %d",
				r.Name, p.LoadBalancer.LoadBalancer.Name, r.Protocol, r.FrontendPort, r.BackendPort))
		}
	}
	return lines
}
