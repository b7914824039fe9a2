// Package provider implements network.Remote for the supported cloud platforms.
// This is part of the Imperative Shell - handles I/O with cloud APIs.
package provider

import (
	"fmt"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/exposure"
)

// anyIPv4 is the CIDR of a rule open to every client.
const anyIPv4 = "0.0.0.0/0"

// Cloud firewalls have no rule priorities. Listed rules get ascending
// priorities in listing order so the planner sees a stable ordering.
func listedPriority(index int) int {
	return exposure.MinPriority + index*exposure.PriorityStep
}

// listedRuleName names a rule the platform stores without a name.
func listedRuleName(dest domain.PortSpec) string {
	switch dest.Kind {
	case domain.PortSpecExact:
		return exposure.RuleName(dest.From)
	case domain.PortSpecRange:
		return fmt.Sprintf("allow-ports-%d-%d", dest.From, dest.To)
	default:
		return "allow-all"
	}
}

// listedSource maps a CIDR onto the rule source vocabulary.
func listedSource(cidr string) string {
	if cidr == anyIPv4 || cidr == "::/0" {
		return domain.AnySource
	}
	return cidr
}

// ruleProtocols expands the any-protocol wildcard into the transport
// protocols a port can be opened for.
func ruleProtocols(protocol string) []string {
	if protocol == domain.Wildcard || protocol == "" {
		return []string{string(domain.ProtocolTCP), string(domain.ProtocolUDP)}
	}
	return []string{protocol}
}

// missingRules returns the rules of desired whose names are not in live.
func missingRules(desired domain.RuleGroup, live domain.RuleGroup) []domain.NetworkRule {
	var out []domain.NetworkRule
	for _, r := range desired.Rules {
		if !live.HasRule(r.Name) {
			out = append(out, r)
		}
	}
	return out
}

// missingForwards returns the rules of desired that live does not forward.
func missingForwards(desired domain.LoadBalancer, live domain.LoadBalancer) []domain.LoadBalancerRule {
	var out []domain.LoadBalancerRule
	for _, r := range desired.Rules {
		found := false
		for _, l := range live.Rules {
			if l.FrontendPort == r.FrontendPort && l.Protocol == r.Protocol {
				found = true
				break
			}
		}
		if !found {
			out = append(out, r)
		}
	}
	return out
}
