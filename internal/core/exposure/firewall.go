package exposure

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// =============================================================================
// Firewall Constants
// =============================================================================

const (
	// PriorityStep is added to the highest observed priority for each new rule.
	PriorityStep = 10

	// MinPriority is the priority of the first rule in an empty group.
	MinPriority = 100

	// MaxPriority is the largest priority the platform accepts.
	MaxPriority = 4096

	// RuleDescription is attached to every rule the reconciler creates.
	RuleDescription = "allow traffic"
)

// RuleName is the deterministic name of the rule that opens port.
func RuleName(port int) string {
	return fmt.Sprintf("allow-port-%d", port)
}

// =============================================================================
// Firewall Plan
// =============================================================================

// FirewallPlan is the outcome of comparing one rule group with the desired
// ports.
type FirewallPlan struct {
	Group       domain.RuleGroup
	Covered     []int // desired ports an existing rule already opens
	NewRules    []domain.NetworkRule
	MaxPriority int // highest priority observed before allocation
}

// Changed reports whether the plan adds rules.
func (p FirewallPlan) Changed() bool {
	return len(p.NewRules) > 0
}

// NewRulePorts lists the ports the new rules open.
func (p FirewallPlan) NewRulePorts() []int {
	return lo.Map(p.NewRules, func(r domain.NetworkRule, _ int) int {
		return r.Destination.From
	})
}

// Desired returns the group with the new rules appended.
func (p FirewallPlan) Desired() domain.RuleGroup {
	group := p.Group
	group.Rules = append(append([]domain.NetworkRule{}, p.Group.Rules...), p.NewRules...)
	return group
}

// PlanFirewall removes the ports inbound allow rules already cover and
// allocates one inbound allow rule for every remaining port. Each new rule
// takes the highest priority seen so far plus PriorityStep, so priorities
// are unique and strictly increasing in port order.
func PlanFirewall(group domain.RuleGroup, ports []int) (FirewallPlan, error) {
	plan := FirewallPlan{Group: group}

	remaining := make(map[int]struct{}, len(ports))
	for _, p := range ports {
		remaining[p] = struct{}{}
	}

	maxPriority := MinPriority - PriorityStep
	for i, rule := range group.Rules {
		if i == 0 || rule.Priority > maxPriority {
			maxPriority = rule.Priority
		}
		if !rule.IsInboundAllow() {
			continue
		}
		if err := validateDestination(rule.Destination); err != nil {
			return FirewallPlan{}, NewError("PlanFirewall", group.Name,
				fmt.Sprintf("rule %s has an unusable destination port %q", rule.Name, rule.Destination.String()), err)
		}
		for port := range remaining {
			if rule.Destination.Covers(port) {
				plan.Covered = append(plan.Covered, port)
				delete(remaining, port)
			}
		}
	}
	plan.MaxPriority = maxPriority
	sort.Ints(plan.Covered)

	open := lo.Keys(remaining)
	sort.Ints(open)

	taken := lo.SliceToMap(group.Rules, func(r domain.NetworkRule) (string, struct{}) {
		return r.Name, struct{}{}
	})
	priority := maxPriority
	for _, port := range open {
		priority += PriorityStep
		if priority > MaxPriority {
			return FirewallPlan{}, NewError("PlanFirewall", group.Name,
				fmt.Sprintf("priority %d for port %d exceeds the maximum %d", priority, port, MaxPriority), domain.ErrQuotaExceeded)
		}
		name := RuleName(port)
		if _, exists := taken[name]; exists {
			name = fmt.Sprintf("%s-%d", name, priority)
		}
		plan.NewRules = append(plan.NewRules, domain.NetworkRule{
			Name:        name,
			Priority:    priority,
			Protocol:    domain.Wildcard,
			Destination: domain.ExactPort(port),
			Source:      domain.AnySource,
			Access:      domain.AccessAllow,
			Direction:   domain.DirectionInbound,
			Description: RuleDescription,
		})
	}
	return plan, nil
}

func validateDestination(spec domain.PortSpec) error {
	switch spec.Kind {
	case domain.PortSpecWildcard:
		return nil
	case domain.PortSpecExact, domain.PortSpecRange:
		if spec.From > spec.To || domain.ValidatePort(spec.From) != nil || domain.ValidatePort(spec.To) != nil {
			return domain.ErrInvalidConfig
		}
		return nil
	default:
		return domain.ErrInvalidConfig
	}
}
