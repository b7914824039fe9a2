package provider

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/digitalocean/godo"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/exposure"
	"github.com/artpar/clusterdeploy/internal/shell/network"
)

// DigitalOceanRemote implements network.Remote over DigitalOcean cloud
// firewalls and load balancers. Scope is a tag name.
type DigitalOceanRemote struct {
	client *godo.Client
	logger *slog.Logger
}

// NewDigitalOceanRemote creates a new DigitalOcean remote.
func NewDigitalOceanRemote(apiToken string, logger *slog.Logger) *DigitalOceanRemote {
	return &DigitalOceanRemote{
		client: godo.NewFromToken(apiToken),
		logger: logger.With("provider", "digitalocean"),
	}
}

// ListRuleGroups returns the cloud firewalls carrying the scope tag.
func (p *DigitalOceanRemote) ListRuleGroups(ctx context.Context, scope string) ([]domain.RuleGroup, error) {
	firewalls, err := p.listFirewalls(ctx)
	if err != nil {
		return nil, network.NewRemoteError("ListRuleGroups", "digitalocean", scope, err)
	}

	var groups []domain.RuleGroup
	for _, fw := range firewalls {
		if scope != "" && !slices.Contains(fw.Tags, scope) {
			continue
		}
		groups = append(groups, firewallToRuleGroup(fw))
	}
	return groups, nil
}

func (p *DigitalOceanRemote) listFirewalls(ctx context.Context) ([]godo.Firewall, error) {
	var all []godo.Firewall
	opt := &godo.ListOptions{PerPage: 100}
	for {
		firewalls, resp, err := p.client.Firewalls.List(ctx, opt)
		if err != nil {
			return nil, err
		}
		all = append(all, firewalls...)
		if resp == nil || resp.Links == nil || resp.Links.IsLastPage() {
			return all, nil
		}
		page, err := resp.Links.CurrentPage()
		if err != nil {
			return nil, err
		}
		opt.Page = page + 1
	}
}

// ListLoadBalancers returns the load balancers tagged with scope.
func (p *DigitalOceanRemote) ListLoadBalancers(ctx context.Context, scope string) ([]domain.LoadBalancer, error) {
	lbs, _, err := p.client.LoadBalancers.List(ctx, &godo.ListOptions{PerPage: 100})
	if err != nil {
		return nil, network.NewRemoteError("ListLoadBalancers", "digitalocean", scope, err)
	}

	var out []domain.LoadBalancer
	for _, lb := range lbs {
		if scope != "" && lb.Tag != scope {
			continue
		}
		out = append(out, doLoadBalancerToDomain(lb))
	}
	return out, nil
}

// ApplyRuleGroup adds the inbound rules the firewall lacks.
func (p *DigitalOceanRemote) ApplyRuleGroup(ctx context.Context, group domain.RuleGroup) error {
	fw, _, err := p.client.Firewalls.Get(ctx, group.ID)
	if err != nil {
		return network.NewRemoteError("ApplyRuleGroup", "digitalocean", group.Name, err)
	}

	var inbound []godo.InboundRule
	for _, r := range missingRules(group, firewallToRuleGroup(*fw)) {
		if !r.IsInboundAllow() {
			continue
		}
		for _, proto := range ruleProtocols(r.Protocol) {
			inbound = append(inbound, godo.InboundRule{
				Protocol:  proto,
				PortRange: doPortRange(r.Destination),
				Sources:   &godo.Sources{Addresses: []string{anyIPv4, "::/0"}},
			})
		}
	}
	if len(inbound) == 0 {
		return nil
	}

	if _, err := p.client.Firewalls.AddRules(ctx, group.ID, &godo.FirewallRulesRequest{InboundRules: inbound}); err != nil {
		return network.NewRemoteError("ApplyRuleGroup", "digitalocean", group.Name, err)
	}
	p.logger.Info("firewall rules added", "firewall_id", group.ID, "rules", len(inbound))
	return nil
}

// ApplyLoadBalancer adds the forwarding rules the load balancer lacks.
// DigitalOcean load balancers carry a single health check, so new probes
// are not created.
func (p *DigitalOceanRemote) ApplyLoadBalancer(ctx context.Context, lb domain.LoadBalancer) error {
	live, _, err := p.client.LoadBalancers.Get(ctx, lb.ID)
	if err != nil {
		return network.NewRemoteError("ApplyLoadBalancer", "digitalocean", lb.Name, err)
	}

	var rules []godo.ForwardingRule
	for _, r := range missingForwards(lb, doLoadBalancerToDomain(*live)) {
		rules = append(rules, godo.ForwardingRule{
			EntryProtocol:  string(r.Protocol),
			EntryPort:      r.FrontendPort,
			TargetProtocol: string(r.Protocol),
			TargetPort:     r.BackendPort,
		})
	}
	if len(rules) == 0 {
		return nil
	}

	if _, err := p.client.LoadBalancers.AddForwardingRules(ctx, lb.ID, rules...); err != nil {
		return network.NewRemoteError("ApplyLoadBalancer", "digitalocean", lb.Name, err)
	}
	p.logger.Info("forwarding rules added", "load_balancer_id", lb.ID, "rules", len(rules))
	return nil
}

func firewallToRuleGroup(fw godo.Firewall) domain.RuleGroup {
	group := domain.RuleGroup{ID: fw.ID, Name: fw.Name}
	add := func(protocol, portRange string, sources *godo.Sources, direction domain.Direction) {
		dest := doPortSpec(portRange)
		source := domain.AnySource
		if sources != nil && len(sources.Addresses) > 0 {
			source = listedSource(sources.Addresses[0])
		}
		group.Rules = append(group.Rules, domain.NetworkRule{
			Name:        listedRuleName(dest),
			Priority:    listedPriority(len(group.Rules)),
			Protocol:    protocol,
			Destination: dest,
			Source:      source,
			Access:      domain.AccessAllow,
			Direction:   direction,
		})
	}
	for _, r := range fw.InboundRules {
		add(r.Protocol, r.PortRange, r.Sources, domain.DirectionInbound)
	}
	for _, r := range fw.OutboundRules {
		add(r.Protocol, r.PortRange, nil, domain.DirectionOutbound)
	}
	return group
}

// doPortSpec maps a DigitalOcean port range ("80", "8000-9000", "all", "0").
func doPortSpec(portRange string) domain.PortSpec {
	switch strings.ToLower(portRange) {
	case "", "all", "0":
		return domain.AnyPort()
	}
	spec, err := domain.ParsePortSpec(portRange)
	if err != nil {
		// an out-of-range spec makes the planner reject the group
		return domain.PortSpec{Kind: domain.PortSpecRange, From: -1, To: -1}
	}
	return spec
}

func doPortRange(spec domain.PortSpec) string {
	if spec.Kind == domain.PortSpecWildcard {
		return "all"
	}
	return spec.String()
}

func doLoadBalancerToDomain(lb godo.LoadBalancer) domain.LoadBalancer {
	out := domain.LoadBalancer{
		ID:        lb.ID,
		Name:      lb.Name,
		Frontends: []domain.Frontend{{Name: "public", Address: lb.IP}},
		Backends:  []domain.Backend{{Name: "droplets"}},
	}
	if lb.HealthCheck != nil && lb.HealthCheck.Port > 0 {
		out.Probes = append(out.Probes, domain.Probe{
			Name:     exposure.ProbeName(lb.HealthCheck.Port),
			Port:     lb.HealthCheck.Port,
			Protocol: domain.ProtocolTCP,
		})
	}
	for _, fr := range lb.ForwardingRules {
		protocol := domain.Protocol(strings.ToLower(fr.EntryProtocol))
		out.Rules = append(out.Rules, domain.LoadBalancerRule{
			Name:               exposure.LoadBalancerRuleName(protocol, fr.EntryPort),
			FrontendPort:       fr.EntryPort,
			BackendPort:        fr.TargetPort,
			Protocol:           protocol,
			FrontendRef:        "public",
			BackendRef:         "droplets",
			IdleTimeoutMinutes: exposure.IdleTimeoutMinutes,
			Distribution:       domain.DistributionDefault,
		})
	}
	return out
}

var _ network.Remote = (*DigitalOceanRemote)(nil)
