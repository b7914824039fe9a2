package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/exposure"
	"github.com/artpar/clusterdeploy/internal/shell/network"
)

// HetznerScopeLabel is the label whose value places a firewall or load
// balancer in a scope.
const HetznerScopeLabel = "resource-group"

// HetznerRemote implements network.Remote over Hetzner Cloud firewalls and
// load balancers.
type HetznerRemote struct {
	client *hcloud.Client
	logger *slog.Logger
}

// NewHetznerRemote creates a new Hetzner Cloud remote.
func NewHetznerRemote(apiToken string, logger *slog.Logger) *HetznerRemote {
	return &HetznerRemote{
		client: hcloud.NewClient(hcloud.WithToken(apiToken)),
		logger: logger.With("provider", "hetzner"),
	}
}

func scopeListOpts(scope string) hcloud.ListOpts {
	opts := hcloud.ListOpts{PerPage: 50}
	if scope != "" {
		opts.LabelSelector = HetznerScopeLabel + "=" + scope
	}
	return opts
}

// ListRuleGroups returns the firewalls labelled with scope.
func (p *HetznerRemote) ListRuleGroups(ctx context.Context, scope string) ([]domain.RuleGroup, error) {
	firewalls, err := p.client.Firewall.AllWithOpts(ctx, hcloud.FirewallListOpts{ListOpts: scopeListOpts(scope)})
	if err != nil {
		return nil, network.NewRemoteError("ListRuleGroups", "hetzner", scope, err)
	}

	groups := make([]domain.RuleGroup, 0, len(firewalls))
	for _, fw := range firewalls {
		groups = append(groups, hcloudFirewallToRuleGroup(fw))
	}
	return groups, nil
}

// ListLoadBalancers returns the load balancers labelled with scope.
func (p *HetznerRemote) ListLoadBalancers(ctx context.Context, scope string) ([]domain.LoadBalancer, error) {
	lbs, err := p.client.LoadBalancer.AllWithOpts(ctx, hcloud.LoadBalancerListOpts{ListOpts: scopeListOpts(scope)})
	if err != nil {
		return nil, network.NewRemoteError("ListLoadBalancers", "hetzner", scope, err)
	}

	out := make([]domain.LoadBalancer, 0, len(lbs))
	for _, lb := range lbs {
		out = append(out, hcloudLoadBalancerToDomain(lb))
	}
	return out, nil
}

// ApplyRuleGroup appends the missing inbound rules and replaces the rule
// set in one call, then waits for the resulting actions.
func (p *HetznerRemote) ApplyRuleGroup(ctx context.Context, group domain.RuleGroup) error {
	fw, err := p.getFirewall(ctx, group)
	if err != nil {
		return network.NewRemoteError("ApplyRuleGroup", "hetzner", group.Name, err)
	}

	rules := append([]hcloud.FirewallRule{}, fw.Rules...)
	added := 0
	for _, r := range missingRules(group, hcloudFirewallToRuleGroup(fw)) {
		if !r.IsInboundAllow() {
			continue
		}
		for _, proto := range ruleProtocols(r.Protocol) {
			rules = append(rules, hcloud.FirewallRule{
				Direction:   hcloud.FirewallRuleDirectionIn,
				Protocol:    hcloud.FirewallRuleProtocol(proto),
				Port:        hcloud.Ptr(hcloudPort(r.Destination)),
				SourceIPs:   anySourceNets(),
				Description: hcloud.Ptr(r.Name),
			})
			added++
		}
	}
	if added == 0 {
		return nil
	}

	actions, _, err := p.client.Firewall.SetRules(ctx, fw, hcloud.FirewallSetRulesOpts{Rules: rules})
	if err != nil {
		return network.NewRemoteError("ApplyRuleGroup", "hetzner", group.Name, err)
	}
	if err := p.client.Action.WaitFor(ctx, actions...); err != nil {
		return network.NewRemoteError("ApplyRuleGroup", "hetzner", group.Name, err)
	}

	p.logger.Info("firewall rules set", "firewall_id", fw.ID, "added", added)
	return nil
}

func (p *HetznerRemote) getFirewall(ctx context.Context, group domain.RuleGroup) (*hcloud.Firewall, error) {
	id, err := strconv.ParseInt(group.ID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid firewall ID: %w", err)
	}
	fw, _, err := p.client.Firewall.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if fw == nil {
		return nil, fmt.Errorf("firewall %d not found", id)
	}
	return fw, nil
}

// SupportsForwarding reports whether Hetzner load balancers forward
// protocol. Services are TCP only.
func (p *HetznerRemote) SupportsForwarding(protocol domain.Protocol) bool {
	return protocol == domain.ProtocolTCP
}

var (
	_ network.Remote              = (*HetznerRemote)(nil)
	_ network.ForwardingProtocols = (*HetznerRemote)(nil)
)

// ApplyLoadBalancer adds one service per missing forwarding rule. Hetzner
// attaches the health check to the service, so each new probe travels with
// the rule that references it.
func (p *HetznerRemote) ApplyLoadBalancer(ctx context.Context, lb domain.LoadBalancer) error {
	id, err := strconv.ParseInt(lb.ID, 10, 64)
	if err != nil {
		return network.NewRemoteError("ApplyLoadBalancer", "hetzner", lb.Name, fmt.Errorf("invalid load balancer ID: %w", err))
	}
	live, _, err := p.client.LoadBalancer.GetByID(ctx, id)
	if err != nil {
		return network.NewRemoteError("ApplyLoadBalancer", "hetzner", lb.Name, err)
	}
	if live == nil {
		return network.NewRemoteError("ApplyLoadBalancer", "hetzner", lb.Name, fmt.Errorf("load balancer %d not found", id))
	}

	for _, r := range missingForwards(lb, hcloudLoadBalancerToDomain(live)) {
		if r.Protocol != domain.ProtocolTCP {
			return network.NewRemoteError("ApplyLoadBalancer", "hetzner", lb.Name,
				fmt.Errorf("%w: %s forwarding", network.ErrUnsupported, r.Protocol))
		}
		probePort := r.BackendPort
		for _, probe := range lb.Probes {
			if probe.Name == r.ProbeRef {
				probePort = probe.Port
			}
		}

		action, _, err := p.client.LoadBalancer.AddService(ctx, live, hcloud.LoadBalancerAddServiceOpts{
			Protocol:        hcloud.LoadBalancerServiceProtocolTCP,
			ListenPort:      hcloud.Ptr(r.FrontendPort),
			DestinationPort: hcloud.Ptr(r.BackendPort),
			HealthCheck: &hcloud.LoadBalancerAddServiceOptsHealthCheck{
				Protocol: hcloud.LoadBalancerServiceProtocolTCP,
				Port:     hcloud.Ptr(probePort),
				Interval: hcloud.Ptr(15 * time.Second),
				Timeout:  hcloud.Ptr(10 * time.Second),
				Retries:  hcloud.Ptr(3),
			},
		})
		if err != nil {
			return network.NewRemoteError("ApplyLoadBalancer", "hetzner", lb.Name, err)
		}
		if err := p.client.Action.WaitFor(ctx, action); err != nil {
			return network.NewRemoteError("ApplyLoadBalancer", "hetzner", lb.Name, err)
		}
		p.logger.Info("load balancer service added", "load_balancer_id", live.ID, "listen_port", r.FrontendPort)
	}
	return nil
}

func hcloudFirewallToRuleGroup(fw *hcloud.Firewall) domain.RuleGroup {
	group := domain.RuleGroup{ID: strconv.FormatInt(fw.ID, 10), Name: fw.Name}
	for _, r := range fw.Rules {
		dest := domain.AnyPort()
		if r.Port != nil && *r.Port != "any" {
			if spec, err := domain.ParsePortSpec(*r.Port); err == nil {
				dest = spec
			} else {
				dest = domain.PortSpec{Kind: domain.PortSpecRange, From: -1, To: -1}
			}
		}

		name := listedRuleName(dest)
		if r.Description != nil && *r.Description != "" {
			name = *r.Description
		}

		direction := domain.DirectionInbound
		source := domain.AnySource
		if r.Direction == hcloud.FirewallRuleDirectionOut {
			direction = domain.DirectionOutbound
		} else if len(r.SourceIPs) > 0 {
			source = listedSource(r.SourceIPs[0].String())
		}

		group.Rules = append(group.Rules, domain.NetworkRule{
			Name:        name,
			Priority:    listedPriority(len(group.Rules)),
			Protocol:    string(r.Protocol),
			Destination: dest,
			Source:      source,
			Access:      domain.AccessAllow,
			Direction:   direction,
		})
	}
	return group
}

func hcloudPort(spec domain.PortSpec) string {
	if spec.Kind == domain.PortSpecWildcard {
		return "any"
	}
	return spec.String()
}

func anySourceNets() []net.IPNet {
	_, v4, _ := net.ParseCIDR(anyIPv4)
	_, v6, _ := net.ParseCIDR("::/0")
	return []net.IPNet{*v4, *v6}
}

func hcloudLoadBalancerToDomain(lb *hcloud.LoadBalancer) domain.LoadBalancer {
	out := domain.LoadBalancer{
		ID:        strconv.FormatInt(lb.ID, 10),
		Name:      lb.Name,
		Frontends: []domain.Frontend{{Name: "public", Address: lb.PublicNet.IPv4.IP.String()}},
		Backends:  []domain.Backend{{Name: "targets"}},
	}
	for _, svc := range lb.Services {
		protocol := domain.ProtocolTCP
		probe := exposure.ProbeName(svc.HealthCheck.Port)
		if svc.HealthCheck.Port > 0 {
			out.Probes = append(out.Probes, domain.Probe{Name: probe, Port: svc.HealthCheck.Port, Protocol: domain.ProtocolTCP})
		}
		out.Rules = append(out.Rules, domain.LoadBalancerRule{
			Name:               exposure.LoadBalancerRuleName(protocol, svc.ListenPort),
			FrontendPort:       svc.ListenPort,
			BackendPort:        svc.DestinationPort,
			Protocol:           protocol,
			FrontendRef:        "public",
			BackendRef:         "targets",
			ProbeRef:           probe,
			IdleTimeoutMinutes: exposure.IdleTimeoutMinutes,
			Distribution:       domain.DistributionDefault,
		})
	}
	return out
}
