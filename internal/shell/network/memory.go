package network

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

type scopedGroup struct {
	scope string
	group domain.RuleGroup
}

type scopedLoadBalancer struct {
	scope string
	lb    domain.LoadBalancer
}

// MemoryRemote is an in-process Remote. Applied changes become visible to
// listings only after Lag further list calls, which mimics the eventual
// consistency of real control planes.
type MemoryRemote struct {
	mu sync.Mutex

	groups        []scopedGroup
	loadBalancers []scopedLoadBalancer

	stagedGroups        []scopedGroup
	stagedLoadBalancers []scopedLoadBalancer
	pendingLists        int

	lag        int
	applyErr   error
	listCalls  int
	groupCalls int
	lbCalls    int
	forwarding map[domain.Protocol]bool
}

// NewMemoryRemote creates an empty in-memory remote.
func NewMemoryRemote() *MemoryRemote {
	return &MemoryRemote{}
}

// SetLag sets how many list calls keep returning the state from before an apply.
func (m *MemoryRemote) SetLag(lag int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lag = lag
}

// FailApplies makes every subsequent apply return err.
func (m *MemoryRemote) FailApplies(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyErr = err
}

// RestrictForwarding limits load balancer forwarding to the given
// protocols. By default every protocol is forwarded.
func (m *MemoryRemote) RestrictForwarding(protocols ...domain.Protocol) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.forwarding = make(map[domain.Protocol]bool, len(protocols))
	for _, p := range protocols {
		m.forwarding[p] = true
	}
}

// SupportsForwarding reports whether load balancers forward protocol.
func (m *MemoryRemote) SupportsForwarding(protocol domain.Protocol) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.forwarding == nil || m.forwarding[protocol]
}

// AddRuleGroup seeds a rule group in scope.
func (m *MemoryRemote) AddRuleGroup(scope string, group domain.RuleGroup) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settle()
	m.groups = append(m.groups, scopedGroup{scope: scope, group: cloneGroup(group)})
}

// AddLoadBalancer seeds a load balancer in scope.
func (m *MemoryRemote) AddLoadBalancer(scope string, lb domain.LoadBalancer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settle()
	m.loadBalancers = append(m.loadBalancers, scopedLoadBalancer{scope: scope, lb: cloneLoadBalancer(lb)})
}

// RuleGroup returns the latest applied state of a group regardless of lag.
func (m *MemoryRemote) RuleGroup(id string) (domain.RuleGroup, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, g := range m.latestGroups() {
		if g.group.ID == id {
			return cloneGroup(g.group), true
		}
	}
	return domain.RuleGroup{}, false
}

// LoadBalancer returns the latest applied state of a load balancer regardless of lag.
func (m *MemoryRemote) LoadBalancer(id string) (domain.LoadBalancer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.latestLoadBalancers() {
		if l.lb.ID == id {
			return cloneLoadBalancer(l.lb), true
		}
	}
	return domain.LoadBalancer{}, false
}

// ListCalls returns the number of list calls made so far.
func (m *MemoryRemote) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls
}

// ApplyCalls returns the number of rule group and load balancer applies.
func (m *MemoryRemote) ApplyCalls() (groups, loadBalancers int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.groupCalls, m.lbCalls
}

// ListRuleGroups implements Remote.
func (m *MemoryRemote) ListRuleGroups(ctx context.Context, scope string) ([]domain.RuleGroup, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	m.tick()

	var out []domain.RuleGroup
	for _, g := range m.groups {
		if scope == "" || g.scope == scope {
			out = append(out, cloneGroup(g.group))
		}
	}
	return out, nil
}

// ListLoadBalancers implements Remote.
func (m *MemoryRemote) ListLoadBalancers(ctx context.Context, scope string) ([]domain.LoadBalancer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	m.tick()

	var out []domain.LoadBalancer
	for _, l := range m.loadBalancers {
		if scope == "" || l.scope == scope {
			out = append(out, cloneLoadBalancer(l.lb))
		}
	}
	return out, nil
}

// ApplyRuleGroup implements Remote.
func (m *MemoryRemote) ApplyRuleGroup(ctx context.Context, group domain.RuleGroup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groupCalls++
	if m.applyErr != nil {
		return NewRemoteError("ApplyRuleGroup", "memory", group.Name, m.applyErr)
	}

	next := slices.Clone(m.latestGroups())
	idx := slices.IndexFunc(next, func(g scopedGroup) bool { return g.group.ID == group.ID })
	if idx < 0 {
		return NewRemoteError("ApplyRuleGroup", "memory", group.Name, fmt.Errorf("rule group %s not found", group.ID))
	}
	next[idx].group = cloneGroup(group)
	m.stage(next, m.latestLoadBalancers())
	return nil
}

// ApplyLoadBalancer implements Remote.
func (m *MemoryRemote) ApplyLoadBalancer(ctx context.Context, lb domain.LoadBalancer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lbCalls++
	if m.applyErr != nil {
		return NewRemoteError("ApplyLoadBalancer", "memory", lb.Name, m.applyErr)
	}

	next := slices.Clone(m.latestLoadBalancers())
	idx := slices.IndexFunc(next, func(l scopedLoadBalancer) bool { return l.lb.ID == lb.ID })
	if idx < 0 {
		return NewRemoteError("ApplyLoadBalancer", "memory", lb.Name, fmt.Errorf("load balancer %s not found", lb.ID))
	}
	next[idx].lb = cloneLoadBalancer(lb)
	m.stage(m.latestGroups(), next)
	return nil
}

// stage records the post-apply state; listings see it after lag list calls.
func (m *MemoryRemote) stage(groups []scopedGroup, lbs []scopedLoadBalancer) {
	m.stagedGroups = groups
	m.stagedLoadBalancers = lbs
	m.pendingLists = m.lag
	if m.pendingLists == 0 {
		m.settle()
	}
}

func (m *MemoryRemote) tick() {
	if m.stagedGroups == nil && m.stagedLoadBalancers == nil {
		return
	}
	if m.pendingLists > 0 {
		m.pendingLists--
		return
	}
	m.settle()
}

func (m *MemoryRemote) settle() {
	if m.stagedGroups != nil {
		m.groups = m.stagedGroups
	}
	if m.stagedLoadBalancers != nil {
		m.loadBalancers = m.stagedLoadBalancers
	}
	m.stagedGroups = nil
	m.stagedLoadBalancers = nil
	m.pendingLists = 0
}

func (m *MemoryRemote) latestGroups() []scopedGroup {
	if m.stagedGroups != nil {
		return m.stagedGroups
	}
	return m.groups
}

func (m *MemoryRemote) latestLoadBalancers() []scopedLoadBalancer {
	if m.stagedLoadBalancers != nil {
		return m.stagedLoadBalancers
	}
	return m.loadBalancers
}

func cloneGroup(g domain.RuleGroup) domain.RuleGroup {
	g.Rules = slices.Clone(g.Rules)
	return g
}

func cloneLoadBalancer(lb domain.LoadBalancer) domain.LoadBalancer {
	lb.Frontends = slices.Clone(lb.Frontends)
	lb.Backends = slices.Clone(lb.Backends)
	lb.Rules = slices.Clone(lb.Rules)
	lb.Probes = slices.Clone(lb.Probes)
	return lb
}
