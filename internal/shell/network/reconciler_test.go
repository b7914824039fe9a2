package network

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

const testScope = "rg-demo"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastWait() WaitConfig {
	return WaitConfig{Attempts: 5, Interval: time.Millisecond, Timeout: time.Second}
}

func tcpPort(port int) domain.ServicePort {
	return domain.ServicePort{ExternalPort: port, InternalPort: port, Protocol: domain.ProtocolTCP}
}

func agentGroup(rules ...domain.NetworkRule) domain.RuleGroup {
	return domain.RuleGroup{ID: "nsg-1", Name: "swarm-agent-public-nsg-4F2A", Rules: rules}
}

func agentLoadBalancer() domain.LoadBalancer {
	return domain.LoadBalancer{
		ID:        "lb-1",
		Name:      "swarm-agent-lb-4F2A",
		Frontends: []domain.Frontend{{Name: "agent-frontend"}},
		Backends:  []domain.Backend{{Name: "agent-pool"}},
	}
}

func allowRule(name string, priority int, dest domain.PortSpec) domain.NetworkRule {
	return domain.NetworkRule{
		Name:        name,
		Priority:    priority,
		Protocol:    domain.Wildcard,
		Destination: dest,
		Source:      domain.AnySource,
		Access:      domain.AccessAllow,
		Direction:   domain.DirectionInbound,
	}
}

func swarmTarget() Target {
	return AgentTarget(testScope, domain.OrchestratorSwarm)
}

// =============================================================================
// Reconcile Tests
// =============================================================================

func TestReconcile_AddsMissingRulesAfterHighestPriority(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup(allowRule("web", 20, domain.ExactPort(8080))))
	remote.AddLoadBalancer(testScope, agentLoadBalancer())

	r := NewReconciler(remote, fastWait(), testLogger())
	plan, err := r.Reconcile(context.Background(), swarmTarget(),
		[]domain.ServicePort{tcpPort(8080), tcpPort(8081), tcpPort(8082)})
	require.NoError(t, err)
	require.NotNil(t, plan.Firewall)
	assert.Equal(t, []int{8080}, plan.Firewall.Covered)

	group, ok := remote.RuleGroup("nsg-1")
	require.True(t, ok)
	require.Len(t, group.Rules, 3)
	assert.Equal(t, "allow-port-8081", group.Rules[1].Name)
	assert.Equal(t, 30, group.Rules[1].Priority)
	assert.Equal(t, "allow-port-8082", group.Rules[2].Name)
	assert.Equal(t, 40, group.Rules[2].Priority)

	lb, ok := remote.LoadBalancer("lb-1")
	require.True(t, ok)
	assert.Len(t, lb.Rules, 3)
	assert.Len(t, lb.Probes, 3)

	groups, lbs := remote.ApplyCalls()
	assert.Equal(t, 1, groups)
	assert.Equal(t, 1, lbs)
}

func TestReconcile_SecondRunAppliesNothing(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup())
	remote.AddLoadBalancer(testScope, agentLoadBalancer())
	r := NewReconciler(remote, fastWait(), testLogger())
	ports := []domain.ServicePort{tcpPort(80), tcpPort(443)}

	_, err := r.Reconcile(context.Background(), swarmTarget(), ports)
	require.NoError(t, err)

	plan, err := r.Reconcile(context.Background(), swarmTarget(), ports)
	require.NoError(t, err)
	assert.False(t, plan.Changed())

	groups, lbs := remote.ApplyCalls()
	assert.Equal(t, 1, groups)
	assert.Equal(t, 1, lbs)
}

func TestReconcile_TwoBackendPoolsAppliesNothing(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup())
	lb := agentLoadBalancer()
	lb.Backends = append(lb.Backends, domain.Backend{Name: "second-pool"})
	remote.AddLoadBalancer(testScope, lb)

	r := NewReconciler(remote, fastWait(), testLogger())
	_, err := r.Reconcile(context.Background(), swarmTarget(), []domain.ServicePort{tcpPort(80)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	groups, lbs := remote.ApplyCalls()
	assert.Zero(t, groups)
	assert.Zero(t, lbs)
}

func TestReconcile_UnsupportedForwardingAppliesNothing(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup())
	remote.AddLoadBalancer(testScope, agentLoadBalancer())
	remote.RestrictForwarding(domain.ProtocolTCP)

	r := NewReconciler(remote, fastWait(), testLogger())
	udp := domain.ServicePort{ExternalPort: 53, InternalPort: 53, Protocol: domain.ProtocolUDP}
	_, err := r.Reconcile(context.Background(), swarmTarget(), []domain.ServicePort{tcpPort(80), udp})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnsupported)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "port 53")

	groups, lbs := remote.ApplyCalls()
	assert.Zero(t, groups)
	assert.Zero(t, lbs)
}

func TestReconcile_RestrictedForwardingAcceptsSupportedProtocol(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup())
	remote.AddLoadBalancer(testScope, agentLoadBalancer())
	remote.RestrictForwarding(domain.ProtocolTCP)

	r := NewReconciler(remote, fastWait(), testLogger())
	_, err := r.Reconcile(context.Background(), swarmTarget(), []domain.ServicePort{tcpPort(80)})
	require.NoError(t, err)

	groups, lbs := remote.ApplyCalls()
	assert.Equal(t, 1, groups)
	assert.Equal(t, 1, lbs)
}

func TestReconcile_QuotaExceededAppliesNothing(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup(allowRule("last", 4090, domain.ExactPort(22))))

	r := NewReconciler(remote, fastWait(), testLogger())
	_, err := r.Reconcile(context.Background(), swarmTarget(), []domain.ServicePort{tcpPort(80)})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)

	groups, _ := remote.ApplyCalls()
	assert.Zero(t, groups)
}

func TestReconcile_WildcardRuleCoversEverything(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup(allowRule("any", 100, domain.AnyPort())))

	r := NewReconciler(remote, fastWait(), testLogger())
	plan, err := r.Reconcile(context.Background(), swarmTarget(), []domain.ServicePort{tcpPort(80), tcpPort(9000)})
	require.NoError(t, err)
	assert.False(t, plan.Firewall.Changed())

	groups, _ := remote.ApplyCalls()
	assert.Zero(t, groups)
}

func TestReconcile_EmptyPortsMakesNoCalls(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup())

	r := NewReconciler(remote, fastWait(), testLogger())
	plan, err := r.Reconcile(context.Background(), swarmTarget(), nil)
	require.NoError(t, err)
	assert.False(t, plan.Changed())
	assert.Zero(t, remote.ListCalls())
}

func TestReconcile_MissingResourcesAreSkipped(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, domain.RuleGroup{ID: "other", Name: "dcos-agent-public-nsg-1"})

	r := NewReconciler(remote, fastWait(), testLogger())
	plan, err := r.Reconcile(context.Background(), swarmTarget(), []domain.ServicePort{tcpPort(80)})
	require.NoError(t, err)
	assert.Nil(t, plan.Firewall)
	assert.Nil(t, plan.LoadBalancer)

	groups, lbs := remote.ApplyCalls()
	assert.Zero(t, groups)
	assert.Zero(t, lbs)
}

func TestReconcile_ScopeLimitsListing(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup("another-rg", agentGroup())

	r := NewReconciler(remote, fastWait(), testLogger())
	plan, err := r.Plan(context.Background(), swarmTarget(), []domain.ServicePort{tcpPort(80)})
	require.NoError(t, err)
	assert.Nil(t, plan.Firewall)
}

// =============================================================================
// Confirmation Tests
// =============================================================================

func TestReconcile_WaitsForLaggingListing(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup())
	remote.SetLag(2)

	r := NewReconciler(remote, fastWait(), testLogger())
	_, err := r.Reconcile(context.Background(), swarmTarget(), []domain.ServicePort{tcpPort(80)})
	require.NoError(t, err)
	// initial listing pair, then three confirmation listings
	assert.Equal(t, 5, remote.ListCalls())
}

func TestReconcile_ZeroIntervalStillConfirms(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup())
	remote.SetLag(2)

	r := NewReconciler(remote, WaitConfig{Attempts: 5, Timeout: time.Second}, testLogger())
	_, err := r.Reconcile(context.Background(), swarmTarget(), []domain.ServicePort{tcpPort(80)})
	require.NoError(t, err)
	assert.Equal(t, 5, remote.ListCalls())
}

func TestReconcile_ConfirmationGivesUp(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup())
	remote.SetLag(100)

	r := NewReconciler(remote, WaitConfig{Attempts: 3, Interval: time.Millisecond, Timeout: time.Second}, testLogger())
	_, err := r.Reconcile(context.Background(), swarmTarget(), []domain.ServicePort{tcpPort(80)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteState)
	assert.NotErrorIs(t, err, domain.ErrCancelled)
}

// cancellingRemote cancels the run as soon as a rule group is applied.
type cancellingRemote struct {
	*MemoryRemote
	cancel context.CancelFunc
}

func (c *cancellingRemote) ApplyRuleGroup(ctx context.Context, group domain.RuleGroup) error {
	err := c.MemoryRemote.ApplyRuleGroup(ctx, group)
	c.cancel()
	return err
}

func TestReconcile_CancelledWhileConfirming(t *testing.T) {
	memory := NewMemoryRemote()
	memory.AddRuleGroup(testScope, agentGroup())
	memory.SetLag(100)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	remote := &cancellingRemote{MemoryRemote: memory, cancel: cancel}

	r := NewReconciler(remote, DefaultWaitConfig(), testLogger())
	_, err := r.Reconcile(ctx, swarmTarget(), []domain.ServicePort{tcpPort(80)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestReconcile_CancelledBeforeListing(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewReconciler(remote, fastWait(), testLogger())
	_, err := r.Reconcile(ctx, swarmTarget(), []domain.ServicePort{tcpPort(80)})
	assert.ErrorIs(t, err, domain.ErrCancelled)
}

func TestReconcile_ApplyFailureIsRemoteState(t *testing.T) {
	remote := NewMemoryRemote()
	remote.AddRuleGroup(testScope, agentGroup())
	remote.FailApplies(errors.New("conflict"))

	r := NewReconciler(remote, fastWait(), testLogger())
	_, err := r.Reconcile(context.Background(), swarmTarget(), []domain.ServicePort{tcpPort(80)})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRemoteState)

	var re *RemoteError
	require.True(t, errors.As(err, &re))
	assert.Equal(t, "ApplyRuleGroup", re.Op)
	assert.Contains(t, err.Error(), "conflict")
}
