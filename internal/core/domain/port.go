package domain

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/go-connections/nat"
)

// =============================================================================
// Port Errors
// =============================================================================

var (
	ErrPortOutOfRange      = errors.New("port must be between 0 and 65535")
	ErrUnsupportedProtocol = errors.New("protocol must be tcp or udp")
)

// MaxPort is the largest valid port number.
const MaxPort = 65535

// =============================================================================
// Protocol
// =============================================================================

// Protocol is the transport protocol of a service port.
type Protocol string

const (
	ProtocolTCP Protocol = "tcp"
	ProtocolUDP Protocol = "udp"
)

// ParseProtocol accepts tcp or udp in any case. An empty value means tcp.
func ParseProtocol(value string) (Protocol, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "tcp":
		return ProtocolTCP, nil
	case "udp":
		return ProtocolUDP, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProtocol, value)
	}
}

// =============================================================================
// Service Port
// =============================================================================

// ServicePort is one externally reachable port mapping. It is a comparable
// value: two ports are equal when all three fields are equal.
type ServicePort struct {
	ExternalPort int      `json:"external_port"`
	InternalPort int      `json:"internal_port"`
	Protocol     Protocol `json:"protocol"`
}

// NewServicePort validates the port numbers and protocol.
func NewServicePort(external, internal int, protocol Protocol) (ServicePort, error) {
	if err := ValidatePort(external); err != nil {
		return ServicePort{}, err
	}
	if err := ValidatePort(internal); err != nil {
		return ServicePort{}, err
	}
	if protocol != ProtocolTCP && protocol != ProtocolUDP {
		return ServicePort{}, fmt.Errorf("%w: %q", ErrUnsupportedProtocol, protocol)
	}
	return ServicePort{ExternalPort: external, InternalPort: internal, Protocol: protocol}, nil
}

// ValidatePort checks that port is inside [0, 65535].
func ValidatePort(port int) error {
	if port < 0 || port > MaxPort {
		return fmt.Errorf("%w: %d", ErrPortOutOfRange, port)
	}
	return nil
}

// String renders the mapping as "external:internal/protocol".
func (p ServicePort) String() string {
	return fmt.Sprintf("%d:%d/%s", p.ExternalPort, p.InternalPort, p.Protocol)
}

// NatPort returns the internal side in the docker port notation.
func (p ServicePort) NatPort() (nat.Port, error) {
	return nat.NewPort(string(p.Protocol), strconv.Itoa(p.InternalPort))
}

// SortServicePorts orders ports by external port, then protocol, then
// internal port.
func SortServicePorts(ports []ServicePort) {
	sort.SliceStable(ports, func(i, j int) bool {
		a, b := ports[i], ports[j]
		if a.ExternalPort != b.ExternalPort {
			return a.ExternalPort < b.ExternalPort
		}
		if a.Protocol != b.Protocol {
			return a.Protocol < b.Protocol
		}
		return a.InternalPort < b.InternalPort
	})
}

// ExternalPorts returns the distinct external port numbers in ascending order.
func ExternalPorts(ports []ServicePort) []int {
	seen := make(map[int]struct{}, len(ports))
	var result []int
	for _, p := range ports {
		if _, ok := seen[p.ExternalPort]; ok {
			continue
		}
		seen[p.ExternalPort] = struct{}{}
		result = append(result, p.ExternalPort)
	}
	sort.Ints(result)
	return result
}
