package portspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

func tcp(external, internal int) domain.ServicePort {
	return domain.ServicePort{ExternalPort: external, InternalPort: internal, Protocol: domain.ProtocolTCP}
}

func udp(external, internal int) domain.ServicePort {
	return domain.ServicePort{ExternalPort: external, InternalPort: internal, Protocol: domain.ProtocolUDP}
}

// =============================================================================
// Short Syntax Tests
// =============================================================================

func TestParseShortSyntax_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  []domain.ServicePort
	}{
		{"80:8080", []domain.ServicePort{tcp(80, 8080)}},
		{"8080-8081", []domain.ServicePort{tcp(8080, 8080), tcp(8081, 8081)}},
		{"3000", []domain.ServicePort{tcp(3000, 3000)}},
		{"53:53/udp", []domain.ServicePort{udp(53, 53)}},
		{"127.0.0.1:8001:8001", []domain.ServicePort{tcp(8001, 8001)}},
		{"127.0.0.1:5000-5001:6000-6001/tcp", []domain.ServicePort{tcp(5000, 6000), tcp(5001, 6001)}},
		{"9090-9091:8080-8081", []domain.ServicePort{tcp(9090, 8080), tcp(9091, 8081)}},
		{"8080:8080-8081", []domain.ServicePort{tcp(8080, 8080), tcp(8081, 8081)}},
		{"::1:6060:6060", []domain.ServicePort{tcp(6060, 6060)}},
		{":7000", []domain.ServicePort{tcp(7000, 7000)}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseShortSyntax(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseShortSyntax_Invalid(t *testing.T) {
	for _, input := range []string{
		"8081-xx",
		"",
		"abc",
		"80:8080/sctp",
		"8000-8001:80",   // published range longer than target
		"9000:8080-8081", // mirrored end is below the start
		"8081-8080",      // inverted target range
		"70000:80",       // out of range
		"80:8080/TCP/udp",
	} {
		t.Run(input, func(t *testing.T) {
			_, err := ParseShortSyntax(input)
			assert.ErrorIs(t, err, domain.ErrInvalidFormat)
		})
	}
}

// Every published port maps to the target port at the same offset.
func TestParseShortSyntax_ExpansionProperty(t *testing.T) {
	cases := []struct {
		input    string
		ext, end int
		internal int
	}{
		{"1000-1009:2000-2009", 1000, 1009, 2000},
		{"5000-5004", 5000, 5004, 5000},
		{"10.0.0.1:30000-30002:40000-40002/udp", 30000, 30002, 40000},
		{"443:8443", 443, 443, 8443},
	}
	for _, c := range cases {
		t.Run(c.input, func(t *testing.T) {
			ports, err := ParseShortSyntax(c.input)
			require.NoError(t, err)
			require.Len(t, ports, c.end-c.ext+1)
			for _, p := range ports {
				assert.Equal(t, p.ExternalPort-c.ext, p.InternalPort-c.internal)
			}
		})
	}
}
