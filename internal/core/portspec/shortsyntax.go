package portspec

import (
	"fmt"
	"regexp"

	"github.com/docker/go-connections/nat"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// =============================================================================
// Short Syntax
// =============================================================================

// shortSyntaxRegex matches [[hostAddress:]ext[-extEnd]:]int[-intEnd][/proto].
var shortSyntaxRegex = regexp.MustCompile(
	`^(?:(?:(?P<host>[a-fA-F\d.:]+):)?(?P<ext>\d*)(?:-(?P<extEnd>\d+))?:)?` +
		`(?P<int>\d+)(?:-(?P<intEnd>\d+))?(?:/(?P<proto>udp|tcp))?$`)

// ParseShortSyntax expands a compose short syntax port string into one
// service port per port of the published range.
//
// Examples:
//
//	ParseShortSyntax("80:8080")       // [80:8080/tcp]
//	ParseShortSyntax("8080-8081")     // [8080:8080/tcp 8081:8081/tcp]
//	ParseShortSyntax("9000-9001:80-81/udp") // [9000:80/udp 9001:81/udp]
func ParseShortSyntax(value string) ([]domain.ServicePort, error) {
	ports, err := expandShortSyntax(value)
	if err != nil {
		return nil, NewFormatError("", value, err.Error(), nil)
	}
	return ports, nil
}

func expandShortSyntax(value string) ([]domain.ServicePort, error) {
	match := shortSyntaxRegex.FindStringSubmatch(value)
	if match == nil {
		return nil, fmt.Errorf("does not match [[host:]ext[-extEnd]:]int[-intEnd][/proto]")
	}
	group := func(name string) string {
		return match[shortSyntaxRegex.SubexpIndex(name)]
	}

	internal, internalEnd, err := parseRange(group("int"), group("intEnd"))
	if err != nil {
		return nil, err
	}

	external, externalEnd := internal, internalEnd
	if group("ext") != "" {
		external, externalEnd, err = parseRange(group("ext"), group("extEnd"))
		if err != nil {
			return nil, err
		}
		if group("extEnd") == "" && internal != internalEnd {
			// a single published port with an internal range mirrors the
			// internal end, which only lines up when the bounds agree
			externalEnd = internalEnd
		}
	} else if group("extEnd") != "" {
		return nil, fmt.Errorf("published range without a start port")
	}

	if externalEnd < external {
		return nil, fmt.Errorf("published range %d-%d is inverted", external, externalEnd)
	}
	if externalEnd-external != internalEnd-internal {
		return nil, fmt.Errorf("published range %d-%d does not match target range %d-%d",
			external, externalEnd, internal, internalEnd)
	}

	protocol, err := domain.ParseProtocol(group("proto"))
	if err != nil {
		return nil, err
	}

	ports := make([]domain.ServicePort, 0, externalEnd-external+1)
	for p := external; p <= externalEnd; p++ {
		sp, err := domain.NewServicePort(p, internal+(p-external), protocol)
		if err != nil {
			return nil, err
		}
		ports = append(ports, sp)
	}
	return ports, nil
}

// parseRange parses start[-end] with the docker port range rules. An empty
// end means a single port.
func parseRange(start, end string) (int, int, error) {
	raw := start
	if end != "" {
		raw = start + "-" + end
	}
	from, to, err := nat.ParsePortRangeToInt(raw)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid port range %q: %v", raw, err)
	}
	return from, to, nil
}
