package portspec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// =============================================================================
// Manifest Declarations
// =============================================================================

// manifestPaths are the locations of the port mapping list in an app
// definition, in lookup order. Newer Marathon releases moved the list out of
// the docker section.
var manifestPaths = [][]string{
	{"container", "docker", "portMappings"},
	{"container", "portMappings"},
}

// ParseManifest extracts the port mappings of a single app definition
// (JSON or YAML). Every entry needs an integer hostPort and containerPort.
// The protocol defaults to tcp; "tcp,udp" declares both.
func ParseManifest(src Source) ([]domain.ServicePort, error) {
	root, err := decodeRoot(src)
	if err != nil {
		return nil, err
	}

	var (
		list  *yaml.Node
		field string
	)
	for _, path := range manifestPaths {
		if node := lookupPath(root, path...); node != nil {
			list = node
			field = strings.Join(path, ".")
			break
		}
	}
	if list == nil {
		return nil, NewFormatError(src.Path, strings.Join(manifestPaths[0], "."), "missing port mapping list", nil)
	}
	if list.Kind != yaml.SequenceNode {
		return nil, NewFormatError(src.Path, field, "port mappings must be a list", nil)
	}

	ports := []domain.ServicePort{}
	for i, entry := range list.Content {
		entryField := fmt.Sprintf("%s[%d]", field, i)
		if !isMapping(entry) {
			return nil, NewFormatError(src.Path, entryField, "port mapping must be an object", nil)
		}

		hostPort, ok := intValue(lookup(entry, "hostPort"))
		if !ok {
			return nil, NewFormatError(src.Path, entryField+".hostPort", "missing or non-integer value", nil)
		}
		containerPort, ok := intValue(lookup(entry, "containerPort"))
		if !ok {
			return nil, NewFormatError(src.Path, entryField+".containerPort", "missing or non-integer value", nil)
		}

		protocols, err := manifestProtocols(lookup(entry, "protocol"))
		if err != nil {
			return nil, NewFormatError(src.Path, entryField+".protocol", err.Error(), nil)
		}
		for _, protocol := range protocols {
			port, err := domain.NewServicePort(hostPort, containerPort, protocol)
			if err != nil {
				return nil, NewFormatError(src.Path, entryField, err.Error(), nil)
			}
			ports = append(ports, port)
		}
	}
	return ports, nil
}

func manifestProtocols(node *yaml.Node) ([]domain.Protocol, error) {
	if isNull(node) {
		return []domain.Protocol{domain.ProtocolTCP}, nil
	}
	raw, ok := stringValue(node)
	if !ok {
		return nil, fmt.Errorf("protocol must be a string")
	}
	var protocols []domain.Protocol
	for _, part := range strings.Split(raw, ",") {
		p, err := domain.ParseProtocol(part)
		if err != nil {
			return nil, err
		}
		protocols = append(protocols, p)
	}
	return protocols, nil
}
