package portspec

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// =============================================================================
// Compose Declarations
// =============================================================================

// ParseCompose extracts the published ports of every service in a compose
// document.
//
// A document that declares a version keeps its services under "services"; a
// missing or empty services section is an error. A document without a version but
// with a services mapping follows the current compose format. Anything else
// is the legacy format with services at the document root.
func ParseCompose(src Source) ([]domain.ServicePort, error) {
	root, err := decodeRoot(src)
	if err != nil {
		return nil, err
	}
	if isNull(root) {
		return []domain.ServicePort{}, nil
	}
	if !isMapping(root) {
		return nil, NewFormatError(src.Path, "", "document root must be a mapping", nil)
	}

	services := root
	legacy := true
	if lookup(root, "version") != nil {
		services = lookup(root, "services")
		if isNull(services) {
			return nil, NewFormatError(src.Path, "services", "versioned document has no services section", nil)
		}
		legacy = false
	} else if isMapping(lookup(root, "services")) {
		services = lookup(root, "services")
		legacy = false
	}
	if isNull(services) {
		return []domain.ServicePort{}, nil
	}
	if !isMapping(services) {
		return nil, NewFormatError(src.Path, "services", "services section must be a mapping", nil)
	}

	ports := []domain.ServicePort{}
	for i := 0; i+1 < len(services.Content); i += 2 {
		name := services.Content[i].Value
		def := services.Content[i+1]
		if strings.HasPrefix(name, "x-") || (legacy && isTopLevelSection(name)) {
			continue
		}
		if isNull(def) {
			continue
		}
		if !isMapping(def) {
			return nil, NewFormatError(src.Path, name, "service definition must be a mapping", nil)
		}

		servicePorts, err := parseServicePorts(src.Path, name, lookup(def, "ports"))
		if err != nil {
			return nil, err
		}
		ports = append(ports, servicePorts...)
	}
	return ports, nil
}

// isTopLevelSection reports keys that are never service names.
func isTopLevelSection(key string) bool {
	switch key {
	case "networks", "volumes", "secrets", "configs", "name":
		return true
	default:
		return false
	}
}

func parseServicePorts(path, service string, node *yaml.Node) ([]domain.ServicePort, error) {
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, NewFormatError(path, service+".ports", "ports must be a list", nil)
	}

	var ports []domain.ServicePort
	for _, entry := range node.Content {
		var (
			parsed []domain.ServicePort
			err    error
		)
		switch entry.Kind {
		case yaml.ScalarNode:
			parsed, err = parseShortEntry(path, entry)
		case yaml.MappingNode:
			parsed, err = parseLongEntry(path, service, entry)
		default:
			err = NewFormatError(path, service+".ports", "entry must be a string or a mapping", nil)
		}
		if err != nil {
			return nil, err
		}
		ports = append(ports, parsed...)
	}
	return ports, nil
}

func parseShortEntry(path string, entry *yaml.Node) ([]domain.ServicePort, error) {
	if entry.Tag != "!!str" && entry.Tag != "!!int" {
		return nil, NewFormatError(path, entry.Value, "entry must be a string or a mapping", nil)
	}
	ports, err := expandShortSyntax(entry.Value)
	if err != nil {
		return nil, NewFormatError(path, entry.Value, err.Error(), nil)
	}
	return ports, nil
}

func parseLongEntry(path, service string, entry *yaml.Node) ([]domain.ServicePort, error) {
	target, ok := intValue(lookup(entry, "target"))
	if !ok {
		return nil, NewFormatError(path, describe(entry), "long syntax requires an integer target", nil)
	}
	published, ok := intValue(lookup(entry, "published"))
	if !ok {
		return nil, NewFormatError(path, describe(entry), "long syntax requires an integer published port", nil)
	}

	protocol := domain.ProtocolTCP
	if node := lookup(entry, "protocol"); !isNull(node) {
		raw, _ := stringValue(node)
		p, err := domain.ParseProtocol(raw)
		if err != nil || raw == "" {
			return nil, NewFormatError(path, fmt.Sprintf("%s.ports protocol %s", service, node.Value), "protocol must be tcp or udp", nil)
		}
		protocol = p
	}

	port, err := domain.NewServicePort(published, target, protocol)
	if err != nil {
		return nil, NewFormatError(path, describe(entry), err.Error(), nil)
	}
	return []domain.ServicePort{port}, nil
}

// describe renders a long syntax entry back to flow style for messages.
func describe(entry *yaml.Node) string {
	parts := make([]string, 0, len(entry.Content)/2)
	for i := 0; i+1 < len(entry.Content); i += 2 {
		parts = append(parts, entry.Content[i].Value+": "+entry.Content[i+1].Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
