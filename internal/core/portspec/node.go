package portspec

import (
	"gopkg.in/yaml.v3"
)

// =============================================================================
// YAML Node Helpers
// =============================================================================

// decodeRoot parses a JSON or YAML document and returns its root node.
// An empty document yields nil.
func decodeRoot(src Source) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(src.Content, &doc); err != nil {
		return nil, NewFormatError(src.Path, "", "failed to parse document", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, nil
	}
	return doc.Content[0], nil
}

// lookup returns the value stored under key in a mapping node.
func lookup(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

// lookupPath follows a chain of mapping keys.
func lookupPath(node *yaml.Node, keys ...string) *yaml.Node {
	for _, key := range keys {
		node = lookup(node, key)
		if node == nil {
			return nil
		}
	}
	return node
}

func isNull(node *yaml.Node) bool {
	return node == nil || (node.Kind == yaml.ScalarNode && node.Tag == "!!null")
}

func isMapping(node *yaml.Node) bool {
	return node != nil && node.Kind == yaml.MappingNode
}

// intValue returns the value of an integer scalar. Quoted numbers are
// strings and are rejected.
func intValue(node *yaml.Node) (int, bool) {
	if node == nil || node.Kind != yaml.ScalarNode || node.Tag != "!!int" {
		return 0, false
	}
	var n int
	if err := node.Decode(&n); err != nil {
		return 0, false
	}
	return n, true
}

// stringValue returns the value of a string scalar.
func stringValue(node *yaml.Node) (string, bool) {
	if node == nil || node.Kind != yaml.ScalarNode || node.Tag != "!!str" {
		return "", false
	}
	return node.Value, true
}
