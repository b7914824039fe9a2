package deployment

import (
	"regexp"
	"strings"
)

// =============================================================================
// Variable Substitution Functions
// =============================================================================

// varPlaceholderRegex matches $$, ${VAR}, ${VAR:-default} and $VAR.
// Groups:
//   - Group 1: Braced variable name
//   - Group 2: ":-" marker when a default is given
//   - Group 3: Default value
//   - Group 4: Bare variable name
var varPlaceholderRegex = regexp.MustCompile(`\$\$|\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// SubstituteVariables replaces $VAR, ${VAR} and ${VAR:-default} placeholders
// with values from the variables map.
//
// Behavior:
//   - ${VAR} and $VAR - replaced with variables["VAR"] if exists, otherwise kept as-is
//   - ${VAR:-default} - replaced with variables["VAR"] if exists, otherwise "default"
//   - $$ - replaced with a single $
//   - Unmatched text is left unchanged
//
// Examples:
//
//	SubstituteVariables("${DB_HOST}", map[string]string{"DB_HOST": "localhost"})
//	// Returns: "localhost"
//
//	SubstituteVariables("image: app:$TAG", map[string]string{"TAG": "42"})
//	// Returns: "image: app:42"
//
//	SubstituteVariables("${PORT:-8080}", map[string]string{})
//	// Returns: "8080"
//
//	SubstituteVariables("${MISSING}", map[string]string{})
//	// Returns: "${MISSING}"
func SubstituteVariables(value string, variables map[string]string) string {
	if !strings.Contains(value, "$") {
		return value
	}

	return varPlaceholderRegex.ReplaceAllStringFunc(value, func(match string) string {
		if match == "$$" {
			return "$"
		}
		submatch := varPlaceholderRegex.FindStringSubmatch(match)
		name := submatch[1]
		if name == "" {
			name = submatch[4]
		}
		if val, ok := variables[name]; ok {
			return val
		}
		if submatch[2] != "" {
			return submatch[3]
		}
		return match
	})
}
