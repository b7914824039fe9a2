package deployment

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// =============================================================================
// Remote Naming Functions
// =============================================================================

// RemoteFileName generates the name of a deployment file copied to the
// master. Pattern: acsDep{unixMillis}.{ext}
//
// Example:
//
//	RemoteFileName("yml", t) // returns "acsDep1700000000000.yml"
func RemoteFileName(ext string, now time.Time) string {
	return fmt.Sprintf("acsDep%d.%s", now.UnixMilli(), ext)
}

var projectNameInvalid = regexp.MustCompile(`[^a-z0-9_-]+`)

// ProjectName derives a compose project name from a deployment name.
// Compose accepts lowercase letters, digits, dashes and underscores, and
// the name must start with a letter or digit.
//
// Example:
//
//	ProjectName("My App.v2") // returns "my-app-v2"
func ProjectName(name string) string {
	p := projectNameInvalid.ReplaceAllString(strings.ToLower(name), "-")
	p = strings.Trim(p, "-_")
	if p == "" {
		return "deployment"
	}
	return p
}

// EscapeSingleQuote escapes ' so the value can sit inside a singly quoted
// shell argument: let's becomes let'"'"'s.
func EscapeSingleQuote(arg string) string {
	return strings.ReplaceAll(arg, "'", `'"'"'`)
}

// Quote wraps arg in single quotes for the remote shell.
func Quote(arg string) string {
	return "'" + EscapeSingleQuote(arg) + "'"
}
