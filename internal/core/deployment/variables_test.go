package deployment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// SubstituteVariables Tests
// =============================================================================

func TestSubstituteVariables_Simple(t *testing.T) {
	vars := map[string]string{"DB_HOST": "localhost"}
	result := SubstituteVariables("${DB_HOST}", vars)
	assert.Equal(t, "localhost", result)
}

func TestSubstituteVariables_Bare(t *testing.T) {
	vars := map[string]string{"TAG": "42"}
	result := SubstituteVariables("image: registry/app:$TAG", vars)
	assert.Equal(t, "image: registry/app:42", result)
}

func TestSubstituteVariables_WithDefault_Found(t *testing.T) {
	vars := map[string]string{"PORT": "3000"}
	result := SubstituteVariables("${PORT:-8080}", vars)
	assert.Equal(t, "3000", result)
}

func TestSubstituteVariables_WithDefault_NotFound(t *testing.T) {
	result := SubstituteVariables("${PORT:-8080}", map[string]string{})
	assert.Equal(t, "8080", result)
}

func TestSubstituteVariables_NotFound_NoDefault(t *testing.T) {
	result := SubstituteVariables("${MISSING} and $ALSO_MISSING", map[string]string{})
	assert.Equal(t, "${MISSING} and $ALSO_MISSING", result) // Returns original
}

func TestSubstituteVariables_Multiple(t *testing.T) {
	vars := map[string]string{"HOST": "db", "PORT": "5432"}
	result := SubstituteVariables("postgres://${HOST}:$PORT", vars)
	assert.Equal(t, "postgres://db:5432", result)
}

func TestSubstituteVariables_EmptyDefault(t *testing.T) {
	result := SubstituteVariables("${EMPTY:-}", map[string]string{})
	assert.Equal(t, "", result)
}

func TestSubstituteVariables_NilVariables(t *testing.T) {
	result := SubstituteVariables("${VAR:-default}", nil)
	assert.Equal(t, "default", result)
}

func TestSubstituteVariables_EscapedDollar(t *testing.T) {
	vars := map[string]string{"HOME": "/root"}
	result := SubstituteVariables("echo $$HOME costs $$5", vars)
	assert.Equal(t, "echo $HOME costs $5", result)
}

func TestSubstituteVariables_NoPlaceholders(t *testing.T) {
	result := SubstituteVariables("plain text", map[string]string{"KEY": "value"})
	assert.Equal(t, "plain text", result)
}
