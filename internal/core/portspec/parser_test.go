package portspec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// =============================================================================
// Parse Tests
// =============================================================================

func TestFormatFor(t *testing.T) {
	assert.Equal(t, FormatManifest, FormatFor(domain.OrchestratorDCOS))
	assert.Equal(t, FormatCompose, FormatFor(domain.OrchestratorSwarm))
	assert.Equal(t, FormatNone, FormatFor(domain.OrchestratorKubernetes))
}

func TestParse_ConcatenatesSources(t *testing.T) {
	ports, err := Parse(FormatCompose, []Source{
		composeSource("services:\n  a:\n    ports: [\"80:80\"]\n"),
		{Path: "second.yml", Content: []byte("services:\n  b:\n    ports: [\"81:81\"]\n")},
	})
	require.NoError(t, err)
	assert.Equal(t, []domain.ServicePort{tcp(80, 80), tcp(81, 81)}, ports)
}

func TestParse_FailsFastOnFirstBadSource(t *testing.T) {
	_, err := Parse(FormatCompose, []Source{
		{Path: "bad.yml", Content: []byte("services:\n  a:\n    ports: [\"8081-xx\"]\n")},
		composeSource("services:\n  b:\n    ports: [\"81:81\"]\n"),
	})
	require.ErrorIs(t, err, domain.ErrInvalidFormat)
	assert.Contains(t, err.Error(), "bad.yml")
}

func TestParse_NoneReturnsEmptyList(t *testing.T) {
	ports, err := Parse(FormatNone, []Source{{Path: "k8s.yml", Content: []byte("garbage: [")}})
	require.NoError(t, err)
	assert.NotNil(t, ports)
	assert.Empty(t, ports)
}

func TestParse_UnknownFormat(t *testing.T) {
	_, err := Parse(Format("helm"), nil)
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFormatError_Message(t *testing.T) {
	err := NewFormatError("app.json", "8081-xx", "does not match", nil)
	assert.Equal(t, `app.json: invalid port declaration "8081-xx": does not match`, err.Error())

	err = NewFormatError("", "", "bad", nil)
	assert.Equal(t, "invalid port declaration: bad", err.Error())
}
