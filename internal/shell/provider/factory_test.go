package provider

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	coreprovider "github.com/artpar/clusterdeploy/internal/core/provider"
	"github.com/artpar/clusterdeploy/internal/shell/network"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewRemote(t *testing.T) {
	remote, err := NewRemote(domain.ProviderHetzner, []byte(`{"api_token":"t"}`), "", testLogger())
	require.NoError(t, err)
	assert.IsType(t, &HetznerRemote{}, remote)

	remote, err = NewRemote(domain.ProviderDigitalOcean, []byte(`{"api_token":"t"}`), "", testLogger())
	require.NoError(t, err)
	assert.IsType(t, &DigitalOceanRemote{}, remote)

	remote, err = NewRemote(domain.ProviderAWS, []byte(`{"access_key_id":"a","secret_access_key":"s"}`), "eu-west-1", testLogger())
	require.NoError(t, err)
	assert.IsType(t, &AWSRemote{}, remote)

	remote, err = NewRemote(domain.ProviderMemory, nil, "", testLogger())
	require.NoError(t, err)
	assert.IsType(t, &network.MemoryRemote{}, remote)
}

func TestNewRemote_Errors(t *testing.T) {
	_, err := NewRemote(domain.ProviderHetzner, []byte(`{}`), "", testLogger())
	assert.ErrorIs(t, err, coreprovider.ErrHetznerTokenRequired)

	_, err = NewRemote(domain.ProviderType("azure"), nil, "", testLogger())
	assert.ErrorIs(t, err, domain.ErrInvalidProviderType)
}
