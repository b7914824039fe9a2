package credentials

import (
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/provider"
)

func envOf(vars map[string]string) EnvSource {
	return EnvSource{Lookup: func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}}
}

// =============================================================================
// NewSource Tests
// =============================================================================

func TestNewSource(t *testing.T) {
	for _, kind := range []string{"", "env", "file", "keyring", "KEYRING"} {
		src, err := NewSource(kind)
		require.NoError(t, err, kind)
		assert.NotNil(t, src)
	}

	_, err := NewSource("vault")
	assert.True(t, errors.Is(err, ErrUnknownSource))
}

// =============================================================================
// EnvSource Tests
// =============================================================================

func TestEnvSource_ConventionalVariables(t *testing.T) {
	src := envOf(map[string]string{
		"AWS_ACCESS_KEY_ID":     "AKIA123",
		"AWS_SECRET_ACCESS_KEY": "secret",
		"HCLOUD_TOKEN":          "hc-token",
	})

	data, err := Resolve(src, domain.ProviderAWS, "")
	require.NoError(t, err)
	creds, err := provider.ParseAWSCredentials(data)
	require.NoError(t, err)
	assert.Equal(t, "AKIA123", creds.AccessKeyID)
	assert.Empty(t, creds.SessionToken)

	data, err = Resolve(src, domain.ProviderHetzner, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"api_token":"hc-token"}`, string(data))

	_, err = Resolve(src, domain.ProviderDigitalOcean, "")
	assert.ErrorIs(t, err, provider.ErrDOTokenRequired)
}

func TestEnvSource_NamedVariable(t *testing.T) {
	src := envOf(map[string]string{"DO_CREDS": `{"api_token":"do-token"}`})

	data, err := Resolve(src, domain.ProviderDigitalOcean, "DO_CREDS")
	require.NoError(t, err)
	assert.JSONEq(t, `{"api_token":"do-token"}`, string(data))

	_, err = Resolve(src, domain.ProviderDigitalOcean, "MISSING")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestResolve_MemoryNeedsNothing(t *testing.T) {
	data, err := Resolve(envOf(nil), domain.ProviderMemory, "")
	require.NoError(t, err)
	assert.Nil(t, data)
}

// =============================================================================
// FileSource Tests
// =============================================================================

func TestFileSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/etc/clusterdeploy/hetzner.json", []byte(`{"api_token":"hc-token"}`), 0600))
	src := FileSource{Fs: fs}

	data, err := Resolve(src, domain.ProviderHetzner, "/etc/clusterdeploy/hetzner.json")
	require.NoError(t, err)
	assert.JSONEq(t, `{"api_token":"hc-token"}`, string(data))

	_, err = Resolve(src, domain.ProviderHetzner, "/etc/clusterdeploy/missing.json")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = Resolve(src, domain.ProviderHetzner, "")
	assert.True(t, errors.Is(err, ErrNotFound))
}

// =============================================================================
// KeyringSource Tests
// =============================================================================

func TestKeyringSource_SaveLoadDelete(t *testing.T) {
	keyring.MockInit()
	src := KeyringSource{Service: KeyringService}

	err := src.Save(domain.ProviderDigitalOcean, "", []byte(`{"api_token":"do-token"}`))
	require.NoError(t, err)

	data, err := Resolve(src, domain.ProviderDigitalOcean, "")
	require.NoError(t, err)
	assert.JSONEq(t, `{"api_token":"do-token"}`, string(data))

	require.NoError(t, src.Delete(domain.ProviderDigitalOcean, ""))
	_, err = src.Load(domain.ProviderDigitalOcean, "")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.True(t, errors.Is(src.Delete(domain.ProviderDigitalOcean, ""), ErrNotFound))
}

func TestKeyringSource_SaveRejectsInvalid(t *testing.T) {
	keyring.MockInit()
	src := KeyringSource{Service: KeyringService}

	err := src.Save(domain.ProviderAWS, "prod", []byte(`{"access_key_id":"AKIA123"}`))
	assert.ErrorIs(t, err, provider.ErrAWSSecretKeyRequired)

	_, err = src.Load(domain.ProviderAWS, "prod")
	assert.True(t, errors.Is(err, ErrNotFound))
}
