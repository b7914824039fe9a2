package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

func TestParseAWSCredentials(t *testing.T) {
	creds, err := ParseAWSCredentials([]byte(`{"access_key_id":"AKIA","secret_access_key":"s3cr3t"}`))
	require.NoError(t, err)
	assert.Equal(t, "AKIA", creds.AccessKeyID)

	_, err = ParseAWSCredentials([]byte(`{"access_key_id":"AKIA"}`))
	assert.ErrorIs(t, err, ErrAWSSecretKeyRequired)

	_, err = ParseAWSCredentials([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestValidateCredentialsJSON(t *testing.T) {
	tests := []struct {
		name     string
		provider domain.ProviderType
		json     string
		wantErr  error
	}{
		{"do ok", domain.ProviderDigitalOcean, `{"api_token":"t"}`, nil},
		{"do missing token", domain.ProviderDigitalOcean, `{}`, ErrDOTokenRequired},
		{"hetzner ok", domain.ProviderHetzner, `{"api_token":"t"}`, nil},
		{"hetzner missing token", domain.ProviderHetzner, `{"api_token":""}`, ErrHetznerTokenRequired},
		{"aws missing key", domain.ProviderAWS, `{"secret_access_key":"s"}`, ErrAWSAccessKeyRequired},
		{"memory ignores input", domain.ProviderMemory, ``, nil},
		{"unknown provider", domain.ProviderType("azure"), `{}`, domain.ErrInvalidProviderType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCredentialsJSON(tt.provider, []byte(tt.json))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
