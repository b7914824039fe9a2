package provider

import (
	"fmt"
	"log/slog"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	coreprovider "github.com/artpar/clusterdeploy/internal/core/provider"
	"github.com/artpar/clusterdeploy/internal/shell/network"
)

// NewRemote creates a network remote from credentials JSON. Region is used
// by providers whose API endpoints are regional.
func NewRemote(providerType domain.ProviderType, credJSON []byte, region string, logger *slog.Logger) (network.Remote, error) {
	switch providerType {
	case domain.ProviderAWS:
		creds, err := coreprovider.ParseAWSCredentials(credJSON)
		if err != nil {
			return nil, fmt.Errorf("invalid AWS credentials: %w", err)
		}
		return NewAWSRemote(creds, region, logger), nil

	case domain.ProviderDigitalOcean:
		creds, err := coreprovider.ParseDigitalOceanCredentials(credJSON)
		if err != nil {
			return nil, fmt.Errorf("invalid DigitalOcean credentials: %w", err)
		}
		return NewDigitalOceanRemote(creds.APIToken, logger), nil

	case domain.ProviderHetzner:
		creds, err := coreprovider.ParseHetznerCredentials(credJSON)
		if err != nil {
			return nil, fmt.Errorf("invalid Hetzner credentials: %w", err)
		}
		return NewHetznerRemote(creds.APIToken, logger), nil

	case domain.ProviderMemory:
		return network.NewMemoryRemote(), nil

	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidProviderType, providerType)
	}
}
