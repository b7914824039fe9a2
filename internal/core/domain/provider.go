package domain

import "errors"

var ErrInvalidProviderType = errors.New("invalid provider type: must be aws, digitalocean, hetzner or memory")

// =============================================================================
// Provider Types
// =============================================================================

// ProviderType is the cloud platform that owns the cluster network resources.
type ProviderType string

const (
	ProviderAWS          ProviderType = "aws"
	ProviderDigitalOcean ProviderType = "digitalocean"
	ProviderHetzner      ProviderType = "hetzner"
	ProviderMemory       ProviderType = "memory"
)

// IsValid checks if the provider type is supported.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderAWS, ProviderDigitalOcean, ProviderHetzner, ProviderMemory:
		return true
	default:
		return false
	}
}

// DisplayName returns a human-readable name for the provider.
func (p ProviderType) DisplayName() string {
	switch p {
	case ProviderAWS:
		return "AWS"
	case ProviderDigitalOcean:
		return "DigitalOcean"
	case ProviderHetzner:
		return "Hetzner"
	case ProviderMemory:
		return "In-memory"
	default:
		return string(p)
	}
}
