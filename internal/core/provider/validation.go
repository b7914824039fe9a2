// Package provider parses and validates cloud provider credentials.
// This is part of the Functional Core - all functions are pure with no I/O.
package provider

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/clusterdeploy/internal/core/domain"
)

// =============================================================================
// Credential Validation (Pure - no I/O)
// =============================================================================

var (
	ErrAWSAccessKeyRequired = errors.New("AWS access key ID is required")
	ErrAWSSecretKeyRequired = errors.New("AWS secret access key is required")
	ErrDOTokenRequired      = errors.New("DigitalOcean API token is required")
	ErrHetznerTokenRequired = errors.New("Hetzner API token is required")
	ErrInvalidCredentials   = errors.New("invalid credentials JSON")
)

// AWSCredentials represents AWS access credentials.
type AWSCredentials struct {
	AccessKeyID     string `json:"access_key_id"`
	SecretAccessKey string `json:"secret_access_key"`
	SessionToken    string `json:"session_token,omitempty"`
}

// DigitalOceanCredentials represents DigitalOcean API credentials.
type DigitalOceanCredentials struct {
	APIToken string `json:"api_token"`
}

// HetznerCredentials represents Hetzner Cloud API credentials.
type HetznerCredentials struct {
	APIToken string `json:"api_token"`
}

// ValidateAWSCredentials validates AWS credential fields.
func ValidateAWSCredentials(creds AWSCredentials) error {
	if creds.AccessKeyID == "" {
		return ErrAWSAccessKeyRequired
	}
	if creds.SecretAccessKey == "" {
		return ErrAWSSecretKeyRequired
	}
	return nil
}

// ValidateDigitalOceanCredentials validates DigitalOcean credential fields.
func ValidateDigitalOceanCredentials(creds DigitalOceanCredentials) error {
	if creds.APIToken == "" {
		return ErrDOTokenRequired
	}
	return nil
}

// ValidateHetznerCredentials validates Hetzner credential fields.
func ValidateHetznerCredentials(creds HetznerCredentials) error {
	if creds.APIToken == "" {
		return ErrHetznerTokenRequired
	}
	return nil
}

// ValidateCredentialsJSON validates credential JSON for a given provider.
// The in-memory provider takes no credentials.
func ValidateCredentialsJSON(provider domain.ProviderType, credJSON []byte) error {
	var err error
	switch provider {
	case domain.ProviderAWS:
		_, err = ParseAWSCredentials(credJSON)
	case domain.ProviderDigitalOcean:
		_, err = ParseDigitalOceanCredentials(credJSON)
	case domain.ProviderHetzner:
		_, err = ParseHetznerCredentials(credJSON)
	case domain.ProviderMemory:
		return nil
	default:
		return domain.ErrInvalidProviderType
	}
	return err
}

// ParseAWSCredentials parses AWS credentials from JSON.
func ParseAWSCredentials(data []byte) (AWSCredentials, error) {
	var creds AWSCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return creds, ValidateAWSCredentials(creds)
}

// ParseDigitalOceanCredentials parses DigitalOcean credentials from JSON.
func ParseDigitalOceanCredentials(data []byte) (DigitalOceanCredentials, error) {
	var creds DigitalOceanCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return creds, ValidateDigitalOceanCredentials(creds)
}

// ParseHetznerCredentials parses Hetzner credentials from JSON.
func ParseHetznerCredentials(data []byte) (HetznerCredentials, error) {
	var creds HetznerCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return creds, fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return creds, ValidateHetznerCredentials(creds)
}
