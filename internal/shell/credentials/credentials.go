// Package credentials loads the cloud provider credentials the network
// reconciler authenticates with.
//
// Credentials are the JSON documents internal/core/provider validates. They
// can come from the environment, a file or the OS keyring.
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
	"github.com/zalando/go-keyring"

	"github.com/artpar/clusterdeploy/internal/core/domain"
	"github.com/artpar/clusterdeploy/internal/core/provider"
)

// KeyringService is the keyring service credentials are stored under.
const KeyringService = "clusterdeploy"

var (
	ErrUnknownSource = errors.New("unknown credentials source: must be env, file or keyring")
	ErrNotFound      = errors.New("credentials not found")
)

// Source loads the credentials document of a provider. ref names the
// credentials inside the source: a variable, a path or a keyring user.
type Source interface {
	Load(providerType domain.ProviderType, ref string) ([]byte, error)
}

// NewSource returns the source of the given kind.
func NewSource(kind string) (Source, error) {
	switch strings.ToLower(kind) {
	case "", "env":
		return EnvSource{Lookup: os.LookupEnv}, nil
	case "file":
		return FileSource{Fs: afero.NewOsFs()}, nil
	case "keyring":
		return KeyringSource{Service: KeyringService}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, kind)
	}
}

// Resolve loads credentials from src and validates them for providerType.
func Resolve(src Source, providerType domain.ProviderType, ref string) ([]byte, error) {
	if providerType == domain.ProviderMemory {
		return nil, nil
	}
	data, err := src.Load(providerType, ref)
	if err != nil {
		return nil, err
	}
	if err := provider.ValidateCredentialsJSON(providerType, data); err != nil {
		return nil, err
	}
	return data, nil
}

// =============================================================================
// Environment
// =============================================================================

// EnvSource reads a JSON document from the variable named by ref. Without a
// ref it builds the document from the provider's conventional variables.
type EnvSource struct {
	Lookup func(key string) (string, bool)
}

func (s EnvSource) Load(providerType domain.ProviderType, ref string) ([]byte, error) {
	if ref != "" {
		v, ok := s.Lookup(ref)
		if !ok || v == "" {
			return nil, fmt.Errorf("%w: environment variable %s is not set", ErrNotFound, ref)
		}
		return []byte(v), nil
	}

	var doc any
	switch providerType {
	case domain.ProviderAWS:
		doc = provider.AWSCredentials{
			AccessKeyID:     s.get("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: s.get("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    s.get("AWS_SESSION_TOKEN"),
		}
	case domain.ProviderDigitalOcean:
		doc = provider.DigitalOceanCredentials{APIToken: s.get("DIGITALOCEAN_TOKEN")}
	case domain.ProviderHetzner:
		doc = provider.HetznerCredentials{APIToken: s.get("HCLOUD_TOKEN")}
	default:
		return nil, domain.ErrInvalidProviderType
	}
	return json.Marshal(doc)
}

func (s EnvSource) get(key string) string {
	v, _ := s.Lookup(key)
	return v
}

// =============================================================================
// File
// =============================================================================

// FileSource reads the JSON document at path ref. A nil Fs reads the OS
// filesystem.
type FileSource struct {
	Fs afero.Fs
}

func (s FileSource) Load(_ domain.ProviderType, ref string) ([]byte, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: no credentials file configured", ErrNotFound)
	}
	fsys := s.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	data, err := afero.ReadFile(fsys, ref)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}
	return data, nil
}

// =============================================================================
// Keyring
// =============================================================================

// KeyringSource reads the JSON document from the OS keyring. The keyring user
// is ref, or the provider type when ref is empty.
type KeyringSource struct {
	Service string
}

func (s KeyringSource) user(providerType domain.ProviderType, ref string) string {
	if ref != "" {
		return ref
	}
	return string(providerType)
}

func (s KeyringSource) Load(providerType domain.ProviderType, ref string) ([]byte, error) {
	secret, err := keyring.Get(s.Service, s.user(providerType, ref))
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("%w: keyring entry %s/%s", ErrNotFound, s.Service, s.user(providerType, ref))
	}
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	return []byte(secret), nil
}

// Save validates and stores credentials in the keyring.
func (s KeyringSource) Save(providerType domain.ProviderType, ref string, data []byte) error {
	if err := provider.ValidateCredentialsJSON(providerType, data); err != nil {
		return err
	}
	if err := keyring.Set(s.Service, s.user(providerType, ref), string(data)); err != nil {
		return fmt.Errorf("write keyring: %w", err)
	}
	return nil
}

// Delete removes credentials from the keyring.
func (s KeyringSource) Delete(providerType domain.ProviderType, ref string) error {
	err := keyring.Delete(s.Service, s.user(providerType, ref))
	if errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("%w: keyring entry %s/%s", ErrNotFound, s.Service, s.user(providerType, ref))
	}
	return err
}
