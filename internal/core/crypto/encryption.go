// Package crypto protects the SSH private key used to reach cluster masters.
// This is part of the Functional Core - all functions are pure with no I/O
// apart from reading randomness.
//
// A sealed key is "v1:" followed by base64 of salt (16 bytes) || nonce
// (12 bytes) || AES-256-GCM ciphertext, keyed by scrypt over a passphrase.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/crypto/ssh"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrEmptyPassphrase is returned when sealing or opening without a passphrase.
	ErrEmptyPassphrase = errors.New("passphrase must not be empty")

	// ErrInvalidSealedKey is returned when a sealed key is malformed.
	ErrInvalidSealedKey = errors.New("invalid sealed key")

	// ErrDecryptionFailed is returned when decryption fails (wrong passphrase or corrupted data).
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")

	// ErrInvalidSSHKey is returned when the SSH key cannot be parsed.
	ErrInvalidSSHKey = errors.New("invalid SSH private key format")

	// ErrPassphraseRequired is returned for a passphrase protected key opened without one.
	ErrPassphraseRequired = errors.New("SSH private key is passphrase protected")
)

const (
	sealedPrefix = "v1:"
	saltSize     = 16

	// scrypt parameters recommended for interactive logins.
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// =============================================================================
// Key Derivation
// =============================================================================

// DeriveKey derives a 32-byte AES-256 key from a passphrase and salt.
func DeriveKey(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, 32)
}

// =============================================================================
// Sealing
// =============================================================================

// SealKey encrypts a private key with a passphrase.
func SealKey(privateKey []byte, passphrase string) (string, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}
	key, err := DeriveKey(passphrase, salt)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	out := append(append([]byte{}, salt...), nonce...)
	out = gcm.Seal(out, nonce, privateKey, nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// OpenKey decrypts a key sealed with SealKey.
func OpenKey(sealed, passphrase string) ([]byte, error) {
	encoded, ok := strings.CutPrefix(strings.TrimSpace(sealed), sealedPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: missing %q prefix", ErrInvalidSealedKey, sealedPrefix)
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSealedKey, err)
	}
	if len(raw) < saltSize {
		return nil, fmt.Errorf("%w: too short", ErrInvalidSealedKey)
	}

	key, err := DeriveKey(passphrase, raw[:saltSize])
	if err != nil {
		return nil, err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	rest := raw[saltSize:]
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("%w: too short", ErrInvalidSealedKey)
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// IsSealed reports whether data looks like the output of SealKey.
func IsSealed(data []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(data)), sealedPrefix)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// =============================================================================
// SSH Key Utilities
// =============================================================================

// ParseSSHPrivateKey parses a PEM private key, using passphrase when the key
// itself is passphrase protected.
func ParseSSHPrivateKey(privateKey []byte, passphrase string) (ssh.Signer, error) {
	signer, err := ssh.ParsePrivateKey(privateKey)
	if err == nil {
		return signer, nil
	}

	var missing *ssh.PassphraseMissingError
	if !errors.As(err, &missing) {
		return nil, ErrInvalidSSHKey
	}
	if passphrase == "" {
		return nil, ErrPassphraseRequired
	}
	signer, err = ssh.ParsePrivateKeyWithPassphrase(privateKey, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSSHKey, err)
	}
	return signer, nil
}

// Fingerprint returns the SHA256 fingerprint of the signer's public key.
func Fingerprint(signer ssh.Signer) string {
	return ssh.FingerprintSHA256(signer.PublicKey())
}
