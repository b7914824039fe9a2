package main

import (
	"fmt"
	"io"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/artpar/clusterdeploy/internal/core/crypto"
	"github.com/artpar/clusterdeploy/internal/shell/credentials"
)

// =============================================================================
// Credentials
// =============================================================================

func newCredentialsCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage provider credentials in the system keyring",
	}
	cmd.AddCommand(newCredentialsSetCommand(a), newCredentialsDeleteCommand(a))
	return cmd
}

func (a *app) keyring() credentials.KeyringSource {
	return credentials.KeyringSource{Service: credentials.KeyringService}
}

func newCredentialsSetCommand(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store the provider credentials JSON read from --file or stdin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			providerType, err := a.cfg.ProviderType()
			if err != nil {
				return exitError("config", ExitConfigError, err)
			}

			var data []byte
			if file == "" || file == "-" {
				data, err = io.ReadAll(cmd.InOrStdin())
			} else {
				data, err = afero.ReadFile(a.fs, file)
			}
			if err != nil {
				return exitError("read credentials", ExitConfigError, err)
			}

			if err := a.keyring().Save(providerType, a.cfg.Provider.CredentialsRef, data); err != nil {
				return exitError("store credentials", ExitProviderError, err)
			}
			fmt.Fprintf(a.out, "stored %s credentials in keyring\n", providerType.DisplayName())
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Credentials JSON file (default stdin)")
	return cmd
}

func newCredentialsDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete",
		Short: "Remove the provider credentials from the keyring",
		RunE: func(*cobra.Command, []string) error {
			providerType, err := a.cfg.ProviderType()
			if err != nil {
				return exitError("config", ExitConfigError, err)
			}
			if err := a.keyring().Delete(providerType, a.cfg.Provider.CredentialsRef); err != nil {
				return exitError("delete credentials", ExitProviderError, err)
			}
			fmt.Fprintf(a.out, "removed %s credentials from keyring\n", providerType.DisplayName())
			return nil
		},
	}
}

// =============================================================================
// SSH Keys
// =============================================================================

func newKeyCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the cluster SSH key",
	}
	cmd.AddCommand(newKeySealCommand(a))
	return cmd
}

func newKeySealCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seal <private-key-file>",
		Short: "Encrypt an SSH private key with cluster.encryption_key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			key, err := afero.ReadFile(a.fs, args[0])
			if err != nil {
				return exitError("read ssh key", ExitConfigError, err)
			}
			if _, err := crypto.ParseSSHPrivateKey(key, a.cfg.Cluster.SSHPassphrase); err != nil {
				return exitError("parse ssh key", ExitConfigError, err)
			}
			sealed, err := crypto.SealKey(key, a.cfg.Cluster.EncryptionKey)
			if err != nil {
				return exitError("seal ssh key", ExitConfigError, err)
			}
			fmt.Fprintln(a.out, sealed)
			return nil
		},
	}
}
