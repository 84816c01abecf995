package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"pkt.systems/pslog"
	"pkt.systems/tabstrip/internal/appconfig"
	"pkt.systems/tabstrip/internal/auth"
	"pkt.systems/tabstrip/internal/sshkeys"
	"pkt.systems/tabstrip/schema"
	"pkt.systems/tabstrip/sshserver"
)

func newKeysCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage SSH login keys",
	}
	cmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	cmd.AddCommand(newKeysAddCmd(&cfgPath))
	cmd.AddCommand(newKeysListCmd(&cfgPath))
	cmd.AddCommand(newKeysHostCmd(&cfgPath))
	return cmd
}

func openKeyStore(cmd *cobra.Command, cfgPath string) (*auth.KeyStore, error) {
	cfg, err := appconfig.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	return auth.NewKeyStore(cfg.SSH.AuthorizedKeysPath, pslog.Ctx(cmd.Context()))
}

func newKeysAddCmd(cfgPath *string) *cobra.Command {
	var keyFile string
	cmd := &cobra.Command{
		Use:   "add <identity> [pubkey]",
		Short: "Authorize a public key for an identity",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openKeyStore(cmd, *cfgPath)
			if err != nil {
				return err
			}
			pubKey, err := readPubKey(cmd.InOrStdin(), args, keyFile)
			if err != nil {
				return err
			}
			return store.AddKey(schema.IdentityID(strings.ToLower(strings.TrimSpace(args[0]))), pubKey)
		},
	}
	cmd.Flags().StringVarP(&keyFile, "file", "f", "", "read the public key from a file ('-' for stdin)")
	return cmd
}

func readPubKey(stdin io.Reader, args []string, keyFile string) (string, error) {
	if len(args) > 1 {
		return args[1], nil
	}
	switch keyFile {
	case "":
		return "", fmt.Errorf("public key argument or --file is required")
	case "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", err
		}
		return string(data), nil
	default:
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

func newKeysListCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List identities and their key fingerprints",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openKeyStore(cmd, *cfgPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, user := range store.Users() {
				for _, key := range store.Keys(user) {
					_, _ = fmt.Fprintf(out, "%s\t%s\t%s\n", user, key.Type(), ssh.FingerprintSHA256(key))
				}
			}
			return nil
		},
	}
}

func newKeysHostCmd(cfgPath *string) *cobra.Command {
	var rotate bool
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Print (or rotate) the encrypted SSH host key",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := appconfig.Load(*cfgPath)
			if err != nil {
				return err
			}
			if strings.TrimSpace(cfg.SSH.KeyStorePath) == "" {
				return fmt.Errorf("ssh.key_store_path is not set; the host key lives at %s", cfg.SSH.HostKeyPath)
			}
			vault, err := sshkeys.NewVault(cfg.SSH.KeyStorePath, cfg.SSH.KeyDir, pslog.Ctx(cmd.Context()))
			if err != nil {
				return err
			}
			var signer ssh.Signer
			if rotate {
				signer, err = vault.Rotate(sshserver.HostKeyName)
			} else {
				signer, err = vault.Signer(sshserver.HostKeyName)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s %s", ssh.FingerprintSHA256(signer.PublicKey()), ssh.MarshalAuthorizedKey(signer.PublicKey()))
			return err
		},
	}
	cmd.Flags().BoolVar(&rotate, "rotate", false, "replace the host key")
	return cmd
}
