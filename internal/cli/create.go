package cli

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/Davincible/shardwallet/internal/validation"
	"github.com/Davincible/shardwallet/internal/wallet"
	"github.com/Davincible/shardwallet/pkg/secure"
)

func NewCreateCommand() *cobra.Command {
	var (
		force  bool
		qrPath string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new wallet and distribute its keyshares",
		Example: `  # Create a wallet against the configured server
  shardwallet create

  # Use a specific server
  shardwallet create --server https://keyshare.example.com`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if err := s.guardExisting(force); err != nil {
				return err
			}
			s.qrPath = qrPath

			pending, err := s.orch.CreateWallet(cmd.Context(), nil)
			if err != nil {
				return err
			}
			return s.finishPending(cmd.Context(), pending)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing local wallet record")
	cmd.Flags().StringVar(&qrPath, "qr", "", "Also write the backup share as a QR code image (needs qrencode)")
	return cmd
}

func NewImportCommand() *cobra.Command {
	var (
		force      bool
		useSecret  bool
		passphrase bool
		qrPath     string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import an existing key from a BIP-39 phrase or a 64-byte secret key",
		Long: `Import an existing Ed25519 key and split it like a freshly created one.

By default a BIP-39 mnemonic is read; the first 32 bytes of its seed are used
as the Ed25519 seed, which matches solana-keygen without a derivation path.
With --secret a 64-byte secret key (scalar followed by public key) is read as
hex or base58.`,
		Example: `  shardwallet import
  shardwallet import --passphrase
  shardwallet import --secret`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if err := s.guardExisting(force); err != nil {
				return err
			}
			s.qrPath = qrPath

			var pending *wallet.Pending
			if useSecret {
				pending, err = s.importSecret(cmd.Context())
			} else {
				pending, err = s.importMnemonic(cmd.Context(), passphrase)
			}
			if err != nil {
				return err
			}
			return s.finishPending(cmd.Context(), pending)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing local wallet record")
	cmd.Flags().BoolVar(&useSecret, "secret", false, "Read a 64-byte secret key instead of a mnemonic")
	cmd.Flags().BoolVar(&passphrase, "passphrase", false, "Prompt for a BIP-39 passphrase")
	cmd.Flags().StringVar(&qrPath, "qr", "", "Also write the backup share as a QR code image (needs qrencode)")
	return cmd
}

func (s *session) guardExisting(force bool) error {
	if s.records.Exists() && !force {
		return fmt.Errorf("a wallet record already exists at %s (use --force to replace it)", s.records.Path())
	}
	return nil
}

func (s *session) importMnemonic(ctx context.Context, withPassphrase bool) (*wallet.Pending, error) {
	phrase, err := s.prompt.readSecret("Mnemonic phrase: ")
	if err != nil {
		return nil, err
	}
	defer secure.Zero(phrase)

	words := strings.ToLower(strings.Join(strings.Fields(string(phrase)), " "))
	if err := validation.ValidateMnemonic(words); err != nil {
		return nil, fmt.Errorf("%w: %w", wallet.ErrInvalidKeyMaterial, err)
	}

	var pass string
	if withPassphrase {
		raw, err := s.prompt.readSecret("BIP-39 passphrase: ")
		if err != nil {
			return nil, err
		}
		pass = string(raw)
		secure.Zero(raw)
		if err := validation.ValidatePassphrase(pass); err != nil {
			return nil, err
		}
	}

	return s.orch.CreateWalletFromMnemonic(ctx, words, pass)
}

func (s *session) importSecret(ctx context.Context) (*wallet.Pending, error) {
	input, err := s.prompt.readSecret("Secret key (hex or base58): ")
	if err != nil {
		return nil, err
	}
	defer secure.Zero(input)

	secret, err := decodeSecretKey(strings.TrimSpace(string(input)))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", wallet.ErrInvalidKeyMaterial, err)
	}
	defer secure.Zero(secret)

	return s.orch.CreateWallet(ctx, secret)
}

// decodeSecretKey accepts 128 hex characters or the base58 form Solana
// wallets export.
func decodeSecretKey(input string) ([]byte, error) {
	if validation.ValidateHex(input) == nil {
		return hex.DecodeString(input)
	}
	secret, err := base58.Decode(input)
	if err != nil {
		return nil, fmt.Errorf("secret key is neither hex nor base58")
	}
	return secret, nil
}

// finishPending verifies, seals and persists a freshly split wallet, then
// hands the backup share to the user.
func (s *session) finishPending(ctx context.Context, pending *wallet.Pending) error {
	defer pending.Discard()

	if s.cfg.Security.AutoVerify {
		if err := pending.Verify(ctx); err != nil {
			return fmt.Errorf("keyshare verification failed: %w", err)
		}
		printSuccess(s.out, "All three keyshares verified")
	}

	backup, err := pending.BackupShare()
	if err != nil {
		return err
	}

	password, err := s.prompt.readNewPassword(s.cfg.Security.MinPasswordLength)
	if err != nil {
		return err
	}
	defer secure.Zero(password)

	encrypted, err := pending.FinalizeWithPassword(password)
	if err != nil {
		return err
	}

	record := pending.Record(wallet.NewDeviceID(), encrypted)
	if err := s.records.Save(record); err != nil {
		return err
	}

	printWallet(s.out, pending.PubkeyHex, pending.Address)
	printBackupShare(s.out, backup)
	if s.qrPath != "" {
		if err := writeBackupQR(ctx, backup, s.qrPath); err != nil {
			s.log.Warn("failed to write backup QR code", "path", s.qrPath, "err", err)
			fmt.Fprintf(s.out, "Could not write QR code: %v\n", err)
		} else {
			fmt.Fprintf(s.out, "Backup share QR code written to %s. Delete it once printed.\n", s.qrPath)
		}
	}

	ok, err := s.prompt.confirm("Have you written down the backup share?")
	if err != nil {
		return err
	}
	pending.ConfirmBackup()
	if !ok {
		s.log.Warn("backup share not confirmed", "pubkey", pending.PubkeyHex)
		fmt.Fprintln(s.out, "The backup share has been discarded. Without it, losing this device or the")
		fmt.Fprintln(s.out, "server share means losing the wallet.")
		return nil
	}

	printSuccess(s.out, "Wallet saved to %s", s.records.Path())
	return nil
}
