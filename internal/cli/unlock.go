package cli

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/spf13/cobra"

	"github.com/Davincible/shardwallet/pkg/crypto/keys"
	"github.com/Davincible/shardwallet/pkg/secure"
)

func NewUnlockCommand() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Rebuild the wallet key from the local and server shares",
		Long: `Decrypt the local active share with your password, fetch the server share
and rebuild the key. The rebuilt public key must match the wallet record.

With --sign the key signs the given message and prints the signature.`,
		Example: `  shardwallet unlock
  shardwallet unlock --sign "hello"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			km, err := s.unlock(cmd.Context())
			if err != nil {
				return err
			}
			defer km.Destroy()

			printSuccess(s.out, "Wallet unlocked")
			printWallet(s.out, km.PublicKeyHex(), km.Address())

			if message != "" {
				sig, err := km.Sign([]byte(message))
				if err != nil {
					return fmt.Errorf("failed to sign: %w", err)
				}
				if !ed25519.Verify(km.PublicKey(), []byte(message), sig) {
					return fmt.Errorf("signature does not verify against %s", km.PublicKeyHex())
				}
				fmt.Fprintf(s.out, "  Signature:  %s\n", base58.Encode(sig))
				fmt.Fprintf(s.out, "  (hex)       %s\n", hex.EncodeToString(sig))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&message, "sign", "", "Sign a message with the unlocked key")
	return cmd
}

func (s *session) unlock(ctx context.Context) (*keys.KeyMaterial, error) {
	record, err := s.loadRecord()
	if err != nil {
		return nil, err
	}

	password, err := s.prompt.readSecret("Wallet password: ")
	if err != nil {
		return nil, err
	}
	defer secure.Zero(password)

	return s.orch.Recover(ctx, record, password)
}
