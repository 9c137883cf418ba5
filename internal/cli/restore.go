package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Davincible/shardwallet/internal/validation"
	"github.com/Davincible/shardwallet/pkg/crypto/keys"
)

func NewRestoreCommand() *cobra.Command {
	var (
		pubkey string
		force  bool
		qrPath string
	)

	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Restore a wallet on this device from the backup share",
		Long: `Rebuild the wallet from your backup share and the server share, then split
it again. This device gets a new active share, the server share is replaced
and a NEW backup share is shown. The old backup share stops working.`,
		Example: `  shardwallet restore --pubkey 3b6a27bc...`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if err := s.guardExisting(force); err != nil {
				return err
			}
			s.qrPath = qrPath

			if pubkey == "" {
				pubkey, err = s.prompt.readLine("Wallet public key (hex): ")
				if err != nil {
					return err
				}
			}
			if err := validation.ValidatePubkeyHex(pubkey); err != nil {
				return err
			}
			address, err := keys.AddressFromPublicKeyHex(pubkey)
			if err != nil {
				return err
			}
			fmt.Fprintf(s.out, "Restoring %s\n", address)

			backup, err := s.prompt.readLine("Backup share: ")
			if err != nil {
				return err
			}
			if err := validation.ValidateShare(backup); err != nil {
				return err
			}

			pending, err := s.orch.RestoreFromBackup(cmd.Context(), pubkey, backup)
			if err != nil {
				return err
			}
			fmt.Fprintln(s.out, "Your previous backup share no longer works. Write down the new one below.")
			return s.finishPending(cmd.Context(), pending)
		},
	}

	cmd.Flags().StringVar(&pubkey, "pubkey", "", "Hex public key of the wallet to restore")
	cmd.Flags().BoolVar(&force, "force", false, "Replace an existing local wallet record")
	cmd.Flags().StringVar(&qrPath, "qr", "", "Also write the new backup share as a QR code image (needs qrencode)")
	return cmd
}
