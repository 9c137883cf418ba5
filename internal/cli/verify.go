package cli

import (
	"github.com/spf13/cobra"

	"github.com/Davincible/shardwallet/internal/validation"
	"github.com/Davincible/shardwallet/pkg/secure"
)

func NewVerifyCommand() *cobra.Command {
	var checkBackup bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check that the wallet can be rebuilt",
		Long: `Unlock the wallet to prove the active and server shares still rebuild the
recorded public key. With --backup the written-down backup share is checked
too: every pair of the three shares must rebuild the same key.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}

			if !checkBackup {
				km, err := s.unlock(cmd.Context())
				if err != nil {
					return err
				}
				defer km.Destroy()
				printSuccess(s.out, "Active and server shares rebuild %s", km.Address())
				return nil
			}

			record, err := s.loadRecord()
			if err != nil {
				return err
			}
			password, err := s.prompt.readSecret("Wallet password: ")
			if err != nil {
				return err
			}
			defer secure.Zero(password)

			backup, err := s.prompt.readLine("Backup share: ")
			if err != nil {
				return err
			}
			if err := validation.ValidateShare(backup); err != nil {
				return err
			}

			if err := s.orch.VerifyBackup(cmd.Context(), record, password, backup); err != nil {
				return err
			}
			printSuccess(s.out, "All three keyshares rebuild %s", record.AddressBase58)
			return nil
		},
	}

	cmd.Flags().BoolVar(&checkBackup, "backup", false, "Also check the written-down backup share")
	return cmd
}
