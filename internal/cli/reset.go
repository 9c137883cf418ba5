package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewResetCommand() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Erase the local wallet record",
		Long: `Overwrite and delete the local wallet record. The server share is not
touched; with the backup share the wallet can still be restored.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			if !s.records.Exists() {
				fmt.Fprintln(s.out, "No wallet record to erase.")
				return nil
			}

			if !yes {
				ok, err := s.prompt.confirm(fmt.Sprintf("Erase %s?", s.records.Path()))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(s.out, "Aborted.")
					return nil
				}
			}

			if err := s.orch.Reset(s.records, nil); err != nil {
				return err
			}
			printSuccess(s.out, "Local wallet record erased")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip confirmation")
	return cmd
}
