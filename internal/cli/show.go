package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
)

type walletInfo struct {
	DeviceID      string `json:"deviceId"`
	PubkeyHex     string `json:"pubkeyHex"`
	AddressBase58 string `json:"addressBase58"`
	RecordPath    string `json:"recordPath"`
	ServerURL     string `json:"serverUrl"`
}

func NewShowCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the wallet stored on this device",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newSession(cmd)
			if err != nil {
				return err
			}
			record, err := s.loadRecord()
			if err != nil {
				return err
			}

			info := walletInfo{
				DeviceID:      record.DeviceID,
				PubkeyHex:     record.PubkeyHex,
				AddressBase58: record.AddressBase58,
				RecordPath:    s.records.Path(),
				ServerURL:     s.cfg.Server.URL,
			}
			if asJSON {
				enc := json.NewEncoder(s.out)
				enc.SetIndent("", "  ")
				return enc.Encode(info)
			}

			printWallet(s.out, info.PubkeyHex, info.AddressBase58)
			printField(s.out, "Device", info.DeviceID)
			printField(s.out, "Record", info.RecordPath)
			printField(s.out, "Server", info.ServerURL)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output in JSON format")
	return cmd
}
