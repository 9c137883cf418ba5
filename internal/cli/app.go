// Package cli implements the shardwallet and keyshare-server commands.
package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/shardwallet/internal/client"
	"github.com/Davincible/shardwallet/internal/config"
	"github.com/Davincible/shardwallet/internal/wallet"
	"github.com/Davincible/shardwallet/pkg/storage"
)

// session bundles what a wallet command needs after config is loaded.
type session struct {
	cfg     *config.ClientConfig
	records *storage.RecordStore
	orch    *wallet.Orchestrator
	prompt  *prompter
	out     io.Writer
	log     *slog.Logger

	// qrPath, when set, receives the backup share as a QR code image.
	qrPath string
}

func newSession(cmd *cobra.Command) (*session, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadClient(path)
	if err != nil {
		return nil, err
	}
	if url, _ := cmd.Flags().GetString("server"); url != "" {
		cfg.Server.URL = url
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	if !cfg.UI.UseColor {
		color.NoColor = true
	}

	level := "warn"
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose || cfg.UI.Verbose {
		level = "debug"
	}
	log := NewLogger(cmd.ErrOrStderr(), level, false).With("component", "wallet")
	c, err := client.New(client.Config{
		BaseURL: cfg.Server.URL,
		Timeout: cfg.Server.Timeout,
		Log:     log,
	})
	if err != nil {
		return nil, err
	}

	cipher := storage.NewPasswordCipherWithIterations(cfg.Security.KDFIterations)
	return &session{
		cfg:     cfg,
		records: storage.NewRecordStore(cfg.Storage.RecordPath),
		orch:    wallet.New(c, cipher, log),
		prompt:  newPrompter(cmd.InOrStdin(), cmd.OutOrStdout()),
		out:     cmd.OutOrStdout(),
		log:     log,
	}, nil
}

// loadRecord returns the local wallet record or a hint to create one.
func (s *session) loadRecord() (storage.WalletRecord, error) {
	record, err := s.records.Load()
	if err != nil {
		return record, fmt.Errorf("%w (run 'shardwallet create' or 'shardwallet restore' first)", err)
	}
	return record, nil
}

// ExitCode maps a command error onto the process exit status: 1 for outcomes
// the user can act on (wrong password, missing share, bad input), 2 otherwise.
func ExitCode(err error) int {
	if wallet.IsUserError(err) {
		return 1
	}
	return 2
}

// NewWalletRootCommand builds the shardwallet command tree.
func NewWalletRootCommand(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "shardwallet",
		Short: "Threshold custody for Ed25519 wallets",
		Long: `shardwallet keeps an Ed25519 wallet key split into three shares:

  - an active share, encrypted with your password on this device
  - a backup share, shown to you once to write down
  - a server share, held by a keyshare server

Any two shares rebuild the key. One share alone reveals nothing.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to config file (default: shardwallet.yaml)")
	rootCmd.PersistentFlags().String("server", "", "Keyshare server URL (overrides config)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(
		NewCreateCommand(),
		NewImportCommand(),
		NewUnlockCommand(),
		NewVerifyCommand(),
		NewRestoreCommand(),
		NewResetCommand(),
		NewShowCommand(),
	)
	return rootCmd
}
