package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/Davincible/shardwallet/internal/cli"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	rootCmd := cli.NewWalletRootCommand(fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit))
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(cli.ExitCode(err))
	}
}
