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
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := cli.NewServerRootCommand(fmt.Sprintf("%s (built %s, commit %s)", Version, BuildTime, GitCommit))
	if err := rootCmd.Execute(); err != nil {
		slog.Error("Server exited", "err", err)
		os.Exit(1)
	}
}
