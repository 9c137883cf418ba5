package cli

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strings"
)

// writeBackupQR renders share as a QR code image with the qrencode binary.
// The format follows the file extension: .svg or .eps, otherwise PNG.
func writeBackupQR(ctx context.Context, share, path string) error {
	bin, err := exec.LookPath("qrencode")
	if err != nil {
		return fmt.Errorf("qrencode is not installed (apt install qrencode / brew install qrencode)")
	}

	format := "PNG"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".svg":
		format = "SVG"
	case ".eps":
		format = "EPS"
	}

	cmd := exec.CommandContext(ctx, bin, "-s", "8", "-l", "M", "-t", format, "-o", path)
	cmd.Stdin = strings.NewReader(share)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("qrencode failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}
