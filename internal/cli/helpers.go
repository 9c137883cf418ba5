package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/Davincible/shardwallet/internal/validation"
	"github.com/Davincible/shardwallet/pkg/secure"
)

// prompter reads answers from the command's stdin. Passwords are read without
// echo when stdin is a terminal.
type prompter struct {
	in     io.Reader
	reader *bufio.Reader
	out    io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{
		in:     in,
		reader: bufio.NewReader(in),
		out:    out,
	}
}

func (p *prompter) terminalFd() (int, bool) {
	f, ok := p.in.(*os.File)
	if !ok {
		return 0, false
	}
	fd := int(f.Fd())
	return fd, term.IsTerminal(fd)
}

// readSecret reads one hidden line. The caller must Zero the result.
func (p *prompter) readSecret(prompt string) ([]byte, error) {
	fmt.Fprint(p.out, prompt)

	if fd, ok := p.terminalFd(); ok {
		secret, err := term.ReadPassword(fd)
		fmt.Fprintln(p.out)
		if err != nil {
			return nil, err
		}
		return secret, nil
	}

	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

func (p *prompter) readLine(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	line, err := p.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return validation.SanitizeInput(line), nil
}

func (p *prompter) confirm(prompt string) (bool, error) {
	answer, err := p.readLine(prompt + " [y/N]: ")
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes", nil
}

// readNewPassword asks twice and enforces the minimum length.
func (p *prompter) readNewPassword(minLen int) ([]byte, error) {
	password, err := p.readSecret("New wallet password: ")
	if err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(password); err != nil {
		secure.Zero(password)
		return nil, err
	}
	if len(password) < minLen {
		secure.Zero(password)
		return nil, fmt.Errorf("password must be at least %d characters", minLen)
	}

	again, err := p.readSecret("Repeat password: ")
	if err != nil {
		secure.Zero(password)
		return nil, err
	}
	defer secure.Zero(again)
	if !secure.ConstantTimeCompare(password, again) {
		secure.Zero(password)
		return nil, fmt.Errorf("passwords do not match")
	}
	return password, nil
}

func printWallet(w io.Writer, pubkeyHex, address string) {
	cyan := color.New(color.FgCyan, color.Bold)
	cyan.Fprintln(w, "Wallet")
	fmt.Fprintf(w, "  Address:    %s\n", address)
	fmt.Fprintf(w, "  Public key: %s\n", pubkeyHex)
}

func printField(w io.Writer, name, value string) {
	fmt.Fprintf(w, "  %-11s %s\n", name+":", value)
}

// printBackupShare shows the backup share with the usual warnings.
func printBackupShare(w io.Writer, share string) {
	yellow := color.New(color.FgYellow, color.Bold)
	green := color.New(color.FgGreen, color.Bold)

	fmt.Fprintln(w)
	yellow.Fprintln(w, "BACKUP SHARE - write this down and keep it offline")
	fmt.Fprintln(w, strings.Repeat("=", 70))
	green.Fprintf(w, "  %s\n", share)
	fmt.Fprintln(w, strings.Repeat("=", 70))
	fmt.Fprintln(w, "With this share and the keyshare server you can restore the wallet")
	fmt.Fprintln(w, "if this device is lost. It will not be shown again.")
	fmt.Fprintln(w)
}

func printSuccess(w io.Writer, format string, args ...any) {
	color.New(color.FgGreen).Fprintf(w, "✓ "+format+"\n", args...)
}
