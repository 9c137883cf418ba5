package validation

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// KeyshareHexLen is the hex length of a share of a 32-byte scalar.
	KeyshareHexLen = 66
	pubkeyHexLen   = 64

	MaxPasswordLen = 256
)

var (
	ErrEmptyPassword = errors.New("password cannot be empty")

	hexPattern = regexp.MustCompile(`^[0-9a-fA-F]+$`)
)

func ValidateHex(input string) error {
	input = strings.TrimSpace(input)
	if len(input) == 0 {
		return fmt.Errorf("hex string cannot be empty")
	}

	if len(input)%2 != 0 {
		return fmt.Errorf("hex string must have even length")
	}

	if !hexPattern.MatchString(input) {
		return fmt.Errorf("invalid hex characters")
	}

	return nil
}

// ValidateShare checks the wire form of a wallet keyshare: 33 bytes with a
// non-zero trailing x-coordinate.
func ValidateShare(share string) error {
	share = strings.TrimSpace(share)
	if err := ValidateHex(share); err != nil {
		return fmt.Errorf("invalid share format: %w", err)
	}
	if len(share) != KeyshareHexLen {
		return fmt.Errorf("share must be %d hex characters (got %d)", KeyshareHexLen, len(share))
	}

	data, err := hex.DecodeString(share)
	if err != nil {
		return fmt.Errorf("failed to decode share: %w", err)
	}
	if data[len(data)-1] == 0 {
		return fmt.Errorf("share index cannot be 0")
	}

	return nil
}

func ValidatePubkeyHex(pubkey string) error {
	pubkey = strings.TrimSpace(pubkey)
	if err := ValidateHex(pubkey); err != nil {
		return fmt.Errorf("invalid public key: %w", err)
	}
	if len(pubkey) != pubkeyHexLen {
		return fmt.Errorf("public key must be %d hex characters (got %d)", pubkeyHexLen, len(pubkey))
	}
	return nil
}

// ValidatePassword rejects empty, oversized and non-UTF-8 passwords.
func ValidatePassword(password []byte) error {
	if len(password) == 0 {
		return ErrEmptyPassword
	}
	if len(password) > MaxPasswordLen {
		return fmt.Errorf("password too long (max %d bytes)", MaxPasswordLen)
	}
	if !utf8.Valid(password) {
		return fmt.Errorf("password is not valid UTF-8")
	}
	for i, ch := range string(password) {
		if ch == 0 {
			return fmt.Errorf("password contains null character at position %d", i)
		}
	}
	return nil
}

func ValidateMnemonic(words string) error {
	words = strings.TrimSpace(words)
	if words == "" {
		return fmt.Errorf("mnemonic cannot be empty")
	}

	wordList := strings.Fields(words)
	if !ValidateWordCount(len(wordList)) {
		return fmt.Errorf("mnemonic must have 12, 15, 18, 21, or 24 words (got %d)", len(wordList))
	}

	for i, word := range wordList {
		if len(word) < 3 || len(word) > 8 {
			return fmt.Errorf("word %d has invalid length: %s", i+1, word)
		}

		for _, ch := range word {
			if ch < 'a' || ch > 'z' {
				return fmt.Errorf("word %d contains invalid characters: %s", i+1, word)
			}
		}
	}

	return nil
}

func ValidatePassphrase(passphrase string) error {
	if len(passphrase) > MaxPasswordLen {
		return fmt.Errorf("passphrase too long (max %d characters)", MaxPasswordLen)
	}

	for i, ch := range passphrase {
		if ch == 0 {
			return fmt.Errorf("passphrase contains null character at position %d", i)
		}
	}

	return nil
}

func ValidateServerURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("server url must use http or https")
	}
	if u.Host == "" {
		return fmt.Errorf("server url has no host")
	}
	return nil
}

func SanitizeInput(input string) string {
	input = strings.TrimSpace(input)

	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\r", "\n")

	lines := strings.Split(input, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	return strings.Join(lines, "\n")
}

func ValidateWordCount(count int) bool {
	validCounts := []int{12, 15, 18, 21, 24}
	for _, valid := range validCounts {
		if count == valid {
			return true
		}
	}
	return false
}
