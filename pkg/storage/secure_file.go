package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/Davincible/shardwallet/pkg/secure"
	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize   = 16
	IVSize     = 16
	KeySize    = 32
	Iterations = 100000
)

// ErrDecrypt covers a wrong password as well as corrupted ciphertext; the
// AEAD cannot tell the two apart.
var ErrDecrypt = errors.New("failed to decrypt: wrong password or corrupted data")

// PasswordCipher protects the active share at rest. The output is
// hex(salt) ‖ hex(iv) ‖ base64(AES-256-GCM ciphertext), with the key derived
// by PBKDF2-SHA256.
type PasswordCipher struct {
	iterations int
}

func NewPasswordCipher() *PasswordCipher {
	return &PasswordCipher{iterations: Iterations}
}

// NewPasswordCipherWithIterations is for tests and low-power targets.
func NewPasswordCipherWithIterations(iterations int) *PasswordCipher {
	if iterations <= 0 {
		iterations = Iterations
	}
	return &PasswordCipher{iterations: iterations}
}

func (c *PasswordCipher) Encrypt(plaintext, password []byte) (string, error) {
	if len(password) == 0 {
		return "", fmt.Errorf("password cannot be empty")
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("failed to generate iv: %w", err)
	}

	gcm, err := c.aead(password, salt)
	if err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nil, iv, plaintext, nil)

	return hex.EncodeToString(salt) + hex.EncodeToString(iv) + base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (c *PasswordCipher) Decrypt(encoded string, password []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, fmt.Errorf("password cannot be empty")
	}

	const header = 2 * (SaltSize + IVSize)
	if len(encoded) <= header {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}

	salt, err := hex.DecodeString(encoded[:2*SaltSize])
	if err != nil {
		return nil, fmt.Errorf("%w: bad salt encoding", ErrDecrypt)
	}
	iv, err := hex.DecodeString(encoded[2*SaltSize : header])
	if err != nil {
		return nil, fmt.Errorf("%w: bad iv encoding", ErrDecrypt)
	}
	ciphertext, err := base64.StdEncoding.Strict().DecodeString(encoded[header:])
	if err != nil {
		return nil, fmt.Errorf("%w: bad ciphertext encoding", ErrDecrypt)
	}

	gcm, err := c.aead(password, salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, ErrDecrypt
	}

	return plaintext, nil
}

func (c *PasswordCipher) aead(password, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(password, salt, c.iterations, KeySize, sha256.New)
	defer secure.Zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
