// Package mnemonic turns BIP-39 phrases into Ed25519 wallet scalars.
package mnemonic

import (
	"fmt"
	"strings"

	"github.com/Davincible/shardwallet/pkg/secure"
	"github.com/tyler-smith/go-bip39"
)

const (
	MinEntropyBits = 128
	MaxEntropyBits = 256

	scalarSize = 32
)

type Mnemonic struct {
	words      []string
	passphrase string
}

func NewMnemonic(entropyBits int) (*Mnemonic, error) {
	if entropyBits < MinEntropyBits || entropyBits > MaxEntropyBits {
		return nil, fmt.Errorf("entropy bits must be between %d and %d", MinEntropyBits, MaxEntropyBits)
	}

	if entropyBits%32 != 0 {
		return nil, fmt.Errorf("entropy bits must be a multiple of 32")
	}

	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return nil, fmt.Errorf("failed to generate entropy: %w", err)
	}
	defer secure.Zero(entropy)

	phrase, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("failed to generate mnemonic: %w", err)
	}

	return &Mnemonic{
		words: strings.Fields(phrase),
	}, nil
}

func FromWords(words string) (*Mnemonic, error) {
	words = strings.Join(strings.Fields(words), " ")
	if !bip39.IsMnemonicValid(words) {
		return nil, fmt.Errorf("invalid mnemonic phrase")
	}

	return &Mnemonic{
		words: strings.Fields(words),
	}, nil
}

func (m *Mnemonic) Words() string {
	return strings.Join(m.words, " ")
}

func (m *Mnemonic) WordCount() int {
	return len(m.words)
}

func (m *Mnemonic) SetPassphrase(passphrase string) {
	m.passphrase = passphrase
}

func (m *Mnemonic) Seed() []byte {
	return bip39.NewSeed(m.Words(), m.passphrase)
}

// Scalar returns the first 32 bytes of the BIP-39 seed, the Ed25519 seed
// solana-keygen derives when no derivation path is given. The caller must
// Zero the result.
func (m *Mnemonic) Scalar() []byte {
	seed := m.Seed()
	defer secure.Zero(seed)

	scalar := make([]byte, scalarSize)
	copy(scalar, seed[:scalarSize])
	return scalar
}

// Wipe drops the phrase and passphrase from the struct.
func (m *Mnemonic) Wipe() {
	for i := range m.words {
		m.words[i] = ""
	}
	m.words = nil
	m.passphrase = ""
}
