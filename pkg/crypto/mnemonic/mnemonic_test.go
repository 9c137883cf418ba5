package mnemonic

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tyler-smith/go-bip39"
)

const abandonAbout = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestNewMnemonic(t *testing.T) {
	tests := []struct {
		name        string
		entropyBits int
		wantWords   int
		wantError   bool
	}{
		{"128 bits (12 words)", 128, 12, false},
		{"160 bits (15 words)", 160, 15, false},
		{"192 bits (18 words)", 192, 18, false},
		{"224 bits (21 words)", 224, 21, false},
		{"256 bits (24 words)", 256, 24, false},
		{"Invalid: 64 bits", 64, 0, true},
		{"Invalid: 512 bits", 512, 0, true},
		{"Invalid: 129 bits", 129, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMnemonic(tt.entropyBits)
			if tt.wantError {
				assert.Error(t, err)
				assert.Nil(t, m)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, m)
				assert.Equal(t, tt.wantWords, m.WordCount())
				assert.True(t, bip39.IsMnemonicValid(m.Words()))
			}
		})
	}
}

func TestFromWords(t *testing.T) {
	m, err := FromWords(abandonAbout)
	require.NoError(t, err)
	assert.Equal(t, 12, m.WordCount())
	assert.Equal(t, abandonAbout, m.Words())

	spaced, err := FromWords("  abandon abandon abandon abandon abandon abandon\nabandon abandon abandon abandon abandon   about ")
	require.NoError(t, err)
	assert.Equal(t, abandonAbout, spaced.Words())

	invalidMnemonic := "invalid invalid invalid invalid invalid invalid invalid invalid invalid invalid invalid invalid"
	_, err = FromWords(invalidMnemonic)
	assert.Error(t, err)
}

func TestScalar(t *testing.T) {
	m, err := FromWords(abandonAbout)
	require.NoError(t, err)

	scalar := m.Scalar()
	assert.Len(t, scalar, 32)
	assert.Equal(t, "5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc1", hex.EncodeToString(scalar))

	m.SetPassphrase("TREZOR")
	withPass := m.Scalar()
	assert.Equal(t, bip39.NewSeed(abandonAbout, "TREZOR")[:32], withPass)
	assert.NotEqual(t, scalar, withPass)
}

func TestWipe(t *testing.T) {
	m, err := FromWords(abandonAbout)
	require.NoError(t, err)
	m.SetPassphrase("secret")

	m.Wipe()
	assert.Equal(t, 0, m.WordCount())
	assert.Equal(t, "", m.Words())
}
