package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	km, err := Generate()
	require.NoError(t, err)
	defer km.Destroy()

	assert.Len(t, km.PublicKey(), PublicSize)
	assert.Len(t, km.PublicKeyHex(), 2*PublicSize)

	decoded, err := base58.Decode(km.Address())
	require.NoError(t, err)
	assert.Equal(t, []byte(km.PublicKey()), decoded)

	other, err := Generate()
	require.NoError(t, err)
	defer other.Destroy()
	assert.NotEqual(t, km.PublicKeyHex(), other.PublicKeyHex())
}

func TestFromExpandedMatchesStdlib(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	km, err := FromExpanded(priv)
	require.NoError(t, err)
	defer km.Destroy()

	assert.Equal(t, pub, km.PublicKey())

	scalar, err := km.Scalar()
	require.NoError(t, err)
	assert.Equal(t, []byte(priv[:ScalarSize]), scalar)

	err = km.WithExpanded(func(expanded []byte) error {
		assert.Equal(t, []byte(priv), expanded)
		return nil
	})
	require.NoError(t, err)
}

func TestFromExpandedRejectsBadInput(t *testing.T) {
	_, err := FromExpanded(make([]byte, 63))
	assert.ErrorIs(t, err, ErrInvalidLength)

	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	tampered := bytes.Clone(priv)
	tampered[63] ^= 0x01

	_, err = FromExpanded(tampered)
	assert.ErrorIs(t, err, ErrPublicKey)
}

func TestFromScalarZeroesInput(t *testing.T) {
	scalar := bytes.Repeat([]byte{3}, ScalarSize)
	km, err := FromScalar(scalar)
	require.NoError(t, err)
	defer km.Destroy()

	assert.Equal(t, make([]byte, ScalarSize), scalar)

	got, err := km.Scalar()
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{3}, ScalarSize), got)

	_, err = FromScalar(make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidLength)
}

func TestSignAndDestroy(t *testing.T) {
	km, err := Generate()
	require.NoError(t, err)

	msg := []byte("transfer 1 SOL")
	sig, err := km.Sign(msg)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(km.PublicKey(), msg, sig))

	km.Destroy()
	assert.True(t, km.Destroyed())
	_, err = km.Sign(msg)
	assert.Error(t, err)
	_, err = km.Scalar()
	assert.Error(t, err)
	assert.NotEmpty(t, km.PublicKeyHex())
}

func TestParsePublicKeyHex(t *testing.T) {
	km, err := Generate()
	require.NoError(t, err)
	defer km.Destroy()

	pub, err := ParsePublicKeyHex(km.PublicKeyHex())
	require.NoError(t, err)
	assert.Equal(t, km.PublicKey(), pub)

	addr, err := AddressFromPublicKeyHex(km.PublicKeyHex())
	require.NoError(t, err)
	assert.Equal(t, km.Address(), addr)

	_, err = ParsePublicKeyHex("nothex")
	assert.Error(t, err)

	_, err = ParsePublicKeyHex(hex.EncodeToString([]byte{1, 2, 3}))
	assert.ErrorIs(t, err, ErrInvalidLength)
}
