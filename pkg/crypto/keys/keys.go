// Package keys models Ed25519 wallet key material: the 32-byte signing scalar
// that gets shared, and the 64-byte expanded secret that signing needs.
package keys

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/Davincible/shardwallet/pkg/secure"
	"github.com/mr-tron/base58"
)

const (
	ScalarSize   = ed25519.SeedSize
	PublicSize   = ed25519.PublicKeySize
	ExpandedSize = ed25519.PrivateKeySize
)

var (
	ErrInvalidLength = errors.New("invalid key length")
	ErrPublicKey     = errors.New("public key does not match scalar")
)

// KeyMaterial keeps the scalar in a SecureBytes. The expanded secret is only
// materialised inside Sign or WithExpanded.
type KeyMaterial struct {
	scalar *secure.SecureBytes
	public ed25519.PublicKey
}

// Generate creates a fresh random keypair.
func Generate() (*KeyMaterial, error) {
	scalar, err := secure.RandomBytes(ScalarSize)
	if err != nil {
		return nil, err
	}
	return FromScalar(scalar)
}

// FromScalar derives the public key from a 32-byte scalar. The scalar slice
// is zeroed on return.
func FromScalar(scalar []byte) (*KeyMaterial, error) {
	defer secure.Zero(scalar)
	if len(scalar) != ScalarSize {
		return nil, fmt.Errorf("%w: scalar must be %d bytes, got %d", ErrInvalidLength, ScalarSize, len(scalar))
	}

	priv := ed25519.NewKeyFromSeed(scalar)
	defer secure.Zero(priv)

	public := make(ed25519.PublicKey, PublicSize)
	copy(public, priv[ScalarSize:])

	return &KeyMaterial{
		scalar: secure.Take(scalar),
		public: public,
	}, nil
}

// FromExpanded imports a 64-byte scalar‖pubkey secret. The trailing public
// half must match the one derived from the scalar.
func FromExpanded(secret []byte) (*KeyMaterial, error) {
	if len(secret) != ExpandedSize {
		return nil, fmt.Errorf("%w: secret key must be %d bytes, got %d", ErrInvalidLength, ExpandedSize, len(secret))
	}

	scalar := make([]byte, ScalarSize)
	copy(scalar, secret[:ScalarSize])

	km, err := FromScalar(scalar)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(km.public, secret[ScalarSize:]) {
		km.Destroy()
		return nil, ErrPublicKey
	}
	return km, nil
}

func (k *KeyMaterial) PublicKey() ed25519.PublicKey {
	out := make(ed25519.PublicKey, len(k.public))
	copy(out, k.public)
	return out
}

func (k *KeyMaterial) PublicKeyHex() string {
	return hex.EncodeToString(k.public)
}

// Address is the base58 form of the public key.
func (k *KeyMaterial) Address() string {
	return base58.Encode(k.public)
}

// Scalar returns a copy of the signing scalar. The caller must Zero it.
func (k *KeyMaterial) Scalar() ([]byte, error) {
	return k.scalar.Copy()
}

// WithExpanded builds scalar‖pubkey for the duration of fn only.
func (k *KeyMaterial) WithExpanded(fn func(expanded []byte) error) error {
	return k.scalar.Use(func(scalar []byte) error {
		expanded := make([]byte, 0, ExpandedSize)
		expanded = append(expanded, scalar...)
		expanded = append(expanded, k.public...)
		defer secure.Zero(expanded)
		return fn(expanded)
	})
}

func (k *KeyMaterial) Sign(message []byte) ([]byte, error) {
	var sig []byte
	err := k.WithExpanded(func(expanded []byte) error {
		sig = ed25519.Sign(ed25519.PrivateKey(expanded), message)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sig, nil
}

// Destroy zeroes the scalar. The public key stays readable.
func (k *KeyMaterial) Destroy() {
	if k == nil {
		return
	}
	k.scalar.Destroy()
}

func (k *KeyMaterial) Destroyed() bool {
	return k.scalar.Destroyed()
}

// ParsePublicKeyHex decodes and length-checks a hex public key.
func ParsePublicKeyHex(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid public key hex: %w", err)
	}
	if len(raw) != PublicSize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidLength, PublicSize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// AddressFromPublicKeyHex converts a hex public key to its base58 address.
func AddressFromPublicKeyHex(s string) (string, error) {
	pub, err := ParsePublicKeyHex(s)
	if err != nil {
		return "", err
	}
	return base58.Encode(pub), nil
}
