// Package shamir wraps the GF(256) Shamir implementation from Vault and fixes
// the (3,2) keyshare layout used for wallet custody.
package shamir

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Davincible/shardwallet/pkg/secure"
	"github.com/hashicorp/vault/shamir"
)

const (
	// Parts is the number of shares a wallet scalar is split into.
	Parts = 3
	// Threshold is the number of shares needed to rebuild the scalar.
	Threshold = 2
)

// Role of a share inside a ShareSet. The order is fixed by convention.
const (
	RoleActive = 0 // kept by the client, encrypted at rest
	RoleBackup = 1 // shown to the user once
	RoleServer = 2 // held by the remote share store
)

// Share is one evaluation of the sharing polynomial. Data is laid out as the
// y-values followed by a single x-coordinate byte, which is also Index.
type Share struct {
	Index byte
	Data  []byte
}

type Config struct {
	Parts     int
	Threshold int
}

// KeyshareConfig is the only configuration the wallet protocol uses.
var KeyshareConfig = Config{Parts: Parts, Threshold: Threshold}

func (c *Config) Validate() error {
	if c.Parts < 2 {
		return fmt.Errorf("parts must be at least 2, got %d", c.Parts)
	}
	if c.Threshold < 2 {
		return fmt.Errorf("threshold must be at least 2, got %d", c.Threshold)
	}
	if c.Threshold > c.Parts {
		return fmt.Errorf("threshold (%d) cannot be greater than parts (%d)", c.Threshold, c.Parts)
	}
	if c.Parts > 255 {
		return fmt.Errorf("parts cannot exceed 255, got %d", c.Parts)
	}
	return nil
}

func Split(secret []byte, config Config) ([]Share, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if len(secret) == 0 {
		return nil, fmt.Errorf("secret cannot be empty")
	}

	parts, err := shamir.Split(secret, config.Parts, config.Threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split secret: %w", err)
	}

	result := make([]Share, len(parts))
	for i, part := range parts {
		result[i] = Share{
			Index: part[len(part)-1],
			Data:  part,
		}
	}

	return result, nil
}

// Combine rebuilds the secret from at least Threshold shares. A single share
// is always rejected, never interpolated.
func Combine(shares []Share) ([]byte, error) {
	if len(shares) < Threshold {
		return nil, fmt.Errorf("at least %d shares are required for reconstruction", Threshold)
	}

	parts := make([][]byte, len(shares))
	for i, share := range shares {
		if len(share.Data) == 0 {
			return nil, fmt.Errorf("share %d has empty data", i)
		}
		if len(share.Data) != len(shares[0].Data) {
			return nil, fmt.Errorf("share %d length %d does not match %d", i, len(share.Data), len(shares[0].Data))
		}
		parts[i] = share.Data
	}

	secret, err := shamir.Combine(parts)
	if err != nil {
		return nil, fmt.Errorf("failed to combine shares: %w", err)
	}

	return secret, nil
}

// FromBytes wraps raw share bytes, copying them.
func FromBytes(data []byte) (Share, error) {
	if len(data) < 2 {
		return Share{}, fmt.Errorf("share is too short: %d bytes", len(data))
	}
	if data[len(data)-1] == 0 {
		return Share{}, fmt.Errorf("share index cannot be 0")
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return Share{Index: buf[len(buf)-1], Data: buf}, nil
}

// DecodeHex parses the wire form of a share.
func DecodeHex(s string) (Share, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return Share{}, fmt.Errorf("invalid share hex: %w", err)
	}
	defer secure.Zero(raw)
	return FromBytes(raw)
}

// Hex returns the lowercase hex wire form.
func (s Share) Hex() string {
	return hex.EncodeToString(s.Data)
}

func (s *Share) Wipe() {
	secure.Zero(s.Data)
	s.Data = nil
	s.Index = 0
}

func VerifyShare(share Share, expectedLen int) error {
	if len(share.Data) != expectedLen {
		return fmt.Errorf("invalid share length: expected %d, got %d", expectedLen, len(share.Data))
	}
	if share.Index == 0 {
		return fmt.Errorf("share index cannot be 0")
	}
	if share.Data[len(share.Data)-1] != share.Index {
		return fmt.Errorf("share index %d does not match trailing byte %d", share.Index, share.Data[len(share.Data)-1])
	}
	return nil
}

// ShareSet is the ordered triple produced by one split of one scalar.
type ShareSet [Parts]Share

// SplitKey splits a wallet scalar with the fixed (3,2) parameters.
func SplitKey(scalar []byte) (ShareSet, error) {
	var set ShareSet
	shares, err := Split(scalar, KeyshareConfig)
	if err != nil {
		return set, err
	}
	copy(set[:], shares)
	return set, nil
}

func (ss *ShareSet) Active() Share { return ss[RoleActive] }
func (ss *ShareSet) Backup() Share { return ss[RoleBackup] }
func (ss *ShareSet) Server() Share { return ss[RoleServer] }

func (ss *ShareSet) Wipe() {
	for i := range ss {
		ss[i].Wipe()
	}
}
