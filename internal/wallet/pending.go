package wallet

import (
	"context"
	"fmt"
	"sync"

	"github.com/Davincible/shardwallet/internal/validation"
	"github.com/Davincible/shardwallet/pkg/crypto/shamir"
	"github.com/Davincible/shardwallet/pkg/secure"
	"github.com/Davincible/shardwallet/pkg/storage"
)

// Pending is a freshly distributed wallet whose active share has not been
// sealed yet and whose backup share has not been handed to the user.
type Pending struct {
	PubkeyHex string
	Address   string

	mu        sync.Mutex
	active    *secure.SecureBytes
	backup    *secure.SecureBytes
	finalized bool
	confirmed bool
	o         *Orchestrator
}

// FinalizeWithPassword seals the active share and wipes the plaintext. It
// can only succeed once.
func (p *Pending) FinalizeWithPassword(password []byte) (string, error) {
	if err := validation.ValidatePassword(password); err != nil {
		return "", err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finalized {
		return "", ErrAlreadyFinalized
	}

	var encrypted string
	err := p.active.Use(func(share []byte) error {
		var err error
		encrypted, err = p.o.cipher.Encrypt(share, password)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to encrypt active share: %w", err)
	}

	p.active.Destroy()
	p.finalized = true
	return encrypted, nil
}

func (p *Pending) Record(deviceID, encryptedActiveShare string) storage.WalletRecord {
	return storage.WalletRecord{
		DeviceID:             deviceID,
		PubkeyHex:            p.PubkeyHex,
		AddressBase58:        p.Address,
		EncryptedActiveShare: encryptedActiveShare,
	}
}

// BackupShare returns the hex backup share for one-time display.
func (p *Pending) BackupShare() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.confirmed {
		return "", ErrBackupDiscarded
	}

	var out string
	err := p.backup.Use(func(share []byte) error {
		out = shamir.Share{Data: share}.Hex()
		return nil
	})
	return out, err
}

// ConfirmBackup wipes the backup share once the user has written it down.
func (p *Pending) ConfirmBackup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backup.Destroy()
	p.confirmed = true
}

func (p *Pending) Discard() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active.Destroy()
	p.backup.Destroy()
	p.finalized = true
	p.confirmed = true
}

// Verify fetches the server share back and checks that all three shares
// rebuild the same key. It needs both client shares, so it must run before
// FinalizeWithPassword and ConfirmBackup.
func (p *Pending) Verify(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.finalized {
		return ErrAlreadyFinalized
	}
	if p.confirmed {
		return ErrBackupDiscarded
	}

	unlock := p.o.locks.Lock(p.PubkeyHex)
	defer unlock()

	server, err := p.o.fetchServerShare(ctx, p.PubkeyHex)
	if err != nil {
		return err
	}
	defer server.Wipe()

	var set shamir.ShareSet
	defer set.Wipe()
	if set[shamir.RoleActive], err = copyShare(p.active); err != nil {
		return err
	}
	if set[shamir.RoleBackup], err = copyShare(p.backup); err != nil {
		return err
	}
	set[shamir.RoleServer], err = shamir.FromBytes(server.Data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrShareFetchFailed, err)
	}

	km, err := rebuild(set[shamir.RoleActive], set[shamir.RoleBackup], p.PubkeyHex)
	if err != nil {
		return err
	}
	defer km.Destroy()

	scalar, err := km.Scalar()
	if err != nil {
		return err
	}
	defer secure.Zero(scalar)

	if err := VerifyConsistency(scalar, set); err != nil {
		p.o.log.Error("keyshare consistency check failed", "pubkey", p.PubkeyHex, "err", err)
		return err
	}
	return nil
}

func copyShare(sb *secure.SecureBytes) (shamir.Share, error) {
	raw, err := sb.Copy()
	if err != nil {
		return shamir.Share{}, err
	}
	defer secure.Zero(raw)
	return shamir.FromBytes(raw)
}
