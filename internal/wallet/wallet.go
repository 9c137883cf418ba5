// Package wallet runs the keyshare lifecycle for an Ed25519 wallet: split the
// scalar into an active, a backup and a server share, distribute them, and
// rebuild the key from any two.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/Davincible/shardwallet/pkg/crypto/keys"
	"github.com/Davincible/shardwallet/pkg/crypto/mnemonic"
	"github.com/Davincible/shardwallet/pkg/crypto/shamir"
	"github.com/Davincible/shardwallet/pkg/secure"
	"github.com/Davincible/shardwallet/pkg/storage"
)

// ShareStore holds the server share of each wallet, keyed by hex public key.
type ShareStore interface {
	Store(ctx context.Context, pubkeyHex string, share []byte) error
	Fetch(ctx context.Context, pubkeyHex string) ([]byte, error)
}

// SlotCipher seals the active share under the user's password.
type SlotCipher interface {
	Encrypt(plaintext, password []byte) (string, error)
	Decrypt(encoded string, password []byte) ([]byte, error)
}

// shareSize is the length of one share of a wallet scalar: y-values plus x.
const shareSize = keys.ScalarSize + 1

type Orchestrator struct {
	store  ShareStore
	cipher SlotCipher
	locks  *keyedMutex
	log    *slog.Logger
}

func New(store ShareStore, cipher SlotCipher, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:  store,
		cipher: cipher,
		locks:  newKeyedMutex(),
		log:    log,
	}
}

// NewDeviceID returns a fresh identifier for a WalletRecord.
func NewDeviceID() string {
	return uuid.NewString()
}

// CreateWallet splits a wallet key and sends the server share to the store.
// A nil secret generates a new keypair; otherwise secret must be the 64-byte
// scalar‖pubkey form. The caller keeps ownership of secret.
func (o *Orchestrator) CreateWallet(ctx context.Context, secret []byte) (*Pending, error) {
	var (
		km  *keys.KeyMaterial
		err error
	)
	if secret == nil {
		km, err = keys.Generate()
		if err != nil {
			return nil, fmt.Errorf("failed to generate keypair: %w", err)
		}
	} else {
		km, err = keys.FromExpanded(secret)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidKeyMaterial, err)
		}
	}
	defer km.Destroy()

	unlock := o.locks.Lock(km.PublicKeyHex())
	defer unlock()
	return o.distribute(ctx, km)
}

// CreateWalletFromMnemonic imports a BIP-39 phrase. The first 32 bytes of the
// seed become the Ed25519 scalar.
func (o *Orchestrator) CreateWalletFromMnemonic(ctx context.Context, phrase, passphrase string) (*Pending, error) {
	m, err := mnemonic.FromWords(phrase)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyMaterial, err)
	}
	m.SetPassphrase(passphrase)
	scalar := m.Scalar()
	m.Wipe()

	km, err := keys.FromScalar(scalar)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyMaterial, err)
	}
	defer km.Destroy()

	unlock := o.locks.Lock(km.PublicKeyHex())
	defer unlock()
	return o.distribute(ctx, km)
}

// distribute splits km, stores the server share and returns the client half.
// The caller holds the wallet lock.
func (o *Orchestrator) distribute(ctx context.Context, km *keys.KeyMaterial) (*Pending, error) {
	pubkeyHex := km.PublicKeyHex()
	log := o.log.With("pubkey", pubkeyHex)

	scalar, err := km.Scalar()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyMaterial, err)
	}
	set, err := shamir.SplitKey(scalar)
	secure.Zero(scalar)
	if err != nil {
		return nil, fmt.Errorf("failed to split key: %w", err)
	}
	defer set.Wipe()
	for _, share := range set {
		if err := shamir.VerifyShare(share, shareSize); err != nil {
			return nil, fmt.Errorf("failed to split key: %w", err)
		}
	}

	server := set.Server()
	if err := o.store.Store(ctx, pubkeyHex, server.Data); err != nil {
		log.Warn("server keyshare distribution failed", "err", err)
		return nil, remoteError(ErrShareDistributionFailed, err)
	}

	log.Info("wallet keyshares distributed")
	return &Pending{
		PubkeyHex: pubkeyHex,
		Address:   km.Address(),
		active:    secure.FromBytes(set.Active().Data),
		backup:    secure.FromBytes(set.Backup().Data),
		o:         o,
	}, nil
}

// Recover rebuilds the wallet key from the password-protected active share
// and the server share. The caller must Destroy the result.
func (o *Orchestrator) Recover(ctx context.Context, record storage.WalletRecord, password []byte) (*keys.KeyMaterial, error) {
	if err := record.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyMaterial, err)
	}
	pubkeyHex := strings.ToLower(record.PubkeyHex)
	log := o.log.With("pubkey", pubkeyHex)

	unlock := o.locks.Lock(pubkeyHex)
	defer unlock()

	plain, err := o.cipher.Decrypt(record.EncryptedActiveShare, password)
	if err != nil {
		log.Info("active share decryption failed")
		return nil, fmt.Errorf("%w: %w", ErrIncorrectPassword, err)
	}
	active, err := shamir.FromBytes(plain)
	secure.Zero(plain)
	if err != nil {
		return nil, fmt.Errorf("%w: active share: %w", ErrCombineIntegrityFailure, err)
	}
	defer active.Wipe()

	server, err := o.fetchServerShare(ctx, pubkeyHex)
	if err != nil {
		log.Warn("server keyshare fetch failed", "err", err)
		return nil, err
	}
	defer server.Wipe()

	km, err := rebuild(active, server, pubkeyHex)
	if err != nil {
		log.Warn("wallet recovery failed", "err", err)
		return nil, err
	}

	log.Info("wallet recovered")
	return km, nil
}

// VerifyBackup unlocks the wallet and checks that the backup share forms a
// consistent set with the active and server shares.
func (o *Orchestrator) VerifyBackup(ctx context.Context, record storage.WalletRecord, password []byte, backupShareHex string) error {
	backup, err := shamir.DecodeHex(backupShareHex)
	if err != nil {
		return fmt.Errorf("%w: backup share: %w", ErrInvalidKeyMaterial, err)
	}
	defer backup.Wipe()

	if err := record.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidKeyMaterial, err)
	}
	pubkeyHex := strings.ToLower(record.PubkeyHex)

	unlock := o.locks.Lock(pubkeyHex)
	defer unlock()

	plain, err := o.cipher.Decrypt(record.EncryptedActiveShare, password)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIncorrectPassword, err)
	}
	active, err := shamir.FromBytes(plain)
	secure.Zero(plain)
	if err != nil {
		return fmt.Errorf("%w: active share: %w", ErrCombineIntegrityFailure, err)
	}

	server, err := o.fetchServerShare(ctx, pubkeyHex)
	if err != nil {
		active.Wipe()
		return err
	}

	var set shamir.ShareSet
	set[shamir.RoleActive] = active
	set[shamir.RoleBackup] = backup
	set[shamir.RoleServer] = server
	defer set.Wipe()

	km, err := rebuild(active, server, pubkeyHex)
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
		o.log.Warn("backup share verification failed", "pubkey", pubkeyHex, "err", err)
		return err
	}
	return nil
}

// RestoreFromBackup rebuilds a wallet from the backup share and the server
// share, then splits it again so the device gets a fresh active share. The
// server share is replaced in the process.
func (o *Orchestrator) RestoreFromBackup(ctx context.Context, pubkeyHex, backupShareHex string) (*Pending, error) {
	if _, err := keys.ParsePublicKeyHex(strings.ToLower(pubkeyHex)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKeyMaterial, err)
	}
	pubkeyHex = strings.ToLower(pubkeyHex)

	backup, err := shamir.DecodeHex(backupShareHex)
	if err != nil {
		return nil, fmt.Errorf("%w: backup share: %w", ErrInvalidKeyMaterial, err)
	}
	defer backup.Wipe()

	unlock := o.locks.Lock(pubkeyHex)
	defer unlock()

	server, err := o.fetchServerShare(ctx, pubkeyHex)
	if err != nil {
		return nil, err
	}
	defer server.Wipe()

	km, err := rebuild(backup, server, pubkeyHex)
	if err != nil {
		return nil, err
	}
	defer km.Destroy()

	o.log.Info("wallet restored from backup share", "pubkey", pubkeyHex)
	return o.distribute(ctx, km)
}

// Reset destroys km and securely deletes the local wallet record. The server
// share is left in place.
func (o *Orchestrator) Reset(records *storage.RecordStore, km *keys.KeyMaterial) error {
	km.Destroy()
	if err := records.Delete(); err != nil {
		return fmt.Errorf("failed to delete wallet record: %w", err)
	}
	o.log.Info("local wallet record erased", "path", records.Path())
	return nil
}

func (o *Orchestrator) fetchServerShare(ctx context.Context, pubkeyHex string) (shamir.Share, error) {
	raw, err := o.store.Fetch(ctx, pubkeyHex)
	if err != nil {
		return shamir.Share{}, remoteError(ErrShareFetchFailed, err)
	}
	share, err := shamir.FromBytes(raw)
	secure.Zero(raw)
	if err != nil {
		return shamir.Share{}, fmt.Errorf("%w: %w", ErrShareFetchFailed, err)
	}
	return share, nil
}

// rebuild combines two shares and checks the result against pubkeyHex.
func rebuild(a, b shamir.Share, pubkeyHex string) (*keys.KeyMaterial, error) {
	scalar, err := shamir.Combine([]shamir.Share{a, b})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCombineIntegrityFailure, err)
	}
	if len(scalar) != keys.ScalarSize {
		secure.Zero(scalar)
		return nil, fmt.Errorf("%w: scalar is %d bytes", ErrCombineIntegrityFailure, len(scalar))
	}

	km, err := keys.FromScalar(scalar)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCombineIntegrityFailure, err)
	}
	if km.PublicKeyHex() != pubkeyHex {
		km.Destroy()
		return nil, ErrKeyDerivationMismatch
	}
	return km, nil
}

// VerifyConsistency checks that every pair of the set combines to scalar.
func VerifyConsistency(scalar []byte, set shamir.ShareSet) error {
	pairs := [][2]int{
		{shamir.RoleActive, shamir.RoleBackup},
		{shamir.RoleActive, shamir.RoleServer},
		{shamir.RoleBackup, shamir.RoleServer},
	}
	for _, p := range pairs {
		got, err := shamir.Combine([]shamir.Share{set[p[0]], set[p[1]]})
		if err != nil {
			return fmt.Errorf("%w: shares %d and %d: %w", ErrShareConsistencyViolation, p[0], p[1], err)
		}
		ok := secure.ConstantTimeCompare(got, scalar)
		secure.Zero(got)
		if !ok {
			return fmt.Errorf("%w: shares %d and %d disagree", ErrShareConsistencyViolation, p[0], p[1])
		}
	}
	return nil
}

// IsUserError reports whether err is an outcome the user can act on, as
// opposed to an internal fault.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrInvalidKeyMaterial,
		ErrIncorrectPassword,
		ErrShareNotFound,
		ErrNetworkTimeout,
		ErrAlreadyFinalized,
		ErrBackupDiscarded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
