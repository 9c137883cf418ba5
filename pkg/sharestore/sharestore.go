// Package sharestore keeps the server's keyshare for each wallet, addressed by
// the wallet's hex public key.
//
// A key is created on its first Put, replaced by every later Put and never
// expires on its own. Several backends are provided; Store layers the tenancy
// rules on top of any of them.
package sharestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// GlobalSlotKey addresses the single slot used by single-tenant deployments.
const GlobalSlotKey = "global"

var (
	// ErrNotFound is returned by Get when the key has never been stored.
	ErrNotFound = errors.New("keyshare not found")
	// ErrKeyRequired is returned in multi-tenant mode when no public key was given.
	ErrKeyRequired = errors.New("public key is required in multi-tenant mode")
	// ErrInvalidKey is returned for keys that are not a 32-byte hex public key.
	ErrInvalidKey = errors.New("invalid public key")
)

var pubkeyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Backend is a durable key-value store of raw share bytes.
type Backend interface {
	Put(ctx context.Context, key string, share []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Name() string
	Close() error
}

type Options struct {
	// SingleTenant maps every request onto GlobalSlotKey. Only suitable for
	// single-user deployments.
	SingleTenant bool
	Log          *slog.Logger
}

// Store applies key normalisation and tenancy rules in front of a Backend.
type Store struct {
	backend      Backend
	singleTenant bool
	log          *slog.Logger
}

func New(backend Backend, opts Options) *Store {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.SingleTenant {
		log.Warn("share store running in single-tenant mode, all wallets share one slot")
	}
	return &Store{
		backend:      backend,
		singleTenant: opts.SingleTenant,
		log:          log.With("backend", backend.Name()),
	}
}

func (s *Store) SingleTenant() bool {
	return s.singleTenant
}

func (s *Store) Backend() Backend {
	return s.backend
}

func (s *Store) Put(ctx context.Context, pubkey string, share []byte) error {
	key, err := s.resolve(pubkey)
	if err != nil {
		return err
	}
	if len(share) < 2 {
		return fmt.Errorf("share is too short: %d bytes", len(share))
	}

	if err := s.backend.Put(ctx, key, share); err != nil {
		s.log.Error("failed to store keyshare", "key", key, "err", err)
		return fmt.Errorf("failed to store keyshare: %w", err)
	}
	s.log.Debug("stored keyshare", "key", key)
	return nil
}

func (s *Store) Get(ctx context.Context, pubkey string) ([]byte, error) {
	key, err := s.resolve(pubkey)
	if err != nil {
		return nil, err
	}

	share, err := s.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.log.Error("failed to load keyshare", "key", key, "err", err)
		return nil, fmt.Errorf("failed to load keyshare: %w", err)
	}
	return share, nil
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) resolve(pubkey string) (string, error) {
	if s.singleTenant {
		return GlobalSlotKey, nil
	}
	return NormalizeKey(pubkey)
}

// NormalizeKey lowercases and validates a hex public key.
func NormalizeKey(pubkey string) (string, error) {
	key := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(pubkey), "0x"))
	if key == "" {
		return "", ErrKeyRequired
	}
	if !pubkeyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, pubkey)
	}
	return key, nil
}
