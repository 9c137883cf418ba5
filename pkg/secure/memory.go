// Package secure holds secret byte strings and zeroes them when released.
package secure

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"runtime"
	"sync"
)

// ErrDestroyed is returned when a destroyed buffer is accessed.
var ErrDestroyed = errors.New("secure: buffer destroyed")

// SecureBytes owns a copy of a secret. Readers borrow it through Use so the
// secret never escapes without an explicit copy.
type SecureBytes struct {
	data      []byte
	destroyed bool
	mu        sync.RWMutex
}

// FromBytes copies data into a new SecureBytes. The caller still owns data.
func FromBytes(data []byte) *SecureBytes {
	sb := &SecureBytes{
		data: make([]byte, len(data)),
	}
	copy(sb.data, data)
	return sb
}

// Take moves data into a new SecureBytes and zeroes the source slice.
func Take(data []byte) *SecureBytes {
	sb := FromBytes(data)
	Zero(data)
	return sb
}

// Use calls fn with the live buffer. fn must not retain the slice.
func (sb *SecureBytes) Use(fn func([]byte) error) error {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if sb.destroyed {
		return ErrDestroyed
	}
	return fn(sb.data)
}

// Copy returns a fresh copy the caller must Zero.
func (sb *SecureBytes) Copy() ([]byte, error) {
	sb.mu.RLock()
	defer sb.mu.RUnlock()

	if sb.destroyed {
		return nil, ErrDestroyed
	}
	result := make([]byte, len(sb.data))
	copy(result, sb.data)
	return result, nil
}

func (sb *SecureBytes) Destroyed() bool {
	sb.mu.RLock()
	defer sb.mu.RUnlock()
	return sb.destroyed
}

// Destroy zeroes the secret. It is safe to call more than once and on nil.
func (sb *SecureBytes) Destroy() {
	if sb == nil {
		return
	}
	sb.mu.Lock()
	defer sb.mu.Unlock()

	Zero(sb.data)
	sb.data = nil
	sb.destroyed = true
}

func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

func ConstantTimeCompare(x, y []byte) bool {
	if len(x) != len(y) {
		return false
	}
	return subtle.ConstantTimeCompare(x, y) == 1
}

func RandomBytes(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid length: %d", size)
	}
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		Zero(b)
		return nil, fmt.Errorf("failed to generate secure random bytes: %w", err)
	}
	return b, nil
}
