package sharestore

import (
	"context"
	"sync"

	"github.com/Davincible/shardwallet/pkg/secure"
)

// MemoryBackend keeps shares in process memory. Everything is lost on restart.
type MemoryBackend struct {
	mu     sync.RWMutex
	shares map[string][]byte
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		shares: make(map[string][]byte),
	}
}

func (m *MemoryBackend) Put(ctx context.Context, key string, share []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	buf := make([]byte, len(share))
	copy(buf, share)

	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.shares[key]; ok {
		secure.Zero(old)
	}
	m.shares[key] = buf
	return nil
}

func (m *MemoryBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	share, ok := m.shares[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(share))
	copy(out, share)
	return out, nil
}

func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.shares)
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range m.shares {
		secure.Zero(v)
		delete(m.shares, k)
	}
	return nil
}
