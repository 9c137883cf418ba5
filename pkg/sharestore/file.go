package sharestore

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Davincible/shardwallet/pkg/secure"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	fileSaltSize = 32
	fileKeySize  = 32
)

// KeyDerivationParams are the argon2id parameters for at-rest encryption.
type KeyDerivationParams struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

var DefaultKeyDerivationParams = KeyDerivationParams{
	Time:    3,
	Memory:  64 * 1024,
	Threads: 4,
}

// FileBackend stores each share as its own file. With a passphrase set the
// file body is sealed with chacha20poly1305 under an argon2id key; the salt
// and nonce are prepended to the sealed body.
type FileBackend struct {
	dir        string
	passphrase []byte
	params     KeyDerivationParams
	mu         sync.Mutex
}

type fileEntry struct {
	Key            string    `json:"key"`
	Share          []byte    `json:"share"`
	Created        time.Time `json:"created"`
	Modified       time.Time `json:"modified"`
	ChecksumSHA256 []byte    `json:"checksum_sha256"`
}

type FileOptions struct {
	// Passphrase enables at-rest encryption when non-empty.
	Passphrase string
	Params     *KeyDerivationParams
}

func NewFileBackend(dir string, opts FileOptions) (*FileBackend, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	params := DefaultKeyDerivationParams
	if opts.Params != nil {
		params = *opts.Params
	}

	fb := &FileBackend{
		dir:    dir,
		params: params,
	}
	if opts.Passphrase != "" {
		fb.passphrase = []byte(opts.Passphrase)
	}
	return fb, nil
}

func (f *FileBackend) Put(ctx context.Context, key string, share []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now().UTC()
	entry := fileEntry{
		Key:      key,
		Share:    share,
		Created:  now,
		Modified: now,
	}
	if existing, err := f.read(key); err == nil {
		entry.Created = existing.Created
		secure.Zero(existing.Share)
	}

	if err := calculateChecksum(&entry); err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	defer secure.Zero(data)

	if f.encrypted() {
		sealed, err := f.encrypt(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt share file: %w", err)
		}
		data = sealed
	}

	path := f.filename(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write share file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace share file: %w", err)
	}
	return nil
}

func (f *FileBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	entry, err := f.read(key)
	if err != nil {
		return nil, err
	}
	return entry.Share, nil
}

func (f *FileBackend) Name() string { return "file" }

func (f *FileBackend) Close() error {
	secure.Zero(f.passphrase)
	return nil
}

func (f *FileBackend) encrypted() bool {
	return len(f.passphrase) > 0
}

func (f *FileBackend) filename(key string) string {
	return filepath.Join(f.dir, key+".share")
}

func (f *FileBackend) read(key string) (*fileEntry, error) {
	data, err := os.ReadFile(f.filename(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read share file: %w", err)
	}

	if f.encrypted() {
		data, err = f.decrypt(data)
		if err != nil {
			return nil, err
		}
	}
	defer secure.Zero(data)

	var entry fileEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to parse share file: %w", err)
	}
	if entry.Key != key {
		return nil, fmt.Errorf("share file key mismatch: want %s, got %s", key, entry.Key)
	}
	if err := verifyChecksum(&entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func calculateChecksum(entry *fileEntry) error {
	temp := *entry
	temp.ChecksumSHA256 = nil

	data, err := json.Marshal(temp)
	if err != nil {
		return err
	}
	defer secure.Zero(data)

	hash := sha256.Sum256(data)
	entry.ChecksumSHA256 = hash[:]
	return nil
}

func verifyChecksum(entry *fileEntry) error {
	original := make([]byte, len(entry.ChecksumSHA256))
	copy(original, entry.ChecksumSHA256)

	if err := calculateChecksum(entry); err != nil {
		return err
	}
	if !secure.ConstantTimeCompare(original, entry.ChecksumSHA256) {
		return fmt.Errorf("checksum mismatch - share file may be corrupted")
	}
	return nil
}

func (f *FileBackend) deriveKey(salt []byte) []byte {
	return argon2.IDKey(
		f.passphrase,
		salt,
		f.params.Time,
		f.params.Memory,
		f.params.Threads,
		fileKeySize,
	)
}

func (f *FileBackend) encrypt(data []byte) ([]byte, error) {
	salt := make([]byte, fileSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, err
	}

	key := f.deriveKey(salt)
	defer secure.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	sealed := aead.Seal(nil, nonce, data, nil)

	result := make([]byte, 0, len(salt)+len(nonce)+len(sealed))
	result = append(result, salt...)
	result = append(result, nonce...)
	result = append(result, sealed...)
	return result, nil
}

func (f *FileBackend) decrypt(data []byte) ([]byte, error) {
	if len(data) < fileSaltSize+chacha20poly1305.NonceSize {
		return nil, fmt.Errorf("encrypted share file too short")
	}

	salt := data[:fileSaltSize]
	nonce := data[fileSaltSize : fileSaltSize+chacha20poly1305.NonceSize]
	sealed := data[fileSaltSize+chacha20poly1305.NonceSize:]

	key := f.deriveKey(salt)
	defer secure.Zero(key)

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}

	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plain, nil
}
