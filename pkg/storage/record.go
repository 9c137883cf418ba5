package storage

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNoRecord is returned when no wallet has been created on this device.
var ErrNoRecord = errors.New("no wallet record found")

// WalletRecord is the only durable client state. EncryptedActiveShare is the
// output of PasswordCipher.Encrypt and is never stored in plaintext.
type WalletRecord struct {
	DeviceID             string `json:"deviceId"`
	PubkeyHex            string `json:"pubkeyHex"`
	AddressBase58        string `json:"addressBase58"`
	EncryptedActiveShare string `json:"encryptedActiveShare"`
}

func (r WalletRecord) Validate() error {
	if r.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if r.PubkeyHex == "" {
		return fmt.Errorf("public key is required")
	}
	if r.AddressBase58 == "" {
		return fmt.Errorf("address is required")
	}
	if r.EncryptedActiveShare == "" {
		return fmt.Errorf("encrypted active share is required")
	}
	return nil
}

// RecordStore keeps one WalletRecord in a 0600 JSON file.
type RecordStore struct {
	filepath string
}

func NewRecordStore(filepath string) *RecordStore {
	return &RecordStore{
		filepath: filepath,
	}
}

func (s *RecordStore) Path() string {
	return s.filepath
}

func (s *RecordStore) Save(record WalletRecord) error {
	if err := record.Validate(); err != nil {
		return fmt.Errorf("invalid wallet record: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal wallet record: %w", err)
	}

	dir := filepath.Dir(s.filepath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp := s.filepath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, s.filepath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace wallet record: %w", err)
	}

	return nil
}

func (s *RecordStore) Load() (WalletRecord, error) {
	var record WalletRecord

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return record, ErrNoRecord
		}
		return record, fmt.Errorf("failed to read file: %w", err)
	}

	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("failed to unmarshal wallet record: %w", err)
	}
	if err := record.Validate(); err != nil {
		return record, fmt.Errorf("invalid wallet record: %w", err)
	}

	return record, nil
}

func (s *RecordStore) Exists() bool {
	_, err := os.Stat(s.filepath)
	return err == nil
}

// Delete overwrites the file with random bytes before removing it.
func (s *RecordStore) Delete() error {
	if !s.Exists() {
		return nil
	}

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return fmt.Errorf("failed to read file for secure deletion: %w", err)
	}

	if _, err := rand.Read(data); err != nil {
		return fmt.Errorf("failed to overwrite file: %w", err)
	}

	if err := os.WriteFile(s.filepath, data, 0600); err != nil {
		return fmt.Errorf("failed to overwrite file: %w", err)
	}

	return os.Remove(s.filepath)
}
