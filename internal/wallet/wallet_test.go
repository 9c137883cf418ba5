package wallet

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/shardwallet/internal/client"
	"github.com/Davincible/shardwallet/internal/server"
	"github.com/Davincible/shardwallet/pkg/crypto/keys"
	"github.com/Davincible/shardwallet/pkg/crypto/shamir"
	"github.com/Davincible/shardwallet/pkg/sharestore"
	"github.com/Davincible/shardwallet/pkg/storage"
)

// fakeStore is an in-memory ShareStore that counts calls.
type fakeStore struct {
	mu       sync.Mutex
	shares   map[string][]byte
	stores   int
	fetches  int
	storeErr error
	fetchErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{shares: make(map[string][]byte)}
}

func (f *fakeStore) Store(_ context.Context, pubkeyHex string, share []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores++
	if f.storeErr != nil {
		return f.storeErr
	}
	f.shares[pubkeyHex] = append([]byte(nil), share...)
	return nil
}

func (f *fakeStore) Fetch(_ context.Context, pubkeyHex string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	share, ok := f.shares[pubkeyHex]
	if !ok {
		return nil, client.ErrShareNotFound
	}
	return append([]byte(nil), share...), nil
}

func (f *fakeStore) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores, f.fetches
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator(store ShareStore) *Orchestrator {
	return New(store, storage.NewPasswordCipherWithIterations(1000), testLogger())
}

func testSecret(t *testing.T) []byte {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	return []byte(priv)
}

// createFinalized runs the split phase end to end and returns the record.
func createFinalized(t *testing.T, o *Orchestrator, secret []byte, password string) (*Pending, storage.WalletRecord) {
	t.Helper()
	pending, err := o.CreateWallet(context.Background(), secret)
	require.NoError(t, err)

	encrypted, err := pending.FinalizeWithPassword([]byte(password))
	require.NoError(t, err)
	return pending, pending.Record(NewDeviceID(), encrypted)
}

func TestCreateWalletGeneratesKeypair(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)

	pending, err := o.CreateWallet(context.Background(), nil)
	require.NoError(t, err)
	defer pending.Discard()

	stores, fetches := store.counts()
	assert.Equal(t, 1, stores, "server share stored exactly once")
	assert.Equal(t, 0, fetches)

	addr, err := keys.AddressFromPublicKeyHex(pending.PubkeyHex)
	require.NoError(t, err)
	assert.Equal(t, addr, pending.Address)
	assert.Len(t, store.shares[pending.PubkeyHex], 33)
}

func TestCreateWalletStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.storeErr = errors.New("connection refused")
	o := newTestOrchestrator(store)

	pending, err := o.CreateWallet(context.Background(), nil)
	assert.Nil(t, pending, "no record can be produced without a pending wallet")
	assert.ErrorIs(t, err, ErrShareDistributionFailed)

	store.storeErr = client.ErrNetworkTimeout
	_, err = o.CreateWallet(context.Background(), nil)
	assert.ErrorIs(t, err, ErrShareDistributionFailed)
	assert.ErrorIs(t, err, ErrNetworkTimeout)
}

func TestCreateWalletInvalidSecret(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)

	_, err := o.CreateWallet(context.Background(), make([]byte, 63))
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)

	secret := testSecret(t)
	secret[40] ^= 0x01
	_, err = o.CreateWallet(context.Background(), secret)
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial, "public half must match the scalar")

	stores, fetches := store.counts()
	assert.Zero(t, stores+fetches, "no network call on invalid input")
}

func TestRecoverWrongPassword(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)
	_, record := createFinalized(t, o, nil, "pw1")

	_, err := o.Recover(context.Background(), record, []byte("pw2"))
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	_, fetches := store.counts()
	assert.Zero(t, fetches, "fetch must not be called after a failed decrypt")
}

func TestRecoverMissingServerShare(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)
	pending, record := createFinalized(t, o, nil, "pw1")
	delete(store.shares, pending.PubkeyHex)

	_, err := o.Recover(context.Background(), record, []byte("pw1"))
	assert.ErrorIs(t, err, ErrShareFetchFailed)
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestRecoverFetchTimeout(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)
	_, record := createFinalized(t, o, nil, "pw1")
	store.fetchErr = context.DeadlineExceeded

	_, err := o.Recover(context.Background(), record, []byte("pw1"))
	assert.ErrorIs(t, err, ErrShareFetchFailed)
	assert.ErrorIs(t, err, ErrNetworkTimeout)
}

func TestFullCycle(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)
	secret := testSecret(t)
	original := append([]byte(nil), secret...)

	pending, record := createFinalized(t, o, secret, "pw")
	assert.Equal(t, hex.EncodeToString(original[32:]), record.PubkeyHex)
	assert.NotContains(t, record.EncryptedActiveShare, hex.EncodeToString(original[:32]))

	km, err := o.Recover(context.Background(), record, []byte("pw"))
	require.NoError(t, err)
	defer km.Destroy()

	assert.Equal(t, pending.PubkeyHex, km.PublicKeyHex())
	scalar, err := km.Scalar()
	require.NoError(t, err)
	assert.Equal(t, original[:32], scalar)

	msg := []byte("transfer 1 SOL")
	sig, err := km.Sign(msg)
	require.NoError(t, err)
	assert.True(t, ed25519.Verify(km.PublicKey(), msg, sig))

	// idempotent: a second recovery yields the same key
	again, err := o.Recover(context.Background(), record, []byte("pw"))
	require.NoError(t, err)
	defer again.Destroy()
	assert.Equal(t, km.PublicKeyHex(), again.PublicKeyHex())
}

func TestRecoverTamperedRecord(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)
	_, record := createFinalized(t, o, nil, "pw")

	for pos := 0; pos < len(record.EncryptedActiveShare); pos += 7 {
		tampered := record
		b := []byte(record.EncryptedActiveShare)
		if b[pos] == '0' {
			b[pos] = '1'
		} else {
			b[pos] = '0'
		}
		tampered.EncryptedActiveShare = string(b)

		km, err := o.Recover(context.Background(), tampered, []byte("pw"))
		if err == nil {
			km.Destroy()
			t.Fatalf("recovery succeeded with tampered byte at %d", pos)
		}
		assert.True(t,
			errors.Is(err, ErrIncorrectPassword) || errors.Is(err, ErrKeyDerivationMismatch),
			"position %d: %v", pos, err)
	}
}

func TestRecoverKeyDerivationMismatch(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)
	_, recordA := createFinalized(t, o, nil, "pw")
	pendingB, _ := createFinalized(t, o, nil, "pw")

	// B's slot now holds A's server share, so the shares combine to A's key.
	store.shares[pendingB.PubkeyHex] = store.shares[recordA.PubkeyHex]
	forged := recordA
	forged.PubkeyHex = pendingB.PubkeyHex

	_, err := o.Recover(context.Background(), forged, []byte("pw"))
	assert.ErrorIs(t, err, ErrKeyDerivationMismatch)
}

func TestRecoverCombineIntegrityFailure(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)
	pending, record := createFinalized(t, o, nil, "pw")
	store.shares[pending.PubkeyHex] = []byte{0xaa, 0xbb, 0x05}

	_, err := o.Recover(context.Background(), record, []byte("pw"))
	assert.ErrorIs(t, err, ErrCombineIntegrityFailure)
}

func TestPendingLifecycle(t *testing.T) {
	o := newTestOrchestrator(newFakeStore())
	pending, err := o.CreateWallet(context.Background(), nil)
	require.NoError(t, err)

	require.NoError(t, pending.Verify(context.Background()))

	backup, err := pending.BackupShare()
	require.NoError(t, err)
	assert.Len(t, backup, 66)

	_, err = pending.FinalizeWithPassword(nil)
	assert.Error(t, err, "empty password")

	_, err = pending.FinalizeWithPassword([]byte("pw"))
	require.NoError(t, err)
	_, err = pending.FinalizeWithPassword([]byte("pw"))
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
	assert.ErrorIs(t, pending.Verify(context.Background()), ErrAlreadyFinalized)

	pending.ConfirmBackup()
	_, err = pending.BackupShare()
	assert.ErrorIs(t, err, ErrBackupDiscarded)
}

func TestPendingDiscard(t *testing.T) {
	o := newTestOrchestrator(newFakeStore())
	pending, err := o.CreateWallet(context.Background(), nil)
	require.NoError(t, err)

	pending.Discard()
	_, err = pending.BackupShare()
	assert.ErrorIs(t, err, ErrBackupDiscarded)
	_, err = pending.FinalizeWithPassword([]byte("pw"))
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestPendingVerifyDetectsServerCorruption(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)
	pending, err := o.CreateWallet(context.Background(), nil)
	require.NoError(t, err)
	defer pending.Discard()

	other, err := shamir.SplitKey(bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)
	defer other.Wipe()
	foreign := other.Server()
	store.shares[pending.PubkeyHex] = append([]byte(nil), foreign.Data...)

	err = pending.Verify(context.Background())
	assert.ErrorIs(t, err, ErrShareConsistencyViolation)
}

func TestVerifyConsistency(t *testing.T) {
	scalar := bytes.Repeat([]byte{0x3c}, 32)
	set, err := shamir.SplitKey(append([]byte(nil), scalar...))
	require.NoError(t, err)
	defer set.Wipe()

	require.NoError(t, VerifyConsistency(scalar, set))

	assert.ErrorIs(t, VerifyConsistency(bytes.Repeat([]byte{0x3d}, 32), set), ErrShareConsistencyViolation)

	other, err := shamir.SplitKey(bytes.Repeat([]byte{0x01}, 32))
	require.NoError(t, err)
	defer other.Wipe()
	mixed := set
	mixed[shamir.RoleBackup] = other[shamir.RoleBackup]
	assert.ErrorIs(t, VerifyConsistency(scalar, mixed), ErrShareConsistencyViolation)
}

func TestEveryPairRebuildsKey(t *testing.T) {
	secret := testSecret(t)
	pubkeyHex := hex.EncodeToString(secret[32:])
	set, err := shamir.SplitKey(append([]byte(nil), secret[:32]...))
	require.NoError(t, err)
	defer set.Wipe()

	for i := 0; i < shamir.Parts; i++ {
		for j := i + 1; j < shamir.Parts; j++ {
			km, err := rebuild(set[i], set[j], pubkeyHex)
			require.NoError(t, err, "pair %d,%d", i, j)
			km.Destroy()
		}
	}

	_, err = shamir.Combine([]shamir.Share{set[0]})
	assert.Error(t, err, "one share must never reconstruct")
}

func TestCreateWalletFromMnemonic(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)

	phrase := "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	pending, err := o.CreateWalletFromMnemonic(context.Background(), phrase, "")
	require.NoError(t, err)
	defer pending.Discard()

	scalar, err := hex.DecodeString("5eb00bbddcf069084889a8ab9155568165f5c453ccb85e70811aaed6f6da5fc1")
	require.NoError(t, err)
	expected := ed25519.NewKeyFromSeed(scalar).Public().(ed25519.PublicKey)
	assert.Equal(t, hex.EncodeToString(expected), pending.PubkeyHex)

	_, err = o.CreateWalletFromMnemonic(context.Background(), "not a real phrase", "")
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
}

func TestRestoreFromBackup(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)
	secret := testSecret(t)
	original := append([]byte(nil), secret...)

	pending, err := o.CreateWallet(context.Background(), secret)
	require.NoError(t, err)
	backup, err := pending.BackupShare()
	require.NoError(t, err)
	oldServer := append([]byte(nil), store.shares[pending.PubkeyHex]...)
	pending.Discard()

	restored, err := o.RestoreFromBackup(context.Background(), pending.PubkeyHex, backup)
	require.NoError(t, err)
	assert.Equal(t, pending.PubkeyHex, restored.PubkeyHex)
	assert.NotEqual(t, oldServer, store.shares[pending.PubkeyHex], "server share is replaced")

	encrypted, err := restored.FinalizeWithPassword([]byte("new pw"))
	require.NoError(t, err)
	km, err := o.Recover(context.Background(), restored.Record(NewDeviceID(), encrypted), []byte("new pw"))
	require.NoError(t, err)
	defer km.Destroy()

	scalar, err := km.Scalar()
	require.NoError(t, err)
	assert.Equal(t, original[:32], scalar)

	// the old backup share belongs to the previous split and no longer matches
	_, err = o.RestoreFromBackup(context.Background(), pending.PubkeyHex, backup)
	assert.Error(t, err)
}

func TestRestoreFromBackupInvalidInput(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)

	_, err := o.RestoreFromBackup(context.Background(), "abcd", "0102")
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)

	pubkey := hex.EncodeToString(make([]byte, 32))
	_, err = o.RestoreFromBackup(context.Background(), pubkey, "not hex")
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)

	_, fetches := store.counts()
	assert.Zero(t, fetches)
}

func TestReset(t *testing.T) {
	o := newTestOrchestrator(newFakeStore())
	_, record := createFinalized(t, o, nil, "pw")

	records := storage.NewRecordStore(filepath.Join(t.TempDir(), "wallet.json"))
	require.NoError(t, records.Save(record))

	km, err := o.Recover(context.Background(), record, []byte("pw"))
	require.NoError(t, err)

	require.NoError(t, o.Reset(records, km))
	assert.True(t, km.Destroyed())
	assert.False(t, records.Exists())
}

func TestConcurrentRecoverAndRestore(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)
	pending, err := o.CreateWallet(context.Background(), nil)
	require.NoError(t, err)
	backup, err := pending.BackupShare()
	require.NoError(t, err)
	encrypted, err := pending.FinalizeWithPassword([]byte("pw"))
	require.NoError(t, err)
	record := pending.Record(NewDeviceID(), encrypted)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			km, err := o.Recover(context.Background(), record, []byte("pw"))
			if err == nil {
				assert.Equal(t, pending.PubkeyHex, km.PublicKeyHex())
				km.Destroy()
				return
			}
			// a concurrent restore may have replaced the server share
			assert.True(t,
				errors.Is(err, ErrKeyDerivationMismatch) || errors.Is(err, ErrCombineIntegrityFailure),
				"unexpected error: %v", err)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		restored, err := o.RestoreFromBackup(context.Background(), pending.PubkeyHex, backup)
		if assert.NoError(t, err) {
			restored.Discard()
		}
	}()
	wg.Wait()

	assert.Zero(t, o.locks.size(), "lock entries are released")
}

func TestEndToEndOverHTTP(t *testing.T) {
	store := sharestore.New(sharestore.NewMemoryBackend(), sharestore.Options{Log: testLogger()})
	srv, err := server.New(&server.HTTPServerConfig{
		Log:                      testLogger(),
		RateLimitDisabled:        true,
		GracefulShutdownDuration: time.Second,
	}, store)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	c, err := client.New(client.Config{BaseURL: ts.URL, Timeout: 5 * time.Second, Log: testLogger()})
	require.NoError(t, err)
	o := newTestOrchestrator(c)

	pending, record := createFinalized(t, o, nil, "pw")
	km, err := o.Recover(context.Background(), record, []byte("pw"))
	require.NoError(t, err)
	defer km.Destroy()
	assert.Equal(t, pending.PubkeyHex, km.PublicKeyHex())

	unknown := record
	unknown.PubkeyHex = hex.EncodeToString(bytes.Repeat([]byte{1}, 32))
	_, err = o.Recover(context.Background(), unknown, []byte("pw"))
	assert.ErrorIs(t, err, ErrShareFetchFailed)
	assert.ErrorIs(t, err, ErrShareNotFound)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock("a")
	unlockB := k.Lock("b")
	assert.Equal(t, 2, k.size())

	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := k.Lock("a")
		close(acquired)
		unlock()
		close(released)
	}()

	select {
	case <-acquired:
		t.Fatal("second lock on the same key must block")
	case <-time.After(20 * time.Millisecond):
	}

	unlockA()
	<-acquired
	<-released
	unlockB()
	assert.Zero(t, k.size())
}

func TestIsUserError(t *testing.T) {
	assert.True(t, IsUserError(ErrIncorrectPassword))
	assert.True(t, IsUserError(remoteError(ErrShareFetchFailed, client.ErrShareNotFound)))
	assert.False(t, IsUserError(ErrShareConsistencyViolation))
	assert.False(t, IsUserError(errors.New("boom")))
}

func TestVerifyBackup(t *testing.T) {
	store := newFakeStore()
	o := newTestOrchestrator(store)
	pending, err := o.CreateWallet(context.Background(), nil)
	require.NoError(t, err)
	backup, err := pending.BackupShare()
	require.NoError(t, err)
	encrypted, err := pending.FinalizeWithPassword([]byte("pw"))
	require.NoError(t, err)
	record := pending.Record(NewDeviceID(), encrypted)
	pending.ConfirmBackup()

	require.NoError(t, o.VerifyBackup(context.Background(), record, []byte("pw"), backup))

	err = o.VerifyBackup(context.Background(), record, []byte("wrong"), backup)
	assert.ErrorIs(t, err, ErrIncorrectPassword)

	other, err := shamir.SplitKey(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)
	defer other.Wipe()
	err = o.VerifyBackup(context.Background(), record, []byte("pw"), other[shamir.RoleBackup].Hex())
	assert.ErrorIs(t, err, ErrShareConsistencyViolation)

	err = o.VerifyBackup(context.Background(), record, []byte("pw"), "zz")
	assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
}
