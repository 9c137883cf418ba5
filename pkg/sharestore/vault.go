package sharestore

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/vault/api"
)

type VaultOptions struct {
	Address   string
	Token     string
	MountPath string
	DataPath  string
	Timeout   time.Duration
	Log       *slog.Logger
}

// VaultBackend stores shares in a KV v2 engine at <mount>/data/<path>/<key>.
type VaultBackend struct {
	client    *api.Client
	mountPath string
	dataPath  string
	log       *slog.Logger
}

func NewVaultBackend(opts VaultOptions) (*VaultBackend, error) {
	config := api.DefaultConfig()
	if opts.Address != "" {
		config.Address = opts.Address
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	config.HttpClient = cleanhttp.DefaultPooledClient()
	config.HttpClient.Timeout = timeout

	client, err := api.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}
	if opts.Token != "" {
		client.SetToken(opts.Token)
	}

	log := opts.Log
	if log == nil {
		log = slog.Default()
	}

	mount := opts.MountPath
	if mount == "" {
		mount = "secret"
	}

	return &VaultBackend{
		client:    client,
		mountPath: strings.Trim(mount, "/"),
		dataPath:  strings.Trim(opts.DataPath, "/"),
		log:       log,
	}, nil
}

func (b *VaultBackend) Put(ctx context.Context, key string, share []byte) error {
	p := b.secretPath(key)
	data := map[string]interface{}{
		"data": map[string]interface{}{
			"share": hex.EncodeToString(share),
		},
	}
	if _, err := b.client.Logical().WriteWithContext(ctx, p, data); err != nil {
		b.log.Error("Failed to write to Vault", slog.String("path", p), "err", err)
		return fmt.Errorf("failed to write keyshare to vault: %w", err)
	}
	return nil
}

func (b *VaultBackend) Get(ctx context.Context, key string) ([]byte, error) {
	p := b.secretPath(key)
	secret, err := b.client.Logical().ReadWithContext(ctx, p)
	if err != nil {
		b.log.Error("Failed to read from Vault", slog.String("path", p), "err", err)
		return nil, fmt.Errorf("failed to read keyshare from vault: %w", err)
	}
	if secret == nil || secret.Data == nil {
		return nil, ErrNotFound
	}
	return decodeVaultShare(secret.Data)
}

func (b *VaultBackend) Name() string { return "vault" }

func (b *VaultBackend) Close() error { return nil }

func (b *VaultBackend) secretPath(key string) string {
	if b.dataPath == "" {
		return fmt.Sprintf("%s/data/%s", b.mountPath, key)
	}
	return fmt.Sprintf("%s/data/%s/%s", b.mountPath, b.dataPath, key)
}

// decodeVaultShare extracts the share from a KV v2 read response. A deleted
// latest version comes back with a nil "data" map.
func decodeVaultShare(payload map[string]interface{}) ([]byte, error) {
	raw, ok := payload["data"]
	if !ok || raw == nil {
		return nil, ErrNotFound
	}
	fields, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid data format in Vault response")
	}
	encoded, ok := fields["share"].(string)
	if !ok {
		return nil, fmt.Errorf("share key not found in Vault data")
	}
	share, err := hex.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid share encoding in Vault data: %w", err)
	}
	return share, nil
}
