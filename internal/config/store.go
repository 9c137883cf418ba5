package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Davincible/shardwallet/pkg/sharestore"
)

const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendS3     = "s3"
	BackendVault  = "vault"
)

type StoreConfig struct {
	Backend string `mapstructure:"backend"`
	// SingleTenant keeps one global share for every caller.
	SingleTenant bool             `mapstructure:"single_tenant"`
	File         FileStoreConfig  `mapstructure:"file"`
	Redis        RedisStoreConfig `mapstructure:"redis"`
	S3           S3StoreConfig    `mapstructure:"s3"`
	Vault        VaultStoreConfig `mapstructure:"vault"`
}

type FileStoreConfig struct {
	Dir        string `mapstructure:"dir"`
	Passphrase string `mapstructure:"passphrase"`
}

type RedisStoreConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type S3StoreConfig struct {
	Bucket    string `mapstructure:"bucket"`
	Prefix    string `mapstructure:"prefix"`
	Region    string `mapstructure:"region"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
}

type VaultStoreConfig struct {
	Address   string `mapstructure:"address"`
	Token     string `mapstructure:"token"`
	MountPath string `mapstructure:"mount_path"`
	DataPath  string `mapstructure:"data_path"`
}

func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendFile:
		if c.File.Dir == "" {
			return fmt.Errorf("file store requires a directory")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis store requires an address")
		}
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3 store requires a bucket")
		}
	case BackendVault:
		if c.Vault.Address == "" {
			return fmt.Errorf("vault store requires an address")
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Backend)
	}
	return nil
}

// Open constructs the configured backend.
func (c *StoreConfig) Open(ctx context.Context, log *slog.Logger) (sharestore.Backend, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Backend {
	case BackendFile:
		if c.File.Passphrase == "" {
			log.Warn("file store has no passphrase, shares are written unencrypted")
		}
		return sharestore.NewFileBackend(c.File.Dir, sharestore.FileOptions{Passphrase: c.File.Passphrase})
	case BackendRedis:
		return sharestore.NewRedisBackend(ctx, sharestore.RedisOptions{
			Addr:     c.Redis.Addr,
			Username: c.Redis.Username,
			Password: c.Redis.Password,
			DB:       c.Redis.DB,
		})
	case BackendS3:
		return sharestore.NewS3Backend(sharestore.S3Options{
			Bucket:    c.S3.Bucket,
			Prefix:    c.S3.Prefix,
			Region:    c.S3.Region,
			Endpoint:  c.S3.Endpoint,
			AccessKey: c.S3.AccessKey,
			SecretKey: c.S3.SecretKey,
			Log:       log,
		})
	case BackendVault:
		return sharestore.NewVaultBackend(sharestore.VaultOptions{
			Address:   c.Vault.Address,
			Token:     c.Vault.Token,
			MountPath: c.Vault.MountPath,
			DataPath:  c.Vault.DataPath,
			Log:       log,
		})
	default:
		return sharestore.NewMemoryBackend(), nil
	}
}
