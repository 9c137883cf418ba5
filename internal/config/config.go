// Package config loads client and server settings from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Davincible/shardwallet/internal/validation"
	"github.com/Davincible/shardwallet/pkg/storage"
)

const (
	ClientEnvPrefix = "SHARDWALLET"
	ServerEnvPrefix = "KEYSHARE"

	clientConfigName = "shardwallet"
	serverConfigName = "keyshare-server"
)

// ClientConfig drives the shardwallet CLI.
type ClientConfig struct {
	Server   RemoteConfig   `mapstructure:"server"`
	Storage  RecordConfig   `mapstructure:"storage"`
	Security SecurityConfig `mapstructure:"security"`
	UI       UIConfig       `mapstructure:"ui"`
}

type RemoteConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type RecordConfig struct {
	RecordPath string `mapstructure:"record_path"`
}

type SecurityConfig struct {
	KDFIterations     int  `mapstructure:"kdf_iterations"`
	MinPasswordLength int  `mapstructure:"min_password_length"`
	AutoVerify        bool `mapstructure:"auto_verify"`
}

type UIConfig struct {
	UseColor bool `mapstructure:"use_color"`
	Verbose  bool `mapstructure:"verbose"`
}

// ServerConfig drives keyshare-server.
type ServerConfig struct {
	HTTP  HTTPConfig  `mapstructure:"http"`
	Store StoreConfig `mapstructure:"store"`
	Log   LogConfig   `mapstructure:"log"`
}

type HTTPConfig struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	MetricsAddr       string        `mapstructure:"metrics_addr"`
	EnablePprof       bool          `mapstructure:"enable_pprof"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	DrainDuration     time.Duration `mapstructure:"drain_duration"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodySize       int64         `mapstructure:"max_body_size"`
	RateLimitPerMin   int           `mapstructure:"rate_limit_per_min"`
	RateLimitBurst    int           `mapstructure:"rate_limit_burst"`
	TrustProxyHeaders bool          `mapstructure:"trust_proxy_headers"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// DefaultClientConfig returns the client defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Server: RemoteConfig{
			URL:     "http://127.0.0.1:8080",
			Timeout: 10 * time.Second,
		},
		Storage: RecordConfig{
			RecordPath: defaultRecordPath(),
		},
		Security: SecurityConfig{
			KDFIterations:     storage.Iterations,
			MinPasswordLength: 8,
			AutoVerify:        true,
		},
		UI: UIConfig{
			UseColor: true,
		},
	}
}

// DefaultServerConfig returns the server defaults: in-memory multi-tenant
// store on :8080 with metrics on :8090.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		HTTP: HTTPConfig{
			ListenAddr:      ":8080",
			MetricsAddr:     ":8090",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			DrainDuration:   5 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodySize:     64 * 1024,
			RateLimitPerMin: 120,
			RateLimitBurst:  20,
		},
		Store: StoreConfig{
			Backend: BackendMemory,
			File: FileStoreConfig{
				Dir: "./keyshares",
			},
			Redis: RedisStoreConfig{
				Addr: "127.0.0.1:6379",
			},
			S3: S3StoreConfig{
				Region: "us-east-1",
				Prefix: "keyshares",
			},
			Vault: VaultStoreConfig{
				MountPath: "secret",
				DataPath:  "keyshares",
			},
		},
		Log: LogConfig{
			Level: "info",
			JSON:  true,
		},
	}
}

func (c *ClientConfig) Validate() error {
	if err := validation.ValidateServerURL(c.Server.URL); err != nil {
		return err
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server timeout must be positive")
	}
	if c.Storage.RecordPath == "" {
		return fmt.Errorf("record path is required")
	}
	if c.Security.KDFIterations < 1000 {
		return fmt.Errorf("kdf iterations must be at least 1000 (got %d)", c.Security.KDFIterations)
	}
	if c.Security.MinPasswordLength < 1 {
		return fmt.Errorf("minimum password length must be at least 1")
	}
	return nil
}

func (c *ServerConfig) Validate() error {
	if c.HTTP.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.HTTP.MaxBodySize <= 0 {
		return fmt.Errorf("max body size must be positive")
	}
	if c.HTTP.RateLimitPerMin < 0 || c.HTTP.RateLimitBurst < 0 {
		return fmt.Errorf("rate limits cannot be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return c.Store.Validate()
}

// LoadClient reads the client config from path, or from shardwallet.yaml in
// the working or config directory when path is empty. SHARDWALLET_* variables
// override file values, e.g. SHARDWALLET_SERVER_URL.
func LoadClient(path string) (*ClientConfig, error) {
	cfg := DefaultClientConfig()
	v := newViper(ClientEnvPrefix, clientConfigName, path)
	setClientDefaults(v, cfg)
	if err := load(v, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	return cfg, nil
}

// LoadServer reads the server config. KEYSHARE_* variables override file
// values, e.g. KEYSHARE_STORE_BACKEND=redis.
func LoadServer(path string) (*ServerConfig, error) {
	cfg := DefaultServerConfig()
	v := newViper(ServerEnvPrefix, serverConfigName, path)
	setServerDefaults(v, cfg)
	if err := load(v, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	return cfg, nil
}

func newViper(envPrefix, name, path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		return v
	}
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
	}
	return v
}

func load(v *viper.Viper, out any) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	if err := v.Unmarshal(out); err != nil {
		return fmt.Errorf("unable to decode config: %w", err)
	}
	return nil
}

// Defaults are registered key by key so AutomaticEnv can see every key.
func setClientDefaults(v *viper.Viper, c *ClientConfig) {
	v.SetDefault("server.url", c.Server.URL)
	v.SetDefault("server.timeout", c.Server.Timeout)
	v.SetDefault("storage.record_path", c.Storage.RecordPath)
	v.SetDefault("security.kdf_iterations", c.Security.KDFIterations)
	v.SetDefault("security.min_password_length", c.Security.MinPasswordLength)
	v.SetDefault("security.auto_verify", c.Security.AutoVerify)
	v.SetDefault("ui.use_color", c.UI.UseColor)
	v.SetDefault("ui.verbose", c.UI.Verbose)
}

func setServerDefaults(v *viper.Viper, c *ServerConfig) {
	v.SetDefault("http.listen_addr", c.HTTP.ListenAddr)
	v.SetDefault("http.metrics_addr", c.HTTP.MetricsAddr)
	v.SetDefault("http.enable_pprof", c.HTTP.EnablePprof)
	v.SetDefault("http.read_timeout", c.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", c.HTTP.WriteTimeout)
	v.SetDefault("http.drain_duration", c.HTTP.DrainDuration)
	v.SetDefault("http.shutdown_timeout", c.HTTP.ShutdownTimeout)
	v.SetDefault("http.max_body_size", c.HTTP.MaxBodySize)
	v.SetDefault("http.rate_limit_per_min", c.HTTP.RateLimitPerMin)
	v.SetDefault("http.rate_limit_burst", c.HTTP.RateLimitBurst)
	v.SetDefault("http.trust_proxy_headers", c.HTTP.TrustProxyHeaders)

	v.SetDefault("store.backend", c.Store.Backend)
	v.SetDefault("store.single_tenant", c.Store.SingleTenant)
	v.SetDefault("store.file.dir", c.Store.File.Dir)
	v.SetDefault("store.file.passphrase", c.Store.File.Passphrase)
	v.SetDefault("store.redis.addr", c.Store.Redis.Addr)
	v.SetDefault("store.redis.username", c.Store.Redis.Username)
	v.SetDefault("store.redis.password", c.Store.Redis.Password)
	v.SetDefault("store.redis.db", c.Store.Redis.DB)
	v.SetDefault("store.s3.bucket", c.Store.S3.Bucket)
	v.SetDefault("store.s3.prefix", c.Store.S3.Prefix)
	v.SetDefault("store.s3.region", c.Store.S3.Region)
	v.SetDefault("store.s3.endpoint", c.Store.S3.Endpoint)
	v.SetDefault("store.s3.access_key", c.Store.S3.AccessKey)
	v.SetDefault("store.s3.secret_key", c.Store.S3.SecretKey)
	v.SetDefault("store.vault.address", c.Store.Vault.Address)
	v.SetDefault("store.vault.token", c.Store.Vault.Token)
	v.SetDefault("store.vault.mount_path", c.Store.Vault.MountPath)
	v.SetDefault("store.vault.data_path", c.Store.Vault.DataPath)

	v.SetDefault("log.level", c.Log.Level)
	v.SetDefault("log.json", c.Log.JSON)
}

func configDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "shardwallet"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".config", "shardwallet"), nil
}

func defaultRecordPath() string {
	dir, err := configDir()
	if err != nil {
		return "wallet.json"
	}
	return filepath.Join(dir, "wallet.json")
}
