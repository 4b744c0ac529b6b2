package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vadiminshakov/colonyfeed/internal/domain"
)

const (
	DefaultRPCEndpoint      = "https://arb1.arbitrum.io/rpc"
	DefaultColonyAddress    = "0x8e389bf45f926dDDB2BE3636290de42B68aefd51"
	DefaultReputationOracle = "https://xdai.colony.io/reputation/arbitrum-one"
	DefaultReputationRPS    = 5
	DefaultListen           = ":3000"
	DefaultInterval         = 5 * time.Minute
	DefaultMaxAge           = 10 * time.Minute
	DefaultFundsCachePath   = "data/funds.json"
	DefaultUsersCachePath   = "data/users.json"
	DefaultWALDir           = "./wal/snapshots"
	DefaultFetchTimeout     = 30 * time.Second
	DefaultMaxConcurrency   = 8
	DefaultMaxRetries       = 2
	DefaultRetryInterval    = time.Second
	DefaultTLSCacheDir      = "cert-cache"

	BackendFile = "file"
	BackendWAL  = "wal"
)

// Environment variables that override the config file.
const (
	EnvRPCEndpoint   = "COLONYFEED_RPC_ENDPOINT"
	EnvColonyAddress = "COLONYFEED_COLONY_ADDRESS"
	EnvPort          = "PORT"
)

// Config is the validated process configuration.
type Config struct {
	RPCEndpoint      string
	ColonyAddress    common.Address
	ReputationOracle string
	ReputationRPS    float64
	Assets           []domain.Asset
	Domains          domain.Subdivisions
	Listen           string
	Funds            FeedConfig
	Users            FeedConfig
	Storage          StorageConfig
	FetchTimeout     time.Duration
	MaxConcurrency   int
	Retry            RetryConfig
	WarmStart        bool
	TLS              TLSConfig
}

type FeedConfig struct {
	Interval  time.Duration
	MaxAge    time.Duration
	CachePath string
}

type StorageConfig struct {
	Backend string
	WALDir  string
}

type RetryConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
}

// TLSConfig enables ACME certificates when Hosts is not empty.
type TLSConfig struct {
	Hosts    []string
	CacheDir string
}

// ConfigTmp mirrors the YAML file before defaults and validation.
type ConfigTmp struct {
	RPCEndpoint      string        `yaml:"rpc_endpoint,omitempty"`
	ColonyAddress    string        `yaml:"colony_address"`
	ReputationOracle string        `yaml:"reputation_oracle,omitempty"`
	ReputationRPS    float64       `yaml:"reputation_rps,omitempty"`
	Assets           []AssetTmp    `yaml:"assets,omitempty"`
	Domains          []DomainTmp   `yaml:"domains,omitempty"`
	Listen           string        `yaml:"listen,omitempty"`
	Funds            FeedTmp       `yaml:"funds,omitempty"`
	Users            FeedTmp       `yaml:"users,omitempty"`
	Storage          StorageTmp    `yaml:"storage,omitempty"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout,omitempty"`
	MaxConcurrency   int           `yaml:"max_concurrency,omitempty"`
	Retry            RetryTmp      `yaml:"retry,omitempty"`
	WarmStart        bool          `yaml:"warm_start,omitempty"`
	TLS              TLSTmp        `yaml:"tls,omitempty"`
}

type AssetTmp struct {
	Ticker   string `yaml:"ticker"`
	Address  string `yaml:"address"`
	Decimals *int32 `yaml:"decimals,omitempty"`
}

type DomainTmp struct {
	ID   uint64 `yaml:"id"`
	Name string `yaml:"name"`
}

type FeedTmp struct {
	Interval  time.Duration `yaml:"interval,omitempty"`
	MaxAge    time.Duration `yaml:"max_age,omitempty"`
	CachePath string        `yaml:"cache_path,omitempty"`
}

type StorageTmp struct {
	Backend string `yaml:"backend,omitempty"`
	WALDir  string `yaml:"wal_dir,omitempty"`
}

type RetryTmp struct {
	MaxRetries      *int          `yaml:"max_retries,omitempty"`
	InitialInterval time.Duration `yaml:"initial_interval,omitempty"`
}

type TLSTmp struct {
	Hosts    []string `yaml:"hosts,omitempty"`
	CacheDir string   `yaml:"cache_dir,omitempty"`
}

// Load reads the YAML file at path, applies .env and environment overrides
// and validates the result. An empty path uses defaults and the environment only.
func Load(path string) (Config, error) {
	_ = godotenv.Load() // .env is optional

	var tmp ConfigTmp
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, &tmp); err != nil {
			return Config{}, errors.Wrap(err, "parse yaml config")
		}
	}

	tmp.applyEnv(os.LookupEnv)
	return tmp.Build()
}

func (c *ConfigTmp) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvRPCEndpoint); ok && v != "" {
		c.RPCEndpoint = v
	}
	if v, ok := lookup(EnvColonyAddress); ok && v != "" {
		c.ColonyAddress = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		c.Listen = ":" + strings.TrimPrefix(v, ":")
	}
}

// Build applies defaults and validates.
func (c ConfigTmp) Build() (Config, error) {
	cfg := Config{
		RPCEndpoint:      withDefault(c.RPCEndpoint, DefaultRPCEndpoint),
		ReputationOracle: withDefault(c.ReputationOracle, DefaultReputationOracle),
		ReputationRPS:    c.ReputationRPS,
		Listen:           withDefault(c.Listen, DefaultListen),
		Funds:            c.Funds.build(DefaultFundsCachePath),
		Users:            c.Users.build(DefaultUsersCachePath),
		Storage: StorageConfig{
			Backend: withDefault(c.Storage.Backend, BackendFile),
			WALDir:  withDefault(c.Storage.WALDir, DefaultWALDir),
		},
		FetchTimeout:   c.FetchTimeout,
		MaxConcurrency: c.MaxConcurrency,
		Retry: RetryConfig{
			MaxRetries:      DefaultMaxRetries,
			InitialInterval: c.Retry.InitialInterval,
		},
		WarmStart: c.WarmStart,
		TLS: TLSConfig{
			Hosts:    c.TLS.Hosts,
			CacheDir: withDefault(c.TLS.CacheDir, DefaultTLSCacheDir),
		},
	}
	if cfg.ReputationRPS == 0 {
		cfg.ReputationRPS = DefaultReputationRPS
	}
	if cfg.FetchTimeout == 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.Retry.MaxRetries != nil {
		cfg.Retry.MaxRetries = *c.Retry.MaxRetries
	}
	if cfg.Retry.InitialInterval == 0 {
		cfg.Retry.InitialInterval = DefaultRetryInterval
	}

	colony := withDefault(c.ColonyAddress, DefaultColonyAddress)
	if !common.IsHexAddress(colony) {
		return Config{}, errors.Errorf("incorrect 'colony_address' param in config: %s", colony)
	}
	cfg.ColonyAddress = common.HexToAddress(colony)

	assets, err := buildAssets(c.Assets)
	if err != nil {
		return Config{}, err
	}
	cfg.Assets = assets

	domains, err := buildDomains(c.Domains)
	if err != nil {
		return Config{}, err
	}
	cfg.Domains = domains

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (f FeedTmp) build(defaultPath string) FeedConfig {
	feed := FeedConfig{
		Interval:  f.Interval,
		MaxAge:    f.MaxAge,
		CachePath: withDefault(f.CachePath, defaultPath),
	}
	if feed.Interval == 0 {
		feed.Interval = DefaultInterval
	}
	if feed.MaxAge == 0 {
		feed.MaxAge = DefaultMaxAge
	}

	return feed
}

func buildAssets(raw []AssetTmp) ([]domain.Asset, error) {
	if len(raw) == 0 {
		return domain.DefaultAssets(), nil
	}

	seen := make(map[string]struct{}, len(raw))
	assets := make([]domain.Asset, 0, len(raw))
	for i, a := range raw {
		if a.Ticker == "" {
			return nil, errors.Errorf("'assets[%d].ticker' is required", i)
		}
		if _, ok := seen[a.Ticker]; ok {
			return nil, errors.Errorf("duplicate asset ticker %q", a.Ticker)
		}
		seen[a.Ticker] = struct{}{}

		if !common.IsHexAddress(a.Address) {
			return nil, errors.Errorf("incorrect 'assets[%d].address' param in config: %q", i, a.Address)
		}

		decimals := domain.DefaultAssetDecimals
		if a.Decimals != nil {
			decimals = *a.Decimals
		}
		if decimals < 0 || decimals > 36 {
			return nil, errors.Errorf("incorrect 'assets[%d].decimals' param in config: %d", i, decimals)
		}

		assets = append(assets, domain.Asset{Ticker: a.Ticker, Address: common.HexToAddress(a.Address), Decimals: decimals})
	}

	return assets, nil
}

func buildDomains(raw []DomainTmp) (domain.Subdivisions, error) {
	if len(raw) == 0 {
		return domain.DefaultSubdivisions(), nil
	}

	domains := make(domain.Subdivisions, 0, len(raw))
	for i, d := range raw {
		if d.ID == 0 {
			return nil, errors.Errorf("'domains[%d].id' must be positive", i)
		}
		if domains.Contains(d.ID) {
			return nil, errors.Errorf("duplicate domain id %d", d.ID)
		}
		domains = append(domains, domain.Subdivision{ID: d.ID, Name: d.Name})
	}

	return domains, nil
}

func (c Config) validate() error {
	if c.RPCEndpoint == "" {
		return errors.New("'rpc_endpoint' is required")
	}
	if c.ReputationRPS < 0 {
		return fmt.Errorf("incorrect 'reputation_rps' param in config: %v", c.ReputationRPS)
	}
	if c.Storage.Backend != BackendFile && c.Storage.Backend != BackendWAL {
		return fmt.Errorf("incorrect 'storage.backend' param in config: %q (expected %q or %q)", c.Storage.Backend, BackendFile, BackendWAL)
	}
	for name, feed := range map[string]FeedConfig{"funds": c.Funds, "users": c.Users} {
		if feed.Interval < 0 || feed.MaxAge < 0 {
			return fmt.Errorf("'%s.interval' and '%s.max_age' must be positive", name, name)
		}
	}
	if c.Storage.Backend == BackendFile && c.Funds.CachePath == c.Users.CachePath {
		return errors.New("'funds.cache_path' and 'users.cache_path' must differ")
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("incorrect 'fetch_timeout' param in config: %s", c.FetchTimeout)
	}
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("incorrect 'max_concurrency' param in config: %d", c.MaxConcurrency)
	}
	if c.Retry.MaxRetries < 0 || c.Retry.InitialInterval < 0 {
		return errors.New("'retry.max_retries' and 'retry.initial_interval' must not be negative")
	}

	return nil
}

// WriteFile stores c as YAML at path.
func (c ConfigTmp) WriteFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}

	return errors.Wrap(os.WriteFile(path, data, 0o644), "write config")
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
