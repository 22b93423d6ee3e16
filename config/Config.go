package config

import (
	"time"
)

type StorageType string

type CacheType string

type LedgerType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

const CACHE_TYPE_LOCAL CacheType = "local"
const CACHE_TYPE_REDIS CacheType = "redis"

const LEDGER_TYPE_FLOW LedgerType = "flow"
const LEDGER_TYPE_SIMULATED LedgerType = "simulated"

type Config struct {
	Log                LogConfig
	RedisConfig        RedisStorageConfig
	StorageType        StorageType
	CacheType          CacheType
	LedgerType         LedgerType
	Ledger             LedgerConfig
	Tracker            TrackerConfig
	RateLimit          RateLimitConfig
	Backend            BackendConfig
	HttpPort           int
	ReconcileAbandoned bool
}

type RedisStorageConfig struct {
	Addrs     []string
	Namespace string
}

type LedgerConfig struct {
	// AccessNode is the Flow access node host, e.g. rest-testnet.onflow.org or 127.0.0.1:3569.
	AccessNode string
	// Transport is either "http" or "grpc".
	Transport     string
	SignerAddress string
	SignerKeyHex  string
	// DefaultComputeLimit is used when an operation does not carry its own resource limit.
	DefaultComputeLimit uint64
	// Contracts maps contract names used in program imports to their deployed addresses.
	Contracts map[string]string
}

type TrackerConfig struct {
	PollInterval   time.Duration
	Timeout        time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Overrides are keyed by operation kind.
	Overrides map[string]TrackerOverride
}

type TrackerOverride struct {
	PollInterval time.Duration
	Timeout      time.Duration
}

// For returns the poll interval and timeout that apply to kind.
func (t TrackerConfig) For(kind string) (time.Duration, time.Duration) {
	poll, timeout := t.PollInterval, t.Timeout
	if o, ok := t.Overrides[kind]; ok {
		if o.PollInterval > 0 {
			poll = o.PollInterval
		}
		if o.Timeout > 0 {
			timeout = o.Timeout
		}
	}
	return poll, timeout
}

type RateLimitConfig struct {
	// PerSecond is the sustained submission rate, zero disables limiting.
	PerSecond float64
	Burst     int
}

type BackendConfig struct {
	BaseUrl  string
	Timeout  time.Duration
	CacheTTL time.Duration
}

func Default() Config {
	return Config{
		Log: LogConfig{
			Level:    "info",
			Encoding: "json",
		},
		RedisConfig: RedisStorageConfig{
			Addrs:     []string{"localhost:6379"},
			Namespace: "txflow",
		},
		StorageType: STORAGE_TYPE_INMEM,
		CacheType:   CACHE_TYPE_LOCAL,
		LedgerType:  LEDGER_TYPE_SIMULATED,
		Ledger: LedgerConfig{
			AccessNode:          "rest-testnet.onflow.org",
			Transport:           "http",
			DefaultComputeLimit: 999,
			Contracts:           map[string]string{},
		},
		Tracker: TrackerConfig{
			PollInterval:   time.Second,
			Timeout:        3 * time.Minute,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     10 * time.Second,
			Overrides: map[string]TrackerOverride{
				"reveal-pack": {Timeout: 5 * time.Minute},
				"check-in":    {Timeout: 2 * time.Minute},
			},
		},
		RateLimit: RateLimitConfig{
			PerSecond: 5,
			Burst:     10,
		},
		Backend: BackendConfig{
			BaseUrl:  "http://localhost:8080",
			Timeout:  30 * time.Second,
			CacheTTL: 5 * time.Minute,
		},
		HttpPort:           8090,
		ReconcileAbandoned: true,
	}
}
