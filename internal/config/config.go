package config

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
	"github.com/polkiloo/offramp/internal/domain/model"
	"github.com/polkiloo/offramp/internal/pkg/suiaddr"
)

// Config holds application level configuration loaded from environment and flags.
type Config struct {
	RunAddress  string
	DatabaseURI string
	LogLevel    string

	ChainRPCAddress     string
	CollectionAddress   string
	QuoteAPIAddress     string
	PayoutAPIAddress    string
	PayoutAPIKey        string
	// PayoutSigningSecret enables HMAC signing of payout requests when set.
	PayoutSigningSecret string
	DirectoryAPIAddress string
	Assets              []model.Asset

	ExternalTimeout time.Duration
	VerifyAttempts  int
	VerifyBackoff   time.Duration

	PayoutLease      time.Duration
	PayoutWait       time.Duration
	PayoutRetryGrace time.Duration

	ReconcileInterval time.Duration
	ReconcileJitter   time.Duration
	ReconcileBatch    int
	WorkerPoolSize    int
	PartnerRateLimit  float64

	ShutdownTimeout time.Duration
}

const (
	defaultRunAddress        = ":8080"
	defaultLogLevel          = "info"
	defaultAssets            = "USDC:6:0xdba34672e30cb065b1f93e3ab55318768fd6fef66c15942c9f7cb846e2f900e7::usdc::USDC"
	defaultExternalTimeout   = 10 * time.Second
	defaultVerifyAttempts    = 5
	defaultVerifyBackoff     = 2 * time.Second
	defaultPayoutLease       = 30 * time.Second
	defaultPayoutWait        = 15 * time.Second
	defaultPayoutRetryGrace  = 2 * time.Minute
	defaultReconcileInterval = 30 * time.Second
	defaultReconcileJitter   = 5 * time.Second
	defaultReconcileBatch    = 32
	defaultWorkerPoolSize    = 4
	defaultPartnerRateLimit  = 5
	defaultShutdownTimeout   = 10 * time.Second
)

// Load parses configuration from flags and environment variables.
func Load() (*Config, error) {
	return load(os.Args[1:], os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(args []string, lookup envLookup) (*Config, error) {
	cfg := &Config{
		RunAddress:          getString(lookup, "RUN_ADDRESS", defaultRunAddress),
		DatabaseURI:         getString(lookup, "DATABASE_URI", ""),
		LogLevel:            getString(lookup, "LOG_LEVEL", defaultLogLevel),
		ChainRPCAddress:     getString(lookup, "CHAIN_RPC_ADDRESS", ""),
		CollectionAddress:   getString(lookup, "COLLECTION_ADDRESS", ""),
		QuoteAPIAddress:     getString(lookup, "QUOTE_API_ADDRESS", ""),
		PayoutAPIAddress:    getString(lookup, "PAYOUT_API_ADDRESS", ""),
		PayoutAPIKey:        getString(lookup, "PAYOUT_API_KEY", ""),
		PayoutSigningSecret: getString(lookup, "PAYOUT_SIGNING_SECRET", ""),
		DirectoryAPIAddress: getString(lookup, "DIRECTORY_API_ADDRESS", ""),
		ExternalTimeout:     getDuration(lookup, "EXTERNAL_TIMEOUT", defaultExternalTimeout),
		VerifyAttempts:      getInt(lookup, "VERIFY_ATTEMPTS", defaultVerifyAttempts),
		VerifyBackoff:       getDuration(lookup, "VERIFY_BACKOFF", defaultVerifyBackoff),
		PayoutLease:         getDuration(lookup, "PAYOUT_LEASE", defaultPayoutLease),
		PayoutWait:          getDuration(lookup, "PAYOUT_WAIT", defaultPayoutWait),
		PayoutRetryGrace:    getDuration(lookup, "PAYOUT_RETRY_GRACE", defaultPayoutRetryGrace),
		ReconcileInterval:   getDuration(lookup, "RECONCILE_INTERVAL", defaultReconcileInterval),
		ReconcileJitter:     getDuration(lookup, "RECONCILE_JITTER", defaultReconcileJitter),
		ReconcileBatch:      getInt(lookup, "RECONCILE_BATCH", defaultReconcileBatch),
		WorkerPoolSize:      getInt(lookup, "WORKER_POOL_SIZE", defaultWorkerPoolSize),
		PartnerRateLimit:    getFloat(lookup, "PARTNER_RATE_LIMIT", defaultPartnerRateLimit),
		ShutdownTimeout:     getDuration(lookup, "SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
	}
	assets := getString(lookup, "ASSETS", defaultAssets)

	fs := flag.NewFlagSet("offramp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	var (
		reconcileIntervalStr = cfg.ReconcileInterval.String()
		shutdownTimeoutStr   = cfg.ShutdownTimeout.String()
		externalTimeoutStr   = cfg.ExternalTimeout.String()
	)

	fs.StringVar(&cfg.RunAddress, "a", cfg.RunAddress, "HTTP server listen address")
	fs.StringVar(&cfg.DatabaseURI, "d", cfg.DatabaseURI, "PostgreSQL DSN")
	fs.StringVar(&cfg.ChainRPCAddress, "rpc", cfg.ChainRPCAddress, "Sui JSON-RPC endpoint")
	fs.StringVar(&cfg.CollectionAddress, "collection", cfg.CollectionAddress, "Platform collection address")
	fs.StringVar(&cfg.QuoteAPIAddress, "quote-api", cfg.QuoteAPIAddress, "Exchange quote API base URL")
	fs.StringVar(&cfg.PayoutAPIAddress, "payout-api", cfg.PayoutAPIAddress, "Payout partner API base URL")
	fs.StringVar(&cfg.DirectoryAPIAddress, "directory-api", cfg.DirectoryAPIAddress, "Payout target directory base URL")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&assets, "assets", assets, "Accepted assets as SYMBOL:DECIMALS:COINTYPE list")
	fs.IntVar(&cfg.WorkerPoolSize, "worker-pool", cfg.WorkerPoolSize, "Number of concurrent reconcile workers")
	fs.IntVar(&cfg.ReconcileBatch, "reconcile-batch", cfg.ReconcileBatch, "Maximum orders per reconcile tick")
	fs.StringVar(&reconcileIntervalStr, "reconcile-interval", reconcileIntervalStr, "Interval between reconcile ticks")
	fs.StringVar(&shutdownTimeoutStr, "shutdown-timeout", shutdownTimeoutStr, "Graceful shutdown timeout")
	fs.StringVar(&externalTimeoutStr, "external-timeout", externalTimeoutStr, "Timeout for RPC, quote and payout calls")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	var err error

	if cfg.ReconcileInterval, err = time.ParseDuration(reconcileIntervalStr); err != nil {
		return nil, fmt.Errorf("invalid reconcile interval: %w", err)
	}

	if cfg.ShutdownTimeout, err = time.ParseDuration(shutdownTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid shutdown timeout: %w", err)
	}

	if cfg.ExternalTimeout, err = time.ParseDuration(externalTimeoutStr); err != nil {
		return nil, fmt.Errorf("invalid external timeout: %w", err)
	}

	if keyFile, ok := lookup("PAYOUT_API_KEY_FILE"); ok && keyFile != "" {
		content, err := os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("read payout api key file: %w", err)
		}
		cfg.PayoutAPIKey = strings.TrimSpace(string(content))
	}

	if cfg.Assets, err = ParseAssets(assets); err != nil {
		return nil, err
	}

	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) normalize() {
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = defaultWorkerPoolSize
	}
	if cfg.ReconcileBatch <= 0 {
		cfg.ReconcileBatch = defaultReconcileBatch
	}
	if cfg.ReconcileInterval <= 0 {
		cfg.ReconcileInterval = defaultReconcileInterval
	}
	if cfg.ReconcileJitter < 0 {
		cfg.ReconcileJitter = 0
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.ExternalTimeout <= 0 {
		cfg.ExternalTimeout = defaultExternalTimeout
	}
	if cfg.VerifyAttempts <= 0 {
		cfg.VerifyAttempts = defaultVerifyAttempts
	}
	if cfg.VerifyBackoff < 0 {
		cfg.VerifyBackoff = defaultVerifyBackoff
	}
	// Lease must outlive the payout call it guards.
	if cfg.PayoutLease <= cfg.ExternalTimeout {
		cfg.PayoutLease = cfg.ExternalTimeout + defaultPayoutLease
	}
	if cfg.PayoutWait <= 0 {
		cfg.PayoutWait = defaultPayoutWait
	}
	if cfg.PayoutRetryGrace < cfg.PayoutLease {
		cfg.PayoutRetryGrace = cfg.PayoutLease
	}
	if cfg.PartnerRateLimit <= 0 {
		cfg.PartnerRateLimit = defaultPartnerRateLimit
	}
}

func (cfg *Config) validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"DATABASE_URI", cfg.DatabaseURI},
		{"CHAIN_RPC_ADDRESS", cfg.ChainRPCAddress},
		{"COLLECTION_ADDRESS", cfg.CollectionAddress},
		{"QUOTE_API_ADDRESS", cfg.QuoteAPIAddress},
		{"PAYOUT_API_ADDRESS", cfg.PayoutAPIAddress},
		{"PAYOUT_API_KEY", cfg.PayoutAPIKey},
		{"DIRECTORY_API_ADDRESS", cfg.DirectoryAPIAddress},
	}
	for _, r := range required {
		if r.value == "" {
			return &domainErrors.ConfigurationError{Key: r.key, Reason: "must be provided"}
		}
	}

	normalized, err := suiaddr.Normalize(cfg.CollectionAddress)
	if err != nil {
		return &domainErrors.ConfigurationError{Key: "COLLECTION_ADDRESS", Reason: "is not a valid address"}
	}
	cfg.CollectionAddress = normalized
	return nil
}

// ParseAssets decodes a comma separated SYMBOL:DECIMALS:COINTYPE list.
func ParseAssets(spec string) ([]model.Asset, error) {
	var assets []model.Asset
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, &domainErrors.ConfigurationError{Key: "ASSETS", Reason: fmt.Sprintf("entry %q is not SYMBOL:DECIMALS:COINTYPE", entry)}
		}
		decimals, err := strconv.Atoi(parts[1])
		if err != nil || decimals < 0 || decimals > 36 {
			return nil, &domainErrors.ConfigurationError{Key: "ASSETS", Reason: fmt.Sprintf("entry %q has invalid decimals", entry)}
		}
		coinType, err := suiaddr.NormalizeCoinType(parts[2])
		if err != nil {
			return nil, &domainErrors.ConfigurationError{Key: "ASSETS", Reason: fmt.Sprintf("entry %q has invalid coin type", entry)}
		}
		assets = append(assets, model.Asset{Symbol: strings.ToUpper(parts[0]), CoinType: coinType, Decimals: decimals})
	}
	if len(assets) == 0 {
		return nil, &domainErrors.ConfigurationError{Key: "ASSETS", Reason: "must list at least one asset"}
	}
	return assets, nil
}

func getString(lookup envLookup, key, def string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return def
}

func getInt(lookup envLookup, key string, def int) int {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(lookup envLookup, key string, def float64) float64 {
	if v, ok := lookup(key); ok && v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return def
}

func getDuration(lookup envLookup, key string, def time.Duration) time.Duration {
	if v, ok := lookup(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
