package secrets

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SecretSource defines where secrets are loaded from
type SecretSource string

const (
	SourceEnvironment SecretSource = "environment"
	SourceVault       SecretSource = "vault"
)

// Fetcher reads one secret from a backing store
type Fetcher interface {
	Fetch(ctx context.Context, secretName string) (string, error)
}

// ProviderConfig holds configuration for the secrets provider
type ProviderConfig struct {
	Source       SecretSource
	VaultName    string
	Environment  string
	CacheEnabled bool
	CacheTTL     time.Duration
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// Provider resolves secrets from the environment or a Fetcher, caching vault reads
type Provider struct {
	source   SecretSource
	fetcher  Fetcher
	logger   *zap.Logger
	cacheTTL time.Duration

	mu    sync.Mutex
	cache map[string]cachedSecret
}

// NewProvider creates a provider. SourceVault connects to Azure Key Vault.
func NewProvider(cfg *ProviderConfig, logger *zap.Logger) (*Provider, error) {
	var fetcher Fetcher
	if cfg.Source == SourceVault {
		vault, err := NewVaultClient(cfg.VaultName, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize vault client: %w", err)
		}
		fetcher = vault
	}

	p := NewProviderWithFetcher(cfg.Source, fetcher, cfg.CacheTTL, logger)
	if !cfg.CacheEnabled {
		p.cacheTTL = 0
	}

	logger.Info("Secrets provider initialized",
		zap.String("source", string(cfg.Source)),
		zap.String("environment", cfg.Environment),
	)
	return p, nil
}

// NewProviderWithFetcher builds a provider over an arbitrary fetcher. A zero ttl disables caching.
func NewProviderWithFetcher(source SecretSource, fetcher Fetcher, ttl time.Duration, logger *zap.Logger) *Provider {
	return &Provider{
		source:   source,
		fetcher:  fetcher,
		logger:   logger,
		cacheTTL: ttl,
		cache:    make(map[string]cachedSecret),
	}
}

// GetSecret retrieves a secret by name. For the environment source the name is the variable name.
func (p *Provider) GetSecret(ctx context.Context, secretName string) (string, error) {
	switch p.source {
	case SourceEnvironment:
		value := os.Getenv(secretName)
		if value == "" {
			return "", fmt.Errorf("environment variable '%s' not set", secretName)
		}
		return value, nil
	case SourceVault:
		return p.fetchCached(ctx, secretName)
	default:
		return "", fmt.Errorf("unknown secret source: %s", p.source)
	}
}

// GetSecretOrEnv prefers an explicitly set environment variable, then the configured source
func (p *Provider) GetSecretOrEnv(ctx context.Context, secretName, envName string) (string, error) {
	if envValue := os.Getenv(envName); envValue != "" {
		p.logger.Debug("Using environment variable override", zap.String("env_name", envName))
		return envValue, nil
	}
	return p.GetSecret(ctx, secretName)
}

// IsVaultEnabled returns true if secrets are loaded from vault
func (p *Provider) IsVaultEnabled() bool {
	return p.source == SourceVault
}

func (p *Provider) fetchCached(ctx context.Context, secretName string) (string, error) {
	if p.fetcher == nil {
		return "", fmt.Errorf("vault client not initialized")
	}

	if p.cacheTTL > 0 {
		p.mu.Lock()
		cached, ok := p.cache[secretName]
		p.mu.Unlock()
		if ok && time.Now().Before(cached.expiresAt) {
			return cached.value, nil
		}
	}

	value, err := p.fetcher.Fetch(ctx, secretName)
	if err != nil {
		return "", err
	}

	if p.cacheTTL > 0 {
		p.mu.Lock()
		p.cache[secretName] = cachedSecret{value: value, expiresAt: time.Now().Add(p.cacheTTL)}
		p.mu.Unlock()
	}
	return value, nil
}
