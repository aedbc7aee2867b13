package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	HasherAlgorithmPBKDF2 = "pbkdf2"
	HasherAlgorithmBcrypt = "bcrypt"
)

type TransactionsConfig struct {
	// RetentionSeconds bounds how long terminal transactions are kept once a
	// retention sweeper runs. Zero keeps them for the life of the process.
	RetentionSeconds int `koanf:"retention_seconds" mapstructure:"retention_seconds"`
}

func (c TransactionsConfig) Retention() time.Duration {
	if c.RetentionSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RetentionSeconds) * time.Second
}

type HasherConfig struct {
	Algorithm        string `koanf:"algorithm" mapstructure:"algorithm"`
	PBKDF2Iterations int    `koanf:"pbkdf2_iterations" mapstructure:"pbkdf2_iterations"`
	BcryptCost       int    `koanf:"bcrypt_cost" mapstructure:"bcrypt_cost"`
}

type ProfileCacheConfig struct {
	TTLSeconds int `koanf:"ttl_seconds" mapstructure:"ttl_seconds"`
}

func (c ProfileCacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

type Config struct {
	ServiceName  string             `koanf:"service_name" mapstructure:"service_name"`
	Transactions TransactionsConfig `koanf:"transactions" mapstructure:"transactions"`
	Hasher       HasherConfig       `koanf:"hasher" mapstructure:"hasher"`
	ProfileCache ProfileCacheConfig `koanf:"profile_cache" mapstructure:"profile_cache"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "accounttx",
		Hasher: HasherConfig{
			Algorithm:        HasherAlgorithmPBKDF2,
			PBKDF2Iterations: DefaultPBKDF2Iterations,
			BcryptCost:       DefaultBcryptCost,
		},
		ProfileCache: ProfileCacheConfig{TTLSeconds: 300},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	switch strings.ToLower(strings.TrimSpace(c.Hasher.Algorithm)) {
	case "", HasherAlgorithmPBKDF2, HasherAlgorithmBcrypt:
	default:
		return fmt.Errorf("core: invalid hasher algorithm %q", c.Hasher.Algorithm)
	}
	if c.Transactions.RetentionSeconds < 0 {
		return fmt.Errorf("core: invalid transactions.retention_seconds %d", c.Transactions.RetentionSeconds)
	}
	if c.ProfileCache.TTLSeconds < 0 {
		return fmt.Errorf("core: invalid profile_cache.ttl_seconds %d", c.ProfileCache.TTLSeconds)
	}
	return nil
}
