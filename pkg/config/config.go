package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	StoreBackendPostgres = "postgres"
	StoreBackendMemory   = "memory"
)

type DBConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	MaxOpenConns int
	MaxIdleConns int
}

type ServerConfig struct {
	Addr string
}

type AuthConfig struct {
	JWTSecret string
}

type MomoConfig struct {
	BaseURL         string
	APIUser         string
	APIKey          string
	SubscriptionKey string
	TargetEnv       string
	Currency        string
}

type StoreConfig struct {
	Backend string
}

type PolicyConfig struct {
	// WithdrawLockedEnabled controls whether unmatured deposits can be
	// withdrawn (with penalty) at all.
	WithdrawLockedEnabled bool
}

type Config struct {
	Server ServerConfig
	DB     DBConfig
	Auth   AuthConfig
	Momo   MomoConfig
	Store  StoreConfig
	Policy PolicyConfig
}

// Load reads config.env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load("config.env")

	cfg := &Config{
		Server: ServerConfig{
			Addr: valueOrDefault("SERVER_ADDR", ":8080"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Momo: MomoConfig{
			BaseURL:         os.Getenv("MOMO_BASE_URL"),
			APIUser:         os.Getenv("MOMO_API_USER"),
			APIKey:          os.Getenv("MOMO_API_KEY"),
			SubscriptionKey: os.Getenv("MOMO_SUBSCRIPTION_KEY"),
			TargetEnv:       valueOrDefault("MOMO_TARGET_ENV", "sandbox"),
			Currency:        valueOrDefault("MOMO_CURRENCY", "SZL"),
		},
		Store: StoreConfig{
			Backend: valueOrDefault("VAULT_STORE", StoreBackendPostgres),
		},
		Policy: PolicyConfig{
			WithdrawLockedEnabled: parseBoolWithDefault("WITHDRAW_LOCKED_ENABLED", true),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	switch cfg.Store.Backend {
	case StoreBackendPostgres:
		db, err := loadDBConfig()
		if err != nil {
			return nil, err
		}
		cfg.DB = *db
	case StoreBackendMemory:
		// No database settings needed.
	default:
		return nil, fmt.Errorf("unknown VAULT_STORE backend %q", cfg.Store.Backend)
	}

	return cfg, nil
}

func loadDBConfig() (*DBConfig, error) {
	port, err := strconv.Atoi(os.Getenv("DB_PORT"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpen, err := strconv.Atoi(valueOrDefault("DB_MAX_OPEN_CONNS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdle, err := strconv.Atoi(valueOrDefault("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	return &DBConfig{
		Host:         os.Getenv("DB_HOST"),
		Port:         port,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		Name:         os.Getenv("DB_NAME"),
		MaxOpenConns: maxOpen,
		MaxIdleConns: maxIdle,
	}, nil
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseBoolWithDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		val, err := strconv.ParseBool(v)
		if err != nil {
			return fallback
		}
		return val
	}
	return fallback
}
