package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Driver string
		Path   string
		URI    string
		Name   string
	}
	Auth struct {
		JWTSecret    string
		TokenTTL     time.Duration
		Issuer       string
		PasswordCost int
	}
	Storage struct {
		Bucket    string
		KeyPrefix string
		Region    string
		Endpoint  string
	}
	AWS struct {
		Profile string
	}
	Log struct {
		Level string
	}
}

// Load reads configuration from environment variables and optional config files.
// Variables use the ACCOUNTS_ prefix, e.g. ACCOUNTS_AUTH_JWTSECRET.
func Load() (Config, error) {
	// existing environment wins over .env
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("ACCOUNTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8080")
	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/accounts.db")
	v.SetDefault("database.uri", "mongodb://localhost:27017")
	v.SetDefault("database.name", "accounts")
	v.SetDefault("auth.jwtsecret", "")
	v.SetDefault("auth.tokenttl", "24h")
	v.SetDefault("auth.issuer", "account-service")
	v.SetDefault("auth.passwordcost", 12)
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.keyprefix", "deleted-accounts")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("aws.profile", "")
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports settings the service cannot start without.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("auth jwt secret is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return fmt.Errorf("auth token ttl must be positive, got %s", c.Auth.TokenTTL)
	}
	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			return errors.New("database path is required for sqlite")
		}
	case DriverMongo:
		if c.Database.URI == "" || c.Database.Name == "" {
			return errors.New("database uri and name are required for mongo")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	return nil
}
