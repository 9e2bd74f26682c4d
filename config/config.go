// config/config.go
package config

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the resolved runtime configuration. Values come from the
// process environment, optionally seeded from a .env file.
type Config struct {
	Port           int
	DatabaseURL    string
	ServiceToken   string
	AllowedOrigins []string
	LogLevel       string

	Bridge  BridgeConfig
	Redis   RedisConfig
	R2      R2Config
	Workers WorkerConfig

	ProfileCacheTTL time.Duration
}

type BridgeConfig struct {
	BaseURL   string
	APIKey    string // empty => degraded mode, provider reads return no data
	RateLimit float64
}

type RedisConfig struct {
	URL string // empty => in-process cache and locks
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	CDNBaseURL      string
}

// Enabled reports whether enough is set to talk to object storage.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

type WorkerConfig struct {
	WalletDiscoveryInterval time.Duration // 0 disables
	KYCSyncInterval         time.Duration // 0 disables
}

var ErrMissingRequired = errors.New("missing required configuration")

// Load reads .env (if any) and resolves configuration through viper.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}
	return fromViper(newViper()), nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", 5300)
	v.SetDefault("ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("BRIDGE_API_URL", "https://api.bridge.xyz/v0")
	v.SetDefault("BRIDGE_RATE_LIMIT", 10)
	v.SetDefault("PROFILE_CACHE_TTL", "5m")
	v.SetDefault("WALLET_DISCOVERY_INTERVAL", "0s")
	v.SetDefault("KYC_SYNC_INTERVAL", "0s")

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"DATABASE_URL", "CRM_SERVICE_TOKEN", "BRIDGE_API_KEY", "REDIS_URL",
		"CLOUDFLARE_ACCOUNT_ID", "R2_ACCESS_KEY_ID", "R2_ACCESS_KEY_SECRET", "R2_BUCKET_NAME", "CDN_BASE_URL",
	} {
		_ = v.BindEnv(key)
	}
	return v
}

func fromViper(v *viper.Viper) *Config {
	origins := strings.Split(v.GetString("ALLOWED_ORIGINS"), ",")
	for i, origin := range origins {
		origins[i] = strings.TrimSpace(origin)
	}

	return &Config{
		Port:           v.GetInt("PORT"),
		DatabaseURL:    v.GetString("DATABASE_URL"),
		ServiceToken:   v.GetString("CRM_SERVICE_TOKEN"),
		AllowedOrigins: origins,
		LogLevel:       v.GetString("LOG_LEVEL"),
		Bridge: BridgeConfig{
			BaseURL:   strings.TrimRight(v.GetString("BRIDGE_API_URL"), "/"),
			APIKey:    v.GetString("BRIDGE_API_KEY"),
			RateLimit: v.GetFloat64("BRIDGE_RATE_LIMIT"),
		},
		Redis: RedisConfig{URL: v.GetString("REDIS_URL")},
		R2: R2Config{
			AccountID:       v.GetString("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     v.GetString("R2_ACCESS_KEY_ID"),
			AccessKeySecret: v.GetString("R2_ACCESS_KEY_SECRET"),
			Bucket:          v.GetString("R2_BUCKET_NAME"),
			CDNBaseURL:      v.GetString("CDN_BASE_URL"),
		},
		Workers: WorkerConfig{
			WalletDiscoveryInterval: v.GetDuration("WALLET_DISCOVERY_INTERVAL"),
			KYCSyncInterval:         v.GetDuration("KYC_SYNC_INTERVAL"),
		},
		ProfileCacheTTL: v.GetDuration("PROFILE_CACHE_TTL"),
	}
}

// RequireServer checks the settings the HTTP server cannot start without.
func (c *Config) RequireServer() error {
	var missing []string
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.ServiceToken == "" {
		missing = append(missing, "CRM_SERVICE_TOKEN")
	}
	if len(missing) > 0 {
		return errors.Join(ErrMissingRequired, errors.New(strings.Join(missing, ", ")))
	}
	return nil
}
