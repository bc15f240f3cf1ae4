package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config itsec-data (HTTP API + sync worker) configuration
type Config struct {
	HTTP struct {
		Addr string
	}
	Database DatabaseConfig
	Redis    struct {
		Addr     string
		Password string
		DB       int
	}
	Log struct {
		Level  string
		Format string
	}
	Graph    GraphConfig
	Defender DefenderConfig
	Sync     SyncConfig
	API      APIConfig
}

// DatabaseConfig PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// GraphConfig Microsoft Graph API settings (Intune managed devices, risk detections)
type GraphConfig struct {
	BaseURL      string
	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string
	PageSize     int
}

// TokenURL returns the OAuth2 client-credentials token endpoint for the tenant.
func (c *GraphConfig) TokenURL() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.TenantID)
}

// DefenderConfig Microsoft Defender for Endpoint API settings
type DefenderConfig struct {
	BaseURL      string
	TenantID     string
	ClientID     string
	ClientSecret string
	Scope        string
	PageSize     int
}

// TokenURL returns the OAuth2 client-credentials token endpoint for the tenant.
func (c *DefenderConfig) TokenURL() string {
	return fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", c.TenantID)
}

// SyncConfig device sync and statistics pipeline tunables
type SyncConfig struct {
	BatchSize     int           // devices per bulk write
	Interval      time.Duration // scheduled device sync interval (0 disables)
	StatsInterval time.Duration // scheduled statistics generation interval (0 disables)
}

// APIConfig HTTP surface settings (auth + rate limiting)
type APIConfig struct {
	Key        string        // API key required on every request; empty disables the check
	RateLimit  int           // requests per window per client+route; 0 disables
	RateWindow time.Duration // fixed rate-limit window
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8080")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "itsec")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "20"), 20)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = 0

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	// Microsoft Graph (Intune)
	cfg.Graph.BaseURL = getEnv("GRAPH_BASE_URL", "https://graph.microsoft.com/v1.0")
	cfg.Graph.TenantID = getEnv("GRAPH_TENANT_ID", "")
	cfg.Graph.ClientID = getEnv("GRAPH_CLIENT_ID", "")
	cfg.Graph.ClientSecret = getEnv("GRAPH_CLIENT_SECRET", "")
	cfg.Graph.Scope = getEnv("GRAPH_SCOPE", "https://graph.microsoft.com/.default")
	cfg.Graph.PageSize = parseInt(getEnv("GRAPH_PAGE_SIZE", "1000"), 1000)

	// Microsoft Defender for Endpoint
	cfg.Defender.BaseURL = getEnv("DEFENDER_BASE_URL", "https://api.security.microsoft.com")
	cfg.Defender.TenantID = getEnv("DEFENDER_TENANT_ID", cfg.Graph.TenantID)
	cfg.Defender.ClientID = getEnv("DEFENDER_CLIENT_ID", cfg.Graph.ClientID)
	cfg.Defender.ClientSecret = getEnv("DEFENDER_CLIENT_SECRET", cfg.Graph.ClientSecret)
	cfg.Defender.Scope = getEnv("DEFENDER_SCOPE", "https://api.securitycenter.microsoft.com/.default")
	// The machines endpoint supports very large pages
	cfg.Defender.PageSize = parseInt(getEnv("DEFENDER_PAGE_SIZE", "10000"), 10000)

	cfg.Sync.BatchSize = parseInt(getEnv("SYNC_BATCH_SIZE", "100"), 100)
	cfg.Sync.Interval = parseDuration(getEnv("SYNC_INTERVAL", "6h"), 6*time.Hour)
	cfg.Sync.StatsInterval = parseDuration(getEnv("STATS_INTERVAL", "24h"), 24*time.Hour)

	cfg.API.Key = getEnv("API_KEY", "")
	cfg.API.RateLimit = parseInt(getEnv("RATE_LIMIT", "120"), 120)
	cfg.API.RateWindow = parseDuration(getEnv("RATE_WINDOW", "1m"), time.Minute)

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
