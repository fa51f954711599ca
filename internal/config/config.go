package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Keystone
	KeystoneURL       string        // identity API base, ex: "http://keystone:5000/v3"
	KeystoneUserID    string        // user id used for password auth
	KeystonePassword  string        // password of KeystoneUserID
	KeystoneProjectID string        // project the token is scoped to
	KeystoneTimeout   time.Duration // per request HTTP timeout (ex: 10s)
	TokenCacheKey     string        // cache key of the token (ex: "charge:keystone:token")

	// Endpoint registration
	CatalogFile       string        // path to the YAML file describing the service and its endpoints
	ReconcileInterval time.Duration // interval between reconciliations (0 = only at startup and on demand)

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedCIDRS []string // optional, restrict admin routes to specific IPs
	TrustProxy   bool     // true => trust X-Forwarded-For headers
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("CHARGE_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("CHARGE_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("CHARGE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("CHARGE_PRETTY_LOG", true),

		// Keystone
		KeystoneURL:       strings.TrimSuffix(requireEnv("CHARGE_KEYSTONE_URL"), "/"),
		KeystoneUserID:    requireEnv("CHARGE_KEYSTONE_USER_ID"),
		KeystonePassword:  requireEnv("CHARGE_KEYSTONE_PASSWORD"),
		KeystoneProjectID: requireEnv("CHARGE_KEYSTONE_PROJECT_ID"),
		KeystoneTimeout:   mustDuration("CHARGE_KEYSTONE_TIMEOUT", 10*time.Second),
		TokenCacheKey:     getenv("CHARGE_TOKEN_CACHE_KEY", "charge:keystone:token"),

		// Endpoint registration
		CatalogFile:       requireEnv("CHARGE_CATALOG_FILE"),
		ReconcileInterval: mustDuration("CHARGE_RECONCILE_INTERVAL", time.Hour),

		// Redis settings
		RedisAddr:             requireEnv("CHARGE_REDIS_ADDR"),
		RedisUser:             getenv("CHARGE_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("CHARGE_REDIS_PASSWORD_REQUIRED", true),
		RedisPassword:         getenv("CHARGE_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("CHARGE_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedCIDRS: parseAllowedIPs(getenv("CHARGE_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("CHARGE_TRUST_PROXY", true),
	}

	// Validate Redis password configuration
	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: CHARGE_REDIS_PASSWORD is required when CHARGE_REDIS_PASSWORD_REQUIRED=true")
	}

	if cfg.ReconcileInterval < 0 {
		panic(fmt.Sprintf("❌ FATAL: CHARGE_RECONCILE_INTERVAL must be >= 0, got %s", cfg.ReconcileInterval))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	c.KeystonePassword = "***REDACTED***"
	c.RedisPassword = "***REDACTED***"
	if c.RedisUser != "" {
		c.RedisUser = "***REDACTED***"
	}
	return c
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
