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
	ListenPort      string        // ex: "127.0.0.1:7788"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Analysis backend
	BackendURL     string        // base URL of the crawl / RAG backend (ex: http://localhost:7777)
	RequestTimeout time.Duration // per-call timeout, resolves to a Timeout transport error
	UserID         string        // user id sent with query and history calls
	MinPagesToChat int           // visited pages required before chatting with an unfinished crawl

	// Background jobs
	ReloadInterval    time.Duration // interval to refresh the site list from the backend
	CrawlPollInterval time.Duration // interval to poll crawls requested by this process
	CrawlStaleAfter   time.Duration // stop polling a crawl whose page count has not grown for this long
	WatchlistFile     string        // path to the watch-list yaml (optional, empty = disabled)

	// Redis (optional, empty address = snapshot cache disabled)
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
	SnapshotTTL           time.Duration // lifetime of cached site / history snapshots

	// Access restrictions
	AllowedHosts   []string // optional, restrict access to specific Host headers
	AllowedCIDRS   []string // optional, restrict access to specific IP (e.g. "127.0.0.1/32, 10.0.0.0/8")
	TrustProxy     bool     // true => trust X-Forwarded-For headers
	AllowedOrigins []string // CORS origins; "*" allows extension pages and injected widgets
	RateBurst      int      // per-IP burst on query / crawl routes
	RatePerMin     int      // per-IP sustained rate on query / crawl routes
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("ASKSITE_LISTEN_PORT", "127.0.0.1:7788"),
		ShutdownTimeout: mustDuration("ASKSITE_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("ASKSITE_LOG_LEVEL", "info"),
		PrettyLog: mustBool("ASKSITE_PRETTY_LOG", true),

		// Backend
		BackendURL:     strings.TrimRight(getenv("ASKSITE_BACKEND_URL", "http://localhost:7777"), "/"),
		RequestTimeout: mustDuration("ASKSITE_REQUEST_TIMEOUT", 60*time.Second),
		UserID:         getenv("ASKSITE_USER_ID", "test1"),
		MinPagesToChat: getenvInt("ASKSITE_MIN_PAGES_TO_CHAT", 10),

		// Background jobs
		ReloadInterval:    mustDuration("ASKSITE_RELOAD_INTERVAL", 5*time.Minute),
		CrawlPollInterval: mustDuration("ASKSITE_CRAWL_POLL_INTERVAL", 15*time.Second),
		CrawlStaleAfter:   mustDuration("ASKSITE_CRAWL_STALE_AFTER", 2*time.Hour),
		WatchlistFile:     getenv("ASKSITE_WATCHLIST_FILE", ""), // Optional, empty = watch-list disabled

		// Redis settings
		RedisAddr:             getenv("ASKSITE_REDIS_ADDR", ""), // Optional, empty = cache disabled
		RedisUser:             getenv("ASKSITE_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("ASKSITE_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("ASKSITE_REDIS_PASSWORD", ""),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),
		SnapshotTTL:           mustDuration("ASKSITE_SNAPSHOT_TTL", 7*24*time.Hour),

		// Access restrictions
		AllowedHosts:   splitAndTrim(getenv("ASKSITE_ALLOWED_HOSTS", "")),
		AllowedCIDRS:   parseAllowedIPs(getenv("ASKSITE_ALLOWED_CIDRS", "")),
		TrustProxy:     mustBool("ASKSITE_TRUST_PROXY", false),
		AllowedOrigins: splitAndTrim(getenv("ASKSITE_ALLOWED_ORIGINS", "*")),
		RateBurst:      getenvInt("ASKSITE_RATE_BURST", 10),
		RatePerMin:     getenvInt("ASKSITE_RATE_PER_MIN", 60),
	}

	// The DB number must be explicit once the cache is turned on
	if cfg.RedisEnabled() {
		cfg.RedisDB = requireEnvInt("ASKSITE_REDIS_DB")
		if cfg.RedisPasswordRequired {
			cfg.RedisPassword = requireEnv("ASKSITE_REDIS_PASSWORD")
		}
	}

	if !strings.HasPrefix(cfg.BackendURL, "http://") && !strings.HasPrefix(cfg.BackendURL, "https://") {
		panic(fmt.Sprintf("❌ FATAL: ASKSITE_BACKEND_URL must be an http(s) URL, got %q", cfg.BackendURL))
	}

	// Zero would disable the gateway timeout or panic in time.NewTicker
	for name, d := range map[string]time.Duration{
		"ASKSITE_SHUTDOWN_TIMEOUT":    cfg.ShutdownTimeout,
		"ASKSITE_REQUEST_TIMEOUT":     cfg.RequestTimeout,
		"ASKSITE_RELOAD_INTERVAL":     cfg.ReloadInterval,
		"ASKSITE_CRAWL_POLL_INTERVAL": cfg.CrawlPollInterval,
		"ASKSITE_CRAWL_STALE_AFTER":   cfg.CrawlStaleAfter,
	} {
		if d <= 0 {
			panic(fmt.Sprintf("❌ FATAL: %s must be > 0, got %v", name, d))
		}
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// RedisEnabled reports whether the snapshot cache is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
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

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
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
