package cfg

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

type Secret struct {
	value []byte
}

func NewSecret(s string) Secret {
	return Secret{value: []byte(s)}
}
func (s Secret) Value() string {
	return string(s.value)
}
func (s Secret) Wipe() {
	for i := range s.value {
		s.value[i] = 0
	}
}
func (s Secret) String() string {
	return "***REDACTED***"
}

type Cfg struct {
	Port           string
	Environment    string
	LogLevel       string
	BaseURL        string
	DatabasePath   string
	DBMaxOpenConns int
	DBMaxIdleConns int
	DBQueryTimeout time.Duration
	RedisURL       string
	RedisTLS       bool
	RedisUsername  string
	RedisPassword  Secret
	RedisTimeout   time.Duration
	SessionTTL     time.Duration
	LRUCacheSize   int
	MaxContentSize int64
	ContextTimeout time.Duration
	AllowedOrigins []string
	TrustedProxies []string
	RateLimit      RateLimitCfg
	MetricsUser    string
	MetricsPass    Secret
	QR             QRCfg
	ExportWidth    int
	HandoffTTL     time.Duration
}

type RateLimitCfg struct {
	RPM               int
	Burst             int
	ConservativeLimit int
}

type QRCfg struct {
	Endpoint  string
	Size      int
	Timeout   time.Duration
	CacheSize int
	Workers   int
}

// LoadEnvFiles applies the first readable dotenv file. Variables already set win.
func LoadEnvFiles(paths ...string) (string, error) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return "", errors.Wrapf(err, "load %s", p)
		}
		return p, nil
	}
	return "", nil
}

func Load() (*Cfg, error) {
	c := &Cfg{}
	c.Port = getEnv("PORT", "8080")
	c.Environment = getEnv("ENVIRONMENT", "development")
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.BaseURL = strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/")
	c.DatabasePath = getEnv("DATABASE_PATH", "crosssync.db")
	c.RedisURL = getEnv("REDIS_URL", "")
	c.RedisTLS = getEnv("REDIS_TLS", "false") == "true"
	c.RedisUsername = getEnv("REDIS_USERNAME", "")
	c.RedisPassword = NewSecret(getEnv("REDIS_PASSWORD", ""))
	var err error
	c.RedisTimeout, err = getDuration("REDIS_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	c.SessionTTL, err = getDuration("SESSION_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	c.HandoffTTL, err = getDuration("HANDOFF_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	c.LRUCacheSize, err = getInt("LRU_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}
	c.MaxContentSize, err = getInt64("MAX_CONTENT_SIZE", 256*1024)
	if err != nil {
		return nil, err
	}
	c.ContextTimeout, err = getDuration("CONTEXT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	c.AllowedOrigins = getSlice("ALLOWED_ORIGINS", []string{})
	c.TrustedProxies = getSlice("TRUSTED_PROXIES", []string{})
	c.RateLimit.RPM, err = getInt("RATE_LIMIT_RPM", 120)
	if err != nil {
		return nil, err
	}
	c.RateLimit.Burst, err = getInt("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, err
	}
	c.RateLimit.ConservativeLimit, err = getInt("RATE_LIMIT_CONSERVATIVE", 30)
	if err != nil {
		return nil, err
	}
	c.MetricsUser = getEnv("METRICS_USER", "")
	c.MetricsPass = NewSecret(getEnv("METRICS_PASS", ""))
	c.DBMaxOpenConns, err = getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}
	c.DBMaxIdleConns, err = getInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}
	c.DBQueryTimeout, err = getDuration("DB_QUERY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	c.QR.Endpoint = getEnv("QR_ENDPOINT", "https://api.qrserver.com/v1/create-qr-code/")
	c.QR.Size, err = getInt("QR_SIZE", 300)
	if err != nil {
		return nil, err
	}
	c.QR.Timeout, err = getDuration("QR_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}
	c.QR.CacheSize, err = getInt("QR_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}
	c.QR.Workers, err = getInt("QR_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	c.ExportWidth, err = getInt("EXPORT_WIDTH", 80)
	if err != nil {
		return nil, err
	}
	return c, nil
}
func Validate(c *Cfg) error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if _, err := strconv.Atoi(c.Port); err != nil {
		return errors.New("PORT must be a number")
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL)
	}
	if c.DatabasePath == "" {
		return errors.New("DATABASE_PATH is required")
	}
	if c.DatabasePath != ":memory:" && !strings.HasPrefix(c.DatabasePath, "file:") {
		workDir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}
		absWorkDir, err := filepath.Abs(workDir)
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}
		absDBPath, err := filepath.Abs(c.DatabasePath)
		if err != nil {
			return fmt.Errorf("invalid DATABASE_PATH: %w", err)
		}
		if !strings.HasPrefix(absDBPath, absWorkDir+string(filepath.Separator)) && absDBPath != absWorkDir {
			return fmt.Errorf("DATABASE_PATH must be within working directory %s", absWorkDir)
		}
	}
	if c.RedisURL != "" {
		if !strings.HasPrefix(c.RedisURL, "redis://") && !strings.HasPrefix(c.RedisURL, "rediss://") {
			return errors.New("REDIS_URL must start with redis:// or rediss://")
		}
		if strings.HasPrefix(c.RedisURL, "rediss://") && !c.RedisTLS {
			return errors.New("REDIS_URL uses rediss:// but REDIS_TLS=false")
		}
	}
	if c.SessionTTL < time.Minute {
		return errors.New("SESSION_TTL must be at least 1 minute")
	}
	if c.HandoffTTL < 10*time.Second {
		return errors.New("HANDOFF_TTL must be at least 10 seconds")
	}
	if c.LRUCacheSize <= 0 {
		return errors.New("LRU_CACHE_SIZE must be positive")
	}
	if c.MaxContentSize <= 0 {
		return errors.New("MAX_CONTENT_SIZE must be positive")
	}
	if c.MaxContentSize > 2*1024*1024 {
		return errors.New("MAX_CONTENT_SIZE cannot exceed 2MB")
	}
	if c.RateLimit.RPM <= 0 {
		return errors.New("RATE_LIMIT_RPM must be positive")
	}
	if c.RateLimit.ConservativeLimit <= 0 {
		return errors.New("RATE_LIMIT_CONSERVATIVE must be positive")
	}
	for _, proxy := range c.TrustedProxies {
		if strings.Contains(proxy, "/") {
			if _, _, err := net.ParseCIDR(proxy); err != nil {
				return fmt.Errorf("invalid CIDR in TRUSTED_PROXIES: %s", proxy)
			}
		} else {
			if net.ParseIP(proxy) == nil {
				return fmt.Errorf("invalid IP in TRUSTED_PROXIES: %s", proxy)
			}
		}
	}
	if c.Environment == "production" {
		if c.MetricsUser == "" || c.MetricsPass.Value() == "" {
			return errors.New("METRICS_USER and METRICS_PASS are required in production")
		}
	}
	q, err := url.Parse(c.QR.Endpoint)
	if err != nil || q.Scheme == "" || q.Host == "" {
		return fmt.Errorf("QR_ENDPOINT must be an absolute URL, got %q", c.QR.Endpoint)
	}
	if c.QR.Size < 64 || c.QR.Size > 1000 {
		return errors.New("QR_SIZE must be between 64 and 1000")
	}
	if c.QR.CacheSize <= 0 {
		return errors.New("QR_CACHE_SIZE must be positive")
	}
	if c.QR.Workers <= 0 {
		return errors.New("QR_WORKERS must be positive")
	}
	if c.ExportWidth < 20 || c.ExportWidth > 200 {
		return errors.New("EXPORT_WIDTH must be between 20 and 200")
	}
	return nil
}
func (c *Cfg) Wipe() {
	c.RedisPassword.Wipe()
	c.MetricsPass.Wipe()
}
func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
func getInt(key string, fallback int) (int, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}
func getInt64(key string, fallback int64) (int64, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %w", key, err)
	}
	return v, nil
}
func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := getEnv(key, "")
	if s == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %w", key, err)
	}
	return v, nil
}
func getSlice(key string, fallback []string) []string {
	s := getEnv(key, "")
	if s == "" {
		return fallback
	}
	parts := strings.Split(s, ",")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
