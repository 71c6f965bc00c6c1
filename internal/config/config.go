package config

import (
	"fmt"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

type Config struct {
	// HTTP Server
	Port               string
	BaseURL            string
	LogLevel           string
	CORSAllowedOrigins []string
	RateLimitPerMinute int
	CookieSecure       bool
	TrustedProxies     []string

	// Storage
	StorageBackend string
	SQLiteDBPath   string
	MongoURI       string
	MongoDatabase  string

	// Auth
	JWTSecret        string
	TokenTTL         time.Duration
	RegisterPassword string
	UserCacheTTL     time.Duration
	UserCacheSize    int

	// AMQP
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets activity log
	GoogleSpreadsheetID      string
	GoogleActivitySheetName  string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string

	// Demo account
	DemoUserEmail    string
	DemoUserPassword string
	DemoResetOnStart bool
}

func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "3000"),
		BaseURL:            getEnv("BASE_URL", "http://localhost:3000"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		RateLimitPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 120),
		TrustedProxies:     getEnvList("TRUSTED_PROXIES", nil),
		CookieSecure:       getEnvBool("COOKIE_SECURE", false),

		StorageBackend: getEnv("STORAGE_BACKEND", BackendSQLite),
		SQLiteDBPath:   getEnv("SQLITE_DB_PATH", "./data/despesas.db"),
		MongoURI:       getEnv("MONGO_URI", ""),
		MongoDatabase:  getEnv("MONGO_DATABASE", "despesas"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		TokenTTL:         getEnvDuration("TOKEN_TTL", 30*24*time.Hour),
		RegisterPassword: getEnv("REGISTER_PASSWORD", ""),
		UserCacheTTL:     getEnvDuration("USER_CACHE_TTL", 5*time.Minute),
		UserCacheSize:    getEnvInt("USER_CACHE_SIZE", 1000),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "despesas"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_events"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleActivitySheetName:  getEnv("GOOGLE_ACTIVITY_SHEET_NAME", "Atividade"),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),

		DemoUserEmail:    getEnv("DEMO_USER_EMAIL", ""),
		DemoUserPassword: getEnv("DEMO_USER_PASSWORD", ""),
		DemoResetOnStart: getEnvBool("DEMO_RESET_ON_START", false),
	}
}

// DemoEnabled reports whether demo credentials are configured.
func (c *Config) DemoEnabled() bool {
	return c.DemoUserEmail != "" && c.DemoUserPassword != ""
}

// AMQPEnabled reports whether events should be published.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the settings every binary shares and returns an error
// listing every problem found.
func (c *Config) Validate() error {
	return joinProblems(c.commonProblems())
}

// ValidateAPI additionally checks what the HTTP server needs.
func (c *Config) ValidateAPI() error {
	problems := c.commonProblems()

	if port, err := strconv.Atoi(c.Port); err != nil {
		problems = append(problems, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		problems = append(problems, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if len(c.JWTSecret) < 16 {
		problems = append(problems, "JWT_SECRET must be set and at least 16 characters long")
	}
	if c.TokenTTL < time.Minute {
		problems = append(problems, fmt.Sprintf("invalid token TTL %v: must be at least 1 minute", c.TokenTTL))
	}
	if c.RateLimitPerMinute < 1 {
		problems = append(problems, fmt.Sprintf("invalid rate limit %d: must be at least 1 per minute", c.RateLimitPerMinute))
	}
	if c.UserCacheSize < 1 {
		problems = append(problems, fmt.Sprintf("invalid user cache size %d: must be at least 1", c.UserCacheSize))
	}
	for _, origin := range c.CORSAllowedOrigins {
		if origin == "*" {
			problems = append(problems, "CORS_ALLOWED_ORIGINS cannot contain '*' because cookies are sent with credentials")
			continue
		}
		if u, err := url.Parse(origin); err != nil || u.Scheme == "" || u.Host == "" {
			problems = append(problems, fmt.Sprintf("invalid CORS origin '%s'", origin))
		}
	}
	for _, cidr := range c.TrustedProxies {
		if _, err := netip.ParsePrefix(cidr); err != nil {
			problems = append(problems, fmt.Sprintf("invalid trusted proxy CIDR '%s'", cidr))
		}
	}

	return joinProblems(problems)
}

// ValidateWorker additionally checks what the activity-log worker needs.
func (c *Config) ValidateWorker() error {
	problems := c.commonProblems()

	if c.AMQPURL == "" {
		problems = append(problems, "AMQP_URL is required for the worker")
	}
	if c.GoogleSpreadsheetID == "" {
		problems = append(problems, "GOOGLE_SPREADSHEET_ID is required for the worker")
	}
	if c.GoogleActivitySheetName == "" {
		problems = append(problems, "GOOGLE_ACTIVITY_SHEET_NAME cannot be empty")
	}

	hasFile := c.GoogleServiceAccountFile != ""
	hasJSON := c.GoogleServiceAccountJSON != ""
	if !hasFile && !hasJSON {
		problems = append(problems, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			problems = append(problems, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}

	return joinProblems(problems)
}

func (c *Config) commonProblems() []string {
	var problems []string

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		problems = append(problems, fmt.Sprintf("invalid log level '%s': must be one of debug, info, warn, error", c.LogLevel))
	}

	validBackends := []string{BackendSQLite, BackendMongo, BackendMemory}
	if !slices.Contains(validBackends, c.StorageBackend) {
		problems = append(problems, fmt.Sprintf("invalid storage backend '%s': must be one of %v", c.StorageBackend, validBackends))
	}

	switch c.StorageBackend {
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			problems = append(problems, "SQLite database path cannot be empty when using sqlite backend")
		} else if dir := filepath.Dir(c.SQLiteDBPath); dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					problems = append(problems, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	case BackendMongo:
		if c.MongoURI == "" {
			problems = append(problems, "MONGO_URI is required when using mongo backend")
		} else if u, err := url.Parse(c.MongoURI); err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			problems = append(problems, fmt.Sprintf("invalid MongoDB URI '%s': scheme must be 'mongodb' or 'mongodb+srv'", c.MongoURI))
		}
		if c.MongoDatabase == "" {
			problems = append(problems, "MONGO_DATABASE cannot be empty when using mongo backend")
		}
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			problems = append(problems, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			problems = append(problems, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			problems = append(problems, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if (c.DemoUserEmail == "") != (c.DemoUserPassword == "") {
		problems = append(problems, "DEMO_USER_EMAIL and DEMO_USER_PASSWORD must be set together")
	}

	return problems
}

func joinProblems(problems []string) error {
	if len(problems) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(problems, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
