package config // package config loads application configuration from environment variables

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  Required variables are DB_USER, DB_HOST,
// DB_PORT, DB_NAME and JWT_SECRET; everything else has a default.
type Config struct {
	Env        string // application environment (e.g. "development", "production")
	Port       string // HTTP port to listen on
	DBUser     string // database username
	DBPass     string // database password (optional)
	DBHost     string // database host address
	DBPort     string // database port number
	DBName     string // database name
	JWTSecret  string // secret used to sign JWTs
	JWTTTL     time.Duration
	BcryptCost int           // bcrypt cost for password hashing
	TxTimeout  time.Duration // budget for one booking or release request

	Credentials Credentials // allow-listed usernames and their default passwords

	AMQPURL              string // RabbitMQ URL; empty disables event publishing
	AuditConsumerEnabled bool
	AuditLogPath         string

	LogLevel    string
	CORSOrigins []string
}

// Load reads configuration values from environment variables.  Every
// missing required variable is reported in a single error.
func Load() (Config, error) {
	var missing []string
	req := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		DBUser:    req("DB_USER"),
		DBHost:    req("DB_HOST"),
		DBPort:    req("DB_PORT"),
		DBName:    req("DB_NAME"),
		JWTSecret: req("JWT_SECRET"),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	creds, err := ParseCredentials(os.Getenv("USER_CREDENTIALS"))
	if err != nil {
		return Config{}, err
	}

	cfg.Env = envStr("APP_ENV", "development")
	cfg.Port = envStr("PORT", envStr("APP_PORT", "5000"))
	cfg.DBPass = os.Getenv("DB_PASS")
	cfg.JWTTTL = envDur("JWT_TTL", 7*24*time.Hour)
	cfg.BcryptCost = envInt("BCRYPT_COST", 10)
	cfg.TxTimeout = envDur("BOOKING_TX_TIMEOUT", 5*time.Second)
	cfg.Credentials = creds
	cfg.AMQPURL = os.Getenv("AMQP_URL")
	cfg.AuditConsumerEnabled = envBool("AUDIT_CONSUMER_ENABLED", false)
	cfg.AuditLogPath = envStr("AUDIT_LOG_PATH", "logs/seat-audit.log")
	cfg.LogLevel = envStr("LOG_LEVEL", "info")
	cfg.CORSOrigins = splitList(envStr("CORS_ORIGINS", "*"))
	return cfg, nil
}

// Credentials maps each allow-listed username (case-sensitive) to its
// default password.
type Credentials map[string]string

// ParseCredentials decodes a JSON object such as {"alice":"pw1"}.  An
// empty string yields an empty allow-list.
func ParseCredentials(raw string) (Credentials, error) {
	c := Credentials{}
	if strings.TrimSpace(raw) == "" {
		return c, nil
	}
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("parse USER_CREDENTIALS: %w", err)
	}
	return c, nil
}

// DefaultPassword reports the default password for username.  Lookup is
// exact; "Alice" and "alice" are different entries.
func (c Credentials) DefaultPassword(username string) (string, bool) {
	pw, ok := c[username]
	if !ok || pw == "" {
		return "", false
	}
	return pw, true
}

// Usernames lists the allow-listed names in sorted order.
func (c Credentials) Usernames() []string {
	out := make([]string, 0, len(c))
	for name := range c {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	switch v {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
