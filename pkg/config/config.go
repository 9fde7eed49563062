package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// JWTConfig holds token signing settings.
type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Brokers     []string
	GroupPrefix string
}

// RedisConfig holds cache settings. An empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// Loader wraps a viper instance that resolves keys as PREFIX_KEY first, then KEY.
type Loader struct {
	v      *viper.Viper
	prefix string
}

// Load reads an optional .env file and returns a Loader bound to the environment.
func Load(prefix string) (*Loader, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return &Loader{v: v, prefix: strings.ToUpper(prefix)}, nil
}

func (l *Loader) bind(key string) {
	_ = l.v.BindEnv(key, l.prefix+"_"+key, key)
}

// String returns the value for key, or def when unset.
func (l *Loader) String(key, def string) string {
	l.bind(key)
	l.v.SetDefault(key, def)
	return l.v.GetString(key)
}

// Int returns the integer value for key, or def when unset.
func (l *Loader) Int(key string, def int) int {
	l.bind(key)
	l.v.SetDefault(key, def)
	return l.v.GetInt(key)
}

// Bool returns the boolean value for key, or def when unset.
func (l *Loader) Bool(key string, def bool) bool {
	l.bind(key)
	l.v.SetDefault(key, def)
	return l.v.GetBool(key)
}

// Duration returns the duration value for key (e.g. "15m"), or def when unset.
func (l *Loader) Duration(key string, def time.Duration) time.Duration {
	l.bind(key)
	l.v.SetDefault(key, def)
	return l.v.GetDuration(key)
}

// StringSlice returns a comma separated list for key, or def when unset.
func (l *Loader) StringSlice(key string, def []string) []string {
	raw := l.String(key, strings.Join(def, ","))
	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// AppEnv returns APP_ENV, defaulting to development.
func (l *Loader) AppEnv() string {
	return l.String("APP_ENV", "development")
}

// ServicePort returns the listen address for the HTTP server, e.g. ":8080".
func (l *Loader) ServicePort(key string, def string) string {
	port := l.String(key, def)
	if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}
	return port
}

// Database loads the PostgreSQL settings.
func (l *Loader) Database(defaultName string) DatabaseConfig {
	return DatabaseConfig{
		Host:     l.String("DB_HOST", "localhost"),
		Port:     l.String("DB_PORT", "5432"),
		User:     l.String("DB_USER", "postgres"),
		Password: l.String("DB_PASSWORD", "postgres"),
		DBName:   l.String("DB_NAME", defaultName),
		SSLMode:  l.String("DB_SSLMODE", "disable"),
	}
}

// JWT loads the token settings.
func (l *Loader) JWT() JWTConfig {
	return JWTConfig{
		Secret:          l.String("JWT_SECRET", "change-me-in-production"),
		AccessTokenTTL:  l.Duration("JWT_ACCESS_TTL", 15*time.Minute),
		RefreshTokenTTL: l.Duration("JWT_REFRESH_TTL", 7*24*time.Hour),
	}
}

// Kafka loads the broker settings.
func (l *Loader) Kafka() KafkaConfig {
	return KafkaConfig{
		Brokers:     l.StringSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
		GroupPrefix: l.String("KAFKA_GROUP_PREFIX", ""),
	}
}

// Redis loads the cache settings.
func (l *Loader) Redis() RedisConfig {
	return RedisConfig{
		Addr:     l.String("REDIS_ADDR", ""),
		Password: l.String("REDIS_PASSWORD", ""),
		DB:       l.Int("REDIS_DB", 0),
		TTL:      l.Duration("REDIS_TTL", time.Minute),
	}
}
