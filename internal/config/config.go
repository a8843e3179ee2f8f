package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Server    ServerConfig    `json:"server"`
	Store     StoreConfig     `json:"store"`
	Mongo     MongoConfig     `json:"mongo"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Stream    StreamConfig    `json:"stream"`
	Tasks     TasksConfig     `json:"tasks"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	CORS      CORSConfig      `json:"cors"`
	Log       LogConfig       `json:"log"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	Environment     string        `json:"environment"`
}

type StoreConfig struct {
	Driver string `json:"driver"`
}

type MongoConfig struct {
	URI            string        `json:"-"`
	Username       string        `json:"username"`
	Password       string        `json:"-"`
	Host           string        `json:"host"`
	Database       string        `json:"database"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
	MaxPoolSize    uint64        `json:"max_pool_size"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            string        `json:"port"`
	User            string        `json:"user"`
	Password        string        `json:"-"`
	Name            string        `json:"name"`
	SSLMode         string        `json:"ssl_mode"`
	SQLitePath      string        `json:"sqlite_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type RedisConfig struct {
	Enabled      bool          `json:"enabled"`
	Host         string        `json:"host"`
	Port         string        `json:"port"`
	Password     string        `json:"-"`
	DB           int           `json:"db"`
	PoolSize     int           `json:"pool_size"`
	MinIdleConns int           `json:"min_idle_conns"`
	MaxRetries   int           `json:"max_retries"`
	DialTimeout  time.Duration `json:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	CacheTTL     time.Duration `json:"cache_ttl"`
}

type StreamConfig struct {
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
	BufferSize        int           `json:"buffer_size"`
	Channel           string        `json:"channel"`
}

type TasksConfig struct {
	WritebackConcurrency int `json:"writeback_concurrency"`
}

type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	RequestsPerMin  int           `json:"requests_per_minute"`
	BurstSize       int           `json:"burst_size"`
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

type CORSConfig struct {
	AllowOrigins []string `json:"allow_origins"`
}

type LogConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// LoadConfig reads a .env file when present, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("HOST", ""),
			Port:            getEnv("PORT", "5000"),
			ReadTimeout:     getEnvAsDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("WRITE_TIMEOUT", 0),
			IdleTimeout:     getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
			Environment:     getEnv("ENVIRONMENT", "development"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(getEnv("STORE_DRIVER", StoreMongo)),
		},
		Mongo: MongoConfig{
			URI:            getEnv("MONGODB_URI", ""),
			Username:       getEnv("DB_USERNAME", ""),
			Password:       getEnv("DB_PASSWORD", ""),
			Host:           getEnv("MONGODB_HOST", "cluster0.mongodb.net"),
			Database:       getEnv("MONGODB_DATABASE", "TaskManagement"),
			ConnectTimeout: getEnvAsDuration("MONGODB_CONNECT_TIMEOUT", 10*time.Second),
			MaxPoolSize:    uint64(getEnvAsInt("MONGODB_MAX_POOL_SIZE", 100)),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			Name:            getEnv("DB_NAME", "task_manager"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			SQLitePath:      getEnv("SQLITE_PATH", "task_manager.db"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:      getEnvAsBool("REDIS_ENABLED", false),
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnv("REDIS_PORT", "6379"),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 5),
			MaxRetries:   getEnvAsInt("REDIS_MAX_RETRIES", 3),
			DialTimeout:  getEnvAsDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getEnvAsDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getEnvAsDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     getEnvAsDuration("REDIS_CACHE_TTL", 10*time.Minute),
		},
		Stream: StreamConfig{
			HeartbeatInterval: getEnvAsDuration("STREAM_HEARTBEAT_INTERVAL", 30*time.Second),
			BufferSize:        getEnvAsInt("STREAM_BUFFER_SIZE", 64),
			Channel:           getEnv("STREAM_CHANNEL", "task-updates"),
		},
		Tasks: TasksConfig{
			WritebackConcurrency: getEnvAsInt("TASKS_WRITEBACK_CONCURRENCY", 8),
		},
		RateLimit: RateLimitConfig{
			Enabled:         getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin:  getEnvAsInt("RATE_LIMIT_RPM", 100),
			BurstSize:       getEnvAsInt("RATE_LIMIT_BURST", 10),
			CleanupInterval: getEnvAsDuration("RATE_LIMIT_CLEANUP", 10*time.Minute),
		},
		CORS: CORSConfig{
			AllowOrigins: getEnvAsList("CORS_ALLOW_ORIGINS", []string{"*"}),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Store.Driver {
	case StoreMongo:
		if c.Mongo.URI == "" && c.Mongo.Username == "" && c.IsProduction() {
			return fmt.Errorf("MONGODB_URI or DB_USERNAME/DB_PASSWORD is required in production")
		}
	case StorePostgres, StoreSQLite:
		// The SQL stores announce task changes over Redis pub/sub.
		if !c.Redis.Enabled {
			return fmt.Errorf("STORE_DRIVER=%s requires REDIS_ENABLED=true", c.Store.Driver)
		}
		if c.Store.Driver == StorePostgres && c.Database.Password == "" && c.IsProduction() {
			return fmt.Errorf("database password is required in production")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.Store.Driver)
	}

	if c.Stream.HeartbeatInterval <= 0 {
		return fmt.Errorf("STREAM_HEARTBEAT_INTERVAL must be positive")
	}
	if c.Stream.BufferSize <= 0 {
		return fmt.Errorf("STREAM_BUFFER_SIZE must be positive")
	}
	if c.Tasks.WritebackConcurrency <= 0 {
		return fmt.Errorf("TASKS_WRITEBACK_CONCURRENCY must be positive")
	}
	return nil
}

// GetMongoURI prefers MONGODB_URI and otherwise assembles an Atlas SRV URI
// from the credentials.
func (c *Config) GetMongoURI() string {
	if c.Mongo.URI != "" {
		return c.Mongo.URI
	}
	if c.Mongo.Username == "" {
		return "mongodb://localhost:27017"
	}
	return fmt.Sprintf("mongodb+srv://%s:%s@%s/?retryWrites=true&w=majority",
		url.QueryEscape(c.Mongo.Username),
		url.QueryEscape(c.Mongo.Password),
		c.Mongo.Host,
	)
}

func (c *Config) GetDatabaseDSN() string {
	if c.Store.Driver == StoreSQLite {
		return c.Database.SQLitePath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

func (c *Config) GetRedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

func (c *Config) GetServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

func (c *Config) IsProduction() bool {
	return c.Server.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
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
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
