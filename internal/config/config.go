package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	GRPCAddr string `mapstructure:"GRPC_ADDR"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	PgHost      string `mapstructure:"PG_HOST"`
	PgPort      string `mapstructure:"PG_PORT"`
	PgUser      string `mapstructure:"PG_USER"`
	PgPassword  string `mapstructure:"PG_PASSWORD"`
	PgName      string `mapstructure:"PG_NAME"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	RefineURL      string        `mapstructure:"AI_REFINE_URL"`
	BaseURL        string        `mapstructure:"AI_BASE_URL"`
	UseMock        bool          `mapstructure:"ASSISTANT_USE_MOCK"`
	RequestTimeout time.Duration `mapstructure:"AI_REQUEST_TIMEOUT"`
	UserRole       string        `mapstructure:"USER_ROLE"`

	LogLevel    string `mapstructure:"LOG_LEVEL"`
	LogPretty   bool   `mapstructure:"LOG_PRETTY"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	v    *viper.Viper
	live *Live
}

// NewConfig reads path (env format) and overlays environment variables.
// A missing file is not an error.
func NewConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{v: v}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.live = &Live{useMock: cfg.UseMock, baseURL: cfg.BaseURL}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_ADDR", ":5641")
	v.SetDefault("GRPC_ADDR", ":5642")
	v.SetDefault("STORE_DRIVER", DriverSQLite)
	v.SetDefault("PG_HOST", "localhost")
	v.SetDefault("PG_PORT", "5432")
	v.SetDefault("PG_USER", "postgres")
	v.SetDefault("PG_PASSWORD", "")
	v.SetDefault("PG_NAME", "nexter")
	v.SetDefault("SQLITE_PATH", "nexter.db")
	v.SetDefault("AI_REFINE_URL", "http://localhost:8000/refine")
	v.SetDefault("AI_BASE_URL", "http://localhost:8000")
	v.SetDefault("ASSISTANT_USE_MOCK", false)
	v.SetDefault("AI_REQUEST_TIMEOUT", 60*time.Second)
	v.SetDefault("USER_ROLE", "student")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", false)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q", c.StoreDriver)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("AI_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout)
	}
	return nil
}

// PostgresDSN builds the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.PgHost, c.PgPort, c.PgUser, c.PgPassword, c.PgName)
}

func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(c.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// Live returns the settings that follow config file changes once Watch is running.
func (c *Config) Live() *Live {
	return c.live
}

// Watch reloads the config file on change and refreshes the Live settings.
// viper is only touched from its watch goroutine after this call.
func (c *Config) Watch(onChange func(name string)) {
	c.v.OnConfigChange(func(e fsnotify.Event) {
		c.live.set(c.v.GetBool("ASSISTANT_USE_MOCK"), c.v.GetString("AI_BASE_URL"))
		if onChange != nil {
			onChange(e.Name)
		}
	})
	c.v.WatchConfig()
}

// Live is a snapshot of the settings that may change while the service runs.
type Live struct {
	mu      sync.RWMutex
	useMock bool
	baseURL string
}

func (l *Live) set(useMock bool, baseURL string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.useMock = useMock
	l.baseURL = baseURL
}

func (l *Live) UseLocalSimulation() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.useMock
}

// ChatEndpoint is the streamed chat URL derived from AI_BASE_URL.
func (l *Live) ChatEndpoint() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return strings.TrimRight(l.baseURL, "/") + "/chat"
}
