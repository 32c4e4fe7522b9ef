package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Core holds all configuration for the core server.
type Core struct {
	LogLevel string `yaml:"log_level" env:"ASCENSION_LOG_LEVEL"`

	// Directory with the balance tables. Empty uses the embedded defaults.
	TablesDir string `yaml:"tables_dir" env:"ASCENSION_TABLES_DIR"`

	// Session
	ReconcileInterval time.Duration `yaml:"reconcile_interval" env:"ASCENSION_RECONCILE_INTERVAL"`
	AutoBreakthrough  bool          `yaml:"auto_breakthrough" env:"ASCENSION_AUTO_BREAKTHROUGH"`

	Observer  ObserverConfig  `yaml:"observer" envPrefix:"ASCENSION_OBSERVER_"`
	Database  DatabaseConfig  `yaml:"database" envPrefix:"ASCENSION_DB_"`
	Telemetry TelemetryConfig `yaml:"telemetry" envPrefix:"ASCENSION_OTEL_"`
}

// MinCommandTokenLen is the shortest accepted command token.
const MinCommandTokenLen = 16

// ObserverConfig configures the websocket state stream.
type ObserverConfig struct {
	BindAddress   string        `yaml:"bind_address" env:"BIND_ADDRESS"`
	Port          int           `yaml:"port" env:"PORT"`
	Path          string        `yaml:"path" env:"PATH"`
	SendQueueSize int           `yaml:"send_queue_size" env:"SEND_QUEUE_SIZE"`
	WriteTimeout  time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ReadLimit     int64         `yaml:"read_limit" env:"READ_LIMIT"`
	// CommandToken lets the host send commands over the stream as a bearer
	// token. Empty keeps the stream export-only.
	CommandToken string `yaml:"command_token" env:"COMMAND_TOKEN"`
}

// Addr returns the listen address.
func (o ObserverConfig) Addr() string {
	return fmt.Sprintf("%s:%d", o.BindAddress, o.Port)
}

// DatabaseConfig holds PostgreSQL connection parameters.
// Progress is kept in memory only when Enabled is false.
type DatabaseConfig struct {
	Enabled  bool   `yaml:"enabled" env:"ENABLED"`
	Host     string `yaml:"host" env:"HOST"`
	Port     int    `yaml:"port" env:"PORT"`
	User     string `yaml:"user" env:"USER"`
	Password string `yaml:"password" env:"PASSWORD"`
	DBName   string `yaml:"dbname" env:"NAME"`
	SSLMode  string `yaml:"sslmode" env:"SSLMODE"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

// TelemetryConfig enables OTLP trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint" env:"ENDPOINT"`
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
}

// DefaultCore returns Core config with sensible defaults.
func DefaultCore() Core {
	return Core{
		LogLevel:          "info",
		ReconcileInterval: time.Second,
		Observer: ObserverConfig{
			BindAddress:   "127.0.0.1",
			Port:          8090,
			Path:          "/observe",
			SendQueueSize: 64,
			WriteTimeout:  5 * time.Second,
			ReadLimit:     4096,
		},
		Database: DatabaseConfig{
			Host:     "127.0.0.1",
			Port:     5432,
			User:     "ascension",
			Password: "ascension",
			DBName:   "ascension",
			SSLMode:  "disable",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "ascension-core",
		},
	}
}

// LoadCore loads core config from a YAML file, then applies environment
// overrides. If the file doesn't exist, the defaults are used.
func LoadCore(path string) (Core, error) {
	cfg := DefaultCore()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseEnv loads configuration from environment variables.
// Fields without a matching variable keep their current value.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Validate reports settings the server cannot run with.
func (c Core) Validate() error {
	var errs []error
	if c.ReconcileInterval <= 0 {
		errs = append(errs, errors.New("reconcile_interval must be positive"))
	}
	if c.Observer.Port <= 0 || c.Observer.Port > 65535 {
		errs = append(errs, fmt.Errorf("observer port %d out of range", c.Observer.Port))
	}
	if c.Observer.Path == "" || c.Observer.Path[0] != '/' {
		errs = append(errs, fmt.Errorf("observer path %q must start with /", c.Observer.Path))
	}
	if t := c.Observer.CommandToken; t != "" && len(t) < MinCommandTokenLen {
		errs = append(errs, fmt.Errorf("observer command_token must be at least %d characters", MinCommandTokenLen))
	}
	if c.Observer.SendQueueSize <= 0 {
		errs = append(errs, errors.New("observer send_queue_size must be positive"))
	}
	return errors.Join(errs...)
}
