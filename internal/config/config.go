// Package config provides configuration loading for the catalog API server and CLI.
package config

import (
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	cerrors "github.com/bearings-api/catalog/internal/errors"
)

// Config holds the application configuration.
type Config struct {
	// Database configuration
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`

	// Server configuration
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Logging configuration
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// DatabaseConfig holds PostgreSQL pool configuration.
type DatabaseConfig struct {
	// URL is the connection string, taken from DATABASE_URL.
	URL string `mapstructure:"url" yaml:"url" validate:"required"`

	// Driver selects the database/sql driver: "postgres" (lib/pq) or "pgx".
	Driver string `mapstructure:"driver" yaml:"driver" validate:"required,oneof=postgres pgx"`

	// SSLMode is added to URL when it does not name one. "require" encrypts
	// without verifying the server certificate.
	SSLMode string `mapstructure:"sslmode" yaml:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`

	MaxOpenConns    int           `mapstructure:"maxOpenConns" yaml:"maxOpenConns" validate:"min=1"`
	MaxIdleConns    int           `mapstructure:"maxIdleConns" yaml:"maxIdleConns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"connMaxLifetime" yaml:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"connMaxIdleTime" yaml:"connMaxIdleTime"`

	// ConnectTimeout bounds the startup ping and the connectivity check
	// behind /readyz and check.
	ConnectTimeout time.Duration `mapstructure:"connectTimeout" yaml:"connectTimeout"`

	// QueryTimeout bounds every catalog query.
	QueryTimeout time.Duration `mapstructure:"queryTimeout" yaml:"queryTimeout"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port" yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
	WriteTimeout    time.Duration `mapstructure:"writeTimeout" yaml:"writeTimeout"`
	IdleTimeout     time.Duration `mapstructure:"idleTimeout" yaml:"idleTimeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdownTimeout" yaml:"shutdownTimeout"`
	CORSOrigins     []string      `mapstructure:"corsOrigins" yaml:"corsOrigins" validate:"min=1"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"required,oneof=json console"`

	// File, when set, receives logs instead of stdout and is rotated.
	File       string `mapstructure:"file" yaml:"file,omitempty"`
	MaxSizeMB  int    `mapstructure:"maxSizeMB" yaml:"maxSizeMB,omitempty" validate:"min=0"`
	MaxBackups int    `mapstructure:"maxBackups" yaml:"maxBackups,omitempty" validate:"min=0"`
	MaxAgeDays int    `mapstructure:"maxAgeDays" yaml:"maxAgeDays,omitempty" validate:"min=0"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// EffectiveSSLMode returns the sslmode the driver will use: the one named in
// the URL, else SSLMode.
func (d DatabaseConfig) EffectiveSSLMode() string {
	if explicit := sslModeFromDSN(d.URL); explicit != "" {
		return explicit
	}
	return d.SSLMode
}

// VerifiesServerCertificate reports whether TLS to the database checks the
// server certificate. False for "require" and weaker modes.
func (d DatabaseConfig) VerifiesServerCertificate() bool {
	mode := d.EffectiveSSLMode()
	return mode == "verify-ca" || mode == "verify-full"
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			SSLMode:         "require",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
			ConnectTimeout:  5 * time.Second,
			QueryTimeout:    10 * time.Second,
		},
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load loads configuration from an optional YAML file and the environment.
// DATABASE_URL and PORT are read unprefixed; every other key uses the
// CATALOG_ prefix, e.g. CATALOG_DATABASE_QUERYTIMEOUT=5s.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("catalog")
		v.SetConfigType("yaml")
	}

	// Environment variables
	v.SetEnvPrefix("CATALOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("database.url", "DATABASE_URL", "CATALOG_DATABASE_URL"); err != nil {
		return nil, fmt.Errorf("error binding DATABASE_URL: %w", err)
	}
	if err := v.BindEnv("server.port", "PORT", "CATALOG_SERVER_PORT"); err != nil {
		return nil, fmt.Errorf("error binding PORT: %w", err)
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	// Unmarshal
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("database.url", "")
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.sslmode", d.Database.SSLMode)
	v.SetDefault("database.maxOpenConns", d.Database.MaxOpenConns)
	v.SetDefault("database.maxIdleConns", d.Database.MaxIdleConns)
	v.SetDefault("database.connMaxLifetime", d.Database.ConnMaxLifetime)
	v.SetDefault("database.connMaxIdleTime", d.Database.ConnMaxIdleTime)
	v.SetDefault("database.connectTimeout", d.Database.ConnectTimeout)
	v.SetDefault("database.queryTimeout", d.Database.QueryTimeout)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.readTimeout", d.Server.ReadTimeout)
	v.SetDefault("server.writeTimeout", d.Server.WriteTimeout)
	v.SetDefault("server.idleTimeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdownTimeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.corsOrigins", d.Server.CORSOrigins)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.maxSizeMB", d.Logging.MaxSizeMB)
	v.SetDefault("logging.maxBackups", d.Logging.MaxBackups)
	v.SetDefault("logging.maxAgeDays", d.Logging.MaxAgeDays)
}

// Validate checks that the configuration can start a server.
// Returns an *errors.ErrInvalidConfig naming the first offending key.
func (c *Config) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})

	if err := validate.Struct(c); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			field := strings.TrimPrefix(fe.Namespace(), "Config.")
			return cerrors.NewInvalidConfig(field, describeTag(fe))
		}
		return cerrors.NewInvalidConfig("config", err.Error())
	}

	durations := []struct {
		key   string
		value time.Duration
	}{
		{"database.connectTimeout", c.Database.ConnectTimeout},
		{"database.queryTimeout", c.Database.QueryTimeout},
		{"server.shutdownTimeout", c.Server.ShutdownTimeout},
	}
	for _, d := range durations {
		if d.value <= 0 {
			return cerrors.NewInvalidConfig(d.key, "must be a positive duration")
		}
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return cerrors.NewInvalidConfig("database.maxIdleConns", "cannot exceed database.maxOpenConns")
	}

	return nil
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fmt.Sprint(fe.Value()))
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// Redacted returns a copy of the configuration safe to print: the database
// password is masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	out.Database.URL = RedactDSN(c.Database.URL)
	return &out
}

// YAML renders the redacted configuration.
func (c *Config) YAML() ([]byte, error) {
	data, err := yaml.Marshal(c.Redacted())
	if err != nil {
		return nil, fmt.Errorf("error rendering config: %w", err)
	}
	return data, nil
}

var dsnPassword = regexp.MustCompile(`(password=)(?:'[^']*'|\S+)`)

// RedactDSN masks the password in a URL or key=value connection string.
func RedactDSN(dsn string) string {
	if dsn == "" {
		return ""
	}
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" {
		return u.Redacted()
	}
	return dsnPassword.ReplaceAllString(dsn, "${1}xxxxx")
}

var dsnSSLMode = regexp.MustCompile(`(?:^|[\s?&])sslmode=([A-Za-z-]+)`)

func sslModeFromDSN(dsn string) string {
	m := dsnSSLMode.FindStringSubmatch(dsn)
	if m == nil {
		return ""
	}
	return m[1]
}
