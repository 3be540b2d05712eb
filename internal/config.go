package internal

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Server        ServerConfig        `mapstructure:"http_server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Parameters    ParametersConfig    `mapstructure:"parameters"`
	KeyManager    KeyManagerConfig    `mapstructure:"key_manager"`
	Index         IndexConfig         `mapstructure:"index"`
	Dependencies  DependenciesConfig  `mapstructure:"dependencies"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

type ServerConfig struct {
	Env               string        `mapstructure:"env" validate:"omitempty,oneof=development staging production"`
	Port              int           `mapstructure:"port" validate:"min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url"`
	AllowedOrigins    string        `mapstructure:"allowed_origins"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" validate:"min=0"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" validate:"min=0"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Source          string        `mapstructure:"source" validate:"required_if=Driver postgres"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

// ParametersConfig locates the runtime-editable MASK_PATTERN and MAX_AMOUNT entries.
type ParametersConfig struct {
	Source   string        `mapstructure:"source" validate:"required,oneof=redis file"`
	Prefix   string        `mapstructure:"prefix" validate:"required,startswith=/"`
	FilePath string        `mapstructure:"file_path" validate:"required_if=Source file"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"min=0"`
}

type KeyManagerConfig struct {
	KeyID  string              `mapstructure:"key_id" validate:"required"`
	Key    string              `mapstructure:"key" validate:"required,base64"`
	Grants map[string][]string `mapstructure:"grants"`
}

type IndexConfig struct {
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval" validate:"min=0"`
}

type DependenciesConfig struct {
	Timeout time.Duration `mapstructure:"timeout" validate:"min=0"`
}

type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
}

// LoadConfigFromEnv builds the configuration for container deployments where no config file is mounted.
func LoadConfigFromEnv() *Config {
	return &Config{
		Server: ServerConfig{
			Env:               getEnv("APP_ENV", "production"),
			Port:              getEnvAsInt("HTTP_PORT", 8080),
			BaseURL:           getEnv("BASE_URL", ""),
			AllowedOrigins:    getEnv("ALLOWED_ORIGINS", ""),
			ReadHeaderTimeout: getEnvAsDuration("HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
			ReadTimeout:       getEnvAsDuration("HTTP_READ_TIMEOUT", 10*time.Second),
			IdleTimeout:       getEnvAsDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
			WriteTimeout:      getEnvAsDuration("HTTP_WRITE_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Driver:          getEnv("DB_DRIVER", "postgres"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvAsDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
			Source:          getEnv("DB_SOURCE", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Parameters: ParametersConfig{
			Source:   getEnv("PARAMETERS_SOURCE", "redis"),
			Prefix:   getEnv("PARAMETERS_PREFIX", "/secure-payments/prod"),
			FilePath: getEnv("PARAMETERS_FILE_PATH", ""),
			CacheTTL: getEnvAsDuration("PARAMETERS_CACHE_TTL", 15*time.Second),
		},
		KeyManager: KeyManagerConfig{
			KeyID:  getEnv("KEY_MANAGER_KEY_ID", ""),
			Key:    getEnv("KEY_MANAGER_KEY", ""),
			Grants: parseGrants(getEnv("KEY_MANAGER_GRANTS", "")),
		},
		Index: IndexConfig{
			ReconcileInterval: getEnvAsDuration("INDEX_RECONCILE_INTERVAL", time.Minute),
		},
		Dependencies: DependenciesConfig{
			Timeout: getEnvAsDuration("DEPENDENCY_TIMEOUT", 5*time.Second),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "json"),
			},
		},
	}
}

// ----------------- HELPERS -----------------

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}

// parseGrants reads "create=encrypt+decrypt,get=decrypt" into a grants map.
func parseGrants(raw string) map[string][]string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	grants := make(map[string][]string)
	for _, entry := range strings.Split(raw, ",") {
		op, caps, found := strings.Cut(strings.TrimSpace(entry), "=")
		if !found || op == "" {
			continue
		}
		grants[op] = []string{}
		for _, c := range strings.Split(caps, "+") {
			if c = strings.TrimSpace(c); c != "" {
				grants[op] = append(grants[op], c)
			}
		}
	}
	return grants
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s: failed on '%s'", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Parameters.Validate(c.Redis); err != nil {
		errs = append(errs, fmt.Sprintf("parameters config: %v", err))
	}

	if err := c.KeyManager.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("key manager config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *ParametersConfig) Validate(redis RedisConfig) error {
	if c.Source == "redis" && redis.Addr == "" {
		return errors.New("redis.addr is required when parameters.source is redis")
	}
	return nil
}

// MaskPatternName is the fully qualified entry name holding the mask pattern.
func (c *ParametersConfig) MaskPatternName() string {
	return strings.TrimRight(c.Prefix, "/") + "/MASK_PATTERN"
}

// MaxAmountName is the fully qualified entry name holding the max amount.
func (c *ParametersConfig) MaxAmountName() string {
	return strings.TrimRight(c.Prefix, "/") + "/MAX_AMOUNT"
}

func (c *KeyManagerConfig) Validate() error {
	if _, err := c.DecodeKey(); err != nil {
		return err
	}
	for op, caps := range c.Grants {
		for _, capability := range caps {
			if capability != "encrypt" && capability != "decrypt" {
				return fmt.Errorf("grant %q for operation %q must be encrypt or decrypt", capability, op)
			}
		}
	}
	return nil
}

// DecodeKey returns the raw 32-byte key material.
func (c *KeyManagerConfig) DecodeKey() ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(c.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}
	return key, nil
}
