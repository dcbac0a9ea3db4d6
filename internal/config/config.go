package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultMaxUploadBytes is the largest accepted upload (10 MiB).
	DefaultMaxUploadBytes = 10 * 1024 * 1024
	// DefaultAllowedContentType is the only content type the blob store accepts.
	DefaultAllowedContentType = "application/pdf"
)

// DatabaseConfig holds catalog database connection settings.
// Driver selects the backend: "postgres" (default) or "sqlite".
type DatabaseConfig struct {
	Driver             string `yaml:"driver"`
	Host               string `yaml:"host"`
	Port               string `yaml:"port"`
	User               string `yaml:"user"`
	Password           string `yaml:"password"`
	Name               string `yaml:"name"`
	SSLMode            string `yaml:"sslmode"`
	SQLitePath         string `yaml:"sqlite_path"`
	MaxOpenConns       int    `yaml:"max_open_conns"`
	MaxIdleConns       int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeSec int    `yaml:"conn_max_lifetime_sec"`
}

// StorageConfig holds blob store settings.
// Backend selects where file bytes live: "local" (default) or "minio".
type StorageConfig struct {
	Backend            string `yaml:"backend"`
	Dir                string `yaml:"dir"`
	MaxUploadBytes     int64  `yaml:"max_upload_bytes"`
	AllowedContentType string `yaml:"allowed_content_type"`
}

// MinIOConfig holds object storage settings for MinIO.
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// PrunerConfig controls the orphaned blob collector.
type PrunerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	GracePeriod time.Duration `yaml:"grace_period"`
	MinInterval time.Duration `yaml:"min_interval"`
	MaxInterval time.Duration `yaml:"max_interval"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level    string `yaml:"level"`
	Timezone string `yaml:"timezone"`
}

// AppConfig is the centralized configuration struct for the application.
// It is populated from an optional YAML file (CONFIG_FILE) and then from
// environment variables, which take precedence. Sensitive values are not hardcoded.
type AppConfig struct {
	AppHost        string         `yaml:"app_host"`
	Port           string         `yaml:"port"`
	CORSOrigins    string         `yaml:"cors_origins"`
	BodyLimitBytes int            `yaml:"body_limit_bytes"`
	Database       DatabaseConfig `yaml:"database"`
	Storage        StorageConfig  `yaml:"storage"`
	MinIO          MinIOConfig    `yaml:"minio"`
	Pruner         PrunerConfig   `yaml:"pruner"`
	Log            LogConfig      `yaml:"log"`
}

// Load reads configuration from environment variables.
// A .env file can be auto-loaded by importing: _ "github.com/joho/godotenv/autoload"
// If CONFIG_FILE points to a YAML file its values become the defaults.
func Load() (*AppConfig, error) {
	base := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, base); err != nil {
			return nil, err
		}
	}
	return fromEnv(base), nil
}

func defaults() *AppConfig {
	return &AppConfig{
		AppHost:        "localhost:3000",
		Port:           "3000",
		CORSOrigins:    "*",
		BodyLimitBytes: 32 * 1024 * 1024,
		Database: DatabaseConfig{
			Driver:             "postgres",
			Port:               "5432",
			SSLMode:            "disable",
			SQLitePath:         "./data/docvault.db",
			MaxOpenConns:       10,
			MaxIdleConns:       5,
			ConnMaxLifetimeSec: 300,
		},
		Storage: StorageConfig{
			Backend:            "local",
			Dir:                "./uploads",
			MaxUploadBytes:     DefaultMaxUploadBytes,
			AllowedContentType: DefaultAllowedContentType,
		},
		Pruner: PrunerConfig{
			GracePeriod: time.Hour,
			MinInterval: time.Minute,
			MaxInterval: 30 * time.Minute,
		},
		Log: LogConfig{
			Level:    "info",
			Timezone: "UTC",
		},
	}
}

func loadFile(path string, into *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(into); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

func fromEnv(d *AppConfig) *AppConfig {
	return &AppConfig{
		AppHost:        getEnv("APP_HOST", d.AppHost),
		Port:           getEnv("PORT", d.Port),
		CORSOrigins:    getEnv("CORS_ORIGINS", d.CORSOrigins),
		BodyLimitBytes: getEnvInt("HTTP_BODY_LIMIT_BYTES", d.BodyLimitBytes),
		Database: DatabaseConfig{
			Driver:             strings.ToLower(getEnv("DB_DRIVER", d.Database.Driver)),
			Host:               getEnv("DB_HOST", d.Database.Host),
			Port:               getEnv("DB_PORT", d.Database.Port),
			User:               getEnv("DB_USER", d.Database.User),
			Password:           getEnv("DB_PASSWORD", d.Database.Password),
			Name:               getEnv("DB_NAME", d.Database.Name),
			SSLMode:            getEnv("DB_SSLMODE", d.Database.SSLMode),
			SQLitePath:         getEnv("DB_SQLITE_PATH", d.Database.SQLitePath),
			MaxOpenConns:       getEnvInt("DB_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns:       getEnvInt("DB_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
			ConnMaxLifetimeSec: getEnvInt("DB_CONN_MAX_LIFETIME_SEC", d.Database.ConnMaxLifetimeSec),
		},
		Storage: StorageConfig{
			Backend:            strings.ToLower(getEnv("STORAGE_BACKEND", d.Storage.Backend)),
			Dir:                getEnv("STORAGE_DIR", d.Storage.Dir),
			MaxUploadBytes:     getEnvInt64("STORAGE_MAX_UPLOAD_BYTES", d.Storage.MaxUploadBytes),
			AllowedContentType: getEnv("STORAGE_ALLOWED_CONTENT_TYPE", d.Storage.AllowedContentType),
		},
		MinIO: MinIOConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", d.MinIO.Endpoint),
			AccessKey: getEnv("MINIO_ACCESS_KEY", d.MinIO.AccessKey),
			SecretKey: getEnv("MINIO_SECRET_KEY", d.MinIO.SecretKey),
			Bucket:    getEnv("MINIO_BUCKET", d.MinIO.Bucket),
			UseSSL:    getEnvBool("MINIO_USE_SSL", d.MinIO.UseSSL),
		},
		Pruner: PrunerConfig{
			Enabled:     getEnvBool("PRUNER_ENABLED", d.Pruner.Enabled),
			GracePeriod: getEnvDuration("PRUNER_GRACE_PERIOD", d.Pruner.GracePeriod),
			MinInterval: getEnvDuration("PRUNER_MIN_INTERVAL", d.Pruner.MinInterval),
			MaxInterval: getEnvDuration("PRUNER_MAX_INTERVAL", d.Pruner.MaxInterval),
		},
		Log: LogConfig{
			Level:    getEnv("LOG_LEVEL", d.Log.Level),
			Timezone: getEnv("TZ", d.Log.Timezone),
		},
	}
}

// Validate reports settings that are missing for the selected backends.
func (c *AppConfig) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
			errs = append(errs, errors.New("postgres requires DB_HOST, DB_USER and DB_NAME"))
		}
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("sqlite requires DB_SQLITE_PATH"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.Database.Driver))
	}

	switch c.Storage.Backend {
	case "local":
		if c.Storage.Dir == "" {
			errs = append(errs, errors.New("local storage requires STORAGE_DIR"))
		}
	case "minio":
		if c.MinIO.Endpoint == "" || c.MinIO.Bucket == "" {
			errs = append(errs, errors.New("minio storage requires MINIO_ENDPOINT and MINIO_BUCKET"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_BACKEND %q", c.Storage.Backend))
	}

	if c.Storage.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("STORAGE_MAX_UPLOAD_BYTES must be positive"))
	} else if int64(c.BodyLimitBytes) <= c.Storage.MaxUploadBytes {
		// multipart framing needs room above the file itself
		errs = append(errs, errors.New("HTTP_BODY_LIMIT_BYTES must exceed STORAGE_MAX_UPLOAD_BYTES"))
	}
	if c.Pruner.Enabled && c.Pruner.MinInterval > c.Pruner.MaxInterval {
		errs = append(errs, errors.New("PRUNER_MIN_INTERVAL must not exceed PRUNER_MAX_INTERVAL"))
	}
	return errors.Join(errs...)
}

// Location returns the configured log timezone, falling back to UTC.
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Log.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.ParseInt(v, 10, 64)
		if err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}
