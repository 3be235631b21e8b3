// Package config loads runtime configuration. Sources are layered, later ones
// winning: built-in defaults, an optional YAML file, an optional .env file,
// then the process environment (SYMPTOBUDDY_* variables).
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers accepted by Storage.Driver.
const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverBlob     = "blob"
)

// Config is the full runtime configuration.
type Config struct {
	Storage    Storage    `yaml:"storage"`
	Prediction Prediction `yaml:"prediction"`
	Log        Log        `yaml:"log"`
	Metrics    Metrics    `yaml:"metrics"`
}

// Storage selects and configures the durable store backend.
type Storage struct {
	Driver   string   `yaml:"driver" validate:"required,oneof=memory badger sqlite postgres blob"`
	Badger   Badger   `yaml:"badger"`
	SQLite   SQLite   `yaml:"sqlite"`
	Postgres Postgres `yaml:"postgres"`
	Blob     Blob     `yaml:"blob"`
}

// Badger configures the embedded BadgerDB store.
type Badger struct {
	Path           string        `yaml:"path"`
	InMemory       bool          `yaml:"in_memory"`
	SyncWrites     bool          `yaml:"sync_writes"`
	GCInterval     time.Duration `yaml:"gc_interval" validate:"gte=0"`
	GCDiscardRatio float64       `yaml:"gc_discard_ratio" validate:"gte=0,lt=1"`
}

// SQLite configures the SQLite store.
type SQLite struct {
	Path string `yaml:"path"`
}

// Postgres configures the Postgres store.
type Postgres struct {
	DSN string `yaml:"dsn"`
}

// Blob configures the object-store backed durable store.
type Blob struct {
	Driver string `yaml:"driver" validate:"omitempty,oneof=fs s3 memory"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// S3 configures an S3 or MinIO bucket. Credentials come from the AWS chain.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// Prediction configures the prediction backend client.
type Prediction struct {
	BaseURL string        `yaml:"base_url" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

// Log configures the process logger.
type Log struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=text json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

// Metrics selects the store metrics exporter.
type Metrics struct {
	Exporter  string `yaml:"exporter" validate:"oneof=none expvar prometheus"`
	TraceFile string `yaml:"trace_file"`
}

// Default returns the configuration used when no source overrides a field.
func Default() Config {
	return Config{
		Storage: Storage{
			Driver: DriverBadger,
			Badger: Badger{
				Path:           "symptobuddy-data",
				SyncWrites:     true,
				GCInterval:     5 * time.Minute,
				GCDiscardRatio: 0.5,
			},
			SQLite: SQLite{Path: "symptobuddy.db"},
			Blob:   Blob{Driver: "fs", FSRoot: "symptobuddy-blobs"},
		},
		Prediction: Prediction{BaseURL: "http://localhost:8000", Timeout: 10 * time.Second},
		Log:        Log{Level: "info", Format: "text", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28},
		Metrics:    Metrics{Exporter: "none"},
	}
}

// Sources names the optional files read by Load.
type Sources struct {
	// File is a YAML config file. Empty falls back to $SYMPTOBUDDY_CONFIG.
	File string
	// EnvFile is a dotenv file. A missing file is ignored.
	EnvFile string
	// LookupEnv reads the process environment; nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load layers the configured sources over Default and validates the result.
func Load(src Sources) (Config, error) {
	cfg := Default()
	lookup := src.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	file := src.File
	if file == "" {
		file, _ = lookup("SYMPTOBUDDY_CONFIG")
	}
	if file != "" {
		if err := loadFile(file, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}
	if src.EnvFile != "" {
		values, err := godotenv.Read(src.EnvFile)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("load env file: %w", err)
		default:
			if err := applyEnv(&cfg, mapLookup(values)); err != nil {
				return cfg, fmt.Errorf("env file: %w", err)
			}
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return cfg, fmt.Errorf("environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator supplied config path
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func mapLookup(values map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := values[key]
		return v, ok
	}
}

// applyEnv overrides cfg with every SYMPTOBUDDY_* variable lookup reports.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"SYMPTOBUDDY_STORAGE_DRIVER":     &cfg.Storage.Driver,
		"SYMPTOBUDDY_BADGER_PATH":        &cfg.Storage.Badger.Path,
		"SYMPTOBUDDY_SQLITE_PATH":        &cfg.Storage.SQLite.Path,
		"SYMPTOBUDDY_POSTGRES_DSN":       &cfg.Storage.Postgres.DSN,
		"SYMPTOBUDDY_BLOB_DRIVER":        &cfg.Storage.Blob.Driver,
		"SYMPTOBUDDY_BLOB_FS_ROOT":       &cfg.Storage.Blob.FSRoot,
		"SYMPTOBUDDY_BLOB_S3_BUCKET":     &cfg.Storage.Blob.S3.Bucket,
		"SYMPTOBUDDY_BLOB_S3_REGION":     &cfg.Storage.Blob.S3.Region,
		"SYMPTOBUDDY_BLOB_S3_ENDPOINT":   &cfg.Storage.Blob.S3.Endpoint,
		"SYMPTOBUDDY_PREDICTION_URL":     &cfg.Prediction.BaseURL,
		"SYMPTOBUDDY_LOG_LEVEL":          &cfg.Log.Level,
		"SYMPTOBUDDY_LOG_FORMAT":         &cfg.Log.Format,
		"SYMPTOBUDDY_LOG_FILE":           &cfg.Log.File,
		"SYMPTOBUDDY_METRICS_EXPORTER":   &cfg.Metrics.Exporter,
		"SYMPTOBUDDY_METRICS_TRACE_FILE": &cfg.Metrics.TraceFile,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	bools := map[string]*bool{
		"SYMPTOBUDDY_BADGER_IN_MEMORY":   &cfg.Storage.Badger.InMemory,
		"SYMPTOBUDDY_BADGER_SYNC_WRITES": &cfg.Storage.Badger.SyncWrites,
		"SYMPTOBUDDY_BLOB_S3_PATH_STYLE": &cfg.Storage.Blob.S3.PathStyle,
		"SYMPTOBUDDY_LOG_COMPRESS":       &cfg.Log.Compress,
	}
	for key, dst := range bools {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	durations := map[string]*time.Duration{
		"SYMPTOBUDDY_BADGER_GC_INTERVAL": &cfg.Storage.Badger.GCInterval,
		"SYMPTOBUDDY_PREDICTION_TIMEOUT": &cfg.Prediction.Timeout,
	}
	for key, dst := range durations {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate rejects unknown drivers and missing driver-specific settings.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	switch c.Storage.Driver {
	case DriverBadger:
		if !c.Storage.Badger.InMemory && c.Storage.Badger.Path == "" {
			return errors.New("storage.badger.path is required unless in_memory is set")
		}
		if c.Storage.Badger.GCInterval > 0 && c.Storage.Badger.GCDiscardRatio <= 0 {
			return errors.New("storage.badger.gc_discard_ratio must be above 0 when gc_interval is set")
		}
	case DriverPostgres:
		if c.Storage.Postgres.DSN == "" {
			return errors.New("storage.postgres.dsn is required for the postgres driver")
		}
	case DriverBlob:
		if c.Storage.Blob.Driver == "s3" && c.Storage.Blob.S3.Bucket == "" {
			return errors.New("storage.blob.s3.bucket is required for the s3 blob driver")
		}
	}
	return nil
}
