package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
)

type Config struct {
	DatabaseBusyTimeout       time.Duration `koanf:"database_busy_timeout"`
	DatabaseConnectRetryCount int           `koanf:"database_connect_retry_count"`
	DatabaseConnectRetryDelay time.Duration `koanf:"database_connect_retry_delay"`
	DatabaseDebug             bool          `koanf:"database_debug"`
	DatabaseFilePath          string        `koanf:"database_file_path"`
	DatabaseMaxRetries        int           `koanf:"database_max_retries"`
	DataDirectory             string        `koanf:"data_directory"`
	MediaDirectory            string        `koanf:"media_directory"`
	Hostname                  string        `koanf:"-"`
}

const configFileENV = "CONFIG_FILE"

// New loads configuration from an optional YAML config file and then from
// environment variables, with env vars taking precedence over file values.
// The config file path is taken from CONFIG_FILE, defaulting to
// ./config.yaml. A missing file is not an error; defaults and env vars still
// apply.
func New() (*Config, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	cfg := &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 5,
		DatabaseConnectRetryDelay: 2 * time.Second,
		DatabaseMaxRetries:        5,
		Hostname:                  hostname,
	}

	k := koanf.New(".")

	configFilePath := os.Getenv(configFileENV)
	if configFilePath == "" {
		configFilePath = "./config.yaml"
	}
	if _, statErr := os.Stat(configFilePath); statErr == nil {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, errors.WithStack(err)
		}
	}

	// Unprefixed env vars map onto the same snake_case keys the config file
	// uses, so DATABASE_FILE_PATH overrides database_file_path.
	err = k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, interface{}) {
		return strings.ToLower(key), value
	}), nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.WithStack(err)
	}

	if cfg.DatabaseFilePath == "" {
		return nil, missingRequired("DatabaseFilePath")
	}
	if cfg.DataDirectory == "" {
		return nil, missingRequired("DataDirectory")
	}
	if cfg.MediaDirectory == "" {
		cfg.MediaDirectory = filepath.Join(cfg.DataDirectory, "media")
	}

	return cfg, nil
}

// NewForTest returns a config pointed at an in-memory database with fast
// retry settings. Tests that touch media files should override
// MediaDirectory with a t.TempDir().
func NewForTest() *Config {
	return &Config{
		DatabaseBusyTimeout:       5 * time.Second,
		DatabaseConnectRetryCount: 1,
		DatabaseConnectRetryDelay: 10 * time.Millisecond,
		DatabaseFilePath:          ":memory:",
		DatabaseMaxRetries:        2,
		DataDirectory:             os.TempDir(),
		MediaDirectory:            filepath.Join(os.TempDir(), "story-timeline-media"),
		Hostname:                  "test",
	}
}

func missingRequired(field string) error {
	key := toSnakeCase(field)
	return errors.Errorf("missing required config %s: set the %s environment variable or %q in the config file", field, strings.ToUpper(key), key)
}

func toSnakeCase(s string) string {
	return strcase.ToSnake(s)
}
