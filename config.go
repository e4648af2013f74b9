package framestore

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the process-wide container configuration. Construct it once
// (DefaultConfig or LoadConfig) and pass it to Open; there is no hidden
// module-level state.
type Config struct {
	// CacheSizeKB is the container page cache size in KB.
	CacheSizeKB int `yaml:"cache_size_kb" validate:"min=0"`

	// JournalMode sets the container journal mode.
	JournalMode string `yaml:"journal_mode" validate:"omitempty,oneof=WAL DELETE TRUNCATE PERSIST MEMORY OFF"`

	// Synchronous sets the container synchronous flag.
	Synchronous string `yaml:"synchronous" validate:"omitempty,oneof=OFF NORMAL FULL EXTRA"`

	// BusyTimeoutMS is how long a statement waits on a locked container
	// before failing.
	BusyTimeoutMS int `yaml:"busy_timeout_ms" validate:"min=0"`

	// Compression toggles snappy on fixed-format payloads and object
	// column cells. The codec itself is not configurable.
	Compression bool `yaml:"compression"`

	// Chunksize is the default rows per write flush and per iterator
	// chunk.
	Chunksize int64 `yaml:"chunksize" validate:"min=1"`

	// MinExpectedRows floors the expectedrows sizing hint on table
	// creation.
	MinExpectedRows int64 `yaml:"min_expected_rows" validate:"min=0"`

	// OpenRetries bounds the backoff loop when the container is
	// momentarily locked by another opener.
	OpenRetries int `yaml:"open_retries" validate:"min=0"`
}

func DefaultConfig() *Config {
	return &Config{
		CacheSizeKB:     2000,
		JournalMode:     "WAL",
		Synchronous:     "NORMAL",
		BusyTimeoutMS:   5000,
		Compression:     true,
		Chunksize:       100_000,
		MinExpectedRows: 10_000,
		OpenRetries:     5,
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error in os.ReadFile: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("error in yaml.Unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
