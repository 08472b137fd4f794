package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	SourcePostgREST = "postgrest"
	SourcePostgres  = "postgres"

	DestinationSheets = "sheets"
	DestinationCSV    = "csv"

	HistoryFull    = "full"
	HistoryCompact = "compact"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Source      SourceConfig      `toml:"source"`
	Destination DestinationConfig `toml:"destination"`
	Migration   MigrationConfig   `toml:"migration"`
	Database    DatabaseConfig    `toml:"database"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// SourceConfig describes the record store the catalog is read from.
type SourceConfig struct {
	Kind         string   `toml:"kind"`
	URL          string   `toml:"url"`
	APIKey       string   `toml:"api_key"`
	DSN          string   `toml:"dsn"`
	PrimaryTable string   `toml:"primary_table"`
	AuxTable     string   `toml:"aux_table"`
	OrderKey     string   `toml:"order_key"`
	PageSize     int      `toml:"page_size"`
	PageDelay    Duration `toml:"page_delay"`
	Timeout      Duration `toml:"timeout"`
}

// DestinationConfig describes the spreadsheet (or CSV directory) written to.
type DestinationConfig struct {
	Kind            string   `toml:"kind"`
	SpreadsheetID   string   `toml:"spreadsheet_id"`
	CredentialsFile string   `toml:"credentials_file"`
	PrimaryTable    string   `toml:"primary_table"`
	AuxTable        string   `toml:"aux_table"`
	ChunkSize       int      `toml:"chunk_size"`
	ChunkDelay      Duration `toml:"chunk_delay"`
	PageDelay       Duration `toml:"page_delay"`
	RetryBackoff    Duration `toml:"retry_backoff"`
	Recreate        bool     `toml:"recreate"`
	PrimaryCapacity int      `toml:"primary_capacity"`
	AuxCapacity     int      `toml:"aux_capacity"`
	OutputDir       string   `toml:"output_dir"`
	FormatHeader    bool     `toml:"format_header"`
}

// MigrationConfig holds encoding and verification settings.
type MigrationConfig struct {
	CellLimit     int            `toml:"cell_limit"`
	SampleSize    int            `toml:"sample_size"`
	HistorySchema string         `toml:"history_schema"`
	ElementCaps   map[string]int `toml:"element_caps"`
}

// DatabaseConfig contains run-history database settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// MetricsConfig controls the Prometheus textfile written after each run.
// An empty path disables the export.
//
// ListenAddr is where `albumsheets serve` exposes run history and /metrics.
type MetricsConfig struct {
	TextfilePath string `toml:"textfile_path"`
	ListenAddr   string `toml:"listen_addr"`
}

// Duration wraps [time.Duration] so TOML strings like "500ms" decode into it.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, text, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// LoadConfig reads a TOML configuration file from path and overlays it on [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	switch c.Source.Kind {
	case SourcePostgREST:
		if c.Source.URL == "" {
			result = multierror.Append(result, fmt.Errorf("%w: source.url is required for postgrest", ErrInvalidConfig))
		}
	case SourcePostgres:
		if c.Source.DSN == "" {
			result = multierror.Append(result, fmt.Errorf("%w: source.dsn is required for postgres", ErrInvalidConfig))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("%w: unknown source kind %q", ErrInvalidConfig, c.Source.Kind))
	}

	if c.Source.PrimaryTable == "" || c.Source.AuxTable == "" {
		result = multierror.Append(result, fmt.Errorf("%w: source tables must be named", ErrInvalidConfig))
	}
	if c.Source.OrderKey == "" {
		result = multierror.Append(result, fmt.Errorf("%w: source.order_key is required", ErrInvalidConfig))
	}
	if c.Source.PageSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: source.page_size must be positive", ErrInvalidConfig))
	}

	switch c.Destination.Kind {
	case DestinationSheets:
		if c.Destination.SpreadsheetID == "" {
			result = multierror.Append(result, fmt.Errorf("%w: destination.spreadsheet_id is required for sheets", ErrInvalidConfig))
		}
		if c.Destination.CredentialsFile == "" {
			result = multierror.Append(result, fmt.Errorf("%w: destination.credentials_file", ErrMissingCredentials))
		}
	case DestinationCSV:
		if c.Destination.OutputDir == "" {
			result = multierror.Append(result, fmt.Errorf("%w: destination.output_dir is required for csv", ErrInvalidConfig))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("%w: unknown destination kind %q", ErrInvalidConfig, c.Destination.Kind))
	}

	if c.Destination.PrimaryTable == "" || c.Destination.AuxTable == "" {
		result = multierror.Append(result, fmt.Errorf("%w: destination tables must be named", ErrInvalidConfig))
	}
	if c.Destination.ChunkSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: destination.chunk_size must be positive", ErrInvalidConfig))
	}
	if c.Migration.CellLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("%w: migration.cell_limit must be positive", ErrInvalidConfig))
	}
	if c.Migration.SampleSize < 0 {
		result = multierror.Append(result, fmt.Errorf("%w: migration.sample_size cannot be negative", ErrInvalidConfig))
	}

	switch c.Migration.HistorySchema {
	case HistoryFull, HistoryCompact:
	default:
		result = multierror.Append(result, fmt.Errorf("%w: unknown history schema %q", ErrInvalidConfig, c.Migration.HistorySchema))
	}

	return result.ErrorOrNil()
}
