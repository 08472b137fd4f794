package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Source.PageSize != 300 {
			t.Errorf("expected page size 300, got %d", config.Source.PageSize)
		}

		if config.Destination.ChunkSize != 50 {
			t.Errorf("expected chunk size 50, got %d", config.Destination.ChunkSize)
		}

		if config.Destination.RetryBackoff.Duration != 5*time.Second {
			t.Errorf("expected retry backoff 5s, got %v", config.Destination.RetryBackoff.Duration)
		}

		if config.Metrics.ListenAddr != "127.0.0.1:9464" {
			t.Errorf("expected listen addr 127.0.0.1:9464, got %q", config.Metrics.ListenAddr)
		}

		if config.Source.PageDelay.Duration != 500*time.Millisecond {
			t.Errorf("expected source page delay 500ms, got %v", config.Source.PageDelay.Duration)
		}

		if config.Migration.CellLimit != 45000 {
			t.Errorf("expected cell limit 45000, got %d", config.Migration.CellLimit)
		}

		if config.Migration.ElementCaps["tracklist"] != 20 {
			t.Errorf("expected tracklist cap 20, got %d", config.Migration.ElementCaps["tracklist"])
		}

		if config.Destination.PrimaryTable != "Albums" {
			t.Errorf("expected primary table Albums, got %s", config.Destination.PrimaryTable)
		}

		if config.Database.Path != "./albumsheets.db" {
			t.Errorf("expected database path ./albumsheets.db, got %s", config.Database.Path)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig overlays defaults", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[source]
kind = "postgres"
dsn = "postgres://localhost/catalog"
page_size = 1000

[destination]
kind = "csv"
output_dir = "/tmp/out"
chunk_delay = "2s"

[migration]
history_schema = "compact"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Source.Kind != SourcePostgres {
			t.Errorf("expected source kind postgres, got %s", config.Source.Kind)
		}

		if config.Source.PageSize != 1000 {
			t.Errorf("expected page size 1000, got %d", config.Source.PageSize)
		}

		if config.Destination.ChunkDelay.Duration != 2*time.Second {
			t.Errorf("expected chunk delay 2s, got %v", config.Destination.ChunkDelay.Duration)
		}

		if config.Destination.ChunkSize != 50 {
			t.Errorf("expected default chunk size to survive overlay, got %d", config.Destination.ChunkSize)
		}

		if config.Migration.HistorySchema != HistoryCompact {
			t.Errorf("expected compact history schema, got %s", config.Migration.HistorySchema)
		}

		if err := config.Validate(); err != nil {
			t.Errorf("expected overlaid config to validate, got %v", err)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
		if !errors.Is(err, ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("LoadConfig bad duration", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[source]\npage_delay = \"soon\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := LoadConfig(configPath); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestConfigValidate(t *testing.T) {
	t.Run("sheets destination requires credentials", func(t *testing.T) {
		config := DefaultConfig()
		config.Destination.CredentialsFile = ""

		err := config.Validate()
		if !errors.Is(err, ErrMissingCredentials) {
			t.Errorf("expected ErrMissingCredentials, got %v", err)
		}
	})

	t.Run("reports every problem", func(t *testing.T) {
		config := DefaultConfig()
		config.Source.Kind = "mysql"
		config.Destination.ChunkSize = 0
		config.Migration.HistorySchema = "wide"

		err := config.Validate()
		if err == nil {
			t.Fatal("expected validation error")
		}

		for _, want := range []string{"mysql", "chunk_size", "wide"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("expected error to mention %q, got %v", want, err)
			}
		}
	})

	t.Run("defaults are valid", func(t *testing.T) {
		if err := DefaultConfig().Validate(); err != nil {
			t.Errorf("default config should validate, got %v", err)
		}
	})
}
