package shared

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path == "" {
			t.Error("default database path should not be empty")
		}
		if config.Library.MusicDir == "" {
			t.Error("default music dir should not be empty")
		}
		if len(config.Library.Extensions) == 0 {
			t.Error("default extensions should not be empty")
		}
		if config.Sync.FailureListCap <= 0 {
			t.Error("default failure list cap should be positive")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")

		content := `
[database]
path = "library.db"
max_open_conns = 2

[library]
music_dir = "/mnt/music"
extensions = [".mp3"]

[sync]
scan_workers = 2
scan_rate_limit = 50.0
failure_list_cap = 10
`
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		config, err := LoadConfig(path)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Database.Path != "library.db" {
			t.Errorf("expected database path library.db, got %s", config.Database.Path)
		}
		if config.Library.MusicDir != "/mnt/music" {
			t.Errorf("expected music dir /mnt/music, got %s", config.Library.MusicDir)
		}
		if config.Sync.ScanWorkers != 2 {
			t.Errorf("expected 2 scan workers, got %d", config.Sync.ScanWorkers)
		}
	})

	t.Run("LoadConfig missing file", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
			t.Error("expected error for missing config file")
		}
	})

	t.Run("CreateConfigFile refuses overwrite", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")

		if err := CreateConfigFile(path); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}
		if err := CreateConfigFile(path); err == nil {
			t.Error("expected error when config file already exists")
		}
	})
}
