package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				APIKey:       "file-key",
				Address:      "collector.local:8000",
				QueueSize:    100,
				FlushTimeout: "3s",
				LogLevel:     "debug",
				MetricsAddr:  ":9090",
				Enabled:      &falseVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				APIKey:       "file-key",
				Address:      "collector.local:8000",
				QueueSize:    100,
				FlushTimeout: 3 * time.Second,
				LogLevel:     "debug",
				MetricsAddr:  ":9090",
				Disabled:     true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				APIKey:  "file-key",
				Address: "file:8000",
				Enabled: &falseVal,
			},
			changed: map[string]bool{"api-key": true, "disabled": true},
			initial: Config{APIKey: "flag-key"},
			expected: Config{
				APIKey:  "flag-key",
				Address: "file:8000",
			},
		},
		{
			name:       "empty values keep defaults",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    DefaultConfig(),
			expected:   DefaultConfig(),
		},
		{
			name:       "enabled true clears disabled",
			fileConfig: FileConfig{Enabled: &trueVal},
			changed:    map[string]bool{},
			initial:    Config{Disabled: true},
			expected:   Config{},
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{FlushTimeout: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if tt.wantErr {
				if err == nil {
					t.Error("ApplyFileConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyFileConfig() unexpected error: %v", err)
			}
			if cfg != tt.expected {
				t.Errorf("config = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
api_key = "abc123"
address = "localhost:8000"
queue_size = 250
flush_timeout = "2s"
enabled = false
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	fc, err := LoadFileConfig(path)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}
	if fc.APIKey != "abc123" || fc.Address != "localhost:8000" || fc.QueueSize != 250 || fc.FlushTimeout != "2s" {
		t.Errorf("LoadFileConfig() = %+v", fc)
	}
	if fc.Enabled == nil || *fc.Enabled {
		t.Errorf("Enabled = %v, want false", fc.Enabled)
	}
}

func TestLoadFileConfig_Errors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadFileConfig(filepath.Join(dir, "missing.toml")); err == nil {
		t.Error("LoadFileConfig() on missing file succeeded")
	}

	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("api_key = [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFileConfig(bad); err == nil {
		t.Error("LoadFileConfig() on invalid TOML succeeded")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got := DefaultConfigPath()
	want := filepath.Join(home, ".instrumental", "config.toml")
	if got != want {
		t.Errorf("DefaultConfigPath() = %q, want %q", got, want)
	}
	if !strings.HasSuffix(got, "config.toml") {
		t.Errorf("unexpected path %q", got)
	}
}

// Precedence: flags > env > file > defaults.
func TestResolve_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
api_key = "file-key"
address = "file:8000"
queue_size = 100
log_level = "warn"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("INSTRUMENTAL_ADDRESS", "env:8000")
	t.Setenv("INSTRUMENTAL_QUEUE_SIZE", "200")

	cfg := DefaultConfig()
	cfg.QueueSize = 300
	changed := map[string]bool{"queue-size": true}

	loaded, err := Resolve(&cfg, path, changed)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if loaded != path {
		t.Errorf("loaded = %q, want %q", loaded, path)
	}
	if cfg.APIKey != "file-key" {
		t.Errorf("APIKey = %q, want file-key (file should set)", cfg.APIKey)
	}
	if cfg.Address != "env:8000" {
		t.Errorf("Address = %q, want env:8000 (env should override file)", cfg.Address)
	}
	if cfg.QueueSize != 300 {
		t.Errorf("QueueSize = %d, want 300 (flag should win)", cfg.QueueSize)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}
}

func TestResolve_MissingFile(t *testing.T) {
	t.Setenv("INSTRUMENTAL_API_KEY", "env-key")

	cfg := DefaultConfig()
	loaded, err := Resolve(&cfg, filepath.Join(t.TempDir(), "none.toml"), map[string]bool{})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if loaded != "" {
		t.Errorf("loaded = %q, want empty", loaded)
	}
	if cfg.APIKey != "env-key" {
		t.Errorf("APIKey = %q, want env-key", cfg.APIKey)
	}
}
